package supervisor_test

import (
	"os"
	"testing"

	"github.com/momentics/hioload-httpd/supervisor"
)

// The test binary doubles as the worker executable.
func TestMain(m *testing.M) {
	if supervisor.IsWorker() {
		os.Exit(supervisor.RunWorker())
	}
	os.Exit(m.Run())
}
