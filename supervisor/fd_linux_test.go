//go:build linux

package supervisor

import (
	"os"
	"testing"
)

func TestCheckInherited(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()
	fd := int(r.Fd())
	if err := checkInherited(fd); err != nil {
		t.Fatalf("open descriptor rejected: %v", err)
	}
	r.Close()
	if err := checkInherited(fd); err == nil {
		t.Fatalf("closed descriptor %d accepted", fd)
	}
}
