//go:build linux

package server_test

import (
	"bytes"
	"io"
	"net"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/momentics/hioload-httpd/server"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"golang.org/x/sys/unix"
)

func openFiles(t *testing.T) int {
	t.Helper()
	entries, err := os.ReadDir("/proc/self/fd")
	if err != nil {
		t.Skipf("no /proc/self/fd: %v", err)
	}
	return len(entries)
}

func TestServeBacksOffOnDescriptorExhaustion(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	s := startServer(t, nil, server.WithLogger(logger))
	exchange(t, s)

	var saved unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &saved); err != nil {
		t.Skipf("getrlimit: %v", err)
	}
	lim := saved
	lim.Cur = uint64(openFiles(t) + 16)
	if lim.Cur > saved.Cur {
		t.Skipf("descriptor limit %d too low", saved.Cur)
	}
	if err := unix.Setrlimit(unix.RLIMIT_NOFILE, &lim); err != nil {
		t.Skipf("setrlimit: %v", err)
	}
	var fillers []*os.File
	restore := func() {
		for _, f := range fillers {
			f.Close()
		}
		fillers = nil
		unix.Setrlimit(unix.RLIMIT_NOFILE, &saved)
	}
	defer restore()

	for {
		f, err := os.Open(os.DevNull)
		if err != nil {
			break
		}
		fillers = append(fillers, f)
	}
	if len(fillers) == 0 {
		t.Skip("could not exhaust descriptors")
	}
	// Leave exactly one descriptor for the client; the server cannot accept.
	fillers[len(fillers)-1].Close()
	fillers = fillers[:len(fillers)-1]

	c, err := net.Dial("tcp", s.Addr().String())
	if err != nil {
		t.Skipf("dial under exhaustion: %v", err)
	}
	defer c.Close()

	time.Sleep(300 * time.Millisecond)
	failures := 0
	for _, e := range hook.AllEntries() {
		if strings.Contains(e.Message, "accept failed") {
			failures++
		}
	}
	restore()

	if failures == 0 {
		t.Fatal("accept never failed under descriptor exhaustion")
	}
	if failures > 20 {
		t.Fatalf("%d accept failures logged in 300ms, the loop is not backing off", failures)
	}

	c.SetDeadline(time.Now().Add(5 * time.Second))
	if _, err := c.Write([]byte("GET / HTTP/1.0\r\n\r\n")); err != nil {
		t.Fatal(err)
	}
	got, err := io.ReadAll(c)
	if err != nil || !bytes.Equal(got, wantResponse()) {
		t.Fatalf("pending client after recovery: %q, %v", got, err)
	}
}
