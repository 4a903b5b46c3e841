package control_test

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/momentics/hioload-httpd/control"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestDebugMuxServesState(t *testing.T) {
	m := control.NewMetrics()
	dp := control.NewDebugProbes()
	dp.RegisterProbe("server.active", func() any { return 3 })
	srv := httptest.NewServer(control.NewDebugMux(m, dp))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/debug/state")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	var state map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&state); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if state["server.active"] != float64(3) {
		t.Errorf("server.active = %v", state["server.active"])
	}
	if _, ok := state["platform.pid"]; !ok {
		t.Error("platform probes missing")
	}
}

func TestDebugMuxServesMetrics(t *testing.T) {
	m := control.NewMetrics()
	m.ConnectionsAccepted.Add(2)
	m.ConnectionsClosed.WithLabelValues(control.ReasonDone).Inc()
	if v := testutil.ToFloat64(m.ConnectionsAccepted); v != 2 {
		t.Fatalf("accepted = %v", v)
	}

	srv := httptest.NewServer(control.NewDebugMux(m, control.NewDebugProbes()))
	defer srv.Close()
	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !bytes.Contains(body, []byte("hioload_connections_accepted_total 2")) {
		t.Errorf("metrics output missing counter:\n%s", body)
	}
	if !strings.Contains(string(body), `hioload_connections_closed_total{reason="done"} 1`) {
		t.Errorf("metrics output missing labelled counter:\n%s", body)
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	log, err := control.NewLogger("debug", "json", &buf)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	log.WithField("peer", "127.0.0.1:1").Debug("connected")
	if !strings.Contains(buf.String(), `"peer":"127.0.0.1:1"`) {
		t.Errorf("unexpected output %q", buf.String())
	}
	if _, err := control.NewLogger("loud", "text", nil); err == nil {
		t.Error("expected bad level error")
	}
}
