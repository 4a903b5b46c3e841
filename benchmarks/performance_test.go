// Package benchmarks
// Author: momentics <momentics@gmail.com>
//
// Performance benchmarks for hioload-httpd components.

package benchmarks

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/momentics/hioload-httpd/control"
	"github.com/momentics/hioload-httpd/protocol"
	"github.com/momentics/hioload-httpd/server"
)

var request = []byte("GET /bench HTTP/1.1\r\nHost: localhost\r\nUser-Agent: bench\r\nAccept: */*\r\n\r\n")

// BenchmarkFramerWhole frames a head delivered in one read.
func BenchmarkFramerWhole(b *testing.B) {
	f := protocol.NewFramer(0)
	b.ReportAllocs()
	b.SetBytes(int64(len(request)))
	for i := 0; i < b.N; i++ {
		f.Reset()
		if head, err := f.Frame(request); head == nil || err != nil {
			b.Fatalf("frame: %v", err)
		}
	}
}

// BenchmarkFramerByteAtATime exercises resumable scanning over a trickled head.
func BenchmarkFramerByteAtATime(b *testing.B) {
	f := protocol.NewFramer(0)
	b.ReportAllocs()
	b.SetBytes(int64(len(request)))
	for i := 0; i < b.N; i++ {
		f.Reset()
		var head *protocol.Head
		for n := 1; n <= len(request) && head == nil; n++ {
			head, _ = f.Frame(request[:n])
		}
		if head == nil {
			b.Fatal("head not framed")
		}
	}
}

// BenchmarkBuildResponse measures response assembly.
func BenchmarkBuildResponse(b *testing.B) {
	body := []byte(protocol.DefaultBody)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if r := protocol.BuildResponse(protocol.DefaultContentType, body); r.Len() == 0 {
			b.Fatal("empty response")
		}
	}
}

// BenchmarkEventLoopRoundTrip runs parallel connect/request/response cycles
// against a live event loop.
func BenchmarkEventLoopRoundTrip(b *testing.B) {
	cfg := control.DefaultConfig()
	cfg.ListenAddr = "127.0.0.1:0"
	s, err := server.NewServer(cfg, server.WithLogger(control.DiscardLogger()))
	if err != nil {
		b.Fatal(err)
	}
	if err := s.Listen(); err != nil {
		b.Skipf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx) }()
	defer func() {
		cancel()
		<-done
	}()
	addr := s.Addr().String()

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			c, err := net.DialTimeout("tcp", addr, time.Second)
			if err != nil {
				b.Error(err)
				return
			}
			c.Write(request)
			if _, err := io.Copy(io.Discard, c); err != nil {
				b.Error(err)
			}
			c.Close()
		}
	})
}
