package relay

import (
	"net"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/vanderian/physync/internal/metrics"
)

func TestPeerBindAnyAndClose(t *testing.T) {
	p, err := BindAny(metrics.NewUnregisteredCollector(), zap.NewNop())
	if err != nil {
		t.Fatalf("BindAny: %v", err)
	}
	if p.LocalAddr() == nil {
		t.Fatal("LocalAddr() = nil")
	}
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	// Idempotent: a second Close must not error.
	if err := p.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestPeerInLoopStopsOnChannelClose(t *testing.T) {
	p, err := BindAny(metrics.NewUnregisteredCollector(), zap.NewNop())
	if err != nil {
		t.Fatalf("BindAny: %v", err)
	}
	defer p.Close()

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		p.InLoop(stop)
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	close(stop)

	// InLoop only re-checks stop between blocking reads; nudge it awake with
	// a throwaway datagram rather than waiting out the full idle-timeout
	// read deadline.
	conn, err := net.Dial("udp", p.LocalAddr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_, _ = conn.Write([]byte{0})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("InLoop did not return after stop was closed")
	}
}
