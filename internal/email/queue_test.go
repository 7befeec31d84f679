package email

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

// gateTransport blocks every delivery until release is closed.
type gateTransport struct {
	started chan struct{}
	release chan struct{}
	calls   atomic.Int32
}

func newGateTransport() *gateTransport {
	return &gateTransport{started: make(chan struct{}, 16), release: make(chan struct{})}
}

func (g *gateTransport) Deliver(ctx context.Context, _ Message) error {
	g.started <- struct{}{}
	select {
	case <-g.release:
		g.calls.Add(1)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func TestQueueSendDoesNotWaitForTransport(t *testing.T) {
	gate := newGateTransport()
	m, _ := newTestMailer(t, gate)
	q := NewQueue(m, 4, 1, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan Result, 1)
	go func() { done <- q.Send(ctx, KindWelcome, "a@example.com", Data{"FirstName": "A"}) }()

	select {
	case res := <-done:
		if !res.Queued || res.Delivered || res.Fallback {
			t.Fatalf("result = %+v", res)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Send blocked on the transport")
	}
	<-gate.started
	// Ending the request must not abort the background delivery.
	cancel()
	close(gate.release)

	closeCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	if err := q.Close(closeCtx); err != nil {
		t.Fatalf("close: %v", err)
	}
	if gate.calls.Load() != 1 {
		t.Fatalf("deliveries = %d", gate.calls.Load())
	}
}

func TestQueueFullFallsBack(t *testing.T) {
	gate := newGateTransport()
	m, path := newTestMailer(t, gate)
	q := NewQueue(m, 1, 1, zap.NewNop())
	data := Data{"FirstName": "A"}

	if res := q.Send(context.Background(), KindWelcome, "a@example.com", data); !res.Queued {
		t.Fatalf("first = %+v", res)
	}
	<-gate.started
	if res := q.Send(context.Background(), KindWelcome, "b@example.com", data); !res.Queued {
		t.Fatalf("second = %+v", res)
	}
	res := q.Send(context.Background(), KindWelcome, "c@example.com", data)
	if res.Queued || !res.Fallback {
		t.Fatalf("overflow = %+v", res)
	}
	lines := fallbackLines(t, path)
	if len(lines) != 1 || lines[0]["to"] != "c@example.com" || lines[0]["reason"] != "email queue full" {
		t.Fatalf("fallback lines = %v", lines)
	}

	close(gate.release)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := q.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}
	if gate.calls.Load() != 2 {
		t.Fatalf("deliveries = %d", gate.calls.Load())
	}
}

func TestQueueClosedFallsBack(t *testing.T) {
	m, path := newTestMailer(t, &fakeTransport{})
	q := NewQueue(m, 1, 1, zap.NewNop())
	if err := q.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
	res := q.Send(context.Background(), KindWelcome, "a@example.com", Data{"FirstName": "A"})
	if !res.Fallback {
		t.Fatalf("result = %+v", res)
	}
	if len(fallbackLines(t, path)) != 1 {
		t.Fatal("message sent after close was not logged")
	}
}

func TestQueueCloseHonoursDeadline(t *testing.T) {
	gate := newGateTransport()
	m, _ := newTestMailer(t, gate)
	q := NewQueue(m, 1, 1, zap.NewNop())
	q.Send(context.Background(), KindWelcome, "a@example.com", Data{"FirstName": "A"})
	<-gate.started

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := q.Close(ctx); err == nil {
		t.Fatal("close returned before the blocked send finished")
	}
	close(gate.release)
}
