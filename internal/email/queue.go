package email

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Queue delivers through a Mailer on background workers. Send only enqueues,
// so request latency never depends on the mail provider. When the buffer is
// full the message goes straight to the fallback log.
type Queue struct {
	mailer *Mailer
	jobs   chan queued
	logger *zap.Logger
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

type queued struct {
	ctx  context.Context
	kind Kind
	to   string
	data Data
}

// NewQueue starts workers goroutines draining a buffer of size messages.
func NewQueue(mailer *Mailer, size, workers int, logger *zap.Logger) *Queue {
	if size < 1 {
		size = 1
	}
	if workers < 1 {
		workers = 1
	}
	q := &Queue{mailer: mailer, jobs: make(chan queued, size), logger: logger}
	for i := 0; i < workers; i++ {
		q.wg.Add(1)
		go q.work()
	}
	return q
}

func (q *Queue) work() {
	defer q.wg.Done()
	for job := range q.jobs {
		q.mailer.Send(job.ctx, job.kind, job.to, job.data)
	}
}

// Send enqueues the message. The caller's cancellation does not reach the
// background send.
func (q *Queue) Send(ctx context.Context, kind Kind, to string, data Data) Result {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return q.mailer.Defer(kind, to, data, "email queue closed")
	}
	select {
	case q.jobs <- queued{ctx: context.WithoutCancel(ctx), kind: kind, to: to, data: data}:
		return Result{Queued: true}
	default:
		q.logger.Warn("email queue full", zap.String("kind", string(kind)))
		return q.mailer.Defer(kind, to, data, "email queue full")
	}
}

// Close stops accepting messages and waits for queued ones until ctx ends.
func (q *Queue) Close(ctx context.Context) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.jobs)
	}
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		q.logger.Warn("email queue not drained", zap.Int("pending", len(q.jobs)))
		return ctx.Err()
	}
}
