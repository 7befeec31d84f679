// Package emailtest provides an in-memory Dispatcher for tests.
package emailtest

import (
	"context"
	"sync"

	"github.com/hongminglow/ekonzims-be/internal/email"
)

// Sent is one recorded call.
type Sent struct {
	Kind email.Kind
	To   string
	Data email.Data
}

// Recorder records every Send and returns Result (Delivered by default).
type Recorder struct {
	mu     sync.Mutex
	sent   []Sent
	Result *email.Result
}

func (r *Recorder) Send(_ context.Context, kind email.Kind, to string, data email.Data) email.Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, Sent{Kind: kind, To: to, Data: data})
	if r.Result != nil {
		return *r.Result
	}
	return email.Result{Delivered: true}
}

// All returns a copy of the recorded calls.
func (r *Recorder) All() []Sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Sent(nil), r.sent...)
}

// Last returns the most recent call of kind.
func (r *Recorder) Last(kind email.Kind) (Sent, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.sent) - 1; i >= 0; i-- {
		if r.sent[i].Kind == kind {
			return r.sent[i], true
		}
	}
	return Sent{}, false
}

// Count returns how many calls of kind were recorded.
func (r *Recorder) Count(kind email.Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.sent {
		if s.Kind == kind {
			n++
		}
	}
	return n
}
