// Package traffic keeps a short sliding window of inbound requests and gateway
// outcomes. Health evaluation reads it to decide whether the service is
// overloaded or degraded.
package traffic

import (
	"sync"
	"time"
)

// Outcome classifies one recorded event.
type Outcome int

const (
	Success Outcome = iota
	Error
	Denied
	Request
)

const maxAge = 5 * time.Minute

var defaultTracker Tracker

// RecordSuccess records a successful gateway call for operation.
func RecordSuccess(operation string) {
	defaultTracker.Record(operation, Success)
}

// RecordError records a failed gateway call (transport error or invalid reply).
func RecordError(operation string) {
	defaultTracker.Record(operation, Error)
}

// RecordDenied records a rate-limit denial (429).
func RecordDenied() {
	defaultTracker.Record("", Denied)
}

// RecordRequest records one inbound HTTP request on any route, denied or not.
func RecordRequest() {
	defaultTracker.Record("", Request)
}

// RequestCount returns the number of inbound HTTP requests within the window.
func RequestCount(window time.Duration) int {
	return defaultTracker.RequestCount(window)
}

// DenialCount returns the number of denials within the window.
func DenialCount(window time.Duration) int {
	return defaultTracker.DenialCount(window)
}

// ErrorRate returns (errorCount, totalCount) within the window. totalCount = successes + errors.
func ErrorRate(window time.Duration) (errors, total int) {
	return defaultTracker.ErrorRate(window)
}

// OperationErrors returns error counts per operation within the window.
func OperationErrors(window time.Duration) map[string]int {
	return defaultTracker.OperationErrors(window)
}

// Reset clears all recorded outcomes. For tests only.
func Reset() {
	defaultTracker.Reset()
}

type event struct {
	at        time.Time
	operation string
	outcome   Outcome
}

// Tracker holds timestamped outcomes in arrival order.
type Tracker struct {
	mu     sync.Mutex
	events []event
	now    func() time.Time
}

func (t *Tracker) clock() time.Time {
	if t.now != nil {
		return t.now()
	}
	return time.Now()
}

// Record appends an outcome and prunes entries older than five minutes.
func (t *Tracker) Record(operation string, o Outcome) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.clock()
	t.events = append(t.events, event{at: now, operation: operation, outcome: o})
	t.pruneLocked(now)
}

// RequestCount returns the inbound requests within the window. Gateway
// outcomes are not counted, so a request that reaches the model counts once.
func (t *Tracker) RequestCount(window time.Duration) int {
	n := 0
	t.each(window, func(e event) {
		if e.outcome == Request {
			n++
		}
	})
	return n
}

// DenialCount returns the number of rate-limit denials within the window.
func (t *Tracker) DenialCount(window time.Duration) int {
	n := 0
	t.each(window, func(e event) {
		if e.outcome == Denied {
			n++
		}
	})
	return n
}

// ErrorRate returns (errorCount, totalCount) within the window.
// Denials and inbound requests are excluded from both counts.
func (t *Tracker) ErrorRate(window time.Duration) (errors, total int) {
	t.each(window, func(e event) {
		switch e.outcome {
		case Error:
			errors++
			total++
		case Success:
			total++
		}
	})
	return errors, total
}

// OperationErrors returns error counts keyed by operation.
func (t *Tracker) OperationErrors(window time.Duration) map[string]int {
	out := make(map[string]int)
	t.each(window, func(e event) {
		if e.outcome == Error {
			out[e.operation]++
		}
	})
	return out
}

// Reset clears all recorded outcomes from the tracker.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = nil
}

func (t *Tracker) each(window time.Duration, fn func(event)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := t.clock().Add(-window)
	for _, e := range t.events {
		if !e.at.Before(cutoff) {
			fn(e)
		}
	}
}

// pruneLocked drops events older than maxAge. Events are appended in time order.
func (t *Tracker) pruneLocked(now time.Time) {
	cutoff := now.Add(-maxAge)
	i := 0
	for ; i < len(t.events) && t.events[i].at.Before(cutoff); i++ {
	}
	if i > 0 {
		t.events = append(t.events[:0], t.events[i:]...)
	}
}
