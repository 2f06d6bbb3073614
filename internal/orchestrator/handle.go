package orchestrator

import (
	"context"
)

// EventKind identifies an event emitted by a submission attempt
type EventKind int

const (
	// EventSuccess carries the user-facing success message
	EventSuccess EventKind = iota
	// EventFailure carries the user-facing failure message
	EventFailure
	// EventComplete is always the last event of an attempt
	EventComplete
)

func (k EventKind) String() string {
	switch k {
	case EventSuccess:
		return "success"
	case EventFailure:
		return "failure"
	case EventComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// Event is emitted by a submission attempt. An attempt emits at most one
// success or failure event, then exactly one EventComplete.
type Event struct {
	Kind    EventKind
	Message string
}

// Callbacks receive the events of an attempt
type Callbacks struct {
	OnSuccess  func(message string)
	OnFailure  func(message string)
	OnComplete func()
}

// Handle tracks one submission attempt
type Handle struct {
	events chan Event
	done   chan struct{}
	cancel context.CancelFunc
}

func newHandle(cancel context.CancelFunc) *Handle {
	return &Handle{
		// room for the outcome and the completion so the worker never blocks
		events: make(chan Event, 2),
		done:   make(chan struct{}),
		cancel: cancel,
	}
}

// Events returns the attempt's events; the channel is closed after
// EventComplete
func (h *Handle) Events() <-chan Event {
	return h.events
}

// Done is closed once the attempt has completed
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Cancel asks the attempt to stop at its next checkpoint. A cancelled attempt
// emits only EventComplete.
func (h *Handle) Cancel() {
	h.cancel()
}

// Dispatch delivers the attempt's events to cb, in order, and returns after
// OnComplete. It returns ctx.Err() if ctx ends first. Nil callbacks are
// skipped.
func (h *Handle) Dispatch(ctx context.Context, cb Callbacks) error {
	for {
		select {
		case ev, open := <-h.events:
			if !open {
				return nil
			}
			switch ev.Kind {
			case EventSuccess:
				if cb.OnSuccess != nil {
					cb.OnSuccess(ev.Message)
				}
			case EventFailure:
				if cb.OnFailure != nil {
					cb.OnFailure(ev.Message)
				}
			case EventComplete:
				if cb.OnComplete != nil {
					cb.OnComplete()
				}
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Wait blocks until the attempt completes or ctx is done and returns the
// outcome event. ok is false when the attempt was cancelled without an
// outcome or ctx ended first.
func (h *Handle) Wait(ctx context.Context) (outcome Event, ok bool) {
	for {
		select {
		case ev, open := <-h.events:
			if !open || ev.Kind == EventComplete {
				return outcome, ok
			}
			outcome, ok = ev, true
		case <-ctx.Done():
			return outcome, false
		}
	}
}

func (h *Handle) emit(ev Event) {
	h.events <- ev
}
