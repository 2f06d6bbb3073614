// Package orchestrator runs one submission attempt at a time in the
// background: collect the inventory, then send it.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/stone-age-io/hwinventory/internal/inventory"
	"github.com/stone-age-io/hwinventory/internal/store"
	"github.com/stone-age-io/hwinventory/internal/submission"
	"go.uber.org/zap"
)

// ErrBusy is returned by Submit while another attempt is running
var ErrBusy = errors.New("a submission is already in progress")

// User-facing outcome messages
const (
	MessageSuccess = "Data saved locally and sent to the server successfully."
	MessageFailure = "Data was saved locally, but sending it to the server failed.\n" +
		"Check your connection and the console logs for details."
	messageUnexpected = "An unexpected error occurred while sending: %v"
)

// Collector builds an inventory record
type Collector interface {
	Collect(ctx context.Context) inventory.Record
}

// Submitter sends a record with the user's selection
type Submitter interface {
	Submit(ctx context.Context, sel store.Selection, rec inventory.Record) submission.Result
}

// SelectionSaver persists the user's selection
type SelectionSaver interface {
	SaveSelection(sel store.Selection) error
}

// Orchestrator coordinates submission attempts
type Orchestrator struct {
	collector Collector
	submitter Submitter
	saver     SelectionSaver
	logger    *zap.Logger

	mu     sync.Mutex
	active *Handle
}

// New creates an orchestrator
func New(collector Collector, submitter Submitter, saver SelectionSaver, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		collector: collector,
		submitter: submitter,
		saver:     saver,
		logger:    logger,
	}
}

// Submit saves the selection and starts a background attempt. It returns
// ErrBusy without starting anything when an attempt is already running, and
// the save error when the selection cannot be written.
func (o *Orchestrator) Submit(sel store.Selection) (*Handle, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.active != nil {
		o.logger.Debug("Submission already in progress, rejecting new attempt")
		return nil, ErrBusy
	}

	if err := o.saver.SaveSelection(sel); err != nil {
		return nil, fmt.Errorf("could not save selection locally: %w", err)
	}
	o.logger.Info("Selection saved locally", zap.String("asset", sel.Asset))

	ctx, cancel := context.WithCancel(context.Background())
	h := newHandle(cancel)
	o.active = h

	go o.run(ctx, h, sel)
	return h, nil
}

// Active reports whether an attempt is running
func (o *Orchestrator) Active() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.active != nil
}

// Shutdown cancels the running attempt, if any, and waits up to timeout for
// it to complete. It reports whether the worker finished in time; calls that
// are still in flight afterwards are abandoned.
func (o *Orchestrator) Shutdown(timeout time.Duration) bool {
	o.mu.Lock()
	h := o.active
	o.mu.Unlock()

	if h == nil {
		return true
	}

	o.logger.Info("Stopping submission in progress")
	h.Cancel()

	select {
	case <-h.done:
		return true
	case <-time.After(timeout):
		o.logger.Warn("Submission worker did not stop in time", zap.Duration("timeout", timeout))
		return false
	}
}

func (o *Orchestrator) run(ctx context.Context, h *Handle, sel store.Selection) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("Panic recovered in submission worker",
				zap.Any("panic", r),
				zap.String("stack", string(debug.Stack())))
			if ctx.Err() == nil {
				h.emit(Event{Kind: EventFailure, Message: fmt.Sprintf(messageUnexpected, r)})
			}
		}
		o.finish(h)
	}()

	if ctx.Err() != nil {
		return
	}

	o.logger.Info("Collecting hardware inventory")
	rec := o.collector.Collect(ctx)

	if ctx.Err() != nil {
		o.logger.Info("Submission cancelled before sending")
		return
	}

	o.logger.Info("Inventory collected, sending")
	res := o.submitter.Submit(ctx, sel, rec)

	if ctx.Err() != nil {
		o.logger.Info("Submission cancelled, discarding outcome", zap.Stringer("result", res))
		return
	}

	if res.OK {
		h.emit(Event{Kind: EventSuccess, Message: MessageSuccess})
		return
	}
	o.logger.Warn("Submission failed", zap.Stringer("result", res))
	h.emit(Event{Kind: EventFailure, Message: MessageFailure})
}

// finish releases the active slot before announcing completion, so a caller
// that observes EventComplete can start the next attempt
func (o *Orchestrator) finish(h *Handle) {
	o.mu.Lock()
	if o.active == h {
		o.active = nil
	}
	o.mu.Unlock()

	h.emit(Event{Kind: EventComplete})
	close(h.events)
	close(h.done)
}
