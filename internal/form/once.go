package form

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/stone-age-io/hwinventory/internal/orchestrator"
	"github.com/stone-age-io/hwinventory/internal/store"
)

// ErrSubmissionFailed is returned by SubmitOnce when the server did not
// accept the data
var ErrSubmissionFailed = errors.New("submission failed")

// Merge returns override with empty ids filled from base
func Merge(base, override store.Selection) store.Selection {
	if override.Asset == "" {
		override.Asset = base.Asset
	}
	if override.Responsible == "" {
		override.Responsible = base.Responsible
	}
	if override.Room == "" {
		override.Room = base.Room
	}
	return override
}

// SubmitOnce submits without prompting. Ids missing from override come from
// the cached selection.
func SubmitOnce(ctx context.Context, cache SelectionLoader, orch Submitter, override store.Selection, out io.Writer) error {
	cached, err := cache.LoadSelection()
	if err != nil && !errors.Is(err, store.ErrNoSelection) {
		return fmt.Errorf("failed to load saved selection: %w", err)
	}

	sel := Merge(cached, override)
	if missing := sel.Missing(); len(missing) > 0 {
		return fmt.Errorf("required fields missing: %s", strings.Join(missing, ", "))
	}

	h, err := orch.Submit(sel)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Sending data to the server, please wait...\n")
	failed := false
	err = h.Dispatch(ctx, orchestrator.Callbacks{
		OnSuccess: func(msg string) { fmt.Fprintln(out, msg) },
		OnFailure: func(msg string) {
			failed = true
			fmt.Fprintln(out, msg)
		},
	})
	if err != nil {
		h.Cancel()
		return err
	}
	if failed {
		return ErrSubmissionFailed
	}
	return nil
}
