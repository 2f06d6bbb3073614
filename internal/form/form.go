// Package form is the terminal front end: it loads the directory lists,
// lets the user pick an asset, a responsible person and a room, and submits
// through the orchestrator.
package form

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/sourcegraph/conc"
	"github.com/stone-age-io/hwinventory/internal/directory"
	"github.com/stone-age-io/hwinventory/internal/orchestrator"
	"github.com/stone-age-io/hwinventory/internal/store"
	"go.uber.org/zap"
)

// maxMatches caps how many candidates are printed for an ambiguous answer
const maxMatches = 20

// Directory provides the selectable lists
type Directory interface {
	FetchAssets(ctx context.Context) []directory.Item
	FetchRooms(ctx context.Context) []directory.Item
	FetchUsers(ctx context.Context) []directory.Item
	FetchAssignment(ctx context.Context, asset string) directory.Assignment
}

// SelectionLoader reads the cached selection
type SelectionLoader interface {
	LoadSelection() (store.Selection, error)
}

// Submitter starts a submission attempt
type Submitter interface {
	Submit(sel store.Selection) (*orchestrator.Handle, error)
}

// Lists holds the three directory lists shown by the form
type Lists struct {
	Assets []directory.Item
	Rooms  []directory.Item
	Users  []directory.Item
}

// LoadLists fetches the three lists concurrently and returns once all of
// them are populated
func LoadLists(ctx context.Context, dir Directory) Lists {
	var lists Lists
	var wg conc.WaitGroup
	wg.Go(func() { lists.Assets = dir.FetchAssets(ctx) })
	wg.Go(func() { lists.Rooms = dir.FetchRooms(ctx) })
	wg.Go(func() { lists.Users = dir.FetchUsers(ctx) })
	wg.Wait()
	return lists
}

// Form is an interactive terminal form
type Form struct {
	dir    Directory
	cache  SelectionLoader
	orch   Submitter
	out    io.Writer
	lines  chan string
	done   chan struct{} // closed when Run returns
	closed sync.Once
	reader chan struct{} // closed when the input reader exits
	logger *zap.Logger

	lists Lists
	sel   store.Selection
}

// New creates a form reading answers from in and writing to out
func New(dir Directory, cache SelectionLoader, orch Submitter, in io.Reader, out io.Writer, logger *zap.Logger) *Form {
	if logger == nil {
		logger = zap.NewNop()
	}
	f := &Form{
		dir:    dir,
		cache:  cache,
		orch:   orch,
		out:    out,
		lines:  make(chan string),
		done:   make(chan struct{}),
		reader: make(chan struct{}),
		logger: logger,
	}
	go f.read(in)
	return f
}

// read forwards input lines until input ends or Run has returned. A read
// already blocked on in is not interrupted.
func (f *Form) read(in io.Reader) {
	defer close(f.reader)

	sc := bufio.NewScanner(in)
	for sc.Scan() {
		select {
		case f.lines <- sc.Text():
		case <-f.done:
			return
		}
	}
	close(f.lines)
}

// Run shows the form until a submission succeeds, input ends or ctx is
// done. End of input is not an error.
func (f *Form) Run(ctx context.Context) error {
	defer f.closed.Do(func() { close(f.done) })

	f.printf("Loading directory lists...\n")
	f.lists = LoadLists(ctx, f.dir)
	f.logger.Info("Directory lists loaded",
		zap.Int("assets", len(f.lists.Assets)),
		zap.Int("rooms", len(f.lists.Rooms)),
		zap.Int("users", len(f.lists.Users)))
	f.printf("%d assets, %d rooms, %d users available.\n",
		len(f.lists.Assets), len(f.lists.Rooms), len(f.lists.Users))

	f.prefill(ctx)

	err := f.loop(ctx)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func (f *Form) loop(ctx context.Context) error {
	f.printf("Answer with an id, a label, #<number> from the list, or part of a label. " +
		"Press Enter to keep the current value, ? to list all options.\n")

	for {
		asset, err := f.choose(ctx, "Asset", f.lists.Assets, f.sel.Asset)
		if err != nil {
			return err
		}
		if asset != f.sel.Asset {
			f.sel.Asset = asset
			f.applyAssignment(ctx)
		}

		if f.sel.Responsible, err = f.choose(ctx, "Responsible", f.lists.Users, f.sel.Responsible); err != nil {
			return err
		}
		if f.sel.Room, err = f.choose(ctx, "Room", f.lists.Rooms, f.sel.Room); err != nil {
			return err
		}

		if missing := f.sel.Missing(); len(missing) > 0 {
			f.printf("Required fields missing: %s\n", strings.Join(missing, ", "))
			continue
		}

		ok, err := f.submit(ctx)
		if err != nil || ok {
			return err
		}
	}
}

// submit runs one attempt and reports whether it succeeded
func (f *Form) submit(ctx context.Context) (bool, error) {
	h, err := f.orch.Submit(f.sel)
	if errors.Is(err, orchestrator.ErrBusy) {
		f.printf("A submission is already in progress.\n")
		return false, nil
	}
	if err != nil {
		f.printf("Error: %v\n", err)
		return false, nil
	}

	f.printf("Sending data to the server, please wait...\n")
	var ok bool
	err = h.Dispatch(ctx, orchestrator.Callbacks{
		OnSuccess: func(msg string) {
			ok = true
			f.printf("%s\n", msg)
		},
		OnFailure: func(msg string) {
			f.printf("%s\n", msg)
		},
	})
	return ok, err
}

// prefill selects the cached asset, then the asset's recorded assignment,
// and fills whatever is still empty from the cache
func (f *Form) prefill(ctx context.Context) {
	cached, err := f.cache.LoadSelection()
	if err != nil {
		if !errors.Is(err, store.ErrNoSelection) {
			f.logger.Warn("Could not load saved selection", zap.Error(err))
		}
		return
	}

	if cached.Asset != "" {
		if directory.FindByID(f.lists.Assets, cached.Asset) >= 0 {
			f.sel.Asset = cached.Asset
			f.applyAssignment(ctx)
		} else {
			f.printf("Saved asset %q is not listed.\n", cached.Asset)
		}
	}
	if f.sel.Responsible == "" && directory.FindByID(f.lists.Users, cached.Responsible) >= 0 {
		f.sel.Responsible = cached.Responsible
	}
	if f.sel.Room == "" && directory.FindByID(f.lists.Rooms, cached.Room) >= 0 {
		f.sel.Room = cached.Room
	}
}

// applyAssignment replaces responsible and room with the asset's recorded
// assignment; values the directory does not know are cleared
func (f *Form) applyAssignment(ctx context.Context) {
	f.sel.Responsible, f.sel.Room = "", ""
	if f.sel.Asset == "" {
		return
	}

	a := f.dir.FetchAssignment(ctx, f.sel.Asset)
	if a.IsZero() {
		f.logger.Debug("No assignment recorded for asset", zap.String("asset", f.sel.Asset))
		return
	}

	if a.ResponsibleLabel != "" {
		if i := directory.FindByLabel(f.lists.Users, a.ResponsibleLabel); i >= 0 {
			f.sel.Responsible = f.lists.Users[i].ID
		} else {
			f.logger.Debug("Assigned responsible not listed", zap.String("label", a.ResponsibleLabel))
		}
	}
	if a.RoomID != "" {
		if i := directory.FindByID(f.lists.Rooms, a.RoomID); i >= 0 {
			f.sel.Room = a.RoomID
		} else {
			f.logger.Debug("Assigned room not listed", zap.String("room_id", a.RoomID))
		}
	}
	f.printf("Loaded the recorded assignment for asset %s.\n", f.sel.Asset)
}

// choose prompts until the answer resolves to one item id, or keeps current
// on an empty answer
func (f *Form) choose(ctx context.Context, name string, items []directory.Item, current string) (string, error) {
	for {
		f.printf("%s [%s]: ", name, labelOf(items, current))

		answer, err := f.readLine(ctx)
		if err != nil {
			return "", err
		}
		answer = strings.TrimSpace(answer)

		switch answer {
		case "":
			return current, nil
		case "?":
			f.list(items, len(items))
			continue
		case "-":
			return "", nil
		}

		matches := resolve(items, answer)
		switch len(matches) {
		case 1:
			return matches[0].ID, nil
		case 0:
			f.printf("No %s matches %q.\n", strings.ToLower(name), answer)
		default:
			f.printf("%d options match %q:\n", len(matches), answer)
			f.list(matches, maxMatches)
		}
	}
}

func (f *Form) readLine(ctx context.Context) (string, error) {
	select {
	case line, ok := <-f.lines:
		if !ok {
			return "", io.EOF
		}
		return line, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (f *Form) list(items []directory.Item, limit int) {
	for i, it := range items {
		if i == limit {
			f.printf("  ... %d more\n", len(items)-limit)
			return
		}
		f.printf("  #%d  %s\n", i+1, it.Label)
	}
}

func (f *Form) printf(format string, args ...any) {
	fmt.Fprintf(f.out, format, args...)
}

// resolve returns the items an answer designates: an exact id, an exact
// label, a #position, or otherwise every label containing the answer
func resolve(items []directory.Item, answer string) []directory.Item {
	if i := directory.FindByID(items, answer); i >= 0 {
		return items[i : i+1]
	}
	if i := directory.FindByLabel(items, answer); i >= 0 {
		return items[i : i+1]
	}
	if pos, ok := strings.CutPrefix(answer, "#"); ok {
		if n, err := strconv.Atoi(pos); err == nil && n >= 1 && n <= len(items) {
			return items[n-1 : n]
		}
		return nil
	}

	needle := strings.ToLower(answer)
	var matches []directory.Item
	for _, it := range items {
		if strings.Contains(strings.ToLower(it.Label), needle) {
			matches = append(matches, it)
		}
	}
	return matches
}

func labelOf(items []directory.Item, id string) string {
	if id == "" {
		return "none"
	}
	if i := directory.FindByID(items, id); i >= 0 {
		return items[i].Label
	}
	return id
}
