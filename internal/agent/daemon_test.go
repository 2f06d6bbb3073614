package agent

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stone-age-io/hwinventory/internal/inventory"
	"github.com/stone-age-io/hwinventory/internal/orchestrator"
	"github.com/stone-age-io/hwinventory/internal/store"
	"github.com/stone-age-io/hwinventory/internal/submission"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type nopCollector struct{}

func (nopCollector) Collect(context.Context) inventory.Record { return inventory.Record{} }

type countingSubmitter struct {
	calls  atomic.Int32
	result submission.Result
	marker *store.Store
}

func (c *countingSubmitter) Submit(_ context.Context, _ store.Selection, _ inventory.Record) submission.Result {
	c.calls.Add(1)
	if c.result.OK && c.marker != nil {
		_ = c.marker.WriteMarker(time.Now())
	}
	return c.result
}

func newTestStore(t *testing.T) *store.Store {
	dir := t.TempDir()
	return store.New(filepath.Join(dir, "user_data.json"), filepath.Join(dir, "ultimo_envio.txt"))
}

func newTestDaemon(st *store.Store, sub *countingSubmitter) *Daemon {
	orch := orchestrator.New(nopCollector{}, sub, st, zap.NewNop())
	return newDaemon(st, orch, time.Minute, zap.NewNop())
}

var savedSelection = store.Selection{Asset: "100200", Responsible: "11", Room: "7"}

func TestDaemonCheck(t *testing.T) {
	now := time.Date(2026, time.March, 10, 9, 0, 0, 0, time.Local)

	tests := []struct {
		name      string
		selection *store.Selection
		marker    *time.Time
		result    submission.Result
		want      bool
		wantCalls int32
	}{
		{
			name:      "no marker submits",
			selection: &savedSelection,
			result:    submission.Result{OK: true, StatusCode: 201},
			want:      true,
			wantCalls: 1,
		},
		{
			name:      "marker from previous month submits",
			selection: &savedSelection,
			marker:    ptr(time.Date(2026, time.February, 27, 0, 0, 0, 0, time.Local)),
			result:    submission.Result{OK: true, StatusCode: 200},
			want:      true,
			wantCalls: 1,
		},
		{
			name:      "marker from this month skips",
			selection: &savedSelection,
			marker:    ptr(time.Date(2026, time.March, 1, 0, 0, 0, 0, time.Local)),
			wantCalls: 0,
		},
		{
			name:      "no saved selection skips",
			wantCalls: 0,
		},
		{
			name:      "incomplete selection skips",
			selection: &store.Selection{Asset: "100200"},
			wantCalls: 0,
		},
		{
			name:      "server failure",
			selection: &savedSelection,
			result:    submission.Result{StatusCode: 500},
			wantCalls: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := newTestStore(t)
			if tt.selection != nil {
				require.NoError(t, st.SaveSelection(*tt.selection))
			}
			if tt.marker != nil {
				require.NoError(t, st.WriteMarker(*tt.marker))
			}

			sub := &countingSubmitter{result: tt.result}
			d := newTestDaemon(st, sub)
			d.now = func() time.Time { return now }

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			assert.Equal(t, tt.want, d.check(ctx))
			assert.Equal(t, tt.wantCalls, sub.calls.Load())
		})
	}
}

func TestDaemonSingleAttemptPerMonth(t *testing.T) {
	st := newTestStore(t)
	require.NoError(t, st.SaveSelection(savedSelection))

	sub := &countingSubmitter{result: submission.Result{StatusCode: 503}}
	d := newTestDaemon(st, sub)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	now := time.Date(2026, time.March, 10, 9, 0, 0, 0, time.Local)
	d.now = func() time.Time { return now }
	assert.False(t, d.check(ctx))
	assert.Equal(t, int32(1), sub.calls.Load())

	// later checks in the same month do not send again after a failure
	now = now.Add(time.Hour)
	assert.False(t, d.check(ctx))
	now = time.Date(2026, time.March, 31, 23, 0, 0, 0, time.Local)
	assert.False(t, d.check(ctx))
	assert.Equal(t, int32(1), sub.calls.Load())

	// a new month allows one new attempt
	sub.result = submission.Result{OK: true, StatusCode: 201}
	now = time.Date(2026, time.April, 1, 8, 0, 0, 0, time.Local)
	assert.True(t, d.check(ctx))
	assert.Equal(t, int32(2), sub.calls.Load())
}

func TestDaemonStartRunsImmediately(t *testing.T) {
	st := newTestStore(t)
	require.NoError(t, st.SaveSelection(savedSelection))

	sub := &countingSubmitter{result: submission.Result{OK: true, StatusCode: 201}, marker: st}
	d := newTestDaemon(st, sub)

	require.NoError(t, d.Start())
	assert.Eventually(t, func() bool { return sub.calls.Load() == 1 }, 5*time.Second, 10*time.Millisecond)
	require.NoError(t, d.Stop())

	_, err := st.ReadMarker()
	assert.NoError(t, err)
}

func TestDaemonStopWithoutStart(t *testing.T) {
	d := newTestDaemon(newTestStore(t), &countingSubmitter{})
	assert.NoError(t, d.Stop())
}

func ptr[T any](v T) *T { return &v }
