// internal/scheduler/drain_test.go
package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lead-automation/internal/common/logger"
)

type recordingContinuer struct {
	continued []string
	fail      map[string]bool
}

func (r *recordingContinuer) Continue(_ context.Context, id string) error {
	r.continued = append(r.continued, id)
	if r.fail[id] {
		return errors.New("store unavailable")
	}
	return nil
}

func TestDrainer(t *testing.T) {
	q := NewMemoryQueue()
	ctx := context.Background()
	for i, id := range []string{"a", "b", "c", "d", "e"} {
		require.NoError(t, q.Schedule(ctx, id, t0.Add(time.Duration(i)*time.Second)))
	}
	require.NoError(t, q.Schedule(ctx, "future", t0.Add(time.Hour)))

	c := &recordingContinuer{fail: map[string]bool{"c": true}}
	d := NewDrainer(q, c, 2, logger.NewTestLogger(t))
	d.now = func() time.Time { return t0.Add(time.Minute) }

	require.NoError(t, d.Drain(ctx))
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, c.continued)

	// The failed continuation is back in the queue a minute later.
	ids, err := q.Claim(ctx, t0.Add(time.Minute), 10)
	require.NoError(t, err)
	assert.Empty(t, ids)

	ids, err = q.Claim(ctx, t0.Add(2*time.Minute), 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, ids)
}

func TestDrainer_AcksOnlyResumedEntries(t *testing.T) {
	q := NewMemoryQueue()
	ctx := context.Background()
	require.NoError(t, q.Schedule(ctx, "ok", t0))

	d := NewDrainer(q, &recordingContinuer{}, 10, logger.NewTestLogger(t))
	d.now = func() time.Time { return t0 }
	require.NoError(t, d.Drain(ctx))

	ids, err := q.Claim(ctx, t0.Add(24*time.Hour), 10)
	require.NoError(t, err)
	assert.Empty(t, ids, "resumed entries are removed")
}

func TestDrainer_PicksUpEntriesLeftByCrashedDrainer(t *testing.T) {
	q := NewMemoryQueue().WithLease(time.Minute)
	ctx := context.Background()
	require.NoError(t, q.Schedule(ctx, "a", t0))

	// Another drainer claimed the entry and died before resuming it.
	ids, err := q.Claim(ctx, t0, 10)
	require.NoError(t, err)
	require.Equal(t, []string{"a"}, ids)

	c := &recordingContinuer{}
	d := NewDrainer(q, c, 10, logger.NewTestLogger(t))
	d.now = func() time.Time { return t0.Add(30 * time.Second) }
	require.NoError(t, d.Drain(ctx))
	assert.Empty(t, c.continued, "lease still held")

	d.now = func() time.Time { return t0.Add(time.Minute) }
	require.NoError(t, d.Drain(ctx))
	assert.Equal(t, []string{"a"}, c.continued)
}
