package offline

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestQueue(t *testing.T) *Queue {
	t.Helper()
	q, err := Open(filepath.Join(t.TempDir(), "queue.db"))
	require.NoError(t, err)
	t.Cleanup(func() { q.Close() })
	return q
}

func TestEnqueueAssignsIDAndKeepsOrder(t *testing.T) {
	q := openTestQueue(t)

	for _, amount := range []int64{-100, -200, 300} {
		e, err := q.Enqueue(Entry{UserID: "u1", AccountID: 1, Amount: amount})
		require.NoError(t, err)
		assert.NotEmpty(t, e.ID)
		assert.False(t, e.QueuedAt.IsZero())
	}

	n, err := q.Len()
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	pending, err := q.Pending()
	require.NoError(t, err)
	require.Len(t, pending, 3)
	assert.Equal(t, []int64{-100, -200, 300}, []int64{pending[0].Amount, pending[1].Amount, pending[2].Amount})
}

func TestReplayAppliesInOrder(t *testing.T) {
	q := openTestQueue(t)
	for _, label := range []string{"a", "b", "c"} {
		_, err := q.Enqueue(Entry{Label: label})
		require.NoError(t, err)
	}

	var seen []string
	res, err := q.Replay(context.Background(), func(_ context.Context, e Entry) error {
		seen = append(seen, e.Label)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, seen)
	assert.Equal(t, ReplayResult{Applied: 3}, res)

	n, err := q.Len()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestReplayStopsAtTransientFailure(t *testing.T) {
	q := openTestQueue(t)
	for _, label := range []string{"a", "b", "c"} {
		_, err := q.Enqueue(Entry{Label: label})
		require.NoError(t, err)
	}

	offline := errors.New("connection refused")
	var seen []string
	res, err := q.Replay(context.Background(), func(_ context.Context, e Entry) error {
		seen = append(seen, e.Label)
		if e.Label == "b" {
			return offline
		}
		return nil
	})
	require.ErrorIs(t, err, offline)
	assert.Equal(t, []string{"a", "b"}, seen, "c must not overtake b")
	assert.Equal(t, 1, res.Applied)
	assert.Equal(t, 2, res.Left)

	// The next run resumes at b, applying each entry exactly once.
	seen = nil
	_, err = q.Replay(context.Background(), func(_ context.Context, e Entry) error {
		seen = append(seen, e.Label)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, seen)
}

func TestReplayMovesPermanentFailuresAside(t *testing.T) {
	q := openTestQueue(t)
	for _, label := range []string{"overdraft", "ok"} {
		_, err := q.Enqueue(Entry{Label: label})
		require.NoError(t, err)
	}

	res, err := q.Replay(context.Background(), func(_ context.Context, e Entry) error {
		if e.Label == "overdraft" {
			return Permanent(errors.New("insufficient balance"))
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, ReplayResult{Applied: 1, Rejected: 1}, res)

	rejected, err := q.Rejected()
	require.NoError(t, err)
	require.Len(t, rejected, 1)
	assert.Equal(t, "overdraft", rejected[0].Label)
	assert.Equal(t, "insufficient balance", rejected[0].Reason)
}

func TestQueueSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queue.db")
	q, err := Open(path)
	require.NoError(t, err)
	ref := "TID42"
	_, err = q.Enqueue(Entry{Label: "x", SmsReference: &ref})
	require.NoError(t, err)
	require.NoError(t, q.Close())

	q, err = Open(path)
	require.NoError(t, err)
	defer q.Close()
	pending, err := q.Pending()
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.NotNil(t, pending[0].SmsReference)
	assert.Equal(t, "TID42", *pending[0].SmsReference)
}

func TestPermanent(t *testing.T) {
	assert.Nil(t, Permanent(nil))
	base := errors.New("gone")
	err := Permanent(base)
	assert.True(t, IsPermanent(err))
	assert.ErrorIs(t, err, base)
	assert.False(t, IsPermanent(base))
}
