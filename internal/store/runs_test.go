// ABOUTME: Tests for the run-history ledger
// ABOUTME: Covers recording, retrieval, ordering, and the not-found case

package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestStore(t *testing.T) *RunStore {
	t.Helper()
	s, err := NewRunStore(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordRun_AndGet(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	started := time.Date(2026, 8, 31, 9, 0, 0, 0, time.UTC)
	run := &Run{
		Mode:       RunModeFull,
		StartedAt:  started,
		FinishedAt: started.Add(42 * time.Minute),
		Succeeded:  118,
		Failed:     3,
		Total:      118,
	}
	require.NoError(t, s.RecordRun(ctx, run))
	require.NotEmpty(t, run.ID, "RecordRun should assign an ID")

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, RunModeFull, got.Mode)
	assert.Equal(t, 118, got.Succeeded)
	assert.Equal(t, 3, got.Failed)
	assert.True(t, got.StartedAt.Equal(started))
}

func TestGetRun_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.GetRun(context.Background(), "no-such-run")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRecordRun_RejectsUnknownMode(t *testing.T) {
	s := createTestStore(t)

	err := s.RecordRun(context.Background(), &Run{
		Mode:       "retry-everything",
		StartedAt:  time.Now(),
		FinishedAt: time.Now(),
	})
	assert.Error(t, err)
}

func TestListRuns_NewestFirst(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 30, 8, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		require.NoError(t, s.RecordRun(ctx, &Run{
			Mode:       RunModeResume,
			StartedAt:  base.Add(time.Duration(i) * time.Hour),
			FinishedAt: base.Add(time.Duration(i)*time.Hour + 10*time.Minute),
			Succeeded:  i,
			Total:      i,
		}))
	}

	runs, err := s.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, 2, runs[0].Succeeded, "newest run should come first")
	assert.Equal(t, 0, runs[2].Succeeded)
}

func TestListRuns_Limit(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC()
	for i := 0; i < 5; i++ {
		require.NoError(t, s.RecordRun(ctx, &Run{
			Mode:       RunModeSingleHost,
			StartedAt:  base.Add(time.Duration(i) * time.Minute),
			FinishedAt: base.Add(time.Duration(i) * time.Minute),
			Succeeded:  1,
			Total:      1,
		}))
	}

	runs, err := s.ListRuns(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}
