package job

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeSweeper struct {
	before time.Time
	calls  int
	err    error
}

func (f *fakeSweeper) FailStaleModerations(_ context.Context, before time.Time) (int, error) {
	f.calls++
	f.before = before
	return 2, f.err
}

func TestStaleModerationJobCutoff(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	sweeper := &fakeSweeper{}
	j := NewStaleModerationJob(sweeper, 30*time.Minute)
	j.now = func() time.Time { return now }

	j.Run()
	assert.Equal(t, 1, sweeper.calls)
	assert.Equal(t, now.Add(-30*time.Minute), sweeper.before)
}

func TestStaleModerationJobError(t *testing.T) {
	sweeper := &fakeSweeper{err: errors.New("db down")}
	j := NewStaleModerationJob(sweeper, time.Minute)
	assert.NotPanics(t, j.Run)
	assert.Equal(t, 1, sweeper.calls)
}
