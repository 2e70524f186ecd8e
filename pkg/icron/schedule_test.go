package icron

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedulerRunsAndRemovesJobs(t *testing.T) {
	s := NewScheduler()
	var runs atomic.Int32
	require.NoError(t, s.Every("tick", time.Second, func() { runs.Add(1) }))

	s.Start()
	defer s.Stop()

	next, ok := s.Next("tick")
	require.True(t, ok)
	assert.False(t, next.IsZero())

	require.Eventually(t, func() bool { return runs.Load() >= 1 }, 3*time.Second, 20*time.Millisecond)

	s.Remove("tick")
	_, ok = s.Next("tick")
	assert.False(t, ok)
	seen := runs.Load()
	time.Sleep(1200 * time.Millisecond)
	assert.Equal(t, seen, runs.Load())
}

func TestSchedulerRecoversPanics(t *testing.T) {
	s := NewScheduler()
	var runs atomic.Int32
	require.NoError(t, s.Every("boom", time.Second, func() {
		runs.Add(1)
		panic("boom")
	}))
	s.Start()
	defer s.Stop()

	require.Eventually(t, func() bool { return runs.Load() >= 2 }, 4*time.Second, 20*time.Millisecond)
}

func TestSchedulerRejectsSubSecondInterval(t *testing.T) {
	s := NewScheduler()
	assert.Error(t, s.Every("fast", 10*time.Millisecond, func() {}))
	s.Remove("fast")
}
