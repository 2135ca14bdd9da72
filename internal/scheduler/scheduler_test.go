package scheduler

import (
	"context"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister_InvalidSpec(t *testing.T) {
	s := New(slog.Default())
	err := s.Register("broken", "not a cron spec", func(context.Context) error { return nil })
	assert.Error(t, err)
}

func TestScheduler_RunsRegisteredJob(t *testing.T) {
	s := New(slog.Default())
	var runs atomic.Int64

	// Every second, so the test observes at least one run quickly.
	err := s.Register("tick", "* * * * * *", func(context.Context) error {
		runs.Add(1)
		return nil
	})
	require.NoError(t, err)

	s.Start()
	defer s.Stop()

	deadline := time.After(3 * time.Second)
	for runs.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("job never ran")
		case <-time.After(50 * time.Millisecond):
		}
	}
}

func TestScheduler_FailingJobDoesNotStopOthers(t *testing.T) {
	s := New(slog.Default())
	var ok atomic.Bool

	require.NoError(t, s.Register("failing", "* * * * * *", func(context.Context) error {
		return assert.AnError
	}))
	require.NoError(t, s.Register("healthy", "* * * * * *", func(context.Context) error {
		ok.Store(true)
		return nil
	}))

	s.Start()
	defer s.Stop()

	deadline := time.After(3 * time.Second)
	for !ok.Load() {
		select {
		case <-deadline:
			t.Fatal("healthy job never ran")
		case <-time.After(50 * time.Millisecond):
		}
	}
}
