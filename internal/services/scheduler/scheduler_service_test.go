package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/dealdesk/internal/common"
	"github.com/ternarybob/dealdesk/internal/storage/badger"
)

func waitIdle(t *testing.T, s *Service, name string) JobStatus {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		for _, status := range s.JobStatuses() {
			if status.Name == name && !status.IsRunning && status.LastRun != nil {
				return status
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %s did not finish", name)
	return JobStatus{}
}

func TestRegisterJob_Validation(t *testing.T) {
	s := NewService(nil, arbor.NewLogger())
	noop := func(ctx context.Context) error { return nil }

	require.NoError(t, s.RegisterJob("feed_sync", "*/30 * * * *", "Sync feeds", noop))
	require.NoError(t, s.RegisterJob("manual", "", "Manual only", noop))
	assert.Error(t, s.RegisterJob("feed_sync", "@hourly", "duplicate", noop))
	assert.Error(t, s.RegisterJob("bad", "not a cron", "invalid", noop))

	statuses := s.JobStatuses()
	require.Len(t, statuses, 2)
	assert.Equal(t, "feed_sync", statuses[0].Name)
	assert.Equal(t, "manual", statuses[1].Name)
	assert.Nil(t, statuses[1].NextRun)
}

func TestTriggerJob_RecordsOutcome(t *testing.T) {
	manager, err := badger.NewManager(arbor.NewLogger(), &common.BadgerConfig{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { manager.Close() })

	s := NewService(manager.KeyValueStorage(), arbor.NewLogger())
	require.NoError(t, s.RegisterJob("digest", "", "Digest", func(ctx context.Context) error {
		return errors.New("nothing to summarize")
	}))
	require.NoError(t, s.RegisterJob("panics", "", "Panics", func(ctx context.Context) error {
		panic("boom")
	}))

	require.NoError(t, s.TriggerJob("digest"))
	status := waitIdle(t, s, "digest")
	assert.Equal(t, "nothing to summarize", status.LastError)

	require.NoError(t, s.TriggerJob("panics"))
	status = waitIdle(t, s, "panics")
	assert.Equal(t, "panic: boom", status.LastError)

	assert.Error(t, s.TriggerJob("missing"))

	// A new scheduler over the same store sees the persisted run time
	reloaded := NewService(manager.KeyValueStorage(), arbor.NewLogger())
	require.NoError(t, reloaded.RegisterJob("digest", "", "Digest", func(ctx context.Context) error { return nil }))
	assert.NotNil(t, reloaded.JobStatuses()[0].LastRun)
}

func TestStop_CancelsRunningJobs(t *testing.T) {
	s := NewService(nil, arbor.NewLogger())
	started := make(chan struct{})
	require.NoError(t, s.RegisterJob("sync", "", "Long sync", func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}))

	s.Start()
	require.NoError(t, s.TriggerJob("sync"))
	<-started

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop")
	}
	assert.Equal(t, context.Canceled.Error(), s.JobStatuses()[0].LastError)
}
