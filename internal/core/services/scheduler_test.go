package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/custodia-labs/cloudrelay/internal/core/domain"
	"github.com/custodia-labs/cloudrelay/internal/core/ports/driven"
	"github.com/custodia-labs/cloudrelay/internal/core/ports/driven/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type schedulerFixture struct {
	creds  *mocks.MockCredentialStore
	queue  *mocks.MockTaskQueue
	states *mocks.MockOAuthStateStore
	lock   *mocks.MockDistributedLock
	sched  *Scheduler
}

func newSchedulerFixture(t *testing.T) *schedulerFixture {
	t.Helper()
	f := &schedulerFixture{
		creds:  mocks.NewMockCredentialStore(),
		queue:  mocks.NewMockTaskQueue(),
		states: mocks.NewMockOAuthStateStore(),
		lock:   mocks.NewMockDistributedLock(),
	}
	f.sched = NewScheduler(SchedulerConfig{
		Credentials: f.creds,
		TaskQueue:   f.queue,
		States:      f.states,
		Lock:        f.lock,
		Logger:      discardLogger(),
	})
	return f
}

func TestNewScheduler_Defaults(t *testing.T) {
	s := NewScheduler(SchedulerConfig{})
	assert.Equal(t, DefaultHealthCheckSchedule, s.healthSchedule)
	assert.Equal(t, DefaultMaintenanceSchedule, s.maintenanceSchedule)
	assert.Equal(t, 5*time.Minute, s.lockTTL)
	assert.Equal(t, 7*24*time.Hour, s.purgeAfter)
	assert.NotNil(t, s.logger)
}

func TestScheduler_Sweep(t *testing.T) {
	f := newSchedulerFixture(t)
	ctx := context.Background()
	require.NoError(t, f.creds.Save(ctx, &domain.ConnectionCredential{UserID: "user-1", Provider: domain.ProviderGoogleDrive}))
	require.NoError(t, f.creds.Save(ctx, &domain.ConnectionCredential{UserID: "user-2", Provider: domain.ProviderGoogleDrive}))

	require.NoError(t, f.sched.RunHealthSweep(ctx))

	pending := f.queue.Pending()
	require.Len(t, pending, 2)
	users := []string{pending[0].UserID(), pending[1].UserID()}
	assert.ElementsMatch(t, []string{"user-1", "user-2"}, users)
	for _, task := range pending {
		assert.Equal(t, domain.TaskTypeHealthCheck, task.Type)
		assert.Equal(t, domain.ProviderGoogleDrive, task.Provider())
	}
}

func TestScheduler_Sweep_NoCredentials(t *testing.T) {
	f := newSchedulerFixture(t)
	require.NoError(t, f.sched.RunHealthSweep(context.Background()))
	assert.Empty(t, f.queue.Pending())
}

func TestScheduler_RunLocked(t *testing.T) {
	ctx := context.Background()

	t.Run("runs and releases", func(t *testing.T) {
		f := newSchedulerFixture(t)
		ran := false
		f.sched.runLocked(ctx, healthSweepLock, func(context.Context) error {
			ran = true
			assert.True(t, f.lock.IsHeld(healthSweepLock))
			return nil
		})
		assert.True(t, ran)
		assert.False(t, f.lock.IsHeld(healthSweepLock))
	})

	t.Run("held elsewhere skips", func(t *testing.T) {
		f := newSchedulerFixture(t)
		f.lock.SetLockHeld(healthSweepLock, time.Minute)
		f.sched.runLocked(ctx, healthSweepLock, func(context.Context) error {
			t.Fatal("job must not run")
			return nil
		})
		assert.True(t, f.lock.IsHeld(healthSweepLock))
	})

	t.Run("lock error skips", func(t *testing.T) {
		f := newSchedulerFixture(t)
		f.lock.AcquireFn = func(string, time.Duration) (bool, error) {
			return false, errors.New("redis down")
		}
		f.sched.runLocked(ctx, maintenanceLock, func(context.Context) error {
			t.Fatal("job must not run")
			return nil
		})
	})

	t.Run("no lock configured", func(t *testing.T) {
		s := NewScheduler(SchedulerConfig{Logger: discardLogger()})
		ran := false
		s.runLocked(ctx, healthSweepLock, func(context.Context) error {
			ran = true
			return errors.New("logged only")
		})
		assert.True(t, ran)
	})

	t.Run("cancelled context skips", func(t *testing.T) {
		f := newSchedulerFixture(t)
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		f.sched.runLocked(cancelled, healthSweepLock, func(context.Context) error {
			t.Fatal("job must not run")
			return nil
		})
	})
}

func TestScheduler_Maintenance(t *testing.T) {
	f := newSchedulerFixture(t)
	ctx := context.Background()
	require.NoError(t, f.states.Save(ctx, &driven.OAuthState{State: "old", ExpiresAt: time.Now().Add(-time.Minute)}))
	require.NoError(t, f.states.Save(ctx, &driven.OAuthState{State: "fresh", ExpiresAt: time.Now().Add(time.Minute)}))

	require.NoError(t, f.sched.RunMaintenance(ctx))

	removed, err := f.states.Cleanup(ctx)
	require.NoError(t, err)
	assert.Zero(t, removed, "expired states were already cleaned")
	got, err := f.states.GetAndDelete(ctx, "fresh")
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func TestScheduler_StartStop(t *testing.T) {
	f := newSchedulerFixture(t)
	ctx := context.Background()

	require.NoError(t, f.sched.Start(ctx))
	require.NoError(t, f.sched.Start(ctx), "second start is a no-op")
	f.sched.Stop()
	f.sched.Stop()

	f.sched.healthSchedule = "not a schedule"
	assert.Error(t, f.sched.Start(ctx))
}

func TestScheduler_StopsOnContextCancel(t *testing.T) {
	f := newSchedulerFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, f.sched.Start(ctx))

	cancel()
	assert.Eventually(t, func() bool {
		f.sched.mu.Lock()
		defer f.sched.mu.Unlock()
		return !f.sched.running
	}, time.Second, 10*time.Millisecond)
}
