package cron

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/marketplace-backend/pkg/logger"
	"github.com/angelmondragon/marketplace-backend/pkg/metrics"
)

type fakeLock struct {
	held       bool
	acquireErr error
	releases   int
}

func (f *fakeLock) Acquire(context.Context) (bool, error) {
	if f.acquireErr != nil {
		return false, f.acquireErr
	}
	if f.held {
		return false, nil
	}
	f.held = true
	return true, nil
}

func (f *fakeLock) Release(context.Context) error {
	f.held = false
	f.releases++
	return nil
}

type countingJob struct {
	name string
	err  error
	runs atomic.Int32
}

func (c *countingJob) Name() string { return c.name }

func (c *countingJob) Run(context.Context) error {
	c.runs.Add(1)
	return c.err
}

func newTestService(t *testing.T, lock Lock, jobs ...Job) *Service {
	t.Helper()
	registry, err := NewRegistry(jobs...)
	require.NoError(t, err)
	svc, err := NewService(ServiceParams{
		Logger:   logger.Nop(),
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.NewRegistry()),
	})
	require.NoError(t, err)
	return svc
}

func TestRunOnceRunsEveryJobDespiteFailures(t *testing.T) {
	ok := &countingJob{name: "ok"}
	broken := &countingJob{name: "broken", err: errors.New("boom")}
	after := &countingJob{name: "after"}
	lock := &fakeLock{}
	svc := newTestService(t, lock, ok, broken, after)

	ran, err := svc.RunOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, ran)
	assert.EqualValues(t, 1, ok.runs.Load())
	assert.EqualValues(t, 1, broken.runs.Load())
	assert.EqualValues(t, 1, after.runs.Load())
	assert.Equal(t, 1, lock.releases)
	assert.False(t, lock.held)
}

func TestRunOnceSkipsWhenLockHeld(t *testing.T) {
	job := &countingJob{name: "job"}
	svc := newTestService(t, &fakeLock{held: true}, job)

	ran, err := svc.RunOnce(context.Background())
	require.NoError(t, err)
	assert.False(t, ran)
	assert.Zero(t, job.runs.Load())
}

func TestRunOnceSurfacesLockErrors(t *testing.T) {
	svc := newTestService(t, &fakeLock{acquireErr: errors.New("redis down")}, &countingJob{name: "job"})

	_, err := svc.RunOnce(context.Background())
	assert.Error(t, err)
}

func TestRunStopsOnCancel(t *testing.T) {
	job := &countingJob{name: "job"}
	svc := newTestService(t, &fakeLock{}, job)
	svc.interval = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	require.Eventually(t, func() bool { return job.runs.Load() == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestNewServiceRequiresCollaborators(t *testing.T) {
	registry, err := NewRegistry()
	require.NoError(t, err)

	_, err = NewService(ServiceParams{Registry: registry, Lock: &fakeLock{}})
	assert.Error(t, err)
	_, err = NewService(ServiceParams{Logger: logger.Nop(), Registry: registry})
	assert.Error(t, err)
	_, err = NewService(ServiceParams{Logger: logger.Nop(), Lock: &fakeLock{}})
	assert.Error(t, err)
}
