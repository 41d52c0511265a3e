package cron

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketplace-backend/pkg/db"
	"github.com/angelmondragon/marketplace-backend/pkg/db/dbtest"
	"github.com/angelmondragon/marketplace-backend/pkg/db/models"
	"github.com/angelmondragon/marketplace-backend/pkg/enums"
	"github.com/angelmondragon/marketplace-backend/pkg/logger"
	"github.com/angelmondragon/marketplace-backend/pkg/metrics"
)

var sweepNow = time.Date(2026, 3, 31, 12, 0, 0, 0, time.UTC)

func ptrTime(t time.Time) *time.Time { return &t }

func jobByName(t *testing.T, jobs []Job, name string) *SweepJob {
	t.Helper()
	for _, job := range jobs {
		if job.Name() == name {
			sweep, ok := job.(*SweepJob)
			require.True(t, ok)
			sweep.now = func() time.Time { return sweepNow }
			return sweep
		}
	}
	t.Fatalf("job %s not registered", name)
	return nil
}

func TestDefaultJobsSweepExpiredRows(t *testing.T) {
	conn := dbtest.Open(t)
	ctx := context.Background()
	userID := dbtest.CreateUser(t, conn, enums.UserTypeBuyer).ID

	old := sweepNow.Add(-40 * 24 * time.Hour)
	recent := sweepNow.Add(-2 * 24 * time.Hour)
	require.NoError(t, conn.Create([]*models.Notification{
		{UserID: userID, Type: enums.NotificationTypeOrderPlaced, Title: "old read", Message: "m", ReadAt: ptrTime(old)},
		{UserID: userID, Type: enums.NotificationTypeOrderPlaced, Title: "recent read", Message: "m", ReadAt: ptrTime(recent)},
		{UserID: userID, Type: enums.NotificationTypeOrderPlaced, Title: "unread", Message: "m"},
	}).Error)
	require.NoError(t, conn.Create([]*models.OutboxEvent{
		{EventType: enums.EventOrderPlaced, AggregateType: enums.AggregateOrder, AggregateID: uuid.New(), Payload: json.RawMessage(`{}`), PublishedAt: ptrTime(old)},
		{EventType: enums.EventOrderPlaced, AggregateType: enums.AggregateOrder, AggregateID: uuid.New(), Payload: json.RawMessage(`{}`), PublishedAt: ptrTime(recent)},
		{EventType: enums.EventOrderPlaced, AggregateType: enums.AggregateOrder, AggregateID: uuid.New(), Payload: json.RawMessage(`{}`), AttemptCount: 10},
	}).Error)
	require.NoError(t, conn.Create([]*models.ConfirmEmailToken{
		{UserID: userID, Key: "expired", ExpiresAt: sweepNow.Add(-time.Minute)},
		{UserID: userID, Key: "live", ExpiresAt: sweepNow.Add(time.Hour)},
	}).Error)

	reg := prometheus.NewRegistry()
	jobs, err := DefaultJobs(logger.Nop(), db.Wrap(conn), metrics.NewCronJobMetrics(reg), 30*24*time.Hour, 30*24*time.Hour)
	require.NoError(t, err)
	require.Len(t, jobs, 3)

	for _, name := range []string{"notification-retention", "outbox-retention", "confirm-token-expiry"} {
		require.NoError(t, jobByName(t, jobs, name).Run(ctx), name)
	}

	var titles []string
	require.NoError(t, conn.Model(&models.Notification{}).Order("title").Pluck("title", &titles).Error)
	assert.Equal(t, []string{"recent read", "unread"}, titles)

	var outboxLeft int64
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Count(&outboxLeft).Error)
	assert.EqualValues(t, 2, outboxLeft)

	var keys []string
	require.NoError(t, conn.Model(&models.ConfirmEmailToken{}).Pluck("key", &keys).Error)
	assert.Equal(t, []string{"live"}, keys)
}

type errRunner struct{}

func (errRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

func TestSweepJobWrapsErrors(t *testing.T) {
	job, err := NewSweepJob(SweepJobParams{
		Name:   "broken",
		Logger: logger.Nop(),
		DB:     errRunner{},
		Sweep: func(context.Context, *gorm.DB, time.Time) (int64, error) {
			return 0, errors.New("boom")
		},
	})
	require.NoError(t, err)

	err = job.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")
}

func TestSweepJobComputesCutoffFromRetention(t *testing.T) {
	var got time.Time
	job, err := NewSweepJob(SweepJobParams{
		Name:      "cutoff",
		Logger:    logger.Nop(),
		DB:        errRunner{},
		Retention: 48 * time.Hour,
		Sweep: func(_ context.Context, _ *gorm.DB, cutoff time.Time) (int64, error) {
			got = cutoff
			return 0, nil
		},
	})
	require.NoError(t, err)
	job.now = func() time.Time { return sweepNow }

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, sweepNow.Add(-48*time.Hour), got)
}
