package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/marketplace-backend/internal/notifications"
	"github.com/angelmondragon/marketplace-backend/internal/users"
	"github.com/angelmondragon/marketplace-backend/pkg/logger"
	"github.com/angelmondragon/marketplace-backend/pkg/metrics"
	"github.com/angelmondragon/marketplace-backend/pkg/outbox"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// SweepFunc deletes rows older than cutoff inside tx and reports how many went.
type SweepFunc func(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)

type SweepJobParams struct {
	Name      string
	Logger    *logger.Logger
	DB        txRunner
	Metrics   *metrics.CronJobMetrics
	Retention time.Duration
	Sweep     SweepFunc
}

// SweepJob removes rows that aged past Retention in a single transaction.
type SweepJob struct {
	name      string
	logg      *logger.Logger
	db        txRunner
	metrics   *metrics.CronJobMetrics
	retention time.Duration
	sweep     SweepFunc
	now       func() time.Time
}

func NewSweepJob(params SweepJobParams) (*SweepJob, error) {
	switch {
	case params.Name == "":
		return nil, errors.New("job name required")
	case params.Logger == nil:
		return nil, errors.New("logger required")
	case params.DB == nil:
		return nil, errors.New("db runner required")
	case params.Sweep == nil:
		return nil, errors.New("sweep func required")
	case params.Retention < 0:
		return nil, errors.New("retention must not be negative")
	}
	return &SweepJob{
		name:      params.Name,
		logg:      params.Logger,
		db:        params.DB,
		metrics:   params.Metrics,
		retention: params.Retention,
		sweep:     params.Sweep,
		now:       time.Now,
	}, nil
}

func (j *SweepJob) Name() string { return j.name }

func (j *SweepJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.retention)
	var deleted int64
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := j.sweep(ctx, tx, cutoff)
		deleted = rows
		return err
	})
	if err != nil {
		return fmt.Errorf("%s: %w", j.name, err)
	}
	j.metrics.AddDeleted(j.name, deleted)
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":       cutoff,
		"rows_deleted": deleted,
	}), "sweep complete")
	return nil
}

// SweepReadNotifications drops notifications the user read before cutoff.
func SweepReadNotifications(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error) {
	return notifications.NewRepository(tx).DeleteReadBefore(ctx, cutoff)
}

// SweepPublishedOutbox drops outbox rows delivered before cutoff.
func SweepPublishedOutbox(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error) {
	return outbox.NewRepository(tx).DeletePublishedBefore(tx.WithContext(ctx), cutoff)
}

// SweepExpiredConfirmTokens drops confirmation keys that expired before cutoff.
func SweepExpiredConfirmTokens(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error) {
	return users.NewRepository(tx).DeleteExpiredConfirmTokens(ctx, cutoff)
}

// DefaultJobs builds the maintenance jobs the cron worker registers.
func DefaultJobs(logg *logger.Logger, db txRunner, m *metrics.CronJobMetrics, notificationRetention, outboxRetention time.Duration) ([]Job, error) {
	specs := []SweepJobParams{
		{Name: "notification-retention", Retention: notificationRetention, Sweep: SweepReadNotifications},
		{Name: "outbox-retention", Retention: outboxRetention, Sweep: SweepPublishedOutbox},
		{Name: "confirm-token-expiry", Sweep: SweepExpiredConfirmTokens},
	}
	jobs := make([]Job, 0, len(specs))
	for _, spec := range specs {
		spec.Logger = logg
		spec.DB = db
		spec.Metrics = m
		job, err := NewSweepJob(spec)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", spec.Name, err)
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}
