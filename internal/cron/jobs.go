package cron

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/farmlink-backend/pkg/logger"
	"github.com/angelmondragon/farmlink-backend/pkg/metrics"
)

const (
	JobOutboxRetention = "outbox-retention"
	JobDLQRetention    = "outbox-dlq-retention"

	defaultOutboxRetentionDays = 30
	defaultDLQRetentionDays    = 90
)

// Job is one unit of maintenance work run each cycle.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type publishedPurger interface {
	DeletePublishedBefore(tx *gorm.DB, cutoff time.Time) (int64, error)
}

type dlqPurger interface {
	DeleteFailedBefore(tx *gorm.DB, cutoff time.Time) (int64, error)
}

// RetentionParams configure the outbox retention jobs.
type RetentionParams struct {
	Logger  *logger.Logger
	DB      txRunner
	Metrics *metrics.CronJobMetrics
	Days    int
}

type retentionJob struct {
	name    string
	days    int
	logg    *logger.Logger
	db      txRunner
	metrics *metrics.CronJobMetrics
	purge   func(tx *gorm.DB, cutoff time.Time) (int64, error)
	now     func() time.Time
}

// NewOutboxRetentionJob removes outbox rows published more than Days ago.
func NewOutboxRetentionJob(params RetentionParams, repo publishedPurger) (Job, error) {
	if repo == nil {
		return nil, fmt.Errorf("outbox repository required")
	}
	job, err := newRetentionJob(JobOutboxRetention, params, defaultOutboxRetentionDays, repo.DeletePublishedBefore)
	if err != nil {
		return nil, err
	}
	return job, nil
}

// NewDLQRetentionJob removes dead-letter rows older than Days.
func NewDLQRetentionJob(params RetentionParams, repo dlqPurger) (Job, error) {
	if repo == nil {
		return nil, fmt.Errorf("dlq repository required")
	}
	job, err := newRetentionJob(JobDLQRetention, params, defaultDLQRetentionDays, repo.DeleteFailedBefore)
	if err != nil {
		return nil, err
	}
	return job, nil
}

func newRetentionJob(name string, params RetentionParams, fallbackDays int, purge func(*gorm.DB, time.Time) (int64, error)) (*retentionJob, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	days := params.Days
	if days <= 0 {
		days = fallbackDays
	}
	return &retentionJob{
		name:    name,
		days:    days,
		logg:    params.Logger,
		db:      params.DB,
		metrics: params.Metrics,
		purge:   purge,
		now:     time.Now,
	}, nil
}

func (j *retentionJob) Name() string { return j.name }

func (j *retentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().AddDate(0, 0, -j.days)
	var deleted int64
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := j.purge(tx, cutoff)
		deleted = rows
		return err
	})
	if err != nil {
		return fmt.Errorf("%s: %w", j.name, err)
	}
	j.metrics.AddPurged(j.name, deleted)
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":         cutoff,
		"retention_days": j.days,
		"rows_deleted":   deleted,
	}), "retention cleanup complete")
	return nil
}
