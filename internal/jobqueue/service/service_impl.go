package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/ledgerlink/internal/clock"
	"github.com/smallbiznis/ledgerlink/internal/config"
	jobdomain "github.com/smallbiznis/ledgerlink/internal/jobqueue/domain"
	obsmetrics "github.com/smallbiznis/ledgerlink/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Pipeline   *config.PipelineConfigHolder
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	pipeline   *config.PipelineConfigHolder
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) jobdomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("jobqueue.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		pipeline:   p.Pipeline,
		obsMetrics: p.ObsMetrics,
	}
}

func (s *Service) Enqueue(ctx context.Context, input jobdomain.EnqueueInput) (*jobdomain.Job, error) {
	if input.OrgID == 0 {
		return nil, jobdomain.ErrInvalidJob
	}
	if _, ok := jobdomain.KnownJobTypes[input.JobType]; !ok {
		return nil, jobdomain.ErrInvalidJobType
	}

	payload, err := json.Marshal(input.Payload)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	job := jobdomain.Job{
		ID:          s.genID.Generate(),
		OrgID:       input.OrgID,
		ProjectID:   input.ProjectID,
		JobType:     input.JobType,
		Payload:     payload,
		Status:      jobdomain.StatusQueued,
		AvailableAt: now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.db.WithContext(ctx).Create(&job).Error; err != nil {
		return nil, err
	}

	if s.obsMetrics != nil {
		s.obsMetrics.RecordJobEnqueued(ctx, string(input.JobType))
	}
	return &job, nil
}

// ClaimNextJobs leans on row locks for mutual exclusion between workers:
// the locked select and the lease update happen in one transaction, so a
// job claimed here is invisible to other claimers until the lease expires.
func (s *Service) ClaimNextJobs(ctx context.Context, limit int) ([]jobdomain.Job, error) {
	cfg := s.pipeline.Get()
	if limit <= 0 || limit > cfg.WorkerBatchSize {
		limit = cfg.WorkerBatchSize
	}

	now := s.clock.Now()
	lease := time.Duration(cfg.ClaimLeaseMinutes) * time.Minute

	var jobs []jobdomain.Job
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Raw(
			`SELECT id, org_id, project_id, job_type, payload, status,
			        attempts, last_error, available_at, created_at, updated_at
			 FROM jobs
			 WHERE status = ? AND available_at <= ?
			 ORDER BY available_at ASC
			 FOR UPDATE SKIP LOCKED
			 LIMIT ?`,
			jobdomain.StatusQueued,
			now,
			limit,
		).Scan(&jobs).Error; err != nil {
			return err
		}
		if len(jobs) == 0 {
			return nil
		}

		ids := make([]snowflake.ID, 0, len(jobs))
		for _, job := range jobs {
			ids = append(ids, job.ID)
		}
		return tx.Model(&jobdomain.Job{}).
			Where("id IN ?", ids).
			Updates(map[string]any{
				"available_at": now.Add(lease),
				"updated_at":   now,
			}).Error
	})
	if err != nil {
		return nil, err
	}
	return jobs, nil
}

func (s *Service) MarkCompleted(ctx context.Context, jobID snowflake.ID) error {
	now := s.clock.Now()
	result := s.db.WithContext(ctx).Model(&jobdomain.Job{}).
		Where("id = ?", jobID).
		Updates(map[string]any{
			"status":     jobdomain.StatusCompleted,
			"updated_at": now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return jobdomain.ErrJobNotFound
	}
	return nil
}

func (s *Service) RecordFailure(ctx context.Context, job *jobdomain.Job, jobErr error) (jobdomain.Status, error) {
	if job == nil || jobErr == nil {
		return "", jobdomain.ErrInvalidJob
	}

	cfg := s.pipeline.Get()
	now := s.clock.Now()
	attempts := job.Attempts + 1

	if attempts < cfg.JobMaxAttempts {
		backoff := time.Duration(cfg.BackoffBaseMinutes) * time.Minute * (1 << attempts)
		err := s.db.WithContext(ctx).Model(&jobdomain.Job{}).
			Where("id = ?", job.ID).
			Updates(map[string]any{
				"attempts":     attempts,
				"last_error":   jobErr.Error(),
				"available_at": now.Add(backoff),
				"updated_at":   now,
			}).Error
		if err != nil {
			return "", err
		}
		job.Attempts = attempts
		s.log.Warn("job rescheduled",
			zap.String("job_id", job.ID.String()),
			zap.String("job_type", string(job.JobType)),
			zap.Int("attempts", attempts),
			zap.Duration("backoff", backoff),
			zap.Error(jobErr),
		)
		return jobdomain.StatusQueued, nil
	}

	err := s.db.WithContext(ctx).Model(&jobdomain.Job{}).
		Where("id = ?", job.ID).
		Updates(map[string]any{
			"status":     jobdomain.StatusDead,
			"attempts":   attempts,
			"last_error": jobErr.Error(),
			"updated_at": now,
		}).Error
	if err != nil {
		return "", err
	}
	job.Attempts = attempts
	s.log.Error("job dead-lettered",
		zap.String("job_id", job.ID.String()),
		zap.String("job_type", string(job.JobType)),
		zap.Int("attempts", attempts),
		zap.Error(jobErr),
	)
	return jobdomain.StatusDead, nil
}

func (s *Service) ListDead(ctx context.Context, orgID snowflake.ID, limit int) ([]jobdomain.Job, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var jobs []jobdomain.Job
	query := s.db.WithContext(ctx).Where("status = ?", jobdomain.StatusDead)
	if orgID != 0 {
		query = query.Where("org_id = ?", orgID)
	}
	err := query.Order("updated_at DESC").Limit(limit).Find(&jobs).Error
	if err != nil {
		return nil, err
	}
	return jobs, nil
}

func (s *Service) Requeue(ctx context.Context, orgID, jobID snowflake.ID) (*jobdomain.Job, error) {
	var job jobdomain.Job
	err := s.db.WithContext(ctx).
		Where("id = ? AND org_id = ?", jobID, orgID).
		First(&job).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, jobdomain.ErrJobNotFound
		}
		return nil, err
	}
	if job.Status != jobdomain.StatusDead {
		return nil, jobdomain.ErrJobNotDead
	}

	now := s.clock.Now()
	err = s.db.WithContext(ctx).Model(&jobdomain.Job{}).
		Where("id = ?", job.ID).
		Updates(map[string]any{
			"status":       jobdomain.StatusQueued,
			"attempts":     0,
			"available_at": now,
			"updated_at":   now,
		}).Error
	if err != nil {
		return nil, err
	}

	job.Status = jobdomain.StatusQueued
	job.Attempts = 0
	job.AvailableAt = now
	return &job, nil
}
