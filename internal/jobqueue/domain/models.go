package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

var (
	ErrInvalidJob     = errors.New("invalid_job")
	ErrInvalidJobType = errors.New("invalid_job_type")
	ErrJobNotFound    = errors.New("job_not_found")
	ErrJobNotDead     = errors.New("job_not_dead")
)

type JobType string

const (
	JobTypeNormalizeEvent JobType = "normalize_event"
	JobTypeApplyEvent     JobType = "apply_event"
	JobTypeSyncProvider   JobType = "sync_provider"
)

// KnownJobTypes is the closed set the worker dispatches on.
var KnownJobTypes = map[JobType]struct{}{
	JobTypeNormalizeEvent: {},
	JobTypeApplyEvent:     {},
	JobTypeSyncProvider:   {},
}

type Status string

const (
	StatusQueued    Status = "queued"
	StatusCompleted Status = "completed"
	StatusDead      Status = "dead"
)

// Job is a durable unit of work. Rows are never deleted; completed and
// dead jobs stay behind as an audit trail.
type Job struct {
	ID          snowflake.ID   `json:"id" gorm:"primaryKey"`
	OrgID       snowflake.ID   `json:"org_id" gorm:"not null;index"`
	ProjectID   *snowflake.ID  `json:"project_id" gorm:"index"`
	JobType     JobType        `json:"job_type" gorm:"type:text;not null;index"`
	Payload     datatypes.JSON `json:"payload" gorm:"type:jsonb;not null"`
	Status      Status         `json:"status" gorm:"type:text;not null;index:ix_jobs_status_available,priority:1"`
	Attempts    int            `json:"attempts" gorm:"not null;default:0"`
	LastError   string         `json:"last_error" gorm:"type:text"`
	AvailableAt time.Time      `json:"available_at" gorm:"not null;index:ix_jobs_status_available,priority:2"`
	CreatedAt   time.Time      `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt   time.Time      `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Job) TableName() string { return "jobs" }

// NormalizePayload is the persisted payload of a normalize_event job.
type NormalizePayload struct {
	RawEventID snowflake.ID `json:"raw_event_id"`
}

// SyncPayload is the persisted payload of a sync_provider job.
type SyncPayload struct {
	Provider string `json:"provider"`
}

type EnqueueInput struct {
	OrgID     snowflake.ID
	ProjectID *snowflake.ID
	JobType   JobType
	Payload   any
}

type Service interface {
	// Enqueue inserts a queued job available immediately.
	Enqueue(ctx context.Context, input EnqueueInput) (*Job, error)
	// ClaimNextJobs atomically selects up to limit eligible jobs and pushes
	// their availability forward so concurrent workers never share a job.
	ClaimNextJobs(ctx context.Context, limit int) ([]Job, error)
	// MarkCompleted finishes a claimed job.
	MarkCompleted(ctx context.Context, jobID snowflake.ID) error
	// RecordFailure bills a failed run against the job's attempt budget:
	// reschedule with exponential backoff while attempts remain, otherwise
	// dead-letter it. Returns the resulting status.
	RecordFailure(ctx context.Context, job *Job, jobErr error) (Status, error)
	// ListDead returns dead-lettered jobs for operator inspection.
	ListDead(ctx context.Context, orgID snowflake.ID, limit int) ([]Job, error)
	// Requeue puts a dead job back in the queue with a fresh attempt budget.
	Requeue(ctx context.Context, orgID, jobID snowflake.ID) (*Job, error)
}
