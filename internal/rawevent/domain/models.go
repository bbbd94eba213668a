package domain

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

var (
	ErrInvalidRawEvent  = errors.New("invalid_raw_event")
	ErrRawEventNotFound = errors.New("raw_event_not_found")
)

// RawEvent is the captured webhook body exactly as the provider sent it.
// IngestID is a ULID so captures sort by arrival time without touching the
// database.
type RawEvent struct {
	ID          snowflake.ID   `json:"id" gorm:"primaryKey"`
	IngestID    string         `json:"ingest_id" gorm:"type:text;not null;uniqueIndex:ux_raw_events_ingest_id"`
	OrgID       snowflake.ID   `json:"org_id" gorm:"not null;index"`
	ProjectID   *snowflake.ID  `json:"project_id" gorm:"index"`
	Provider    string         `json:"provider" gorm:"type:text;not null;index"`
	Payload     datatypes.JSON `json:"payload" gorm:"type:jsonb;not null"`
	ReceivedAt  time.Time      `json:"received_at" gorm:"not null"`
	ProcessedAt *time.Time     `json:"processed_at"`
}

func (RawEvent) TableName() string { return "raw_events" }

type CaptureInput struct {
	OrgID     snowflake.ID
	ProjectID *snowflake.ID
	Provider  string
	Payload   json.RawMessage
}

type Service interface {
	// Capture stores the raw body and enqueues a normalize_event job for it.
	Capture(ctx context.Context, input CaptureInput) (*RawEvent, error)
	// FindByID loads a captured event, or ErrRawEventNotFound.
	FindByID(ctx context.Context, id snowflake.ID) (*RawEvent, error)
	// MarkProcessed stamps the event once its canonical events are enqueued.
	MarkProcessed(ctx context.Context, id snowflake.ID) error
}
