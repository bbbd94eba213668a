package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

var ErrInvalidCounter = errors.New("invalid_usage_counter")

// UsageCounter accumulates per-org daily apply volume for billing and
// rate visibility. One row per (org, day).
type UsageCounter struct {
	ID            snowflake.ID `json:"id" gorm:"primaryKey"`
	OrgID         snowflake.ID `json:"org_id" gorm:"not null;uniqueIndex:ux_usage_counters_org_day,priority:1"`
	Day           time.Time    `json:"day" gorm:"type:date;not null;uniqueIndex:ux_usage_counters_org_day,priority:2"`
	EventsApplied int64        `json:"events_applied" gorm:"not null;default:0"`
	UpdatedAt     time.Time    `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (UsageCounter) TableName() string { return "usage_counters" }

type Service interface {
	// IncrementApplied adds n applied events to the org's counter for the
	// current day. Safe under concurrent workers.
	IncrementApplied(ctx context.Context, orgID snowflake.ID, n int64) error
	// Usage returns the counter for an org on a given day, zero-valued if
	// nothing has been recorded.
	Usage(ctx context.Context, orgID snowflake.ID, day time.Time) (*UsageCounter, error)
}
