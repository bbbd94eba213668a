package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

var ErrInvalidAnomaly = errors.New("invalid_anomaly")

type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// Anomaly records an event that could not be applied so operators can
// inspect it later. Writing one never fails the surrounding batch.
type Anomaly struct {
	ID          snowflake.ID `json:"id" gorm:"primaryKey"`
	OrgID       snowflake.ID `json:"org_id" gorm:"not null;index"`
	EntityType  string       `json:"entity_type" gorm:"type:text;not null;index"`
	EntityID    string       `json:"entity_id" gorm:"type:text"`
	Description string       `json:"description" gorm:"type:text;not null"`
	Severity    Severity     `json:"severity" gorm:"type:text;not null"`
	CreatedAt   time.Time    `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Anomaly) TableName() string { return "anomalies" }

type Service interface {
	Record(ctx context.Context, anomaly Anomaly) error
	// ListRecent returns the newest anomalies for an org, newest first.
	ListRecent(ctx context.Context, orgID snowflake.ID, limit int) ([]Anomaly, error)
}
