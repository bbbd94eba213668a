package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrInvalidRef  = errors.New("invalid_external_ref")
	ErrRefNotFound = errors.New("external_ref_not_found")
)

// ExternalRef maps a provider-issued object id to the internal row that
// represents it. Any later event referencing the same provider object
// resolves to the same canonical row through this table.
type ExternalRef struct {
	ID               snowflake.ID `gorm:"primaryKey"`
	OrgID            snowflake.ID `gorm:"not null;uniqueIndex:ux_external_refs_identity,priority:1"`
	Provider         string       `gorm:"type:text;not null;uniqueIndex:ux_external_refs_identity,priority:2"`
	EntityType       string       `gorm:"type:text;not null;uniqueIndex:ux_external_refs_identity,priority:3"`
	ProviderObjectID string       `gorm:"type:text;not null;uniqueIndex:ux_external_refs_identity,priority:4"`
	CanonicalTable   string       `gorm:"type:text;not null"`
	CanonicalID      snowflake.ID `gorm:"not null;index"`
	CreatedAt        time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt        time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (ExternalRef) TableName() string { return "external_refs" }

type Service interface {
	// Upsert writes or refreshes the mapping for a provider object.
	Upsert(ctx context.Context, ref ExternalRef) error
	// Resolve returns the mapping for a provider object, or ErrRefNotFound.
	Resolve(ctx context.Context, orgID snowflake.ID, provider, entityType, providerObjectID string) (*ExternalRef, error)
}
