package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

var ErrInvalidOrder = errors.New("invalid_order")

// Confirmed statuses book revenue on an accrual basis when the order is
// applied, independent of payment capture.
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusPaid      = "paid"
	StatusCancelled = "cancelled"
)

// Order is the projection of provider sale events, keyed by the provider's
// object id so redelivered events land on the same row.
type Order struct {
	ID               snowflake.ID   `json:"id" gorm:"primaryKey"`
	OrgID            snowflake.ID   `json:"org_id" gorm:"not null;uniqueIndex:ux_orders_provider_object,priority:1"`
	ProjectID        *snowflake.ID  `json:"project_id" gorm:"index"`
	Provider         string         `json:"provider" gorm:"type:text;not null;uniqueIndex:ux_orders_provider_object,priority:2"`
	ProviderObjectID string         `json:"provider_object_id" gorm:"type:text;not null;uniqueIndex:ux_orders_provider_object,priority:3"`
	CustomerName     string         `json:"customer_name" gorm:"type:text"`
	CustomerEmail    string         `json:"customer_email" gorm:"type:text"`
	Products         datatypes.JSON `json:"products" gorm:"type:jsonb"`
	TotalAmountCents int64          `json:"total_amount_cents" gorm:"not null"`
	Currency         string         `json:"currency" gorm:"type:text;not null"`
	Status           string         `json:"status" gorm:"type:text;not null;index"`
	OccurredAt       time.Time      `json:"occurred_at" gorm:"not null"`
	CreatedAt        time.Time      `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt        time.Time      `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Order) TableName() string { return "orders" }

type Service interface {
	// Upsert writes the order keyed by (org, provider, provider object id)
	// and returns the stored row, whether fresh or refreshed.
	Upsert(ctx context.Context, order Order) (*Order, error)
}
