package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

var ErrInvalidPayment = errors.New("invalid_payment")

const (
	StatusPending  = "pending"
	StatusPaid     = "paid"
	StatusSettled  = "settled"
	StatusFailed   = "failed"
	StatusRefunded = "refunded"
)

// Payment is the projection of provider capture events, keyed by the
// provider's object id so redelivered events land on the same row.
type Payment struct {
	ID               snowflake.ID  `json:"id" gorm:"primaryKey"`
	OrgID            snowflake.ID  `json:"org_id" gorm:"not null;uniqueIndex:ux_payments_provider_object,priority:1"`
	ProjectID        *snowflake.ID `json:"project_id" gorm:"index"`
	Provider         string        `json:"provider" gorm:"type:text;not null;uniqueIndex:ux_payments_provider_object,priority:2"`
	ProviderObjectID string        `json:"provider_object_id" gorm:"type:text;not null;uniqueIndex:ux_payments_provider_object,priority:3"`
	ProviderOrderID  string        `json:"provider_order_id" gorm:"type:text;index"`
	AmountCents      int64         `json:"amount_cents" gorm:"not null;index"`
	FeeCents         int64         `json:"fee_cents" gorm:"not null"`
	NetCents         int64         `json:"net_cents" gorm:"not null"`
	Currency         string        `json:"currency" gorm:"type:text;not null"`
	Method           string        `json:"method" gorm:"type:text"`
	Installments     int           `json:"installments" gorm:"not null;default:0"`
	Status           string        `json:"status" gorm:"type:text;not null;index"`
	PaidAt           *time.Time    `json:"paid_at"`
	CreatedAt        time.Time     `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP;index"`
	UpdatedAt        time.Time     `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Payment) TableName() string { return "payments" }

type Service interface {
	// Upsert writes the payment keyed by (org, provider, provider object id)
	// and returns the stored row, whether fresh or refreshed.
	Upsert(ctx context.Context, payment Payment) (*Payment, error)
	// FindByID loads a payment by internal id.
	FindByID(ctx context.Context, orgID, id snowflake.ID) (*Payment, error)
	// ListByAmountWindow returns payments whose amount equals amountCents and
	// whose created_at falls inside [from, to], most recent first.
	ListByAmountWindow(ctx context.Context, orgID snowflake.ID, amountCents int64, from, to time.Time, limit int) ([]Payment, error)
}
