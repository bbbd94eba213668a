package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/ledgerlink/internal/canonical"
)

var (
	ErrInvalidPlan      = errors.New("invalid_installment_plan")
	ErrInvalidPlanCount = errors.New("invalid_installment_count")
	ErrInvalidAmounts   = errors.New("invalid_installment_amounts")
)

const (
	StatusPending   = "pending"
	StatusPaid      = "paid"
	StatusOverdue   = "overdue"
	StatusCancelled = "cancelled"
)

// Installment is one dated obligation of a payment plan.
type Installment struct {
	ID                snowflake.ID `json:"id" gorm:"primaryKey"`
	OrgID             snowflake.ID `json:"org_id" gorm:"not null;uniqueIndex:ux_installments_order_number,priority:1"`
	OrderID           snowflake.ID `json:"order_id" gorm:"not null;uniqueIndex:ux_installments_order_number,priority:2"`
	InstallmentNumber int          `json:"installment_number" gorm:"not null;uniqueIndex:ux_installments_order_number,priority:3"`
	AmountCents       int64        `json:"amount_cents" gorm:"not null"`
	DueDate           time.Time    `json:"due_date" gorm:"type:date;not null;index"`
	Status            string       `json:"status" gorm:"type:text;not null;index"`
	CreatedAt         time.Time    `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt         time.Time    `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Installment) TableName() string { return "installments" }

// Scheduled is the generator's output before persistence.
type Scheduled struct {
	Number      int       `json:"installment_number"`
	AmountCents int64     `json:"amount_cents"`
	DueDate     time.Time `json:"due_date"`
	Status      string    `json:"status"`
}

// GenerateInput carries the sale terms handed to the generator. AnchorDate
// is an operator-supplied override and wins over every derived anchor.
type GenerateInput struct {
	TotalAmountCents int64
	EntryAmountCents int64
	Installments     int
	Rule             canonical.ScheduleRule
	EntryPaidAt      *time.Time
	CycleStart       *time.Time
	AnchorDate       *time.Time
	Now              time.Time
}

type Service interface {
	// CreatePlan generates and persists the installments for an order. A
	// replay for the same order is a no-op for rows already written.
	CreatePlan(ctx context.Context, orgID, orderID snowflake.ID, terms canonical.PaymentTerms) ([]Installment, error)
	// ListByOrder returns an order's installments in number order.
	ListByOrder(ctx context.Context, orgID, orderID snowflake.ID) ([]Installment, error)
}
