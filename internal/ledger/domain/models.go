package domain

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidSourceType   = errors.New("invalid_source_type")
	ErrInvalidSourceID     = errors.New("invalid_source_id")
	ErrInvalidCategory     = errors.New("invalid_category")
	ErrInvalidDirection    = errors.New("invalid_direction")
	ErrInvalidAmount       = errors.New("invalid_amount")
	ErrInvalidEntryDate    = errors.New("invalid_entry_date")
)

// Direction represents debit or credit postings.
type Direction string

const (
	DirectionDebit  Direction = "debit"
	DirectionCredit Direction = "credit"
)

type Category string

const (
	// Revenue
	CategorySale Category = "sale" // confirmed order, accrual basis

	// Costs
	CategoryPaymentFee Category = "payment_fee" // gateway / processor fee

	// Money returned or reversed
	CategoryRefund      Category = "refund"
	CategoryDisputeHold Category = "dispute_hold"

	// Corrections
	CategoryAdjustment Category = "adjustment"
)

type SourceType string

const (
	SourceTypeOrder   SourceType = "order"
	SourceTypePayment SourceType = "payment"
	SourceTypeRefund  SourceType = "refund"
	SourceTypeDispute SourceType = "dispute"
	SourceTypeManual  SourceType = "manual"
)

// LedgerEntry is an immutable single-entry posting. Amendments are new
// entries, never mutations. IdempotencyKey is derived from the business
// identity of the posting so replayed events collapse into the same row.
type LedgerEntry struct {
	ID               snowflake.ID  `gorm:"primaryKey"`
	OrgID            snowflake.ID  `gorm:"not null;index"`
	ProjectID        *snowflake.ID `gorm:"index"`
	EntryDate        time.Time     `gorm:"type:date;not null;index"`
	Direction        Direction     `gorm:"type:text;not null"`
	AmountCents      int64         `gorm:"not null"`
	Category         Category      `gorm:"type:text;not null;index"`
	SourceType       SourceType    `gorm:"type:text;not null"`
	SourceID         snowflake.ID  `gorm:"not null;index"`
	SourceProvider   string        `gorm:"type:text;not null"`
	SourceExternalID string        `gorm:"type:text"`
	IdempotencyKey   string        `gorm:"type:text;not null;uniqueIndex:ux_ledger_entries_idempotency_key"`
	Memo             string        `gorm:"type:text"`
	CreatedAt        time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (LedgerEntry) TableName() string { return "ledger_entries" }

// EntryInput is the caller-facing shape for recording a posting.
type EntryInput struct {
	OrgID            snowflake.ID
	ProjectID        *snowflake.ID
	EntryDate        time.Time
	Direction        Direction
	AmountCents      int64
	Category         Category
	SourceType       SourceType
	SourceID         snowflake.ID
	SourceProvider   string
	SourceExternalID string
	Memo             string
}

// IdempotencyKey hashes the business identity of a posting. The hash input
// deliberately excludes direction and memo: the identity of "this amount,
// for this source, in this category, on this date" is what must collapse
// on replay.
func IdempotencyKey(orgID snowflake.ID, sourceType SourceType, sourceID snowflake.ID, category Category, amountCents int64, entryDate time.Time) string {
	seed := fmt.Sprintf("%d|%s|%d|%s|%d|%s",
		orgID,
		sourceType,
		sourceID,
		category,
		amountCents,
		entryDate.UTC().Format("2006-01-02"),
	)
	sum := sha256.Sum256([]byte(seed))
	return hex.EncodeToString(sum[:])
}

type Service interface {
	// RecordEntry writes a posting if its idempotency key has not been seen
	// before. Returns true when a new row was inserted.
	RecordEntry(ctx context.Context, input EntryInput) (bool, error)
}
