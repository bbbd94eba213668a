package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	paymentdomain "github.com/smallbiznis/ledgerlink/internal/payment/domain"
)

var (
	ErrInvalidTransaction  = errors.New("invalid_bank_transaction")
	ErrTransactionNotFound = errors.New("bank_transaction_not_found")
	ErrPaymentNotFound     = errors.New("payment_not_found")
	ErrAlreadyMatched      = errors.New("transaction_already_matched")
)

const (
	StatusPending = "pending"
	StatusMatched = "matched"
)

// BankTransaction is one parsed statement line. Amount keeps the statement's
// sign; matching normalizes it.
type BankTransaction struct {
	ID            snowflake.ID  `json:"id" gorm:"primaryKey"`
	OrgID         snowflake.ID  `json:"org_id" gorm:"not null;uniqueIndex:ux_bank_transactions_org_txn,priority:1"`
	TransactionID string        `json:"transaction_id" gorm:"type:text;not null;uniqueIndex:ux_bank_transactions_org_txn,priority:2"`
	AmountCents   int64         `json:"amount_cents" gorm:"not null"`
	Date          time.Time     `json:"date" gorm:"type:date;not null;index"`
	Description   string        `json:"description" gorm:"type:text"`
	Status        string        `json:"status" gorm:"type:text;not null;index"`
	MatchID       *snowflake.ID `json:"match_id" gorm:"index"`
	CreatedAt     time.Time     `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt     time.Time     `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (BankTransaction) TableName() string { return "bank_transactions" }

// ImportRecord is the parsed statement line handed in by the upload side.
type ImportRecord struct {
	TransactionID string    `json:"transaction_id"`
	AmountCents   int64     `json:"amount_cents"`
	Date          time.Time `json:"date"`
	Description   string    `json:"description"`
}

type ImportResult struct {
	Received int `json:"received"`
	Inserted int `json:"inserted"`
	Skipped  int `json:"skipped"`
}

type Service interface {
	// Import upserts statement lines, ignoring lines already seen for the
	// org. Re-importing a statement is a no-op.
	Import(ctx context.Context, orgID snowflake.ID, records []ImportRecord) (*ImportResult, error)
	// FindPotentialMatches returns payments whose amount equals the
	// transaction's absolute amount within the matching window. Candidates
	// only; a human confirms.
	FindPotentialMatches(ctx context.Context, orgID, transactionID snowflake.ID) (*BankTransaction, []paymentdomain.Payment, error)
	// ConfirmMatch links the transaction to a payment. Re-confirming the
	// same pair is idempotent; a different pair is rejected.
	ConfirmMatch(ctx context.Context, orgID, transactionID, paymentID snowflake.ID) (*BankTransaction, error)
}
