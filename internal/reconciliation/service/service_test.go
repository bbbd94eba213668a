package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/ledgerlink/internal/clock"
	"github.com/smallbiznis/ledgerlink/internal/config"
	paymentdomain "github.com/smallbiznis/ledgerlink/internal/payment/domain"
	paymentservice "github.com/smallbiznis/ledgerlink/internal/payment/service"
	recondomain "github.com/smallbiznis/ledgerlink/internal/reconciliation/domain"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (recondomain.Service, paymentdomain.Service, *gorm.DB, *snowflake.Node) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	assert.NoError(t, err)
	assert.NoError(t, db.AutoMigrate(&recondomain.BankTransaction{}, &paymentdomain.Payment{}))

	node, err := snowflake.NewNode(1)
	assert.NoError(t, err)
	log := zap.NewNop()
	fake := clock.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	payments := paymentservice.NewService(paymentservice.Params{DB: db, Log: log, GenID: node, Clock: fake})
	svc := NewService(Params{
		DB:       db,
		Log:      log,
		GenID:    node,
		Clock:    fake,
		Pipeline: config.NewStaticPipelineConfigHolder(config.DefaultPipelineConfig()),
		Payments: payments,
	})
	return svc, payments, db, node
}

func seedPayment(t *testing.T, db *gorm.DB, node *snowflake.Node, orgID snowflake.ID, objectID string, amountCents int64, createdAt time.Time) snowflake.ID {
	t.Helper()
	payment := paymentdomain.Payment{
		ID:               node.Generate(),
		OrgID:            orgID,
		Provider:         "stripe",
		ProviderObjectID: objectID,
		AmountCents:      amountCents,
		NetCents:         amountCents,
		Currency:         "USD",
		Status:           "paid",
		CreatedAt:        createdAt,
		UpdatedAt:        createdAt,
	}
	assert.NoError(t, db.Create(&payment).Error)
	return payment.ID
}

func TestImport_DedupesOnReimport(t *testing.T) {
	svc, _, db, node := newTestService(t)
	orgID := node.Generate()

	statement := []recondomain.ImportRecord{
		{TransactionID: "TXN-1", AmountCents: -50000, Date: time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC), Description: "card settlement"},
		{TransactionID: "TXN-2", AmountCents: 12000, Date: time.Date(2026, 2, 11, 0, 0, 0, 0, time.UTC), Description: "wire in"},
	}

	result, err := svc.Import(context.Background(), orgID, statement)
	assert.NoError(t, err)
	assert.Equal(t, 2, result.Inserted)
	assert.Equal(t, 0, result.Skipped)

	result, err = svc.Import(context.Background(), orgID, statement)
	assert.NoError(t, err)
	assert.Equal(t, 0, result.Inserted)
	assert.Equal(t, 2, result.Skipped)

	var count int64
	assert.NoError(t, db.Model(&recondomain.BankTransaction{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)
}

func TestFindPotentialMatches_WindowAndAmount(t *testing.T) {
	svc, _, db, node := newTestService(t)
	orgID := node.Generate()
	txnDate := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)

	// inside the window, exact amount
	inWindow := seedPayment(t, db, node, orgID, "py_in", 50000, txnDate.AddDate(0, 0, 2))
	onEdge := seedPayment(t, db, node, orgID, "py_edge", 50000, txnDate.AddDate(0, 0, -4))
	// outside the window
	seedPayment(t, db, node, orgID, "py_late", 50000, txnDate.AddDate(0, 0, 5))
	// wrong amount
	seedPayment(t, db, node, orgID, "py_amount", 49999, txnDate)
	// other org
	seedPayment(t, db, node, node.Generate(), "py_other", 50000, txnDate)

	_, err := svc.Import(context.Background(), orgID, []recondomain.ImportRecord{
		{TransactionID: "TXN-1", AmountCents: -50000, Date: txnDate},
	})
	assert.NoError(t, err)

	var txn recondomain.BankTransaction
	assert.NoError(t, db.Where("org_id = ?", orgID).First(&txn).Error)

	stored, candidates, err := svc.FindPotentialMatches(context.Background(), orgID, txn.ID)
	assert.NoError(t, err)
	assert.Equal(t, txn.ID, stored.ID)
	assert.Len(t, candidates, 2)

	got := map[snowflake.ID]bool{}
	for _, c := range candidates {
		got[c.ID] = true
	}
	assert.True(t, got[inWindow])
	assert.True(t, got[onEdge])
}

func TestFindPotentialMatches_CappedAtFive(t *testing.T) {
	svc, _, db, node := newTestService(t)
	orgID := node.Generate()
	txnDate := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 8; i++ {
		seedPayment(t, db, node, orgID, "py_"+string(rune('a'+i)), 50000, txnDate.Add(time.Duration(i)*time.Hour))
	}

	_, err := svc.Import(context.Background(), orgID, []recondomain.ImportRecord{
		{TransactionID: "TXN-1", AmountCents: 50000, Date: txnDate},
	})
	assert.NoError(t, err)

	var txn recondomain.BankTransaction
	assert.NoError(t, db.Where("org_id = ?", orgID).First(&txn).Error)

	_, candidates, err := svc.FindPotentialMatches(context.Background(), orgID, txn.ID)
	assert.NoError(t, err)
	assert.Len(t, candidates, 5)
}

func TestConfirmMatch_OneWayAndIdempotent(t *testing.T) {
	svc, _, db, node := newTestService(t)
	orgID := node.Generate()
	txnDate := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)

	paymentID := seedPayment(t, db, node, orgID, "py_1", 50000, txnDate)
	otherPaymentID := seedPayment(t, db, node, orgID, "py_2", 50000, txnDate)

	_, err := svc.Import(context.Background(), orgID, []recondomain.ImportRecord{
		{TransactionID: "TXN-1", AmountCents: -50000, Date: txnDate},
	})
	assert.NoError(t, err)

	var txn recondomain.BankTransaction
	assert.NoError(t, db.Where("org_id = ?", orgID).First(&txn).Error)

	matched, err := svc.ConfirmMatch(context.Background(), orgID, txn.ID, paymentID)
	assert.NoError(t, err)
	assert.Equal(t, recondomain.StatusMatched, matched.Status)
	assert.Equal(t, paymentID, *matched.MatchID)

	// same pair again: idempotent
	matched, err = svc.ConfirmMatch(context.Background(), orgID, txn.ID, paymentID)
	assert.NoError(t, err)
	assert.Equal(t, recondomain.StatusMatched, matched.Status)

	// different payment: rejected, terminal state untouched
	_, err = svc.ConfirmMatch(context.Background(), orgID, txn.ID, otherPaymentID)
	assert.ErrorIs(t, err, recondomain.ErrAlreadyMatched)

	var stored recondomain.BankTransaction
	assert.NoError(t, db.Where("id = ?", txn.ID).First(&stored).Error)
	assert.Equal(t, paymentID, *stored.MatchID)
}

func TestConfirmMatch_MissingPayment(t *testing.T) {
	svc, _, db, node := newTestService(t)
	orgID := node.Generate()

	_, err := svc.Import(context.Background(), orgID, []recondomain.ImportRecord{
		{TransactionID: "TXN-1", AmountCents: 1000, Date: time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)},
	})
	assert.NoError(t, err)

	var txn recondomain.BankTransaction
	assert.NoError(t, db.Where("org_id = ?", orgID).First(&txn).Error)

	_, err = svc.ConfirmMatch(context.Background(), orgID, txn.ID, node.Generate())
	assert.ErrorIs(t, err, recondomain.ErrPaymentNotFound)
}
