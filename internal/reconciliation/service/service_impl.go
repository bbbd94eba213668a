package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/ledgerlink/internal/clock"
	"github.com/smallbiznis/ledgerlink/internal/config"
	obsmetrics "github.com/smallbiznis/ledgerlink/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/ledgerlink/internal/payment/domain"
	recondomain "github.com/smallbiznis/ledgerlink/internal/reconciliation/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Pipeline   *config.PipelineConfigHolder
	Payments   paymentdomain.Service
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	pipeline   *config.PipelineConfigHolder
	payments   paymentdomain.Service
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) recondomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("reconciliation.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		pipeline:   p.Pipeline,
		payments:   p.Payments,
		obsMetrics: p.ObsMetrics,
	}
}

func (s *Service) Import(ctx context.Context, orgID snowflake.ID, records []recondomain.ImportRecord) (*recondomain.ImportResult, error) {
	if orgID == 0 {
		return nil, recondomain.ErrInvalidTransaction
	}

	result := &recondomain.ImportResult{Received: len(records)}
	now := s.clock.Now()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, record := range records {
			transactionID := strings.TrimSpace(record.TransactionID)
			if transactionID == "" || record.Date.IsZero() {
				return recondomain.ErrInvalidTransaction
			}

			res := tx.Exec(
				`INSERT INTO bank_transactions (
					id, org_id, transaction_id, amount_cents, date,
					description, status, created_at, updated_at
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT (org_id, transaction_id) DO NOTHING`,
				s.genID.Generate(),
				orgID,
				transactionID,
				record.AmountCents,
				record.Date.UTC().Truncate(24*time.Hour),
				record.Description,
				recondomain.StatusPending,
				now,
				now,
			)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				result.Skipped++
			} else {
				result.Inserted++
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("bank statement imported",
		zap.String("org_id", orgID.String()),
		zap.Int("received", result.Received),
		zap.Int("inserted", result.Inserted),
		zap.Int("skipped", result.Skipped),
	)
	return result, nil
}

func (s *Service) FindPotentialMatches(ctx context.Context, orgID, transactionID snowflake.ID) (*recondomain.BankTransaction, []paymentdomain.Payment, error) {
	txn, err := s.findTransaction(ctx, orgID, transactionID)
	if err != nil {
		return nil, nil, err
	}

	cfg := s.pipeline.Get()
	amount := txn.AmountCents
	if amount < 0 {
		amount = -amount
	}

	from := txn.Date.AddDate(0, 0, -cfg.MatchWindowDays)
	to := txn.Date.AddDate(0, 0, cfg.MatchWindowDays+1).Add(-time.Nanosecond)

	candidates, err := s.payments.ListByAmountWindow(ctx, orgID, amount, from, to, cfg.MatchCandidateLimit)
	if err != nil {
		return nil, nil, err
	}
	return txn, candidates, nil
}

func (s *Service) ConfirmMatch(ctx context.Context, orgID, transactionID, paymentID snowflake.ID) (*recondomain.BankTransaction, error) {
	txn, err := s.findTransaction(ctx, orgID, transactionID)
	if err != nil {
		return nil, err
	}

	if txn.Status == recondomain.StatusMatched {
		if txn.MatchID != nil && *txn.MatchID == paymentID {
			return txn, nil
		}
		return nil, recondomain.ErrAlreadyMatched
	}

	if _, err := s.payments.FindByID(ctx, orgID, paymentID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, recondomain.ErrPaymentNotFound
		}
		return nil, err
	}

	now := s.clock.Now()
	err = s.db.WithContext(ctx).Model(&recondomain.BankTransaction{}).
		Where("id = ? AND org_id = ?", txn.ID, orgID).
		Updates(map[string]any{
			"status":     recondomain.StatusMatched,
			"match_id":   paymentID,
			"updated_at": now,
		}).Error
	if err != nil {
		return nil, err
	}

	txn.Status = recondomain.StatusMatched
	txn.MatchID = &paymentID
	txn.UpdatedAt = now

	if s.obsMetrics != nil {
		s.obsMetrics.RecordMatchConfirmed(ctx)
	}
	return txn, nil
}

func (s *Service) findTransaction(ctx context.Context, orgID, transactionID snowflake.ID) (*recondomain.BankTransaction, error) {
	var txn recondomain.BankTransaction
	err := s.db.WithContext(ctx).
		Where("id = ? AND org_id = ?", transactionID, orgID).
		First(&txn).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, recondomain.ErrTransactionNotFound
		}
		return nil, err
	}
	return &txn, nil
}
