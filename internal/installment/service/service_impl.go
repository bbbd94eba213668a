package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/ledgerlink/internal/canonical"
	"github.com/smallbiznis/ledgerlink/internal/clock"
	installmentdomain "github.com/smallbiznis/ledgerlink/internal/installment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
}

func NewService(p Params) installmentdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("installment.service"),
		genID: p.GenID,
		clock: p.Clock,
	}
}

func (s *Service) CreatePlan(ctx context.Context, orgID, orderID snowflake.ID, terms canonical.PaymentTerms) ([]installmentdomain.Installment, error) {
	if orgID == 0 || orderID == 0 {
		return nil, installmentdomain.ErrInvalidPlan
	}

	scheduled, err := installmentdomain.Generate(installmentdomain.GenerateInput{
		TotalAmountCents: terms.TotalAmountCents,
		EntryAmountCents: terms.EntryAmountCents,
		Installments:     terms.Installments,
		Rule:             terms.Rule,
		EntryPaidAt:      terms.EntryPaidAt,
		CycleStart:       terms.CycleStart,
		Now:              s.clock.Now(),
	})
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, item := range scheduled {
			result := tx.Exec(
				`INSERT INTO installments (
					id, org_id, order_id, installment_number, amount_cents,
					due_date, status, created_at, updated_at
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT (org_id, order_id, installment_number) DO NOTHING`,
				s.genID.Generate(),
				orgID,
				orderID,
				item.Number,
				item.AmountCents,
				item.DueDate,
				item.Status,
				now,
				now,
			)
			if result.Error != nil {
				return result.Error
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.ListByOrder(ctx, orgID, orderID)
}

func (s *Service) ListByOrder(ctx context.Context, orgID, orderID snowflake.ID) ([]installmentdomain.Installment, error) {
	var installments []installmentdomain.Installment
	err := s.db.WithContext(ctx).
		Where("org_id = ? AND order_id = ?", orgID, orderID).
		Order("installment_number ASC").
		Find(&installments).Error
	if err != nil {
		return nil, err
	}
	return installments, nil
}
