package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/ledgerlink/internal/clock"
	paymentdomain "github.com/smallbiznis/ledgerlink/internal/payment/domain"
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

func NewService(p Params) paymentdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("payment.service"),
		genID: p.GenID,
		clock: p.Clock,
	}
}

func (s *Service) Upsert(ctx context.Context, payment paymentdomain.Payment) (*paymentdomain.Payment, error) {
	payment.Provider = strings.ToLower(strings.TrimSpace(payment.Provider))
	payment.ProviderObjectID = strings.TrimSpace(payment.ProviderObjectID)
	if payment.OrgID == 0 || payment.Provider == "" || payment.ProviderObjectID == "" {
		return nil, paymentdomain.ErrInvalidPayment
	}
	if payment.AmountCents < 0 || payment.FeeCents < 0 {
		return nil, paymentdomain.ErrInvalidPayment
	}

	now := s.clock.Now()
	err := s.db.WithContext(ctx).Exec(
		`INSERT INTO payments (
			id, org_id, project_id, provider, provider_object_id,
			provider_order_id, amount_cents, fee_cents, net_cents, currency,
			method, installments, status, paid_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (org_id, provider, provider_object_id) DO UPDATE SET
			provider_order_id = excluded.provider_order_id,
			amount_cents = excluded.amount_cents,
			fee_cents = excluded.fee_cents,
			net_cents = excluded.net_cents,
			currency = excluded.currency,
			method = excluded.method,
			installments = excluded.installments,
			status = excluded.status,
			paid_at = excluded.paid_at,
			updated_at = excluded.updated_at`,
		s.genID.Generate(),
		payment.OrgID,
		payment.ProjectID,
		payment.Provider,
		payment.ProviderObjectID,
		payment.ProviderOrderID,
		payment.AmountCents,
		payment.FeeCents,
		payment.NetCents,
		payment.Currency,
		payment.Method,
		payment.Installments,
		payment.Status,
		payment.PaidAt,
		now,
		now,
	).Error
	if err != nil {
		return nil, err
	}

	var stored paymentdomain.Payment
	if err := s.db.WithContext(ctx).
		Where("org_id = ? AND provider = ? AND provider_object_id = ?",
			payment.OrgID, payment.Provider, payment.ProviderObjectID).
		First(&stored).Error; err != nil {
		return nil, err
	}
	return &stored, nil
}

func (s *Service) FindByID(ctx context.Context, orgID, id snowflake.ID) (*paymentdomain.Payment, error) {
	var payment paymentdomain.Payment
	err := s.db.WithContext(ctx).
		Where("org_id = ? AND id = ?", orgID, id).
		First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (s *Service) ListByAmountWindow(ctx context.Context, orgID snowflake.ID, amountCents int64, from, to time.Time, limit int) ([]paymentdomain.Payment, error) {
	if limit <= 0 {
		limit = 5
	}
	var payments []paymentdomain.Payment
	err := s.db.WithContext(ctx).
		Where("org_id = ? AND amount_cents = ? AND created_at >= ? AND created_at <= ?",
			orgID, amountCents, from.UTC(), to.UTC()).
		Order("created_at DESC").
		Limit(limit).
		Find(&payments).Error
	if err != nil {
		return nil, err
	}
	return payments, nil
}
