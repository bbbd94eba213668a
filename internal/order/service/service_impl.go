package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/ledgerlink/internal/clock"
	orderdomain "github.com/smallbiznis/ledgerlink/internal/order/domain"
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

func NewService(p Params) orderdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("order.service"),
		genID: p.GenID,
		clock: p.Clock,
	}
}

func (s *Service) Upsert(ctx context.Context, order orderdomain.Order) (*orderdomain.Order, error) {
	order.Provider = strings.ToLower(strings.TrimSpace(order.Provider))
	order.ProviderObjectID = strings.TrimSpace(order.ProviderObjectID)
	if order.OrgID == 0 || order.Provider == "" || order.ProviderObjectID == "" {
		return nil, orderdomain.ErrInvalidOrder
	}
	if order.TotalAmountCents < 0 || order.OccurredAt.IsZero() {
		return nil, orderdomain.ErrInvalidOrder
	}

	now := s.clock.Now()
	err := s.db.WithContext(ctx).Exec(
		`INSERT INTO orders (
			id, org_id, project_id, provider, provider_object_id,
			customer_name, customer_email, products, total_amount_cents,
			currency, status, occurred_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (org_id, provider, provider_object_id) DO UPDATE SET
			customer_name = excluded.customer_name,
			customer_email = excluded.customer_email,
			products = excluded.products,
			total_amount_cents = excluded.total_amount_cents,
			currency = excluded.currency,
			status = excluded.status,
			occurred_at = excluded.occurred_at,
			updated_at = excluded.updated_at`,
		s.genID.Generate(),
		order.OrgID,
		order.ProjectID,
		order.Provider,
		order.ProviderObjectID,
		order.CustomerName,
		order.CustomerEmail,
		order.Products,
		order.TotalAmountCents,
		order.Currency,
		order.Status,
		order.OccurredAt.UTC(),
		now,
		now,
	).Error
	if err != nil {
		return nil, err
	}

	var stored orderdomain.Order
	if err := s.db.WithContext(ctx).
		Where("org_id = ? AND provider = ? AND provider_object_id = ?",
			order.OrgID, order.Provider, order.ProviderObjectID).
		First(&stored).Error; err != nil {
		return nil, err
	}
	return &stored, nil
}
