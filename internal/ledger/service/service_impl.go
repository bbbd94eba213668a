package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/ledgerlink/internal/clock"
	ledgerdomain "github.com/smallbiznis/ledgerlink/internal/ledger/domain"
	obsmetrics "github.com/smallbiznis/ledgerlink/internal/observability/metrics"
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
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) ledgerdomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("ledger.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		obsMetrics: p.ObsMetrics,
	}
}

func (s *Service) RecordEntry(ctx context.Context, input ledgerdomain.EntryInput) (bool, error) {
	if input.OrgID == 0 {
		return false, ledgerdomain.ErrInvalidOrganization
	}
	if strings.TrimSpace(string(input.SourceType)) == "" {
		return false, ledgerdomain.ErrInvalidSourceType
	}
	if input.SourceID == 0 {
		return false, ledgerdomain.ErrInvalidSourceID
	}
	if strings.TrimSpace(string(input.Category)) == "" {
		return false, ledgerdomain.ErrInvalidCategory
	}
	if input.Direction != ledgerdomain.DirectionDebit && input.Direction != ledgerdomain.DirectionCredit {
		return false, ledgerdomain.ErrInvalidDirection
	}
	if input.AmountCents <= 0 {
		return false, ledgerdomain.ErrInvalidAmount
	}
	if input.EntryDate.IsZero() {
		return false, ledgerdomain.ErrInvalidEntryDate
	}

	entryDate := input.EntryDate.UTC().Truncate(24 * time.Hour)
	key := ledgerdomain.IdempotencyKey(
		input.OrgID,
		input.SourceType,
		input.SourceID,
		input.Category,
		input.AmountCents,
		entryDate,
	)

	result := s.db.WithContext(ctx).Exec(
		`INSERT INTO ledger_entries (
			id, org_id, project_id, entry_date, direction, amount_cents,
			category, source_type, source_id, source_provider,
			source_external_id, idempotency_key, memo, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (idempotency_key) DO NOTHING`,
		s.genID.Generate(),
		input.OrgID,
		input.ProjectID,
		entryDate,
		string(input.Direction),
		input.AmountCents,
		string(input.Category),
		string(input.SourceType),
		input.SourceID,
		input.SourceProvider,
		input.SourceExternalID,
		key,
		input.Memo,
		s.clock.Now(),
	)
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected == 0 {
		s.log.Debug("ledger entry replayed",
			zap.String("idempotency_key", key),
			zap.String("category", string(input.Category)),
		)
		return false, nil
	}

	if s.obsMetrics != nil {
		s.obsMetrics.RecordLedgerEntry(ctx, string(input.Category))
	}
	return true, nil
}
