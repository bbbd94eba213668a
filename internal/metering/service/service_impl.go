package service

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/ledgerlink/internal/clock"
	meteringdomain "github.com/smallbiznis/ledgerlink/internal/metering/domain"
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

func NewService(p Params) meteringdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("metering.service"),
		genID: p.GenID,
		clock: p.Clock,
	}
}

func (s *Service) IncrementApplied(ctx context.Context, orgID snowflake.ID, n int64) error {
	if orgID == 0 || n <= 0 {
		return meteringdomain.ErrInvalidCounter
	}

	now := s.clock.Now()
	day := now.Truncate(24 * time.Hour)
	return s.db.WithContext(ctx).Exec(
		`INSERT INTO usage_counters (id, org_id, day, events_applied, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (org_id, day) DO UPDATE SET
			events_applied = usage_counters.events_applied + excluded.events_applied,
			updated_at = excluded.updated_at`,
		s.genID.Generate(),
		orgID,
		day,
		n,
		now,
	).Error
}

func (s *Service) Usage(ctx context.Context, orgID snowflake.ID, day time.Time) (*meteringdomain.UsageCounter, error) {
	if orgID == 0 {
		return nil, meteringdomain.ErrInvalidCounter
	}

	var counter meteringdomain.UsageCounter
	err := s.db.WithContext(ctx).
		Where("org_id = ? AND day = ?", orgID, day.UTC().Truncate(24*time.Hour)).
		First(&counter).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &meteringdomain.UsageCounter{OrgID: orgID, Day: day.UTC().Truncate(24 * time.Hour)}, nil
		}
		return nil, err
	}
	return &counter, nil
}
