package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	anomalydomain "github.com/smallbiznis/ledgerlink/internal/anomaly/domain"
	"github.com/smallbiznis/ledgerlink/internal/clock"
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

func NewService(p Params) anomalydomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("anomaly.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		obsMetrics: p.ObsMetrics,
	}
}

func (s *Service) Record(ctx context.Context, anomaly anomalydomain.Anomaly) error {
	if anomaly.OrgID == 0 || strings.TrimSpace(anomaly.EntityType) == "" || strings.TrimSpace(anomaly.Description) == "" {
		return anomalydomain.ErrInvalidAnomaly
	}
	if anomaly.Severity == "" {
		anomaly.Severity = anomalydomain.SeverityError
	}

	anomaly.ID = s.genID.Generate()
	anomaly.CreatedAt = s.clock.Now()
	if err := s.db.WithContext(ctx).Create(&anomaly).Error; err != nil {
		return err
	}

	s.log.Warn("anomaly recorded",
		zap.String("org_id", anomaly.OrgID.String()),
		zap.String("entity_type", anomaly.EntityType),
		zap.String("entity_id", anomaly.EntityID),
		zap.String("severity", string(anomaly.Severity)),
	)
	if s.obsMetrics != nil {
		s.obsMetrics.RecordAnomaly(ctx, anomaly.EntityType)
	}
	return nil
}

func (s *Service) ListRecent(ctx context.Context, orgID snowflake.ID, limit int) ([]anomalydomain.Anomaly, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	var anomalies []anomalydomain.Anomaly
	err := s.db.WithContext(ctx).
		Where("org_id = ?", orgID).
		Order("created_at DESC").
		Limit(limit).
		Find(&anomalies).Error
	if err != nil {
		return nil, err
	}
	return anomalies, nil
}
