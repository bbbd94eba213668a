package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/oklog/ulid/v2"
	"github.com/smallbiznis/ledgerlink/internal/clock"
	jobdomain "github.com/smallbiznis/ledgerlink/internal/jobqueue/domain"
	rawdomain "github.com/smallbiznis/ledgerlink/internal/rawevent/domain"
	"github.com/smallbiznis/ledgerlink/pkg/db"
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
	Jobs  jobdomain.Service
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	jobs  jobdomain.Service
}

func NewService(p Params) rawdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("rawevent.service"),
		genID: p.GenID,
		clock: p.Clock,
		jobs:  p.Jobs,
	}
}

func (s *Service) Capture(ctx context.Context, input rawdomain.CaptureInput) (*rawdomain.RawEvent, error) {
	input.Provider = strings.ToLower(strings.TrimSpace(input.Provider))
	if input.OrgID == 0 || input.Provider == "" {
		return nil, rawdomain.ErrInvalidRawEvent
	}
	if !json.Valid(input.Payload) {
		return nil, rawdomain.ErrInvalidRawEvent
	}

	event := rawdomain.RawEvent{
		ID:         s.genID.Generate(),
		IngestID:   ulid.Make().String(),
		OrgID:      input.OrgID,
		ProjectID:  input.ProjectID,
		Provider:   input.Provider,
		Payload:    []byte(input.Payload),
		ReceivedAt: s.clock.Now(),
	}
	if err := s.db.WithContext(ctx).Create(&event).Error; err != nil {
		if !db.IsDuplicateKeyErr(err) {
			return nil, err
		}
		// ULID collision. Mint a new one and try once more.
		event.IngestID = ulid.Make().String()
		if err := s.db.WithContext(ctx).Create(&event).Error; err != nil {
			return nil, err
		}
	}

	if _, err := s.jobs.Enqueue(ctx, jobdomain.EnqueueInput{
		OrgID:     input.OrgID,
		ProjectID: input.ProjectID,
		JobType:   jobdomain.JobTypeNormalizeEvent,
		Payload:   jobdomain.NormalizePayload{RawEventID: event.ID},
	}); err != nil {
		return nil, err
	}

	s.log.Info("raw event captured",
		zap.String("ingest_id", event.IngestID),
		zap.String("provider", event.Provider),
		zap.String("org_id", event.OrgID.String()),
	)
	return &event, nil
}

func (s *Service) FindByID(ctx context.Context, id snowflake.ID) (*rawdomain.RawEvent, error) {
	var event rawdomain.RawEvent
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&event).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, rawdomain.ErrRawEventNotFound
		}
		return nil, err
	}
	return &event, nil
}

func (s *Service) MarkProcessed(ctx context.Context, id snowflake.ID) error {
	now := s.clock.Now()
	result := s.db.WithContext(ctx).Model(&rawdomain.RawEvent{}).
		Where("id = ?", id).
		Update("processed_at", now)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return rawdomain.ErrRawEventNotFound
	}
	return nil
}
