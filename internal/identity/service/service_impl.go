package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/ledgerlink/internal/clock"
	identitydomain "github.com/smallbiznis/ledgerlink/internal/identity/domain"
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

func NewService(p Params) identitydomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("identity.service"),
		genID: p.GenID,
		clock: p.Clock,
	}
}

func (s *Service) Upsert(ctx context.Context, ref identitydomain.ExternalRef) error {
	ref.Provider = strings.ToLower(strings.TrimSpace(ref.Provider))
	ref.EntityType = strings.ToLower(strings.TrimSpace(ref.EntityType))
	ref.ProviderObjectID = strings.TrimSpace(ref.ProviderObjectID)

	if ref.OrgID == 0 || ref.Provider == "" || ref.EntityType == "" || ref.ProviderObjectID == "" {
		return identitydomain.ErrInvalidRef
	}
	if ref.CanonicalTable == "" || ref.CanonicalID == 0 {
		return identitydomain.ErrInvalidRef
	}

	now := s.clock.Now()
	return s.db.WithContext(ctx).Exec(
		`INSERT INTO external_refs (
			id, org_id, provider, entity_type, provider_object_id,
			canonical_table, canonical_id, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (org_id, provider, entity_type, provider_object_id) DO UPDATE SET
			canonical_table = excluded.canonical_table,
			canonical_id = excluded.canonical_id,
			updated_at = excluded.updated_at`,
		s.genID.Generate(),
		ref.OrgID,
		ref.Provider,
		ref.EntityType,
		ref.ProviderObjectID,
		ref.CanonicalTable,
		ref.CanonicalID,
		now,
		now,
	).Error
}

func (s *Service) Resolve(ctx context.Context, orgID snowflake.ID, provider, entityType, providerObjectID string) (*identitydomain.ExternalRef, error) {
	provider = strings.ToLower(strings.TrimSpace(provider))
	entityType = strings.ToLower(strings.TrimSpace(entityType))
	providerObjectID = strings.TrimSpace(providerObjectID)
	if orgID == 0 || provider == "" || entityType == "" || providerObjectID == "" {
		return nil, identitydomain.ErrInvalidRef
	}

	var ref identitydomain.ExternalRef
	err := s.db.WithContext(ctx).
		Where("org_id = ? AND provider = ? AND entity_type = ? AND provider_object_id = ?",
			orgID, provider, entityType, providerObjectID).
		First(&ref).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, identitydomain.ErrRefNotFound
		}
		return nil, err
	}
	return &ref, nil
}
