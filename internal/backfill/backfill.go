package backfill

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/ledgerlink/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ErrBackfillInProgress = errors.New("backfill_in_progress")

const keyProviderBackfill = "ledgerlink:backfill:%s:%s"

// Guard serializes provider backfills per org. A sync_provider job that
// cannot take the lock fails fast and lets the retry machinery reschedule
// it behind the running backfill.
type Guard struct {
	log      *zap.Logger
	locker   *Locker
	pipeline *config.PipelineConfigHolder
}

type Params struct {
	fx.In

	Config   config.Config
	Log      *zap.Logger
	Pipeline *config.PipelineConfigHolder
}

func NewGuard(p Params) *Guard {
	var locker *Locker
	if addr := strings.TrimSpace(p.Config.RedisAddr); addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: strings.TrimSpace(p.Config.RedisPassword),
			DB:       p.Config.RedisDB,
		})
		locker = NewLocker(client)
	}
	return &Guard{
		log:      p.Log.Named("backfill.guard"),
		locker:   locker,
		pipeline: p.Pipeline,
	}
}

// Acquire takes the per-org backfill lock for a provider and returns a
// release func. Without redis configured the guard is a no-op; single
// process deployments do not need cross-process exclusion.
func (g *Guard) Acquire(ctx context.Context, orgID, provider string) (func(), error) {
	if g == nil || g.locker == nil {
		return func() {}, nil
	}

	ttl := time.Duration(g.pipeline.Get().BackfillLockTTLMin) * time.Minute
	key := fmt.Sprintf(keyProviderBackfill, orgID, strings.ToLower(strings.TrimSpace(provider)))

	token, ok, err := g.locker.TryLock(ctx, key, ttl)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrBackfillInProgress
	}

	return func() {
		if err := g.locker.Release(context.WithoutCancel(ctx), key, token); err != nil {
			g.log.Warn("failed to release backfill lock",
				zap.String("key", key),
				zap.Error(err),
			)
		}
	}, nil
}

var Module = fx.Module("backfill",
	fx.Provide(NewGuard),
)
