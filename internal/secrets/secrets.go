package secrets

import (
	"context"
	"errors"
	"os"
	"strings"

	"github.com/smallbiznis/ledgerlink/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ErrNoSecrets = errors.New("no_provider_secrets")

// Store resolves provider credentials for backfill triggers. The env-backed
// implementation reads <PREFIX>_<PROVIDER>_<KEY> variables (default prefix
// PROVIDER_SECRET) and returns them keyed by the lowercased <KEY> part.
type Store interface {
	ProviderSecrets(ctx context.Context, provider string) (map[string]string, error)
}

type Params struct {
	fx.In

	Config config.Config
	Log    *zap.Logger
}

type envStore struct {
	prefix string
	log    *zap.Logger
}

func NewEnvStore(p Params) Store {
	prefix := strings.TrimSpace(p.Config.ProviderSecretPrefix)
	if prefix == "" {
		prefix = "PROVIDER_SECRET"
	}
	return &envStore{
		prefix: strings.TrimSuffix(prefix, "_"),
		log:    p.Log.Named("secrets.env"),
	}
}

func (s *envStore) ProviderSecrets(_ context.Context, provider string) (map[string]string, error) {
	provider = strings.ToUpper(strings.TrimSpace(provider))
	if provider == "" {
		return nil, ErrNoSecrets
	}

	want := s.prefix + "_" + provider + "_"
	out := map[string]string{}
	for _, entry := range os.Environ() {
		name, value, ok := strings.Cut(entry, "=")
		if !ok || !strings.HasPrefix(name, want) {
			continue
		}
		key := strings.ToLower(strings.TrimPrefix(name, want))
		if key == "" || value == "" {
			continue
		}
		out[key] = value
	}
	if len(out) == 0 {
		return nil, ErrNoSecrets
	}
	return out, nil
}

var Module = fx.Module("secrets",
	fx.Provide(NewEnvStore),
)
