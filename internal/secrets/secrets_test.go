package secrets

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestStore() *envStore {
	return &envStore{prefix: "PROVIDER_SECRET", log: zap.NewNop()}
}

func TestProviderSecretsReadsEnv(t *testing.T) {
	t.Setenv("PROVIDER_SECRET_PAGARME_API_KEY", "sk_test_123")
	t.Setenv("PROVIDER_SECRET_PAGARME_ACCOUNT_ID", "acc_9")
	t.Setenv("PROVIDER_SECRET_STRIPE_API_KEY", "sk_other")

	creds, err := newTestStore().ProviderSecrets(context.Background(), "pagarme")
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"api_key":    "sk_test_123",
		"account_id": "acc_9",
	}, creds)
}

func TestProviderSecretsMissingProvider(t *testing.T) {
	_, err := newTestStore().ProviderSecrets(context.Background(), "nonexistent")
	require.ErrorIs(t, err, ErrNoSecrets)

	_, err = newTestStore().ProviderSecrets(context.Background(), "  ")
	require.ErrorIs(t, err, ErrNoSecrets)
}
