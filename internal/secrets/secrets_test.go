package secrets

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azsecrets"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeVault struct {
	values map[string]string
	calls  int
}

func (f *fakeVault) GetSecret(_ context.Context, name string, _ string, _ *azsecrets.GetSecretOptions) (azsecrets.GetSecretResponse, error) {
	f.calls++
	v, ok := f.values[name]
	if !ok {
		return azsecrets.GetSecretResponse{}, errors.New("SecretNotFound")
	}
	return azsecrets.GetSecretResponse{Secret: azsecrets.Secret{Value: &v}}, nil
}

func TestProvider_AutoSourceResolvesEnvironmentInDevelopment(t *testing.T) {
	p, err := NewProvider(&ProviderConfig{Source: SourceAuto, Environment: "development"}, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, SourceEnvironment, p.Source())

	t.Setenv("PURCHASING_TEST_SECRET", "s3cret")
	val, err := p.GetSecret(context.Background(), "PURCHASING_TEST_SECRET")
	require.NoError(t, err)
	assert.Equal(t, "s3cret", val)

	_, err = p.GetSecret(context.Background(), "PURCHASING_TEST_MISSING")
	assert.Error(t, err)
}

func TestProvider_VaultRequiresName(t *testing.T) {
	_, err := NewProvider(&ProviderConfig{Source: SourceVault}, zap.NewNop())
	assert.Error(t, err)
}

func TestProvider_VaultValuesAreCached(t *testing.T) {
	vault := &fakeVault{values: map[string]string{"admin-api-key": "k1"}}
	p := &Provider{
		source:       SourceVault,
		vault:        vault,
		logger:       zap.NewNop(),
		cacheEnabled: true,
		cacheTTL:     time.Minute,
		cache:        make(map[string]cachedSecret),
	}

	for i := 0; i < 3; i++ {
		val, err := p.GetSecret(context.Background(), "admin-api-key")
		require.NoError(t, err)
		assert.Equal(t, "k1", val)
	}
	assert.Equal(t, 1, vault.calls)

	_, err := p.GetSecret(context.Background(), "missing")
	assert.Error(t, err)
}

func TestProvider_EnvOverridesVault(t *testing.T) {
	vault := &fakeVault{values: map[string]string{"redis-password": "from-vault"}}
	p := &Provider{source: SourceVault, vault: vault, logger: zap.NewNop(), cache: make(map[string]cachedSecret)}

	t.Setenv("PURCHASING_REDIS_PASSWORD", "from-env")
	val, err := p.GetSecretOrEnv(context.Background(), "redis-password", "PURCHASING_REDIS_PASSWORD")
	require.NoError(t, err)
	assert.Equal(t, "from-env", val)
	assert.Zero(t, vault.calls)
}
