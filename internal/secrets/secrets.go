package secrets

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azsecrets"
	"go.uber.org/zap"
)

// SecretSource defines where secrets are loaded from
type SecretSource string

const (
	SourceEnvironment SecretSource = "environment"
	SourceVault       SecretSource = "vault"
	// SourceAuto uses the environment in development and the vault elsewhere.
	SourceAuto SecretSource = "auto"
)

// ProviderConfig holds configuration for the secrets provider
type ProviderConfig struct {
	Source       SecretSource
	VaultName    string
	Environment  string
	CacheEnabled bool
	CacheTTL     time.Duration
}

// vaultReader is the slice of the Key Vault client the provider uses.
type vaultReader interface {
	GetSecret(ctx context.Context, name string, version string, options *azsecrets.GetSecretOptions) (azsecrets.GetSecretResponse, error)
}

// Provider resolves secrets from environment variables or Azure Key Vault.
type Provider struct {
	source SecretSource
	vault  vaultReader
	logger *zap.Logger

	cacheEnabled bool
	cacheTTL     time.Duration
	mu           sync.Mutex
	cache        map[string]cachedSecret
}

type cachedSecret struct {
	value     string
	expiresAt time.Time
}

// NewProvider creates a new secrets provider. Vault access goes through
// DefaultAzureCredential (env credentials, managed identity or az cli).
func NewProvider(cfg *ProviderConfig, logger *zap.Logger) (*Provider, error) {
	source := cfg.Source
	if source == SourceAuto {
		switch cfg.Environment {
		case "development", "local", "":
			source = SourceEnvironment
		default:
			source = SourceVault
		}
	}

	p := &Provider{
		source:       source,
		logger:       logger,
		cacheEnabled: cfg.CacheEnabled,
		cacheTTL:     cfg.CacheTTL,
		cache:        make(map[string]cachedSecret),
	}
	if p.cacheTTL == 0 {
		p.cacheTTL = 5 * time.Minute
	}

	if source == SourceVault {
		if cfg.VaultName == "" {
			return nil, fmt.Errorf("vault name required when using vault secret source")
		}
		cred, err := azidentity.NewDefaultAzureCredential(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create Azure credential: %w", err)
		}
		vaultURL := fmt.Sprintf("https://%s.vault.azure.net/", cfg.VaultName)
		client, err := azsecrets.NewClient(vaultURL, cred, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create Key Vault client: %w", err)
		}
		p.vault = client
	}

	logger.Info("Secrets provider initialized",
		zap.String("source", string(source)),
		zap.String("environment", cfg.Environment),
	)

	return p, nil
}

// GetSecret retrieves a secret by name. For the environment source the name
// is an environment variable.
func (p *Provider) GetSecret(ctx context.Context, secretName string) (string, error) {
	switch p.source {
	case SourceEnvironment:
		value := os.Getenv(secretName)
		if value == "" {
			return "", fmt.Errorf("environment variable '%s' not set", secretName)
		}
		return value, nil
	case SourceVault:
		return p.fromVault(ctx, secretName)
	default:
		return "", fmt.Errorf("unknown secret source: %s", p.source)
	}
}

// GetSecretOrEnv prefers an explicitly set environment variable over the
// configured source.
func (p *Provider) GetSecretOrEnv(ctx context.Context, secretName, envName string) (string, error) {
	if envValue := os.Getenv(envName); envValue != "" {
		return envValue, nil
	}
	return p.GetSecret(ctx, secretName)
}

func (p *Provider) Source() SecretSource {
	return p.source
}

func (p *Provider) fromVault(ctx context.Context, secretName string) (string, error) {
	if p.vault == nil {
		return "", fmt.Errorf("vault client not initialized")
	}

	if p.cacheEnabled {
		p.mu.Lock()
		cached, ok := p.cache[secretName]
		p.mu.Unlock()
		if ok && time.Now().Before(cached.expiresAt) {
			return cached.value, nil
		}
	}

	resp, err := p.vault.GetSecret(ctx, secretName, "", nil)
	if err != nil {
		p.logger.Error("Failed to get secret from Key Vault",
			zap.String("secret_name", secretName),
			zap.Error(err),
		)
		return "", fmt.Errorf("failed to get secret '%s': %w", secretName, err)
	}
	if resp.Value == nil {
		return "", fmt.Errorf("secret '%s' has no value", secretName)
	}

	if p.cacheEnabled {
		p.mu.Lock()
		p.cache[secretName] = cachedSecret{value: *resp.Value, expiresAt: time.Now().Add(p.cacheTTL)}
		p.mu.Unlock()
	}

	return *resp.Value, nil
}
