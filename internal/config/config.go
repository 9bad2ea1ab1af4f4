package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata" // delivery dates are compared in a configured zone

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"github.com/straye-as/purchasing-api/internal/secrets"
	"go.uber.org/zap"
)

// Config holds all application configuration
type Config struct {
	App         AppConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	AzureAd     AzureAdConfig
	ApiKey      ApiKeyConfig
	Storage     StorageConfig
	Secrets     SecretsConfig
	Logging     LoggingConfig
	Server      ServerConfig
	CORS        CORSConfig
	Security    SecurityConfig
	RateLimit   RateLimitConfig
	Fulfillment FulfillmentConfig
}

type AppConfig struct {
	Name        string
	Environment string
	Port        int
}

type DatabaseConfig struct {
	Host            string
	Port            int
	Name            string
	User            string
	Password        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int
}

// RedisConfig configures the optional redis connection used for per-line-item
// shipment locks. When disabled, shipments rely on optimistic versioning only.
type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	// LockTTL is the lock expiry in seconds
	LockTTL int
	// LockWait is how long (milliseconds) a caller waits for a held lock before giving up
	LockWait int
}

type AzureAdConfig struct {
	TenantId       string
	ClientId       string
	InstanceUrl    string
	RequiredScopes string
}

type ApiKeyConfig struct {
	SecretName string
	Value      string // Loaded from secrets or environment
}

type StorageConfig struct {
	Mode                  string
	LocalBasePath         string
	CloudConnectionString string
	CloudContainer        string
	MaxUploadSizeMB       int64
}

type SecretsConfig struct {
	// Source determines where secrets are loaded from: "environment", "vault", or "auto"
	Source       string
	KeyVaultName string
	CacheEnabled bool
	CacheTTL     int // seconds
}

type LoggingConfig struct {
	Level  string
	Format string
}

type ServerConfig struct {
	ReadTimeout    int
	WriteTimeout   int
	RequestTimeout int
	EnableSwagger  bool
}

// CORSConfig holds CORS configuration
type CORSConfig struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	ExposedHeaders   []string
	AllowCredentials bool
	// MaxAge is the max age (in seconds) for preflight cache
	MaxAge int
}

// SecurityConfig holds security header configuration
type SecurityConfig struct {
	EnableHSTS            bool
	HSTSMaxAge            int
	HSTSIncludeSubdomains bool
	HSTSPreload           bool
	ContentSecurityPolicy string
	// FrameOptions sets the X-Frame-Options header (DENY, SAMEORIGIN, or empty to disable)
	FrameOptions       string
	ContentTypeNosniff bool
	ReferrerPolicy     string
	PermissionsPolicy  string
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Enabled bool
	// RequestsPerMinute is the limit for unauthenticated requests (per IP)
	RequestsPerMinute int
	// RequestsPerMinuteAuth is the limit for authenticated requests (per user)
	RequestsPerMinuteAuth int
	WhitelistIPs          []string
	WhitelistPaths        []string
}

// FulfillmentConfig holds the policies of the shipment ledger, the status
// reconciler and the invoice aggregator.
type FulfillmentConfig struct {
	// StrictAmountParsing rejects unparseable invoice/order amounts instead of
	// counting them as zero.
	StrictAmountParsing bool
	// NegativeGrandTotalPolicy is "allow" or "reject".
	NegativeGrandTotalPolicy string
	// DeliveryTimezone is the IANA zone used to compare delivery dates by calendar day.
	DeliveryTimezone string
	// RequestNumberPrefix prefixes generated purchase request numbers.
	RequestNumberPrefix string

	ReconcileSweepEnabled bool
	// ReconcileSweepCron uses the six-field (with seconds) cron format.
	ReconcileSweepCron    string
	ReconcileSweepTimeout int // seconds
	// ReconcileSweepBatchSize is how many open request ids one sweep page loads.
	ReconcileSweepBatchSize int
}

// ConnectionString builds PostgreSQL connection string
func (d *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
}

// ReadTimeoutDuration returns read timeout as duration
func (s *ServerConfig) ReadTimeoutDuration() time.Duration {
	return time.Duration(s.ReadTimeout) * time.Second
}

// WriteTimeoutDuration returns write timeout as duration
func (s *ServerConfig) WriteTimeoutDuration() time.Duration {
	return time.Duration(s.WriteTimeout) * time.Second
}

// RequestTimeoutDuration returns request timeout as duration
func (s *ServerConfig) RequestTimeoutDuration() time.Duration {
	return time.Duration(s.RequestTimeout) * time.Second
}

// ConnMaxLifetimeDuration returns connection max lifetime as duration
func (d *DatabaseConfig) ConnMaxLifetimeDuration() time.Duration {
	return time.Duration(d.ConnMaxLifetime) * time.Second
}

func (r *RedisConfig) LockTTLDuration() time.Duration {
	return time.Duration(r.LockTTL) * time.Second
}

func (r *RedisConfig) LockWaitDuration() time.Duration {
	return time.Duration(r.LockWait) * time.Millisecond
}

// Location resolves DeliveryTimezone, falling back to UTC.
func (f *FulfillmentConfig) Location() *time.Location {
	if f.DeliveryTimezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(f.DeliveryTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (f *FulfillmentConfig) ReconcileSweepTimeoutDuration() time.Duration {
	return time.Duration(f.ReconcileSweepTimeout) * time.Second
}

// Load loads configuration from file and environment variables.
// It does not consult the vault; use LoadWithSecrets for that.
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("json")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Environment variables override config file
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.ApiKey.Value == "" {
		cfg.ApiKey.Value = v.GetString("ADMIN_API_KEY")
	}
	if cfg.AzureAd.TenantId == "" {
		cfg.AzureAd.TenantId = v.GetString("AZURE_TENANT_ID")
	}
	if cfg.AzureAd.ClientId == "" {
		cfg.AzureAd.ClientId = v.GetString("AZURE_CLIENT_ID")
	}
	if cfg.AzureAd.RequiredScopes == "" {
		cfg.AzureAd.RequiredScopes = v.GetString("AZURE_REQUIRED_SCOPES")
	}
	if cfg.Secrets.KeyVaultName == "" {
		cfg.Secrets.KeyVaultName = v.GetString("AZURE_KEY_VAULT_NAME")
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = v.GetString("REDIS_URL")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks values that would otherwise only fail deep inside a request.
func (c *Config) Validate() error {
	switch c.Fulfillment.NegativeGrandTotalPolicy {
	case "allow", "reject":
	default:
		return fmt.Errorf("invalid fulfillment.negativeGrandTotalPolicy %q (want allow or reject)", c.Fulfillment.NegativeGrandTotalPolicy)
	}
	if c.Fulfillment.DeliveryTimezone != "" {
		if _, err := time.LoadLocation(c.Fulfillment.DeliveryTimezone); err != nil {
			return fmt.Errorf("invalid fulfillment.deliveryTimezone: %w", err)
		}
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required when redis.enabled=true")
	}
	return nil
}

// LoadWithSecrets loads configuration and resolves secrets from Azure Key Vault
// when USE_AZURE_KEY_VAULT=true and the environment is staging or production.
// Otherwise secrets come from environment variables.
func LoadWithSecrets(ctx context.Context, logger *zap.Logger) (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}

	useKeyVault := strings.ToLower(os.Getenv("USE_AZURE_KEY_VAULT")) == "true"
	isValidEnv := cfg.App.Environment == "staging" || cfg.App.Environment == "production"

	if !useKeyVault {
		logger.Info("USE_AZURE_KEY_VAULT not enabled, using environment variables for secrets",
			zap.String("environment", cfg.App.Environment),
		)
		return cfg, nil
	}

	if !isValidEnv {
		logger.Warn("USE_AZURE_KEY_VAULT is enabled but environment is not staging or production, using environment variables",
			zap.String("environment", cfg.App.Environment),
		)
		return cfg, nil
	}

	if cfg.Secrets.KeyVaultName == "" {
		return nil, fmt.Errorf("AZURE_KEY_VAULT_NAME is required when USE_AZURE_KEY_VAULT=true")
	}

	provider, err := secrets.NewProvider(&secrets.ProviderConfig{
		Source:       secrets.SourceVault,
		VaultName:    cfg.Secrets.KeyVaultName,
		Environment:  cfg.App.Environment,
		CacheEnabled: cfg.Secrets.CacheEnabled,
		CacheTTL:     time.Duration(cfg.Secrets.CacheTTL) * time.Second,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize secrets provider: %w", err)
	}

	logger.Info("Loading secrets from Azure Key Vault",
		zap.String("key_vault_name", cfg.Secrets.KeyVaultName),
	)

	resolve := func(dst *string, secretName, envVar string) {
		if val, err := provider.GetSecretOrEnv(ctx, secretName, envVar); err == nil && val != "" {
			*dst = val
		}
	}

	resolve(&cfg.Database.Host, "PURCHASING-DB-HOST", "DATABASE_HOST")
	resolve(&cfg.Database.User, "PURCHASING-DB-USER", "DATABASE_USER")
	resolve(&cfg.Database.Password, "PURCHASING-DB-PASSWORD", "DATABASE_PASSWORD")
	if sslMode := os.Getenv("DATABASE_SSLMODE"); sslMode != "" {
		cfg.Database.SSLMode = sslMode
	}
	resolve(&cfg.Redis.Password, "redis-password", "REDIS_PASSWORD")
	resolve(&cfg.AzureAd.TenantId, "azure-tenant-id", "AZURE_TENANT_ID")
	resolve(&cfg.AzureAd.ClientId, "azure-client-id", "AZURE_CLIENT_ID")
	resolve(&cfg.ApiKey.Value, "admin-api-key", "ADMIN_API_KEY")
	resolve(&cfg.Storage.CloudConnectionString, "storage-connection-string", "STORAGE_CLOUDCONNECTIONSTRING")

	logger.Info("Secrets loaded from vault successfully")
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "Straye Purchasing API")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.port", 8080)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "purchasing")
	v.SetDefault("database.user", "purchasing_user")
	v.SetDefault("database.password", "purchasing_password")
	v.SetDefault("database.sslMode", "disable")
	v.SetDefault("database.maxOpenConns", 25)
	v.SetDefault("database.maxIdleConns", 5)
	v.SetDefault("database.connMaxLifetime", 300)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.lockTTL", 30)
	v.SetDefault("redis.lockWait", 2000)

	v.SetDefault("secrets.source", "auto")
	v.SetDefault("secrets.cacheEnabled", true)
	v.SetDefault("secrets.cacheTTL", 300)

	v.SetDefault("azuread.instanceUrl", "https://login.microsoftonline.com/")

	v.SetDefault("storage.mode", "local")
	v.SetDefault("storage.localBasePath", "./storage")
	v.SetDefault("storage.cloudContainer", "invoice-photos")
	v.SetDefault("storage.maxUploadSizeMB", 20)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("server.readTimeout", 30)
	v.SetDefault("server.writeTimeout", 30)
	v.SetDefault("server.requestTimeout", 60)
	v.SetDefault("server.enableSwagger", true)

	v.SetDefault("cors.allowedOrigins", []string{})
	v.SetDefault("cors.allowedMethods", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"})
	v.SetDefault("cors.allowedHeaders", []string{"Accept", "Authorization", "Content-Type", "X-API-Key", "X-Request-ID", "Idempotency-Key"})
	v.SetDefault("cors.exposedHeaders", []string{"Location", "X-Request-ID"})
	v.SetDefault("cors.allowCredentials", true)
	v.SetDefault("cors.maxAge", 300)

	v.SetDefault("security.enableHSTS", false)
	v.SetDefault("security.hstsMaxAge", 31536000)
	v.SetDefault("security.hstsIncludeSubdomains", true)
	v.SetDefault("security.hstsPreload", false)
	v.SetDefault("security.contentSecurityPolicy", "default-src 'self'")
	v.SetDefault("security.frameOptions", "DENY")
	v.SetDefault("security.contentTypeNosniff", true)
	v.SetDefault("security.referrerPolicy", "strict-origin-when-cross-origin")
	v.SetDefault("security.permissionsPolicy", "geolocation=(), microphone=(), camera=()")

	v.SetDefault("rateLimit.enabled", true)
	v.SetDefault("rateLimit.requestsPerMinute", 60)
	v.SetDefault("rateLimit.requestsPerMinuteAuth", 120)
	v.SetDefault("rateLimit.whitelistIPs", []string{"127.0.0.1", "::1"})
	v.SetDefault("rateLimit.whitelistPaths", []string{"/health", "/health/db", "/health/ready"})

	v.SetDefault("fulfillment.strictAmountParsing", true)
	v.SetDefault("fulfillment.negativeGrandTotalPolicy", "allow")
	v.SetDefault("fulfillment.deliveryTimezone", "Europe/Istanbul")
	v.SetDefault("fulfillment.requestNumberPrefix", "PR")
	v.SetDefault("fulfillment.reconcileSweepEnabled", true)
	v.SetDefault("fulfillment.reconcileSweepCron", "0 */30 * * * *")
	v.SetDefault("fulfillment.reconcileSweepTimeout", 120)
	v.SetDefault("fulfillment.reconcileSweepBatchSize", 500)
}
