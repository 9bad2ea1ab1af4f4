package database

import (
	"context"
	"fmt"
	"time"

	"github.com/straye-as/purchasing-api/internal/config"
	"github.com/straye-as/purchasing-api/internal/domain"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// NewDatabase opens the postgres connection pool.
func NewDatabase(cfg *config.DatabaseConfig, logger *zap.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.ConnectionString()), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
		// unique violations surface as gorm.ErrDuplicatedKey on both drivers
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetimeDuration())

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("Database connected",
		zap.String("host", cfg.Host),
		zap.String("database", cfg.Name),
		zap.Int("max_open_conns", cfg.MaxOpenConns),
	)

	return db, nil
}

// Models lists every persisted model, in dependency order.
func Models() []interface{} {
	return []interface{}{
		&domain.NumberSequence{},
		&domain.Supplier{},
		&domain.PurchaseRequest{},
		&domain.LineItem{},
		&domain.ShipmentEvent{},
		&domain.StatusHistory{},
		&domain.Order{},
		&domain.InvoiceGroup{},
		&domain.Invoice{},
		&domain.InvoicePhoto{},
	}
}

// AutoMigrate creates or updates the schema from the models. Production
// schemas are managed by the goose migrations; this is for development and tests.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(Models()...)
}

// HealthCheck pings the database.
func HealthCheck(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}

// PoolStats is the connection pool snapshot reported by /health/db.
type PoolStats struct {
	OpenConnections   int    `json:"openConnections"`
	InUse             int    `json:"inUse"`
	Idle              int    `json:"idle"`
	MaxOpenConns      int    `json:"maxOpenConnections"`
	WaitCount         int64  `json:"waitCount"`
	WaitDuration      string `json:"waitDuration"`
	MaxIdleClosed     int64  `json:"maxIdleClosed"`
	MaxLifetimeClosed int64  `json:"maxLifetimeClosed"`
}

// HealthCheckWithStats pings the database and returns pool statistics.
func HealthCheckWithStats(ctx context.Context, db *gorm.DB) (*PoolStats, error) {
	if err := HealthCheck(ctx, db); err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	s := sqlDB.Stats()
	return &PoolStats{
		OpenConnections:   s.OpenConnections,
		InUse:             s.InUse,
		Idle:              s.Idle,
		MaxOpenConns:      s.MaxOpenConnections,
		WaitCount:         s.WaitCount,
		WaitDuration:      s.WaitDuration.String(),
		MaxIdleClosed:     s.MaxIdleClosed,
		MaxLifetimeClosed: s.MaxLifetimeClosed,
	}, nil
}
