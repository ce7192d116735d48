package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/fiscalerp/backend/internal/domain/tenancy"
	"github.com/fiscalerp/backend/internal/infrastructure/config"
	"github.com/fiscalerp/backend/internal/infrastructure/logger"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Database holds the connection pool and the tenant guard
type Database struct {
	DB *gorm.DB
}

// Options tunes database construction
type Options struct {
	LogLevel gormlogger.LogLevel
	// Tracing installs the otelgorm plugin
	Tracing bool
}

// NewDatabase opens a guarded Postgres connection
func NewDatabase(cfg *config.DatabaseConfig, zapLogger *zap.Logger, opts Options) (*Database, error) {
	gormLog := logger.NewGormLogger(zapLogger, opts.LogLevel)

	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger:                 gormLog,
		SkipDefaultTransaction: true,
		PrepareStmt:            true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Minute)
	sqlDB.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTime) * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if opts.Tracing {
		if err := db.Use(otelgorm.NewPlugin()); err != nil {
			return nil, fmt.Errorf("failed to install tracing plugin: %w", err)
		}
	}
	if err := RegisterTenancyCallbacks(db); err != nil {
		return nil, fmt.Errorf("failed to install tenant guard: %w", err)
	}

	return &Database{DB: db}, nil
}

// Wrap installs the tenant guard on an existing gorm handle. Used by
// repository tests running over sqlite.
func Wrap(db *gorm.DB) (*Database, error) {
	if err := RegisterTenancyCallbacks(db); err != nil {
		return nil, err
	}
	return &Database{DB: db}, nil
}

// Close closes the database connection
func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Close()
}

// Ping checks if the database connection is alive
func (d *Database) Ping() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Ping()
}

// TenantTx runs fn inside one transaction with the row-level security
// setting bound to the scope's tenant. The gorm guard remains active inside;
// SET LOCAL is the second layer.
func (d *Database) TenantTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	scope, err := tenancy.FromContext(ctx)
	if err != nil {
		return err
	}
	return d.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if !scope.Global && d.DB.Dialector.Name() == "postgres" {
			if err := tx.Exec("SET LOCAL app.tenant_id = ?", scope.TenantID.String()).Error; err != nil {
				return fmt.Errorf("bind tenant to session: %w", err)
			}
		}
		return fn(tx)
	})
}
