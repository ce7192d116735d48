// Command vaultrotate rewraps every sealed certificate under a new vault
// master key. Run it after switching vault.master_key, with the retired key
// still available in vault.previous_master_key; once it reports zero
// remaining records the previous key can be dropped from the configuration.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/fiscalerp/backend/internal/domain/tenancy"
	"github.com/fiscalerp/backend/internal/infrastructure/config"
	"github.com/fiscalerp/backend/internal/infrastructure/logger"
	"github.com/fiscalerp/backend/internal/infrastructure/persistence"
	"github.com/fiscalerp/backend/internal/infrastructure/vault"
	"go.uber.org/zap"
)

func main() {
	var logLevel string
	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.Parse()

	log, err := logger.New(&logger.Config{
		Level:  logLevel,
		Format: "console",
		Output: "stdout",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = log.Sync()
	}()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}
	if cfg.Vault.MasterKey == "" {
		log.Fatal("vault.master_key must be set to the new key")
	}
	if cfg.Vault.PreviousMasterKey == "" {
		log.Fatal("vault.previous_master_key must be set to the key being retired")
	}

	current, err := vault.NewKeeper(cfg.Vault.MasterKey)
	if err != nil {
		log.Fatal("Invalid vault.master_key", zap.Error(err))
	}
	previous, err := vault.NewKeeper(cfg.Vault.PreviousMasterKey)
	if err != nil {
		log.Fatal("Invalid vault.previous_master_key", zap.Error(err))
	}
	if current.Fingerprint() == previous.Fingerprint() {
		log.Fatal("New and previous master keys are identical, nothing to rotate")
	}

	db, err := persistence.NewDatabase(&cfg.Database, log, persistence.Options{
		LogLevel: logger.MapGormLogLevel(logLevel),
	})
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		_ = db.Close()
	}()

	tenantRepo := persistence.NewGormTenantRepository(db.DB)
	vaultService := vault.NewService(persistence.NewGormCertificateRepository(db.DB), current)

	ctx := context.Background()
	tenants, err := tenantRepo.ListActive(tenancy.WithGlobal(ctx))
	if err != nil {
		log.Fatal("Failed to enumerate tenants", zap.Error(err))
	}

	total := 0
	failed := 0
	for _, tenant := range tenants {
		tenantCtx := tenancy.WithTenant(ctx, tenant.ID)
		rotated, err := vaultService.RotateKey(tenantCtx, previous)
		total += rotated
		if err != nil {
			failed++
			log.Error("rotation failed for tenant, continuing",
				zap.String("tenant", tenant.Code), zap.Error(err))
			continue
		}
		if rotated > 0 {
			log.Info("tenant rotated",
				zap.String("tenant", tenant.Code), zap.Int("certificates", rotated))
		}
	}

	log.Info("vault key rotation finished",
		zap.Int("tenants", len(tenants)),
		zap.Int("certificates_rewrapped", total),
		zap.Int("tenants_failed", failed),
		zap.String("new_fingerprint", current.Fingerprint()))
	if failed > 0 {
		os.Exit(1)
	}
}
