// Package scheduler drives the periodic ingestion runs. Each tick it
// enumerates the active tenants under the global scope and executes one
// bounded DF-e run per tenant and service under that tenant's scope.
package scheduler

import (
	"context"
	"sync"
	"time"

	appfiscal "github.com/fiscalerp/backend/internal/application/fiscal"
	"github.com/fiscalerp/backend/internal/domain/certificate"
	"github.com/fiscalerp/backend/internal/domain/tenancy"
	"github.com/fiscalerp/backend/internal/infrastructure/sefaz"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Runner executes one ingestion run under an already scoped context. An
// empty issuerCNPJ uses the tenant's newest active certificate.
type Runner interface {
	RunDFe(ctx context.Context, service sefaz.Service, issuerCNPJ string) (*appfiscal.RunSummary, error)
}

// CertWatcher enumerates the scoped tenant's certificate state: which issuer
// CNPJs hold an active certificate and which certificates approach expiry.
type CertWatcher interface {
	ActiveIssuers(ctx context.Context) ([]string, error)
	ExpiringWithin(ctx context.Context, window time.Duration) ([]certificate.Certificate, error)
}

// Config bounds the scheduler
type Config struct {
	Interval time.Duration
	// MaxConcurrent caps how many tenants ingest at the same time
	MaxConcurrent int
	// RunTimeout bounds one tenant's full run (both services)
	RunTimeout time.Duration
	// ExpiryWarningWindow is the certificate expiry warning horizon
	ExpiryWarningWindow time.Duration
}

// IngestionScheduler runs the ingestion loop on a fixed interval
type IngestionScheduler struct {
	cfg     Config
	tenants tenancy.TenantRepository
	runner  Runner
	certs   CertWatcher
	logger  *zap.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// NewIngestionScheduler creates a scheduler
func NewIngestionScheduler(cfg Config, tenants tenancy.TenantRepository, runner Runner, certs CertWatcher, logger *zap.Logger) *IngestionScheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 4
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = 10 * time.Minute
	}
	if cfg.ExpiryWarningWindow <= 0 {
		cfg.ExpiryWarningWindow = 30 * 24 * time.Hour
	}
	return &IngestionScheduler{
		cfg:     cfg,
		tenants: tenants,
		runner:  runner,
		certs:   certs,
		logger:  logger,
	}
}

// Start launches the scheduler loop. The first sweep runs after one interval.
func (s *IngestionScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}
	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true

	go s.loop(loopCtx)
	s.logger.Info("ingestion scheduler started",
		zap.Duration("interval", s.cfg.Interval),
		zap.Int("max_concurrent", s.cfg.MaxConcurrent))
	return nil
}

// Stop halts the loop and waits for in-flight runs to finish
func (s *IngestionScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	cancel := s.cancel
	done := s.done
	s.mu.Unlock()

	cancel()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *IngestionScheduler) loop(ctx context.Context) {
	defer close(s.done)
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs one ingestion pass over every active tenant. Exposed for the
// manual trigger endpoint and for tests.
func (s *IngestionScheduler) Sweep(ctx context.Context) {
	tenants, err := s.tenants.ListActive(tenancy.WithGlobal(ctx))
	if err != nil {
		s.logger.Error("tenant enumeration failed", zap.Error(err))
		return
	}

	sem := make(chan struct{}, s.cfg.MaxConcurrent)
	var wg sync.WaitGroup
	for _, tenant := range tenants {
		select {
		case <-ctx.Done():
			wg.Wait()
			return
		case sem <- struct{}{}:
		}
		wg.Add(1)
		go func(tenantID uuid.UUID, code string) {
			defer wg.Done()
			defer func() { <-sem }()
			s.runTenant(ctx, tenantID, code)
		}(tenant.ID, tenant.Code)
	}
	wg.Wait()
}

// runTenant executes both distribution services for every issuer the tenant
// holds an active certificate for. A failure in one run does not stop the
// others.
func (s *IngestionScheduler) runTenant(ctx context.Context, tenantID uuid.UUID, code string) {
	runCtx, cancel := context.WithTimeout(tenancy.WithTenant(ctx, tenantID), s.cfg.RunTimeout)
	defer cancel()

	log := s.logger.With(zap.String("tenant", code))
	for _, issuer := range s.tenantIssuers(runCtx, log) {
		for _, service := range []sefaz.Service{sefaz.ServiceNFe, sefaz.ServiceCTe} {
			summary, err := s.runner.RunDFe(runCtx, service, issuer)
			if err != nil {
				log.Warn("scheduled ingestion run failed",
					zap.String("service", string(service)),
					zap.String("issuer", issuer), zap.Error(err))
				continue
			}
			log.Info("scheduled ingestion run finished",
				zap.String("service", string(service)),
				zap.String("issuer", issuer),
				zap.Int("new", summary.New),
				zap.Int("updated", summary.Updated),
				zap.Int("errors", summary.Errors),
				zap.Int64("final_nsu", summary.FinalNSU))
		}
	}

	s.warnExpiringCertificates(runCtx, log)
}

// tenantIssuers lists the issuers to sweep. When enumeration is unavailable
// a single run with the newest active certificate is attempted.
func (s *IngestionScheduler) tenantIssuers(ctx context.Context, log *zap.Logger) []string {
	if s.certs == nil {
		return []string{""}
	}
	issuers, err := s.certs.ActiveIssuers(ctx)
	if err != nil {
		log.Warn("issuer enumeration failed", zap.Error(err))
		return []string{""}
	}
	if len(issuers) == 0 {
		return []string{""}
	}
	return issuers
}

func (s *IngestionScheduler) warnExpiringCertificates(ctx context.Context, log *zap.Logger) {
	if s.certs == nil {
		return
	}
	expiring, err := s.certs.ExpiringWithin(ctx, s.cfg.ExpiryWarningWindow)
	if err != nil {
		log.Warn("certificate expiry check failed", zap.Error(err))
		return
	}
	for _, cert := range expiring {
		log.Warn("certificate approaching expiry",
			zap.String("alias", cert.Alias),
			zap.String("cnpj", cert.CNPJ),
			zap.Time("not_after", cert.NotAfter))
	}
}
