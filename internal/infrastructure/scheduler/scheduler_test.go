package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	appfiscal "github.com/fiscalerp/backend/internal/application/fiscal"
	"github.com/fiscalerp/backend/internal/domain/certificate"
	"github.com/fiscalerp/backend/internal/domain/tenancy"
	"github.com/fiscalerp/backend/internal/infrastructure/sefaz"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeTenants struct {
	tenants   []tenancy.Tenant
	lastScope tenancy.Scope
	err       error
}

func (f *fakeTenants) FindByID(context.Context, uuid.UUID) (*tenancy.Tenant, error) {
	return nil, nil
}

func (f *fakeTenants) ListActive(ctx context.Context) ([]tenancy.Tenant, error) {
	scope, err := tenancy.FromContext(ctx)
	if err != nil {
		return nil, err
	}
	f.lastScope = scope
	return f.tenants, f.err
}

func (f *fakeTenants) Save(context.Context, *tenancy.Tenant) error { return nil }

type recordingRunner struct {
	mu   sync.Mutex
	runs []run
}

type run struct {
	tenantID uuid.UUID
	service  sefaz.Service
	issuer   string
}

func (r *recordingRunner) RunDFe(ctx context.Context, service sefaz.Service, issuerCNPJ string) (*appfiscal.RunSummary, error) {
	tenantID, err := tenancy.TenantFromContext(ctx)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.runs = append(r.runs, run{tenantID: tenantID, service: service, issuer: issuerCNPJ})
	r.mu.Unlock()
	return &appfiscal.RunSummary{}, nil
}

type noCerts struct{}

func (noCerts) ActiveIssuers(context.Context) ([]string, error) {
	return nil, nil
}

func (noCerts) ExpiringWithin(context.Context, time.Duration) ([]certificate.Certificate, error) {
	return nil, nil
}

type issuerCerts struct {
	issuers []string
}

func (c issuerCerts) ActiveIssuers(context.Context) ([]string, error) {
	return c.issuers, nil
}

func (issuerCerts) ExpiringWithin(context.Context, time.Duration) ([]certificate.Certificate, error) {
	return nil, nil
}

func mustTenant(t *testing.T, code string) tenancy.Tenant {
	t.Helper()
	tenant, err := tenancy.NewTenant(code, "Tenant "+code, "12345678000190")
	require.NoError(t, err)
	return *tenant
}

func TestSweepRunsBothServicesPerTenant(t *testing.T) {
	tenants := &fakeTenants{tenants: []tenancy.Tenant{
		mustTenant(t, "alpha"),
		mustTenant(t, "beta"),
	}}
	runner := &recordingRunner{}
	s := NewIngestionScheduler(Config{MaxConcurrent: 2}, tenants, runner, noCerts{}, zap.NewNop())

	s.Sweep(context.Background())

	assert.True(t, tenants.lastScope.Global)
	require.Len(t, runner.runs, 4)

	perTenant := map[uuid.UUID]map[sefaz.Service]bool{}
	for _, r := range runner.runs {
		if perTenant[r.tenantID] == nil {
			perTenant[r.tenantID] = map[sefaz.Service]bool{}
		}
		perTenant[r.tenantID][r.service] = true
	}
	require.Len(t, perTenant, 2)
	for _, services := range perTenant {
		assert.True(t, services[sefaz.ServiceNFe])
		assert.True(t, services[sefaz.ServiceCTe])
	}

	// without issuer enumeration each run falls back to the newest active
	// certificate
	for _, r := range runner.runs {
		assert.Empty(t, r.issuer)
	}
}

func TestSweepRunsEveryActiveIssuer(t *testing.T) {
	tenants := &fakeTenants{tenants: []tenancy.Tenant{mustTenant(t, "alpha")}}
	runner := &recordingRunner{}
	certs := issuerCerts{issuers: []string{"12345678000190", "98765432000155"}}
	s := NewIngestionScheduler(Config{}, tenants, runner, certs, zap.NewNop())

	s.Sweep(context.Background())

	// two issuers, two services each
	require.Len(t, runner.runs, 4)
	perIssuer := map[string]map[sefaz.Service]bool{}
	for _, r := range runner.runs {
		if perIssuer[r.issuer] == nil {
			perIssuer[r.issuer] = map[sefaz.Service]bool{}
		}
		perIssuer[r.issuer][r.service] = true
	}
	require.Len(t, perIssuer, 2)
	for _, services := range perIssuer {
		assert.True(t, services[sefaz.ServiceNFe])
		assert.True(t, services[sefaz.ServiceCTe])
	}
}

func TestSweepSurvivesEnumerationFailure(t *testing.T) {
	tenants := &fakeTenants{err: tenancy.ErrNotScoped}
	runner := &recordingRunner{}
	s := NewIngestionScheduler(Config{}, tenants, runner, noCerts{}, zap.NewNop())

	s.Sweep(context.Background())
	assert.Empty(t, runner.runs)
}

func TestStartStop(t *testing.T) {
	tenants := &fakeTenants{}
	runner := &recordingRunner{}
	s := NewIngestionScheduler(Config{Interval: time.Hour}, tenants, runner, noCerts{}, zap.NewNop())

	require.NoError(t, s.Start(context.Background()))
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))

	// stopping twice is a no-op
	require.NoError(t, s.Stop(ctx))
}
