package vault

import (
	"context"
	"crypto/tls"
	"fmt"
	"regexp"
	"time"

	"github.com/fiscalerp/backend/internal/domain/certificate"
	"github.com/fiscalerp/backend/internal/domain/tenancy"
	"github.com/fiscalerp/backend/internal/infrastructure/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// cnpjInCN matches the CNPJ suffix ICP-Brasil certificates carry in the
// subject CN, e.g. "EMPRESA LTDA:12345678000190".
var cnpjInCN = regexp.MustCompile(`:(\d{14})$`)

// Service is the certificate vault. It seals PKCS#12 bundles on import and
// reconstructs TLS client certificates on demand for SEFAZ transmissions.
type Service struct {
	repo   certificate.Repository
	keeper *Keeper
}

// NewService creates a vault service
func NewService(repo certificate.Repository, keeper *Keeper) *Service {
	return &Service{repo: repo, keeper: keeper}
}

// Import validates a PKCS#12 bundle against its password, seals both and
// stores the record for the tenant bound to ctx. A previously active
// certificate of the same issuer CNPJ is retired; certificates of other
// branches stay active.
func (s *Service) Import(ctx context.Context, alias string, pfx []byte, password string) (*certificate.Certificate, error) {
	if _, err := tenancy.TenantFromContext(ctx); err != nil {
		return nil, err
	}

	_, leaf, err := InspectBundle(pfx, password)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", certificate.ErrDecryptionKeyMismatch, err)
	}

	sealedPFX, err := s.keeper.Seal(pfx)
	if err != nil {
		return nil, fmt.Errorf("seal bundle: %w", err)
	}
	sealedPassword, err := s.keeper.Seal([]byte(password))
	if err != nil {
		return nil, fmt.Errorf("seal password: %w", err)
	}

	cnpj := ""
	if m := cnpjInCN.FindStringSubmatch(leaf.Subject.CommonName); m != nil {
		cnpj = m[1]
	}

	tenantID, _ := tenancy.TenantFromContext(ctx)
	cert, err := certificate.NewCertificate(tenantID, alias, leaf.Subject.CommonName, cnpj,
		leaf.NotBefore, leaf.NotAfter, sealedPFX, sealedPassword, s.keeper.Fingerprint())
	if err != nil {
		return nil, err
	}
	cert.IssuerCN = leaf.Issuer.CommonName
	cert.SerialNumber = leaf.SerialNumber.Text(16)

	if previous, err := s.repo.FindActive(ctx, cert.CNPJ); err == nil {
		previous.Deactivate()
		if err := s.repo.Update(ctx, previous); err != nil {
			return nil, fmt.Errorf("retire previous certificate: %w", err)
		}
	}

	if err := s.repo.Save(ctx, cert); err != nil {
		return nil, err
	}
	logger.L(ctx).Info("certificate imported",
		zap.String("alias", alias),
		zap.String("subject", leaf.Subject.CommonName),
		zap.Time("not_after", leaf.NotAfter))
	return cert, nil
}

// ActiveTLS returns the tenant's active certificate as a TLS client
// credential for mutual TLS against SEFAZ. An empty issuerCNPJ picks the
// newest active certificate across the tenant's branches.
func (s *Service) ActiveTLS(ctx context.Context, issuerCNPJ string) (*tls.Certificate, *certificate.Certificate, error) {
	cert, err := s.repo.FindActive(ctx, issuerCNPJ)
	if err != nil {
		return nil, nil, err
	}
	if cert.IsExpired(time.Now()) {
		return nil, nil, fmt.Errorf("%w: expired at %s", certificate.ErrExpiredCertificate, cert.NotAfter.Format(time.RFC3339))
	}
	if cert.KeyFingerprint != s.keeper.Fingerprint() {
		return nil, nil, fmt.Errorf("%w: sealed under key %s", certificate.ErrDecryptionKeyMismatch, cert.KeyFingerprint)
	}

	pfx, err := s.keeper.Open(cert.SealedPFX)
	if err != nil {
		return nil, nil, err
	}
	password, err := s.keeper.Open(cert.SealedPassword)
	if err != nil {
		return nil, nil, err
	}
	tlsCert, _, err := InspectBundle(pfx, string(password))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", certificate.ErrDecryptionKeyMismatch, err)
	}
	return tlsCert, cert, nil
}

// List returns the tenant's certificates, sealed material excluded from use
func (s *Service) List(ctx context.Context) ([]certificate.Certificate, error) {
	return s.repo.List(ctx)
}

// Deactivate retires a certificate by ID
func (s *Service) Deactivate(ctx context.Context, id uuid.UUID) error {
	cert, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	cert.Deactivate()
	return s.repo.Update(ctx, cert)
}

// ActiveIssuers lists the distinct issuer CNPJs the tenant holds an active
// certificate for. The scheduler runs one ingestion pass per issuer.
func (s *Service) ActiveIssuers(ctx context.Context) ([]string, error) {
	certs, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var issuers []string
	for _, c := range certs {
		if !c.IsActive || c.CNPJ == "" || seen[c.CNPJ] {
			continue
		}
		seen[c.CNPJ] = true
		issuers = append(issuers, c.CNPJ)
	}
	return issuers, nil
}

// RotateKey reseals every certificate of the scoped tenant that is still
// wrapped under the previous master key. Records already under the current
// key are left alone. Returns how many records were rewrapped.
func (s *Service) RotateKey(ctx context.Context, previous *Keeper) (int, error) {
	if previous == nil {
		return 0, fmt.Errorf("previous keeper is required")
	}
	certs, err := s.repo.List(ctx)
	if err != nil {
		return 0, err
	}
	rotated := 0
	for i := range certs {
		cert := &certs[i]
		if cert.KeyFingerprint != previous.Fingerprint() {
			continue
		}
		pfx, err := s.keeper.Rewrap(previous, cert.SealedPFX)
		if err != nil {
			return rotated, fmt.Errorf("rewrap bundle %s: %w", cert.Alias, err)
		}
		password, err := s.keeper.Rewrap(previous, cert.SealedPassword)
		if err != nil {
			return rotated, fmt.Errorf("rewrap password %s: %w", cert.Alias, err)
		}
		cert.SealedPFX = pfx
		cert.SealedPassword = password
		cert.KeyFingerprint = s.keeper.Fingerprint()
		if err := s.repo.Update(ctx, cert); err != nil {
			return rotated, fmt.Errorf("persist rewrapped %s: %w", cert.Alias, err)
		}
		rotated++
		logger.L(ctx).Info("certificate rewrapped",
			zap.String("alias", cert.Alias),
			zap.String("key_fingerprint", cert.KeyFingerprint))
	}
	return rotated, nil
}

// ExpiringWithin lists active certificates that expire inside the window.
// The scheduler logs a warning per hit.
func (s *Service) ExpiringWithin(ctx context.Context, window time.Duration) ([]certificate.Certificate, error) {
	certs, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	var expiring []certificate.Certificate
	for _, c := range certs {
		if c.IsActive && c.ExpiresWithin(now, window) {
			expiring = append(expiring, c)
		}
	}
	return expiring, nil
}
