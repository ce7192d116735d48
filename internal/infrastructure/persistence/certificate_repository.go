package persistence

import (
	"context"
	"errors"

	"github.com/fiscalerp/backend/internal/domain/certificate"
	"github.com/fiscalerp/backend/internal/domain/shared"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormCertificateRepository implements certificate.Repository using GORM
type GormCertificateRepository struct {
	db *gorm.DB
}

// NewGormCertificateRepository creates a new GormCertificateRepository
func NewGormCertificateRepository(db *gorm.DB) *GormCertificateRepository {
	return &GormCertificateRepository{db: db}
}

// Save persists a sealed certificate
func (r *GormCertificateRepository) Save(ctx context.Context, cert *certificate.Certificate) error {
	return r.db.WithContext(ctx).Create(cert).Error
}

// Update persists certificate state changes
func (r *GormCertificateRepository) Update(ctx context.Context, cert *certificate.Certificate) error {
	return r.db.WithContext(ctx).Save(cert).Error
}

// FindByID finds a certificate by its ID
func (r *GormCertificateRepository) FindByID(ctx context.Context, id uuid.UUID) (*certificate.Certificate, error) {
	var cert certificate.Certificate
	if err := r.db.WithContext(ctx).First(&cert, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &cert, nil
}

// FindActive returns the scoped tenant's newest active certificate, narrowed
// to one issuer CNPJ when given
func (r *GormCertificateRepository) FindActive(ctx context.Context, issuerCNPJ string) (*certificate.Certificate, error) {
	query := r.db.WithContext(ctx).Where("is_active = ?", true)
	if issuerCNPJ != "" {
		query = query.Where("cnpj = ?", issuerCNPJ)
	}
	var cert certificate.Certificate
	err := query.Order("not_after DESC").First(&cert).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, certificate.ErrNoActiveCertificate
		}
		return nil, err
	}
	return &cert, nil
}

// List returns the scoped tenant's certificates, newest first
func (r *GormCertificateRepository) List(ctx context.Context) ([]certificate.Certificate, error) {
	var certs []certificate.Certificate
	if err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Find(&certs).Error; err != nil {
		return nil, err
	}
	return certs, nil
}
