package certificate

import (
	"time"

	"github.com/fiscalerp/backend/internal/domain/shared"
	"github.com/google/uuid"
)

var (
	// ErrNoActiveCertificate reports a tenant without a usable A1 certificate.
	ErrNoActiveCertificate = shared.NewDomainError("NO_ACTIVE_CERTIFICATE", "Tenant has no active digital certificate")
	// ErrExpiredCertificate reports a certificate past its validity window.
	ErrExpiredCertificate = shared.NewDomainError("EXPIRED_CERTIFICATE", "Digital certificate is expired")
	// ErrDecryptionKeyMismatch reports sealed material the configured master
	// key cannot open.
	ErrDecryptionKeyMismatch = shared.NewDomainError("DECRYPTION_KEY_MISMATCH", "Certificate could not be decrypted with the configured master key")
)

// Certificate is a tenant's A1 digital certificate. The PKCS#12 bundle is
// stored sealed; plaintext key material never reaches the database.
type Certificate struct {
	shared.TenantEntity
	Alias        string    `gorm:"size:100;not null"`
	SubjectCN    string    `gorm:"size:255;not null"`
	IssuerCN     string    `gorm:"size:255"`
	SerialNumber string    `gorm:"size:64"`
	CNPJ         string    `gorm:"size:14;index"`
	NotBefore    time.Time `gorm:"not null"`
	NotAfter     time.Time `gorm:"not null;index"`
	// SealedPFX is the AES-GCM sealed PKCS#12 bundle, nonce prefixed.
	SealedPFX []byte `gorm:"type:bytea;not null"`
	// SealedPassword is the sealed import password for the bundle.
	SealedPassword []byte `gorm:"type:bytea;not null"`
	// KeyFingerprint identifies the master key that sealed this record.
	KeyFingerprint string `gorm:"size:64;not null"`
	IsActive       bool   `gorm:"not null;default:true;index"`
}

// TableName returns the table name for GORM
func (Certificate) TableName() string {
	return "certificates"
}

// NewCertificate creates a sealed certificate record for a tenant
func NewCertificate(tenantID uuid.UUID, alias, subjectCN, cnpj string, notBefore, notAfter time.Time, sealedPFX, sealedPassword []byte, keyFingerprint string) (*Certificate, error) {
	if alias == "" {
		return nil, shared.NewDomainError("INVALID_CERTIFICATE", "Certificate alias cannot be empty")
	}
	if len(sealedPFX) == 0 {
		return nil, shared.NewDomainError("INVALID_CERTIFICATE", "Certificate bundle cannot be empty")
	}
	if !notAfter.After(notBefore) {
		return nil, shared.NewDomainError("INVALID_CERTIFICATE", "Certificate validity window is inverted")
	}
	return &Certificate{
		TenantEntity:   shared.NewTenantEntity(tenantID),
		Alias:          alias,
		SubjectCN:      subjectCN,
		CNPJ:           cnpj,
		NotBefore:      notBefore,
		NotAfter:       notAfter,
		SealedPFX:      sealedPFX,
		SealedPassword: sealedPassword,
		KeyFingerprint: keyFingerprint,
		IsActive:       true,
	}, nil
}

// IsExpired reports whether the certificate validity window has closed
func (c *Certificate) IsExpired(now time.Time) bool {
	return now.After(c.NotAfter)
}

// IsUsable reports whether the certificate can authenticate a transmission
func (c *Certificate) IsUsable(now time.Time) bool {
	return c.IsActive && !c.IsExpired(now) && now.After(c.NotBefore)
}

// Deactivate retires the certificate without deleting its audit trail
func (c *Certificate) Deactivate() {
	c.IsActive = false
	c.UpdatedAt = time.Now()
}

// ExpiresWithin reports whether the certificate expires inside the window.
// Used by the expiry warning sweep.
func (c *Certificate) ExpiresWithin(now time.Time, window time.Duration) bool {
	return !c.IsExpired(now) && now.Add(window).After(c.NotAfter)
}
