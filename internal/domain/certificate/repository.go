package certificate

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists sealed certificates
type Repository interface {
	Save(ctx context.Context, cert *Certificate) error
	Update(ctx context.Context, cert *Certificate) error
	FindByID(ctx context.Context, id uuid.UUID) (*Certificate, error)
	// FindActive returns the tenant's newest active certificate for one
	// issuer CNPJ, or across all issuers when issuerCNPJ is empty. Misses
	// are ErrNoActiveCertificate.
	FindActive(ctx context.Context, issuerCNPJ string) (*Certificate, error)
	List(ctx context.Context) ([]Certificate, error)
}
