package fiscal

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// DocumentFilter narrows document listings
type DocumentFilter struct {
	Kind       *DocumentKind
	Status     *DocumentStatus
	Direction  *Direction
	IssuerCNPJ *string
	DateFrom   *time.Time
	DateTo     *time.Time
	Page       int
	PageSize   int
}

// DocumentRepository persists fiscal documents and their items
type DocumentRepository interface {
	Save(ctx context.Context, doc *Document) error
	Update(ctx context.Context, doc *Document) error
	FindByID(ctx context.Context, id uuid.UUID) (*Document, error)
	// FindByKey looks a document up by its national access key.
	FindByKey(ctx context.Context, kind DocumentKind, key string) (*Document, error)
	// FindByMunicipalNumber is the NFS-e fallback identity lookup.
	FindByMunicipalNumber(ctx context.Context, municipalityCode, number string) (*Document, error)
	List(ctx context.Context, filter DocumentFilter) ([]Document, int64, error)
	// MaxNSU returns the largest NSU among persisted documents for an issuer.
	MaxNSU(ctx context.Context, issuerCNPJ string) (int64, error)
}
