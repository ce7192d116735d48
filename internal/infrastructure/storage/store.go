// Package storage persists raw fiscal document XML under a partitioned,
// content-addressed layout shared by the filesystem and S3 backends.
package storage

import (
	"context"
	"fmt"
	"path"
	"regexp"
	"time"

	"github.com/fiscalerp/backend/internal/domain/fiscal"
	"github.com/fiscalerp/backend/internal/domain/shared"
)

// ErrInvalidStorageKey reports a document key the layout refuses to place
var ErrInvalidStorageKey = shared.NewDomainError("INVALID_STORAGE_KEY", "Document key cannot be mapped to a storage path")

// SaveResult describes the outcome of one save
type SaveResult struct {
	Path string
	Size int64
	MD5  string
	// Conflicted is true when an existing file with a different MD5 was
	// rotated aside.
	Conflicted bool
	// Unchanged is true when the same content was already stored.
	Unchanged bool
}

// Listed describes one stored document
type Listed struct {
	Key        string
	TypePrefix string
	Path       string
	Size       int64
	ModTime    time.Time
}

// RetentionSummary reports what a retention sweep removed
type RetentionSummary struct {
	YearsRemoved []string
	Files        int
	Bytes        int64
}

// DocumentStore is the XML archive. Paths are computed from validated data,
// never caller-supplied.
type DocumentStore interface {
	// Save writes one document idempotently. Same path with the same MD5 is
	// a no-op; a different MD5 rotates the old file to a .conflict sibling.
	Save(ctx context.Context, issuerCNPJ, documentKey, typePrefix string, xmlText []byte, emissionDate time.Time) (*SaveResult, error)
	// Load returns the stored XML, searching across issuers when issuerCNPJ
	// is empty. Returns (nil, nil) when absent.
	Load(ctx context.Context, issuerCNPJ, documentKey, typePrefix string) ([]byte, error)
	List(ctx context.Context, issuerCNPJ string, from, to time.Time, typePrefix string) ([]Listed, error)
	// Retention deletes year partitions older than keepYears.
	Retention(ctx context.Context, issuerCNPJ string, keepYears int) (*RetentionSummary, error)
	// ConflictCount exposes how many conflict rotations this store performed.
	ConflictCount() int64
}

var (
	nfseKeyPattern = regexp.MustCompile(`^\d{7}_[0-9A-Za-z-]+$`)
	cnpjPattern    = regexp.MustCompile(`^\d{14}$`)
)

// relPath computes the layout path <kind>/<issuer>/<YYYY>/<MM>/<prefix>_<key>.xml.
// Year and month come from the access key for keyed documents and from the
// emission date for NFS-e composite keys (<municipality>_<number>).
func relPath(issuerCNPJ, documentKey, typePrefix string, emissionDate time.Time) (string, error) {
	if !cnpjPattern.MatchString(issuerCNPJ) {
		return "", fmt.Errorf("%w: issuer %q", ErrInvalidStorageKey, issuerCNPJ)
	}
	if typePrefix == "" {
		return "", fmt.Errorf("%w: empty type prefix", ErrInvalidStorageKey)
	}

	var kind fiscal.DocumentKind
	var year, month string
	switch {
	case fiscal.ValidateKey(documentKey):
		key := fiscal.AccessKey(documentKey)
		k, err := key.KindFromModel()
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrInvalidStorageKey, err)
		}
		kind = k
		y, m := key.EmissionYearMonth()
		year, month = fmt.Sprintf("%04d", y), fmt.Sprintf("%02d", int(m))
	case nfseKeyPattern.MatchString(documentKey):
		if emissionDate.IsZero() {
			return "", fmt.Errorf("%w: NFS-e key %s needs an emission date", ErrInvalidStorageKey, documentKey)
		}
		kind = fiscal.KindNFSe
		year, month = fmt.Sprintf("%04d", emissionDate.Year()), fmt.Sprintf("%02d", int(emissionDate.Month()))
	default:
		return "", fmt.Errorf("%w: key %q", ErrInvalidStorageKey, documentKey)
	}

	return path.Join(string(kind), issuerCNPJ, year, month, typePrefix+"_"+documentKey+".xml"), nil
}
