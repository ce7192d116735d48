// Package nfse pulls service invoices from municipal providers. A closed set
// of ABRASF provider families covers the SOAP municipalities; the national
// environment is queried over REST.
package nfse

import (
	"context"
	"crypto/tls"
	"time"

	"github.com/fiscalerp/backend/internal/domain/shared"
)

// ErrUnknownProvider reports a municipality with no registered provider
var ErrUnknownProvider = shared.NewDomainError("UNKNOWN_PROVIDER", "No NFS-e provider registered for municipality")

// Query identifies what to fetch from a municipal provider
type Query struct {
	// ProviderCNPJ is the tenant's CNPJ as service provider
	ProviderCNPJ string
	// MunicipalRegistration is the tenant's inscricao municipal
	MunicipalRegistration string
	MunicipalityCode      string
	// From/To bound date-windowed families
	From time.Time
	To   time.Time
	// LastNSU drives NSU-paginated sources (national environment)
	LastNSU int64
}

// FetchedDoc is one service invoice XML pulled from a provider
type FetchedDoc struct {
	// NSU is zero for families without sequential distribution
	NSU int64
	XML []byte
}

// Result is the outcome of one provider fetch
type Result struct {
	Docs []FetchedDoc
	// FinalNSU is the new cursor position for NSU-paginated sources
	FinalNSU int64
	// HasMore signals another page is available
	HasMore bool
}

// Provider fetches service invoices for one municipality family
type Provider interface {
	Name() string
	Fetch(ctx context.Context, clientCert *tls.Certificate, q Query) (*Result, error)
}
