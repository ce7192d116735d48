// Package fiscal implements the document ingestion use cases: the DF-e
// distribution loop for NF-e/CT-e and the municipal/national NFS-e pull.
package fiscal

import (
	"context"
	"crypto/md5"
	"crypto/tls"
	"encoding/hex"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/fiscalerp/backend/internal/domain/certificate"
	"github.com/fiscalerp/backend/internal/domain/fiscal"
	"github.com/fiscalerp/backend/internal/domain/shared"
	"github.com/fiscalerp/backend/internal/domain/tenancy"
	"github.com/fiscalerp/backend/internal/infrastructure/logger"
	"github.com/fiscalerp/backend/internal/infrastructure/nfse"
	"github.com/fiscalerp/backend/internal/infrastructure/persistence"
	"github.com/fiscalerp/backend/internal/infrastructure/sefaz"
	"github.com/fiscalerp/backend/internal/infrastructure/storage"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Fetcher is the DF-e distribution surface the run loop drives
type Fetcher interface {
	FetchBatch(ctx context.Context, service sefaz.Service, clientCert *tls.Certificate, ufAutor, cnpj string, ultNSU int64) (*sefaz.Batch, error)
}

// CertificateSource hands out the tenant's TLS client credential. An empty
// issuerCNPJ selects the newest active certificate across the tenant's
// issuers.
type CertificateSource interface {
	ActiveTLS(ctx context.Context, issuerCNPJ string) (*tls.Certificate, *certificate.Certificate, error)
}

// Deduper is the fast-path "seen before" check ahead of the database lookup
type Deduper interface {
	MarkSeen(ctx context.Context, tenantID uuid.UUID, documentKey string) (bool, error)
	Forget(ctx context.Context, tenantID uuid.UUID, documentKey string) error
}

// ProviderResolver maps a municipality to its NFS-e provider
type ProviderResolver interface {
	Resolve(municipalityCode string) (nfse.Provider, error)
}

// RunSummary is the per-run accounting the engine reports
type RunSummary struct {
	Seen    int
	New     int
	Updated int
	Skipped int
	Errors  int
	// FinalNSU is the cursor position after the run
	FinalNSU int64
}

// Config bounds one ingestion run
type Config struct {
	// UFAutor is the IBGE code of the interested party's federal unit
	UFAutor string
	// MaxDocuments caps how many documents one run may process
	MaxDocuments int
}

// IngestionService pulls fiscal documents from the national distribution
// services and the municipal NFS-e providers, persisting XML and structured
// rows while moving the NSU cursor.
type IngestionService struct {
	db        *persistence.Database
	documents fiscal.DocumentRepository
	cursors   fiscal.CursorRepository
	certs     CertificateSource
	store     storage.DocumentStore
	dfe       Fetcher
	providers ProviderResolver
	dedup     Deduper
	cfg       Config
}

// NewIngestionService creates an ingestion service. dedup may be nil; the
// database unique index remains the source of truth.
func NewIngestionService(
	db *persistence.Database,
	documents fiscal.DocumentRepository,
	cursors fiscal.CursorRepository,
	certs CertificateSource,
	store storage.DocumentStore,
	dfe Fetcher,
	providers ProviderResolver,
	dedup Deduper,
	cfg Config,
) *IngestionService {
	if cfg.MaxDocuments <= 0 {
		cfg.MaxDocuments = 500
	}
	return &IngestionService{
		db:        db,
		documents: documents,
		cursors:   cursors,
		certs:     certs,
		store:     store,
		dfe:       dfe,
		providers: providers,
		dedup:     dedup,
		cfg:       cfg,
	}
}

// RunDFe executes one distribution run for NF-e or CT-e. issuerCNPJ picks
// which branch certificate transmits; empty means the newest active one. The
// cursor advances only over fully processed documents; certificate and
// transport failures leave it untouched.
func (s *IngestionService) RunDFe(ctx context.Context, service sefaz.Service, issuerCNPJ string) (*RunSummary, error) {
	tenantID, err := tenancy.TenantFromContext(ctx)
	if err != nil {
		return nil, err
	}

	tlsCert, certRec, err := s.certs.ActiveTLS(ctx, issuerCNPJ)
	if err != nil {
		return nil, err
	}
	issuer := certRec.CNPJ

	cursor, err := s.loadCursor(ctx, issuer, "")
	if err != nil {
		return nil, err
	}
	parser := fiscal.NewParser(tenantID, issuer)
	summary := &RunSummary{FinalNSU: cursor.LastNSU}

	log := logger.L(ctx).With(
		zap.String("service", string(service)),
		zap.String("issuer", issuer),
		zap.Int64("start_nsu", cursor.LastNSU))
	log.Info("ingestion run started")

	for {
		batch, err := s.dfe.FetchBatch(ctx, service, tlsCert, s.cfg.UFAutor, issuer, cursor.LastNSU)
		if err != nil {
			return summary, err
		}
		if len(batch.Docs) == 0 {
			break
		}

		advanceTo := cursor.LastNSU
		failed := false
		for _, doc := range batch.Docs {
			if ctx.Err() != nil {
				// keep the progress made so far before giving up
				s.persistCursor(context.WithoutCancel(ctx), cursor, advanceTo, summary)
				return summary, ctx.Err()
			}
			summary.Seen++
			if err := s.processDocument(ctx, tenantID, parser, doc.NSU, doc.XML, summary); err != nil {
				summary.Errors++
				failed = true
				log.Warn("document failed, continuing with the batch",
					zap.Int64("nsu", doc.NSU), zap.Error(err))
				continue
			}
			if !failed {
				advanceTo = doc.NSU
			}
		}
		if !failed {
			advanceTo = batch.UltNSU
		}
		if err := s.persistCursor(ctx, cursor, advanceTo, summary); err != nil {
			return summary, err
		}

		if !batch.HasMore() || summary.Seen >= s.cfg.MaxDocuments {
			break
		}
	}

	log.Info("ingestion run finished",
		zap.Int("seen", summary.Seen),
		zap.Int("new", summary.New),
		zap.Int("updated", summary.Updated),
		zap.Int("skipped", summary.Skipped),
		zap.Int("errors", summary.Errors),
		zap.Int64("final_nsu", summary.FinalNSU))
	return summary, nil
}

// RunNFSe pulls service invoices for one municipality over a window.
// issuerCNPJ selects the provider branch; empty means the newest active
// certificate.
func (s *IngestionService) RunNFSe(ctx context.Context, municipalityCode, issuerCNPJ string, from, to time.Time) (*RunSummary, error) {
	tenantID, err := tenancy.TenantFromContext(ctx)
	if err != nil {
		return nil, err
	}
	provider, err := s.providers.Resolve(municipalityCode)
	if err != nil {
		return nil, err
	}
	tlsCert, certRec, err := s.certs.ActiveTLS(ctx, issuerCNPJ)
	if err != nil {
		return nil, err
	}
	issuer := certRec.CNPJ

	cursor, err := s.loadCursor(ctx, issuer, municipalityCode)
	if err != nil {
		return nil, err
	}
	parser := fiscal.NewParser(tenantID, issuer)
	summary := &RunSummary{FinalNSU: cursor.LastNSU}

	log := logger.L(ctx).With(
		zap.String("provider", provider.Name()),
		zap.String("municipality", municipalityCode))
	log.Info("service invoice pull started")

	for {
		result, err := provider.Fetch(ctx, tlsCert, nfse.Query{
			ProviderCNPJ:     issuer,
			MunicipalityCode: municipalityCode,
			From:             from,
			To:               to,
			LastNSU:          cursor.LastNSU,
		})
		if err != nil {
			return summary, err
		}
		if len(result.Docs) == 0 {
			break
		}

		failed := false
		for _, doc := range result.Docs {
			if ctx.Err() != nil {
				return summary, ctx.Err()
			}
			summary.Seen++
			if err := s.processDocument(ctx, tenantID, parser, doc.NSU, doc.XML, summary); err != nil {
				summary.Errors++
				failed = true
				log.Warn("service invoice failed, continuing",
					zap.Int64("nsu", doc.NSU), zap.Error(err))
			}
		}
		if !failed && result.FinalNSU > cursor.LastNSU {
			if err := s.persistCursor(ctx, cursor, result.FinalNSU, summary); err != nil {
				return summary, err
			}
		}
		if !result.HasMore || summary.Seen >= s.cfg.MaxDocuments {
			break
		}
	}

	log.Info("service invoice pull finished",
		zap.Int("seen", summary.Seen),
		zap.Int("new", summary.New),
		zap.Int("errors", summary.Errors))
	return summary, nil
}

func (s *IngestionService) loadCursor(ctx context.Context, issuer, municipality string) (*fiscal.NSUCursor, error) {
	cursor, err := s.cursors.Find(ctx, issuer, municipality)
	if err == nil {
		return cursor, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}
	// the persistence guard stamps the tenant on insert
	cursor, err = fiscal.NewNSUCursor(uuid.Nil, issuer, municipality)
	if err != nil {
		return nil, err
	}
	if err := s.cursors.Save(ctx, cursor); err != nil {
		return nil, err
	}
	return cursor, nil
}

func (s *IngestionService) persistCursor(ctx context.Context, cursor *fiscal.NSUCursor, nsu int64, summary *RunSummary) error {
	if nsu <= cursor.LastNSU {
		return nil
	}
	cursor.Advance(nsu)
	if err := s.cursors.Update(ctx, cursor); err != nil {
		return err
	}
	summary.FinalNSU = cursor.LastNSU
	return nil
}

// processDocument runs one distributed payload through detect, dedup, parse,
// store and upsert. The row upsert happens inside one transaction.
func (s *IngestionService) processDocument(ctx context.Context, tenantID uuid.UUID, parser *fiscal.Parser, nsu int64, xmlText []byte, summary *RunSummary) error {
	schema, err := fiscal.DetectSchema(xmlText)
	if err != nil {
		return err
	}
	if schema.Variant == fiscal.VariantEvent {
		return s.processEvent(ctx, schema, xmlText, summary)
	}

	doc, err := parser.Extract(xmlText, schema)
	if err != nil {
		return err
	}
	if doc.Key == "" && doc.MunicipalityCode != "" {
		doc.Key = doc.MunicipalityCode + "_" + doc.Number
	}
	doc.NSU = nsu

	sum := md5.Sum(xmlText)
	hash := hex.EncodeToString(sum[:])

	if s.dedup != nil {
		fresh, err := s.dedup.MarkSeen(ctx, tenantID, doc.Key+":"+hash)
		if err == nil && !fresh {
			summary.Skipped++
			return nil
		}
	}

	existing, err := s.findExisting(ctx, doc)
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return err
	}
	if existing != nil && existing.XMLHash == hash {
		summary.Skipped++
		return nil
	}

	saved, err := s.store.Save(ctx, doc.IssuerCNPJ, doc.Key, schema.StoragePrefix(), xmlText, doc.IssueDate)
	if err != nil {
		s.forget(ctx, tenantID, doc.Key+":"+hash)
		return fmt.Errorf("store xml: %w", err)
	}
	doc.XMLPath = saved.Path
	doc.XMLHash = hash

	err = s.db.TenantTx(ctx, func(tx *gorm.DB) error {
		repo := persistence.NewGormDocumentRepository(tx)
		if existing == nil {
			return repo.Save(ctx, doc)
		}
		if err := existing.UpdateStatus(doc.Status); err != nil {
			return err
		}
		existing.NSU = nsu
		existing.XMLPath = saved.Path
		existing.XMLHash = hash
		return repo.Update(ctx, existing)
	})
	if err != nil {
		s.forget(ctx, tenantID, doc.Key+":"+hash)
		return err
	}

	if existing == nil {
		summary.New++
	} else {
		summary.Updated++
	}
	return nil
}

// processEvent archives an event payload and applies the status transition
// it carries. Events for documents never distributed to us keep their XML but
// cause no row change.
func (s *IngestionService) processEvent(ctx context.Context, schema fiscal.Schema, xmlText []byte, summary *RunSummary) error {
	key, err := fiscal.EventKey(xmlText)
	if err != nil {
		return err
	}
	// the issuer partition comes from the CNPJ embedded in the access key
	issuer := fiscal.AccessKey(key).IssuerCNPJ()
	if _, err := s.store.Save(ctx, issuer, key, schema.StoragePrefix(), xmlText, time.Time{}); err != nil {
		return fmt.Errorf("store event xml: %w", err)
	}
	if schema.EventType != fiscal.EventTypeCancellation {
		summary.Skipped++
		return nil
	}
	doc, err := s.documents.FindByKey(ctx, schema.Kind, key)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			summary.Skipped++
			return nil
		}
		return err
	}
	if err := doc.UpdateStatus(fiscal.StatusCancelled); err != nil {
		return err
	}
	if err := s.documents.Update(ctx, doc); err != nil {
		return err
	}
	summary.Updated++
	return nil
}

func (s *IngestionService) findExisting(ctx context.Context, doc *fiscal.Document) (*fiscal.Document, error) {
	if doc.Kind == fiscal.KindNFSe && doc.MunicipalityCode != "" {
		return s.documents.FindByMunicipalNumber(ctx, doc.MunicipalityCode, doc.Number)
	}
	return s.documents.FindByKey(ctx, doc.Kind, doc.Key)
}

func (s *IngestionService) forget(ctx context.Context, tenantID uuid.UUID, key string) {
	if s.dedup == nil {
		return
	}
	if err := s.dedup.Forget(ctx, tenantID, key); err != nil {
		logger.L(ctx).Warn("dedup forget failed", zap.Error(err))
	}
}

// ListDocuments pages the tenant's persisted documents
func (s *IngestionService) ListDocuments(ctx context.Context, filter fiscal.DocumentFilter) ([]fiscal.Document, int64, error) {
	return s.documents.List(ctx, filter)
}

// GetDocument returns one persisted document with its items
func (s *IngestionService) GetDocument(ctx context.Context, id uuid.UUID) (*fiscal.Document, error) {
	return s.documents.FindByID(ctx, id)
}

// DocumentXML returns the stored raw XML of one document
func (s *IngestionService) DocumentXML(ctx context.Context, id uuid.UUID) (*fiscal.Document, []byte, error) {
	doc, err := s.documents.FindByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	xmlText, err := s.store.Load(ctx, doc.IssuerCNPJ, doc.Key, storedPrefix(doc))
	if err != nil {
		return nil, nil, err
	}
	if xmlText == nil {
		return doc, nil, shared.ErrNotFound
	}
	return doc, xmlText, nil
}

// storedPrefix recovers the archive file class from the persisted path. A
// resume row later overwritten by the authorized document keeps pointing at
// the file the last save produced.
func storedPrefix(doc *fiscal.Document) string {
	base := path.Base(doc.XMLPath)
	if prefix, found := strings.CutSuffix(base, "_"+doc.Key+".xml"); found && prefix != "" {
		return prefix
	}
	return ""
}

// ListCursors returns the tenant's sync positions
func (s *IngestionService) ListCursors(ctx context.Context) ([]fiscal.NSUCursor, error) {
	return s.cursors.List(ctx)
}

// ResetCursor rewinds one cursor. Operator action for gap recovery.
func (s *IngestionService) ResetCursor(ctx context.Context, issuer, municipality string, nsu int64) (*fiscal.NSUCursor, error) {
	cursor, err := s.cursors.Find(ctx, issuer, municipality)
	if err != nil {
		return nil, err
	}
	cursor.Reset(nsu)
	if err := s.cursors.Update(ctx, cursor); err != nil {
		return nil, err
	}
	return cursor, nil
}
