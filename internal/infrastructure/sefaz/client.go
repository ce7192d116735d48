package sefaz

import (
	"bytes"
	"compress/gzip"
	"context"
	"crypto/tls"
	"encoding/base64"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/fiscalerp/backend/internal/infrastructure/logger"
)

// Situation codes of the distribution answer.
const (
	cStatDocumentsFound = "138"
	cStatNoDocuments    = "137"
	// Service temporarily paralyzed, worth retrying.
	cStatParalyzedShort = "108"
	cStatParalyzed      = "109"
	// Improper consumption, the client must back off.
	cStatImproperUse = "656"
)

// RetryableError marks a failure the caller may retry on the next run
// without losing cursor position.
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string { return e.Err.Error() }
func (e *RetryableError) Unwrap() error { return e.Err }

// BatchDoc is one distributed document, already decompressed
type BatchDoc struct {
	NSU    int64
	Schema string
	XML    []byte
}

// Batch is the answer to one distribution query
type Batch struct {
	CStat   string
	XMotivo string
	UltNSU  int64
	MaxNSU  int64
	Docs    []BatchDoc
}

// HasMore reports whether the source still holds newer documents
func (b *Batch) HasMore() bool {
	return b.MaxNSU > b.UltNSU
}

// ClientConfig bounds the client's outbound behavior
type ClientConfig struct {
	Environment    Environment
	RequestTimeout time.Duration
	RetryMax       int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
}

// DFeClient queries the national DF-e distribution services over mutual TLS
type DFeClient struct {
	cfg ClientConfig
	// endpointOverride points every request at a fixed URL, used by tests
	endpointOverride string
}

// NewDFeClient creates a distribution client
func NewDFeClient(cfg ClientConfig) *DFeClient {
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if cfg.RetryMax == 0 {
		cfg.RetryMax = 4
	}
	if cfg.RetryBaseDelay == 0 {
		cfg.RetryBaseDelay = 2 * time.Second
	}
	if cfg.RetryMaxDelay == 0 {
		cfg.RetryMaxDelay = 60 * time.Second
	}
	return &DFeClient{cfg: cfg}
}

// FetchBatch asks the distribution service for documents newer than ultNSU.
// A nil clientCert skips mutual TLS, which only test servers accept.
func (c *DFeClient) FetchBatch(ctx context.Context, service Service, clientCert *tls.Certificate, ufAutor, cnpj string, ultNSU int64) (*Batch, error) {
	if !validUFAutor[ufAutor] {
		return nil, fmt.Errorf("invalid cUFAutor %q", ufAutor)
	}
	query := distDFeInt{DistNSU: &distNSU{UltNSU: fmt.Sprintf("%015d", ultNSU)}}
	return c.request(ctx, service, clientCert, ufAutor, cnpj, query)
}

// FetchNSU asks for one specific NSU (gap recovery)
func (c *DFeClient) FetchNSU(ctx context.Context, service Service, clientCert *tls.Certificate, ufAutor, cnpj string, nsu int64) (*Batch, error) {
	query := distDFeInt{ConsNSU: &consNSU{NSU: fmt.Sprintf("%015d", nsu)}}
	return c.request(ctx, service, clientCert, ufAutor, cnpj, query)
}

// FetchKey asks for the full document of one access key
func (c *DFeClient) FetchKey(ctx context.Context, service Service, clientCert *tls.Certificate, ufAutor, cnpj, accessKey string) (*Batch, error) {
	query := distDFeInt{ConsChNFe: &consChNFe{ChNFe: accessKey}}
	return c.request(ctx, service, clientCert, ufAutor, cnpj, query)
}

func (c *DFeClient) request(ctx context.Context, service Service, clientCert *tls.Certificate, ufAutor, cnpj string, query distDFeInt) (*Batch, error) {
	endpoint := c.endpointOverride
	if endpoint == "" {
		var err error
		endpoint, err = Endpoint(service, c.cfg.Environment)
		if err != nil {
			return nil, err
		}
	}

	query.Xmlns = "http://www.portalfiscal.inf.br/nfe"
	query.Versao = "1.01"
	query.TpAmb = c.cfg.Environment.tpAmb()
	query.CUFAutor = ufAutor
	query.CNPJ = cnpj

	envelope := soapEnvelope{
		XmlnsXsi:  "http://www.w3.org/2001/XMLSchema-instance",
		XmlnsXsd:  "http://www.w3.org/2001/XMLSchema",
		XmlnsSoap: "http://www.w3.org/2003/05/soap-envelope",
		Body: soapBody{
			Dist: distDFeInteresse{
				Xmlns: serviceNamespaces[service],
				Dados: nfeDadosMsg{Dist: query},
			},
		},
	}
	payload, err := xml.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("marshal envelope: %w", err)
	}
	payload = append([]byte(xml.Header), payload...)

	httpClient := c.httpClient(clientCert)

	var lastErr error
	delay := c.cfg.RetryBaseDelay
	for attempt := 0; attempt <= c.cfg.RetryMax; attempt++ {
		if attempt > 0 {
			logger.L(ctx).Warn("distribution request retry",
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
				zap.Error(lastErr))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			delay *= 2
			if delay > c.cfg.RetryMaxDelay {
				delay = c.cfg.RetryMaxDelay
			}
		}

		batch, err := c.post(ctx, httpClient, endpoint, service, payload)
		if err == nil {
			return batch, nil
		}
		lastErr = err
		var retryable *RetryableError
		if !errors.As(err, &retryable) {
			return nil, err
		}
	}
	return nil, &RetryableError{Err: fmt.Errorf("distribution service unavailable after %d attempts: %w", c.cfg.RetryMax+1, lastErr)}
}

func (c *DFeClient) post(ctx context.Context, httpClient *http.Client, endpoint string, service Service, payload []byte) (*Batch, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", `application/soap+xml; charset=utf-8; action="`+soapActions[service]+`"`)

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, &RetryableError{Err: fmt.Errorf("distribution request: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, &RetryableError{Err: fmt.Errorf("read response: %w", err)}
	}
	if resp.StatusCode >= 500 {
		return nil, &RetryableError{Err: fmt.Errorf("distribution service returned %d", resp.StatusCode)}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("distribution service returned %d: %s", resp.StatusCode, truncate(body, 200))
	}

	var envelope responseEnvelope
	if err := xml.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if envelope.Body.Fault != nil {
		return nil, fmt.Errorf("SOAP fault %s: %s", envelope.Body.Fault.Code, envelope.Body.Fault.Reason)
	}
	ret := envelope.Body.Result.Ret
	if ret.CStat == "" {
		ret = envelope.Body.ResultCTe.Ret
	}
	return decodeRet(&ret)
}

func decodeRet(ret *retDistDFeInt) (*Batch, error) {
	batch := &Batch{
		CStat:   ret.CStat,
		XMotivo: ret.XMotivo,
		UltNSU:  parseNSU(ret.UltNSU),
		MaxNSU:  parseNSU(ret.MaxNSU),
	}

	switch ret.CStat {
	case cStatDocumentsFound:
	case cStatNoDocuments:
		return batch, nil
	case cStatParalyzedShort, cStatParalyzed, cStatImproperUse:
		return nil, &RetryableError{Err: fmt.Errorf("distribution service cStat %s: %s", ret.CStat, ret.XMotivo)}
	default:
		return nil, fmt.Errorf("distribution service rejected the query, cStat %s: %s", ret.CStat, ret.XMotivo)
	}

	for i, dz := range ret.Lote.DocZip {
		xmlText, err := inflateDocZip(dz.Content)
		if err != nil {
			return nil, fmt.Errorf("docZip %d (NSU %s): %w", i, dz.NSU, err)
		}
		batch.Docs = append(batch.Docs, BatchDoc{
			NSU:    parseNSU(dz.NSU),
			Schema: dz.Schema,
			XML:    xmlText,
		})
	}
	return batch, nil
}

// inflateDocZip decodes one base64 gzip-compressed document fragment
func inflateDocZip(content string) ([]byte, error) {
	compressed, err := base64.StdEncoding.DecodeString(content)
	if err != nil {
		return nil, fmt.Errorf("base64 decode: %w", err)
	}
	zr, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("gzip open: %w", err)
	}
	defer zr.Close()
	xmlText, err := io.ReadAll(io.LimitReader(zr, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("gzip read: %w", err)
	}
	return xmlText, nil
}

func (c *DFeClient) httpClient(clientCert *tls.Certificate) *http.Client {
	transport := &http.Transport{}
	if clientCert != nil {
		transport.TLSClientConfig = &tls.Config{
			Certificates: []tls.Certificate{*clientCert},
			MinVersion:   tls.VersionTLS12,
		}
	}
	return &http.Client{
		Timeout:   c.cfg.RequestTimeout,
		Transport: transport,
	}
}

func parseNSU(s string) int64 {
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
