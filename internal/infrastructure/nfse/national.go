package nfse

import (
	"context"
	"crypto/rsa"
	"crypto/tls"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// NationalProvider queries the national NFS-e environment (ADN) over REST.
// Requests carry a short-lived RS256 JWT signed with the tenant's
// certificate key.
type NationalProvider struct {
	baseURL  string
	timeout  time.Duration
	tokenTTL time.Duration
}

// NewNationalProvider creates the national environment client
func NewNationalProvider(baseURL string, timeout time.Duration) *NationalProvider {
	if baseURL == "" {
		baseURL = "https://adn.nfse.gov.br/contribuinte"
	}
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &NationalProvider{baseURL: baseURL, timeout: timeout, tokenTTL: 5 * time.Minute}
}

// Name implements Provider
func (p *NationalProvider) Name() string {
	return "NACIONAL"
}

// distribution is the NSU-paginated answer of the national environment
type distribution struct {
	StatusProcessamento string `json:"StatusProcessamento"`
	UltimoNSU           int64  `json:"UltimoNSU"`
	MaxNSU              int64  `json:"MaxNSU"`
	Documentos          []struct {
		NSU int64 `json:"NSU"`
		// ArquivoXml is the base64-encoded invoice XML
		ArquivoXml string `json:"ArquivoXml"`
	} `json:"LoteDFe"`
}

// Fetch implements Provider using NSU pagination
func (p *NationalProvider) Fetch(ctx context.Context, clientCert *tls.Certificate, q Query) (*Result, error) {
	if clientCert == nil {
		return nil, fmt.Errorf("national environment requires a client certificate")
	}

	token, err := p.signToken(clientCert, q.ProviderCNPJ)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	url := fmt.Sprintf("%s/dfe/%s", p.baseURL, strconv.FormatInt(q.LastNSU+1, 10))
	reqCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	client := &http.Client{
		Timeout: p.timeout,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				Certificates: []tls.Certificate{*clientCert},
				MinVersion:   tls.VersionTLS12,
			},
		},
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("national environment request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		// No documents past the cursor.
		return &Result{FinalNSU: q.LastNSU}, nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		return nil, fmt.Errorf("national environment returned %d: %s", resp.StatusCode, body)
	}

	var dist distribution
	if err := json.NewDecoder(resp.Body).Decode(&dist); err != nil {
		return nil, fmt.Errorf("decode distribution: %w", err)
	}

	result := &Result{
		FinalNSU: dist.UltimoNSU,
		HasMore:  dist.MaxNSU > dist.UltimoNSU,
	}
	for _, doc := range dist.Documentos {
		xmlText, err := base64.StdEncoding.DecodeString(doc.ArquivoXml)
		if err != nil {
			return nil, fmt.Errorf("decode document NSU %d: %w", doc.NSU, err)
		}
		result.Docs = append(result.Docs, FetchedDoc{NSU: doc.NSU, XML: xmlText})
	}
	return result, nil
}

// signToken builds the RS256 JWT the national environment expects, signed
// with the certificate's RSA key.
func (p *NationalProvider) signToken(clientCert *tls.Certificate, cnpj string) (string, error) {
	rsaKey, ok := clientCert.PrivateKey.(*rsa.PrivateKey)
	if !ok {
		return "", fmt.Errorf("certificate key is not RSA")
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"iss": cnpj,
		"sub": cnpj,
		"aud": "adn.nfse.gov.br",
		"jti": uuid.NewString(),
		"iat": now.Unix(),
		"exp": now.Add(p.tokenTTL).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(rsaKey)
}
