package nfse

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryResolve(t *testing.T) {
	t.Run("known municipality resolves to its family", func(t *testing.T) {
		registry, err := NewRegistry(time.Second, nil)
		require.NoError(t, err)

		provider, err := registry.Resolve("3518800")
		require.NoError(t, err)
		assert.Equal(t, "GINFES", provider.Name())

		provider, err = registry.Resolve("4205407")
		require.NoError(t, err)
		assert.Equal(t, "BETHA", provider.Name())
	})

	t.Run("unknown municipality falls back to national", func(t *testing.T) {
		national := NewNationalProvider("", time.Second)
		registry, err := NewRegistry(time.Second, national)
		require.NoError(t, err)

		provider, err := registry.Resolve("9999999")
		require.NoError(t, err)
		assert.Equal(t, "NACIONAL", provider.Name())
	})

	t.Run("unknown municipality without national fails", func(t *testing.T) {
		registry, err := NewRegistry(time.Second, nil)
		require.NoError(t, err)

		_, err = registry.Resolve("9999999")
		assert.ErrorIs(t, err, ErrUnknownProvider)
	})
}

const consultaResponse = `<?xml version="1.0"?>
<soapenv:Envelope xmlns:soapenv="http://schemas.xmlsoap.org/soap/envelope/">
  <soapenv:Body>
    <ConsultarNfseServicoPrestadoResposta>
      <ListaNfse>
        <CompNfse><Nfse><InfNfse><Numero>1</Numero></InfNfse></Nfse></CompNfse>
        <CompNfse><Nfse><InfNfse><Numero>2</Numero></InfNfse></Nfse></CompNfse>
      </ListaNfse>
    </ConsultarNfseServicoPrestadoResposta>
  </soapenv:Body>
</soapenv:Envelope>`

func TestAbrasfProviderFetch(t *testing.T) {
	var gotBody, gotContentType, gotAction string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		gotContentType = r.Header.Get("Content-Type")
		gotAction = r.Header.Get("SOAPAction")
		w.Write([]byte(consultaResponse))
	}))
	defer server.Close()

	provider, err := NewAbrasfProvider(FamilyGINFES, time.Second)
	require.NoError(t, err)
	provider.endpointOverride = server.URL

	result, err := provider.Fetch(context.Background(), nil, Query{
		ProviderCNPJ:          "98765432000155",
		MunicipalRegistration: "12345",
		MunicipalityCode:      "3518800",
		From:                  time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		To:                    time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Len(t, result.Docs, 2)
	assert.Contains(t, string(result.Docs[0].XML), "<Numero>1</Numero>")
	assert.Contains(t, string(result.Docs[1].XML), "<Numero>2</Numero>")

	// GINFES speaks SOAP 1.1 with a date-windowed ABRASF consulta.
	assert.Contains(t, gotContentType, "text/xml")
	assert.NotEmpty(t, gotAction)
	assert.Contains(t, gotBody, "<Cnpj>98765432000155</Cnpj>")
	assert.Contains(t, gotBody, "<DataInicial>2026-02-01</DataInicial>")
	assert.Contains(t, gotBody, "<DataFinal>2026-02-28</DataFinal>")
}

func TestAbrasfProviderSoap12Framing(t *testing.T) {
	var gotContentType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		w.Write([]byte(consultaResponse))
	}))
	defer server.Close()

	provider, err := NewAbrasfProvider(FamilyWebISS, time.Second)
	require.NoError(t, err)
	provider.endpointOverride = server.URL

	_, err = provider.Fetch(context.Background(), nil, Query{ProviderCNPJ: "98765432000155"})
	require.NoError(t, err)
	assert.Contains(t, gotContentType, "application/soap+xml")
}

func TestAbrasfProviderUnknownFamily(t *testing.T) {
	_, err := NewAbrasfProvider(Family("DSF"), time.Second)
	assert.ErrorIs(t, err, ErrUnknownProvider)
}

func testTLSCert(t *testing.T) *tls.Certificate {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return &tls.Certificate{PrivateKey: key}
}

func TestNationalProviderFetch(t *testing.T) {
	cert := testTLSCert(t)
	invoice := base64.StdEncoding.EncodeToString([]byte("<CompNfse/>"))

	var gotPath, gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(map[string]any{
			"StatusProcessamento": "OK",
			"UltimoNSU":           12,
			"MaxNSU":              40,
			"LoteDFe": []map[string]any{
				{"NSU": 11, "ArquivoXml": invoice},
				{"NSU": 12, "ArquivoXml": invoice},
			},
		})
	}))
	defer server.Close()

	provider := NewNationalProvider(server.URL, time.Second)
	result, err := provider.Fetch(context.Background(), cert, Query{
		ProviderCNPJ: "98765432000155",
		LastNSU:      10,
	})
	require.NoError(t, err)

	assert.Equal(t, "/dfe/11", gotPath)
	require.Len(t, result.Docs, 2)
	assert.EqualValues(t, 11, result.Docs[0].NSU)
	assert.Equal(t, "<CompNfse/>", string(result.Docs[0].XML))
	assert.EqualValues(t, 12, result.FinalNSU)
	assert.True(t, result.HasMore)

	// The bearer token is an RS256 JWT signed with the certificate key.
	require.True(t, strings.HasPrefix(gotAuth, "Bearer "))
	token, _, err := jwt.NewParser().ParseUnverified(strings.TrimPrefix(gotAuth, "Bearer "), jwt.MapClaims{})
	require.NoError(t, err)
	assert.Equal(t, "RS256", token.Method.Alg())
	claims := token.Claims.(jwt.MapClaims)
	assert.Equal(t, "98765432000155", claims["sub"])
}

func TestNationalProviderNoDocuments(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	provider := NewNationalProvider(server.URL, time.Second)
	result, err := provider.Fetch(context.Background(), testTLSCert(t), Query{LastNSU: 7})
	require.NoError(t, err)
	assert.Empty(t, result.Docs)
	assert.EqualValues(t, 7, result.FinalNSU)
	assert.False(t, result.HasMore)
}

func TestNationalProviderRequiresCertificate(t *testing.T) {
	provider := NewNationalProvider("http://unused", time.Second)
	_, err := provider.Fetch(context.Background(), nil, Query{})
	assert.Error(t, err)
}
