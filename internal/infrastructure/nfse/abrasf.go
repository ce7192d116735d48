package nfse

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"time"
)

// Family identifies one ABRASF provider implementation
type Family string

const (
	FamilyGINFES   Family = "GINFES"
	FamilyISSNet   Family = "ISS.NET"
	FamilyBetha    Family = "BETHA"
	FamilyEISS     Family = "EISS"
	FamilyWebISS   Family = "WEBISS"
	FamilySimpliss Family = "SIMPLISS"
)

// familySpec captures how one family deviates from the ABRASF baseline.
// The operation is ConsultarNfseServicoPrestado everywhere; endpoints,
// SOAP versions and namespaces differ.
type familySpec struct {
	endpoint   string
	soapAction string
	namespace  string
	// soap12 selects SOAP 1.2 framing; the rest speak 1.1
	soap12 bool
	// abrasfVersion goes into the request header element
	abrasfVersion string
}

var familySpecs = map[Family]familySpec{
	FamilyGINFES: {
		endpoint:      "https://producao.ginfes.com.br/ServiceGinfesImpl",
		soapAction:    "http://homologacao.ginfes.com.br/ConsultarNfseV3",
		namespace:     "http://homologacao.ginfes.com.br",
		abrasfVersion: "1.00",
	},
	FamilyISSNet: {
		endpoint:      "https://www.issnetonline.com.br/webserviceabrasf/homologacao/servicos.asmx",
		soapAction:    "http://www.issnetonline.com.br/webservice/nfd/ConsultarNfse",
		namespace:     "http://www.issnetonline.com.br/webservice/nfd",
		abrasfVersion: "1.00",
	},
	FamilyBetha: {
		endpoint:      "https://e-gov.betha.com.br/e-nota-contribuinte-ws/nfseWS",
		soapAction:    "ConsultarNfseServicoPrestadoEnvio",
		namespace:     "http://www.betha.com.br/e-nota-contribuinte-ws",
		soap12:        true,
		abrasfVersion: "2.02",
	},
	FamilyEISS: {
		endpoint:      "https://www.eiss.com.br/ws/nfse",
		soapAction:    "ConsultarNfseServicoPrestado",
		namespace:     "http://www.eiss.com.br/nfse",
		abrasfVersion: "2.01",
	},
	FamilyWebISS: {
		endpoint:      "https://nfse.webiss.com.br/ws/nfse.asmx",
		soapAction:    "http://nfse.abrasf.org.br/ConsultarNfseServicoPrestado",
		namespace:     "http://nfse.abrasf.org.br",
		soap12:        true,
		abrasfVersion: "2.02",
	},
	FamilySimpliss: {
		endpoint:      "http://wsnfse.simplissweb.com.br/nfseservice.svc",
		soapAction:    "http://www.sistema.com.br/Nfse/arquivos/ConsultarNfse",
		namespace:     "http://www.sistema.com.br/Nfse/arquivos",
		abrasfVersion: "1.00",
	},
}

// compNfsePattern splits CompNfse fragments out of a consulta response
// without modeling every family's reply wrapper.
var compNfsePattern = regexp.MustCompile(`(?s)<(?:\w+:)?CompNfse[ >].*?</(?:\w+:)?CompNfse>`)

// AbrasfProvider is the generic SOAP client shared by the six ABRASF
// families, specialized by the family table.
type AbrasfProvider struct {
	family  Family
	spec    familySpec
	timeout time.Duration
	// endpointOverride points requests at a fixed URL, used by tests
	endpointOverride string
}

// NewAbrasfProvider creates the provider for one family
func NewAbrasfProvider(family Family, timeout time.Duration) (*AbrasfProvider, error) {
	spec, ok := familySpecs[family]
	if !ok {
		return nil, fmt.Errorf("%w: family %s", ErrUnknownProvider, family)
	}
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &AbrasfProvider{family: family, spec: spec, timeout: timeout}, nil
}

// Name implements Provider
func (p *AbrasfProvider) Name() string {
	return string(p.family)
}

// Fetch implements Provider. ABRASF families are date windowed; NSU fields
// of the query are ignored.
func (p *AbrasfProvider) Fetch(ctx context.Context, clientCert *tls.Certificate, q Query) (*Result, error) {
	endpoint := p.endpointOverride
	if endpoint == "" {
		endpoint = p.spec.endpoint
	}

	body := p.buildEnvelope(q)

	reqCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if p.spec.soap12 {
		req.Header.Set("Content-Type", `application/soap+xml; charset=utf-8; action="`+p.spec.soapAction+`"`)
	} else {
		req.Header.Set("Content-Type", "text/xml; charset=utf-8")
		req.Header.Set("SOAPAction", p.spec.soapAction)
	}

	client := &http.Client{Timeout: p.timeout}
	if clientCert != nil {
		client.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{
				Certificates: []tls.Certificate{*clientCert},
				MinVersion:   tls.VersionTLS12,
			},
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request: %w", p.family, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, fmt.Errorf("%s read response: %w", p.family, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned %d", p.family, resp.StatusCode)
	}

	result := &Result{}
	for _, fragment := range compNfsePattern.FindAll(raw, -1) {
		result.Docs = append(result.Docs, FetchedDoc{XML: fragment})
	}
	return result, nil
}

// buildEnvelope renders the ConsultarNfseServicoPrestado request for the
// family's SOAP dialect.
func (p *AbrasfProvider) buildEnvelope(q Query) []byte {
	consulta := consultarNfseEnvio{
		Xmlns:  "http://www.abrasf.org.br/nfse.xsd",
		Versao: p.spec.abrasfVersion,
	}
	consulta.Prestador.Cnpj = q.ProviderCNPJ
	consulta.Prestador.InscricaoMunicipal = q.MunicipalRegistration
	consulta.PeriodoEmissao.DataInicial = q.From.Format("2006-01-02")
	consulta.PeriodoEmissao.DataFinal = q.To.Format("2006-01-02")
	inner, _ := xml.Marshal(consulta)

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	if p.spec.soap12 {
		buf.WriteString(`<soap12:Envelope xmlns:soap12="http://www.w3.org/2003/05/soap-envelope"><soap12:Body>`)
	} else {
		buf.WriteString(`<soapenv:Envelope xmlns:soapenv="http://schemas.xmlsoap.org/soap/envelope/"><soapenv:Body>`)
	}
	fmt.Fprintf(&buf, `<ConsultarNfseServicoPrestado xmlns=%q>`, p.spec.namespace)
	buf.Write(inner)
	buf.WriteString(`</ConsultarNfseServicoPrestado>`)
	if p.spec.soap12 {
		buf.WriteString(`</soap12:Body></soap12:Envelope>`)
	} else {
		buf.WriteString(`</soapenv:Body></soapenv:Envelope>`)
	}
	return buf.Bytes()
}

// consultarNfseEnvio is the ABRASF query payload shared by the families
type consultarNfseEnvio struct {
	XMLName   xml.Name `xml:"ConsultarNfseServicoPrestadoEnvio"`
	Xmlns     string   `xml:"xmlns,attr"`
	Versao    string   `xml:"versao,attr"`
	Prestador struct {
		Cnpj               string `xml:"CpfCnpj>Cnpj"`
		InscricaoMunicipal string `xml:"InscricaoMunicipal"`
	} `xml:"Prestador"`
	PeriodoEmissao struct {
		DataInicial string `xml:"DataInicial"`
		DataFinal   string `xml:"DataFinal"`
	} `xml:"PeriodoEmissao"`
}
