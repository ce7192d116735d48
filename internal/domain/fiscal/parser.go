package fiscal

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fiscalerp/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/text/encoding/charmap"
)

// ErrMalformedXml reports an XML payload the parser could not understand.
// The ingestion engine logs it and continues with the next document.
var ErrMalformedXml = shared.NewDomainError("MALFORMED_XML", "Fiscal document XML could not be parsed")

// MalformedXmlError wraps ErrMalformedXml naming the document key or the
// position within the batch.
func MalformedXmlError(ref string, cause error) error {
	return fmt.Errorf("%w: %s: %v", ErrMalformedXml, ref, cause)
}

// SchemaVariant distinguishes the payload shapes a distribution batch can carry
type SchemaVariant string

const (
	// VariantProc is the full authorized document (procNFe/procCTe/nfse)
	VariantProc SchemaVariant = "proc"
	// VariantResume is the summary shape (resNFe/resCTe)
	VariantResume SchemaVariant = "resumo"
	// VariantEvent is a post-hoc event (cancellation, correction letter)
	VariantEvent SchemaVariant = "evento"
)

// Schema identifies the kind and variant of one XML payload
type Schema struct {
	Kind    DocumentKind
	Variant SchemaVariant
	// EventType carries the tpEvento code for event payloads
	EventType string
}

// StoragePrefix names the archive file class of this payload: procNFe and
// procCTe for authorized documents, resNFe and resCTe for distribution
// resumes, nfse for service invoices and evento_<tpEvento> for events. A
// resume and the later authorized document of the same key coexist under
// distinct prefixes instead of conflicting.
func (s Schema) StoragePrefix() string {
	if s.Variant == VariantEvent {
		if s.EventType == "" {
			return "evento"
		}
		return "evento_" + s.EventType
	}
	switch s.Kind {
	case KindNFe:
		if s.Variant == VariantResume {
			return "resNFe"
		}
		return "procNFe"
	case KindCTe:
		if s.Variant == VariantResume {
			return "resCTe"
		}
		return "procCTe"
	default:
		return "nfse"
	}
}

// charsetReader tolerates the Latin-1 declarations common in municipal
// provider responses.
func charsetReader(charset string, input io.Reader) (io.Reader, error) {
	switch strings.ToLower(charset) {
	case "iso-8859-1", "latin1", "windows-1252":
		return charmap.ISO8859_1.NewDecoder().Reader(input), nil
	case "utf-8", "":
		return input, nil
	}
	return nil, fmt.Errorf("unsupported charset %q", charset)
}

// rootElement returns the local name of the document's root element,
// namespace stripped.
func rootElement(raw []byte) (string, error) {
	dec := xml.NewDecoder(bytes.NewReader(raw))
	dec.CharsetReader = charsetReader
	for {
		tok, err := dec.Token()
		if err != nil {
			return "", err
		}
		if start, ok := tok.(xml.StartElement); ok {
			return start.Name.Local, nil
		}
	}
}

// DetectSchema inspects the root element and classifies the payload.
// Namespace prefixes vary across federal units and municipal providers, so
// only local names are considered.
func DetectSchema(raw []byte) (Schema, error) {
	root, err := rootElement(raw)
	if err != nil {
		return Schema{}, MalformedXmlError("root", err)
	}
	switch root {
	case "nfeProc", "NFe":
		return Schema{Kind: KindNFe, Variant: VariantProc}, nil
	case "resNFe":
		return Schema{Kind: KindNFe, Variant: VariantResume}, nil
	case "procEventoNFe", "evento":
		s := Schema{Kind: KindNFe, Variant: VariantEvent}
		s.EventType = eventType(raw)
		return s, nil
	case "cteProc", "CTe":
		return Schema{Kind: KindCTe, Variant: VariantProc}, nil
	case "resCTe":
		return Schema{Kind: KindCTe, Variant: VariantResume}, nil
	case "procEventoCTe", "eventoCTe":
		s := Schema{Kind: KindCTe, Variant: VariantEvent}
		s.EventType = eventType(raw)
		return s, nil
	case "CompNfse", "Nfse", "ConsultarNfseResposta", "GerarNfseResposta":
		return Schema{Kind: KindNFSe, Variant: VariantProc}, nil
	}
	return Schema{}, MalformedXmlError(root, fmt.Errorf("unknown root element"))
}

// unmarshal decodes raw XML with charset tolerance
func unmarshal(raw []byte, v any) error {
	dec := xml.NewDecoder(bytes.NewReader(raw))
	dec.CharsetReader = charsetReader
	return dec.Decode(v)
}

// dec parses a decimal field, defaulting missing or malformed values to zero
func dec(s string) decimal.Decimal {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// parseDate tolerates the date layouts seen across SEFAZ and municipal
// providers.
func parseDate(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range []string{
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// statusFromCStat maps a SEFAZ situation code to the document status.
// Unknown codes are recorded as normal for operator review.
func statusFromCStat(cStat string) DocumentStatus {
	switch cStat {
	case "100", "150":
		return StatusNormal
	case "101", "151", "155":
		return StatusCancelled
	case "110", "301", "302", "303":
		return StatusDenied
	default:
		return StatusNormal
	}
}

// EventTypeCancellation is the tpEvento code of a cancellation event
const EventTypeCancellation = "110111"

// Parser converts raw XML payloads into neutral Document records for one
// tenant. The tenant CNPJ resolves the document direction.
type Parser struct {
	tenantID   uuid.UUID
	tenantCNPJ string
}

// NewParser creates a parser bound to a tenant
func NewParser(tenantID uuid.UUID, tenantCNPJ string) *Parser {
	return &Parser{tenantID: tenantID, tenantCNPJ: tenantCNPJ}
}

// Extract populates a Document from one payload according to its schema.
// Event payloads are rejected: they carry no document of their own, only a
// status transition for the key EventKey returns.
func (p *Parser) Extract(raw []byte, schema Schema) (*Document, error) {
	switch {
	case schema.Kind == KindNFe && schema.Variant == VariantProc:
		return p.extractNFe(raw)
	case schema.Kind == KindNFe && schema.Variant == VariantResume:
		return p.extractResNFe(raw)
	case schema.Kind == KindCTe && schema.Variant == VariantProc:
		return p.extractCTe(raw)
	case schema.Kind == KindCTe && schema.Variant == VariantResume:
		return p.extractResCTe(raw)
	case schema.Kind == KindNFSe:
		return p.extractNFSe(raw)
	default:
		return nil, MalformedXmlError(string(schema.Kind), fmt.Errorf("variant %s carries no document", schema.Variant))
	}
}

// EventKey returns the access key an event payload refers to
func EventKey(raw []byte) (string, error) {
	var ev procEvento
	if err := unmarshal(raw, &ev); err != nil {
		return "", MalformedXmlError("evento", err)
	}
	key := ev.Evento.InfEvento.ChNFe
	if key == "" {
		key = ev.Evento.InfEvento.ChCTe
	}
	if key == "" {
		return "", MalformedXmlError("evento", fmt.Errorf("missing document key"))
	}
	return key, nil
}

func eventType(raw []byte) string {
	var ev procEvento
	if err := unmarshal(raw, &ev); err != nil {
		return ""
	}
	return ev.Evento.InfEvento.TpEvento
}

func (p *Parser) extractNFe(raw []byte) (*Document, error) {
	var proc nfeProc
	if err := unmarshal(raw, &proc); err != nil {
		return nil, MalformedXmlError("nfeProc", err)
	}
	inf := proc.NFe.InfNFe
	key := strings.TrimPrefix(inf.ID, "NFe")
	if key == "" {
		key = proc.ProtNFe.InfProt.ChNFe
	}
	if !ValidateKey(key) {
		return nil, MalformedXmlError(key, fmt.Errorf("invalid access key"))
	}

	issueDate := parseDate(inf.Ide.DhEmi)
	if issueDate.IsZero() {
		issueDate = parseDate(inf.Ide.DEmi)
	}

	participant := inf.Dest.CNPJ
	if participant == "" {
		participant = inf.Dest.CPF
	}

	doc := &Document{
		TenantEntity:    shared.NewTenantEntity(p.tenantID),
		Kind:            KindNFe,
		Key:             key,
		Series:          inf.Ide.Serie,
		Number:          inf.Ide.NNF,
		IssuerCNPJ:      inf.Emit.CNPJ,
		IssuerName:      inf.Emit.XNome,
		ParticipantCNPJ: participant,
		ParticipantName: inf.Dest.XNome,
		Direction:       DetermineDirection(inf.Emit.CNPJ, participant, p.tenantCNPJ),
		Status:          statusFromCStat(proc.ProtNFe.InfProt.CStat),
		IssueDate:       issueDate,
		CompetenceDate:  issueDate,
		TotalAmount:     dec(inf.Total.ICMSTot.VNF),
		Taxes: TaxTotals{
			ICMSBase:   dec(inf.Total.ICMSTot.VBC),
			ICMS:       dec(inf.Total.ICMSTot.VICMS),
			ICMSST:     dec(inf.Total.ICMSTot.VST),
			IPI:        dec(inf.Total.ICMSTot.VIPI),
			PIS:        dec(inf.Total.ICMSTot.VPIS),
			COFINS:     dec(inf.Total.ICMSTot.VCOFINS),
			Discount:   dec(inf.Total.ICMSTot.VDesc),
			Freight:    dec(inf.Total.ICMSTot.VFrete),
			ProductSum: dec(inf.Total.ICMSTot.VProd),
		},
	}
	for i, det := range inf.Det {
		icmsCST, icmsBase, icmsValue := det.Imposto.ICMS.values()
		doc.Items = append(doc.Items, DocumentItem{
			ID:          uuid.New(),
			DocumentID:  doc.ID,
			TenantID:    p.tenantID,
			Sequence:    i + 1,
			Code:        det.Prod.CProd,
			Description: det.Prod.XProd,
			NCM:         det.Prod.NCM,
			CFOP:        det.Prod.CFOP,
			Unit:        det.Prod.UCom,
			Quantity:    dec(det.Prod.QCom),
			UnitPrice:   dec(det.Prod.VUnCom),
			Total:       dec(det.Prod.VProd),
			ICMSCST:     icmsCST,
			ICMSBase:    icmsBase,
			ICMS:        icmsValue,
			IPI:         dec(det.Imposto.IPI.IPITrib.VIPI),
			PIS:         dec(det.Imposto.PIS.PISAliq.VPIS),
			COFINS:      dec(det.Imposto.COFINS.COFINSAliq.VCOFINS),
		})
	}
	return doc, nil
}

func (p *Parser) extractResNFe(raw []byte) (*Document, error) {
	var res resNFe
	if err := unmarshal(raw, &res); err != nil {
		return nil, MalformedXmlError("resNFe", err)
	}
	if !ValidateKey(res.ChNFe) {
		return nil, MalformedXmlError(res.ChNFe, fmt.Errorf("invalid access key"))
	}
	key := AccessKey(res.ChNFe)
	return &Document{
		TenantEntity:    shared.NewTenantEntity(p.tenantID),
		Kind:            KindNFe,
		Key:             res.ChNFe,
		Series:          key.Series(),
		Number:          key.Number(),
		IssuerCNPJ:      res.CNPJ,
		IssuerName:      res.XNome,
		ParticipantCNPJ: p.tenantCNPJ,
		Direction:       DetermineDirection(res.CNPJ, p.tenantCNPJ, p.tenantCNPJ),
		Status:          statusFromCStat(res.CSitNFe),
		IssueDate:       parseDate(res.DhEmi),
		CompetenceDate:  parseDate(res.DhEmi),
		TotalAmount:     dec(res.VNF),
	}, nil
}

func (p *Parser) extractCTe(raw []byte) (*Document, error) {
	var proc cteProc
	if err := unmarshal(raw, &proc); err != nil {
		return nil, MalformedXmlError("cteProc", err)
	}
	inf := proc.CTe.InfCte
	key := strings.TrimPrefix(inf.ID, "CTe")
	if key == "" {
		key = proc.ProtCTe.InfProt.ChCTe
	}
	if !ValidateKey(key) {
		return nil, MalformedXmlError(key, fmt.Errorf("invalid access key"))
	}
	issueDate := parseDate(inf.Ide.DhEmi)
	participant := inf.Dest.CNPJ
	if participant == "" {
		participant = inf.Rem.CNPJ
	}
	return &Document{
		TenantEntity:    shared.NewTenantEntity(p.tenantID),
		Kind:            KindCTe,
		Key:             key,
		Series:          inf.Ide.Serie,
		Number:          inf.Ide.NCT,
		IssuerCNPJ:      inf.Emit.CNPJ,
		IssuerName:      inf.Emit.XNome,
		ParticipantCNPJ: participant,
		ParticipantName: inf.Dest.XNome,
		Direction:       DetermineDirection(inf.Emit.CNPJ, participant, p.tenantCNPJ),
		Status:          statusFromCStat(proc.ProtCTe.InfProt.CStat),
		IssueDate:       issueDate,
		CompetenceDate:  issueDate,
		TotalAmount:     dec(inf.VPrest.VTPrest),
		Taxes: TaxTotals{
			ICMS: dec(inf.Imp.ICMS.ICMS00.VICMS),
		},
	}, nil
}

func (p *Parser) extractResCTe(raw []byte) (*Document, error) {
	var res resCTe
	if err := unmarshal(raw, &res); err != nil {
		return nil, MalformedXmlError("resCTe", err)
	}
	if !ValidateKey(res.ChCTe) {
		return nil, MalformedXmlError(res.ChCTe, fmt.Errorf("invalid access key"))
	}
	key := AccessKey(res.ChCTe)
	return &Document{
		TenantEntity:    shared.NewTenantEntity(p.tenantID),
		Kind:            KindCTe,
		Key:             res.ChCTe,
		Series:          key.Series(),
		Number:          key.Number(),
		IssuerCNPJ:      res.CNPJ,
		IssuerName:      res.XNome,
		ParticipantCNPJ: p.tenantCNPJ,
		Direction:       DetermineDirection(res.CNPJ, p.tenantCNPJ, p.tenantCNPJ),
		Status:          StatusNormal,
		IssueDate:       parseDate(res.DhEmi),
		CompetenceDate:  parseDate(res.DhEmi),
		TotalAmount:     dec(res.VCarga),
	}, nil
}

func (p *Parser) extractNFSe(raw []byte) (*Document, error) {
	var comp compNfse
	if err := unmarshal(raw, &comp); err != nil {
		return nil, MalformedXmlError("nfse", err)
	}
	inf := comp.Nfse.InfNfse
	if inf.Numero == "" {
		return nil, MalformedXmlError("nfse", fmt.Errorf("missing NFS-e number"))
	}
	issueDate := parseDate(inf.DataEmissao)
	competence := parseDate(inf.Competencia)
	if competence.IsZero() {
		competence = issueDate
	}
	issuer := inf.PrestadorServico.IdentificacaoPrestador.Cnpj
	participant := inf.TomadorServico.IdentificacaoTomador.CpfCnpj.Cnpj

	doc := &Document{
		TenantEntity:     shared.NewTenantEntity(p.tenantID),
		Kind:             KindNFSe,
		MunicipalityCode: inf.Servico.CodigoMunicipio,
		Number:           inf.Numero,
		IssuerCNPJ:       issuer,
		IssuerName:       inf.PrestadorServico.RazaoSocial,
		ParticipantCNPJ:  participant,
		ParticipantName:  inf.TomadorServico.RazaoSocial,
		Direction:        DetermineDirection(issuer, participant, p.tenantCNPJ),
		Status:           StatusNormal,
		IssueDate:        issueDate,
		CompetenceDate:   competence,
		TotalAmount:      dec(inf.Servico.Valores.ValorServicos),
		Taxes: TaxTotals{
			ISS:     dec(inf.Servico.Valores.ValorIss),
			ISSBase: dec(inf.Servico.Valores.BaseCalculo),
			PIS:     dec(inf.Servico.Valores.ValorPis),
			COFINS:  dec(inf.Servico.Valores.ValorCofins),
		},
	}
	if inf.NfseCancelamento.Confirmacao != "" {
		doc.Status = StatusCancelled
	}
	doc.Items = append(doc.Items, DocumentItem{
		ID:          uuid.New(),
		DocumentID:  doc.ID,
		TenantID:    p.tenantID,
		Sequence:    1,
		Description: strings.TrimSpace(inf.Servico.Discriminacao),
		Quantity:    decimal.New(1, 0),
		UnitPrice:   dec(inf.Servico.Valores.ValorServicos),
		Total:       dec(inf.Servico.Valores.ValorServicos),
		ISS:         dec(inf.Servico.Valores.ValorIss),
	})
	return doc, nil
}
