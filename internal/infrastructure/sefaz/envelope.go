// Package sefaz implements the national DF-e distribution client used to
// pull NF-e and CT-e documents issued against a tenant.
package sefaz

import "encoding/xml"

// soapEnvelope is the SOAP 1.2 request wrapper for nfeDistDFeInteresse
type soapEnvelope struct {
	XMLName xml.Name `xml:"soap12:Envelope"`
	XmlnsXsi  string `xml:"xmlns:xsi,attr"`
	XmlnsXsd  string `xml:"xmlns:xsd,attr"`
	XmlnsSoap string `xml:"xmlns:soap12,attr"`
	Body      soapBody
}

type soapBody struct {
	XMLName xml.Name `xml:"soap12:Body"`
	Dist    distDFeInteresse
}

type distDFeInteresse struct {
	XMLName xml.Name `xml:"nfeDistDFeInteresse"`
	Xmlns   string   `xml:"xmlns,attr"`
	Dados   nfeDadosMsg
}

type nfeDadosMsg struct {
	XMLName xml.Name   `xml:"nfeDadosMsg"`
	Dist    distDFeInt `xml:"distDFeInt"`
}

// distDFeInt is the distribution query. Exactly one of DistNSU, ConsNSU or
// ConsChNFe is populated.
type distDFeInt struct {
	XMLName  xml.Name `xml:"distDFeInt"`
	Xmlns    string   `xml:"xmlns,attr"`
	Versao   string   `xml:"versao,attr"`
	TpAmb    string   `xml:"tpAmb"`
	CUFAutor string   `xml:"cUFAutor"`
	CNPJ     string   `xml:"CNPJ"`

	DistNSU   *distNSU   `xml:"distNSU,omitempty"`
	ConsNSU   *consNSU   `xml:"consNSU,omitempty"`
	ConsChNFe *consChNFe `xml:"consChNFe,omitempty"`
}

type distNSU struct {
	UltNSU string `xml:"ultNSU"`
}

type consNSU struct {
	NSU string `xml:"NSU"`
}

type consChNFe struct {
	ChNFe string `xml:"chNFe"`
}

// responseEnvelope decodes the SOAP response. Only local names matter; the
// namespace prefixes vary across the SEFAZ deployments.
type responseEnvelope struct {
	Body struct {
		Result struct {
			Ret retDistDFeInt `xml:"nfeDistDFeInteresseResult>retDistDFeInt"`
		} `xml:"nfeDistDFeInteresseResponse"`
		ResultCTe struct {
			Ret retDistDFeInt `xml:"cteDistDFeInteresseResult>retDistDFeInt"`
		} `xml:"cteDistDFeInteresseResponse"`
		Fault *soapFault `xml:"Fault"`
	} `xml:"Body"`
}

type soapFault struct {
	Code   string `xml:"Code>Value"`
	Reason string `xml:"Reason>Text"`
}

// retDistDFeInt is the distribution answer
type retDistDFeInt struct {
	TpAmb    string `xml:"tpAmb"`
	VerAplic string `xml:"verAplic"`
	CStat    string `xml:"cStat"`
	XMotivo  string `xml:"xMotivo"`
	UltNSU   string `xml:"ultNSU"`
	MaxNSU   string `xml:"maxNSU"`
	Lote     struct {
		DocZip []docZip `xml:"docZip"`
	} `xml:"loteDistDFeZip"`
}

// docZip carries one base64 gzip-compressed XML fragment
type docZip struct {
	NSU     string `xml:"NSU,attr"`
	Schema  string `xml:"schema,attr"`
	Content string `xml:",chardata"`
}
