package sefaz

import "fmt"

// Environment selects the SEFAZ deployment
type Environment string

const (
	EnvironmentProduction   Environment = "production"
	EnvironmentHomologation Environment = "homologation"
)

// tpAmb returns the SEFAZ environment code (1 production, 2 homologation)
func (e Environment) tpAmb() string {
	if e == EnvironmentProduction {
		return "1"
	}
	return "2"
}

// Service distinguishes the NF-e and CT-e distribution services
type Service string

const (
	ServiceNFe Service = "nfe"
	ServiceCTe Service = "cte"
)

// Distribution runs on the national environment; every federal unit queries
// the same endpoint, authorship is carried by cUFAutor in the payload.
var distributionEndpoints = map[Service]map[Environment]string{
	ServiceNFe: {
		EnvironmentProduction:   "https://www1.nfe.fazenda.gov.br/NFeDistribuicaoDFe/NFeDistribuicaoDFe.asmx",
		EnvironmentHomologation: "https://hom1.nfe.fazenda.gov.br/NFeDistribuicaoDFe/NFeDistribuicaoDFe.asmx",
	},
	ServiceCTe: {
		EnvironmentProduction:   "https://www1.cte.fazenda.gov.br/CTeDistribuicaoDFe/CTeDistribuicaoDFe.asmx",
		EnvironmentHomologation: "https://hom1.cte.fazenda.gov.br/CTeDistribuicaoDFe/CTeDistribuicaoDFe.asmx",
	},
}

var soapActions = map[Service]string{
	ServiceNFe: "http://www.portalfiscal.inf.br/nfe/wsdl/NFeDistribuicaoDFe/nfeDistDFeInteresse",
	ServiceCTe: "http://www.portalfiscal.inf.br/cte/wsdl/CTeDistribuicaoDFe/cteDistDFeInteresse",
}

var serviceNamespaces = map[Service]string{
	ServiceNFe: "http://www.portalfiscal.inf.br/nfe/wsdl/NFeDistribuicaoDFe",
	ServiceCTe: "http://www.portalfiscal.inf.br/cte/wsdl/CTeDistribuicaoDFe",
}

// Endpoint resolves the distribution URL for a service and environment
func Endpoint(service Service, env Environment) (string, error) {
	byEnv, ok := distributionEndpoints[service]
	if !ok {
		return "", fmt.Errorf("unknown distribution service %q", service)
	}
	url, ok := byEnv[env]
	if !ok {
		return "", fmt.Errorf("unknown environment %q", env)
	}
	return url, nil
}

// validUFAutor is the IBGE federal unit code set accepted as cUFAutor
var validUFAutor = map[string]bool{
	"11": true, "12": true, "13": true, "14": true, "15": true, "16": true, "17": true,
	"21": true, "22": true, "23": true, "24": true, "25": true, "26": true, "27": true, "28": true, "29": true,
	"31": true, "32": true, "33": true, "35": true,
	"41": true, "42": true, "43": true,
	"50": true, "51": true, "52": true, "53": true,
	"91": true,
}
