package nfse

import (
	"fmt"
	"time"
)

// municipalityFamilies maps IBGE municipality codes to their provider
// family. Municipalities absent from this table fall back to the national
// environment when enabled, otherwise resolve to ErrUnknownProvider.
var municipalityFamilies = map[string]Family{
	// GINFES
	"3518800": FamilyGINFES, // Guarulhos/SP
	"3547809": FamilyGINFES, // Santo André/SP
	"3300456": FamilyGINFES, // Niterói/RJ
	// ISS.NET
	"5002704": FamilyISSNet, // Campo Grande/MS
	"5103403": FamilyISSNet, // Cuiabá/MT
	"2927408": FamilyISSNet, // Salvador/BA
	// BETHA
	"4205407": FamilyBetha, // Florianópolis/SC
	"4202404": FamilyBetha, // Blumenau/SC
	"4209102": FamilyBetha, // Joinville/SC
	// EISS
	"3143302": FamilyEISS, // Montes Claros/MG
	"3170206": FamilyEISS, // Uberlândia/MG
	// WEBISS
	"3304557": FamilyWebISS, // Rio de Janeiro/RJ (legacy districts)
	"1501402": FamilyWebISS, // Belém/PA
	"2111300": FamilyWebISS, // São Luís/MA
	// SIMPLISS
	"3549904": FamilySimpliss, // São José do Rio Preto/SP
	"3526902": FamilySimpliss, // Limeira/SP
}

// Registry resolves municipalities to providers
type Registry struct {
	providers map[Family]Provider
	national  Provider
}

// NewRegistry builds the registry with one shared client per family.
// national may be nil when the national environment is not configured.
func NewRegistry(timeout time.Duration, national Provider) (*Registry, error) {
	providers := make(map[Family]Provider, len(familySpecs))
	for family := range familySpecs {
		p, err := NewAbrasfProvider(family, timeout)
		if err != nil {
			return nil, fmt.Errorf("build %s provider: %w", family, err)
		}
		providers[family] = p
	}
	return &Registry{providers: providers, national: national}, nil
}

// Resolve returns the provider responsible for a municipality
func (r *Registry) Resolve(municipalityCode string) (Provider, error) {
	if family, ok := municipalityFamilies[municipalityCode]; ok {
		return r.providers[family], nil
	}
	if r.national != nil {
		return r.national, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, municipalityCode)
}

// KnownMunicipalities lists the codes with a dedicated family mapping
func (r *Registry) KnownMunicipalities() []string {
	codes := make([]string, 0, len(municipalityFamilies))
	for code := range municipalityFamilies {
		codes = append(codes, code)
	}
	return codes
}
