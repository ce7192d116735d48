package fiscal

import (
	"fmt"
	"time"

	"github.com/fiscalerp/backend/internal/domain/shared"
)

// AccessKeyLength is the length of the national NF-e/CT-e access key
const AccessKeyLength = 44

// ErrInvalidAccessKey reports a structurally invalid 44-digit key
var ErrInvalidAccessKey = shared.NewDomainError("INVALID_ACCESS_KEY",
	"Access key must have 44 digits and a valid check digit")

// AccessKey is the 44-digit national key of an NF-e or CT-e:
// cUF(2) AAMM(4) CNPJ(14) modelo(2) série(3) número(9) tpEmis(1) cNF(8) cDV(1).
type AccessKey string

// ParseAccessKey validates the structure and check digit of a key
func ParseAccessKey(s string) (AccessKey, error) {
	if !ValidateKey(s) {
		return "", ErrInvalidAccessKey
	}
	return AccessKey(s), nil
}

// ValidateKey reports whether s is a well-formed 44-digit access key with a
// correct modulo-11 check digit.
func ValidateKey(s string) bool {
	if len(s) != AccessKeyLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return CheckDigit(s[:AccessKeyLength-1]) == int(s[AccessKeyLength-1]-'0')
}

// CheckDigit computes the modulo-11 check digit over the 43 leading digits.
// Weights cycle 2..9 from the rightmost digit; remainders 0 and 1 map to 0.
func CheckDigit(digits43 string) int {
	sum, weight := 0, 2
	for i := len(digits43) - 1; i >= 0; i-- {
		sum += int(digits43[i]-'0') * weight
		weight++
		if weight > 9 {
			weight = 2
		}
	}
	r := sum % 11
	if r < 2 {
		return 0
	}
	return 11 - r
}

// UF returns the IBGE federal-unit code (digits 1-2)
func (k AccessKey) UF() string {
	return string(k[0:2])
}

// EmissionYearMonth returns the embedded AAMM field (digits 3-6) as a
// calendar year and month.
func (k AccessKey) EmissionYearMonth() (int, time.Month) {
	year := 2000 + int(k[2]-'0')*10 + int(k[3]-'0')
	month := int(k[4]-'0')*10 + int(k[5]-'0')
	if month < 1 || month > 12 {
		month = 1
	}
	return year, time.Month(month)
}

// IssuerCNPJ returns the issuer CNPJ field (digits 7-20)
func (k AccessKey) IssuerCNPJ() string {
	return string(k[6:20])
}

// Model returns the document model field (digits 21-22): 55 NF-e, 57 CT-e
func (k AccessKey) Model() string {
	return string(k[20:22])
}

// Series returns the série field (digits 23-25)
func (k AccessKey) Series() string {
	return string(k[22:25])
}

// Number returns the document number field (digits 26-34)
func (k AccessKey) Number() string {
	return string(k[25:34])
}

// String returns the raw 44 digits
func (k AccessKey) String() string {
	return string(k)
}

// KindFromModel maps the key's model field to the document kind
func (k AccessKey) KindFromModel() (DocumentKind, error) {
	switch k.Model() {
	case "55":
		return KindNFe, nil
	case "57":
		return KindCTe, nil
	default:
		return "", fmt.Errorf("%w: unknown model %s", shared.ErrInvalidInput, k.Model())
	}
}
