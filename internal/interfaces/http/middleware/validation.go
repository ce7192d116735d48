package middleware

import (
	"net/http"
	"reflect"
	"strings"

	"github.com/fiscalerp/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// SetupValidator configures the validator with custom tags
func SetupValidator() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		// Use JSON tag names for field names in errors
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				name = strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
			}
			return name
		})
		_ = v.RegisterValidation("cnpj", validateCNPJ)
	}
}

// validateCNPJ checks the 14-digit CNPJ including both verification digits
func validateCNPJ(fl validator.FieldLevel) bool {
	return ValidCNPJ(fl.Field().String())
}

// ValidCNPJ reports whether a string is a well-formed CNPJ. Digits only,
// no punctuation; repeated-digit numbers are invalid per the Receita rules.
func ValidCNPJ(cnpj string) bool {
	if len(cnpj) != 14 {
		return false
	}
	digits := make([]int, 14)
	allEqual := true
	for i, r := range cnpj {
		if r < '0' || r > '9' {
			return false
		}
		digits[i] = int(r - '0')
		if digits[i] != digits[0] {
			allEqual = false
		}
	}
	if allEqual {
		return false
	}

	weights1 := []int{5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
	weights2 := []int{6, 5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}

	check := func(weights []int) int {
		sum := 0
		for i, w := range weights {
			sum += digits[i] * w
		}
		rest := sum % 11
		if rest < 2 {
			return 0
		}
		return 11 - rest
	}

	return digits[12] == check(weights1) && digits[13] == check(weights2)
}

// FormatValidationErrors formats validation errors into a standard response
func FormatValidationErrors(err error, requestID string) dto.Response {
	var details []dto.ValidationDetail

	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		for _, e := range validationErrors {
			details = append(details, dto.ValidationDetail{
				Field:   e.Field(),
				Message: getValidationMessage(e),
			})
		}
	}

	return dto.NewValidationErrorResponse(
		"Request validation failed",
		requestID,
		details,
	)
}

// HandleValidationError returns a validation error response
func HandleValidationError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, FormatValidationErrors(err, GetRequestID(c)))
}

// getValidationMessage returns a human-readable validation message
func getValidationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "This field is required"
	case "min":
		if e.Type().Kind() == reflect.String {
			return "Must be at least " + e.Param() + " characters"
		}
		return "Must be at least " + e.Param()
	case "max":
		if e.Type().Kind() == reflect.String {
			return "Must be at most " + e.Param() + " characters"
		}
		return "Must be at most " + e.Param()
	case "len":
		return "Must be exactly " + e.Param() + " characters"
	case "uuid":
		return "Invalid UUID format"
	case "oneof":
		return "Must be one of: " + e.Param()
	case "cnpj":
		return "Invalid CNPJ"
	case "numeric":
		return "Must be numeric"
	case "datetime":
		return "Invalid date format"
	default:
		return "Invalid value"
	}
}
