// internal/utils/validator.go
package utils

import (
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	validate *validator.Validate

	certificateIDPattern = regexp.MustCompile(`^CERT-[0-9]{13}-[A-Z0-9]{6}$`)
	txHashPattern        = regexp.MustCompile(`^0x[0-9a-fA-F]{64}$`)
)

func init() {
	validate = validator.New()
	validate.RegisterValidation("cert_id", validateCertificateID)
	validate.RegisterValidation("tx_hash", validateTxHash)
}

func ValidateStruct(s interface{}) error {
	return validate.Struct(s)
}

func IsCertificateID(s string) bool {
	return certificateIDPattern.MatchString(s)
}

func IsTxHash(s string) bool {
	return txHashPattern.MatchString(s)
}

func validateCertificateID(fl validator.FieldLevel) bool {
	return IsCertificateID(fl.Field().String())
}

func validateTxHash(fl validator.FieldLevel) bool {
	return IsTxHash(fl.Field().String())
}

// Validation tags for common fields
type ValidationError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

func GetValidationErrors(err error) []ValidationError {
	var validationErrors []ValidationError

	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		for _, e := range validationErrs {
			validationErrors = append(validationErrors, ValidationError{
				Field:   strings.ToLower(e.Field()),
				Tag:     e.Tag(),
				Message: getValidationMessage(e),
			})
		}
	}

	return validationErrors
}

func getValidationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return e.Field() + " is required"
	case "max":
		return e.Field() + " must be at most " + e.Param() + " characters"
	case "lte":
		return e.Field() + " must be at most " + e.Param()
	case "eth_addr":
		return e.Field() + " must be a 0x-prefixed 20-byte hex address"
	case "cert_id":
		return e.Field() + " must look like CERT-<13 digits>-<6 uppercase letters or digits>"
	case "tx_hash":
		return e.Field() + " must be a 0x-prefixed 32-byte hex hash"
	default:
		return e.Field() + " is invalid"
	}
}
