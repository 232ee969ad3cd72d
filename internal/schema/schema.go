// Package schema validates request and response shapes with struct tags.
package schema

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"pdf-insights/internal/document"
)

// TagPDFDataURI validates a string holding a base64 PDF data URI.
const TagPDFDataURI = "pdf_datauri"

// Validator is the shared validator instance. It reports JSON field names.
var Validator = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
	if err := v.RegisterValidation(TagPDFDataURI, validatePDFDataURI); err != nil {
		panic(fmt.Sprintf("schema: register %s: %v", TagPDFDataURI, err))
	}
	if err := v.RegisterValidation("notblank", validateNotBlank); err != nil {
		panic(fmt.Sprintf("schema: register notblank: %v", err))
	}
	return v
}

// validatePDFDataURI checks the framing and media type only; the payload is
// decoded once, by whoever consumes the document.
func validatePDFDataURI(fl validator.FieldLevel) bool {
	mt, _, err := document.ParseHeader(fl.Field().String())
	if err != nil {
		return false
	}
	return document.IsPDF(mt)
}

func validateNotBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

// FieldError describes one violated rule.
type FieldError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// Error collects every field that failed validation.
type Error struct {
	Fields []FieldError `json:"fields"`
}

func (e *Error) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Message)
	}
	return "schema violation: " + strings.Join(parts, "; ")
}

// Check validates v and converts validator errors into *Error.
func Check(v any) error {
	err := Validator.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := &Error{Fields: make([]FieldError, 0, len(verrs))}
	for _, fe := range verrs {
		out.Fields = append(out.Fields, FieldError{
			Field:   fe.Field(),
			Rule:    fe.Tag(),
			Message: message(fe),
		})
	}
	return out
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "notblank":
		return fmt.Sprintf("%s must not be blank", fe.Field())
	case TagPDFDataURI:
		return fmt.Sprintf("%s must be a data URI of the form data:application/pdf;base64,<payload>", fe.Field())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
	}
}
