// Package validation wraps struct-tag validation and turns violations into
// field-level messages suitable for form presentation.
package validation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	appErrors "github.com/classhub/classhub-go/pkg/errors"
)

// FieldErrors maps a field name to its first validation message.
type FieldErrors map[string]string

func (f FieldErrors) Error() string {
	parts := make([]string, 0, len(f))
	for field, msg := range f {
		parts = append(parts, field+": "+msg)
	}
	return strings.Join(parts, "; ")
}

// Validator validates request structs by their validate tags.
type Validator struct {
	v *validator.Validate
}

func New() *Validator {
	return &Validator{v: validator.New(validator.WithRequiredStructEnabled())}
}

// Struct validates s and returns a typed validation error carrying
// field-level messages, or nil.
func (val *Validator) Struct(s interface{}) error {
	err := val.v.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}

	fields := make(FieldErrors, len(verrs))
	for _, fe := range verrs {
		name := strings.ToLower(fe.Field()[:1]) + fe.Field()[1:]
		if _, seen := fields[name]; !seen {
			fields[name] = message(fe)
		}
	}
	return appErrors.Wrap(fields, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, fields.Error())
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be at most %s", fe.Param())
	default:
		return "is invalid"
	}
}

// Fields extracts the field-level messages from a validation error, or nil
// when err does not carry any.
func Fields(err error) FieldErrors {
	var fields FieldErrors
	if errors.As(err, &fields) {
		return fields
	}
	return nil
}
