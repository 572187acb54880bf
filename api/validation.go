package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/ttacon/libphonenumber"

	"github.com/Udokachinonso/batchbalance-pro/generic"
)

// newValidator reports errors under JSON field names and validates
// decimal.Decimal fields as numbers, so gte/lte tags apply to money.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
	return v
}

// decodeAndValidate reads a JSON body into dst and runs the struct tags.
func (h *Handler) decodeAndValidate(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return &requestError{message: "Invalid request body", err: err}
	}
	if err := h.validate.Struct(dst); err != nil {
		return &requestError{message: "Request validation failed", err: err}
	}
	return nil
}

// requestError is a rejected request body. It unwraps to generic.ErrValidation
// so it maps to 400 like domain validation errors.
type requestError struct {
	message string
	err     error
}

func (e *requestError) Error() string {
	return fmt.Sprintf("%s: %v", e.message, e.err)
}

func (e *requestError) Unwrap() []error {
	return []error{generic.ErrValidation, e.err}
}

// fieldErrors lists per-field problems from validator or domain errors.
func fieldErrors(err error) []FieldErrorDTO {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		out := make([]FieldErrorDTO, len(verrs))
		for i, fe := range verrs {
			out[i] = FieldErrorDTO{Field: fieldPath(fe), Message: validationMessage(fe)}
		}
		return out
	}
	var ve *generic.ValidationError
	if errors.As(err, &ve) && ve.Field != "" {
		return []FieldErrorDTO{{Field: ve.Field, Message: ve.Message}}
	}
	return nil
}

// fieldPath drops the struct name: "RecordPurchaseRequest.items[0].quantity"
// becomes "items[0].quantity".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required"
	case "email":
		return "Invalid email format"
	case "min":
		if fe.Kind() == reflect.Slice {
			return "Must have at least " + fe.Param() + " entries"
		}
		if fe.Kind() == reflect.String {
			return "Must be at least " + fe.Param() + " characters"
		}
		return "Must be at least " + fe.Param()
	case "max":
		if fe.Kind() == reflect.String {
			return "Must be at most " + fe.Param() + " characters"
		}
		return "Must be at most " + fe.Param()
	case "gt":
		return "Must be greater than " + fe.Param()
	case "gte":
		return "Must be greater than or equal to " + fe.Param()
	case "lte":
		return "Must be less than or equal to " + fe.Param()
	default:
		return "Invalid value"
	}
}

// normalizeMobile parses a phone number in region and returns it in E.164.
// An empty number stays empty.
func normalizeMobile(raw, region string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	num, err := libphonenumber.Parse(raw, region)
	if err != nil {
		return "", generic.NewValidationError("mobile", err.Error())
	}
	if !libphonenumber.IsValidNumber(num) {
		return "", generic.NewValidationError("mobile", "phone number is not valid")
	}
	return libphonenumber.Format(num, libphonenumber.E164), nil
}
