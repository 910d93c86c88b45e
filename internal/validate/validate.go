// Package validate checks request structs against their `validate` tags and
// turns the first failure into a caller-facing apperr.Validation.
package validate

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/example/takeover-week/internal/apperr"
	"github.com/example/takeover-week/internal/registrations"
	"github.com/example/takeover-week/internal/sessions"
	"github.com/go-playground/validator/v10"
)

var global = New()

func New() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// report json names so messages match what the client sent
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("isodate", validateISODate)
	_ = v.RegisterValidation("hhmm", validateHHMM)
	_ = v.RegisterValidation("language", validateLanguage)
	_ = v.RegisterValidation("platform", validatePlatform)
	return v
}

func validateISODate(fl validator.FieldLevel) bool {
	_, err := time.Parse("2006-01-02", fl.Field().String())
	return err == nil
}

func validateHHMM(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if len(s) != 5 {
		return false
	}
	_, err := time.Parse("15:04", s)
	return err == nil
}

func validateLanguage(fl validator.FieldLevel) bool {
	return registrations.ValidLanguage(fl.Field().String())
}

func validatePlatform(fl validator.FieldLevel) bool {
	switch sessions.Platform(fl.Field().String()) {
	case sessions.PlatformNone, sessions.PlatformZoom, sessions.PlatformTeams:
		return true
	}
	return false
}

// Struct validates s and returns nil or an apperr.Validation.
func Struct(ctx context.Context, s any) error {
	return parseValidationErrors(global.StructCtx(ctx, s))
}

func parseValidationErrors(err error) error {
	if err == nil {
		return nil
	}
	var vErrors validator.ValidationErrors
	if !errors.As(err, &vErrors) || len(vErrors) == 0 {
		return apperr.Validation("Invalid request")
	}

	// all missing fields are reported together
	var missing []string
	for _, fe := range vErrors {
		if fe.Tag() == "required" {
			missing = append(missing, fieldName(fe))
		}
	}
	if len(missing) > 0 {
		return apperr.Validation("Missing required fields: %s", strings.Join(missing, ", "))
	}

	fe := vErrors[0]
	field := fieldName(fe)
	switch fe.Tag() {
	case "email":
		return apperr.Validation("%s must be a valid email address", field)
	case "isodate":
		return apperr.Validation("%s must be a date in YYYY-MM-DD format", field)
	case "hhmm":
		return apperr.Validation("%s must be a time in HH:MM format", field)
	case "language":
		return apperr.Validation("%s must be one of: %s", field, strings.Join(registrations.Languages, ", "))
	case "platform":
		return apperr.Validation("%s must be one of: none, zoom, teams", field)
	case "oneof":
		return apperr.Validation("%s must be one of: %s", field, fe.Param())
	case "uuid", "uuid4":
		return apperr.Validation("%s must be a valid id", field)
	case "max":
		return apperr.Validation("%s exceeds maximum of %s", field, fe.Param())
	case "min":
		return apperr.Validation("%s is below minimum of %s", field, fe.Param())
	default:
		return apperr.Validation("%s is invalid", field)
	}
}

// fieldName strips the root struct from the namespace: "req.session1.date"
// becomes "session1.date".
func fieldName(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}
