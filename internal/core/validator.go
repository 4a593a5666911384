package core

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"lawncare/internal/types"
)

// Validator wraps go-playground/validator with the domain tags used by the
// request DTOs:
//
//	hhmm      24-hour "HH:MM" clock time
//	channel   email or sms
//	provider  a known ProviderType
type Validator struct {
	validate *validator.Validate
	logger   *slog.Logger
}

// NewValidator creates a Validator and registers the custom tags.
func NewValidator(logger *slog.Logger) *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report JSON field names rather than Go field names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	mustRegister(v, "hhmm", func(fl validator.FieldLevel) bool {
		return types.ValidateTimeOfDay(fl.Field().String()) == nil
	})
	mustRegister(v, "channel", func(fl validator.FieldLevel) bool {
		return types.Channel(fl.Field().String()).Valid()
	})
	mustRegister(v, "provider", func(fl validator.FieldLevel) bool {
		return types.ProviderType(fl.Field().String()).Channel() != ""
	})

	return &Validator{validate: v, logger: logger}
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register validation %q: %v", tag, err))
	}
}

// ValidateStruct returns nil or a validation AppError whose details map each
// failing JSON field to the tag it violated.
func (v *Validator) ValidateStruct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "request validation failed", err)
	}

	fields := make(map[string]any, len(verrs))
	names := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fe.Tag()
		names = append(names, fe.Field())
	}
	if v.logger != nil {
		v.logger.Debug("request validation failed", "fields", names)
	}
	return types.NewAppErrorWithDetails(
		types.ErrCodeValidationMissingField,
		"invalid or missing fields: "+strings.Join(names, ", "),
		err,
		map[string]any{"fields": fields},
	)
}

// DecodeAndValidate decodes the body strictly and validates the result.
func (v *Validator) DecodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) error {
	if err := DecodeJSON(w, r, dst); err != nil {
		return err
	}
	return v.ValidateStruct(dst)
}
