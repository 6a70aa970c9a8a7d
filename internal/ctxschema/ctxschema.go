// Package ctxschema validates a session's init context against the
// struct a Profile declares via Profile.ContextSchema, using
// github.com/go-playground/validator/v10 struct tags — the idiomatic Go
// analogue of the original's pydantic model-based context schemas.
package ctxschema

import (
	"encoding/json"

	"github.com/go-playground/validator/v10"
	pkgerrors "github.com/pkg/errors"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidationError wraps the underlying validator failure with the
// profile-supplied context for a clearer message at the CLI boundary.
type ValidationError struct {
	Profile string
	Err     error
}

func (e *ValidationError) Error() string {
	return "ctxschema: context failed validation for profile " + `"` + e.Profile + `": ` + e.Err.Error()
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Validate decodes context (a plain map, as produced by CLI flag parsing
// or JSON init payloads) into schema's concrete type and runs struct-tag
// validation against it. schema must be a non-nil pointer to a zero
// value of the profile's context struct; a nil schema means the profile
// declares no context requirements and Validate is a no-op.
func Validate(profileName string, schema any, context map[string]any) error {
	if schema == nil {
		return nil
	}

	raw, err := json.Marshal(context)
	if err != nil {
		return &ValidationError{Profile: profileName, Err: pkgerrors.Wrap(err, "re-encoding context for validation")}
	}
	if err := json.Unmarshal(raw, schema); err != nil {
		return &ValidationError{Profile: profileName, Err: pkgerrors.Wrap(err, "decoding context into schema")}
	}

	if err := validate.Struct(schema); err != nil {
		return &ValidationError{Profile: profileName, Err: err}
	}
	return nil
}
