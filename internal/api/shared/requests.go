package shared

import (
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
)

// maxBodyBytes caps request bodies; task payloads are tiny.
const maxBodyBytes = 1 << 20

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	// notblank rejects whitespace-only strings, which "required" accepts.
	if err := v.RegisterValidation("notblank", validators.NotBlank); err != nil {
		panic(err)
	}
	return v
}

// FieldMessenger is implemented by request types that translate a failed
// field into the message returned to the client.
type FieldMessenger interface {
	FieldMessage(field string) string
}

// DecodeJSON decodes the request body into the given struct.
func DecodeJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return errors.New("request body is empty")
	}
	return json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes)).Decode(v)
}

// ValidateRequest validates the given struct using the validator package.
func ValidateRequest(v any) error {
	return validate.Struct(v)
}

// FailedField returns the JSON name of the first field that caused err, or ""
// when err does not point at a field.
func FailedField(err error) string {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
		return validationErrs[0].Field()
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return typeErr.Field
	}
	return ""
}

// ErrorMessage returns the client message for a decode or validation error
// on v, falling back to fallback when v has nothing more specific to say.
func ErrorMessage(v any, err error, fallback string) string {
	messenger, ok := v.(FieldMessenger)
	if !ok {
		return fallback
	}
	field := FailedField(err)
	if field == "" {
		return fallback
	}
	if msg := messenger.FieldMessage(field); msg != "" {
		return msg
	}
	return fallback
}
