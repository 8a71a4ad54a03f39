package validator

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"plaxrec/internal/models"
	"plaxrec/internal/money"

	"github.com/go-playground/validator/v10"
)

var (
	ErrInvalidEmail    = errors.New("invalid email")
	ErrInvalidPassword = errors.New("invalid password")
	ErrInvalidPayload  = errors.New("invalid payload")
)

const minPasswordLength = 8

var (
	emailRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	nfeRegex   = regexp.MustCompile(`^[A-Za-z0-9./-]{1,64}$`)
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" || tag == "-" {
			return f.Name
		}
		return tag
	})
	_ = v.RegisterValidation("plaxemail", func(fl validator.FieldLevel) bool {
		return ValidateEmail(fl.Field().String()) == nil
	})
	_ = v.RegisterValidation("password", func(fl validator.FieldLevel) bool {
		return ValidatePassword(fl.Field().String()) == nil
	})
	_ = v.RegisterValidation("decimal", func(fl validator.FieldLevel) bool {
		_, err := money.Parse(fl.Field().String(), money.PlaxDecimals)
		return err == nil
	})
	_ = v.RegisterValidation("plastic", func(fl validator.FieldLevel) bool {
		return models.PlasticType(fl.Field().String()).IsValid()
	})
	_ = v.RegisterValidation("role", func(fl validator.FieldLevel) bool {
		_, ok := models.ParseRole(fl.Field().String())
		return ok
	})
	_ = v.RegisterValidation("nfe", func(fl validator.FieldLevel) bool {
		return nfeRegex.MatchString(strings.TrimSpace(fl.Field().String()))
	})
	return v
}

func ValidateEmail(email string) error {
	if !emailRegex.MatchString(email) {
		return ErrInvalidEmail
	}
	return nil
}

func ValidatePassword(password string) error {
	if len(password) < minPasswordLength {
		return ErrInvalidPassword
	}
	return nil
}

// FieldErrors maps a json field name to a human readable problem.
type FieldErrors map[string]string

func (f FieldErrors) Error() string {
	fields := make([]string, 0, len(f))
	for field := range f {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, field+" "+f[field])
	}
	return strings.Join(parts, "; ")
}

// Struct runs the struct tags of v and returns FieldErrors on failure.
func Struct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return err
	}
	details := FieldErrors{}
	for _, fieldErr := range errs {
		details[fieldErr.Field()] = message(fieldErr)
	}
	return details
}

// DecodeJSON decodes one JSON object into dest, rejecting unknown fields, then
// validates it.
func DecodeJSON(r io.Reader, dest any) error {
	decoder := json.NewDecoder(r)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return Struct(dest)
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "plaxemail", "email":
		return "must be a valid email"
	case "password":
		return fmt.Sprintf("must have at least %d characters", minPasswordLength)
	case "decimal":
		return "must be a decimal number"
	case "plastic":
		return "must be one of PET, PEAD, PVC, PEBD, PP, PS"
	case "role":
		return "must be a known role"
	case "nfe":
		return "must be a valid NFe number"
	}
	return "is invalid"
}
