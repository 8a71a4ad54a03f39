package validator

import (
	"errors"
	"strings"
	"testing"
)

type collectionPayload struct {
	CollectorID string `json:"collector_id" validate:"required"`
	WeightKg    string `json:"weight_kg" validate:"required,decimal"`
	PlasticType string `json:"plastic_type" validate:"required,plastic"`
	NFeID       string `json:"nfe_id" validate:"omitempty,nfe"`
}

func TestStructUsesJSONNames(t *testing.T) {
	err := Struct(collectionPayload{WeightKg: "1e3", PlasticType: "ABS"})
	var fields FieldErrors
	if !errors.As(err, &fields) {
		t.Fatalf("expected FieldErrors, got %v", err)
	}
	for _, name := range []string{"collector_id", "weight_kg", "plastic_type"} {
		if _, ok := fields[name]; !ok {
			t.Fatalf("expected %s in %v", name, fields)
		}
	}
	if _, ok := fields["nfe_id"]; ok {
		t.Fatalf("empty optional nfe must pass")
	}
}

func TestStructAcceptsValidPayload(t *testing.T) {
	payload := collectionPayload{CollectorID: "u1", WeightKg: "100.5", PlasticType: "PET", NFeID: "35240100001"}
	if err := Struct(payload); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDecodeJSONRejectsUnknownFields(t *testing.T) {
	var payload collectionPayload
	err := DecodeJSON(strings.NewReader(`{"collector_id":"u1","weight":"1"}`), &payload)
	if !errors.Is(err, ErrInvalidPayload) {
		t.Fatalf("expected ErrInvalidPayload, got %v", err)
	}
}

func TestFieldErrorsMessageIsSorted(t *testing.T) {
	err := FieldErrors{"weight_kg": "is required", "collector_id": "is required"}
	if got := err.Error(); got != "collector_id is required; weight_kg is required" {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestValidateEmail(t *testing.T) {
	if err := ValidateEmail("esg@greencorp.com"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := ValidateEmail("not-an-email"); !errors.Is(err, ErrInvalidEmail) {
		t.Fatalf("expected ErrInvalidEmail, got %v", err)
	}
}

func TestValidatePassword(t *testing.T) {
	if err := ValidatePassword("short"); !errors.Is(err, ErrInvalidPassword) {
		t.Fatalf("expected ErrInvalidPassword, got %v", err)
	}
	if err := ValidatePassword("long-enough"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
