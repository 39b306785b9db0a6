package validator

import (
	"math"
	"testing"

	"github.com/google/uuid"
)

func TestRequireUUID(t *testing.T) {
	id := uuid.New()
	var errs ValidationErrors

	if got := errs.RequireUUID("item_id", id.String()); got != id {
		t.Errorf("want %s, got %s", id, got)
	}
	if errs.HasErrors() {
		t.Fatalf("unexpected errors: %v", errs)
	}

	errs.RequireUUID("item_id", "")
	errs.RequireUUID("owner_id", "nope")
	errs.RequireUUID("other", uuid.Nil.String())
	if len(errs) != 3 {
		t.Fatalf("expected 3 errors, got %v", errs)
	}
	if errs.Error() != "item_id: is required; owner_id: must be a valid uuid; other: must be a valid uuid" {
		t.Errorf("unexpected message: %s", errs.Error())
	}
}

func TestOptionalUUID(t *testing.T) {
	var errs ValidationErrors
	if _, ok := errs.OptionalUUID("owner_id", ""); ok || errs.HasErrors() {
		t.Error("empty optional uuid should be absent without error")
	}
	if _, ok := errs.OptionalUUID("owner_id", "x"); ok || !errs.HasErrors() {
		t.Error("invalid optional uuid should fail")
	}
}

func TestValidateTap(t *testing.T) {
	tests := []struct {
		name     string
		x, width float64
		errs     int
	}{
		{name: "left edge", x: 0, width: 390},
		{name: "right edge", x: 390, width: 390},
		{name: "zero width", x: 10, width: 0, errs: 1},
		{name: "negative x", x: -1, width: 390, errs: 1},
		{name: "beyond width", x: 400, width: 390, errs: 1},
		{name: "nan", x: math.NaN(), width: math.Inf(1), errs: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidateTap(tt.x, tt.width); len(got) != tt.errs {
				t.Errorf("want %d errors, got %v", tt.errs, got)
			}
		})
	}
}

func TestSanitizeString(t *testing.T) {
	if got := SanitizeString("  decode failed  ", 6); got != "decode" {
		t.Errorf("got %q", got)
	}
}
