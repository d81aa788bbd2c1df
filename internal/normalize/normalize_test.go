package normalize

import (
	"context"
	"testing"

	"github.com/sells-group/bom-enrich/internal/resilience"
)

func TestNormalize_KnownOpAmp(t *testing.T) {
	n := NewRuleNormalizer()
	got, err := n.Normalize(context.Background(), "lm358", "Texas Instruments")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got.MPN != "LM358" {
		t.Errorf("mpn = %q, want LM358", got.MPN)
	}
	if got.Manufacturer != "TI" {
		t.Errorf("manufacturer = %q, want TI", got.Manufacturer)
	}
	if got.Category != "op-amp" {
		t.Errorf("category = %q, want op-amp", got.Category)
	}
	if got.ConfidenceScore != 0.95 {
		t.Errorf("confidence = %v, want 0.95", got.ConfidenceScore)
	}
}

func TestNormalize_InfersManufacturerFromPrefix(t *testing.T) {
	n := NewRuleNormalizer()
	cases := []struct {
		mpn          string
		manufacturer string
		category     string
	}{
		{"GRM188R71H104KA93D", "Murata", "capacitor"},
		{"CRCW06031K00FKEA", "Vishay", "resistor"},
		{"STM32F103C8T6", "STMicroelectronics", "microcontroller"},
		{"IRF540N", "Infineon", "mosfet"},
	}

	for _, tc := range cases {
		got, err := n.Normalize(context.Background(), tc.mpn, "")
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.mpn, err)
		}
		if got.Manufacturer != tc.manufacturer {
			t.Errorf("%s: manufacturer = %q, want %q", tc.mpn, got.Manufacturer, tc.manufacturer)
		}
		if got.Category != tc.category {
			t.Errorf("%s: category = %q, want %q", tc.mpn, got.Category, tc.category)
		}
	}
}

func TestNormalize_UnparseableMPN(t *testing.T) {
	n := NewRuleNormalizer()
	for _, raw := range []string{"", "   ", "??", "ab", "NODIGITS"} {
		_, err := n.Normalize(context.Background(), raw, "TI")
		if err == nil {
			t.Errorf("%q: expected validation error", raw)
			continue
		}
		if kind := resilience.KindOf(err); kind != resilience.KindValidation {
			t.Errorf("%q: kind = %s, want validation", raw, kind)
		}
	}
}

func TestCleanMPN_StripsNoiseAndDiacritics(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{"  lm358 ", "LM358"},
		{"grm 188 r7", "GRM188R7"},
		{"té-1234", "TE-1234"},
		{"stm32f103(c8t6)", "STM32F103C8T6"},
	}

	for _, tc := range cases {
		got, fields, err := CleanMPN(tc.raw)
		if err != nil {
			t.Fatalf("%q: unexpected error: %v", tc.raw, err)
		}
		if got != tc.want {
			t.Errorf("CleanMPN(%q) = %q, want %q", tc.raw, got, tc.want)
		}
		if len(fields) == 0 {
			t.Errorf("%q: expected mpn listed in normalized fields", tc.raw)
		}
	}
}

func TestCleanMPN_AlreadyClean(t *testing.T) {
	got, fields, err := CleanMPN("LM358")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "LM358" {
		t.Errorf("got %q", got)
	}
	if len(fields) != 0 {
		t.Errorf("clean input should report no normalized fields, got %v", fields)
	}
}

func TestNormalize_UnknownManufacturerKeptVerbatim(t *testing.T) {
	n := NewRuleNormalizer()
	got, err := n.Normalize(context.Background(), "XYZ123", "Acme Parts Co")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Manufacturer != "Acme Parts Co" {
		t.Errorf("manufacturer = %q, want verbatim Acme Parts Co", got.Manufacturer)
	}
	if got.Category != "" {
		t.Errorf("category = %q, want empty for unknown prefix", got.Category)
	}
	if got.ConfidenceScore != 0.75 {
		t.Errorf("confidence = %v, want 0.75", got.ConfidenceScore)
	}
}
