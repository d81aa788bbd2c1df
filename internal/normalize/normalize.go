// Package normalize turns raw user-entered part references into canonical
// (manufacturer, MPN, category) triples with a confidence score.
package normalize

import (
	"context"
	"strings"
	"unicode"

	"github.com/rotisserie/eris"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/bom-enrich/internal/model"
	"github.com/sells-group/bom-enrich/internal/resilience"
)

// Normalizer canonicalizes one raw BOM line reference.
type Normalizer interface {
	Normalize(ctx context.Context, mpn, manufacturer string) (*model.NormalizedComponent, error)
}

// RuleNormalizer applies deterministic cleanup and table-driven inference.
// It never makes network calls.
type RuleNormalizer struct {
	aliases    map[string]string
	categories []prefixRule
	makers     []prefixRule
}

type prefixRule struct {
	prefix string
	value  string
}

// manufacturer aliases keyed by lowercased raw input.
var defaultAliases = map[string]string{
	"ti":                 "TI",
	"texas instruments":  "TI",
	"texas instr":        "TI",
	"stmicro":            "STMicroelectronics",
	"stmicroelectronics": "STMicroelectronics",
	"st":                 "STMicroelectronics",
	"onsemi":             "onsemi",
	"on semiconductor":   "onsemi",
	"microchip":          "Microchip",
	"atmel":              "Microchip",
	"nxp":                "NXP",
	"freescale":          "NXP",
	"analog devices":     "Analog Devices",
	"adi":                "Analog Devices",
	"maxim":              "Analog Devices",
	"murata":             "Murata",
	"vishay":             "Vishay",
	"panasonic":          "Panasonic",
	"yageo":              "Yageo",
	"samsung electro":    "Samsung Electro-Mechanics",
	"infineon":           "Infineon",
	"ir":                 "Infineon",
}

// Longest-prefix-first category rules over the cleaned MPN.
var defaultCategories = []prefixRule{
	{"STM32", "microcontroller"},
	{"ATMEGA", "microcontroller"},
	{"ATTINY", "microcontroller"},
	{"PIC", "microcontroller"},
	{"CRCW", "resistor"},
	{"ERJ", "resistor"},
	{"GRM", "capacitor"},
	{"IRF", "mosfet"},
	{"LM", "op-amp"},
	{"TL", "op-amp"},
	{"CL", "capacitor"},
	{"RC", "resistor"},
	{"1N", "diode"},
	{"2N", "transistor"},
	{"BC", "transistor"},
	{"74", "logic"},
}

// Manufacturer inference from MPN prefix, used when the caller left the
// manufacturer blank.
var defaultMakers = []prefixRule{
	{"STM32", "STMicroelectronics"},
	{"ATMEGA", "Microchip"},
	{"ATTINY", "Microchip"},
	{"PIC", "Microchip"},
	{"CRCW", "Vishay"},
	{"ERJ", "Panasonic"},
	{"GRM", "Murata"},
	{"IRF", "Infineon"},
	{"LM", "TI"},
	{"TL", "TI"},
	{"RC", "Yageo"},
}

// NewRuleNormalizer builds a normalizer with the default inference tables.
func NewRuleNormalizer() *RuleNormalizer {
	return &RuleNormalizer{
		aliases:    defaultAliases,
		categories: defaultCategories,
		makers:     defaultMakers,
	}
}

// confidence weights: a bare cleanable MPN starts at 0.5; a resolved
// manufacturer adds 0.25 and an inferred category 0.2, capped at 0.95
// since rules alone never give certainty.
const (
	baseConfidence         = 0.5
	manufacturerConfidence = 0.25
	categoryConfidence     = 0.2
	maxConfidence          = 0.95
)

// Normalize cleans the MPN, resolves the manufacturer through the alias
// table (inferring it from the MPN prefix when absent), infers a category,
// and scores its own confidence. Unparseable input returns a validation
// error.
func (n *RuleNormalizer) Normalize(_ context.Context, mpn, manufacturer string) (*model.NormalizedComponent, error) {
	cleaned, fields, err := CleanMPN(mpn)
	if err != nil {
		return nil, err
	}

	confidence := baseConfidence
	out := &model.NormalizedComponent{
		MPN:              cleaned,
		NormalizedFields: fields,
	}

	maker := strings.TrimSpace(manufacturer)
	if maker != "" {
		if canonical, ok := n.aliases[strings.ToLower(maker)]; ok {
			if canonical != maker {
				out.NormalizedFields = append(out.NormalizedFields, "manufacturer")
			}
			maker = canonical
		}
		out.Manufacturer = maker
		confidence += manufacturerConfidence
	} else if inferred := matchPrefix(n.makers, cleaned); inferred != "" {
		out.Manufacturer = inferred
		out.NormalizedFields = append(out.NormalizedFields, "manufacturer")
		confidence += manufacturerConfidence
	}

	if category := matchPrefix(n.categories, cleaned); category != "" {
		out.Category = category
		out.NormalizedFields = append(out.NormalizedFields, "category")
		confidence += categoryConfidence
	}

	if confidence > maxConfidence {
		confidence = maxConfidence
	}
	out.ConfidenceScore = confidence
	return out, nil
}

// stripMarks removes diacritics so "TÉ-1234" and "TE-1234" normalize the
// same way.
var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// CleanMPN uppercases, strips diacritics and whitespace, and drops
// characters outside [A-Z0-9./#+-]. It reports which cleanups applied and
// rejects input that cannot be a part number (shorter than 3 characters
// after cleanup, or containing no digit).
func CleanMPN(raw string) (string, []string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", nil, &resilience.CallError{
			Kind:    resilience.KindValidation,
			Message: "mpn is empty",
			Err:     eris.New("empty mpn"),
		}
	}

	stripped, _, err := transform.String(stripMarks, trimmed)
	if err != nil {
		stripped = trimmed
	}
	upper := strings.ToUpper(stripped)

	var b strings.Builder
	for _, r := range upper {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '.' || r == '/' || r == '#' || r == '+':
			b.WriteRune(r)
		}
	}
	cleaned := b.String()

	var fields []string
	if cleaned != trimmed {
		fields = append(fields, "mpn")
	}

	if len(cleaned) < 3 || !hasDigit(cleaned) {
		return "", nil, &resilience.CallError{
			Kind:    resilience.KindValidation,
			Message: "unparseable mpn: " + raw,
			Err:     eris.Errorf("mpn %q does not look like a part number", raw),
		}
	}
	return cleaned, fields, nil
}

func hasDigit(s string) bool {
	for _, r := range s {
		if r >= '0' && r <= '9' {
			return true
		}
	}
	return false
}

func matchPrefix(rules []prefixRule, mpn string) string {
	for _, r := range rules {
		if strings.HasPrefix(mpn, r.prefix) {
			return r.value
		}
	}
	return ""
}
