// Package sanction implements the canonical sanctions record model: the
// normalized, source-agnostic representation every format parser emits and
// the matching engine scores against.  Shared name normalization, phonetic
// encoding, and the candidate-narrowing index live here; parsing and
// persistence are infrastructure concerns.
package sanction

import (
	"strings"

	"github.com/mkweli/amlscreen/pkg/errors"
	types "github.com/mkweli/amlscreen/pkg/types/sanction"
)

// AlternateName is one alias attached to a record.  Order is preserved from
// the source document.
type AlternateName struct {
	// Name is the original display form.
	Name string `json:"name"`

	// Normalized is the matching form, produced by NormalizeName.
	Normalized string `json:"normalized"`

	// Type classifies the alias; weak spelling variants are down-weighted
	// by the matcher.
	Type types.AliasType `json:"type"`
}

// Record is the canonical unit stored and matched against.  A Record is
// immutable once built: reloads replace whole per-source record sets, they
// never mutate individual records in place.
type Record struct {
	// ID is globally unique after merge: the source prefix joined with the
	// source-local identifier, e.g. "OFAC-9639".
	ID string `json:"id"`

	// LocalID is the identifier within the source list.
	LocalID string `json:"local_id"`

	Kind   types.RecordKind `json:"kind"`
	Source types.SourceList `json:"source"`

	// PrimaryName is the original display name; never empty.
	PrimaryName string `json:"primary_name"`

	// NormalizedName is the matching form of PrimaryName.
	NormalizedName string `json:"normalized_name"`

	Aliases []AlternateName `json:"aliases,omitempty"`

	// DateOfBirth is present only for individuals, and frequently partial.
	DateOfBirth *types.PartialDate `json:"date_of_birth,omitempty"`

	// Nationality is an ISO 3166-1 alpha-2 code where resolvable,
	// otherwise the source's free text.
	Nationality string `json:"nationality,omitempty"`

	// RawFields retains source-specific metadata (addresses, programmes,
	// regimes, listing dates) for audit display.  Never used in matching.
	RawFields map[string]string `json:"raw_fields,omitempty"`
}

// NewRecord builds a canonical record, normalizing the primary name and
// deriving the merged ID.  It fails when the primary name is empty after
// normalization — such entries must be skipped by the parser, not stored.
func NewRecord(source types.SourceList, localID string, kind types.RecordKind, primaryName string) (*Record, error) {
	normalized := NormalizeName(primaryName)
	if normalized == "" {
		return nil, errors.New(errors.CodeMalformedEntry, "record has no usable primary name").
			WithDetail("source=" + source.String() + " id=" + localID)
	}
	return &Record{
		ID:             source.String() + "-" + strings.TrimSpace(localID),
		LocalID:        strings.TrimSpace(localID),
		Kind:           kind,
		Source:         source,
		PrimaryName:    strings.TrimSpace(primaryName),
		NormalizedName: normalized,
	}, nil
}

// AddAlias appends an alternate name, skipping entries that normalize to
// nothing or duplicate the primary name.
func (r *Record) AddAlias(name string, aliasType types.AliasType) {
	normalized := NormalizeName(name)
	if normalized == "" || normalized == r.NormalizedName {
		return
	}
	for _, a := range r.Aliases {
		if a.Normalized == normalized {
			return
		}
	}
	r.Aliases = append(r.Aliases, AlternateName{
		Name:       strings.TrimSpace(name),
		Normalized: normalized,
		Type:       aliasType,
	})
}

// SetRawField records an audit-only source field, dropping empty values.
func (r *Record) SetRawField(key, value string) {
	value = strings.TrimSpace(value)
	if value == "" {
		return
	}
	if r.RawFields == nil {
		r.RawFields = make(map[string]string)
	}
	r.RawFields[key] = value
}

// countryCodes resolves the country spellings that actually occur across
// the four lists to ISO 3166-1 alpha-2.  Unresolvable names pass through
// as free text so the rationale can still surface them.
var countryCodes = map[string]string{
	"afghanistan":        "AF",
	"belarus":            "BY",
	"china":              "CN",
	"cuba":               "CU",
	"democratic people's republic of korea": "KP",
	"north korea":        "KP",
	"dprk":               "KP",
	"egypt":              "EG",
	"france":             "FR",
	"germany":            "DE",
	"india":              "IN",
	"iran":               "IR",
	"iran (islamic republic of)": "IR",
	"iraq":               "IQ",
	"lebanon":            "LB",
	"libya":              "LY",
	"mali":               "ML",
	"myanmar":            "MM",
	"burma":              "MM",
	"nicaragua":          "NI",
	"pakistan":           "PK",
	"russia":             "RU",
	"russian federation": "RU",
	"saudi arabia":       "SA",
	"somalia":            "SO",
	"south sudan":        "SS",
	"sudan":              "SD",
	"syria":              "SY",
	"syrian arab republic": "SY",
	"tunisia":            "TN",
	"turkey":             "TR",
	"türkiye":            "TR",
	"ukraine":            "UA",
	"united kingdom":     "GB",
	"united states":      "US",
	"venezuela":          "VE",
	"venezuela (bolivarian republic of)": "VE",
	"yemen":              "YE",
	"zimbabwe":           "ZW",
}

// NormalizeCountry maps a free-text country name to an ISO alpha-2 code
// where resolvable.  Two-letter input is treated as already a code.
func NormalizeCountry(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if len(s) == 2 {
		return strings.ToUpper(s)
	}
	if code, ok := countryCodes[strings.ToLower(s)]; ok {
		return code
	}
	return s
}
