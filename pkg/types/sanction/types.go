// Package sanction defines the shared enumeration and value types used across
// the screening engine: sanctions source lists, record kinds, alias
// classifications, and partial dates.  No behaviour beyond parsing and
// formatting lives here; domain logic belongs to internal/domain/sanction.
package sanction

import (
	"fmt"
	"strings"
	"time"
)

// ---------------------------------------------------------------------------
// SourceList
// ---------------------------------------------------------------------------

// SourceList identifies the sanctioning authority whose consolidated list a
// record was parsed from.
type SourceList string

const (
	SourceUN   SourceList = "UN"
	SourceUK   SourceList = "UK"
	SourceOFAC SourceList = "OFAC"
	SourceEU   SourceList = "EU"
)

// AllSources lists every supported source in stable order.  Reload and
// status reporting iterate this slice so output ordering is deterministic.
var AllSources = []SourceList{SourceUN, SourceUK, SourceOFAC, SourceEU}

// ParseSourceList converts a case-insensitive string to a SourceList.
func ParseSourceList(s string) (SourceList, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "UN":
		return SourceUN, nil
	case "UK":
		return SourceUK, nil
	case "OFAC":
		return SourceOFAC, nil
	case "EU":
		return SourceEU, nil
	default:
		return "", fmt.Errorf("sanction: unknown source list %q", s)
	}
}

func (s SourceList) String() string { return string(s) }

// Valid reports whether s is one of the four supported lists.
func (s SourceList) Valid() bool {
	switch s {
	case SourceUN, SourceUK, SourceOFAC, SourceEU:
		return true
	}
	return false
}

// RiskTier returns the risk tier of the sanctioning authority.  Tier 1 is a
// multilateral mandate (UN Security Council); tier 2 covers key ally
// jurisdictions whose secondary sanctions carry global financial exposure.
func (s SourceList) RiskTier() int {
	if s == SourceUN {
		return 1
	}
	return 2
}

// Authority returns the human-readable sanctioning authority name used in
// report output.
func (s SourceList) Authority() string {
	switch s {
	case SourceUN:
		return "United Nations Security Council"
	case SourceUK:
		return "UK HM Treasury (OFSI)"
	case SourceOFAC:
		return "OFAC / US Treasury"
	case SourceEU:
		return "European Union"
	default:
		return "Unknown Authority"
	}
}

// ---------------------------------------------------------------------------
// RecordKind
// ---------------------------------------------------------------------------

// RecordKind distinguishes sanctioned natural persons from organisations.
type RecordKind string

const (
	KindIndividual RecordKind = "individual"
	KindEntity     RecordKind = "entity"
)

func (k RecordKind) String() string { return string(k) }

// ---------------------------------------------------------------------------
// AliasType
// ---------------------------------------------------------------------------

// AliasType classifies an alternate name.  The type affects match weighting:
// weak spelling variants are down-weighted by the matcher because source
// lists mark them as low-quality transliterations.
type AliasType string

const (
	AliasAKA           AliasType = "aka"
	AliasFKA           AliasType = "fka"
	AliasStrongVariant AliasType = "strong_variant"
	AliasWeakVariant   AliasType = "weak_variant"
)

func (t AliasType) String() string { return string(t) }

// ---------------------------------------------------------------------------
// MatchLayer
// ---------------------------------------------------------------------------

// MatchLayer identifies which stage of the matching pipeline produced a
// score.  Layers are ordered cheapest / most precise first.
type MatchLayer string

const (
	LayerExact    MatchLayer = "exact"
	LayerToken    MatchLayer = "token"
	LayerPhonetic MatchLayer = "phonetic"
	LayerFuzzy    MatchLayer = "fuzzy"
)

func (l MatchLayer) String() string { return string(l) }

// ---------------------------------------------------------------------------
// PartialDate
// ---------------------------------------------------------------------------

// PartialDate is a possibly-incomplete calendar date.  Sanctions sources
// frequently publish only a year, or a year and month, for dates of birth.
// A zero Month or Day means "unknown".
type PartialDate struct {
	Year  int `json:"year"`
	Month int `json:"month,omitempty"`
	Day   int `json:"day,omitempty"`
}

// IsZero reports whether the date carries no information at all.
func (d PartialDate) IsZero() bool { return d.Year == 0 }

// String renders the date in ISO order, truncated to the known precision:
// "1962", "1975-04", or "1975-04-01".
func (d PartialDate) String() string {
	switch {
	case d.Year == 0:
		return ""
	case d.Month == 0:
		return fmt.Sprintf("%04d", d.Year)
	case d.Day == 0:
		return fmt.Sprintf("%04d-%02d", d.Year, d.Month)
	default:
		return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
	}
}

// Matches compares two partial dates at their shared precision.  A year-only
// record date matches any query date in the same year.  Two zero dates do
// not match; the caller should treat absent data as "no signal".
func (d PartialDate) Matches(other PartialDate) bool {
	if d.IsZero() || other.IsZero() {
		return false
	}
	if d.Year != other.Year {
		return false
	}
	if d.Month == 0 || other.Month == 0 {
		return true
	}
	if d.Month != other.Month {
		return false
	}
	if d.Day == 0 || other.Day == 0 {
		return true
	}
	return d.Day == other.Day
}

// dobLayouts are the exact-date layouts seen across the four source schemas.
var dobLayouts = []string{"2006-01-02", "02/01/2006", "2 Jan 2006", "02 Jan 2006", "Jan 2, 2006"}

// ParsePartialDate parses the date-of-birth strings found in the source
// lists.  Accepted forms: "1962", "circa 1958", "approximately 1958",
// "1975-04", "1975-04-01", "04/01/1975" (UK day-first), "1 Feb 1975".
// Returns a zero PartialDate and an error when nothing usable is found.
func ParsePartialDate(s string) (PartialDate, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return PartialDate{}, fmt.Errorf("sanction: empty date")
	}
	// Strip qualifiers the sources prepend to approximate years.
	for _, prefix := range []string{"circa", "approximately", "c.", "~"} {
		if strings.HasPrefix(strings.ToLower(s), prefix) {
			s = strings.TrimSpace(s[len(prefix):])
		}
	}

	for _, layout := range dobLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return PartialDate{Year: t.Year(), Month: int(t.Month()), Day: t.Day()}, nil
		}
	}
	if t, err := time.Parse("2006-01", s); err == nil {
		return PartialDate{Year: t.Year(), Month: int(t.Month())}, nil
	}
	if t, err := time.Parse("2006", s); err == nil {
		return PartialDate{Year: t.Year()}, nil
	}
	return PartialDate{}, fmt.Errorf("sanction: unparseable date %q", s)
}
