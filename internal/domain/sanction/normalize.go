package sanction

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripMarks removes combining marks after NFD decomposition, so "Müller"
// and "Muller" normalize identically.  Recomposed to NFC for stable output.
var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// abbreviations maps corporate-form abbreviations to a canonical expansion.
// The expansion is applied identically to queries and records before every
// match layer, so suffix noise ("JSC" vs "Joint Stock Company") can neither
// suppress a true match nor inflate a false one.  Russian forms appear
// transliterated because normalization has already stripped diacritics.
var abbreviations = map[string]string{
	"jsc":  "joint stock company",
	"llc":  "limited liability company",
	"ltd":  "limited",
	"inc":  "incorporated",
	"corp": "corporation",
	"plc":  "public limited company",
	"gmbh": "gesellschaft mit beschrankter haftung",
	"ag":   "aktiengesellschaft",
	"sa":   "sociedad anonima",
	"nv":   "naamloze vennootschap",
	"bv":   "besloten vennootschap",
	"ooo":  "obshestvo s ogranichennoy otvetstvennostyu",
	"oao":  "otkrytoe aktsionernoe obshestvo",
	"zao":  "zakrytoe aktsionernoe obshestvo",
	"pjsc": "public joint stock company",
	"cjsc": "closed joint stock company",
	"ojsc": "open joint stock company",
	"co":   "company",
	"intl": "international",
	"svcs": "services",
	"mfg":  "manufacturing",
	"grp":  "group",
}

// NormalizeName produces the canonical matching form of a name:
// lower-cased, diacritics stripped, punctuation replaced by spaces,
// whitespace collapsed, and corporate abbreviations expanded.  The same
// routine serves every parser and every query, which is what makes
// cross-source exact matching possible at all.
func NormalizeName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return ""
	}

	if folded, _, err := transform.String(stripMarks, name); err == nil {
		name = folded
	}

	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte(' ')
		}
	}

	fields := strings.Fields(b.String())
	out := make([]string, 0, len(fields))
	for _, w := range fields {
		if expansion, ok := abbreviations[w]; ok {
			out = append(out, strings.Fields(expansion)...)
			continue
		}
		out = append(out, w)
	}
	return strings.Join(out, " ")
}

// Tokenize splits a normalized name into its comparison tokens.
// Single-character tokens (initials, articles) carry no matching signal
// and are dropped.
func Tokenize(normalized string) []string {
	fields := strings.Fields(normalized)
	tokens := make([]string, 0, len(fields))
	for _, w := range fields {
		if len(w) <= 1 {
			continue
		}
		tokens = append(tokens, w)
	}
	return tokens
}

// TokenSet converts tokens to a set for order-independent comparison.
func TokenSet(tokens []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens))
	for _, tok := range tokens {
		set[tok] = struct{}{}
	}
	return set
}
