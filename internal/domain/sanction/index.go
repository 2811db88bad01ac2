package sanction

import (
	types "github.com/mkweli/amlscreen/pkg/types/sanction"
)

// MatchedField says which field of a record a match landed on.
type MatchedField string

const (
	FieldPrimary MatchedField = "primary"
	FieldAlias   MatchedField = "alias"
)

// NameRef is one searchable name — a record's primary name or one alias —
// with every derived form the match layers need precomputed at index build
// time, so scoring a candidate allocates nothing.
type NameRef struct {
	Record     *Record
	Display    string
	Field      MatchedField
	AliasType  types.AliasType // zero value for primary names
	Normalized string
	Tokens     []string
	TokenSet   map[string]struct{}
	Codes      map[string]struct{} // Soundex codes of Tokens

	// Weight scales the final score for this name.  Weak spelling
	// variants are marked low-quality by the source lists and score at
	// 0.9; everything else carries full weight.
	Weight float64
}

// Index is the immutable search structure over one merged record set.
// It is built fully off to the side during a reload and published with a
// single atomic pointer swap, so concurrent readers always observe either
// the old complete index or the new complete index.
type Index struct {
	exact     map[string][]*NameRef // normalized full name → refs
	postings  map[string][]*NameRef // Soundex token code → refs
	records   map[string]*Record    // record id → record
	perSource map[types.SourceList]int
	nameCount int
}

const weakVariantWeight = 0.9

func newNameRef(r *Record, display, normalized string, field MatchedField, aliasType types.AliasType) *NameRef {
	tokens := Tokenize(normalized)
	weight := 1.0
	if aliasType == types.AliasWeakVariant {
		weight = weakVariantWeight
	}
	return &NameRef{
		Record:     r,
		Display:    display,
		Field:      field,
		AliasType:  aliasType,
		Normalized: normalized,
		Tokens:     tokens,
		TokenSet:   TokenSet(tokens),
		Codes:      PhoneticCodes(tokens),
		Weight:     weight,
	}
}

// BuildIndex constructs the search index over records.  Records with an
// empty normalized primary name are impossible by construction (NewRecord
// rejects them).  The record set is a set keyed by merged id: a duplicate
// id is dropped, never double-counted or double-posted, so every ref in
// the index resolves through Record() to the record it was built from.
func BuildIndex(records []*Record) *Index {
	ix := &Index{
		exact:     make(map[string][]*NameRef),
		postings:  make(map[string][]*NameRef),
		records:   make(map[string]*Record, len(records)),
		perSource: make(map[types.SourceList]int),
	}

	for _, r := range records {
		if _, dup := ix.records[r.ID]; dup {
			continue
		}
		ix.records[r.ID] = r
		ix.perSource[r.Source]++

		ix.add(newNameRef(r, r.PrimaryName, r.NormalizedName, FieldPrimary, ""))
		for _, a := range r.Aliases {
			ix.add(newNameRef(r, a.Name, a.Normalized, FieldAlias, a.Type))
		}
	}
	return ix
}

func (ix *Index) add(ref *NameRef) {
	ix.nameCount++
	ix.exact[ref.Normalized] = append(ix.exact[ref.Normalized], ref)
	for code := range ref.Codes {
		ix.postings[code] = append(ix.postings[code], ref)
	}
}

// ExactRefs returns the refs whose normalized name equals key exactly.
func (ix *Index) ExactRefs(key string) []*NameRef {
	return ix.exact[key]
}

// LookupCandidates returns every ref sharing at least one phonetic posting
// bucket with the query tokens.  This is the sub-linear narrowing step that
// runs before any scoring: a query only ever touches the buckets its own
// tokens hash into, never the full record set.
func (ix *Index) LookupCandidates(tokens []string) []*NameRef {
	seen := make(map[*NameRef]struct{})
	var out []*NameRef
	for code := range PhoneticCodes(tokens) {
		for _, ref := range ix.postings[code] {
			if _, dup := seen[ref]; dup {
				continue
			}
			seen[ref] = struct{}{}
			out = append(out, ref)
		}
	}
	return out
}

// Record returns the record with the given merged id.
func (ix *Index) Record(id string) (*Record, bool) {
	r, ok := ix.records[id]
	return r, ok
}

// Records returns all indexed records.  Iteration order is unspecified.
func (ix *Index) Records() map[string]*Record { return ix.records }

// TotalRecords is the number of canonical records in the index.
func (ix *Index) TotalRecords() int { return len(ix.records) }

// NameCount is the number of searchable names (primaries plus aliases).
func (ix *Index) NameCount() int { return ix.nameCount }

// PerSourceCounts returns a copy of the record count per source list.
func (ix *Index) PerSourceCounts() map[types.SourceList]int {
	out := make(map[types.SourceList]int, len(ix.perSource))
	for k, v := range ix.perSource {
		out[k] = v
	}
	return out
}
