// Package screening implements the layered name-matching engine and the
// batch orchestrator built on top of it.  Four layers score every
// candidate — exact, token overlap, phonetic, and edit distance — and a
// candidate's score is the maximum across layers, never a sum, so one
// strong signal is enough and weak signals cannot pile up into a false
// positive.
package screening

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/agnivade/levenshtein"

	"github.com/mkweli/amlscreen/internal/config"
	"github.com/mkweli/amlscreen/internal/domain/sanction"
	"github.com/mkweli/amlscreen/internal/infrastructure/monitoring/logging"
	prommetrics "github.com/mkweli/amlscreen/internal/infrastructure/monitoring/prometheus"
	"github.com/mkweli/amlscreen/pkg/errors"
	types "github.com/mkweli/amlscreen/pkg/types/sanction"
)

// thresholdFloor and thresholdCeil bound any per-query threshold override.
const (
	thresholdFloor = 50.0
	thresholdCeil  = 100.0
)

// Query is one screening request.  Name is required; date of birth and
// nationality, when present, only annotate the rationale of returned
// matches — they never raise or lower a score.
type Query struct {
	Name        string             `json:"name"`
	DateOfBirth *types.PartialDate `json:"date_of_birth,omitempty"`
	Nationality string             `json:"nationality,omitempty"`

	// Threshold overrides the configured minimum score for this query
	// only.  Values outside [50, 100] are clamped.
	Threshold *float64 `json:"threshold,omitempty"`

	// Sources restricts matching to the given lists.  Empty means all.
	Sources []types.SourceList `json:"sources,omitempty"`
}

// Match is one record at or above threshold.
type Match struct {
	RecordID    string           `json:"record_id"`
	Source      types.SourceList `json:"source"`
	Kind        types.RecordKind `json:"kind"`
	PrimaryName string           `json:"primary_name"`

	// MatchedName is the name that actually scored: the primary name or
	// one of the aliases.
	MatchedName  string                `json:"matched_name"`
	MatchedField sanction.MatchedField `json:"matched_field"`
	AliasType    types.AliasType       `json:"alias_type,omitempty"`

	Layer    types.MatchLayer `json:"layer"`
	Score    float64          `json:"score"`
	RiskTier int              `json:"risk_tier"`

	// Rationale is the human-readable account of why this match was
	// returned, including date-of-birth and nationality consistency notes.
	Rationale []string `json:"rationale"`

	// RationaleHash binds the decision to the query, the record, and the
	// data generation it was made against, for audit replay.
	RationaleHash string `json:"rationale_hash"`
}

// Result is the outcome of screening one query.  Fingerprint and LoadedAt
// identify the data generation the decision was made against.
type Result struct {
	Query           Query         `json:"query"`
	NormalizedQuery string        `json:"normalized_query"`
	Threshold       float64       `json:"threshold"`
	Matches         []Match       `json:"matches"`
	ScreenedAt      time.Time     `json:"screened_at"`
	Fingerprint     string        `json:"fingerprint"`
	LoadedAt        time.Time     `json:"loaded_at"`
	Duration        time.Duration `json:"duration"`
}

// IndexProvider supplies the current data generation to screen against.
// *registry.Repository satisfies it.
type IndexProvider interface {
	Index() *sanction.Index
	Fingerprint() string
	LoadedAt() time.Time
}

// Matcher scores queries against the published index.
type Matcher struct {
	cfg      config.MatchingConfig
	provider IndexProvider
	logger   logging.Logger
	metrics  *prommetrics.Metrics
	now      func() time.Time
}

func NewMatcher(cfg config.MatchingConfig, provider IndexProvider, logger logging.Logger, metrics *prommetrics.Metrics) *Matcher {
	return &Matcher{
		cfg:      cfg,
		provider: provider,
		logger:   logger.Named("matcher"),
		metrics:  metrics,
		now:      time.Now,
	}
}

// Screen runs one query through all four layers and returns the ranked
// matches at or above threshold.
func (m *Matcher) Screen(ctx context.Context, q Query) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, errors.CodeTimeout, "screening cancelled")
	}

	normalized := sanction.NormalizeName(q.Name)
	if normalized == "" {
		return nil, errors.New(errors.CodeEmptyQuery, "query name is empty after normalization")
	}
	threshold := m.threshold(q)

	start := m.now()
	ix := m.provider.Index()
	fp := m.provider.Fingerprint()
	loadedAt := m.provider.LoadedAt()

	tokens := sanction.Tokenize(normalized)
	querySet := sanction.TokenSet(tokens)
	queryCodes := sanction.PhoneticCodes(tokens)
	allowed := sourceFilter(q.Sources)

	// Candidate set: phonetic posting buckets, plus the exact bucket so a
	// name whose tokens all got dropped (initials) can still hit exactly.
	best := make(map[string]*Match)
	consider := func(ref *sanction.NameRef) {
		if allowed != nil {
			if _, ok := allowed[ref.Record.Source]; !ok {
				return
			}
		}
		score, layer := scoreRef(normalized, querySet, queryCodes, ref)
		score *= ref.Weight
		if score < threshold {
			return
		}
		if prev, seen := best[ref.Record.ID]; seen {
			// At equal score the stronger layer wins, so a record hit both
			// exactly and phonetically reports the exact hit.
			if prev.Score > score ||
				(prev.Score == score && layerRank(prev.Layer) <= layerRank(layer)) {
				return
			}
		}
		best[ref.Record.ID] = m.buildMatch(q, normalized, fp, ref, layer, score)
	}

	for _, ref := range ix.LookupCandidates(tokens) {
		consider(ref)
	}
	for _, ref := range ix.ExactRefs(normalized) {
		consider(ref)
	}

	matches := make([]Match, 0, len(best))
	for _, match := range best {
		matches = append(matches, *match)
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		if ri, rj := layerRank(matches[i].Layer), layerRank(matches[j].Layer); ri != rj {
			return ri < rj
		}
		return matches[i].RecordID < matches[j].RecordID
	})
	if len(matches) > m.cfg.MaxResults {
		matches = matches[:m.cfg.MaxResults]
	}

	duration := m.now().Sub(start)
	m.metrics.ScreensTotal.Inc()
	m.metrics.ScreenDuration.Observe(duration.Seconds())
	for _, match := range matches {
		m.metrics.MatchesTotal.WithLabelValues(match.Layer.String()).Inc()
	}

	m.logger.Debug("query screened",
		logging.String("normalized", normalized),
		logging.Int("matches", len(matches)),
		logging.Float64("threshold", threshold),
		logging.Duration("duration", duration))

	return &Result{
		Query:           q,
		NormalizedQuery: normalized,
		Threshold:       threshold,
		Matches:         matches,
		ScreenedAt:      start,
		Fingerprint:     fp,
		LoadedAt:        loadedAt,
		Duration:        duration,
	}, nil
}

func (m *Matcher) threshold(q Query) float64 {
	t := m.cfg.Threshold
	if q.Threshold != nil {
		t = *q.Threshold
	}
	if t < thresholdFloor {
		t = thresholdFloor
	}
	if t > thresholdCeil {
		t = thresholdCeil
	}
	return t
}

// layerRank orders layers by evidential strength for tie-breaking.
func layerRank(l types.MatchLayer) int {
	switch l {
	case types.LayerExact:
		return 0
	case types.LayerToken:
		return 1
	case types.LayerPhonetic:
		return 2
	default:
		return 3
	}
}

// scoreRef computes the layered score for one candidate name.  The result
// is the best layer's score and that layer, before alias weighting.
func scoreRef(normalized string, querySet, queryCodes map[string]struct{}, ref *sanction.NameRef) (float64, types.MatchLayer) {
	if normalized == ref.Normalized {
		return 100, types.LayerExact
	}

	score, layer := 0.0, types.LayerFuzzy
	if s := jaccard(querySet, ref.TokenSet) * 100; s > score {
		score, layer = s, types.LayerToken
	}
	if s := jaccard(queryCodes, ref.Codes) * 100; s > score {
		score, layer = s, types.LayerPhonetic
	}
	if s := fuzzyScore(normalized, ref.Normalized); s > score {
		score, layer = s, types.LayerFuzzy
	}
	return score, layer
}

// jaccard is intersection over union of two sets; empty sets score zero.
func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for k := range a {
		if _, ok := b[k]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

// fuzzyScore is edit-distance similarity scaled to 0-100.
func fuzzyScore(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	longest := len([]rune(a))
	if lb := len([]rune(b)); lb > longest {
		longest = lb
	}
	d := levenshtein.ComputeDistance(a, b)
	return 100 * (1 - float64(d)/float64(longest))
}

func (m *Matcher) buildMatch(q Query, normalized, fp string, ref *sanction.NameRef, layer types.MatchLayer, score float64) *Match {
	rec := ref.Record
	rationale := []string{
		fmt.Sprintf("%s layer scored %.1f against %s name %q", layer, score, ref.Field, ref.Display),
	}
	if ref.AliasType == types.AliasWeakVariant {
		rationale = append(rationale, "score down-weighted: matched name is a low-quality variant")
	}
	rationale = append(rationale, dobNote(q.DateOfBirth, rec.DateOfBirth)...)
	rationale = append(rationale, nationalityNote(q.Nationality, rec.Nationality)...)

	return &Match{
		RecordID:      rec.ID,
		Source:        rec.Source,
		Kind:          rec.Kind,
		PrimaryName:   rec.PrimaryName,
		MatchedName:   ref.Display,
		MatchedField:  ref.Field,
		AliasType:     ref.AliasType,
		Layer:         layer,
		Score:         score,
		RiskTier:      rec.Source.RiskTier(),
		Rationale:     rationale,
		RationaleHash: rationaleHash(normalized, rec.ID, ref.Field, layer, score, fp),
	}
}

// dobNote annotates date-of-birth consistency.  Absent data on either
// side yields no note: "unknown" is not evidence in either direction.
func dobNote(query, record *types.PartialDate) []string {
	if query == nil || record == nil || query.IsZero() || record.IsZero() {
		return nil
	}
	if query.Matches(*record) {
		return []string{fmt.Sprintf("date of birth consistent with listed %s", record)}
	}
	return []string{fmt.Sprintf("date of birth differs from listed %s", record)}
}

// nationalityNote annotates nationality consistency, comparing in
// normalized country-code space.
func nationalityNote(query, record string) []string {
	if strings.TrimSpace(query) == "" || strings.TrimSpace(record) == "" {
		return nil
	}
	q := sanction.NormalizeCountry(query)
	r := sanction.NormalizeCountry(record)
	if strings.EqualFold(q, r) {
		return []string{"nationality consistent with listing (" + r + ")"}
	}
	return []string{"nationality differs from listed " + r}
}

// rationaleHash binds a decision to everything that produced it.  Replaying
// the same query against the same data generation reproduces the hash.
func rationaleHash(normalized, recordID string, field sanction.MatchedField, layer types.MatchLayer, score float64, fingerprint string) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s|%s|%.4f|%s", normalized, recordID, field, layer, score, fingerprint)
	return hex.EncodeToString(h.Sum(nil))
}

func sourceFilter(sources []types.SourceList) map[types.SourceList]struct{} {
	if len(sources) == 0 {
		return nil
	}
	out := make(map[types.SourceList]struct{}, len(sources))
	for _, s := range sources {
		out[s] = struct{}{}
	}
	return out
}
