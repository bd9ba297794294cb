// Package matching resolves rows of an externally maintained sheet to catalog
// questions. Resolution tries the exact (category, source, target) key, then the
// raw source text, then the whitespace-normalised source text. A source-text tier
// that yields several candidates makes the row ambiguous and stops the chain.
package matching

import (
	"regexp"
	"strings"
)

// Outcome is the terminal state of matching a single row.
type Outcome int

const (
	// Unmapped rows matched nothing in any tier.
	Unmapped Outcome = iota
	// Resolved rows matched exactly one question.
	Resolved
	// Ambiguous rows matched more than one question on source text.
	Ambiguous
)

func (o Outcome) String() string {
	switch o {
	case Resolved:
		return "resolved"
	case Ambiguous:
		return "ambiguous"
	default:
		return "unmapped"
	}
}

// Tier identifies which index produced a result.
type Tier string

const (
	TierNone       Tier = ""
	TierExact      Tier = "exact"
	TierSource     Tier = "source"
	TierNormalized Tier = "normalized"
)

// Row is the matchable part of a sheet row.
type Row struct {
	Category   string
	SourceText string
	TargetText string
}

// Entry is a catalog question as seen by the index.
type Entry struct {
	ID         uint
	Category   string
	SourceText string
	TargetText string
}

// Result describes how a row was matched.
type Result struct {
	Outcome    Outcome
	QuestionID uint
	Tier       Tier
	Candidates []uint
}

type exactKey struct {
	category string
	source   string
	target   string
}

// Index holds the three lookup tables built once per reconciliation run.
type Index struct {
	exact      map[exactKey]uint
	source     map[string][]uint
	normalized map[string][]uint
}

var whitespace = regexp.MustCompile(`\s+`)

// NormalizeText collapses runs of whitespace into one space and trims the result.
func NormalizeText(value string) string {
	return whitespace.ReplaceAllString(strings.TrimSpace(value), " ")
}

// NewIndex builds the lookup tables from catalog entries. Later entries win on
// exact-key collisions after trimming.
func NewIndex(entries []Entry) *Index {
	idx := &Index{
		exact:      make(map[exactKey]uint, len(entries)),
		source:     make(map[string][]uint, len(entries)),
		normalized: make(map[string][]uint, len(entries)),
	}
	for _, entry := range entries {
		category := strings.TrimSpace(entry.Category)
		source := strings.TrimSpace(entry.SourceText)
		target := strings.TrimSpace(entry.TargetText)

		idx.exact[exactKey{category: category, source: source, target: target}] = entry.ID
		idx.source[source] = append(idx.source[source], entry.ID)
		norm := NormalizeText(source)
		idx.normalized[norm] = append(idx.normalized[norm], entry.ID)
	}
	return idx
}

// Len returns the number of distinct exact keys in the index.
func (idx *Index) Len() int {
	return len(idx.exact)
}

// Match resolves a single row. It has no side effects.
func (idx *Index) Match(row Row) Result {
	key := exactKey{category: row.Category, source: row.SourceText, target: row.TargetText}
	if id, ok := idx.exact[key]; ok {
		return Result{Outcome: Resolved, QuestionID: id, Tier: TierExact}
	}

	if hits := idx.source[row.SourceText]; len(hits) > 0 {
		return fromHits(hits, TierSource)
	}

	if hits := idx.normalized[NormalizeText(row.SourceText)]; len(hits) > 0 {
		return fromHits(hits, TierNormalized)
	}

	return Result{Outcome: Unmapped}
}

func fromHits(hits []uint, tier Tier) Result {
	if len(hits) == 1 {
		return Result{Outcome: Resolved, QuestionID: hits[0], Tier: tier}
	}
	candidates := make([]uint, len(hits))
	copy(candidates, hits)
	return Result{Outcome: Ambiguous, Tier: tier, Candidates: candidates}
}
