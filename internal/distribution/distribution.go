// Package distribution plans how a pool of unassigned questions is spread over
// annotators.
package distribution

import (
	"math/rand/v2"

	"github.com/noah-isme/gema-annotation-api/internal/models"
)

// Allocation is the list of questions planned for one annotator.
type Allocation struct {
	AnnotatorID uint
	QuestionIDs []uint
}

// Shuffle permutes ids in place with an unseeded source.
func Shuffle(ids []uint) {
	rand.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
}

// Plan allocates pool, which the caller has already shuffled, over annotators in
// the given order. The quota policy slices perAnnotator items off the front of
// the pool for each annotator in turn; the exhaustive policy deals item i to
// annotator i mod k. Every annotator gets an entry, possibly empty.
func Plan(pool, annotators []uint, policy models.DistributionPolicy, perAnnotator int) []Allocation {
	allocations := make([]Allocation, len(annotators))
	for i, id := range annotators {
		allocations[i] = Allocation{AnnotatorID: id, QuestionIDs: []uint{}}
	}
	if len(annotators) == 0 {
		return allocations
	}

	switch policy {
	case models.DistributionExhaustive:
		for i, questionID := range pool {
			slot := &allocations[i%len(annotators)]
			slot.QuestionIDs = append(slot.QuestionIDs, questionID)
		}
	default:
		if perAnnotator <= 0 {
			return allocations
		}
		rest := pool
		for i := range allocations {
			take := perAnnotator
			if take > len(rest) {
				take = len(rest)
			}
			allocations[i].QuestionIDs = append(allocations[i].QuestionIDs, rest[:take]...)
			rest = rest[take:]
		}
	}
	return allocations
}

// Assigned counts the questions across all allocations.
func Assigned(allocations []Allocation) int {
	total := 0
	for _, allocation := range allocations {
		total += len(allocation.QuestionIDs)
	}
	return total
}
