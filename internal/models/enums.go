package models

import (
	"fmt"
	"strings"
)

// SubmissionStatus is the lifecycle state of a feedback row.
type SubmissionStatus string

const (
	// SubmissionStatusDraft marks feedback saved without passing submission checks.
	SubmissionStatusDraft SubmissionStatus = "draft"
	// SubmissionStatusSubmitted marks feedback counted as complete.
	SubmissionStatusSubmitted SubmissionStatus = "submitted"
)

// SaveAction is the intent of a feedback save.
type SaveAction string

const (
	SaveActionDraft     SaveAction = "draft"
	SaveActionSubmitted SaveAction = "submitted"
)

// ParseSaveAction validates a save intent. An empty value means submit.
func ParseSaveAction(raw string) (SaveAction, error) {
	switch SaveAction(strings.ToLower(strings.TrimSpace(raw))) {
	case "", SaveActionSubmitted:
		return SaveActionSubmitted, nil
	case SaveActionDraft:
		return SaveActionDraft, nil
	default:
		return "", fmt.Errorf("unknown save action %q", raw)
	}
}

// Status returns the feedback status a save with this intent produces.
func (a SaveAction) Status() SubmissionStatus {
	if a == SaveActionDraft {
		return SubmissionStatusDraft
	}
	return SubmissionStatusSubmitted
}

// ImportMode controls how catalog rows are merged into the store.
type ImportMode string

const (
	// ImportModeInsert only adds rows whose composite key is absent.
	ImportModeInsert ImportMode = "insert"
	// ImportModeUpsert updates by explicit id or composite key, inserting when absent.
	ImportModeUpsert ImportMode = "upsert"
	// ImportModeSync upserts and deactivates every question the run did not touch.
	ImportModeSync ImportMode = "sync"
)

// ParseImportMode validates an import mode. An empty value means upsert.
func ParseImportMode(raw string) (ImportMode, error) {
	switch ImportMode(strings.ToLower(strings.TrimSpace(raw))) {
	case "", ImportModeUpsert:
		return ImportModeUpsert, nil
	case ImportModeInsert:
		return ImportModeInsert, nil
	case ImportModeSync:
		return ImportModeSync, nil
	default:
		return "", fmt.Errorf("unknown import mode %q", raw)
	}
}

// DistributionPolicy selects how unassigned questions are spread over annotators.
type DistributionPolicy string

const (
	// DistributionQuota gives each annotator up to a fixed number of questions.
	DistributionQuota DistributionPolicy = "quota"
	// DistributionExhaustive assigns every unassigned question round-robin.
	DistributionExhaustive DistributionPolicy = "exhaustive"
)

// ParseDistributionPolicy validates a policy name. "count" and "all" are accepted
// aliases for quota and exhaustive.
func ParseDistributionPolicy(raw string) (DistributionPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "quota", "count":
		return DistributionQuota, nil
	case "exhaustive", "all":
		return DistributionExhaustive, nil
	default:
		return "", fmt.Errorf("unknown distribution policy %q", raw)
	}
}

// CoverageBucket classifies a question by how much of its assigned work is done.
type CoverageBucket string

const (
	CoverageAll        CoverageBucket = "all"
	CoverageUnassigned CoverageBucket = "unassigned"
	CoveragePartial    CoverageBucket = "partial"
	CoverageFull       CoverageBucket = "full"
)

// ParseCoverageBucket validates a coverage filter. Unknown values fall back to all.
func ParseCoverageBucket(raw string) CoverageBucket {
	switch bucket := CoverageBucket(strings.ToLower(strings.TrimSpace(raw))); bucket {
	case CoverageUnassigned, CoveragePartial, CoverageFull:
		return bucket
	default:
		return CoverageAll
	}
}

// ClassifyCoverage buckets a question from its assigned and completed annotator counts.
func ClassifyCoverage(assigned, completed int64) CoverageBucket {
	switch {
	case assigned == 0:
		return CoverageUnassigned
	case completed < assigned:
		return CoveragePartial
	default:
		return CoverageFull
	}
}
