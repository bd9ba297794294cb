package dto

import (
	"time"

	"github.com/noah-isme/gema-annotation-api/internal/models"
)

// PaginationMeta captures pagination metadata for list responses.
type PaginationMeta struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalItems int64 `json:"total_items"`
	TotalPages int   `json:"total_pages"`
}

// AdminLoginRequest carries admin credentials.
type AdminLoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AnnotatorCreateRequest adds a single annotator.
type AnnotatorCreateRequest struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Username string `json:"username" validate:"omitempty,max=255"`
}

// AnnotatorBulkCreateRequest adds every email found in a free-form blob.
type AnnotatorBulkCreateRequest struct {
	Emails string `json:"emails" validate:"required"`
}

// AnnotatorBulkCreateResponse reports the outcome of a bulk add.
type AnnotatorBulkCreateResponse struct {
	Added    int      `json:"added"`
	Existing int      `json:"existing"`
	Emails   []string `json:"emails"`
	Invalid  []string `json:"invalid,omitempty"`
}

// ManualAssignmentRequest assigns one question to one annotator.
type ManualAssignmentRequest struct {
	AnnotatorID uint `json:"annotator_id" validate:"required"`
	QuestionID  uint `json:"question_id" validate:"required"`
}

// ManualAssignmentResponse reports whether a new assignment was stored.
type ManualAssignmentResponse struct {
	AnnotatorID uint `json:"annotator_id"`
	QuestionID  uint `json:"question_id"`
	Created     bool `json:"created"`
}

// DistributeRequest asks for a bulk distribution of unassigned questions.
type DistributeRequest struct {
	AnnotatorIDs []uint `json:"annotator_ids" validate:"required,min=1,dive,required"`
	Policy       string `json:"policy" validate:"omitempty,oneof=quota exhaustive count all"`
	PerAnnotator int    `json:"per_annotator" validate:"omitempty,min=1"`
}

// AnnotatorAllocation is the number of questions one annotator received.
type AnnotatorAllocation struct {
	AnnotatorID uint  `json:"annotator_id"`
	Received    int64 `json:"received"`
}

// DistributeResponse summarises a bulk distribution.
type DistributeResponse struct {
	Policy      string                `json:"policy"`
	PoolSize    int                   `json:"pool_size"`
	Created     int64                 `json:"created"`
	Remaining   int                   `json:"remaining"`
	Allocations []AnnotatorAllocation `json:"allocations"`
}

// CoverageListRequest filters the per-question coverage listing.
type CoverageListRequest struct {
	Status      string
	AnnotatorID uint
	Category    string
	Query       string
	Page        int
	PageSize    int
}

// CoverageItem is the coverage of a single active question.
type CoverageItem struct {
	QuestionID     uint   `json:"question_id"`
	Category       string `json:"category"`
	SourceText     string `json:"source_text"`
	AssignedCount  int64  `json:"assigned_count"`
	CompletedCount int64  `json:"completed_count"`
	Status         string `json:"status"`
}

// CoverageTotals counts active questions per coverage bucket.
type CoverageTotals struct {
	Total      int64 `json:"total_questions"`
	Unassigned int64 `json:"unassigned"`
	Partial    int64 `json:"partial"`
	Full       int64 `json:"full"`
}

// CoverageFilters echoes the filters applied after normalisation.
type CoverageFilters struct {
	Status      string `json:"status"`
	AnnotatorID uint   `json:"annotator_id,omitempty"`
	Category    string `json:"category,omitempty"`
	Query       string `json:"q,omitempty"`
}

// CoverageListResponse wraps the coverage listing.
type CoverageListResponse struct {
	Items      []CoverageItem  `json:"items"`
	Pagination PaginationMeta  `json:"pagination"`
	Totals     CoverageTotals  `json:"totals"`
	Categories []string        `json:"categories"`
	Filters    CoverageFilters `json:"filters"`
}

// AnnotatorProgressResponse is one row of the admin progress table.
type AnnotatorProgressResponse struct {
	AnnotatorID uint   `json:"annotator_id"`
	Email       string `json:"email"`
	Assigned    int64  `json:"assigned"`
	Completed   int64  `json:"completed"`
	Drafts      int64  `json:"drafts"`
	Remaining   int64  `json:"remaining"`
}

// CatalogImportRequest carries the form fields of a catalog upload.
type CatalogImportRequest struct {
	Mode               string `form:"import_mode" validate:"omitempty,oneof=insert upsert sync"`
	ReplaceAssignments bool   `form:"replace_assignments"`
}

// CatalogImportResponse summarises a catalog import.
type CatalogImportResponse struct {
	Mode               string `json:"mode"`
	RowsRead           int    `json:"rows_read"`
	RowsSkipped        int    `json:"rows_skipped"`
	Inserted           int    `json:"inserted"`
	Updated            int    `json:"updated"`
	Touched            int    `json:"touched"`
	Deactivated        int64  `json:"deactivated"`
	AnnotatorsCreated  int    `json:"annotators_created"`
	AssignmentsAdded   int64  `json:"assignments_added"`
	AssignmentsRemoved int64  `json:"assignments_removed"`
}

// ReconcileReport describes a reconciliation run. Counts after Applied are only
// populated when the run was not a dry run.
type ReconcileReport struct {
	SheetRows          int      `json:"sheet_rows"`
	UniqueEmails       int      `json:"unique_sheet_emails"`
	Mapped             int      `json:"mapped_rows"`
	Unmapped           int      `json:"unmapped_rows"`
	Ambiguous          int      `json:"ambiguous_rows"`
	UnmappedSamples    []string `json:"first_unmapped"`
	AmbiguousSamples   []string `json:"first_ambiguous"`
	Applied            bool     `json:"applied"`
	AnnotatorsPruned   int64    `json:"annotators_pruned"`
	QuestionsPurged    int64    `json:"questions_purged"`
	AnnotatorsCreated  int      `json:"annotators_created"`
	AssignmentsRemoved int64    `json:"assignments_removed"`
	AssignmentsCreated int64    `json:"assignments_created"`
	FeedbackSeeded     int      `json:"feedback_seeded"`
	Annotators         int64    `json:"users"`
	Assignments        int64    `json:"assignments"`
	ActiveQuestions    int64    `json:"active_questions"`
}

// SuggestionResponse is a suggested question with its author.
type SuggestionResponse struct {
	ID             uint      `json:"id"`
	AnnotatorID    uint      `json:"annotator_id"`
	AnnotatorEmail string    `json:"annotator_email,omitempty"`
	SourceText     string    `json:"source_text"`
	TargetText     string    `json:"target_text"`
	Status         string    `json:"status"`
	Notes          string    `json:"notes"`
	CreatedAt      time.Time `json:"created_at"`
}

// ActivityListRequest filters the audit log.
type ActivityListRequest struct {
	Page          int
	PageSize      int
	ActorEmail    string
	Action        string
	EntityType    string
	CorrelationID string
	Since         time.Time
}

// ActivityResponse is one audit entry.
type ActivityResponse struct {
	ID            uint                   `json:"id"`
	ActorID       uint                   `json:"actor_id"`
	ActorEmail    string                 `json:"actor_email"`
	ActorRole     string                 `json:"actor_role"`
	Action        string                 `json:"action"`
	EntityType    string                 `json:"entity_type"`
	EntityID      *uint                  `json:"entity_id,omitempty"`
	CorrelationID string                 `json:"correlation_id,omitempty"`
	Metadata      map[string]interface{} `json:"metadata"`
	CreatedAt     time.Time              `json:"created_at"`
}

// ActivityListResponse wraps paginated activity logs.
type ActivityListResponse struct {
	Items      []ActivityResponse `json:"items"`
	Pagination PaginationMeta     `json:"pagination"`
}

// NewActivityResponse converts an activity model into a DTO.
func NewActivityResponse(entry models.ActivityLog) ActivityResponse {
	metadata := make(map[string]interface{}, len(entry.Metadata))
	for key, value := range entry.Metadata {
		metadata[key] = value
	}
	return ActivityResponse{
		ID:            entry.ID,
		ActorID:       entry.ActorID,
		ActorEmail:    entry.ActorEmail,
		ActorRole:     entry.ActorRole,
		Action:        entry.Action,
		EntityType:    entry.EntityType,
		EntityID:      entry.EntityID,
		CorrelationID: entry.CorrelationID,
		Metadata:      metadata,
		CreatedAt:     entry.CreatedAt,
	}
}
