package dto

import (
	"time"

	"github.com/noah-isme/gema-annotation-api/internal/models"
)

// AnnotatorLoginRequest identifies an annotator by email.
type AnnotatorLoginRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// TokenResponse is returned by both login endpoints.
type TokenResponse struct {
	Token     string             `json:"token"`
	Role      string             `json:"role"`
	ExpiresAt time.Time          `json:"expires_at"`
	Annotator *AnnotatorResponse `json:"annotator,omitempty"`
}

// AnnotatorResponse serializes an annotator.
type AnnotatorResponse struct {
	ID        uint      `json:"id"`
	Email     string    `json:"email"`
	Username  *string   `json:"username,omitempty"`
	IsAdmin   bool      `json:"is_admin"`
	CreatedAt time.Time `json:"created_at"`
}

// NewAnnotatorResponse converts an annotator model into a DTO.
func NewAnnotatorResponse(annotator models.Annotator) AnnotatorResponse {
	return AnnotatorResponse{
		ID:        annotator.ID,
		Email:     annotator.Email,
		Username:  annotator.Username,
		IsAdmin:   annotator.IsAdmin,
		CreatedAt: annotator.CreatedAt,
	}
}

// QuestionResponse serializes a full question.
type QuestionResponse struct {
	ID            uint   `json:"id"`
	Category      string `json:"category"`
	SourceText    string `json:"source_text"`
	TargetText    string `json:"target_text"`
	SearchResults string `json:"search_results"`
	AnswerSource  string `json:"answer_source"`
	AnswerTarget  string `json:"answer_target"`
	Active        bool   `json:"active"`
}

// NewQuestionResponse converts a question model into a DTO.
func NewQuestionResponse(question models.Question) QuestionResponse {
	return QuestionResponse{
		ID:            question.ID,
		Category:      question.Category,
		SourceText:    question.SourceText,
		TargetText:    question.TargetText,
		SearchResults: question.SearchResults,
		AnswerSource:  question.AnswerSource,
		AnswerTarget:  question.AnswerTarget,
		Active:        question.Active,
	}
}

// QuestionSummary is the browse-list view of a question.
type QuestionSummary struct {
	ID         uint   `json:"id"`
	Category   string `json:"category"`
	SourceText string `json:"source_text"`
}

// SuggestionCreateRequest proposes a new question.
type SuggestionCreateRequest struct {
	SourceText string `json:"source_text" validate:"required,max=4000"`
	TargetText string `json:"target_text" validate:"omitempty,max=4000"`
	Notes      string `json:"notes" validate:"omitempty,max=2000"`
}

// FeedbackSaveRequest is the annotator's form for one question. Ratings are
// optional for drafts.
type FeedbackSaveRequest struct {
	QuestionID                 uint   `json:"question_id" validate:"required"`
	SaveAction                 string `json:"save_action" validate:"omitempty,oneof=draft submitted"`
	QuestionTranslationRating  *int   `json:"q_translation_rating" validate:"omitempty,min=1,max=5"`
	QuestionTranslationComment string `json:"q_translation_comment" validate:"omitempty,max=4000"`
	SearchComment              string `json:"search_comment" validate:"omitempty,max=4000"`
	AnswerAccuracyRating       *int   `json:"answer_accuracy_rating" validate:"omitempty,min=1,max=5"`
	AnswerTranslationRating    *int   `json:"answer_translation_rating" validate:"omitempty,min=1,max=5"`
	AnswerComment              string `json:"answer_comment" validate:"omitempty,max=4000"`
}

// FeedbackResponse serializes a feedback row.
type FeedbackResponse struct {
	QuestionID                 uint      `json:"question_id"`
	Status                     string    `json:"submission_status"`
	Completed                  bool      `json:"completed"`
	QuestionTranslationRating  *int      `json:"q_translation_rating"`
	QuestionTranslationComment string    `json:"q_translation_comment"`
	SearchRating               *int      `json:"search_rating"`
	SearchIssueType            *string   `json:"search_issue_type"`
	SearchComment              string    `json:"search_comment"`
	AnswerAccuracyRating       *int      `json:"answer_accuracy_rating"`
	AnswerTranslationRating    *int      `json:"answer_translation_rating"`
	AnswerComment              string    `json:"answer_comment"`
	CreatedAt                  time.Time `json:"created_at"`
	UpdatedAt                  time.Time `json:"updated_at"`
}

// NewFeedbackResponse converts a feedback model into a DTO.
func NewFeedbackResponse(feedback models.Feedback) FeedbackResponse {
	return FeedbackResponse{
		QuestionID:                 feedback.QuestionID,
		Status:                     string(feedback.Status),
		Completed:                  feedback.IsComplete(),
		QuestionTranslationRating:  feedback.QuestionTranslationRating,
		QuestionTranslationComment: feedback.QuestionTranslationComment,
		SearchRating:               feedback.SearchRating,
		SearchIssueType:            feedback.SearchIssueType,
		SearchComment:              feedback.SearchComment,
		AnswerAccuracyRating:       feedback.AnswerAccuracyRating,
		AnswerTranslationRating:    feedback.AnswerTranslationRating,
		AnswerComment:              feedback.AnswerComment,
		CreatedAt:                  feedback.CreatedAt,
		UpdatedAt:                  feedback.UpdatedAt,
	}
}

// ProgressResponse is an annotator's completion tally.
type ProgressResponse struct {
	Assigned  int64 `json:"assigned"`
	Completed int64 `json:"completed"`
	Remaining int64 `json:"remaining"`
}

// SearchSection is one titled block of a question's search context.
type SearchSection struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// TaskResponse is the annotator's current work item. Done is set when nothing is
// pending; Question is nil in that case.
type TaskResponse struct {
	Done           bool              `json:"done"`
	Question       *QuestionResponse `json:"question,omitempty"`
	Feedback       *FeedbackResponse `json:"feedback,omitempty"`
	SearchSections []SearchSection   `json:"search_sections,omitempty"`
	Progress       ProgressResponse  `json:"progress"`
	Notice         string            `json:"notice,omitempty"`
}

// FeedbackSaveResponse reports a save and the task the annotator should see next.
// Saved is false when the question was not open to the annotator.
type FeedbackSaveResponse struct {
	Saved  bool         `json:"saved"`
	Status string       `json:"submission_status,omitempty"`
	Task   TaskResponse `json:"task"`
}
