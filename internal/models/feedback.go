package models

import "time"

// Feedback is one annotator's response to one question.
type Feedback struct {
	ID                         uint             `gorm:"primaryKey" json:"id"`
	AnnotatorID                uint             `gorm:"not null;uniqueIndex:idx_feedback_pair,priority:1" json:"annotator_id"`
	QuestionID                 uint             `gorm:"not null;uniqueIndex:idx_feedback_pair,priority:2;index" json:"question_id"`
	Status                     SubmissionStatus `gorm:"column:submission_status;size:16;not null;default:submitted" json:"submission_status"`
	QuestionTranslationRating  *int             `json:"q_translation_rating"`
	QuestionTranslationComment string           `gorm:"type:text" json:"q_translation_comment"`
	SearchRating               *int             `json:"search_rating"`
	SearchIssueType            *string          `gorm:"size:64" json:"search_issue_type"`
	SearchComment              string           `gorm:"type:text" json:"search_comment"`
	AnswerAccuracyRating       *int             `json:"answer_accuracy_rating"`
	AnswerTranslationRating    *int             `json:"answer_translation_rating"`
	AnswerComment              string           `gorm:"type:text" json:"answer_comment"`
	CreatedAt                  time.Time        `gorm:"not null" json:"created_at"`
	UpdatedAt                  time.Time        `gorm:"not null" json:"updated_at"`
}

// TableName keeps the singular table name used by existing deployments.
func (Feedback) TableName() string {
	return "feedback"
}

// IsComplete reports whether the feedback counts towards progress.
func (f Feedback) IsComplete() bool {
	return f.Status == SubmissionStatusSubmitted
}
