package models

import "time"

// SuggestionStatusNew is the status given to freshly proposed questions.
const SuggestionStatusNew = "new"

// SuggestedQuestion is a question proposed by an annotator.
type SuggestedQuestion struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	AnnotatorID uint      `gorm:"not null;index" json:"annotator_id"`
	SourceText  string    `gorm:"type:text;not null" json:"source_text"`
	TargetText  string    `gorm:"type:text" json:"target_text"`
	Status      string    `gorm:"size:32;not null" json:"status"`
	Notes       string    `gorm:"type:text" json:"notes"`
	CreatedAt   time.Time `gorm:"not null" json:"created_at"`
}
