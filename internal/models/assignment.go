package models

// Assignment links an annotator to a question. At most one row exists per pair.
type Assignment struct {
	ID          uint `gorm:"primaryKey" json:"id"`
	AnnotatorID uint `gorm:"not null;uniqueIndex:idx_assignments_pair,priority:1" json:"annotator_id"`
	QuestionID  uint `gorm:"not null;uniqueIndex:idx_assignments_pair,priority:2;index" json:"question_id"`
}
