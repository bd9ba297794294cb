package models

// Question is a bilingual annotation item. The (category, source text, target text)
// triple is unique regardless of the active flag.
type Question struct {
	ID            uint   `gorm:"primaryKey" json:"id"`
	Category      string `gorm:"size:255;not null;uniqueIndex:idx_questions_unique,priority:1" json:"category"`
	SourceText    string `gorm:"not null;uniqueIndex:idx_questions_unique,priority:2" json:"source_text"`
	TargetText    string `gorm:"not null;uniqueIndex:idx_questions_unique,priority:3" json:"target_text"`
	SearchResults string `gorm:"type:text" json:"search_results"`
	AnswerSource  string `gorm:"type:text" json:"answer_source"`
	AnswerTarget  string `gorm:"type:text" json:"answer_target"`
	Active        bool   `gorm:"not null" json:"active"`
}

// QuestionKey is the composite identity of a question.
type QuestionKey struct {
	Category   string
	SourceText string
	TargetText string
}

// Key returns the composite identity of the question.
func (q Question) Key() QuestionKey {
	return QuestionKey{Category: q.Category, SourceText: q.SourceText, TargetText: q.TargetText}
}
