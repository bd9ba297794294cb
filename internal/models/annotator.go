package models

import (
	"strings"
	"time"
)

// Annotator is a person who rates and comments on assigned questions.
type Annotator struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Email     string    `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Username  *string   `gorm:"size:255" json:"username,omitempty"`
	IsAdmin   bool      `gorm:"not null" json:"is_admin"`
	CreatedAt time.Time `json:"created_at"`
}

// NormalizeEmail lower-cases and trims an email so lookups are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
