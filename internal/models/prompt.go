package models

import "time"

// QuickPrompt is a reusable analysis prompt template.
type QuickPrompt struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	PromptText  string    `json:"prompt_text"`
	Description string    `json:"description,omitempty"`
	IsDefault   bool      `json:"is_default"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
