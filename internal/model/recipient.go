package model

import (
	"github.com/google/uuid"
)

// Recipient belongs to exactly one campaign. Rows are never updated once a
// log entry references them; the rendered text in email_logs is the record.
type Recipient struct {
	Base
	CampaignID       uuid.UUID `json:"campaign_id" db:"campaign_id"`
	Email            string    `json:"email" db:"email"`
	DisplayName      string    `json:"display_name" db:"display_name"`
	PersonalizedName string    `json:"personalized_name" db:"personalized_name"`
}

// NameForGreeting returns the personalized name, falling back to the display name.
func (r *Recipient) NameForGreeting() string {
	if r.PersonalizedName != "" {
		return r.PersonalizedName
	}
	return r.DisplayName
}
