package model

import (
	"time"

	"github.com/google/uuid"
)

type EmailStatus string

const (
	EmailStatusSent   EmailStatus = "Sent"
	EmailStatusFailed EmailStatus = "Failed"
)

// EmailLog records one dispatch attempt for one (campaign, recipient) pair.
// The row is created before the provider call and updated afterward, so a
// crash mid-send still leaves an auditable attempt. SubjectSent and BodySent
// hold the rendered text, post placeholder substitution.
type EmailLog struct {
	Base
	CampaignID   uuid.UUID   `json:"campaign_id" db:"campaign_id"`
	RecipientID  uuid.UUID   `json:"recipient_id" db:"recipient_id"`
	UserID       uuid.UUID   `json:"user_id" db:"user_id"`
	MoodID       uuid.UUID   `json:"mood_id" db:"mood_id"`
	SubjectSent  string      `json:"subject_sent" db:"subject_sent"`
	BodySent     string      `json:"body_sent" db:"body_sent"`
	Status       EmailStatus `json:"status" db:"status"`
	ErrorMessage *string     `json:"error_message,omitempty" db:"error_message"`
	OpenedAt     *time.Time  `json:"opened_at,omitempty" db:"opened_at"`
	SentAt       time.Time   `json:"sent_at" db:"sent_at"`
}

// CampaignStats aggregates dispatch outcomes for one campaign.
type CampaignStats struct {
	CampaignID       uuid.UUID `json:"campaign_id" db:"campaign_id"`
	Sent             int       `json:"sent" db:"sent"`
	Failed           int       `json:"failed" db:"failed"`
	PendingSchedules int       `json:"pending_schedules" db:"pending_schedules"`
}
