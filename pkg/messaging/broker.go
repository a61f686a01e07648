package messaging

import (
	"context"
)

// Broker defines the interface for message brokers
type Broker interface {
	Publish(ctx context.Context, channel string, message interface{}) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	Close() error
}

// Dispatch engine event channels.
const (
	ChannelEmailSent     = "email.sent"
	ChannelEmailFailed   = "email.failed"
	ChannelScheduleFired = "schedule.fired"
)

// EmailEvent is published for every dispatch attempt.
type EmailEvent struct {
	EmailLogID  string `json:"email_log_id"`
	CampaignID  string `json:"campaign_id"`
	RecipientID string `json:"recipient_id"`
	UserID      string `json:"user_id"`
	Status      string `json:"status"`
	Error       string `json:"error,omitempty"`
}

// ScheduleFiredEvent summarizes one schedule batch.
type ScheduleFiredEvent struct {
	ScheduleID string `json:"schedule_id"`
	CampaignID string `json:"campaign_id"`
	Window     string `json:"window"`
	Sent       int    `json:"sent"`
	Failed     int    `json:"failed"`
	Skipped    int    `json:"skipped"`
}
