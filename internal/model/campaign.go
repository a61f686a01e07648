package model

import (
	"time"

	"github.com/google/uuid"
)

type CampaignStatus string

const (
	CampaignStatusPending  CampaignStatus = "Pending"
	CampaignStatusActive   CampaignStatus = "Active"
	CampaignStatusRejected CampaignStatus = "Rejected"
	CampaignStatusExpired  CampaignStatus = "Expired"
)

// Default campaign limits.
const (
	DefaultCampaignLifetime    = 90 * 24 * time.Hour
	DefaultDuplicateWindowDays = 30
	DefaultFreeTierPerMonth    = 5
	DefaultPremiumSendsPerDay  = 3
	DefaultFreeTierSendsPerDay = 1
)

// Campaign is owned by its creator and mutated only through the approval workflow.
type Campaign struct {
	Base
	Name                string         `json:"name" db:"name"`
	Description         string         `json:"description" db:"description"`
	Status              CampaignStatus `json:"status" db:"status"`
	CreatedByUserID     uuid.UUID      `json:"created_by_user_id" db:"created_by_user_id"`
	ApprovedByAdminID   *uuid.UUID     `json:"approved_by_admin_id,omitempty" db:"approved_by_admin_id"`
	ApprovedAt          *time.Time     `json:"approved_at,omitempty" db:"approved_at"`
	ExpirationAt        time.Time      `json:"expiration_at" db:"expiration_at"`
	DuplicateWindowDays int            `json:"duplicate_window_days" db:"duplicate_window_days"`
	FreeTierPerMonth    int            `json:"free_tier_limit_per_month" db:"free_tier_limit_per_month"`
	PremiumTierPerDay   int            `json:"premium_tier_limit_per_day" db:"premium_tier_limit_per_day"`
}

// IsSendable reports whether a batch may dispatch for this campaign right now.
func (c *Campaign) IsSendable(now time.Time) bool {
	return c.Status == CampaignStatusActive && c.ExpirationAt.After(now)
}

// IsTerminallyExpired reports whether the campaign can never fire again.
func (c *Campaign) IsTerminallyExpired(now time.Time) bool {
	return c.Status == CampaignStatusExpired || !c.ExpirationAt.After(now)
}
