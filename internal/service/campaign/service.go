package campaign

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mondo989/ReallyGoodJob/internal/model"
	"github.com/mondo989/ReallyGoodJob/internal/repository"
	apperrors "github.com/mondo989/ReallyGoodJob/pkg/errors"
	"github.com/mondo989/ReallyGoodJob/pkg/logger"
)

// RecipientInput is one recipient row in a campaign submission.
type RecipientInput struct {
	Email            string `json:"email"`
	DisplayName      string `json:"display_name"`
	PersonalizedName string `json:"personalized_name,omitempty"`
}

// SubmitInput is a campaign submission. Campaigns start Pending and only
// become sendable after admin approval.
type SubmitInput struct {
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Recipients  []RecipientInput `json:"recipients"`
}

// Service owns the campaign approval workflow and read paths.
type Service struct {
	campaigns repository.CampaignRepository
	schedules repository.ScheduleRepository
	emailLogs repository.EmailLogRepository
	logger    *logger.Logger
	now       func() time.Time
}

func NewService(
	campaigns repository.CampaignRepository,
	schedules repository.ScheduleRepository,
	emailLogs repository.EmailLogRepository,
	log *logger.Logger,
) *Service {
	return &Service{
		campaigns: campaigns,
		schedules: schedules,
		emailLogs: emailLogs,
		logger:    log,
		now:       time.Now,
	}
}

// Submit validates and persists a new Pending campaign with its recipients.
func (s *Service) Submit(ctx context.Context, userID uuid.UUID, input SubmitInput) (*model.Campaign, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperrors.NewValidation("campaign name is required")
	}
	if len(input.Recipients) == 0 {
		return nil, apperrors.NewValidation("at least one recipient is required")
	}

	recipients := make([]*model.Recipient, 0, len(input.Recipients))
	seen := make(map[string]bool, len(input.Recipients))
	for _, r := range input.Recipients {
		email := strings.ToLower(strings.TrimSpace(r.Email))
		if _, err := mail.ParseAddress(email); err != nil {
			return nil, apperrors.NewValidation("invalid recipient email: " + r.Email)
		}
		if seen[email] {
			return nil, apperrors.NewValidation("duplicate recipient email: " + email)
		}
		seen[email] = true
		recipients = append(recipients, &model.Recipient{
			Email:            email,
			DisplayName:      strings.TrimSpace(r.DisplayName),
			PersonalizedName: strings.TrimSpace(r.PersonalizedName),
		})
	}

	campaign := &model.Campaign{
		Name:            name,
		Description:     strings.TrimSpace(input.Description),
		Status:          model.CampaignStatusPending,
		CreatedByUserID: userID,
	}
	if err := s.campaigns.Create(ctx, campaign, recipients); err != nil {
		return nil, err
	}

	s.logger.Info("campaign submitted", map[string]interface{}{
		"campaign_id": campaign.ID.String(),
		"user_id":     userID.String(),
		"recipients":  len(recipients),
	})
	return campaign, nil
}

// Get returns a campaign visible to the caller: its creator or an admin.
func (s *Service) Get(ctx context.Context, campaignID uuid.UUID, userID uuid.UUID, isAdmin bool) (*model.Campaign, error) {
	campaign, err := s.campaigns.Get(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if !isAdmin && campaign.CreatedByUserID != userID {
		return nil, apperrors.NewNotFound("campaign", nil)
	}
	return campaign, nil
}

// ListActive returns campaigns anyone may currently send appreciation through.
func (s *Service) ListActive(ctx context.Context) ([]*model.Campaign, error) {
	return s.campaigns.ListActive(ctx, s.now().UTC())
}

// ListMine returns the caller's campaigns.
func (s *Service) ListMine(ctx context.Context, userID uuid.UUID) ([]*model.Campaign, error) {
	return s.campaigns.ListByCreator(ctx, userID)
}

// ListPending returns campaigns awaiting review.
func (s *Service) ListPending(ctx context.Context) ([]*model.Campaign, error) {
	return s.campaigns.ListByStatus(ctx, model.CampaignStatusPending)
}

// Approve activates a pending campaign.
func (s *Service) Approve(ctx context.Context, campaignID, adminID uuid.UUID) error {
	campaign, err := s.campaigns.Get(ctx, campaignID)
	if err != nil {
		return err
	}
	if campaign.Status != model.CampaignStatusPending {
		return apperrors.NewValidation("only pending campaigns can be approved")
	}
	return s.campaigns.SetStatus(ctx, campaignID, model.CampaignStatusActive, &adminID)
}

// Reject declines a pending campaign.
func (s *Service) Reject(ctx context.Context, campaignID, adminID uuid.UUID) error {
	campaign, err := s.campaigns.Get(ctx, campaignID)
	if err != nil {
		return err
	}
	if campaign.Status != model.CampaignStatusPending {
		return apperrors.NewValidation("only pending campaigns can be rejected")
	}
	return s.campaigns.SetStatus(ctx, campaignID, model.CampaignStatusRejected, &adminID)
}

// Stats aggregates dispatch outcomes and pending schedule count for a campaign.
func (s *Service) Stats(ctx context.Context, campaignID uuid.UUID, userID uuid.UUID, isAdmin bool) (*model.CampaignStats, error) {
	if _, err := s.Get(ctx, campaignID, userID, isAdmin); err != nil {
		return nil, err
	}

	stats, err := s.emailLogs.StatsByCampaign(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	pending, err := s.schedules.CountActiveByCampaign(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	stats.PendingSchedules = pending
	return stats, nil
}

// ExpireOverdue flips past-expiration campaigns to Expired and deactivates
// their schedules. Called by the daily sweep.
func (s *Service) ExpireOverdue(ctx context.Context) (int, error) {
	now := s.now().UTC()
	overdue, err := s.campaigns.ListExpired(ctx, now)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, c := range overdue {
		if err := s.campaigns.SetStatus(ctx, c.ID, model.CampaignStatusExpired, nil); err != nil {
			s.logger.Error(err, "failed to expire campaign", map[string]interface{}{
				"campaign_id": c.ID.String(),
			})
			continue
		}
		if err := s.schedules.DeactivateByCampaign(ctx, c.ID); err != nil {
			s.logger.Error(err, "failed to deactivate schedules for expired campaign", map[string]interface{}{
				"campaign_id": c.ID.String(),
			})
		}
		expired++
	}
	return expired, nil
}

// TrackOpen stamps the first open for a sent email. Invalid or unknown ids
// are ignored; the pixel endpoint never errors to the caller.
func (s *Service) TrackOpen(ctx context.Context, emailLogID uuid.UUID) {
	if err := s.emailLogs.MarkOpened(ctx, emailLogID, s.now().UTC()); err != nil {
		s.logger.Debug("open tracking update failed", map[string]interface{}{
			"email_log_id": emailLogID.String(),
		})
	}
}
