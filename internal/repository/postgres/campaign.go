package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/mondo989/ReallyGoodJob/internal/model"
	"github.com/mondo989/ReallyGoodJob/internal/repository"
	apperrors "github.com/mondo989/ReallyGoodJob/pkg/errors"
)

type campaignRepository struct {
	BaseRepository
}

func NewCampaignRepository(base BaseRepository) repository.CampaignRepository {
	return &campaignRepository{base}
}

const campaignColumns = `
	id, name, description, status, created_by_user_id, approved_by_admin_id,
	approved_at, expiration_at, duplicate_window_days, free_tier_limit_per_month,
	premium_tier_limit_per_day, created_at, updated_at
`

// Create inserts the campaign and its recipients in one transaction; a
// campaign with no recipients is never persisted.
func (r *campaignRepository) Create(ctx context.Context, campaign *model.Campaign, recipients []*model.Recipient) error {
	if len(recipients) == 0 {
		return apperrors.NewValidation("at least one recipient is required")
	}

	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		now := time.Now()
		campaign.ID = uuid.New()
		campaign.CreatedAt = now
		campaign.UpdatedAt = now
		campaign.Status = model.CampaignStatusPending
		if campaign.ExpirationAt.IsZero() {
			campaign.ExpirationAt = now.Add(model.DefaultCampaignLifetime)
		}
		if campaign.DuplicateWindowDays == 0 {
			campaign.DuplicateWindowDays = model.DefaultDuplicateWindowDays
		}
		if campaign.FreeTierPerMonth == 0 {
			campaign.FreeTierPerMonth = model.DefaultFreeTierPerMonth
		}
		if campaign.PremiumTierPerDay == 0 {
			campaign.PremiumTierPerDay = model.DefaultPremiumSendsPerDay
		}

		query := `
			INSERT INTO campaigns (` + campaignColumns + `)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		`
		_, err := tx.ExecContext(ctx, query,
			campaign.ID,
			campaign.Name,
			campaign.Description,
			campaign.Status,
			campaign.CreatedByUserID,
			campaign.ApprovedByAdminID,
			campaign.ApprovedAt,
			campaign.ExpirationAt,
			campaign.DuplicateWindowDays,
			campaign.FreeTierPerMonth,
			campaign.PremiumTierPerDay,
			campaign.CreatedAt,
			campaign.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to create campaign: %w", err)
		}

		recipientQuery := `
			INSERT INTO recipients (
				id, campaign_id, email, display_name, personalized_name, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7)
		`
		for _, recipient := range recipients {
			recipient.ID = uuid.New()
			recipient.CampaignID = campaign.ID
			recipient.CreatedAt = now
			recipient.UpdatedAt = now
			if recipient.PersonalizedName == "" {
				recipient.PersonalizedName = recipient.DisplayName
			}

			if _, err := tx.ExecContext(ctx, recipientQuery,
				recipient.ID,
				recipient.CampaignID,
				recipient.Email,
				recipient.DisplayName,
				recipient.PersonalizedName,
				recipient.CreatedAt,
				recipient.UpdatedAt,
			); err != nil {
				return fmt.Errorf("failed to create recipient: %w", err)
			}
		}
		return nil
	})
}

func (r *campaignRepository) Get(ctx context.Context, id uuid.UUID) (*model.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE id = $1`

	var campaign model.Campaign
	err := r.db.GetContext(ctx, &campaign, query, id)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFound("campaign", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get campaign: %w", err)
	}
	return &campaign, nil
}

func (r *campaignRepository) ListActive(ctx context.Context, now time.Time) ([]*model.Campaign, error) {
	query := `
		SELECT ` + campaignColumns + `
		FROM campaigns
		WHERE status = $1 AND expiration_at > $2
		ORDER BY approved_at DESC
	`

	var campaigns []*model.Campaign
	err := r.db.SelectContext(ctx, &campaigns, query, model.CampaignStatusActive, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list active campaigns: %w", err)
	}
	return campaigns, nil
}

func (r *campaignRepository) ListExpired(ctx context.Context, now time.Time) ([]*model.Campaign, error) {
	query := `
		SELECT ` + campaignColumns + `
		FROM campaigns
		WHERE status = $1 AND expiration_at <= $2
		ORDER BY expiration_at ASC
	`

	var campaigns []*model.Campaign
	err := r.db.SelectContext(ctx, &campaigns, query, model.CampaignStatusActive, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list expired campaigns: %w", err)
	}
	return campaigns, nil
}

func (r *campaignRepository) ListByCreator(ctx context.Context, userID uuid.UUID) ([]*model.Campaign, error) {
	query := `
		SELECT ` + campaignColumns + `
		FROM campaigns
		WHERE created_by_user_id = $1
		ORDER BY created_at DESC
	`

	var campaigns []*model.Campaign
	err := r.db.SelectContext(ctx, &campaigns, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list campaigns: %w", err)
	}
	return campaigns, nil
}

func (r *campaignRepository) ListByStatus(ctx context.Context, status model.CampaignStatus) ([]*model.Campaign, error) {
	query := `
		SELECT ` + campaignColumns + `
		FROM campaigns
		WHERE status = $1
		ORDER BY created_at ASC
	`

	var campaigns []*model.Campaign
	err := r.db.SelectContext(ctx, &campaigns, query, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list campaigns by status: %w", err)
	}
	return campaigns, nil
}

func (r *campaignRepository) SetStatus(ctx context.Context, id uuid.UUID, status model.CampaignStatus, adminID *uuid.UUID) error {
	query := `
		UPDATE campaigns
		SET status = $2,
			approved_by_admin_id = COALESCE($3, approved_by_admin_id),
			approved_at = CASE WHEN $2 = 'Active' THEN NOW() ELSE approved_at END,
			updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, id, status, adminID)
	if err != nil {
		return fmt.Errorf("failed to set campaign status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperrors.NewNotFound("campaign", nil)
	}
	return nil
}
