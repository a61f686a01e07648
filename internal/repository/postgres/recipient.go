package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/mondo989/ReallyGoodJob/internal/model"
	"github.com/mondo989/ReallyGoodJob/internal/repository"
	apperrors "github.com/mondo989/ReallyGoodJob/pkg/errors"
)

type recipientRepository struct {
	BaseRepository
}

func NewRecipientRepository(base BaseRepository) repository.RecipientRepository {
	return &recipientRepository{base}
}

func (r *recipientRepository) Get(ctx context.Context, id uuid.UUID) (*model.Recipient, error) {
	query := `
		SELECT id, campaign_id, email, display_name, personalized_name, created_at, updated_at
		FROM recipients
		WHERE id = $1
	`

	var recipient model.Recipient
	err := r.db.GetContext(ctx, &recipient, query, id)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFound("recipient", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get recipient: %w", err)
	}
	return &recipient, nil
}

func (r *recipientRepository) ListByCampaign(ctx context.Context, campaignID uuid.UUID) ([]*model.Recipient, error) {
	query := `
		SELECT id, campaign_id, email, display_name, personalized_name, created_at, updated_at
		FROM recipients
		WHERE campaign_id = $1
		ORDER BY created_at ASC
	`

	var recipients []*model.Recipient
	err := r.db.SelectContext(ctx, &recipients, query, campaignID)
	if err != nil {
		return nil, fmt.Errorf("failed to list recipients: %w", err)
	}
	return recipients, nil
}
