package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mondo989/ReallyGoodJob/internal/model"
	"github.com/mondo989/ReallyGoodJob/internal/repository"
	apperrors "github.com/mondo989/ReallyGoodJob/pkg/errors"
)

type emailLogRepository struct {
	BaseRepository
}

func NewEmailLogRepository(base BaseRepository) repository.EmailLogRepository {
	return &emailLogRepository{base}
}

const emailLogColumns = `
	id, campaign_id, recipient_id, user_id, mood_id, subject_sent, body_sent,
	status, error_message, opened_at, sent_at, created_at, updated_at
`

func (r *emailLogRepository) Create(ctx context.Context, log *model.EmailLog) error {
	query := `
		INSERT INTO email_logs (` + emailLogColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	log.ID = uuid.New()
	log.CreatedAt = time.Now()
	log.UpdatedAt = log.CreatedAt
	if log.SentAt.IsZero() {
		log.SentAt = log.CreatedAt
	}

	_, err := r.db.ExecContext(ctx, query,
		log.ID,
		log.CampaignID,
		log.RecipientID,
		log.UserID,
		log.MoodID,
		log.SubjectSent,
		log.BodySent,
		log.Status,
		log.ErrorMessage,
		log.OpenedAt,
		log.SentAt,
		log.CreatedAt,
		log.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create email log: %w", err)
	}
	return nil
}

func (r *emailLogRepository) Get(ctx context.Context, id uuid.UUID) (*model.EmailLog, error) {
	query := `SELECT ` + emailLogColumns + ` FROM email_logs WHERE id = $1`

	var log model.EmailLog
	err := r.db.GetContext(ctx, &log, query, id)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFound("email log", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get email log: %w", err)
	}
	return &log, nil
}

func (r *emailLogRepository) MarkFailed(ctx context.Context, id uuid.UUID, errorMessage string) error {
	query := `
		UPDATE email_logs
		SET status = $2, error_message = $3, updated_at = NOW()
		WHERE id = $1
	`

	_, err := r.db.ExecContext(ctx, query, id, model.EmailStatusFailed, errorMessage)
	if err != nil {
		return fmt.Errorf("failed to mark email log failed: %w", err)
	}
	return nil
}

// MarkOpened stamps the first open only; later pixel hits are no-ops.
func (r *emailLogRepository) MarkOpened(ctx context.Context, id uuid.UUID, openedAt time.Time) error {
	query := `
		UPDATE email_logs
		SET opened_at = $2, updated_at = NOW()
		WHERE id = $1 AND opened_at IS NULL
	`

	_, err := r.db.ExecContext(ctx, query, id, openedAt)
	if err != nil {
		return fmt.Errorf("failed to mark email log opened: %w", err)
	}
	return nil
}

func (r *emailLogRepository) HasRecentSend(ctx context.Context, campaignID, recipientID uuid.UUID, since time.Time) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM email_logs
			WHERE campaign_id = $1 AND recipient_id = $2 AND status = $3 AND sent_at >= $4
		)
	`

	var exists bool
	err := r.db.GetContext(ctx, &exists, query, campaignID, recipientID, model.EmailStatusSent, since)
	if err != nil {
		return false, fmt.Errorf("failed to check recent sends: %w", err)
	}
	return exists, nil
}

func (r *emailLogRepository) StatsByCampaign(ctx context.Context, campaignID uuid.UUID) (*model.CampaignStats, error) {
	query := `
		SELECT
			COUNT(*) FILTER (WHERE status = 'Sent') AS sent,
			COUNT(*) FILTER (WHERE status = 'Failed') AS failed
		FROM email_logs
		WHERE campaign_id = $1
	`

	stats := model.CampaignStats{CampaignID: campaignID}
	err := r.db.GetContext(ctx, &stats, query, campaignID)
	if err != nil {
		return nil, fmt.Errorf("failed to get campaign stats: %w", err)
	}
	return &stats, nil
}
