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

type scheduleRepository struct {
	BaseRepository
}

func NewScheduleRepository(base BaseRepository) repository.ScheduleRepository {
	return &scheduleRepository{base}
}

const scheduleColumns = `
	id, campaign_id, user_id, current_mood_id, "window", next_run_at,
	remaining_sends_this_window, daily_sends_count, sender_note, frequency,
	is_active, created_at, updated_at
`

func (r *scheduleRepository) Create(ctx context.Context, schedule *model.Schedule) error {
	query := `
		INSERT INTO send_schedules (` + scheduleColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	schedule.ID = uuid.New()
	schedule.CreatedAt = time.Now()
	schedule.UpdatedAt = schedule.CreatedAt
	if schedule.RemainingSendsThisWindow == 0 {
		schedule.RemainingSendsThisWindow = 1
	}

	_, err := r.db.ExecContext(ctx, query,
		schedule.ID,
		schedule.CampaignID,
		schedule.UserID,
		schedule.CurrentMoodID,
		schedule.Window,
		schedule.NextRunAt,
		schedule.RemainingSendsThisWindow,
		schedule.DailySendsCount,
		schedule.SenderNote,
		schedule.Frequency,
		schedule.IsActive,
		schedule.CreatedAt,
		schedule.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create schedule: %w", err)
	}
	return nil
}

func (r *scheduleRepository) Get(ctx context.Context, id uuid.UUID) (*model.Schedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM send_schedules WHERE id = $1`

	var schedule model.Schedule
	err := r.db.GetContext(ctx, &schedule, query, id)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFound("schedule", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get schedule: %w", err)
	}
	return &schedule, nil
}

func (r *scheduleRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*model.Schedule, error) {
	query := `
		SELECT ` + scheduleColumns + `
		FROM send_schedules
		WHERE user_id = $1
		ORDER BY created_at DESC
	`

	var schedules []*model.Schedule
	err := r.db.SelectContext(ctx, &schedules, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list schedules: %w", err)
	}
	return schedules, nil
}

// ListDue selects schedules eligible for the window firing. Inactive
// schedules are never selected.
func (r *scheduleRepository) ListDue(ctx context.Context, window model.Window, now time.Time) ([]*model.Schedule, error) {
	query := `
		SELECT ` + scheduleColumns + `
		FROM send_schedules
		WHERE is_active = TRUE AND "window" = $1 AND next_run_at <= $2
		ORDER BY next_run_at ASC
	`

	var schedules []*model.Schedule
	err := r.db.SelectContext(ctx, &schedules, query, window, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list due schedules: %w", err)
	}
	return schedules, nil
}

func (r *scheduleRepository) HasActive(ctx context.Context, userID, campaignID uuid.UUID, window model.Window) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM send_schedules
			WHERE user_id = $1 AND campaign_id = $2 AND "window" = $3 AND is_active = TRUE
		)
	`

	var exists bool
	err := r.db.GetContext(ctx, &exists, query, userID, campaignID, window)
	if err != nil {
		return false, fmt.Errorf("failed to check existing schedule: %w", err)
	}
	return exists, nil
}

// TryConsume is the quota state machine's single admission point. The
// conditional UPDATE keeps the read-modify-write inside the database, so
// two concurrent dispatches can never both observe and decrement the last
// window slot.
func (r *scheduleRepository) TryConsume(ctx context.Context, id uuid.UUID, maxDailySends int) (bool, error) {
	query := `
		UPDATE send_schedules
		SET remaining_sends_this_window = remaining_sends_this_window - 1,
			daily_sends_count = daily_sends_count + 1,
			updated_at = NOW()
		WHERE id = $1
		AND is_active = TRUE
		AND remaining_sends_this_window > 0
		AND daily_sends_count < $2
	`

	result, err := r.db.ExecContext(ctx, query, id, maxDailySends)
	if err != nil {
		return false, fmt.Errorf("failed to consume quota: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}

// ResetDailyCounters implements the midnight boundary: every schedule gets
// daily_sends_count = 0 and a fresh window slot.
func (r *scheduleRepository) ResetDailyCounters(ctx context.Context) (int64, error) {
	query := `
		UPDATE send_schedules
		SET daily_sends_count = 0,
			remaining_sends_this_window = 1,
			updated_at = NOW()
	`

	result, err := r.db.ExecContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to reset daily counters: %w", err)
	}
	return result.RowsAffected()
}

func (r *scheduleRepository) AdvanceNextRun(ctx context.Context, id uuid.UUID, nextRunAt time.Time, replenishWindow bool) error {
	query := `
		UPDATE send_schedules
		SET next_run_at = $2,
			remaining_sends_this_window = CASE WHEN $3 THEN 1 ELSE remaining_sends_this_window END,
			updated_at = NOW()
		WHERE id = $1
	`

	_, err := r.db.ExecContext(ctx, query, id, nextRunAt, replenishWindow)
	if err != nil {
		return fmt.Errorf("failed to advance schedule: %w", err)
	}
	return nil
}

func (r *scheduleRepository) SetMood(ctx context.Context, id uuid.UUID, moodID uuid.UUID) error {
	query := `
		UPDATE send_schedules
		SET current_mood_id = $2, updated_at = NOW()
		WHERE id = $1
	`

	_, err := r.db.ExecContext(ctx, query, id, moodID)
	if err != nil {
		return fmt.Errorf("failed to set schedule mood: %w", err)
	}
	return nil
}

func (r *scheduleRepository) Deactivate(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE send_schedules
		SET is_active = FALSE, updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to deactivate schedule: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperrors.NewNotFound("schedule", nil)
	}
	return nil
}

func (r *scheduleRepository) DeactivateByCampaign(ctx context.Context, campaignID uuid.UUID) error {
	query := `
		UPDATE send_schedules
		SET is_active = FALSE, updated_at = NOW()
		WHERE campaign_id = $1 AND is_active = TRUE
	`

	_, err := r.db.ExecContext(ctx, query, campaignID)
	if err != nil {
		return fmt.Errorf("failed to deactivate campaign schedules: %w", err)
	}
	return nil
}

func (r *scheduleRepository) CountActiveByCampaign(ctx context.Context, campaignID uuid.UUID) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM send_schedules
		WHERE campaign_id = $1 AND is_active = TRUE
	`

	var count int
	err := r.db.GetContext(ctx, &count, query, campaignID)
	if err != nil {
		return 0, fmt.Errorf("failed to count schedules: %w", err)
	}
	return count, nil
}
