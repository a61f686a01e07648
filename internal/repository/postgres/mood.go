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

type moodRepository struct {
	BaseRepository
}

func NewMoodRepository(base BaseRepository) repository.MoodRepository {
	return &moodRepository{base}
}

func (r *moodRepository) Create(ctx context.Context, mood *model.TemplateMood) error {
	query := `
		INSERT INTO template_moods (id, name, subject_line, body_text, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (name) DO NOTHING
	`
	mood.ID = uuid.New()
	mood.CreatedAt = time.Now()
	mood.UpdatedAt = mood.CreatedAt

	_, err := r.db.ExecContext(ctx, query,
		mood.ID,
		mood.Name,
		mood.SubjectLine,
		mood.BodyText,
		mood.CreatedAt,
		mood.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create template mood: %w", err)
	}
	return nil
}

func (r *moodRepository) Get(ctx context.Context, id uuid.UUID) (*model.TemplateMood, error) {
	query := `
		SELECT id, name, subject_line, body_text, created_at, updated_at
		FROM template_moods
		WHERE id = $1
	`

	var mood model.TemplateMood
	err := r.db.GetContext(ctx, &mood, query, id)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFound("template mood", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get template mood: %w", err)
	}
	return &mood, nil
}

func (r *moodRepository) GetByName(ctx context.Context, name string) (*model.TemplateMood, error) {
	query := `
		SELECT id, name, subject_line, body_text, created_at, updated_at
		FROM template_moods
		WHERE name = $1
	`

	var mood model.TemplateMood
	err := r.db.GetContext(ctx, &mood, query, name)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFound("template mood", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get template mood: %w", err)
	}
	return &mood, nil
}

func (r *moodRepository) List(ctx context.Context) ([]*model.TemplateMood, error) {
	query := `
		SELECT id, name, subject_line, body_text, created_at, updated_at
		FROM template_moods
		ORDER BY name ASC
	`

	var moods []*model.TemplateMood
	err := r.db.SelectContext(ctx, &moods, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list template moods: %w", err)
	}
	return moods, nil
}
