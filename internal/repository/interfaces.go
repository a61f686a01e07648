package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/mondo989/ReallyGoodJob/internal/model"
)

// All repository interfaces in one file
type (
	// UserRepository handles sender accounts
	UserRepository interface {
		Create(ctx context.Context, user *model.User) error
		Get(ctx context.Context, id uuid.UUID) (*model.User, error)
		GetByEmail(ctx context.Context, email string) (*model.User, error)
		Update(ctx context.Context, user *model.User) error
		UpdateEncryptedTokens(ctx context.Context, userID uuid.UUID, blob string) error
	}

	CampaignRepository interface {
		Create(ctx context.Context, campaign *model.Campaign, recipients []*model.Recipient) error
		Get(ctx context.Context, id uuid.UUID) (*model.Campaign, error)
		// ListActive returns sendable campaigns: Active status, not yet expired.
		ListActive(ctx context.Context, now time.Time) ([]*model.Campaign, error)
		// ListExpired returns Active campaigns whose expiration has passed.
		ListExpired(ctx context.Context, now time.Time) ([]*model.Campaign, error)
		ListByCreator(ctx context.Context, userID uuid.UUID) ([]*model.Campaign, error)
		ListByStatus(ctx context.Context, status model.CampaignStatus) ([]*model.Campaign, error)
		SetStatus(ctx context.Context, id uuid.UUID, status model.CampaignStatus, adminID *uuid.UUID) error
	}

	RecipientRepository interface {
		Get(ctx context.Context, id uuid.UUID) (*model.Recipient, error)
		ListByCampaign(ctx context.Context, campaignID uuid.UUID) ([]*model.Recipient, error)
	}

	ScheduleRepository interface {
		Create(ctx context.Context, schedule *model.Schedule) error
		Get(ctx context.Context, id uuid.UUID) (*model.Schedule, error)
		ListByUser(ctx context.Context, userID uuid.UUID) ([]*model.Schedule, error)
		ListDue(ctx context.Context, window model.Window, now time.Time) ([]*model.Schedule, error)
		// HasActive reports whether the user already holds an active schedule
		// for the campaign and window.
		HasActive(ctx context.Context, userID, campaignID uuid.UUID, window model.Window) (bool, error)
		// TryConsume atomically decrements remaining_sends_this_window and
		// increments daily_sends_count when quota remains. Returns false when
		// the window slot is exhausted or the daily cap is reached.
		TryConsume(ctx context.Context, id uuid.UUID, maxDailySends int) (bool, error)
		ResetDailyCounters(ctx context.Context) (int64, error)
		AdvanceNextRun(ctx context.Context, id uuid.UUID, nextRunAt time.Time, replenishWindow bool) error
		SetMood(ctx context.Context, id uuid.UUID, moodID uuid.UUID) error
		Deactivate(ctx context.Context, id uuid.UUID) error
		DeactivateByCampaign(ctx context.Context, campaignID uuid.UUID) error
		CountActiveByCampaign(ctx context.Context, campaignID uuid.UUID) (int, error)
	}

	EmailLogRepository interface {
		Create(ctx context.Context, log *model.EmailLog) error
		Get(ctx context.Context, id uuid.UUID) (*model.EmailLog, error)
		MarkFailed(ctx context.Context, id uuid.UUID, errorMessage string) error
		MarkOpened(ctx context.Context, id uuid.UUID, openedAt time.Time) error
		// HasRecentSend reports whether a Sent log exists for the pair since the cutoff.
		HasRecentSend(ctx context.Context, campaignID, recipientID uuid.UUID, since time.Time) (bool, error)
		StatsByCampaign(ctx context.Context, campaignID uuid.UUID) (*model.CampaignStats, error)
	}

	MoodRepository interface {
		Create(ctx context.Context, mood *model.TemplateMood) error
		Get(ctx context.Context, id uuid.UUID) (*model.TemplateMood, error)
		GetByName(ctx context.Context, name string) (*model.TemplateMood, error)
		List(ctx context.Context) ([]*model.TemplateMood, error)
	}
)
