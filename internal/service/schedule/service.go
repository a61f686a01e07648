package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mondo989/ReallyGoodJob/internal/model"
	"github.com/mondo989/ReallyGoodJob/internal/repository"
	"github.com/mondo989/ReallyGoodJob/internal/service/dispatch"
	"github.com/mondo989/ReallyGoodJob/internal/service/featureflag"
	"github.com/mondo989/ReallyGoodJob/internal/service/quota"
	"github.com/mondo989/ReallyGoodJob/internal/service/template"
	apperrors "github.com/mondo989/ReallyGoodJob/pkg/errors"
	"github.com/mondo989/ReallyGoodJob/pkg/logger"
	"github.com/mondo989/ReallyGoodJob/pkg/messaging"
	"github.com/mondo989/ReallyGoodJob/pkg/metrics"
)

// Dispatcher delivers one rendered message on behalf of a user.
type Dispatcher interface {
	Send(ctx context.Context, userID uuid.UUID, msg dispatch.Message) error
}

// CreateScheduleInput is one scheduling request. Windows may list several
// windows; each becomes its own schedule row firing independently.
type CreateScheduleInput struct {
	CampaignID    uuid.UUID       `json:"campaign_id"`
	Windows       []model.Window  `json:"windows"`
	Mood          string          `json:"mood"`
	Frequency     model.Frequency `json:"frequency"`
	ScheduledDate string          `json:"scheduled_date"` // YYYY-MM-DD, UTC
	SenderNote    *string         `json:"sender_note,omitempty"`
}

// BatchResult summarizes one schedule firing.
type BatchResult struct {
	Sent    int
	Failed  int
	Skipped int
}

// Service owns schedule lifecycle and the batch fan-out that turns one
// admitted schedule into per-recipient dispatch attempts.
type Service struct {
	schedules  repository.ScheduleRepository
	campaigns  repository.CampaignRepository
	recipients repository.RecipientRepository
	users      repository.UserRepository
	emailLogs  repository.EmailLogRepository
	templates  *template.Service
	quota      *quota.Service
	flags      *featureflag.Service
	dispatcher Dispatcher
	broker     messaging.Broker
	logger     *logger.Logger
	metrics    *metrics.Metrics
	now        func() time.Time
}

func NewService(
	schedules repository.ScheduleRepository,
	campaigns repository.CampaignRepository,
	recipients repository.RecipientRepository,
	users repository.UserRepository,
	emailLogs repository.EmailLogRepository,
	templates *template.Service,
	quotaSvc *quota.Service,
	flags *featureflag.Service,
	dispatcher Dispatcher,
	broker messaging.Broker,
	log *logger.Logger,
	m *metrics.Metrics,
) *Service {
	return &Service{
		schedules:  schedules,
		campaigns:  campaigns,
		recipients: recipients,
		users:      users,
		emailLogs:  emailLogs,
		templates:  templates,
		quota:      quotaSvc,
		flags:      flags,
		dispatcher: dispatcher,
		broker:     broker,
		logger:     log,
		metrics:    m,
		now:        time.Now,
	}
}

// WithClock overrides the service clock, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Create validates a scheduling request and persists one schedule row per
// requested window. Validation and entitlement failures happen before any
// row is written.
func (s *Service) Create(ctx context.Context, userID uuid.UUID, input CreateScheduleInput) ([]*model.Schedule, error) {
	now := s.now().UTC()

	if len(input.Windows) == 0 {
		return nil, apperrors.NewValidation("at least one send window is required")
	}
	seen := make(map[model.Window]bool, len(input.Windows))
	for _, w := range input.Windows {
		if !w.Valid() {
			return nil, apperrors.NewValidation(fmt.Sprintf("unknown window %q", w))
		}
		if seen[w] {
			return nil, apperrors.NewValidation(fmt.Sprintf("window %q listed twice", w))
		}
		seen[w] = true
	}

	frequency := input.Frequency
	if frequency == "" {
		frequency = model.FrequencyOnce
	}
	if !frequency.Valid() {
		return nil, apperrors.NewValidation(fmt.Sprintf("unknown frequency %q", frequency))
	}

	day, err := time.ParseInLocation("2006-01-02", input.ScheduledDate, time.UTC)
	if err != nil {
		return nil, apperrors.NewValidation("scheduled_date must be YYYY-MM-DD")
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if day.Before(today) {
		return nil, apperrors.NewValidation("scheduled_date must not be in the past")
	}

	user, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	if frequency == model.FrequencyMultiple && !s.flags.CanUseFeature(user, featureflag.FeatureMultipleSends) {
		return nil, apperrors.NewEntitlement("multiple daily sends")
	}
	if len(input.Windows) > 1 && !s.flags.CanUseFeature(user, featureflag.FeatureMultipleSends) {
		return nil, apperrors.NewEntitlement("multiple send windows")
	}
	if input.SenderNote != nil && *input.SenderNote != "" &&
		!s.flags.CanUseFeature(user, featureflag.FeaturePersonalizedMessages) {
		return nil, apperrors.NewEntitlement("personalized messages")
	}

	mood, err := s.templates.ResolveByName(ctx, input.Mood)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, apperrors.NewValidation(fmt.Sprintf("unknown mood %q", input.Mood))
		}
		return nil, err
	}

	campaign, err := s.campaigns.Get(ctx, input.CampaignID)
	if err != nil {
		return nil, err
	}
	if campaign.Status != model.CampaignStatusActive {
		return nil, apperrors.NewValidation("campaign is not active")
	}
	if campaign.IsTerminallyExpired(now) {
		return nil, apperrors.NewValidation("campaign has expired")
	}

	// One active schedule per (user, campaign, window); stacking rows would
	// multiply the per-campaign daily quota.
	for _, w := range input.Windows {
		exists, err := s.schedules.HasActive(ctx, userID, input.CampaignID, w)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, apperrors.NewValidation(fmt.Sprintf("an active schedule already exists for window %q", w))
		}
	}

	created := make([]*model.Schedule, 0, len(input.Windows))
	for _, w := range input.Windows {
		nextRun := w.StartOn(day)
		// A window already past on the scheduled day rolls to the next day
		// rather than firing late.
		if !nextRun.After(now) {
			nextRun = nextRun.Add(24 * time.Hour)
		}

		sched := &model.Schedule{
			CampaignID:               input.CampaignID,
			UserID:                   userID,
			CurrentMoodID:            mood.ID,
			Window:                   w,
			NextRunAt:                nextRun,
			RemainingSendsThisWindow: 1,
			Frequency:                frequency,
			SenderNote:               input.SenderNote,
			IsActive:                 true,
		}
		if err := s.schedules.Create(ctx, sched); err != nil {
			return created, err
		}
		created = append(created, sched)
	}

	s.logger.Info("schedules created", map[string]interface{}{
		"campaign_id": input.CampaignID.String(),
		"user_id":     userID.String(),
		"count":       len(created),
	})
	return created, nil
}

// Get returns the schedule, restricted to its owner.
func (s *Service) Get(ctx context.Context, userID, scheduleID uuid.UUID) (*model.Schedule, error) {
	sched, err := s.schedules.Get(ctx, scheduleID)
	if err != nil {
		return nil, err
	}
	if sched.UserID != userID {
		return nil, apperrors.NewNotFound("schedule", nil)
	}
	return sched, nil
}

// ListByUser returns the user's schedules.
func (s *Service) ListByUser(ctx context.Context, userID uuid.UUID) ([]*model.Schedule, error) {
	return s.schedules.ListByUser(ctx, userID)
}

// Deactivate cancels the schedule. An in-flight batch already handed to the
// fan-out is allowed to finish; deactivation only prevents future selection.
func (s *Service) Deactivate(ctx context.Context, userID, scheduleID uuid.UUID) error {
	sched, err := s.schedules.Get(ctx, scheduleID)
	if err != nil {
		return err
	}
	if sched.UserID != userID {
		return apperrors.NewNotFound("schedule", nil)
	}
	return s.schedules.Deactivate(ctx, scheduleID)
}

// RunSchedule fires one due schedule: quota admission, campaign re-check,
// recipient fan-out, then advance or deactivate. Quota denial is silent and
// leaves the schedule waiting for its next eligible window.
func (s *Service) RunSchedule(ctx context.Context, sched *model.Schedule) (BatchResult, error) {
	var result BatchResult
	now := s.now().UTC()

	user, err := s.users.Get(ctx, sched.UserID)
	if err != nil {
		return result, err
	}

	campaign, err := s.campaigns.Get(ctx, sched.CampaignID)
	if err != nil {
		return result, err
	}
	if campaign.IsTerminallyExpired(now) {
		// Nothing will ever fire for this campaign again.
		if err := s.schedules.DeactivateByCampaign(ctx, sched.CampaignID); err != nil {
			return result, err
		}
		s.logger.Info("campaign expired, schedules deactivated", map[string]interface{}{
			"campaign_id": sched.CampaignID.String(),
		})
		return result, nil
	}
	if !campaign.IsSendable(now) {
		// Campaign may be re-approved; leave the schedule active and move on.
		s.logger.Warn("campaign not sendable, skipping batch", map[string]interface{}{
			"campaign_id": sched.CampaignID.String(),
			"status":      string(campaign.Status),
		})
		return result, s.advance(ctx, sched, now)
	}

	admitted, err := s.quota.TryConsume(ctx, sched, user)
	if err != nil {
		return result, err
	}
	if !admitted {
		return result, nil
	}

	result, err = s.fanOut(ctx, fanOutParams{
		campaign:   campaign,
		user:       user,
		moodID:     sched.CurrentMoodID,
		senderNote: sched.SenderNote,
		dedupe:     false,
	})
	if err != nil {
		return result, err
	}

	s.publishFired(ctx, sched, result)

	if s.flags.IsPremiumUser(user) {
		if err := s.rotateMood(ctx, sched); err != nil {
			s.logger.Error(err, "mood rotation failed", map[string]interface{}{
				"schedule_id": sched.ID.String(),
			})
		}
	}

	return result, s.advance(ctx, sched, now)
}

// SendNow fires a campaign immediately for its owner, outside any schedule.
// Unlike recurring fires, manual sends skip recipients already sent within
// the campaign's duplicate window.
func (s *Service) SendNow(ctx context.Context, userID, campaignID uuid.UUID, moodName string, senderNote *string) (BatchResult, error) {
	var result BatchResult
	now := s.now().UTC()

	user, err := s.users.Get(ctx, userID)
	if err != nil {
		return result, err
	}

	if senderNote != nil && *senderNote != "" &&
		!s.flags.CanUseFeature(user, featureflag.FeaturePersonalizedMessages) {
		return result, apperrors.NewEntitlement("personalized messages")
	}

	mood, err := s.templates.ResolveByName(ctx, moodName)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return result, apperrors.NewValidation(fmt.Sprintf("unknown mood %q", moodName))
		}
		return result, err
	}

	campaign, err := s.campaigns.Get(ctx, campaignID)
	if err != nil {
		return result, err
	}
	if !campaign.IsSendable(now) {
		return result, apperrors.NewValidation("campaign is not active or has expired")
	}

	return s.fanOut(ctx, fanOutParams{
		campaign:   campaign,
		user:       user,
		moodID:     mood.ID,
		senderNote: senderNote,
		dedupe:     true,
	})
}

type fanOutParams struct {
	campaign   *model.Campaign
	user       *model.User
	moodID     uuid.UUID
	senderNote *string
	dedupe     bool
}

// fanOut delivers one batch to every recipient of the campaign. Recipient
// failures are isolated: each attempt owns its own log row and its outcome
// never stops the rest of the batch.
func (s *Service) fanOut(ctx context.Context, p fanOutParams) (BatchResult, error) {
	var result BatchResult
	start := s.now()

	recipients, err := s.recipients.ListByCampaign(ctx, p.campaign.ID)
	if err != nil {
		return result, err
	}
	if len(recipients) == 0 {
		return result, nil
	}

	mood, err := s.templates.Resolve(ctx, p.moodID)
	if err != nil {
		return result, err
	}

	// Entitlement is re-checked at send time; a downgrade between scheduling
	// and firing drops the note.
	senderNote := ""
	if p.senderNote != nil && s.flags.CanUseFeature(p.user, featureflag.FeaturePersonalizedMessages) {
		senderNote = *p.senderNote
	}

	dupCutoff := s.now().UTC().AddDate(0, 0, -p.campaign.DuplicateWindowDays)

	for _, recipient := range recipients {
		if p.dedupe {
			dup, err := s.emailLogs.HasRecentSend(ctx, p.campaign.ID, recipient.ID, dupCutoff)
			if err != nil {
				s.logger.Error(err, "duplicate check failed", map[string]interface{}{
					"recipient_id": recipient.ID.String(),
				})
				// A failed attempt still owns a log row, even when it dies
				// before dispatch.
				s.logFailedAttempt(ctx, p, mood, recipient, senderNote,
					fmt.Errorf("duplicate check failed: %w", err))
				result.Failed++
				continue
			}
			if dup {
				result.Skipped++
				s.metrics.EmailsSkipped.Inc()
				continue
			}
		}

		if err := s.sendOne(ctx, p, mood, recipient, senderNote); err != nil {
			result.Failed++
		} else {
			result.Sent++
		}
	}

	s.metrics.BatchLatency.Observe(s.now().Sub(start).Seconds())
	return result, nil
}

// sendOne renders, logs, then dispatches a single recipient's message. The
// log row is written in Sent state before the provider call and flipped to
// Failed afterward if the call fails, so a crash mid-send still leaves an
// attempted record.
func (s *Service) sendOne(ctx context.Context, p fanOutParams, mood *model.TemplateMood, recipient *model.Recipient, senderNote string) error {
	rendered := template.Render(mood, template.RenderParams{
		SenderName:    p.user.Name,
		RecipientName: recipient.NameForGreeting(),
		CampaignName:  p.campaign.Name,
		SenderNote:    senderNote,
	})

	entry := &model.EmailLog{
		CampaignID:  p.campaign.ID,
		RecipientID: recipient.ID,
		UserID:      p.user.ID,
		MoodID:      mood.ID,
		SubjectSent: rendered.Subject,
		BodySent:    rendered.Body,
		Status:      model.EmailStatusSent,
		SentAt:      s.now().UTC(),
	}
	if err := s.emailLogs.Create(ctx, entry); err != nil {
		return err
	}

	err := s.dispatcher.Send(ctx, p.user.ID, dispatch.Message{
		EmailLogID: entry.ID,
		FromName:   p.user.Name,
		FromEmail:  p.user.Email,
		ToName:     recipient.NameForGreeting(),
		ToEmail:    recipient.Email,
		Subject:    rendered.Subject,
		Body:       rendered.Body,
	})
	if err != nil {
		s.metrics.EmailsFailed.Inc()
		if markErr := s.emailLogs.MarkFailed(ctx, entry.ID, err.Error()); markErr != nil {
			s.logger.Error(markErr, "failed to mark email log failed", map[string]interface{}{
				"email_log_id": entry.ID.String(),
			})
		}
		s.publishEmailEvent(ctx, messaging.ChannelEmailFailed, entry, err)
		s.logger.Error(err, "dispatch failed", map[string]interface{}{
			"email_log_id": entry.ID.String(),
			"recipient_id": recipient.ID.String(),
		})
		return err
	}

	s.metrics.EmailsSent.Inc()
	s.publishEmailEvent(ctx, messaging.ChannelEmailSent, entry, nil)
	return nil
}

// logFailedAttempt records a recipient attempt that failed before any
// dispatch was made, keeping one log row per recipient per batch.
func (s *Service) logFailedAttempt(ctx context.Context, p fanOutParams, mood *model.TemplateMood, recipient *model.Recipient, senderNote string, cause error) {
	rendered := template.Render(mood, template.RenderParams{
		SenderName:    p.user.Name,
		RecipientName: recipient.NameForGreeting(),
		CampaignName:  p.campaign.Name,
		SenderNote:    senderNote,
	})

	msg := cause.Error()
	entry := &model.EmailLog{
		CampaignID:   p.campaign.ID,
		RecipientID:  recipient.ID,
		UserID:       p.user.ID,
		MoodID:       mood.ID,
		SubjectSent:  rendered.Subject,
		BodySent:     rendered.Body,
		Status:       model.EmailStatusFailed,
		ErrorMessage: &msg,
		SentAt:       s.now().UTC(),
	}
	if err := s.emailLogs.Create(ctx, entry); err != nil {
		s.logger.Error(err, "failed to record failed attempt", map[string]interface{}{
			"recipient_id": recipient.ID.String(),
		})
		return
	}
	s.metrics.EmailsFailed.Inc()
	s.publishEmailEvent(ctx, messaging.ChannelEmailFailed, entry, cause)
}

// advance moves the schedule past this firing. One-shot schedules deactivate;
// recurring ones roll to the same window tomorrow with a fresh window slot.
func (s *Service) advance(ctx context.Context, sched *model.Schedule, now time.Time) error {
	if sched.Frequency == model.FrequencyOnce {
		return s.schedules.Deactivate(ctx, sched.ID)
	}
	next := sched.Window.StartOn(now.Add(24 * time.Hour))
	return s.schedules.AdvanceNextRun(ctx, sched.ID, next, true)
}

// rotateMood steps the schedule to the next mood so recurring premium sends
// vary their tone.
func (s *Service) rotateMood(ctx context.Context, sched *model.Schedule) error {
	moods, err := s.templates.List(ctx)
	if err != nil {
		return err
	}
	if len(moods) < 2 {
		return nil
	}
	for i, m := range moods {
		if m.ID == sched.CurrentMoodID {
			next := moods[(i+1)%len(moods)]
			return s.schedules.SetMood(ctx, sched.ID, next.ID)
		}
	}
	return nil
}

func (s *Service) publishFired(ctx context.Context, sched *model.Schedule, result BatchResult) {
	if s.broker == nil {
		return
	}
	event := messaging.ScheduleFiredEvent{
		ScheduleID: sched.ID.String(),
		CampaignID: sched.CampaignID.String(),
		Window:     string(sched.Window),
		Sent:       result.Sent,
		Failed:     result.Failed,
		Skipped:    result.Skipped,
	}
	if err := s.broker.Publish(ctx, messaging.ChannelScheduleFired, event); err != nil {
		s.metrics.BrokerPublishes.WithLabelValues(messaging.ChannelScheduleFired, "failure").Inc()
		s.logger.Error(err, "failed to publish schedule event")
		return
	}
	s.metrics.BrokerPublishes.WithLabelValues(messaging.ChannelScheduleFired, "success").Inc()
}

func (s *Service) publishEmailEvent(ctx context.Context, channel string, entry *model.EmailLog, sendErr error) {
	if s.broker == nil {
		return
	}
	event := messaging.EmailEvent{
		EmailLogID:  entry.ID.String(),
		CampaignID:  entry.CampaignID.String(),
		RecipientID: entry.RecipientID.String(),
		UserID:      entry.UserID.String(),
		Status:      string(model.EmailStatusSent),
	}
	if sendErr != nil {
		event.Status = string(model.EmailStatusFailed)
		event.Error = sendErr.Error()
	}
	if err := s.broker.Publish(ctx, channel, event); err != nil {
		s.metrics.BrokerPublishes.WithLabelValues(channel, "failure").Inc()
		return
	}
	s.metrics.BrokerPublishes.WithLabelValues(channel, "success").Inc()
}
