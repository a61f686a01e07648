package schedule

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mondo989/ReallyGoodJob/internal/config"
	"github.com/mondo989/ReallyGoodJob/internal/model"
	"github.com/mondo989/ReallyGoodJob/internal/service/featureflag"
	quotaService "github.com/mondo989/ReallyGoodJob/internal/service/quota"
	templateService "github.com/mondo989/ReallyGoodJob/internal/service/template"
	apperrors "github.com/mondo989/ReallyGoodJob/pkg/errors"
	"github.com/mondo989/ReallyGoodJob/pkg/logger"
	"github.com/mondo989/ReallyGoodJob/pkg/metrics"
)

var testNow = time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)

type env struct {
	svc        *Service
	schedules  *fakeScheduleRepo
	campaigns  *fakeCampaignRepo
	recipients *fakeRecipientRepo
	users      *fakeUserRepo
	emailLogs  *fakeEmailLogRepo
	dispatcher *fakeDispatcher
	moods      *fakeMoodRepo

	user     *model.User
	campaign *model.Campaign
	mood     *model.TemplateMood
}

func newEnv(t *testing.T, tier model.Tier, recipientEmails ...string) *env {
	t.Helper()

	user := &model.User{
		Base:  model.Base{ID: uuid.New()},
		Email: "sender@example.com",
		Name:  "Sender",
		Tier:  tier,
	}
	campaign := &model.Campaign{
		Base:                model.Base{ID: uuid.New()},
		Name:                "Thanks Team",
		Status:              model.CampaignStatusActive,
		CreatedByUserID:     user.ID,
		ExpirationAt:        testNow.Add(30 * 24 * time.Hour),
		DuplicateWindowDays: model.DefaultDuplicateWindowDays,
	}
	mood := &model.TemplateMood{
		Base:        model.Base{ID: uuid.New()},
		Name:        model.MoodGrateful,
		SubjectLine: "Thanks from [Sender Name]",
		BodyText:    "Dear [Recipient Name], thanks for [Campaign Name]. [Sender Note]",
	}

	recipients := &fakeRecipientRepo{}
	for _, email := range recipientEmails {
		recipients.recipients = append(recipients.recipients, &model.Recipient{
			Base:        model.Base{ID: uuid.New()},
			CampaignID:  campaign.ID,
			Email:       email,
			DisplayName: email,
		})
	}

	e := &env{
		schedules:  newFakeScheduleRepo(),
		campaigns:  newFakeCampaignRepo(campaign),
		recipients: recipients,
		users:      newFakeUserRepo(user),
		emailLogs:  newFakeEmailLogRepo(),
		dispatcher: newFakeDispatcher(),
		moods:      &fakeMoodRepo{moods: []*model.TemplateMood{mood}},
		user:       user,
		campaign:   campaign,
		mood:       mood,
	}

	log := logger.NewLogger(nil)
	m := metrics.NewNopMetrics()
	flags := featureflag.NewService(config.FeatureConfig{
		PremiumMultipleSends:        true,
		PremiumPersonalizedMessages: true,
	}, config.TierConfig{FreeSendsPerDay: 1, PremiumSendsPerDay: 3})
	templates := templateService.NewService(e.moods, log)
	quota := quotaService.NewService(e.schedules, flags, log, m)

	e.svc = NewService(
		e.schedules, e.campaigns, e.recipients, e.users, e.emailLogs,
		templates, quota, flags, e.dispatcher, nil, log, m,
	).WithClock(func() time.Time { return testNow })

	return e
}

func (e *env) activeSchedule(window model.Window, frequency model.Frequency) *model.Schedule {
	s := &model.Schedule{
		Base:                     model.Base{ID: uuid.New()},
		CampaignID:               e.campaign.ID,
		UserID:                   e.user.ID,
		CurrentMoodID:            e.mood.ID,
		Window:                   window,
		NextRunAt:                window.StartOn(testNow),
		RemainingSendsThisWindow: 1,
		Frequency:                frequency,
		IsActive:                 true,
	}
	e.schedules.schedules[s.ID] = s
	return s
}

func TestCreateRejectsPastDate(t *testing.T) {
	e := newEnv(t, model.TierFree, "a@example.com")

	_, err := e.svc.Create(context.Background(), e.user.ID, CreateScheduleInput{
		CampaignID:    e.campaign.ID,
		Windows:       []model.Window{model.WindowMorning},
		Mood:          model.MoodGrateful,
		ScheduledDate: testNow.AddDate(0, 0, -1).Format("2006-01-02"),
	})

	assert.True(t, apperrors.IsValidation(err))
	assert.Empty(t, e.schedules.schedules)
}

func TestCreateRejectsUnknownWindow(t *testing.T) {
	e := newEnv(t, model.TierFree, "a@example.com")

	_, err := e.svc.Create(context.Background(), e.user.ID, CreateScheduleInput{
		CampaignID:    e.campaign.ID,
		Windows:       []model.Window{"Midnight"},
		Mood:          model.MoodGrateful,
		ScheduledDate: testNow.Format("2006-01-02"),
	})

	assert.True(t, apperrors.IsValidation(err))
}

func TestCreateRejectsUnknownMood(t *testing.T) {
	e := newEnv(t, model.TierFree, "a@example.com")

	_, err := e.svc.Create(context.Background(), e.user.ID, CreateScheduleInput{
		CampaignID:    e.campaign.ID,
		Windows:       []model.Window{model.WindowEvening},
		Mood:          "Melancholy",
		ScheduledDate: testNow.Format("2006-01-02"),
	})

	assert.True(t, apperrors.IsValidation(err))
}

func TestCreateFreeTierMultipleFrequencyRejected(t *testing.T) {
	e := newEnv(t, model.TierFree, "a@example.com")

	_, err := e.svc.Create(context.Background(), e.user.ID, CreateScheduleInput{
		CampaignID:    e.campaign.ID,
		Windows:       []model.Window{model.WindowEvening},
		Mood:          model.MoodGrateful,
		Frequency:     model.FrequencyMultiple,
		ScheduledDate: testNow.Format("2006-01-02"),
	})

	assert.True(t, apperrors.IsEntitlement(err))
	// Nothing persisted before the entitlement check.
	assert.Empty(t, e.schedules.schedules)
}

func TestCreateFreeTierSenderNoteRejected(t *testing.T) {
	e := newEnv(t, model.TierFree, "a@example.com")
	note := "personal note"

	_, err := e.svc.Create(context.Background(), e.user.ID, CreateScheduleInput{
		CampaignID:    e.campaign.ID,
		Windows:       []model.Window{model.WindowEvening},
		Mood:          model.MoodGrateful,
		ScheduledDate: testNow.Format("2006-01-02"),
		SenderNote:    &note,
	})

	assert.True(t, apperrors.IsEntitlement(err))
}

func TestCreatePremiumMultipleWindows(t *testing.T) {
	e := newEnv(t, model.TierPremium, "a@example.com")

	created, err := e.svc.Create(context.Background(), e.user.ID, CreateScheduleInput{
		CampaignID:    e.campaign.ID,
		Windows:       []model.Window{model.WindowAfternoon, model.WindowEvening},
		Mood:          model.MoodGrateful,
		Frequency:     model.FrequencyMultiple,
		ScheduledDate: testNow.Format("2006-01-02"),
	})

	require.NoError(t, err)
	require.Len(t, created, 2)
	for _, s := range created {
		assert.True(t, s.IsActive)
		assert.Equal(t, 1, s.RemainingSendsThisWindow)
		assert.Equal(t, s.Window.StartOn(testNow), s.NextRunAt)
	}
}

func TestCreateRollsPastWindowToNextDay(t *testing.T) {
	// testNow is 10:00 UTC; the Morning window opened at 08:00.
	e := newEnv(t, model.TierFree, "a@example.com")

	created, err := e.svc.Create(context.Background(), e.user.ID, CreateScheduleInput{
		CampaignID:    e.campaign.ID,
		Windows:       []model.Window{model.WindowMorning},
		Mood:          model.MoodGrateful,
		ScheduledDate: testNow.Format("2006-01-02"),
	})

	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, model.WindowMorning.StartOn(testNow).Add(24*time.Hour), created[0].NextRunAt)
}

func TestCreateRejectsDuplicateWindowSchedule(t *testing.T) {
	e := newEnv(t, model.TierFree, "a@example.com")

	input := CreateScheduleInput{
		CampaignID:    e.campaign.ID,
		Windows:       []model.Window{model.WindowEvening},
		Mood:          model.MoodGrateful,
		ScheduledDate: testNow.Format("2006-01-02"),
	}

	_, err := e.svc.Create(context.Background(), e.user.ID, input)
	require.NoError(t, err)

	// A second row for the same campaign and window would double the
	// per-campaign daily quota.
	_, err = e.svc.Create(context.Background(), e.user.ID, input)
	assert.True(t, apperrors.IsValidation(err))
	assert.Len(t, e.schedules.schedules, 1)
}

func TestCreateAllowsSameWindowAfterDeactivation(t *testing.T) {
	e := newEnv(t, model.TierFree, "a@example.com")

	input := CreateScheduleInput{
		CampaignID:    e.campaign.ID,
		Windows:       []model.Window{model.WindowEvening},
		Mood:          model.MoodGrateful,
		ScheduledDate: testNow.Format("2006-01-02"),
	}

	created, err := e.svc.Create(context.Background(), e.user.ID, input)
	require.NoError(t, err)
	require.NoError(t, e.svc.Deactivate(context.Background(), e.user.ID, created[0].ID))

	_, err = e.svc.Create(context.Background(), e.user.ID, input)
	assert.NoError(t, err)
}

func TestRunScheduleFailureIsolation(t *testing.T) {
	e := newEnv(t, model.TierFree, "a@example.com", "b@example.com", "c@example.com")
	e.dispatcher.failFor["b@example.com"] = true
	sched := e.activeSchedule(model.WindowMorning, model.FrequencyOnce)

	result, err := e.svc.RunSchedule(context.Background(), sched)

	require.NoError(t, err)
	assert.Equal(t, 2, result.Sent)
	assert.Equal(t, 1, result.Failed)
	// Every recipient got its own log row.
	assert.Len(t, e.emailLogs.logs, 3)

	var failed *model.EmailLog
	for _, r := range e.recipients.recipients {
		log := e.emailLogs.byRecipient(r.ID)
		require.NotNil(t, log, "missing log for %s", r.Email)
		if r.Email == "b@example.com" {
			failed = log
		} else {
			assert.Equal(t, model.EmailStatusSent, log.Status)
		}
	}
	require.NotNil(t, failed)
	assert.Equal(t, model.EmailStatusFailed, failed.Status)
	require.NotNil(t, failed.ErrorMessage)
	assert.Contains(t, *failed.ErrorMessage, "b@example.com")

	// Quota consumed once for the whole batch, before dispatch.
	assert.Equal(t, 0, sched.RemainingSendsThisWindow)
	assert.Equal(t, 1, sched.DailySendsCount)
	// One-shot schedules deactivate after firing.
	assert.False(t, sched.IsActive)
}

func TestRunScheduleQuotaDenied(t *testing.T) {
	e := newEnv(t, model.TierFree, "a@example.com")
	sched := e.activeSchedule(model.WindowMorning, model.FrequencyOnce)
	sched.RemainingSendsThisWindow = 0

	result, err := e.svc.RunSchedule(context.Background(), sched)

	require.NoError(t, err)
	assert.Zero(t, result.Sent)
	assert.Empty(t, e.dispatcher.sent)
	assert.Empty(t, e.emailLogs.logs)
	// Denied schedules wait for the next window; not deactivated.
	assert.True(t, sched.IsActive)
}

func TestRunScheduleDailyCapDenied(t *testing.T) {
	e := newEnv(t, model.TierFree, "a@example.com")
	sched := e.activeSchedule(model.WindowMorning, model.FrequencyOnce)
	sched.DailySendsCount = 1

	result, err := e.svc.RunSchedule(context.Background(), sched)

	require.NoError(t, err)
	assert.Zero(t, result.Sent)
	assert.Empty(t, e.dispatcher.sent)
}

func TestRunScheduleExpiredCampaignDeactivates(t *testing.T) {
	e := newEnv(t, model.TierFree, "a@example.com")
	e.campaign.ExpirationAt = testNow.Add(-time.Hour)
	sched := e.activeSchedule(model.WindowMorning, model.FrequencyOnce)

	result, err := e.svc.RunSchedule(context.Background(), sched)

	require.NoError(t, err)
	assert.Zero(t, result.Sent)
	assert.Empty(t, e.dispatcher.sent)
	assert.False(t, sched.IsActive)
	// Quota untouched; the batch never started.
	assert.Equal(t, 1, sched.RemainingSendsThisWindow)
}

func TestRunSchedulePendingCampaignSkipsButStaysActive(t *testing.T) {
	e := newEnv(t, model.TierFree, "a@example.com")
	e.campaign.Status = model.CampaignStatusPending
	sched := e.activeSchedule(model.WindowMorning, model.FrequencyMultiple)

	result, err := e.svc.RunSchedule(context.Background(), sched)

	require.NoError(t, err)
	assert.Zero(t, result.Sent)
	// Campaign may be re-approved later; the schedule just rolls forward.
	assert.True(t, sched.IsActive)
	assert.Equal(t, model.WindowMorning.StartOn(testNow.Add(24*time.Hour)), sched.NextRunAt)
}

func TestRunScheduleRecurringAdvancesAndReplenishes(t *testing.T) {
	e := newEnv(t, model.TierPremium, "a@example.com")
	secondMood := &model.TemplateMood{
		Base:        model.Base{ID: uuid.New()},
		Name:        model.MoodWarm,
		SubjectLine: "Warm thanks",
		BodyText:    "Thanks [Recipient Name]",
	}
	e.moods.moods = append(e.moods.moods, secondMood)
	sched := e.activeSchedule(model.WindowEvening, model.FrequencyMultiple)

	result, err := e.svc.RunSchedule(context.Background(), sched)

	require.NoError(t, err)
	assert.Equal(t, 1, result.Sent)
	assert.True(t, sched.IsActive)
	assert.Equal(t, model.WindowEvening.StartOn(testNow.Add(24*time.Hour)), sched.NextRunAt)
	assert.Equal(t, 1, sched.RemainingSendsThisWindow)
	assert.Equal(t, 1, sched.DailySendsCount)
	// Premium recurring sends rotate the mood.
	assert.Equal(t, secondMood.ID, sched.CurrentMoodID)
}

func TestRunScheduleZeroRecipientsNoop(t *testing.T) {
	e := newEnv(t, model.TierFree)
	sched := e.activeSchedule(model.WindowMorning, model.FrequencyOnce)

	result, err := e.svc.RunSchedule(context.Background(), sched)

	require.NoError(t, err)
	assert.Zero(t, result.Sent)
	assert.Zero(t, result.Failed)
	assert.Empty(t, e.emailLogs.logs)
}

func TestSendNowSkipsRecentDuplicates(t *testing.T) {
	e := newEnv(t, model.TierFree, "a@example.com", "b@example.com")
	dup := e.recipients.recipients[0]
	e.emailLogs.recentSent[pairKey(e.campaign.ID, dup.ID)] = true

	result, err := e.svc.SendNow(context.Background(), e.user.ID, e.campaign.ID, model.MoodGrateful, nil)

	require.NoError(t, err)
	assert.Equal(t, 1, result.Sent)
	assert.Equal(t, 1, result.Skipped)
	require.Len(t, e.dispatcher.sent, 1)
	assert.Equal(t, "b@example.com", e.dispatcher.sent[0].ToEmail)
}

func TestSendNowDuplicateCheckErrorWritesFailedLog(t *testing.T) {
	e := newEnv(t, model.TierFree, "a@example.com", "b@example.com")
	broken := e.recipients.recipients[0]
	e.emailLogs.recentErr[pairKey(e.campaign.ID, broken.ID)] = errors.New("query timeout")

	result, err := e.svc.SendNow(context.Background(), e.user.ID, e.campaign.ID, model.MoodGrateful, nil)

	require.NoError(t, err)
	assert.Equal(t, 1, result.Sent)
	assert.Equal(t, 1, result.Failed)
	// The failed attempt still gets its own log row.
	assert.Len(t, e.emailLogs.logs, 2)

	log := e.emailLogs.byRecipient(broken.ID)
	require.NotNil(t, log)
	assert.Equal(t, model.EmailStatusFailed, log.Status)
	require.NotNil(t, log.ErrorMessage)
	assert.Contains(t, *log.ErrorMessage, "duplicate check failed")
}

func TestScheduledRunDoesNotDeduplicate(t *testing.T) {
	e := newEnv(t, model.TierFree, "a@example.com")
	e.emailLogs.recentSent[pairKey(e.campaign.ID, e.recipients.recipients[0].ID)] = true
	sched := e.activeSchedule(model.WindowMorning, model.FrequencyOnce)

	result, err := e.svc.RunSchedule(context.Background(), sched)

	require.NoError(t, err)
	// Recurring appreciation is a feature; the quota tracker is the throttle.
	assert.Equal(t, 1, result.Sent)
	assert.Zero(t, result.Skipped)
}

func TestSendNowFreeTierSenderNoteRejected(t *testing.T) {
	e := newEnv(t, model.TierFree, "a@example.com")
	note := "vip note"

	_, err := e.svc.SendNow(context.Background(), e.user.ID, e.campaign.ID, model.MoodGrateful, &note)

	assert.True(t, apperrors.IsEntitlement(err))
	assert.Empty(t, e.dispatcher.sent)
}

func TestSendNowInactiveCampaignRejected(t *testing.T) {
	e := newEnv(t, model.TierFree, "a@example.com")
	e.campaign.Status = model.CampaignStatusPending

	_, err := e.svc.SendNow(context.Background(), e.user.ID, e.campaign.ID, model.MoodGrateful, nil)

	assert.True(t, apperrors.IsValidation(err))
}

func TestDowngradedUserNoteDroppedAtSendTime(t *testing.T) {
	e := newEnv(t, model.TierPremium, "a@example.com")
	note := "premium note"
	sched := e.activeSchedule(model.WindowMorning, model.FrequencyOnce)
	sched.SenderNote = &note

	// Downgrade between scheduling and firing.
	e.user.Tier = model.TierFree

	result, err := e.svc.RunSchedule(context.Background(), sched)

	require.NoError(t, err)
	require.Equal(t, 1, result.Sent)
	assert.NotContains(t, e.dispatcher.sent[0].Body, note)
}
