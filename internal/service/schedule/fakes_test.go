package schedule

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mondo989/ReallyGoodJob/internal/model"
	"github.com/mondo989/ReallyGoodJob/internal/service/dispatch"
	apperrors "github.com/mondo989/ReallyGoodJob/pkg/errors"
)

type fakeScheduleRepo struct {
	mu        sync.Mutex
	schedules map[uuid.UUID]*model.Schedule
}

func newFakeScheduleRepo() *fakeScheduleRepo {
	return &fakeScheduleRepo{schedules: make(map[uuid.UUID]*model.Schedule)}
}

func (f *fakeScheduleRepo) Create(ctx context.Context, s *model.Schedule) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	f.schedules[s.ID] = s
	return nil
}

func (f *fakeScheduleRepo) Get(ctx context.Context, id uuid.UUID) (*model.Schedule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.schedules[id]
	if !ok {
		return nil, apperrors.NewNotFound("schedule", nil)
	}
	return s, nil
}

func (f *fakeScheduleRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]*model.Schedule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Schedule
	for _, s := range f.schedules {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeScheduleRepo) ListDue(ctx context.Context, window model.Window, now time.Time) ([]*model.Schedule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Schedule
	for _, s := range f.schedules {
		if s.IsActive && s.Window == window && !s.NextRunAt.After(now) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeScheduleRepo) HasActive(ctx context.Context, userID, campaignID uuid.UUID, window model.Window) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.schedules {
		if s.IsActive && s.UserID == userID && s.CampaignID == campaignID && s.Window == window {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeScheduleRepo) TryConsume(ctx context.Context, id uuid.UUID, maxDailySends int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.schedules[id]
	if !ok {
		return false, nil
	}
	if !s.IsActive || s.RemainingSendsThisWindow <= 0 || s.DailySendsCount >= maxDailySends {
		return false, nil
	}
	s.RemainingSendsThisWindow--
	s.DailySendsCount++
	return true, nil
}

func (f *fakeScheduleRepo) ResetDailyCounters(ctx context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.schedules {
		s.DailySendsCount = 0
		s.RemainingSendsThisWindow = 1
	}
	return int64(len(f.schedules)), nil
}

func (f *fakeScheduleRepo) AdvanceNextRun(ctx context.Context, id uuid.UUID, nextRunAt time.Time, replenishWindow bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.schedules[id]
	if !ok {
		return apperrors.NewNotFound("schedule", nil)
	}
	s.NextRunAt = nextRunAt
	if replenishWindow {
		s.RemainingSendsThisWindow = 1
	}
	return nil
}

func (f *fakeScheduleRepo) SetMood(ctx context.Context, id uuid.UUID, moodID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.schedules[id]; ok {
		s.CurrentMoodID = moodID
	}
	return nil
}

func (f *fakeScheduleRepo) Deactivate(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.schedules[id]
	if !ok {
		return apperrors.NewNotFound("schedule", nil)
	}
	s.IsActive = false
	return nil
}

func (f *fakeScheduleRepo) DeactivateByCampaign(ctx context.Context, campaignID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.schedules {
		if s.CampaignID == campaignID {
			s.IsActive = false
		}
	}
	return nil
}

func (f *fakeScheduleRepo) CountActiveByCampaign(ctx context.Context, campaignID uuid.UUID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, s := range f.schedules {
		if s.CampaignID == campaignID && s.IsActive {
			count++
		}
	}
	return count, nil
}

type fakeCampaignRepo struct {
	campaigns map[uuid.UUID]*model.Campaign
}

func newFakeCampaignRepo(campaigns ...*model.Campaign) *fakeCampaignRepo {
	m := make(map[uuid.UUID]*model.Campaign)
	for _, c := range campaigns {
		m[c.ID] = c
	}
	return &fakeCampaignRepo{campaigns: m}
}

func (f *fakeCampaignRepo) Create(ctx context.Context, c *model.Campaign, recipients []*model.Recipient) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	f.campaigns[c.ID] = c
	return nil
}

func (f *fakeCampaignRepo) Get(ctx context.Context, id uuid.UUID) (*model.Campaign, error) {
	c, ok := f.campaigns[id]
	if !ok {
		return nil, apperrors.NewNotFound("campaign", nil)
	}
	return c, nil
}

func (f *fakeCampaignRepo) ListActive(ctx context.Context, now time.Time) ([]*model.Campaign, error) {
	var out []*model.Campaign
	for _, c := range f.campaigns {
		if c.Status == model.CampaignStatusActive && c.ExpirationAt.After(now) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeCampaignRepo) ListExpired(ctx context.Context, now time.Time) ([]*model.Campaign, error) {
	var out []*model.Campaign
	for _, c := range f.campaigns {
		if c.Status == model.CampaignStatusActive && !c.ExpirationAt.After(now) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeCampaignRepo) ListByCreator(ctx context.Context, userID uuid.UUID) ([]*model.Campaign, error) {
	var out []*model.Campaign
	for _, c := range f.campaigns {
		if c.CreatedByUserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeCampaignRepo) ListByStatus(ctx context.Context, status model.CampaignStatus) ([]*model.Campaign, error) {
	var out []*model.Campaign
	for _, c := range f.campaigns {
		if c.Status == status {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeCampaignRepo) SetStatus(ctx context.Context, id uuid.UUID, status model.CampaignStatus, adminID *uuid.UUID) error {
	c, ok := f.campaigns[id]
	if !ok {
		return apperrors.NewNotFound("campaign", nil)
	}
	c.Status = status
	return nil
}

type fakeRecipientRepo struct {
	recipients []*model.Recipient
}

func (f *fakeRecipientRepo) Get(ctx context.Context, id uuid.UUID) (*model.Recipient, error) {
	for _, r := range f.recipients {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, apperrors.NewNotFound("recipient", nil)
}

func (f *fakeRecipientRepo) ListByCampaign(ctx context.Context, campaignID uuid.UUID) ([]*model.Recipient, error) {
	var out []*model.Recipient
	for _, r := range f.recipients {
		if r.CampaignID == campaignID {
			out = append(out, r)
		}
	}
	return out, nil
}

type fakeUserRepo struct {
	users map[uuid.UUID]*model.User
}

func newFakeUserRepo(users ...*model.User) *fakeUserRepo {
	m := make(map[uuid.UUID]*model.User)
	for _, u := range users {
		m[u.ID] = u
	}
	return &fakeUserRepo{users: m}
}

func (f *fakeUserRepo) Create(ctx context.Context, u *model.User) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	f.users[u.ID] = u
	return nil
}

func (f *fakeUserRepo) Get(ctx context.Context, id uuid.UUID) (*model.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, apperrors.NewNotFound("user", nil)
	}
	return u, nil
}

func (f *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, apperrors.NewNotFound("user", nil)
}

func (f *fakeUserRepo) Update(ctx context.Context, u *model.User) error {
	f.users[u.ID] = u
	return nil
}

func (f *fakeUserRepo) UpdateEncryptedTokens(ctx context.Context, userID uuid.UUID, blob string) error {
	u, ok := f.users[userID]
	if !ok {
		return apperrors.NewNotFound("user", nil)
	}
	u.EncryptedTokens = &blob
	return nil
}

type fakeEmailLogRepo struct {
	mu   sync.Mutex
	logs map[uuid.UUID]*model.EmailLog
	// recentSent marks (campaign, recipient) pairs reported as duplicates.
	recentSent map[string]bool
	// recentErr forces a duplicate-check error for the keyed pairs.
	recentErr map[string]error
}

func newFakeEmailLogRepo() *fakeEmailLogRepo {
	return &fakeEmailLogRepo{
		logs:       make(map[uuid.UUID]*model.EmailLog),
		recentSent: make(map[string]bool),
		recentErr:  make(map[string]error),
	}
}

func pairKey(campaignID, recipientID uuid.UUID) string {
	return campaignID.String() + "/" + recipientID.String()
}

func (f *fakeEmailLogRepo) Create(ctx context.Context, log *model.EmailLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if log.ID == uuid.Nil {
		log.ID = uuid.New()
	}
	f.logs[log.ID] = log
	return nil
}

func (f *fakeEmailLogRepo) Get(ctx context.Context, id uuid.UUID) (*model.EmailLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	log, ok := f.logs[id]
	if !ok {
		return nil, apperrors.NewNotFound("email log", nil)
	}
	return log, nil
}

func (f *fakeEmailLogRepo) MarkFailed(ctx context.Context, id uuid.UUID, errorMessage string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	log, ok := f.logs[id]
	if !ok {
		return apperrors.NewNotFound("email log", nil)
	}
	log.Status = model.EmailStatusFailed
	log.ErrorMessage = &errorMessage
	return nil
}

func (f *fakeEmailLogRepo) MarkOpened(ctx context.Context, id uuid.UUID, openedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if log, ok := f.logs[id]; ok && log.OpenedAt == nil {
		log.OpenedAt = &openedAt
	}
	return nil
}

func (f *fakeEmailLogRepo) HasRecentSend(ctx context.Context, campaignID, recipientID uuid.UUID, since time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := pairKey(campaignID, recipientID)
	if err := f.recentErr[key]; err != nil {
		return false, err
	}
	return f.recentSent[key], nil
}

func (f *fakeEmailLogRepo) StatsByCampaign(ctx context.Context, campaignID uuid.UUID) (*model.CampaignStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stats := &model.CampaignStats{CampaignID: campaignID}
	for _, log := range f.logs {
		if log.CampaignID != campaignID {
			continue
		}
		switch log.Status {
		case model.EmailStatusSent:
			stats.Sent++
		case model.EmailStatusFailed:
			stats.Failed++
		}
	}
	return stats, nil
}

func (f *fakeEmailLogRepo) byRecipient(recipientID uuid.UUID) *model.EmailLog {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, log := range f.logs {
		if log.RecipientID == recipientID {
			return log
		}
	}
	return nil
}

type fakeMoodRepo struct {
	moods []*model.TemplateMood
}

func (f *fakeMoodRepo) Create(ctx context.Context, mood *model.TemplateMood) error {
	f.moods = append(f.moods, mood)
	return nil
}

func (f *fakeMoodRepo) Get(ctx context.Context, id uuid.UUID) (*model.TemplateMood, error) {
	for _, m := range f.moods {
		if m.ID == id {
			return m, nil
		}
	}
	return nil, apperrors.NewNotFound("template mood", nil)
}

func (f *fakeMoodRepo) GetByName(ctx context.Context, name string) (*model.TemplateMood, error) {
	for _, m := range f.moods {
		if m.Name == name {
			return m, nil
		}
	}
	return nil, apperrors.NewNotFound("template mood", nil)
}

func (f *fakeMoodRepo) List(ctx context.Context) ([]*model.TemplateMood, error) {
	return f.moods, nil
}

// fakeDispatcher fails dispatch for addresses listed in failFor.
type fakeDispatcher struct {
	mu      sync.Mutex
	sent    []dispatch.Message
	failFor map[string]bool
}

func newFakeDispatcher(failFor ...string) *fakeDispatcher {
	m := make(map[string]bool)
	for _, addr := range failFor {
		m[addr] = true
	}
	return &fakeDispatcher{failFor: m}
}

func (f *fakeDispatcher) Send(ctx context.Context, userID uuid.UUID, msg dispatch.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFor[msg.ToEmail] {
		return fmt.Errorf("provider rejected address %s", msg.ToEmail)
	}
	f.sent = append(f.sent, msg)
	return nil
}
