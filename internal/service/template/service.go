package template

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/mondo989/ReallyGoodJob/internal/model"
	"github.com/mondo989/ReallyGoodJob/internal/repository"
	"github.com/mondo989/ReallyGoodJob/pkg/logger"
)

// Placeholder tokens recognized in mood subject lines and bodies.
const (
	PlaceholderSenderName    = "[Sender Name]"
	PlaceholderRecipientName = "[Recipient Name]"
	PlaceholderCampaignName  = "[Campaign Name]"
	PlaceholderSenderNote    = "[Sender Note]"
)

// Fallbacks used when render parameters are empty.
const (
	DefaultSenderName    = "Unknown Sender"
	DefaultRecipientName = "Dear Friend"
	DefaultCampaignName  = "Campaign"
)

const (
	moodCacheTTL     = 10 * time.Minute
	moodCacheCleanup = 30 * time.Minute
)

// RenderParams carries the values substituted into a mood template.
type RenderParams struct {
	SenderName    string
	RecipientName string
	CampaignName  string
	SenderNote    string
}

// Rendered holds the post-substitution subject and body.
type Rendered struct {
	Subject string
	Body    string
}

// Service resolves moods by id or name and renders their templates. Moods
// change rarely, so resolved rows are cached with a short TTL.
type Service struct {
	moods  repository.MoodRepository
	cache  *cache.Cache
	logger *logger.Logger
}

func NewService(moods repository.MoodRepository, log *logger.Logger) *Service {
	return &Service{
		moods:  moods,
		cache:  cache.New(moodCacheTTL, moodCacheCleanup),
		logger: log,
	}
}

// Resolve returns the mood with the given id.
func (s *Service) Resolve(ctx context.Context, id uuid.UUID) (*model.TemplateMood, error) {
	key := "mood:id:" + id.String()
	if cached, ok := s.cache.Get(key); ok {
		return cached.(*model.TemplateMood), nil
	}

	mood, err := s.moods.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cache.Set(key, mood, cache.DefaultExpiration)
	return mood, nil
}

// ResolveByName returns the mood with the given name.
func (s *Service) ResolveByName(ctx context.Context, name string) (*model.TemplateMood, error) {
	key := "mood:name:" + name
	if cached, ok := s.cache.Get(key); ok {
		return cached.(*model.TemplateMood), nil
	}

	mood, err := s.moods.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}
	s.cache.Set(key, mood, cache.DefaultExpiration)
	return mood, nil
}

// List returns all moods.
func (s *Service) List(ctx context.Context) ([]*model.TemplateMood, error) {
	return s.moods.List(ctx)
}

// Render substitutes placeholders in the mood's subject and body. Substitution
// is a single pass per placeholder; placeholder-shaped text inside the
// substituted values is left alone. An empty sender note renders as empty,
// never as the literal token.
func Render(mood *model.TemplateMood, params RenderParams) Rendered {
	senderName := params.SenderName
	if senderName == "" {
		senderName = DefaultSenderName
	}
	recipientName := params.RecipientName
	if recipientName == "" {
		recipientName = DefaultRecipientName
	}
	campaignName := params.CampaignName
	if campaignName == "" {
		campaignName = DefaultCampaignName
	}

	replacer := strings.NewReplacer(
		PlaceholderSenderName, senderName,
		PlaceholderRecipientName, recipientName,
		PlaceholderCampaignName, campaignName,
		PlaceholderSenderNote, params.SenderNote,
	)

	return Rendered{
		Subject: replacer.Replace(mood.SubjectLine),
		Body:    replacer.Replace(mood.BodyText),
	}
}
