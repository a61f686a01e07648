package template

import (
	"context"

	"github.com/mondo989/ReallyGoodJob/internal/model"
)

// defaultMoods ship with the service so a fresh database can schedule sends
// immediately. Inserts are idempotent on the mood name.
var defaultMoods = []model.TemplateMood{
	{
		Name:        model.MoodHappy,
		SubjectLine: "A little appreciation from [Sender Name]!",
		BodyText:    "Hi [Recipient Name],\n\nJust wanted to brighten your day and say how much your work on [Campaign Name] means. You make a real difference!\n\n[Sender Note]\n\nWith a smile,\n[Sender Name]",
	},
	{
		Name:        model.MoodCheerful,
		SubjectLine: "[Recipient Name], you are awesome!",
		BodyText:    "Hey [Recipient Name],\n\nSending some cheer your way! [Campaign Name] would not be the same without you.\n\n[Sender Note]\n\nCheers,\n[Sender Name]",
	},
	{
		Name:        model.MoodEcstatic,
		SubjectLine: "WOW [Recipient Name] - thank you!!",
		BodyText:    "[Recipient Name]!\n\nI am absolutely thrilled about everything you have done for [Campaign Name]. Thank you, thank you, thank you!\n\n[Sender Note]\n\nExcitedly,\n[Sender Name]",
	},
	{
		Name:        model.MoodGrateful,
		SubjectLine: "Deep gratitude from [Sender Name]",
		BodyText:    "Dear [Recipient Name],\n\nI am truly grateful for your contribution to [Campaign Name]. Your generosity does not go unnoticed.\n\n[Sender Note]\n\nWith gratitude,\n[Sender Name]",
	},
	{
		Name:        model.MoodProfessional,
		SubjectLine: "Thank you for your support of [Campaign Name]",
		BodyText:    "Dear [Recipient Name],\n\nOn behalf of [Campaign Name], I would like to formally thank you for your continued support.\n\n[Sender Note]\n\nBest regards,\n[Sender Name]",
	},
	{
		Name:        model.MoodWarm,
		SubjectLine: "Thinking of you, [Recipient Name]",
		BodyText:    "Dear [Recipient Name],\n\nA warm thank you for all you have done for [Campaign Name]. It means more than words can say.\n\n[Sender Note]\n\nWarmly,\n[Sender Name]",
	},
	{
		Name:        model.MoodEnthusiastic,
		SubjectLine: "[Recipient Name], you are making it happen!",
		BodyText:    "Hi [Recipient Name],\n\nYour energy behind [Campaign Name] is contagious! Keep being amazing.\n\n[Sender Note]\n\nOnward,\n[Sender Name]",
	},
	{
		Name:        model.MoodHeartfelt,
		SubjectLine: "From the heart - thank you [Recipient Name]",
		BodyText:    "Dear [Recipient Name],\n\nFrom the bottom of my heart, thank you for being part of [Campaign Name].\n\n[Sender Note]\n\nSincerely,\n[Sender Name]",
	},
	{
		Name:        model.MoodInspiring,
		SubjectLine: "[Recipient Name], you inspire us",
		BodyText:    "Dear [Recipient Name],\n\nPeople like you are why [Campaign Name] exists. You inspire everyone around you.\n\n[Sender Note]\n\nKeep shining,\n[Sender Name]",
	},
}

// Seed inserts the default moods, skipping any that already exist.
func (s *Service) Seed(ctx context.Context) error {
	for i := range defaultMoods {
		mood := defaultMoods[i]
		if err := s.moods.Create(ctx, &mood); err != nil {
			return err
		}
	}
	return nil
}
