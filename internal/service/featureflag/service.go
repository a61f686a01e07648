package featureflag

import (
	"github.com/mondo989/ReallyGoodJob/internal/config"
	"github.com/mondo989/ReallyGoodJob/internal/model"
)

// Feature names premium-gated capabilities.
type Feature string

const (
	FeatureMultipleSends        Feature = "multiple_sends"
	FeaturePersonalizedMessages Feature = "personalized_messages"
	FeatureAdvancedScheduling   Feature = "advanced_scheduling"
)

// Service answers tier and feature questions from injected configuration.
// Callers must not cache answers across requests; entitlement is re-checked
// at send time, not only at schedule creation.
type Service struct {
	features config.FeatureConfig
	tiers    config.TierConfig
}

func NewService(features config.FeatureConfig, tiers config.TierConfig) *Service {
	return &Service{features: features, tiers: tiers}
}

// IsPremiumUser reports whether the user gets premium treatment, honoring the
// force-premium override used in staging environments.
func (s *Service) IsPremiumUser(user *model.User) bool {
	if s.features.ForcePremiumForAll {
		return true
	}
	return user.Tier == model.TierPremium
}

// CanUseFeature reports whether the user may use the named feature right now.
// A disabled flag gates the feature off for everyone, premium included.
func (s *Service) CanUseFeature(user *model.User, feature Feature) bool {
	switch feature {
	case FeatureMultipleSends:
		return s.features.PremiumMultipleSends && s.IsPremiumUser(user)
	case FeaturePersonalizedMessages:
		return s.features.PremiumPersonalizedMessages && s.IsPremiumUser(user)
	case FeatureAdvancedScheduling:
		return s.features.PremiumAdvancedScheduling && s.IsPremiumUser(user)
	}
	return false
}

// MaxDailySends returns the per-campaign daily send cap for the user's tier.
func (s *Service) MaxDailySends(user *model.User) int {
	if s.IsPremiumUser(user) {
		return s.tiers.PremiumSendsPerDay
	}
	return s.tiers.FreeSendsPerDay
}
