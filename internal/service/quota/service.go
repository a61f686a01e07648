package quota

import (
	"context"

	"github.com/mondo989/ReallyGoodJob/internal/model"
	"github.com/mondo989/ReallyGoodJob/internal/repository"
	"github.com/mondo989/ReallyGoodJob/internal/service/featureflag"
	"github.com/mondo989/ReallyGoodJob/pkg/logger"
	"github.com/mondo989/ReallyGoodJob/pkg/metrics"
)

// Service is the single admission gate in front of dispatch. It consumes
// quota pessimistically: a slot is taken before any provider call, so a
// mid-batch crash can under-send but never over-send.
type Service struct {
	schedules repository.ScheduleRepository
	flags     *featureflag.Service
	logger    *logger.Logger
	metrics   *metrics.Metrics
}

func NewService(
	schedules repository.ScheduleRepository,
	flags *featureflag.Service,
	log *logger.Logger,
	m *metrics.Metrics,
) *Service {
	return &Service{
		schedules: schedules,
		flags:     flags,
		logger:    log,
		metrics:   m,
	}
}

// TryConsume attempts to take one send slot for the schedule. The tier cap is
// resolved from the user at call time, so a downgrade takes effect on the
// next admission, not the next day. A denial is not an error; the batch is
// skipped silently.
func (s *Service) TryConsume(ctx context.Context, schedule *model.Schedule, user *model.User) (bool, error) {
	maxDaily := s.flags.MaxDailySends(user)

	admitted, err := s.schedules.TryConsume(ctx, schedule.ID, maxDaily)
	if err != nil {
		return false, err
	}
	if !admitted {
		s.metrics.QuotaDenials.Inc()
		s.logger.Debug("quota denied", map[string]interface{}{
			"schedule_id": schedule.ID.String(),
			"max_daily":   maxDaily,
		})
	}
	return admitted, nil
}

// ResetDailyCounters zeroes every schedule's daily count and restores one
// window slot. Runs at the midnight UTC boundary.
func (s *Service) ResetDailyCounters(ctx context.Context) (int64, error) {
	return s.schedules.ResetDailyCounters(ctx)
}
