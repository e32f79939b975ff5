package identity

import (
	"context"
	"time"

	"github.com/goliatone/go-errors"
)

const activityWindowDays = 7

// StatsService aggregates registration and activity counts for the
// admin statistics endpoints.
type StatsService struct {
	store StatsStore

	loc    *time.Location
	logger Logger
	now    func() time.Time
}

// NewStatsService creates a stats service. Day boundaries are computed
// in loc; a nil loc falls back to time.Local.
func NewStatsService(store StatsStore, loc *time.Location) *StatsService {
	if loc == nil {
		loc = time.Local
	}
	return &StatsService{
		store:  store,
		loc:    loc,
		logger: defLogger{},
		now:    time.Now,
	}
}

// WithLogger sets the service logger.
func (s *StatsService) WithLogger(l Logger) *StatsService {
	s.logger = normalizeLogger(l)
	return s
}

// WithClock overrides the service clock. Test hook.
func (s *StatsService) WithClock(now func() time.Time) *StatsService {
	s.now = now
	return s
}

// TotalUsers reports the count of registered, non-deleted users.
func (s *StatsService) TotalUsers(ctx context.Context) (int, error) {
	n, err := s.store.CountUsers(ctx)
	if err != nil {
		return 0, errors.Wrap(err, errors.CategoryInternal, "failed to count users")
	}
	return n, nil
}

// ActiveToday reports the number of distinct users with activity since
// the most recent local midnight.
func (s *StatsService) ActiveToday(ctx context.Context) (int, error) {
	n, err := s.store.CountActiveSince(ctx, s.startOfDay(s.now()))
	if err != nil {
		return 0, errors.Wrap(err, errors.CategoryInternal, "failed to count active users")
	}
	return n, nil
}

// AverageActivePastWeek reports the mean daily distinct active user
// count over the trailing seven calendar days, today included. Days
// with no activity count as zero and the divisor is always seven. The
// result rounds half away from zero.
func (s *StatsService) AverageActivePastWeek(ctx context.Context) (int, error) {
	today := s.startOfDay(s.now())
	from := today.AddDate(0, 0, -(activityWindowDays - 1))

	days, err := s.store.DistinctActiveByDay(ctx, from, today.AddDate(0, 0, 1))
	if err != nil {
		return 0, errors.Wrap(err, errors.CategoryInternal, "failed to aggregate weekly activity")
	}

	sum := 0
	for _, d := range days {
		sum += d.Users
	}

	return (2*sum + activityWindowDays) / (2 * activityWindowDays), nil
}

func (s *StatsService) startOfDay(t time.Time) time.Time {
	t = t.In(s.loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, s.loc)
}
