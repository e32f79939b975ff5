package identity_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	identity "github.com/harborauth/go-identity"
)

func fixedStatsService(store identity.StatsStore, at time.Time) *identity.StatsService {
	return identity.NewStatsService(store, time.UTC).
		WithClock(func() time.Time { return at })
}

func TestStatsTotalUsers(t *testing.T) {
	store := new(MockStatsStore)
	store.On("CountUsers", mock.Anything).Return(42, nil).Once()

	svc := identity.NewStatsService(store, time.UTC)

	total, err := svc.TotalUsers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, total)
	store.AssertExpectations(t)
}

func TestStatsActiveTodayUsesLocalMidnight(t *testing.T) {
	at := time.Date(2025, 3, 14, 15, 9, 26, 0, time.UTC)
	midnight := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)

	store := new(MockStatsStore)
	store.On("CountActiveSince", mock.Anything, midnight).Return(7, nil).Once()

	svc := fixedStatsService(store, at)

	count, err := svc.ActiveToday(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, count)
	store.AssertExpectations(t)
}

func TestStatsAverageActivePastWeek(t *testing.T) {
	at := time.Date(2025, 3, 14, 15, 0, 0, 0, time.UTC)
	today := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)
	from := today.AddDate(0, 0, -6)
	to := today.AddDate(0, 0, 1)

	day := func(offset, users int) identity.DayCount {
		return identity.DayCount{Day: from.AddDate(0, 0, offset), Users: users}
	}

	tests := []struct {
		name string
		days []identity.DayCount
		want int
	}{
		{
			// (3+0+0+5+2+0+1)/7 = 11/7 ~ 1.57 rounds up.
			name: "sparse week rounds half up",
			days: []identity.DayCount{day(0, 3), day(3, 5), day(4, 2), day(6, 1)},
			want: 2,
		},
		{
			// 10/7 ~ 1.43 rounds down; absent days still count as zero.
			name: "rounds down below half",
			days: []identity.DayCount{day(0, 4), day(1, 6)},
			want: 1,
		},
		{
			// 7/7: exactly one per day.
			name: "exact average",
			days: []identity.DayCount{day(0, 1), day(1, 1), day(2, 1), day(3, 1), day(4, 1), day(5, 1), day(6, 1)},
			want: 1,
		},
		{
			name: "empty week",
			days: nil,
			want: 0,
		},
		{
			// 44/7 ~ 6.29 on a fully populated week.
			name: "busy week rounds down",
			days: []identity.DayCount{day(0, 10), day(1, 10), day(2, 10), day(3, 5), day(4, 3), day(5, 5), day(6, 1)},
			want: 6,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := new(MockStatsStore)
			store.On("DistinctActiveByDay", mock.Anything, from, to).
				Return(tt.days, nil).Once()

			svc := fixedStatsService(store, at)

			avg, err := svc.AverageActivePastWeek(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.want, avg)
			store.AssertExpectations(t)
		})
	}
}

func TestStatsPropagatesStoreErrors(t *testing.T) {
	store := new(MockStatsStore)
	store.On("CountUsers", mock.Anything).Return(0, assert.AnError).Once()
	store.On("CountActiveSince", mock.Anything, mock.Anything).Return(0, assert.AnError).Once()
	store.On("DistinctActiveByDay", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, assert.AnError).Once()

	svc := identity.NewStatsService(store, time.UTC)

	_, err := svc.TotalUsers(context.Background())
	assert.Error(t, err)
	_, err = svc.ActiveToday(context.Background())
	assert.Error(t, err)
	_, err = svc.AverageActivePastWeek(context.Background())
	assert.Error(t, err)
}
