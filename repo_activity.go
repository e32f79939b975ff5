package identity

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ActivityLogs records authentication events and answers the aggregate
// queries behind the admin statistics endpoints. It satisfies both
// ActivityRecorder and StatsStore.
type ActivityLogs interface {
	repository.Repository[*ActivityLog]

	Record(ctx context.Context, userID uuid.UUID, at time.Time) error
	RecordTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, at time.Time) error

	CountUsers(ctx context.Context) (int, error)
	CountActiveSince(ctx context.Context, since time.Time) (int, error)
	DistinctActiveByDay(ctx context.Context, from, to time.Time) ([]DayCount, error)
}

type activityLogs struct {
	repository.Repository[*ActivityLog]
	db *bun.DB
}

var (
	_ ActivityLogs     = (*activityLogs)(nil)
	_ ActivityRecorder = (*activityLogs)(nil)
	_ StatsStore       = (*activityLogs)(nil)
)

func NewActivityLogsRepository(db *bun.DB) ActivityLogs {
	repo := repository.NewRepository[*ActivityLog](db, repository.ModelHandlers[*ActivityLog]{
		NewRecord: func() *ActivityLog { return &ActivityLog{} },
		GetID: func(r *ActivityLog) uuid.UUID {
			if r == nil {
				return uuid.Nil
			}
			return r.ID
		},
		SetID: func(r *ActivityLog, id uuid.UUID) {
			if r != nil {
				r.ID = id
			}
		},
	})

	return &activityLogs{
		Repository: repo,
		db:         db,
	}
}

func (a *activityLogs) Record(ctx context.Context, userID uuid.UUID, at time.Time) error {
	return a.RecordTx(ctx, a.db, userID, at)
}

func (a *activityLogs) RecordTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, at time.Time) error {
	record := &ActivityLog{
		ID:         uuid.New(),
		UserID:     userID,
		OccurredAt: at,
	}

	_, err := a.Repository.CreateTx(ctx, tx, record)

	return err
}

func (a *activityLogs) CountUsers(ctx context.Context) (int, error) {
	return a.db.NewSelect().
		Model((*User)(nil)).
		Count(ctx)
}

func (a *activityLogs) CountActiveSince(ctx context.Context, since time.Time) (int, error) {
	var count int
	err := a.db.NewSelect().
		Model((*ActivityLog)(nil)).
		ColumnExpr("COUNT(DISTINCT ?TableAlias.user_id)").
		Where("?TableAlias.activity_at >= ?", since).
		Scan(ctx, &count)

	return count, err
}

// DistinctActiveByDay buckets activity rows by calendar day and counts
// distinct users per bucket. Days with no activity produce no row.
func (a *activityLogs) DistinctActiveByDay(ctx context.Context, from, to time.Time) ([]DayCount, error) {
	var days []DayCount
	err := a.db.NewSelect().
		Model((*ActivityLog)(nil)).
		ColumnExpr("date(?TableAlias.activity_at) AS day").
		ColumnExpr("COUNT(DISTINCT ?TableAlias.user_id) AS users").
		Where("?TableAlias.activity_at >= ?", from).
		Where("?TableAlias.activity_at < ?", to).
		GroupExpr("date(?TableAlias.activity_at)").
		OrderExpr("day ASC").
		Scan(ctx, &days)

	return days, err
}
