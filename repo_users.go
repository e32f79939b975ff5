package identity

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

var IncrementLoginCountSQL = `UPDATE "users" AS "usr"
SET
	"login_count" = "login_count" + 1
WHERE
	"usr"."deleted_at" IS NULL
AND (
	"usr"."id" = ?
) RETURNING *;`

var ConsumeVerificationTokenSQL = `UPDATE "users" AS "usr"
SET
	"is_email_verified" = TRUE,
	"verification_token" = NULL,
	"token_expiry" = NULL
WHERE
	"usr"."deleted_at" IS NULL
AND (
	"usr"."verification_token" = ?
) RETURNING *;`

var UpdatePasswordSQL = `UPDATE "users" AS "usr"
SET
	"password_hash" = ?
WHERE
	"usr"."deleted_at" IS NULL
AND (
	"usr"."id" = ?
) RETURNING *;`

// Users is the persistence surface for user records. It satisfies
// UserStore for the authentication strategies and the access gate.
type Users interface {
	repository.Repository[*User]

	FindByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	GetByVerificationToken(ctx context.Context, token string) (*User, error)

	Register(ctx context.Context, user *User) (*User, error)
	RegisterTx(ctx context.Context, tx bun.IDB, user *User) (*User, error)

	TrackSession(ctx context.Context, id uuid.UUID) error
	TrackSessionTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error
	IncrementLoginCount(ctx context.Context, id uuid.UUID) error
	IncrementLoginCountTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error

	SetVerificationToken(ctx context.Context, id uuid.UUID, token string, expiry time.Time) error
	ConsumeVerificationToken(ctx context.Context, token string) (*User, error)
	ConsumeVerificationTokenTx(ctx context.Context, tx bun.IDB, token string) (*User, error)

	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	UpdatePasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error
	UpdateName(ctx context.Context, id uuid.UUID, name string) error
	UpdateFederatedProfile(ctx context.Context, id uuid.UUID, name string) error
}

type users struct {
	repository.Repository[*User]
	db *bun.DB
}

var (
	_ Users                        = (*users)(nil)
	_ UserStore                    = (*users)(nil)
	_ repository.Repository[*User] = (*users)(nil)
)

func NewUsersRepository(db *bun.DB) Users {
	repo := repository.NewRepository[*User](db, repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
		GetIdentifier: func() string {
			return "username"
		},
	})

	return &users{
		Repository: repo,
		db:         db,
	}
}

// FindByID is the uuid-keyed lookup. The embedded repository's GetByID
// takes a string key, so this carries a distinct name.
func (a *users) FindByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return a.getOne(ctx, a.db, "id", id.String())
}

func (a *users) GetByUsername(ctx context.Context, username string) (*User, error) {
	return a.getOne(ctx, a.db, "username", username)
}

func (a *users) GetByVerificationToken(ctx context.Context, token string) (*User, error) {
	return a.getOne(ctx, a.db, "verification_token", token)
}

func (a *users) getOne(ctx context.Context, tx bun.IDB, column, value string) (*User, error) {
	record := &User{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias."+column+" = ?", value).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					column: value,
				})
		}
		return nil, err
	}

	return record, nil
}

func (a *users) Register(ctx context.Context, user *User) (*User, error) {
	return a.RegisterTx(ctx, a.db, user)
}

func (a *users) RegisterTx(ctx context.Context, tx bun.IDB, user *User) (*User, error) {
	prepareUserDefaults(user)
	return a.Repository.CreateTx(ctx, tx, user)
}

func (a *users) TrackSession(ctx context.Context, id uuid.UUID) error {
	return a.TrackSessionTx(ctx, a.db, id)
}

func (a *users) TrackSessionTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	_, err := tx.NewRaw(`
		UPDATE "users" AS "usr"
		SET
			"last_session_at" = ?
		WHERE
			("usr".id = ?)
			AND "usr"."deleted_at" IS NULL;
	`, time.Now(), id).Exec(ctx)

	return err
}

func (a *users) IncrementLoginCount(ctx context.Context, id uuid.UUID) error {
	return a.IncrementLoginCountTx(ctx, a.db, id)
}

func (a *users) IncrementLoginCountTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	res, err := a.Repository.RawTx(ctx, tx, IncrementLoginCountSQL, id.String())
	if err != nil {
		return err
	}

	if len(res) == 0 {
		return repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				"id": id.String(),
			})
	}

	return nil
}

func (a *users) SetVerificationToken(ctx context.Context, id uuid.UUID, token string, expiry time.Time) error {
	record := &User{}
	record.ID = id
	record.VerificationToken = token
	record.TokenExpiry = &expiry

	_, err := a.Repository.Update(ctx, record, repository.UpdateByID(id.String()))

	return err
}

func (a *users) ConsumeVerificationToken(ctx context.Context, token string) (*User, error) {
	return a.ConsumeVerificationTokenTx(ctx, a.db, token)
}

// ConsumeVerificationTokenTx flips is_email_verified and clears the token
// in a single statement keyed on the token value. A concurrent consumer
// that lost the race matches zero rows and reports not-found.
func (a *users) ConsumeVerificationTokenTx(ctx context.Context, tx bun.IDB, token string) (*User, error) {
	res, err := a.Repository.RawTx(ctx, tx, ConsumeVerificationTokenSQL, token)
	if err != nil {
		return nil, err
	}

	if len(res) == 0 {
		return nil, repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				"verification_token": token,
			})
	}

	return res[0], nil
}

func (a *users) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	return a.UpdatePasswordTx(ctx, a.db, id, passwordHash)
}

func (a *users) UpdatePasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error {
	res, err := a.Repository.RawTx(ctx, tx, UpdatePasswordSQL, passwordHash, id.String())
	if err != nil {
		return err
	}

	if len(res) == 0 {
		return repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				"id": id.String(),
			})
	}

	return nil
}

func (a *users) UpdateName(ctx context.Context, id uuid.UUID, name string) error {
	record := &User{}
	record.ID = id
	record.Name = name

	_, err := a.Repository.Update(ctx, record, repository.UpdateByID(id.String()))

	return err
}

func (a *users) UpdateFederatedProfile(ctx context.Context, id uuid.UUID, name string) error {
	return a.UpdateName(ctx, id, name)
}

func prepareUserDefaults(record *User) {
	if record == nil {
		return
	}

	if record.Role == "" {
		record.Role = RoleMember
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	if record.SignedUpAt == nil {
		now := time.Now()
		record.SignedUpAt = &now
	}
}
