package identity

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User is the durable identity record. Username doubles as the login
// identifier and email address. PasswordHash is empty exactly when the
// account was provisioned through a federated identity provider.
type User struct {
	bun.BaseModel     `bun:"table:users,alias:usr"`
	ID                uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Username          string     `bun:"username,notnull,unique" json:"username,omitempty"`
	Name              string     `bun:"name,nullzero" json:"name,omitempty"`
	PasswordHash      string     `bun:"password_hash,nullzero" json:"-"`
	Federated         bool       `bun:"is_federated,notnull" json:"is_federated,omitempty"`
	EmailVerified     bool       `bun:"is_email_verified,notnull" json:"is_email_verified,omitempty"`
	VerificationToken string     `bun:"verification_token,nullzero,unique" json:"-"`
	TokenExpiry       *time.Time `bun:"token_expiry,nullzero" json:"-"`
	SignedUpAt        *time.Time `bun:"signed_up_at,nullzero,default:current_timestamp" json:"signed_up_at,omitempty"`
	LoginCount        int        `bun:"login_count,notnull,default:0" json:"login_count,omitempty"`
	LastSessionAt     *time.Time `bun:"last_session_at,nullzero" json:"last_session_at,omitempty"`
	Role              UserRole   `bun:"user_role,nullzero" json:"user_role,omitempty"`
	CreatedAt         *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt         *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt         *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// HasPassword reports whether the account carries a local credential.
func (u *User) HasPassword() bool {
	return u.PasswordHash != ""
}

// Verified reports whether the account may reach verified-only resources.
// Federated accounts satisfy verification implicitly.
func (u *User) Verified() bool {
	return u.Federated || u.EmailVerified
}

// HasLiveVerificationToken reports whether an unexpired verification token
// is outstanding at the given instant.
func (u *User) HasLiveVerificationToken(now time.Time) bool {
	return u.VerificationToken != "" && u.TokenExpiry != nil && now.Before(*u.TokenExpiry)
}

// ActivityLog is an immutable fact: one row per successful authentication
// event. Rows are append only and are never updated.
type ActivityLog struct {
	bun.BaseModel `bun:"table:user_activity_log,alias:act"`
	ID            uuid.UUID `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	UserID        uuid.UUID `bun:"user_id,notnull,type:uuid" json:"user_id,omitempty"`
	User          *User     `bun:"rel:belongs-to,join:user_id=id" json:"user,omitempty"`
	OccurredAt    time.Time `bun:"activity_at,notnull,default:current_timestamp" json:"activity_at,omitempty"`
}

// DayCount is one row of the statistics group-by: the number of distinct
// users active on a single calendar day.
type DayCount struct {
	Day   time.Time `bun:"day"`
	Users int       `bun:"users"`
}
