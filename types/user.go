package types

import "time"

// Roles assignable to a user account.
const (
	RoleAdmin  = "admin"
	RoleMember = "member"
)

// User represents an account in the system.
// It contains identity, role, and audit metadata.
type User struct {
	// ID is the unique identifier of the user.
	ID string `json:"id" db:"id"`

	// Email is the user's email address. It is stored lower-cased and is
	// unique across the system.
	Email string `json:"email" db:"email"`

	// FullName is the user's display or full name.
	FullName string `json:"full_name" db:"full_name"`

	// Role indicates the user's authorization level within the system,
	// either "admin" or "member".
	Role string `json:"role" db:"role"`

	// PasswordHash stores the hashed representation of the user's password.
	// It is empty for accounts provisioned through delegated OAuth login.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// Provider names the delegated login provider that created this
	// account, if any (e.g. "google"). Empty for password accounts.
	Provider string `json:"provider,omitempty" db:"provider"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the user account.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
