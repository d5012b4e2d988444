package model

import "time"

// User represents an account as stored in the `users` table.  Users are
// never hard-deleted; DeleteMe flips Status to inactive.
//
// Fields:
//
//	ID                 – primary key identifier of the user.
//	FullName           – display name, 3..40 characters.
//	Email              – unique, lowercased email address.
//	Phone              – unique phone number (nullable).
//	PasswordHash       – bcrypt hash; empty for Google-only accounts.
//	Photo              – avatar file name or URL.
//	Role               – "user" or "admin".
//	Status             – inactive, active or suspended.
//	Verified           – whether the email address was confirmed.
//	GoogleID           – Google subject for OAuth logins (nullable).
//	PasswordChangedAt  – tokens issued before this instant are rejected.
type User struct {
	ID                   uint64     // users.id
	FullName             string     // users.full_name
	Email                string     // users.email
	Phone                *string    // users.phone
	PasswordHash         string     // users.password_hash
	Photo                string     // users.photo
	Role                 string     // users.role
	Status               UserStatus // users.status
	Verified             bool       // users.verified
	VerificationHash     *string    // users.verification_token_hash
	VerificationExpires  *time.Time // users.verification_expires_at
	PasswordResetHash    *string    // users.password_reset_token_hash
	PasswordResetExpires *time.Time // users.password_reset_expires_at
	PasswordChangedAt    *time.Time // users.password_changed_at
	GoogleID             *string    // users.google_id
	CreatedAt            time.Time  // users.created_at
	UpdatedAt            time.Time  // users.updated_at
}

// IsAdmin reports whether the user carries the admin role.
func (u User) IsAdmin() bool { return u.Role == RoleAdmin }

// RefreshToken models an entry in the `refresh_tokens` table.  The plain
// token is never stored; only its SHA-256 hash.
type RefreshToken struct {
	ID        uint64     // refresh_tokens.id
	UserID    uint64     // refresh_tokens.user_id
	TokenHash string     // refresh_tokens.token_hash
	ExpiresAt time.Time  // refresh_tokens.expires_at
	RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
	CreatedAt time.Time  // refresh_tokens.created_at
}
