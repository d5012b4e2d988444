package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/college-housing/internal/dbx"
	"github.com/iliyamo/college-housing/internal/model"
)

// UserRepository persists accounts.
type UserRepository interface {
	Create(ctx context.Context, u *model.User) error
	GetByID(ctx context.Context, id uint64) (model.User, error)
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetByGoogleID(ctx context.Context, googleID string) (model.User, error)
	GetByVerificationHash(ctx context.Context, hash string, now time.Time) (model.User, error)
	GetByResetHash(ctx context.Context, hash string, now time.Time) (model.User, error)
	SetVerification(ctx context.Context, id uint64, hash *string, exp *time.Time) error
	MarkVerified(ctx context.Context, id uint64) error
	SetPasswordReset(ctx context.Context, id uint64, hash *string, exp *time.Time) error
	UpdatePassword(ctx context.Context, id uint64, hash string, changedAt time.Time) error
	UpdateProfile(ctx context.Context, id uint64, fullName, email string, phone *string) error
	LinkGoogle(ctx context.Context, id uint64, googleID string) error
	SetStatus(ctx context.Context, id uint64, status model.UserStatus) error
	ListByStatus(ctx context.Context, status *model.UserStatus) ([]model.User, error)
}

type UserRepo struct{ DB dbx.DBTX }

func NewUserRepo(db dbx.DBTX) *UserRepo { return &UserRepo{DB: db} }

const userColumns = `id, full_name, email, phone, password_hash, photo, role, status, verified,
	verification_token_hash, verification_expires_at, password_reset_token_hash,
	password_reset_expires_at, password_changed_at, google_id, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (model.User, error) {
	var (
		u                        model.User
		phone, vHash, rHash, gID sql.NullString
		vExp, rExp, changedAt    sql.NullTime
	)
	err := row.Scan(&u.ID, &u.FullName, &u.Email, &phone, &u.PasswordHash, &u.Photo, &u.Role,
		&u.Status, &u.Verified, &vHash, &vExp, &rHash, &rExp, &changedAt, &gID,
		&u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, ErrNotFound
	}
	if err != nil {
		return model.User{}, err
	}
	u.Phone = nullString(phone)
	u.VerificationHash = nullString(vHash)
	u.VerificationExpires = nullTime(vExp)
	u.PasswordResetHash = nullString(rHash)
	u.PasswordResetExpires = nullTime(rExp)
	u.PasswordChangedAt = nullTime(changedAt)
	u.GoogleID = nullString(gID)
	return u, nil
}

// normalizeEmail lowercases and trims an address; emails are stored that way.
func normalizeEmail(email string) string { return strings.ToLower(strings.TrimSpace(email)) }

// Create inserts a user and fills in its ID.  A taken email, phone or
// Google id yields ErrDuplicate.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	u.Email = normalizeEmail(u.Email)
	if u.Role == "" {
		u.Role = model.RoleUser
	}
	if u.Status == "" {
		u.Status = model.UserInactive
	}
	if u.Photo == "" {
		u.Photo = "default.jpg"
	}
	res, err := r.DB.ExecContext(ctx,
		`INSERT INTO users (full_name, email, phone, password_hash, photo, role, status, verified,
			verification_token_hash, verification_expires_at, google_id)
		 VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		u.FullName, u.Email, u.Phone, u.PasswordHash, u.Photo, u.Role, u.Status, u.Verified,
		u.VerificationHash, u.VerificationExpires, u.GoogleID)
	if err != nil {
		if isDuplicate(err) {
			return ErrDuplicate
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	u.ID = uint64(id)
	return nil
}

func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id))
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", normalizeEmail(email)))
}

func (r *UserRepo) GetByGoogleID(ctx context.Context, googleID string) (model.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE google_id=? LIMIT 1", googleID))
}

// GetByVerificationHash finds the user holding an unexpired verification code.
func (r *UserRepo) GetByVerificationHash(ctx context.Context, hash string, now time.Time) (model.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE verification_token_hash=? AND verification_expires_at > ? LIMIT 1",
		hash, now))
}

// GetByResetHash finds the user holding an unexpired password reset code.
func (r *UserRepo) GetByResetHash(ctx context.Context, hash string, now time.Time) (model.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE password_reset_token_hash=? AND password_reset_expires_at > ? LIMIT 1",
		hash, now))
}

func (r *UserRepo) SetVerification(ctx context.Context, id uint64, hash *string, exp *time.Time) error {
	return r.exec(ctx,
		"UPDATE users SET verification_token_hash=?, verification_expires_at=? WHERE id=?",
		hash, exp, id)
}

// MarkVerified confirms the email address and activates the account.
func (r *UserRepo) MarkVerified(ctx context.Context, id uint64) error {
	return r.exec(ctx,
		`UPDATE users SET verified=1, status='active', verification_token_hash=NULL,
			verification_expires_at=NULL WHERE id=?`, id)
}

func (r *UserRepo) SetPasswordReset(ctx context.Context, id uint64, hash *string, exp *time.Time) error {
	return r.exec(ctx,
		"UPDATE users SET password_reset_token_hash=?, password_reset_expires_at=? WHERE id=?",
		hash, exp, id)
}

// UpdatePassword stores a new hash, stamps password_changed_at and clears
// any pending reset code.
func (r *UserRepo) UpdatePassword(ctx context.Context, id uint64, hash string, changedAt time.Time) error {
	return r.exec(ctx,
		`UPDATE users SET password_hash=?, password_changed_at=?, password_reset_token_hash=NULL,
			password_reset_expires_at=NULL WHERE id=?`, hash, changedAt, id)
}

func (r *UserRepo) UpdateProfile(ctx context.Context, id uint64, fullName, email string, phone *string) error {
	err := r.exec(ctx, "UPDATE users SET full_name=?, email=?, phone=? WHERE id=?",
		fullName, normalizeEmail(email), phone, id)
	if isDuplicate(err) {
		return ErrDuplicate
	}
	return err
}

// LinkGoogle attaches a Google subject to an existing account and marks
// it verified, since Google already confirmed the address.
func (r *UserRepo) LinkGoogle(ctx context.Context, id uint64, googleID string) error {
	err := r.exec(ctx, "UPDATE users SET google_id=?, verified=1 WHERE id=?", googleID, id)
	if isDuplicate(err) {
		return ErrDuplicate
	}
	return err
}

func (r *UserRepo) SetStatus(ctx context.Context, id uint64, status model.UserStatus) error {
	return r.exec(ctx, "UPDATE users SET status=? WHERE id=?", status, id)
}

// ListByStatus returns non-admin users, optionally filtered by status.
func (r *UserRepo) ListByStatus(ctx context.Context, status *model.UserStatus) ([]model.User, error) {
	q := "SELECT " + userColumns + " FROM users WHERE role='user'"
	args := []any{}
	if status != nil {
		q += " AND status=?"
		args = append(args, *status)
	}
	q += " ORDER BY id"
	rows, err := r.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// exec runs a single-row update and maps "no row matched" to ErrNotFound.
func (r *UserRepo) exec(ctx context.Context, q string, args ...any) error {
	return execOne(ctx, r.DB, q, args...)
}
