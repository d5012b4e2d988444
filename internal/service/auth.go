package service

import (
	"context"
	"errors"
	"fmt"
	netmail "net/mail"
	"strings"
	"time"

	"github.com/iliyamo/college-housing/internal/apperr"
	"github.com/iliyamo/college-housing/internal/logging"
	"github.com/iliyamo/college-housing/internal/mail"
	"github.com/iliyamo/college-housing/internal/model"
	"github.com/iliyamo/college-housing/internal/oauth"
	"github.com/iliyamo/college-housing/internal/repository"
	"github.com/iliyamo/college-housing/internal/utils"
)

// Name and password bounds.
const (
	MinNameLen     = 3
	MaxNameLen     = 40
	MinPasswordLen = 8
	stateTTL       = 10 * time.Minute
)

// AuthConfig carries the token and hashing settings of the auth flows.
type AuthConfig struct {
	JWTSecret      string
	AccessTTLMin   int
	RefreshTTLDays int
	BcryptCost     int
}

// TokenPair is what every successful login hands back to the client.
type TokenPair struct {
	Access  utils.AccessToken
	Refresh utils.RefreshToken
}

// Session is an authenticated user with a fresh token pair.
type Session struct {
	User   model.User
	Tokens TokenPair
}

// AuthService implements signup, verification, login, token rotation,
// Google login and password management.
type AuthService struct {
	store repository.Store
	notifier
	google oauth.Provider
	cfg    AuthConfig
	now    func() time.Time
}

// NewAuthService wires the auth flows.  google may be nil when Google login
// is not configured.
func NewAuthService(store repository.Store, m mail.Mailer, google oauth.Provider, cfg AuthConfig, log logging.Logger) *AuthService {
	return &AuthService{
		store:    store,
		notifier: notifier{mailer: m, log: log.With("service", "auth")},
		google:   google,
		cfg:      cfg,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SignupInput is the registration form.
type SignupInput struct {
	FullName        string
	Email           string
	Password        string
	PasswordConfirm string
	Phone           string
}

func validName(name string) error {
	n := len([]rune(strings.TrimSpace(name)))
	if n < MinNameLen || n > MaxNameLen {
		return apperr.Validation(fmt.Sprintf("full name must be between %d and %d characters", MinNameLen, MaxNameLen))
	}
	return nil
}

func validEmail(email string) error {
	if _, err := netmail.ParseAddress(email); err != nil || !strings.Contains(email, "@") {
		return apperr.Validation("please provide a valid email")
	}
	return nil
}

func validPassword(password, confirm string) error {
	if len(password) < MinPasswordLen {
		return apperr.Validation(fmt.Sprintf("password must be at least %d characters", MinPasswordLen))
	}
	if password != confirm {
		return apperr.Validation("passwords are not the same")
	}
	return nil
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// Signup registers an inactive account and mails a verification code.
func (s *AuthService) Signup(ctx context.Context, in SignupInput) (model.User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if err := validName(in.FullName); err != nil {
		return model.User{}, err
	}
	if err := validEmail(email); err != nil {
		return model.User{}, err
	}
	if err := validPassword(in.Password, in.PasswordConfirm); err != nil {
		return model.User{}, err
	}
	hash, err := utils.HashPassword(in.Password, s.cfg.BcryptCost)
	if err != nil {
		return model.User{}, apperr.Internal("could not hash the password", err)
	}
	code, err := utils.NewOneTimeCode()
	if err != nil {
		return model.User{}, apperr.Internal("could not issue a verification code", err)
	}

	u := model.User{
		FullName:            strings.TrimSpace(in.FullName),
		Email:               email,
		Phone:               optional(in.Phone),
		PasswordHash:        hash,
		Role:                model.RoleUser,
		Status:              model.UserInactive,
		VerificationHash:    &code.Hash,
		VerificationExpires: &code.Exp,
	}
	if err := s.store.Users().Create(ctx, &u); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return model.User{}, apperr.Conflict("this email or phone is already in use")
		}
		return model.User{}, apperr.Internal("could not create the account", err)
	}
	if err := s.mailer.Send(ctx, mail.KindVerification, recipient(u), mail.Data{Name: u.FullName, Code: code.Raw}); err != nil {
		return model.User{}, apperr.Internal("there was an error sending the email, try again later", err)
	}
	s.log.Info(ctx, "user signed up", "user_id", u.ID)
	return u, nil
}

// ResendVerification mails a fresh verification code to an unverified
// account.
func (s *AuthService) ResendVerification(ctx context.Context, email string) error {
	u, err := s.store.Users().GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return lookupErr(err, "there is no user with that email address")
	}
	if u.Verified {
		return apperr.Conflict("this email is already verified")
	}
	code, err := utils.NewOneTimeCode()
	if err != nil {
		return apperr.Internal("could not issue a verification code", err)
	}
	if err := s.store.Users().SetVerification(ctx, u.ID, &code.Hash, &code.Exp); err != nil {
		return internalErr("could not save the verification code", err)
	}
	if err := s.mailer.Send(ctx, mail.KindVerification, recipient(u), mail.Data{Name: u.FullName, Code: code.Raw}); err != nil {
		_ = s.store.Users().SetVerification(ctx, u.ID, nil, nil)
		return apperr.Internal("there was an error sending the email, try again later", err)
	}
	return nil
}

// VerifyEmail confirms the address matching code and activates the account.
func (s *AuthService) VerifyEmail(ctx context.Context, code string) (Session, error) {
	u, err := s.store.Users().GetByVerificationHash(ctx, utils.HashToken(strings.TrimSpace(code)), s.now())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return Session{}, apperr.Validation("code is invalid or has expired")
		}
		return Session{}, internalErr("could not verify the email", err)
	}
	if err := s.store.Users().MarkVerified(ctx, u.ID); err != nil {
		return Session{}, internalErr("could not verify the email", err)
	}
	u.Verified, u.Status, u.VerificationHash, u.VerificationExpires = true, model.UserActive, nil, nil
	return s.issue(ctx, u)
}

// Login checks the credentials of a verified account.  A user who deleted
// their account is reactivated by logging in again; suspended users are
// refused.
func (s *AuthService) Login(ctx context.Context, email, password string) (Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return Session{}, apperr.Validation("please provide email and password")
	}
	u, err := s.store.Users().GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return Session{}, apperr.Unauthenticated("incorrect email or password")
		}
		return Session{}, internalErr("could not log in", err)
	}
	if u.PasswordHash == "" || !utils.VerifyPassword(u.PasswordHash, password) {
		return Session{}, apperr.Unauthenticated("incorrect email or password")
	}
	if !u.Verified {
		return Session{}, apperr.Unauthenticated("you have to verify your email first")
	}
	if u, err = s.admit(ctx, u); err != nil {
		return Session{}, err
	}
	return s.issue(ctx, u)
}

// admit refuses suspended users and reactivates inactive ones.
func (s *AuthService) admit(ctx context.Context, u model.User) (model.User, error) {
	switch u.Status {
	case model.UserSuspended:
		return model.User{}, apperr.Forbidden("your account has been suspended")
	case model.UserInactive:
		if err := s.store.Users().SetStatus(ctx, u.ID, model.UserActive); err != nil {
			return model.User{}, internalErr("could not reactivate the account", err)
		}
		u.Status = model.UserActive
		s.log.Info(ctx, "account reactivated", "user_id", u.ID)
	}
	return u, nil
}

// issue mints an access token and stores a new refresh token for u.
func (s *AuthService) issue(ctx context.Context, u model.User) (Session, error) {
	access, err := utils.NewAccessToken(s.cfg.JWTSecret, u.ID, u.Role, s.cfg.AccessTTLMin)
	if err != nil {
		return Session{}, apperr.Internal("issue access failed", err)
	}
	refresh, err := utils.NewRefreshToken(s.cfg.RefreshTTLDays)
	if err != nil {
		return Session{}, apperr.Internal("issue refresh failed", err)
	}
	if err := s.store.Tokens().StoreRefresh(ctx, u.ID, utils.HashToken(refresh.Raw), refresh.Exp); err != nil {
		return Session{}, apperr.Internal("save refresh failed", err)
	}
	u.PasswordHash = ""
	return Session{User: u, Tokens: TokenPair{Access: access, Refresh: refresh}}, nil
}

// refreshOwner resolves the active user behind a raw refresh token.
func (s *AuthService) refreshOwner(ctx context.Context, raw string) (model.User, string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return model.User{}, "", apperr.Validation("refresh_token required")
	}
	hash := utils.HashToken(raw)
	userID, err := s.store.Tokens().ValidateRefresh(ctx, hash)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.User{}, "", apperr.Unauthenticated("invalid refresh")
		}
		return model.User{}, "", internalErr("could not validate the refresh token", err)
	}
	u, err := s.store.Users().GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.User{}, "", apperr.Unauthenticated("invalid refresh")
		}
		return model.User{}, "", internalErr("load user failed", err)
	}
	if u.Status != model.UserActive {
		return model.User{}, "", apperr.Unauthenticated("invalid refresh")
	}
	return u, hash, nil
}

// Refresh rotates a refresh token: the old one is revoked and a new pair
// is issued.
func (s *AuthService) Refresh(ctx context.Context, raw string) (Session, error) {
	u, hash, err := s.refreshOwner(ctx, raw)
	if err != nil {
		return Session{}, err
	}
	if err := s.store.Tokens().RevokeByHash(ctx, hash); err != nil {
		return Session{}, internalErr("revoke refresh failed", err)
	}
	return s.issue(ctx, u)
}

// RefreshAccess returns a new access token without rotating the refresh
// token.
func (s *AuthService) RefreshAccess(ctx context.Context, raw string) (utils.AccessToken, error) {
	u, _, err := s.refreshOwner(ctx, raw)
	if err != nil {
		return utils.AccessToken{}, err
	}
	access, err := utils.NewAccessToken(s.cfg.JWTSecret, u.ID, u.Role, s.cfg.AccessTTLMin)
	if err != nil {
		return utils.AccessToken{}, apperr.Internal("issue access failed", err)
	}
	return access, nil
}

// Logout revokes one refresh token when raw is given, otherwise every
// refresh token of userID.
func (s *AuthService) Logout(ctx context.Context, userID uint64, raw string) error {
	if raw = strings.TrimSpace(raw); raw != "" {
		hash := utils.HashToken(raw)
		if _, err := s.store.Tokens().ValidateRefresh(ctx, hash); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return apperr.Unauthenticated("invalid refresh")
			}
			return internalErr("could not validate the refresh token", err)
		}
		if err := s.store.Tokens().RevokeByHash(ctx, hash); err != nil {
			return internalErr("revoke refresh failed", err)
		}
		return nil
	}
	if userID == 0 {
		return apperr.Validation("refresh_token or bearer token required")
	}
	if err := s.store.Tokens().RevokeAllForUser(ctx, userID); err != nil {
		return internalErr("revoke refresh failed", err)
	}
	return nil
}

// GoogleLoginURL returns the consent URL carrying a signed state token.
func (s *AuthService) GoogleLoginURL() (string, error) {
	if s.google == nil {
		return "", apperr.NotFound("google login is not configured")
	}
	state, err := utils.NewStateToken(s.cfg.JWTSecret, stateTTL)
	if err != nil {
		return "", apperr.Internal("could not start google login", err)
	}
	return s.google.AuthCodeURL(state), nil
}

// GoogleCallback completes the code flow.  Existing accounts are matched by
// Google id, then by email (and linked); otherwise a verified, active user
// is created.
func (s *AuthService) GoogleCallback(ctx context.Context, state, code string) (Session, error) {
	if s.google == nil {
		return Session{}, apperr.NotFound("google login is not configured")
	}
	if err := utils.VerifyStateToken(s.cfg.JWTSecret, state); err != nil {
		return Session{}, apperr.Unauthenticated("invalid oauth state")
	}
	if strings.TrimSpace(code) == "" {
		return Session{}, apperr.Validation("missing authorization code")
	}
	p, err := s.google.Exchange(ctx, code)
	if err != nil {
		if errors.Is(err, oauth.ErrEmailNotVerified) {
			return Session{}, apperr.Unauthenticated("your google email is not verified")
		}
		return Session{}, apperr.Unauthenticated("google login failed")
	}

	users := s.store.Users()
	u, err := users.GetByGoogleID(ctx, p.Subject)
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrNotFound):
		u, err = s.googleAccount(ctx, p)
		if err != nil {
			return Session{}, err
		}
	default:
		return Session{}, internalErr("google login failed", err)
	}
	if u, err = s.admit(ctx, u); err != nil {
		return Session{}, err
	}
	return s.issue(ctx, u)
}

func (s *AuthService) googleAccount(ctx context.Context, p oauth.Profile) (model.User, error) {
	users := s.store.Users()
	u, err := users.GetByEmail(ctx, p.Email)
	if err == nil {
		if err := users.LinkGoogle(ctx, u.ID, p.Subject); err != nil {
			return model.User{}, internalErr("could not link the google account", err)
		}
		u.GoogleID, u.Verified = &p.Subject, true
		return u, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return model.User{}, internalErr("google login failed", err)
	}

	u = model.User{
		FullName: googleName(p),
		Email:    p.Email,
		Photo:    p.Picture,
		Role:     model.RoleUser,
		Status:   model.UserActive,
		Verified: true,
		GoogleID: &p.Subject,
	}
	if err := users.Create(ctx, &u); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return model.User{}, apperr.Conflict("this account already exists")
		}
		return model.User{}, internalErr("could not create the account", err)
	}
	s.log.Info(ctx, "user signed up with google", "user_id", u.ID)
	return u, nil
}

// googleName fits the profile name into the stored bounds, falling back to
// the local part of the email.
func googleName(p oauth.Profile) string {
	name := strings.TrimSpace(p.Name)
	if len([]rune(name)) < MinNameLen {
		name, _, _ = strings.Cut(p.Email, "@")
	}
	r := []rune(name)
	if len(r) > MaxNameLen {
		r = r[:MaxNameLen]
	}
	for len(r) < MinNameLen {
		r = append(r, '_')
	}
	return string(r)
}

// ForgotPassword mails a reset code.  If the mail cannot be sent the code
// is cleared again.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	u, err := s.store.Users().GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return lookupErr(err, "there is no user with that email address")
	}
	code, err := utils.NewOneTimeCode()
	if err != nil {
		return apperr.Internal("could not issue a reset code", err)
	}
	if err := s.store.Users().SetPasswordReset(ctx, u.ID, &code.Hash, &code.Exp); err != nil {
		return internalErr("could not save the reset code", err)
	}
	if err := s.mailer.Send(ctx, mail.KindPasswordReset, recipient(u), mail.Data{Name: u.FullName, Code: code.Raw}); err != nil {
		if cerr := s.store.Users().SetPasswordReset(ctx, u.ID, nil, nil); cerr != nil {
			s.log.Error(ctx, "reset code not cleared", "user_id", u.ID, "err", cerr)
		}
		return apperr.Internal("there was an error sending the email, try again later", err)
	}
	return nil
}

// ResetPassword sets a new password from a valid reset code and logs the
// user in.
func (s *AuthService) ResetPassword(ctx context.Context, code, password, confirm string) (Session, error) {
	u, err := s.store.Users().GetByResetHash(ctx, utils.HashToken(strings.TrimSpace(code)), s.now())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return Session{}, apperr.Validation("code is invalid or has expired")
		}
		return Session{}, internalErr("could not reset the password", err)
	}
	if err := validPassword(password, confirm); err != nil {
		return Session{}, err
	}
	if err := s.setPassword(ctx, u.ID, password); err != nil {
		return Session{}, err
	}
	if u, err = s.admit(ctx, u); err != nil {
		return Session{}, err
	}
	return s.issue(ctx, u)
}

// UpdatePassword changes the password of a logged in user after checking
// the current one.  Every existing session is revoked and a new one issued.
func (s *AuthService) UpdatePassword(ctx context.Context, user model.User, current, password, confirm string) (Session, error) {
	u, err := s.store.Users().GetByID(ctx, user.ID)
	if err != nil {
		return Session{}, lookupErr(err, "the user belonging to this token no longer exists")
	}
	if u.PasswordHash == "" || !utils.VerifyPassword(u.PasswordHash, current) {
		return Session{}, apperr.Unauthenticated("your current password is wrong")
	}
	if err := validPassword(password, confirm); err != nil {
		return Session{}, err
	}
	if err := s.setPassword(ctx, u.ID, password); err != nil {
		return Session{}, err
	}
	if err := s.store.Tokens().RevokeAllForUser(ctx, u.ID); err != nil {
		return Session{}, internalErr("revoke refresh failed", err)
	}
	return s.issue(ctx, u)
}

// setPassword stores a new hash.  password_changed_at is backdated by a
// second so the token issued right after still passes the auth gate.
func (s *AuthService) setPassword(ctx context.Context, id uint64, password string) error {
	hash, err := utils.HashPassword(password, s.cfg.BcryptCost)
	if err != nil {
		return apperr.Internal("could not hash the password", err)
	}
	if err := s.store.Users().UpdatePassword(ctx, id, hash, s.now().Add(-time.Second)); err != nil {
		return internalErr("could not update the password", err)
	}
	return nil
}
