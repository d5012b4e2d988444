package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/college-housing/internal/apperr"
	"github.com/iliyamo/college-housing/internal/model"
	"github.com/iliyamo/college-housing/internal/repository"
	"github.com/iliyamo/college-housing/internal/utils"
)

// UserLookup loads the account behind a token subject.
type UserLookup interface {
	GetByID(ctx context.Context, id uint64) (model.User, error)
}

func bearer(c echo.Context) (string, bool) {
	auth := c.Request().Header.Get(echo.HeaderAuthorization)
	if !strings.HasPrefix(auth, "Bearer ") {
		return "", false
	}
	raw := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	return raw, raw != ""
}

// authenticate resolves the user behind a raw access token.  The token must
// be valid, its user must still exist and be active, and the password must
// not have changed after the token was issued.
func authenticate(ctx context.Context, secret string, users UserLookup, raw string) (model.User, error) {
	claims, err := utils.ParseAccessToken(secret, raw)
	if err != nil {
		return model.User{}, apperr.Unauthenticated("invalid token, please log in again")
	}
	u, err := users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.User{}, apperr.Unauthenticated("the user belonging to this token no longer exists")
		}
		return model.User{}, apperr.Internal("load user failed", err)
	}
	switch u.Status {
	case model.UserActive:
	case model.UserSuspended:
		return model.User{}, apperr.Forbidden("your account has been suspended")
	default:
		return model.User{}, apperr.Unauthenticated("this account is no longer active")
	}
	if u.PasswordChangedAt != nil && u.PasswordChangedAt.After(claims.IssuedAt) {
		return model.User{}, apperr.Unauthenticated("user recently changed password, please log in again")
	}
	return u, nil
}

// JWTAuth requires a Bearer access token and stores the loaded user under
// "user", its id under "user_id" and its role under "role".
func JWTAuth(secret string, users UserLookup) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, ok := bearer(c)
			if !ok {
				return apperr.Unauthenticated("you are not logged in, please log in to get access")
			}
			u, err := authenticate(c.Request().Context(), secret, users, raw)
			if err != nil {
				return err
			}
			setUser(c, u)
			return next(c)
		}
	}
}

// OptionalAuth identifies the caller when a valid token is present and
// lets anonymous requests through otherwise.
func OptionalAuth(secret string, users UserLookup) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if raw, ok := bearer(c); ok {
				if u, err := authenticate(c.Request().Context(), secret, users, raw); err == nil {
					setUser(c, u)
				}
			}
			return next(c)
		}
	}
}
