package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/college-housing/internal/middleware"
	"github.com/iliyamo/college-housing/internal/service"
)

// AuthHandler exposes signup, login, token and password endpoints.
type AuthHandler struct {
	Auth *service.AuthService
}

func NewAuthHandler(auth *service.AuthService) *AuthHandler { return &AuthHandler{Auth: auth} }

// ----- DTOs -----

type signupReq struct {
	FullName        string `json:"full_name" validate:"required,min=3,max=40"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=8"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
	Phone           string `json:"phone"`
}

type loginReq struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type codeReq struct {
	Code string `json:"code" validate:"required"`
}

type emailReq struct {
	Email string `json:"email" validate:"required,email"`
}

type refreshReq struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type logoutReq struct {
	RefreshToken string `json:"refresh_token"`
}

type resetReq struct {
	Password        string `json:"password" validate:"required,min=8"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

type updatePasswordReq struct {
	PasswordCurrent string `json:"password_current" validate:"required"`
	Password        string `json:"password" validate:"required,min=8"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

// Signup: create an inactive account and mail the verification code.
func (h *AuthHandler) Signup(c echo.Context) error {
	var req signupReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	u, err := h.Auth.Signup(ctx, service.SignupInput{
		FullName: req.FullName, Email: req.Email, Password: req.Password,
		PasswordConfirm: req.PasswordConfirm, Phone: req.Phone,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"message": "verification code sent to your email",
		"user":    toUser(u),
	})
}

// VerifyEmail: confirm the mailed code and log the user in.
func (h *AuthHandler) VerifyEmail(c echo.Context) error {
	var req codeReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	s, err := h.Auth.VerifyEmail(ctx, req.Code)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toAuth(s))
}

func (h *AuthHandler) ResendVerification(c echo.Context) error {
	var req emailReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	if err := h.Auth.ResendVerification(ctx, req.Email); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "verification code sent to your email"})
}

// Login: verify credentials and return a new token pair.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	s, err := h.Auth.Login(ctx, req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toAuth(s))
}

// Refresh: validate by hash, revoke old, issue new.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	s, err := h.Auth.Refresh(ctx, req.RefreshToken)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toAuth(s))
}

// RefreshAccess returns a new access token and keeps the refresh token.
func (h *AuthHandler) RefreshAccess(c echo.Context) error {
	var req refreshReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	access, err := h.Auth.RefreshAccess(ctx, req.RefreshToken)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"access": accessPart(access)})
}

// Logout revokes the refresh token in the body or, when the body is empty,
// every session of the bearer.  Runs behind OptionalAuth.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req logoutReq
	if c.Request().ContentLength != 0 {
		if err := bind(c, &req); err != nil {
			return err
		}
	}
	var uid uint64
	if u, ok := middleware.CurrentUser(c); ok {
		uid = u.ID
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	if err := h.Auth.Logout(ctx, uid, req.RefreshToken); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// GoogleLogin redirects to the Google consent screen.
func (h *AuthHandler) GoogleLogin(c echo.Context) error {
	url, err := h.Auth.GoogleLoginURL()
	if err != nil {
		return err
	}
	return c.Redirect(http.StatusTemporaryRedirect, url)
}

func (h *AuthHandler) GoogleCallback(c echo.Context) error {
	ctx, cancel := withTimeout(c)
	defer cancel()
	s, err := h.Auth.GoogleCallback(ctx, c.QueryParam("state"), c.QueryParam("code"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toAuth(s))
}

func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	var req emailReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	if err := h.Auth.ForgotPassword(ctx, req.Email); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "reset code sent to your email"})
}

// ResetPassword takes the mailed code from the path.
func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req resetReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	s, err := h.Auth.ResetPassword(ctx, c.Param("code"), req.Password, req.PasswordConfirm)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toAuth(s))
}

func (h *AuthHandler) UpdatePassword(c echo.Context) error {
	u, err := getUser(c)
	if err != nil {
		return err
	}
	var req updatePasswordReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	s, err := h.Auth.UpdatePassword(ctx, u, req.PasswordCurrent, req.Password, req.PasswordConfirm)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toAuth(s))
}
