package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/college-housing/internal/apperr"
	"github.com/iliyamo/college-housing/internal/model"
	"github.com/iliyamo/college-housing/internal/service"
)

// UserHandler serves the caller's profile, favorites and the admin user
// management endpoints.
type UserHandler struct {
	Users *service.UserService
}

func NewUserHandler(users *service.UserService) *UserHandler { return &UserHandler{Users: users} }

type updateMeReq struct {
	FullName *string `json:"full_name" validate:"omitempty,min=3,max=40"`
	Email    *string `json:"email" validate:"omitempty,email"`
	Phone    *string `json:"phone"`
	// rejected outright so a client cannot think it changed the password here
	Password *string `json:"password"`
}

type favoriteReq struct {
	UnitID uint64 `json:"unit_id" validate:"required"`
}

func (h *UserHandler) Me(c echo.Context) error {
	u, err := getUser(c)
	if err != nil {
		return err
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	me, err := h.Users.Me(ctx, u)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"user": toUser(me)})
}

func (h *UserHandler) UpdateMe(c echo.Context) error {
	u, err := getUser(c)
	if err != nil {
		return err
	}
	var req updateMeReq
	if err := bind(c, &req); err != nil {
		return err
	}
	if req.Password != nil {
		return apperr.Validation("this route is not for password updates, please use /updateMyPassword")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	me, err := h.Users.UpdateMe(ctx, u, service.ProfilePatch{FullName: req.FullName, Email: req.Email, Phone: req.Phone})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"user": toUser(me)})
}

// DeleteMe deactivates the account and every unit it owns.
func (h *UserHandler) DeleteMe(c echo.Context) error {
	u, err := getUser(c)
	if err != nil {
		return err
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	if err := h.Users.DeleteMe(ctx, u); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *UserHandler) ListFavorites(c echo.Context) error {
	u, err := getUser(c)
	if err != nil {
		return err
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	units, err := h.Users.ListFavorites(ctx, u)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"results": len(units), "favorites": toUnits(units, false)})
}

func (h *UserHandler) AddFavorite(c echo.Context) error {
	u, err := getUser(c)
	if err != nil {
		return err
	}
	var req favoriteReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	if err := h.Users.AddFavorite(ctx, u, req.UnitID); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, echo.Map{"message": "unit added to favorites"})
}

func (h *UserHandler) RemoveFavorite(c echo.Context) error {
	u, err := getUser(c)
	if err != nil {
		return err
	}
	unitID, err := paramID(c, "unitId")
	if err != nil {
		return err
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	if err := h.Users.RemoveFavorite(ctx, u, unitID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// ----- admin -----

// ListUsers accepts an optional ?status= filter.
func (h *UserHandler) ListUsers(c echo.Context) error {
	var status *model.UserStatus
	if s := c.QueryParam("status"); s != "" {
		st := model.UserStatus(s)
		status = &st
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	users, err := h.Users.ListUsers(ctx, status)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"results": len(users), "users": toUsers(users)})
}

func (h *UserHandler) ListSuspended(c echo.Context) error {
	ctx, cancel := withTimeout(c)
	defer cancel()
	users, err := h.Users.ListSuspended(ctx)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"results": len(users), "users": toUsers(users)})
}

func (h *UserHandler) GetUser(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	u, err := h.Users.GetUser(ctx, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"user": toUser(u)})
}

func (h *UserHandler) SuspendUser(c echo.Context) error {
	return h.changeStatus(c, h.Users.Suspend)
}

func (h *UserHandler) ActivateUser(c echo.Context) error {
	return h.changeStatus(c, h.Users.Activate)
}

type userStatusFn func(ctx context.Context, admin model.User, id uint64) (model.User, error)

func (h *UserHandler) changeStatus(c echo.Context, fn userStatusFn) error {
	admin, err := getUser(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	u, err := fn(ctx, admin, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"user": toUser(u)})
}
