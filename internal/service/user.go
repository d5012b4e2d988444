package service

import (
	"context"
	"errors"
	"strings"

	"github.com/iliyamo/college-housing/internal/apperr"
	"github.com/iliyamo/college-housing/internal/logging"
	"github.com/iliyamo/college-housing/internal/model"
	"github.com/iliyamo/college-housing/internal/repository"
)

// UserService covers profile management, favorites and the admin view of
// accounts.
type UserService struct {
	store repository.Store
	log   logging.Logger
}

func NewUserService(store repository.Store, log logging.Logger) *UserService {
	return &UserService{store: store, log: log.With("service", "users")}
}

// ProfilePatch holds the fields a user may change on their own account.
type ProfilePatch struct {
	FullName *string
	Email    *string
	Phone    *string
}

// Me reloads the caller's account.
func (s *UserService) Me(ctx context.Context, user model.User) (model.User, error) {
	u, err := s.store.Users().GetByID(ctx, user.ID)
	if err != nil {
		return model.User{}, lookupErr(err, "the user belonging to this token no longer exists")
	}
	return u, nil
}

// UpdateMe changes name, email or phone.  Passwords go through
// AuthService.UpdatePassword.
func (s *UserService) UpdateMe(ctx context.Context, user model.User, p ProfilePatch) (model.User, error) {
	if p.FullName == nil && p.Email == nil && p.Phone == nil {
		return model.User{}, apperr.Validation("nothing to update")
	}
	u, err := s.Me(ctx, user)
	if err != nil {
		return model.User{}, err
	}
	if p.FullName != nil {
		if err := validName(*p.FullName); err != nil {
			return model.User{}, err
		}
		u.FullName = strings.TrimSpace(*p.FullName)
	}
	if p.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*p.Email))
		if err := validEmail(email); err != nil {
			return model.User{}, err
		}
		u.Email = email
	}
	if p.Phone != nil {
		u.Phone = optional(*p.Phone)
	}
	if err := s.store.Users().UpdateProfile(ctx, u.ID, u.FullName, u.Email, u.Phone); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return model.User{}, apperr.Conflict("this email or phone is already in use")
		}
		return model.User{}, internalErr("could not update the profile", err)
	}
	return u, nil
}

// DeleteMe deactivates the account together with its active units and
// revokes every session.
func (s *UserService) DeleteMe(ctx context.Context, user model.User) error {
	var units int64
	err := s.store.InTx(ctx, func(ctx context.Context, tx repository.Store) error {
		if err := tx.Users().SetStatus(ctx, user.ID, model.UserInactive); err != nil {
			return err
		}
		n, err := tx.Units().DeactivateByOwner(ctx, user.ID)
		if err != nil {
			return err
		}
		units = n
		return tx.Tokens().RevokeAllForUser(ctx, user.ID)
	})
	if err != nil {
		return lookupErr(err, "the user belonging to this token no longer exists")
	}
	s.log.Info(ctx, "account deactivated", "user_id", user.ID, "units", units)
	return nil
}

// AddFavorite bookmarks an active unit that the user does not own.
func (s *UserService) AddFavorite(ctx context.Context, user model.User, unitID uint64) error {
	unit, err := s.store.Units().Get(ctx, unitID, repository.ScopeActiveOnly)
	if err != nil {
		return lookupErr(err, "there is no unit with that id")
	}
	if unit.OwnerID == user.ID {
		return apperr.Forbidden("you cannot add your own unit to favorites")
	}
	if err := s.store.Favorites().Add(ctx, user.ID, unit.ID); err != nil {
		return internalErr("could not add the favorite", err)
	}
	return nil
}

func (s *UserService) RemoveFavorite(ctx context.Context, user model.User, unitID uint64) error {
	if err := s.store.Favorites().Remove(ctx, user.ID, unitID); err != nil {
		return lookupErr(err, "this unit is not in your favorites")
	}
	return nil
}

func (s *UserService) ListFavorites(ctx context.Context, user model.User) ([]model.Unit, error) {
	list, err := s.store.Favorites().List(ctx, user.ID)
	if err != nil {
		return nil, internalErr("could not list favorites", err)
	}
	return list, nil
}

// ListUsers returns non-admin accounts, optionally filtered by status.
func (s *UserService) ListUsers(ctx context.Context, status *model.UserStatus) ([]model.User, error) {
	if status != nil && !status.Valid() {
		return nil, apperr.Validation("unknown user status")
	}
	list, err := s.store.Users().ListByStatus(ctx, status)
	if err != nil {
		return nil, internalErr("could not list users", err)
	}
	return list, nil
}

// ListSuspended is ListUsers restricted to suspended accounts.
func (s *UserService) ListSuspended(ctx context.Context) ([]model.User, error) {
	st := model.UserSuspended
	return s.ListUsers(ctx, &st)
}

func (s *UserService) GetUser(ctx context.Context, id uint64) (model.User, error) {
	u, err := s.store.Users().GetByID(ctx, id)
	if err != nil {
		return model.User{}, lookupErr(err, "there is no user with that id")
	}
	return u, nil
}

// Suspend blocks a user and revokes their sessions.
func (s *UserService) Suspend(ctx context.Context, admin model.User, id uint64) (model.User, error) {
	return s.setStatus(ctx, admin, id, model.UserSuspended)
}

// Activate lifts a suspension.
func (s *UserService) Activate(ctx context.Context, admin model.User, id uint64) (model.User, error) {
	return s.setStatus(ctx, admin, id, model.UserActive)
}

func (s *UserService) setStatus(ctx context.Context, admin model.User, id uint64, next model.UserStatus) (model.User, error) {
	u, err := s.GetUser(ctx, id)
	if err != nil {
		return model.User{}, err
	}
	if u.IsAdmin() {
		return model.User{}, apperr.Forbidden("admin accounts cannot be changed")
	}
	if u.Status == next {
		return u, nil
	}
	if !u.Status.CanTransition(next) {
		return model.User{}, apperr.Conflict("cannot move a " + string(u.Status) + " user to " + string(next))
	}
	err = s.store.InTx(ctx, func(ctx context.Context, tx repository.Store) error {
		if err := tx.Users().SetStatus(ctx, u.ID, next); err != nil {
			return err
		}
		if next == model.UserSuspended {
			return tx.Tokens().RevokeAllForUser(ctx, u.ID)
		}
		return nil
	})
	if err != nil {
		return model.User{}, internalErr("could not update the user", err)
	}
	u.Status = next
	s.log.Info(ctx, "user status changed", "user_id", u.ID, "status", string(next), "admin_id", admin.ID)
	return u, nil
}
