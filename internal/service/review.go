package service

import (
	"context"
	"strings"

	"github.com/iliyamo/college-housing/internal/apperr"
	"github.com/iliyamo/college-housing/internal/logging"
	"github.com/iliyamo/college-housing/internal/model"
	"github.com/iliyamo/college-housing/internal/repository"
)

// ReviewService gates reviews on a completed visit and keeps the unit's
// rating aggregate in step with every review mutation.
type ReviewService struct {
	store repository.Store
	log   logging.Logger
}

func NewReviewService(store repository.Store, log logging.Logger) *ReviewService {
	return &ReviewService{store: store, log: log.With("service", "reviews")}
}

// ReviewInput is the body of a new review.
type ReviewInput struct {
	Rating int
	Review string
}

func validRating(r int) bool { return r >= model.MinRating && r <= model.MaxRating }

// AddReview lets a renter with a completed appointment review a unit once.
func (s *ReviewService) AddReview(ctx context.Context, author model.User, unitID uint64, in ReviewInput) (model.Review, error) {
	if !validRating(in.Rating) {
		return model.Review{}, apperr.Validation("rating must be between 1 and 5")
	}
	text := strings.TrimSpace(in.Review)
	if text == "" {
		return model.Review{}, apperr.Validation("review must have comment")
	}
	unit, err := s.store.Units().Get(ctx, unitID, repository.ScopeActiveOnly)
	if err != nil {
		return model.Review{}, lookupErr(err, "there is no unit with that id")
	}
	if unit.OwnerID == author.ID {
		return model.Review{}, apperr.Forbidden("you cannot review your own unit")
	}

	rv := model.Review{AuthorID: author.ID, UnitID: unit.ID, Review: text, Rating: in.Rating, Active: true}
	err = s.store.InTx(ctx, func(ctx context.Context, tx repository.Store) error {
		// Lock the unit row before any read so reviews of one unit run one
		// at a time; the duplicate check and the recomputed aggregate then
		// see every earlier committed review.
		if err := tx.Units().Lock(ctx, unit.ID); err != nil {
			return lookupErr(err, "there is no unit with that id")
		}
		visited, err := tx.Appointments().HasWithStatus(ctx, author.ID, unit.ID, model.AppointmentCompleted)
		if err != nil {
			return err
		}
		if !visited {
			return apperr.Forbidden("you can only review units you have visited")
		}
		dup, err := tx.Reviews().HasActive(ctx, author.ID, unit.ID)
		if err != nil {
			return err
		}
		if dup {
			return apperr.Conflict("you have already reviewed this unit")
		}
		if err := tx.Reviews().Create(ctx, &rv); err != nil {
			return err
		}
		return recompute(ctx, tx, unit.ID)
	})
	if err != nil {
		return model.Review{}, internalErr("could not save the review", err)
	}
	return rv, nil
}

// authored loads an active review and checks that actor may change it.
// Admins may change any review.
func (s *ReviewService) authored(ctx context.Context, actor model.User, reviewID uint64) (model.Review, error) {
	rv, err := s.store.Reviews().Get(ctx, reviewID)
	if err != nil {
		return model.Review{}, lookupErr(err, "there is no review with that id")
	}
	if rv.AuthorID != actor.ID && !actor.IsAdmin() {
		return model.Review{}, apperr.Forbidden("you are not the author of this review")
	}
	return rv, nil
}

// UpdateReview changes the text and/or rating of a review.
func (s *ReviewService) UpdateReview(ctx context.Context, actor model.User, reviewID uint64, patch model.ReviewPatch) (model.Review, error) {
	if patch.Review == nil && patch.Rating == nil {
		return model.Review{}, apperr.Validation("provide a review or a rating to update")
	}
	if patch.Rating != nil && !validRating(*patch.Rating) {
		return model.Review{}, apperr.Validation("rating must be between 1 and 5")
	}
	if patch.Review != nil {
		text := strings.TrimSpace(*patch.Review)
		if text == "" {
			return model.Review{}, apperr.Validation("review must have comment")
		}
		patch.Review = &text
	}
	rv, err := s.authored(ctx, actor, reviewID)
	if err != nil {
		return model.Review{}, err
	}

	err = s.store.InTx(ctx, func(ctx context.Context, tx repository.Store) error {
		if err := tx.Units().Lock(ctx, rv.UnitID); err != nil {
			return err
		}
		if err := tx.Reviews().Update(ctx, rv.ID, patch); err != nil {
			return err
		}
		return recompute(ctx, tx, rv.UnitID)
	})
	if err != nil {
		return model.Review{}, internalErr("could not update the review", err)
	}
	if patch.Review != nil {
		rv.Review = *patch.Review
	}
	if patch.Rating != nil {
		rv.Rating = *patch.Rating
	}
	return rv, nil
}

// DeleteReview soft-deletes a review.
func (s *ReviewService) DeleteReview(ctx context.Context, actor model.User, reviewID uint64) error {
	rv, err := s.authored(ctx, actor, reviewID)
	if err != nil {
		return err
	}
	err = s.store.InTx(ctx, func(ctx context.Context, tx repository.Store) error {
		if err := tx.Units().Lock(ctx, rv.UnitID); err != nil {
			return err
		}
		if err := tx.Reviews().Deactivate(ctx, rv.ID); err != nil {
			return err
		}
		return recompute(ctx, tx, rv.UnitID)
	})
	if err != nil {
		return internalErr("could not delete the review", err)
	}
	s.log.Info(ctx, "review deleted", "review_id", rv.ID, "unit_id", rv.UnitID, "actor_id", actor.ID)
	return nil
}

// Recompute rewrites the rating aggregate of a unit from its active reviews.
func (s *ReviewService) Recompute(ctx context.Context, unitID uint64) (model.RatingSummary, error) {
	var sum model.RatingSummary
	err := s.store.InTx(ctx, func(ctx context.Context, tx repository.Store) error {
		var err error
		sum, err = summarize(ctx, tx, unitID)
		if err != nil {
			return err
		}
		return tx.Units().UpdateRating(ctx, unitID, sum)
	})
	if err != nil {
		return model.RatingSummary{}, lookupErr(err, "there is no unit with that id")
	}
	return sum, nil
}

// ListForUnit returns the active reviews of a unit visible to the public.
func (s *ReviewService) ListForUnit(ctx context.Context, unitID uint64) ([]model.Review, error) {
	if _, err := s.store.Units().Get(ctx, unitID, repository.ScopeActiveOnly); err != nil {
		return nil, lookupErr(err, "there is no unit with that id")
	}
	list, err := s.store.Reviews().ListActiveByUnit(ctx, unitID)
	if err != nil {
		return nil, internalErr("could not list reviews", err)
	}
	return list, nil
}

func summarize(ctx context.Context, tx repository.Store, unitID uint64) (model.RatingSummary, error) {
	sum, err := tx.Reviews().Summary(ctx, unitID)
	if err != nil {
		return model.RatingSummary{}, err
	}
	if sum.Quantity == 0 {
		return model.RatingSummary{}, nil
	}
	switch {
	case sum.Average < 0:
		sum.Average = 0
	case sum.Average > model.MaxRating:
		sum.Average = model.MaxRating
	}
	return sum, nil
}

func recompute(ctx context.Context, tx repository.Store, unitID uint64) error {
	sum, err := summarize(ctx, tx, unitID)
	if err != nil {
		return err
	}
	return tx.Units().UpdateRating(ctx, unitID, sum)
}
