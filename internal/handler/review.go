package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/college-housing/internal/model"
	"github.com/iliyamo/college-housing/internal/service"
)

type ReviewHandler struct {
	Reviews *service.ReviewService
}

func NewReviewHandler(reviews *service.ReviewService) *ReviewHandler {
	return &ReviewHandler{Reviews: reviews}
}

type addReviewReq struct {
	Rating int    `json:"rating" validate:"required,min=1,max=5"`
	Review string `json:"review" validate:"required"`
}

type updateReviewReq struct {
	Rating *int    `json:"rating" validate:"omitempty,min=1,max=5"`
	Review *string `json:"review" validate:"omitempty,min=1"`
}

func (h *ReviewHandler) List(c echo.Context) error {
	unitID, err := paramID(c, "unitId")
	if err != nil {
		return err
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	rs, err := h.Reviews.ListForUnit(ctx, unitID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"results": len(rs), "reviews": toReviews(rs)})
}

// Add: only renters with a completed visit may review.
func (h *ReviewHandler) Add(c echo.Context) error {
	u, err := getUser(c)
	if err != nil {
		return err
	}
	unitID, err := paramID(c, "unitId")
	if err != nil {
		return err
	}
	var req addReviewReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	r, err := h.Reviews.AddReview(ctx, u, unitID, service.ReviewInput{Rating: req.Rating, Review: req.Review})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, echo.Map{"review": toReview(r)})
}

func (h *ReviewHandler) Update(c echo.Context) error {
	u, err := getUser(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "reviewId")
	if err != nil {
		return err
	}
	var req updateReviewReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	r, err := h.Reviews.UpdateReview(ctx, u, id, model.ReviewPatch{Review: req.Review, Rating: req.Rating})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"review": toReview(r)})
}

func (h *ReviewHandler) Delete(c echo.Context) error {
	u, err := getUser(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "reviewId")
	if err != nil {
		return err
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	if err := h.Reviews.DeleteReview(ctx, u, id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
