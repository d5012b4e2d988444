package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/college-housing/internal/dbx"
	"github.com/iliyamo/college-housing/internal/model"
)

// ReviewRepository persists unit reviews.
type ReviewRepository interface {
	Create(ctx context.Context, rv *model.Review) error
	Get(ctx context.Context, id uint64) (model.Review, error)
	HasActive(ctx context.Context, authorID, unitID uint64) (bool, error)
	Update(ctx context.Context, id uint64, p model.ReviewPatch) error
	Deactivate(ctx context.Context, id uint64) error
	ListActiveByUnit(ctx context.Context, unitID uint64) ([]model.Review, error)
	Summary(ctx context.Context, unitID uint64) (model.RatingSummary, error)
}

type ReviewRepo struct{ DB dbx.DBTX }

func NewReviewRepo(db dbx.DBTX) *ReviewRepo { return &ReviewRepo{DB: db} }

const reviewColumns = "id, author_id, unit_id, review, rating, active, created_at, updated_at"

func scanReview(row rowScanner) (model.Review, error) {
	var rv model.Review
	err := row.Scan(&rv.ID, &rv.AuthorID, &rv.UnitID, &rv.Review, &rv.Rating, &rv.Active,
		&rv.CreatedAt, &rv.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Review{}, ErrNotFound
	}
	return rv, err
}

func (r *ReviewRepo) Create(ctx context.Context, rv *model.Review) error {
	rv.Active = true
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO reviews (author_id, unit_id, review, rating, active) VALUES (?,?,?,?,1)",
		rv.AuthorID, rv.UnitID, rv.Review, rv.Rating)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	rv.ID = uint64(id)
	return nil
}

// Get returns an active review; soft-deleted reviews are ErrNotFound.
func (r *ReviewRepo) Get(ctx context.Context, id uint64) (model.Review, error) {
	return scanReview(r.DB.QueryRowContext(ctx,
		"SELECT "+reviewColumns+" FROM reviews WHERE id=? AND active=1 LIMIT 1", id))
}

func (r *ReviewRepo) HasActive(ctx context.Context, authorID, unitID uint64) (bool, error) {
	var exists bool
	err := r.DB.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM reviews WHERE author_id=? AND unit_id=? AND active=1)",
		authorID, unitID).Scan(&exists)
	return exists, err
}

func (r *ReviewRepo) Update(ctx context.Context, id uint64, p model.ReviewPatch) error {
	switch {
	case p.Review != nil && p.Rating != nil:
		return execOne(ctx, r.DB, "UPDATE reviews SET review=?, rating=? WHERE id=? AND active=1", *p.Review, *p.Rating, id)
	case p.Review != nil:
		return execOne(ctx, r.DB, "UPDATE reviews SET review=? WHERE id=? AND active=1", *p.Review, id)
	case p.Rating != nil:
		return execOne(ctx, r.DB, "UPDATE reviews SET rating=? WHERE id=? AND active=1", *p.Rating, id)
	}
	return nil
}

// Deactivate soft-deletes a review.
func (r *ReviewRepo) Deactivate(ctx context.Context, id uint64) error {
	return execOne(ctx, r.DB, "UPDATE reviews SET active=0 WHERE id=? AND active=1", id)
}

func (r *ReviewRepo) ListActiveByUnit(ctx context.Context, unitID uint64) ([]model.Review, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+reviewColumns+" FROM reviews WHERE unit_id=? AND active=1 ORDER BY id DESC", unitID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Review{}
	for rows.Next() {
		rv, err := scanReview(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rv)
	}
	return out, rows.Err()
}

// Summary computes the mean rating and count over active reviews.  With no
// active reviews both values are zero.
func (r *ReviewRepo) Summary(ctx context.Context, unitID uint64) (model.RatingSummary, error) {
	var (
		avg sql.NullFloat64
		s   model.RatingSummary
	)
	err := r.DB.QueryRowContext(ctx,
		"SELECT AVG(rating), COUNT(*) FROM reviews WHERE unit_id=? AND active=1", unitID).
		Scan(&avg, &s.Quantity)
	if err != nil {
		return model.RatingSummary{}, err
	}
	if s.Quantity > 0 && avg.Valid {
		s.Average = avg.Float64
	}
	return s, nil
}
