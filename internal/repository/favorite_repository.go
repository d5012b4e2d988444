package repository

import (
	"context"

	"github.com/iliyamo/college-housing/internal/dbx"
	"github.com/iliyamo/college-housing/internal/model"
)

// FavoriteRepository manages a user's set of favorite units.
type FavoriteRepository interface {
	Add(ctx context.Context, userID, unitID uint64) error
	Remove(ctx context.Context, userID, unitID uint64) error
	List(ctx context.Context, userID uint64) ([]model.Unit, error)
}

type FavoriteRepo struct{ DB dbx.DBTX }

func NewFavoriteRepo(db dbx.DBTX) *FavoriteRepo { return &FavoriteRepo{DB: db} }

// Add is idempotent: re-adding an existing favorite is a no-op.
func (r *FavoriteRepo) Add(ctx context.Context, userID, unitID uint64) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT IGNORE INTO user_favorites (user_id, unit_id) VALUES (?,?)", userID, unitID)
	return err
}

// Remove is idempotent as well.
func (r *FavoriteRepo) Remove(ctx context.Context, userID, unitID uint64) error {
	_, err := r.DB.ExecContext(ctx,
		"DELETE FROM user_favorites WHERE user_id=? AND unit_id=?", userID, unitID)
	return err
}

// List returns the user's favorite units that are still active, most
// recently added first.
func (r *FavoriteRepo) List(ctx context.Context, userID uint64) ([]model.Unit, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT `+prefixed("u.", unitColumns)+`
		   FROM user_favorites f JOIN units u ON u.id = f.unit_id
		  WHERE f.user_id=? AND u.status='active'
		  ORDER BY f.created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	return scanUnits(rows)
}
