package repository

import (
	"context"

	"github.com/iliyamo/college-housing/internal/dbx"
)

// CounterStart is the first value minted by a fresh counter.
const CounterStart = 1001

// CounterRepository mints values from named monotonic sequences.
type CounterRepository interface {
	Next(ctx context.Context, name string) (uint64, error)
}

type CounterRepo struct{ DB dbx.DBTX }

func NewCounterRepo(db dbx.DBTX) *CounterRepo { return &CounterRepo{DB: db} }

// Next increments the named counter and returns the new value.  The upsert
// takes a row lock that is held until the surrounding transaction ends,
// so the follow-up read sees this caller's value.  Call it through
// Store.InTx.
func (r *CounterRepo) Next(ctx context.Context, name string) (uint64, error) {
	if _, err := r.DB.ExecContext(ctx,
		"INSERT INTO counters (name, value) VALUES (?, ?) ON DUPLICATE KEY UPDATE value = value + 1",
		name, CounterStart); err != nil {
		return 0, err
	}
	var v uint64
	err := r.DB.QueryRowContext(ctx, "SELECT value FROM counters WHERE name=?", name).Scan(&v)
	return v, err
}
