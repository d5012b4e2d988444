package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/college-housing/internal/dbx"
)

// Store hands out repositories bound to one database handle.  InTx runs fn
// with a Store whose repositories all share a single transaction; nested
// calls reuse the outer transaction.
type Store interface {
	Users() UserRepository
	Tokens() TokenRepository
	Favorites() FavoriteRepository
	Units() UnitRepository
	Requests() RequestRepository
	Appointments() AppointmentRepository
	Reviews() ReviewRepository
	Counters() CounterRepository
	InTx(ctx context.Context, fn func(ctx context.Context, s Store) error) error
}

// MySQLStore is the Store backed by database/sql.
type MySQLStore struct {
	db   *sql.DB
	q    dbx.DBTX
	inTx bool
}

func NewMySQLStore(db *sql.DB) *MySQLStore { return &MySQLStore{db: db, q: db} }

func (s *MySQLStore) Users() UserRepository               { return NewUserRepo(s.q) }
func (s *MySQLStore) Tokens() TokenRepository             { return NewTokenRepo(s.q) }
func (s *MySQLStore) Favorites() FavoriteRepository       { return NewFavoriteRepo(s.q) }
func (s *MySQLStore) Units() UnitRepository               { return NewUnitRepo(s.q) }
func (s *MySQLStore) Requests() RequestRepository         { return NewRequestRepo(s.q) }
func (s *MySQLStore) Appointments() AppointmentRepository { return NewAppointmentRepo(s.q) }
func (s *MySQLStore) Reviews() ReviewRepository           { return NewReviewRepo(s.q) }
func (s *MySQLStore) Counters() CounterRepository         { return NewCounterRepo(s.q) }

func (s *MySQLStore) InTx(ctx context.Context, fn func(ctx context.Context, s Store) error) error {
	if s.inTx {
		return fn(ctx, s)
	}
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return fn(ctx, &MySQLStore{db: s.db, q: tx, inTx: true})
	})
}
