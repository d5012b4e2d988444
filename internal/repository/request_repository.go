package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/college-housing/internal/dbx"
	"github.com/iliyamo/college-housing/internal/model"
)

// RequestRepository persists moderation requests.
type RequestRepository interface {
	Create(ctx context.Context, req *model.Request) error
	Get(ctx context.Context, id uint64) (model.Request, error)
	List(ctx context.Context, status *model.RequestStatus) ([]model.Request, error)
	Decide(ctx context.Context, id uint64, status model.RequestStatus, message string) error
}

type RequestRepo struct{ DB dbx.DBTX }

func NewRequestRepo(db dbx.DBTX) *RequestRepo { return &RequestRepo{DB: db} }

const requestColumns = "id, unit_id, user_id, status, messages, created_at, updated_at"

func scanRequest(row rowScanner) (model.Request, error) {
	var (
		req  model.Request
		msgs []byte
	)
	err := row.Scan(&req.ID, &req.UnitID, &req.UserID, &req.Status, &msgs, &req.CreatedAt, &req.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Request{}, ErrNotFound
	}
	if err != nil {
		return model.Request{}, err
	}
	if req.Messages, err = decodeJSONColumn[string](msgs); err != nil {
		return model.Request{}, err
	}
	return req, nil
}

func (r *RequestRepo) Create(ctx context.Context, req *model.Request) error {
	if req.Status == "" {
		req.Status = model.RequestPending
	}
	msgs, err := jsonColumn(req.Messages)
	if err != nil {
		return err
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO requests (unit_id, user_id, status, messages) VALUES (?,?,?,?)",
		req.UnitID, req.UserID, req.Status, msgs)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	req.ID = uint64(id)
	return nil
}

func (r *RequestRepo) Get(ctx context.Context, id uint64) (model.Request, error) {
	return scanRequest(r.DB.QueryRowContext(ctx,
		"SELECT "+requestColumns+" FROM requests WHERE id=? LIMIT 1", id))
}

// List returns requests, newest first, optionally filtered by status.
func (r *RequestRepo) List(ctx context.Context, status *model.RequestStatus) ([]model.Request, error) {
	q := "SELECT " + requestColumns + " FROM requests"
	args := []any{}
	if status != nil {
		q += " WHERE status=?"
		args = append(args, *status)
	}
	rows, err := r.DB.QueryContext(ctx, q+" ORDER BY id DESC", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Request{}
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

// Decide records an admin verdict on a pending request and appends the
// admin's message.  ErrConflict means the request was no longer pending.
func (r *RequestRepo) Decide(ctx context.Context, id uint64, status model.RequestStatus, message string) error {
	err := execOne(ctx, r.DB,
		`UPDATE requests SET status=?, messages=JSON_ARRAY_APPEND(messages, '$', ?)
		  WHERE id=? AND status='pending'`, status, message, id)
	if errors.Is(err, ErrNotFound) {
		return ErrConflict
	}
	return err
}
