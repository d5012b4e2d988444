package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/college-housing/internal/dbx"
	"github.com/iliyamo/college-housing/internal/model"
)

// AppointmentRepository persists visit appointments.
type AppointmentRepository interface {
	Create(ctx context.Context, a *model.Appointment) error
	GetByNumber(ctx context.Context, number string) (model.Appointment, error)
	HasWithStatus(ctx context.Context, userID, unitID uint64, statuses ...model.AppointmentStatus) (bool, error)
	Transition(ctx context.Context, id uint64, from, to model.AppointmentStatus, date *time.Time) error
	ListByUnit(ctx context.Context, unitID uint64) ([]model.Appointment, error)
	ListByUser(ctx context.Context, userID uint64) ([]model.Appointment, error)
}

type AppointmentRepo struct{ DB dbx.DBTX }

func NewAppointmentRepo(db dbx.DBTX) *AppointmentRepo { return &AppointmentRepo{DB: db} }

const appointmentColumns = `id, appointment_number, user_id, unit_id, date, available_dates,
	status, notes, created_at, updated_at`

func scanAppointment(row rowScanner) (model.Appointment, error) {
	var (
		a     model.Appointment
		date  sql.NullTime
		dates []byte
		notes sql.NullString
	)
	err := row.Scan(&a.ID, &a.Number, &a.UserID, &a.UnitID, &date, &dates, &a.Status, &notes,
		&a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Appointment{}, ErrNotFound
	}
	if err != nil {
		return model.Appointment{}, err
	}
	a.Date = nullTime(date)
	a.Notes = notes.String
	if a.AvailableDates, err = decodeJSONColumn[time.Time](dates); err != nil {
		return model.Appointment{}, err
	}
	return a, nil
}

func scanAppointments(rows *sql.Rows) ([]model.Appointment, error) {
	defer rows.Close()
	out := []model.Appointment{}
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Create inserts a pending appointment.  A reused number yields ErrDuplicate.
func (r *AppointmentRepo) Create(ctx context.Context, a *model.Appointment) error {
	dates, err := jsonColumn(a.AvailableDates)
	if err != nil {
		return err
	}
	if a.Status == "" {
		a.Status = model.AppointmentPending
	}
	res, err := r.DB.ExecContext(ctx,
		`INSERT INTO appointments (appointment_number, user_id, unit_id, available_dates, status, notes)
		 VALUES (?,?,?,?,?,?)`,
		a.Number, a.UserID, a.UnitID, dates, a.Status, a.Notes)
	if err != nil {
		if isDuplicate(err) {
			return ErrDuplicate
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	a.ID = uint64(id)
	return nil
}

func (r *AppointmentRepo) GetByNumber(ctx context.Context, number string) (model.Appointment, error) {
	return scanAppointment(r.DB.QueryRowContext(ctx,
		"SELECT "+appointmentColumns+" FROM appointments WHERE appointment_number=? LIMIT 1", number))
}

// HasWithStatus reports whether the renter has an appointment for the unit
// in any of the given statuses.
func (r *AppointmentRepo) HasWithStatus(ctx context.Context, userID, unitID uint64, statuses ...model.AppointmentStatus) (bool, error) {
	if len(statuses) == 0 {
		return false, nil
	}
	marks := strings.TrimSuffix(strings.Repeat("?,", len(statuses)), ",")
	args := []any{userID, unitID}
	for _, s := range statuses {
		args = append(args, s)
	}
	var exists bool
	err := r.DB.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM appointments WHERE user_id=? AND unit_id=? AND status IN ("+marks+"))",
		args...).Scan(&exists)
	return exists, err
}

// Transition moves an appointment from one status to another, optionally
// setting the visit date.  ErrConflict means the row was not in `from`.
func (r *AppointmentRepo) Transition(ctx context.Context, id uint64, from, to model.AppointmentStatus, date *time.Time) error {
	var err error
	if date != nil {
		err = execOne(ctx, r.DB,
			"UPDATE appointments SET status=?, date=? WHERE id=? AND status=?", to, *date, id, from)
	} else {
		err = execOne(ctx, r.DB,
			"UPDATE appointments SET status=? WHERE id=? AND status=?", to, id, from)
	}
	if errors.Is(err, ErrNotFound) {
		return ErrConflict
	}
	return err
}

func (r *AppointmentRepo) ListByUnit(ctx context.Context, unitID uint64) ([]model.Appointment, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+appointmentColumns+" FROM appointments WHERE unit_id=? ORDER BY id DESC", unitID)
	if err != nil {
		return nil, err
	}
	return scanAppointments(rows)
}

func (r *AppointmentRepo) ListByUser(ctx context.Context, userID uint64) ([]model.Appointment, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+appointmentColumns+" FROM appointments WHERE user_id=? ORDER BY id DESC", userID)
	if err != nil {
		return nil, err
	}
	return scanAppointments(rows)
}
