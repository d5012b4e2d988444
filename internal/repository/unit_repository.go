package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/college-housing/internal/dbx"
	"github.com/iliyamo/college-housing/internal/model"
)

// UnitRepository persists listings.
type UnitRepository interface {
	Create(ctx context.Context, u *model.Unit) error
	Get(ctx context.Context, id uint64, scope Scope) (model.Unit, error)
	List(ctx context.Context, f UnitFilter) ([]model.Unit, error)
	ListByOwner(ctx context.Context, ownerID uint64) ([]model.Unit, error)
	Update(ctx context.Context, id uint64, p model.UnitPatch) error
	SetStatus(ctx context.Context, id uint64, status model.UnitStatus, verified *bool) error
	DeactivateByOwner(ctx context.Context, ownerID uint64) (int64, error)
	UpdateRating(ctx context.Context, id uint64, s model.RatingSummary) error
	Lock(ctx context.Context, id uint64) error
}

// UnitFilter narrows the public listing.  Zero values mean "no filter".
type UnitFilter struct {
	Category    string
	Location    string
	MinPrice    float64
	MaxPrice    float64
	MinBedrooms int
	Furnished   *bool
	Available   *bool
	Sort        string // price, -price, rating, -rating, newest (default)
	Page        int
	Limit       int
}

const (
	defaultUnitLimit = 20
	maxUnitLimit     = 100
)

// Normalize clamps paging values.
func (f *UnitFilter) Normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = defaultUnitLimit
	}
	if f.Limit > maxUnitLimit {
		f.Limit = maxUnitLimit
	}
}

var unitSorts = map[string]string{
	"price":   "monthly_price ASC, id ASC",
	"-price":  "monthly_price DESC, id ASC",
	"rating":  "rating ASC, id ASC",
	"-rating": "rating DESC, id ASC",
	"newest":  "created_at DESC, id DESC",
}

type UnitRepo struct{ DB dbx.DBTX }

func NewUnitRepo(db dbx.DBTX) *UnitRepo { return &UnitRepo{DB: db} }

const unitColumns = `id, owner_id, title, description, location, address, size, bedrooms, bathrooms,
	category, available, furnished, monthly_price, contact_phone, whatsapp, property_level,
	property_number, insurance, deposit, images, id_card_url, title_deed_url,
	electricity_bill_url, rating, rating_quantity, is_verified, status, created_at, updated_at`

func scanUnit(row rowScanner) (model.Unit, error) {
	var (
		u      model.Unit
		images []byte
	)
	err := row.Scan(&u.ID, &u.OwnerID, &u.Title, &u.Description, &u.Location, &u.Address,
		&u.Size, &u.Bedrooms, &u.Bathrooms, &u.Category, &u.Available, &u.Furnished,
		&u.MonthlyPrice, &u.ContactPhone, &u.WhatsApp, &u.PropertyLevel, &u.PropertyNumber,
		&u.Insurance, &u.Deposit, &images, &u.IDCardURL, &u.TitleDeedURL,
		&u.ElectricityBillURL, &u.Rating, &u.RatingQuantity, &u.IsVerified, &u.Status,
		&u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Unit{}, ErrNotFound
	}
	if err != nil {
		return model.Unit{}, err
	}
	if u.Images, err = decodeJSONColumn[string](images); err != nil {
		return model.Unit{}, err
	}
	return u, nil
}

func scanUnits(rows *sql.Rows) ([]model.Unit, error) {
	defer rows.Close()
	out := []model.Unit{}
	for rows.Next() {
		u, err := scanUnit(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// Create inserts a new unit.  Rating, verification and status always
// start at their defaults regardless of what the caller set.
func (r *UnitRepo) Create(ctx context.Context, u *model.Unit) error {
	images, err := jsonColumn(u.Images)
	if err != nil {
		return err
	}
	u.Status = model.UnitInactive
	u.IsVerified = false
	u.Rating, u.RatingQuantity = 0, 0
	res, err := r.DB.ExecContext(ctx,
		`INSERT INTO units (owner_id, title, description, location, address, size, bedrooms,
			bathrooms, category, available, furnished, monthly_price, contact_phone, whatsapp,
			property_level, property_number, insurance, deposit, images, id_card_url,
			title_deed_url, electricity_bill_url, status, is_verified)
		 VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		u.OwnerID, u.Title, u.Description, u.Location, u.Address, u.Size, u.Bedrooms,
		u.Bathrooms, u.Category, u.Available, u.Furnished, u.MonthlyPrice, u.ContactPhone,
		u.WhatsApp, u.PropertyLevel, u.PropertyNumber, u.Insurance, u.Deposit, images,
		u.IDCardURL, u.TitleDeedURL, u.ElectricityBillURL, u.Status, u.IsVerified)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	u.ID = uint64(id)
	return nil
}

// Get loads a unit.  With ScopeActiveOnly anything but an active unit is
// reported as ErrNotFound.
func (r *UnitRepo) Get(ctx context.Context, id uint64, scope Scope) (model.Unit, error) {
	q := "SELECT " + unitColumns + " FROM units WHERE id=?"
	if scope == ScopeActiveOnly {
		q += " AND status='active'"
	}
	return scanUnit(r.DB.QueryRowContext(ctx, q+" LIMIT 1", id))
}

// List returns active units matching f, one page at a time.
func (r *UnitRepo) List(ctx context.Context, f UnitFilter) ([]model.Unit, error) {
	f.Normalize()
	where := []string{"status='active'"}
	args := []any{}
	if f.Category != "" {
		where = append(where, "category=?")
		args = append(args, f.Category)
	}
	if f.Location != "" {
		where = append(where, "location LIKE ?")
		args = append(args, "%"+f.Location+"%")
	}
	if f.MinPrice > 0 {
		where = append(where, "monthly_price >= ?")
		args = append(args, f.MinPrice)
	}
	if f.MaxPrice > 0 {
		where = append(where, "monthly_price <= ?")
		args = append(args, f.MaxPrice)
	}
	if f.MinBedrooms > 0 {
		where = append(where, "bedrooms >= ?")
		args = append(args, f.MinBedrooms)
	}
	if f.Furnished != nil {
		where = append(where, "furnished=?")
		args = append(args, *f.Furnished)
	}
	if f.Available != nil {
		where = append(where, "available=?")
		args = append(args, *f.Available)
	}
	order, ok := unitSorts[f.Sort]
	if !ok {
		order = unitSorts["newest"]
	}
	q := "SELECT " + unitColumns + " FROM units WHERE " + strings.Join(where, " AND ") +
		" ORDER BY " + order + " LIMIT ? OFFSET ?"
	args = append(args, f.Limit, (f.Page-1)*f.Limit)

	rows, err := r.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	return scanUnits(rows)
}

// ListByOwner returns every unit of an owner in any status.
func (r *UnitRepo) ListByOwner(ctx context.Context, ownerID uint64) ([]model.Unit, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+unitColumns+" FROM units WHERE owner_id=? ORDER BY id DESC", ownerID)
	if err != nil {
		return nil, err
	}
	return scanUnits(rows)
}

// Update applies the non-nil fields of p.
func (r *UnitRepo) Update(ctx context.Context, id uint64, p model.UnitPatch) error {
	sets := []string{}
	args := []any{}
	add := func(col string, v any) {
		sets = append(sets, col+"=?")
		args = append(args, v)
	}
	if p.Available != nil {
		add("available", *p.Available)
	}
	if p.Furnished != nil {
		add("furnished", *p.Furnished)
	}
	if p.MonthlyPrice != nil {
		add("monthly_price", *p.MonthlyPrice)
	}
	if p.ContactPhone != nil {
		add("contact_phone", *p.ContactPhone)
	}
	if p.WhatsApp != nil {
		add("whatsapp", *p.WhatsApp)
	}
	if p.Title != nil {
		add("title", *p.Title)
	}
	if p.Description != nil {
		add("description", *p.Description)
	}
	if p.Location != nil {
		add("location", *p.Location)
	}
	if p.Address != nil {
		add("address", *p.Address)
	}
	if p.Insurance != nil {
		add("insurance", *p.Insurance)
	}
	if p.Deposit != nil {
		add("deposit", *p.Deposit)
	}
	if p.Images != nil {
		images, err := jsonColumn(p.Images)
		if err != nil {
			return err
		}
		add("images", images)
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, id)
	return execOne(ctx, r.DB, "UPDATE units SET "+strings.Join(sets, ", ")+" WHERE id=?", args...)
}

// SetStatus writes a new status and, when verified is non-nil, the
// verification flag in the same statement.
func (r *UnitRepo) SetStatus(ctx context.Context, id uint64, status model.UnitStatus, verified *bool) error {
	if verified != nil {
		return execOne(ctx, r.DB, "UPDATE units SET status=?, is_verified=? WHERE id=?", status, *verified, id)
	}
	return execOne(ctx, r.DB, "UPDATE units SET status=? WHERE id=?", status, id)
}

// DeactivateByOwner flips every active unit of an owner to inactive and
// reports how many were changed.
func (r *UnitRepo) DeactivateByOwner(ctx context.Context, ownerID uint64) (int64, error) {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE units SET status='inactive' WHERE owner_id=? AND status='active'", ownerID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// UpdateRating stores the aggregate computed from active reviews.
func (r *UnitRepo) UpdateRating(ctx context.Context, id uint64, s model.RatingSummary) error {
	return execOne(ctx, r.DB, "UPDATE units SET rating=?, rating_quantity=? WHERE id=?",
		s.Average, s.Quantity, id)
}

// Lock takes the row lock on a unit for the rest of the surrounding
// transaction.  Outside a transaction the lock is released immediately.
func (r *UnitRepo) Lock(ctx context.Context, id uint64) error {
	var got uint64
	err := r.DB.QueryRowContext(ctx, "SELECT id FROM units WHERE id=? FOR UPDATE", id).Scan(&got)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
