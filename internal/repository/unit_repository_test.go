package repository

import (
	"context"
	"database/sql/driver"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/college-housing/internal/model"
)

var unitCols = []string{"id", "owner_id", "title", "description", "location", "address", "size",
	"bedrooms", "bathrooms", "category", "available", "furnished", "monthly_price", "contact_phone",
	"whatsapp", "property_level", "property_number", "insurance", "deposit", "images", "id_card_url",
	"title_deed_url", "electricity_bill_url", "rating", "rating_quantity", "is_verified", "status",
	"created_at", "updated_at"}

func unitRow(id uint64, status string) []driver.Value {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return []driver.Value{id, 10, "Studio near campus", "Bright", "Cairo", "1 Main St", 80, 1, 1, "studio",
		int64(1), int64(0), 350.0, "0100", "0100", 2, "12B", 0.0, 100.0,
		[]byte(`["https://img/1.jpg","https://img/2.jpg"]`), "https://doc/id", "https://doc/deed",
		"https://doc/bill", 4.5, 2, int64(1), status, now, now}
}

func TestUnitRepo_CreateForcesDefaults(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(`INSERT INTO units`).
		WithArgs(10, "T", "D", "L", "A", 80, 1, 1, "studio", true, false, 350.0, "0100", "", 0, "",
			0.0, 0.0, []byte(`["x"]`), "id", "deed", "bill", "inactive", false).
		WillReturnResult(sqlmock.NewResult(4, 1))

	u := &model.Unit{
		OwnerID: 10, Title: "T", Description: "D", Location: "L", Address: "A", Size: 80,
		Bedrooms: 1, Bathrooms: 1, Category: "studio", Available: true, MonthlyPrice: 350,
		ContactPhone: "0100", Images: []string{"x"}, IDCardURL: "id", TitleDeedURL: "deed",
		ElectricityBillURL: "bill", Status: model.UnitActive, IsVerified: true, Rating: 5,
	}
	require.NoError(t, NewUnitRepo(db).Create(context.Background(), u))
	assert.Equal(t, uint64(4), u.ID)
	assert.Equal(t, model.UnitInactive, u.Status)
	assert.False(t, u.IsVerified)
	assert.Zero(t, u.Rating)
}

func TestUnitRepo_GetScopes(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(`FROM units WHERE id=\? AND status='active' LIMIT 1`).WithArgs(2).
		WillReturnRows(sqlmock.NewRows(unitCols))
	mock.ExpectQuery(`FROM units WHERE id=\? LIMIT 1`).WithArgs(2).
		WillReturnRows(sqlmock.NewRows(unitCols).AddRow(unitRow(2, "suspended")...))

	repo := NewUnitRepo(db)
	_, err := repo.Get(context.Background(), 2, ScopeActiveOnly)
	assert.ErrorIs(t, err, ErrNotFound)

	u, err := repo.Get(context.Background(), 2, ScopeAll)
	require.NoError(t, err)
	assert.Equal(t, model.UnitSuspended, u.Status)
	assert.Equal(t, []string{"https://img/1.jpg", "https://img/2.jpg"}, u.Images)
	assert.True(t, u.Available)
	assert.False(t, u.Furnished)
}

func TestUnitRepo_ListFilters(t *testing.T) {
	db, mock := newMock(t)
	furnished := true
	mock.ExpectQuery(`(?s)WHERE status='active' AND category=\? AND location LIKE \? AND monthly_price >= \? AND monthly_price <= \? AND furnished=\? ORDER BY monthly_price DESC, id ASC LIMIT \? OFFSET \?`).
		WithArgs("villa", "%Giza%", 100.0, 900.0, true, 10, 10).
		WillReturnRows(sqlmock.NewRows(unitCols).AddRow(unitRow(1, "active")...))

	units, err := NewUnitRepo(db).List(context.Background(), UnitFilter{
		Category: "villa", Location: "Giza", MinPrice: 100, MaxPrice: 900,
		Furnished: &furnished, Sort: "-price", Page: 2, Limit: 10,
	})
	require.NoError(t, err)
	assert.Len(t, units, 1)
}

func TestUnitFilter_Normalize(t *testing.T) {
	f := UnitFilter{Limit: 1000}
	f.Normalize()
	assert.Equal(t, 1, f.Page)
	assert.Equal(t, maxUnitLimit, f.Limit)

	f = UnitFilter{}
	f.Normalize()
	assert.Equal(t, defaultUnitLimit, f.Limit)
}

func TestUnitRepo_UpdatePatch(t *testing.T) {
	db, mock := newMock(t)
	price := 400.0
	title := "New"
	mock.ExpectExec(`UPDATE units SET monthly_price=\?, title=\?, images=\? WHERE id=\?`).
		WithArgs(400.0, "New", []byte(`["a.jpg"]`), 3).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := NewUnitRepo(db).Update(context.Background(), 3, model.UnitPatch{
		MonthlyPrice: &price, Title: &title, Images: []string{"a.jpg"},
	})
	require.NoError(t, err)

	// empty patch touches nothing
	require.NoError(t, NewUnitRepo(db).Update(context.Background(), 3, model.UnitPatch{}))
}

func TestUnitRepo_SetStatus(t *testing.T) {
	db, mock := newMock(t)
	verified := true
	mock.ExpectExec(`UPDATE units SET status=\?, is_verified=\? WHERE id=\?`).
		WithArgs("active", true, 3).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE units SET status=\? WHERE id=\?`).
		WithArgs("suspended", 4).WillReturnResult(sqlmock.NewResult(0, 0))

	repo := NewUnitRepo(db)
	require.NoError(t, repo.SetStatus(context.Background(), 3, model.UnitActive, &verified))
	assert.ErrorIs(t, repo.SetStatus(context.Background(), 4, model.UnitSuspended, nil), ErrNotFound)
}

func TestUnitRepo_DeactivateByOwner(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(`UPDATE units SET status='inactive' WHERE owner_id=\? AND status='active'`).
		WithArgs(10).WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := NewUnitRepo(db).DeactivateByOwner(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestUnitRepo_UpdateRating(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(`UPDATE units SET rating=\?, rating_quantity=\? WHERE id=\?`).
		WithArgs(3.5, 2, 8).WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, NewUnitRepo(db).UpdateRating(context.Background(), 8, model.RatingSummary{Average: 3.5, Quantity: 2}))
}

func TestUnitRepo_LockSelectsForUpdate(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(`SELECT id FROM units WHERE id=\? FOR UPDATE`).WithArgs(8).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(8))
	mock.ExpectQuery(`SELECT id FROM units WHERE id=\? FOR UPDATE`).WithArgs(9).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	repo := NewUnitRepo(db)
	require.NoError(t, repo.Lock(context.Background(), 8))
	assert.ErrorIs(t, repo.Lock(context.Background(), 9), ErrNotFound)
}
