package service

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/college-housing/internal/apperr"
	"github.com/iliyamo/college-housing/internal/logging"
	"github.com/iliyamo/college-housing/internal/mail"
	"github.com/iliyamo/college-housing/internal/model"
	"github.com/iliyamo/college-housing/internal/queue"
)

type apptFixture struct {
	store  *memStore
	mailer *fakeMailer
	events *fakePublisher
	svc    *AppointmentService
	owner  model.User
	renter model.User
	unit   model.Unit
}

func newApptFixture(t *testing.T) *apptFixture {
	t.Helper()
	f := &apptFixture{store: newMemStore(), mailer: &fakeMailer{}, events: &fakePublisher{}}
	f.svc = NewAppointmentService(f.store, f.mailer, f.events, logging.Discard())
	f.svc.prefix = func() (byte, error) { return 'A', nil }
	f.owner = f.store.addUser(model.User{FullName: "Olivia Owner", Email: "owner@example.com"})
	f.renter = f.store.addUser(model.User{FullName: "Rami Renter", Email: "renter@example.com"})
	f.unit = f.store.addUnit(model.Unit{OwnerID: f.owner.ID, Title: "Sunny studio", Address: "1 Nile St", ContactPhone: "0100"})
	return f
}

func (f *apptFixture) book(t *testing.T) model.Appointment {
	t.Helper()
	a, err := f.svc.Book(context.Background(), f.renter, BookInput{
		UnitID: f.unit.ID,
		Dates:  []time.Time{time.Date(2026, 11, 2, 0, 0, 0, 0, time.UTC)},
	})
	require.NoError(t, err)
	return a
}

func TestAppointment_BookConfirmCancel(t *testing.T) {
	f := newApptFixture(t)
	ctx := context.Background()

	a := f.book(t)
	assert.Equal(t, "A1001", a.Number)
	assert.Equal(t, model.AppointmentPending, a.Status)
	assert.ElementsMatch(t, []mail.Kind{mail.KindAppointmentRequestUser, mail.KindAppointmentRequestOwner}, f.mailer.kinds())

	d := time.Date(2026, 11, 3, 15, 0, 0, 0, time.UTC)
	a, err := f.svc.Confirm(ctx, f.owner, f.unit.ID, "A1001", d)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentConfirmed, a.Status)
	require.NotNil(t, a.Date)
	assert.True(t, a.Date.Equal(d))
	m, ok := f.mailer.last(mail.KindAppointmentConfirmation)
	require.True(t, ok)
	assert.Equal(t, f.renter.Email, m.To.Email)

	a, err = f.svc.Cancel(ctx, f.renter, f.unit.ID, "A1001")
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentCanceled, a.Status)

	assert.Equal(t, []string{queue.AppointmentBooked, queue.AppointmentConfirmed, queue.AppointmentCanceled}, f.events.types())
}

func TestAppointment_BookRules(t *testing.T) {
	f := newApptFixture(t)
	ctx := context.Background()
	dates := []time.Time{time.Now()}

	_, err := f.svc.Book(ctx, f.owner, BookInput{UnitID: f.unit.ID, Dates: dates})
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = f.svc.Book(ctx, f.renter, BookInput{UnitID: f.unit.ID})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = f.svc.Book(ctx, f.renter, BookInput{UnitID: 9999, Dates: dates})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	hidden := f.store.addUnit(model.Unit{OwnerID: f.owner.ID, Status: model.UnitInactive})
	_, err = f.svc.Book(ctx, f.renter, BookInput{UnitID: hidden.ID, Dates: dates})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	f.book(t)
	_, err = f.svc.Book(ctx, f.renter, BookInput{UnitID: f.unit.ID, Dates: dates})
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestAppointment_RebookAfterRefusal(t *testing.T) {
	f := newApptFixture(t)
	ctx := context.Background()

	a := f.book(t)
	_, err := f.svc.Refuse(ctx, f.owner, f.unit.ID, a.Number)
	require.NoError(t, err)

	b := f.book(t)
	assert.Equal(t, "A1002", b.Number)
}

func TestAppointment_OnlyOwnerDecides(t *testing.T) {
	f := newApptFixture(t)
	ctx := context.Background()
	stranger := f.store.addUser(model.User{FullName: "Sam", Email: "sam@example.com"})
	a := f.book(t)

	_, err := f.svc.Confirm(ctx, stranger, f.unit.ID, a.Number, time.Now())
	assert.ErrorIs(t, err, apperr.ErrForbidden)
	_, err = f.svc.Refuse(ctx, f.renter, f.unit.ID, a.Number)
	assert.ErrorIs(t, err, apperr.ErrForbidden)
	_, err = f.svc.Cancel(ctx, f.owner, f.unit.ID, a.Number)
	assert.ErrorIs(t, err, apperr.ErrForbidden)
	_, err = f.svc.Confirm(ctx, f.owner, f.unit.ID, a.Number, time.Time{})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestAppointment_WrongStateIsNotFound(t *testing.T) {
	f := newApptFixture(t)
	ctx := context.Background()
	a := f.book(t)

	_, err := f.svc.Complete(ctx, f.owner, f.unit.ID, a.Number)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = f.svc.Refuse(ctx, f.owner, f.unit.ID, a.Number)
	require.NoError(t, err)
	_, err = f.svc.Confirm(ctx, f.owner, f.unit.ID, a.Number, time.Now())
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = f.svc.Cancel(ctx, f.renter, f.unit.ID, a.Number)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = f.svc.Cancel(ctx, f.renter, f.unit.ID, "Z0")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestAppointment_NumberMustBelongToPathUnit(t *testing.T) {
	f := newApptFixture(t)
	ctx := context.Background()
	a := f.book(t)
	other := f.store.addUnit(model.Unit{OwnerID: f.owner.ID, Title: "Other flat"})

	_, err := f.svc.Confirm(ctx, f.owner, other.ID, a.Number, time.Now())
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = f.svc.Refuse(ctx, f.owner, other.ID, a.Number)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = f.svc.Cancel(ctx, f.renter, other.ID, a.Number)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	got, err := f.store.Appointments().GetByNumber(ctx, a.Number)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentPending, got.Status)
	assert.Len(t, f.mailer.kinds(), 2)
}

func TestAppointment_ConfirmMailFailureRollsBack(t *testing.T) {
	f := newApptFixture(t)
	ctx := context.Background()
	a := f.book(t)
	f.mailer.fail = map[mail.Kind]error{mail.KindAppointmentConfirmation: errBoom}

	_, err := f.svc.Confirm(ctx, f.owner, f.unit.ID, a.Number, time.Now())
	assert.ErrorIs(t, err, apperr.ErrInternal)

	got, err := f.store.Appointments().GetByNumber(ctx, a.Number)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentPending, got.Status)
	assert.Nil(t, got.Date)
}

func TestAppointment_BestEffortNotifications(t *testing.T) {
	f := newApptFixture(t)
	f.mailer.fail = map[mail.Kind]error{
		mail.KindAppointmentRequestUser:  errBoom,
		mail.KindAppointmentRequestOwner: errBoom,
	}
	f.events.err = errBoom

	a := f.book(t)
	assert.Equal(t, model.AppointmentPending, a.Status)
}

func TestAppointment_CompleteUnlocksReview(t *testing.T) {
	f := newApptFixture(t)
	ctx := context.Background()
	a := f.book(t)
	_, err := f.svc.Confirm(ctx, f.owner, f.unit.ID, a.Number, time.Now())
	require.NoError(t, err)
	_, err = f.svc.Complete(ctx, f.renter, f.unit.ID, a.Number)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	a, err = f.svc.Complete(ctx, f.owner, f.unit.ID, a.Number)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentCompleted, a.Status)
	assert.True(t, a.Status.Terminal())

	_, err = f.svc.Book(ctx, f.renter, BookInput{UnitID: f.unit.ID, Dates: []time.Time{time.Now()}})
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestAppointment_NumbersUniqueUnderConcurrency(t *testing.T) {
	f := newApptFixture(t)
	ctx := context.Background()

	const n = 20
	renters := make([]model.User, n)
	for i := range renters {
		renters[i] = f.store.addUser(model.User{FullName: "Renter", Email: "r" + strconv.Itoa(i) + "@example.com"})
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		numbers = map[string]bool{}
	)
	for _, r := range renters {
		wg.Add(1)
		go func(r model.User) {
			defer wg.Done()
			a, err := f.svc.Book(ctx, r, BookInput{UnitID: f.unit.ID, Dates: []time.Time{time.Now()}})
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			numbers[a.Number] = true
			mu.Unlock()
		}(r)
	}
	wg.Wait()

	require.Len(t, numbers, n)
	for i := 0; i < n; i++ {
		assert.True(t, numbers["A"+strconv.Itoa(1001+i)])
	}
}

func TestAppointment_Listing(t *testing.T) {
	f := newApptFixture(t)
	ctx := context.Background()
	f.book(t)

	mine, err := f.svc.ListMine(ctx, f.renter)
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	list, err := f.svc.ListForUnit(ctx, f.owner, f.unit.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = f.svc.ListForUnit(ctx, f.renter, f.unit.ID)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	admin := f.store.addUser(model.User{Email: "admin@example.com", Role: model.RoleAdmin})
	_, err = f.svc.ListForUnit(ctx, admin, f.unit.ID)
	assert.NoError(t, err)
}
