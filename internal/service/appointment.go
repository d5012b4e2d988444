package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/college-housing/internal/apperr"
	"github.com/iliyamo/college-housing/internal/logging"
	"github.com/iliyamo/college-housing/internal/mail"
	"github.com/iliyamo/college-housing/internal/model"
	"github.com/iliyamo/college-housing/internal/queue"
	"github.com/iliyamo/college-housing/internal/repository"
	"github.com/iliyamo/college-housing/internal/utils"
)

// AppointmentService runs the visit booking lifecycle:
//
//	pending -> confirmed | refused | canceled
//	confirmed -> completed | canceled
type AppointmentService struct {
	store repository.Store
	notifier
	prefix func() (byte, error)
}

func NewAppointmentService(store repository.Store, mailer mail.Mailer, events queue.Publisher, log logging.Logger) *AppointmentService {
	return &AppointmentService{
		store:    store,
		notifier: notifier{mailer: mailer, events: events, log: log.With("service", "appointments")},
		prefix:   randomPrefix,
	}
}

func randomPrefix() (byte, error) {
	i, err := utils.RandomIndex(len(model.NumberPrefixes))
	if err != nil {
		return 0, err
	}
	return model.NumberPrefixes[i], nil
}

// BookInput is what a renter submits when requesting a visit.
type BookInput struct {
	UnitID uint64
	Dates  []time.Time
	Notes  string
}

// Book creates a pending appointment on an active unit.  The duplicate
// check, number minting and insert share one transaction.
func (s *AppointmentService) Book(ctx context.Context, renter model.User, in BookInput) (model.Appointment, error) {
	unit, err := s.store.Units().Get(ctx, in.UnitID, repository.ScopeActiveOnly)
	if err != nil {
		return model.Appointment{}, lookupErr(err, "there is no unit with that id")
	}
	if unit.OwnerID == renter.ID {
		return model.Appointment{}, apperr.Forbidden("you cannot book an appointment for your own unit")
	}
	if len(in.Dates) == 0 {
		return model.Appointment{}, apperr.Validation("please provide at least one available date")
	}

	var appt model.Appointment
	err = s.store.InTx(ctx, func(ctx context.Context, tx repository.Store) error {
		// Next must run first: its upsert locks the counter row until
		// commit, so concurrent bookings queue here and the duplicate
		// check below reads a snapshot taken after the previous booking
		// committed.
		n, err := tx.Counters().Next(ctx, model.AppointmentCounter)
		if err != nil {
			return err
		}
		dup, err := tx.Appointments().HasWithStatus(ctx, renter.ID, unit.ID,
			model.AppointmentPending, model.AppointmentCompleted)
		if err != nil {
			return err
		}
		if dup {
			return apperr.Conflict("sorry you already booked an appointment for this unit")
		}
		p, err := s.prefix()
		if err != nil {
			return err
		}
		appt = model.Appointment{
			Number:         fmt.Sprintf("%c%d", p, n),
			UserID:         renter.ID,
			UnitID:         unit.ID,
			AvailableDates: in.Dates,
			Status:         model.AppointmentPending,
			Notes:          in.Notes,
		}
		return tx.Appointments().Create(ctx, &appt)
	})
	if err != nil {
		return model.Appointment{}, internalErr("could not book the appointment", err)
	}

	data := mail.Data{
		UnitTitle:         unit.Title,
		AppointmentNumber: appt.Number,
		Dates:             formatDates(appt.AvailableDates),
		Notes:             appt.Notes,
		ContactName:       renter.FullName,
		ContactEmail:      renter.Email,
	}
	if renter.Phone != nil {
		data.ContactPhone = *renter.Phone
	}
	s.mail(ctx, mail.KindAppointmentRequestUser, renter, data)
	if owner, err := s.store.Users().GetByID(ctx, unit.OwnerID); err == nil {
		s.mail(ctx, mail.KindAppointmentRequestOwner, owner, data)
	} else {
		s.log.Warn(ctx, "owner lookup for notification failed", "unit_id", unit.ID, "err", err)
	}
	s.publish(ctx, queue.Event{Type: queue.AppointmentBooked, AppointmentNumber: appt.Number,
		UnitID: unit.ID, UserID: renter.ID, ActorID: renter.ID, Status: string(appt.Status)})
	return appt, nil
}

// findFor loads the appointment with number if it belongs to unitID and is
// in one of the given statuses, together with its unit.  Anything else is
// NotFound.
func (s *AppointmentService) findFor(ctx context.Context, unitID uint64, number string, statuses ...model.AppointmentStatus) (model.Appointment, model.Unit, error) {
	appt, err := s.store.Appointments().GetByNumber(ctx, number)
	if err != nil {
		return model.Appointment{}, model.Unit{}, lookupErr(err, "there is no appointment with that number")
	}
	if appt.UnitID != unitID {
		return model.Appointment{}, model.Unit{}, apperr.NotFound("there is no appointment with that number for this unit")
	}
	ok := false
	for _, st := range statuses {
		ok = ok || appt.Status == st
	}
	if !ok {
		return model.Appointment{}, model.Unit{}, apperr.NotFound("there is no appointment with that number")
	}
	unit, err := s.store.Units().Get(ctx, appt.UnitID, repository.ScopeAll)
	if err != nil {
		return model.Appointment{}, model.Unit{}, lookupErr(err, "the unit of this appointment no longer exists")
	}
	return appt, unit, nil
}

// transition moves appt to next through the central transition table and
// a conditional update, so a concurrent change surfaces as Conflict.
func transition(ctx context.Context, repo repository.AppointmentRepository, appt *model.Appointment, next model.AppointmentStatus, date *time.Time) error {
	if !appt.Status.CanTransition(next) {
		return apperr.Conflict(fmt.Sprintf("cannot move an appointment from %s to %s", appt.Status, next))
	}
	if err := repo.Transition(ctx, appt.ID, appt.Status, next, date); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return apperr.Conflict("the appointment was changed by someone else, please retry")
		}
		return err
	}
	appt.Status = next
	if date != nil {
		d := *date
		appt.Date = &d
	}
	return nil
}

// Confirm accepts a pending appointment and fixes the visit date.  The
// renter must be told: if the confirmation mail cannot be sent the status
// change is rolled back and Internal is returned.
func (s *AppointmentService) Confirm(ctx context.Context, owner model.User, unitID uint64, number string, date time.Time) (model.Appointment, error) {
	appt, unit, err := s.findFor(ctx, unitID, number, model.AppointmentPending)
	if err != nil {
		return model.Appointment{}, err
	}
	if unit.OwnerID != owner.ID {
		return model.Appointment{}, apperr.Forbidden("you are not authorized to accept this appointment")
	}
	if date.IsZero() {
		return model.Appointment{}, apperr.Validation("please provide the appointment date")
	}
	renter, err := s.store.Users().GetByID(ctx, appt.UserID)
	if err != nil {
		return model.Appointment{}, lookupErr(err, "the renter of this appointment no longer exists")
	}

	err = s.store.InTx(ctx, func(ctx context.Context, tx repository.Store) error {
		if err := transition(ctx, tx.Appointments(), &appt, model.AppointmentConfirmed, &date); err != nil {
			return err
		}
		data := mail.Data{
			UnitTitle:         unit.Title,
			UnitAddress:       unit.Address,
			AppointmentNumber: appt.Number,
			Date:              date.Format(dateLayout),
			ContactPhone:      unit.ContactPhone,
		}
		if err := s.mailer.Send(ctx, mail.KindAppointmentConfirmation, recipient(renter), data); err != nil {
			return apperr.Internal("couldn't successfully send the confirmation mail", err)
		}
		return nil
	})
	if err != nil {
		return model.Appointment{}, internalErr("could not confirm the appointment", err)
	}
	s.publish(ctx, queue.Event{Type: queue.AppointmentConfirmed, AppointmentNumber: appt.Number,
		UnitID: unit.ID, UserID: renter.ID, ActorID: owner.ID, Status: string(appt.Status),
		Date: date.Format(time.DateOnly)})
	return appt, nil
}

// Refuse declines a pending appointment.  The renter is notified best effort.
func (s *AppointmentService) Refuse(ctx context.Context, owner model.User, unitID uint64, number string) (model.Appointment, error) {
	appt, unit, err := s.findFor(ctx, unitID, number, model.AppointmentPending)
	if err != nil {
		return model.Appointment{}, err
	}
	if unit.OwnerID != owner.ID {
		return model.Appointment{}, apperr.Forbidden("you are not authorized to refuse this appointment")
	}
	if err := transition(ctx, s.store.Appointments(), &appt, model.AppointmentRefused, nil); err != nil {
		return model.Appointment{}, internalErr("could not refuse the appointment", err)
	}
	if renter, err := s.store.Users().GetByID(ctx, appt.UserID); err == nil {
		s.mail(ctx, mail.KindAppointmentRefusal, renter, mail.Data{UnitTitle: unit.Title, AppointmentNumber: appt.Number})
	}
	s.publish(ctx, queue.Event{Type: queue.AppointmentRefused, AppointmentNumber: appt.Number,
		UnitID: unit.ID, UserID: appt.UserID, ActorID: owner.ID, Status: string(appt.Status)})
	return appt, nil
}

// Cancel lets the renter withdraw a pending or confirmed appointment.  The
// owner is notified best effort.
func (s *AppointmentService) Cancel(ctx context.Context, renter model.User, unitID uint64, number string) (model.Appointment, error) {
	appt, unit, err := s.findFor(ctx, unitID, number, model.AppointmentPending, model.AppointmentConfirmed)
	if err != nil {
		return model.Appointment{}, err
	}
	if appt.UserID != renter.ID {
		return model.Appointment{}, apperr.Forbidden("you are not authorized to cancel this appointment")
	}
	if err := transition(ctx, s.store.Appointments(), &appt, model.AppointmentCanceled, nil); err != nil {
		return model.Appointment{}, internalErr("could not cancel the appointment", err)
	}
	if owner, err := s.store.Users().GetByID(ctx, unit.OwnerID); err == nil {
		s.mail(ctx, mail.KindAppointmentCancellation, owner, mail.Data{
			UnitTitle: unit.Title, AppointmentNumber: appt.Number, ContactName: renter.FullName,
		})
	}
	s.publish(ctx, queue.Event{Type: queue.AppointmentCanceled, AppointmentNumber: appt.Number,
		UnitID: unit.ID, UserID: renter.ID, ActorID: renter.ID, Status: string(appt.Status)})
	return appt, nil
}

// Complete marks a confirmed visit as done, which unlocks reviewing.
func (s *AppointmentService) Complete(ctx context.Context, owner model.User, unitID uint64, number string) (model.Appointment, error) {
	appt, unit, err := s.findFor(ctx, unitID, number, model.AppointmentConfirmed)
	if err != nil {
		return model.Appointment{}, err
	}
	if unit.OwnerID != owner.ID {
		return model.Appointment{}, apperr.Forbidden("you are not authorized to complete this appointment")
	}
	if err := transition(ctx, s.store.Appointments(), &appt, model.AppointmentCompleted, nil); err != nil {
		return model.Appointment{}, internalErr("could not complete the appointment", err)
	}
	s.publish(ctx, queue.Event{Type: queue.AppointmentCompleted, AppointmentNumber: appt.Number,
		UnitID: unit.ID, UserID: appt.UserID, ActorID: owner.ID, Status: string(appt.Status)})
	return appt, nil
}

// ListForUnit returns every appointment of a unit; only its owner (or an
// admin) may look.
func (s *AppointmentService) ListForUnit(ctx context.Context, actor model.User, unitID uint64) ([]model.Appointment, error) {
	unit, err := s.store.Units().Get(ctx, unitID, repository.ScopeAll)
	if err != nil {
		return nil, lookupErr(err, "there is no unit with that id")
	}
	if unit.OwnerID != actor.ID && !actor.IsAdmin() {
		return nil, apperr.Forbidden("you are not the owner of this unit")
	}
	list, err := s.store.Appointments().ListByUnit(ctx, unitID)
	if err != nil {
		return nil, internalErr("could not list appointments", err)
	}
	return list, nil
}

// ListMine returns the renter's own appointments.
func (s *AppointmentService) ListMine(ctx context.Context, renter model.User) ([]model.Appointment, error) {
	list, err := s.store.Appointments().ListByUser(ctx, renter.ID)
	if err != nil {
		return nil, internalErr("could not list appointments", err)
	}
	return list, nil
}
