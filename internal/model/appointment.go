package model

import "time"

// Appointment is a visit booking between a renter and a unit owner.
//
// Fields:
//
//	Number         – human-readable unique id, e.g. "A1001".
//	UserID         – renter who booked the visit.
//	Date           – the visit date chosen by the owner on confirmation.
//	AvailableDates – dates proposed by the renter; at least one.
type Appointment struct {
	ID             uint64
	Number         string
	UserID         uint64
	UnitID         uint64
	Date           *time.Time
	AvailableDates []time.Time
	Status         AppointmentStatus
	Notes          string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// AppointmentCounter names the counter row used to mint appointment numbers.
const AppointmentCounter = "appointmentNumber"

// NumberPrefixes are the letters an appointment number may start with.
var NumberPrefixes = []byte("ABCDEFGHXZ")
