// Package mail renders and delivers transactional email.  Templates are
// embedded in the binary; delivery goes through an SMTP relay.
package mail

import "context"

// Kind names a notification template.
type Kind string

const (
	KindVerification            Kind = "verification"
	KindPasswordReset           Kind = "passwordReset"
	KindUnitVerification        Kind = "unitVerification"
	KindAppointmentRequestUser  Kind = "appointmentRequestUser"
	KindAppointmentRequestOwner Kind = "appointmentRequestOwner"
	KindAppointmentConfirmation Kind = "appointmentConfirmation"
	KindAppointmentRefusal      Kind = "appointmentRefusal"
	KindAppointmentCancellation Kind = "appointmentCancellation"
)

// Recipient is the addressee of a message.
type Recipient struct {
	Email string
	Name  string
}

// Data carries the values a template may reference.  Unused fields are
// simply left empty.
type Data struct {
	Name              string
	Code              string
	URL               string
	UnitTitle         string
	UnitAddress       string
	AppointmentNumber string
	Date              string
	Dates             []string
	Notes             string
	ContactName       string
	ContactEmail      string
	ContactPhone      string
}

// Mailer delivers one rendered notification.
type Mailer interface {
	Send(ctx context.Context, kind Kind, to Recipient, data Data) error
}
