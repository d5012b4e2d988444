package model

// Status enums for every entity with a lifecycle.  Each enum owns its
// transition table; services call CanTransition before writing a new
// status so that illegal moves are rejected in one place.

// AppointmentStatus is the lifecycle state of a visit appointment.
type AppointmentStatus string

const (
	AppointmentPending   AppointmentStatus = "pending"
	AppointmentConfirmed AppointmentStatus = "confirmed"
	AppointmentRefused   AppointmentStatus = "refused"
	AppointmentCanceled  AppointmentStatus = "canceled"
	AppointmentCompleted AppointmentStatus = "completed"
)

var appointmentTransitions = map[AppointmentStatus][]AppointmentStatus{
	AppointmentPending:   {AppointmentConfirmed, AppointmentRefused, AppointmentCanceled},
	AppointmentConfirmed: {AppointmentCompleted, AppointmentCanceled},
}

// Valid reports whether s is a known appointment status.
func (s AppointmentStatus) Valid() bool {
	switch s {
	case AppointmentPending, AppointmentConfirmed, AppointmentRefused, AppointmentCanceled, AppointmentCompleted:
		return true
	}
	return false
}

// CanTransition reports whether an appointment may move from s to next.
func (s AppointmentStatus) CanTransition(next AppointmentStatus) bool {
	return contains(appointmentTransitions[s], next)
}

// Terminal reports whether no further transition is possible.
func (s AppointmentStatus) Terminal() bool { return len(appointmentTransitions[s]) == 0 }

// UnitStatus is the moderation/visibility state of a unit.
type UnitStatus string

const (
	UnitInactive  UnitStatus = "inactive"
	UnitActive    UnitStatus = "active"
	UnitSuspended UnitStatus = "suspended"
	UnitRejected  UnitStatus = "rejected"
)

var unitTransitions = map[UnitStatus][]UnitStatus{
	UnitInactive:  {UnitActive, UnitSuspended, UnitRejected},
	UnitActive:    {UnitInactive, UnitSuspended},
	UnitSuspended: {UnitActive, UnitInactive},
	UnitRejected:  {UnitActive, UnitSuspended},
}

func (s UnitStatus) Valid() bool {
	_, ok := unitTransitions[s]
	return ok
}

func (s UnitStatus) CanTransition(next UnitStatus) bool {
	return contains(unitTransitions[s], next)
}

// RequestStatus is the state of an admin moderation request.
type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestAccepted RequestStatus = "accepted"
	RequestRejected RequestStatus = "rejected"
)

var requestTransitions = map[RequestStatus][]RequestStatus{
	RequestPending: {RequestAccepted, RequestRejected},
}

func (s RequestStatus) Valid() bool {
	switch s {
	case RequestPending, RequestAccepted, RequestRejected:
		return true
	}
	return false
}

// Decision reports whether s is an admin verdict (accepted or rejected).
func (s RequestStatus) Decision() bool { return s == RequestAccepted || s == RequestRejected }

func (s RequestStatus) CanTransition(next RequestStatus) bool {
	return contains(requestTransitions[s], next)
}

// UserStatus is the account state of a user.
type UserStatus string

const (
	UserInactive  UserStatus = "inactive"
	UserActive    UserStatus = "active"
	UserSuspended UserStatus = "suspended"
)

var userTransitions = map[UserStatus][]UserStatus{
	UserInactive:  {UserActive, UserSuspended},
	UserActive:    {UserInactive, UserSuspended},
	UserSuspended: {UserActive},
}

func (s UserStatus) Valid() bool {
	_, ok := userTransitions[s]
	return ok
}

func (s UserStatus) CanTransition(next UserStatus) bool {
	return contains(userTransitions[s], next)
}

// Role names.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

func contains[T comparable](xs []T, v T) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}
