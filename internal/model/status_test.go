package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppointmentTransitions(t *testing.T) {
	assert.True(t, AppointmentPending.CanTransition(AppointmentConfirmed))
	assert.True(t, AppointmentPending.CanTransition(AppointmentRefused))
	assert.True(t, AppointmentPending.CanTransition(AppointmentCanceled))
	assert.True(t, AppointmentConfirmed.CanTransition(AppointmentCanceled))
	assert.True(t, AppointmentConfirmed.CanTransition(AppointmentCompleted))

	assert.False(t, AppointmentPending.CanTransition(AppointmentCompleted))
	assert.False(t, AppointmentConfirmed.CanTransition(AppointmentRefused))
	for _, s := range []AppointmentStatus{AppointmentRefused, AppointmentCanceled, AppointmentCompleted} {
		assert.True(t, s.Terminal(), s)
		assert.False(t, s.CanTransition(AppointmentPending), s)
	}
	assert.False(t, AppointmentStatus("lost").Valid())
}

func TestUnitTransitions(t *testing.T) {
	assert.True(t, UnitInactive.CanTransition(UnitActive))
	assert.True(t, UnitInactive.CanTransition(UnitRejected))
	assert.True(t, UnitRejected.CanTransition(UnitActive))
	assert.True(t, UnitActive.CanTransition(UnitSuspended))
	assert.False(t, UnitActive.CanTransition(UnitRejected))
	assert.False(t, UnitSuspended.CanTransition(UnitSuspended))
	assert.True(t, UnitSuspended.Valid())
	assert.False(t, UnitStatus("deleted").Valid())
}

func TestRequestTransitions(t *testing.T) {
	assert.True(t, RequestPending.CanTransition(RequestAccepted))
	assert.True(t, RequestPending.CanTransition(RequestRejected))
	assert.False(t, RequestAccepted.CanTransition(RequestRejected))
	assert.False(t, RequestRejected.CanTransition(RequestAccepted))
	assert.True(t, RequestRejected.Decision())
	assert.False(t, RequestPending.Decision())
}

func TestUserTransitions(t *testing.T) {
	assert.True(t, UserInactive.CanTransition(UserActive))
	assert.True(t, UserSuspended.CanTransition(UserActive))
	assert.False(t, UserSuspended.CanTransition(UserInactive))
}

func TestUnitPatchEmpty(t *testing.T) {
	assert.True(t, UnitPatch{}.Empty())
	title := "Sunny studio"
	assert.False(t, UnitPatch{Title: &title}.Empty())
	assert.False(t, UnitPatch{Images: []string{"a.jpg"}}.Empty())
}

func TestValidCategory(t *testing.T) {
	assert.True(t, ValidCategory("villa"))
	assert.False(t, ValidCategory("castle"))
}
