package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/college-housing/internal/model"
	"github.com/iliyamo/college-housing/internal/service"
)

// AppointmentHandler serves the visit booking lifecycle nested under
// /v1/units/:unitId/appointments.
type AppointmentHandler struct {
	Appointments *service.AppointmentService
}

func NewAppointmentHandler(appts *service.AppointmentService) *AppointmentHandler {
	return &AppointmentHandler{Appointments: appts}
}

type bookReq struct {
	AvailableDates []time.Time `json:"available_dates" validate:"required,min=1"`
	Notes          string      `json:"notes" validate:"max=500"`
}

type confirmReq struct {
	Date time.Time `json:"date" validate:"required"`
}

// Book: the caller asks the unit owner for a visit on one of the dates.
func (h *AppointmentHandler) Book(c echo.Context) error {
	u, err := getUser(c)
	if err != nil {
		return err
	}
	unitID, err := paramID(c, "unitId")
	if err != nil {
		return err
	}
	var req bookReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	a, err := h.Appointments.Book(ctx, u, service.BookInput{UnitID: unitID, Dates: req.AvailableDates, Notes: req.Notes})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, echo.Map{"appointment": toAppointment(a)})
}

// Confirm: owner only; fixes the visit date.
func (h *AppointmentHandler) Confirm(c echo.Context) error {
	u, err := getUser(c)
	if err != nil {
		return err
	}
	unitID, err := paramID(c, "unitId")
	if err != nil {
		return err
	}
	var req confirmReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	a, err := h.Appointments.Confirm(ctx, u, unitID, c.Param("number"), req.Date)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"appointment": toAppointment(a)})
}

func (h *AppointmentHandler) Refuse(c echo.Context) error {
	return h.step(c, h.Appointments.Refuse)
}

func (h *AppointmentHandler) Cancel(c echo.Context) error {
	return h.step(c, h.Appointments.Cancel)
}

func (h *AppointmentHandler) Complete(c echo.Context) error {
	return h.step(c, h.Appointments.Complete)
}

// step runs a body-less status transition on :unitId/:number.
func (h *AppointmentHandler) step(c echo.Context, fn func(context.Context, model.User, uint64, string) (model.Appointment, error)) error {
	u, err := getUser(c)
	if err != nil {
		return err
	}
	unitID, err := paramID(c, "unitId")
	if err != nil {
		return err
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	a, err := fn(ctx, u, unitID, c.Param("number"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"appointment": toAppointment(a)})
}

// ListForUnit: every appointment of the unit, for its owner.
func (h *AppointmentHandler) ListForUnit(c echo.Context) error {
	u, err := getUser(c)
	if err != nil {
		return err
	}
	unitID, err := paramID(c, "unitId")
	if err != nil {
		return err
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	list, err := h.Appointments.ListForUnit(ctx, u, unitID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"results": len(list), "appointments": toAppointments(list)})
}

func (h *AppointmentHandler) ListMine(c echo.Context) error {
	u, err := getUser(c)
	if err != nil {
		return err
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	list, err := h.Appointments.ListMine(ctx, u)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"results": len(list), "appointments": toAppointments(list)})
}
