// Package handler exposes the HTTP surface of the API.  Handlers bind and
// validate input, call one service operation under a request timeout and
// render the result; every domain failure is returned as an error and
// mapped to a status code by ErrorHandler.
package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/college-housing/internal/apperr"
	"github.com/iliyamo/college-housing/internal/logging"
	"github.com/iliyamo/college-housing/internal/middleware"
	"github.com/iliyamo/college-housing/internal/model"
)

// requestTimeout bounds every service call made by a handler.
const requestTimeout = 5 * time.Second

// Validator adapts go-playground/validator to echo.Validator.
type Validator struct {
	v *validator.Validate
}

// NewValidator reports fields by their json (or form) name.
func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		for _, tag := range []string{"json", "form"} {
			if name, _, _ := strings.Cut(f.Tag.Get(tag), ","); name != "" && name != "-" {
				return name
			}
		}
		return f.Name
	})
	return &Validator{v: v}
}

// Validate returns an apperr.Validation describing the first failed field.
func (cv *Validator) Validate(i any) error {
	err := cv.v.Struct(i)
	if err == nil {
		return nil
	}
	var ves validator.ValidationErrors
	if errors.As(err, &ves) && len(ves) > 0 {
		return apperr.Validation(describe(ves[0]))
	}
	return apperr.Validation("invalid input")
}

func describe(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return "please provide a valid email"
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "eqfield":
		return fmt.Sprintf("%s must match %s", field, toSnake(fe.Param()))
	case "oneof":
		return fmt.Sprintf("%s must be one of %s", field, fe.Param())
	}
	return field + " is invalid"
}

// toSnake turns the Go field name an eqfield tag refers to into the
// matching json name, e.g. PasswordConfirm -> password_confirm.
func toSnake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ErrorHandler renders errors as {"error": message}.  apperr kinds pick
// the status; echo.HTTPError keeps its own; anything else is a 500 whose
// cause is logged but never shown.
func ErrorHandler(log logging.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		ctx := c.Request().Context()
		status, msg := http.StatusInternalServerError, apperr.MessageOf(err)

		var he *echo.HTTPError
		switch {
		case errors.As(err, &he):
			status = he.Code
			msg = fmt.Sprint(he.Message)
		case apperr.KindOf(err) != apperr.KindUnknown:
			status = apperr.KindOf(err).Status()
		}
		if status >= http.StatusInternalServerError {
			log.Error(ctx, "request failed", "method", c.Request().Method, "path", c.Path(), "err", err)
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(status)
		} else {
			err = c.JSON(status, echo.Map{"error": msg})
		}
		if err != nil {
			log.Error(ctx, "write error response", "err", err)
		}
	}
}

// withTimeout derives the service context for one request.
func withTimeout(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}

// bind decodes the request into dst and validates it.
func bind(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		return apperr.Validation("invalid body")
	}
	return c.Validate(dst)
}

// getUser returns the user stored by the auth middleware.
func getUser(c echo.Context) (model.User, error) {
	u, ok := middleware.CurrentUser(c)
	if !ok {
		return model.User{}, apperr.Unauthenticated("you are not logged in, please log in to get access")
	}
	return u, nil
}

// optionalUser returns the caller when OptionalAuth identified one.
func optionalUser(c echo.Context) *model.User {
	if u, ok := middleware.CurrentUser(c); ok {
		return &u
	}
	return nil
}

// paramID parses a positive numeric path parameter.
func paramID(c echo.Context, name string) (uint64, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, apperr.Validation("invalid " + name)
	}
	return id, nil
}
