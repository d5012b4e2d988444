package handler

import (
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/college-housing/internal/apperr"
	"github.com/iliyamo/college-housing/internal/model"
	"github.com/iliyamo/college-housing/internal/repository"
	"github.com/iliyamo/college-housing/internal/service"
)

const (
	// maxUnitImages caps the images accepted with one submission or update.
	maxUnitImages = 14
	// uploadTimeout replaces requestTimeout on routes that push files to
	// blob storage.
	uploadTimeout = time.Minute
)

// UnitHandler serves listings, owner unit management and admin moderation.
type UnitHandler struct {
	Units *service.UnitService
}

func NewUnitHandler(units *service.UnitService) *UnitHandler { return &UnitHandler{Units: units} }

// unitForm is the text part of a multipart unit submission.
type unitForm struct {
	Title          string  `form:"title" validate:"required"`
	Description    string  `form:"description" validate:"required"`
	Location       string  `form:"location" validate:"required"`
	Address        string  `form:"address" validate:"required"`
	Size           int     `form:"size" validate:"required"`
	Bedrooms       int     `form:"bedrooms"`
	Bathrooms      int     `form:"bathrooms"`
	Category       string  `form:"category" validate:"required"`
	Available      bool    `form:"available"`
	Furnished      bool    `form:"furnished"`
	MonthlyPrice   float64 `form:"monthly_price" validate:"required"`
	ContactPhone   string  `form:"contact_phone" validate:"required"`
	WhatsApp       string  `form:"whatsapp"`
	PropertyLevel  int     `form:"property_level"`
	PropertyNumber string  `form:"property_number"`
	Insurance      float64 `form:"insurance"`
	Deposit        float64 `form:"deposit"`
}

func (f unitForm) unit() model.Unit {
	return model.Unit{
		Title: f.Title, Description: f.Description, Location: f.Location, Address: f.Address,
		Size: f.Size, Bedrooms: f.Bedrooms, Bathrooms: f.Bathrooms, Category: f.Category,
		Available: f.Available, Furnished: f.Furnished, MonthlyPrice: f.MonthlyPrice,
		ContactPhone: f.ContactPhone, WhatsApp: f.WhatsApp, PropertyLevel: f.PropertyLevel,
		PropertyNumber: f.PropertyNumber, Insurance: f.Insurance, Deposit: f.Deposit,
	}
}

type decideReq struct {
	Status  string `json:"status" validate:"required,oneof=accepted rejected"`
	Message string `json:"message"`
}

// openFiles opens every part under the given field and returns them as
// uploads.  The returned closer must be called once the service is done.
func openFiles(fhs []*multipart.FileHeader) ([]service.Upload, func(), error) {
	var closers []io.Closer
	closeAll := func() {
		for _, c := range closers {
			_ = c.Close()
		}
	}
	out := make([]service.Upload, 0, len(fhs))
	for _, fh := range fhs {
		f, err := fh.Open()
		if err != nil {
			closeAll()
			return nil, func() {}, apperr.Validation("could not read " + fh.Filename)
		}
		closers = append(closers, f)
		out = append(out, service.Upload{Name: fh.Filename, Reader: f})
	}
	return out, closeAll, nil
}

func firstUpload(ups []service.Upload) *service.Upload {
	if len(ups) == 0 {
		return nil
	}
	return &ups[0]
}

// SubmitUnit accepts multipart/form-data with the unit fields, up to 14
// "images" and one each of "id_card", "title_deed" and "electricity_bill".
func (h *UnitHandler) SubmitUnit(c echo.Context) error {
	u, err := getUser(c)
	if err != nil {
		return err
	}
	var f unitForm
	if err := bind(c, &f); err != nil {
		return err
	}
	form, err := c.MultipartForm()
	if err != nil {
		return apperr.Validation("expected multipart form data")
	}
	if len(form.File["images"]) > maxUnitImages {
		return apperr.Validation("too many images, the maximum is " + strconv.Itoa(maxUnitImages))
	}

	var files service.UnitUploads
	var closers []func()
	defer func() {
		for _, done := range closers {
			done()
		}
	}()
	images, done, err := openFiles(form.File["images"])
	if err != nil {
		return err
	}
	closers = append(closers, done)
	files.Images = images
	for field, dst := range map[string]**service.Upload{
		"id_card":          &files.IDCard,
		"title_deed":       &files.TitleDeed,
		"electricity_bill": &files.ElectricityBill,
	} {
		ups, done, err := openFiles(form.File[field])
		if err != nil {
			return err
		}
		closers = append(closers, done)
		*dst = firstUpload(ups)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), uploadTimeout)
	defer cancel()
	unit, err := h.Units.SubmitUnit(ctx, u, f.unit(), files)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"message": "unit submitted and waiting for admin approval",
		"unit":    toUnit(unit, true),
	})
}

// unitPatch reads the whitelisted fields from a form or JSON body.  Absent
// fields stay nil.
func unitPatch(c echo.Context) (model.UnitPatch, error) {
	var p model.UnitPatch
	str := func(key string) *string {
		if _, ok := c.Request().Form[key]; !ok {
			return nil
		}
		v := c.FormValue(key)
		return &v
	}
	num := func(key string) (*float64, error) {
		s := str(key)
		if s == nil {
			return nil, nil
		}
		v, err := strconv.ParseFloat(*s, 64)
		if err != nil {
			return nil, apperr.Validation("invalid " + key)
		}
		return &v, nil
	}
	flag := func(key string) (*bool, error) {
		s := str(key)
		if s == nil {
			return nil, nil
		}
		v, err := strconv.ParseBool(*s)
		if err != nil {
			return nil, apperr.Validation("invalid " + key)
		}
		return &v, nil
	}

	var err error
	p.Title, p.Description = str("title"), str("description")
	p.Location, p.Address = str("location"), str("address")
	p.ContactPhone, p.WhatsApp = str("contact_phone"), str("whatsapp")
	if p.MonthlyPrice, err = num("monthly_price"); err != nil {
		return p, err
	}
	if p.Insurance, err = num("insurance"); err != nil {
		return p, err
	}
	if p.Deposit, err = num("deposit"); err != nil {
		return p, err
	}
	if p.Available, err = flag("available"); err != nil {
		return p, err
	}
	if p.Furnished, err = flag("furnished"); err != nil {
		return p, err
	}
	return p, nil
}

type unitPatchReq struct {
	Available    *bool    `json:"available"`
	Furnished    *bool    `json:"furnished"`
	MonthlyPrice *float64 `json:"monthly_price"`
	ContactPhone *string  `json:"contact_phone"`
	WhatsApp     *string  `json:"whatsapp"`
	Title        *string  `json:"title"`
	Description  *string  `json:"description"`
	Location     *string  `json:"location"`
	Address      *string  `json:"address"`
	Insurance    *float64 `json:"insurance"`
	Deposit      *float64 `json:"deposit"`
}

// UpdateUnit takes either JSON or multipart/form-data; only the multipart
// form may carry replacement "images".
func (h *UnitHandler) UpdateUnit(c echo.Context) error {
	u, err := getUser(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "unitId")
	if err != nil {
		return err
	}

	var (
		patch  model.UnitPatch
		images []service.Upload
	)
	if strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		form, err := c.MultipartForm()
		if err != nil {
			return apperr.Validation("invalid multipart form")
		}
		if patch, err = unitPatch(c); err != nil {
			return err
		}
		if len(form.File["images"]) > maxUnitImages {
			return apperr.Validation("too many images, the maximum is " + strconv.Itoa(maxUnitImages))
		}
		ups, done, err := openFiles(form.File["images"])
		if err != nil {
			return err
		}
		defer done()
		images = ups
	} else {
		var req unitPatchReq
		if err := bind(c, &req); err != nil {
			return err
		}
		patch = model.UnitPatch{
			Available: req.Available, Furnished: req.Furnished, MonthlyPrice: req.MonthlyPrice,
			ContactPhone: req.ContactPhone, WhatsApp: req.WhatsApp, Title: req.Title,
			Description: req.Description, Location: req.Location, Address: req.Address,
			Insurance: req.Insurance, Deposit: req.Deposit,
		}
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), uploadTimeout)
	defer cancel()
	unit, err := h.Units.UpdateUnit(ctx, u, id, patch, images)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"unit": toUnit(unit, true)})
}

func (h *UnitHandler) DeactivateUnit(c echo.Context) error {
	u, err := getUser(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "unitId")
	if err != nil {
		return err
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	if _, err := h.Units.DeactivateUnit(ctx, u, id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *UnitHandler) MyUnits(c echo.Context) error {
	u, err := getUser(c)
	if err != nil {
		return err
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	units, err := h.Units.MyUnits(ctx, u)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"results": len(units), "units": toUnits(units, true)})
}

// unitFilter parses the public listing query:
// ?category=&location=&min_price=&max_price=&bedrooms=&furnished=&available=&sort=&page=&limit=
func unitFilter(c echo.Context) (repository.UnitFilter, error) {
	var f repository.UnitFilter
	err := echo.QueryParamsBinder(c).
		String("category", &f.Category).
		String("location", &f.Location).
		Float64("min_price", &f.MinPrice).
		Float64("max_price", &f.MaxPrice).
		Int("bedrooms", &f.MinBedrooms).
		String("sort", &f.Sort).
		Int("page", &f.Page).
		Int("limit", &f.Limit).
		BindError()
	if err != nil {
		return f, apperr.Validation("invalid query parameters")
	}
	for key, dst := range map[string]**bool{"furnished": &f.Furnished, "available": &f.Available} {
		s := c.QueryParam(key)
		if s == "" {
			continue
		}
		v, err := strconv.ParseBool(s)
		if err != nil {
			return f, apperr.Validation("invalid " + key)
		}
		*dst = &v
	}
	return f, nil
}

// ListUnits is the public, active-only listing.
func (h *UnitHandler) ListUnits(c echo.Context) error {
	f, err := unitFilter(c)
	if err != nil {
		return err
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	units, err := h.Units.ListUnits(ctx, f)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"results": len(units), "units": toUnits(units, false)})
}

// GetUnit runs behind OptionalAuth.  Documents are shown to the owner and
// to admins only.
func (h *UnitHandler) GetUnit(c echo.Context) error {
	id, err := paramID(c, "unitId")
	if err != nil {
		return err
	}
	actor := optionalUser(c)
	ctx, cancel := withTimeout(c)
	defer cancel()
	d, err := h.Units.GetUnit(ctx, actor, id)
	if err != nil {
		return err
	}
	withDocs := actor != nil && (actor.IsAdmin() || actor.ID == d.OwnerID)
	resp := toUnit(d.Unit, withDocs)
	resp.Reviews = toReviews(d.Reviews)
	return c.JSON(http.StatusOK, echo.Map{"unit": resp})
}

// ----- admin -----

// ListRequests accepts an optional ?status= filter.
func (h *UnitHandler) ListRequests(c echo.Context) error {
	var status *model.RequestStatus
	if s := c.QueryParam("status"); s != "" {
		st := model.RequestStatus(s)
		if !st.Valid() {
			return apperr.Validation("invalid status")
		}
		status = &st
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	reqs, err := h.Units.ListRequests(ctx, status)
	if err != nil {
		return err
	}
	out := make([]requestResp, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, toRequest(r))
	}
	return c.JSON(http.StatusOK, echo.Map{"results": len(out), "requests": out})
}

// Decide accepts or rejects a pending moderation request.
func (h *UnitHandler) Decide(c echo.Context) error {
	admin, err := getUser(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req decideReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	r, err := h.Units.Decide(ctx, admin, id, model.RequestStatus(req.Status), req.Message)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"request": toRequest(r)})
}

func (h *UnitHandler) VerifyUnitEmail(c echo.Context) error {
	admin, err := getUser(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	if err := h.Units.VerifyUnitEmail(ctx, admin, id); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "verification email sent to the unit owner"})
}

// AdminGetUnit shows any unit regardless of status, documents included.
func (h *UnitHandler) AdminGetUnit(c echo.Context) error {
	admin, err := getUser(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	d, err := h.Units.GetUnit(ctx, &admin, id)
	if err != nil {
		return err
	}
	resp := toUnit(d.Unit, true)
	resp.Reviews = toReviews(d.Reviews)
	return c.JSON(http.StatusOK, echo.Map{"unit": resp})
}

func (h *UnitHandler) SuspendUnit(c echo.Context) error {
	return h.adminStatus(c, h.Units.Suspend)
}

func (h *UnitHandler) ActivateUnit(c echo.Context) error {
	return h.adminStatus(c, h.Units.Activate)
}

func (h *UnitHandler) adminStatus(c echo.Context, fn func(context.Context, model.User, uint64) (model.Unit, error)) error {
	admin, err := getUser(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	unit, err := fn(ctx, admin, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"unit": toUnit(unit, true)})
}
