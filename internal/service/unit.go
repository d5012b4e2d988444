package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/iliyamo/college-housing/internal/apperr"
	"github.com/iliyamo/college-housing/internal/logging"
	"github.com/iliyamo/college-housing/internal/mail"
	"github.com/iliyamo/college-housing/internal/model"
	"github.com/iliyamo/college-housing/internal/queue"
	"github.com/iliyamo/college-housing/internal/repository"
	"github.com/iliyamo/college-housing/internal/storage"
)

// Upload is one file received with a unit submission.
type Upload struct {
	Name   string
	Reader io.Reader
}

// UnitUploads groups the files of a submission.  All three documents and
// at least one image are required.
type UnitUploads struct {
	Images          []Upload
	IDCard          *Upload
	TitleDeed       *Upload
	ElectricityBill *Upload
}

// UnitDetail is a unit together with its active reviews.
type UnitDetail struct {
	model.Unit
	Reviews []model.Review
}

// UnitService covers owner listing management and the admin moderation
// workflow built around Requests.
type UnitService struct {
	store repository.Store
	blobs storage.Blob
	notifier
	publicURL string
}

func NewUnitService(store repository.Store, blobs storage.Blob, mailer mail.Mailer, events queue.Publisher, log logging.Logger, publicURL string) *UnitService {
	return &UnitService{
		store:     store,
		blobs:     blobs,
		notifier:  notifier{mailer: mailer, events: events, log: log.With("service", "units")},
		publicURL: strings.TrimRight(publicURL, "/"),
	}
}

func validateUnit(u model.Unit) error {
	switch {
	case strings.TrimSpace(u.Title) == "":
		return apperr.Validation("property title is required")
	case strings.TrimSpace(u.Description) == "":
		return apperr.Validation("property description is required")
	case strings.TrimSpace(u.Location) == "":
		return apperr.Validation("property location is required")
	case strings.TrimSpace(u.Address) == "":
		return apperr.Validation("property address is required")
	case u.Size < model.MinUnitSize:
		return apperr.Validation(fmt.Sprintf("property must be at least %d square meters", model.MinUnitSize))
	case u.Size > model.MaxUnitSize:
		return apperr.Validation(fmt.Sprintf("property must be at most %d square meters", model.MaxUnitSize))
	case u.Bedrooms < 0 || u.Bathrooms < 0:
		return apperr.Validation("rooms cannot be negative")
	case !model.ValidCategory(u.Category):
		return apperr.Validation("category must be one of apartment, villa, studio, duplex")
	case u.MonthlyPrice <= 0:
		return apperr.Validation("please provide the price per month")
	case strings.TrimSpace(u.ContactPhone) == "":
		return apperr.Validation("contact phone is required")
	case u.Insurance < 0 || u.Deposit < 0:
		return apperr.Validation("insurance and deposit cannot be negative")
	}
	return nil
}

func (s *UnitService) upload(ctx context.Context, folder string, f Upload) (string, error) {
	url, err := s.blobs.Upload(ctx, folder, f.Name, f.Reader)
	if err != nil {
		return "", apperr.Internal("could not upload "+f.Name, err)
	}
	return url, nil
}

func (s *UnitService) uploadImages(ctx context.Context, ownerID uint64, files []Upload) ([]string, error) {
	folder := fmt.Sprintf("units/%d/images", ownerID)
	urls := make([]string, 0, len(files))
	for _, f := range files {
		url, err := s.upload(ctx, folder, f)
		if err != nil {
			return nil, err
		}
		urls = append(urls, url)
	}
	return urls, nil
}

// SubmitUnit validates and stores a new listing, then opens a moderation
// request for it.  The unit is created inactive and unverified; failing to
// open the request is logged and does not undo the unit.
func (s *UnitService) SubmitUnit(ctx context.Context, owner model.User, fields model.Unit, files UnitUploads) (model.Unit, error) {
	if err := validateUnit(fields); err != nil {
		return model.Unit{}, err
	}
	if files.IDCard == nil || files.TitleDeed == nil || files.ElectricityBill == nil {
		return model.Unit{}, apperr.Validation("id card, title deed and electricity bill documents are required")
	}
	if len(files.Images) == 0 {
		return model.Unit{}, apperr.Validation("property images are required")
	}

	images, err := s.uploadImages(ctx, owner.ID, files.Images)
	if err != nil {
		return model.Unit{}, err
	}
	docs := fmt.Sprintf("units/%d/documents", owner.ID)
	unit := fields
	if unit.IDCardURL, err = s.upload(ctx, docs, *files.IDCard); err != nil {
		return model.Unit{}, err
	}
	if unit.TitleDeedURL, err = s.upload(ctx, docs, *files.TitleDeed); err != nil {
		return model.Unit{}, err
	}
	if unit.ElectricityBillURL, err = s.upload(ctx, docs, *files.ElectricityBill); err != nil {
		return model.Unit{}, err
	}
	unit.OwnerID = owner.ID
	unit.Images = images

	if err := s.store.Units().Create(ctx, &unit); err != nil {
		return model.Unit{}, internalErr("could not create the unit", err)
	}

	req := model.Request{UnitID: unit.ID, UserID: owner.ID, Messages: []string{model.NewUnitRequestMessage}}
	if err := s.store.Requests().Create(ctx, &req); err != nil {
		s.log.Error(ctx, "moderation request not created", "unit_id", unit.ID, "err", err)
	}
	s.publish(ctx, queue.Event{Type: queue.UnitSubmitted, UnitID: unit.ID, UserID: owner.ID,
		ActorID: owner.ID, RequestID: req.ID, Status: string(unit.Status)})
	return unit, nil
}

// Decide records an admin verdict on a pending request.  Accepting
// activates and verifies the unit; rejecting marks it rejected.  Decided
// requests are final.
func (s *UnitService) Decide(ctx context.Context, admin model.User, requestID uint64, status model.RequestStatus, message string) (model.Request, error) {
	if !status.Decision() {
		return model.Request{}, apperr.Validation("status must be accepted or rejected")
	}
	req, err := s.store.Requests().Get(ctx, requestID)
	if err != nil {
		return model.Request{}, lookupErr(err, "no request found with that id")
	}
	if !req.Status.CanTransition(status) {
		return model.Request{}, apperr.Conflict("this request has already been " + string(req.Status))
	}
	if strings.TrimSpace(message) == "" {
		message = "Request " + string(status)
	}

	target, verified := model.UnitRejected, false
	if status == model.RequestAccepted {
		target, verified = model.UnitActive, true
	}

	err = s.store.InTx(ctx, func(ctx context.Context, tx repository.Store) error {
		unit, err := tx.Units().Get(ctx, req.UnitID, repository.ScopeAll)
		if err != nil {
			return lookupErr(err, "the unit of this request no longer exists")
		}
		if unit.Status != target && !unit.Status.CanTransition(target) {
			return apperr.Conflict(fmt.Sprintf("cannot move a %s unit to %s", unit.Status, target))
		}
		if err := tx.Requests().Decide(ctx, req.ID, status, message); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return apperr.Conflict("this request has already been decided")
			}
			return err
		}
		return tx.Units().SetStatus(ctx, unit.ID, target, &verified)
	})
	if err != nil {
		return model.Request{}, internalErr("could not record the decision", err)
	}

	req.Status = status
	req.Messages = append(req.Messages, message)
	s.publish(ctx, queue.Event{Type: queue.RequestDecided, RequestID: req.ID, UnitID: req.UnitID,
		UserID: req.UserID, ActorID: admin.ID, Status: string(status)})
	return req, nil
}

// ListRequests returns moderation requests, optionally by status.
func (s *UnitService) ListRequests(ctx context.Context, status *model.RequestStatus) ([]model.Request, error) {
	if status != nil && !status.Valid() {
		return nil, apperr.Validation("unknown request status")
	}
	list, err := s.store.Requests().List(ctx, status)
	if err != nil {
		return nil, internalErr("could not list requests", err)
	}
	return list, nil
}

// VerifyUnitEmail tells the owner their unit passed verification.  A mail
// failure is reported to the admin.
func (s *UnitService) VerifyUnitEmail(ctx context.Context, admin model.User, unitID uint64) error {
	unit, err := s.store.Units().Get(ctx, unitID, repository.ScopeAll)
	if err != nil {
		return lookupErr(err, "there is no unit with that id")
	}
	owner, err := s.store.Users().GetByID(ctx, unit.OwnerID)
	if err != nil {
		return lookupErr(err, "the owner of this unit no longer exists")
	}
	if owner.Email == "" {
		return apperr.Validation("the owner of this unit has no email address")
	}
	data := mail.Data{UnitTitle: unit.Title, URL: fmt.Sprintf("%s/v1/units/%d", s.publicURL, unit.ID)}
	if err := s.mailer.Send(ctx, mail.KindUnitVerification, recipient(owner), data); err != nil {
		return apperr.Internal("couldn't send the verification email", err)
	}
	s.log.Info(ctx, "unit verification mail sent", "unit_id", unit.ID, "admin_id", admin.ID)
	return nil
}

func (s *UnitService) setStatus(ctx context.Context, actor model.User, unit model.Unit, next model.UnitStatus) (model.Unit, error) {
	if unit.Status == next {
		return unit, nil
	}
	if !unit.Status.CanTransition(next) {
		return model.Unit{}, apperr.Conflict(fmt.Sprintf("cannot move a %s unit to %s", unit.Status, next))
	}
	if err := s.store.Units().SetStatus(ctx, unit.ID, next, nil); err != nil {
		return model.Unit{}, internalErr("could not update the unit", err)
	}
	unit.Status = next
	s.publish(ctx, queue.Event{Type: queue.UnitStatusChanged, UnitID: unit.ID, UserID: unit.OwnerID,
		ActorID: actor.ID, Status: string(next)})
	return unit, nil
}

// Suspend hides a unit regardless of its moderation state.
func (s *UnitService) Suspend(ctx context.Context, admin model.User, unitID uint64) (model.Unit, error) {
	unit, err := s.store.Units().Get(ctx, unitID, repository.ScopeAll)
	if err != nil {
		return model.Unit{}, lookupErr(err, "there is no unit with that id")
	}
	return s.setStatus(ctx, admin, unit, model.UnitSuspended)
}

// Activate publishes a unit directly, bypassing the request flow.
func (s *UnitService) Activate(ctx context.Context, admin model.User, unitID uint64) (model.Unit, error) {
	unit, err := s.store.Units().Get(ctx, unitID, repository.ScopeAll)
	if err != nil {
		return model.Unit{}, lookupErr(err, "there is no unit with that id")
	}
	return s.setStatus(ctx, admin, unit, model.UnitActive)
}

func (s *UnitService) ownedUnit(ctx context.Context, owner model.User, unitID uint64) (model.Unit, error) {
	unit, err := s.store.Units().Get(ctx, unitID, repository.ScopeAll)
	if err != nil {
		return model.Unit{}, lookupErr(err, "there is no unit with that id")
	}
	if unit.OwnerID != owner.ID {
		return model.Unit{}, apperr.Forbidden("you are not the owner of this unit")
	}
	return unit, nil
}

func validatePatch(p model.UnitPatch) error {
	blank := func(s *string) bool { return s != nil && strings.TrimSpace(*s) == "" }
	switch {
	case blank(p.Title) || blank(p.Description) || blank(p.Location) || blank(p.Address) || blank(p.ContactPhone):
		return apperr.Validation("text fields cannot be empty")
	case p.MonthlyPrice != nil && *p.MonthlyPrice <= 0:
		return apperr.Validation("monthly price must be positive")
	case (p.Insurance != nil && *p.Insurance < 0) || (p.Deposit != nil && *p.Deposit < 0):
		return apperr.Validation("insurance and deposit cannot be negative")
	}
	return nil
}

// UpdateUnit applies an owner's changes to the whitelisted fields.  New
// images replace the old set.
func (s *UnitService) UpdateUnit(ctx context.Context, owner model.User, unitID uint64, patch model.UnitPatch, images []Upload) (model.Unit, error) {
	unit, err := s.ownedUnit(ctx, owner, unitID)
	if err != nil {
		return model.Unit{}, err
	}
	if patch.Empty() && len(images) == 0 {
		return model.Unit{}, apperr.Validation("nothing to update")
	}
	if err := validatePatch(patch); err != nil {
		return model.Unit{}, err
	}
	if len(images) > 0 {
		if patch.Images, err = s.uploadImages(ctx, owner.ID, images); err != nil {
			return model.Unit{}, err
		}
	}
	if err := s.store.Units().Update(ctx, unit.ID, patch); err != nil {
		return model.Unit{}, internalErr("could not update the unit", err)
	}
	updated, err := s.store.Units().Get(ctx, unit.ID, repository.ScopeAll)
	if err != nil {
		return model.Unit{}, internalErr("could not reload the unit", err)
	}
	return updated, nil
}

// DeactivateUnit takes an owner's unit off the market.
func (s *UnitService) DeactivateUnit(ctx context.Context, owner model.User, unitID uint64) (model.Unit, error) {
	unit, err := s.ownedUnit(ctx, owner, unitID)
	if err != nil {
		return model.Unit{}, err
	}
	return s.setStatus(ctx, owner, unit, model.UnitInactive)
}

// MyUnits lists every unit of the owner in any status.
func (s *UnitService) MyUnits(ctx context.Context, owner model.User) ([]model.Unit, error) {
	list, err := s.store.Units().ListByOwner(ctx, owner.ID)
	if err != nil {
		return nil, internalErr("could not list units", err)
	}
	return list, nil
}

// ListUnits is the public catalogue of active units.
func (s *UnitService) ListUnits(ctx context.Context, f repository.UnitFilter) ([]model.Unit, error) {
	if f.Category != "" && !model.ValidCategory(f.Category) {
		return nil, apperr.Validation("unknown category")
	}
	list, err := s.store.Units().List(ctx, f)
	if err != nil {
		return nil, internalErr("could not list units", err)
	}
	return list, nil
}

// GetUnit returns a unit with its active reviews.  Anonymous callers and
// other users only see active units; owners see their own units and
// admins see everything.
func (s *UnitService) GetUnit(ctx context.Context, actor *model.User, unitID uint64) (UnitDetail, error) {
	scope := repository.ScopeActiveOnly
	if actor != nil {
		scope = repository.ScopeAll
	}
	unit, err := s.store.Units().Get(ctx, unitID, scope)
	if err != nil {
		return UnitDetail{}, lookupErr(err, "there is no unit with that id")
	}
	if actor != nil && !actor.IsAdmin() && unit.OwnerID != actor.ID && unit.Status != model.UnitActive {
		return UnitDetail{}, apperr.NotFound("there is no unit with that id")
	}
	reviews, err := s.store.Reviews().ListActiveByUnit(ctx, unit.ID)
	if err != nil {
		return UnitDetail{}, internalErr("could not load reviews", err)
	}
	return UnitDetail{Unit: unit, Reviews: reviews}, nil
}
