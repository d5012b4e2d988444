package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/college-housing/internal/mail"
	"github.com/iliyamo/college-housing/internal/model"
	"github.com/iliyamo/college-housing/internal/queue"
	"github.com/iliyamo/college-housing/internal/repository"
)

type tokenRow struct {
	userID  uint64
	exp     time.Time
	revoked bool
}

type memState struct {
	nextID    uint64
	users     map[uint64]model.User
	tokens    map[string]tokenRow
	favorites map[[2]uint64]bool
	units     map[uint64]model.Unit
	requests  map[uint64]model.Request
	appts     map[uint64]model.Appointment
	reviews   map[uint64]model.Review
	counters  map[string]uint64
}

func (s memState) clone() memState {
	c := s
	c.users = maps.Clone(s.users)
	c.tokens = maps.Clone(s.tokens)
	c.favorites = maps.Clone(s.favorites)
	c.units = maps.Clone(s.units)
	c.requests = maps.Clone(s.requests)
	c.appts = maps.Clone(s.appts)
	c.reviews = maps.Clone(s.reviews)
	c.counters = maps.Clone(s.counters)
	return c
}

// memStore is an in-memory repository.Store.  InTx snapshots the state
// and restores it when fn fails.
type memStore struct {
	mu   sync.Mutex
	txMu sync.Mutex
	st   memState

	failRequestCreate error
	failSummary       error
}

func newMemStore() *memStore {
	return &memStore{st: memState{
		users:     map[uint64]model.User{},
		tokens:    map[string]tokenRow{},
		favorites: map[[2]uint64]bool{},
		units:     map[uint64]model.Unit{},
		requests:  map[uint64]model.Request{},
		appts:     map[uint64]model.Appointment{},
		reviews:   map[uint64]model.Review{},
		counters:  map[string]uint64{},
	}}
}

func (m *memStore) id() uint64 { m.st.nextID++; return m.st.nextID }

func (m *memStore) Users() repository.UserRepository               { return memUsers{m} }
func (m *memStore) Tokens() repository.TokenRepository             { return memTokens{m} }
func (m *memStore) Favorites() repository.FavoriteRepository       { return memFavorites{m} }
func (m *memStore) Units() repository.UnitRepository               { return memUnits{m} }
func (m *memStore) Requests() repository.RequestRepository         { return memRequests{m} }
func (m *memStore) Appointments() repository.AppointmentRepository { return memAppts{m} }
func (m *memStore) Reviews() repository.ReviewRepository           { return memReviews{m} }
func (m *memStore) Counters() repository.CounterRepository         { return memCounters{m} }

func (m *memStore) InTx(ctx context.Context, fn func(ctx context.Context, s repository.Store) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()
	m.mu.Lock()
	snap := m.st.clone()
	m.mu.Unlock()
	if err := fn(ctx, m); err != nil {
		m.mu.Lock()
		m.st = snap
		m.mu.Unlock()
		return err
	}
	return nil
}

// seeding helpers

func (m *memStore) addUser(u model.User) model.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	u.ID = m.id()
	if u.Role == "" {
		u.Role = model.RoleUser
	}
	if u.Status == "" {
		u.Status = model.UserActive
	}
	m.st.users[u.ID] = u
	return u
}

func (m *memStore) addUnit(u model.Unit) model.Unit {
	m.mu.Lock()
	defer m.mu.Unlock()
	u.ID = m.id()
	if u.Status == "" {
		u.Status = model.UnitActive
	}
	m.st.units[u.ID] = u
	return u
}

func (m *memStore) addAppointment(a model.Appointment) model.Appointment {
	m.mu.Lock()
	defer m.mu.Unlock()
	a.ID = m.id()
	m.st.appts[a.ID] = a
	return a
}

func (m *memStore) unit(id uint64) model.Unit {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.units[id]
}

func (m *memStore) user(id uint64) model.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.users[id]
}

func (m *memStore) request(id uint64) model.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.requests[id]
}

func (m *memStore) activeReviews(unitID uint64) (n int, sum int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.st.reviews {
		if r.UnitID == unitID && r.Active {
			n++
			sum += r.Rating
		}
	}
	return n, sum
}

type memUsers struct{ m *memStore }

func (r memUsers) Create(_ context.Context, u *model.User) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, o := range r.m.st.users {
		if o.Email == u.Email || (u.Phone != nil && o.Phone != nil && *o.Phone == *u.Phone) {
			return repository.ErrDuplicate
		}
	}
	u.ID = r.m.id()
	if u.Role == "" {
		u.Role = model.RoleUser
	}
	r.m.st.users[u.ID] = *u
	return nil
}

func (r memUsers) find(pred func(model.User) bool) (model.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, u := range r.m.st.users {
		if pred(u) {
			return u, nil
		}
	}
	return model.User{}, repository.ErrNotFound
}

func (r memUsers) update(id uint64, fn func(*model.User)) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	u, ok := r.m.st.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	fn(&u)
	r.m.st.users[id] = u
	return nil
}

func (r memUsers) GetByID(_ context.Context, id uint64) (model.User, error) {
	return r.find(func(u model.User) bool { return u.ID == id })
}

func (r memUsers) GetByEmail(_ context.Context, email string) (model.User, error) {
	return r.find(func(u model.User) bool { return u.Email == email })
}

func (r memUsers) GetByGoogleID(_ context.Context, gid string) (model.User, error) {
	return r.find(func(u model.User) bool { return u.GoogleID != nil && *u.GoogleID == gid })
}

func (r memUsers) GetByVerificationHash(_ context.Context, hash string, now time.Time) (model.User, error) {
	return r.find(func(u model.User) bool {
		return u.VerificationHash != nil && *u.VerificationHash == hash && u.VerificationExpires.After(now)
	})
}

func (r memUsers) GetByResetHash(_ context.Context, hash string, now time.Time) (model.User, error) {
	return r.find(func(u model.User) bool {
		return u.PasswordResetHash != nil && *u.PasswordResetHash == hash && u.PasswordResetExpires.After(now)
	})
}

func (r memUsers) SetVerification(_ context.Context, id uint64, hash *string, exp *time.Time) error {
	return r.update(id, func(u *model.User) { u.VerificationHash, u.VerificationExpires = hash, exp })
}

func (r memUsers) MarkVerified(_ context.Context, id uint64) error {
	return r.update(id, func(u *model.User) {
		u.Verified, u.Status, u.VerificationHash, u.VerificationExpires = true, model.UserActive, nil, nil
	})
}

func (r memUsers) SetPasswordReset(_ context.Context, id uint64, hash *string, exp *time.Time) error {
	return r.update(id, func(u *model.User) { u.PasswordResetHash, u.PasswordResetExpires = hash, exp })
}

func (r memUsers) UpdatePassword(_ context.Context, id uint64, hash string, at time.Time) error {
	return r.update(id, func(u *model.User) {
		u.PasswordHash, u.PasswordChangedAt = hash, &at
		u.PasswordResetHash, u.PasswordResetExpires = nil, nil
	})
}

func (r memUsers) UpdateProfile(_ context.Context, id uint64, name, email string, phone *string) error {
	if _, err := r.find(func(u model.User) bool { return u.ID != id && u.Email == email }); err == nil {
		return repository.ErrDuplicate
	}
	return r.update(id, func(u *model.User) { u.FullName, u.Email, u.Phone = name, email, phone })
}

func (r memUsers) LinkGoogle(_ context.Context, id uint64, gid string) error {
	return r.update(id, func(u *model.User) { u.GoogleID, u.Verified = &gid, true })
}

func (r memUsers) SetStatus(_ context.Context, id uint64, st model.UserStatus) error {
	return r.update(id, func(u *model.User) { u.Status = st })
}

func (r memUsers) ListByStatus(_ context.Context, st *model.UserStatus) ([]model.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []model.User
	for _, u := range r.m.st.users {
		if u.Role == model.RoleUser && (st == nil || u.Status == *st) {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type memTokens struct{ m *memStore }

func (r memTokens) StoreRefresh(_ context.Context, userID uint64, hash string, exp time.Time) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.st.tokens[hash] = tokenRow{userID: userID, exp: exp}
	return nil
}

func (r memTokens) ValidateRefresh(_ context.Context, hash string) (uint64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	t, ok := r.m.st.tokens[hash]
	if !ok || t.revoked || time.Now().After(t.exp) {
		return 0, repository.ErrNotFound
	}
	return t.userID, nil
}

func (r memTokens) RevokeByHash(_ context.Context, hash string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if t, ok := r.m.st.tokens[hash]; ok {
		t.revoked = true
		r.m.st.tokens[hash] = t
	}
	return nil
}

func (r memTokens) RevokeAllForUser(_ context.Context, userID uint64) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for h, t := range r.m.st.tokens {
		if t.userID == userID {
			t.revoked = true
			r.m.st.tokens[h] = t
		}
	}
	return nil
}

type memFavorites struct{ m *memStore }

func (r memFavorites) Add(_ context.Context, userID, unitID uint64) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.st.favorites[[2]uint64{userID, unitID}] = true
	return nil
}

func (r memFavorites) Remove(_ context.Context, userID, unitID uint64) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	delete(r.m.st.favorites, [2]uint64{userID, unitID})
	return nil
}

func (r memFavorites) List(_ context.Context, userID uint64) ([]model.Unit, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []model.Unit
	for k := range r.m.st.favorites {
		if u, ok := r.m.st.units[k[1]]; ok && k[0] == userID && u.Status == model.UnitActive {
			out = append(out, u)
		}
	}
	return out, nil
}

type memUnits struct{ m *memStore }

func (r memUnits) Create(_ context.Context, u *model.Unit) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	u.ID = r.m.id()
	u.Status, u.IsVerified, u.Rating, u.RatingQuantity = model.UnitInactive, false, 0, 0
	r.m.st.units[u.ID] = *u
	return nil
}

func (r memUnits) Get(_ context.Context, id uint64, scope repository.Scope) (model.Unit, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	u, ok := r.m.st.units[id]
	if !ok || (scope == repository.ScopeActiveOnly && u.Status != model.UnitActive) {
		return model.Unit{}, repository.ErrNotFound
	}
	return u, nil
}

func (r memUnits) List(_ context.Context, f repository.UnitFilter) ([]model.Unit, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []model.Unit
	for _, u := range r.m.st.units {
		if u.Status == model.UnitActive && (f.Category == "" || u.Category == f.Category) {
			out = append(out, u)
		}
	}
	return out, nil
}

func (r memUnits) ListByOwner(_ context.Context, ownerID uint64) ([]model.Unit, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []model.Unit
	for _, u := range r.m.st.units {
		if u.OwnerID == ownerID {
			out = append(out, u)
		}
	}
	return out, nil
}

func (r memUnits) update(id uint64, fn func(*model.Unit)) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	u, ok := r.m.st.units[id]
	if !ok {
		return repository.ErrNotFound
	}
	fn(&u)
	r.m.st.units[id] = u
	return nil
}

func (r memUnits) Update(_ context.Context, id uint64, p model.UnitPatch) error {
	return r.update(id, func(u *model.Unit) {
		if p.Title != nil {
			u.Title = *p.Title
		}
		if p.MonthlyPrice != nil {
			u.MonthlyPrice = *p.MonthlyPrice
		}
		if p.Available != nil {
			u.Available = *p.Available
		}
		if p.Images != nil {
			u.Images = p.Images
		}
	})
}

func (r memUnits) SetStatus(_ context.Context, id uint64, st model.UnitStatus, verified *bool) error {
	return r.update(id, func(u *model.Unit) {
		u.Status = st
		if verified != nil {
			u.IsVerified = *verified
		}
	})
}

func (r memUnits) DeactivateByOwner(_ context.Context, ownerID uint64) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var n int64
	for id, u := range r.m.st.units {
		if u.OwnerID == ownerID && u.Status == model.UnitActive {
			u.Status = model.UnitInactive
			r.m.st.units[id] = u
			n++
		}
	}
	return n, nil
}

func (r memUnits) UpdateRating(_ context.Context, id uint64, s model.RatingSummary) error {
	return r.update(id, func(u *model.Unit) { u.Rating, u.RatingQuantity = s.Average, s.Quantity })
}

// Lock is a presence check; memStore transactions already run one at a time.
func (r memUnits) Lock(_ context.Context, id uint64) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.st.units[id]; !ok {
		return repository.ErrNotFound
	}
	return nil
}

type memRequests struct{ m *memStore }

func (r memRequests) Create(_ context.Context, req *model.Request) error {
	if r.m.failRequestCreate != nil {
		return r.m.failRequestCreate
	}
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	req.ID = r.m.id()
	req.Status = model.RequestPending
	r.m.st.requests[req.ID] = *req
	return nil
}

func (r memRequests) Get(_ context.Context, id uint64) (model.Request, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	req, ok := r.m.st.requests[id]
	if !ok {
		return model.Request{}, repository.ErrNotFound
	}
	return req, nil
}

func (r memRequests) List(_ context.Context, st *model.RequestStatus) ([]model.Request, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []model.Request
	for _, q := range r.m.st.requests {
		if st == nil || q.Status == *st {
			out = append(out, q)
		}
	}
	return out, nil
}

func (r memRequests) Decide(_ context.Context, id uint64, st model.RequestStatus, msg string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	req, ok := r.m.st.requests[id]
	if !ok {
		return repository.ErrNotFound
	}
	if req.Status != model.RequestPending {
		return repository.ErrConflict
	}
	req.Status = st
	req.Messages = append(append([]string(nil), req.Messages...), msg)
	r.m.st.requests[id] = req
	return nil
}

type memAppts struct{ m *memStore }

func (r memAppts) Create(_ context.Context, a *model.Appointment) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, o := range r.m.st.appts {
		if o.Number == a.Number {
			return repository.ErrDuplicate
		}
	}
	a.ID = r.m.id()
	r.m.st.appts[a.ID] = *a
	return nil
}

func (r memAppts) GetByNumber(_ context.Context, number string) (model.Appointment, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, a := range r.m.st.appts {
		if a.Number == number {
			return a, nil
		}
	}
	return model.Appointment{}, repository.ErrNotFound
}

func (r memAppts) HasWithStatus(_ context.Context, userID, unitID uint64, sts ...model.AppointmentStatus) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, a := range r.m.st.appts {
		if a.UserID != userID || a.UnitID != unitID {
			continue
		}
		for _, st := range sts {
			if a.Status == st {
				return true, nil
			}
		}
	}
	return false, nil
}

func (r memAppts) Transition(_ context.Context, id uint64, from, to model.AppointmentStatus, date *time.Time) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	a, ok := r.m.st.appts[id]
	if !ok || a.Status != from {
		return repository.ErrConflict
	}
	a.Status = to
	if date != nil {
		d := *date
		a.Date = &d
	}
	r.m.st.appts[id] = a
	return nil
}

func (r memAppts) list(pred func(model.Appointment) bool) []model.Appointment {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []model.Appointment
	for _, a := range r.m.st.appts {
		if pred(a) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r memAppts) ListByUnit(_ context.Context, unitID uint64) ([]model.Appointment, error) {
	return r.list(func(a model.Appointment) bool { return a.UnitID == unitID }), nil
}

func (r memAppts) ListByUser(_ context.Context, userID uint64) ([]model.Appointment, error) {
	return r.list(func(a model.Appointment) bool { return a.UserID == userID }), nil
}

type memReviews struct{ m *memStore }

func (r memReviews) Create(_ context.Context, rv *model.Review) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	rv.ID = r.m.id()
	rv.Active = true
	r.m.st.reviews[rv.ID] = *rv
	return nil
}

func (r memReviews) Get(_ context.Context, id uint64) (model.Review, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	rv, ok := r.m.st.reviews[id]
	if !ok || !rv.Active {
		return model.Review{}, repository.ErrNotFound
	}
	return rv, nil
}

func (r memReviews) HasActive(_ context.Context, authorID, unitID uint64) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, rv := range r.m.st.reviews {
		if rv.AuthorID == authorID && rv.UnitID == unitID && rv.Active {
			return true, nil
		}
	}
	return false, nil
}

func (r memReviews) Update(_ context.Context, id uint64, p model.ReviewPatch) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	rv, ok := r.m.st.reviews[id]
	if !ok || !rv.Active {
		return repository.ErrNotFound
	}
	if p.Review != nil {
		rv.Review = *p.Review
	}
	if p.Rating != nil {
		rv.Rating = *p.Rating
	}
	r.m.st.reviews[id] = rv
	return nil
}

func (r memReviews) Deactivate(_ context.Context, id uint64) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	rv, ok := r.m.st.reviews[id]
	if !ok || !rv.Active {
		return repository.ErrNotFound
	}
	rv.Active = false
	r.m.st.reviews[id] = rv
	return nil
}

func (r memReviews) ListActiveByUnit(_ context.Context, unitID uint64) ([]model.Review, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []model.Review
	for _, rv := range r.m.st.reviews {
		if rv.UnitID == unitID && rv.Active {
			out = append(out, rv)
		}
	}
	return out, nil
}

func (r memReviews) Summary(_ context.Context, unitID uint64) (model.RatingSummary, error) {
	if r.m.failSummary != nil {
		return model.RatingSummary{}, r.m.failSummary
	}
	n, sum := r.m.activeReviews(unitID)
	if n == 0 {
		return model.RatingSummary{}, nil
	}
	return model.RatingSummary{Average: float64(sum) / float64(n), Quantity: n}, nil
}

type memCounters struct{ m *memStore }

func (r memCounters) Next(_ context.Context, name string) (uint64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	v, ok := r.m.st.counters[name]
	if !ok {
		v = repository.CounterStart - 1
	}
	v++
	r.m.st.counters[name] = v
	return v, nil
}

type sentMail struct {
	Kind mail.Kind
	To   mail.Recipient
	Data mail.Data
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
	fail map[mail.Kind]error
}

func (f *fakeMailer) Send(_ context.Context, kind mail.Kind, to mail.Recipient, data mail.Data) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail[kind]; err != nil {
		return err
	}
	f.sent = append(f.sent, sentMail{Kind: kind, To: to, Data: data})
	return nil
}

func (f *fakeMailer) kinds() []mail.Kind {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]mail.Kind, len(f.sent))
	for i, s := range f.sent {
		out[i] = s.Kind
	}
	return out
}

func (f *fakeMailer) last(kind mail.Kind) (sentMail, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.sent) - 1; i >= 0; i-- {
		if f.sent[i].Kind == kind {
			return f.sent[i], true
		}
	}
	return sentMail{}, false
}

type fakePublisher struct {
	mu     sync.Mutex
	events []queue.Event
	err    error
}

func (f *fakePublisher) Publish(_ context.Context, ev queue.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, ev)
	return nil
}

func (f *fakePublisher) types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.events))
	for i, e := range f.events {
		out[i] = e.Type
	}
	return out
}

type fakeBlob struct {
	uploads []string
	err     error
}

func (f *fakeBlob) Upload(_ context.Context, folder, name string, r io.Reader) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if _, err := io.Copy(io.Discard, r); err != nil {
		return "", err
	}
	url := fmt.Sprintf("https://blob.test/%s/%s", folder, name)
	f.uploads = append(f.uploads, url)
	return url, nil
}

var errBoom = errors.New("boom")

func farFuture() time.Time { return time.Now().Add(24 * time.Hour) }
