package handler

import (
	"context"
	"database/sql"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/parking-rental/internal/availability"
	"github.com/iliyamo/parking-rental/internal/model"
	"github.com/iliyamo/parking-rental/internal/repository"
	"github.com/iliyamo/parking-rental/internal/service"
	"github.com/iliyamo/parking-rental/internal/utils"
)

var now = time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)

// newCtx builds an echo context for a JSON request, optionally
// authenticated as uid.
func newCtx(method, target, body string, uid uint64) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if uid != 0 {
		c.Set("user_id", uid)
	}
	return c, rec
}

func withParams(c echo.Context, kv ...string) echo.Context {
	var names, values []string
	for i := 0; i+1 < len(kv); i += 2 {
		names = append(names, kv[i])
		values = append(values, kv[i+1])
	}
	c.SetParamNames(names...)
	c.SetParamValues(values...)
	return c
}

// ----- users / tokens -----

type fakeUsers struct {
	mu    sync.Mutex
	next  uint64
	users map[uint64]model.User
}

func newFakeUsers() *fakeUsers { return &fakeUsers{users: map[uint64]model.User{}} }

func (f *fakeUsers) Create(_ context.Context, in repository.NewUser, cost int) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == in.Email {
			return 0, repository.ErrEmailExists
		}
	}
	hash, err := utils.HashPassword(in.Password, cost)
	if err != nil {
		return 0, err
	}
	f.next++
	f.users[f.next] = model.User{ID: f.next, Email: in.Email, PasswordHash: hash, Name: in.Name, Phone: in.Phone, Role: in.Role, IsActive: true}
	return f.next, nil
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return model.User{}, sql.ErrNoRows
}

func (f *fakeUsers) GetByID(_ context.Context, id uint64) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return model.User{}, repository.ErrUserNotFound
	}
	return u, nil
}

type tokenRow struct {
	userID  uint64
	exp     time.Time
	revoked bool
}

type fakeTokens struct {
	mu   sync.Mutex
	rows map[string]*tokenRow
}

func newFakeTokens() *fakeTokens { return &fakeTokens{rows: map[string]*tokenRow{}} }

func (f *fakeTokens) StoreRefresh(_ context.Context, userID uint64, hash string, exp time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[hash] = &tokenRow{userID: userID, exp: exp}
	return nil
}

func (f *fakeTokens) validate(hash string) (uint64, error) {
	r, ok := f.rows[hash]
	if !ok || r.revoked || now.After(r.exp) {
		return 0, repository.ErrInvalidRefresh
	}
	return r.userID, nil
}

func (f *fakeTokens) ValidateRefresh(_ context.Context, hash string) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.validate(hash)
}

func (f *fakeTokens) Rotate(_ context.Context, oldHash, newHash string, exp time.Time) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	uid, err := f.validate(oldHash)
	if err != nil {
		return 0, err
	}
	f.rows[oldHash].revoked = true
	f.rows[newHash] = &tokenRow{userID: uid, exp: exp}
	return uid, nil
}

func (f *fakeTokens) RevokeByHash(_ context.Context, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.rows[hash]; ok {
		r.revoked = true
	}
	return nil
}

func (f *fakeTokens) RevokeAllForUser(_ context.Context, userID uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.userID == userID {
			r.revoked = true
		}
	}
	return nil
}

func (f *fakeTokens) live(userID uint64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.rows {
		if r.userID == userID && !r.revoked {
			n++
		}
	}
	return n
}

// ----- spaces -----

type fakeSpaces struct {
	listings map[uint64]repository.SpaceListing
	next     uint64
	lastList repository.SpaceFilter
	lastQ    repository.SpaceSearchQuery
	hasBook  map[uint64]bool
}

func newFakeSpaces(ls ...repository.SpaceListing) *fakeSpaces {
	f := &fakeSpaces{listings: map[uint64]repository.SpaceListing{}, hasBook: map[uint64]bool{}}
	for _, l := range ls {
		f.listings[l.ID] = l
		if l.ID > f.next {
			f.next = l.ID
		}
	}
	return f
}

func (f *fakeSpaces) Create(_ context.Context, s *model.Space) error {
	f.next++
	s.ID = f.next
	s.CreatedAt, s.UpdatedAt = now, now
	f.listings[s.ID] = repository.SpaceListing{Space: *s}
	return nil
}

func (f *fakeSpaces) GetListing(_ context.Context, id uint64) (repository.SpaceListing, error) {
	l, ok := f.listings[id]
	if !ok {
		return repository.SpaceListing{}, repository.ErrSpaceNotFound
	}
	return l, nil
}

func (f *fakeSpaces) Update(_ context.Context, ownerID uint64, s *model.Space) error {
	l, ok := f.listings[s.ID]
	if !ok {
		return repository.ErrSpaceNotFound
	}
	if l.OwnerID != ownerID {
		return repository.ErrForbidden
	}
	l.Space = *s
	f.listings[s.ID] = l
	return nil
}

func (f *fakeSpaces) Delete(_ context.Context, ownerID, id uint64) error {
	l, ok := f.listings[id]
	if !ok {
		return repository.ErrSpaceNotFound
	}
	if l.OwnerID != ownerID {
		return repository.ErrForbidden
	}
	if f.hasBook[id] {
		return repository.ErrConflict
	}
	delete(f.listings, id)
	return nil
}

func (f *fakeSpaces) List(_ context.Context, flt repository.SpaceFilter, _ repository.Page) ([]repository.SpaceListing, int, error) {
	f.lastList = flt
	var out []repository.SpaceListing
	for _, l := range f.listings {
		out = append(out, l)
	}
	return out, len(out), nil
}

func (f *fakeSpaces) ListByOwner(_ context.Context, ownerID uint64, _ int) ([]repository.SpaceListing, error) {
	var out []repository.SpaceListing
	for _, l := range f.listings {
		if l.OwnerID == ownerID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeSpaces) Search(_ context.Context, q repository.SpaceSearchQuery) ([]repository.SpaceListing, int, error) {
	f.lastQ = q
	return nil, 0, nil
}

type countingPurger struct{ n int }

func (p *countingPurger) Purge(context.Context) { p.n++ }

// ----- booking workflow -----

type fakeWorkflow struct {
	preview   func(spaceID uint64, iv availability.Interval) (availability.Result, error)
	create    func(renterID uint64, in repository.NewBooking) (*model.Booking, *availability.Pricing, error)
	get       func(actorID, id uint64) (*model.Booking, error)
	act       func(actorID, id uint64, action string) (*model.Booking, error)
	del       func(actorID, id uint64) error
	listing   func(spaceID uint64, from, to *time.Time) (*service.Listing, error)
	bookings  []model.Booking
	lastHost  bool
	lastState model.BookingStatus
	lastPage  repository.Page
}

func (f *fakeWorkflow) Preview(_ context.Context, spaceID uint64, iv availability.Interval) (availability.Result, error) {
	return f.preview(spaceID, iv)
}

func (f *fakeWorkflow) Create(_ context.Context, renterID uint64, in repository.NewBooking) (*model.Booking, *availability.Pricing, error) {
	return f.create(renterID, in)
}

func (f *fakeWorkflow) Get(_ context.Context, actorID, id uint64) (*model.Booking, error) {
	return f.get(actorID, id)
}

func (f *fakeWorkflow) List(_ context.Context, _ uint64, asHost bool, status model.BookingStatus, p repository.Page) ([]model.Booking, int, error) {
	f.lastHost, f.lastState, f.lastPage = asHost, status, p
	return f.bookings, len(f.bookings), nil
}

func (f *fakeWorkflow) Act(_ context.Context, actorID, id uint64, action string) (*model.Booking, error) {
	return f.act(actorID, id, action)
}

func (f *fakeWorkflow) Delete(_ context.Context, actorID, id uint64) error {
	return f.del(actorID, id)
}

func (f *fakeWorkflow) AvailabilityListing(_ context.Context, spaceID uint64, from, to *time.Time) (*service.Listing, error) {
	return f.listing(spaceID, from, to)
}

// ----- windows -----

type fakeWindows struct {
	created []model.BlockedWindow
	err     error
}

func (f *fakeWindows) Create(_ context.Context, _ uint64, w *model.BlockedWindow) error {
	if f.err != nil {
		return f.err
	}
	w.ID = uint64(len(f.created) + 1)
	f.created = append(f.created, *w)
	return nil
}

func (f *fakeWindows) Update(_ context.Context, _ uint64, w *model.BlockedWindow) error { return f.err }

func (f *fakeWindows) Delete(_ context.Context, _, _, _ uint64) error { return f.err }
