package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Astemirdum/lending-service/library/internal/errs"
	"github.com/Astemirdum/lending-service/library/internal/model"
)

// memStore serves all three repositories with per-record atomic updates.
// With uniqueOpen set it also rejects a second open reservation of a book,
// the way the postgres partial index and the mongo partial index do.
type memStore struct {
	mu           sync.Mutex
	seq          int
	uniqueOpen   bool
	books        map[string]model.Book
	users        map[string]model.User
	reservations map[string]model.Reservation
}

func newMemStore() *memStore {
	return &memStore{
		books:        map[string]model.Book{},
		users:        map[string]model.User{},
		reservations: map[string]model.Reservation{},
	}
}

func newUniqueMemStore() *memStore {
	s := newMemStore()
	s.uniqueOpen = true
	return s
}

// openTaken reports an open reservation of bookID other than except. Caller holds mu.
func (s *memStore) openTaken(bookID, except string) bool {
	if !s.uniqueOpen {
		return false
	}
	for id, r := range s.reservations {
		if id != except && r.BookID == bookID && r.Open() {
			return true
		}
	}
	return false
}

func (s *memStore) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s%d", prefix, s.seq)
}

func (s *memStore) CreateBook(_ context.Context, book model.Book) (model.Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	book.ID = s.nextID("b")
	s.books[book.ID] = book
	return book, nil
}

func (s *memStore) GetBook(_ context.Context, id string) (model.Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.books[id]
	if !ok {
		return model.Book{}, errs.ErrNotFound
	}
	return b, nil
}

func (s *memStore) ListBooks(_ context.Context, f model.BookFilter) ([]model.Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Book, 0)
	for _, b := range s.books {
		switch {
		case f.Title != "" && b.Title != f.Title,
			f.Author != "" && b.Author != f.Author,
			f.Disabled != nil && b.Disabled != *f.Disabled,
			f.Reserved != nil && b.Reserved != *f.Reserved,
			f.PubDateAt != nil && (b.PubDate == nil || !b.PubDate.Equal(*f.PubDateAt)):
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memStore) UpdateBook(_ context.Context, id string, upd model.BookUpdate) (model.Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.books[id]
	if !ok {
		return model.Book{}, errs.ErrNotFound
	}
	if upd.Title != nil {
		b.Title = *upd.Title
	}
	if upd.Author != nil {
		b.Author = *upd.Author
	}
	s.books[id] = b
	return b, nil
}

func (s *memStore) SetReserved(_ context.Context, id string, reserved bool) (model.Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.books[id]
	if !ok || b.Reserved == reserved || reserved && b.Disabled {
		return model.Book{}, errs.ErrConflict
	}
	b.Reserved = reserved
	s.books[id] = b
	return b, nil
}

func (s *memStore) DisableBook(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.books[id]
	if !ok {
		return errs.ErrNotFound
	}
	if b.Reserved {
		return errs.ErrConflict
	}
	b.Disabled = true
	s.books[id] = b
	return nil
}

func (s *memStore) CreateUser(_ context.Context, user model.User) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == user.Email {
			return model.User{}, errs.ErrConflict
		}
	}
	user.ID = s.nextID("u")
	s.users[user.ID] = user
	return user, nil
}

func (s *memStore) GetUser(_ context.Context, id string) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return model.User{}, errs.ErrNotFound
	}
	return u, nil
}

func (s *memStore) GetUserByEmail(_ context.Context, email string) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return model.User{}, errs.ErrNotFound
}

func (s *memStore) UpdateUser(_ context.Context, id string, upd model.UserUpdate) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return model.User{}, errs.ErrNotFound
	}
	if upd.Name != nil {
		u.Name = *upd.Name
	}
	if upd.Email != nil {
		u.Email = *upd.Email
	}
	if upd.Password != nil {
		u.Password = *upd.Password
	}
	if upd.Permissions != nil {
		u.Permissions = upd.Permissions
	}
	s.users[id] = u
	return u, nil
}

func (s *memStore) DisableUser(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return errs.ErrNotFound
	}
	u.Disabled = true
	s.users[id] = u
	return nil
}

func (s *memStore) CreateReservation(_ context.Context, bookID, userID string, at time.Time) (model.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.openTaken(bookID, "") {
		return model.Reservation{}, errs.ErrConflict
	}
	r := model.Reservation{ID: s.nextID("r"), BookID: bookID, UserID: userID, ReservationDate: at}
	s.reservations[r.ID] = r
	return r, nil
}

func (s *memStore) CloseReservation(_ context.Context, bookID, userID string, at time.Time) (model.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, r := range s.reservations {
		if r.BookID == bookID && r.UserID == userID && r.Open() {
			r.ReturnDate = &at
			s.reservations[id] = r
			return r, nil
		}
	}
	return model.Reservation{}, errs.ErrNotFound
}

func (s *memStore) ReopenReservation(_ context.Context, id string) (model.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reservations[id]
	if !ok || r.Open() {
		return model.Reservation{}, errs.ErrNotFound
	}
	if s.openTaken(r.BookID, id) {
		return model.Reservation{}, errs.ErrConflict
	}
	r.ReturnDate = nil
	s.reservations[id] = r
	return r, nil
}

func (s *memStore) DeleteReservation(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.reservations[id]; !ok {
		return errs.ErrNotFound
	}
	delete(s.reservations, id)
	return nil
}

func (s *memStore) ListReservations(_ context.Context, f model.ReservationFilter) ([]model.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Reservation, 0)
	for _, r := range s.reservations {
		if f.BookID != "" && r.BookID != f.BookID || f.UserID != "" && r.UserID != f.UserID {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ReservationDate.Equal(out[j].ReservationDate) {
			return out[i].ID < out[j].ID
		}
		return out[i].ReservationDate.Before(out[j].ReservationDate)
	})
	return out, nil
}

// openReservations counts reservations of bookID with no return date.
func (s *memStore) openReservations(bookID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.reservations {
		if r.BookID == bookID && r.Open() {
			n++
		}
	}
	return n
}

type callerKey struct{}

func withCaller(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, callerKey{}, name)
}

func callerOf(ctx context.Context) string {
	name, _ := ctx.Value(callerKey{}).(string)
	return name
}

const (
	opGetBook           = "GetBook"
	opSetReserved       = "SetReserved"
	opCreateReservation = "CreateReservation"
	opCloseReservation  = "CloseReservation"
	opDeleteReservation = "DeleteReservation"
	opListReservations  = "ListReservations"
)

// hookedStore lets a test order the store calls of concurrent operations. The caller is
// taken from the context (withCaller) and n counts the calls of op by that caller.
type hookedStore struct {
	*memStore

	calls  sync.Map
	before func(ctx context.Context, op string, n int)
	after  func(ctx context.Context, op string, n int)
}

func (h *hookedStore) around(ctx context.Context, op string, call func()) {
	counter, _ := h.calls.LoadOrStore(callerOf(ctx)+"/"+op, new(atomic.Int64))
	n := int(counter.(*atomic.Int64).Add(1))
	if h.before != nil {
		h.before(ctx, op, n)
	}
	call()
	if h.after != nil {
		h.after(ctx, op, n)
	}
}

func (h *hookedStore) GetBook(ctx context.Context, id string) (b model.Book, err error) {
	h.around(ctx, opGetBook, func() { b, err = h.memStore.GetBook(ctx, id) })
	return b, err
}

func (h *hookedStore) SetReserved(ctx context.Context, id string, reserved bool) (b model.Book, err error) {
	h.around(ctx, opSetReserved, func() { b, err = h.memStore.SetReserved(ctx, id, reserved) })
	return b, err
}

func (h *hookedStore) CreateReservation(ctx context.Context, bookID, userID string, at time.Time) (r model.Reservation, err error) {
	h.around(ctx, opCreateReservation, func() { r, err = h.memStore.CreateReservation(ctx, bookID, userID, at) })
	return r, err
}

func (h *hookedStore) CloseReservation(ctx context.Context, bookID, userID string, at time.Time) (r model.Reservation, err error) {
	h.around(ctx, opCloseReservation, func() { r, err = h.memStore.CloseReservation(ctx, bookID, userID, at) })
	return r, err
}

func (h *hookedStore) DeleteReservation(ctx context.Context, id string) (err error) {
	h.around(ctx, opDeleteReservation, func() { err = h.memStore.DeleteReservation(ctx, id) })
	return err
}

func (h *hookedStore) ListReservations(ctx context.Context, f model.ReservationFilter) (items []model.Reservation, err error) {
	h.around(ctx, opListReservations, func() { items, err = h.memStore.ListReservations(ctx, f) })
	return items, err
}
