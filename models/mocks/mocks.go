// Package mocks provides an in-memory implementation of the repositories
// with the same locking and uniqueness rules as the SQL store.
package mocks

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"eventhub/models"
)

type Store struct {
	mu     sync.Mutex
	Users  map[int64]models.User
	Events map[int64]models.Event
	Regs   map[int64]models.Registration
	Audit  []models.AuditEntry

	// FailTx makes the next FailTx calls to WithEventLock return ErrTxConflict.
	FailTx int
	// AuditErr, when set, is returned by Record.
	AuditErr error

	nextID int64
	locks  map[int64]*sync.Mutex
}

func NewStore() *Store {
	return &Store{
		Users:  map[int64]models.User{},
		Events: map[int64]models.Event{},
		Regs:   map[int64]models.Registration{},
		locks:  map[int64]*sync.Mutex{},
	}
}

func (s *Store) UserRepo() models.UserRepository { return &MockUserRepo{s} }
func (s *Store) EventRepo() models.EventRepository { return &MockEventRepo{s} }
func (s *Store) RegRepo() models.RegistrationRepository { return &MockRegRepo{s} }
func (s *Store) AuditRepo() models.AuditRepository { return &MockAuditRepo{s} }

// id must be called with s.mu held.
func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *Store) lockFor(eventID int64) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[eventID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[eventID] = l
	}
	return l
}

// PutUser stores u as-is, assigning an id when u.ID is zero.
func (s *Store) PutUser(u models.User) models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == 0 {
		u.ID = s.id()
	} else if u.ID > s.nextID {
		s.nextID = u.ID
	}
	s.Users[u.ID] = u
	return u
}

// PutEvent stores e as-is, assigning an id when e.ID is zero.
func (s *Store) PutEvent(e models.Event) models.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.ID == 0 {
		e.ID = s.id()
	} else if e.ID > s.nextID {
		s.nextID = e.ID
	}
	s.Events[e.ID] = e
	return e
}

// ActiveCount counts non-rejected registrations for eventID.
func (s *Store) ActiveCount(eventID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeLocked(eventID)
}

func (s *Store) activeLocked(eventID int64) int {
	n := 0
	for _, r := range s.Regs {
		if r.EventID == eventID && r.Status.Active() {
			n++
		}
	}
	return n
}

func (s *Store) findLocked(userID, eventID int64) (models.Registration, bool) {
	for _, r := range s.Regs {
		if r.UserID == userID && r.EventID == eventID {
			return r, true
		}
	}
	return models.Registration{}, false
}

/* -------------------- Users -------------------- */

type MockUserRepo struct{ s *Store }

func (m *MockUserRepo) emailTakenLocked(email string, except int64) bool {
	for _, u := range m.s.Users {
		if u.ID != except && u.DeletedAt == nil && strings.EqualFold(u.Email, email) {
			return true
		}
	}
	return false
}

func (m *MockUserRepo) Create(_ context.Context, u *models.User) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if m.emailTakenLocked(u.Email, 0) {
		return models.ErrDuplicate
	}
	now := time.Now()
	u.ID = m.s.id()
	u.CreatedAt, u.UpdatedAt = now, now
	m.s.Users[u.ID] = *u
	return nil
}

func (m *MockUserRepo) GetByID(_ context.Context, id int64) (models.User, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	u, ok := m.s.Users[id]
	if !ok || u.DeletedAt != nil {
		return models.User{}, models.ErrNotFound
	}
	return u, nil
}

func (m *MockUserRepo) GetByEmail(_ context.Context, email string) (models.User, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, u := range m.s.Users {
		if u.DeletedAt == nil && strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return models.User{}, models.ErrNotFound
}

func (m *MockUserRepo) List(_ context.Context) ([]models.User, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	out := []models.User{}
	for _, u := range m.s.Users {
		if u.DeletedAt == nil {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MockUserRepo) Update(_ context.Context, u *models.User) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	old, ok := m.s.Users[u.ID]
	if !ok || old.DeletedAt != nil {
		return models.ErrNotFound
	}
	if m.emailTakenLocked(u.Email, u.ID) {
		return models.ErrDuplicate
	}
	u.CreatedAt = old.CreatedAt
	u.UpdatedAt = time.Now()
	m.s.Users[u.ID] = *u
	return nil
}

func (m *MockUserRepo) SoftDelete(_ context.Context, id int64, at time.Time) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	u, ok := m.s.Users[id]
	if !ok || u.DeletedAt != nil {
		return models.ErrNotFound
	}
	u.DeletedAt = &at
	m.s.Users[id] = u
	return nil
}

/* -------------------- Events -------------------- */

type MockEventRepo struct{ s *Store }

func (m *MockEventRepo) Create(_ context.Context, e *models.Event) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	now := time.Now()
	e.ID = m.s.id()
	e.CreatedAt, e.UpdatedAt = now, now
	m.s.Events[e.ID] = *e
	return nil
}

func (m *MockEventRepo) GetByID(_ context.Context, id int64) (models.Event, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	e, ok := m.s.Events[id]
	if !ok || e.DeletedAt != nil {
		return models.Event{}, models.ErrNotFound
	}
	return e, nil
}

func (m *MockEventRepo) Exists(_ context.Context, id int64) (bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	_, ok := m.s.Events[id]
	return ok, nil
}

func (m *MockEventRepo) List(_ context.Context, f models.EventFilter) ([]models.Event, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	out := []models.Event{}
	for _, e := range m.s.Events {
		if e.DeletedAt == nil && f.Match(e) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date.Equal(out[j].Date) {
			return out[i].ID < out[j].ID
		}
		return out[i].Date.Before(out[j].Date)
	})
	return out, nil
}

func (m *MockEventRepo) SoftDelete(_ context.Context, id int64, at time.Time) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	e, ok := m.s.Events[id]
	if !ok || e.DeletedAt != nil {
		return models.ErrNotFound
	}
	e.DeletedAt = &at
	m.s.Events[id] = e
	return nil
}

/* --------------- Registrations ------------------ */

type MockRegRepo struct{ s *Store }

func (m *MockRegRepo) WithEventLock(ctx context.Context, eventID int64, fn func(ctx context.Context, tx models.RegistrationTx) error) error {
	lock := m.s.lockFor(eventID)
	lock.Lock()
	defer lock.Unlock()

	m.s.mu.Lock()
	if m.s.FailTx > 0 {
		m.s.FailTx--
		m.s.mu.Unlock()
		return models.ErrTxConflict
	}
	ev, ok := m.s.Events[eventID]
	m.s.mu.Unlock()
	if !ok || ev.DeletedAt != nil {
		return models.ErrNotFound
	}

	tx := &mockTx{s: m.s, event: ev, staged: map[int64]models.Registration{}}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	return tx.commit()
}

func (m *MockRegRepo) list(keep func(models.Registration) bool) []models.Registration {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	out := []models.Registration{}
	for _, r := range m.s.Regs {
		if keep(r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *MockRegRepo) ListForEvent(_ context.Context, eventID int64, status models.Status) ([]models.Registration, error) {
	return m.list(func(r models.Registration) bool {
		return r.EventID == eventID && (status == "" || r.Status == status)
	}), nil
}

func (m *MockRegRepo) ListForUser(_ context.Context, userID int64) ([]models.Registration, error) {
	return m.list(func(r models.Registration) bool { return r.UserID == userID }), nil
}

func (m *MockRegRepo) CountActive(_ context.Context, eventID int64) (int, error) {
	return m.s.ActiveCount(eventID), nil
}

func (m *MockRegRepo) Delete(_ context.Context, userID, eventID int64) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	r, ok := m.s.findLocked(userID, eventID)
	if !ok {
		return models.ErrNotFound
	}
	delete(m.s.Regs, r.ID)
	return nil
}

// mockTx stages writes and applies them on commit, so a failing callback
// leaves the store untouched.
type mockTx struct {
	s      *Store
	event  models.Event
	staged map[int64]models.Registration
	order  []int64
	// eventDirty marks event as needing write-back on commit.
	eventDirty bool
}

func (t *mockTx) Event() models.Event { return t.event }

// view merges committed rows for this event with staged writes.
func (t *mockTx) view() map[int64]models.Registration {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	out := map[int64]models.Registration{}
	for id, r := range t.s.Regs {
		if r.EventID == t.event.ID {
			out[id] = r
		}
	}
	for id, r := range t.staged {
		out[id] = r
	}
	return out
}

func (t *mockTx) CountActive(context.Context) (int, error) {
	n := 0
	for _, r := range t.view() {
		if r.Status.Active() {
			n++
		}
	}
	return n, nil
}

func (t *mockTx) FindByUser(_ context.Context, userID int64) (models.Registration, error) {
	for _, r := range t.view() {
		if r.UserID == userID {
			return r, nil
		}
	}
	return models.Registration{}, models.ErrNotFound
}

func (t *mockTx) Get(_ context.Context, id int64) (models.Registration, error) {
	if r, ok := t.view()[id]; ok {
		return r, nil
	}
	return models.Registration{}, models.ErrNotFound
}

func (t *mockTx) Insert(ctx context.Context, r *models.Registration) error {
	if _, err := t.FindByUser(ctx, r.UserID); err == nil {
		return models.ErrDuplicate
	}
	t.s.mu.Lock()
	r.ID = t.s.id()
	t.s.mu.Unlock()
	r.EventID = t.event.ID
	r.UpdatedAt = r.RegisteredAt
	t.staged[r.ID] = *r
	t.order = append(t.order, r.ID)
	return nil
}

func (t *mockTx) UpdateStatus(ctx context.Context, id int64, status models.Status, at time.Time) error {
	r, err := t.Get(ctx, id)
	if err != nil {
		return err
	}
	r.Status = status
	r.UpdatedAt = at
	if _, ok := t.staged[id]; !ok {
		t.order = append(t.order, id)
	}
	t.staged[id] = r
	return nil
}

func (t *mockTx) UpdateEvent(_ context.Context, e *models.Event) error {
	e.ID = t.event.ID
	e.CreatedAt = t.event.CreatedAt
	e.UpdatedAt = time.Now()
	t.event = *e
	t.eventDirty = true
	return nil
}

func (t *mockTx) commit() error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	for _, id := range t.order {
		r := t.staged[id]
		if existing, ok := t.s.findLocked(r.UserID, r.EventID); ok && existing.ID != r.ID {
			return models.ErrDuplicate
		}
	}
	for _, id := range t.order {
		t.s.Regs[id] = t.staged[id]
	}
	if t.eventDirty {
		t.s.Events[t.event.ID] = t.event
	}
	return nil
}

/* -------------------- Audit -------------------- */

type MockAuditRepo struct{ s *Store }

func (m *MockAuditRepo) Record(_ context.Context, e models.AuditEntry) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if m.s.AuditErr != nil {
		return m.s.AuditErr
	}
	m.s.Audit = append(m.s.Audit, e)
	return nil
}

func (m *MockAuditRepo) ListForEvent(_ context.Context, eventID int64) ([]models.AuditEntry, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	out := []models.AuditEntry{}
	for _, e := range m.s.Audit {
		if e.EventID == eventID {
			out = append(out, e)
		}
	}
	return out, nil
}
