// Package mocks holds in-memory repositories for tests. They follow the same
// rules as the Postgres stores: lower-cased emails, date-scoped uniqueness and
// cascade delete from events to registrations.
package mocks

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"eventreg/models"
	"eventreg/utils"
)

// Store backs MockEventRepo and MockRegRepo together so deletes cascade and dates stay shared.
type Store struct {
	mu     sync.Mutex
	events map[string]models.Event
	regs   map[string]models.Registration
	seq    int
	Now    func() time.Time

	// Err, when set, is returned by every repository call.
	Err error
}

func NewStore() *Store {
	return &Store{
		events: map[string]models.Event{},
		regs:   map[string]models.Registration{},
		Now:    time.Now,
	}
}

func (s *Store) Events() *MockEventRepo      { return &MockEventRepo{s} }
func (s *Store) Registrations() *MockRegRepo { return &MockRegRepo{s} }

func (s *Store) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s-%d", prefix, s.seq)
}

type MockEventRepo struct{ s *Store }

func (m *MockEventRepo) Create(_ context.Context, e *models.Event) (string, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if m.s.Err != nil {
		return "", m.s.Err
	}
	if e.ID == "" {
		e.ID = m.s.nextID("ev")
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = m.s.Now().UTC().Truncate(time.Second)
	}
	m.s.events[e.ID] = *e
	return e.ID, nil
}

func (m *MockEventRepo) Update(_ context.Context, id string, e models.Event) (int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if m.s.Err != nil {
		return 0, m.s.Err
	}
	old, ok := m.s.events[id]
	if !ok {
		return 0, nil
	}
	if e.EventDate != old.EventDate {
		for _, r := range m.s.regs {
			if r.EventID == id && m.s.takenLocked(r.Email, e.EventDate, id) {
				return 0, models.ErrDuplicate
			}
		}
	}
	e.ID = id
	e.CreatedAt = old.CreatedAt
	m.s.events[id] = e
	return 1, nil
}

func (m *MockEventRepo) Delete(_ context.Context, id string) (int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if m.s.Err != nil {
		return 0, m.s.Err
	}
	if _, ok := m.s.events[id]; !ok {
		return 0, nil
	}
	delete(m.s.events, id)
	for rid, r := range m.s.regs {
		if r.EventID == id {
			delete(m.s.regs, rid)
		}
	}
	return 1, nil
}

func (m *MockEventRepo) GetByID(_ context.Context, id string) (models.Event, bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if m.s.Err != nil {
		return models.Event{}, false, m.s.Err
	}
	e, ok := m.s.events[id]
	return e, ok, nil
}

func (m *MockEventRepo) ListAll(_ context.Context) ([]models.Event, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if m.s.Err != nil {
		return nil, m.s.Err
	}
	out := make([]models.Event, 0, len(m.s.events))
	for _, e := range m.s.events {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].EventDate != out[j].EventDate {
			return out[i].EventDate < out[j].EventDate
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (m *MockEventRepo) ListOpen(ctx context.Context, today string) ([]models.Event, error) {
	all, err := m.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	out := []models.Event{}
	for _, e := range all {
		if e.RegistrationStart <= today && today <= e.RegistrationEnd {
			out = append(out, e)
		}
	}
	return out, nil
}

type MockRegRepo struct{ s *Store }

// takenLocked reports whether email already holds a registration on date, ignoring skipEvent.
func (s *Store) takenLocked(email, date, skipEvent string) bool {
	for _, r := range s.regs {
		if r.Email != email || r.EventID == skipEvent {
			continue
		}
		if e, ok := s.events[r.EventID]; ok && e.EventDate == date {
			return true
		}
	}
	return false
}

func (m *MockRegRepo) Create(_ context.Context, r *models.Registration) (string, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if m.s.Err != nil {
		return "", m.s.Err
	}
	e, ok := m.s.events[r.EventID]
	if !ok {
		return "", &models.StorageError{Op: "create registration", Err: errors.New("foreign key violation")}
	}
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	if m.s.takenLocked(r.Email, e.EventDate, "") {
		return "", models.ErrDuplicate
	}
	if r.ID == "" {
		r.ID = m.s.nextID("reg")
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = m.s.Now()
	}
	r.CreatedAt = r.CreatedAt.UTC().Truncate(time.Second)
	m.s.regs[r.ID] = *r
	return r.ID, nil
}

func (m *MockRegRepo) IsDuplicate(_ context.Context, email, eventID string) (bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if m.s.Err != nil {
		return false, m.s.Err
	}
	e, ok := m.s.events[eventID]
	if !ok {
		return false, nil
	}
	return m.s.takenLocked(strings.ToLower(strings.TrimSpace(email)), e.EventDate, ""), nil
}

func (m *MockRegRepo) CountByEvent(_ context.Context, eventID string) (int, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if m.s.Err != nil {
		return 0, m.s.Err
	}
	n := 0
	for _, r := range m.s.regs {
		if r.EventID == eventID {
			n++
		}
	}
	return n, nil
}

func (m *MockRegRepo) CountByDate(_ context.Context, date string) (int, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if m.s.Err != nil {
		return 0, m.s.Err
	}
	n := 0
	for _, r := range m.s.regs {
		if e, ok := m.s.events[r.EventID]; ok && e.EventDate == date {
			n++
		}
	}
	return n, nil
}

func (m *MockRegRepo) List(_ context.Context, f models.RegistrationFilter) ([]models.RegistrationWithEvent, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if m.s.Err != nil {
		return nil, m.s.Err
	}
	f = f.Normalize()
	out := []models.RegistrationWithEvent{}
	for _, r := range m.s.regs {
		e := m.s.events[r.EventID]
		if f.EventID != "" && r.EventID != f.EventID {
			continue
		}
		if f.EventDate != "" && e.EventDate != f.EventDate {
			continue
		}
		out = append(out, models.RegistrationWithEvent{
			Registration: r, EventName: e.Name, EventDate: e.EventDate, Category: e.Category,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *MockRegRepo) Delete(_ context.Context, id string) (int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if m.s.Err != nil {
		return 0, m.s.Err
	}
	if _, ok := m.s.regs[id]; !ok {
		return 0, nil
	}
	delete(m.s.regs, id)
	return 1, nil
}

type MockUserRepo struct {
	mu    sync.Mutex
	Users map[string]models.User // key is email
}

func NewUserRepo() *MockUserRepo { return &MockUserRepo{Users: map[string]models.User{}} }

func (m *MockUserRepo) Create(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	email := strings.ToLower(u.Email)
	if _, ok := m.Users[email]; ok {
		return models.ErrDuplicate
	}
	hashed, err := utils.HashPassword(u.Password)
	if err != nil {
		return err
	}
	u.ID = int64(len(m.Users) + 1)
	u.Email = email
	u.Password = hashed
	m.Users[email] = *u
	return nil
}

func (m *MockUserRepo) ValidateCredentials(ctx context.Context, email, plain string) (models.User, error) {
	u, err := m.GetByEmail(ctx, email)
	if err != nil {
		return models.User{}, models.ErrInvalidCredentials
	}
	if !utils.CheckPasswordHash(plain, u.Password) {
		return models.User{}, models.ErrInvalidCredentials
	}
	return u, nil
}

func (m *MockUserRepo) GetByEmail(_ context.Context, email string) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.Users[strings.ToLower(email)]
	if !ok {
		return models.User{}, models.ErrNotFound
	}
	return u, nil
}

type MockSettingsRepo struct {
	mu       sync.Mutex
	Settings models.Settings
	Err      error
}

func (m *MockSettingsRepo) Get(_ context.Context) (models.Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Settings, m.Err
}

func (m *MockSettingsRepo) Save(_ context.Context, s models.Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Settings = s
	return nil
}
