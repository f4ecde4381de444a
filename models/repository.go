package models

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DateLayout is the fixed-width calendar date format used for every event date.
// Dates in this layout compare correctly as plain strings.
const DateLayout = "2006-01-02"

// KnownCategories is the category list offered by the admin form.
// The data layer does not restrict categories to this set.
var KnownCategories = []string{
	"Online Workshop",
	"Hackathon",
	"Conference",
	"One-day Workshop",
}

type Event struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	Category          string    `json:"category"`
	RegistrationStart string    `json:"registrationStart"`
	RegistrationEnd   string    `json:"registrationEnd"`
	EventDate         string    `json:"eventDate"`
	CreatedAt         time.Time `json:"createdAt"`
}

type Registration struct {
	ID          string    `json:"id"`
	FullName    string    `json:"fullName"`
	Email       string    `json:"email"`
	CollegeName string    `json:"collegeName"`
	Department  string    `json:"department"`
	EventID     string    `json:"eventId"`
	CreatedAt   time.Time `json:"createdAt"`
}

// RegistrationWithEvent is a registration joined with the fields of its event.
type RegistrationWithEvent struct {
	Registration
	EventName string `json:"eventName"`
	EventDate string `json:"eventDate"`
	Category  string `json:"category"`
}

// RegistrationFilter narrows List. EventID wins over EventDate when both are set.
type RegistrationFilter struct {
	EventID   string `form:"eventId" json:"eventId"`
	EventDate string `form:"eventDate" json:"eventDate"`
}

// Normalize applies the precedence rule: an event id makes the date filter irrelevant.
func (f RegistrationFilter) Normalize() RegistrationFilter {
	if f.EventID != "" {
		f.EventDate = ""
	}
	return f
}

// Settings is the admin-editable notification configuration.
type Settings struct {
	AdminEmail               string `json:"adminEmail" bson:"adminEmail"`
	AdminNotificationEnabled bool   `json:"adminNotificationEnabled" bson:"adminNotificationEnabled"`
}

type User struct {
	ID       int64  `json:"id"`
	Email    string `json:"email"`
	Password string `json:"-"`
}

// ===== Events =====
type EventRepository interface {
	Create(ctx context.Context, e *Event) (string, error)
	Update(ctx context.Context, id string, e Event) (int64, error)
	Delete(ctx context.Context, id string) (int64, error)
	GetByID(ctx context.Context, id string) (Event, bool, error)
	ListAll(ctx context.Context) ([]Event, error)
	ListOpen(ctx context.Context, today string) ([]Event, error)
}

// ===== Registrations =====
type RegistrationRepository interface {
	Create(ctx context.Context, r *Registration) (string, error)
	IsDuplicate(ctx context.Context, email, eventID string) (bool, error)
	CountByEvent(ctx context.Context, eventID string) (int, error)
	CountByDate(ctx context.Context, date string) (int, error)
	List(ctx context.Context, f RegistrationFilter) ([]RegistrationWithEvent, error)
	Delete(ctx context.Context, id string) (int64, error)
}

// ===== Admin users =====
type UserRepository interface {
	Create(ctx context.Context, u *User) error
	ValidateCredentials(ctx context.Context, email, plain string) (User, error)
	GetByEmail(ctx context.Context, email string) (User, error)
}

// ===== Settings =====
type SettingsRepository interface {
	Get(ctx context.Context) (Settings, error)
	Save(ctx context.Context, s Settings) error
}

var (
	// ErrDuplicate reports a registration for an email already registered on the same event date.
	ErrDuplicate = errors.New("already registered for an event on this date")
	// ErrNotFound reports a missing admin user, event or registration.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials reports a failed admin login.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// StorageError wraps a constraint violation or connectivity failure on a write or read.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }

func (e *StorageError) Unwrap() error { return e.Err }

func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}
