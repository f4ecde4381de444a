// Package admin is the read and maintenance surface behind the admin API:
// filtered registration listings, counts, CSV export, event upkeep and the
// notification settings.
package admin

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"eventreg/eligibility"
	"eventreg/export"
	"eventreg/models"
	"eventreg/validation"
)

// Purger drops cached public responses that depend on the event list.
type Purger interface {
	PurgeOptions(ctx context.Context) (int, error)
}

type Facade struct {
	events   models.EventRepository
	regs     models.RegistrationRepository
	settings models.SettingsRepository
	purger   Purger
	log      *zap.Logger
	loc      *time.Location
	validate *validator.Validate
}

func NewFacade(
	events models.EventRepository,
	regs models.RegistrationRepository,
	settings models.SettingsRepository,
	purger Purger,
	log *zap.Logger,
	loc *time.Location,
) *Facade {
	if log == nil {
		log = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Facade{
		events:   events,
		regs:     regs,
		settings: settings,
		purger:   purger,
		log:      log,
		loc:      loc,
		validate: validator.New(),
	}
}

// Result is one filtered listing. Filter is the filter actually applied.
type Result struct {
	Registrations []models.RegistrationWithEvent `json:"registrations"`
	Count         int                            `json:"count"`
	Filter        models.RegistrationFilter      `json:"filter"`
}

// Query lists registrations newest first. An event id filter wins over a date filter.
func (f *Facade) Query(ctx context.Context, filter models.RegistrationFilter) (Result, error) {
	filter = filter.Normalize()
	regs, err := f.regs.List(ctx, filter)
	if err != nil {
		return Result{}, fmt.Errorf("list registrations: %w", err)
	}
	if regs == nil {
		regs = []models.RegistrationWithEvent{}
	}
	return Result{Registrations: regs, Count: len(regs), Filter: filter}, nil
}

// Export writes the filtered listing as CSV and returns the download file name.
func (f *Facade) Export(ctx context.Context, w io.Writer, filter models.RegistrationFilter, now time.Time) (string, error) {
	res, err := f.Query(ctx, filter)
	if err != nil {
		return "", err
	}
	if err := export.WriteCSV(w, res.Registrations, f.loc); err != nil {
		return "", fmt.Errorf("export csv: %w", err)
	}
	return export.Filename(now.In(f.loc)), nil
}

func (f *Facade) CountForDate(ctx context.Context, date string) (int, error) {
	n, err := f.regs.CountByDate(ctx, date)
	if err != nil {
		return 0, fmt.Errorf("count by date: %w", err)
	}
	return n, nil
}

func (f *Facade) CountForEvent(ctx context.Context, eventID string) (int, error) {
	n, err := f.regs.CountByEvent(ctx, eventID)
	if err != nil {
		return 0, fmt.Errorf("count by event: %w", err)
	}
	return n, nil
}

func (f *Facade) DeleteRegistration(ctx context.Context, id string) error {
	n, err := f.regs.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("delete registration: %w", err)
	}
	if n == 0 {
		return models.ErrNotFound
	}
	return nil
}

// EventSummary is an event row on the admin dashboard.
type EventSummary struct {
	models.Event
	Registrations int  `json:"registrations"`
	Open          bool `json:"open"`
}

func (f *Facade) EventSummaries(ctx context.Context) ([]EventSummary, error) {
	events, err := f.events.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	today := eligibility.Today(f.loc, time.Now())
	out := make([]EventSummary, 0, len(events))
	for _, e := range events {
		n, err := f.regs.CountByEvent(ctx, e.ID)
		if err != nil {
			return nil, fmt.Errorf("count for %s: %w", e.ID, err)
		}
		out = append(out, EventSummary{Event: e, Registrations: n, Open: eligibility.IsOpen(e, today)})
	}
	return out, nil
}

func (f *Facade) GetEvent(ctx context.Context, id string) (models.Event, error) {
	e, found, err := f.events.GetByID(ctx, id)
	if err != nil {
		return models.Event{}, fmt.Errorf("get event: %w", err)
	}
	if !found {
		return models.Event{}, models.ErrNotFound
	}
	return e, nil
}

// CreateEvent validates and stores e, then drops cached option lists.
func (f *Facade) CreateEvent(ctx context.Context, e models.Event) (models.Event, error) {
	if err := validation.ValidateEvent(e); err != nil {
		return models.Event{}, err
	}
	e = validation.NormalizeEvent(e)
	e.ID = ""
	if _, err := f.events.Create(ctx, &e); err != nil {
		return models.Event{}, fmt.Errorf("create event: %w", err)
	}
	f.purge(ctx)
	return e, nil
}

// UpdateEvent replaces every editable field of an event. Moving the date onto one
// where a registrant already holds another registration fails with ErrDuplicate.
func (f *Facade) UpdateEvent(ctx context.Context, id string, e models.Event) (models.Event, error) {
	if err := validation.ValidateEvent(e); err != nil {
		return models.Event{}, err
	}
	e = validation.NormalizeEvent(e)
	n, err := f.events.Update(ctx, id, e)
	if err != nil {
		return models.Event{}, fmt.Errorf("update event: %w", err)
	}
	if n == 0 {
		return models.Event{}, models.ErrNotFound
	}
	f.purge(ctx)
	return f.GetEvent(ctx, id)
}

// DeleteEvent removes the event and, through the foreign key, its registrations.
func (f *Facade) DeleteEvent(ctx context.Context, id string) error {
	n, err := f.events.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	if n == 0 {
		return models.ErrNotFound
	}
	f.purge(ctx)
	return nil
}

func (f *Facade) purge(ctx context.Context) {
	if f.purger == nil {
		return
	}
	n, err := f.purger.PurgeOptions(ctx)
	if err != nil {
		f.log.Warn("purge option cache failed", zap.Error(err))
		return
	}
	f.log.Debug("purged option cache", zap.Int("keys", n))
}

func (f *Facade) Settings(ctx context.Context) (models.Settings, error) {
	s, err := f.settings.Get(ctx)
	if err != nil {
		return models.Settings{}, fmt.Errorf("get settings: %w", err)
	}
	return s, nil
}

// SaveSettings stores the notification settings. An enabled toggle needs an address.
func (f *Facade) SaveSettings(ctx context.Context, s models.Settings) (models.Settings, error) {
	s.AdminEmail = strings.ToLower(strings.TrimSpace(s.AdminEmail))
	errs := validation.FieldErrors{}
	if s.AdminEmail != "" {
		if err := f.validate.Var(s.AdminEmail, "email"); err != nil {
			errs["adminEmail"] = validation.MsgInvalidEmail
		}
	} else if s.AdminNotificationEnabled {
		errs["adminEmail"] = "An admin email is required to enable notifications."
	}
	if len(errs) > 0 {
		return models.Settings{}, errs
	}
	if err := f.settings.Save(ctx, s); err != nil {
		return models.Settings{}, fmt.Errorf("save settings: %w", err)
	}
	return s, nil
}
