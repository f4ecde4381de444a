// Package registration runs a form submission end to end: the open check,
// validation, the insert and the best-effort notification mails.
package registration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"eventreg/eligibility"
	"eventreg/models"
	"eventreg/notify"
	"eventreg/validation"
)

// ErrRegistrationClosed is returned when no event is currently taking registrations.
var ErrRegistrationClosed = errors.New("registration is currently closed")

var tracer trace.Tracer = otel.Tracer("eventreg/registration")

type Notifier interface {
	Dispatch(ctx context.Context, r models.RegistrationWithEvent, s models.Settings) notify.Result
}

type Service struct {
	events    models.EventRepository
	regs      models.RegistrationRepository
	settings  models.SettingsRepository
	validator *validation.RegistrationValidator
	notifier  Notifier
	log       *zap.Logger
	loc       *time.Location
	now       func() time.Time
}

type Option func(*Service)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

func WithLogger(log *zap.Logger) Option { return func(s *Service) { s.log = log } }

func NewService(
	events models.EventRepository,
	regs models.RegistrationRepository,
	settings models.SettingsRepository,
	notifier Notifier,
	loc *time.Location,
	opts ...Option,
) *Service {
	if loc == nil {
		loc = time.UTC
	}
	s := &Service{
		events:    events,
		regs:      regs,
		settings:  settings,
		validator: validation.NewRegistrationValidator(events, regs),
		notifier:  notifier,
		log:       zap.NewNop(),
		loc:       loc,
		now:       time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Today is the calendar date every openness check uses.
func (s *Service) Today() string { return eligibility.Today(s.loc, s.now()) }

// Options resolves the dropdown cascade for the current selections.
func (s *Service) Options(ctx context.Context, f eligibility.Filters) (eligibility.Options, error) {
	today := s.Today()
	events, err := s.events.ListOpen(ctx, today)
	if err != nil {
		return eligibility.Options{}, fmt.Errorf("list open events: %w", err)
	}
	return eligibility.Resolve(events, f, today), nil
}

// Submit stores a registration and sends the mails. It returns
// ErrRegistrationClosed, validation.FieldErrors, or a storage error.
func (s *Service) Submit(ctx context.Context, sub validation.Submission) (models.RegistrationWithEvent, error) {
	ctx, span := tracer.Start(ctx, "registration.Submit")
	defer span.End()

	out, err := s.submit(ctx, sub)
	if err != nil {
		var fe validation.FieldErrors
		if !errors.As(err, &fe) && !errors.Is(err, ErrRegistrationClosed) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return out, err
	}
	span.SetAttributes(
		attribute.String("registration.id", out.ID),
		attribute.String("event.id", out.EventID),
	)
	return out, nil
}

func (s *Service) submit(ctx context.Context, sub validation.Submission) (models.RegistrationWithEvent, error) {
	today := s.Today()

	events, err := s.events.ListAll(ctx)
	if err != nil {
		return models.RegistrationWithEvent{}, fmt.Errorf("list events: %w", err)
	}
	if !eligibility.IsRegistrationOpen(events, today) {
		return models.RegistrationWithEvent{}, ErrRegistrationClosed
	}

	v, err := s.validator.Validate(ctx, sub, today)
	if err != nil {
		return models.RegistrationWithEvent{}, err
	}

	reg := v.Registration
	reg.CreatedAt = s.now()
	if _, err := s.regs.Create(ctx, &reg); err != nil {
		if errors.Is(err, models.ErrDuplicate) {
			// another submission for this email and date won the insert
			return models.RegistrationWithEvent{}, validation.FieldErrors{"email": validation.MsgAlreadyOnDate}
		}
		return models.RegistrationWithEvent{}, fmt.Errorf("save registration: %w", err)
	}

	out := models.RegistrationWithEvent{
		Registration: reg,
		EventName:    v.Event.Name,
		EventDate:    v.Event.EventDate,
		Category:     v.Event.Category,
	}
	s.log.Info("registration stored",
		zap.String("registrationId", out.ID),
		zap.String("eventId", out.EventID),
		zap.String("eventDate", out.EventDate),
	)

	if s.notifier != nil {
		s.notifier.Dispatch(ctx, out, s.loadSettings(ctx))
	}
	return out, nil
}

func (s *Service) loadSettings(ctx context.Context) models.Settings {
	if s.settings == nil {
		return models.Settings{}
	}
	st, err := s.settings.Get(ctx)
	if err != nil {
		s.log.Warn("load settings failed, admin notification skipped", zap.Error(err))
		return models.Settings{}
	}
	return st
}
