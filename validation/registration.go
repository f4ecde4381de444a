package validation

import (
	"context"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"eventreg/eligibility"
	"eventreg/models"
)

// MaxFieldLen is the limit for every free-text field, counted in characters.
const MaxFieldLen = 255

const (
	MsgSelectEvent    = "Please select an event."
	MsgEventGone      = "The selected event is no longer available."
	MsgAlreadyOnDate  = "You have already registered for an event on this date."
	MsgInvalidEmail   = "Please enter a valid email address."
	msgPersonCharset  = "may only contain letters, spaces, hyphens, apostrophes and periods."
	msgOrgTextCharset = "may only contain letters, numbers, spaces, hyphens, apostrophes, periods, ampersands and commas."
)

var (
	personNameRe = regexp.MustCompile(`^[\p{L} .'\-]+$`)
	orgTextRe    = regexp.MustCompile(`^[\p{L}\p{Nd} .'\-&,]+$`)
)

var fieldLabels = map[string]string{
	"fullName":    "Full name",
	"email":       "Email",
	"collegeName": "College name",
	"department":  "Department",
}

// Submission is the registration form as posted. Category and EventDate only
// drive the dropdown cascade; EventID is what gets stored.
type Submission struct {
	FullName    string `form:"fullName" json:"fullName" validate:"required,max=255,personname"`
	Email       string `form:"email" json:"email" validate:"required,max=255,email"`
	CollegeName string `form:"collegeName" json:"collegeName" validate:"required,max=255,orgtext"`
	Department  string `form:"department" json:"department" validate:"required,max=255,orgtext"`
	Category    string `form:"category" json:"category"`
	EventDate   string `form:"eventDate" json:"eventDate"`
	EventID     string `form:"eventId" json:"eventId"`
}

// Trimmed returns a copy with surrounding whitespace removed from every field.
func (s Submission) Trimmed() Submission {
	s.FullName = strings.TrimSpace(s.FullName)
	s.Email = strings.TrimSpace(s.Email)
	s.CollegeName = strings.TrimSpace(s.CollegeName)
	s.Department = strings.TrimSpace(s.Department)
	s.Category = strings.TrimSpace(s.Category)
	s.EventDate = strings.TrimSpace(s.EventDate)
	s.EventID = strings.TrimSpace(s.EventID)
	return s
}

type EventLookup interface {
	GetByID(ctx context.Context, id string) (models.Event, bool, error)
}

type DuplicateChecker interface {
	IsDuplicate(ctx context.Context, email, eventID string) (bool, error)
}

// Validated is a submission that passed every check, normalised for storage.
type Validated struct {
	Registration models.Registration
	Event        models.Event
}

type RegistrationValidator struct {
	validate   *validator.Validate
	events     EventLookup
	duplicates DuplicateChecker
}

func NewRegistrationValidator(events EventLookup, duplicates DuplicateChecker) *RegistrationValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("personname", func(fl validator.FieldLevel) bool {
		return personNameRe.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("orgtext", func(fl validator.FieldLevel) bool {
		return orgTextRe.MatchString(fl.Field().String())
	})
	return &RegistrationValidator{validate: v, events: events, duplicates: duplicates}
}

// Validate runs the field rules, then the event selection checks in order
// (selected, still available, not a duplicate on that date). Field problems
// come back as FieldErrors; lookup failures come back as plain errors.
func (rv *RegistrationValidator) Validate(ctx context.Context, sub Submission, today string) (Validated, error) {
	sub = sub.Trimmed()
	errs := rv.checkFields(sub)

	event, ok, err := rv.checkEvent(ctx, sub.EventID, today, errs)
	if err != nil {
		return Validated{}, err
	}

	email := strings.ToLower(sub.Email)
	if ok {
		if _, bad := errs["email"]; !bad {
			dup, err := rv.duplicates.IsDuplicate(ctx, email, event.ID)
			if err != nil {
				return Validated{}, fmt.Errorf("duplicate check: %w", err)
			}
			if dup {
				errs.add("email", MsgAlreadyOnDate)
			}
		}
	}

	if err := errs.orNil(); err != nil {
		return Validated{}, err
	}

	return Validated{
		Registration: models.Registration{
			FullName:    Truncate(sub.FullName, MaxFieldLen),
			Email:       Truncate(email, MaxFieldLen),
			CollegeName: Truncate(sub.CollegeName, MaxFieldLen),
			Department:  Truncate(sub.Department, MaxFieldLen),
			EventID:     event.ID,
		},
		Event: event,
	}, nil
}

func (rv *RegistrationValidator) checkFields(sub Submission) FieldErrors {
	errs := FieldErrors{}
	err := rv.validate.Struct(sub)
	if err == nil {
		return errs
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		errs.add("form", "The form could not be read.")
		return errs
	}
	for _, fe := range verrs {
		errs.add(fe.Field(), fieldMessage(fe))
	}
	return errs
}

// checkEvent short-circuits on the first failure.
func (rv *RegistrationValidator) checkEvent(ctx context.Context, id, today string, errs FieldErrors) (models.Event, bool, error) {
	if id == "" {
		errs.add("eventId", MsgSelectEvent)
		return models.Event{}, false, nil
	}
	event, found, err := rv.events.GetByID(ctx, id)
	if err != nil {
		return models.Event{}, false, fmt.Errorf("event lookup: %w", err)
	}
	if !found || !eligibility.IsOpen(event, today) {
		errs.add("eventId", MsgEventGone)
		return models.Event{}, false, nil
	}
	return event, true, nil
}

func fieldMessage(fe validator.FieldError) string {
	label := fieldLabels[fe.Field()]
	if label == "" {
		label = fe.Field()
	}
	switch fe.Tag() {
	case "required":
		return label + " is required."
	case "max":
		return fmt.Sprintf("%s must be %d characters or fewer.", label, MaxFieldLen)
	case "email":
		return MsgInvalidEmail
	case "personname":
		return label + " " + msgPersonCharset
	case "orgtext":
		return label + " " + msgOrgTextCharset
	}
	return label + " is invalid."
}

// Truncate clamps s to at most n characters.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
