package validation

import (
	"strings"
	"time"
	"unicode/utf8"

	"eventreg/models"
)

// NormalizeEvent trims the free-text fields of an event before it is checked or saved.
func NormalizeEvent(e models.Event) models.Event {
	e.Name = strings.TrimSpace(e.Name)
	e.Category = strings.TrimSpace(e.Category)
	e.RegistrationStart = strings.TrimSpace(e.RegistrationStart)
	e.RegistrationEnd = strings.TrimSpace(e.RegistrationEnd)
	e.EventDate = strings.TrimSpace(e.EventDate)
	return e
}

// ValidateEvent checks an event about to be created or updated. The date order
// rules hold only at write time; nothing re-checks them later.
func ValidateEvent(e models.Event) error {
	e = NormalizeEvent(e)
	errs := FieldErrors{}

	switch {
	case e.Name == "":
		errs.add("name", "Event name is required.")
	case utf8.RuneCountInString(e.Name) > MaxFieldLen:
		errs.add("name", "Event name must be 255 characters or fewer.")
	}
	if utf8.RuneCountInString(e.Category) > MaxFieldLen {
		errs.add("category", "Category must be 255 characters or fewer.")
	}

	datesOK := true
	for field, v := range map[string]string{
		"registrationStart": e.RegistrationStart,
		"registrationEnd":   e.RegistrationEnd,
		"eventDate":         e.EventDate,
	} {
		if !IsDate(v) {
			errs.add(field, "Enter a date as YYYY-MM-DD.")
			datesOK = false
		}
	}
	if datesOK {
		if e.RegistrationEnd < e.RegistrationStart {
			errs.add("registrationEnd", "Registration end must not be before registration start.")
		}
		if e.EventDate < e.RegistrationStart {
			errs.add("eventDate", "Event date must not be before registration start.")
		}
	}
	return errs.orNil()
}

// IsDate reports whether s is a real calendar date in YYYY-MM-DD form.
func IsDate(s string) bool {
	t, err := time.Parse(models.DateLayout, s)
	return err == nil && t.Format(models.DateLayout) == s
}
