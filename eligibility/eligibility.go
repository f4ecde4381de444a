// Package eligibility decides whether registration is open and which
// category, date and event choices the registration form may offer.
//
// Every function is pure: callers pass the full event set and today's date
// and get fresh option lists back, so the cascade never carries hidden state
// between requests.
package eligibility

import (
	"sort"
	"time"

	"eventreg/models"
)

// Today formats now in loc as a YYYY-MM-DD date.
func Today(loc *time.Location, now time.Time) string {
	if loc == nil {
		loc = time.UTC
	}
	return now.In(loc).Format(models.DateLayout)
}

// IsOpen reports whether today falls inside the event's registration window,
// both ends inclusive.
func IsOpen(e models.Event, today string) bool {
	return e.RegistrationStart <= today && today <= e.RegistrationEnd
}

// IsRegistrationOpen reports whether at least one event accepts registrations today.
func IsRegistrationOpen(events []models.Event, today string) bool {
	for _, e := range events {
		if IsOpen(e, today) {
			return true
		}
	}
	return false
}

// OpenEvents filters events down to those open today, preserving order.
func OpenEvents(events []models.Event, today string) []models.Event {
	out := make([]models.Event, 0, len(events))
	for _, e := range events {
		if IsOpen(e, today) {
			out = append(out, e)
		}
	}
	return out
}

// ActiveCategories returns the distinct categories of open events, ascending.
func ActiveCategories(events []models.Event, today string) []string {
	seen := map[string]struct{}{}
	for _, e := range events {
		if IsOpen(e, today) {
			seen[e.Category] = struct{}{}
		}
	}
	return sortedKeys(seen)
}

// DatesForCategory returns the distinct event dates of open events in category, ascending.
func DatesForCategory(events []models.Event, category, today string) []string {
	seen := map[string]struct{}{}
	for _, e := range events {
		if e.Category == category && IsOpen(e, today) {
			seen[e.EventDate] = struct{}{}
		}
	}
	return sortedKeys(seen)
}

// Option is one selectable event.
type Option struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// EventsForCategoryAndDate returns open events matching both category and date,
// ordered by name (id breaks ties so the order is stable).
func EventsForCategoryAndDate(events []models.Event, category, date, today string) []Option {
	out := []Option{}
	for _, e := range events {
		if e.Category == category && e.EventDate == date && IsOpen(e, today) {
			out = append(out, Option{ID: e.ID, Name: e.Name})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Filters is the user's current dropdown selection.
type Filters struct {
	Category  string `form:"category" json:"category"`
	EventDate string `form:"eventDate" json:"eventDate"`
}

// Options is the next state of the cascading form.
type Options struct {
	Open       bool     `json:"open"`
	Today      string   `json:"today"`
	Filters    Filters  `json:"filters"`
	Categories []string `json:"categories"`
	Dates      []string `json:"dates"`
	Events     []Option `json:"events"`
}

// Resolve recomputes the whole cascade from the current selection. A selection
// that no longer matches an open event is dropped, along with everything below it.
func Resolve(events []models.Event, f Filters, today string) Options {
	o := Options{
		Open:       IsRegistrationOpen(events, today),
		Today:      today,
		Categories: ActiveCategories(events, today),
		Dates:      []string{},
		Events:     []Option{},
	}
	if !o.Open {
		o.Categories = []string{}
		return o
	}

	if !contains(o.Categories, f.Category) {
		return o
	}
	o.Filters.Category = f.Category
	o.Dates = DatesForCategory(events, f.Category, today)

	if !contains(o.Dates, f.EventDate) {
		return o
	}
	o.Filters.EventDate = f.EventDate
	o.Events = EventsForCategoryAndDate(events, f.Category, f.EventDate, today)
	return o
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func contains(list []string, v string) bool {
	if v == "" {
		return false
	}
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
