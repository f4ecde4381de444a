package notify

import (
	"strings"
	"text/template"
	"time"

	"eventreg/models"
)

var (
	userSubject = template.Must(template.New("userSubject").Parse(
		`Registration confirmed: {{.EventName}}`))
	userBody = template.Must(template.New("userBody").Parse(`Hello {{.FullName}},

Thank you for registering. Your place is confirmed.

Event:     {{.EventName}}
Category:  {{.Category}}
Date:      {{.EventDate}}

Your details
Name:        {{.FullName}}
Email:       {{.Email}}
College:     {{.CollegeName}}
Department:  {{.Department}}

Registered at {{.RegisteredAt}}.
`))

	adminSubject = template.Must(template.New("adminSubject").Parse(
		`New registration: {{.EventName}} ({{.EventDate}})`))
	adminBody = template.Must(template.New("adminBody").Parse(`A new registration was received.

Event:       {{.EventName}}
Category:    {{.Category}}
Event date:  {{.EventDate}}

Name:        {{.FullName}}
Email:       {{.Email}}
College:     {{.CollegeName}}
Department:  {{.Department}}
Registered:  {{.RegisteredAt}}
Registration ID: {{.ID}}
`))
)

type view struct {
	models.RegistrationWithEvent
	RegisteredAt string
}

func render(t *template.Template, v view) (string, error) {
	var sb strings.Builder
	if err := t.Execute(&sb, v); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func newView(r models.RegistrationWithEvent, loc *time.Location) view {
	return view{RegistrationWithEvent: r, RegisteredAt: r.CreatedAt.In(loc).Format("2006-01-02 15:04:05")}
}
