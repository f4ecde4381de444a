// Package notify sends the user confirmation and admin notification mails for a
// stored registration. Delivery is best-effort: failures are logged and reported
// in the Result, never returned.
package notify

import (
	"context"
	"fmt"
	"strings"
	"text/template"
	"time"

	"go.uber.org/zap"

	"eventreg/models"
)

type Dispatcher struct {
	sender Sender
	log    *zap.Logger
	loc    *time.Location
}

func NewDispatcher(sender Sender, log *zap.Logger, loc *time.Location) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Dispatcher{sender: sender, log: log, loc: loc}
}

// Result reports what happened to each mail.
type Result struct {
	UserSent       bool
	UserErr        error
	AdminAttempted bool
	AdminSent      bool
	AdminErr       error
}

// Dispatch always tries the confirmation to the registrant. The admin mail goes
// out only when settings enable it and carry an address.
func (d *Dispatcher) Dispatch(ctx context.Context, r models.RegistrationWithEvent, s models.Settings) Result {
	var res Result
	v := newView(r, d.loc)

	res.UserErr = d.send(ctx, r.Email, userSubject, userBody, v)
	res.UserSent = res.UserErr == nil
	if res.UserErr != nil {
		d.log.Warn("user confirmation failed",
			zap.String("registrationId", r.ID),
			zap.String("to", r.Email),
			zap.Error(res.UserErr),
		)
	}

	adminTo := strings.TrimSpace(s.AdminEmail)
	if s.AdminNotificationEnabled && adminTo != "" {
		res.AdminAttempted = true
		res.AdminErr = d.send(ctx, adminTo, adminSubject, adminBody, v)
		res.AdminSent = res.AdminErr == nil
		if res.AdminErr != nil {
			d.log.Warn("admin notification failed",
				zap.String("registrationId", r.ID),
				zap.String("to", adminTo),
				zap.Error(res.AdminErr),
			)
		}
	}
	return res
}

func (d *Dispatcher) send(ctx context.Context, to string, subject, body *template.Template, v view) error {
	subj, err := render(subject, v)
	if err != nil {
		return fmt.Errorf("render subject: %w", err)
	}
	text, err := render(body, v)
	if err != nil {
		return fmt.Errorf("render body: %w", err)
	}
	return d.sender.Send(ctx, Message{To: to, Subject: subj, Body: text})
}
