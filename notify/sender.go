package notify

import (
	"context"
	"fmt"

	"github.com/wneessen/go-mail"
	"go.uber.org/zap"
)

type Message struct {
	To      string
	Subject string
	Body    string
}

// Sender delivers one message. Implementations must honour ctx cancellation.
type Sender interface {
	Send(ctx context.Context, m Message) error
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPSender dials the relay once per message.
type SMTPSender struct {
	conf SMTPConfig
}

func NewSMTPSender(conf SMTPConfig) *SMTPSender {
	if conf.Port == 0 {
		conf.Port = 587
	}
	return &SMTPSender{conf: conf}
}

func (s *SMTPSender) Send(ctx context.Context, m Message) error {
	msg := mail.NewMsg()
	if err := msg.From(s.conf.From); err != nil {
		return fmt.Errorf("from address: %w", err)
	}
	if err := msg.To(m.To); err != nil {
		return fmt.Errorf("to address: %w", err)
	}
	msg.Subject(m.Subject)
	msg.SetBodyString(mail.TypeTextPlain, m.Body)

	opts := []mail.Option{
		mail.WithPort(s.conf.Port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if s.conf.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.conf.Username),
			mail.WithPassword(s.conf.Password),
		)
	}
	client, err := mail.NewClient(s.conf.Host, opts...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

// LogSender writes messages to the log instead of sending them. Used when no SMTP host is set.
type LogSender struct {
	Log *zap.Logger
}

func (s LogSender) Send(_ context.Context, m Message) error {
	s.Log.Info("mail (not sent, no smtp host)",
		zap.String("to", m.To),
		zap.String("subject", m.Subject),
		zap.Int("bodyBytes", len(m.Body)),
	)
	return nil
}
