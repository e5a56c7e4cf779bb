package notify

import (
	"context"
	"fmt"

	"github.com/wneessen/go-mail"

	"r2rpack/internal/config"
)

// Service delivers the packaging summary to the configured recipients.
// Delivery is best-effort: callers log failures as warnings and never let
// them affect the run's recorded outcome.
type Service interface {
	SendSummary(ctx context.Context, cruiseID, summary string) error
}

// NewService builds a mail-backed service when email is enabled in the
// configuration, otherwise a noop implementation.
func NewService(cfg *config.Config) Service {
	if cfg == nil || !cfg.Email.Enabled {
		return noopService{}
	}
	svc := &mailService{email: cfg.Email}
	svc.send = svc.dialAndSend
	return svc
}

type mailService struct {
	email config.Email
	send  func(ctx context.Context, msg *mail.Msg) error
}

func (s *mailService) SendSummary(ctx context.Context, cruiseID, summary string) error {
	msg := mail.NewMsg()
	if err := msg.From(s.email.From); err != nil {
		return fmt.Errorf("set sender: %w", err)
	}
	if err := msg.To(s.email.To); err != nil {
		return fmt.Errorf("set recipient: %w", err)
	}
	msg.Subject(subjectLine(cruiseID))
	msg.SetBodyString(mail.TypeTextPlain, bodyText(cruiseID, summary))

	if err := s.send(ctx, msg); err != nil {
		return fmt.Errorf("send summary email: %w", err)
	}
	return nil
}

func (s *mailService) dialAndSend(ctx context.Context, msg *mail.Msg) error {
	client, err := mail.NewClient(s.email.SMTPServer,
		mail.WithPort(s.email.SMTPPort),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	)
	if err != nil {
		return err
	}
	return client.DialAndSendWithContext(ctx, msg)
}

func subjectLine(cruiseID string) string {
	return fmt.Sprintf("R2R Package Summary - %s", cruiseID)
}

func bodyText(cruiseID, summary string) string {
	return fmt.Sprintf("R2R packaging completed for cruise %s\n\n%s", cruiseID, summary)
}

type noopService struct{}

func (noopService) SendSummary(context.Context, string, string) error { return nil }
