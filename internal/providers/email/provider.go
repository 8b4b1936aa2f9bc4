// Package email sends transactional mail.
package email

import "context"

type Provider interface {
	Send(ctx context.Context, to []string, subject string, htmlBody string) error
	SendTemplate(ctx context.Context, to []string, subject string, templateName string, data any) error
}

// NoOpProvider accepts and discards every message. It is used when no SMTP
// host is configured.
type NoOpProvider struct{}

func (p *NoOpProvider) Send(ctx context.Context, to []string, subject string, htmlBody string) error {
	return nil
}

func (p *NoOpProvider) SendTemplate(ctx context.Context, to []string, subject string, templateName string, data any) error {
	return nil
}
