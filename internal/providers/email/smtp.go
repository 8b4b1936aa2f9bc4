package email

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"mime"
	"net/smtp"
	"strings"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

var ErrNoRecipient = errors.New("email: no recipient")

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type SMTPProvider struct {
	cfg      Config
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTP(cfg Config) *SMTPProvider {
	return &SMTPProvider{cfg: cfg, sendMail: smtp.SendMail}
}

func (p *SMTPProvider) Send(ctx context.Context, to []string, subject string, htmlBody string) error {
	if len(to) == 0 || strings.TrimSpace(to[0]) == "" {
		return ErrNoRecipient
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var auth smtp.Auth
	if p.cfg.Username != "" {
		auth = smtp.PlainAuth("", p.cfg.Username, p.cfg.Password, p.cfg.Host)
	}
	addr := fmt.Sprintf("%s:%d", p.cfg.Host, p.cfg.Port)

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s\r\n", p.cfg.From)
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&msg, "Subject: %s\r\n", encodeHeader(subject))
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n\r\n")
	msg.WriteString(htmlBody)

	return p.sendMail(addr, auth, p.cfg.From, to, msg.Bytes())
}

var headerBreaks = strings.NewReplacer("\r", " ", "\n", " ")

// encodeHeader keeps a header value on one line and RFC 2047 encodes
// anything outside printable ASCII.
func encodeHeader(v string) string {
	return mime.QEncoding.Encode("utf-8", strings.TrimSpace(headerBreaks.Replace(v)))
}

func (p *SMTPProvider) SendTemplate(ctx context.Context, to []string, subject string, templateName string, data any) error {
	body, err := Render(templateName, data)
	if err != nil {
		return err
	}
	return p.Send(ctx, to, subject, body)
}

// Render executes one of the embedded templates.
func Render(templateName string, data any) (string, error) {
	var body bytes.Buffer
	if err := templates.ExecuteTemplate(&body, templateName+".html", data); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}
	return body.String(), nil
}
