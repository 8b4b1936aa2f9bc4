package email

import (
	"context"
	"net/smtp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSMTPSendTemplateBuildsMessage(t *testing.T) {
	p := NewSMTP(Config{Host: "mail.local", Port: 2525, From: "no-reply@local"})

	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte
	p.sendMail = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
		assert.Nil(t, a)
		return nil
	}

	err := p.SendTemplate(context.Background(), []string{"alice@example.org"}, "Welcome", "member_request_status", map[string]string{
		"Lang":     "en",
		"Greeting": "Hello Alice,",
		"Body":     "You joined Water Board.",
		"RoleLine": "",
	})
	require.NoError(t, err)

	assert.Equal(t, "mail.local:2525", gotAddr)
	assert.Equal(t, "no-reply@local", gotFrom)
	assert.Equal(t, []string{"alice@example.org"}, gotTo)
	assert.Contains(t, string(gotMsg), "Subject: Welcome\r\n")
	assert.Contains(t, string(gotMsg), "You joined Water Board.")
}

func TestSMTPSendKeepsSubjectOnOneLine(t *testing.T) {
	p := NewSMTP(Config{Host: "mail.local", Port: 25, From: "no-reply@local"})

	var gotTo []string
	var gotMsg []byte
	p.sendMail = func(_ string, _ smtp.Auth, _ string, to []string, msg []byte) error {
		gotTo, gotMsg = to, msg
		return nil
	}

	err := p.Send(context.Background(), []string{"alice@example.org"}, "Water Board\r\nBcc: attacker@evil.test", "<p>hi</p>")
	require.NoError(t, err)

	assert.Equal(t, []string{"alice@example.org"}, gotTo)
	headers, _, ok := strings.Cut(string(gotMsg), "\r\n\r\n")
	require.True(t, ok)
	var subjects int
	for _, line := range strings.Split(headers, "\r\n") {
		assert.False(t, strings.HasPrefix(line, "Bcc:"), "unexpected header line %q", line)
		assert.NotContains(t, line, "\n")
		if strings.HasPrefix(line, "Subject:") {
			subjects++
			assert.Equal(t, "Subject: Water Board  Bcc: attacker@evil.test", line)
		}
	}
	assert.Equal(t, 1, subjects)
}

func TestSMTPSendEncodesNonASCIISubject(t *testing.T) {
	p := NewSMTP(Config{Host: "mail.local", Port: 25, From: "no-reply@local"})

	var gotMsg []byte
	p.sendMail = func(_ string, _ smtp.Auth, _ string, _ []string, msg []byte) error {
		gotMsg = msg
		return nil
	}

	require.NoError(t, p.Send(context.Background(), []string{"bob@example.org"}, "Wasserverband Müllerstraße", "<p>hi</p>"))

	assert.Contains(t, string(gotMsg), "Subject: =?utf-8?q?")
	assert.NotContains(t, string(gotMsg), "Müller")
}

func TestSMTPSendRequiresRecipient(t *testing.T) {
	p := NewSMTP(Config{Host: "mail.local", Port: 25})
	err := p.Send(context.Background(), nil, "x", "y")
	assert.ErrorIs(t, err, ErrNoRecipient)
}

func TestRenderUnknownTemplate(t *testing.T) {
	_, err := Render("missing", nil)
	assert.Error(t, err)
}
