// Package notification tells users about decisions on their membership.
package notification

import (
	"context"
	"strings"

	"github.com/smallbiznis/memberrequest/internal/membership/domain"
	"github.com/smallbiznis/memberrequest/internal/providers/email"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const statusTemplate = "member_request_status"

// StatusChange describes one committed decision on a membership record.
type StatusChange struct {
	Locale           language.Tag
	User             domain.User
	Approved         bool
	OrganizationName string
	Role             string
}

type Dispatcher interface {
	SendStatusChange(ctx context.Context, change StatusChange) error
}

type Params struct {
	fx.In

	Log   *zap.Logger
	Email email.Provider
}

type emailDispatcher struct {
	log   *zap.Logger
	email email.Provider
}

func NewDispatcher(p Params) Dispatcher {
	return &emailDispatcher{
		log:   p.Log.Named("notification.dispatcher"),
		email: p.Email,
	}
}

// SendStatusChange returns email.ErrNoRecipient when the user has no address.
func (d *emailDispatcher) SendStatusChange(ctx context.Context, change StatusChange) error {
	address := strings.TrimSpace(change.User.Email)
	if address == "" {
		return email.ErrNoRecipient
	}

	msg := Render(change)
	if err := d.email.SendTemplate(ctx, []string{address}, msg.Subject, statusTemplate, msg); err != nil {
		return err
	}
	d.log.Debug("status change sent",
		zap.String("user_id", change.User.ID.String()),
		zap.String("locale", change.Locale.String()),
		zap.Bool("approved", change.Approved),
	)
	return nil
}

// Message is the localized content of a status change mail.
type Message struct {
	Lang     string
	Subject  string
	Greeting string
	Body     string
	RoleLine string
}

func Render(change StatusChange) Message {
	p := message.NewPrinter(change.Locale)

	name := strings.TrimSpace(change.User.FullName)
	if name == "" {
		name = change.User.Name
	}

	msg := Message{
		Lang:     change.Locale.String(),
		Greeting: p.Sprintf(keyGreeting, name),
	}
	if change.Approved {
		msg.Subject = p.Sprintf(keySubjectApproved, change.OrganizationName)
		msg.Body = p.Sprintf(keyBodyApproved, change.OrganizationName)
		if change.Role != "" {
			msg.RoleLine = p.Sprintf(keyRole, change.Role)
		}
	} else {
		msg.Subject = p.Sprintf(keySubjectRejected, change.OrganizationName)
		msg.Body = p.Sprintf(keyBodyRejected, change.OrganizationName)
	}
	return msg
}
