package notification

import (
	"context"
	"errors"
	"testing"

	"github.com/smallbiznis/memberrequest/internal/membership/domain"
	"github.com/smallbiznis/memberrequest/internal/providers/email"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/text/language"
)

type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) Send(ctx context.Context, to []string, subject string, htmlBody string) error {
	return m.Called(ctx, to, subject, htmlBody).Error(0)
}

func (m *mockProvider) SendTemplate(ctx context.Context, to []string, subject string, templateName string, data any) error {
	return m.Called(ctx, to, subject, templateName, data).Error(0)
}

func TestLocaleResolver(t *testing.T) {
	r := NewLocaleResolver("fi")

	assert.Equal(t, language.Finnish, r.Default())
	assert.Equal(t, language.Swedish, r.Resolve("sv"))
	assert.Equal(t, language.Swedish, r.Resolve("sv_FI"))
	assert.Equal(t, language.English, r.Resolve("en-GB"))
	assert.Equal(t, language.Finnish, r.Resolve(""))
	assert.Equal(t, language.Finnish, r.Resolve("not a tag!"))
}

func TestLocaleResolverUnsupportedDefault(t *testing.T) {
	r := NewLocaleResolver("")
	assert.Equal(t, language.English, r.Default())
}

func TestRenderLocalizes(t *testing.T) {
	user := domain.User{Name: "alice", FullName: "Alice A."}

	en := Render(StatusChange{Locale: language.English, User: user, Approved: true, OrganizationName: "Water Board", Role: "editor"})
	assert.Equal(t, "Your membership in Water Board was approved", en.Subject)
	assert.Equal(t, "Hello Alice A.,", en.Greeting)
	assert.Equal(t, "Your role: editor", en.RoleLine)

	fi := Render(StatusChange{Locale: language.Finnish, User: domain.User{Name: "alice"}, Approved: false, OrganizationName: "Water Board"})
	assert.Equal(t, "Jäsenyytesi organisaatiossa Water Board päättyi", fi.Subject)
	assert.Equal(t, "Hei alice,", fi.Greeting)
	assert.Empty(t, fi.RoleLine)
}

func TestDispatcherSendsTemplate(t *testing.T) {
	provider := new(mockProvider)
	d := NewDispatcher(Params{Log: zap.NewNop(), Email: provider})

	change := StatusChange{
		Locale:           language.Swedish,
		User:             domain.User{Name: "alice", Email: "alice@example.org"},
		Approved:         true,
		OrganizationName: "Water Board",
		Role:             "admin",
	}
	provider.On("SendTemplate", mock.Anything, []string{"alice@example.org"},
		"Ditt medlemskap i Water Board har godkänts", statusTemplate, Render(change)).Return(nil).Once()

	require.NoError(t, d.SendStatusChange(context.Background(), change))
	provider.AssertExpectations(t)
}

func TestDispatcherWithoutAddress(t *testing.T) {
	provider := new(mockProvider)
	d := NewDispatcher(Params{Log: zap.NewNop(), Email: provider})

	err := d.SendStatusChange(context.Background(), StatusChange{Locale: language.English, User: domain.User{Name: "bob"}})
	assert.True(t, errors.Is(err, email.ErrNoRecipient))
	provider.AssertNotCalled(t, "SendTemplate", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
