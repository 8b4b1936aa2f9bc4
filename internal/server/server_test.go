package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/smallbiznis/memberrequest/internal/authorization"
	"github.com/smallbiznis/memberrequest/internal/config"
	"github.com/smallbiznis/memberrequest/internal/membership/domain"
	"github.com/smallbiznis/memberrequest/internal/membership/repository"
	"github.com/smallbiznis/memberrequest/internal/observability"
	pkgdb "github.com/smallbiznis/memberrequest/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const testSecret = "test-secret"

type membersMock struct {
	mock.Mock
}

func (m *membersMock) ListMine(ctx context.Context, p domain.Principal) ([]domain.MyRequestView, error) {
	args := m.Called(ctx, p)
	out, _ := args.Get(0).([]domain.MyRequestView)
	return out, args.Error(1)
}

func (m *membersMock) ListPending(ctx context.Context, p domain.Principal, req domain.ListPendingRequest) ([]domain.PendingRequestView, error) {
	args := m.Called(ctx, p, req)
	out, _ := args.Get(0).([]domain.PendingRequestView)
	return out, args.Error(1)
}

func (m *membersMock) Show(ctx context.Context, p domain.Principal, req domain.ShowRequest) (*domain.MemberView, error) {
	args := m.Called(ctx, p, req)
	out, _ := args.Get(0).(*domain.MemberView)
	return out, args.Error(1)
}

func (m *membersMock) Cancel(ctx context.Context, p domain.Principal, req domain.CancelRequest) (*domain.MemberView, error) {
	args := m.Called(ctx, p, req)
	out, _ := args.Get(0).(*domain.MemberView)
	return out, args.Error(1)
}

func (m *membersMock) CancelMembership(ctx context.Context, p domain.Principal, req domain.CancelMembershipRequest) (*domain.MemberView, error) {
	args := m.Called(ctx, p, req)
	out, _ := args.Get(0).(*domain.MemberView)
	return out, args.Error(1)
}

func (m *membersMock) Process(ctx context.Context, p domain.Principal, req domain.ProcessRequest) (*domain.MemberView, error) {
	args := m.Called(ctx, p, req)
	out, _ := args.Get(0).(*domain.MemberView)
	return out, args.Error(1)
}

func (m *membersMock) AvailableRoles(ctx context.Context, p domain.Principal, req domain.AvailableRolesRequest) ([]domain.RoleOption, error) {
	args := m.Called(ctx, p, req)
	out, _ := args.Get(0).([]domain.RoleOption)
	return out, args.Error(1)
}

type testServer struct {
	db      *gorm.DB
	node    *snowflake.Node
	members *membersMock
	engine  *gin.Engine
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := pkgdb.NewTest(t.Name())
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	require.NoError(t, repository.Migrate(db))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	members := &membersMock{}
	engine := NewEngine(observability.Config{})
	srv := NewServer(ServerParams{
		Engine:     engine,
		Cfg:        config.Config{AuthJWTSecret: testSecret},
		Log:        zap.NewNop(),
		Members:    members,
		Principals: authorization.NewPrincipalResolver(repository.NewRepository(db)),
	})
	srv.RegisterRoutes()

	return &testServer{db: db, node: node, members: members, engine: engine}
}

func (ts *testServer) user(t *testing.T, name, state string) domain.User {
	t.Helper()
	u := domain.User{
		ID:        ts.node.Generate(),
		Name:      name,
		FullName:  name,
		Email:     name + "@example.org",
		State:     state,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, ts.db.Create(&u).Error)
	return u
}

func signToken(t *testing.T, secret string, subject string) string {
	t.Helper()
	return signClaims(t, secret, jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
}

func signClaims(t *testing.T, secret string, claims jwt.RegisteredClaims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func (ts *testServer) do(t *testing.T, action, token, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/action/"+action, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	ts.engine.ServeHTTP(w, req)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload), w.Body.String())
	return w, payload
}

func errorType(t *testing.T, payload map[string]any) string {
	t.Helper()
	assert.Equal(t, false, payload["success"])
	errObj, ok := payload["error"].(map[string]any)
	require.True(t, ok, "missing error object: %v", payload)
	typ, _ := errObj["type"].(string)
	return typ
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	w := httptest.NewRecorder()
	ts.engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))
}

func TestActionRequiresBearerToken(t *testing.T) {
	ts := newTestServer(t)
	u := ts.user(t, "alice", "active")

	cases := []struct {
		name  string
		token string
	}{
		{name: "missing", token: ""},
		{name: "garbage", token: "not-a-jwt"},
		{name: "wrong secret", token: signToken(t, "other-secret", u.ID.String())},
		{name: "non numeric subject", token: signToken(t, testSecret, "alice")},
		{name: "no expiry", token: signClaims(t, testSecret, jwt.RegisteredClaims{Subject: u.ID.String()})},
		{name: "expired", token: signClaims(t, testSecret, jwt.RegisteredClaims{
			Subject:   u.ID.String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		})},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w, payload := ts.do(t, "member_requests_mylist", tc.token, "")
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Equal(t, "unauthorized", errorType(t, payload))
		})
	}
	ts.members.AssertNotCalled(t, "ListMine", mock.Anything, mock.Anything)
}

func TestInactiveUserIsDenied(t *testing.T) {
	ts := newTestServer(t)
	u := ts.user(t, "bob", "deleted")

	w, payload := ts.do(t, "member_requests_mylist", signToken(t, testSecret, u.ID.String()), "")

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "access_denied", errorType(t, payload))
}

func TestListMineReturnsEnvelope(t *testing.T) {
	ts := newTestServer(t)
	u := ts.user(t, "carol", "active")
	principal := domain.Principal{UserID: u.ID, Name: "carol"}

	ts.members.On("ListMine", mock.Anything, principal).Return([]domain.MyRequestView{
		{MemberName: "carol", OrganizationName: "Fire Dept", State: "pending", Role: "member", RequestDate: "07 - Mar - 2024"},
	}, nil).Once()

	w, payload := ts.do(t, "member_requests_mylist", signToken(t, testSecret, u.ID.String()), "")

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, true, payload["success"])
	result, ok := payload["result"].([]any)
	require.True(t, ok)
	require.Len(t, result, 1)
	assert.Equal(t, "Fire Dept", result[0].(map[string]any)["organization_name"])
	ts.members.AssertExpectations(t)
}

func TestProcessDecodesBody(t *testing.T) {
	ts := newTestServer(t)
	u := ts.user(t, "dave", "active")
	token := signToken(t, testSecret, u.ID.String())

	req := domain.ProcessRequest{MemberID: "42", Approve: true, Message: "welcome"}
	ts.members.On("Process", mock.Anything, mock.AnythingOfType("domain.Principal"), req).
		Return(&domain.MemberView{ID: "42", State: "active", Revision: 2}, nil).Once()

	w, payload := ts.do(t, "member_request_process", token, `{"member":"42","approve":true,"message":"welcome"}`)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	result := payload["result"].(map[string]any)
	assert.Equal(t, "active", result["state"])
	assert.EqualValues(t, 2, result["revision"])
	ts.members.AssertExpectations(t)
}

func TestErrorKindsMapToStatus(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		status   int
		typ      string
		contains string
	}{
		{name: "access denied", err: fmt.Errorf("%w: not an admin", domain.ErrAccessDenied), status: http.StatusForbidden, typ: "access_denied", contains: "not an admin"},
		{name: "bare access denied", err: domain.ErrAccessDenied, status: http.StatusForbidden, typ: "access_denied", contains: "access denied"},
		{name: "not found", err: domain.ErrNotFound, status: http.StatusNotFound, typ: "not_found"},
		{name: "validation", err: domain.ErrInvalidMember, status: http.StatusBadRequest, typ: "validation_error", contains: "invalid member id"},
		{name: "storage", err: domain.StorageError(fmt.Errorf("connection reset")), status: http.StatusServiceUnavailable, typ: "storage_error"},
		{name: "unexpected", err: fmt.Errorf("boom"), status: http.StatusInternalServerError, typ: "internal_error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ts := newTestServer(t)
			u := ts.user(t, "erin", "active")
			ts.members.On("Show", mock.Anything, mock.Anything, mock.Anything).Return(nil, tc.err).Once()

			w, payload := ts.do(t, "member_request_show", signToken(t, testSecret, u.ID.String()), `{"member":"1"}`)

			assert.Equal(t, tc.status, w.Code)
			assert.Equal(t, tc.typ, errorType(t, payload))
			if tc.contains != "" {
				msg := payload["error"].(map[string]any)["message"].(string)
				assert.Equal(t, tc.contains, msg)
			}
		})
	}
}

func TestMalformedBodyIsValidationError(t *testing.T) {
	ts := newTestServer(t)
	u := ts.user(t, "frank", "active")

	w, payload := ts.do(t, "member_request_cancel", signToken(t, testSecret, u.ID.String()), `{"member":`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "validation_error", errorType(t, payload))
	ts.members.AssertNotCalled(t, "Cancel", mock.Anything, mock.Anything, mock.Anything)
}

func TestUnknownActionIsNotFound(t *testing.T) {
	ts := newTestServer(t)
	u := ts.user(t, "grace", "active")

	w, payload := ts.do(t, "member_request_delete", signToken(t, testSecret, u.ID.String()), "")

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found", errorType(t, payload))
}

func TestAvailableRolesNeverNull(t *testing.T) {
	ts := newTestServer(t)
	u := ts.user(t, "heidi", "active")
	ts.members.On("AvailableRoles", mock.Anything, mock.Anything, domain.AvailableRolesRequest{}).Return(nil, nil).Once()

	w, payload := ts.do(t, "get_available_roles", signToken(t, testSecret, u.ID.String()), "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []any{}, payload["result"])
}
