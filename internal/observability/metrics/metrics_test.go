package metrics

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/smallbiznis/memberrequest/internal/membership/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("action", "member_request_process"),
		attribute.String("user_id", "456"),
		attribute.Int("status_code", 200),
	)
	require.Len(t, attrs, 2)
	assert.Equal(t, attribute.Key("action"), attrs[0].Key)
	assert.Equal(t, attribute.Key("status_code"), attrs[1].Key)
}

func TestClassifyOutcome(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{name: "ok", err: nil, want: OutcomeOK},
		{name: "not_found", err: fmt.Errorf("lookup: %w", domain.ErrNotFound), want: OutcomeNotFound},
		{name: "unauthenticated", err: domain.ErrUnauthenticated, want: OutcomeAccessDenied},
		{name: "sysadmin_mylist", err: domain.ErrSysadminMyList, want: OutcomeValidation},
		{name: "serialization", err: domain.StorageError(&pgconn.PgError{Code: "40001"}), want: OutcomeConflict},
		{name: "storage", err: domain.StorageError(errors.New("disk full")), want: OutcomeStorage},
		{name: "unknown", err: errors.New("boom"), want: OutcomeUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ClassifyOutcome(tc.err))
		})
	}
}

func TestMemberRequestMetricsCounters(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, err := NewMemberRequestMetrics(registry, Config{ServiceName: "memberrequest", Environment: "test"})
	require.NoError(t, err)

	m.IncTransition("approve", nil)
	m.IncTransition("approve", domain.ErrNotFound)
	m.IncTransition("approve", nil)
	m.IncNotification(NotificationFailed)
	m.IncAccessDenied("member_request_approve")

	assert.Equal(t, float64(2), testutil.ToFloat64(m.transitions.WithLabelValues("approve", OutcomeOK)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.transitions.WithLabelValues("approve", OutcomeNotFound)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.notifications.WithLabelValues(NotificationFailed)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.accessDenied.WithLabelValues("member_request_approve")))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *MemberRequestMetrics
	assert.NotPanics(t, func() {
		m.IncTransition("reject", nil)
		m.IncNotification(NotificationSent)
		m.IncAccessDenied("member_requests_list")
	})
	var om *Metrics
	assert.NotPanics(t, func() {
		om.RecordHTTPRequest(t.Context(), "health", 200, 0)
	})
}

func TestRegisterTwiceFails(t *testing.T) {
	registry := prometheus.NewRegistry()
	_, err := NewMemberRequestMetrics(registry, Config{})
	require.NoError(t, err)
	_, err = NewMemberRequestMetrics(registry, Config{})
	assert.Error(t, err)
}
