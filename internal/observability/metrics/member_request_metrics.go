package metrics

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/smallbiznis/memberrequest/internal/membership/domain"
	"gorm.io/gorm"
)

const (
	OutcomeOK           = "ok"
	OutcomeNotFound     = "not_found"
	OutcomeAccessDenied = "access_denied"
	OutcomeValidation   = "validation_error"
	OutcomeConflict     = "conflict"
	OutcomeStorage      = "storage_error"
	OutcomeCanceled     = "canceled"
	OutcomeUnknown      = "unknown"
)

const (
	NotificationSent    = "sent"
	NotificationFailed  = "failed"
	NotificationSkipped = "skipped"
)

// MemberRequestMetrics counts membership transitions, notifications and
// authorization denials.
type MemberRequestMetrics struct {
	transitions   *prometheus.CounterVec
	notifications *prometheus.CounterVec
	accessDenied  *prometheus.CounterVec
}

func NewMemberRequestMetrics(registerer prometheus.Registerer, cfg Config) (*MemberRequestMetrics, error) {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "memberrequest"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	m := &MemberRequestMetrics{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "member_request_transitions_total",
			Help:        "Membership request transitions by action and outcome.",
			ConstLabels: constLabels,
		}, []string{"action", "outcome"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "member_request_notifications_total",
			Help:        "Status change notifications by outcome.",
			ConstLabels: constLabels,
		}, []string{"outcome"}),
		accessDenied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "member_request_access_denied_total",
			Help:        "Authorization denials by action.",
			ConstLabels: constLabels,
		}, []string{"action"}),
	}

	for _, collector := range []prometheus.Collector{m.transitions, m.notifications, m.accessDenied} {
		if err := registerer.Register(collector); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// IncTransition records the result of one transition attempt.
func (m *MemberRequestMetrics) IncTransition(action string, err error) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(action, ClassifyOutcome(err)).Inc()
}

func (m *MemberRequestMetrics) IncNotification(outcome string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(outcome).Inc()
}

func (m *MemberRequestMetrics) IncAccessDenied(action string) {
	if m == nil {
		return
	}
	m.accessDenied.WithLabelValues(action).Inc()
}

// ClassifyOutcome maps an operation error to a low-cardinality label.
func ClassifyOutcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return OutcomeCanceled
	case errors.Is(err, domain.ErrNotFound):
		return OutcomeNotFound
	case errors.Is(err, domain.ErrAccessDenied):
		return OutcomeAccessDenied
	case errors.Is(err, domain.ErrValidation):
		return OutcomeValidation
	case isConflict(err):
		return OutcomeConflict
	case errors.Is(err, domain.ErrStorage):
		return OutcomeStorage
	default:
		return OutcomeUnknown
	}
}

func isConflict(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505", "40001", "40P01":
			return true
		}
	}
	return false
}
