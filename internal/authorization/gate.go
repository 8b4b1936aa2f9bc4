package authorization

import (
	"context"
	"fmt"

	"github.com/casbin/casbin/v2"
	"github.com/smallbiznis/memberrequest/internal/membership/domain"
	"github.com/smallbiznis/memberrequest/internal/observability/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("memberrequest/authorization")

type Params struct {
	fx.In

	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
	Repo     domain.Repository
	Metrics  *metrics.MemberRequestMetrics `optional:"true"`
}

// Gate checks membership request actions against casbin policies. Roles are
// derived from the membership table on every call and never cached. The gate
// only reads; recording a denial is left to the caller.
type Gate struct {
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
	repo     domain.Repository
	metrics  *metrics.MemberRequestMetrics
}

func NewGate(p Params) domain.Gate {
	return &Gate{
		log:      p.Log.Named("authorization.gate"),
		enforcer: p.Enforcer,
		repo:     p.Repo,
		metrics:  p.Metrics,
	}
}

func (g *Gate) Authorize(ctx context.Context, p domain.Principal, action domain.Action, target domain.Target) error {
	ctx, span := tracer.Start(ctx, "authorization.Authorize")
	defer span.End()
	span.SetAttributes(attribute.String("action", string(action)))

	if !p.Authenticated() {
		g.metrics.IncAccessDenied(string(action))
		return domain.ErrUnauthenticated
	}
	if action == domain.ActionRequestsMyList && p.Sysadmin {
		return domain.ErrSysadminMyList
	}

	roles := []string{RoleUser}
	if p.Sysadmin {
		roles = append(roles, RoleSysadmin)
	}
	if target.UserID != 0 && target.UserID == p.UserID {
		roles = append(roles, RoleOwner)
	}

	allowed, err := g.enforceAny(roles, action)
	if err != nil {
		return err
	}
	if allowed {
		return nil
	}

	isAdmin, err := g.isAdmin(ctx, p, action, target)
	if err != nil {
		return domain.StorageError(err)
	}
	if isAdmin {
		allowed, err = g.enforceAny([]string{RoleAdmin}, action)
		if err != nil {
			return err
		}
		if allowed {
			return nil
		}
	}

	g.denied(p, action, target)
	return fmt.Errorf("%w: %s", domain.ErrAccessDenied, denialReason(action))
}

func (g *Gate) enforceAny(roles []string, action domain.Action) (bool, error) {
	for _, role := range roles {
		ok, err := g.enforcer.Enforce(role, ObjectMemberRequest, string(action))
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// isAdmin reports whether the principal is an active admin for the target.
// The pending queue only needs admin rights in some organization.
func (g *Gate) isAdmin(ctx context.Context, p domain.Principal, action domain.Action, target domain.Target) (bool, error) {
	if action == domain.ActionRequestsList {
		ids, err := g.repo.ListAdminGroupIDs(ctx, p.UserID)
		if err != nil {
			return false, err
		}
		return len(ids) > 0, nil
	}
	if target.OrganizationID == 0 {
		return false, nil
	}
	return g.repo.IsActiveAdmin(ctx, target.OrganizationID, p.UserID)
}

func (g *Gate) denied(p domain.Principal, action domain.Action, target domain.Target) {
	g.metrics.IncAccessDenied(string(action))
	g.log.Debug("authorization denied",
		zap.String("action", string(action)),
		zap.String("user_id", p.UserID.String()),
		zap.String("organization_id", target.OrganizationID.String()),
	)
}

func denialReason(action domain.Action) string {
	switch action {
	case domain.ActionRequestsList:
		return "only organization administrators may list membership requests"
	case domain.ActionRequestShow:
		return "not allowed to view this membership request"
	case domain.ActionRequestCancel, domain.ActionMembershipCancel:
		return "only the requesting user may cancel this membership"
	case domain.ActionRequestApprove, domain.ActionRequestReject:
		return "only organization administrators may process membership requests"
	default:
		return "not authorized"
	}
}
