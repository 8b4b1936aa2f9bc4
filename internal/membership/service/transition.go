package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	auditdomain "github.com/smallbiznis/memberrequest/internal/audit/domain"
	"github.com/smallbiznis/memberrequest/internal/membership/domain"
	"github.com/smallbiznis/memberrequest/internal/notification"
	"github.com/smallbiznis/memberrequest/internal/observability/metrics"
	"github.com/smallbiznis/memberrequest/internal/providers/email"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultRevisionMessage = "Processed member request"

// transitionRule is one row of the membership state machine.
type transitionRule struct {
	name        string
	action      domain.Action
	from        []domain.MemberState
	to          domain.MemberState
	approved    bool
	auditAction string
}

var (
	approveRequest = transitionRule{
		name:        "approve",
		action:      domain.ActionRequestApprove,
		from:        []domain.MemberState{domain.StatePending},
		to:          domain.StateActive,
		approved:    true,
		auditAction: "member_request.approved",
	}
	rejectRequest = transitionRule{
		name:        "reject",
		action:      domain.ActionRequestReject,
		from:        []domain.MemberState{domain.StatePending},
		to:          domain.StateDeleted,
		auditAction: "member_request.rejected",
	}
	cancelRequest = transitionRule{
		name:        "cancel",
		action:      domain.ActionRequestCancel,
		from:        []domain.MemberState{domain.StatePending, domain.StateActive},
		to:          domain.StateDeleted,
		auditAction: "member_request.cancelled",
	}
	cancelMembership = transitionRule{
		name:        "cancel",
		action:      domain.ActionMembershipCancel,
		from:        []domain.MemberState{domain.StateActive},
		to:          domain.StateDeleted,
		auditAction: "member_request.cancelled",
	}
)

var errStaleMember = fmt.Errorf("%w: membership request was already processed", domain.ErrNotFound)

// transition validates, commits and then notifies. Nothing after the commit
// can fail the call.
func (s *Service) transition(ctx context.Context, p domain.Principal, t transitionRule, member *domain.Member, message string) (view *domain.MemberView, err error) {
	ctx, span := tracer.Start(ctx, "membership.transition")
	defer span.End()
	span.SetAttributes(
		attribute.String("transition", t.name),
		attribute.String("member_id", member.ID.String()),
	)
	defer func() {
		s.metrics.IncTransition(t.name, err)
	}()

	group, err := s.organizationOf(ctx, member)
	if err != nil {
		return nil, err
	}
	if member.ObjectType != domain.TableUser {
		return nil, fmt.Errorf("%w: membership request not found", domain.ErrNotFound)
	}
	if err := s.gate.Authorize(ctx, p, t.action, targetOf(member, group)); err != nil {
		if errors.Is(err, domain.ErrAccessDenied) {
			s.auditDenied(context.WithoutCancel(ctx), p, t, member, group)
		}
		return nil, err
	}
	if !slices.Contains(t.from, member.State) {
		return nil, fmt.Errorf("%w: membership request is %s", domain.ErrNotFound, member.State)
	}

	user, err := s.repo.GetUser(ctx, member.UserID)
	if errors.Is(err, domain.ErrNotFound) {
		user = &domain.User{ID: member.UserID}
	} else if err != nil {
		return nil, domain.StorageError(err)
	}

	message = strings.TrimSpace(message)
	if message == "" {
		message = defaultRevisionMessage
	}
	now := s.clock.Now()

	var updated *domain.Member
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		ok, err := repo.TransitionMember(ctx, domain.TransitionUpdate{
			MemberID:  member.ID,
			From:      t.from,
			To:        t.to,
			DecidedAt: now,
		})
		if err != nil {
			return err
		}
		if !ok {
			return errStaleMember
		}

		if err := repo.InsertRevision(ctx, domain.MemberRevision{
			ID:        s.genID.Generate(),
			MemberID:  member.ID,
			State:     t.to,
			Capacity:  member.Capacity,
			Author:    authorOf(p),
			Message:   message,
			CreatedAt: now,
		}); err != nil {
			return err
		}

		updated, err = repo.GetMember(ctx, member.ID)
		return err
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		return nil, domain.StorageError(err)
	}

	s.afterCommit(context.WithoutCancel(ctx), p, t, updated, group, user)

	out := domain.NewMemberView(*updated)
	return &out, nil
}

// afterCommit writes the audit trail and notifies the affected user. Failures
// are logged and counted only.
func (s *Service) afterCommit(ctx context.Context, p domain.Principal, t transitionRule, member *domain.Member, group *domain.Group, user *domain.User) {
	locale := s.locales.Resolve(member.Locale())

	s.log.Info("member_request.processed",
		zap.String("member_id", member.ID.String()),
		zap.String("user_id", user.ID.String()),
		zap.String("user_name", user.Name),
		zap.String("organization", group.DisplayName()),
		zap.Bool("approved", t.approved),
		zap.String("transition", t.name),
		zap.String("actor", authorOf(p)),
		zap.String("locale", locale.String()),
	)

	if s.auditSvc != nil {
		orgID := group.ID
		actorID := p.UserID.String()
		memberID := member.ID.String()
		if err := s.auditSvc.AuditLog(ctx, &orgID, string(auditdomain.ActorTypeUser), &actorID, t.auditAction, "member", &memberID, map[string]any{
			"user_id":      user.ID.String(),
			"organization": group.DisplayName(),
			"approved":     t.approved,
			"capacity":     member.Capacity,
			"state":        string(member.State),
			"revision":     member.Revision,
		}); err != nil {
			s.log.Warn("failed to write membership audit log", zap.String("member_id", memberID), zap.Error(err))
		}
	}

	err := s.dispatcher.SendStatusChange(ctx, notification.StatusChange{
		Locale:           locale,
		User:             *user,
		Approved:         t.approved,
		OrganizationName: group.DisplayName(),
		Role:             member.Capacity,
	})
	switch {
	case err == nil:
		s.metrics.IncNotification(metrics.NotificationSent)
	case errors.Is(err, email.ErrNoRecipient):
		s.metrics.IncNotification(metrics.NotificationSkipped)
		s.log.Debug("status change not sent, user has no email", zap.String("user_id", user.ID.String()))
	default:
		s.metrics.IncNotification(metrics.NotificationFailed)
		s.log.Warn("failed to send status change notification",
			zap.String("member_id", member.ID.String()),
			zap.String("user_id", user.ID.String()),
			zap.Error(err),
		)
	}
}

// auditDenied records a refused state change against the organization.
func (s *Service) auditDenied(ctx context.Context, p domain.Principal, t transitionRule, member *domain.Member, group *domain.Group) {
	if s.auditSvc == nil || !p.Authenticated() {
		return
	}
	orgID := group.ID
	actorID := p.UserID.String()
	memberID := member.ID.String()
	if err := s.auditSvc.AuditLog(ctx, &orgID, string(auditdomain.ActorTypeUser), &actorID, "member_request.denied", "member", &memberID, map[string]any{
		"action":     string(t.action),
		"transition": t.name,
	}); err != nil {
		s.log.Warn("failed to write denial audit log", zap.String("member_id", memberID), zap.Error(err))
	}
}

func authorOf(p domain.Principal) string {
	if name := strings.TrimSpace(p.Name); name != "" {
		return name
	}
	return p.UserID.String()
}
