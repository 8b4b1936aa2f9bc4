package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	auditdomain "github.com/smallbiznis/memberrequest/internal/audit/domain"
	"github.com/smallbiznis/memberrequest/internal/clock"
	"github.com/smallbiznis/memberrequest/internal/config"
	"github.com/smallbiznis/memberrequest/internal/membership/domain"
	"github.com/smallbiznis/memberrequest/internal/notification"
	"github.com/smallbiznis/memberrequest/internal/observability/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var tracer = otel.Tracer("memberrequest/membership")

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Repo       domain.Repository
	Gate       domain.Gate
	Roles      *config.RoleCatalogHolder
	Dispatcher notification.Dispatcher
	Locales    *notification.LocaleResolver
	AuditSvc   auditdomain.Service           `optional:"true"`
	Metrics    *metrics.MemberRequestMetrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	repo       domain.Repository
	gate       domain.Gate
	roles      *config.RoleCatalogHolder
	dispatcher notification.Dispatcher
	locales    *notification.LocaleResolver
	auditSvc   auditdomain.Service
	metrics    *metrics.MemberRequestMetrics
}

func NewService(p Params) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("membership.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		repo:       p.Repo,
		gate:       p.Gate,
		roles:      p.Roles,
		dispatcher: p.Dispatcher,
		locales:    p.Locales,
		auditSvc:   p.AuditSvc,
		metrics:    p.Metrics,
	}
}

// ListMine returns the caller's organization memberships in insertion order.
func (s *Service) ListMine(ctx context.Context, p domain.Principal) ([]domain.MyRequestView, error) {
	ctx, span := tracer.Start(ctx, "membership.ListMine")
	defer span.End()

	if err := s.gate.Authorize(ctx, p, domain.ActionRequestsMyList, domain.Target{UserID: p.UserID}); err != nil {
		return nil, err
	}

	members, err := s.repo.ListOrganizationMembersByUser(ctx, p.UserID)
	if err != nil {
		return nil, domain.StorageError(err)
	}
	user, err := s.repo.GetUser(ctx, p.UserID)
	if err != nil {
		return nil, storageOrNotFound(err)
	}
	groups, err := s.repo.ListGroupsByIDs(ctx, groupIDs(members))
	if err != nil {
		return nil, domain.StorageError(err)
	}

	views := make([]domain.MyRequestView, 0, len(members))
	for _, m := range members {
		views = append(views, domain.NewMyRequestView(m, groups[m.GroupID], *user))
	}
	return views, nil
}

// ListPending returns pending user requests in the organizations the caller
// administers, ordered by organization id. Callers who administer nothing get
// an empty list.
func (s *Service) ListPending(ctx context.Context, p domain.Principal, req domain.ListPendingRequest) ([]domain.PendingRequestView, error) {
	ctx, span := tracer.Start(ctx, "membership.ListPending")
	defer span.End()

	if err := s.gate.Authorize(ctx, p, domain.ActionRequestsList, domain.Target{}); err != nil {
		if p.Authenticated() && errors.Is(err, domain.ErrAccessDenied) {
			return []domain.PendingRequestView{}, nil
		}
		return nil, err
	}

	filter := domain.PendingFilter{}
	if !p.Sysadmin {
		ids, err := s.repo.ListAdminGroupIDs(ctx, p.UserID)
		if err != nil {
			return nil, domain.StorageError(err)
		}
		if len(ids) == 0 {
			return []domain.PendingRequestView{}, nil
		}
		filter.GroupIDs = ids
	}

	group, err := s.resolveOrganizationFilter(ctx, req.Group)
	if err != nil {
		return nil, err
	}
	if group != nil {
		filter.GroupID = &group.ID
		span.SetAttributes(attribute.String("organization_id", group.ID.String()))
	}

	members, err := s.repo.ListPendingMembers(ctx, filter)
	if err != nil {
		return nil, domain.StorageError(err)
	}
	groups, err := s.repo.ListGroupsByIDs(ctx, groupIDs(members))
	if err != nil {
		return nil, domain.StorageError(err)
	}
	users, err := s.repo.ListUsersByIDs(ctx, userIDs(members))
	if err != nil {
		return nil, domain.StorageError(err)
	}

	sort.SliceStable(members, func(i, j int) bool {
		return members[i].GroupID < members[j].GroupID
	})

	views := make([]domain.PendingRequestView, 0, len(members))
	for _, m := range members {
		views = append(views, domain.NewPendingRequestView(m, groups[m.GroupID], users[m.UserID]))
	}
	return views, nil
}

// resolveOrganizationFilter accepts an organization id or name. Anything that
// does not name a known organization is ignored.
func (s *Service) resolveOrganizationFilter(ctx context.Context, value string) (*domain.Group, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}

	candidates := []func() (*domain.Group, error){}
	if id, err := snowflake.ParseString(value); err == nil && id != 0 {
		candidates = append(candidates, func() (*domain.Group, error) { return s.repo.GetGroup(ctx, id) })
	}
	candidates = append(candidates, func() (*domain.Group, error) { return s.repo.GetGroupByName(ctx, value) })
	if normalized := slug.Make(value); normalized != value {
		candidates = append(candidates, func() (*domain.Group, error) { return s.repo.GetGroupByName(ctx, normalized) })
	}

	for _, lookup := range candidates {
		group, err := lookup()
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, domain.StorageError(err)
		}
		if group.IsOrganization {
			return group, nil
		}
	}
	return nil, nil
}

func (s *Service) Show(ctx context.Context, p domain.Principal, req domain.ShowRequest) (*domain.MemberView, error) {
	ctx, span := tracer.Start(ctx, "membership.Show")
	defer span.End()

	if !p.Authenticated() {
		return nil, domain.ErrUnauthenticated
	}
	id, err := parseID(req.MemberID, domain.ErrInvalidMember)
	if err != nil {
		return nil, err
	}
	member, err := s.repo.GetMember(ctx, id)
	if err != nil {
		return nil, storageOrNotFound(err)
	}
	group, err := s.organizationOf(ctx, member)
	if err != nil {
		return nil, err
	}

	if err := s.gate.Authorize(ctx, p, domain.ActionRequestShow, targetOf(member, group)); err != nil {
		return nil, err
	}

	view := domain.NewMemberView(*member)
	if req.FetchUser && member.ObjectType == domain.TableUser {
		user, err := s.repo.GetUser(ctx, member.UserID)
		if err != nil {
			return nil, storageOrNotFound(err)
		}
		userView := domain.NewUserView(*user)
		view.User = &userView
	}
	return &view, nil
}

func (s *Service) Cancel(ctx context.Context, p domain.Principal, req domain.CancelRequest) (*domain.MemberView, error) {
	ctx, span := tracer.Start(ctx, "membership.Cancel")
	defer span.End()

	if !p.Authenticated() {
		return nil, domain.ErrUnauthenticated
	}

	var member *domain.Member
	switch {
	case strings.TrimSpace(req.MemberID) != "":
		id, err := parseID(req.MemberID, domain.ErrInvalidMember)
		if err != nil {
			return nil, err
		}
		member, err = s.repo.GetMember(ctx, id)
		if err != nil {
			return nil, storageOrNotFound(err)
		}
	case strings.TrimSpace(req.OrganizationID) != "":
		orgID, err := parseID(req.OrganizationID, domain.ErrInvalidOrganization)
		if err != nil {
			return nil, err
		}
		member, err = s.repo.FindUserMember(ctx, orgID, p.UserID, cancelRequest.from)
		if err != nil {
			return nil, storageOrNotFound(err)
		}
	default:
		return nil, domain.ErrMissingTarget
	}

	return s.transition(ctx, p, cancelRequest, member, req.Message)
}

func (s *Service) CancelMembership(ctx context.Context, p domain.Principal, req domain.CancelMembershipRequest) (*domain.MemberView, error) {
	ctx, span := tracer.Start(ctx, "membership.CancelMembership")
	defer span.End()

	if !p.Authenticated() {
		return nil, domain.ErrUnauthenticated
	}
	if strings.TrimSpace(req.OrganizationID) == "" {
		return nil, domain.ErrMissingTarget
	}
	orgID, err := parseID(req.OrganizationID, domain.ErrInvalidOrganization)
	if err != nil {
		return nil, err
	}
	member, err := s.repo.FindUserMember(ctx, orgID, p.UserID, cancelMembership.from)
	if err != nil {
		return nil, storageOrNotFound(err)
	}
	return s.transition(ctx, p, cancelMembership, member, req.Message)
}

func (s *Service) Process(ctx context.Context, p domain.Principal, req domain.ProcessRequest) (*domain.MemberView, error) {
	ctx, span := tracer.Start(ctx, "membership.Process")
	defer span.End()
	span.SetAttributes(attribute.Bool("approve", req.Approve))

	if !p.Authenticated() {
		return nil, domain.ErrUnauthenticated
	}
	id, err := parseID(req.MemberID, domain.ErrInvalidMember)
	if err != nil {
		return nil, err
	}
	member, err := s.repo.GetMember(ctx, id)
	if err != nil {
		return nil, storageOrNotFound(err)
	}

	t := rejectRequest
	if req.Approve {
		t = approveRequest
	}
	return s.transition(ctx, p, t, member, req.Message)
}

// AvailableRoles lists the roles a requester may pick for an organization.
// Member is never offered and editor is withheld once the organization has
// an admin.
func (s *Service) AvailableRoles(ctx context.Context, p domain.Principal, req domain.AvailableRolesRequest) ([]domain.RoleOption, error) {
	ctx, span := tracer.Start(ctx, "membership.AvailableRoles")
	defer span.End()

	if err := s.gate.Authorize(ctx, p, domain.ActionAvailableRoles, domain.Target{}); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.OrganizationID) == "" {
		return nil, nil
	}
	orgID, err := parseID(req.OrganizationID, domain.ErrInvalidOrganization)
	if err != nil {
		return nil, err
	}
	group, err := s.repo.GetGroup(ctx, orgID)
	if err != nil {
		return nil, storageOrNotFound(err)
	}
	if !group.IsOrganization {
		return nil, fmt.Errorf("%w: organization not found", domain.ErrNotFound)
	}
	admins, err := s.repo.CountAdmins(ctx, group.ID)
	if err != nil {
		return nil, domain.StorageError(err)
	}

	catalog := config.DefaultRoles()
	if s.roles != nil {
		catalog = s.roles.Roles()
	}

	out := make([]domain.RoleOption, 0, len(catalog))
	for _, role := range catalog {
		if role.Value == domain.CapacityMember {
			continue
		}
		if role.Value == domain.CapacityEditor && admins > 0 {
			continue
		}
		out = append(out, domain.RoleOption{Value: role.Value, Text: role.Text})
	}
	return out, nil
}

// organizationOf loads the record's group and rejects anything that is not
// a user membership in an organization.
func (s *Service) organizationOf(ctx context.Context, member *domain.Member) (*domain.Group, error) {
	group, err := s.repo.GetGroup(ctx, member.GroupID)
	if err != nil {
		return nil, storageOrNotFound(err)
	}
	if !group.IsOrganization {
		return nil, fmt.Errorf("%w: membership request not found", domain.ErrNotFound)
	}
	return group, nil
}

func targetOf(member *domain.Member, group *domain.Group) domain.Target {
	target := domain.Target{OrganizationID: group.ID}
	if member.ObjectType == domain.TableUser {
		target.UserID = member.UserID
	}
	return target
}

func parseID(value string, invalid error) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id <= 0 {
		return 0, invalid
	}
	return id, nil
}

func storageOrNotFound(err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return err
	}
	return domain.StorageError(err)
}

func groupIDs(members []domain.Member) []snowflake.ID {
	seen := make(map[snowflake.ID]struct{}, len(members))
	ids := make([]snowflake.ID, 0, len(members))
	for _, m := range members {
		if _, ok := seen[m.GroupID]; ok {
			continue
		}
		seen[m.GroupID] = struct{}{}
		ids = append(ids, m.GroupID)
	}
	return ids
}

func userIDs(members []domain.Member) []snowflake.ID {
	seen := make(map[snowflake.ID]struct{}, len(members))
	ids := make([]snowflake.ID, 0, len(members))
	for _, m := range members {
		if _, ok := seen[m.UserID]; ok {
			continue
		}
		seen[m.UserID] = struct{}{}
		ids = append(ids, m.UserID)
	}
	return ids
}
