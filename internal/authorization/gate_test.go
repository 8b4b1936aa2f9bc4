package authorization

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/smallbiznis/memberrequest/internal/membership/domain"
	"github.com/smallbiznis/memberrequest/internal/membership/repository"
	"github.com/smallbiznis/memberrequest/internal/observability/metrics"
	pkgdb "github.com/smallbiznis/memberrequest/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type gateFixture struct {
	db   *gorm.DB
	node *snowflake.Node
	gate domain.Gate
	repo domain.Repository
}

func newGateFixture(t *testing.T) *gateFixture {
	t.Helper()
	db, err := pkgdb.NewTest(t.Name())
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	require.NoError(t, repository.Migrate(db))

	enforcer, err := NewEnforcer(db)
	require.NoError(t, err)
	node, err := snowflake.NewNode(2)
	require.NoError(t, err)
	m, err := metrics.NewMemberRequestMetrics(prometheus.NewRegistry(), metrics.Config{})
	require.NoError(t, err)

	repo := repository.NewRepository(db)
	return &gateFixture{
		db:   db,
		node: node,
		repo: repo,
		gate: NewGate(Params{Log: zap.NewNop(), Enforcer: enforcer, Repo: repo, Metrics: m}),
	}
}

func (f *gateFixture) admin(t *testing.T) (domain.Principal, snowflake.ID) {
	t.Helper()
	org := domain.Group{ID: f.node.Generate(), Name: "water-board", IsOrganization: true, State: "active", CreatedAt: time.Now().UTC()}
	require.NoError(t, f.db.Create(&org).Error)
	user := domain.User{ID: f.node.Generate(), Name: "bob", State: "active", CreatedAt: time.Now().UTC()}
	require.NoError(t, f.db.Create(&user).Error)
	member := domain.Member{
		ID:          f.node.Generate(),
		GroupID:     org.ID,
		ObjectType:  domain.TableUser,
		UserID:      user.ID,
		Capacity:    domain.CapacityAdmin,
		State:       domain.StateActive,
		RequestedAt: time.Now().UTC(),
		Revision:    1,
	}
	require.NoError(t, f.db.Create(&member).Error)
	return domain.Principal{UserID: user.ID, Name: user.Name}, org.ID
}

func TestAuthorizeMatrix(t *testing.T) {
	f := newGateFixture(t)
	ctx := context.Background()
	admin, orgID := f.admin(t)
	owner := domain.Principal{UserID: 9001, Name: "alice"}
	stranger := domain.Principal{UserID: 9002, Name: "mallory"}
	root := domain.Principal{UserID: 9003, Name: "root", Sysadmin: true}
	record := domain.Target{OrganizationID: orgID, UserID: owner.UserID}

	cases := []struct {
		name      string
		principal domain.Principal
		action    domain.Action
		target    domain.Target
		wantErr   error
	}{
		{"owner lists own", owner, domain.ActionRequestsMyList, domain.Target{UserID: owner.UserID}, nil},
		{"sysadmin mylist", root, domain.ActionRequestsMyList, domain.Target{}, domain.ErrValidation},
		{"owner shows", owner, domain.ActionRequestShow, record, nil},
		{"admin shows", admin, domain.ActionRequestShow, record, nil},
		{"stranger shows", stranger, domain.ActionRequestShow, record, domain.ErrAccessDenied},
		{"owner cancels", owner, domain.ActionRequestCancel, record, nil},
		{"admin cancels for someone else", admin, domain.ActionRequestCancel, record, domain.ErrAccessDenied},
		{"owner leaves", owner, domain.ActionMembershipCancel, record, nil},
		{"owner approves", owner, domain.ActionRequestApprove, record, domain.ErrAccessDenied},
		{"admin approves", admin, domain.ActionRequestApprove, record, nil},
		{"admin rejects", admin, domain.ActionRequestReject, record, nil},
		{"admin of nothing rejects elsewhere", admin, domain.ActionRequestReject, domain.Target{OrganizationID: 77, UserID: owner.UserID}, domain.ErrAccessDenied},
		{"sysadmin rejects", root, domain.ActionRequestReject, record, nil},
		{"admin lists queue", admin, domain.ActionRequestsList, domain.Target{}, nil},
		{"stranger lists queue", stranger, domain.ActionRequestsList, domain.Target{}, domain.ErrAccessDenied},
		{"sysadmin lists queue", root, domain.ActionRequestsList, domain.Target{}, nil},
		{"anyone reads roles", stranger, domain.ActionAvailableRoles, domain.Target{}, nil},
		{"anonymous", domain.Principal{}, domain.ActionAvailableRoles, domain.Target{}, domain.ErrAccessDenied},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := f.gate.Authorize(ctx, tc.principal, tc.action, tc.target)
			if tc.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestSeedPoliciesIsIdempotent(t *testing.T) {
	f := newGateFixture(t)

	_, err := NewEnforcer(f.db)
	require.NoError(t, err)

	var count int64
	require.NoError(t, f.db.Table("casbin_rule").Count(&count).Error)
	assert.Equal(t, int64(10), count)
}

func TestPrincipalResolver(t *testing.T) {
	f := newGateFixture(t)
	ctx := context.Background()
	admin, _ := f.admin(t)
	resolver := NewPrincipalResolver(f.repo)

	p, err := resolver.Resolve(ctx, admin.UserID)
	require.NoError(t, err)
	assert.Equal(t, "bob", p.Name)
	assert.False(t, p.Sysadmin)

	_, err = resolver.Resolve(ctx, 123)
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)

	require.NoError(t, f.db.Model(&domain.User{}).Where("id = ?", admin.UserID).Update("state", "deleted").Error)
	_, err = resolver.Resolve(ctx, admin.UserID)
	assert.ErrorIs(t, err, domain.ErrAccessDenied)
}
