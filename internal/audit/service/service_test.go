package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/memberrequest/internal/audit/auditcontext"
	auditdomain "github.com/smallbiznis/memberrequest/internal/audit/domain"
	"github.com/smallbiznis/memberrequest/internal/audit/repository"
	"github.com/smallbiznis/memberrequest/internal/clock"
	pkgdb "github.com/smallbiznis/memberrequest/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newAuditService(t *testing.T) (auditdomain.Service, *gorm.DB, *clock.FakeClock) {
	t.Helper()
	db, err := pkgdb.NewTest(t.Name())
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	require.NoError(t, repository.Migrate(db))

	node, err := snowflake.NewNode(2)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2024, 3, 7, 10, 0, 0, 0, time.UTC))
	svc := NewService(Params{DB: db, Log: zap.NewNop(), GenID: node, Clock: clk, Repo: repository.Provide()})
	return svc, db, clk
}

func TestAuditLogCapturesRequestMetadata(t *testing.T) {
	svc, db, clk := newAuditService(t)

	ctx := auditcontext.WithRequestID(context.Background(), "req-1")
	ctx = auditcontext.WithClient(ctx, "10.0.0.1", "curl/8.0")
	orgID := snowflake.ID(7)
	actor := " 42 "
	target := "99"

	err := svc.AuditLog(ctx, &orgID, "", &actor, "member_request.approved", "member", &target, map[string]any{
		"approved": true,
		"":         "dropped",
	})
	require.NoError(t, err)

	var logs []auditdomain.AuditLog
	require.NoError(t, db.Where("org_id = ?", orgID).Find(&logs).Error)
	require.Len(t, logs, 1)

	entry := logs[0]
	assert.Equal(t, string(auditdomain.ActorTypeSystem), entry.ActorType)
	require.NotNil(t, entry.ActorID)
	assert.Equal(t, "42", *entry.ActorID)
	assert.Equal(t, "req-1", entry.Metadata["request_id"])
	assert.Equal(t, true, entry.Metadata["approved"])
	assert.NotContains(t, entry.Metadata, "")
	require.NotNil(t, entry.IPAddress)
	assert.Equal(t, "10.0.0.1", *entry.IPAddress)
	require.NotNil(t, entry.UserAgent)
	assert.Equal(t, "curl/8.0", *entry.UserAgent)
	assert.True(t, entry.CreatedAt.Equal(clk.Now()))
}

func TestAuditLogRequiresAction(t *testing.T) {
	svc, _, _ := newAuditService(t)

	err := svc.AuditLog(context.Background(), nil, "user", nil, "  ", "member", nil, nil)

	assert.ErrorIs(t, err, auditdomain.ErrInvalidAction)
}

func TestAuditLogKeepsOrganizationAndTarget(t *testing.T) {
	svc, db, clk := newAuditService(t)
	ctx := context.Background()
	orgA := snowflake.ID(1)
	orgB := snowflake.ID(2)
	first := "m-1"
	second := "m-2"

	require.NoError(t, svc.AuditLog(ctx, &orgA, "user", nil, "member_request.approved", "member", &first, nil))
	clk.Advance(time.Minute)
	require.NoError(t, svc.AuditLog(ctx, &orgA, "user", nil, "member_request.rejected", "member", &second, nil))
	clk.Advance(time.Minute)
	require.NoError(t, svc.AuditLog(ctx, &orgB, "user", nil, "member_request.approved", "member", &second, nil))

	var byOrg []auditdomain.AuditLog
	require.NoError(t, db.Where("org_id = ?", orgA).Order("created_at asc").Find(&byOrg).Error)
	require.Len(t, byOrg, 2)
	assert.Equal(t, "member_request.approved", byOrg[0].Action)
	assert.Equal(t, "member_request.rejected", byOrg[1].Action)

	var byTarget []auditdomain.AuditLog
	require.NoError(t, db.Where("action = ? AND target_id = ?", "member_request.approved", "m-2").Find(&byTarget).Error)
	require.Len(t, byTarget, 1)
	require.NotNil(t, byTarget[0].OrgID)
	assert.Equal(t, orgB, *byTarget[0].OrgID)
}
