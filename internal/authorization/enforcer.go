package authorization

import (
	_ "embed"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"github.com/smallbiznis/memberrequest/internal/membership/domain"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

const ObjectMemberRequest = "member_request"

const (
	RoleUser     = "role:user"
	RoleOwner    = "role:owner"
	RoleAdmin    = "role:admin"
	RoleSysadmin = "role:sysadmin"
)

// NewEnforcer loads policies from the casbin_rule table and seeds the
// built-in ones. Seeding is idempotent.
func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	return enforcer, nil
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	policies := [][]string{
		// Any authenticated user
		{RoleUser, ObjectMemberRequest, string(domain.ActionRequestsMyList)},
		{RoleUser, ObjectMemberRequest, string(domain.ActionAvailableRoles)},

		// The user the record belongs to
		{RoleOwner, ObjectMemberRequest, string(domain.ActionRequestShow)},
		{RoleOwner, ObjectMemberRequest, string(domain.ActionRequestCancel)},
		{RoleOwner, ObjectMemberRequest, string(domain.ActionMembershipCancel)},

		// Active admin of the record's organization
		{RoleAdmin, ObjectMemberRequest, string(domain.ActionRequestsList)},
		{RoleAdmin, ObjectMemberRequest, string(domain.ActionRequestShow)},
		{RoleAdmin, ObjectMemberRequest, string(domain.ActionRequestApprove)},
		{RoleAdmin, ObjectMemberRequest, string(domain.ActionRequestReject)},

		{RoleSysadmin, ObjectMemberRequest, "*"},
	}

	for _, policy := range policies {
		if _, err := enforcer.AddPolicy(policy); err != nil {
			return err
		}
	}
	return nil
}
