package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// PendingFilter scopes the pending queue. A nil GroupIDs slice means no
// restriction; an empty non-nil slice matches nothing.
type PendingFilter struct {
	GroupIDs []snowflake.ID
	GroupID  *snowflake.ID
}

// TransitionUpdate moves one member out of one of the From states.
type TransitionUpdate struct {
	MemberID  snowflake.ID
	From      []MemberState
	To        MemberState
	DecidedAt time.Time
}

type Repository interface {
	WithTx(tx *gorm.DB) Repository

	GetMember(ctx context.Context, id snowflake.ID) (*Member, error)
	FindUserMember(ctx context.Context, groupID, userID snowflake.ID, states []MemberState) (*Member, error)
	ListOrganizationMembersByUser(ctx context.Context, userID snowflake.ID) ([]Member, error)
	ListPendingMembers(ctx context.Context, filter PendingFilter) ([]Member, error)
	ListAdminGroupIDs(ctx context.Context, userID snowflake.ID) ([]snowflake.ID, error)
	IsActiveAdmin(ctx context.Context, groupID, userID snowflake.ID) (bool, error)
	CountAdmins(ctx context.Context, groupID snowflake.ID) (int64, error)
	TransitionMember(ctx context.Context, update TransitionUpdate) (bool, error)
	InsertRevision(ctx context.Context, revision MemberRevision) error

	GetGroup(ctx context.Context, id snowflake.ID) (*Group, error)
	GetGroupByName(ctx context.Context, name string) (*Group, error)
	ListGroupsByIDs(ctx context.Context, ids []snowflake.ID) (map[snowflake.ID]Group, error)

	GetUser(ctx context.Context, id snowflake.ID) (*User, error)
	ListUsersByIDs(ctx context.Context, ids []snowflake.ID) (map[snowflake.ID]User, error)
}
