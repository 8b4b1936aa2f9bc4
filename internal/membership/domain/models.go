// Package domain contains persistence models and contracts for membership requests.
package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type MemberState string

const (
	StatePending MemberState = "pending"
	StateActive  MemberState = "active"
	StateDeleted MemberState = "deleted"
)

// TableUser marks a user-to-organization membership; other table names
// (group-to-group links) are never touched by this service.
const TableUser = "user"

const (
	CapacityAdmin  = "admin"
	CapacityEditor = "editor"
	CapacityMember = "member"
)

const extrasLocaleKey = "locale"

// User is an entry in the user directory.
type User struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	Name      string       `gorm:"type:text;not null;uniqueIndex:ux_users_name" json:"name"`
	FullName  string       `gorm:"type:text;column:full_name" json:"full_name"`
	Email     string       `gorm:"type:text" json:"email"`
	Sysadmin  bool         `gorm:"not null;default:false" json:"sysadmin"`
	State     string       `gorm:"type:text;not null;default:'active'" json:"state"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (User) TableName() string { return "users" }

// Group is an organization or a plain group. Only organizations accept
// membership requests.
type Group struct {
	ID             snowflake.ID `gorm:"primaryKey" json:"id"`
	Name           string       `gorm:"type:text;not null;uniqueIndex:ux_groups_name" json:"name"`
	Title          string       `gorm:"type:text" json:"title"`
	IsOrganization bool         `gorm:"column:is_organization;not null;default:false" json:"is_organization"`
	State          string       `gorm:"type:text;not null;default:'active'" json:"state"`
	CreatedAt      time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (Group) TableName() string { return "groups" }

func (g Group) DisplayName() string {
	if title := strings.TrimSpace(g.Title); title != "" {
		return title
	}
	return g.Name
}

// Member links one user to one group with a capacity and lifecycle state.
// At most one non-deleted row exists per (group, table_name, table_id); the
// store enforces it with the ux_members_open partial index.
type Member struct {
	ID          snowflake.ID      `gorm:"primaryKey" json:"id"`
	GroupID     snowflake.ID      `gorm:"not null;index" json:"group_id"`
	ObjectType  string            `gorm:"column:table_name;type:text;not null" json:"table_name"`
	UserID      snowflake.ID      `gorm:"column:table_id;not null;index" json:"table_id"`
	Capacity    string            `gorm:"type:text;not null" json:"capacity"`
	State       MemberState       `gorm:"type:text;not null;index" json:"state"`
	Extras      datatypes.JSONMap `json:"extras"`
	RequestedAt time.Time         `gorm:"not null" json:"requested_at"`
	DecidedAt   *time.Time        `json:"decided_at"`
	Revision    int64             `gorm:"not null;default:1" json:"revision"`
}

// TableName sets the database table name.
func (Member) TableName() string { return "members" }

// Locale returns the locale preference stored in the member extras, if any.
func (m Member) Locale() string {
	if m.Extras == nil {
		return ""
	}
	value, ok := m.Extras[extrasLocaleKey].(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(value)
}

// MemberRevision annotates one committed member mutation with its author.
type MemberRevision struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	MemberID  snowflake.ID `gorm:"not null;index" json:"member_id"`
	State     MemberState  `gorm:"type:text;not null" json:"state"`
	Capacity  string       `gorm:"type:text;not null" json:"capacity"`
	Author    string       `gorm:"type:text;not null" json:"author"`
	Message   string       `gorm:"type:text;not null" json:"message"`
	CreatedAt time.Time    `gorm:"not null" json:"created_at"`
}

// TableName sets the database table name.
func (MemberRevision) TableName() string { return "member_revisions" }
