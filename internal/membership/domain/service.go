package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Action names one externally callable operation.
type Action string

const (
	ActionRequestsMyList   Action = "member_requests_mylist"
	ActionRequestsList     Action = "member_requests_list"
	ActionRequestShow      Action = "member_request_show"
	ActionRequestCancel    Action = "member_request_cancel"
	ActionMembershipCancel Action = "member_request_membership_cancel"
	ActionRequestApprove   Action = "member_request_approve"
	ActionRequestReject    Action = "member_request_reject"
	ActionAvailableRoles   Action = "get_available_roles"
)

// Principal is the authenticated caller. It is resolved from the user
// directory for every request and passed explicitly to each operation.
type Principal struct {
	UserID   snowflake.ID
	Name     string
	Sysadmin bool
}

func (p Principal) Authenticated() bool {
	return p.UserID != 0
}

// Target identifies the record an action operates on. Zero fields are unknown.
type Target struct {
	OrganizationID snowflake.ID
	UserID         snowflake.ID
}

// Gate decides whether a principal may invoke an action. It returns nil,
// an ErrAccessDenied or an ErrValidation wrapped error.
type Gate interface {
	Authorize(ctx context.Context, p Principal, action Action, target Target) error
}

type Service interface {
	ListMine(ctx context.Context, p Principal) ([]MyRequestView, error)
	ListPending(ctx context.Context, p Principal, req ListPendingRequest) ([]PendingRequestView, error)
	Show(ctx context.Context, p Principal, req ShowRequest) (*MemberView, error)
	Cancel(ctx context.Context, p Principal, req CancelRequest) (*MemberView, error)
	CancelMembership(ctx context.Context, p Principal, req CancelMembershipRequest) (*MemberView, error)
	Process(ctx context.Context, p Principal, req ProcessRequest) (*MemberView, error)
	AvailableRoles(ctx context.Context, p Principal, req AvailableRolesRequest) ([]RoleOption, error)
}

type ListPendingRequest struct {
	Group string `json:"group"`
}

type ShowRequest struct {
	MemberID  string `json:"member"`
	FetchUser bool   `json:"fetch_user"`
}

type CancelRequest struct {
	MemberID       string `json:"member"`
	OrganizationID string `json:"organization_id"`
	Message        string `json:"message"`
}

type CancelMembershipRequest struct {
	OrganizationID string `json:"organization_id"`
	Message        string `json:"message"`
}

type ProcessRequest struct {
	MemberID string `json:"member"`
	Approve  bool   `json:"approve"`
	Message  string `json:"message"`
}

type AvailableRolesRequest struct {
	OrganizationID string `json:"organization_id"`
}

type RoleOption struct {
	Value string `json:"value"`
	Text  string `json:"text"`
}

// MemberView is the external shape of a member record.
type MemberView struct {
	ID          string     `json:"id"`
	TableName   string     `json:"table_name"`
	TableID     string     `json:"table_id"`
	GroupID     string     `json:"group_id"`
	Capacity    string     `json:"capacity"`
	State       string     `json:"state"`
	Locale      string     `json:"locale,omitempty"`
	RequestedAt time.Time  `json:"requested_at"`
	DecidedAt   *time.Time `json:"decided_at"`
	Revision    int64      `json:"revision"`
	User        *UserView  `json:"user,omitempty"`
}

// PendingRequestView is one entry of an administrator's queue.
type PendingRequestView struct {
	MemberView
	GroupName string `json:"group_name"`
	UserName  string `json:"user_name"`
}

// MyRequestView is one entry of the caller's own request list.
type MyRequestView struct {
	MemberName       string  `json:"member_name"`
	OrganizationName string  `json:"organization_name"`
	State            string  `json:"state"`
	Role             string  `json:"role"`
	RequestDate      string  `json:"request_date"`
	HandlingDate     *string `json:"handling_date"`
}

// UserView is the public profile of a user.
type UserView struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	FullName  string    `json:"full_name"`
	State     string    `json:"state"`
	Sysadmin  bool      `json:"sysadmin"`
	CreatedAt time.Time `json:"created_at"`
}
