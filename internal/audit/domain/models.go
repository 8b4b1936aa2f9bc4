// Package domain contains the audit trail model and contracts.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ActorType string

const (
	ActorTypeUser   ActorType = "user"
	ActorTypeSystem ActorType = "system"
)

// AuditLog is one durable audit entry. Entries are append-only.
type AuditLog struct {
	ID         snowflake.ID      `gorm:"primaryKey" json:"id"`
	OrgID      *snowflake.ID     `gorm:"index" json:"org_id,omitempty"`
	ActorType  string            `gorm:"type:text;not null" json:"actor_type"`
	ActorID    *string           `gorm:"type:text" json:"actor_id,omitempty"`
	Action     string            `gorm:"type:text;not null;index" json:"action"`
	TargetType string            `gorm:"type:text;not null" json:"target_type"`
	TargetID   *string           `gorm:"type:text" json:"target_id,omitempty"`
	Metadata   datatypes.JSONMap `json:"metadata,omitempty"`
	IPAddress  *string           `gorm:"type:text" json:"ip_address,omitempty"`
	UserAgent  *string           `gorm:"type:text" json:"user_agent,omitempty"`
	CreatedAt  time.Time         `gorm:"not null" json:"created_at"`
}

// TableName sets the database table name.
func (AuditLog) TableName() string { return "audit_logs" }

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, entry *AuditLog) error
}

type Service interface {
	AuditLog(ctx context.Context, orgID *snowflake.ID, actorType string, actorID *string, action string, targetType string, targetID *string, metadata map[string]any) error
}

var ErrInvalidAction = errors.New("invalid_action")
