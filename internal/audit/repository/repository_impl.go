package repository

import (
	"context"

	"github.com/smallbiznis/memberrequest/internal/audit/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, entry *domain.AuditLog) error {
	if entry == nil {
		return nil
	}
	return db.WithContext(ctx).Create(entry).Error
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&domain.AuditLog{})
}
