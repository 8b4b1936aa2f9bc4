package repository

import (
	"github.com/smallbiznis/memberrequest/internal/membership/domain"
	"gorm.io/gorm"
)

const openMemberIndex = `CREATE UNIQUE INDEX IF NOT EXISTS ux_members_open
	ON members (group_id, table_name, table_id)
	WHERE state <> 'deleted'`

// Migrate creates the membership tables through gorm. Postgres deployments
// use the SQL migrations instead; this path serves sqlite and tests.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&domain.User{},
		&domain.Group{},
		&domain.Member{},
		&domain.MemberRevision{},
	); err != nil {
		return err
	}
	// MySQL has no partial indexes.
	if db.Dialector.Name() == "mysql" {
		return nil
	}
	return db.Exec(openMemberIndex).Error
}
