// Package seed creates the records a fresh deployment needs.
package seed

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/memberrequest/internal/membership/domain"
	"gorm.io/gorm"
)

// EnsureSysadmin makes sure a user with the given name exists and carries
// the sysadmin flag. It reports whether a new user was created.
func EnsureSysadmin(db *gorm.DB, node *snowflake.Node, name string) (bool, error) {
	if db == nil {
		return false, errors.New("seed database handle is required")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return false, errors.New("sysadmin name is required")
	}

	ctx := context.Background()
	created := false
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user domain.User
		err := tx.Where("name = ?", name).First(&user).Error
		if err == nil {
			if user.Sysadmin && user.State == "active" {
				return nil
			}
			return tx.Model(&domain.User{}).
				Where("id = ?", user.ID).
				Updates(map[string]any{"sysadmin": true, "state": "active"}).Error
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		user = domain.User{
			ID:        node.Generate(),
			Name:      name,
			FullName:  name,
			Sysadmin:  true,
			State:     "active",
			CreatedAt: time.Now().UTC(),
		}
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		created = true
		return nil
	})
	return created, err
}
