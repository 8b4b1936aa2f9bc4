package seed

import (
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/memberrequest/internal/membership/domain"
	"github.com/smallbiznis/memberrequest/internal/membership/repository"
	pkgdb "github.com/smallbiznis/memberrequest/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureSysadmin(t *testing.T) {
	db, err := pkgdb.NewTest(t.Name())
	require.NoError(t, err)
	require.NoError(t, repository.Migrate(db))
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	created, err := EnsureSysadmin(db, node, "root")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = EnsureSysadmin(db, node, "root")
	require.NoError(t, err)
	assert.False(t, created)

	var users []domain.User
	require.NoError(t, db.Find(&users).Error)
	require.Len(t, users, 1)
	assert.True(t, users[0].Sysadmin)
}

func TestEnsureSysadminPromotesExistingUser(t *testing.T) {
	db, err := pkgdb.NewTest(t.Name())
	require.NoError(t, err)
	require.NoError(t, repository.Migrate(db))
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	require.NoError(t, db.Create(&domain.User{ID: node.Generate(), Name: "ops", State: "active"}).Error)

	created, err := EnsureSysadmin(db, node, "ops")
	require.NoError(t, err)
	assert.False(t, created)

	var user domain.User
	require.NoError(t, db.Where("name = ?", "ops").First(&user).Error)
	assert.True(t, user.Sysadmin)
}

func TestEnsureSysadminRequiresName(t *testing.T) {
	db, err := pkgdb.NewTest(t.Name())
	require.NoError(t, err)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	_, err = EnsureSysadmin(db, node, " ")
	assert.Error(t, err)
}
