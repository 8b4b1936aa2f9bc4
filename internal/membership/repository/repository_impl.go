package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/memberrequest/internal/membership/domain"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) domain.Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) domain.Repository {
	return &repository{db: tx}
}

func (r *repository) GetMember(ctx context.Context, id snowflake.ID) (*domain.Member, error) {
	var member domain.Member
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&member).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &member, nil
}

func (r *repository) FindUserMember(ctx context.Context, groupID, userID snowflake.ID, states []domain.MemberState) (*domain.Member, error) {
	var members []domain.Member
	err := r.db.WithContext(ctx).
		Where("group_id = ? AND table_name = ? AND table_id = ?", groupID, domain.TableUser, userID).
		Where("state IN ?", states).
		Order("id ASC").
		Limit(1).
		Find(&members).Error
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return nil, domain.ErrNotFound
	}
	return &members[0], nil
}

func (r *repository) ListOrganizationMembersByUser(ctx context.Context, userID snowflake.ID) ([]domain.Member, error) {
	var members []domain.Member
	err := r.db.WithContext(ctx).
		Where("table_name = ? AND table_id = ?", domain.TableUser, userID).
		Where("group_id IN (?)", r.organizationIDs()).
		Order("id ASC").
		Find(&members).Error
	if err != nil {
		return nil, err
	}
	return members, nil
}

func (r *repository) organizationIDs() *gorm.DB {
	return r.db.Model(&domain.Group{}).Select("id").Where("is_organization = ?", true)
}

func (r *repository) ListPendingMembers(ctx context.Context, filter domain.PendingFilter) ([]domain.Member, error) {
	if filter.GroupIDs != nil && len(filter.GroupIDs) == 0 {
		return []domain.Member{}, nil
	}

	stmt := r.db.WithContext(ctx).
		Model(&domain.Member{}).
		Where("table_name = ? AND state = ?", domain.TableUser, domain.StatePending).
		Where("group_id IN (?)", r.organizationIDs())
	if filter.GroupIDs != nil {
		stmt = stmt.Where("group_id IN ?", filter.GroupIDs)
	}
	if filter.GroupID != nil {
		stmt = stmt.Where("group_id = ?", *filter.GroupID)
	}

	var members []domain.Member
	if err := stmt.Order("id ASC").Find(&members).Error; err != nil {
		return nil, err
	}
	return members, nil
}

func (r *repository) ListAdminGroupIDs(ctx context.Context, userID snowflake.ID) ([]snowflake.ID, error) {
	var ids []snowflake.ID
	err := r.db.WithContext(ctx).
		Model(&domain.Member{}).
		Where("table_name = ? AND table_id = ? AND capacity = ? AND state = ?",
			domain.TableUser, userID, domain.CapacityAdmin, domain.StateActive).
		Order("group_id ASC").
		Pluck("group_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *repository) IsActiveAdmin(ctx context.Context, groupID, userID snowflake.ID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.Member{}).
		Where("group_id = ? AND table_name = ? AND table_id = ? AND capacity = ? AND state = ?",
			groupID, domain.TableUser, userID, domain.CapacityAdmin, domain.StateActive).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repository) CountAdmins(ctx context.Context, groupID snowflake.ID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.Member{}).
		Where("group_id = ? AND table_name = ? AND capacity = ? AND state = ?",
			groupID, domain.TableUser, domain.CapacityAdmin, domain.StateActive).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

// TransitionMember applies the state change only while the row is still in
// one of the From states. It reports false when another writer got there first.
func (r *repository) TransitionMember(ctx context.Context, update domain.TransitionUpdate) (bool, error) {
	tx := r.db.WithContext(ctx).
		Model(&domain.Member{}).
		Where("id = ? AND state IN ?", update.MemberID, update.From).
		Updates(map[string]any{
			"state":      update.To,
			"decided_at": update.DecidedAt,
			"revision":   gorm.Expr("revision + 1"),
		})
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

func (r *repository) InsertRevision(ctx context.Context, revision domain.MemberRevision) error {
	return r.db.WithContext(ctx).Create(&revision).Error
}

func (r *repository) GetGroup(ctx context.Context, id snowflake.ID) (*domain.Group, error) {
	var group domain.Group
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&group).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &group, nil
}

func (r *repository) GetGroupByName(ctx context.Context, name string) (*domain.Group, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domain.ErrNotFound
	}
	var group domain.Group
	err := r.db.WithContext(ctx).Where("name = ?", name).First(&group).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &group, nil
}

func (r *repository) ListGroupsByIDs(ctx context.Context, ids []snowflake.ID) (map[snowflake.ID]domain.Group, error) {
	out := make(map[snowflake.ID]domain.Group, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var groups []domain.Group
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&groups).Error; err != nil {
		return nil, err
	}
	for _, group := range groups {
		out[group.ID] = group
	}
	return out, nil
}

func (r *repository) GetUser(ctx context.Context, id snowflake.ID) (*domain.User, error) {
	var user domain.User
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *repository) ListUsersByIDs(ctx context.Context, ids []snowflake.ID) (map[snowflake.ID]domain.User, error) {
	out := make(map[snowflake.ID]domain.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var users []domain.User
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, err
	}
	for _, user := range users {
		out[user.ID] = user
	}
	return out, nil
}
