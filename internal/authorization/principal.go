package authorization

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/memberrequest/internal/membership/domain"
)

const userStateActive = "active"

// PrincipalResolver turns an authenticated user id into a Principal using
// the user directory. It runs once per request.
type PrincipalResolver struct {
	repo domain.Repository
}

func NewPrincipalResolver(repo domain.Repository) *PrincipalResolver {
	return &PrincipalResolver{repo: repo}
}

func (r *PrincipalResolver) Resolve(ctx context.Context, userID snowflake.ID) (domain.Principal, error) {
	if userID == 0 {
		return domain.Principal{}, domain.ErrUnauthenticated
	}
	user, err := r.repo.GetUser(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Principal{}, domain.ErrUnauthenticated
	}
	if err != nil {
		return domain.Principal{}, domain.StorageError(err)
	}
	if user.State != userStateActive {
		return domain.Principal{}, domain.ErrUnauthenticated
	}
	return domain.Principal{
		UserID:   user.ID,
		Name:     user.Name,
		Sysadmin: user.Sysadmin,
	}, nil
}
