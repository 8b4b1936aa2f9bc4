package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/memberrequest/internal/membership/domain"
)

type actionHandler func(ctx context.Context, p domain.Principal, c *gin.Context) (any, error)

func (s *Server) actionTable() map[string]actionHandler {
	return map[string]actionHandler{
		string(domain.ActionRequestsMyList):   s.listMine,
		string(domain.ActionRequestsList):     s.listPending,
		string(domain.ActionRequestShow):      s.show,
		string(domain.ActionRequestCancel):    s.cancel,
		string(domain.ActionMembershipCancel): s.cancelMembership,
		"member_request_process":              s.process,
		string(domain.ActionAvailableRoles):   s.availableRoles,
	}
}

// HandleAction dispatches POST /api/action/:action to the membership service.
func (s *Server) HandleAction(c *gin.Context) {
	name := strings.TrimSpace(c.Param("action"))
	start := time.Now()
	defer func() {
		status := c.Writer.Status()
		// Errors are rendered later by ErrorHandlingMiddleware.
		if lastErr := c.Errors.Last(); lastErr != nil && !c.Writer.Written() {
			status, _ = mapError(lastErr.Err)
		}
		s.httpMetrics.RecordHTTPRequest(c.Request.Context(), name, status, time.Since(start))
	}()

	handler, ok := s.actions[name]
	if !ok {
		AbortWithError(c, ErrNotFound)
		return
	}

	result, err := handler(c.Request.Context(), principalFrom(c), c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse{Success: true, Result: result})
}

func (s *Server) listMine(ctx context.Context, p domain.Principal, _ *gin.Context) (any, error) {
	return s.members.ListMine(ctx, p)
}

func (s *Server) listPending(ctx context.Context, p domain.Principal, c *gin.Context) (any, error) {
	var req domain.ListPendingRequest
	if err := bindBody(c, &req); err != nil {
		return nil, err
	}
	return s.members.ListPending(ctx, p, req)
}

func (s *Server) show(ctx context.Context, p domain.Principal, c *gin.Context) (any, error) {
	var req domain.ShowRequest
	if err := bindBody(c, &req); err != nil {
		return nil, err
	}
	return s.members.Show(ctx, p, req)
}

func (s *Server) cancel(ctx context.Context, p domain.Principal, c *gin.Context) (any, error) {
	var req domain.CancelRequest
	if err := bindBody(c, &req); err != nil {
		return nil, err
	}
	return s.members.Cancel(ctx, p, req)
}

func (s *Server) cancelMembership(ctx context.Context, p domain.Principal, c *gin.Context) (any, error) {
	var req domain.CancelMembershipRequest
	if err := bindBody(c, &req); err != nil {
		return nil, err
	}
	return s.members.CancelMembership(ctx, p, req)
}

func (s *Server) process(ctx context.Context, p domain.Principal, c *gin.Context) (any, error) {
	var req domain.ProcessRequest
	if err := bindBody(c, &req); err != nil {
		return nil, err
	}
	return s.members.Process(ctx, p, req)
}

func (s *Server) availableRoles(ctx context.Context, p domain.Principal, c *gin.Context) (any, error) {
	var req domain.AvailableRolesRequest
	if err := bindBody(c, &req); err != nil {
		return nil, err
	}
	roles, err := s.members.AvailableRoles(ctx, p, req)
	if err != nil {
		return nil, err
	}
	if roles == nil {
		roles = []domain.RoleOption{}
	}
	return roles, nil
}

// bindBody decodes an optional JSON body. An empty body leaves dst zeroed.
func bindBody(c *gin.Context, dst any) error {
	if err := c.ShouldBindJSON(dst); err != nil && !errors.Is(err, io.EOF) {
		return invalidRequestError()
	}
	return nil
}
