package server

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/smallbiznis/memberrequest/internal/membership/domain"
	"go.uber.org/zap"
)

const contextPrincipalKey = "principal"

// AuthRequired resolves the bearer token into a Principal. The user is
// looked up on every request so a suspended account loses access at once.
func (s *Server) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := s.parseToken(bearerToken(c.GetHeader("Authorization")))
		if err != nil {
			s.log.Debug("rejected bearer token", zap.Error(err))
			AbortWithError(c, ErrUnauthorized)
			return
		}

		principal, err := s.principals.Resolve(c.Request.Context(), userID)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		c.Set(contextPrincipalKey, principal)
		c.Next()
	}
}

func (s *Server) parseToken(raw string) (snowflake.ID, error) {
	if raw == "" {
		return 0, errors.New("missing bearer token")
	}
	if len(s.secret) == 0 {
		return 0, errors.New("token secret not configured")
	}

	claims := &jwt.RegisteredClaims{}
	keyFunc := func(*jwt.Token) (any, error) { return s.secret, nil }
	_, err := jwt.ParseWithClaims(raw, claims, keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return 0, err
	}

	userID, err := snowflake.ParseString(strings.TrimSpace(claims.Subject))
	if err != nil || userID == 0 {
		return 0, errors.New("invalid subject")
	}
	return userID, nil
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func principalFrom(c *gin.Context) domain.Principal {
	v, ok := c.Get(contextPrincipalKey)
	if !ok {
		return domain.Principal{}
	}
	p, _ := v.(domain.Principal)
	return p
}

// RateLimited throttles each principal through the Redis token bucket when
// one is configured.
func (s *Server) RateLimited() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.limiter.Enabled() {
			c.Next()
			return
		}
		res := s.limiter.Allow(c.Request.Context(), principalFrom(c).UserID.String())
		if !res.Allowed {
			if seconds := int(math.Ceil(res.RetryAfter.Seconds())); seconds > 0 {
				c.Header("Retry-After", strconv.Itoa(seconds))
			}
			AbortWithError(c, ErrRateLimited)
			return
		}
		c.Next()
	}
}
