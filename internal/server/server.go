package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/memberrequest/internal/authorization"
	"github.com/smallbiznis/memberrequest/internal/config"
	"github.com/smallbiznis/memberrequest/internal/membership/domain"
	"github.com/smallbiznis/memberrequest/internal/observability"
	obsmiddleware "github.com/smallbiznis/memberrequest/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/memberrequest/internal/observability/metrics"
	obstracing "github.com/smallbiznis/memberrequest/internal/observability/tracing"
	"github.com/smallbiznis/memberrequest/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(registerRoutes),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

type ServerParams struct {
	fx.In

	Engine      *gin.Engine
	Cfg         config.Config
	Log         *zap.Logger
	Members     domain.Service
	Principals  *authorization.PrincipalResolver
	HTTPMetrics *obsmetrics.Metrics      `optional:"true"`
	Limiter     *ratelimit.ActionLimiter `optional:"true"`
}

type Server struct {
	engine      *gin.Engine
	cfg         config.Config
	log         *zap.Logger
	members     domain.Service
	principals  *authorization.PrincipalResolver
	httpMetrics *obsmetrics.Metrics
	limiter     *ratelimit.ActionLimiter
	secret      []byte
	actions     map[string]actionHandler
}

func NewServer(p ServerParams) *Server {
	s := &Server{
		engine:      p.Engine,
		cfg:         p.Cfg,
		log:         p.Log.Named("http.server"),
		members:     p.Members,
		principals:  p.Principals,
		httpMetrics: p.HTTPMetrics,
		limiter:     p.Limiter,
		secret:      []byte(p.Cfg.AuthJWTSecret),
	}
	s.actions = s.actionTable()
	if len(s.secret) == 0 {
		s.log.Warn("AUTH_JWT_SECRET is empty, every action request will be rejected")
	}
	return s
}

// RegisterRoutes mounts the action API on the engine.
func (s *Server) RegisterRoutes() {
	api := s.engine.Group("/api")
	api.POST("/action/:action", s.AuthRequired(), s.RateLimited(), s.HandleAction)
}

func registerRoutes(s *Server) {
	s.RegisterRoutes()
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}
