package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/OldStager01/generalscaler/api/handlers"
	"github.com/OldStager01/generalscaler/api/middleware"
	"github.com/OldStager01/generalscaler/api/websocket"
	"github.com/OldStager01/generalscaler/internal/auth"
	"github.com/OldStager01/generalscaler/pkg/config"
	"github.com/OldStager01/generalscaler/pkg/models"
)

const maxSpecBytes = 1 << 20

type Deps struct {
	Scalers handlers.ScalerManager
	// History is nil when the database is disabled.
	History handlers.DecisionHistory
	Checks  map[string]handlers.CheckFunc
	// Metrics is mounted at the configured path when set.
	Metrics http.Handler
	// Events feeds the websocket stream when set.
	Events <-chan *models.Event
}

type Server struct {
	router      *gin.Engine
	httpServer  *http.Server
	config      config.APIConfig
	metricsPath string
	authService *auth.Service
	wsHub       *websocket.Hub
	wsBridge    *websocket.EventBridge
	deps        Deps
}

func NewServer(cfg *config.Config, authService *auth.Service, deps Deps) *Server {
	if cfg.App.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		router:      gin.New(),
		config:      cfg.API,
		metricsPath: cfg.Metrics.Path,
		authService: authService,
		wsHub:       websocket.NewHub(&cfg.WebSocket),
		deps:        deps,
	}
	if s.metricsPath == "" {
		s.metricsPath = "/metrics"
	}

	s.setupMiddleware()
	s.setupRoutes()

	go s.wsHub.Run()
	if deps.Events != nil {
		s.wsBridge = websocket.NewEventBridge(s.wsHub, deps.Events)
		s.wsBridge.Start()
	}

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(middleware.SecurityHeaders())
	s.router.Use(middleware.CORS(middleware.CORSFromConfig(s.config.CORS)))
	s.router.Use(middleware.TraceID())
	s.router.Use(middleware.RequestLogger())
	s.router.Use(middleware.RateLimit(middleware.NewRateLimiter(s.config.RateLimit, time.Minute)))
}

func (s *Server) setupRoutes() {
	healthHandler := handlers.NewHealthHandler(s.deps.Checks)
	scalerHandler := handlers.NewScalerHandler(s.deps.Scalers, s.deps.History, s.config.DefaultLimit, s.config.MaxLimit)

	s.router.GET("/health", healthHandler.Health)
	s.router.GET("/health/ready", healthHandler.Ready)
	s.router.GET("/health/live", healthHandler.Live)

	if s.deps.Metrics != nil {
		s.router.GET(s.metricsPath, gin.WrapH(s.deps.Metrics))
	}

	s.router.GET("/ws", websocket.ServeWebSocket(s.wsHub))

	s.router.GET("/scalers", scalerHandler.List)
	s.router.GET("/scalers/:namespace/:name", scalerHandler.Get)
	s.router.GET("/scalers/:namespace/:name/history", scalerHandler.History)

	// A manual reconcile bypasses the interval, so it gets its own budget.
	endpointLimits := middleware.NewEndpointRateLimiter()
	endpointLimits.AddEndpoint("/scalers/:namespace/:name/reconcile", 10, time.Minute)

	protected := s.router.Group("/scalers")
	protected.Use(middleware.JWTAuth(s.authService), endpointLimits.Middleware())
	{
		protected.PUT("/:namespace/:name", middleware.RequestSizeLimit(maxSpecBytes), scalerHandler.Put)
		protected.DELETE("/:namespace/:name", scalerHandler.Delete)
		protected.POST("/:namespace/:name/reconcile", scalerHandler.Reconcile)
		protected.POST("/:namespace/:name/reset-cooldown", scalerHandler.ResetCooldown)
	}
}

func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.wsBridge != nil {
		s.wsBridge.Stop()
	}
	s.wsHub.Stop()

	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) WebSocketHub() *websocket.Hub {
	return s.wsHub
}
