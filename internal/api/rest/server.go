package rest

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/KevinKickass/EquipTrack/internal/api/websocket"
	"github.com/KevinKickass/EquipTrack/internal/auth"
	"github.com/KevinKickass/EquipTrack/internal/config"
	"github.com/KevinKickass/EquipTrack/internal/interfaces"
	"github.com/KevinKickass/EquipTrack/internal/types"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Server struct {
	router *gin.Engine
	lm     interfaces.LifecycleManager
	logger *zap.Logger
	server *http.Server
}

func NewServer(cfg *config.Config, lm interfaces.LifecycleManager, logger *zap.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		router: gin.New(),
		lm:     lm,
		logger: logger,
	}

	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler exposes the router, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until Shutdown is called. It blocks.
func (s *Server) Start() error {
	s.logger.Info("Starting REST API server", zap.String("address", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("REST server failed: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down REST API server")
	return s.server.Shutdown(ctx)
}

func (s *Server) setupRoutes() {
	s.router.Use(gin.Recovery())
	s.router.Use(LoggerMiddleware(s.logger))
	s.router.Use(CORSMiddleware())

	authService := s.lm.Auth()

	// Public routes (no auth required)
	s.router.GET("/health", s.healthCheck)

	v1 := s.router.Group("/api/v1")
	{
		// ==================== AUTH ====================
		v1.POST("/auth/login", s.login)
		v1.GET("/auth/me", authService.AuthMiddleware(), s.getCurrentUser)

		// ==================== DASHBOARD ====================
		dashboard := v1.Group("/dashboard")
		dashboard.Use(authService.AuthMiddleware())
		{
			dashboard.GET("/summary", s.getDashboardSummary)
			dashboard.GET("/status", s.getSystemStatus)
		}

		// ==================== EQUIPMENT ====================
		equipment := v1.Group("/equipment")
		equipment.Use(authService.AuthMiddleware())
		{
			equipment.GET("", s.listEquipment)
			equipment.GET("/:id", s.getEquipment)
			equipment.POST("/:id/actions", s.executeAction)

			// Master data: IT only
			equipment.POST("", auth.RequireRole(), s.createEquipment)
			equipment.PATCH("/:id", auth.RequireRole(), s.updateEquipment)
			equipment.POST("/:id/toggle", auth.RequireRole(), s.toggleEquipment)
			equipment.DELETE("/:id", auth.RequireRole(), s.deleteEquipment)
		}

		// ==================== SENSORS ====================
		sensors := v1.Group("/sensors")
		sensors.Use(authService.AuthMiddleware())
		{
			sensors.GET("", s.listSensors)
			sensors.GET("/:id", s.getSensor)
			sensors.POST("/:id/test", auth.RequireRole(types.RoleMaintenance), s.testSensor)

			sensors.POST("", auth.RequireRole(), s.createSensor)
			sensors.PATCH("/:id", auth.RequireRole(), s.updateSensor)
			sensors.DELETE("/:id", auth.RequireRole(), s.deleteSensor)
		}

		// ==================== QUALITY ====================
		quality := v1.Group("/quality")
		quality.Use(authService.AuthMiddleware())
		quality.Use(auth.RequireRole(types.RoleQuality))
		{
			quality.GET("/pending", s.listPendingRecords)
			quality.POST("/records/:id/disposition", s.disposeRecord)
		}

		// ==================== HISTORY ====================
		v1.GET("/history", authService.AuthMiddleware(), s.listHistory)

		// ==================== REPORTS ====================
		reports := v1.Group("/reports")
		reports.Use(authService.AuthMiddleware())
		reports.Use(auth.RequirePermission(types.CapReports))
		{
			reports.GET("", s.listReports)
			reports.GET("/fields", s.listReportFields)
			reports.GET("/:id", s.getReport)
			reports.GET("/:id/export", s.exportReport)

			reports.POST("", auth.RequireRole(), s.createReport)
			reports.PUT("/:id", auth.RequireRole(), s.updateReport)
			reports.DELETE("/:id", auth.RequireRole(), s.deleteReport)
		}

		layouts := v1.Group("/layouts")
		layouts.Use(authService.AuthMiddleware())
		layouts.Use(auth.RequireRole())
		{
			layouts.GET("", s.listLayouts)
			layouts.GET("/:id", s.getLayout)
			layouts.POST("", s.createLayout)
			layouts.PUT("/:id", s.updateLayout)
			layouts.DELETE("/:id", s.deleteLayout)
		}

		// ==================== USER MANAGEMENT (IT ONLY) ====================
		users := v1.Group("/users")
		users.Use(authService.AuthMiddleware())
		users.Use(auth.RequireRole())
		{
			users.POST("", s.createUser)
			users.GET("", s.listUsers)
			users.GET("/:username", s.getUser)
			users.PATCH("/:username", s.updateUser)
			users.POST("/:username/toggle", s.toggleUser)
			users.DELETE("/:username", s.deleteUser)
		}

		groups := v1.Group("/groups")
		groups.Use(authService.AuthMiddleware())
		groups.Use(auth.RequireRole())
		{
			groups.POST("", s.createGroup)
			groups.GET("", s.listGroups)
			groups.GET("/:name", s.getGroup)
			groups.PUT("/:name", s.updateGroup)
			groups.DELETE("/:name", s.deleteGroup)
		}

		// ==================== WEBSOCKET (auth via first message) ====================
		ws := v1.Group("/ws")
		{
			ws.GET("/live", s.wsLiveConnection)
			ws.GET("/status", authService.AuthMiddleware(), s.wsStatus)
		}
	}
}

func (s *Server) wsLiveConnection(c *gin.Context) {
	websocket.ServeWs(s.lm.Hub(), c.Writer, c.Request)
}

func (s *Server) wsStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"connected_clients": s.lm.Hub().GetClientCount(),
	})
}

// Health check (public)
func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().Unix(),
	})
}
