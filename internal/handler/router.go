package handler

import (
	"log/slog"
	"net/http"

	"leavemgmt/internal/middleware"
	"leavemgmt/internal/model"
	"leavemgmt/internal/service"
	"leavemgmt/internal/websocket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// RouterDeps is everything NewRouter wires into the gin engine.
type RouterDeps struct {
	Auth           service.AuthService
	Leaves         service.LeaveService
	Email          service.EmailService
	Audit          service.AuditService
	Hub            *websocket.Hub
	Cookies        middleware.CookieConfig
	AllowedOrigins []string
	Logger         *slog.Logger
}

// NewRouter builds the HTTP surface: API routes, health, swagger and the admin live feed.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	if deps.Logger != nil {
		router.Use(middleware.RequestLogger(deps.Logger))
	}

	// The frontend is served from another origin and sends the session cookie.
	if len(deps.AllowedOrigins) > 0 {
		corsConfig := cors.DefaultConfig()
		corsConfig.AllowOrigins = deps.AllowedOrigins
		corsConfig.AllowCredentials = true
		corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept", middleware.RequestIDHeader}
		corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "OPTIONS"}
		corsConfig.ExposeHeaders = []string{middleware.RequestIDHeader}
		router.Use(cors.New(corsConfig))
	}

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK"})
	})

	authenticate := middleware.Authenticate(deps.Auth, deps.Cookies)

	if deps.Hub != nil {
		router.GET("/ws", authenticate, middleware.RequireRole(model.RoleAdmin), func(c *gin.Context) {
			websocket.ServeWs(deps.Hub, c)
		})
	}

	api := router.Group("")
	NewAuthHandler(deps.Auth, deps.Cookies).RegisterRoutes(api, authenticate)
	NewLeaveHandler(deps.Leaves).RegisterRoutes(api, authenticate)
	NewEmailHandler(deps.Email).RegisterRoutes(api, authenticate)
	NewAuditHandler(deps.Audit).RegisterRoutes(api, authenticate)

	return router
}
