package handler

import (
	"net/http"

	"leavemgmt/internal/middleware"
	"leavemgmt/internal/service"
	"leavemgmt/pkg/response"

	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	authService service.AuthService
	cookies     middleware.CookieConfig
}

// NewAuthHandler sets up the routing dependencies for registration and session endpoints
func NewAuthHandler(authService service.AuthService, cookies middleware.CookieConfig) *AuthHandler {
	return &AuthHandler{authService: authService, cookies: cookies}
}

// RegisterRoutes binds the endpoints to the gin Engine or RouterGroup
func (h *AuthHandler) RegisterRoutes(router *gin.RouterGroup, authenticate gin.HandlerFunc) {
	router.GET("/api/bootstrap", h.Bootstrap)

	auth := router.Group("/api/auth")
	{
		auth.POST("/register-admin", h.RegisterAdmin)
		auth.POST("/register-employee", h.RegisterEmployee)
		auth.POST("/login", h.Login)
		auth.POST("/logout", authenticate, h.Logout)
		auth.GET("/me", authenticate, h.Me)
	}
}

func sessionMeta(c *gin.Context) service.SessionMeta {
	return service.SessionMeta{IP: c.ClientIP(), UserAgent: c.Request.UserAgent()}
}

func (h *AuthHandler) startSession(c *gin.Context, status int, result *service.AuthResult) {
	middleware.SetSessionCookie(c, h.cookies, result.SessionID)
	c.JSON(status, response.Success(status, result.User))
}

// Bootstrap reports whether the one-time admin setup has been completed
// @Summary      Bootstrap probe
// @Description  Tells the frontend whether an admin exists yet
// @Tags         auth
// @Produce      json
// @Success      200  {object}  response.Response{data=service.BootstrapResponse}
// @Router       /api/bootstrap [get]
func (h *AuthHandler) Bootstrap(c *gin.Context) {
	res, err := h.authService.Bootstrap(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, res))
}

// RegisterAdmin consumes the setup code and creates the only admin
// @Summary      Register the admin
// @Description  One-time admin registration guarded by the server setup code. Sets the session cookie.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.RegisterAdminRequest  true  "Admin registration"
// @Success      201      {object}  response.Response{data=service.MeResponse}
// @Failure      400      {object}  response.Response
// @Failure      403      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/auth/register-admin [post]
func (h *AuthHandler) RegisterAdmin(c *gin.Context) {
	var req service.RegisterAdminRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	result, err := h.authService.RegisterAdmin(c.Request.Context(), req, sessionMeta(c))
	if err != nil {
		writeError(c, err)
		return
	}
	h.startSession(c, http.StatusCreated, result)
}

// RegisterEmployee creates an employee account and logs it in
// @Summary      Register an employee
// @Description  Creates an employee with a unique employee code. Sets the session cookie.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.RegisterEmployeeRequest  true  "Employee registration"
// @Success      201      {object}  response.Response{data=service.MeResponse}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/auth/register-employee [post]
func (h *AuthHandler) RegisterEmployee(c *gin.Context) {
	var req service.RegisterEmployeeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	result, err := h.authService.RegisterEmployee(c.Request.Context(), req, sessionMeta(c))
	if err != nil {
		writeError(c, err)
		return
	}
	h.startSession(c, http.StatusCreated, result)
}

// Login authenticates by name and date of birth
// @Summary      Log in
// @Description  Matches a user by name and date of birth and opens a session
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.LoginRequest  true  "Login credentials"
// @Success      200      {object}  response.Response{data=service.MeResponse}
// @Failure      401      {object}  response.Response
// @Router       /api/auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req service.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	result, err := h.authService.Login(c.Request.Context(), req, sessionMeta(c))
	if err != nil {
		writeError(c, err)
		return
	}
	h.startSession(c, http.StatusOK, result)
}

// Logout destroys the current session
// @Summary      Log out
// @Tags         auth
// @Security     SessionCookie
// @Produce      json
// @Success      200  {object}  response.Response
// @Failure      401  {object}  response.Response
// @Router       /api/auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.authService.DestroySession(c.Request.Context(), middleware.CurrentSessionID(c)); err != nil {
		writeError(c, err)
		return
	}
	middleware.ClearSessionCookie(c, h.cookies)
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "Logged out successfully"}))
}

// Me returns the authenticated principal
// @Summary      Current user
// @Tags         auth
// @Security     SessionCookie
// @Produce      json
// @Success      200  {object}  response.Response{data=service.MeResponse}
// @Failure      401  {object}  response.Response
// @Router       /api/auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		writeError(c, service.ErrUnauthenticated)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, service.MeResponse{
		ID:   user.ID.String(),
		Role: user.Role,
		Name: user.Name,
	}))
}
