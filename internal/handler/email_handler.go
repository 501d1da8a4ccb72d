package handler

import (
	"net/http"

	"leavemgmt/internal/middleware"
	"leavemgmt/internal/model"
	"leavemgmt/internal/service"
	"leavemgmt/pkg/response"

	"github.com/gin-gonic/gin"
)

type EmailHandler struct {
	emailService service.EmailService
}

func NewEmailHandler(emailService service.EmailService) *EmailHandler {
	return &EmailHandler{emailService: emailService}
}

func (h *EmailHandler) RegisterRoutes(router *gin.RouterGroup, authenticate gin.HandlerFunc) {
	group := router.Group("/api/admin/email-config")
	group.Use(authenticate, middleware.RequireRole(model.RoleAdmin))
	{
		group.GET("", h.GetConfig)
		group.PUT("", h.UpdateConfig)
		group.POST("/test", h.SendTest)
	}
}

// GetConfig returns the outbound mail configuration without secrets
// @Summary      Get email configuration
// @Tags         email
// @Security     SessionCookie
// @Produce      json
// @Success      200  {object}  response.Response{data=service.EmailConfigResponse}
// @Router       /api/admin/email-config [get]
func (h *EmailHandler) GetConfig(c *gin.Context) {
	cfg, err := h.emailService.GetConfig(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, cfg))
}

// UpdateConfig replaces the outbound mail configuration
// @Summary      Update email configuration
// @Description  Secrets are encrypted at rest and only replaced when a non-empty value is sent
// @Tags         email
// @Security     SessionCookie
// @Accept       json
// @Produce      json
// @Param        payload  body      service.EmailConfigRequest  true  "Email configuration"
// @Success      200      {object}  response.Response{data=service.EmailConfigResponse}
// @Failure      400      {object}  response.Response
// @Router       /api/admin/email-config [put]
func (h *EmailHandler) UpdateConfig(c *gin.Context) {
	var req service.EmailConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	user, _ := middleware.CurrentUser(c)
	cfg, err := h.emailService.UpdateConfig(c.Request.Context(), user, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, cfg))
}

// SendTest sends a test message with the stored configuration
// @Summary      Send a test email
// @Tags         email
// @Security     SessionCookie
// @Produce      json
// @Success      200  {object}  response.Response{data=service.TestEmailResponse}
// @Router       /api/admin/email-config/test [post]
func (h *EmailHandler) SendTest(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)
	res, err := h.emailService.SendTest(c.Request.Context(), user)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, res))
}
