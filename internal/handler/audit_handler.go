package handler

import (
	"net/http"

	"leavemgmt/internal/middleware"
	"leavemgmt/internal/model"
	"leavemgmt/internal/service"
	"leavemgmt/pkg/pagination"
	"leavemgmt/pkg/response"

	"github.com/gin-gonic/gin"
)

type AuditHandler struct {
	auditService service.AuditService
}

func NewAuditHandler(auditService service.AuditService) *AuditHandler {
	return &AuditHandler{auditService: auditService}
}

func (h *AuditHandler) RegisterRoutes(router *gin.RouterGroup, authenticate gin.HandlerFunc) {
	group := router.Group("/api/admin/audit-logs")
	group.Use(authenticate, middleware.RequireRole(model.RoleAdmin))
	{
		group.GET("", h.GetAuditLogs)
	}
}

// GetAuditLogs returns one page of the audit trail, newest first
// @Summary      Get audit logs
// @Description  Registrations, leave applications, decisions and email configuration changes
// @Tags         audit
// @Security     SessionCookie
// @Produce      json
// @Param        page   query     int  false  "Page number (default 1)"
// @Param        limit  query     int  false  "Number of items per page (default 20)"
// @Success      200    {object}  response.Response{data=[]service.AuditLogResponse}
// @Router       /api/admin/audit-logs [get]
func (h *AuditHandler) GetAuditLogs(c *gin.Context) {
	params := pagination.Parse(c)
	user, _ := middleware.CurrentUser(c)

	logs, total, err := h.auditService.GetAuditLogs(c.Request.Context(), user, params.Offset, params.Limit)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Paginated(http.StatusOK, logs, params.Meta(total)))
}
