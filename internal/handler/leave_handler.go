package handler

import (
	"net/http"

	"leavemgmt/internal/middleware"
	"leavemgmt/internal/model"
	"leavemgmt/internal/service"
	"leavemgmt/pkg/response"

	"github.com/gin-gonic/gin"
)

type LeaveHandler struct {
	leaveService service.LeaveService
}

func NewLeaveHandler(leaveService service.LeaveService) *LeaveHandler {
	return &LeaveHandler{leaveService: leaveService}
}

func (h *LeaveHandler) RegisterRoutes(router *gin.RouterGroup, authenticate gin.HandlerFunc) {
	leaves := router.Group("/api/leaves")
	leaves.Use(authenticate, middleware.RequireRole(model.RoleEmployee))
	{
		leaves.POST("", h.Apply)
		leaves.GET("/my", h.ListMine)
		leaves.GET("/my/pending", h.ListMyPending)
	}

	admin := router.Group("/api/admin")
	admin.Use(authenticate, middleware.RequireRole(model.RoleAdmin))
	{
		admin.GET("/employees", h.ListEmployees)
		admin.GET("/employees/:id/leaves", h.ListForEmployee)
		admin.GET("/leaves/pending", h.ListPending)
		admin.POST("/leaves/:id/decision", h.Decide)
	}
}

// Apply submits a leave request for the current employee
// @Summary      Apply for leave
// @Description  Creates a pending leave request; total days exclude the given in-range dates
// @Tags         leaves
// @Security     SessionCookie
// @Accept       json
// @Produce      json
// @Param        payload  body      service.ApplyLeaveRequest  true  "Leave request"
// @Success      201      {object}  response.Response{data=service.LeaveResponse}
// @Failure      400      {object}  response.Response
// @Failure      403      {object}  response.Response
// @Router       /api/leaves [post]
func (h *LeaveHandler) Apply(c *gin.Context) {
	var req service.ApplyLeaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	user, _ := middleware.CurrentUser(c)
	leave, err := h.leaveService.Apply(c.Request.Context(), user, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, leave))
}

// ListMine returns the current employee's requests
// @Summary      My leave requests
// @Tags         leaves
// @Security     SessionCookie
// @Produce      json
// @Param        month  query     string  false  "Calendar month YYYY-MM"
// @Success      200    {object}  response.Response{data=[]service.LeaveResponse}
// @Router       /api/leaves/my [get]
func (h *LeaveHandler) ListMine(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)
	leaves, err := h.leaveService.ListMine(c.Request.Context(), user, c.Query("month"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, leaves))
}

// ListMyPending returns the current employee's undecided requests
// @Summary      My pending leave requests
// @Tags         leaves
// @Security     SessionCookie
// @Produce      json
// @Success      200  {object}  response.Response{data=[]service.LeaveResponse}
// @Router       /api/leaves/my/pending [get]
func (h *LeaveHandler) ListMyPending(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)
	leaves, err := h.leaveService.ListMyPending(c.Request.Context(), user)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, leaves))
}

// ListEmployees returns every employee ordered by name
// @Summary      List employees
// @Tags         admin
// @Security     SessionCookie
// @Produce      json
// @Success      200  {object}  response.Response{data=[]service.EmployeeResponse}
// @Router       /api/admin/employees [get]
func (h *LeaveHandler) ListEmployees(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)
	employees, err := h.leaveService.ListEmployees(c.Request.Context(), user)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, employees))
}

// ListForEmployee returns one employee's leave history
// @Summary      Employee leave history
// @Tags         admin
// @Security     SessionCookie
// @Produce      json
// @Param        id     path      string  true   "Employee ID"
// @Param        month  query     string  false  "Calendar month YYYY-MM"
// @Success      200    {object}  response.Response{data=[]service.LeaveResponse}
// @Failure      404    {object}  response.Response
// @Router       /api/admin/employees/{id}/leaves [get]
func (h *LeaveHandler) ListForEmployee(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)
	leaves, err := h.leaveService.ListForEmployee(c.Request.Context(), user, c.Param("id"), c.Query("month"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, leaves))
}

// ListPending returns the pending queue
// @Summary      Pending leave requests
// @Tags         admin
// @Security     SessionCookie
// @Produce      json
// @Param        employeeId  query     string  false  "Filter by employee ID"
// @Param        month       query     string  false  "Calendar month YYYY-MM"
// @Success      200         {object}  response.Response{data=[]service.LeaveResponse}
// @Router       /api/admin/leaves/pending [get]
func (h *LeaveHandler) ListPending(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)
	leaves, err := h.leaveService.ListPending(c.Request.Context(), user, c.Query("employeeId"), c.Query("month"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, leaves))
}

// Decide approves or rejects a pending request
// @Summary      Decide a leave request
// @Description  Moves a pending request to approved or rejected; decided requests cannot change again
// @Tags         admin
// @Security     SessionCookie
// @Accept       json
// @Produce      json
// @Param        id       path      string                   true  "Leave request ID"
// @Param        payload  body      service.DecisionRequest  true  "Decision"
// @Success      200      {object}  response.Response{data=service.LeaveResponse}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/admin/leaves/{id}/decision [post]
func (h *LeaveHandler) Decide(c *gin.Context) {
	var req service.DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	user, _ := middleware.CurrentUser(c)
	leave, err := h.leaveService.Decide(c.Request.Context(), user, c.Param("id"), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, leave))
}
