package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/civic-issue-api/internal/dto"
	"github.com/noah-isme/civic-issue-api/internal/models"
	"github.com/noah-isme/civic-issue-api/pkg/response"
)

type directoryService interface {
	AddDepartment(ctx context.Context, name string) (*models.Department, error)
	ListDepartments(ctx context.Context) ([]models.Department, error)
	CreateStaffMember(ctx context.Context, req dto.CreateStaffRequest) (*models.User, error)
	ListStaff(ctx context.Context, department string) ([]models.User, error)
}

// DirectoryHandler manages departments and staff accounts.
type DirectoryHandler struct {
	service directoryService
}

// NewDirectoryHandler constructs a DirectoryHandler.
func NewDirectoryHandler(svc directoryService) *DirectoryHandler {
	return &DirectoryHandler{service: svc}
}

// ListDepartments godoc
// @Summary List departments
// @Tags Directory
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /departments [get]
func (h *DirectoryHandler) ListDepartments(c *gin.Context) {
	departments, err := h.service.ListDepartments(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, departments, nil)
}

// CreateDepartment godoc
// @Summary Add a department
// @Tags Directory
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.CreateDepartmentRequest true "Department payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /departments [post]
func (h *DirectoryHandler) CreateDepartment(c *gin.Context) {
	var req dto.CreateDepartmentRequest
	if !bindJSON(c, &req, "invalid department payload") {
		return
	}
	department, err := h.service.AddDepartment(c.Request.Context(), req.Name)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, department)
}

// ListStaff godoc
// @Summary List staff members
// @Tags Directory
// @Produce json
// @Security BearerAuth
// @Param department query string false "Department name"
// @Success 200 {object} response.Envelope
// @Router /staff [get]
func (h *DirectoryHandler) ListStaff(c *gin.Context) {
	staff, err := h.service.ListStaff(c.Request.Context(), strings.TrimSpace(c.Query("department")))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, staff, nil)
}

// CreateStaff godoc
// @Summary Create a staff account
// @Tags Directory
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.CreateStaffRequest true "Staff payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /staff [post]
func (h *DirectoryHandler) CreateStaff(c *gin.Context) {
	var req dto.CreateStaffRequest
	if !bindJSON(c, &req, "invalid staff payload") {
		return
	}
	user, err := h.service.CreateStaffMember(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, user)
}
