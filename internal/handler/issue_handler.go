package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/civic-issue-api/internal/dto"
	"github.com/noah-isme/civic-issue-api/internal/models"
	"github.com/noah-isme/civic-issue-api/internal/service"
	appErrors "github.com/noah-isme/civic-issue-api/pkg/errors"
	"github.com/noah-isme/civic-issue-api/pkg/response"
)

type issueService interface {
	Create(ctx context.Context, req dto.CreateIssueRequest, reporter service.Actor) (*models.Issue, error)
	Get(ctx context.Context, id string) (*models.Issue, error)
	List(ctx context.Context, filter models.IssueFilter) ([]models.Issue, *models.Pagination, error)
	UpdateStatus(ctx context.Context, id string, req dto.UpdateStatusRequest, actor service.Actor) (*models.Issue, error)
	Reassign(ctx context.Context, id string, staffID *string, actor service.Actor) (*models.Issue, error)
	ToggleUpvote(ctx context.Context, id string, actor service.Actor) (*models.Issue, bool, error)
	AttachFeedback(ctx context.Context, id string, req dto.FeedbackRequest, actor service.Actor) (*models.Issue, error)
	AddComment(ctx context.Context, id string, req dto.CommentRequest, actor service.Actor) (*models.Comment, error)
	ListComments(ctx context.Context, id string) ([]models.Comment, error)
}

// IssueHandler exposes the issue lifecycle over HTTP.
type IssueHandler struct {
	service issueService
}

// NewIssueHandler constructs an IssueHandler.
func NewIssueHandler(svc issueService) *IssueHandler {
	return &IssueHandler{service: svc}
}

// List godoc
// @Summary List issues
// @Tags Issues
// @Produce json
// @Param status query string false "pending|inspection_scheduled|in_progress|resolved|rejected"
// @Param category query string false "Issue category"
// @Param priority query string false "normal|high|critical"
// @Param department query string false "Department name"
// @Param assigned_to query string false "Assignee user ID, or 'me'"
// @Param reported_by query string false "Reporter user ID, or 'me'"
// @Param overdue query bool false "Only overdue issues"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /issues [get]
func (h *IssueHandler) List(c *gin.Context) {
	filter, err := h.parseFilter(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	issues, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, issues, pagination)
}

// Get godoc
// @Summary Get issue
// @Tags Issues
// @Produce json
// @Param id path string true "Issue ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /issues/{id} [get]
func (h *IssueHandler) Get(c *gin.Context) {
	issue, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, issue, nil)
}

// Create godoc
// @Summary Report an issue
// @Description Files an issue, routes it to a department and assigns the least loaded staff member.
// @Tags Issues
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.CreateIssueRequest true "Issue payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /issues [post]
func (h *IssueHandler) Create(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.CreateIssueRequest
	if !bindJSON(c, &req, "invalid issue payload") {
		return
	}

	issue, err := h.service.Create(c.Request.Context(), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, issue)
}

// UpdateStatus godoc
// @Summary Update issue status
// @Tags Issues
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Issue ID"
// @Param payload body dto.UpdateStatusRequest true "Status payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /issues/{id}/status [patch]
func (h *IssueHandler) UpdateStatus(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.UpdateStatusRequest
	if !bindJSON(c, &req, "invalid status payload") {
		return
	}

	issue, err := h.service.UpdateStatus(c.Request.Context(), c.Param("id"), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, issue, nil)
}

// Assign godoc
// @Summary Reassign issue
// @Description Assigns the issue to staff_id, or reruns workload balancing when staff_id is omitted.
// @Tags Issues
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Issue ID"
// @Param payload body dto.AssignIssueRequest false "Assignment payload"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /issues/{id}/assign [post]
func (h *IssueHandler) Assign(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.AssignIssueRequest
	if c.Request.ContentLength != 0 && !bindJSON(c, &req, "invalid assignment payload") {
		return
	}

	issue, err := h.service.Reassign(c.Request.Context(), c.Param("id"), req.StaffID, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, issue, nil)
}

// Upvote godoc
// @Summary Toggle upvote
// @Description Adds the caller's support, or withdraws it when already given.
// @Tags Issues
// @Produce json
// @Security BearerAuth
// @Param id path string true "Issue ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /issues/{id}/upvote [post]
func (h *IssueHandler) Upvote(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	issue, upvoted, err := h.service.ToggleUpvote(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.UpvoteResponse{
		IssueID:     issue.ID,
		Upvoted:     upvoted,
		UpvoteCount: issue.UpvoteCount,
		Priority:    issue.Priority,
	}, nil)
}

// Feedback godoc
// @Summary Rate a resolved issue
// @Tags Issues
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Issue ID"
// @Param payload body dto.FeedbackRequest true "Feedback payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /issues/{id}/feedback [post]
func (h *IssueHandler) Feedback(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.FeedbackRequest
	if !bindJSON(c, &req, "invalid feedback payload") {
		return
	}

	issue, err := h.service.AttachFeedback(c.Request.Context(), c.Param("id"), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, issue, nil)
}

// ListComments godoc
// @Summary List issue comments
// @Tags Issues
// @Produce json
// @Param id path string true "Issue ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /issues/{id}/comments [get]
func (h *IssueHandler) ListComments(c *gin.Context) {
	comments, err := h.service.ListComments(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, comments, nil)
}

// AddComment godoc
// @Summary Comment on an issue
// @Tags Issues
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Issue ID"
// @Param payload body dto.CommentRequest true "Comment payload"
// @Success 201 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /issues/{id}/comments [post]
func (h *IssueHandler) AddComment(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.CommentRequest
	if !bindJSON(c, &req, "invalid comment payload") {
		return
	}

	comment, err := h.service.AddComment(c.Request.Context(), c.Param("id"), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, comment)
}

func (h *IssueHandler) parseFilter(c *gin.Context) (models.IssueFilter, error) {
	filter := models.IssueFilter{
		Department: strings.TrimSpace(c.Query("department")),
		AssignedTo: strings.TrimSpace(c.Query("assigned_to")),
		ReportedBy: strings.TrimSpace(c.Query("reported_by")),
		Page:       parseQueryInt(c, "page", 1),
		PageSize:   parseQueryInt(c, "page_size", 20),
	}

	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		status := models.IssueStatus(raw)
		if !status.Valid() {
			return filter, appErrors.Clone(appErrors.ErrValidation, "unknown status "+raw)
		}
		filter.Status = &status
	}
	if raw := strings.TrimSpace(c.Query("category")); raw != "" {
		category := models.IssueCategory(raw)
		if !category.Valid() {
			return filter, appErrors.Clone(appErrors.ErrValidation, "unknown category "+raw)
		}
		filter.Category = &category
	}
	if raw := strings.TrimSpace(c.Query("priority")); raw != "" {
		priority := models.IssuePriority(raw)
		switch priority {
		case models.PriorityNormal, models.PriorityHigh, models.PriorityCritical:
			filter.Priority = &priority
		default:
			return filter, appErrors.Clone(appErrors.ErrValidation, "unknown priority "+raw)
		}
	}
	overdue, err := parseQueryBool(c, "overdue")
	if err != nil {
		return filter, err
	}
	filter.Overdue = overdue

	if filter.AssignedTo == "me" || filter.ReportedBy == "me" {
		claims := claimsFromContext(c)
		if claims == nil {
			return filter, appErrors.Clone(appErrors.ErrUnauthorized, "sign in to filter by your own issues")
		}
		if filter.AssignedTo == "me" {
			filter.AssignedTo = claims.UserID
		}
		if filter.ReportedBy == "me" {
			filter.ReportedBy = claims.UserID
		}
	}
	return filter, nil
}
