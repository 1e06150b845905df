package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/noah-isme/civic-issue-api/internal/dto"
	"github.com/noah-isme/civic-issue-api/internal/models"
	appErrors "github.com/noah-isme/civic-issue-api/pkg/errors"
)

// Actor is the authenticated user performing an operation.
type Actor struct {
	ID   string
	Name string
	Role models.UserRole
}

// ActorFromClaims builds an Actor from access token claims.
func ActorFromClaims(claims *models.JWTClaims) Actor {
	if claims == nil {
		return Actor{}
	}
	return Actor{ID: claims.UserID, Name: claims.Name, Role: claims.Role}
}

type issueStore interface {
	Create(ctx context.Context, issue *models.Issue) error
	FindByID(ctx context.Context, id string) (*models.Issue, error)
	List(ctx context.Context, filter models.IssueFilter) ([]models.Issue, int, error)
	Mutate(ctx context.Context, id string, fn func(*models.Issue) error) (*models.Issue, error)
}

type commentStore interface {
	Create(ctx context.Context, comment *models.Comment) error
	ListByIssue(ctx context.Context, issueID string) ([]models.Comment, error)
}

type analyticsInvalidator interface {
	Invalidate(ctx context.Context)
}

// IssueService runs the issue lifecycle: submission, status changes, reassignment, upvotes, feedback and comments.
type IssueService struct {
	issues     issueStore
	comments   commentStore
	engine     *AssignmentEngine
	priority   *PriorityClassifier
	dispatcher notificationSink
	analytics  analyticsInvalidator
	metrics    *MetricsService
	validator  *validator.Validate
	now        Clock
	logger     *zap.Logger
}

// IssueServiceParams groups IssueService collaborators.
type IssueServiceParams struct {
	Issues     issueStore
	Comments   commentStore
	Engine     *AssignmentEngine
	Priority   *PriorityClassifier
	Dispatcher notificationSink
	Analytics  analyticsInvalidator
	Metrics    *MetricsService
	Validator  *validator.Validate
	Clock      Clock
	Logger     *zap.Logger
}

// NewIssueService constructs an IssueService.
func NewIssueService(params IssueServiceParams) *IssueService {
	if params.Validator == nil {
		params.Validator = validator.New()
	}
	if params.Logger == nil {
		params.Logger = zap.NewNop()
	}
	if params.Clock == nil {
		params.Clock = systemClock
	}
	if params.Priority == nil {
		params.Priority = NewPriorityClassifier(DefaultHighThreshold, DefaultCriticalThreshold)
	}
	return &IssueService{
		issues:     params.Issues,
		comments:   params.Comments,
		engine:     params.Engine,
		priority:   params.Priority,
		dispatcher: params.Dispatcher,
		analytics:  params.Analytics,
		metrics:    params.Metrics,
		validator:  params.Validator,
		now:        params.Clock,
		logger:     params.Logger,
	}
}

// Create files a new issue for reporter. The reporter counts as its first supporter and the
// assignment engine runs exactly once before the issue is stored.
func (s *IssueService) Create(ctx context.Context, req dto.CreateIssueRequest, reporter Actor) (*models.Issue, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid issue payload")
	}
	if reporter.ID == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "reporter is required")
	}

	now := s.now()
	issue := models.Issue{
		ID:           uuid.NewString(),
		Title:        strings.TrimSpace(req.Title),
		Description:  strings.TrimSpace(req.Description),
		Category:     req.Category,
		Location:     strings.TrimSpace(req.Location),
		Latitude:     req.Latitude,
		Longitude:    req.Longitude,
		ImageURL:     trimmedOptional(req.ImageURL),
		ReportedBy:   reporter.ID,
		ReporterName: reporter.Name,
		Status:       models.StatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
		Upvotes:      pq.StringArray{reporter.ID},
		UpvoteCount:  1,
	}

	assigned, events, err := s.engine.Assign(ctx, issue)
	if err != nil {
		return nil, err
	}
	if err := s.issues.Create(ctx, &assigned); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create issue")
	}

	s.metrics.RecordIssueCreated(assigned.Category, assigned.AssignedTo != nil)
	s.dispatch(ctx, events)
	s.invalidate(ctx)
	s.logger.Info("issue created",
		zap.String("issue_id", assigned.ID),
		zap.String("category", string(assigned.Category)),
		zap.Stringp("department", assigned.Department),
		zap.Stringp("assigned_to", assigned.AssignedTo),
	)
	return &assigned, nil
}

// Get returns an issue by id.
func (s *IssueService) Get(ctx context.Context, id string) (*models.Issue, error) {
	issue, err := s.issues.FindByID(ctx, id)
	if err != nil {
		return nil, mapIssueError(err, "failed to load issue")
	}
	return issue, nil
}

// List returns a filtered page of issues.
func (s *IssueService) List(ctx context.Context, filter models.IssueFilter) ([]models.Issue, *models.Pagination, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 || filter.PageSize > 100 {
		filter.PageSize = 20
	}
	issues, total, err := s.issues.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list issues")
	}
	return issues, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// UpdateStatus moves an issue through its lifecycle. Staff may only touch issues assigned to them.
// The reporter is notified when the status actually changes.
func (s *IssueService) UpdateStatus(ctx context.Context, id string, req dto.UpdateStatusRequest, actor Actor) (*models.Issue, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid status payload")
	}
	reason := trimmedOptional(req.RejectionReason)
	if req.Status == models.StatusRejected && reason == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "rejection reason is required")
	}

	var changed bool
	updated, err := s.issues.Mutate(ctx, id, func(issue *models.Issue) error {
		switch actor.Role {
		case models.RoleAdmin:
		case models.RoleStaff:
			if !issue.IsAssignedTo(actor.ID) {
				return appErrors.Clone(appErrors.ErrForbidden, "issue is not assigned to you")
			}
		default:
			return appErrors.Clone(appErrors.ErrForbidden, "only staff and admins can update status")
		}

		now := s.now()
		changed = issue.Status != req.Status
		issue.Status = req.Status
		issue.UpdatedAt = now

		switch req.Status {
		case models.StatusResolved:
			if changed || issue.ResolvedAt == nil {
				issue.ResolvedAt = &now
			}
			if note := trimmedOptional(req.ResolutionNote); note != nil {
				issue.ResolutionNote = note
			}
			if image := trimmedOptional(req.ResolutionImageURL); image != nil {
				issue.ResolutionImageURL = image
			}
			issue.IsOverdue = false
		case models.StatusRejected:
			issue.RejectionReason = reason
			issue.ResolvedAt = nil
		default:
			issue.ResolvedAt = nil
		}
		return nil
	})
	if err != nil {
		return nil, mapIssueError(err, "failed to update issue status")
	}

	if changed {
		s.metrics.RecordStatusChange(updated.Status)
		s.dispatch(ctx, []NotificationEvent{statusUpdateEvent(*updated)})
		s.invalidate(ctx)
	}
	return updated, nil
}

// Reassign hands an issue to staffID, or to the least loaded staff member of its department when staffID is empty.
func (s *IssueService) Reassign(ctx context.Context, id string, staffID *string, actor Actor) (*models.Issue, error) {
	if actor.Role != models.RoleAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins can assign issues")
	}
	current, err := s.issues.FindByID(ctx, id)
	if err != nil {
		return nil, mapIssueError(err, "failed to load issue")
	}
	staff, err := s.engine.ResolveAssignee(ctx, *current, staffID)
	if err != nil {
		return nil, err
	}

	var event NotificationEvent
	updated, err := s.issues.Mutate(ctx, id, func(issue *models.Issue) error {
		event = s.engine.Reassign(issue, staff)
		issue.UpdatedAt = s.now()
		return nil
	})
	if err != nil {
		return nil, mapIssueError(err, "failed to reassign issue")
	}

	s.dispatch(ctx, []NotificationEvent{event})
	s.invalidate(ctx)
	s.logger.Info("issue reassigned", zap.String("issue_id", id), zap.String("assigned_to", staff.ID), zap.String("by", actor.ID))
	return updated, nil
}

// ToggleUpvote adds or withdraws actor's support and reports whether actor now supports the issue.
func (s *IssueService) ToggleUpvote(ctx context.Context, id string, actor Actor) (*models.Issue, bool, error) {
	if actor.ID == "" {
		return nil, false, appErrors.Clone(appErrors.ErrUnauthorized, "user is required")
	}

	var events []NotificationEvent
	updated, err := s.issues.Mutate(ctx, id, func(issue *models.Issue) error {
		next, raised := ApplyUpvoteToggle(*issue, actor.ID, s.now(), s.priority)
		*issue = next
		events = raised
		return nil
	})
	if err != nil {
		return nil, false, mapIssueError(err, "failed to toggle upvote")
	}

	if len(events) > 0 {
		s.metrics.RecordEscalation(updated.Priority)
		s.logger.Info("issue escalated", zap.String("issue_id", id), zap.String("priority", string(updated.Priority)), zap.Int("upvotes", updated.UpvoteCount))
	}
	s.dispatch(ctx, events)
	s.invalidate(ctx)
	return updated, updated.HasUpvote(actor.ID), nil
}

// AttachFeedback records the reporter's rating of a resolved issue. Feedback can be given once.
func (s *IssueService) AttachFeedback(ctx context.Context, id string, req dto.FeedbackRequest, actor Actor) (*models.Issue, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid feedback payload")
	}

	updated, err := s.issues.Mutate(ctx, id, func(issue *models.Issue) error {
		if issue.ReportedBy != actor.ID {
			return appErrors.Clone(appErrors.ErrForbidden, "only the reporter can rate an issue")
		}
		if issue.Status != models.StatusResolved {
			return appErrors.Clone(appErrors.ErrPreconditionFailed, "feedback is only accepted for resolved issues")
		}
		if issue.Feedback != nil {
			return appErrors.Clone(appErrors.ErrConflict, "feedback already submitted")
		}
		now := s.now()
		issue.Feedback = &models.IssueFeedback{
			UserID:    actor.ID,
			UserName:  actor.Name,
			Rating:    req.Rating,
			Comment:   strings.TrimSpace(req.Comment),
			CreatedAt: now,
		}
		issue.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, mapIssueError(err, "failed to attach feedback")
	}
	s.invalidate(ctx)
	return updated, nil
}

// AddComment appends a message to the issue thread.
func (s *IssueService) AddComment(ctx context.Context, id string, req dto.CommentRequest, actor Actor) (*models.Comment, error) {
	req.Message = strings.TrimSpace(req.Message)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid comment payload")
	}
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}

	comment := &models.Comment{
		ID:        uuid.NewString(),
		IssueID:   id,
		UserID:    actor.ID,
		UserName:  actor.Name,
		UserRole:  actor.Role,
		Message:   req.Message,
		CreatedAt: s.now(),
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to add comment")
	}
	return comment, nil
}

// ListComments returns the issue thread oldest first.
func (s *IssueService) ListComments(ctx context.Context, id string) ([]models.Comment, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	comments, err := s.comments.ListByIssue(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list comments")
	}
	return comments, nil
}

func (s *IssueService) dispatch(ctx context.Context, events []NotificationEvent) {
	if len(events) == 0 || s.dispatcher == nil {
		return
	}
	if _, err := s.dispatcher.Dispatch(ctx, events...); err != nil {
		s.logger.Error("failed to dispatch notifications", zap.Error(err))
	}
}

func (s *IssueService) invalidate(ctx context.Context) {
	if s.analytics != nil {
		s.analytics.Invalidate(ctx)
	}
}

func mapIssueError(err error, message string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, "issue not found")
	}
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}
