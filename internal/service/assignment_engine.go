package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/noah-isme/civic-issue-api/internal/models"
	appErrors "github.com/noah-isme/civic-issue-api/pkg/errors"
)

var categoryDepartments = map[models.IssueCategory]string{
	models.CategoryRoad:        DepartmentRoads,
	models.CategoryWater:       DepartmentWater,
	models.CategoryElectricity: DepartmentElectricity,
	models.CategorySanitation:  DepartmentSanitation,
	models.CategoryStreetlight: DepartmentElectricity,
	models.CategoryDrainage:    DepartmentPublicWorks,
	models.CategoryOther:       DepartmentGeneral,
}

// DepartmentForCategory returns the department that owns category.
func DepartmentForCategory(category models.IssueCategory) string {
	if dept, ok := categoryDepartments[category]; ok {
		return dept
	}
	return DepartmentGeneral
}

type assignmentIssueReader interface {
	ListActiveByAssignees(ctx context.Context, assigneeIDs []string) ([]models.Issue, error)
}

type assignmentDirectory interface {
	List(ctx context.Context, filter models.UserFilter) ([]models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// AssignmentEngine derives department, priority and SLA for an issue and picks its assignee.
type AssignmentEngine struct {
	issues   assignmentIssueReader
	users    assignmentDirectory
	priority *PriorityClassifier
	sla      *SLAPolicy
	logger   *zap.Logger
}

// NewAssignmentEngine constructs an AssignmentEngine.
func NewAssignmentEngine(issues assignmentIssueReader, users assignmentDirectory, priority *PriorityClassifier, sla *SLAPolicy, logger *zap.Logger) *AssignmentEngine {
	if priority == nil {
		priority = NewPriorityClassifier(DefaultHighThreshold, DefaultCriticalThreshold)
	}
	if sla == nil {
		sla = NewSLAPolicy(DefaultSLABudget, nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssignmentEngine{issues: issues, users: users, priority: priority, sla: sla, logger: logger}
}

// Assign completes a freshly submitted issue. Department, priority and SLA deadline are always set;
// the assignee and its assignment event only when the department has staff.
func (e *AssignmentEngine) Assign(ctx context.Context, issue models.Issue) (models.Issue, []NotificationEvent, error) {
	if issue.Department == nil || *issue.Department == "" {
		dept := DepartmentForCategory(issue.Category)
		issue.Department = &dept
	}
	issue.Priority = e.priority.Classify(issue.UpvoteCount)
	deadline := e.sla.DeadlineFor(issue.CreatedAt, issue.Department)
	issue.SLADeadline = &deadline
	issue.IsOverdue = false

	staff, err := e.pickAssignee(ctx, *issue.Department)
	if err != nil {
		return issue, nil, err
	}
	if staff == nil {
		e.logger.Info("no staff available for department", zap.String("department", *issue.Department), zap.String("issue_id", issue.ID))
		return issue, nil, nil
	}

	event := applyAssignee(&issue, staff)
	issue.Status = models.StatusPending
	return issue, []NotificationEvent{event}, nil
}

// ResolveAssignee returns the staff member a reassignment should target: the named one when staffID
// is set, otherwise whoever the balancer picks for the issue's department.
func (e *AssignmentEngine) ResolveAssignee(ctx context.Context, issue models.Issue, staffID *string) (*models.User, error) {
	if staffID != nil && *staffID != "" {
		user, err := e.users.FindByID(ctx, *staffID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "staff member not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load staff member")
		}
		if user.Role != models.RoleStaff {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "staff member not found")
		}
		return user, nil
	}

	dept := DepartmentForCategory(issue.Category)
	if issue.Department != nil && *issue.Department != "" {
		dept = *issue.Department
	}
	staff, err := e.pickAssignee(ctx, dept)
	if err != nil {
		return nil, err
	}
	if staff == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no staff available in department "+dept)
	}
	return staff, nil
}

// Reassign moves issue to staff. Priority and the SLA deadline are left as they are; a deadline is only
// filled in when the issue never had one.
func (e *AssignmentEngine) Reassign(issue *models.Issue, staff *models.User) NotificationEvent {
	if issue.Department == nil || *issue.Department == "" {
		dept := DepartmentForCategory(issue.Category)
		issue.Department = &dept
	}
	if issue.SLADeadline == nil {
		deadline := e.sla.DeadlineFor(issue.CreatedAt, issue.Department)
		issue.SLADeadline = &deadline
	}
	return applyAssignee(issue, staff)
}

func (e *AssignmentEngine) pickAssignee(ctx context.Context, department string) (*models.User, error) {
	role := models.RoleStaff
	staff, err := e.users.List(ctx, models.UserFilter{Role: &role, Department: department})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load department staff")
	}
	if len(staff) == 0 {
		return nil, nil
	}

	ids := make([]string, len(staff))
	for i, member := range staff {
		ids[i] = member.ID
	}
	active, err := e.issues.ListActiveByAssignees(ctx, ids)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load staff workload")
	}

	chosen, ok := SelectAssignee(department, staff, active)
	if !ok {
		return nil, nil
	}
	return chosen, nil
}

func applyAssignee(issue *models.Issue, staff *models.User) NotificationEvent {
	id := staff.ID
	name := staff.Name
	issue.AssignedTo = &id
	issue.AssignedToName = &name
	return assignmentEvent(*issue, staff.ID)
}
