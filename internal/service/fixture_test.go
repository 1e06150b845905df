package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/civic-issue-api/internal/models"
	"github.com/noah-isme/civic-issue-api/internal/repository"
)

var fixtureStart = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

type civicFixture struct {
	now time.Time

	issues        *repository.IssueMemoryStore
	users         *repository.UserMemoryStore
	departments   *repository.DepartmentMemoryStore
	notifications *repository.NotificationMemoryStore
	comments      *repository.CommentMemoryStore

	priority   *PriorityClassifier
	sla        *SLAPolicy
	engine     *AssignmentEngine
	dispatcher *NotificationDispatcher
	issueSvc   *IssueService
	monitor    *SLAMonitor
}

func newCivicFixture(t *testing.T) *civicFixture {
	t.Helper()
	f := &civicFixture{
		now:           fixtureStart,
		issues:        repository.NewIssueMemoryStore(),
		users:         repository.NewUserMemoryStore(),
		departments:   repository.NewDepartmentMemoryStore(),
		notifications: repository.NewNotificationMemoryStore(),
		comments:      repository.NewCommentMemoryStore(),
		priority:      NewPriorityClassifier(DefaultHighThreshold, DefaultCriticalThreshold),
		sla:           NewSLAPolicy(DefaultSLABudget, nil),
	}
	for _, name := range DefaultDepartments {
		_, err := f.departments.Create(context.Background(), name, fixtureStart)
		require.NoError(t, err)
	}

	logger := zap.NewNop()
	f.engine = NewAssignmentEngine(f.issues, f.users, f.priority, f.sla, logger)
	f.dispatcher = NewNotificationDispatcher(NotificationDispatcherParams{
		Store:  f.notifications,
		Users:  f.users,
		Clock:  f.clock,
		Logger: logger,
	})
	f.issueSvc = NewIssueService(IssueServiceParams{
		Issues:     f.issues,
		Comments:   f.comments,
		Engine:     f.engine,
		Priority:   f.priority,
		Dispatcher: f.dispatcher,
		Clock:      f.clock,
		Logger:     logger,
	})
	f.monitor = NewSLAMonitor(SLAMonitorParams{
		Issues:     f.issues,
		Index:      f.notifications,
		Dispatcher: f.dispatcher,
		Config:     SLAMonitorConfig{Interval: time.Minute, WarningWindow: DefaultWarningWindow},
		Clock:      f.clock,
		Logger:     logger,
	})
	return f
}

func (f *civicFixture) clock() time.Time { return f.now }

func (f *civicFixture) advance(d time.Duration) { f.now = f.now.Add(d) }

func (f *civicFixture) addUser(t *testing.T, name string, role models.UserRole, department string) models.User {
	t.Helper()
	user := models.User{
		ID:        uuid.NewString(),
		Name:      name,
		Email:     uuid.NewString() + "@city.test",
		Role:      role,
		CreatedAt: f.now,
		UpdatedAt: f.now,
	}
	if department != "" {
		dept := department
		user.Department = &dept
	}
	require.NoError(t, f.users.Create(context.Background(), &user))
	return user
}

// seedIssue stores an issue directly, bypassing the assignment engine.
func (f *civicFixture) seedIssue(t *testing.T, opts func(*models.Issue)) models.Issue {
	t.Helper()
	issue := models.Issue{
		ID:          uuid.NewString(),
		Title:       "Burst main on 5th street",
		Description: "Water flooding the road",
		Category:    models.CategoryWater,
		Location:    "5th street",
		ReportedBy:  "reporter-1",
		Status:      models.StatusPending,
		CreatedAt:   f.now,
		UpdatedAt:   f.now,
		Upvotes:     pq.StringArray{},
		Priority:    models.PriorityNormal,
	}
	if opts != nil {
		opts(&issue)
	}
	require.NoError(t, f.issues.Create(context.Background(), &issue))
	return issue
}

func (f *civicFixture) notificationsOf(kind models.NotificationType) []models.Notification {
	var out []models.Notification
	for _, n := range f.notifications.All() {
		if n.Type == kind {
			out = append(out, n)
		}
	}
	return out
}

func assignTo(user models.User) func(*models.Issue) {
	return func(issue *models.Issue) {
		id, name := user.ID, user.Name
		issue.AssignedTo = &id
		issue.AssignedToName = &name
	}
}

func recipients(items []models.Notification) []string {
	out := make([]string, len(items))
	for i, n := range items {
		out[i] = n.UserID
	}
	return out
}

func strPtr(v string) *string { return &v }

func timePtr(v time.Time) *time.Time { return &v }
