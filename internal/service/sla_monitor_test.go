package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/civic-issue-api/internal/dto"
	"github.com/noah-isme/civic-issue-api/internal/models"
)

func TestSweepFlagsOverdueOnce(t *testing.T) {
	f := newCivicFixture(t)
	staff := f.addUser(t, "Staff", models.RoleStaff, DepartmentWater)
	admin := f.addUser(t, "Admin", models.RoleAdmin, "")
	issue := f.seedIssue(t, func(issue *models.Issue) {
		assignTo(staff)(issue)
		issue.Status = models.StatusInProgress
		issue.SLADeadline = timePtr(f.now.Add(-2 * time.Hour))
	})

	result, err := f.monitor.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SweepResult{Scanned: 1, MarkedOverdue: 1}, result)

	stored, err := f.issues.FindByID(context.Background(), issue.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsOverdue)
	assert.Equal(t, f.now, stored.UpdatedAt)

	overdue := f.notificationsOf(models.NotificationSLAOverdue)
	require.Len(t, overdue, 2)
	assert.ElementsMatch(t, []string{staff.ID, admin.ID}, recipients(overdue))
	assert.Equal(t, models.NotificationPriorityUrgent, overdue[0].Priority)

	result, err = f.monitor.Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, result.MarkedOverdue)
	assert.Len(t, f.notifications.All(), 2)
}

func TestSweepWarnsOncePerIssue(t *testing.T) {
	f := newCivicFixture(t)
	staff := f.addUser(t, "Staff", models.RoleStaff, DepartmentWater)
	f.addUser(t, "Admin", models.RoleAdmin, "")
	f.seedIssue(t, func(issue *models.Issue) {
		assignTo(staff)(issue)
		issue.SLADeadline = timePtr(f.now.Add(3*time.Hour + 30*time.Minute))
	})

	result, err := f.monitor.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.WarningsRaised)

	warnings := f.notificationsOf(models.NotificationSLAWarning)
	require.Len(t, warnings, 1)
	assert.Equal(t, staff.ID, warnings[0].UserID)
	assert.Contains(t, warnings[0].Message, "due in 3 hours")

	f.advance(time.Hour)
	result, err = f.monitor.Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, result.WarningsRaised)
	assert.Len(t, f.notificationsOf(models.NotificationSLAWarning), 1)
}

func TestSweepIgnoresIneligibleIssues(t *testing.T) {
	f := newCivicFixture(t)
	staff := f.addUser(t, "Staff", models.RoleStaff, DepartmentWater)
	past := f.now.Add(-time.Hour)

	f.seedIssue(t, func(issue *models.Issue) {
		issue.SLADeadline = &past
	})
	f.seedIssue(t, func(issue *models.Issue) {
		assignTo(staff)(issue)
		issue.Status = models.StatusResolved
		issue.SLADeadline = &past
	})
	f.seedIssue(t, func(issue *models.Issue) {
		assignTo(staff)(issue)
	})
	f.seedIssue(t, func(issue *models.Issue) {
		assignTo(staff)(issue)
		issue.SLADeadline = timePtr(f.now.Add(7 * time.Hour))
	})

	result, err := f.monitor.Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, result.MarkedOverdue)
	assert.Zero(t, result.WarningsRaised)
	assert.Empty(t, f.notifications.All())
}

func TestSweepIsLevelTriggered(t *testing.T) {
	f := newCivicFixture(t)
	staff := f.addUser(t, "Staff", models.RoleStaff, DepartmentWater)
	issue := f.seedIssue(t, func(issue *models.Issue) {
		assignTo(staff)(issue)
		issue.SLADeadline = timePtr(f.now.Add(2 * time.Hour))
	})

	_, err := f.monitor.Sweep(context.Background())
	require.NoError(t, err)
	assert.Len(t, f.notificationsOf(models.NotificationSLAWarning), 1)

	// Several ticks missed; the next sweep still catches the transition.
	f.advance(5 * time.Hour)
	result, err := f.monitor.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.MarkedOverdue)

	stored, err := f.issues.FindByID(context.Background(), issue.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsOverdue)
	assert.Len(t, f.notificationsOf(models.NotificationSLAOverdue), 1)
}

func TestResolvingClearsOverdue(t *testing.T) {
	f := newCivicFixture(t)
	staff := f.addUser(t, "Staff", models.RoleStaff, DepartmentWater)
	issue := f.seedIssue(t, func(issue *models.Issue) {
		assignTo(staff)(issue)
		issue.Status = models.StatusInProgress
		issue.SLADeadline = timePtr(f.now.Add(-time.Hour))
	})

	_, err := f.monitor.Sweep(context.Background())
	require.NoError(t, err)

	resolved, err := f.issueSvc.UpdateStatus(context.Background(), issue.ID, dto.UpdateStatusRequest{
		Status:         models.StatusResolved,
		ResolutionNote: strPtr("Pipe replaced"),
	}, Actor{ID: staff.ID, Role: models.RoleStaff})
	require.NoError(t, err)
	assert.False(t, resolved.IsOverdue)

	result, err := f.monitor.Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, result.MarkedOverdue)

	stored, err := f.issues.FindByID(context.Background(), issue.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsOverdue)
}

type countingIssueStore struct {
	slaIssueStore
	sweeps atomic.Int32
}

func (c *countingIssueStore) ListMonitored(ctx context.Context) ([]models.Issue, error) {
	c.sweeps.Add(1)
	return c.slaIssueStore.ListMonitored(ctx)
}

func TestSLAMonitorStopsTicking(t *testing.T) {
	f := newCivicFixture(t)
	store := &countingIssueStore{slaIssueStore: f.issues}
	monitor := NewSLAMonitor(SLAMonitorParams{
		Issues:     store,
		Index:      f.notifications,
		Dispatcher: f.dispatcher,
		Config:     SLAMonitorConfig{Interval: 10 * time.Millisecond},
		Logger:     zap.NewNop(),
	})

	monitor.Start(context.Background())
	monitor.Start(context.Background())
	assert.True(t, monitor.Running())
	require.Eventually(t, func() bool { return store.sweeps.Load() >= 3 }, time.Second, 5*time.Millisecond)

	monitor.Stop()
	assert.False(t, monitor.Running())
	stopped := store.sweeps.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, stopped, store.sweeps.Load())

	monitor.Stop()
}

func TestSLAMonitorStopsWithContext(t *testing.T) {
	f := newCivicFixture(t)
	store := &countingIssueStore{slaIssueStore: f.issues}
	monitor := NewSLAMonitor(SLAMonitorParams{
		Issues:     store,
		Index:      f.notifications,
		Dispatcher: f.dispatcher,
		Config:     SLAMonitorConfig{Interval: 10 * time.Millisecond},
	})

	ctx, cancel := context.WithCancel(context.Background())
	monitor.Start(ctx)
	require.Eventually(t, func() bool { return store.sweeps.Load() >= 1 }, time.Second, 5*time.Millisecond)
	cancel()
	monitor.Stop()

	stopped := store.sweeps.Load()
	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, stopped, store.sweeps.Load())
}

type interleavingIssueStore struct {
	slaIssueStore
	beforeMutate func()
}

func (s *interleavingIssueStore) Mutate(ctx context.Context, id string, fn func(*models.Issue) error) (*models.Issue, error) {
	if s.beforeMutate != nil {
		hook := s.beforeMutate
		s.beforeMutate = nil
		hook()
	}
	return s.slaIssueStore.Mutate(ctx, id, fn)
}

func TestSweepKeepsUpdatedAtInWriteOrder(t *testing.T) {
	f := newCivicFixture(t)
	staff := f.addUser(t, "Staff", models.RoleStaff, DepartmentWater)
	citizen := f.addUser(t, "Citizen", models.RoleCitizen, "")
	issue := f.seedIssue(t, func(issue *models.Issue) {
		assignTo(staff)(issue)
		issue.SLADeadline = timePtr(f.now.Add(-time.Hour))
	})

	var upvotedAt time.Time
	store := &interleavingIssueStore{slaIssueStore: f.issues}
	store.beforeMutate = func() {
		f.advance(time.Second)
		upvoted, _, err := f.issueSvc.ToggleUpvote(context.Background(), issue.ID, Actor{ID: citizen.ID, Role: models.RoleCitizen})
		require.NoError(t, err)
		upvotedAt = upvoted.UpdatedAt
	}
	monitor := NewSLAMonitor(SLAMonitorParams{
		Issues:     store,
		Index:      f.notifications,
		Dispatcher: f.dispatcher,
		Config:     SLAMonitorConfig{Interval: time.Minute, WarningWindow: DefaultWarningWindow},
		Clock:      f.clock,
	})

	result, err := monitor.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.MarkedOverdue)

	stored, err := f.issues.FindByID(context.Background(), issue.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsOverdue)
	assert.Equal(t, 1, stored.UpvoteCount)
	assert.False(t, stored.UpdatedAt.Before(upvotedAt))
	assert.Equal(t, fixtureStart.Add(time.Second), stored.UpdatedAt)
}

type flakyDispatcher struct {
	notificationSink
	failures int
}

func (d *flakyDispatcher) Dispatch(ctx context.Context, events ...NotificationEvent) ([]models.Notification, error) {
	if d.failures > 0 {
		d.failures--
		return nil, errors.New("notification store unavailable")
	}
	return d.notificationSink.Dispatch(ctx, events...)
}

func TestSweepRedeliversOverdueAfterDispatchFailure(t *testing.T) {
	f := newCivicFixture(t)
	staff := f.addUser(t, "Staff", models.RoleStaff, DepartmentWater)
	admin := f.addUser(t, "Admin", models.RoleAdmin, "")
	issue := f.seedIssue(t, func(issue *models.Issue) {
		assignTo(staff)(issue)
		issue.Status = models.StatusInProgress
		issue.SLADeadline = timePtr(f.now.Add(-time.Hour))
	})

	dispatcher := &flakyDispatcher{notificationSink: f.dispatcher, failures: 1}
	monitor := NewSLAMonitor(SLAMonitorParams{
		Issues:     f.issues,
		Index:      f.notifications,
		Dispatcher: dispatcher,
		Config:     SLAMonitorConfig{Interval: time.Minute, WarningWindow: DefaultWarningWindow},
		Clock:      f.clock,
	})

	result, err := monitor.Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, result.MarkedOverdue)
	assert.Empty(t, f.notificationsOf(models.NotificationSLAOverdue))

	stored, err := f.issues.FindByID(context.Background(), issue.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsOverdue)

	_, err = monitor.Sweep(context.Background())
	require.NoError(t, err)
	overdue := f.notificationsOf(models.NotificationSLAOverdue)
	require.Len(t, overdue, 2)
	assert.ElementsMatch(t, []string{staff.ID, admin.ID}, recipients(overdue))

	_, err = monitor.Sweep(context.Background())
	require.NoError(t, err)
	assert.Len(t, f.notificationsOf(models.NotificationSLAOverdue), 2)
}
