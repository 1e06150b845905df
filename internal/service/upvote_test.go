package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/civic-issue-api/internal/models"
	appErrors "github.com/noah-isme/civic-issue-api/pkg/errors"
)

func supporters(n int) pq.StringArray {
	out := make(pq.StringArray, n)
	for i := range out {
		out[i] = fmt.Sprintf("user-%d", i)
	}
	return out
}

func TestApplyUpvoteToggleIsInvolution(t *testing.T) {
	classifier := NewPriorityClassifier(DefaultHighThreshold, DefaultCriticalThreshold)
	original := models.Issue{ID: "i1", Upvotes: supporters(3), UpvoteCount: 3, Priority: models.PriorityNormal}
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	once, _ := ApplyUpvoteToggle(original, "newcomer", now, classifier)
	assert.True(t, once.HasUpvote("newcomer"))
	assert.Equal(t, 4, once.UpvoteCount)

	twice, _ := ApplyUpvoteToggle(once, "newcomer", now, classifier)
	assert.ElementsMatch(t, original.Upvotes, twice.Upvotes)
	assert.Equal(t, 3, twice.UpvoteCount)

	removed, _ := ApplyUpvoteToggle(original, "user-1", now, classifier)
	assert.False(t, removed.HasUpvote("user-1"))
	restored, _ := ApplyUpvoteToggle(removed, "user-1", now, classifier)
	assert.ElementsMatch(t, original.Upvotes, restored.Upvotes)
	assert.True(t, original.HasUpvote("user-1"))
}

func TestApplyUpvoteToggleKeepsCountAndPriorityConsistent(t *testing.T) {
	classifier := NewPriorityClassifier(DefaultHighThreshold, DefaultCriticalThreshold)
	issue := models.Issue{ID: "i1", Upvotes: pq.StringArray{}}
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	sequence := []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 3, 5, 7, 0, 12, 13, 14, 1, 2}
	for step, n := range sequence {
		issue, _ = ApplyUpvoteToggle(issue, fmt.Sprintf("user-%d", n), now.Add(time.Duration(step)*time.Second), classifier)
		assert.Equal(t, len(issue.Upvotes), issue.UpvoteCount)
		assert.Equal(t, classifier.Classify(len(issue.Upvotes)), issue.Priority)
		assert.Equal(t, now.Add(time.Duration(step)*time.Second), issue.UpdatedAt)
	}
}

func TestApplyUpvoteToggleEscalatesUpwardOnly(t *testing.T) {
	classifier := NewPriorityClassifier(DefaultHighThreshold, DefaultCriticalThreshold)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	issue := models.Issue{ID: "i1", Title: "Pothole", Upvotes: supporters(4), UpvoteCount: 4, Priority: models.PriorityNormal, AssignedTo: strPtr("staff-1")}

	high, events := ApplyUpvoteToggle(issue, "user-fifth", now, classifier)
	assert.Equal(t, models.PriorityHigh, high.Priority)
	require.Len(t, events, 1)
	assert.Equal(t, models.NotificationEscalation, events[0].Type)
	assert.Equal(t, "High Priority Alert", events[0].Title)
	assert.Equal(t, []string{"staff-1"}, events[0].Recipients)
	assert.True(t, events[0].NotifyAdmins)

	back, events := ApplyUpvoteToggle(high, "user-fifth", now, classifier)
	assert.Equal(t, models.PriorityNormal, back.Priority)
	assert.Empty(t, events)

	nearCritical := models.Issue{ID: "i2", Upvotes: supporters(9), UpvoteCount: 9, Priority: models.PriorityHigh}
	critical, events := ApplyUpvoteToggle(nearCritical, "user-tenth", now, classifier)
	assert.Equal(t, models.PriorityCritical, critical.Priority)
	require.Len(t, events, 1)
	assert.Equal(t, "CRITICAL Priority!", events[0].Title)
	assert.Equal(t, models.NotificationPriorityUrgent, events[0].Priority)
	assert.Empty(t, events[0].Recipients)

	downgraded, events := ApplyUpvoteToggle(critical, "user-tenth", now, classifier)
	assert.Equal(t, models.PriorityHigh, downgraded.Priority)
	assert.Empty(t, events)
}

func TestToggleUpvoteEscalationNotifiesAssigneeAndAdmins(t *testing.T) {
	f := newCivicFixture(t)
	staff := f.addUser(t, "Staff", models.RoleStaff, DepartmentWater)
	admin := f.addUser(t, "Admin", models.RoleAdmin, "")
	issue := f.seedIssue(t, func(issue *models.Issue) {
		assignTo(staff)(issue)
		issue.Upvotes = supporters(4)
		issue.UpvoteCount = 4
	})
	f.advance(time.Minute)

	updated, upvoted, err := f.issueSvc.ToggleUpvote(context.Background(), issue.ID, Actor{ID: "supporter-5", Role: models.RoleCitizen})
	require.NoError(t, err)
	assert.True(t, upvoted)
	assert.Equal(t, 5, updated.UpvoteCount)
	assert.Equal(t, models.PriorityHigh, updated.Priority)
	assert.Equal(t, f.now, updated.UpdatedAt)

	escalations := f.notificationsOf(models.NotificationEscalation)
	require.Len(t, escalations, 2)
	assert.ElementsMatch(t, []string{staff.ID, admin.ID}, recipients(escalations))

	updated, upvoted, err = f.issueSvc.ToggleUpvote(context.Background(), issue.ID, Actor{ID: "supporter-5", Role: models.RoleCitizen})
	require.NoError(t, err)
	assert.False(t, upvoted)
	assert.Equal(t, 4, updated.UpvoteCount)
	assert.Equal(t, models.PriorityNormal, updated.Priority)
	assert.Len(t, f.notifications.All(), 2)
}

func TestToggleUpvoteUnknownIssue(t *testing.T) {
	f := newCivicFixture(t)
	_, _, err := f.issueSvc.ToggleUpvote(context.Background(), "missing", Actor{ID: "u1"})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	_, _, err = f.issueSvc.ToggleUpvote(context.Background(), "missing", Actor{})
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
}
