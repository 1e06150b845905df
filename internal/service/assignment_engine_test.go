package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/civic-issue-api/internal/dto"
	"github.com/noah-isme/civic-issue-api/internal/models"
	appErrors "github.com/noah-isme/civic-issue-api/pkg/errors"
)

func TestDepartmentForCategory(t *testing.T) {
	cases := map[models.IssueCategory]string{
		models.CategoryRoad:        DepartmentRoads,
		models.CategoryWater:       DepartmentWater,
		models.CategoryElectricity: DepartmentElectricity,
		models.CategoryStreetlight: DepartmentElectricity,
		models.CategorySanitation:  DepartmentSanitation,
		models.CategoryDrainage:    DepartmentPublicWorks,
		models.CategoryOther:       DepartmentGeneral,
		"unknown":                  DepartmentGeneral,
	}
	for category, dept := range cases {
		assert.Equal(t, dept, DepartmentForCategory(category), string(category))
	}
}

func TestCreateIssueAssignsLeastLoadedWaterStaff(t *testing.T) {
	f := newCivicFixture(t)
	busy := f.addUser(t, "Busy", models.RoleStaff, DepartmentWater)
	light := f.addUser(t, "Light", models.RoleStaff, DepartmentWater)
	f.addUser(t, "Admin", models.RoleAdmin, "")
	for i := 0; i < 3; i++ {
		f.seedIssue(t, assignTo(busy))
	}
	f.seedIssue(t, func(issue *models.Issue) {
		assignTo(light)(issue)
		issue.Status = models.StatusInProgress
	})
	f.seedIssue(t, func(issue *models.Issue) {
		assignTo(light)(issue)
		issue.Status = models.StatusResolved
	})

	reporter := Actor{ID: "citizen-1", Name: "Citizen", Role: models.RoleCitizen}
	issue, err := f.issueSvc.Create(context.Background(), dto.CreateIssueRequest{
		Title:       "Leaking pipe",
		Description: "Clean water leaking onto the pavement",
		Category:    models.CategoryWater,
		Location:    "Market square",
	}, reporter)
	require.NoError(t, err)

	require.NotNil(t, issue.AssignedTo)
	assert.Equal(t, light.ID, *issue.AssignedTo)
	assert.Equal(t, "Light", *issue.AssignedToName)
	require.NotNil(t, issue.Department)
	assert.Equal(t, DepartmentWater, *issue.Department)
	require.NotNil(t, issue.SLADeadline)
	assert.Equal(t, issue.CreatedAt.Add(24*time.Hour), *issue.SLADeadline)
	assert.Equal(t, models.PriorityNormal, issue.Priority)
	assert.Equal(t, models.StatusPending, issue.Status)
	assert.False(t, issue.IsOverdue)
	assert.Equal(t, 1, issue.UpvoteCount)
	assert.True(t, issue.HasUpvote(reporter.ID))

	all := f.notifications.All()
	require.Len(t, all, 1)
	assert.Equal(t, models.NotificationAssignment, all[0].Type)
	assert.Equal(t, light.ID, all[0].UserID)
	require.NotNil(t, all[0].IssueID)
	assert.Equal(t, issue.ID, *all[0].IssueID)

	stored, err := f.issues.FindByID(context.Background(), issue.ID)
	require.NoError(t, err)
	assert.Equal(t, light.ID, *stored.AssignedTo)
}

func TestCreateIssueWithoutDepartmentStaff(t *testing.T) {
	f := newCivicFixture(t)
	f.addUser(t, "Water staff", models.RoleStaff, DepartmentWater)
	f.addUser(t, "Admin", models.RoleAdmin, "")

	issue, err := f.issueSvc.Create(context.Background(), dto.CreateIssueRequest{
		Title:       "Blocked drain",
		Description: "Storm drain clogged with leaves",
		Category:    models.CategoryDrainage,
		Location:    "Elm avenue",
	}, Actor{ID: "citizen-1", Name: "Citizen", Role: models.RoleCitizen})
	require.NoError(t, err)

	assert.Nil(t, issue.AssignedTo)
	assert.Nil(t, issue.AssignedToName)
	require.NotNil(t, issue.Department)
	assert.Equal(t, DepartmentPublicWorks, *issue.Department)
	assert.Equal(t, models.PriorityNormal, issue.Priority)
	require.NotNil(t, issue.SLADeadline)
	assert.Equal(t, issue.CreatedAt.Add(48*time.Hour), *issue.SLADeadline)
	assert.False(t, issue.IsOverdue)
	assert.Empty(t, f.notifications.All())

	_, err = f.issues.FindByID(context.Background(), issue.ID)
	require.NoError(t, err)
}

func TestAssignKeepsPresetDepartment(t *testing.T) {
	f := newCivicFixture(t)
	roads := f.addUser(t, "Roads", models.RoleStaff, DepartmentRoads)

	assigned, events, err := f.engine.Assign(context.Background(), models.Issue{
		ID:          "issue-1",
		Title:       "Cracked bridge railing",
		Category:    models.CategoryOther,
		Department:  strPtr(DepartmentRoads),
		UpvoteCount: 6,
		CreatedAt:   f.now,
		Status:      models.StatusInProgress,
		IsOverdue:   true,
	})
	require.NoError(t, err)
	assert.Equal(t, DepartmentRoads, *assigned.Department)
	assert.Equal(t, roads.ID, *assigned.AssignedTo)
	assert.Equal(t, models.PriorityHigh, assigned.Priority)
	assert.Equal(t, models.StatusPending, assigned.Status)
	assert.False(t, assigned.IsOverdue)
	require.Len(t, events, 1)
	assert.Equal(t, []string{roads.ID}, events[0].Recipients)
	assert.Equal(t, models.NotificationPriorityHigh, events[0].Priority)
}

func TestResolveAssigneeExplicitStaff(t *testing.T) {
	f := newCivicFixture(t)
	staff := f.addUser(t, "Staff", models.RoleStaff, DepartmentRoads)
	citizen := f.addUser(t, "Citizen", models.RoleCitizen, "")
	issue := f.seedIssue(t, nil)

	chosen, err := f.engine.ResolveAssignee(context.Background(), issue, strPtr(staff.ID))
	require.NoError(t, err)
	assert.Equal(t, staff.ID, chosen.ID)

	_, err = f.engine.ResolveAssignee(context.Background(), issue, strPtr("nobody"))
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	_, err = f.engine.ResolveAssignee(context.Background(), issue, strPtr(citizen.ID))
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	_, err = f.engine.ResolveAssignee(context.Background(), issue, nil)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestReassignKeepsSLAAndStatus(t *testing.T) {
	f := newCivicFixture(t)
	first := f.addUser(t, "First", models.RoleStaff, DepartmentWater)
	second := f.addUser(t, "Second", models.RoleStaff, DepartmentRoads)
	admin := f.addUser(t, "Admin", models.RoleAdmin, "")
	deadline := f.now.Add(24 * time.Hour)
	issue := f.seedIssue(t, func(issue *models.Issue) {
		assignTo(first)(issue)
		issue.Department = strPtr(DepartmentWater)
		issue.SLADeadline = &deadline
		issue.Status = models.StatusInProgress
	})
	f.advance(time.Hour)

	updated, err := f.issueSvc.Reassign(context.Background(), issue.ID, strPtr(second.ID), Actor{ID: admin.ID, Role: models.RoleAdmin})
	require.NoError(t, err)
	assert.Equal(t, second.ID, *updated.AssignedTo)
	assert.Equal(t, deadline, *updated.SLADeadline)
	assert.Equal(t, DepartmentWater, *updated.Department)
	assert.Equal(t, models.StatusInProgress, updated.Status)
	assert.Equal(t, f.now, updated.UpdatedAt)

	assignments := f.notificationsOf(models.NotificationAssignment)
	require.Len(t, assignments, 1)
	assert.Equal(t, second.ID, assignments[0].UserID)
}

func TestReassignAutoBalancesWithinDepartment(t *testing.T) {
	f := newCivicFixture(t)
	first := f.addUser(t, "First", models.RoleStaff, DepartmentWater)
	second := f.addUser(t, "Second", models.RoleStaff, DepartmentWater)
	admin := f.addUser(t, "Admin", models.RoleAdmin, "")
	f.seedIssue(t, assignTo(first))
	issue := f.seedIssue(t, func(issue *models.Issue) {
		issue.Department = strPtr(DepartmentWater)
	})

	updated, err := f.issueSvc.Reassign(context.Background(), issue.ID, nil, Actor{ID: admin.ID, Role: models.RoleAdmin})
	require.NoError(t, err)
	assert.Equal(t, second.ID, *updated.AssignedTo)
	require.NotNil(t, updated.SLADeadline)
	assert.Equal(t, issue.CreatedAt.Add(24*time.Hour), *updated.SLADeadline)
}

func TestReassignRequiresAdmin(t *testing.T) {
	f := newCivicFixture(t)
	staff := f.addUser(t, "Staff", models.RoleStaff, DepartmentWater)
	issue := f.seedIssue(t, nil)

	_, err := f.issueSvc.Reassign(context.Background(), issue.ID, strPtr(staff.ID), Actor{ID: staff.ID, Role: models.RoleStaff})
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	_, err = f.issueSvc.Reassign(context.Background(), "missing", strPtr(staff.ID), Actor{ID: "admin", Role: models.RoleAdmin})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	_, err = f.issueSvc.Reassign(context.Background(), issue.ID, strPtr("ghost"), Actor{ID: "admin", Role: models.RoleAdmin})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
	assert.Empty(t, f.notifications.All())
}
