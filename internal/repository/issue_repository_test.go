package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/civic-issue-api/internal/models"
)

var issueColumnNames = []string{"id", "title", "description", "category", "location", "latitude", "longitude", "image_url", "reported_by", "reporter_name", "status", "department", "assigned_to", "assigned_to_name", "created_at", "updated_at", "resolved_at", "resolution_note", "resolution_image_url", "rejection_reason", "upvotes", "upvote_count", "priority", "sla_deadline", "is_overdue", "feedback"}

func issueRows(now time.Time) *sqlmock.Rows {
	deadline := now.Add(48 * time.Hour)
	return sqlmock.NewRows(issueColumnNames).
		AddRow("issue-1", "Pothole", "Deep pothole", "road", "MG Road", 12.97, 77.59, nil, "citizen-1", "Asha", "pending",
			"Roads & Infrastructure", "staff-1", "Ravi", now, now, nil, nil, nil, nil, "{citizen-1,citizen-2}", 2, "normal", deadline, false, nil)
}

func TestIssueRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewIssueRepository(db)

	now := time.Now().UTC()
	mock.ExpectQuery(regexp.QuoteMeta("FROM issues WHERE id = $1")).WithArgs("issue-1").WillReturnRows(issueRows(now))

	issue, err := repo.FindByID(context.Background(), "issue-1")
	require.NoError(t, err)
	assert.Equal(t, models.CategoryRoad, issue.Category)
	assert.Equal(t, []string{"citizen-1", "citizen-2"}, []string(issue.Upvotes))
	assert.Equal(t, 2, issue.UpvoteCount)
	require.NotNil(t, issue.AssignedTo)
	assert.Equal(t, "staff-1", *issue.AssignedTo)
	require.NotNil(t, issue.Latitude)
	assert.Nil(t, issue.Feedback)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIssueRepositoryListAppliesFiltersAndPaging(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewIssueRepository(db)

	now := time.Now().UTC()
	status := models.StatusPending
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM issues WHERE status = $1 AND assigned_to = $2")).
		WithArgs(status, "staff-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta("WHERE status = $1 AND assigned_to = $2 ORDER BY created_at DESC, id LIMIT $3 OFFSET $4")).
		WithArgs(status, "staff-1", 10, 10).
		WillReturnRows(issueRows(now))

	issues, total, err := repo.List(context.Background(), models.IssueFilter{Status: &status, AssignedTo: "staff-1", Page: 2, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, issues, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIssueRepositoryMutateCommits(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewIssueRepository(db)

	now := time.Now().UTC()
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM issues WHERE id = $1 FOR UPDATE")).WithArgs("issue-1").WillReturnRows(issueRows(now))
	mock.ExpectExec("UPDATE issues SET").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	updated, err := repo.Mutate(context.Background(), "issue-1", func(issue *models.Issue) error {
		issue.IsOverdue = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, updated.IsOverdue)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIssueRepositoryMutateRollsBackOnCallbackError(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewIssueRepository(db)

	now := time.Now().UTC()
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).WithArgs("issue-1").WillReturnRows(issueRows(now))
	mock.ExpectRollback()

	abort := errors.New("abort")
	_, err := repo.Mutate(context.Background(), "issue-1", func(issue *models.Issue) error {
		return abort
	})
	assert.ErrorIs(t, err, abort)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIssueRepositoryMutateMissing(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewIssueRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).WithArgs("nope").WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, err := repo.Mutate(context.Background(), "nope", func(issue *models.Issue) error { return nil })
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIssueRepositoryListActiveByAssigneesEmpty(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewIssueRepository(db)

	issues, err := repo.ListActiveByAssignees(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, issues)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationRepositoryHasIssueNotification(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewNotificationRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS (SELECT 1 FROM notifications WHERE issue_id = $1 AND type = $2)")).
		WithArgs("issue-1", models.NotificationSLAWarning).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.HasIssueNotification(context.Background(), "issue-1", models.NotificationSLAWarning)
	require.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationRepositoryAppendBatch(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewNotificationRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO notifications").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO notifications").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	now := time.Now().UTC()
	err := repo.Append(context.Background(), []models.Notification{
		{ID: "n1", UserID: "staff-1", Type: models.NotificationAssignment, Title: "t", Message: "m", CreatedAt: now, Priority: models.NotificationPriorityNormal},
		{ID: "n2", UserID: "admin-1", Type: models.NotificationEscalation, Title: "t", Message: "m", CreatedAt: now, Priority: models.NotificationPriorityHigh},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationRepositoryMarkReadForeignUser(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewNotificationRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE notifications SET read = TRUE WHERE id = $1 AND user_id = $2")).
		WithArgs("n1", "intruder").
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.MarkRead(context.Background(), "n1", "intruder")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}
