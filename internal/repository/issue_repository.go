package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/civic-issue-api/internal/models"
	"github.com/noah-isme/civic-issue-api/pkg/database"
)

const issueColumns = `id, title, description, category, location, latitude, longitude, image_url, reported_by, reporter_name, status, department, assigned_to, assigned_to_name, created_at, updated_at, resolved_at, resolution_note, resolution_image_url, rejection_reason, upvotes, upvote_count, priority, sla_deadline, is_overdue, feedback`

// IssueRepository persists issues in PostgreSQL.
type IssueRepository struct {
	db *sqlx.DB
}

// NewIssueRepository creates a new instance of IssueRepository.
func NewIssueRepository(db *sqlx.DB) *IssueRepository {
	return &IssueRepository{db: db}
}

// Create inserts a fully derived issue.
func (r *IssueRepository) Create(ctx context.Context, issue *models.Issue) error {
	if issue.Upvotes == nil {
		issue.Upvotes = pq.StringArray{}
	}
	const query = `INSERT INTO issues (` + issueColumns + `)
VALUES (:id, :title, :description, :category, :location, :latitude, :longitude, :image_url, :reported_by, :reporter_name, :status, :department, :assigned_to, :assigned_to_name, :created_at, :updated_at, :resolved_at, :resolution_note, :resolution_image_url, :rejection_reason, :upvotes, :upvote_count, :priority, :sla_deadline, :is_overdue, :feedback)`
	if _, err := r.db.NamedExecContext(ctx, query, issue); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert issue: %w", err)
	}
	return nil
}

// FindByID returns an issue by identifier.
func (r *IssueRepository) FindByID(ctx context.Context, id string) (*models.Issue, error) {
	const query = `SELECT ` + issueColumns + ` FROM issues WHERE id = $1`
	var issue models.Issue
	if err := r.db.GetContext(ctx, &issue, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find issue by id: %w", err)
	}
	return &issue, nil
}

// List returns a page of issues newest first along with the total count.
func (r *IssueRepository) List(ctx context.Context, filter models.IssueFilter) ([]models.Issue, int, error) {
	var conditions []string
	var args []interface{}

	add := func(clause string, value interface{}) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf(clause, len(args)))
	}

	if filter.Status != nil {
		add("status = $%d", *filter.Status)
	}
	if filter.Category != nil {
		add("category = $%d", *filter.Category)
	}
	if filter.Priority != nil {
		add("priority = $%d", *filter.Priority)
	}
	if filter.Department != "" {
		add("department = $%d", filter.Department)
	}
	if filter.AssignedTo != "" {
		add("assigned_to = $%d", filter.AssignedTo)
	}
	if filter.ReportedBy != "" {
		add("reported_by = $%d", filter.ReportedBy)
	}
	if filter.Overdue != nil {
		add("is_overdue = $%d", *filter.Overdue)
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM issues"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count issues: %w", err)
	}

	page, pageSize := normalizePage(filter.Page, filter.PageSize)
	args = append(args, pageSize, (page-1)*pageSize)
	query := fmt.Sprintf("SELECT %s FROM issues%s ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d", issueColumns, where, len(args)-1, len(args))

	var issues []models.Issue
	if err := r.db.SelectContext(ctx, &issues, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list issues: %w", err)
	}
	return issues, total, nil
}

// ListAll returns every issue ordered by creation time.
func (r *IssueRepository) ListAll(ctx context.Context) ([]models.Issue, error) {
	const query = `SELECT ` + issueColumns + ` FROM issues ORDER BY created_at, id`
	var issues []models.Issue
	if err := r.db.SelectContext(ctx, &issues, query); err != nil {
		return nil, fmt.Errorf("list all issues: %w", err)
	}
	return issues, nil
}

// ListActiveByAssignees returns unresolved issues held by any of the given staff members.
func (r *IssueRepository) ListActiveByAssignees(ctx context.Context, assigneeIDs []string) ([]models.Issue, error) {
	if len(assigneeIDs) == 0 {
		return []models.Issue{}, nil
	}
	const query = `SELECT ` + issueColumns + ` FROM issues WHERE assigned_to = ANY($1) AND status <> $2`
	var issues []models.Issue
	if err := r.db.SelectContext(ctx, &issues, query, pq.StringArray(assigneeIDs), models.StatusResolved); err != nil {
		return nil, fmt.Errorf("list active issues by assignee: %w", err)
	}
	return issues, nil
}

// ListMonitored returns unresolved, assigned issues that carry an SLA deadline.
func (r *IssueRepository) ListMonitored(ctx context.Context) ([]models.Issue, error) {
	const query = `SELECT ` + issueColumns + ` FROM issues WHERE status <> $1 AND assigned_to IS NOT NULL AND sla_deadline IS NOT NULL ORDER BY sla_deadline`
	var issues []models.Issue
	if err := r.db.SelectContext(ctx, &issues, query, models.StatusResolved); err != nil {
		return nil, fmt.Errorf("list monitored issues: %w", err)
	}
	return issues, nil
}

// Mutate locks the row, applies fn and writes the result back in one transaction.
// When fn returns an error nothing is written and the error is returned unchanged.
func (r *IssueRepository) Mutate(ctx context.Context, id string, fn func(*models.Issue) error) (*models.Issue, error) {
	var updated models.Issue
	err := database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		const selectQuery = `SELECT ` + issueColumns + ` FROM issues WHERE id = $1 FOR UPDATE`
		var current models.Issue
		if err := tx.GetContext(ctx, &current, selectQuery, id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return err
			}
			return fmt.Errorf("lock issue: %w", err)
		}

		if err := fn(&current); err != nil {
			return err
		}
		if current.Upvotes == nil {
			current.Upvotes = pq.StringArray{}
		}

		const updateQuery = `UPDATE issues SET
	title = :title,
	description = :description,
	category = :category,
	location = :location,
	latitude = :latitude,
	longitude = :longitude,
	image_url = :image_url,
	status = :status,
	department = :department,
	assigned_to = :assigned_to,
	assigned_to_name = :assigned_to_name,
	updated_at = :updated_at,
	resolved_at = :resolved_at,
	resolution_note = :resolution_note,
	resolution_image_url = :resolution_image_url,
	rejection_reason = :rejection_reason,
	upvotes = :upvotes,
	upvote_count = :upvote_count,
	priority = :priority,
	sla_deadline = :sla_deadline,
	is_overdue = :is_overdue,
	feedback = :feedback
WHERE id = :id`
		if _, err := tx.NamedExecContext(ctx, updateQuery, &current); err != nil {
			return fmt.Errorf("update issue: %w", err)
		}
		updated = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}
