package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/civic-issue-api/internal/models"
)

// CommentRepository stores issue discussion threads.
type CommentRepository struct {
	db *sqlx.DB
}

// NewCommentRepository creates a new instance of CommentRepository.
func NewCommentRepository(db *sqlx.DB) *CommentRepository {
	return &CommentRepository{db: db}
}

// Create appends a comment.
func (r *CommentRepository) Create(ctx context.Context, comment *models.Comment) error {
	const query = `INSERT INTO comments (id, issue_id, user_id, user_name, user_role, message, created_at)
VALUES (:id, :issue_id, :user_id, :user_name, :user_role, :message, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, comment); err != nil {
		return fmt.Errorf("create comment: %w", err)
	}
	return nil
}

// ListByIssue returns the thread oldest first.
func (r *CommentRepository) ListByIssue(ctx context.Context, issueID string) ([]models.Comment, error) {
	const query = `SELECT id, issue_id, user_id, user_name, user_role, message, created_at FROM comments WHERE issue_id = $1 ORDER BY created_at, id`
	var comments []models.Comment
	if err := r.db.SelectContext(ctx, &comments, query, issueID); err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	return comments, nil
}
