package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/civic-issue-api/internal/models"
)

// DepartmentRepository stores the ordered department list.
type DepartmentRepository struct {
	db *sqlx.DB
}

// NewDepartmentRepository creates a new instance of DepartmentRepository.
func NewDepartmentRepository(db *sqlx.DB) *DepartmentRepository {
	return &DepartmentRepository{db: db}
}

// Create appends a department. A case-insensitive name clash yields ErrDuplicate.
func (r *DepartmentRepository) Create(ctx context.Context, name string, createdAt time.Time) (*models.Department, error) {
	const query = `INSERT INTO departments (name, created_at) VALUES ($1, $2) RETURNING name, position, created_at`
	var dept models.Department
	if err := r.db.GetContext(ctx, &dept, query, name, createdAt); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("create department: %w", err)
	}
	return &dept, nil
}

// FindByName looks a department up ignoring case.
func (r *DepartmentRepository) FindByName(ctx context.Context, name string) (*models.Department, error) {
	const query = `SELECT name, position, created_at FROM departments WHERE LOWER(name) = LOWER($1)`
	var dept models.Department
	if err := r.db.GetContext(ctx, &dept, query, name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find department: %w", err)
	}
	return &dept, nil
}

// List returns departments in insertion order.
func (r *DepartmentRepository) List(ctx context.Context) ([]models.Department, error) {
	const query = `SELECT name, position, created_at FROM departments ORDER BY position`
	var depts []models.Department
	if err := r.db.SelectContext(ctx, &depts, query); err != nil {
		return nil, fmt.Errorf("list departments: %w", err)
	}
	return depts, nil
}
