package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/civic-issue-api/internal/models"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	return sqlxdb, mock, func() {
		db.Close()
	}
}

func TestUserRepositoryFindByEmailIgnoresCase(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	now := time.Now()
	dept := "Water Supply"
	rows := sqlmock.NewRows([]string{"id", "name", "email", "password_hash", "role", "department", "phone", "created_at", "updated_at"}).
		AddRow("u1", "Ravi", "ravi@city.gov", "hash", string(models.RoleStaff), dept, nil, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE LOWER(email) = LOWER($1) LIMIT 1")).
		WithArgs("Ravi@City.gov").
		WillReturnRows(rows)

	user, err := repo.FindByEmail(context.Background(), "  Ravi@City.gov ")
	require.NoError(t, err)
	assert.Equal(t, "ravi@city.gov", user.Email)
	require.NotNil(t, user.Department)
	assert.Equal(t, dept, *user.Department)
	assert.Nil(t, user.Phone)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryFindByIDNotFound(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectQuery("FROM users WHERE id = \\$1").WithArgs("missing").WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryCreateDuplicateEmail(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectExec("INSERT INTO users").WillReturnError(&pq.Error{Code: "23505"})

	err := repo.Create(context.Background(), &models.User{ID: "u1", Name: "A", Email: "a@city.gov", Role: models.RoleStaff})
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryListByRoleAndDepartment(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "name", "email", "password_hash", "role", "department", "phone", "created_at", "updated_at"}).
		AddRow("s1", "One", "one@city.gov", "hash", "staff", "General", nil, now, now).
		AddRow("s2", "Two", "two@city.gov", "hash", "staff", "General", "555", now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE 1=1 AND role = $1 AND department = $2 ORDER BY seq")).
		WithArgs(models.RoleStaff, "General").
		WillReturnRows(rows)

	role := models.RoleStaff
	users, err := repo.List(context.Background(), models.UserFilter{Role: &role, Department: "General"})
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "s1", users[0].ID)
	require.NotNil(t, users[1].Phone)
	assert.Equal(t, "555", *users[1].Phone)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDepartmentRepositoryCreateDuplicate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDepartmentRepository(db)

	mock.ExpectQuery("INSERT INTO departments").WillReturnError(&pq.Error{Code: "23505"})

	_, err := repo.Create(context.Background(), "water supply", time.Now())
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDepartmentRepositoryList(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDepartmentRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"name", "position", "created_at"}).
		AddRow("Roads & Infrastructure", 1, now).
		AddRow("Water Supply", 2, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM departments ORDER BY position")).WillReturnRows(rows)

	depts, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, depts, 2)
	assert.Equal(t, "Water Supply", depts[1].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}
