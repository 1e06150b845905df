package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/civic-issue-api/internal/dto"
	"github.com/noah-isme/civic-issue-api/internal/models"
	"github.com/noah-isme/civic-issue-api/internal/repository"
	appErrors "github.com/noah-isme/civic-issue-api/pkg/errors"
)

type directoryUserStore interface {
	Create(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	List(ctx context.Context, filter models.UserFilter) ([]models.User, error)
}

type directoryDepartmentStore interface {
	Create(ctx context.Context, name string, createdAt time.Time) (*models.Department, error)
	FindByName(ctx context.Context, name string) (*models.Department, error)
	List(ctx context.Context) ([]models.Department, error)
}

// DirectoryService manages departments, staff accounts and citizen sign-up.
type DirectoryService struct {
	users       directoryUserStore
	departments directoryDepartmentStore
	now         Clock
	logger      *zap.Logger
	bcryptCost  int
}

// NewDirectoryService constructs a DirectoryService.
func NewDirectoryService(users directoryUserStore, departments directoryDepartmentStore, clock Clock, logger *zap.Logger) *DirectoryService {
	if clock == nil {
		clock = systemClock
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DirectoryService{users: users, departments: departments, now: clock, logger: logger, bcryptCost: bcrypt.DefaultCost}
}

// AddDepartment appends a department. Names are trimmed and compared ignoring case.
func (s *DirectoryService) AddDepartment(ctx context.Context, name string) (*models.Department, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, appErrors.Clone(appErrors.ErrMissingField, "department name is required")
	}

	dept, err := s.departments.Create(ctx, name, s.now())
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrDuplicateDepartment, "department "+name+" already exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create department")
	}
	s.logger.Info("department added", zap.String("department", dept.Name))
	return dept, nil
}

// EnsureDepartments adds each of names that the directory does not already hold.
func (s *DirectoryService) EnsureDepartments(ctx context.Context, names []string) error {
	for _, name := range names {
		if _, err := s.AddDepartment(ctx, name); err != nil && !errors.Is(err, appErrors.ErrDuplicateDepartment) {
			return err
		}
	}
	return nil
}

// ListDepartments returns departments in directory order.
func (s *DirectoryService) ListDepartments(ctx context.Context) ([]models.Department, error) {
	depts, err := s.departments.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list departments")
	}
	return depts, nil
}

// CreateStaffMember registers a staff account in an existing department.
func (s *DirectoryService) CreateStaffMember(ctx context.Context, req dto.CreateStaffRequest) (*models.User, error) {
	name := strings.TrimSpace(req.Name)
	email := strings.ToLower(strings.TrimSpace(req.Email))
	password := strings.TrimSpace(req.Password)
	department := strings.TrimSpace(req.Department)
	if name == "" || email == "" || password == "" || department == "" {
		return nil, appErrors.Clone(appErrors.ErrMissingField, "name, email, password and department are required")
	}

	if err := s.ensureEmailFree(ctx, email); err != nil {
		return nil, err
	}

	dept, err := s.departments.FindByName(ctx, department)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrUnknownDepartment, "department "+department+" does not exist")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load department")
	}

	deptName := dept.Name
	user, err := s.newUser(name, email, password, models.RoleStaff, &deptName, trimmedOptional(req.Phone))
	if err != nil {
		return nil, err
	}
	if err := s.create(ctx, user); err != nil {
		return nil, err
	}
	s.logger.Info("staff member created", zap.String("user_id", user.ID), zap.String("department", deptName))
	return user, nil
}

// RegisterCitizen creates a citizen account through self sign-up.
func (s *DirectoryService) RegisterCitizen(ctx context.Context, req dto.RegisterRequest) (*models.User, error) {
	name := strings.TrimSpace(req.Name)
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if name == "" || email == "" || strings.TrimSpace(req.Password) == "" {
		return nil, appErrors.Clone(appErrors.ErrMissingField, "name, email and password are required")
	}
	if err := s.ensureEmailFree(ctx, email); err != nil {
		return nil, err
	}

	user, err := s.newUser(name, email, req.Password, models.RoleCitizen, nil, trimmedOptional(req.Phone))
	if err != nil {
		return nil, err
	}
	if err := s.create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// CreateAdmin provisions an administrator. Used by the demo seed.
func (s *DirectoryService) CreateAdmin(ctx context.Context, name, email, password string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if strings.TrimSpace(name) == "" || email == "" || strings.TrimSpace(password) == "" {
		return nil, appErrors.Clone(appErrors.ErrMissingField, "name, email and password are required")
	}
	if err := s.ensureEmailFree(ctx, email); err != nil {
		return nil, err
	}
	user, err := s.newUser(strings.TrimSpace(name), email, password, models.RoleAdmin, nil, nil)
	if err != nil {
		return nil, err
	}
	if err := s.create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// ListStaff returns staff members in directory order, optionally for one department.
func (s *DirectoryService) ListStaff(ctx context.Context, department string) ([]models.User, error) {
	role := models.RoleStaff
	return s.ListUsers(ctx, models.UserFilter{Role: &role, Department: strings.TrimSpace(department)})
}

// ListUsers returns users in directory order.
func (s *DirectoryService) ListUsers(ctx context.Context, filter models.UserFilter) ([]models.User, error) {
	users, err := s.users.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list users")
	}
	return users, nil
}

// FindUser returns a user by id.
func (s *DirectoryService) FindUser(ctx context.Context, id string) (*models.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	return user, nil
}

func (s *DirectoryService) ensureEmailFree(ctx context.Context, email string) error {
	_, err := s.users.FindByEmail(ctx, email)
	if err == nil {
		return appErrors.Clone(appErrors.ErrDuplicateEmail, "a user with email "+email+" already exists")
	}
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email")
}

// maxPasswordBytes is the longest input bcrypt accepts.
const maxPasswordBytes = 72

func (s *DirectoryService) newUser(name, email, password string, role models.UserRole, department, phone *string) (*models.User, error) {
	password = strings.TrimSpace(password)
	if len(password) > maxPasswordBytes {
		return nil, appErrors.Clone(appErrors.ErrValidation, "password must be at most 72 bytes")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}
	now := s.now()
	return &models.User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
		Department:   department,
		Phone:        phone,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

func (s *DirectoryService) create(ctx context.Context, user *models.User) error {
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return appErrors.Clone(appErrors.ErrDuplicateEmail, "a user with email "+user.Email+" already exists")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create user")
	}
	return nil
}

func trimmedOptional(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
