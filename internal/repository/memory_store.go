package repository

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/lib/pq"

	"github.com/noah-isme/civic-issue-api/internal/models"
)

// IssueMemoryStore keeps issues in process. Reads and writes hand out copies.
type IssueMemoryStore struct {
	mu     sync.RWMutex
	issues map[string]models.Issue
	order  []string
}

// NewIssueMemoryStore constructs an empty issue store.
func NewIssueMemoryStore() *IssueMemoryStore {
	return &IssueMemoryStore{issues: make(map[string]models.Issue)}
}

// Create inserts a new issue.
func (s *IssueMemoryStore) Create(_ context.Context, issue *models.Issue) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.issues[issue.ID]; exists {
		return ErrDuplicate
	}
	stored := issue.Clone()
	if stored.Upvotes == nil {
		stored.Upvotes = pq.StringArray{}
	}
	s.issues[issue.ID] = stored
	s.order = append(s.order, issue.ID)
	return nil
}

// FindByID returns a copy of the issue or sql.ErrNoRows.
func (s *IssueMemoryStore) FindByID(_ context.Context, id string) (*models.Issue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	issue, ok := s.issues[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	out := issue.Clone()
	return &out, nil
}

// List filters, sorts newest first and paginates.
func (s *IssueMemoryStore) List(_ context.Context, filter models.IssueFilter) ([]models.Issue, int, error) {
	matched := s.collect(filter.Matches)
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	page, pageSize := normalizePage(filter.Page, filter.PageSize)
	total := len(matched)
	start := (page - 1) * pageSize
	if start >= total {
		return []models.Issue{}, total, nil
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

// ListAll returns every issue in insertion order.
func (s *IssueMemoryStore) ListAll(_ context.Context) ([]models.Issue, error) {
	return s.collect(func(models.Issue) bool { return true }), nil
}

// ListActiveByAssignees returns unresolved issues held by any of the given staff members.
func (s *IssueMemoryStore) ListActiveByAssignees(_ context.Context, assigneeIDs []string) ([]models.Issue, error) {
	wanted := make(map[string]struct{}, len(assigneeIDs))
	for _, id := range assigneeIDs {
		wanted[id] = struct{}{}
	}
	return s.collect(func(issue models.Issue) bool {
		if issue.AssignedTo == nil || issue.Status == models.StatusResolved {
			return false
		}
		_, ok := wanted[*issue.AssignedTo]
		return ok
	}), nil
}

// ListMonitored returns unresolved, assigned issues that carry an SLA deadline.
func (s *IssueMemoryStore) ListMonitored(_ context.Context) ([]models.Issue, error) {
	return s.collect(func(issue models.Issue) bool {
		return issue.Status != models.StatusResolved && issue.AssignedTo != nil && issue.SLADeadline != nil
	}), nil
}

// Mutate applies fn to a copy of the issue under the write lock and stores it when fn succeeds.
func (s *IssueMemoryStore) Mutate(_ context.Context, id string, fn func(*models.Issue) error) (*models.Issue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.issues[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	working := current.Clone()
	if err := fn(&working); err != nil {
		return nil, err
	}
	s.issues[id] = working.Clone()
	return &working, nil
}

func (s *IssueMemoryStore) collect(keep func(models.Issue) bool) []models.Issue {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Issue, 0, len(s.order))
	for _, id := range s.order {
		issue := s.issues[id]
		if keep(issue) {
			out = append(out, issue.Clone())
		}
	}
	return out
}

// UserMemoryStore keeps the user directory in process.
type UserMemoryStore struct {
	mu      sync.RWMutex
	users   []models.User
	byEmail map[string]int
	byID    map[string]int
}

// NewUserMemoryStore constructs an empty user store.
func NewUserMemoryStore() *UserMemoryStore {
	return &UserMemoryStore{byEmail: make(map[string]int), byID: make(map[string]int)}
}

// Create appends a user, rejecting a case-insensitive email clash.
func (s *UserMemoryStore) Create(_ context.Context, user *models.User) error {
	key := strings.ToLower(strings.TrimSpace(user.Email))
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byEmail[key]; exists {
		return ErrDuplicate
	}
	if _, exists := s.byID[user.ID]; exists {
		return ErrDuplicate
	}
	s.users = append(s.users, user.Clone())
	s.byEmail[key] = len(s.users) - 1
	s.byID[user.ID] = len(s.users) - 1
	return nil
}

// FindByEmail returns a user by email ignoring case.
func (s *UserMemoryStore) FindByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.byEmail[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return nil, sql.ErrNoRows
	}
	out := s.users[idx].Clone()
	return &out, nil
}

// FindByID returns a user by identifier.
func (s *UserMemoryStore) FindByID(_ context.Context, id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.byID[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	out := s.users[idx].Clone()
	return &out, nil
}

// List returns users in directory order.
func (s *UserMemoryStore) List(_ context.Context, filter models.UserFilter) ([]models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.User, 0, len(s.users))
	for _, user := range s.users {
		if filter.Role != nil && user.Role != *filter.Role {
			continue
		}
		if filter.Department != "" && !user.InDepartment(filter.Department) {
			continue
		}
		out = append(out, user.Clone())
	}
	return out, nil
}

// DepartmentMemoryStore keeps the ordered department list in process.
type DepartmentMemoryStore struct {
	mu    sync.RWMutex
	depts []models.Department
}

// NewDepartmentMemoryStore constructs an empty department store.
func NewDepartmentMemoryStore() *DepartmentMemoryStore {
	return &DepartmentMemoryStore{}
}

// Create appends a department unless one with the same name ignoring case exists.
func (s *DepartmentMemoryStore) Create(_ context.Context, name string, createdAt time.Time) (*models.Department, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.depts {
		if strings.EqualFold(d.Name, name) {
			return nil, ErrDuplicate
		}
	}
	dept := models.Department{Name: name, Position: len(s.depts) + 1, CreatedAt: createdAt}
	s.depts = append(s.depts, dept)
	return &dept, nil
}

// FindByName looks a department up ignoring case.
func (s *DepartmentMemoryStore) FindByName(_ context.Context, name string) (*models.Department, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, d := range s.depts {
		if strings.EqualFold(d.Name, name) {
			out := d
			return &out, nil
		}
	}
	return nil, sql.ErrNoRows
}

// List returns departments in insertion order.
func (s *DepartmentMemoryStore) List(_ context.Context) ([]models.Department, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Department(nil), s.depts...), nil
}

type issueNotificationKey struct {
	issueID string
	kind    models.NotificationType
}

// NotificationMemoryStore keeps the notification log in process with an (issue, type) index.
type NotificationMemoryStore struct {
	mu      sync.RWMutex
	items   []models.Notification
	byIssue map[issueNotificationKey]struct{}
}

// NewNotificationMemoryStore constructs an empty notification store.
func NewNotificationMemoryStore() *NotificationMemoryStore {
	return &NotificationMemoryStore{byIssue: make(map[issueNotificationKey]struct{})}
}

// Append adds a batch of notifications under one lock.
func (s *NotificationMemoryStore) Append(_ context.Context, items []models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range items {
		s.items = append(s.items, n)
		if n.IssueID != nil {
			s.byIssue[issueNotificationKey{issueID: *n.IssueID, kind: n.Type}] = struct{}{}
		}
	}
	return nil
}

// ListForUser returns a user's notifications newest first.
func (s *NotificationMemoryStore) ListForUser(_ context.Context, userID string, unreadOnly bool) ([]models.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Notification, 0)
	for i := len(s.items) - 1; i >= 0; i-- {
		n := s.items[i]
		if n.UserID != userID || (unreadOnly && n.Read) {
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

// CountUnread returns how many unread notifications a user has.
func (s *NotificationMemoryStore) CountUnread(_ context.Context, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, n := range s.items {
		if n.UserID == userID && !n.Read {
			count++
		}
	}
	return count, nil
}

// MarkRead flags one of the user's notifications as read.
func (s *NotificationMemoryStore) MarkRead(_ context.Context, id, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		if s.items[i].ID == id && s.items[i].UserID == userID {
			s.items[i].Read = true
			return true, nil
		}
	}
	return false, nil
}

// MarkAllRead flags every unread notification of the user as read.
func (s *NotificationMemoryStore) MarkAllRead(_ context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed := 0
	for i := range s.items {
		if s.items[i].UserID == userID && !s.items[i].Read {
			s.items[i].Read = true
			changed++
		}
	}
	return changed, nil
}

// HasIssueNotification reports whether any notification of the given type exists for the issue.
func (s *NotificationMemoryStore) HasIssueNotification(_ context.Context, issueID string, notificationType models.NotificationType) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byIssue[issueNotificationKey{issueID: issueID, kind: notificationType}]
	return ok, nil
}

// All returns every notification in append order.
func (s *NotificationMemoryStore) All() []models.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Notification(nil), s.items...)
}

// CommentMemoryStore keeps issue threads in process.
type CommentMemoryStore struct {
	mu      sync.RWMutex
	threads map[string][]models.Comment
}

// NewCommentMemoryStore constructs an empty comment store.
func NewCommentMemoryStore() *CommentMemoryStore {
	return &CommentMemoryStore{threads: make(map[string][]models.Comment)}
}

// Create appends a comment to its issue thread.
func (s *CommentMemoryStore) Create(_ context.Context, comment *models.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.threads[comment.IssueID] = append(s.threads[comment.IssueID], *comment)
	return nil
}

// ListByIssue returns the thread oldest first.
func (s *CommentMemoryStore) ListByIssue(_ context.Context, issueID string) ([]models.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Comment{}, s.threads[issueID]...), nil
}
