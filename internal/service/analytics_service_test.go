package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/civic-issue-api/internal/models"
	appErrors "github.com/noah-isme/civic-issue-api/pkg/errors"
)

type stubCacheRepo struct {
	store   map[string][]byte
	deletes []string
}

func (s *stubCacheRepo) Get(_ context.Context, key string, dest interface{}) error {
	raw, ok := s.store[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (s *stubCacheRepo) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	if s.store == nil {
		s.store = make(map[string][]byte)
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	s.store[key] = raw
	return nil
}

func (s *stubCacheRepo) DeleteByPattern(_ context.Context, pattern string) error {
	s.deletes = append(s.deletes, pattern)
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range s.store {
		if strings.HasPrefix(key, prefix) {
			delete(s.store, key)
		}
	}
	return nil
}

func newAnalyticsFixture(t *testing.T, cache *CacheService) (*civicFixture, *AnalyticsService) {
	t.Helper()
	f := newCivicFixture(t)
	svc := NewAnalyticsService(AnalyticsServiceParams{
		Issues:      f.issues,
		Users:       f.users,
		Departments: f.departments,
		Cache:       cache,
		Clock:       f.clock,
		Logger:      zap.NewNop(),
	})
	return f, svc
}

func seedDashboard(t *testing.T, f *civicFixture) (models.User, models.User) {
	t.Helper()
	water := f.addUser(t, "Wati", models.RoleStaff, DepartmentWater)
	roads := f.addUser(t, "Rudi", models.RoleStaff, DepartmentRoads)

	f.seedIssue(t, func(issue *models.Issue) {
		assignTo(water)(issue)
		issue.Department = strPtr(DepartmentWater)
		issue.Status = models.StatusResolved
		issue.ResolvedAt = timePtr(issue.CreatedAt.Add(10 * time.Hour))
		issue.UpvoteCount = 3
	})
	f.seedIssue(t, func(issue *models.Issue) {
		assignTo(water)(issue)
		issue.Department = strPtr(DepartmentWater)
		issue.Status = models.StatusInProgress
		issue.IsOverdue = true
		issue.UpvoteCount = 1
	})
	f.seedIssue(t, func(issue *models.Issue) {
		assignTo(roads)(issue)
		issue.Category = models.CategoryRoad
		issue.Department = strPtr(DepartmentRoads)
		issue.Status = models.StatusResolved
		issue.ResolvedAt = timePtr(issue.CreatedAt.Add(5 * time.Hour))
		issue.UpvoteCount = 6
	})
	f.seedIssue(t, func(issue *models.Issue) {
		issue.Category = models.CategoryStreetlight
		issue.Department = strPtr(DepartmentElectricity)
		issue.Status = models.StatusInspectionScheduled
		issue.UpvoteCount = 2
	})
	f.seedIssue(t, func(issue *models.Issue) {
		issue.Category = models.CategoryElectricity
		issue.Department = strPtr(DepartmentElectricity)
		issue.Status = models.StatusRejected
	})
	return water, roads
}

func TestAnalyticsSummary(t *testing.T) {
	f, svc := newAnalyticsFixture(t, nil)
	water, roads := seedDashboard(t, f)

	summary, cached, err := svc.Summary(context.Background())
	require.NoError(t, err)
	assert.False(t, cached)

	assert.Equal(t, 5, summary.TotalIssues)
	assert.Equal(t, 0, summary.Pending)
	assert.Equal(t, 2, summary.InProgress)
	assert.Equal(t, 2, summary.Resolved)
	assert.Equal(t, 1, summary.Rejected)
	assert.Equal(t, 1, summary.Overdue)
	assert.Equal(t, 8, summary.AverageResolutionHours)
	assert.Equal(t, f.now, summary.GeneratedAt)

	require.Len(t, summary.Categories, 3)
	assert.Equal(t, models.CategoryBreakdown{Category: "Road", Count: 1, TotalUpvotes: 6}, summary.Categories[0])
	assert.Equal(t, models.CategoryBreakdown{Category: "Water", Count: 2, TotalUpvotes: 4}, summary.Categories[1])
	assert.Equal(t, models.CategoryBreakdown{Category: "Electricity", Count: 2, TotalUpvotes: 2}, summary.Categories[2])

	require.Len(t, summary.Departments, 3)
	assert.Equal(t, models.DepartmentPerformance{Department: DepartmentRoads, Total: 1, Resolved: 1, ResolutionRate: 100}, summary.Departments[0])
	assert.Equal(t, models.DepartmentPerformance{Department: DepartmentWater, Total: 2, Resolved: 1, ResolutionRate: 50}, summary.Departments[1])
	assert.Equal(t, models.DepartmentPerformance{Department: DepartmentElectricity, Total: 2, Resolved: 0, ResolutionRate: 0}, summary.Departments[2])

	require.Len(t, summary.Staff, 2)
	assert.Equal(t, models.StaffMetric{StaffID: water.ID, Name: "Wati", Department: DepartmentWater, Active: 1, Resolved: 1, Overdue: 1}, summary.Staff[0])
	assert.Equal(t, models.StaffMetric{StaffID: roads.ID, Name: "Rudi", Department: DepartmentRoads, Active: 0, Resolved: 1}, summary.Staff[1])

	require.Len(t, summary.Trending, 3)
	assert.Equal(t, 6, summary.Trending[0].UpvoteCount)
	assert.Equal(t, 3, summary.Trending[1].UpvoteCount)
	assert.Equal(t, 2, summary.Trending[2].UpvoteCount)
}

func TestAnalyticsSummaryEmpty(t *testing.T) {
	_, svc := newAnalyticsFixture(t, nil)

	summary, _, err := svc.Summary(context.Background())
	require.NoError(t, err)
	assert.Zero(t, summary.TotalIssues)
	assert.Zero(t, summary.AverageResolutionHours)
	assert.Empty(t, summary.Categories)
	assert.Empty(t, summary.Departments)
	assert.Empty(t, summary.Trending)
}

func TestAnalyticsSummaryCaching(t *testing.T) {
	repo := &stubCacheRepo{}
	cache := NewCacheService(repo, NewMetricsService(), time.Minute, zap.NewNop(), true)
	f, svc := newAnalyticsFixture(t, cache)
	seedDashboard(t, f)

	first, cached, err := svc.Summary(context.Background())
	require.NoError(t, err)
	assert.False(t, cached)

	f.seedIssue(t, nil)
	second, cached, err := svc.Summary(context.Background())
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Equal(t, first.TotalIssues, second.TotalIssues)

	svc.Invalidate(context.Background())
	assert.Equal(t, []string{"analytics:*"}, repo.deletes)

	third, cached, err := svc.Summary(context.Background())
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, first.TotalIssues+1, third.TotalIssues)
}

func TestAnalyticsExport(t *testing.T) {
	f, svc := newAnalyticsFixture(t, nil)
	seedDashboard(t, f)

	file, err := svc.Export(context.Background(), ExportStaff, ExportCSV)
	require.NoError(t, err)
	assert.Equal(t, "text/csv", file.ContentType)
	assert.Equal(t, "staff-20250310.csv", file.Filename)
	rows, err := csv.NewReader(bytes.NewReader(file.Data)).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Staff", "Department", "Active", "Resolved", "Overdue"}, rows[0])
	assert.Equal(t, []string{"Wati", DepartmentWater, "1", "1", "1"}, rows[1])

	file, err = svc.Export(context.Background(), ExportDepartments, ExportPDF)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", file.ContentType)
	assert.Equal(t, "departments-20250310.pdf", file.Filename)
	assert.True(t, bytes.HasPrefix(file.Data, []byte("%PDF")))

	_, err = svc.Export(context.Background(), ExportStaff, "xlsx")
	assert.ErrorIs(t, err, appErrors.ErrValidation)
	_, err = svc.Export(context.Background(), "issues", ExportCSV)
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}
