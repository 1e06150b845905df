package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/civic-issue-api/internal/models"
	appErrors "github.com/noah-isme/civic-issue-api/pkg/errors"
	"github.com/noah-isme/civic-issue-api/pkg/export"
)

const (
	analyticsCachePrefix = "analytics:"
	analyticsSummaryKey  = analyticsCachePrefix + "summary"
	trendingThreshold    = 2
)

// ExportFormat selects the analytics export renderer.
type ExportFormat string

const (
	ExportCSV ExportFormat = "csv"
	ExportPDF ExportFormat = "pdf"
)

// ExportKind selects which analytics table is exported.
type ExportKind string

const (
	ExportStaff       ExportKind = "staff"
	ExportDepartments ExportKind = "departments"
)

type analyticsIssueReader interface {
	ListAll(ctx context.Context) ([]models.Issue, error)
}

type analyticsDirectory interface {
	List(ctx context.Context, filter models.UserFilter) ([]models.User, error)
}

type analyticsDepartments interface {
	List(ctx context.Context) ([]models.Department, error)
}

type datasetRenderer interface {
	Render(data export.Dataset) ([]byte, error)
	ContentType() string
	Extension() string
}

// ExportFile is a rendered analytics export.
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// AnalyticsService builds the admin dashboard summary and its exports.
type AnalyticsService struct {
	issues      analyticsIssueReader
	users       analyticsDirectory
	departments analyticsDepartments
	cache       *CacheService
	renderers   map[ExportFormat]datasetRenderer
	now         Clock
	logger      *zap.Logger
}

// AnalyticsServiceParams groups AnalyticsService collaborators.
type AnalyticsServiceParams struct {
	Issues      analyticsIssueReader
	Users       analyticsDirectory
	Departments analyticsDepartments
	Cache       *CacheService
	Clock       Clock
	Logger      *zap.Logger
}

// NewAnalyticsService constructs an analytics service.
func NewAnalyticsService(params AnalyticsServiceParams) *AnalyticsService {
	if params.Clock == nil {
		params.Clock = systemClock
	}
	if params.Logger == nil {
		params.Logger = zap.NewNop()
	}
	return &AnalyticsService{
		issues:      params.Issues,
		users:       params.Users,
		departments: params.Departments,
		cache:       params.Cache,
		renderers: map[ExportFormat]datasetRenderer{
			ExportCSV: export.NewCSVExporter(),
			ExportPDF: export.NewPDFExporter(),
		},
		now:    params.Clock,
		logger: params.Logger,
	}
}

// Summary returns the dashboard snapshot. The boolean reports whether it came from cache.
func (s *AnalyticsService) Summary(ctx context.Context) (*models.AnalyticsSummary, bool, error) {
	var cached models.AnalyticsSummary
	if hit, err := s.cache.Get(ctx, analyticsSummaryKey, &cached); err == nil && hit {
		return &cached, true, nil
	}

	summary, err := s.compute(ctx)
	if err != nil {
		return nil, false, err
	}
	_ = s.cache.Set(ctx, analyticsSummaryKey, summary, 0)
	return summary, false, nil
}

// Invalidate drops cached analytics after an issue write.
func (s *AnalyticsService) Invalidate(ctx context.Context) {
	_ = s.cache.Invalidate(ctx, analyticsCachePrefix+"*")
}

// Export renders one analytics table in the requested format.
func (s *AnalyticsService) Export(ctx context.Context, kind ExportKind, format ExportFormat) (*ExportFile, error) {
	renderer, ok := s.renderers[format]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}

	summary, _, err := s.Summary(ctx)
	if err != nil {
		return nil, err
	}

	var data export.Dataset
	switch kind {
	case ExportStaff, "":
		kind = ExportStaff
		data = export.Dataset{
			Title:   "Staff Workload",
			Headers: []string{"Staff", "Department", "Active", "Resolved", "Overdue"},
		}
		for _, m := range summary.Staff {
			data.Rows = append(data.Rows, []string{m.Name, m.Department, strconv.Itoa(m.Active), strconv.Itoa(m.Resolved), strconv.Itoa(m.Overdue)})
		}
	case ExportDepartments:
		data = export.Dataset{
			Title:   "Department Performance",
			Headers: []string{"Department", "Total", "Resolved", "Resolution Rate (%)"},
		}
		for _, d := range summary.Departments {
			data.Rows = append(data.Rows, []string{d.Department, strconv.Itoa(d.Total), strconv.Itoa(d.Resolved), strconv.Itoa(d.ResolutionRate)})
		}
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "kind must be staff or departments")
	}

	rendered, err := renderer.Render(data)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	return &ExportFile{
		Filename:    fmt.Sprintf("%s-%s.%s", kind, s.now().Format("20060102"), renderer.Extension()),
		ContentType: renderer.ContentType(),
		Data:        rendered,
	}, nil
}

func (s *AnalyticsService) compute(ctx context.Context) (*models.AnalyticsSummary, error) {
	issues, err := s.issues.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load issues")
	}
	role := models.RoleStaff
	staff, err := s.users.List(ctx, models.UserFilter{Role: &role})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load staff")
	}
	depts, err := s.departments.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load departments")
	}

	summary := &models.AnalyticsSummary{
		TotalIssues: len(issues),
		Categories:  categoryBreakdown(issues),
		Departments: departmentPerformance(depts, issues),
		Staff:       staffMetrics(staff, issues),
		Trending:    trendingIssues(issues),
		GeneratedAt: s.now(),
	}

	var resolvedHours float64
	var resolvedCount int
	for _, issue := range issues {
		switch issue.Status {
		case models.StatusPending:
			summary.Pending++
		case models.StatusInProgress, models.StatusInspectionScheduled:
			summary.InProgress++
		case models.StatusResolved:
			summary.Resolved++
		case models.StatusRejected:
			summary.Rejected++
		}
		if issue.IsOverdue {
			summary.Overdue++
		}
		if issue.ResolvedAt != nil {
			resolvedHours += issue.ResolvedAt.Sub(issue.CreatedAt).Hours()
			resolvedCount++
		}
	}
	if resolvedCount > 0 {
		summary.AverageResolutionHours = int(math.Round(resolvedHours / float64(resolvedCount)))
	}
	return summary, nil
}

var categoryGroups = []struct {
	label   string
	members []models.IssueCategory
}{
	{"Road", []models.IssueCategory{models.CategoryRoad}},
	{"Water", []models.IssueCategory{models.CategoryWater}},
	{"Electricity", []models.IssueCategory{models.CategoryElectricity, models.CategoryStreetlight}},
	{"Sanitation", []models.IssueCategory{models.CategorySanitation}},
	{"Drainage", []models.IssueCategory{models.CategoryDrainage}},
	{"Other", []models.IssueCategory{models.CategoryOther}},
}

func categoryBreakdown(issues []models.Issue) []models.CategoryBreakdown {
	out := make([]models.CategoryBreakdown, 0, len(categoryGroups))
	for _, group := range categoryGroups {
		entry := models.CategoryBreakdown{Category: group.label}
		for _, issue := range issues {
			for _, member := range group.members {
				if issue.Category == member {
					entry.Count++
					entry.TotalUpvotes += issue.UpvoteCount
				}
			}
		}
		if entry.Count > 0 {
			out = append(out, entry)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].TotalUpvotes > out[j].TotalUpvotes })
	return out
}

func departmentPerformance(depts []models.Department, issues []models.Issue) []models.DepartmentPerformance {
	out := make([]models.DepartmentPerformance, 0, len(depts))
	for _, dept := range depts {
		entry := models.DepartmentPerformance{Department: dept.Name}
		for _, issue := range issues {
			if issue.Department == nil || *issue.Department != dept.Name {
				continue
			}
			entry.Total++
			if issue.Status == models.StatusResolved {
				entry.Resolved++
			}
		}
		if entry.Total == 0 {
			continue
		}
		entry.ResolutionRate = int(math.Round(float64(entry.Resolved) / float64(entry.Total) * 100))
		out = append(out, entry)
	}
	return out
}

func staffMetrics(staff []models.User, issues []models.Issue) []models.StaffMetric {
	out := make([]models.StaffMetric, 0, len(staff))
	for _, member := range staff {
		entry := models.StaffMetric{StaffID: member.ID, Name: member.Name}
		if member.Department != nil {
			entry.Department = *member.Department
		}
		for _, issue := range issues {
			if !issue.IsAssignedTo(member.ID) {
				continue
			}
			if issue.Status == models.StatusResolved {
				entry.Resolved++
				continue
			}
			entry.Active++
			if issue.IsOverdue {
				entry.Overdue++
			}
		}
		out = append(out, entry)
	}
	return out
}

func trendingIssues(issues []models.Issue) []models.TrendingIssue {
	out := make([]models.TrendingIssue, 0)
	for _, issue := range issues {
		if issue.UpvoteCount < trendingThreshold {
			continue
		}
		out = append(out, models.TrendingIssue{
			ID:          issue.ID,
			Title:       strings.TrimSpace(issue.Title),
			Category:    issue.Category,
			UpvoteCount: issue.UpvoteCount,
			Priority:    issue.Priority,
			Status:      issue.Status,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].UpvoteCount > out[j].UpvoteCount })
	return out
}
