package models

import "time"

// AnalyticsSummary is the admin dashboard snapshot.
type AnalyticsSummary struct {
	TotalIssues            int                     `json:"total_issues"`
	Pending                int                     `json:"pending"`
	InProgress             int                     `json:"in_progress"`
	Resolved               int                     `json:"resolved"`
	Rejected               int                     `json:"rejected"`
	Overdue                int                     `json:"overdue"`
	AverageResolutionHours int                     `json:"average_resolution_hours"`
	Categories             []CategoryBreakdown     `json:"categories"`
	Departments            []DepartmentPerformance `json:"departments"`
	Staff                  []StaffMetric           `json:"staff"`
	Trending               []TrendingIssue         `json:"trending"`
	GeneratedAt            time.Time               `json:"generated_at"`
}

// CategoryBreakdown counts issues and community support per category group.
type CategoryBreakdown struct {
	Category     string `json:"category"`
	Count        int    `json:"count"`
	TotalUpvotes int    `json:"total_upvotes"`
}

// DepartmentPerformance summarises throughput for one department.
type DepartmentPerformance struct {
	Department     string `json:"department"`
	Total          int    `json:"total"`
	Resolved       int    `json:"resolved"`
	ResolutionRate int    `json:"resolution_rate"`
}

// StaffMetric summarises the workload of one staff member.
type StaffMetric struct {
	StaffID    string `json:"staff_id"`
	Name       string `json:"name"`
	Department string `json:"department"`
	Active     int    `json:"active"`
	Resolved   int    `json:"resolved"`
	Overdue    int    `json:"overdue"`
}

// TrendingIssue is an issue with notable community support.
type TrendingIssue struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Category    IssueCategory `json:"category"`
	UpvoteCount int           `json:"upvote_count"`
	Priority    IssuePriority `json:"priority"`
	Status      IssueStatus   `json:"status"`
}
