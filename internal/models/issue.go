package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// IssueCategory is the citizen-facing classification of a problem.
type IssueCategory string

const (
	CategoryRoad        IssueCategory = "road"
	CategoryWater       IssueCategory = "water"
	CategoryElectricity IssueCategory = "electricity"
	CategorySanitation  IssueCategory = "sanitation"
	CategoryStreetlight IssueCategory = "streetlight"
	CategoryDrainage    IssueCategory = "drainage"
	CategoryOther       IssueCategory = "other"
)

// IssueCategories lists every supported category in display order.
var IssueCategories = []IssueCategory{
	CategoryRoad,
	CategoryWater,
	CategoryElectricity,
	CategorySanitation,
	CategoryStreetlight,
	CategoryDrainage,
	CategoryOther,
}

// Valid reports whether c is a known category.
func (c IssueCategory) Valid() bool {
	for _, known := range IssueCategories {
		if c == known {
			return true
		}
	}
	return false
}

// IssueStatus captures the lifecycle stage of an issue.
type IssueStatus string

const (
	StatusPending             IssueStatus = "pending"
	StatusInspectionScheduled IssueStatus = "inspection_scheduled"
	StatusInProgress          IssueStatus = "in_progress"
	StatusResolved            IssueStatus = "resolved"
	StatusRejected            IssueStatus = "rejected"
)

// Valid reports whether s is a known status.
func (s IssueStatus) Valid() bool {
	switch s {
	case StatusPending, StatusInspectionScheduled, StatusInProgress, StatusResolved, StatusRejected:
		return true
	}
	return false
}

// IssuePriority is derived from community support.
type IssuePriority string

const (
	PriorityNormal   IssuePriority = "normal"
	PriorityHigh     IssuePriority = "high"
	PriorityCritical IssuePriority = "critical"
)

// Issue is a civic problem reported by a citizen.
type Issue struct {
	ID                 string         `db:"id" json:"id"`
	Title              string         `db:"title" json:"title"`
	Description        string         `db:"description" json:"description"`
	Category           IssueCategory  `db:"category" json:"category"`
	Location           string         `db:"location" json:"location"`
	Latitude           *float64       `db:"latitude" json:"latitude,omitempty"`
	Longitude          *float64       `db:"longitude" json:"longitude,omitempty"`
	ImageURL           *string        `db:"image_url" json:"image_url,omitempty"`
	ReportedBy         string         `db:"reported_by" json:"reported_by"`
	ReporterName       string         `db:"reporter_name" json:"reporter_name"`
	Status             IssueStatus    `db:"status" json:"status"`
	Department         *string        `db:"department" json:"department,omitempty"`
	AssignedTo         *string        `db:"assigned_to" json:"assigned_to,omitempty"`
	AssignedToName     *string        `db:"assigned_to_name" json:"assigned_to_name,omitempty"`
	CreatedAt          time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time      `db:"updated_at" json:"updated_at"`
	ResolvedAt         *time.Time     `db:"resolved_at" json:"resolved_at,omitempty"`
	ResolutionNote     *string        `db:"resolution_note" json:"resolution_note,omitempty"`
	ResolutionImageURL *string        `db:"resolution_image_url" json:"resolution_image_url,omitempty"`
	RejectionReason    *string        `db:"rejection_reason" json:"rejection_reason,omitempty"`
	Upvotes            pq.StringArray `db:"upvotes" json:"upvotes"`
	UpvoteCount        int            `db:"upvote_count" json:"upvote_count"`
	Priority           IssuePriority  `db:"priority" json:"priority"`
	SLADeadline        *time.Time     `db:"sla_deadline" json:"sla_deadline,omitempty"`
	IsOverdue          bool           `db:"is_overdue" json:"is_overdue"`
	Feedback           *IssueFeedback `db:"feedback" json:"feedback,omitempty"`
}

// HasUpvote reports whether userID currently supports the issue.
func (i *Issue) HasUpvote(userID string) bool {
	for _, id := range i.Upvotes {
		if id == userID {
			return true
		}
	}
	return false
}

// IsAssignedTo reports whether the issue is held by userID.
func (i *Issue) IsAssignedTo(userID string) bool {
	return i.AssignedTo != nil && *i.AssignedTo == userID
}

// Clone returns a deep copy so callers never share slices or pointers with a store.
func (i Issue) Clone() Issue {
	out := i
	out.Latitude = cloneFloat(i.Latitude)
	out.Longitude = cloneFloat(i.Longitude)
	out.ImageURL = cloneString(i.ImageURL)
	out.Department = cloneString(i.Department)
	out.AssignedTo = cloneString(i.AssignedTo)
	out.AssignedToName = cloneString(i.AssignedToName)
	out.ResolvedAt = cloneTime(i.ResolvedAt)
	out.ResolutionNote = cloneString(i.ResolutionNote)
	out.ResolutionImageURL = cloneString(i.ResolutionImageURL)
	out.RejectionReason = cloneString(i.RejectionReason)
	out.SLADeadline = cloneTime(i.SLADeadline)
	if i.Upvotes != nil {
		out.Upvotes = append(pq.StringArray(nil), i.Upvotes...)
	}
	if i.Feedback != nil {
		fb := *i.Feedback
		out.Feedback = &fb
	}
	return out
}

// IssueFeedback is the reporter's rating of a resolved issue, stored as JSONB.
type IssueFeedback struct {
	UserID    string    `json:"user_id"`
	UserName  string    `json:"user_name"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Value marshals feedback to JSON for persistence.
func (f IssueFeedback) Value() (driver.Value, error) {
	data, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("marshal issue feedback: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSONB payloads into feedback.
func (f *IssueFeedback) Scan(value interface{}) error {
	if value == nil {
		*f = IssueFeedback{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for IssueFeedback", value)
	}
	if len(data) == 0 {
		*f = IssueFeedback{}
		return nil
	}
	if err := json.Unmarshal(data, f); err != nil {
		return fmt.Errorf("unmarshal issue feedback: %w", err)
	}
	return nil
}

// IssueFilter narrows issue listings.
type IssueFilter struct {
	Status     *IssueStatus
	Category   *IssueCategory
	Priority   *IssuePriority
	Department string
	AssignedTo string
	ReportedBy string
	Overdue    *bool
	Page       int
	PageSize   int
}

// Matches reports whether issue satisfies every populated filter field.
func (f IssueFilter) Matches(issue Issue) bool {
	if f.Status != nil && issue.Status != *f.Status {
		return false
	}
	if f.Category != nil && issue.Category != *f.Category {
		return false
	}
	if f.Priority != nil && issue.Priority != *f.Priority {
		return false
	}
	if f.Department != "" && (issue.Department == nil || *issue.Department != f.Department) {
		return false
	}
	if f.AssignedTo != "" && !issue.IsAssignedTo(f.AssignedTo) {
		return false
	}
	if f.ReportedBy != "" && issue.ReportedBy != f.ReportedBy {
		return false
	}
	if f.Overdue != nil && issue.IsOverdue != *f.Overdue {
		return false
	}
	return true
}

func cloneString(v *string) *string {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}

func cloneTime(v *time.Time) *time.Time {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}
