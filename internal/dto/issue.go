package dto

import "github.com/noah-isme/civic-issue-api/internal/models"

// CreateIssueRequest captures POST /issues payload.
type CreateIssueRequest struct {
	Title       string               `json:"title" validate:"required,max=200"`
	Description string               `json:"description" validate:"required"`
	Category    models.IssueCategory `json:"category" validate:"required,oneof=road water electricity sanitation streetlight drainage other"`
	Location    string               `json:"location" validate:"required"`
	Latitude    *float64             `json:"latitude,omitempty" validate:"omitempty,gte=-90,lte=90"`
	Longitude   *float64             `json:"longitude,omitempty" validate:"omitempty,gte=-180,lte=180"`
	ImageURL    *string              `json:"image_url,omitempty"`
}

// UpdateStatusRequest captures PATCH /issues/:id/status payload.
type UpdateStatusRequest struct {
	Status             models.IssueStatus `json:"status" validate:"required,oneof=pending inspection_scheduled in_progress resolved rejected"`
	ResolutionNote     *string            `json:"resolution_note,omitempty"`
	ResolutionImageURL *string            `json:"resolution_image_url,omitempty"`
	RejectionReason    *string            `json:"rejection_reason,omitempty"`
}

// AssignIssueRequest captures POST /issues/:id/assign payload. An empty staff id reruns auto-assignment.
type AssignIssueRequest struct {
	StaffID *string `json:"staff_id,omitempty"`
}

// FeedbackRequest captures POST /issues/:id/feedback payload.
type FeedbackRequest struct {
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Comment string `json:"comment" validate:"max=1000"`
}

// CommentRequest captures POST /issues/:id/comments payload.
type CommentRequest struct {
	Message string `json:"message" validate:"required,max=2000"`
}

// UpvoteResponse reports the state after a toggle.
type UpvoteResponse struct {
	IssueID     string               `json:"issue_id"`
	Upvoted     bool                 `json:"upvoted"`
	UpvoteCount int                  `json:"upvote_count"`
	Priority    models.IssuePriority `json:"priority"`
}

// EvidenceUploadResponse is returned by POST /issues/evidence.
type EvidenceUploadResponse struct {
	ImageURL    string                    `json:"image_url"`
	ExpiresAt   string                    `json:"expires_at"`
	ContentType string                    `json:"content_type"`
	Suggestion  *ClassificationSuggestion `json:"suggestion,omitempty"`
}

// ClassificationSuggestion pre-fills the report form from an evidence photo.
type ClassificationSuggestion struct {
	Category    models.IssueCategory `json:"category"`
	Title       string               `json:"title"`
	Description string               `json:"description"`
	Label       string               `json:"label"`
	Confidence  float64              `json:"confidence,omitempty"`
}

// SLASweepResponse reports the outcome of a manual sweep.
type SLASweepResponse struct {
	Scanned        int `json:"scanned"`
	MarkedOverdue  int `json:"marked_overdue"`
	WarningsRaised int `json:"warnings_raised"`
}
