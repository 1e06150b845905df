package models

import "time"

// NotificationType identifies why a notification was raised.
type NotificationType string

const (
	NotificationAssignment   NotificationType = "assignment"
	NotificationEscalation   NotificationType = "escalation"
	NotificationSLAWarning   NotificationType = "sla_warning"
	NotificationSLAOverdue   NotificationType = "sla_overdue"
	NotificationStatusUpdate NotificationType = "status_update"
)

// NotificationPriority controls how loudly a notification is surfaced.
type NotificationPriority string

const (
	NotificationPriorityNormal NotificationPriority = "normal"
	NotificationPriorityHigh   NotificationPriority = "high"
	NotificationPriorityUrgent NotificationPriority = "urgent"
)

// Notification is an append-only message addressed to one user.
type Notification struct {
	ID        string               `db:"id" json:"id"`
	UserID    string               `db:"user_id" json:"user_id"`
	Type      NotificationType     `db:"type" json:"type"`
	Title     string               `db:"title" json:"title"`
	Message   string               `db:"message" json:"message"`
	IssueID   *string              `db:"issue_id" json:"issue_id,omitempty"`
	CreatedAt time.Time            `db:"created_at" json:"created_at"`
	Read      bool                 `db:"read" json:"read"`
	Priority  NotificationPriority `db:"priority" json:"priority"`
}

// Comment is a message in an issue thread.
type Comment struct {
	ID        string    `db:"id" json:"id"`
	IssueID   string    `db:"issue_id" json:"issue_id"`
	UserID    string    `db:"user_id" json:"user_id"`
	UserName  string    `db:"user_name" json:"user_name"`
	UserRole  UserRole  `db:"user_role" json:"user_role"`
	Message   string    `db:"message" json:"message"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
