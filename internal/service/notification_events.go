package service

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/noah-isme/civic-issue-api/internal/models"
)

// NotificationEvent is a pending notification produced by a state change. The dispatcher
// expands it into one stored notification per recipient, adding every admin when NotifyAdmins is set.
type NotificationEvent struct {
	Type         models.NotificationType
	Priority     models.NotificationPriority
	Title        string
	Message      string
	IssueID      string
	Recipients   []string
	NotifyAdmins bool
}

func assignmentEvent(issue models.Issue, assigneeID string) NotificationEvent {
	return NotificationEvent{
		Type:       models.NotificationAssignment,
		Priority:   NotificationPriorityFor(issue.Priority),
		Title:      "New Issue Assigned",
		Message:    fmt.Sprintf("You've been assigned: %q", issue.Title),
		IssueID:    issue.ID,
		Recipients: []string{assigneeID},
	}
}

func escalationEvent(issue models.Issue) NotificationEvent {
	title := "High Priority Alert"
	if issue.Priority == models.PriorityCritical {
		title = "CRITICAL Priority!"
	}
	var recipients []string
	if issue.AssignedTo != nil {
		recipients = []string{*issue.AssignedTo}
	}
	return NotificationEvent{
		Type:         models.NotificationEscalation,
		Priority:     NotificationPriorityFor(issue.Priority),
		Title:        title,
		Message:      fmt.Sprintf("Issue %q has been escalated to %s priority (%d community supports)", issue.Title, strings.ToUpper(string(issue.Priority)), issue.UpvoteCount),
		IssueID:      issue.ID,
		Recipients:   recipients,
		NotifyAdmins: true,
	}
}

func overdueEvent(issue models.Issue) NotificationEvent {
	return NotificationEvent{
		Type:         models.NotificationSLAOverdue,
		Priority:     models.NotificationPriorityUrgent,
		Title:        "SLA OVERDUE",
		Message:      fmt.Sprintf("Issue %q has exceeded its SLA deadline!", issue.Title),
		IssueID:      issue.ID,
		Recipients:   []string{*issue.AssignedTo},
		NotifyAdmins: true,
	}
}

func warningEvent(issue models.Issue, remaining time.Duration) NotificationEvent {
	return NotificationEvent{
		Type:       models.NotificationSLAWarning,
		Priority:   models.NotificationPriorityHigh,
		Title:      "SLA Deadline Approaching",
		Message:    fmt.Sprintf("Issue %q is due in %d hours", issue.Title, int(math.Floor(remaining.Hours()))),
		IssueID:    issue.ID,
		Recipients: []string{*issue.AssignedTo},
	}
}

func statusUpdateEvent(issue models.Issue) NotificationEvent {
	return NotificationEvent{
		Type:       models.NotificationStatusUpdate,
		Priority:   models.NotificationPriorityNormal,
		Title:      "Issue Status Updated",
		Message:    fmt.Sprintf("Your issue %q is now %s", issue.Title, strings.ReplaceAll(string(issue.Status), "_", " ")),
		IssueID:    issue.ID,
		Recipients: []string{issue.ReportedBy},
	}
}
