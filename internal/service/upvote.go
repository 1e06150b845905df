package service

import (
	"time"

	"github.com/lib/pq"

	"github.com/noah-isme/civic-issue-api/internal/models"
)

// ApplyUpvoteToggle adds or removes userID from the issue's supporters, recomputes count and priority,
// and stamps UpdatedAt. A move into high or critical yields one escalation event addressed to the
// assignee (if any) and every admin. Moving down to a lower tier yields nothing.
func ApplyUpvoteToggle(issue models.Issue, userID string, now time.Time, classifier *PriorityClassifier) (models.Issue, []NotificationEvent) {
	previous := issue.Priority

	next := make(pq.StringArray, 0, len(issue.Upvotes)+1)
	removed := false
	for _, id := range issue.Upvotes {
		if id == userID {
			removed = true
			continue
		}
		next = append(next, id)
	}
	if !removed {
		next = append(next, userID)
	}

	issue.Upvotes = next
	issue.UpvoteCount = len(next)
	issue.Priority = classifier.Classify(issue.UpvoteCount)
	issue.UpdatedAt = now

	if issue.Priority == previous || issue.Priority == models.PriorityNormal {
		return issue, nil
	}
	if rank(issue.Priority) < rank(previous) {
		return issue, nil
	}
	return issue, []NotificationEvent{escalationEvent(issue)}
}

func rank(priority models.IssuePriority) int {
	switch priority {
	case models.PriorityCritical:
		return 2
	case models.PriorityHigh:
		return 1
	default:
		return 0
	}
}
