package service

import (
	"time"

	"github.com/noah-isme/civic-issue-api/internal/models"
)

// Clock returns the current instant. Services take one so tests can pin time.
type Clock func() time.Time

func systemClock() time.Time {
	return time.Now().UTC()
}

const (
	DefaultHighThreshold     = 5
	DefaultCriticalThreshold = 10
)

// PriorityClassifier maps community support onto a priority tier.
type PriorityClassifier struct {
	high     int
	critical int
}

// NewPriorityClassifier builds a classifier. Non-positive thresholds fall back to the defaults
// and a critical threshold below the high one is raised to match it.
func NewPriorityClassifier(high, critical int) *PriorityClassifier {
	if high <= 0 {
		high = DefaultHighThreshold
	}
	if critical <= 0 {
		critical = DefaultCriticalThreshold
	}
	if critical < high {
		critical = high
	}
	return &PriorityClassifier{high: high, critical: critical}
}

// Classify returns the tier for upvoteCount. Negative counts are treated as zero.
func (c *PriorityClassifier) Classify(upvoteCount int) models.IssuePriority {
	if upvoteCount < 0 {
		upvoteCount = 0
	}
	switch {
	case upvoteCount >= c.critical:
		return models.PriorityCritical
	case upvoteCount >= c.high:
		return models.PriorityHigh
	default:
		return models.PriorityNormal
	}
}

// Thresholds exposes the configured high and critical thresholds.
func (c *PriorityClassifier) Thresholds() (high, critical int) {
	return c.high, c.critical
}

// NotificationPriorityFor maps an issue priority onto the urgency of the notification about it.
func NotificationPriorityFor(priority models.IssuePriority) models.NotificationPriority {
	switch priority {
	case models.PriorityCritical:
		return models.NotificationPriorityUrgent
	case models.PriorityHigh:
		return models.NotificationPriorityHigh
	default:
		return models.NotificationPriorityNormal
	}
}
