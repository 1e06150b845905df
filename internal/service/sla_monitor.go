package service

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/civic-issue-api/internal/models"
)

const DefaultWarningWindow = 6 * time.Hour

var errSweepSkip = errors.New("sweep: issue no longer eligible")

type slaIssueStore interface {
	FindByID(ctx context.Context, id string) (*models.Issue, error)
	ListMonitored(ctx context.Context) ([]models.Issue, error)
	Mutate(ctx context.Context, id string, fn func(*models.Issue) error) (*models.Issue, error)
}

type issueNotificationIndex interface {
	HasIssueNotification(ctx context.Context, issueID string, notificationType models.NotificationType) (bool, error)
}

type notificationSink interface {
	Dispatch(ctx context.Context, events ...NotificationEvent) ([]models.Notification, error)
}

// SLAMonitorConfig tunes sweep cadence and the warning horizon.
type SLAMonitorConfig struct {
	Interval      time.Duration
	WarningWindow time.Duration
}

// SweepResult summarises one pass over the monitored issues.
type SweepResult struct {
	Scanned        int `json:"scanned"`
	MarkedOverdue  int `json:"marked_overdue"`
	WarningsRaised int `json:"warnings_raised"`
}

// SLAMonitor periodically flags overdue issues and warns assignees about approaching deadlines.
type SLAMonitor struct {
	issues     slaIssueStore
	index      issueNotificationIndex
	dispatcher notificationSink
	metrics    *MetricsService
	cfg        SLAMonitorConfig
	now        Clock
	logger     *zap.Logger

	sweepMu sync.Mutex

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// SLAMonitorParams groups the monitor's collaborators.
type SLAMonitorParams struct {
	Issues     slaIssueStore
	Index      issueNotificationIndex
	Dispatcher notificationSink
	Metrics    *MetricsService
	Config     SLAMonitorConfig
	Clock      Clock
	Logger     *zap.Logger
}

// NewSLAMonitor constructs an idle monitor; call Start to begin ticking.
func NewSLAMonitor(params SLAMonitorParams) *SLAMonitor {
	if params.Config.Interval <= 0 {
		params.Config.Interval = time.Minute
	}
	if params.Config.WarningWindow <= 0 {
		params.Config.WarningWindow = DefaultWarningWindow
	}
	if params.Clock == nil {
		params.Clock = systemClock
	}
	if params.Logger == nil {
		params.Logger = zap.NewNop()
	}
	return &SLAMonitor{
		issues:     params.Issues,
		index:      params.Index,
		dispatcher: params.Dispatcher,
		metrics:    params.Metrics,
		cfg:        params.Config,
		now:        params.Clock,
		logger:     params.Logger,
	}
}

// Start runs one sweep immediately and then one per interval until ctx ends or Stop is called.
// Calling Start on a running monitor does nothing.
func (m *SLAMonitor) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})
	m.running = true
	go m.loop(loopCtx, m.done)
	m.logger.Info("sla monitor started", zap.Duration("interval", m.cfg.Interval), zap.Duration("warning_window", m.cfg.WarningWindow))
}

// Stop cancels the loop and waits for it to exit. No scheduled sweep runs after Stop returns.
func (m *SLAMonitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return
	}
	m.cancel()
	<-m.done
	m.running = false
	m.logger.Info("sla monitor stopped")
}

// Running reports whether the periodic loop is active.
func (m *SLAMonitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *SLAMonitor) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	m.runSweep(ctx)

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.runSweep(ctx)
		}
	}
}

func (m *SLAMonitor) runSweep(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if _, err := m.Sweep(ctx); err != nil && ctx.Err() == nil {
		m.logger.Warn("sla sweep failed", zap.Error(err))
	}
}

// Sweep evaluates every unresolved, assigned issue with a deadline. Sweeps never overlap.
func (m *SLAMonitor) Sweep(ctx context.Context) (SweepResult, error) {
	m.sweepMu.Lock()
	defer m.sweepMu.Unlock()

	started := time.Now()
	var result SweepResult

	issues, err := m.issues.ListMonitored(ctx)
	if err != nil {
		return result, err
	}

	now := m.now()
	for _, issue := range issues {
		if ctx.Err() != nil {
			break
		}
		result.Scanned++
		if !monitored(issue) {
			continue
		}

		deadline := *issue.SLADeadline
		switch {
		case now.After(deadline):
			if issue.IsOverdue {
				if err := m.redeliverOverdue(ctx, issue); err != nil {
					m.logger.Warn("failed to redeliver overdue notice", zap.String("issue_id", issue.ID), zap.Error(err))
				}
				continue
			}
			flagged, err := m.markOverdue(ctx, issue.ID)
			if err != nil {
				m.logger.Warn("failed to flag overdue issue", zap.String("issue_id", issue.ID), zap.Error(err))
				continue
			}
			if flagged {
				result.MarkedOverdue++
			}
		case deadline.Sub(now) <= m.cfg.WarningWindow:
			warned, err := m.warn(ctx, issue.ID, now)
			if err != nil {
				m.logger.Warn("failed to raise sla warning", zap.String("issue_id", issue.ID), zap.Error(err))
				continue
			}
			if warned {
				result.WarningsRaised++
			}
		}
	}

	m.metrics.ObserveSweep(time.Since(started), result.MarkedOverdue, result.WarningsRaised)
	if result.MarkedOverdue > 0 || result.WarningsRaised > 0 {
		m.logger.Info("sla sweep completed",
			zap.Int("scanned", result.Scanned),
			zap.Int("marked_overdue", result.MarkedOverdue),
			zap.Int("warnings_raised", result.WarningsRaised),
		)
	}
	return result, nil
}

// markOverdue flags the issue and notifies. The flag is committed first; a failed
// dispatch is picked up by redeliverOverdue on a later sweep.
func (m *SLAMonitor) markOverdue(ctx context.Context, issueID string) (bool, error) {
	var event NotificationEvent
	_, err := m.issues.Mutate(ctx, issueID, func(issue *models.Issue) error {
		now := m.now()
		if !monitored(*issue) || issue.IsOverdue || !now.After(*issue.SLADeadline) {
			return errSweepSkip
		}
		issue.IsOverdue = true
		issue.UpdatedAt = now
		event = overdueEvent(*issue)
		return nil
	})
	if err != nil {
		if errors.Is(err, errSweepSkip) || errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	if _, err := m.dispatcher.Dispatch(ctx, event); err != nil {
		return true, err
	}
	return true, nil
}

// redeliverOverdue emits the overdue notice for a flagged issue that has none on record.
func (m *SLAMonitor) redeliverOverdue(ctx context.Context, issue models.Issue) error {
	exists, err := m.index.HasIssueNotification(ctx, issue.ID, models.NotificationSLAOverdue)
	if err != nil || exists {
		return err
	}
	if _, err := m.dispatcher.Dispatch(ctx, overdueEvent(issue)); err != nil {
		return err
	}
	m.logger.Info("overdue notice redelivered", zap.String("issue_id", issue.ID))
	return nil
}

func (m *SLAMonitor) warn(ctx context.Context, issueID string, now time.Time) (bool, error) {
	issue, err := m.issues.FindByID(ctx, issueID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	if !monitored(*issue) {
		return false, nil
	}
	remaining := issue.SLADeadline.Sub(now)
	if remaining <= 0 || remaining > m.cfg.WarningWindow {
		return false, nil
	}

	exists, err := m.index.HasIssueNotification(ctx, issue.ID, models.NotificationSLAWarning)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}
	if _, err := m.dispatcher.Dispatch(ctx, warningEvent(*issue, remaining)); err != nil {
		return false, err
	}
	return true, nil
}

func monitored(issue models.Issue) bool {
	return issue.Status != models.StatusResolved && issue.AssignedTo != nil && issue.SLADeadline != nil
}
