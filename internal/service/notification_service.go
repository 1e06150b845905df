package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/civic-issue-api/internal/models"
	appErrors "github.com/noah-isme/civic-issue-api/pkg/errors"
	"github.com/noah-isme/civic-issue-api/pkg/jobs"
)

type notificationStore interface {
	Append(ctx context.Context, items []models.Notification) error
	ListForUser(ctx context.Context, userID string, unreadOnly bool) ([]models.Notification, error)
	CountUnread(ctx context.Context, userID string) (int, error)
	MarkRead(ctx context.Context, id, userID string) (bool, error)
	MarkAllRead(ctx context.Context, userID string) (int, error)
}

type adminLister interface {
	List(ctx context.Context, filter models.UserFilter) ([]models.User, error)
}

type liveDelivery interface {
	Deliver(notification models.Notification) error
}

// NotificationDispatcher turns notification events into stored notifications and hands them to live delivery.
type NotificationDispatcher struct {
	store   notificationStore
	users   adminLister
	live    liveDelivery
	metrics *MetricsService
	now     Clock
	logger  *zap.Logger
}

// NotificationDispatcherParams groups the dispatcher's collaborators.
type NotificationDispatcherParams struct {
	Store   notificationStore
	Users   adminLister
	Live    liveDelivery
	Metrics *MetricsService
	Clock   Clock
	Logger  *zap.Logger
}

// NewNotificationDispatcher constructs a dispatcher. Live delivery and metrics are optional.
func NewNotificationDispatcher(params NotificationDispatcherParams) *NotificationDispatcher {
	if params.Clock == nil {
		params.Clock = systemClock
	}
	if params.Logger == nil {
		params.Logger = zap.NewNop()
	}
	return &NotificationDispatcher{
		store:   params.Store,
		users:   params.Users,
		live:    params.Live,
		metrics: params.Metrics,
		now:     params.Clock,
		logger:  params.Logger,
	}
}

// Dispatch expands events into per-recipient notifications and appends them in a single store call.
func (d *NotificationDispatcher) Dispatch(ctx context.Context, events ...NotificationEvent) ([]models.Notification, error) {
	if len(events) == 0 {
		return nil, nil
	}

	var admins []string
	for _, event := range events {
		if event.NotifyAdmins {
			ids, err := d.adminIDs(ctx)
			if err != nil {
				return nil, err
			}
			admins = ids
			break
		}
	}

	now := d.now()
	var items []models.Notification
	for _, event := range events {
		recipients := event.Recipients
		if event.NotifyAdmins {
			recipients = append(append([]string{}, recipients...), admins...)
		}
		seen := make(map[string]struct{}, len(recipients))
		for _, userID := range recipients {
			if userID == "" {
				continue
			}
			if _, dup := seen[userID]; dup {
				continue
			}
			seen[userID] = struct{}{}

			n := models.Notification{
				ID:        uuid.NewString(),
				UserID:    userID,
				Type:      event.Type,
				Title:     event.Title,
				Message:   event.Message,
				CreatedAt: now,
				Priority:  event.Priority,
			}
			if event.IssueID != "" {
				issueID := event.IssueID
				n.IssueID = &issueID
			}
			items = append(items, n)
		}
	}
	if len(items) == 0 {
		return nil, nil
	}

	if err := d.store.Append(ctx, items); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store notifications")
	}

	for _, n := range items {
		d.metrics.RecordNotification(n.Type)
		if d.live == nil {
			continue
		}
		if err := d.live.Deliver(n); err != nil {
			d.logger.Warn("live notification delivery skipped", zap.String("notification_id", n.ID), zap.String("user_id", n.UserID), zap.Error(err))
		}
	}
	return items, nil
}

func (d *NotificationDispatcher) adminIDs(ctx context.Context) ([]string, error) {
	role := models.RoleAdmin
	admins, err := d.users.List(ctx, models.UserFilter{Role: &role})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load admins")
	}
	ids := make([]string, len(admins))
	for i, admin := range admins {
		ids[i] = admin.ID
	}
	return ids, nil
}

// NotificationService serves a user's notification inbox.
type NotificationService struct {
	store  notificationStore
	logger *zap.Logger
}

// NewNotificationService constructs a NotificationService.
func NewNotificationService(store notificationStore, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{store: store, logger: logger}
}

// List returns the user's notifications newest first.
func (s *NotificationService) List(ctx context.Context, userID string, unreadOnly bool) ([]models.Notification, error) {
	items, err := s.store.ListForUser(ctx, userID, unreadOnly)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list notifications")
	}
	return items, nil
}

// UnreadCount returns how many notifications the user has not read.
func (s *NotificationService) UnreadCount(ctx context.Context, userID string) (int, error) {
	count, err := s.store.CountUnread(ctx, userID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count notifications")
	}
	return count, nil
}

// MarkRead flags a notification as read. Notifications owned by someone else are reported as not found.
func (s *NotificationService) MarkRead(ctx context.Context, id, userID string) error {
	ok, err := s.store.MarkRead(ctx, id, userID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark notification read")
	}
	if !ok {
		return appErrors.Clone(appErrors.ErrNotFound, "notification not found")
	}
	return nil
}

// MarkAllRead flags every unread notification of the user as read and returns how many changed.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) (int, error) {
	count, err := s.store.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark notifications read")
	}
	return count, nil
}

type channelPublisher interface {
	Publish(ctx context.Context, channel string, value interface{}) (int64, error)
}

const notificationJobType = "notification.deliver"

// NotificationPublisher pushes stored notifications to per-user pub/sub channels off the request path.
type NotificationPublisher struct {
	queue     *jobs.Queue
	publisher channelPublisher
	prefix    string
	logger    *zap.Logger
}

// NewNotificationPublisher wires a worker queue that publishes to "<prefix>:<userID>".
func NewNotificationPublisher(publisher channelPublisher, prefix string, cfg jobs.QueueConfig) *NotificationPublisher {
	if prefix == "" {
		prefix = "notifications"
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	p := &NotificationPublisher{publisher: publisher, prefix: prefix, logger: cfg.Logger}
	p.queue = jobs.NewQueue("notifications", p.handle, cfg)
	return p
}

// Start launches the delivery workers.
func (p *NotificationPublisher) Start(ctx context.Context) {
	p.queue.Start(ctx)
}

// Stop halts the delivery workers, dropping anything still queued.
func (p *NotificationPublisher) Stop() {
	p.queue.Stop()
}

// Deliver queues a notification without blocking the caller.
func (p *NotificationPublisher) Deliver(notification models.Notification) error {
	return p.queue.Enqueue(jobs.Job{ID: notification.ID, Type: notificationJobType, Payload: notification})
}

// Channel returns the pub/sub channel for userID.
func (p *NotificationPublisher) Channel(userID string) string {
	return p.prefix + ":" + userID
}

func (p *NotificationPublisher) handle(ctx context.Context, job jobs.Job) error {
	notification, ok := job.Payload.(models.Notification)
	if !ok {
		return errors.New("unexpected notification payload")
	}
	receivers, err := p.publisher.Publish(ctx, p.Channel(notification.UserID), notification)
	if err != nil {
		return fmt.Errorf("publish notification %s: %w", notification.ID, err)
	}
	p.logger.Debug("notification published", zap.String("notification_id", notification.ID), zap.Int64("receivers", receivers))
	return nil
}
