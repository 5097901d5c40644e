package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/sr-service/internal/config"
	"github.com/spec-kit/sr-service/internal/events"
)

// NotificationService handles emitting notifications for domain events.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.NotificationConfig
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventSRCreated, n.handleSRCreated)
	n.dispatcher.Subscribe(events.EventSRStatusChanged, n.handleSRStatusChanged)
	n.dispatcher.Subscribe(events.EventSRAssigned, n.handleSRAssigned)
	n.dispatcher.Subscribe(events.EventSRCommentAdded, n.handleSRCommentAdded)
}

func (n *NotificationService) handleSRCreated(ctx context.Context, event events.Event) error {
	n.logger.Info("SRCreated", zap.String("service_request_id", event.ServiceRequestID), zap.Any("payload", event.Payload))
	n.sendEmailNotificationStub(ctx, event)
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleSRStatusChanged(ctx context.Context, event events.Event) error {
	n.logger.Info("SRStatusChanged", zap.String("service_request_id", event.ServiceRequestID), zap.Any("payload", event.Payload))
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleSRAssigned(ctx context.Context, event events.Event) error {
	n.logger.Info("SRAssigned", zap.String("service_request_id", event.ServiceRequestID), zap.Any("payload", event.Payload))
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleSRCommentAdded(ctx context.Context, event events.Event) error {
	n.logger.Info("SRCommentAdded", zap.String("service_request_id", event.ServiceRequestID), zap.Any("payload", event.Payload))
	n.sendEmailNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) sendEmailNotificationStub(_ context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.EmailFrom) == "" {
		return
	}
	n.logger.Debug("sendEmailNotificationStub",
		zap.String("from", n.cfg.EmailFrom),
		zap.String("service_request_id", event.ServiceRequestID),
		zap.String("event_type", string(event.Type)))
}

func (n *NotificationService) sendWebhookNotificationStub(_ context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.WebhookURL) == "" {
		return
	}
	n.logger.Debug("sendWebhookNotificationStub",
		zap.String("url", n.cfg.WebhookURL),
		zap.String("service_request_id", event.ServiceRequestID),
		zap.String("event_type", string(event.Type)))
}
