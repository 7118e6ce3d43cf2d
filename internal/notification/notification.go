package notification

import (
	"context"

	"rehabworks/rehab-engine/internal/logger"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Notification types emitted by the engine.
const (
	TypePlanAssigned  = "plan_assigned"
	TypePlanCompleted = "plan_completed"
	TypeAlert         = "alert"
)

// Sink is the delivery boundary for notifications. Transport (push, email,
// message bus) lives behind it; send failures are never fatal to the
// operation that produced the notification.
type Sink interface {
	Send(ctx context.Context, recipientID primitive.ObjectID, notifType, title, message string, metadata map[string]interface{}) error
}

// LogSink writes notifications to the structured log. Used as the default
// sink and in development.
type LogSink struct{}

func NewLogSink() *LogSink {
	return &LogSink{}
}

func (s *LogSink) Send(_ context.Context, recipientID primitive.ObjectID, notifType, title, message string, metadata map[string]interface{}) error {
	logger.Log.WithFields(logrus.Fields{
		"recipient_id": recipientID.Hex(),
		"type":         notifType,
		"title":        title,
		"metadata":     metadata,
	}).Info(message)
	return nil
}
