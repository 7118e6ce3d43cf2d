package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"rehabworks/rehab-engine/internal/logger"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// event is the wire shape published to the notification topic.
type event struct {
	ID          string                 `json:"id"`
	RecipientID string                 `json:"recipient_id"`
	Type        string                 `json:"type"`
	Title       string                 `json:"title"`
	Message     string                 `json:"message"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	Timestamp   time.Time              `json:"timestamp"`
}

// KafkaSink publishes notifications to a Kafka topic for the delivery
// pipeline (push/email workers) to consume.
type KafkaSink struct {
	writer *kafka.Writer
}

func NewKafkaSink(brokers []string, topic string) *KafkaSink {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireAll,
		Async:        false,
		BatchSize:    1,
		BatchTimeout: 10 * time.Millisecond,
	}
	return &KafkaSink{writer: writer}
}

func (s *KafkaSink) Send(ctx context.Context, recipientID primitive.ObjectID, notifType, title, message string, metadata map[string]interface{}) error {
	ev := event{
		ID:          uuid.New().String(),
		RecipientID: recipientID.Hex(),
		Type:        notifType,
		Title:       title,
		Message:     message,
		Metadata:    metadata,
		Timestamp:   time.Now().UTC(),
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal notification event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(ev.ID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(notifType)},
		},
	}

	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		logger.Log.WithError(err).WithFields(map[string]interface{}{
			"event_id":   ev.ID,
			"event_type": notifType,
		}).Error("Failed to publish notification event")
		return err
	}

	logger.Log.WithFields(map[string]interface{}{
		"event_id":   ev.ID,
		"event_type": notifType,
		"topic":      s.writer.Topic,
	}).Debug("Notification event published")

	return nil
}

func (s *KafkaSink) Close() error {
	return s.writer.Close()
}
