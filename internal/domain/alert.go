package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AlertType type for threshold-driven alerts
type AlertType string

const (
	AlertSkippedSessions   AlertType = "skipped_sessions"   // Consecutive skipped days reached the threshold
	AlertProgressMilestone AlertType = "progress_milestone" // Completed days crossed a milestone multiple
	AlertHighPain          AlertType = "high_pain"          // A single record reported pain at or above the cutoff
	AlertSyncDivergence    AlertType = "sync_divergence"    // Case status did not converge after plan completion
)

// Alert is an append-only notification record. Immutable once created
// except for the read flag. Duplicate suppression is by
// (planId, type, triggerKey).
type Alert struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	PlanID      primitive.ObjectID `bson:"planId" json:"planId"`
	RecipientID primitive.ObjectID `bson:"recipientId" json:"recipientId"`
	Type        AlertType          `bson:"type" json:"type"`
	Message     string             `bson:"message" json:"message"`
	TriggerKey  string             `bson:"triggerKey" json:"-"` // Day key or milestone count that fired this alert
	Link        string             `bson:"link,omitempty" json:"link,omitempty"`
	Read        bool               `bson:"read" json:"read"`
	TriggeredAt time.Time          `bson:"triggeredAt" json:"triggeredAt"`
}
