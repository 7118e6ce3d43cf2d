// internal/repository/mongo/alert_repo.go
package mongo

import (
	"context"
	"errors"

	"rehabworks/rehab-engine/internal/domain"
	"rehabworks/rehab-engine/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const alertCollectionName = "alerts"

// mongoAlertRepository implements repository.AlertRepository
type mongoAlertRepository struct {
	collection *mongo.Collection
}

// NewMongoAlertRepository creates a new alert repository.
func NewMongoAlertRepository(db *mongo.Database) repository.AlertRepository {
	return &mongoAlertRepository{
		collection: db.Collection(alertCollectionName),
	}
}

// Create inserts a new alert.
func (r *mongoAlertRepository) Create(ctx context.Context, alert *domain.Alert) (primitive.ObjectID, error) {
	if alert.RecipientID == primitive.NilObjectID || alert.Type == "" {
		return primitive.NilObjectID, errors.New("alert requires recipientId and type")
	}
	alert.ID = primitive.NewObjectID()

	result, err := r.collection.InsertOne(ctx, alert)
	if err != nil {
		return primitive.NilObjectID, err
	}
	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted alert ID")
	}
	return insertedID, nil
}

// ExistsByTrigger reports whether an alert with the same dedupe key was
// already fired.
func (r *mongoAlertRepository) ExistsByTrigger(ctx context.Context, planID primitive.ObjectID, alertType domain.AlertType, triggerKey string) (bool, error) {
	filter := bson.M{"planId": planID, "type": alertType, "triggerKey": triggerKey}
	count, err := r.collection.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// GetByPlanID retrieves alerts for a plan, newest first.
func (r *mongoAlertRepository) GetByPlanID(ctx context.Context, planID primitive.ObjectID) ([]domain.Alert, error) {
	return r.find(ctx, bson.M{"planId": planID})
}

// GetByRecipient retrieves alerts addressed to a user, newest first.
func (r *mongoAlertRepository) GetByRecipient(ctx context.Context, recipientID primitive.ObjectID, unreadOnly bool) ([]domain.Alert, error) {
	filter := bson.M{"recipientId": recipientID}
	if unreadOnly {
		filter["read"] = false
	}
	return r.find(ctx, filter)
}

func (r *mongoAlertRepository) find(ctx context.Context, filter bson.M) ([]domain.Alert, error) {
	var alerts []domain.Alert
	findOptions := options.Find().SetSort(bson.D{{Key: "triggeredAt", Value: -1}})

	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	if err = cursor.All(ctx, &alerts); err != nil {
		return nil, err
	}
	if err = cursor.Err(); err != nil {
		return nil, err
	}
	return alerts, nil
}

// MarkRead flips the read flag, the one mutation alerts allow. The filter
// includes the recipient so users cannot mark each other's alerts.
func (r *mongoAlertRepository) MarkRead(ctx context.Context, alertID, recipientID primitive.ObjectID) error {
	filter := bson.M{"_id": alertID, "recipientId": recipientID}
	result, err := r.collection.UpdateOne(ctx, filter, bson.M{"$set": bson.M{"read": true}})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// DeleteByPlanID removes alerts belonging to a cancelled plan.
func (r *mongoAlertRepository) DeleteByPlanID(ctx context.Context, planID primitive.ObjectID) error {
	_, err := r.collection.DeleteMany(ctx, bson.M{"planId": planID})
	return err
}

// EnsureAlertIndexes creates necessary indexes. Call during startup.
func EnsureAlertIndexes(ctx context.Context, collection *mongo.Collection) {
	indexes := []mongo.IndexModel{
		{
			// Dedupe key: at most one alert per (plan, type, trigger).
			Keys:    bson.D{{Key: "planId", Value: 1}, {Key: "type", Value: 1}, {Key: "triggerKey", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "recipientId", Value: 1}, {Key: "read", Value: 1}},
			Options: options.Index(),
		},
	}
	_, _ = collection.Indexes().CreateMany(ctx, indexes)
}
