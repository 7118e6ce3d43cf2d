// internal/repository/mongo/completion_repo.go
package mongo

import (
	"context"
	"errors"
	"time"

	"rehabworks/rehab-engine/internal/domain"
	"rehabworks/rehab-engine/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const completionCollectionName = "daily_completions"

// mongoCompletionRepository implements repository.CompletionRepository
type mongoCompletionRepository struct {
	collection *mongo.Collection
}

// NewMongoCompletionRepository creates a new daily completion repository.
func NewMongoCompletionRepository(db *mongo.Database) repository.CompletionRepository {
	return &mongoCompletionRepository{
		collection: db.Collection(completionCollectionName),
	}
}

// Upsert writes the day's record, replacing any existing document for the
// same (planId, date). The unique index keeps duplicates from accumulating
// even under concurrent writers.
func (r *mongoCompletionRepository) Upsert(ctx context.Context, completion *domain.DailyCompletion) error {
	if completion.PlanID == primitive.NilObjectID {
		return errors.New("completion requires planId")
	}
	completion.Date = domain.NormalizeDay(completion.Date)
	now := time.Now().UTC()
	if completion.CreatedAt.IsZero() {
		completion.CreatedAt = now
	}
	completion.UpdatedAt = now
	if completion.ID == primitive.NilObjectID {
		completion.ID = primitive.NewObjectID()
	}

	filter := bson.M{"planId": completion.PlanID, "date": completion.Date}
	updateDoc := bson.M{
		"$set": bson.M{
			"records":   completion.Records,
			"locked":    completion.Locked,
			"updatedAt": completion.UpdatedAt,
		},
		"$setOnInsert": bson.M{
			"_id":       completion.ID,
			"planId":    completion.PlanID,
			"date":      completion.Date,
			"createdAt": completion.CreatedAt,
		},
	}

	_, err := r.collection.UpdateOne(ctx, filter, updateDoc, options.Update().SetUpsert(true))
	return err
}

// GetByPlanAndDate retrieves one day's record for a plan.
func (r *mongoCompletionRepository) GetByPlanAndDate(ctx context.Context, planID primitive.ObjectID, date time.Time) (*domain.DailyCompletion, error) {
	var completion domain.DailyCompletion
	filter := bson.M{"planId": planID, "date": domain.NormalizeDay(date)}
	err := r.collection.FindOne(ctx, filter).Decode(&completion)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &completion, nil
}

// GetByPlanID retrieves all completion records for a plan in date order.
func (r *mongoCompletionRepository) GetByPlanID(ctx context.Context, planID primitive.ObjectID) ([]domain.DailyCompletion, error) {
	var completions []domain.DailyCompletion
	filter := bson.M{"planId": planID}
	findOptions := options.Find().SetSort(bson.D{{Key: "date", Value: 1}})

	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	if err = cursor.All(ctx, &completions); err != nil {
		return nil, err
	}
	if err = cursor.Err(); err != nil {
		return nil, err
	}
	return completions, nil
}

// DeleteByPlanID removes every completion record belonging to a plan.
// Used by cancellation, which is destructive by design.
func (r *mongoCompletionRepository) DeleteByPlanID(ctx context.Context, planID primitive.ObjectID) error {
	if planID == primitive.NilObjectID {
		return errors.New("plan ID is required for deletion")
	}
	_, err := r.collection.DeleteMany(ctx, bson.M{"planId": planID})
	return err
}

// EnsureCompletionIndexes creates necessary indexes. Call during startup.
func EnsureCompletionIndexes(ctx context.Context, collection *mongo.Collection) {
	indexes := []mongo.IndexModel{
		{
			// One record per plan per calendar day.
			Keys:    bson.D{{Key: "planId", Value: 1}, {Key: "date", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}
	_, _ = collection.Indexes().CreateMany(ctx, indexes)
}
