// internal/repository/mongo/plan_repo.go
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

const planCollectionName = "rehab_plans"

// mongoPlanRepository implements repository.PlanRepository
type mongoPlanRepository struct {
	collection *mongo.Collection
}

// NewMongoPlanRepository creates a new plan repository.
func NewMongoPlanRepository(db *mongo.Database) repository.PlanRepository {
	return &mongoPlanRepository{
		collection: db.Collection(planCollectionName),
	}
}

// Create inserts a new rehabilitation plan.
func (r *mongoPlanRepository) Create(ctx context.Context, plan *domain.RehabilitationPlan) (primitive.ObjectID, error) {
	if plan.CaseID == primitive.NilObjectID || plan.WorkerID == primitive.NilObjectID || plan.ClinicianID == primitive.NilObjectID || plan.Name == "" {
		return primitive.NilObjectID, errors.New("plan requires caseId, workerId, clinicianId, and name")
	}
	plan.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	plan.CreatedAt = now
	plan.UpdatedAt = now

	result, err := r.collection.InsertOne(ctx, plan)
	if err != nil {
		return primitive.NilObjectID, err
	}
	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted plan ID")
	}
	return insertedID, nil
}

// GetByID retrieves a single plan by its ID.
func (r *mongoPlanRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.RehabilitationPlan, error) {
	var plan domain.RehabilitationPlan
	filter := bson.M{"_id": id}
	err := r.collection.FindOne(ctx, filter).Decode(&plan)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &plan, nil
}

// GetByCaseID retrieves the plan held by a case, if any. A case holds at
// most one plan; the unique index on caseId backs this up.
func (r *mongoPlanRepository) GetByCaseID(ctx context.Context, caseID primitive.ObjectID) (*domain.RehabilitationPlan, error) {
	var plan domain.RehabilitationPlan
	filter := bson.M{"caseId": caseID}
	err := r.collection.FindOne(ctx, filter).Decode(&plan)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &plan, nil
}

// GetByWorkerID retrieves all plans assigned to a worker, newest first.
func (r *mongoPlanRepository) GetByWorkerID(ctx context.Context, workerID primitive.ObjectID) ([]domain.RehabilitationPlan, error) {
	var plans []domain.RehabilitationPlan
	filter := bson.M{"workerId": workerID}
	findOptions := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})

	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	if err = cursor.All(ctx, &plans); err != nil {
		return nil, err
	}
	if err = cursor.Err(); err != nil {
		return nil, err
	}
	// Return empty slice if no plans found (not an error)
	return plans, nil
}

// Update persists the mutable plan fields. CaseID, WorkerID, ClinicianID,
// and CreatedAt never change after creation.
func (r *mongoPlanRepository) Update(ctx context.Context, plan *domain.RehabilitationPlan) error {
	if plan.ID == primitive.NilObjectID {
		return errors.New("plan ID is required for update")
	}

	filter := bson.M{"_id": plan.ID}
	updateDoc := bson.M{
		"$set": bson.M{
			"name":         plan.Name,
			"description":  plan.Description,
			"exercises":    plan.Exercises,
			"durationDays": plan.DurationDays,
			"endDate":      plan.EndDate,
			"status":       plan.Status,
			"updatedAt":    time.Now().UTC(),
		},
	}

	result, err := r.collection.UpdateOne(ctx, filter, updateDoc)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// Delete removes a plan document. Cancellation is destructive; the caller
// also deletes the plan's completion records.
func (r *mongoPlanRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	if id == primitive.NilObjectID {
		return errors.New("plan ID is required for deletion")
	}

	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// EnsurePlanIndexes creates necessary indexes. Call during startup.
func EnsurePlanIndexes(ctx context.Context, collection *mongo.Collection) {
	indexes := []mongo.IndexModel{
		{
			// One plan per case, enforced at the storage layer as well as
			// in the service's duplicate check.
			Keys:    bson.D{{Key: "caseId", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "workerId", Value: 1}},
			Options: options.Index(),
		},
		{
			Keys:    bson.D{{Key: "clinicianId", Value: 1}},
			Options: options.Index(),
		},
	}
	_, _ = collection.Indexes().CreateMany(ctx, indexes)
}
