// internal/repository/mongo/checkin_repo.go
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

const checkInCollectionName = "check_ins"

// mongoCheckInRepository implements repository.CheckInRepository
type mongoCheckInRepository struct {
	collection *mongo.Collection
}

// NewMongoCheckInRepository creates a new check-in repository.
func NewMongoCheckInRepository(db *mongo.Database) repository.CheckInRepository {
	return &mongoCheckInRepository{
		collection: db.Collection(checkInCollectionName),
	}
}

// Upsert writes the worker's check-in for a day; resubmission on the same
// day overwrites (last write wins).
func (r *mongoCheckInRepository) Upsert(ctx context.Context, checkIn *domain.CheckIn) error {
	if checkIn.WorkerID == primitive.NilObjectID {
		return errors.New("check-in requires workerId")
	}
	checkIn.Date = domain.NormalizeDay(checkIn.Date)
	now := time.Now().UTC()
	if checkIn.CreatedAt.IsZero() {
		checkIn.CreatedAt = now
	}
	checkIn.UpdatedAt = now
	if checkIn.ID == primitive.NilObjectID {
		checkIn.ID = primitive.NewObjectID()
	}

	filter := bson.M{"workerId": checkIn.WorkerID, "date": checkIn.Date}
	updateDoc := bson.M{
		"$set": bson.M{
			"exerciseDone":      checkIn.ExerciseDone,
			"medicationTracked": checkIn.MedicationTracked,
			"medicationTaken":   checkIn.MedicationTaken,
			"note":              checkIn.Note,
			"updatedAt":         checkIn.UpdatedAt,
		},
		"$setOnInsert": bson.M{
			"_id":       checkIn.ID,
			"workerId":  checkIn.WorkerID,
			"date":      checkIn.Date,
			"createdAt": checkIn.CreatedAt,
		},
	}

	_, err := r.collection.UpdateOne(ctx, filter, updateDoc, options.Update().SetUpsert(true))
	return err
}

// GetByWorkerInWindow retrieves check-ins dated within [from, to] inclusive,
// in date order.
func (r *mongoCheckInRepository) GetByWorkerInWindow(ctx context.Context, workerID primitive.ObjectID, from, to time.Time) ([]domain.CheckIn, error) {
	var checkIns []domain.CheckIn
	filter := bson.M{
		"workerId": workerID,
		"date": bson.M{
			"$gte": domain.NormalizeDay(from),
			"$lte": domain.NormalizeDay(to),
		},
	}
	findOptions := options.Find().SetSort(bson.D{{Key: "date", Value: 1}})

	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	if err = cursor.All(ctx, &checkIns); err != nil {
		return nil, err
	}
	if err = cursor.Err(); err != nil {
		return nil, err
	}
	return checkIns, nil
}

// EnsureCheckInIndexes creates necessary indexes. Call during startup.
func EnsureCheckInIndexes(ctx context.Context, collection *mongo.Collection) {
	indexes := []mongo.IndexModel{
		{
			// One check-in per worker per calendar day.
			Keys:    bson.D{{Key: "workerId", Value: 1}, {Key: "date", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}
	_, _ = collection.Indexes().CreateMany(ctx, indexes)
}
