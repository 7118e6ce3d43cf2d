// internal/repository/mongo/case_store.go
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
)

const caseCollectionName = "cases"

// mongoCaseStore implements repository.CaseStore against the surrounding
// application's cases collection. The engine only ever touches the status
// field; the rest of the case document belongs to the intake/CRUD flows.
type mongoCaseStore struct {
	collection *mongo.Collection
}

// NewMongoCaseStore creates a case store backed by the shared cases collection.
func NewMongoCaseStore(db *mongo.Database) repository.CaseStore {
	return &mongoCaseStore{
		collection: db.Collection(caseCollectionName),
	}
}

// GetCaseStatus reads the status field of a case.
func (s *mongoCaseStore) GetCaseStatus(ctx context.Context, caseID primitive.ObjectID) (domain.CaseStatus, error) {
	var doc struct {
		Status domain.CaseStatus `bson:"status"`
	}
	err := s.collection.FindOne(ctx, bson.M{"_id": caseID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return "", repository.ErrNotFound
		}
		return "", err
	}
	return doc.Status, nil
}

// SetCaseStatus writes the status field of a case.
func (s *mongoCaseStore) SetCaseStatus(ctx context.Context, caseID primitive.ObjectID, status domain.CaseStatus) error {
	filter := bson.M{"_id": caseID}
	update := bson.M{"$set": bson.M{"status": status, "updatedAt": time.Now().UTC()}}

	result, err := s.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}
