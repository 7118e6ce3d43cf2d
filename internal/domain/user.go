package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Role type to distinguish between user roles
type Role string

// Define constants for roles
const (
	RoleClinician Role = "clinician"
	RoleWorker    Role = "worker"
)

// User represents a user in the system (either a Clinician or a Worker).
// Identity and authorization policy live outside the engine; it only needs
// role tagging and the clinician/worker association.
type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name         string             `bson:"name" json:"name"`
	Email        string             `bson:"email" json:"email"`    // Should be unique
	PasswordHash string             `bson:"passwordHash" json:"-"` // Never expose this via JSON
	Role         Role               `bson:"role" json:"role"`
	CreatedAt    time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time          `bson:"updatedAt" json:"updatedAt"`

	// --- Clinician-specific ---
	// ObjectIDs of workers whose cases this clinician manages.
	WorkerIDs []primitive.ObjectID `bson:"workerIds,omitempty" json:"workerIds,omitempty"`

	// --- Worker-specific ---
	// The clinician currently treating this worker, if any.
	ClinicianID *primitive.ObjectID `bson:"clinicianId,omitempty" json:"clinicianId,omitempty"`
}

func (u *User) IsClinician() bool {
	return u.Role == RoleClinician
}

func (u *User) IsWorker() bool {
	return u.Role == RoleWorker
}
