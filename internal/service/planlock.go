package service

import (
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PlanLocker serializes mutations per plan. Operations on different plans
// proceed in parallel; within one plan the record upsert, lock check, and
// stats recompute happen under a single critical section so two
// near-simultaneous submissions cannot both observe an unlocked day.
type PlanLocker struct {
	mu    sync.Mutex
	locks map[primitive.ObjectID]*sync.Mutex
}

func NewPlanLocker() *PlanLocker {
	return &PlanLocker{locks: make(map[primitive.ObjectID]*sync.Mutex)}
}

// Lock acquires the mutex for a plan and returns its unlock function.
func (l *PlanLocker) Lock(planID primitive.ObjectID) func() {
	l.mu.Lock()
	m, ok := l.locks[planID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[planID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}

// Forget drops the lock entry for a plan that no longer exists.
func (l *PlanLocker) Forget(planID primitive.ObjectID) {
	l.mu.Lock()
	delete(l.locks, planID)
	l.mu.Unlock()
}
