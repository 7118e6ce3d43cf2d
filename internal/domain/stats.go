package domain

import (
	"math"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ProgressStats are derived counters describing a plan's advancement.
// They are always recomputed from raw DailyCompletion records and persisted
// only as a rebuildable cache, never incremented in place.
type ProgressStats struct {
	PlanID                   primitive.ObjectID `bson:"planId" json:"planId"`
	TotalDays                int                `bson:"totalDays" json:"totalDays"`
	CompletedDays            int                `bson:"completedDays" json:"completedDays"`
	SkippedDays              int                `bson:"skippedDays" json:"skippedDays"`
	ConsecutiveCompletedDays int                `bson:"consecutiveCompletedDays" json:"consecutiveCompletedDays"`
	ConsecutiveSkippedDays   int                `bson:"consecutiveSkippedDays" json:"consecutiveSkippedDays"`
}

// ProgressPercentage returns round(100 * completed / total), half up,
// clamped to [0,100]. 0 when the plan has no days.
func (s ProgressStats) ProgressPercentage() int {
	return RoundPercent(s.CompletedDays, s.TotalDays)
}

// CompliantThreshold is the minimum compliance score (percent) at which a
// worker counts as compliant.
const CompliantThreshold = 80

// ComplianceScore is a worker-level adherence ratio over a window of
// check-ins.
type ComplianceScore struct {
	WorkerID  primitive.ObjectID `json:"workerId"`
	CheckIns  int                `json:"checkIns"`
	Compliant int                `json:"compliant"`
	Score     int                `json:"score"` // percent, round half up; 0 when no check-ins
}

// IsCompliant reports whether the score meets the fixed threshold.
func (c ComplianceScore) IsCompliant() bool {
	return c.Score >= CompliantThreshold
}

// RoundPercent computes round(100 * part / total) with half-up rounding,
// clamped to [0,100]. A zero total yields 0, not a division error. The same
// rounding is used for plan progress and compliance so the two displays
// never disagree by one.
func RoundPercent(part, total int) int {
	if total <= 0 {
		return 0
	}
	pct := int(math.Floor(100*float64(part)/float64(total) + 0.5))
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}
