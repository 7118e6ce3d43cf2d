package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"rehabworks/rehab-engine/internal/analytics"
	"rehabworks/rehab-engine/internal/domain"
	"rehabworks/rehab-engine/internal/logger"
	"rehabworks/rehab-engine/internal/repository"
	"rehabworks/rehab-engine/internal/storage"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ExerciseProgress summarizes one prescribed exercise across the whole plan.
type ExerciseProgress struct {
	Exercise       domain.PlanExercise `json:"exercise"`
	CompletedCount int                 `json:"completedCount"`
	SkippedCount   int                 `json:"skippedCount"`
	MediaViewURL   string              `json:"mediaViewUrl,omitempty"`
}

// ProgressReport is the dashboard read model for one plan.
type ProgressReport struct {
	Plan               *domain.RehabilitationPlan `json:"plan"`
	Today              *domain.DailyCompletion    `json:"today,omitempty"`
	Stats              domain.ProgressStats       `json:"stats"`
	ProgressPercentage int                        `json:"progressPercentage"`
	Last7Days          []domain.DailyCompletion   `json:"last7Days"`
	ExerciseProgress   []ExerciseProgress         `json:"exerciseProgress"`
	Alerts             []domain.Alert             `json:"alerts"`
}

// --- Service Interface ---
type ProgressService interface {
	// Recompute derives the plan's stats from raw completion records and
	// refreshes the cache. Calling it repeatedly yields identical results.
	Recompute(ctx context.Context, plan *domain.RehabilitationPlan) (domain.ProgressStats, error)

	// ComplianceScore scores a worker's check-ins within [from, to]. Zero
	// check-ins yield a zero score, not an error.
	ComplianceScore(ctx context.Context, workerID primitive.ObjectID, from, to time.Time) (domain.ComplianceScore, error)

	// VerifyCachedStats compares the cached stats against a fresh recompute,
	// overwriting the cache on mismatch. Returns whether they matched.
	VerifyCachedStats(ctx context.Context, plan *domain.RehabilitationPlan) (bool, error)

	GetProgress(ctx context.Context, planID primitive.ObjectID, now time.Time) (*ProgressReport, error)

	// CompletionSeries buckets the plan's fully-completed days for charts.
	CompletionSeries(ctx context.Context, planID primitive.ObjectID, start, end time.Time) (*analytics.Series, error)
}

// --- Service Implementation ---

// progressService implements the ProgressService interface.
type progressService struct {
	planRepo       repository.PlanRepository
	completionRepo repository.CompletionRepository
	checkInRepo    repository.CheckInRepository
	alertRepo      repository.AlertRepository
	cache          *redis.Client        // nil disables caching
	media          storage.MediaStorage // nil disables media URL resolution
}

// NewProgressService creates a new instance of progressService. Both cache
// and media may be nil; the service degrades to recompute-only reads.
func NewProgressService(
	planRepo repository.PlanRepository,
	completionRepo repository.CompletionRepository,
	checkInRepo repository.CheckInRepository,
	alertRepo repository.AlertRepository,
	cache *redis.Client,
	media storage.MediaStorage,
) ProgressService {
	return &progressService{
		planRepo:       planRepo,
		completionRepo: completionRepo,
		checkInRepo:    checkInRepo,
		alertRepo:      alertRepo,
		cache:          cache,
		media:          media,
	}
}

// ComputeStats derives ProgressStats from scratch by walking completion
// records in date order. No field is ever incremented elsewhere: recomputing
// from raw records reproduces the same stats regardless of call order or
// partial-failure history.
func ComputeStats(plan *domain.RehabilitationPlan, completions []domain.DailyCompletion) domain.ProgressStats {
	stats := domain.ProgressStats{
		PlanID:    plan.ID,
		TotalDays: plan.DurationDays,
	}

	var prevDate time.Time
	completedRun, skippedRun := 0, 0
	for i := range completions {
		day := &completions[i]
		// A locked day was fully completed against the exercise list in
		// force at the time; later edits that grow the list must not
		// un-complete it. The current-list check only decides days that
		// never locked.
		completed := day.Locked || day.AllCompleted(plan.Exercises)
		skipped := !completed && day.AnySkipped()

		if completed {
			stats.CompletedDays++
		}
		if skipped {
			stats.SkippedDays++
		}

		// Streaks require consecutive calendar days; a gap resets both runs.
		if !prevDate.IsZero() && !day.Date.Equal(prevDate.AddDate(0, 0, 1)) {
			completedRun, skippedRun = 0, 0
		}
		switch {
		case completed:
			completedRun++
			skippedRun = 0
		case skipped:
			skippedRun++
			completedRun = 0
		default:
			completedRun, skippedRun = 0, 0
		}
		prevDate = day.Date
	}

	stats.ConsecutiveCompletedDays = completedRun
	stats.ConsecutiveSkippedDays = skippedRun
	return stats
}

func (s *progressService) Recompute(ctx context.Context, plan *domain.RehabilitationPlan) (domain.ProgressStats, error) {
	completions, err := s.completionRepo.GetByPlanID(ctx, plan.ID)
	if err != nil {
		return domain.ProgressStats{}, err
	}
	stats := ComputeStats(plan, completions)
	s.cacheStats(ctx, stats)
	return stats, nil
}

func (s *progressService) ComplianceScore(ctx context.Context, workerID primitive.ObjectID, from, to time.Time) (domain.ComplianceScore, error) {
	checkIns, err := s.checkInRepo.GetByWorkerInWindow(ctx, workerID, from, to)
	if err != nil {
		return domain.ComplianceScore{}, err
	}

	score := domain.ComplianceScore{WorkerID: workerID, CheckIns: len(checkIns)}
	for i := range checkIns {
		if checkIns[i].Compliant() {
			score.Compliant++
		}
	}
	score.Score = domain.RoundPercent(score.Compliant, score.CheckIns)
	return score, nil
}

func (s *progressService) VerifyCachedStats(ctx context.Context, plan *domain.RehabilitationPlan) (bool, error) {
	cached, ok := s.loadCachedStats(ctx, plan.ID)

	completions, err := s.completionRepo.GetByPlanID(ctx, plan.ID)
	if err != nil {
		return false, err
	}
	fresh := ComputeStats(plan, completions)

	if ok && cached == fresh {
		return true, nil
	}
	if ok {
		logger.Log.WithFields(map[string]interface{}{
			"plan_id": plan.ID.Hex(),
			"cached":  cached,
			"fresh":   fresh,
		}).Warn("Cached progress stats diverged from recompute; cache overwritten")
	}
	s.cacheStats(ctx, fresh)
	return false, nil
}

func (s *progressService) GetProgress(ctx context.Context, planID primitive.ObjectID, now time.Time) (*ProgressReport, error) {
	plan, err := s.planRepo.GetByID(ctx, planID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, err
	}

	completions, err := s.completionRepo.GetByPlanID(ctx, planID)
	if err != nil {
		return nil, err
	}
	stats := ComputeStats(plan, completions)
	s.cacheStats(ctx, stats)

	today := domain.NormalizeDay(now)
	weekStart := today.AddDate(0, 0, -6)

	report := &ProgressReport{
		Plan:               plan,
		Stats:              stats,
		ProgressPercentage: stats.ProgressPercentage(),
		Last7Days:          make([]domain.DailyCompletion, 0, 7),
	}

	completedByExercise := make(map[primitive.ObjectID]int)
	skippedByExercise := make(map[primitive.ObjectID]int)
	for i := range completions {
		day := completions[i]
		if day.Date.Equal(today) {
			d := day
			report.Today = &d
		}
		if !day.Date.Before(weekStart) && !day.Date.After(today) {
			report.Last7Days = append(report.Last7Days, day)
		}
		for _, rec := range day.Records {
			switch rec.Status {
			case domain.OutcomeCompleted:
				completedByExercise[rec.ExerciseID]++
			case domain.OutcomeSkipped:
				skippedByExercise[rec.ExerciseID]++
			}
		}
	}

	for _, ex := range plan.Exercises {
		ep := ExerciseProgress{
			Exercise:       ex,
			CompletedCount: completedByExercise[ex.ID],
			SkippedCount:   skippedByExercise[ex.ID],
		}
		if ex.MediaKey != "" && s.media != nil {
			url, err := s.media.GeneratePresignedViewURL(ctx, ex.MediaKey, storage.DefaultPresignedURLExpiry)
			if err != nil {
				logger.Log.WithError(err).WithField("media_key", ex.MediaKey).Warn("Failed to resolve exercise media URL")
			} else {
				ep.MediaViewURL = url
			}
		}
		report.ExerciseProgress = append(report.ExerciseProgress, ep)
	}

	alerts, err := s.alertRepo.GetByPlanID(ctx, planID)
	if err != nil {
		return nil, err
	}
	report.Alerts = alerts

	return report, nil
}

func (s *progressService) CompletionSeries(ctx context.Context, planID primitive.ObjectID, start, end time.Time) (*analytics.Series, error) {
	completions, err := s.completionRepo.GetByPlanID(ctx, planID)
	if err != nil {
		return nil, err
	}
	plan, err := s.planRepo.GetByID(ctx, planID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, err
	}

	var times []time.Time
	for i := range completions {
		if completions[i].Locked || completions[i].AllCompleted(plan.Exercises) {
			times = append(times, completions[i].Date)
		}
	}
	return analytics.BucketRange(analytics.FromTimes(times), start, end)
}

// --- stats cache (write-through, always rebuildable) ---

func statsCacheKey(planID primitive.ObjectID) string {
	return fmt.Sprintf("progress:%s", planID.Hex())
}

func (s *progressService) cacheStats(ctx context.Context, stats domain.ProgressStats) {
	if s.cache == nil {
		return
	}
	payload, err := json.Marshal(stats)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, statsCacheKey(stats.PlanID), payload, 24*time.Hour).Err(); err != nil {
		logger.Log.WithError(err).WithField("plan_id", stats.PlanID.Hex()).Warn("Failed to cache progress stats")
	}
}

func (s *progressService) loadCachedStats(ctx context.Context, planID primitive.ObjectID) (domain.ProgressStats, bool) {
	if s.cache == nil {
		return domain.ProgressStats{}, false
	}
	payload, err := s.cache.Get(ctx, statsCacheKey(planID)).Bytes()
	if err != nil {
		return domain.ProgressStats{}, false
	}
	var stats domain.ProgressStats
	if err := json.Unmarshal(payload, &stats); err != nil {
		return domain.ProgressStats{}, false
	}
	return stats, true
}
