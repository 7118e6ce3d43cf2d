package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"rehabworks/rehab-engine/internal/domain"
	"rehabworks/rehab-engine/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// In-memory repository fakes. They copy values on the way in and out so
// tests cannot accidentally share state with the service under test.

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[primitive.ObjectID]domain.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[primitive.ObjectID]domain.User)}
}

func (r *fakeUserRepo) Create(_ context.Context, user *domain.User) (primitive.ObjectID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := primitive.NewObjectID()
	u := *user
	u.ID = id
	r.users[id] = u
	return id, nil
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			out := u
			return &out, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeUserRepo) GetByID(_ context.Context, id primitive.ObjectID) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := u
	return &out, nil
}

type fakePlanRepo struct {
	mu    sync.Mutex
	plans map[primitive.ObjectID]domain.RehabilitationPlan
}

func newFakePlanRepo() *fakePlanRepo {
	return &fakePlanRepo{plans: make(map[primitive.ObjectID]domain.RehabilitationPlan)}
}

func (r *fakePlanRepo) Create(_ context.Context, plan *domain.RehabilitationPlan) (primitive.ObjectID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := primitive.NewObjectID()
	p := *plan
	p.ID = id
	r.plans[id] = p
	return id, nil
}

func (r *fakePlanRepo) GetByID(_ context.Context, id primitive.ObjectID) (*domain.RehabilitationPlan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.plans[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := p
	return &out, nil
}

func (r *fakePlanRepo) GetByCaseID(_ context.Context, caseID primitive.ObjectID) (*domain.RehabilitationPlan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.plans {
		if p.CaseID == caseID {
			out := p
			return &out, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakePlanRepo) GetByWorkerID(_ context.Context, workerID primitive.ObjectID) ([]domain.RehabilitationPlan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.RehabilitationPlan
	for _, p := range r.plans {
		if p.WorkerID == workerID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *fakePlanRepo) Update(_ context.Context, plan *domain.RehabilitationPlan) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.plans[plan.ID]; !ok {
		return repository.ErrUpdateFailed
	}
	r.plans[plan.ID] = *plan
	return nil
}

func (r *fakePlanRepo) Delete(_ context.Context, id primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.plans[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.plans, id)
	return nil
}

type fakeCompletionRepo struct {
	mu   sync.Mutex
	days map[string]domain.DailyCompletion
}

func newFakeCompletionRepo() *fakeCompletionRepo {
	return &fakeCompletionRepo{days: make(map[string]domain.DailyCompletion)}
}

func completionKey(planID primitive.ObjectID, date time.Time) string {
	return planID.Hex() + "/" + domain.DayKey(date)
}

func (r *fakeCompletionRepo) Upsert(_ context.Context, completion *domain.DailyCompletion) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *completion
	c.Records = append([]domain.ExerciseCompletionRecord(nil), completion.Records...)
	if c.ID == primitive.NilObjectID {
		c.ID = primitive.NewObjectID()
	}
	r.days[completionKey(c.PlanID, c.Date)] = c
	return nil
}

func (r *fakeCompletionRepo) GetByPlanAndDate(_ context.Context, planID primitive.ObjectID, date time.Time) (*domain.DailyCompletion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.days[completionKey(planID, domain.NormalizeDay(date))]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := c
	out.Records = append([]domain.ExerciseCompletionRecord(nil), c.Records...)
	return &out, nil
}

func (r *fakeCompletionRepo) GetByPlanID(_ context.Context, planID primitive.ObjectID) ([]domain.DailyCompletion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.DailyCompletion
	for _, c := range r.days {
		if c.PlanID == planID {
			cc := c
			cc.Records = append([]domain.ExerciseCompletionRecord(nil), c.Records...)
			out = append(out, cc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (r *fakeCompletionRepo) DeleteByPlanID(_ context.Context, planID primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, c := range r.days {
		if c.PlanID == planID {
			delete(r.days, k)
		}
	}
	return nil
}

type fakeCheckInRepo struct {
	mu       sync.Mutex
	checkIns map[string]domain.CheckIn
}

func newFakeCheckInRepo() *fakeCheckInRepo {
	return &fakeCheckInRepo{checkIns: make(map[string]domain.CheckIn)}
}

func (r *fakeCheckInRepo) Upsert(_ context.Context, checkIn *domain.CheckIn) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := checkIn.WorkerID.Hex() + "/" + domain.DayKey(checkIn.Date)
	c := *checkIn
	if c.ID == primitive.NilObjectID {
		c.ID = primitive.NewObjectID()
	}
	r.checkIns[key] = c
	return nil
}

func (r *fakeCheckInRepo) GetByWorkerInWindow(_ context.Context, workerID primitive.ObjectID, from, to time.Time) ([]domain.CheckIn, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fromDay := domain.NormalizeDay(from)
	toDay := domain.NormalizeDay(to)
	var out []domain.CheckIn
	for _, c := range r.checkIns {
		if c.WorkerID != workerID {
			continue
		}
		if c.Date.Before(fromDay) || c.Date.After(toDay) {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

type fakeAlertRepo struct {
	mu     sync.Mutex
	alerts []domain.Alert
}

func newFakeAlertRepo() *fakeAlertRepo {
	return &fakeAlertRepo{}
}

func (r *fakeAlertRepo) Create(_ context.Context, alert *domain.Alert) (primitive.ObjectID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a := *alert
	a.ID = primitive.NewObjectID()
	r.alerts = append(r.alerts, a)
	return a.ID, nil
}

func (r *fakeAlertRepo) ExistsByTrigger(_ context.Context, planID primitive.ObjectID, alertType domain.AlertType, triggerKey string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.alerts {
		if a.PlanID == planID && a.Type == alertType && a.TriggerKey == triggerKey {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeAlertRepo) GetByPlanID(_ context.Context, planID primitive.ObjectID) ([]domain.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Alert
	for _, a := range r.alerts {
		if a.PlanID == planID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *fakeAlertRepo) GetByRecipient(_ context.Context, recipientID primitive.ObjectID, unreadOnly bool) ([]domain.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Alert
	for _, a := range r.alerts {
		if a.RecipientID != recipientID {
			continue
		}
		if unreadOnly && a.Read {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (r *fakeAlertRepo) MarkRead(_ context.Context, alertID, recipientID primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.alerts {
		if r.alerts[i].ID == alertID && r.alerts[i].RecipientID == recipientID {
			r.alerts[i].Read = true
			return nil
		}
	}
	return repository.ErrNotFound
}

func (r *fakeAlertRepo) DeleteByPlanID(_ context.Context, planID primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.alerts[:0]
	for _, a := range r.alerts {
		if a.PlanID != planID {
			kept = append(kept, a)
		}
	}
	r.alerts = kept
	return nil
}

func (r *fakeAlertRepo) byType(alertType domain.AlertType) []domain.Alert {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Alert
	for _, a := range r.alerts {
		if a.Type == alertType {
			out = append(out, a)
		}
	}
	return out
}

// fakeCaseStore simulates external case storage. setErr and getErr force
// failures; stickyStatus, when set, is what reads observe regardless of
// writes, simulating storage that silently refuses the status change.
type fakeCaseStore struct {
	mu           sync.Mutex
	statuses     map[primitive.ObjectID]domain.CaseStatus
	setErr       error
	getErr       error
	stickyStatus domain.CaseStatus
	setCalls     int
}

func newFakeCaseStore() *fakeCaseStore {
	return &fakeCaseStore{statuses: make(map[primitive.ObjectID]domain.CaseStatus)}
}

func (s *fakeCaseStore) GetCaseStatus(_ context.Context, caseID primitive.ObjectID) (domain.CaseStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return "", s.getErr
	}
	if s.stickyStatus != "" {
		return s.stickyStatus, nil
	}
	status, ok := s.statuses[caseID]
	if !ok {
		return domain.CaseStatusOpen, nil
	}
	return status, nil
}

func (s *fakeCaseStore) SetCaseStatus(_ context.Context, caseID primitive.ObjectID, status domain.CaseStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setCalls++
	if s.setErr != nil {
		return s.setErr
	}
	s.statuses[caseID] = status
	return nil
}

type sentNotification struct {
	RecipientID primitive.ObjectID
	Type        string
	Title       string
	Message     string
}

type fakeSink struct {
	mu      sync.Mutex
	sent    []sentNotification
	sendErr error
}

func newFakeSink() *fakeSink {
	return &fakeSink{}
}

func (s *fakeSink) Send(_ context.Context, recipientID primitive.ObjectID, notifType, title, message string, _ map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sendErr != nil {
		return s.sendErr
	}
	s.sent = append(s.sent, sentNotification{RecipientID: recipientID, Type: notifType, Title: title, Message: message})
	return nil
}

func (s *fakeSink) sentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

// testEnv wires the full service graph over the fakes the way main does
// over mongo, with the cache and media storage disabled.
type testEnv struct {
	planRepo       *fakePlanRepo
	completionRepo *fakeCompletionRepo
	checkInRepo    *fakeCheckInRepo
	alertRepo      *fakeAlertRepo
	caseStore      *fakeCaseStore
	sink           *fakeSink

	planService       PlanService
	completionService CompletionService
	progressService   ProgressService
	alertService      AlertService
	syncService       CaseSyncService
}

func newTestEnv() *testEnv {
	env := &testEnv{
		planRepo:       newFakePlanRepo(),
		completionRepo: newFakeCompletionRepo(),
		checkInRepo:    newFakeCheckInRepo(),
		alertRepo:      newFakeAlertRepo(),
		caseStore:      newFakeCaseStore(),
		sink:           newFakeSink(),
	}
	locks := NewPlanLocker()
	env.syncService = NewCaseSyncService(env.caseStore, env.alertRepo, time.Millisecond)
	env.progressService = NewProgressService(env.planRepo, env.completionRepo, env.checkInRepo, env.alertRepo, nil, nil)
	env.alertService = NewAlertService(env.alertRepo, env.sink, DefaultAlertThresholds())
	env.planService = NewPlanService(env.planRepo, env.completionRepo, env.alertRepo, env.syncService, env.sink, locks)
	env.completionService = NewCompletionService(env.planRepo, env.completionRepo, env.checkInRepo, env.progressService, env.alertService, locks)
	return env
}

func singleExerciseSpec(name string) PlanSpec {
	return PlanSpec{
		Name:         name,
		DurationDays: 7,
		Exercises:    []ExerciseSpec{{Name: "Shoulder stretch", TargetReps: 10}},
	}
}

func (env *testEnv) mustCreatePlan(t testingT, spec PlanSpec, now time.Time) *domain.RehabilitationPlan {
	plan, err := env.planService.Create(context.Background(), primitive.NewObjectID(), primitive.NewObjectID(), primitive.NewObjectID(), spec, now)
	if err != nil {
		t.Fatalf("Create plan: %v", err)
	}
	return plan
}

// testingT is the slice of *testing.T the helpers need.
type testingT interface {
	Fatalf(format string, args ...interface{})
}
