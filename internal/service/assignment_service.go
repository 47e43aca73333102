package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/SynergyRentals/SynergyVAHouse-sub002/internal/domain"
	"github.com/SynergyRentals/SynergyVAHouse-sub002/internal/repository"
	apperrors "github.com/SynergyRentals/SynergyVAHouse-sub002/pkg/util"
)

// RecommendationChoice is one ranked candidate with a human-readable reason.
type RecommendationChoice struct {
	AssigneeID string `json:"assignee_id"`
	Reason     string `json:"reason"`
}

// Recommendation is the ranked result of a single assignment query.
type Recommendation struct {
	Primary      RecommendationChoice   `json:"primary"`
	Alternatives []RecommendationChoice `json:"alternatives"`
}

// BatchRecommendation pairs a task with its recommendation inside a batch.
type BatchRecommendation struct {
	TaskID         string          `json:"task_id"`
	Recommendation *Recommendation `json:"recommendation,omitempty"`
	Error          string          `json:"error,omitempty"`
}

// AssignmentService scores eligible assignees by current workload and
// category fit.
type AssignmentService struct {
	tasks     repository.TaskRepository
	assignees repository.AssigneeRepository
	taskSvc   *TaskService
	logger    *zap.Logger
	now       func() time.Time
}

// AssignmentDependencies bundles collaborators.
type AssignmentDependencies struct {
	TaskRepo     repository.TaskRepository
	AssigneeRepo repository.AssigneeRepository
	TaskService  *TaskService
	Logger       *zap.Logger
	Now          func() time.Time
}

// NewAssignmentService creates the service.
func NewAssignmentService(deps AssignmentDependencies) *AssignmentService {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssignmentService{
		tasks:     deps.TaskRepo,
		assignees: deps.AssigneeRepo,
		taskSvc:   deps.TaskService,
		logger:    logger,
		now:       now,
	}
}

type scoredCandidate struct {
	assignee domain.Assignee
	load     domain.Workload
	score    int
}

// Recommend returns the top candidate for a task plus up to two
// alternatives. Capacity score decreases with open and overdue tasks;
// ties break on fewest breached tasks, then least-recently-assigned.
func (s *AssignmentService) Recommend(ctx context.Context, task *domain.Task) (*Recommendation, error) {
	ranked, err := s.rankCandidates(ctx, task.Category, nil)
	if err != nil {
		return nil, err
	}
	return buildRecommendation(ranked), nil
}

// RecommendBatch scores each task with projected open counts: every
// simulated assignment decrements the chosen candidate's capacity so a
// batch cannot pile onto the single best-scoring person.
func (s *AssignmentService) RecommendBatch(ctx context.Context, taskIDs []string) ([]BatchRecommendation, error) {
	if len(taskIDs) == 0 {
		return nil, apperrors.NewValidationError("task_ids required", nil)
	}
	projected := map[string]int{}
	results := make([]BatchRecommendation, 0, len(taskIDs))
	for _, taskID := range taskIDs {
		task, err := s.taskSvc.Get(ctx, taskID)
		if err != nil {
			results = append(results, BatchRecommendation{TaskID: taskID, Error: err.Error()})
			continue
		}
		ranked, err := s.rankCandidates(ctx, task.Category, projected)
		if err != nil {
			results = append(results, BatchRecommendation{TaskID: taskID, Error: err.Error()})
			continue
		}
		rec := buildRecommendation(ranked)
		projected[rec.Primary.AssigneeID]++
		results = append(results, BatchRecommendation{TaskID: taskID, Recommendation: rec})
	}
	return results, nil
}

// AutoAssign recommends and immediately applies the primary choice through
// the state machine.
func (s *AssignmentService) AutoAssign(ctx context.Context, actorID *string, taskID string) (*domain.Task, *Recommendation, error) {
	task, err := s.taskSvc.Get(ctx, taskID)
	if err != nil {
		return nil, nil, err
	}
	rec, err := s.Recommend(ctx, task)
	if err != nil {
		return nil, nil, err
	}
	updated, err := s.taskSvc.Reassign(ctx, actorID, taskID, rec.Primary.AssigneeID, rec.Primary.Reason)
	if err != nil {
		return nil, nil, err
	}
	return updated, rec, nil
}

func (s *AssignmentService) rankCandidates(ctx context.Context, category string, projected map[string]int) ([]scoredCandidate, error) {
	active := true
	pool, err := s.assignees.List(ctx, repository.AssigneeFilter{Active: &active, Limit: 1000})
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	candidates := make([]domain.Assignee, 0, len(pool))
	for _, assignee := range pool {
		if assignee.Role == domain.AssigneeRoleManager {
			continue
		}
		if !assignee.HasAffinity(category) {
			continue
		}
		candidates = append(candidates, assignee)
	}
	if len(candidates) == 0 {
		return nil, apperrors.NewConflict("no eligible assignees for category", map[string]any{"category": category})
	}

	ids := make([]string, 0, len(candidates))
	for _, candidate := range candidates {
		ids = append(ids, candidate.ID)
	}
	loads, err := s.tasks.Workloads(ctx, ids, s.now())
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	ranked := make([]scoredCandidate, 0, len(candidates))
	for _, candidate := range candidates {
		load := loads[candidate.ID]
		if projected != nil {
			load.OpenTasks += projected[candidate.ID]
		}
		ranked = append(ranked, scoredCandidate{
			assignee: candidate,
			load:     load,
			score:    capacityScore(load),
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		if ranked[i].load.BreachedTasks != ranked[j].load.BreachedTasks {
			return ranked[i].load.BreachedTasks < ranked[j].load.BreachedTasks
		}
		// round-robin recency: least-recently-assigned wins remaining ties
		left := lastAssigned(ranked[i].load)
		right := lastAssigned(ranked[j].load)
		if !left.Equal(right) {
			return left.Before(right)
		}
		return ranked[i].assignee.ID < ranked[j].assignee.ID
	})
	return ranked, nil
}

// capacityScore is a decreasing function of current load, floored at 0.
func capacityScore(load domain.Workload) int {
	score := 100 - 10*load.OpenTasks - 20*load.OverdueTasks
	if score < 0 {
		return 0
	}
	return score
}

func lastAssigned(load domain.Workload) time.Time {
	if load.LastAssignedAt == nil {
		return time.Time{}
	}
	return *load.LastAssignedAt
}

func buildRecommendation(ranked []scoredCandidate) *Recommendation {
	rec := &Recommendation{
		Primary: choiceFor(ranked[0]),
	}
	for _, candidate := range ranked[1:] {
		rec.Alternatives = append(rec.Alternatives, choiceFor(candidate))
		if len(rec.Alternatives) == 2 {
			break
		}
	}
	return rec
}

func choiceFor(candidate scoredCandidate) RecommendationChoice {
	return RecommendationChoice{
		AssigneeID: candidate.assignee.ID,
		Reason: fmt.Sprintf("capacity score %d (%d open, %d overdue, %d breached)",
			candidate.score,
			candidate.load.OpenTasks,
			candidate.load.OverdueTasks,
			candidate.load.BreachedTasks),
	}
}
