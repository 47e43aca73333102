package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/SynergyRentals/SynergyVAHouse-sub002/internal/domain"
)

// ErrVersionConflict signals an optimistic-concurrency miss: the row changed
// between read and update. Callers retry with a fresh read.
var ErrVersionConflict = fmt.Errorf("task version conflict")

// TaskFilter captures task search parameters.
type TaskFilter struct {
	Statuses   []domain.TaskStatus
	Types      []domain.TaskType
	Category   *string
	AssigneeID *string
	ProjectID  *string
	SourceKind *domain.SourceKind
	Limit      int
	Offset     int
}

// TaskRepository encapsulates task persistence.
type TaskRepository interface {
	Create(ctx context.Context, task *domain.Task) error
	// UpdateVersioned persists task iff the stored version still matches
	// task.Version, then bumps it. Returns ErrVersionConflict otherwise.
	UpdateVersioned(ctx context.Context, task *domain.Task) error
	GetByID(ctx context.Context, id string) (*domain.Task, error)
	GetByExternalKey(ctx context.Context, key string) (*domain.Task, error)
	// GetBySource finds the most recent task created from an external object.
	GetBySource(ctx context.Context, kind domain.SourceKind, externalID string) (*domain.Task, error)
	ListWithFilter(ctx context.Context, filter TaskFilter) ([]domain.Task, error)
	// ListOpenWithDeadline returns tasks the SLA sweep must evaluate:
	// status != DONE and sla_at not null.
	ListOpenWithDeadline(ctx context.Context) ([]domain.Task, error)
	// Workloads derives load snapshots for the given assignees.
	Workloads(ctx context.Context, assigneeIDs []string, now time.Time) (map[string]domain.Workload, error)
}

type taskRepository struct {
	pool *pgxpool.Pool
}

// NewTaskRepository instantiates repository.
func NewTaskRepository(pool *pgxpool.Pool) TaskRepository {
	return &taskRepository{pool: pool}
}

const taskColumns = `id, external_key, task_type, title, category, status, priority, assignee_id,
               due_at, sla_at, sla_warned, sla_breached, sla_escalated, source_kind, source_external_id, source_external_url,
               playbook_key, fields, evidence, approvals, project_id, parent_task_id, version, created_at, updated_at`

func (r *taskRepository) Create(ctx context.Context, task *domain.Task) error {
	const query = `
        INSERT INTO tasks (external_key, task_type, title, category, status, priority, assignee_id,
            due_at, sla_at, source_kind, source_external_id, source_external_url,
            playbook_key, fields, evidence, approvals, project_id, parent_task_id)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
        RETURNING id, version, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		task.ExternalKey,
		task.Type,
		task.Title,
		task.Category,
		task.Status,
		task.Priority,
		task.AssigneeID,
		task.DueAt,
		task.SLAAt,
		task.Source.Kind,
		task.Source.ExternalID,
		task.Source.ExternalURL,
		task.PlaybookKey,
		task.Fields,
		task.Evidence,
		task.Approvals,
		task.ProjectID,
		task.ParentTaskID,
	).Scan(&task.ID, &task.Version, &task.CreatedAt, &task.UpdatedAt)
}

func (r *taskRepository) UpdateVersioned(ctx context.Context, task *domain.Task) error {
	const query = `
        UPDATE tasks SET title=$1, category=$2, status=$3, priority=$4, assignee_id=$5,
            due_at=$6, sla_warned=$7, sla_breached=$8, sla_escalated=$9, playbook_key=$10, fields=$11,
            evidence=$12, approvals=$13, project_id=$14, version=version+1, updated_at=NOW()
        WHERE id=$15 AND version=$16`
	cmd, err := r.pool.Exec(ctx, query,
		task.Title,
		task.Category,
		task.Status,
		task.Priority,
		task.AssigneeID,
		task.DueAt,
		task.SLAWarned,
		task.SLABreached,
		task.SLAEscalated,
		task.PlaybookKey,
		task.Fields,
		task.Evidence,
		task.Approvals,
		task.ProjectID,
		task.ID,
		task.Version,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrVersionConflict
	}
	task.Version++
	return nil
}

func (r *taskRepository) GetByID(ctx context.Context, id string) (*domain.Task, error) {
	query := fmt.Sprintf(`SELECT %s FROM tasks WHERE id=$1`, taskColumns)
	return r.fetchSingle(ctx, query, id)
}

func (r *taskRepository) GetByExternalKey(ctx context.Context, key string) (*domain.Task, error) {
	query := fmt.Sprintf(`SELECT %s FROM tasks WHERE external_key=$1`, taskColumns)
	return r.fetchSingle(ctx, query, key)
}

func (r *taskRepository) GetBySource(ctx context.Context, kind domain.SourceKind, externalID string) (*domain.Task, error) {
	query := fmt.Sprintf(`SELECT %s FROM tasks WHERE source_kind=$1 AND source_external_id=$2 ORDER BY created_at DESC LIMIT 1`, taskColumns)
	row := r.pool.QueryRow(ctx, query, kind, externalID)
	return scanTask(row)
}

func (r *taskRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Task, error) {
	row := r.pool.QueryRow(ctx, query, arg)
	return scanTask(row)
}

func (r *taskRepository) ListWithFilter(ctx context.Context, filter TaskFilter) ([]domain.Task, error) {
	base := fmt.Sprintf(`SELECT %s FROM tasks`, taskColumns)
	clauses := []string{"1=1"}
	args := []any{}

	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Types) > 0 {
		placeholders := make([]string, len(filter.Types))
		for i, taskType := range filter.Types {
			args = append(args, taskType)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("task_type IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.Category != nil {
		args = append(args, *filter.Category)
		clauses = append(clauses, fmt.Sprintf("category=$%d", len(args)))
	}
	if filter.AssigneeID != nil {
		args = append(args, *filter.AssigneeID)
		clauses = append(clauses, fmt.Sprintf("assignee_id=$%d", len(args)))
	}
	if filter.ProjectID != nil {
		args = append(args, *filter.ProjectID)
		clauses = append(clauses, fmt.Sprintf("project_id=$%d", len(args)))
	}
	if filter.SourceKind != nil {
		args = append(args, *filter.SourceKind)
		clauses = append(clauses, fmt.Sprintf("source_kind=$%d", len(args)))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`%s WHERE %s ORDER BY updated_at DESC LIMIT %d OFFSET %d`,
		base, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTasks(rows)
}

func (r *taskRepository) ListOpenWithDeadline(ctx context.Context) ([]domain.Task, error) {
	query := fmt.Sprintf(`SELECT %s FROM tasks WHERE status <> 'DONE' AND sla_at IS NOT NULL ORDER BY sla_at ASC`, taskColumns)
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTasks(rows)
}

func (r *taskRepository) Workloads(ctx context.Context, assigneeIDs []string, now time.Time) (map[string]domain.Workload, error) {
	result := make(map[string]domain.Workload, len(assigneeIDs))
	if len(assigneeIDs) == 0 {
		return result, nil
	}
	const query = `
        SELECT assignee_id,
               COUNT(*) FILTER (WHERE status <> 'DONE') AS open_tasks,
               COUNT(*) FILTER (WHERE status <> 'DONE' AND due_at IS NOT NULL AND due_at < $2) AS overdue_tasks,
               COUNT(*) FILTER (WHERE status <> 'DONE' AND sla_breached) AS breached_tasks,
               MAX(updated_at) FILTER (WHERE status <> 'DONE') AS last_assigned_at
        FROM tasks
        WHERE assignee_id = ANY($1)
        GROUP BY assignee_id`
	rows, err := r.pool.Query(ctx, query, assigneeIDs, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var load domain.Workload
		if err := rows.Scan(
			&load.AssigneeID,
			&load.OpenTasks,
			&load.OverdueTasks,
			&load.BreachedTasks,
			&load.LastAssignedAt,
		); err != nil {
			return nil, err
		}
		result[load.AssigneeID] = load
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// assignees with no tasks get a zero snapshot
	for _, id := range assigneeIDs {
		if _, ok := result[id]; !ok {
			result[id] = domain.Workload{AssigneeID: id}
		}
	}
	return result, nil
}

type taskScanner interface {
	Scan(dest ...any) error
}

func scanTask(row taskScanner) (*domain.Task, error) {
	var task domain.Task
	if err := row.Scan(
		&task.ID,
		&task.ExternalKey,
		&task.Type,
		&task.Title,
		&task.Category,
		&task.Status,
		&task.Priority,
		&task.AssigneeID,
		&task.DueAt,
		&task.SLAAt,
		&task.SLAWarned,
		&task.SLABreached,
		&task.SLAEscalated,
		&task.Source.Kind,
		&task.Source.ExternalID,
		&task.Source.ExternalURL,
		&task.PlaybookKey,
		&task.Fields,
		&task.Evidence,
		&task.Approvals,
		&task.ProjectID,
		&task.ParentTaskID,
		&task.Version,
		&task.CreatedAt,
		&task.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &task, nil
}

func scanTasks(rows pgx.Rows) ([]domain.Task, error) {
	var result []domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *task)
	}
	return result, rows.Err()
}
