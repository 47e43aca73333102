package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/SynergyRentals/SynergyVAHouse-sub002/internal/domain"
)

// AssigneeFilter defines query params for assignee listing.
type AssigneeFilter struct {
	Role   *domain.AssigneeRole
	Active *bool
	Limit  int
	Offset int
}

// AssigneeRepository reads the externally-owned assignee directory.
type AssigneeRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Assignee, error)
	List(ctx context.Context, filter AssigneeFilter) ([]domain.Assignee, error)
}

type assigneeRepository struct {
	pool *pgxpool.Pool
}

// NewAssigneeRepository builds repository.
func NewAssigneeRepository(pool *pgxpool.Pool) AssigneeRepository {
	return &assigneeRepository{pool: pool}
}

func (r *assigneeRepository) GetByID(ctx context.Context, id string) (*domain.Assignee, error) {
	const query = `
        SELECT id, name, role, active_flag, affinities, created_at, updated_at
        FROM assignees WHERE id=$1`
	var assignee domain.Assignee
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&assignee.ID,
		&assignee.Name,
		&assignee.Role,
		&assignee.Active,
		&assignee.Affinities,
		&assignee.CreatedAt,
		&assignee.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &assignee, nil
}

func (r *assigneeRepository) List(ctx context.Context, filter AssigneeFilter) ([]domain.Assignee, error) {
	query := `
        SELECT id, name, role, active_flag, affinities, created_at, updated_at
        FROM assignees`
	args := []any{}
	clauses := []string{}

	if filter.Role != nil {
		args = append(args, *filter.Role)
		clauses = append(clauses, fmt.Sprintf("role=$%d", len(args)))
	}
	if filter.Active != nil {
		args = append(args, *filter.Active)
		clauses = append(clauses, fmt.Sprintf("active_flag=$%d", len(args)))
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	query += fmt.Sprintf(" ORDER BY created_at ASC LIMIT %d OFFSET %d", limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Assignee
	for rows.Next() {
		var assignee domain.Assignee
		if err := rows.Scan(
			&assignee.ID,
			&assignee.Name,
			&assignee.Role,
			&assignee.Active,
			&assignee.Affinities,
			&assignee.CreatedAt,
			&assignee.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, assignee)
	}
	return result, rows.Err()
}
