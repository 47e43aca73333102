package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/SynergyRentals/SynergyVAHouse-sub002/internal/domain"
)

// PlaybookRepository reads category-scoped SOP definitions. Playbooks are
// owned by an external collaborator; this service never writes them.
type PlaybookRepository interface {
	GetByKey(ctx context.Context, key string) (*domain.Playbook, error)
	// GetByCategory resolves the playbook governing a category, nil when
	// the category has none.
	GetByCategory(ctx context.Context, category string) (*domain.Playbook, error)
	List(ctx context.Context) ([]domain.Playbook, error)
}

type playbookRepository struct {
	pool *pgxpool.Pool
}

// NewPlaybookRepository builds repository.
func NewPlaybookRepository(pool *pgxpool.Pool) PlaybookRepository {
	return &playbookRepository{pool: pool}
}

const playbookColumns = `id, playbook_key, category, required_fields, required_evidence,
               sla_first_response_minutes, sla_breach_escalate_to, steps,
               escalation_route, escalation_night_route, escalation_night_start_hour, escalation_night_end_hour,
               auto_assign, version, created_at, updated_at`

func (r *playbookRepository) GetByKey(ctx context.Context, key string) (*domain.Playbook, error) {
	query := `SELECT ` + playbookColumns + ` FROM playbooks WHERE playbook_key=$1`
	return scanPlaybook(r.pool.QueryRow(ctx, query, key))
}

func (r *playbookRepository) GetByCategory(ctx context.Context, category string) (*domain.Playbook, error) {
	query := `SELECT ` + playbookColumns + ` FROM playbooks WHERE category=$1 ORDER BY version DESC LIMIT 1`
	playbook, err := scanPlaybook(r.pool.QueryRow(ctx, query, category))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return playbook, err
}

func (r *playbookRepository) List(ctx context.Context) ([]domain.Playbook, error) {
	query := `SELECT ` + playbookColumns + ` FROM playbooks ORDER BY playbook_key ASC`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Playbook
	for rows.Next() {
		playbook, err := scanPlaybook(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *playbook)
	}
	return result, rows.Err()
}

func scanPlaybook(row taskScanner) (*domain.Playbook, error) {
	var playbook domain.Playbook
	var firstResponseMinutes *int
	var breachEscalateTo string
	if err := row.Scan(
		&playbook.ID,
		&playbook.Key,
		&playbook.Category,
		&playbook.RequiredFields,
		&playbook.RequiredEvidence,
		&firstResponseMinutes,
		&breachEscalateTo,
		&playbook.Steps,
		&playbook.Escalation.Route,
		&playbook.Escalation.NightRoute,
		&playbook.Escalation.NightStartHour,
		&playbook.Escalation.NightEndHour,
		&playbook.AutoAssign,
		&playbook.Version,
		&playbook.CreatedAt,
		&playbook.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if firstResponseMinutes != nil {
		playbook.SLA = &domain.SLAPolicy{
			FirstResponseMinutes: *firstResponseMinutes,
			BreachEscalateTo:     breachEscalateTo,
		}
	}
	return &playbook, nil
}
