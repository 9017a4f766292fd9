package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"mentorlink-backend/internal/models"
)

type InterventionRepo struct {
	pool *pgxpool.Pool
}

func NewInterventionRepo(pool *pgxpool.Pool) *InterventionRepo {
	return &InterventionRepo{pool: pool}
}

func (r *InterventionRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Intervention, error) {
	iv := &models.Intervention{}
	query := `SELECT id, student_id, task_assigned, assigned_tasks, completed, created_at, updated_at
		FROM interventions WHERE id = $1`

	err := r.pool.QueryRow(ctx, query, id).Scan(
		&iv.ID, &iv.StudentID, &iv.TaskAssigned, &iv.AssignedTasks, &iv.Completed,
		&iv.CreatedAt, &iv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return iv, nil
}

// MarkAssigned records the review decision, at most once per intervention:
// the task_assigned condition makes a replayed or racing decision come back
// as pgx.ErrNoRows instead of overwriting the first one.
func (r *InterventionRepo) MarkAssigned(ctx context.Context, id uuid.UUID, tasks string) (*models.Intervention, error) {
	iv := &models.Intervention{}
	query := `UPDATE interventions
		SET task_assigned = TRUE, assigned_tasks = $1, updated_at = NOW()
		WHERE id = $2 AND task_assigned = FALSE
		RETURNING id, student_id, task_assigned, assigned_tasks, completed, created_at, updated_at`

	err := r.pool.QueryRow(ctx, query, tasks, id).Scan(
		&iv.ID, &iv.StudentID, &iv.TaskAssigned, &iv.AssignedTasks, &iv.Completed,
		&iv.CreatedAt, &iv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return iv, nil
}

// Complete marks an assigned, not-yet-completed intervention as completed.
// The WHERE clause is the authorization check: wrong owner, unknown id,
// unassigned or already-completed interventions all report false.
func (r *InterventionRepo) Complete(ctx context.Context, id, studentID uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE interventions
		SET completed = TRUE, updated_at = NOW()
		WHERE id = $1
		  AND student_id = $2
		  AND task_assigned = TRUE
		  AND completed = FALSE
	`, id, studentID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// FindPending returns a student's not-yet-completed interventions, most
// recent first. This is the pull-reconciliation query offline students use
// on reconnect.
func (r *InterventionRepo) FindPending(ctx context.Context, studentID uuid.UUID) ([]*models.Intervention, error) {
	query := `SELECT id, student_id, task_assigned, assigned_tasks, completed, created_at, updated_at
		FROM interventions
		WHERE student_id = $1 AND completed = FALSE
		ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var interventions []*models.Intervention
	for rows.Next() {
		iv := &models.Intervention{}
		err := rows.Scan(&iv.ID, &iv.StudentID, &iv.TaskAssigned, &iv.AssignedTasks, &iv.Completed,
			&iv.CreatedAt, &iv.UpdatedAt)
		if err != nil {
			return nil, err
		}
		interventions = append(interventions, iv)
	}
	return interventions, rows.Err()
}
