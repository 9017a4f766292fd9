package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"mentorlink-backend/internal/models"
)

type CheckInRepo struct {
	pool *pgxpool.Pool
}

func NewCheckInRepo(pool *pgxpool.Pool) *CheckInRepo {
	return &CheckInRepo{pool: pool}
}

// Create inserts an on-track check-in (no intervention).
func (r *CheckInRepo) Create(ctx context.Context, c *models.CheckIn) error {
	c.ID = uuid.New()
	query := `INSERT INTO check_ins (id, student_id, quiz_score, focus_minutes, status)
		VALUES ($1, $2, $3, $4, $5) RETURNING created_at`

	return r.pool.QueryRow(ctx, query,
		c.ID, c.StudentID, c.QuizScore, c.FocusMinutes, c.Status,
	).Scan(&c.CreatedAt)
}

// CreateWithIntervention inserts a pending-review check-in together with its
// intervention in one transaction. Either both rows exist afterwards or
// neither does.
func (r *CheckInRepo) CreateWithIntervention(ctx context.Context, c *models.CheckIn) (*models.Intervention, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	c.ID = uuid.New()
	err = tx.QueryRow(ctx,
		`INSERT INTO check_ins (id, student_id, quiz_score, focus_minutes, status)
		 VALUES ($1, $2, $3, $4, $5) RETURNING created_at`,
		c.ID, c.StudentID, c.QuizScore, c.FocusMinutes, c.Status,
	).Scan(&c.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert check-in: %w", err)
	}

	iv := &models.Intervention{
		ID:        uuid.New(),
		StudentID: c.StudentID,
	}
	err = tx.QueryRow(ctx,
		`INSERT INTO interventions (id, student_id, check_in_id)
		 VALUES ($1, $2, $3) RETURNING created_at, updated_at`,
		iv.ID, iv.StudentID, c.ID,
	).Scan(&iv.CreatedAt, &iv.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert intervention: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit check-in: %w", err)
	}
	return iv, nil
}

func (r *CheckInRepo) ListByStudent(ctx context.Context, studentID uuid.UUID, limit int) ([]*models.CheckIn, error) {
	query := `SELECT id, student_id, quiz_score, focus_minutes, status, created_at
		FROM check_ins WHERE student_id = $1 ORDER BY created_at DESC LIMIT $2`

	rows, err := r.pool.Query(ctx, query, studentID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var checkIns []*models.CheckIn
	for rows.Next() {
		c := &models.CheckIn{}
		err := rows.Scan(&c.ID, &c.StudentID, &c.QuizScore, &c.FocusMinutes, &c.Status, &c.CreatedAt)
		if err != nil {
			return nil, err
		}
		checkIns = append(checkIns, c)
	}
	return checkIns, rows.Err()
}
