package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"mentorlink-backend/internal/models"
)

type StudentRepo struct {
	pool *pgxpool.Pool
}

func NewStudentRepo(pool *pgxpool.Pool) *StudentRepo {
	return &StudentRepo{pool: pool}
}

func (r *StudentRepo) Create(ctx context.Context, student *models.Student) error {
	query := `
		INSERT INTO students (id, email, password_hash, full_name)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`

	student.ID = uuid.New()
	student.IsActive = true

	return r.pool.QueryRow(ctx, query,
		student.ID, student.Email, student.PasswordHash, student.FullName,
	).Scan(&student.CreatedAt)
}

func (r *StudentRepo) GetByEmail(ctx context.Context, email string) (*models.Student, error) {
	student := &models.Student{}
	query := `SELECT id, email, password_hash, full_name, is_active, created_at, last_login_at
		FROM students WHERE email = $1`

	err := r.pool.QueryRow(ctx, query, email).Scan(
		&student.ID, &student.Email, &student.PasswordHash, &student.FullName,
		&student.IsActive, &student.CreatedAt, &student.LastLoginAt,
	)
	if err != nil {
		return nil, err
	}
	return student, nil
}

func (r *StudentRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Student, error) {
	student := &models.Student{}
	query := `SELECT id, email, password_hash, full_name, is_active, created_at, last_login_at
		FROM students WHERE id = $1`

	err := r.pool.QueryRow(ctx, query, id).Scan(
		&student.ID, &student.Email, &student.PasswordHash, &student.FullName,
		&student.IsActive, &student.CreatedAt, &student.LastLoginAt,
	)
	if err != nil {
		return nil, err
	}
	return student, nil
}

func (r *StudentRepo) UpdateLastLogin(ctx context.Context, studentID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, "UPDATE students SET last_login_at = $1 WHERE id = $2", time.Now(), studentID)
	return err
}
