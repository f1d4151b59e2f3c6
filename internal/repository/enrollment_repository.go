package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/phijaro/octo-oauth-demo/internal/domain"
)

// EnrollmentRepository persists enrollment events. Rows are only ever inserted;
// the same identity enrolling twice yields two rows.
type EnrollmentRepository interface {
	Insert(ctx context.Context, enrollment domain.Enrollment) error
	List(ctx context.Context) ([]domain.Enrollment, error)
}

type sqliteEnrollmentRepository struct {
	db *sql.DB
}

// NewSQLiteEnrollmentRepository returns a SQLite-backed implementation. The
// enrolments table is created on first write if it does not exist.
func NewSQLiteEnrollmentRepository(db *sql.DB) EnrollmentRepository {
	return &sqliteEnrollmentRepository{db: db}
}

const sqliteCreateEnrolments = `CREATE TABLE IF NOT EXISTS enrolments(name, email, refresh_token)`

func (r *sqliteEnrollmentRepository) Insert(ctx context.Context, enrollment domain.Enrollment) error {
	if _, err := r.db.ExecContext(ctx, sqliteCreateEnrolments); err != nil {
		return fmt.Errorf("ensure enrolments table: %w", err)
	}

	const query = `INSERT INTO enrolments VALUES (?, ?, ?)`
	if _, err := r.db.ExecContext(ctx, query,
		enrollment.Name,
		enrollment.Email,
		enrollment.RefreshToken,
	); err != nil {
		return fmt.Errorf("insert enrolment: %w", err)
	}
	return nil
}

func (r *sqliteEnrollmentRepository) List(ctx context.Context) ([]domain.Enrollment, error) {
	if _, err := r.db.ExecContext(ctx, sqliteCreateEnrolments); err != nil {
		return nil, fmt.Errorf("ensure enrolments table: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `SELECT name, email, refresh_token FROM enrolments ORDER BY rowid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Enrollment
	for rows.Next() {
		var e domain.Enrollment
		if err := rows.Scan(&e.Name, &e.Email, &e.RefreshToken); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

type postgresEnrollmentRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresEnrollmentRepository returns a Postgres-backed implementation. The
// table is created by the embedded migrations.
func NewPostgresEnrollmentRepository(pool *pgxpool.Pool) EnrollmentRepository {
	return &postgresEnrollmentRepository{pool: pool}
}

func (r *postgresEnrollmentRepository) Insert(ctx context.Context, enrollment domain.Enrollment) error {
	const query = `
        INSERT INTO enrolments (name, email, refresh_token, enrolled_at)
        VALUES ($1, $2, $3, $4)`

	enrolledAt := enrollment.EnrolledAt
	if enrolledAt.IsZero() {
		enrolledAt = time.Now().UTC()
	}
	_, err := r.pool.Exec(ctx, query,
		enrollment.Name,
		enrollment.Email,
		enrollment.RefreshToken,
		enrolledAt,
	)
	return err
}

func (r *postgresEnrollmentRepository) List(ctx context.Context) ([]domain.Enrollment, error) {
	const query = `
        SELECT name, email, refresh_token, enrolled_at
        FROM enrolments ORDER BY enrolled_at`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Enrollment
	for rows.Next() {
		var e domain.Enrollment
		if err := rows.Scan(&e.Name, &e.Email, &e.RefreshToken, &e.EnrolledAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
