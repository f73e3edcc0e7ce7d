package store

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"profilegate/internal/profile/models"
	"profilegate/pkg/platform/sentinel"
)

const schema = `
CREATE TABLE IF NOT EXISTS profiles (
	id            BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
	last_name     TEXT NOT NULL,
	first_name    TEXT NOT NULL,
	date_of_birth DATE NOT NULL,
	salary        DOUBLE PRECISION NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// PostgresStore persists profiles in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// EnsureSchema creates the profiles table when it does not exist yet.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create profiles table: %w", err)
	}
	return nil
}

func (s *PostgresStore) InsertProfile(ctx context.Context, p models.PersistedProfile) (models.ProfileID, error) {
	query := `
		INSERT INTO profiles (last_name, first_name, date_of_birth, salary)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	var id int64
	err := s.pool.QueryRow(ctx, query, p.LastName, p.FirstName, p.DateOfBirth, p.Salary).Scan(&id)
	if err != nil {
		return 0, wrapErr("insert profile", err)
	}
	return models.ProfileID(id), nil
}

func (s *PostgresStore) GetProfile(ctx context.Context, id models.ProfileID) (*models.StoredProfile, error) {
	query := `
		SELECT id, last_name, first_name, date_of_birth, salary, created_at
		FROM profiles
		WHERE id = $1
	`
	var (
		p   models.StoredProfile
		pid int64
	)
	err := s.pool.QueryRow(ctx, query, int64(id)).Scan(
		&pid, &p.LastName, &p.FirstName, &p.DateOfBirth, &p.Salary, &p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, wrapErr("find profile by id", err)
	}
	p.ID = models.ProfileID(pid)
	return &p, nil
}

func (s *PostgresStore) UpdateProfile(ctx context.Context, id models.ProfileID, p models.PersistedProfile) error {
	query := `
		UPDATE profiles
		SET last_name = $2, first_name = $3, date_of_birth = $4, salary = $5
		WHERE id = $1
	`
	tag, err := s.pool.Exec(ctx, query, int64(id), p.LastName, p.FirstName, p.DateOfBirth, p.Salary)
	if err != nil {
		return wrapErr("update profile", err)
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// wrapErr marks failures to reach the database as sentinel.ErrUnavailable.
func wrapErr(op string, err error) error {
	var (
		connErr *pgconn.ConnectError
		netErr  *net.OpError
	)
	if errors.As(err, &connErr) || errors.As(err, &netErr) || pgconn.Timeout(err) {
		return fmt.Errorf("%s: %w: %w", op, sentinel.ErrUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
