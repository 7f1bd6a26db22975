package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cardanoagents/enhanced-client/internal/money"
	"github.com/cardanoagents/enhanced-client/internal/registry/model"
)

// PostgresRepository persists AgentProfiles to PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a PostgresRepository backed by pool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: pool}
}

func (r *PostgresRepository) Create(ctx context.Context, agent *model.AgentProfile) error {
	if agent.CreatedAt.IsZero() {
		agent.CreatedAt = time.Now().UTC()
	}
	query := `
		INSERT INTO agents (
			agent_id, owner_address, metadata_uri, staked_amount_micros,
			capabilities, total_executions, successful_executions,
			framework_version, created_at, last_execution_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := r.db.Exec(ctx, query,
		agent.AgentID, agent.OwnerAddress, agent.MetadataURI,
		agent.StakedAmount.Micros(), agent.Capabilities,
		agent.TotalExecutions, agent.SuccessfulExecutions,
		agent.FrameworkVersion, agent.CreatedAt, nullableTime(agent.LastExecutionAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("insert agent profile: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, agentID string) (*model.AgentProfile, error) {
	row := r.db.QueryRow(ctx, `
		SELECT agent_id, owner_address, metadata_uri, staked_amount_micros,
		       capabilities, total_executions, successful_executions,
		       framework_version, created_at, last_execution_at
		FROM agents WHERE agent_id = $1`, agentID)
	return scanProfile(row)
}

func (r *PostgresRepository) Update(ctx context.Context, agent *model.AgentProfile) error {
	query := `
		UPDATE agents SET
			owner_address          = $2,
			metadata_uri           = $3,
			staked_amount_micros   = $4,
			capabilities           = $5,
			total_executions       = $6,
			successful_executions  = $7,
			framework_version      = $8,
			last_execution_at      = $9
		WHERE agent_id = $1`
	tag, err := r.db.Exec(ctx, query,
		agent.AgentID, agent.OwnerAddress, agent.MetadataURI,
		agent.StakedAmount.Micros(), agent.Capabilities,
		agent.TotalExecutions, agent.SuccessfulExecutions,
		agent.FrameworkVersion, nullableTime(agent.LastExecutionAt),
	)
	if err != nil {
		return fmt.Errorf("update agent profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, agentID string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM agents WHERE agent_id = $1`, agentID)
	if err != nil {
		return fmt.Errorf("delete agent profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) List(ctx context.Context) ([]*model.AgentProfile, error) {
	rows, err := r.db.Query(ctx, `
		SELECT agent_id, owner_address, metadata_uri, staked_amount_micros,
		       capabilities, total_executions, successful_executions,
		       framework_version, created_at, last_execution_at
		FROM agents`)
	if err != nil {
		return nil, fmt.Errorf("list agent profiles: %w", err)
	}
	defer rows.Close()

	var out []*model.AgentProfile
	for rows.Next() {
		a, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (*model.AgentProfile, error) {
	var a model.AgentProfile
	var micros int64
	var lastExec *time.Time

	if err := row.Scan(
		&a.AgentID, &a.OwnerAddress, &a.MetadataURI, &micros,
		&a.Capabilities, &a.TotalExecutions, &a.SuccessfulExecutions,
		&a.FrameworkVersion, &a.CreatedAt, &lastExec,
	); err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan agent profile: %w", err)
	}
	a.StakedAmount = money.FromMicros(micros)
	if lastExec != nil {
		a.LastExecutionAt = *lastExec
	}
	return &a, nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// isUniqueViolation reports whether err is a Postgres unique_violation
// (SQLSTATE 23505), the signal that agent_id is already taken.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
