package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cardanoagents/enhanced-client/internal/escrow/model"
	"github.com/cardanoagents/enhanced-client/internal/money"
)

// PostgresRepository persists ServiceRequests and the replay table to
// PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a PostgresRepository backed by pool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: pool}
}

func (r *PostgresRepository) Create(ctx context.Context, escrow *model.ServiceRequest) error {
	if escrow.CreatedAt.IsZero() {
		escrow.CreatedAt = time.Now().UTC()
	}
	query := `
		INSERT INTO escrows (
			escrow_id, requester_address, agent_id, service_hash,
			payment_amount_micros, deadline, task_description, pricing_model,
			status, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := r.db.Exec(ctx, query,
		escrow.EscrowID, escrow.RequesterAddress, escrow.AgentID, escrow.ServiceHash,
		escrow.PaymentAmount.Micros(), escrow.Deadline, escrow.TaskDescription, escrow.Pricing,
		escrow.Status, escrow.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert escrow: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, escrowID string) (*model.ServiceRequest, error) {
	row := r.db.QueryRow(ctx, `
		SELECT escrow_id, requester_address, agent_id, service_hash,
		       payment_amount_micros, deadline, task_description, pricing_model,
		       status, created_at, mint_tx_id, proof_json
		FROM escrows WHERE escrow_id = $1`, escrowID)
	return scanEscrow(row)
}

func (r *PostgresRepository) Update(ctx context.Context, escrow *model.ServiceRequest) error {
	var proofJSON []byte
	if escrow.Proof != nil {
		var err error
		proofJSON, err = json.Marshal(escrow.Proof)
		if err != nil {
			return fmt.Errorf("marshal proof: %w", err)
		}
	}
	tag, err := r.db.Exec(ctx, `
		UPDATE escrows SET
			status     = $2,
			mint_tx_id = $3,
			proof_json = $4
		WHERE escrow_id = $1`,
		escrow.EscrowID, escrow.Status, escrow.MintTxID, proofJSON,
	)
	if err != nil {
		return fmt.Errorf("update escrow: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) ListProvenWithoutMint(ctx context.Context) ([]*model.ServiceRequest, error) {
	rows, err := r.db.Query(ctx, `
		SELECT escrow_id, requester_address, agent_id, service_hash,
		       payment_amount_micros, deadline, task_description, pricing_model,
		       status, created_at, mint_tx_id, proof_json
		FROM escrows WHERE status = 'proven' AND (mint_tx_id IS NULL OR mint_tx_id = '')`)
	if err != nil {
		return nil, fmt.Errorf("list proven escrows: %w", err)
	}
	defer rows.Close()

	var out []*model.ServiceRequest
	for rows.Next() {
		e, err := scanEscrow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) SeenExecution(ctx context.Context, agentID, executionID string) (bool, error) {
	_, err := r.db.Exec(ctx,
		`INSERT INTO execution_replay (agent_id, execution_id) VALUES ($1, $2)`,
		agentID, executionID,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return true, nil
		}
		return false, fmt.Errorf("record execution id: %w", err)
	}
	return false, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEscrow(row rowScanner) (*model.ServiceRequest, error) {
	var e model.ServiceRequest
	var micros int64
	var mintTxID *string
	var proofJSON []byte

	if err := row.Scan(
		&e.EscrowID, &e.RequesterAddress, &e.AgentID, &e.ServiceHash,
		&micros, &e.Deadline, &e.TaskDescription, &e.Pricing,
		&e.Status, &e.CreatedAt, &mintTxID, &proofJSON,
	); err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan escrow: %w", err)
	}
	e.PaymentAmount = money.FromMicros(micros)
	if mintTxID != nil {
		e.MintTxID = *mintTxID
	}
	if len(proofJSON) > 0 {
		var proof model.ExecutionProof
		if err := json.Unmarshal(proofJSON, &proof); err != nil {
			return nil, fmt.Errorf("unmarshal proof: %w", err)
		}
		e.Proof = &proof
	}
	return &e, nil
}
