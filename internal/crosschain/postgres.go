package crosschain

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository persists CrossChainRegistrations (and their
// per-network advertisements, denormalised as JSON) to the
// `cross_chain_registrations` table.
type PostgresRepository struct {
	db *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: pool}
}

func (r *PostgresRepository) Create(ctx context.Context, reg *CrossChainRegistration) error {
	networksJSON, err := json.Marshal(reg.Networks)
	if err != nil {
		return fmt.Errorf("marshal networks: %w", err)
	}
	advertisementsJSON, err := json.Marshal(reg.Advertisements)
	if err != nil {
		return fmt.Errorf("marshal advertisements: %w", err)
	}
	_, err = r.db.Exec(ctx, `
		INSERT INTO cross_chain_registrations (cross_chain_id, agent_id, networks_json, advertisements_json, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		reg.CrossChainID, reg.AgentID, networksJSON, advertisementsJSON, reg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert cross-chain registration: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, crossChainID string) (*CrossChainRegistration, error) {
	var reg CrossChainRegistration
	var networksJSON, advertisementsJSON []byte
	err := r.db.QueryRow(ctx, `
		SELECT cross_chain_id, agent_id, networks_json, advertisements_json, created_at
		FROM cross_chain_registrations WHERE cross_chain_id = $1`, crossChainID,
	).Scan(&reg.CrossChainID, &reg.AgentID, &networksJSON, &advertisementsJSON, &reg.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan cross-chain registration: %w", err)
	}
	if err := json.Unmarshal(networksJSON, &reg.Networks); err != nil {
		return nil, fmt.Errorf("unmarshal networks: %w", err)
	}
	if err := json.Unmarshal(advertisementsJSON, &reg.Advertisements); err != nil {
		return nil, fmt.Errorf("unmarshal advertisements: %w", err)
	}
	return &reg, nil
}

func (r *PostgresRepository) ListByAgent(ctx context.Context, agentID string) ([]*CrossChainRegistration, error) {
	rows, err := r.db.Query(ctx, `
		SELECT cross_chain_id, agent_id, networks_json, advertisements_json, created_at
		FROM cross_chain_registrations WHERE agent_id = $1 ORDER BY created_at DESC`, agentID,
	)
	if err != nil {
		return nil, fmt.Errorf("list cross-chain registrations: %w", err)
	}
	defer rows.Close()

	var out []*CrossChainRegistration
	for rows.Next() {
		var reg CrossChainRegistration
		var networksJSON, advertisementsJSON []byte
		if err := rows.Scan(&reg.CrossChainID, &reg.AgentID, &networksJSON, &advertisementsJSON, &reg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan cross-chain registration: %w", err)
		}
		if err := json.Unmarshal(networksJSON, &reg.Networks); err != nil {
			return nil, fmt.Errorf("unmarshal networks: %w", err)
		}
		if err := json.Unmarshal(advertisementsJSON, &reg.Advertisements); err != nil {
			return nil, fmt.Errorf("unmarshal advertisements: %w", err)
		}
		out = append(out, &reg)
	}
	return out, rows.Err()
}
