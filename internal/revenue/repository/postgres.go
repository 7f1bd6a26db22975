package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cardanoagents/enhanced-client/internal/money"
	"github.com/cardanoagents/enhanced-client/internal/revenue/model"
)

// PostgresRepository persists RevenueShares and distribution reports to the
// `shares` and `distribution_reports` tables, and tracks the system reserve
// as a row in a `system_accounts` table.
type PostgresRepository struct {
	db *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: pool}
}

func (r *PostgresRepository) GetShare(ctx context.Context, recipient string) (*model.RevenueShare, error) {
	var s model.RevenueShare
	var micros int64
	err := r.db.QueryRow(ctx, `
		SELECT recipient_address, participation_tokens, accumulated_rewards_micros,
		       last_claim_sequence, contribution_score, active
		FROM shares WHERE recipient_address = $1`, recipient,
	).Scan(&s.RecipientAddress, &s.ParticipationTokens, &micros, &s.LastClaimSequence, &s.ContributionScore, &s.Active)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan revenue share: %w", err)
	}
	s.AccumulatedRewards = money.FromMicros(micros)
	return &s, nil
}

func (r *PostgresRepository) UpsertShare(ctx context.Context, share *model.RevenueShare) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO shares (recipient_address, participation_tokens, accumulated_rewards_micros,
		                     last_claim_sequence, contribution_score, active)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (recipient_address) DO UPDATE SET
			participation_tokens = EXCLUDED.participation_tokens,
			contribution_score   = EXCLUDED.contribution_score,
			active               = EXCLUDED.active`,
		share.RecipientAddress, share.ParticipationTokens, share.AccumulatedRewards.Micros(),
		share.LastClaimSequence, share.ContributionScore, share.Active,
	)
	if err != nil {
		return fmt.Errorf("upsert revenue share: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListActiveShares(ctx context.Context) ([]*model.RevenueShare, error) {
	rows, err := r.db.Query(ctx, `
		SELECT recipient_address, participation_tokens, accumulated_rewards_micros,
		       last_claim_sequence, contribution_score, active
		FROM shares WHERE active = true`)
	if err != nil {
		return nil, fmt.Errorf("list active shares: %w", err)
	}
	defer rows.Close()

	var out []*model.RevenueShare
	for rows.Next() {
		var s model.RevenueShare
		var micros int64
		if err := rows.Scan(&s.RecipientAddress, &s.ParticipationTokens, &micros, &s.LastClaimSequence, &s.ContributionScore, &s.Active); err != nil {
			return nil, fmt.Errorf("scan revenue share: %w", err)
		}
		s.AccumulatedRewards = money.FromMicros(micros)
		out = append(out, &s)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) GetReport(ctx context.Context, periodID string) (*model.DistributionReport, error) {
	var rep model.DistributionReport
	var awardsJSON []byte
	var total, residue int64
	err := r.db.QueryRow(ctx, `
		SELECT period_id, total_micros, participants, awards_json, reserve_residue_micros, distributed_at, empty_pool
		FROM distribution_reports WHERE period_id = $1`, periodID,
	).Scan(&rep.PeriodID, &total, &rep.Participants, &awardsJSON, &residue, &rep.DistributedAt, &rep.EmptyPool)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan distribution report: %w", err)
	}
	rep.Total = money.FromMicros(total)
	rep.ReserveResidue = money.FromMicros(residue)
	if len(awardsJSON) > 0 {
		if err := json.Unmarshal(awardsJSON, &rep.Awards); err != nil {
			return nil, fmt.Errorf("unmarshal awards: %w", err)
		}
	}
	return &rep, nil
}

// SaveReport persists the report and applies its awards/residue inside a
// single transaction, so a crash mid-distribution never leaves a report
// recorded without its awards applied (or vice versa).
func (r *PostgresRepository) SaveReport(ctx context.Context, report *model.DistributionReport) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin distribution transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM distribution_reports WHERE period_id = $1)`, report.PeriodID).Scan(&exists); err != nil {
		return fmt.Errorf("check existing report: %w", err)
	}
	if exists {
		return nil // idempotent
	}

	for _, award := range report.Awards {
		if _, err := tx.Exec(ctx, `
			UPDATE shares SET accumulated_rewards_micros = accumulated_rewards_micros + $2
			WHERE recipient_address = $1`, award.RecipientAddress, award.Award.Micros(),
		); err != nil {
			return fmt.Errorf("apply award to %s: %w", award.RecipientAddress, err)
		}
	}

	if _, err := tx.Exec(ctx, `
		UPDATE system_accounts SET balance_micros = balance_micros + $1 WHERE name = 'reserve'`,
		report.ReserveResidue.Micros(),
	); err != nil {
		return fmt.Errorf("credit reserve: %w", err)
	}

	awardsJSON, err := json.Marshal(report.Awards)
	if err != nil {
		return fmt.Errorf("marshal awards: %w", err)
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO distribution_reports (period_id, total_micros, participants, awards_json, reserve_residue_micros, distributed_at, empty_pool)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		report.PeriodID, report.Total.Micros(), report.Participants, awardsJSON,
		report.ReserveResidue.Micros(), report.DistributedAt, report.EmptyPool,
	); err != nil {
		return fmt.Errorf("insert distribution report: %w", err)
	}

	return tx.Commit(ctx)
}

func (r *PostgresRepository) ClaimAndReset(ctx context.Context, recipient string) (money.Amount, int64, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("begin claim transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var micros int64
	var seq int64
	if err := tx.QueryRow(ctx, `
		SELECT accumulated_rewards_micros, last_claim_sequence FROM shares
		WHERE recipient_address = $1 FOR UPDATE`, recipient,
	).Scan(&micros, &seq); err != nil {
		if err == pgx.ErrNoRows {
			return 0, 0, ErrNotFound
		}
		return 0, 0, fmt.Errorf("lock revenue share: %w", err)
	}

	seq++
	if _, err := tx.Exec(ctx, `
		UPDATE shares SET accumulated_rewards_micros = 0, last_claim_sequence = $2
		WHERE recipient_address = $1`, recipient, seq,
	); err != nil {
		return 0, 0, fmt.Errorf("reset accumulated rewards: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, 0, fmt.Errorf("commit claim: %w", err)
	}
	return money.FromMicros(micros), seq, nil
}

func (r *PostgresRepository) RestoreClaim(ctx context.Context, recipient string, amount money.Amount, sequence int64) error {
	_, err := r.db.Exec(ctx, `
		UPDATE shares SET
			accumulated_rewards_micros = accumulated_rewards_micros + $2,
			last_claim_sequence = CASE WHEN last_claim_sequence = $3 THEN last_claim_sequence - 1 ELSE last_claim_sequence END
		WHERE recipient_address = $1`,
		recipient, amount.Micros(), sequence,
	)
	if err != nil {
		return fmt.Errorf("restore claim: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Reserve(ctx context.Context) (money.Amount, error) {
	var micros int64
	err := r.db.QueryRow(ctx, `SELECT balance_micros FROM system_accounts WHERE name = 'reserve'`).Scan(&micros)
	if err != nil {
		if err == pgx.ErrNoRows {
			return 0, nil
		}
		return 0, fmt.Errorf("query reserve balance: %w", err)
	}
	return money.FromMicros(micros), nil
}
