package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cardanoagents/enhanced-client/internal/compliance/model"
)

// PostgresRepository persists SubjectBindings to the compliance_subjects
// table.
type PostgresRepository struct {
	db *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: pool}
}

func (r *PostgresRepository) Upsert(ctx context.Context, b *model.SubjectBinding) error {
	if b.BoundAt.IsZero() {
		b.BoundAt = time.Now().UTC()
	}
	hashes, err := json.Marshal(b.AttributeHashes)
	if err != nil {
		return fmt.Errorf("marshal attribute hashes: %w", err)
	}
	_, err = r.db.Exec(ctx, `
		INSERT INTO compliance_subjects (subject, attribute_hashes, bound_at, forgotten)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (subject) DO UPDATE SET
			attribute_hashes = EXCLUDED.attribute_hashes,
			bound_at         = EXCLUDED.bound_at,
			forgotten        = EXCLUDED.forgotten`,
		b.Subject, hashes, b.BoundAt, b.Forgotten,
	)
	if err != nil {
		return fmt.Errorf("upsert compliance subject: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, subject string) (*model.SubjectBinding, error) {
	var b model.SubjectBinding
	var hashes []byte
	err := r.db.QueryRow(ctx, `
		SELECT subject, attribute_hashes, bound_at, forgotten
		FROM compliance_subjects WHERE subject = $1`, subject,
	).Scan(&b.Subject, &hashes, &b.BoundAt, &b.Forgotten)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan compliance subject: %w", err)
	}
	if len(hashes) > 0 {
		if err := json.Unmarshal(hashes, &b.AttributeHashes); err != nil {
			return nil, fmt.Errorf("unmarshal attribute hashes: %w", err)
		}
	}
	return &b, nil
}

func (r *PostgresRepository) Forget(ctx context.Context, subject string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE compliance_subjects
		SET attribute_hashes = '{}', forgotten = true
		WHERE subject = $1`, subject)
	if err != nil {
		return fmt.Errorf("forget compliance subject: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
