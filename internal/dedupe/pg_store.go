package dedupe

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgSchemaDDL = `
CREATE SCHEMA IF NOT EXISTS sme_deals;
CREATE TABLE IF NOT EXISTS sme_deals.seen_fingerprint (
	fingerprint text PRIMARY KEY,
	first_seen  timestamptz NOT NULL
);`

// PostgresStore keeps the seen set in a single table, for deployments that
// already run Postgres and want dedupe state off the host filesystem.
type PostgresStore struct {
	pool    *pgxpool.Pool
	horizon time.Duration
	now     func() time.Time
}

func NewPostgresStore(ctx context.Context, databaseURL string, horizon time.Duration) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid pg config: %v", ErrPersistence, err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: connect postgres: %v", ErrPersistence, err)
	}
	if _, err := pool.Exec(ctx, pgSchemaDDL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: ensure schema: %v", ErrPersistence, err)
	}
	return &PostgresStore{pool: pool, horizon: horizon, now: time.Now}, nil
}

// cutoff returns the oldest first-seen timestamp Save keeps, mirroring the
// clock injection SeenSet.Prune uses.
func (p *PostgresStore) cutoff() time.Time {
	return p.now().UTC().Add(-p.horizon)
}

func (p *PostgresStore) Load(ctx context.Context) (*SeenSet, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT fingerprint, first_seen
		FROM sme_deals.seen_fingerprint;
	`)
	if err != nil {
		return nil, fmt.Errorf("%w: query seen fingerprints: %v", ErrPersistence, err)
	}
	defer rows.Close()

	set := NewSeenSet()
	for rows.Next() {
		var fp string
		var firstSeen time.Time
		if err := rows.Scan(&fp, &firstSeen); err != nil {
			return nil, fmt.Errorf("%w: scan seen fingerprint: %v", ErrPersistence, err)
		}
		set.Add(fp, firstSeen)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate seen fingerprints: %v", ErrPersistence, err)
	}
	return set, nil
}

// Save upserts every fingerprint in a batch and deletes rows older than the
// retention horizon.
func (p *PostgresStore) Save(ctx context.Context, set *SeenSet) error {
	batch := &pgx.Batch{}
	for fp, t := range set.Entries() {
		batch.Queue(`
			INSERT INTO sme_deals.seen_fingerprint (fingerprint, first_seen)
			VALUES ($1, $2)
			ON CONFLICT (fingerprint) DO NOTHING;
		`, fp, t.UTC())
	}
	batch.Queue(`
		DELETE FROM sme_deals.seen_fingerprint
		WHERE first_seen < $1;
	`, p.cutoff())

	br := p.pool.SendBatch(ctx, batch)
	if err := br.Close(); err != nil {
		return fmt.Errorf("%w: batch upsert: %v", ErrPersistence, err)
	}
	return nil
}

func (p *PostgresStore) Close() {
	p.pool.Close()
}
