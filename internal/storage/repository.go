package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const (
	insertPolicyEventSQL = `INSERT INTO policy_events (
        occurred_at,
        event,
        policy_id,
        holder,
        strategy,
        cover_wei,
        amount_wei,
        block_number
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8
    ) RETURNING id, occurred_at, event, policy_id, holder, strategy, cover_wei, amount_wei, block_number, created_at;`

	listRecentPolicyEventsSQL = `SELECT
        id,
        occurred_at,
        event,
        policy_id,
        holder,
        strategy,
        cover_wei,
        amount_wei,
        block_number,
        created_at
    FROM policy_events
    ORDER BY occurred_at DESC, id DESC
    LIMIT $1;`

	listPolicyEventsByPolicySQL = `SELECT
        id,
        occurred_at,
        event,
        policy_id,
        holder,
        strategy,
        cover_wei,
        amount_wei,
        block_number,
        created_at
    FROM policy_events
    WHERE policy_id = $1
    ORDER BY occurred_at, id;`

	upsertUtilizationSampleSQL = `INSERT INTO utilization_samples (
        bucket_ts,
        product,
        strategy,
        active_cover_wei,
        max_cover_wei,
        utilization_pct,
        vault_wei,
        liability_wei
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8
    )
    ON CONFLICT (bucket_ts, product, strategy) DO UPDATE
    SET
        active_cover_wei = EXCLUDED.active_cover_wei,
        max_cover_wei    = EXCLUDED.max_cover_wei,
        utilization_pct  = EXCLUDED.utilization_pct,
        vault_wei        = EXCLUDED.vault_wei,
        liability_wei    = EXCLUDED.liability_wei;`

	listSamplesBetweenSQL = `SELECT
        bucket_ts,
        product,
        strategy,
        active_cover_wei,
        max_cover_wei,
        utilization_pct,
        vault_wei,
        liability_wei,
        created_at
    FROM utilization_samples
    WHERE bucket_ts >= $1
      AND bucket_ts < $2
    ORDER BY bucket_ts;`

	listRecentSamplesSQL = `SELECT
        bucket_ts,
        product,
        strategy,
        active_cover_wei,
        max_cover_wei,
        utilization_pct,
        vault_wei,
        liability_wei,
        created_at
    FROM utilization_samples
    ORDER BY bucket_ts DESC
    LIMIT $1;`

	countSamplesSQL = `SELECT COUNT(*) FROM utilization_samples;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// PolicyEventStore defines operations for the lifecycle journal.
type PolicyEventStore interface {
	InsertPolicyEvent(ctx context.Context, rec PolicyEventRecord) (PolicyEventRecord, error)
	ListRecentPolicyEvents(ctx context.Context, limit int) ([]PolicyEventRecord, error)
	ListPolicyEventsByPolicy(ctx context.Context, policyID int64) ([]PolicyEventRecord, error)
}

// UtilizationStore defines operations for capacity/solvency snapshots.
type UtilizationStore interface {
	UpsertUtilizationSample(ctx context.Context, sample UtilizationSample) error
	ListSamplesBetween(ctx context.Context, from, to time.Time) ([]UtilizationSample, error)
	ListRecentSamples(ctx context.Context, limit int) ([]UtilizationSample, error)
	CountSamples(ctx context.Context) (int64, error)
}

// AdvisoryLocker exposes advisory lock helpers for single-writer sweeps.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Store aggregates access to the journal and utilization samples.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if _, err := conn.Exec(ctxUnlock, advisoryUnlockSQL, key); err != nil {
			// unlock best effort; log omitted in storage package
		}
		conn.Release()
	}
	return unlock, true, nil
}

// InsertPolicyEvent appends a lifecycle event to the journal.
func (s *Store) InsertPolicyEvent(ctx context.Context, rec PolicyEventRecord) (PolicyEventRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return PolicyEventRecord{}, err
	}

	row := pool.QueryRow(ctx, insertPolicyEventSQL,
		rec.OccurredAt,
		rec.Event,
		rec.PolicyID,
		rec.Holder,
		rec.Strategy,
		rec.CoverWei.String(),
		rec.AmountWei.String(),
		rec.Block,
	)
	stored, err := scanPolicyEvent(row)
	if err != nil {
		return PolicyEventRecord{}, fmt.Errorf("insert policy event: %w", err)
	}
	return stored, nil
}

// ListRecentPolicyEvents lists the latest journal entries, newest first.
func (s *Store) ListRecentPolicyEvents(ctx context.Context, limit int) ([]PolicyEventRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentPolicyEventsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent policy events: %w", queryErr)
	}
	defer rows.Close()

	return collectPolicyEvents(rows, limit)
}

// ListPolicyEventsByPolicy lists a single policy's history, oldest first.
func (s *Store) ListPolicyEventsByPolicy(ctx context.Context, policyID int64) ([]PolicyEventRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listPolicyEventsByPolicySQL, policyID)
	if queryErr != nil {
		return nil, fmt.Errorf("list policy events: %w", queryErr)
	}
	defer rows.Close()

	return collectPolicyEvents(rows, 0)
}

func collectPolicyEvents(rows pgx.Rows, capacity int) ([]PolicyEventRecord, error) {
	records := make([]PolicyEventRecord, 0, capacity)
	for rows.Next() {
		rec, scanErr := scanPolicyEvent(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		records = append(records, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return records, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPolicyEvent(row rowScanner) (PolicyEventRecord, error) {
	var (
		rec       PolicyEventRecord
		coverStr  string
		amountStr string
	)
	if err := row.Scan(
		&rec.ID,
		&rec.OccurredAt,
		&rec.Event,
		&rec.PolicyID,
		&rec.Holder,
		&rec.Strategy,
		&coverStr,
		&amountStr,
		&rec.Block,
		&rec.CreatedAt,
	); err != nil {
		return PolicyEventRecord{}, err
	}

	var convErr error
	rec.CoverWei, convErr = decimal.NewFromString(coverStr)
	if convErr != nil {
		return PolicyEventRecord{}, fmt.Errorf("parse cover wei: %w", convErr)
	}
	rec.AmountWei, convErr = decimal.NewFromString(amountStr)
	if convErr != nil {
		return PolicyEventRecord{}, fmt.Errorf("parse amount wei: %w", convErr)
	}
	return rec, nil
}

// UpsertUtilizationSample persists or updates a capacity snapshot.
func (s *Store) UpsertUtilizationSample(ctx context.Context, sample UtilizationSample) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	_, execErr := pool.Exec(ctx, upsertUtilizationSampleSQL,
		sample.Bucket,
		sample.Product,
		sample.Strategy,
		sample.ActiveCoverWei.String(),
		sample.MaxCoverWei.String(),
		sample.UtilizationPct.String(),
		sample.VaultWei.String(),
		sample.LiabilityWei.String(),
	)
	if execErr != nil {
		return fmt.Errorf("upsert utilization sample: %w", execErr)
	}
	return nil
}

// ListSamplesBetween lists samples within a time window.
func (s *Store) ListSamplesBetween(ctx context.Context, from, to time.Time) ([]UtilizationSample, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listSamplesBetweenSQL, from, to)
	if queryErr != nil {
		return nil, fmt.Errorf("list samples between: %w", queryErr)
	}
	defer rows.Close()

	return collectSamples(rows, 0)
}

// ListRecentSamples lists the most recent samples ordered by descending bucket.
func (s *Store) ListRecentSamples(ctx context.Context, limit int) ([]UtilizationSample, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentSamplesSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent samples: %w", queryErr)
	}
	defer rows.Close()

	return collectSamples(rows, limit)
}

// CountSamples counts stored samples.
func (s *Store) CountSamples(ctx context.Context) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	var count int64
	if scanErr := pool.QueryRow(ctx, countSamplesSQL).Scan(&count); scanErr != nil {
		return 0, fmt.Errorf("count samples: %w", scanErr)
	}
	return count, nil
}

func collectSamples(rows pgx.Rows, capacity int) ([]UtilizationSample, error) {
	samples := make([]UtilizationSample, 0, capacity)
	for rows.Next() {
		sample, scanErr := scanSample(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		samples = append(samples, sample)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return samples, nil
}

func scanSample(rows pgx.Rows) (UtilizationSample, error) {
	var (
		sample         UtilizationSample
		activeCoverStr string
		maxCoverStr    string
		utilizationStr string
		vaultStr       string
		liabilityStr   string
	)

	if err := rows.Scan(
		&sample.Bucket,
		&sample.Product,
		&sample.Strategy,
		&activeCoverStr,
		&maxCoverStr,
		&utilizationStr,
		&vaultStr,
		&liabilityStr,
		&sample.CreatedAt,
	); err != nil {
		return UtilizationSample{}, err
	}

	for _, conv := range []struct {
		dst  *decimal.Decimal
		src  string
		name string
	}{
		{&sample.ActiveCoverWei, activeCoverStr, "active cover"},
		{&sample.MaxCoverWei, maxCoverStr, "max cover"},
		{&sample.UtilizationPct, utilizationStr, "utilization pct"},
		{&sample.VaultWei, vaultStr, "vault balance"},
		{&sample.LiabilityWei, liabilityStr, "liability"},
	} {
		value, err := decimal.NewFromString(conv.src)
		if err != nil {
			return UtilizationSample{}, fmt.Errorf("parse %s: %w", conv.name, err)
		}
		*conv.dst = value
	}

	return sample, nil
}
