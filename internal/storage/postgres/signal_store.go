package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"orbitwatch/internal/domain"
	"orbitwatch/internal/storage"
)

// SignalStore implements storage.SignalStore using PostgreSQL.
type SignalStore struct {
	pool *Pool
}

// NewSignalStore creates a new SignalStore.
func NewSignalStore(pool *Pool) *SignalStore {
	return &SignalStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SignalStore = (*SignalStore)(nil)

// UpsertByFingerprint writes a signal with at-most-one-live-row semantics
// per fingerprint, in a single atomic statement:
//
//   - no row for the fingerprint: insert, outcome created
//   - expired row: the conflict arm replaces it in place, outcome refreshed
//   - live row: the conflict arm's WHERE rejects the update, no row comes
//     back, outcome deduplicated
//
// xmax is zero on a freshly inserted row version and nonzero when the
// conflict arm rewrote an existing row, which is how the first two
// outcomes are told apart.
func (s *SignalStore) UpsertByFingerprint(ctx context.Context, sig *domain.Signal) (storage.UpsertOutcome, error) {
	if sig == nil || sig.Fingerprint == "" || !sig.AnomalyType.IsValid() ||
		!sig.Severity.IsValid() || !sig.Category.IsValid() {
		return "", storage.ErrInvalidInput
	}

	payload, err := domain.MarshalSignalPayload(sig.Payload)
	if err != nil {
		return "", fmt.Errorf("upsert signal: %w", err)
	}

	query := `
		INSERT INTO signals (
			fingerprint, short_id, anomaly_type, category, severity, confidence,
			object_id, metric_type, source,
			observed_value, baseline_mean, z_score,
			payload, detected_at, expires_at, processed
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, FALSE)
		ON CONFLICT (fingerprint) DO UPDATE
		SET short_id       = EXCLUDED.short_id,
		    anomaly_type   = EXCLUDED.anomaly_type,
		    category       = EXCLUDED.category,
		    severity       = EXCLUDED.severity,
		    confidence     = EXCLUDED.confidence,
		    object_id      = EXCLUDED.object_id,
		    metric_type    = EXCLUDED.metric_type,
		    source         = EXCLUDED.source,
		    observed_value = EXCLUDED.observed_value,
		    baseline_mean  = EXCLUDED.baseline_mean,
		    z_score        = EXCLUDED.z_score,
		    payload        = EXCLUDED.payload,
		    detected_at    = EXCLUDED.detected_at,
		    expires_at     = EXCLUDED.expires_at,
		    processed      = FALSE
		WHERE signals.expires_at <= EXCLUDED.detected_at
		RETURNING id, (xmax = 0) AS inserted
	`

	var id int64
	var inserted bool
	err = s.pool.QueryRow(ctx, query,
		sig.Fingerprint,
		sig.ShortID,
		string(sig.AnomalyType),
		string(sig.Category),
		string(sig.Severity),
		sig.Confidence,
		sig.ObjectID,
		string(sig.MetricType),
		string(sig.Source),
		sig.ObservedValue,
		sig.BaselineMean,
		sig.ZScore,
		payload,
		sig.DetectedAt,
		sig.ExpiresAt,
	).Scan(&id, &inserted)
	if err != nil {
		if isNotFoundError(err) {
			return storage.UpsertDeduplicated, nil
		}
		return "", fmt.Errorf("upsert signal: %w", err)
	}

	sig.ID = id
	if inserted {
		return storage.UpsertCreated, nil
	}
	return storage.UpsertRefreshed, nil
}

// GetByFingerprint retrieves a signal by its fingerprint. Returns
// ErrNotFound if not exists.
func (s *SignalStore) GetByFingerprint(ctx context.Context, fingerprint string) (*domain.Signal, error) {
	if fingerprint == "" {
		return nil, storage.ErrInvalidInput
	}

	query := signalSelect + ` WHERE fingerprint = $1`

	row := s.pool.QueryRow(ctx, query, fingerprint)
	sig, err := scanSignal(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get signal by fingerprint: %w", err)
	}
	return sig, nil
}

// List retrieves signals matching the filter, newest first.
func (s *SignalStore) List(ctx context.Context, f storage.SignalFilter) ([]*domain.Signal, error) {
	var conds []string
	var args []any
	add := func(expr string, val any) {
		args = append(args, val)
		conds = append(conds, fmt.Sprintf(expr, len(args)))
	}

	if f.ObjectID != nil {
		add("object_id = $%d", *f.ObjectID)
	}
	if f.AnomalyType != nil {
		add("anomaly_type = $%d", string(*f.AnomalyType))
	}
	if f.Category != nil {
		add("category = $%d", string(*f.Category))
	}
	if f.MinSeverity != nil {
		add("severity = ANY($%d)", severitiesAtOrAbove(*f.MinSeverity))
	}
	if f.Source != nil {
		add("source = $%d", string(*f.Source))
	}
	if f.From != nil {
		add("detected_at >= $%d", *f.From)
	}
	if f.To != nil {
		add("detected_at < $%d", *f.To)
	}
	if f.LiveAt != nil {
		add("expires_at > $%d", *f.LiveAt)
	}

	query := signalSelect
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY detected_at DESC, id DESC"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list signals: %w", err)
	}
	defer rows.Close()

	var sigs []*domain.Signal
	for rows.Next() {
		sig, err := scanSignal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan signal row: %w", err)
		}
		sigs = append(sigs, sig)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate signal rows: %w", err)
	}
	return sigs, nil
}

// MarkProcessed flags a signal as consumed by the downstream feed.
// Returns ErrNotFound if the fingerprint does not exist.
func (s *SignalStore) MarkProcessed(ctx context.Context, fingerprint string) error {
	if fingerprint == "" {
		return storage.ErrInvalidInput
	}

	tag, err := s.pool.Exec(ctx, `UPDATE signals SET processed = TRUE WHERE fingerprint = $1`, fingerprint)
	if err != nil {
		return fmt.Errorf("mark signal processed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// DeleteWindow removes signals with detected_at in [from, to) and an
// anomaly type in types (all types when empty). Returns rows removed.
func (s *SignalStore) DeleteWindow(ctx context.Context, from, to time.Time, types []domain.AnomalyType) (int64, error) {
	query := `DELETE FROM signals WHERE detected_at >= $1 AND detected_at < $2`
	args := []any{from, to}
	if len(types) > 0 {
		typeStrs := make([]string, len(types))
		for i, t := range types {
			typeStrs[i] = string(t)
		}
		args = append(args, typeStrs)
		query += fmt.Sprintf(" AND anomaly_type = ANY($%d)", len(args))
	}

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("delete signals in window: %w", err)
	}
	return tag.RowsAffected(), nil
}

const signalSelect = `
	SELECT id, fingerprint, short_id, anomaly_type, category, severity, confidence,
	       object_id, metric_type, source,
	       observed_value, baseline_mean, z_score,
	       payload, detected_at, expires_at, processed
	FROM signals`

// severitiesAtOrAbove expands a minimum severity into the set of severity
// labels at or above its rank, for use with = ANY.
func severitiesAtOrAbove(min domain.Severity) []string {
	all := []domain.Severity{domain.SeverityLow, domain.SeverityMedium, domain.SeverityHigh, domain.SeverityCritical}
	var out []string
	for _, sev := range all {
		if sev.Rank() >= min.Rank() {
			out = append(out, string(sev))
		}
	}
	return out
}

// scanSignal scans one row into a Signal, decoding the payload into its
// concrete type.
func scanSignal(row pgx.Row) (*domain.Signal, error) {
	var sig domain.Signal
	var anomalyStr, categoryStr, severityStr, metricStr, sourceStr string
	var payload []byte

	err := row.Scan(
		&sig.ID,
		&sig.Fingerprint,
		&sig.ShortID,
		&anomalyStr,
		&categoryStr,
		&severityStr,
		&sig.Confidence,
		&sig.ObjectID,
		&metricStr,
		&sourceStr,
		&sig.ObservedValue,
		&sig.BaselineMean,
		&sig.ZScore,
		&payload,
		&sig.DetectedAt,
		&sig.ExpiresAt,
		&sig.Processed,
	)
	if err != nil {
		return nil, err
	}

	sig.AnomalyType = domain.AnomalyType(anomalyStr)
	sig.Category = domain.Category(categoryStr)
	sig.Severity = domain.Severity(severityStr)
	sig.MetricType = domain.MetricType(metricStr)
	sig.Source = domain.Source(sourceStr)

	sig.Payload, err = domain.UnmarshalSignalPayload(sig.AnomalyType, payload)
	if err != nil {
		return nil, err
	}
	return &sig, nil
}
