package clickhouse

import (
	"context"
	"fmt"
	"time"

	"orbitwatch/internal/domain"
	"orbitwatch/internal/storage"
)

// MetricSampleStore implements storage.MetricSampleStore using ClickHouse.
type MetricSampleStore struct {
	conn *Conn
}

// NewMetricSampleStore creates a new MetricSampleStore.
func NewMetricSampleStore(conn *Conn) *MetricSampleStore {
	return &MetricSampleStore{conn: conn}
}

// Compile-time interface check.
var _ storage.MetricSampleStore = (*MetricSampleStore)(nil)

// InsertBatch adds multiple samples in one native batch. Re-deriving a
// (stream, epoch) key is not an error: the table is a ReplacingMergeTree
// keyed on the stream and epoch, so merges keep the newest computed_at.
func (s *MetricSampleStore) InsertBatch(ctx context.Context, samples []*domain.MetricSample) error {
	if len(samples) == 0 {
		return nil
	}

	for _, sample := range samples {
		if sample == nil || sample.ObjectID <= 0 || !sample.Source.IsValid() || !sample.MetricType.IsValid() {
			return storage.ErrInvalidInput
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO metric_samples (
			object_id, source, metric_type, epoch, value, computed_at
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, sample := range samples {
		err = batch.Append(
			uint32(sample.ObjectID),
			string(sample.Source),
			string(sample.MetricType),
			sample.Epoch,
			sample.Value,
			sample.ComputedAt,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// Series retrieves one stream's samples with epoch in [from, to] (inclusive),
// ordered by epoch ASC. FINAL collapses re-derived rows the background merge
// has not folded yet, so the series never shows a key twice.
func (s *MetricSampleStore) Series(ctx context.Context, objectID int, source domain.Source, metric domain.MetricType, from, to time.Time) ([]*domain.MetricSample, error) {
	if !source.IsValid() || !metric.IsValid() {
		return nil, storage.ErrInvalidInput
	}

	query := `
		SELECT object_id, source, metric_type, epoch, value, computed_at
		FROM metric_samples FINAL
		WHERE object_id = ? AND source = ? AND metric_type = ?
		  AND epoch >= ? AND epoch <= ?
		ORDER BY epoch ASC
	`

	rows, err := s.conn.Query(ctx, query,
		uint32(objectID), string(source), string(metric), from, to)
	if err != nil {
		return nil, fmt.Errorf("query metric sample series: %w", err)
	}
	defer rows.Close()

	return scanMetricSamples(rows)
}

// Rows interface for scanning
type chRows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

// scanMetricSamples scans multiple rows into a slice.
func scanMetricSamples(rows chRows) ([]*domain.MetricSample, error) {
	var samples []*domain.MetricSample

	for rows.Next() {
		var sample domain.MetricSample
		var objectID uint32
		var sourceStr, metricStr string

		err := rows.Scan(
			&objectID, &sourceStr, &metricStr,
			&sample.Epoch, &sample.Value, &sample.ComputedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan metric sample row: %w", err)
		}

		sample.ObjectID = int(objectID)
		sample.Source = domain.Source(sourceStr)
		sample.MetricType = domain.MetricType(metricStr)
		samples = append(samples, &sample)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate metric sample rows: %w", err)
	}

	return samples, nil
}
