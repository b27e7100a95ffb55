package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"orbitwatch/internal/domain"
)

// MaintenanceRunID computes a deterministic run_id for a purge/backfill
// invocation. Formula:
// SHA256(window_start_unix|window_end_unix|sorted_anomaly_types|reason)
// Returns hex-encoded hash (64 characters).
//
// Anomaly types are sorted before hashing so the same run requested with
// the types in a different order resolves to the same run_id.
func MaintenanceRunID(
	windowStart time.Time,
	windowEnd time.Time,
	anomalyTypes []domain.AnomalyType,
	reason string,
) string {
	types := make([]string, 0, len(anomalyTypes))
	for _, t := range anomalyTypes {
		types = append(types, string(t))
	}
	sort.Strings(types)

	data := fmt.Sprintf("%d|%d|%s|%s",
		windowStart.UTC().Unix(),
		windowEnd.UTC().Unix(),
		strings.Join(types, ","),
		reason,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
