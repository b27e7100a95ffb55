package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/mr-tron/base58"

	"orbitwatch/internal/domain"
)

// SignalFingerprint computes the deterministic dedup key for a signal.
// Formula: SHA256(anomaly_type|object_id|window_start_unix)
// Returns hex-encoded hash (64 characters).
//
// The window start is the detection epoch truncated to the dedup window,
// so repeated detections of the same anomaly on the same object inside
// one window collapse onto one fingerprint.
func SignalFingerprint(
	anomalyType domain.AnomalyType,
	objectID int,
	windowStart time.Time,
) string {
	data := fmt.Sprintf("%s|%d|%d",
		string(anomalyType),
		objectID,
		windowStart.UTC().Unix(),
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

// SignalShortID computes the human-facing handle shown in dashboards and
// alert feeds: base58 over the first 8 bytes of the fingerprint hash.
// Same inputs as SignalFingerprint, same determinism.
func SignalShortID(
	anomalyType domain.AnomalyType,
	objectID int,
	windowStart time.Time,
) string {
	data := fmt.Sprintf("%s|%d|%d",
		string(anomalyType),
		objectID,
		windowStart.UTC().Unix(),
	)

	hash := sha256.Sum256([]byte(data))
	return base58.Encode(hash[:8])
}
