package idhash

import (
	"testing"
	"time"

	"orbitwatch/internal/domain"
)

func TestSignalFingerprint(t *testing.T) {
	windowStart := time.Date(2026, 3, 14, 6, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		anomalyType domain.AnomalyType
		objectID    int
		windowStart time.Time
		wantLen     int // hash length should be 64
	}{
		{
			name:        "maneuver signal",
			anomalyType: domain.AnomalyOrbitManeuver,
			objectID:    25544,
			windowStart: windowStart,
			wantLen:     64,
		},
		{
			name:        "divergence signal",
			anomalyType: domain.AnomalyProviderDivergence,
			objectID:    43013,
			windowStart: windowStart.Add(24 * time.Hour),
			wantLen:     64,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SignalFingerprint(tt.anomalyType, tt.objectID, tt.windowStart)

			if len(got) != tt.wantLen {
				t.Errorf("SignalFingerprint() length = %d, want %d", len(got), tt.wantLen)
			}

			// Verify determinism: same inputs should produce same output
			got2 := SignalFingerprint(tt.anomalyType, tt.objectID, tt.windowStart)
			if got != got2 {
				t.Errorf("SignalFingerprint() not deterministic: %s != %s", got, got2)
			}
		})
	}
}

func TestSignalFingerprint_DifferentInputs(t *testing.T) {
	windowStart := time.Date(2026, 3, 14, 6, 0, 0, 0, time.UTC)
	base := SignalFingerprint(domain.AnomalyOrbitManeuver, 25544, windowStart)

	// Different anomaly type should produce different hash
	diffType := SignalFingerprint(domain.AnomalyOrbitalDecay, 25544, windowStart)
	if base == diffType {
		t.Error("Different anomaly type should produce different hash")
	}

	// Different object should produce different hash
	diffObject := SignalFingerprint(domain.AnomalyOrbitManeuver, 43013, windowStart)
	if base == diffObject {
		t.Error("Different object should produce different hash")
	}

	// Different window should produce different hash
	diffWindow := SignalFingerprint(domain.AnomalyOrbitManeuver, 25544, windowStart.Add(24*time.Hour))
	if base == diffWindow {
		t.Error("Different window start should produce different hash")
	}
}

func TestSignalFingerprint_TimezoneInsensitive(t *testing.T) {
	utc := time.Date(2026, 3, 14, 6, 0, 0, 0, time.UTC)
	shifted := utc.In(time.FixedZone("UTC+5", 5*3600))

	a := SignalFingerprint(domain.AnomalyCoverageShift, 48274, utc)
	b := SignalFingerprint(domain.AnomalyCoverageShift, 48274, shifted)
	if a != b {
		t.Errorf("Fingerprint should not depend on wall-clock zone: %s != %s", a, b)
	}
}

func TestSignalShortID(t *testing.T) {
	windowStart := time.Date(2026, 3, 14, 6, 0, 0, 0, time.UTC)

	got := SignalShortID(domain.AnomalyOrbitManeuver, 25544, windowStart)
	if got == "" {
		t.Fatal("SignalShortID() returned empty string")
	}

	got2 := SignalShortID(domain.AnomalyOrbitManeuver, 25544, windowStart)
	if got != got2 {
		t.Errorf("SignalShortID() not deterministic: %s != %s", got, got2)
	}

	other := SignalShortID(domain.AnomalyOrbitManeuver, 25545, windowStart)
	if got == other {
		t.Error("Different object should produce different short id")
	}
}
