package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orbitwatch/internal/domain"
	"orbitwatch/internal/storage/memory"
)

type testEnv struct {
	signals    *memory.SignalStore
	divergence *memory.DivergenceStore
	baselines  *memory.BaselineStore
	hub        *Hub
	server     *httptest.Server
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		signals:    memory.NewSignalStore(),
		divergence: memory.NewDivergenceStore(),
		baselines:  memory.NewBaselineStore(),
		hub:        NewHub(nil, zerolog.Nop()),
	}

	srv := NewServer(Options{
		Signals:    env.signals,
		Divergence: env.divergence,
		Baselines:  env.baselines,
		Hub:        env.hub,
		Logger:     zerolog.Nop(),
	})

	env.server = httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		env.server.Close()
		env.hub.Close()
	})
	return env
}

func (env *testEnv) get(t *testing.T, path string) (int, []byte) {
	t.Helper()

	resp, err := http.Get(env.server.URL + path)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	return resp.StatusCode, body
}

func decodeJSON[T any](t *testing.T, body []byte) T {
	t.Helper()

	var v T
	require.NoError(t, json.Unmarshal(body, &v))
	return v
}

func testStreamSignal(fingerprint string, detectedAt time.Time) *domain.Signal {
	return &domain.Signal{
		Fingerprint:   fingerprint,
		ShortID:       "id-" + fingerprint,
		AnomalyType:   domain.AnomalyOrbitManeuver,
		Category:      domain.CategoryConstellation,
		Severity:      domain.SeverityHigh,
		Confidence:    0.85,
		ObjectID:      25544,
		MetricType:    domain.MetricInclinationDeg,
		Source:        domain.SourceSpaceTrack,
		ObservedValue: 51.92,
		BaselineMean:  51.60,
		ZScore:        6.4,
		Payload: domain.ManeuverPayload{
			Metric:         domain.MetricInclinationDeg,
			DeltaFromMean:  0.32,
			BaselineStddev: 0.05,
			WindowStart:    detectedAt.Add(-30 * 24 * time.Hour),
			WindowEnd:      detectedAt,
		},
		DetectedAt: detectedAt,
		ExpiresAt:  detectedAt.Add(48 * time.Hour),
	}
}

// signalListResponse mirrors the wire shape; Payload stays a loose map
// because the concrete payload type depends on the anomaly type.
type signalListResponse struct {
	Signals []struct {
		ShortID       string         `json:"short_id"`
		Fingerprint   string         `json:"fingerprint"`
		AnomalyType   string         `json:"anomaly_type"`
		Category      string         `json:"category"`
		Severity      string         `json:"severity"`
		Confidence    float64        `json:"confidence"`
		ObjectID      int            `json:"object_id"`
		MetricType    string         `json:"metric_type"`
		Source        string         `json:"source"`
		ObservedValue float64        `json:"observed_value"`
		BaselineMean  float64        `json:"baseline_mean"`
		ZScore        float64        `json:"z_score"`
		Payload       map[string]any `json:"payload"`
		DetectedAt    time.Time      `json:"detected_at"`
		ExpiresAt     time.Time      `json:"expires_at"`
		Processed     bool           `json:"processed"`
	} `json:"signals"`
	Count int `json:"count"`
}

func seedSignalFixtures(t *testing.T, env *testEnv, base time.Time) {
	t.Helper()
	ctx := context.Background()

	a := testStreamSignal("fp-a", base)

	b := testStreamSignal("fp-b", base.Add(time.Hour))
	b.AnomalyType = domain.AnomalyOrbitalDecay
	b.Severity = domain.SeverityMedium
	b.ObjectID = 43013
	b.MetricType = domain.MetricBstar
	b.Source = domain.SourceLeoLabs
	b.Payload = domain.DecayPayload{Metric: domain.MetricBstar, DeltaFromMean: 2.1e-5}

	c := testStreamSignal("fp-c", base.Add(2*time.Hour))
	c.AnomalyType = domain.AnomalyProviderDivergence
	c.Category = domain.CategoryRegulatory
	c.Severity = domain.SeverityCritical
	c.MetricType = domain.MetricBstar
	c.Source = ""
	c.ObservedValue = 42.0
	c.Payload = domain.DivergencePayload{
		Metric:           domain.MetricBstar,
		SpaceTrackValue:  1.0e-5,
		LeoLabsValue:     2.0e-5,
		RelativeDeltaPct: 42.0,
		EpochGapSeconds:  3600,
	}

	for _, sig := range []*domain.Signal{a, b, c} {
		_, err := env.signals.UpsertByFingerprint(ctx, sig)
		require.NoError(t, err)
	}
}

func TestSignalsEndpoint_ListsNewestFirst(t *testing.T) {
	env := newTestEnv(t)
	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	seedSignalFixtures(t, env, base)

	status, body := env.get(t, "/api/v1/signals")
	require.Equal(t, http.StatusOK, status)

	resp := decodeJSON[signalListResponse](t, body)
	require.Equal(t, 3, resp.Count)
	require.Len(t, resp.Signals, 3)

	assert.Equal(t, "fp-c", resp.Signals[0].Fingerprint)
	assert.Equal(t, "fp-b", resp.Signals[1].Fingerprint)
	assert.Equal(t, "fp-a", resp.Signals[2].Fingerprint)

	// The divergence signal carries no source and its payload keeps
	// both values attributed.
	div := resp.Signals[0]
	assert.Equal(t, "provider_divergence", div.AnomalyType)
	assert.Equal(t, "regulatory", div.Category)
	assert.Equal(t, "", div.Source)
	assert.Equal(t, 42.0, div.Payload["relative_delta_pct"])
	assert.Equal(t, 1.0e-5, div.Payload["spacetrack_value"])
	assert.Equal(t, 2.0e-5, div.Payload["leolabs_value"])
	assert.True(t, div.DetectedAt.Equal(base.Add(2*time.Hour)))

	got := resp.Signals[2]
	assert.Equal(t, "id-fp-a", got.ShortID)
	assert.Equal(t, "orbit_maneuver", got.AnomalyType)
	assert.Equal(t, 25544, got.ObjectID)
	assert.Equal(t, "spacetrack", got.Source)
	assert.Equal(t, 51.92, got.ObservedValue)
	assert.Equal(t, 6.4, got.ZScore)
	assert.Equal(t, 0.32, got.Payload["delta_from_mean"])
	assert.False(t, got.Processed)
}

func TestSignalsEndpoint_Filters(t *testing.T) {
	env := newTestEnv(t)
	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	seedSignalFixtures(t, env, base)

	cases := []struct {
		name  string
		query string
		want  []string
	}{
		{"severity floor", "?severity=high", []string{"fp-c", "fp-a"}},
		{"category", "?category=regulatory", []string{"fp-c"}},
		{"object", "?object_id=43013", []string{"fp-b"}},
		{"anomaly type", "?anomaly_type=orbit_maneuver", []string{"fp-a"}},
		{"source", "?source=leolabs", []string{"fp-b"}},
		{"from inclusive", "?from=" + base.Add(time.Hour).Format(time.RFC3339), []string{"fp-c", "fp-b"}},
		{"to exclusive", "?to=" + base.Add(time.Hour).Format(time.RFC3339), []string{"fp-a"}},
		{"limit", "?limit=1", []string{"fp-c"}},
		{"combined", "?severity=medium&source=leolabs", []string{"fp-b"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, body := env.get(t, "/api/v1/signals"+tc.query)
			require.Equal(t, http.StatusOK, status)

			resp := decodeJSON[signalListResponse](t, body)
			require.Equal(t, len(tc.want), resp.Count)

			var got []string
			for _, sig := range resp.Signals {
				got = append(got, sig.Fingerprint)
			}
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestSignalsEndpoint_LiveFilter(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	now := time.Now().UTC()

	live := testStreamSignal("fp-live", now.Add(-time.Hour))
	stale := testStreamSignal("fp-stale", now.Add(-72*time.Hour))
	stale.ObjectID = 43013

	for _, sig := range []*domain.Signal{live, stale} {
		_, err := env.signals.UpsertByFingerprint(ctx, sig)
		require.NoError(t, err)
	}

	status, body := env.get(t, "/api/v1/signals?live=true")
	require.Equal(t, http.StatusOK, status)
	resp := decodeJSON[signalListResponse](t, body)
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, "fp-live", resp.Signals[0].Fingerprint)

	status, body = env.get(t, "/api/v1/signals")
	require.Equal(t, http.StatusOK, status)
	resp = decodeJSON[signalListResponse](t, body)
	assert.Equal(t, 2, resp.Count)
}

func TestSignalsEndpoint_RejectsBadParams(t *testing.T) {
	env := newTestEnv(t)

	queries := []string{
		"?severity=urgent",
		"?category=sports",
		"?anomaly_type=comet",
		"?source=celestrak",
		"?object_id=abc",
		"?object_id=-1",
		"?from=yesterday",
		"?to=2026-13-40",
		"?live=sometimes",
		"?limit=0",
		"?limit=many",
	}

	for _, q := range queries {
		t.Run(q, func(t *testing.T) {
			status, _ := env.get(t, "/api/v1/signals"+q)
			assert.Equal(t, http.StatusBadRequest, status)
		})
	}
}

type divergenceListResponse struct {
	ObjectID int `json:"object_id"`
	Records  []struct {
		ObjectID   int    `json:"object_id"`
		MetricType string `json:"metric_type"`
		SpaceTrack struct {
			Value float64   `json:"value"`
			Epoch time.Time `json:"epoch"`
		} `json:"spacetrack"`
		LeoLabs struct {
			Value float64   `json:"value"`
			Epoch time.Time `json:"epoch"`
		} `json:"leolabs"`
		Delta            float64   `json:"delta"`
		RelativeDeltaPct float64   `json:"relative_delta_pct"`
		EpochGapSeconds  int64     `json:"epoch_gap_seconds"`
		Verdict          string    `json:"verdict"`
		EvaluatedAt      time.Time `json:"evaluated_at"`
	} `json:"records"`
	Count int `json:"count"`
}

func TestDivergenceEndpoint(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	evaluatedAt := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	diverged := &domain.DivergenceRecord{
		ObjectID:         25544,
		MetricType:       domain.MetricBstar,
		SpaceTrack:       domain.MetricObservation{Value: 1.0e-5, Epoch: evaluatedAt.Add(-2 * time.Hour)},
		LeoLabs:          domain.MetricObservation{Value: 2.0e-5, Epoch: evaluatedAt.Add(-time.Hour)},
		Delta:            1.0e-5,
		RelativeDeltaPct: 50.0,
		EpochGap:         time.Hour,
		Verdict:          domain.VerdictDiverged,
		EvaluatedAt:      evaluatedAt,
	}
	consistent := &domain.DivergenceRecord{
		ObjectID:         25544,
		MetricType:       domain.MetricMeanMotionRevDay,
		SpaceTrack:       domain.MetricObservation{Value: 15.49, Epoch: evaluatedAt.Add(-2 * time.Hour)},
		LeoLabs:          domain.MetricObservation{Value: 15.50, Epoch: evaluatedAt.Add(-time.Hour)},
		Delta:            0.01,
		RelativeDeltaPct: 0.06,
		EpochGap:         time.Hour,
		Verdict:          domain.VerdictConsistent,
		EvaluatedAt:      evaluatedAt,
	}
	other := &domain.DivergenceRecord{
		ObjectID:         43013,
		MetricType:       domain.MetricBstar,
		SpaceTrack:       domain.MetricObservation{Value: 3.0e-5, Epoch: evaluatedAt},
		LeoLabs:          domain.MetricObservation{Value: 3.1e-5, Epoch: evaluatedAt},
		RelativeDeltaPct: 3.2,
		Verdict:          domain.VerdictConsistent,
		EvaluatedAt:      evaluatedAt,
	}

	for _, rec := range []*domain.DivergenceRecord{diverged, consistent, other} {
		require.NoError(t, env.divergence.Upsert(ctx, rec))
	}

	status, body := env.get(t, "/api/v1/objects/25544/divergence")
	require.Equal(t, http.StatusOK, status)

	resp := decodeJSON[divergenceListResponse](t, body)
	assert.Equal(t, 25544, resp.ObjectID)
	require.Equal(t, 2, resp.Count)
	require.Len(t, resp.Records, 2)

	// Records come back in metric order; both providers stay attributed.
	got := resp.Records[0]
	assert.Equal(t, "bstar", got.MetricType)
	assert.Equal(t, "diverged", got.Verdict)
	assert.Equal(t, 1.0e-5, got.SpaceTrack.Value)
	assert.Equal(t, 2.0e-5, got.LeoLabs.Value)
	assert.Equal(t, 50.0, got.RelativeDeltaPct)
	assert.Equal(t, int64(3600), got.EpochGapSeconds)
	assert.True(t, got.EvaluatedAt.Equal(evaluatedAt))
	assert.Equal(t, "mean_motion_rev_day", resp.Records[1].MetricType)
}

func TestDivergenceEndpoint_UnknownObjectIsEmpty(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.get(t, "/api/v1/objects/99999/divergence")
	require.Equal(t, http.StatusOK, status)

	resp := decodeJSON[divergenceListResponse](t, body)
	assert.Equal(t, 0, resp.Count)
	assert.Len(t, resp.Records, 0)
}

func TestDivergenceEndpoint_NonNumericIDDoesNotRoute(t *testing.T) {
	env := newTestEnv(t)

	status, _ := env.get(t, "/api/v1/objects/iss/divergence")
	assert.Equal(t, http.StatusNotFound, status)
}

type baselineListResponse struct {
	ObjectID  int    `json:"object_id"`
	Source    string `json:"source"`
	Metric    string `json:"metric"`
	Baselines []struct {
		ObjectID    int       `json:"object_id"`
		MetricType  string    `json:"metric_type"`
		Source      string    `json:"source"`
		Mean        float64   `json:"mean"`
		Stddev      float64   `json:"stddev"`
		Median      float64   `json:"median"`
		P95         float64   `json:"p95"`
		SampleCount int       `json:"sample_count"`
		WindowStart time.Time `json:"window_start"`
		WindowEnd   time.Time `json:"window_end"`
		ComputedAt  time.Time `json:"computed_at"`
	} `json:"baselines"`
	Count int `json:"count"`
}

func seedBaselineFixtures(t *testing.T, env *testEnv, day time.Time) {
	t.Helper()
	ctx := context.Background()

	insert := func(metric domain.MetricType, source domain.Source, mean float64, computedAt time.Time) {
		t.Helper()
		require.NoError(t, env.baselines.Insert(ctx, &domain.Baseline{
			ObjectID:    25544,
			MetricType:  metric,
			Source:      source,
			Mean:        mean,
			Stddev:      0.05,
			Median:      mean,
			P95:         mean + 0.1,
			SampleCount: 12,
			WindowStart: computedAt.Add(-30 * 24 * time.Hour),
			WindowEnd:   computedAt,
			ComputedAt:  computedAt,
		}))
	}

	insert(domain.MetricInclinationDeg, domain.SourceSpaceTrack, 51.58, day.Add(-48*time.Hour))
	insert(domain.MetricInclinationDeg, domain.SourceSpaceTrack, 51.60, day.Add(-24*time.Hour))
	insert(domain.MetricInclinationDeg, domain.SourceSpaceTrack, 51.62, day)
	insert(domain.MetricEccentricity, domain.SourceSpaceTrack, 0.00042, day)
	insert(domain.MetricInclinationDeg, domain.SourceLeoLabs, 51.61, day)
}

func TestBaselinesEndpoint_LatestPerMetric(t *testing.T) {
	env := newTestEnv(t)
	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	seedBaselineFixtures(t, env, day)

	status, body := env.get(t, "/api/v1/objects/25544/baselines?source=spacetrack")
	require.Equal(t, http.StatusOK, status)

	resp := decodeJSON[baselineListResponse](t, body)
	assert.Equal(t, "spacetrack", resp.Source)
	assert.Empty(t, resp.Metric)
	require.Equal(t, 2, resp.Count)

	// Canonical metric order, newest row per metric.
	assert.Equal(t, "inclination_deg", resp.Baselines[0].MetricType)
	assert.Equal(t, 51.62, resp.Baselines[0].Mean)
	assert.Equal(t, 12, resp.Baselines[0].SampleCount)
	assert.Equal(t, "eccentricity", resp.Baselines[1].MetricType)
	assert.Equal(t, 0.00042, resp.Baselines[1].Mean)
}

func TestBaselinesEndpoint_MetricHistory(t *testing.T) {
	env := newTestEnv(t)
	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	seedBaselineFixtures(t, env, day)

	status, body := env.get(t, "/api/v1/objects/25544/baselines?source=spacetrack&metric=inclination_deg")
	require.Equal(t, http.StatusOK, status)

	resp := decodeJSON[baselineListResponse](t, body)
	assert.Equal(t, "inclination_deg", resp.Metric)
	require.Equal(t, 3, resp.Count)
	assert.Equal(t, 51.62, resp.Baselines[0].Mean)
	assert.Equal(t, 51.60, resp.Baselines[1].Mean)
	assert.Equal(t, 51.58, resp.Baselines[2].Mean)

	status, body = env.get(t, "/api/v1/objects/25544/baselines?source=spacetrack&metric=inclination_deg&limit=2")
	require.Equal(t, http.StatusOK, status)
	resp = decodeJSON[baselineListResponse](t, body)
	require.Equal(t, 2, resp.Count)
	assert.Equal(t, 51.62, resp.Baselines[0].Mean)

	// The other provider's stream stays separate.
	status, body = env.get(t, "/api/v1/objects/25544/baselines?source=leolabs")
	require.Equal(t, http.StatusOK, status)
	resp = decodeJSON[baselineListResponse](t, body)
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, 51.61, resp.Baselines[0].Mean)
}

func TestBaselinesEndpoint_RejectsBadParams(t *testing.T) {
	env := newTestEnv(t)

	queries := []string{
		"",
		"?source=celestrak",
		"?source=spacetrack&metric=drag_index",
		"?source=spacetrack&limit=-1",
		"?source=spacetrack&limit=soon",
	}

	for _, q := range queries {
		t.Run("q="+q, func(t *testing.T) {
			status, _ := env.get(t, "/api/v1/objects/25544/baselines"+q)
			assert.Equal(t, http.StatusBadRequest, status)
		})
	}
}

func TestHealthzEndpoint(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.get(t, "/api/v1/healthz")
	require.Equal(t, http.StatusOK, status)

	resp := decodeJSON[struct {
		Status        string    `json:"status"`
		Timestamp     time.Time `json:"timestamp"`
		StreamClients int       `json:"stream_clients"`
	}](t, body)

	assert.Equal(t, "ok", resp.Status)
	assert.WithinDuration(t, time.Now().UTC(), resp.Timestamp, 5*time.Second)
	assert.Equal(t, 0, resp.StreamClients)
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.get(t, "/metrics")
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), "go_goroutines")
}

func TestCORSAllowsConfiguredOrigin(t *testing.T) {
	srv := NewServer(Options{
		CORSOrigins: []string{"https://dashboard.example.com"},
		Signals:     memory.NewSignalStore(),
		Divergence:  memory.NewDivergenceStore(),
		Baselines:   memory.NewBaselineStore(),
		Logger:      zerolog.Nop(),
	})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	req, err := http.NewRequest("GET", fmt.Sprintf("%s/api/v1/signals", ts.URL), nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://dashboard.example.com")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "https://dashboard.example.com", resp.Header.Get("Access-Control-Allow-Origin"))
}
