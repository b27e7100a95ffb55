package ingestion

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"orbitwatch/internal/domain"
	"orbitwatch/internal/storage"
	"orbitwatch/internal/tle"
)

// IngestResult counts what one provider fetch did to storage.
type IngestResult struct {
	Source     domain.Source
	Fetched    int // raw sets the provider returned
	Accepted   int // new records persisted
	Duplicates int // (object, epoch, source) already stored
	Rejected   int // failed validation, nothing persisted
}

// Ingestor validates raw element sets and persists them. A set either
// passes every line check and is stored whole, or is rejected whole;
// the only field allowed to degrade is the drag term, which parses to
// absent.
type Ingestor struct {
	telemetry storage.TelemetryStore
	logger    zerolog.Logger
}

func NewIngestor(telemetry storage.TelemetryStore, logger zerolog.Logger) *Ingestor {
	return &Ingestor{
		telemetry: telemetry,
		logger:    logger.With().Str("component", "ingestion").Logger(),
	}
}

// Ingest parses and persists one provider's fetch under that provider's
// tag. Re-ingesting the same sets is a no-op counted as duplicates, so
// retried fetches never double-store.
func (i *Ingestor) Ingest(ctx context.Context, source domain.Source, sets []tle.ElementSet) (*IngestResult, error) {
	if !source.IsValid() {
		return nil, fmt.Errorf("%w: source %q", storage.ErrInvalidInput, source)
	}

	res := &IngestResult{Source: source, Fetched: len(sets)}
	now := time.Now().UTC()

	for _, set := range sets {
		elems, err := tle.Parse(set)
		if err != nil {
			res.Rejected++
			i.logger.Warn().
				Err(err).
				Str("source", source.String()).
				Str("name", set.Name).
				Msg("element set rejected")
			continue
		}

		rec := &domain.TelemetryRecord{
			ObjectID:         elems.ObjectID,
			Epoch:            elems.Epoch,
			Source:           source,
			InclinationDeg:   elems.InclinationDeg,
			RAANDeg:          elems.RAANDeg,
			Eccentricity:     elems.Eccentricity,
			ArgPerigeeDeg:    elems.ArgPerigeeDeg,
			MeanAnomalyDeg:   elems.MeanAnomalyDeg,
			MeanMotionRevDay: elems.MeanMotionRevDay,
			Bstar:            elems.Bstar,
			Line1:            set.Line1,
			Line2:            set.Line2,
			IngestedAt:       now,
		}

		created, err := i.telemetry.Upsert(ctx, rec)
		if err != nil {
			return res, fmt.Errorf("store element set for object %d: %w", elems.ObjectID, err)
		}
		if created {
			res.Accepted++
		} else {
			res.Duplicates++
		}
	}

	i.logger.Info().
		Str("source", source.String()).
		Int("fetched", res.Fetched).
		Int("accepted", res.Accepted).
		Int("duplicates", res.Duplicates).
		Int("rejected", res.Rejected).
		Msg("ingest finished")

	return res, nil
}
