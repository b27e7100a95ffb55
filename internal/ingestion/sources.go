// Package ingestion pulls element sets from the two telemetry providers
// and persists them with their provenance tag. The providers are never
// merged here: each fetch is one source, each stored record keeps that
// source for life.
package ingestion

import (
	"context"
	"strconv"
	"strings"

	"orbitwatch/internal/domain"
	"orbitwatch/internal/tle"
)

// ElementSetSource pulls raw element sets for a batch of catalog
// numbers from one provider. Implementations own their auth, rate
// limiting and wire format; they return raw sets for the Ingestor to
// validate.
type ElementSetSource interface {
	// Source identifies the provider every returned set belongs to.
	Source() domain.Source

	// Fetch returns the latest element sets for the given catalog
	// numbers. Sets may be malformed; validation is the Ingestor's job.
	Fetch(ctx context.Context, objectIDs []int) ([]tle.ElementSet, error)
}

// joinObjectIDs renders catalog numbers as the comma list both provider
// APIs take.
func joinObjectIDs(objectIDs []int) string {
	parts := make([]string, 0, len(objectIDs))
	for _, id := range objectIDs {
		parts = append(parts, strconv.Itoa(id))
	}
	return strings.Join(parts, ",")
}
