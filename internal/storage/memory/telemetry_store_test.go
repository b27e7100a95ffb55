package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"orbitwatch/internal/domain"
	"orbitwatch/internal/storage"
)

func record(objectID int, source domain.Source, epoch time.Time) *domain.TelemetryRecord {
	return &domain.TelemetryRecord{
		ObjectID:         objectID,
		Epoch:            epoch,
		Source:           source,
		InclinationDeg:   51.6,
		Eccentricity:     0.0007,
		MeanMotionRevDay: 15.72,
		Line1:            "line1",
		Line2:            "line2",
		IngestedAt:       epoch.Add(time.Hour),
	}
}

func TestTelemetryStore_UpsertIsIdempotent(t *testing.T) {
	store := NewTelemetryStore()
	ctx := context.Background()
	epoch := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	inserted, err := store.Upsert(ctx, record(25544, domain.SourceSpaceTrack, epoch))
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if !inserted {
		t.Fatal("first Upsert() inserted = false, want true")
	}

	// Same (object, epoch, source) again: no-op, not an error.
	inserted, err = store.Upsert(ctx, record(25544, domain.SourceSpaceTrack, epoch))
	if err != nil {
		t.Fatalf("second Upsert() error = %v", err)
	}
	if inserted {
		t.Fatal("second Upsert() inserted = true, want false")
	}

	// Same object and epoch from the other provider is a distinct row.
	inserted, err = store.Upsert(ctx, record(25544, domain.SourceLeoLabs, epoch))
	if err != nil {
		t.Fatalf("Upsert() from second source error = %v", err)
	}
	if !inserted {
		t.Fatal("Upsert() from second source inserted = false, want true")
	}
}

func TestTelemetryStore_ReadsAreSingleSource(t *testing.T) {
	store := NewTelemetryStore()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	// Interleave records from both providers for the same object.
	for i := 0; i < 4; i++ {
		epoch := base.Add(time.Duration(i) * 6 * time.Hour)
		if _, err := store.Upsert(ctx, record(25544, domain.SourceSpaceTrack, epoch)); err != nil {
			t.Fatalf("Upsert(spacetrack) error = %v", err)
		}
		if _, err := store.Upsert(ctx, record(25544, domain.SourceLeoLabs, epoch.Add(time.Hour))); err != nil {
			t.Fatalf("Upsert(leolabs) error = %v", err)
		}
	}

	got, err := store.Range(ctx, 25544, domain.SourceSpaceTrack, base, base.Add(48*time.Hour))
	if err != nil {
		t.Fatalf("Range() error = %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("Range() returned %d records, want 4", len(got))
	}
	for i, rec := range got {
		if rec.Source != domain.SourceSpaceTrack {
			t.Errorf("Range() leaked a %s record into a spacetrack query", rec.Source)
		}
		if i > 0 && !got[i-1].Epoch.Before(rec.Epoch) {
			t.Error("Range() not ordered by epoch ASC")
		}
	}

	latest, err := store.Latest(ctx, 25544, domain.SourceLeoLabs)
	if err != nil {
		t.Fatalf("Latest() error = %v", err)
	}
	if latest.Source != domain.SourceLeoLabs {
		t.Errorf("Latest() source = %s, want leolabs", latest.Source)
	}
	if !latest.Epoch.Equal(base.Add(18*time.Hour + time.Hour)) {
		t.Errorf("Latest() epoch = %v, want newest leolabs epoch", latest.Epoch)
	}
}

func TestTelemetryStore_LatestNotFound(t *testing.T) {
	store := NewTelemetryStore()

	_, err := store.Latest(context.Background(), 99999, domain.SourceSpaceTrack)
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Latest() error = %v, want ErrNotFound", err)
	}
}

func TestTelemetryStore_ListObjectIDs(t *testing.T) {
	store := NewTelemetryStore()
	ctx := context.Background()
	epoch := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	for _, id := range []int{43013, 25544, 48274} {
		if _, err := store.Upsert(ctx, record(id, domain.SourceSpaceTrack, epoch)); err != nil {
			t.Fatalf("Upsert() error = %v", err)
		}
	}
	if _, err := store.Upsert(ctx, record(11111, domain.SourceLeoLabs, epoch)); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	ids, err := store.ListObjectIDs(ctx, domain.SourceSpaceTrack)
	if err != nil {
		t.Fatalf("ListObjectIDs() error = %v", err)
	}
	want := []int{25544, 43013, 48274}
	if len(ids) != len(want) {
		t.Fatalf("ListObjectIDs() = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("ListObjectIDs()[%d] = %d, want %d", i, ids[i], want[i])
		}
	}
}

func TestTelemetryStore_DeleteBefore(t *testing.T) {
	store := NewTelemetryStore()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		if _, err := store.Upsert(ctx, record(25544, domain.SourceSpaceTrack, base.AddDate(0, 0, i))); err != nil {
			t.Fatalf("Upsert() error = %v", err)
		}
	}

	removed, err := store.DeleteBefore(ctx, base.AddDate(0, 0, 3))
	if err != nil {
		t.Fatalf("DeleteBefore() error = %v", err)
	}
	if removed != 3 {
		t.Errorf("DeleteBefore() removed = %d, want 3", removed)
	}

	left, err := store.Range(ctx, 25544, domain.SourceSpaceTrack, base, base.AddDate(0, 0, 10))
	if err != nil {
		t.Fatalf("Range() error = %v", err)
	}
	if len(left) != 2 {
		t.Errorf("records remaining = %d, want 2", len(left))
	}
}

func TestTelemetryStore_RejectsInvalidInput(t *testing.T) {
	store := NewTelemetryStore()
	ctx := context.Background()

	if _, err := store.Upsert(ctx, nil); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Upsert(nil) error = %v, want ErrInvalidInput", err)
	}

	bad := record(25544, domain.Source("celestrak"), time.Now())
	if _, err := store.Upsert(ctx, bad); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Upsert() with unknown source error = %v, want ErrInvalidInput", err)
	}

	if _, err := store.Latest(ctx, 25544, domain.Source("")); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Latest() with empty source error = %v, want ErrInvalidInput", err)
	}
}
