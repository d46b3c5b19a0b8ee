package storage

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/samvad-hq/samvad-kindle-courier/internal/domain"
)

func openTestStore(t *testing.T, opts Options) *boltStore {
	t.Helper()
	storeRaw, err := openBolt(t.TempDir()+"/nested/audit.db", normalizeOptions(opts))
	if err != nil {
		t.Fatalf("openBolt: %v", err)
	}
	store := storeRaw.(*boltStore)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestBoltStoreRecentIsNewestFirst(t *testing.T) {
	store := openTestStore(t, Options{})
	base := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		rec := Record{ID: fmt.Sprintf("id-%d", i), URL: "https://example.com", StartedAt: base.Add(time.Duration(i) * time.Minute)}
		if err := store.Record(rec); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	recs, err := store.Recent(3)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("expected 3 records, got %d", len(recs))
	}
	for i, want := range []string{"id-4", "id-3", "id-2"} {
		if recs[i].ID != want {
			t.Fatalf("position %d: expected %s, got %s", i, want, recs[i].ID)
		}
	}
}

func TestBoltStoreExpiresRecords(t *testing.T) {
	store := openTestStore(t, Options{RecordTTL: time.Hour, CleanupInterval: time.Minute})
	clock := time.Now()
	store.now = func() time.Time { return clock }

	if err := store.Record(Record{ID: "old", StartedAt: clock}); err != nil {
		t.Fatalf("Record: %v", err)
	}

	clock = clock.Add(2 * time.Hour)
	recs, err := store.Recent(10)
	if err != nil {
		t.Fatalf("Recent after expiry: %v", err)
	}
	if len(recs) != 0 {
		t.Fatalf("expected expired record to be dropped, got %+v", recs)
	}

	var keys int
	if err := store.db.View(func(tx *bolt.Tx) error {
		keys = tx.Bucket([]byte(deliveryBucket)).Stats().KeyN
		return nil
	}); err != nil {
		t.Fatalf("view: %v", err)
	}
	if keys != 0 {
		t.Fatalf("expected cleanup to delete expired keys, %d left", keys)
	}
}

func TestBoltStoreRejectsMissingID(t *testing.T) {
	store := openTestStore(t, Options{})
	if err := store.Record(Record{}); err == nil {
		t.Fatalf("expected error for record without id")
	}
}

func TestAuditObserverRecordsOutcome(t *testing.T) {
	store := openTestStore(t, Options{})
	obs := NewAuditObserver(store)

	started := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	outcome := domain.Outcome{
		DeliveryID: "d-1",
		Request:    domain.DeliveryRequest{URL: "https://example.com/a", KindleEmail: "reader@kindle.com"},
		Title:      "Harbour",
		Stage:      domain.StageDeliver,
		Err:        &domain.DeliveryError{Recipient: "reader@kindle.com", Err: errors.New("relay down")},
		StartedAt:  started,
		FinishedAt: started.Add(time.Second),
	}
	if err := obs.Observe(context.Background(), outcome); err != nil {
		t.Fatalf("Observe: %v", err)
	}

	recs, err := store.Recent(1)
	if err != nil || len(recs) != 1 {
		t.Fatalf("Recent: %v %+v", err, recs)
	}
	got := recs[0]
	if got.ID != "d-1" || got.Status != StatusFailed || got.Stage != "deliver" || got.Recipient != "reader@kindle.com" {
		t.Fatalf("unexpected record %+v", got)
	}
	if got.Error == "" {
		t.Fatalf("expected error text on failed record")
	}
}

func TestRecordFromOutcomeSuccess(t *testing.T) {
	rec := RecordFromOutcome(domain.Outcome{DeliveryID: "d-2", Stage: domain.StageDeliver})
	if rec.Status != StatusDelivered || rec.Error != "" {
		t.Fatalf("unexpected record %+v", rec)
	}
}

func TestNewStoreSupportsNoop(t *testing.T) {
	store, err := NewStore("none", "", Options{})
	if err != nil {
		t.Fatalf("NewStore none: %v", err)
	}
	if err := store.Record(Record{ID: "x"}); err != nil {
		t.Fatalf("noop store Record: %v", err)
	}
	recs, err := store.Recent(5)
	if err != nil || len(recs) != 0 {
		t.Fatalf("noop store Recent: %v %v", recs, err)
	}
}

func TestNewStoreRejectsUnknownType(t *testing.T) {
	if _, err := NewStore("redis", "", Options{}); err == nil {
		t.Fatalf("expected error for unsupported type")
	}
	if _, err := NewStore("bbolt", " ", Options{}); err == nil {
		t.Fatalf("expected error for empty bbolt path")
	}
}
