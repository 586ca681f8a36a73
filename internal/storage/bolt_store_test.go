package storage

import (
	"testing"
	"time"
)

func TestBoltStoreMarksAndExpiresBuilds(t *testing.T) {
	dir := t.TempDir()
	opts := Options{
		EntryTTL:        1 * time.Second,
		CleanupInterval: 1 * time.Second,
	}

	storeRaw, err := openBolt(dir+"/reported.db", opts)
	if err != nil {
		t.Fatalf("openBolt: %v", err)
	}
	store := storeRaw.(*boltStore)
	defer store.Close()

	reported, err := store.Reported(202199463, 1)
	if err != nil || reported {
		t.Fatalf("expected unreported build, reported=%v err=%v", reported, err)
	}

	if err := store.MarkReported(202199463, 1); err != nil {
		t.Fatalf("MarkReported: %v", err)
	}

	reported, err = store.Reported(202199463, 1)
	if err != nil || !reported {
		t.Fatalf("expected build marked as reported, got reported=%v err=%v", reported, err)
	}

	// Fast-forward cleanup cadence and trigger expiry.
	store.lastCleanup.Store(time.Now().Add(-2 * time.Second).Unix())
	time.Sleep(1100 * time.Millisecond)

	reported, err = store.Reported(202199463, 1)
	if err != nil {
		t.Fatalf("Reported after expiry: %v", err)
	}
	if reported {
		t.Fatalf("expected entry to expire and be removed")
	}
}

func TestBoltStoreStatusChangeIsNotReported(t *testing.T) {
	storeRaw, err := openBolt(t.TempDir()+"/nested/reported.db", Options{EntryTTL: time.Hour, CleanupInterval: time.Hour})
	if err != nil {
		t.Fatalf("openBolt: %v", err)
	}
	defer storeRaw.Close()

	if err := storeRaw.MarkReported(7, 0); err != nil {
		t.Fatalf("MarkReported: %v", err)
	}
	reported, err := storeRaw.Reported(7, 1)
	if err != nil {
		t.Fatalf("Reported: %v", err)
	}
	if reported {
		t.Fatalf("a new status must be reported again")
	}
	if reported, _ := storeRaw.Reported(8, 0); reported {
		t.Fatalf("unrelated build reported")
	}
}

func TestNewStoreSupportsNoop(t *testing.T) {
	store, err := NewStore("none", "", Options{})
	if err != nil {
		t.Fatalf("NewStore none: %v", err)
	}
	if err := store.MarkReported(1, 0); err != nil {
		t.Fatalf("noop store MarkReported: %v", err)
	}
	if _, err := NewStore("redis", "", Options{}); err == nil {
		t.Fatalf("expected unsupported storage type error")
	}
	if _, err := NewStore("bbolt", " ", Options{}); err == nil {
		t.Fatalf("expected missing path error")
	}
}
