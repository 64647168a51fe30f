package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/nerrad567/wallbox-bridge/internal/infrastructure/config"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()

	j, err := Open(config.JournalConfig{
		Path:        filepath.Join(t.TempDir(), "journal.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() {
		if err := j.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	})
	return j
}

func TestOpen_CreatesDirectoryAndSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "journal.db")
	j, err := Open(config.JournalConfig{Path: path, WALMode: true, BusyTimeout: 5})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer j.Close()

	if j.Path() != path {
		t.Errorf("Path() = %q, want %q", j.Path(), path)
	}
	if err := j.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

func TestRecordAndRecent(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	if err := j.Record("wallbox", "in", "openWB/counter/0/get/power", []byte("4200"), 1, true); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if err := j.Record("wallbox", "out", "openWB/set/chargepoint/4/get/enabled", []byte("true"), 0, false); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	entries, err := j.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}

	// Newest first
	newest := entries[0]
	if newest.Direction != "out" || newest.Topic != "openWB/set/chargepoint/4/get/enabled" {
		t.Errorf("newest entry = %+v", newest)
	}
	if newest.Retained {
		t.Error("retained flag invented for the out entry")
	}

	oldest := entries[1]
	if oldest.Bridge != "wallbox" || string(oldest.Payload) != "4200" {
		t.Errorf("oldest entry = %+v", oldest)
	}
	if oldest.QoS != 1 || !oldest.Retained {
		t.Errorf("delivery flags not preserved: qos=%d retained=%v", oldest.QoS, oldest.Retained)
	}

	count, err := j.Count(ctx)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != 2 {
		t.Errorf("Count() = %d, want 2", count)
	}
}

func TestRecent_RespectsLimit(t *testing.T) {
	j := openTestJournal(t)

	for i := 0; i < 5; i++ {
		if err := j.Record("wallbox", "in", "openWB/counter/0/get/power", []byte("4200"), 0, false); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	entries, err := j.Recent(context.Background(), 3)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(entries) != 3 {
		t.Errorf("got %d entries, want 3", len(entries))
	}
}

func TestPrune(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	if err := j.Record("wallbox", "in", "openWB/counter/0/get/power", []byte("4200"), 0, false); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	// Everything is newer than the retention window: nothing removed.
	removed, err := j.Prune(ctx, time.Hour)
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if removed != 0 {
		t.Errorf("Prune(1h) removed %d, want 0", removed)
	}

	// A negative window puts the cutoff in the future, removing
	// everything already written (timestamps have second granularity).
	removed, err = j.Prune(ctx, -2*time.Second)
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if removed != 1 {
		t.Errorf("Prune(0) removed %d, want 1", removed)
	}

	count, err := j.Count(ctx)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != 0 {
		t.Errorf("Count() after prune = %d, want 0", count)
	}
}

func TestClose_Idempotent(t *testing.T) {
	j, err := Open(config.JournalConfig{
		Path:        filepath.Join(t.TempDir(), "journal.db"),
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := j.Close(); err != nil {
		t.Errorf("first Close() error = %v", err)
	}
	if err := j.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}
