package store_test

import (
	"context"
	"path/filepath"
	"testing"

	"omemo/internal/domain"
	"omemo/internal/store"
)

const account = "me@example.com"

func openDevices(t *testing.T) *store.DeviceSQLiteStore {
	t.Helper()
	s, err := store.OpenDeviceStore(filepath.Join(t.TempDir(), "devices.db"), account)
	if err != nil {
		t.Fatalf("OpenDeviceStore: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestDevicesFor_UnknownIdentityIsEmpty(t *testing.T) {
	s := openDevices(t)
	ctx := context.Background()

	got, err := s.DevicesFor(ctx, "nobody@example.com")
	if err != nil {
		t.Fatalf("DevicesFor: %v", err)
	}
	if got.Len() != 0 {
		t.Fatalf("want empty set, got %v", got.Sorted())
	}
	if _, known, err := s.Snapshot(ctx, "nobody@example.com"); err != nil || known {
		t.Fatalf("want unknown snapshot, got known=%v err=%v", known, err)
	}
}

func TestRecordBuddyDevices_Idempotent(t *testing.T) {
	s := openDevices(t)
	ctx := context.Background()
	ids := domain.NewDeviceSet(1, 2)

	for i := 0; i < 2; i++ {
		if err := s.RecordBuddyDevices(ctx, "alice@example.com", ids); err != nil {
			t.Fatalf("RecordBuddyDevices: %v", err)
		}
	}
	got, err := s.DevicesFor(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("DevicesFor: %v", err)
	}
	if !got.Equal(ids) {
		t.Fatalf("want %v, got %v", ids.Sorted(), got.Sorted())
	}
}

func TestRecordBuddyDevices_ReplacesNotMerges(t *testing.T) {
	s := openDevices(t)
	ctx := context.Background()

	if err := s.RecordBuddyDevices(ctx, "alice@example.com", domain.NewDeviceSet(1, 2)); err != nil {
		t.Fatalf("RecordBuddyDevices: %v", err)
	}
	if err := s.RecordBuddyDevices(ctx, "alice@example.com", domain.NewDeviceSet(3)); err != nil {
		t.Fatalf("RecordBuddyDevices: %v", err)
	}
	got, err := s.DevicesFor(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("DevicesFor: %v", err)
	}
	if want := domain.NewDeviceSet(3); !got.Equal(want) {
		t.Fatalf("want %v, got %v", want.Sorted(), got.Sorted())
	}
}

func TestRecordBuddyDevices_EmptyListIsKnown(t *testing.T) {
	s := openDevices(t)
	ctx := context.Background()

	if err := s.RecordBuddyDevices(ctx, "bob@example.com", domain.NewDeviceSet()); err != nil {
		t.Fatalf("RecordBuddyDevices: %v", err)
	}
	snap, known, err := s.Snapshot(ctx, "bob@example.com")
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if !known || snap.Devices.Len() != 0 || snap.ObservedAt.IsZero() {
		t.Fatalf("unexpected snapshot known=%v %+v", known, snap)
	}
}

func TestOwnDevices_SeparateFromBuddies(t *testing.T) {
	s := openDevices(t)
	ctx := context.Background()

	if err := s.RecordOwnDevices(ctx, domain.NewDeviceSet(7, 9, 42)); err != nil {
		t.Fatalf("RecordOwnDevices: %v", err)
	}
	if err := s.RecordBuddyDevices(ctx, "alice@example.com", domain.NewDeviceSet(101)); err != nil {
		t.Fatalf("RecordBuddyDevices: %v", err)
	}

	own, err := s.OwnDevices(ctx)
	if err != nil {
		t.Fatalf("OwnDevices: %v", err)
	}
	if want := domain.NewDeviceSet(7, 9, 42); !own.Equal(want) {
		t.Fatalf("own: want %v, got %v", want.Sorted(), own.Sorted())
	}
	if viaLookup, _ := s.DevicesFor(ctx, account); !viaLookup.Equal(own) {
		t.Fatalf("lookup of own account: %v", viaLookup.Sorted())
	}
	snap, known, err := s.Snapshot(ctx, account)
	if err != nil || !known {
		t.Fatalf("own snapshot: known=%v err=%v", known, err)
	}
	if !snap.Devices.Equal(own) {
		t.Fatalf("own snapshot devices %v", snap.Devices.Sorted())
	}
	if recs := snap.Records(true); len(recs) != 3 || !recs[0].IsOwnDevice {
		t.Fatalf("unexpected records %+v", recs)
	}
}

func TestDeviceStore_NamespacedByAccount(t *testing.T) {
	path := filepath.Join(t.TempDir(), "devices.db")
	ctx := context.Background()

	a, err := store.OpenDeviceStore(path, "a@example.com")
	if err != nil {
		t.Fatalf("OpenDeviceStore: %v", err)
	}
	if err := a.RecordBuddyDevices(ctx, "alice@example.com", domain.NewDeviceSet(1)); err != nil {
		t.Fatalf("RecordBuddyDevices: %v", err)
	}
	_ = a.Close()

	b, err := store.OpenDeviceStore(path, "b@example.com")
	if err != nil {
		t.Fatalf("OpenDeviceStore: %v", err)
	}
	defer b.Close()
	got, err := b.DevicesFor(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("DevicesFor: %v", err)
	}
	if got.Len() != 0 {
		t.Fatalf("account b sees account a's devices: %v", got.Sorted())
	}
}
