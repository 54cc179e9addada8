package coordinator_test

import (
	"context"
	"errors"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"omemo/internal/coordinator"
	"omemo/internal/domain"
	"omemo/internal/engine"
	"omemo/internal/services/devicelist"
	"omemo/internal/services/oracle"
	"omemo/internal/services/publisher"
	"omemo/internal/store"
)

const testPass = "Correct-Horse-Battery-9"

var (
	fastKDF = store.KDFParams{N: 1 << 10, R: 8, P: 1}
	me      = domain.MustParseJID("me@example.com/laptop")
)

type fakeModule struct {
	mu        sync.Mutex
	lists     map[string][]domain.DeviceID
	bundles   map[domain.SessionAddress]domain.SessionKeyBundle
	published [][]domain.DeviceID
	ownBundle []domain.SessionKeyBundle
	fetches   int
}

func newFakeModule() *fakeModule {
	return &fakeModule{
		lists:   map[string][]domain.DeviceID{},
		bundles: map[domain.SessionAddress]domain.SessionKeyBundle{},
	}
}

func (m *fakeModule) StreamJID() (domain.JID, bool) { return me, true }

func (m *fakeModule) PublishDeviceIDs(_ context.Context, ids []domain.DeviceID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, ids)
	m.lists[me.Bare()] = ids
	return nil
}

func (m *fakeModule) FetchDeviceIDs(_ context.Context, owner domain.JID) ([]domain.DeviceID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids, ok := m.lists[owner.Bare()]
	if !ok {
		return nil, domain.ErrNodeNotFound
	}
	return ids, nil
}

func (m *fakeModule) PublishBundle(_ context.Context, b domain.SessionKeyBundle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ownBundle = append(m.ownBundle, b)
	return nil
}

func (m *fakeModule) FetchBundle(_ context.Context, owner domain.JID, id domain.DeviceID) (domain.SessionKeyBundle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetches++
	b, ok := m.bundles[domain.SessionAddress{Identity: owner.Bare(), DeviceID: id}]
	if !ok {
		return domain.SessionKeyBundle{}, domain.ErrNodeNotFound
	}
	return b, nil
}

func (m *fakeModule) publishedLists() [][]domain.DeviceID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]domain.DeviceID(nil), m.published...)
}

type fixture struct {
	coord   *coordinator.Coordinator
	engine  *engine.Engine
	devices *store.DeviceSQLiteStore
}

func setup(t *testing.T) fixture {
	t.Helper()
	home := t.TempDir()
	log := zerolog.Nop()

	e := engine.Open(home, fastKDF, me.Bare(), testPass, log)
	devices, err := store.OpenDeviceStore(filepath.Join(home, "devices.db"), me.Bare())
	if err != nil {
		t.Fatalf("open device store: %v", err)
	}
	orc := oracle.New(e, log)
	pub := publisher.New(e, store.NewBundleFileStore(home), me.Bare(),
		publisher.Config{Threshold: 2, Target: 4}, log)
	lists := devicelist.New(me, devices, orc, devicelist.Config{}, log)
	coord := coordinator.New(me, devices, orc, pub, lists,
		coordinator.Options{FetchTimeout: time.Second}, log)

	t.Cleanup(func() {
		coord.Close()
		_ = devices.Close()
	})
	return fixture{coord: coord, engine: e, devices: devices}
}

func ownID(t *testing.T, e *engine.Engine) domain.DeviceID {
	t.Helper()
	id, err := e.RegistrationID()
	if err != nil {
		t.Fatalf("registration id: %v", err)
	}
	return domain.DeviceID(id)
}

func TestBeforeConfigure(t *testing.T) {
	f := setup(t)
	alice := domain.MustParseJID("alice@example.com")

	f.coord.OnDeviceListUpdate(alice, []domain.DeviceID{1})
	if got := f.coord.DeviceIDsFor(alice); len(got) != 0 {
		t.Fatalf("update applied before configure: %v", got)
	}
	if _, err := f.coord.PrepareRecipients(context.Background(), alice); !errors.Is(err, domain.ErrNotConfigured) {
		t.Fatalf("want ErrNotConfigured, got %v", err)
	}
	if _, err := f.coord.Refresh(context.Background()); !errors.Is(err, domain.ErrNotConfigured) {
		t.Fatalf("want ErrNotConfigured, got %v", err)
	}
	f.coord.OnMessageReceived(domain.Message{Event: &domain.Notification{From: me, Node: domain.NSDeviceList}})
	f.coord.OnAuthenticated()
}

func TestDeviceIDsFor_BareLookup(t *testing.T) {
	f := setup(t)
	if !f.coord.Configure(newFakeModule()) {
		t.Fatal("configure refused")
	}

	f.coord.OnDeviceListUpdate(domain.MustParseJID("alice@example.com/resourceX"), []domain.DeviceID{101})
	got := f.coord.DeviceIDsFor(domain.MustParseJID("alice@example.com/phone"))
	if !slices.Equal(got, []domain.DeviceID{101}) {
		t.Fatalf("want [101], got %v", got)
	}
	if got := f.coord.DeviceIDsFor(domain.MustParseJID("carol@example.com")); len(got) != 0 {
		t.Fatalf("unknown contact: %v", got)
	}
}

func TestOwnDeviceID(t *testing.T) {
	f := setup(t)
	if got, want := f.coord.OwnDeviceID(), ownID(t, f.engine); got != want {
		t.Fatalf("own device id %d, want %d", got, want)
	}
}

func TestRefresh_FirstLogin(t *testing.T) {
	f := setup(t)
	mod := newFakeModule()
	f.coord.Configure(mod)

	out, err := f.coord.Refresh(context.Background())
	if err != nil || out != domain.OutcomeRepublished {
		t.Fatalf("outcome=%v err=%v", out, err)
	}
	own := ownID(t, f.engine)
	if pubs := mod.publishedLists(); len(pubs) != 1 || !slices.Equal(pubs[0], []domain.DeviceID{own}) {
		t.Fatalf("want [%d] published, got %v", own, pubs)
	}
	if len(mod.ownBundle) != 1 || mod.ownBundle[0].DeviceID != own {
		t.Fatalf("bundle not published: %+v", mod.ownBundle)
	}

	// Second login: bundle healthy and list complete, nothing is published.
	out, err = f.coord.Refresh(context.Background())
	if err != nil || out != domain.OutcomeStored {
		t.Fatalf("second: outcome=%v err=%v", out, err)
	}
	if len(mod.publishedLists()) != 1 || len(mod.ownBundle) != 1 {
		t.Fatal("second login republished")
	}
}

func TestOnMessageReceived(t *testing.T) {
	f := setup(t)
	mod := newFakeModule()
	f.coord.Configure(mod)
	own := ownID(t, f.engine)

	// Own list from another of our devices, missing us.
	f.coord.OnMessageReceived(domain.Message{Event: &domain.Notification{
		From:      domain.MustParseJID("me@example.com/phone"),
		Node:      domain.NSDeviceList,
		DeviceIDs: []domain.DeviceID{7, 9},
	}})
	// Another account's list seen on our stream is not ours to store.
	f.coord.OnMessageReceived(domain.Message{Event: &domain.Notification{
		From:      domain.MustParseJID("mallory@evil.example/x"),
		Node:      domain.NSDeviceList,
		DeviceIDs: []domain.DeviceID{666},
	}})
	// A contact's list through the module hook.
	f.coord.OnDeviceListUpdate(domain.MustParseJID("bob@example.com/home"), []domain.DeviceID{3})
	// Not a device-list event.
	f.coord.OnMessageReceived(domain.Message{Body: "hi"})
	f.coord.OnMessageReceived(domain.Message{Event: &domain.Notification{From: me, Node: domain.NSBundles}})

	if got := f.coord.DeviceIDsFor(domain.MustParseJID("bob@example.com")); !slices.Equal(got, []domain.DeviceID{3}) {
		t.Fatalf("bob: %v", got)
	}
	if got := f.coord.DeviceIDsFor(domain.MustParseJID("mallory@evil.example")); len(got) != 0 {
		t.Fatalf("foreign stream event stored: %v", got)
	}
	want := domain.NewDeviceSet(7, 9, own).Sorted()
	if got := f.coord.DeviceIDsFor(me); !slices.Equal(got, want) {
		t.Fatalf("own: got %v want %v", got, want)
	}
	if pubs := mod.publishedLists(); len(pubs) != 1 || !slices.Equal(pubs[0], want) {
		t.Fatalf("want one publish of %v, got %v", want, pubs)
	}
}

func TestPrepareRecipients(t *testing.T) {
	f := setup(t)
	mod := newFakeModule()
	f.coord.Configure(mod)

	bobJID := domain.MustParseJID("bob@example.com")
	bob := engine.Open(t.TempDir(), fastKDF, bobJID.Bare(), testPass, zerolog.Nop())
	good, err := bob.GenerateBundle(bobJID.Bare(), 2)
	if err != nil {
		t.Fatalf("bob bundle: %v", err)
	}

	bad := good
	bad.DeviceID = 5
	bad.SignedPreKeySignature = append([]byte(nil), good.SignedPreKeySignature...)
	bad.SignedPreKeySignature[0] ^= 0xff

	mod.bundles[domain.SessionAddress{Identity: bobJID.Bare(), DeviceID: good.DeviceID}] = good
	mod.bundles[domain.SessionAddress{Identity: bobJID.Bare(), DeviceID: 5}] = bad

	// Device 6 never published a bundle.
	f.coord.OnDeviceListUpdate(bobJID, []domain.DeviceID{good.DeviceID, 5, 6})

	got, err := f.coord.PrepareRecipients(context.Background(), bobJID)
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if !slices.Equal(got, []domain.DeviceID{good.DeviceID}) {
		t.Fatalf("want [%d], got %v", good.DeviceID, got)
	}
	if !f.coord.IsSessionValid(bobJID, good.DeviceID) {
		t.Fatal("no session with the good device")
	}
	if f.coord.IsSessionValid(bobJID, 5) {
		t.Fatal("session with the bad-signature device")
	}

	// Existing sessions are reused without fetching again.
	before := mod.fetches
	if _, err := f.coord.PrepareRecipients(context.Background(), bobJID); err != nil {
		t.Fatalf("prepare again: %v", err)
	}
	if mod.fetches-before != 2 {
		t.Fatalf("want 2 fetches for the devices still lacking sessions, got %d", mod.fetches-before)
	}
	if f.coord.Outstanding() != 0 {
		t.Fatalf("fetches left outstanding: %d", f.coord.Outstanding())
	}
}

func TestFeatures(t *testing.T) {
	f := setup(t)
	got := f.coord.Features()
	want := []string{"urn:xmpp:omemo:0:devicelist", "urn:xmpp:omemo:0:devicelist+notify"}
	if !slices.Equal(got, want) {
		t.Fatalf("got %v", got)
	}
}
