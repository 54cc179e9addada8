package relay_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"omemo/internal/domain"
	"omemo/internal/relay"
)

func newRelay(t *testing.T, cfg relay.ServerConfig) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(relay.NewServer(cfg, zerolog.Nop()).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func TestDeviceList_PublishFetch(t *testing.T) {
	srv := newRelay(t, relay.ServerConfig{})
	ctx := context.Background()
	alice := relay.NewHTTP(srv.URL, domain.MustParseJID("alice@example.com/resourceX"), srv.Client())
	bob := relay.NewHTTP(srv.URL, domain.MustParseJID("bob@example.com/home"), srv.Client())

	if _, err := bob.FetchDeviceIDs(ctx, domain.MustParseJID("alice@example.com")); !errors.Is(err, domain.ErrNodeNotFound) {
		t.Fatalf("want ErrNodeNotFound, got %v", err)
	}
	if err := alice.PublishDeviceIDs(ctx, []domain.DeviceID{101, 7}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	got, err := bob.FetchDeviceIDs(ctx, domain.MustParseJID("Alice@example.com/other"))
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if !slices.Equal(got, []domain.DeviceID{101, 7}) {
		t.Fatalf("got %v", got)
	}
}

func TestDeviceList_EmptyListIsPublished(t *testing.T) {
	srv := newRelay(t, relay.ServerConfig{})
	ctx := context.Background()
	me := relay.NewHTTP(srv.URL, domain.MustParseJID("me@example.com"), srv.Client())

	if err := me.PublishDeviceIDs(ctx, nil); err != nil {
		t.Fatalf("publish: %v", err)
	}
	got, err := me.FetchDeviceIDs(ctx, domain.MustParseJID("me@example.com"))
	if err != nil || len(got) != 0 {
		t.Fatalf("got %v err=%v", got, err)
	}
}

func TestDeviceList_ForeignPublisherRejected(t *testing.T) {
	srv := newRelay(t, relay.ServerConfig{})

	body := `{"publisher":"mallory@example.com/x","devices":[1]}`
	resp, err := srv.Client().Post(srv.URL+"/devicelist/alice@example.com", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("want 403, got %s", resp.Status)
	}
}

func TestBundle_PublishFetch(t *testing.T) {
	srv := newRelay(t, relay.ServerConfig{})
	ctx := context.Background()
	bob := relay.NewHTTP(srv.URL, domain.MustParseJID("bob@example.com/home"), srv.Client())

	bundle := domain.SessionKeyBundle{
		Identity:              "bob@example.com",
		DeviceID:              5,
		RegistrationID:        5,
		IdentityKey:           domain.X25519Public{1},
		SignedPreKey:          domain.X25519Public{2},
		SignedPreKeySignature: []byte{3},
		OneTimePreKeys:        []domain.OneTimePreKeyPublic{{ID: 1, Pub: domain.X25519Public{4}}},
	}
	if err := bob.PublishBundle(ctx, bundle); err != nil {
		t.Fatalf("publish: %v", err)
	}

	got, err := bob.FetchBundle(ctx, domain.MustParseJID("bob@example.com"), 5)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if got.IdentityKey != bundle.IdentityKey || got.DeviceID != 5 || len(got.OneTimePreKeys) != 1 {
		t.Fatalf("got %+v", got)
	}
	if _, err := bob.FetchBundle(ctx, domain.MustParseJID("bob@example.com"), 6); !errors.Is(err, domain.ErrNodeNotFound) {
		t.Fatalf("want ErrNodeNotFound, got %v", err)
	}
}

func TestRateLimit(t *testing.T) {
	srv := newRelay(t, relay.ServerConfig{RatePerSecond: 0.001, Burst: 1})
	ctx := context.Background()
	c := relay.NewHTTP(srv.URL, domain.MustParseJID("me@example.com"), srv.Client())

	if _, err := c.FetchDeviceIDs(ctx, domain.MustParseJID("me@example.com")); !errors.Is(err, domain.ErrNodeNotFound) {
		t.Fatalf("first: %v", err)
	}
	_, err := c.FetchDeviceIDs(ctx, domain.MustParseJID("me@example.com"))
	if err == nil || !strings.Contains(err.Error(), "429") {
		t.Fatalf("want 429, got %v", err)
	}
}

func TestStreamJID(t *testing.T) {
	c := relay.NewHTTP("http://127.0.0.1:1", domain.JID{}, nil)
	if _, ok := c.StreamJID(); ok {
		t.Fatal("zero stream reported as authenticated")
	}
}
