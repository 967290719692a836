package redis

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

func TestKeys(t *testing.T) {
	if got := CommandLogKey(DefaultNamespace); got != "npds:cmdlog" {
		t.Errorf("CommandLogKey = %q", got)
	}
	if got := SavedAtKey("test"); got != "test:cmdlog:saved_at" {
		t.Errorf("SavedAtKey = %q", got)
	}
	if got := NewStore(nil, "").namespace; got != DefaultNamespace {
		t.Errorf("default namespace = %q", got)
	}
}

// testClient connects to the Redis named by NPDS_TEST_REDIS_ADDR.
func testClient(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("NPDS_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("NPDS_TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("redis not reachable: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestStoreRoundTrip(t *testing.T) {
	client := testClient(t)
	ctx := context.Background()

	ns := "npds-test-" + uuid.NewString()
	t.Cleanup(func() {
		client.Del(ctx, CommandLogKey(ns), SavedAtKey(ns))
	})
	s := NewStore(client, ns)

	if _, err := s.Load(ctx); !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected ErrNotExist before the first save, got %v", err)
	}

	lines := []string{"REGUP a.example.org A", "REGUP b.example.org:8080 B"}
	if err := s.Save(ctx, lines); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(got) != 2 || got[0] != lines[0] || got[1] != lines[1] {
		t.Errorf("Load = %v", got)
	}

	if err := s.Save(ctx, nil); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	got, err = s.Load(ctx)
	if err != nil {
		t.Fatalf("an empty saved log must load: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected an empty log, got %v", got)
	}

	at, err := s.SavedAt(ctx)
	if err != nil || at.IsZero() {
		t.Errorf("SavedAt = %v, %v", at, err)
	}
}
