package token

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestMemoryRefreshTokenStore(t *testing.T) {
	store := NewMemoryRefreshTokenStore()
	ctx := context.Background()

	if err := store.Save(ctx, "u1", "t1", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("save: %v", err)
	}
	ok, err := store.Exists(ctx, "u1", "t1")
	if err != nil || !ok {
		t.Fatalf("expected token to exist, ok=%v err=%v", ok, err)
	}

	if err := store.Delete(ctx, "u1", "t1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	ok, err = store.Exists(ctx, "u1", "t1")
	if err != nil || ok {
		t.Fatalf("expected token gone after delete, ok=%v err=%v", ok, err)
	}
}

func TestMemoryRefreshTokenStoreExpiry(t *testing.T) {
	store := NewMemoryRefreshTokenStore()
	ctx := context.Background()

	if err := store.Save(ctx, "u1", "t1", time.Now().Add(-time.Second)); err != nil {
		t.Fatalf("save: %v", err)
	}
	ok, err := store.Exists(ctx, "u1", "t1")
	if err != nil || ok {
		t.Fatalf("expired token must not exist, ok=%v err=%v", ok, err)
	}
}

func TestMemoryRefreshTokenStoreDeleteAll(t *testing.T) {
	store := NewMemoryRefreshTokenStore()
	ctx := context.Background()

	expires := time.Now().Add(time.Hour)
	for _, id := range []string{"t1", "t2", "t3"} {
		if err := store.Save(ctx, "u1", id, expires); err != nil {
			t.Fatalf("save %s: %v", id, err)
		}
	}
	if err := store.Save(ctx, "u2", "other", expires); err != nil {
		t.Fatalf("save other: %v", err)
	}

	if err := store.DeleteAll(ctx, "u1"); err != nil {
		t.Fatalf("delete all: %v", err)
	}

	for _, id := range []string{"t1", "t2", "t3"} {
		ok, err := store.Exists(ctx, "u1", id)
		if err != nil || ok {
			t.Fatalf("token %s should be revoked, ok=%v err=%v", id, ok, err)
		}
	}
	ok, err := store.Exists(ctx, "u2", "other")
	if err != nil || !ok {
		t.Fatalf("other user's token must survive, ok=%v err=%v", ok, err)
	}
}

func TestRedisRefreshTokenStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	store := NewRedisRefreshTokenStore(client, "")
	ctx := context.Background()

	if err := store.Save(ctx, "u1", "t1", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("save: %v", err)
	}
	ok, err := store.Exists(ctx, "u1", "t1")
	if err != nil || !ok {
		t.Fatalf("expected token to exist, ok=%v err=%v", ok, err)
	}

	// TTL 到期后键消失。
	mr.FastForward(2 * time.Hour)
	ok, err = store.Exists(ctx, "u1", "t1")
	if err != nil || ok {
		t.Fatalf("expired token must not exist, ok=%v err=%v", ok, err)
	}
}

func TestRedisRefreshTokenStoreDeleteAll(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	store := NewRedisRefreshTokenStore(client, "")
	ctx := context.Background()

	expires := time.Now().Add(time.Hour)
	if err := store.Save(ctx, "u1", "t1", expires); err != nil {
		t.Fatalf("save t1: %v", err)
	}
	if err := store.Save(ctx, "u1", "t2", expires); err != nil {
		t.Fatalf("save t2: %v", err)
	}
	if err := store.Save(ctx, "u2", "keep", expires); err != nil {
		t.Fatalf("save keep: %v", err)
	}

	if err := store.DeleteAll(ctx, "u1"); err != nil {
		t.Fatalf("delete all: %v", err)
	}

	for _, id := range []string{"t1", "t2"} {
		ok, err := store.Exists(ctx, "u1", id)
		if err != nil || ok {
			t.Fatalf("token %s should be revoked, ok=%v err=%v", id, ok, err)
		}
	}
	ok, err := store.Exists(ctx, "u2", "keep")
	if err != nil || !ok {
		t.Fatalf("other user's token must survive, ok=%v err=%v", ok, err)
	}
}
