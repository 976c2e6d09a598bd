package redis_test

import (
	"context"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/rryowa/gymsession/internal/models"
	redstore "github.com/rryowa/gymsession/internal/storage/redis"
)

func newSessionStorageForTest(t *testing.T) (*redstore.SessionStorage, *miniredis.Miniredis) {
	t.Helper()

	mini, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mini.Close)

	client := goredis.NewClient(&goredis.Options{Addr: mini.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return redstore.NewSessionStorage(client), mini
}

func TestRedisSessionRoundTrip(t *testing.T) {
	s, mini := newSessionStorageForTest(t)
	ctx := context.Background()

	got, err := s.Load(ctx)
	if err != nil || !got.Empty() {
		t.Fatalf("empty redis must load as empty session, got %+v %v", got, err)
	}

	if err := s.Save(ctx, models.Session{AccessToken: "A1", RefreshToken: "R1"}); err != nil {
		t.Fatalf("save: %v", err)
	}

	if v, _ := mini.Get("gymsession:token"); v != "A1" {
		t.Fatalf("unexpected access entry %q", v)
	}
	if v, _ := mini.Get("gymsession:refreshToken"); v != "R1" {
		t.Fatalf("unexpected refresh entry %q", v)
	}

	got, err = s.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.AccessToken != "A1" || got.RefreshToken != "R1" {
		t.Fatalf("unexpected session %+v", got)
	}
}

func TestRedisSessionDelete(t *testing.T) {
	s, mini := newSessionStorageForTest(t)
	ctx := context.Background()

	if err := s.Save(ctx, models.Session{AccessToken: "A1", RefreshToken: "R1"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.Delete(ctx); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.Delete(ctx); err != nil {
		t.Fatalf("second delete: %v", err)
	}
	if mini.Exists("gymsession:token") || mini.Exists("gymsession:refreshToken") {
		t.Fatal("expected both entries to be removed")
	}
}

func TestRedisSessionUnavailable(t *testing.T) {
	s, mini := newSessionStorageForTest(t)
	mini.Close()

	if _, err := s.Load(context.Background()); err == nil {
		t.Fatal("expected error when redis is down")
	}
}
