package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	apperrors "github.com/wBanano/wban-backend/pkg/app/errors"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewStoreWithClient(client), mr
}

func TestStore_GetMissingKey(t *testing.T) {
	s, _ := newTestStore(t)

	val, err := s.Get(context.Background(), "deposits:ban_unknown")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if val != "" {
		t.Errorf("expected empty value for missing key, got %q", val)
	}
}

func TestStore_SetWithTTLExpires(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	if err := s.SetWithTTL(ctx, "claims:pending:ban_a:0xb", "1", 5*time.Minute); err != nil {
		t.Fatalf("SetWithTTL() failed: %v", err)
	}
	exists, err := s.Exists(ctx, "claims:pending:ban_a:0xb")
	if err != nil || !exists {
		t.Fatalf("expected key to exist, exists=%v err=%v", exists, err)
	}

	mr.FastForward(6 * time.Minute)

	exists, err = s.Exists(ctx, "claims:pending:ban_a:0xb")
	if err != nil {
		t.Fatalf("Exists() failed: %v", err)
	}
	if exists {
		t.Error("expected key to have expired")
	}
}

func TestStore_LatestScoredIsReverseChronological(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	for i, member := range []string{"first", "second", "third"} {
		if err := s.AddScored(ctx, "audit:deposits:ban_a", int64(1000+i), member); err != nil {
			t.Fatalf("AddScored() failed: %v", err)
		}
	}

	members, err := s.LatestScored(ctx, "audit:deposits:ban_a", 2)
	if err != nil {
		t.Fatalf("LatestScored() failed: %v", err)
	}
	if len(members) != 2 || members[0] != "third" || members[1] != "second" {
		t.Errorf("expected [third second], got %v", members)
	}
}

func TestLock_AcquireRelease(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	lock := s.NewLock("deposits:ban_a", time.Second)
	if err := lock.Acquire(ctx); err != nil {
		t.Fatalf("Acquire() failed: %v", err)
	}
	if err := lock.Release(ctx); err != nil {
		t.Fatalf("Release() failed: %v", err)
	}

	// reacquirable after release
	other := s.NewLock("deposits:ban_a", time.Second)
	if err := other.Acquire(ctx); err != nil {
		t.Fatalf("Acquire() after release failed: %v", err)
	}
}

func TestLock_ContentionSurfacesResourceLocked(t *testing.T) {
	s, _ := newTestStore(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	holder := s.NewLock("deposits:ban_a", time.Minute)
	if err := holder.Acquire(ctx); err != nil {
		t.Fatalf("Acquire() failed: %v", err)
	}

	contender := s.NewLock("deposits:ban_a", time.Minute)
	err := contender.Acquire(ctx)
	if err == nil {
		t.Fatal("expected contended acquisition to fail")
	}
	if !apperrors.Is(err, apperrors.CategoryResourceLocked) {
		t.Errorf("expected CategoryResourceLocked, got %v", err)
	}
}

func TestLock_ReleaseDoesNotStealForeignLock(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	stale := s.NewLock("deposits:ban_a", 50*time.Millisecond)
	if err := stale.Acquire(ctx); err != nil {
		t.Fatalf("Acquire() failed: %v", err)
	}

	// stale holder's TTL lapses and someone else takes the lock
	mr.FastForward(time.Second)
	fresh := s.NewLock("deposits:ban_a", time.Minute)
	if err := fresh.Acquire(ctx); err != nil {
		t.Fatalf("Acquire() after expiry failed: %v", err)
	}

	if err := stale.Release(ctx); err != nil {
		t.Fatalf("Release() failed: %v", err)
	}
	held, err := fresh.client.Get(ctx, fresh.key).Result()
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if held != fresh.value {
		t.Error("stale holder released a lock it no longer owned")
	}
}
