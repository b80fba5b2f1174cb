package auth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func TestMemoryTokenRevokerExpires(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryTokenRevoker()
	now := time.Now()
	r.now = func() time.Time { return now }

	if err := r.Revoke(ctx, "jti-1", time.Minute); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if err := r.Revoke(ctx, "jti-2", 0); err != nil {
		t.Fatalf("Revoke zero ttl: %v", err)
	}
	if ok, _ := r.IsRevoked(ctx, "jti-1"); !ok {
		t.Fatal("expected jti-1 revoked")
	}
	if ok, _ := r.IsRevoked(ctx, "jti-2"); ok {
		t.Fatal("zero ttl must not revoke")
	}
	now = now.Add(2 * time.Minute)
	if ok, _ := r.IsRevoked(ctx, "jti-1"); ok {
		t.Fatal("revocation should lapse after ttl")
	}
}

func TestRedisTokenRevoker(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	r := NewRedisTokenRevoker(mr.Addr(), "")
	defer r.Close()

	if err := r.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if err := r.Revoke(ctx, "jti-1", time.Minute); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if ok, err := r.IsRevoked(ctx, "jti-1"); err != nil || !ok {
		t.Fatalf("IsRevoked = %v, %v", ok, err)
	}
	if !mr.Exists("folio:revoked:jti-1") {
		t.Fatal("expected key in redis")
	}

	mr.FastForward(2 * time.Minute)
	if ok, _ := r.IsRevoked(ctx, "jti-1"); ok {
		t.Fatal("expected key to expire")
	}

	mr.Close()
	if _, err := r.IsRevoked(ctx, "jti-1"); err == nil {
		t.Fatal("expected error once redis is down")
	}
}
