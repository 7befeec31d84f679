package auth

import (
	"context"
	"testing"
	"time"
)

func TestMemoryRevoker(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	r := NewMemoryRevoker()
	r.now = func() time.Time { return now }

	if revoked, _ := r.IsRevoked(ctx, "t1"); revoked {
		t.Fatal("unknown token reported revoked")
	}
	if err := r.Revoke(ctx, "t1", now.Add(time.Minute)); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if revoked, _ := r.IsRevoked(ctx, "t1"); !revoked {
		t.Fatal("token should be revoked")
	}

	now = now.Add(2 * time.Minute)
	if revoked, _ := r.IsRevoked(ctx, "t1"); revoked {
		t.Fatal("entry should lapse with the token")
	}
	if len(r.entries) != 0 {
		t.Fatalf("lapsed entry not pruned: %v", r.entries)
	}
}
