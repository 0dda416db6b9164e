package credential

import (
	"context"
	"testing"
	"time"
)

func TestSweepDeletesOnlyExpiredAndContinuesPastFailures(t *testing.T) {
	store := newFakeStore()
	idp := newFakeIdp()
	svc := NewService(store, idp)
	ctx := context.Background()

	// Two expired, one live. Expirations are forced after creation since
	// the create path rejects past timestamps.
	expiredA, err := svc.CreateConsole(ctx, "actor", "svc-expired-a", "Sup3r$ecret", future())
	if err != nil {
		t.Fatalf("CreateConsole: %v", err)
	}
	expiredB, err := svc.CreateConsole(ctx, "actor", "svc-expired-b", "Sup3r$ecret", future())
	if err != nil {
		t.Fatalf("CreateConsole: %v", err)
	}
	live, err := svc.CreateConsole(ctx, "actor", "svc-live", "Sup3r$ecret", future())
	if err != nil {
		t.Fatalf("CreateConsole: %v", err)
	}
	for _, id := range []string{expiredA.ID, expiredB.ID} {
		c := store.consoles[id]
		c.ExpirationTime = time.Now().Add(-time.Hour)
		store.consoles[id] = c
	}

	// The first expired credential fails its teardown; the sweep must
	// still reach the second.
	idp.failOn = "LoginProfileExists " + expiredA.AwsUsername

	sw := NewSweeper(svc, time.Hour, 1000)
	sw.Sweep(ctx)

	if _, err := svc.GetConsole(ctx, expiredA.ID); err != nil {
		t.Fatal("failed teardown must leave the row for the next sweep")
	}
	if _, err := svc.GetConsole(ctx, expiredB.ID); err == nil {
		t.Fatal("second expired credential was not deleted")
	}
	if _, err := svc.GetConsole(ctx, live.ID); err != nil {
		t.Fatal("unexpired credential must be left untouched")
	}

	// Next sweep retries the failed credential and converges.
	idp.failOn = ""
	sw.Sweep(ctx)
	if _, err := svc.GetConsole(ctx, expiredA.ID); err == nil {
		t.Fatal("retried sweep did not delete the previously failed credential")
	}
}
