package services

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/avendel/go-delivery-backend/internal/catalog"
)

// fakePoller answers ownership from a fixed set of owned entitlement ids.
type fakePoller struct {
	owned map[string]bool
	polls int
}

func (p *fakePoller) OwnsEntitlement(ctx context.Context, externalID, entitlementID string) bool {
	p.polls++
	return p.owned[entitlementID]
}

type checkFixture struct {
	svc       *CheckService
	messenger *fakeMessenger
	ledger    *LedgerService
	maps      *MappingService
	poller    *fakePoller
}

func newCheckFixture(t *testing.T, poller *fakePoller, products ...catalog.Product) checkFixture {
	t.Helper()
	cache := newTestCache(t)
	maps := NewMappingService(cache)
	ledger := NewLedgerService(cache)
	messenger := &fakeMessenger{}
	delivery := NewDeliveryService(messenger, zerolog.Nop())
	svc := NewCheckService(maps, ledger, delivery, catalog.New(products...), poller, nil, zerolog.Nop())
	return checkFixture{svc: svc, messenger: messenger, ledger: ledger, maps: maps, poller: poller}
}

func TestRun_UnlinkedChatIdentity(t *testing.T) {
	fx := newCheckFixture(t, &fakePoller{}, testProduct(t, "starter-kit"))

	_, err := fx.svc.Run(context.Background(), "stranger")
	if !errors.Is(err, ErrMappingNotFound) {
		t.Fatalf("err = %v; want ErrMappingNotFound", err)
	}
	if fx.poller.polls != 0 {
		t.Fatalf("inventory polled for unlinked identity")
	}
}

func TestRun_DeliversOwnedProductsAndWritesClaims(t *testing.T) {
	owned := testProduct(t, "starter-kit")
	notOwned := testProduct(t, "pro-suite")
	poller := &fakePoller{owned: map[string]bool{owned.EntitlementID: true}}
	fx := newCheckFixture(t, poller, owned, notOwned)
	fx.maps.Link("261", "d1")

	report, err := fx.svc.Run(context.Background(), "d1")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Delivered != 1 || report.NotOwned != 1 || report.AlreadyClaimed != 0 || report.Failed != 0 {
		t.Fatalf("report = %+v", report)
	}
	if !fx.ledger.HasClaim("261", "starter-kit") {
		t.Fatalf("claim not written for delivered product")
	}
	if fx.ledger.HasClaim("261", "pro-suite") {
		t.Fatalf("claim written for unowned product")
	}
	if fx.messenger.fileCount() != 1 {
		t.Fatalf("file sent %d times; want 1", fx.messenger.fileCount())
	}
}

func TestRun_RepeatRunDoesNotRedeliver(t *testing.T) {
	product := testProduct(t, "starter-kit")
	poller := &fakePoller{owned: map[string]bool{product.EntitlementID: true}}
	fx := newCheckFixture(t, poller, product)
	fx.maps.Link("261", "d1")

	if _, err := fx.svc.Run(context.Background(), "d1"); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	report, err := fx.svc.Run(context.Background(), "d1")
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if report.AlreadyClaimed != 1 || report.Delivered != 0 {
		t.Fatalf("report = %+v; want claimed skip", report)
	}
	if fx.messenger.fileCount() != 1 {
		t.Fatalf("file sent %d times across runs; want exactly 1", fx.messenger.fileCount())
	}
	// A claimed product costs no further inventory query.
	if fx.poller.polls != 1 {
		t.Fatalf("polls = %d; want 1", fx.poller.polls)
	}
}

func TestRun_FailedDeliveryLeavesNoClaim(t *testing.T) {
	product := missingProduct("ghost")
	poller := &fakePoller{owned: map[string]bool{product.EntitlementID: true}}
	fx := newCheckFixture(t, poller, product)
	fx.maps.Link("261", "d1")

	report, err := fx.svc.Run(context.Background(), "d1")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Failed != 1 || report.Delivered != 0 {
		t.Fatalf("report = %+v", report)
	}
	if fx.ledger.HasClaim("261", "ghost") {
		t.Fatalf("claim written despite failed delivery")
	}

	// The next run retries the product instead of skipping it.
	report, _ = fx.svc.Run(context.Background(), "d1")
	if report.AlreadyClaimed != 0 || report.Failed != 1 {
		t.Fatalf("retry report = %+v", report)
	}
}

func TestRun_PollerDownMeansNotOwned(t *testing.T) {
	// An empty owned set stands in for the fail-closed inventory client.
	fx := newCheckFixture(t, &fakePoller{}, testProduct(t, "starter-kit"))
	fx.maps.Link("261", "d1")

	report, err := fx.svc.Run(context.Background(), "d1")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.NotOwned != 1 {
		t.Fatalf("report = %+v; want not-owned skip", report)
	}
	if fx.messenger.fileCount() != 0 {
		t.Fatalf("delivery ran without confirmed ownership")
	}
}
