package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/avendel/go-delivery-backend/internal/catalog"
	"github.com/avendel/go-delivery-backend/internal/domain"
)

type paymentFixture struct {
	svc       *PaymentService
	messenger *fakeMessenger
	ledger    *LedgerService
	maps      *MappingService
}

func newPaymentFixture(t *testing.T, products ...catalog.Product) paymentFixture {
	t.Helper()
	cache := newTestCache(t)
	maps := NewMappingService(cache)
	ledger := NewLedgerService(cache)
	messenger := &fakeMessenger{}
	delivery := NewDeliveryService(messenger, zerolog.Nop())
	svc := NewPaymentService(maps, ledger, delivery, catalog.New(products...), nil, zerolog.Nop())
	return paymentFixture{svc: svc, messenger: messenger, ledger: ledger, maps: maps}
}

func TestHandle_DeliversWithExplicitChatID(t *testing.T) {
	product := testProduct(t, "starter-kit")
	fx := newPaymentFixture(t, product)

	outcome, err := fx.svc.Handle(context.Background(), PaymentEvent{
		ReceiptID:  "r1",
		ExternalID: "261",
		ProductID:  "starter-kit",
		ChatID:     "d1",
	})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if outcome != OutcomeDelivered {
		t.Fatalf("outcome = %q; want Delivered", outcome)
	}

	rec, ok := fx.ledger.Receipt("r1")
	if !ok || rec.Status != domain.StatusDelivered {
		t.Fatalf("receipt = %+v, %v", rec, ok)
	}
	if rec.Payload.ChatID != "d1" {
		t.Fatalf("payload chat id = %q", rec.Payload.ChatID)
	}
	if fx.messenger.fileCount() != 1 {
		t.Fatalf("file sent %d times; want 1", fx.messenger.fileCount())
	}
}

func TestHandle_ResolvesChatIDFromMapping(t *testing.T) {
	product := testProduct(t, "starter-kit")
	fx := newPaymentFixture(t, product)
	fx.maps.Link("261", "d1")

	outcome, err := fx.svc.Handle(context.Background(), PaymentEvent{
		ReceiptID: "r1", ExternalID: "261", ProductID: "starter-kit",
	})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if outcome != OutcomeDelivered {
		t.Fatalf("outcome = %q", outcome)
	}
}

func TestHandle_ReplayedReceiptNotRedelivered(t *testing.T) {
	product := testProduct(t, "starter-kit")
	fx := newPaymentFixture(t, product)
	ev := PaymentEvent{ReceiptID: "r1", ExternalID: "261", ProductID: "starter-kit", ChatID: "d1"}

	if _, err := fx.svc.Handle(context.Background(), ev); err != nil {
		t.Fatalf("first Handle: %v", err)
	}
	outcome, err := fx.svc.Handle(context.Background(), ev)
	if err != nil {
		t.Fatalf("replay Handle: %v", err)
	}
	if outcome != OutcomeAlreadyDelivered {
		t.Fatalf("replay outcome = %q; want Already delivered", outcome)
	}
	if fx.messenger.fileCount() != 1 {
		t.Fatalf("file sent %d times across replay; want exactly 1", fx.messenger.fileCount())
	}
}

func TestHandle_NoChatIdentityParksReceipt(t *testing.T) {
	product := testProduct(t, "starter-kit")
	fx := newPaymentFixture(t, product)

	outcome, err := fx.svc.Handle(context.Background(), PaymentEvent{
		ReceiptID: "r1", ExternalID: "unmapped", ProductID: "starter-kit",
	})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if outcome != OutcomeNoChatIdentity {
		t.Fatalf("outcome = %q; want No Discord ID found", outcome)
	}

	rec, ok := fx.ledger.Receipt("r1")
	if !ok || rec.Status != domain.StatusPending {
		t.Fatalf("receipt = %+v, %v; want pending", rec, ok)
	}
	if rec.DeliveredAt != nil {
		t.Fatalf("pending receipt stamped DeliveredAt")
	}
	// No delivery side effects ran.
	if fx.messenger.fileCount() != 0 || len(fx.messenger.dms) != 0 {
		t.Fatalf("delivery side effects ran for parked payment")
	}
}

func TestHandle_PendingReceiptTerminalEvenAfterLink(t *testing.T) {
	product := testProduct(t, "starter-kit")
	fx := newPaymentFixture(t, product)
	ev := PaymentEvent{ReceiptID: "r1", ExternalID: "261", ProductID: "starter-kit"}

	if outcome, _ := fx.svc.Handle(context.Background(), ev); outcome != OutcomeNoChatIdentity {
		t.Fatalf("setup outcome = %q", outcome)
	}

	// The identity gets linked afterwards; a replay of the same receipt id
	// still must not deliver.
	fx.maps.Link("261", "d1")
	outcome, err := fx.svc.Handle(context.Background(), ev)
	if err != nil {
		t.Fatalf("replay Handle: %v", err)
	}
	if outcome != OutcomeAlreadyDelivered {
		t.Fatalf("outcome = %q; want Already delivered", outcome)
	}
	if fx.messenger.fileCount() != 0 {
		t.Fatalf("parked receipt was delivered on replay")
	}
}

func TestHandle_UnknownProductRejectedBeforeStateChange(t *testing.T) {
	fx := newPaymentFixture(t, testProduct(t, "starter-kit"))

	_, err := fx.svc.Handle(context.Background(), PaymentEvent{
		ReceiptID: "r1", ExternalID: "261", ProductID: "no-such-product", ChatID: "d1",
	})
	if !errors.Is(err, ErrUnknownProduct) {
		t.Fatalf("err = %v; want ErrUnknownProduct", err)
	}
	if fx.ledger.HasReceipt("r1") {
		t.Fatalf("rejected payment left a receipt behind")
	}
}

func TestHandle_FailedDeliveryRecordedAsFailed(t *testing.T) {
	fx := newPaymentFixture(t, missingProduct("ghost"))

	outcome, err := fx.svc.Handle(context.Background(), PaymentEvent{
		ReceiptID: "r1", ExternalID: "261", ProductID: "ghost", ChatID: "d1",
	})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if outcome != OutcomeFailed {
		t.Fatalf("outcome = %q; want Delivery failed", outcome)
	}
	rec, _ := fx.ledger.Receipt("r1")
	if rec.Status != domain.StatusFailed {
		t.Fatalf("receipt status = %q", rec.Status)
	}

	// A failed receipt is terminal too: the replay is refused.
	outcome, _ = fx.svc.Handle(context.Background(), PaymentEvent{
		ReceiptID: "r1", ExternalID: "261", ProductID: "ghost", ChatID: "d1",
	})
	if outcome != OutcomeAlreadyDelivered {
		t.Fatalf("failed-receipt replay outcome = %q", outcome)
	}
}

func TestHandle_ConcurrentReplaysDeliverOnce(t *testing.T) {
	product := testProduct(t, "starter-kit")
	fx := newPaymentFixture(t, product)
	ev := PaymentEvent{ReceiptID: "r1", ExternalID: "261", ProductID: "starter-kit", ChatID: "d1"}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = fx.svc.Handle(context.Background(), ev)
		}()
	}
	wg.Wait()

	if fx.messenger.fileCount() != 1 {
		t.Fatalf("file sent %d times under concurrent replay; want exactly 1", fx.messenger.fileCount())
	}
}
