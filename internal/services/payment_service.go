// Package services – PaymentService
//
// This file implements the webhook flow: one payment event arrives, the
// ledger decides whether it was already handled, the mapping table resolves
// the target chat identity, and the orchestrator performs the delivery. The
// whole check→deliver→record sequence runs under a per-receipt lock so a
// replayed webhook racing the original cannot double-deliver.
package services

import (
	"context"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/avendel/go-delivery-backend/internal/catalog"
	"github.com/avendel/go-delivery-backend/internal/domain"
	"github.com/avendel/go-delivery-backend/internal/repo"
)

// PaymentOutcome is the user-visible result of one payment event. The
// values are the literal webhook response bodies.
type PaymentOutcome string

const (
	// OutcomeDelivered: delivery attempted and the file was transmitted.
	OutcomeDelivered PaymentOutcome = "Delivered"
	// OutcomeFailed: delivery attempted but the core file step failed.
	OutcomeFailed PaymentOutcome = "Delivery failed"
	// OutcomeAlreadyDelivered: the receipt id was seen before, in any state.
	OutcomeAlreadyDelivered PaymentOutcome = "Already delivered"
	// OutcomeNoChatIdentity: no chat identity could be resolved; the receipt
	// is parked as pending and no delivery side effect runs.
	OutcomeNoChatIdentity PaymentOutcome = "No Discord ID found"
)

// PaymentEvent is one inbound payment webhook payload.
type PaymentEvent struct {
	ReceiptID  string
	ExternalID string
	ProductID  string
	// ChatID optionally names the target chat identity directly, taking
	// precedence over the mapping table.
	ChatID string
}

// PaymentService executes the webhook flow.
type PaymentService struct {
	Mappings *MappingService
	Ledger   *LedgerService
	Delivery *DeliveryService
	Catalog  *catalog.Catalog
	// AuditDB receives best-effort audit rows; may be nil in tests.
	AuditDB *gorm.DB
	Log     zerolog.Logger

	locks *keyLock
}

// NewPaymentService wires the webhook flow.
func NewPaymentService(m *MappingService, l *LedgerService, d *DeliveryService, cat *catalog.Catalog, auditDB *gorm.DB, log zerolog.Logger) *PaymentService {
	return &PaymentService{
		Mappings: m,
		Ledger:   l,
		Delivery: d,
		Catalog:  cat,
		AuditDB:  auditDB,
		Log:      log.With().Str("component", "payments").Logger(),
		locks:    newKeyLock(),
	}
}

// Handle processes one payment event.
//
// Semantics:
//   - A receipt id present in the ledger, in any state, is never reprocessed
//     (OutcomeAlreadyDelivered). Pending receipts are terminal for replays
//     of the same id too: a later link does not re-trigger delivery.
//   - An unknown product id is rejected with ErrUnknownProduct before any
//     state change.
//   - With no resolvable chat identity the receipt is parked as pending and
//     no delivery side effect runs (OutcomeNoChatIdentity).
//   - Otherwise one delivery attempt runs and its terminal outcome is
//     recorded.
func (s *PaymentService) Handle(ctx context.Context, ev PaymentEvent) (PaymentOutcome, error) {
	unlock := s.locks.acquire("receipt:" + ev.ReceiptID)
	defer unlock()

	if s.Ledger.HasReceipt(ev.ReceiptID) {
		return OutcomeAlreadyDelivered, nil
	}

	product, ok := s.Catalog.Lookup(ev.ProductID)
	if !ok {
		return "", ErrUnknownProduct
	}

	payload := domain.ReceiptPayload{
		ExternalID: ev.ExternalID,
		ProductID:  ev.ProductID,
	}

	chatID := ev.ChatID
	if chatID == "" {
		chatID, _ = s.Mappings.Resolve(ev.ExternalID)
	}
	if chatID == "" {
		s.Ledger.RecordReceipt(ev.ReceiptID, domain.StatusPending, payload)
		deliveries.WithLabelValues(domain.AuditKindReceipt, string(domain.StatusPending)).Inc()
		s.Log.Info().Str("receipt_id", ev.ReceiptID).Str("external_id", ev.ExternalID).
			Msg("payment parked, no chat identity")
		return OutcomeNoChatIdentity, nil
	}
	payload.ChatID = chatID

	res := s.Delivery.Deliver(ctx, chatID, product)

	status := domain.StatusFailed
	outcome := OutcomeFailed
	if res.Succeeded() {
		status = domain.StatusDelivered
		outcome = OutcomeDelivered
	}
	s.Ledger.RecordReceipt(ev.ReceiptID, status, payload)
	deliveries.WithLabelValues(domain.AuditKindReceipt, string(status)).Inc()

	auditAttempt(ctx, s.AuditDB, s.Log, domain.DeliveryAudit{
		Kind:       domain.AuditKindReceipt,
		Key:        ev.ReceiptID,
		ProductID:  ev.ProductID,
		ExternalID: ev.ExternalID,
		ChatID:     chatID,
		Outcome:    string(status),
	}, res)

	s.Log.Info().Str("receipt_id", ev.ReceiptID).Str("status", string(status)).Msg("payment processed")
	return outcome, nil
}

// auditAttempt writes one audit row, best effort. Audit failures are logged
// and never block the flow.
func auditAttempt(ctx context.Context, db *gorm.DB, log zerolog.Logger, row domain.DeliveryAudit, res Result) {
	if db == nil {
		return
	}
	row.Confirmed = res.Confirmed
	row.FileSent = res.FileSent
	row.RoleGiven = res.RoleGranted
	if res.FileErr != nil {
		row.Error = res.FileErr.Error()
	}
	if err := repo.RecordAudit(ctx, db, &row); err != nil {
		log.Warn().Err(err).Str("key", row.Key).Msg("audit write failed")
	}
}
