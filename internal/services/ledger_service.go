// Package services – LedgerService
//
// This file implements the delivery ledger: the receipt-keyed record of
// payment events and the claim-keyed record gating the manual check flow.
// Both ledgers are append-only and terminal; a key once written is never
// reprocessed. Idempotency is enforced at the caller level: orchestrating
// flows must check HasReceipt/HasClaim (under the per-key lock) before doing
// delivery work, and the record operations do not re-validate.
package services

import (
	"time"

	"github.com/avendel/go-delivery-backend/internal/domain"
	"github.com/avendel/go-delivery-backend/internal/repo"
)

// LedgerService records delivery outcomes in the cached state document.
type LedgerService struct {
	// Cache is the state document cache backing both ledgers.
	Cache *repo.Cache
}

// NewLedgerService constructs a LedgerService over the given cache.
func NewLedgerService(cache *repo.Cache) *LedgerService {
	return &LedgerService{Cache: cache}
}

// HasReceipt reports whether receiptID is present in the ledger, in any
// state. Pending receipts count: a parked payment is still a recorded one.
func (s *LedgerService) HasReceipt(receiptID string) bool {
	var ok bool
	s.Cache.View(func(doc *domain.StateDocument) {
		_, ok = doc.DeliveredReceipts[receiptID]
	})
	return ok
}

// Receipt returns the recorded receipt for receiptID.
func (s *LedgerService) Receipt(receiptID string) (domain.Receipt, bool) {
	var (
		rec domain.Receipt
		ok  bool
	)
	s.Cache.View(func(doc *domain.StateDocument) {
		rec, ok = doc.DeliveredReceipts[receiptID]
	})
	return rec, ok
}

// RecordReceipt writes the terminal (or parked) state for receiptID and
// schedules persistence. DeliveredAt is stamped for delivered/failed states.
func (s *LedgerService) RecordReceipt(receiptID string, status domain.ReceiptStatus, payload domain.ReceiptPayload) {
	rec := domain.Receipt{Status: status, Payload: payload}
	if status != domain.StatusPending {
		now := time.Now().UTC()
		rec.DeliveredAt = &now
	}
	s.Cache.Update(func(doc *domain.StateDocument) {
		doc.DeliveredReceipts[receiptID] = rec
	})
}

// HasClaim reports whether the (externalID, productID) pair has already been
// claimed.
func (s *LedgerService) HasClaim(externalID, productID string) bool {
	var ok bool
	s.Cache.View(func(doc *domain.StateDocument) {
		_, ok = doc.DeliveredPasses[domain.ClaimKey(externalID, productID)]
	})
	return ok
}

// RecordClaim writes the claim for (externalID, productID). A claim is only
// ever written after a confirmed-ownership delivery, so there is no pending
// state on this path.
func (s *LedgerService) RecordClaim(externalID, productID, chatID string) {
	s.Cache.Update(func(doc *domain.StateDocument) {
		doc.DeliveredPasses[domain.ClaimKey(externalID, productID)] = domain.Claim{
			ProductID:   productID,
			ExternalID:  externalID,
			ChatID:      chatID,
			DeliveredAt: time.Now().UTC(),
		}
	})
}
