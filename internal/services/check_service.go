// Package services – CheckService
//
// This file implements the manual ownership-check flow behind the chat
// command: for every catalog product the invoking user has not yet claimed,
// poll the inventory API and deliver on confirmed ownership. Each product's
// check→deliver→record sequence runs under a per-claim-key lock so repeated
// triggers cannot double-deliver.
package services

import (
	"context"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/avendel/go-delivery-backend/internal/catalog"
	"github.com/avendel/go-delivery-backend/internal/domain"
)

// OwnershipPoller answers whether an external identity currently owns an
// entitlement. Implementations are fail-closed: any transport or parse
// failure reports "does not own".
type OwnershipPoller interface {
	OwnsEntitlement(ctx context.Context, externalID, entitlementID string) bool
}

// CheckReport summarizes one run of the manual check flow.
type CheckReport struct {
	// Delivered counts products delivered and claimed in this run.
	Delivered int
	// Failed counts products whose delivery attempt failed; no claim is
	// written for those, so a later run retries them.
	Failed int
	// AlreadyClaimed counts products skipped because a claim existed.
	AlreadyClaimed int
	// NotOwned counts products the inventory API did not confirm.
	NotOwned int
}

// CheckService executes the manual ownership-poll-and-deliver flow.
type CheckService struct {
	Mappings *MappingService
	Ledger   *LedgerService
	Delivery *DeliveryService
	Catalog  *catalog.Catalog
	Poller   OwnershipPoller
	// AuditDB receives best-effort audit rows; may be nil in tests.
	AuditDB *gorm.DB
	Log     zerolog.Logger

	locks *keyLock
}

// NewCheckService wires the manual check flow.
func NewCheckService(m *MappingService, l *LedgerService, d *DeliveryService, cat *catalog.Catalog, poller OwnershipPoller, auditDB *gorm.DB, log zerolog.Logger) *CheckService {
	return &CheckService{
		Mappings: m,
		Ledger:   l,
		Delivery: d,
		Catalog:  cat,
		Poller:   poller,
		AuditDB:  auditDB,
		Log:      log.With().Str("component", "checks").Logger(),
		locks:    newKeyLock(),
	}
}

// Run checks every catalog product for the user behind chatID. Returns
// ErrMappingNotFound when the chat identity has no linked external identity.
// Each unclaimed product costs one fresh inventory query; there is no
// caching between runs.
func (s *CheckService) Run(ctx context.Context, chatID string) (CheckReport, error) {
	var report CheckReport

	externalID, ok := s.Mappings.ResolveChat(chatID)
	if !ok {
		return report, ErrMappingNotFound
	}

	for _, product := range s.Catalog.All() {
		s.checkProduct(ctx, externalID, chatID, product, &report)
	}

	s.Log.Info().Str("chat_id", chatID).Str("external_id", externalID).
		Int("delivered", report.Delivered).Int("failed", report.Failed).
		Int("claimed", report.AlreadyClaimed).Int("not_owned", report.NotOwned).
		Msg("manual check finished")
	return report, nil
}

// checkProduct runs the locked check→poll→deliver→claim sequence for one
// product. A claim is written only after a successful delivery, so the claim
// ledger never holds a pending state.
func (s *CheckService) checkProduct(ctx context.Context, externalID, chatID string, product catalog.Product, report *CheckReport) {
	key := domain.ClaimKey(externalID, product.ID)
	unlock := s.locks.acquire("claim:" + key)
	defer unlock()

	if s.Ledger.HasClaim(externalID, product.ID) {
		report.AlreadyClaimed++
		return
	}
	if !s.Poller.OwnsEntitlement(ctx, externalID, product.EntitlementID) {
		report.NotOwned++
		return
	}

	res := s.Delivery.Deliver(ctx, chatID, product)

	status := domain.StatusFailed
	if res.Succeeded() {
		status = domain.StatusDelivered
		s.Ledger.RecordClaim(externalID, product.ID, chatID)
		report.Delivered++
	} else {
		report.Failed++
	}
	deliveries.WithLabelValues(domain.AuditKindClaim, string(status)).Inc()

	auditAttempt(ctx, s.AuditDB, s.Log, domain.DeliveryAudit{
		Kind:       domain.AuditKindClaim,
		Key:        key,
		ProductID:  product.ID,
		ExternalID: externalID,
		ChatID:     chatID,
		Outcome:    string(status),
	}, res)
}
