// Package domain defines the persisted state of the delivery backend: the
// identity mapping table, the receipt-keyed delivery ledger, and the
// claim-keyed ledger used by the manual ownership-check flow. The whole state
// travels as one JSON document mirrored between the remote record store and
// the local cache.
package domain

import (
	"fmt"
	"time"
)

// ReceiptStatus enumerates the lifecycle of a payment receipt.
type ReceiptStatus string

const (
	// StatusPending marks a receipt whose external identity had no resolvable
	// chat identity when the payment arrived. Delivery was not attempted.
	StatusPending ReceiptStatus = "pending"
	// StatusDelivered marks a receipt whose delivery attempt succeeded.
	StatusDelivered ReceiptStatus = "delivered"
	// StatusFailed marks a receipt whose delivery attempt failed.
	StatusFailed ReceiptStatus = "failed"
)

// ReceiptPayload is the original payment payload captured with a receipt.
type ReceiptPayload struct {
	ExternalID string `json:"externalId"`
	ProductID  string `json:"productId"`
	ChatID     string `json:"chatId,omitempty"`
}

// Receipt records one payment event. A receipt identifier, once present in
// the ledger, is never reprocessed: entries are append-only and terminal.
type Receipt struct {
	Status      ReceiptStatus  `json:"status"`
	Payload     ReceiptPayload `json:"payload"`
	DeliveredAt *time.Time     `json:"deliveredAt,omitempty"`
}

// Claim records a one-time delivery keyed by (external identity, product).
// A claim, once written, permanently suppresses redelivery of that product
// to that identity, independent of receipt-based delivery.
type Claim struct {
	ProductID   string    `json:"productId"`
	ExternalID  string    `json:"externalId"`
	ChatID      string    `json:"chatId"`
	DeliveredAt time.Time `json:"deliveredAt"`
}

// ClaimKey builds the ledger key for a (external identity, product) pair.
func ClaimKey(externalID, productID string) string {
	return fmt.Sprintf("%s_%s", externalID, productID)
}

// StateDocument is the full ledger+mapping document. The remote record store
// is the durable owner; the local cache holds a working copy.
type StateDocument struct {
	// Mappings maps an external (game-platform) id to a chat (Discord) id.
	// At most one chat identity per external identity; last write wins.
	Mappings map[string]string `json:"mappings"`
	// DeliveredReceipts is the receipt-keyed delivery ledger.
	DeliveredReceipts map[string]Receipt `json:"deliveredReceipts"`
	// DeliveredPasses is the claim-keyed ledger, keyed by ClaimKey.
	DeliveredPasses map[string]Claim `json:"deliveredPasses"`
}

// NewStateDocument returns an empty document with all maps initialized,
// used both as the zero state and as the degraded-mode fallback when the
// remote store cannot be read.
func NewStateDocument() *StateDocument {
	return &StateDocument{
		Mappings:          map[string]string{},
		DeliveredReceipts: map[string]Receipt{},
		DeliveredPasses:   map[string]Claim{},
	}
}

// Normalize initializes any nil maps in place. Documents decoded from JSON
// may omit empty top-level keys.
func (d *StateDocument) Normalize() {
	if d.Mappings == nil {
		d.Mappings = map[string]string{}
	}
	if d.DeliveredReceipts == nil {
		d.DeliveredReceipts = map[string]Receipt{}
	}
	if d.DeliveredPasses == nil {
		d.DeliveredPasses = map[string]Claim{}
	}
}

// Clone returns a deep copy of the document. The cache clones the working
// copy into a flush snapshot so in-flight remote writes never observe
// concurrent mutation.
func (d *StateDocument) Clone() *StateDocument {
	out := &StateDocument{
		Mappings:          make(map[string]string, len(d.Mappings)),
		DeliveredReceipts: make(map[string]Receipt, len(d.DeliveredReceipts)),
		DeliveredPasses:   make(map[string]Claim, len(d.DeliveredPasses)),
	}
	for k, v := range d.Mappings {
		out.Mappings[k] = v
	}
	for k, v := range d.DeliveredReceipts {
		out.DeliveredReceipts[k] = v
	}
	for k, v := range d.DeliveredPasses {
		out.DeliveredPasses[k] = v
	}
	return out
}
