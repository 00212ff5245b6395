// Package domain defines the persisted state of the delivery backend. This
// file holds the local audit model, mapped with GORM into the SQLite audit
// database. Audit rows are a best-effort local history and are never read
// back to make delivery decisions; the remote state document stays
// authoritative for idempotency.
package domain

import "time"

// Audit kinds distinguish the two delivery flows.
const (
	// AuditKindReceipt marks an attempt triggered by a payment webhook.
	AuditKindReceipt = "receipt"
	// AuditKindClaim marks an attempt triggered by the manual check flow.
	AuditKindClaim = "claim"
)

// DeliveryAudit is one row of the append-only local delivery history.
type DeliveryAudit struct {
	ID         string    `gorm:"type:char(36);primaryKey"`
	Kind       string    `gorm:"type:varchar(16);not null;check:kind IN ('receipt','claim')"`
	Key        string    `gorm:"type:varchar(128);not null;index:idx_audit_key"`
	ProductID  string    `gorm:"type:varchar(64);not null"`
	ExternalID string    `gorm:"type:varchar(64);not null;index"`
	ChatID     string    `gorm:"type:varchar(64)"`
	Outcome    string    `gorm:"type:varchar(16);not null"`
	Confirmed  bool      `gorm:"not null"`
	FileSent   bool      `gorm:"not null"`
	RoleGiven  bool      `gorm:"not null"`
	Error      string    `gorm:"type:text"`
	CreatedAt  time.Time `gorm:"index"`
}

// TableName implements the GORM tabler interface.
func (DeliveryAudit) TableName() string { return "delivery_audit" }
