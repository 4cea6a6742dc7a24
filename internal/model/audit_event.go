package model

import "time"

// Audit outcomes for a query interaction. Events are append-only; nothing
// in this system updates or deletes a row once written.
const (
	AuditOutcomeAnswered = "answered"
	AuditOutcomeCached   = "cached"
	AuditOutcomeDenied   = "denied"
	AuditOutcomeRejected = "rejected"
)

type AuditEvent struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Username  string    `gorm:"size:64;not null;index" json:"username"`
	Role      string    `gorm:"size:32;not null" json:"role"`
	Question  string    `gorm:"type:text;not null" json:"question"`
	Outcome   string    `gorm:"size:16;not null;index" json:"outcome"`
	CreatedAt time.Time `json:"created_at"`
}
