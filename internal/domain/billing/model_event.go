package billing

import "time"

// ProcessedEvent records a gateway webhook delivery so a replay of an event
// that was already applied can be acknowledged without touching the ledger.
type ProcessedEvent struct {
	ID              uint   `gorm:"primaryKey"`
	EventID         string `gorm:"column:event_id;not null;uniqueIndex:idx_stripe_events_event_id"`
	Type            string `gorm:"type:varchar(64);not null"`
	ProcessedAt     *time.Time
	ProcessingError *string
	CreatedAt       time.Time
}

func (ProcessedEvent) TableName() string {
	return "stripe_events"
}

func (e *ProcessedEvent) Processed() bool {
	return e != nil && e.ProcessedAt != nil
}
