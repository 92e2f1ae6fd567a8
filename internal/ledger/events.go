package ledger

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"voiceclone-backend/internal/domain/billing"
)

// EventLog records webhook deliveries by gateway event id.
type EventLog struct {
	db *gorm.DB
}

func NewEventLog(db *gorm.DB) *EventLog {
	return &EventLog{db: db}
}

// CreateIfNotExists records the event and returns the stored row. created is
// false when the event id was seen before.
func (l *EventLog) CreateIfNotExists(ctx context.Context, eventID, eventType string) (bool, *billing.ProcessedEvent, error) {
	evt := billing.ProcessedEvent{EventID: eventID, Type: eventType}
	tx := l.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "event_id"}},
		DoNothing: true,
	}).Create(&evt)
	if tx.Error != nil {
		return false, nil, fmt.Errorf("record event %s: %w", eventID, tx.Error)
	}

	created := tx.RowsAffected > 0
	var stored billing.ProcessedEvent
	if err := l.db.WithContext(ctx).Where("event_id = ?", eventID).First(&stored).Error; err != nil {
		return false, nil, fmt.Errorf("load event %s: %w", eventID, err)
	}
	return created, &stored, nil
}

// MarkProcessed stamps the event as applied. A non-nil procErr is stored and
// leaves the event eligible for redelivery.
func (l *EventLog) MarkProcessed(ctx context.Context, id uint, procErr error) error {
	updates := map[string]any{}
	if procErr != nil {
		msg := procErr.Error()
		updates["processing_error"] = &msg
		updates["processed_at"] = nil
	} else {
		now := time.Now().UTC()
		updates["processed_at"] = &now
		updates["processing_error"] = nil
	}
	if err := l.db.WithContext(ctx).Model(&billing.ProcessedEvent{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return fmt.Errorf("mark event %d processed: %w", id, err)
	}
	return nil
}
