// Package notify stores user-visible lifecycle notices.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"voiceclone-backend/internal/apperr"
	"voiceclone-backend/internal/domain/notifications"
)

const markerTTL = 48 * time.Hour

// Marker guards against sending the same daily notice twice.
type Marker interface {
	MarkOnce(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Clear(ctx context.Context, key string) error
}

type Emitter struct {
	db     *gorm.DB
	marker Marker
	log    *slog.Logger
	now    func() time.Time
}

// NewEmitter builds an emitter. marker may be nil, which disables dedup.
func NewEmitter(db *gorm.DB, marker Marker, log *slog.Logger) *Emitter {
	return &Emitter{db: db, marker: marker, log: log, now: time.Now}
}

// Emit is fire-and-forget: failures are logged, never returned.
func (e *Emitter) Emit(ctx context.Context, userID uint, kind notifications.Kind, date time.Time) {
	if _, err := e.Send(ctx, userID, kind, date); err != nil {
		e.log.Error("notification not stored", "user_id", userID, "kind", kind, "error", err)
	}
}

// Send stores one notice. Daily reminder kinds are sent at most once per
// user and UTC day; sent is false when a marker already existed. If the
// marker store is unavailable the notice is sent anyway.
func (e *Emitter) Send(ctx context.Context, userID uint, kind notifications.Kind, date time.Time) (bool, error) {
	now := e.now().UTC()

	key := ""
	if e.marker != nil && daily(kind) {
		key = fmt.Sprintf("%s:%d:%s", kind, userID, now.Format("2006-01-02"))
		first, err := e.marker.MarkOnce(ctx, key, markerTTL)
		switch {
		case err != nil:
			e.log.Warn("notification dedup unavailable", "user_id", userID, "kind", kind, "error", err)
			key = ""
		case !first:
			e.log.Debug("notification already sent today", "user_id", userID, "kind", kind)
			return false, nil
		}
	}

	title, message, typ := notifications.Content(kind, date)
	n := notifications.Notification{
		UserID:    userID,
		Title:     title,
		Message:   message,
		Type:      typ,
		Kind:      kind,
		Timestamp: now,
	}
	if err := e.db.WithContext(ctx).Create(&n).Error; err != nil {
		if key != "" {
			if cerr := e.marker.Clear(ctx, key); cerr != nil {
				e.log.Warn("notification marker not cleared", "key", key, "error", cerr)
			}
		}
		return false, fmt.Errorf("store notification: %w", err)
	}
	e.log.Info("notification sent", "user_id", userID, "kind", kind)
	return true, nil
}

func daily(kind notifications.Kind) bool {
	switch kind {
	case notifications.KindTrialEnding, notifications.KindTrialExpired, notifications.KindSubscriptionOver:
		return true
	default:
		return false
	}
}

// List returns the user's notices, newest first.
func (e *Emitter) List(ctx context.Context, userID uint, unreadOnly bool) ([]notifications.Notification, error) {
	var out []notifications.Notification
	q := e.db.WithContext(ctx).Where("user_id = ?", userID)
	if unreadOnly {
		q = q.Where("is_read = ?", false)
	}
	if err := q.Order("sent_at DESC, id DESC").Find(&out).Error; err != nil {
		return nil, apperr.Internal("failed to load notifications", err)
	}
	return out, nil
}

func (e *Emitter) MarkRead(ctx context.Context, userID, id uint) (*notifications.Notification, error) {
	var n notifications.Notification
	err := e.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&n).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("notification not found")
	}
	if err != nil {
		return nil, apperr.Internal("failed to load notification", err)
	}
	if err := e.db.WithContext(ctx).Model(&n).Update("is_read", true).Error; err != nil {
		return nil, apperr.Internal("failed to update notification", err)
	}
	n.Read = true
	return &n, nil
}
