package notifications

import "time"

type Kind string

const (
	KindTrialEnding          Kind = "trial-ending"
	KindTrialExpired         Kind = "trial-expired"
	KindSubscriptionOver     Kind = "subscription-over"
	KindSubscriptionCanceled Kind = "subscription-canceled"
)

type Type string

const (
	TypeSubscription Type = "subscription"
	TypeSystem       Type = "system"
	TypeReminder     Type = "reminder"
)

type Notification struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;index:idx_notifications_user_read" json:"userId"`
	Title     string    `gorm:"type:varchar(200);not null" json:"title"`
	Message   string    `gorm:"type:text;not null" json:"message"`
	Type      Type      `gorm:"type:varchar(20);not null;default:'system'" json:"type"`
	Kind      Kind      `gorm:"type:varchar(40)" json:"kind,omitempty"`
	Read      bool      `gorm:"column:is_read;not null;default:false;index:idx_notifications_user_read" json:"read"`
	Timestamp time.Time `gorm:"column:sent_at;not null;index" json:"timestamp"`
}

// Content returns the title and message shown for a lifecycle kind. date is
// the subscription end date the notice refers to.
func Content(kind Kind, date time.Time) (title, message string, typ Type) {
	day := date.UTC().Format("2006-01-02")
	switch kind {
	case KindTrialEnding:
		return "Your Free Trial is Ending Soon",
			"Your free trial ends on " + day + ". Add a payment method to keep your voice clones and chats.",
			TypeReminder
	case KindTrialExpired:
		return "Your Free Trial Has Ended",
			"Your free trial ended on " + day + ". Subscribe to continue using premium features.",
			TypeSubscription
	case KindSubscriptionOver:
		return "Your Subscription Has Ended",
			"Your subscription ended on " + day + ". Renew to restore access.",
			TypeSubscription
	case KindSubscriptionCanceled:
		return "Subscription Canceled",
			"Your subscription has been canceled. You keep access until " + day + ".",
			TypeSubscription
	default:
		return "Notification", string(kind), TypeSystem
	}
}
