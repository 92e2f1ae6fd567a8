package notifications

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestContent(t *testing.T) {
	date := time.Date(2026, 10, 18, 23, 0, 0, 0, time.UTC)

	title, msg, typ := Content(KindTrialEnding, date)
	assert.Equal(t, "Your Free Trial is Ending Soon", title)
	assert.Contains(t, msg, "2026-10-18")
	assert.Equal(t, TypeReminder, typ)

	_, _, typ = Content(KindSubscriptionOver, date)
	assert.Equal(t, TypeSubscription, typ)

	title, _, typ = Content(Kind("other"), date)
	assert.Equal(t, "Notification", title)
	assert.Equal(t, TypeSystem, typ)
}
