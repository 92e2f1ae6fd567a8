package subscriptions

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func ref(s string) *string { return &s }

func TestClassify(t *testing.T) {
	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	future := now.Add(24 * time.Hour)
	past := now.Add(-time.Hour)

	tests := []struct {
		name string
		sub  *Subscription
		want State
	}{
		{"absent", nil, StateAbsent},
		{"free", &Subscription{EndDate: future}, StateFree},
		{"trialing", &Subscription{EndDate: future, TrialActive: true, StripeSubscriptionID: ref("sub_1")}, StateTrialing},
		{"active", &Subscription{EndDate: future, StripeSubscriptionID: ref("sub_1")}, StateActive},
		{"pending cancel", &Subscription{EndDate: future, CancelAtPeriodEnd: true, StripeSubscriptionID: ref("sub_1")}, StatePendingCancel},
		{"expired", &Subscription{EndDate: past, StripeSubscriptionID: ref("sub_1")}, StateExpired},
		{"expired trial", &Subscription{EndDate: past, TrialActive: true, StripeSubscriptionID: ref("sub_1")}, StateExpired},
		{"boundary is expired", &Subscription{EndDate: now}, StateExpired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.sub, now))
		})
	}
}

func TestEntitled_IgnoresTrialFlag(t *testing.T) {
	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)

	for _, trial := range []bool{true, false} {
		assert.True(t, Entitled(&Subscription{EndDate: now.Add(time.Second), TrialActive: trial}, now))
		assert.False(t, Entitled(&Subscription{EndDate: now, TrialActive: trial}, now))
		assert.False(t, Entitled(&Subscription{EndDate: now.Add(-time.Second), TrialActive: trial}, now))
	}
	assert.False(t, Entitled(nil, now))
}
