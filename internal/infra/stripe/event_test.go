package stripe

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voiceclone-backend/internal/apperr"
)

const testSecret = "whsec_test"

func sign(payload []byte, secret string, at time.Time) string {
	ts := at.Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(fmt.Sprintf("%d.", ts)))
	mac.Write(payload)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func TestVerifyWebhookSignature_Checkout(t *testing.T) {
	payload := []byte(`{
		"id": "evt_1",
		"object": "event",
		"type": "checkout.session.completed",
		"created": 1791000000,
		"data": {"object": {
			"id": "cs_1",
			"object": "checkout.session",
			"client_reference_id": "7",
			"metadata": {"userId": "7", "packId": "MONTHLY_PRO"},
			"subscription": "sub_1"
		}}
	}`)

	evt, err := VerifyWebhookSignature(payload, sign(payload, testSecret, time.Now()), testSecret)
	require.NoError(t, err)

	assert.Equal(t, "evt_1", evt.ID)
	assert.Equal(t, EventCheckoutCompleted, evt.Type)
	assert.True(t, evt.Created.Equal(time.Unix(1791000000, 0)))
	require.NotNil(t, evt.Checkout)
	assert.Equal(t, uint(7), evt.Checkout.UserID)
	assert.Equal(t, "MONTHLY_PRO", evt.Checkout.PackID)
	assert.Equal(t, "sub_1", evt.Checkout.SubscriptionRef)
	assert.Nil(t, evt.Checkout.Subscription)
}

func TestVerifyWebhookSignature_BadSignature(t *testing.T) {
	payload := []byte(`{"id":"evt_1","object":"event","type":"checkout.session.completed","data":{"object":{}}}`)

	_, err := VerifyWebhookSignature(payload, sign(payload, "whsec_other", time.Now()), testSecret)
	require.Error(t, err)
	assert.Equal(t, apperr.KindSignature, apperr.KindOf(err))

	_, err = VerifyWebhookSignature(payload, "", testSecret)
	assert.Equal(t, apperr.KindSignature, apperr.KindOf(err))
}

func TestVerifyWebhookSignature_TamperedBody(t *testing.T) {
	payload := []byte(`{"id":"evt_1","object":"event","type":"invoice.payment_succeeded","data":{"object":{}}}`)
	header := sign(payload, testSecret, time.Now())

	tampered := []byte(`{"id":"evt_2","object":"event","type":"invoice.payment_succeeded","data":{"object":{}}}`)
	_, err := VerifyWebhookSignature(tampered, header, testSecret)
	assert.Equal(t, apperr.KindSignature, apperr.KindOf(err))
}

func TestParse_SubscriptionAndInvoice(t *testing.T) {
	sub := []byte(`{
		"id": "evt_2",
		"object": "event",
		"type": "customer.subscription.updated",
		"created": 1791000100,
		"data": {"object": {
			"id": "sub_1",
			"object": "subscription",
			"status": "trialing",
			"cancel_at_period_end": true,
			"current_period_end": 1793600000,
			"metadata": {"userId": "9"}
		}}
	}`)
	evt, err := VerifyWebhookSignature(sub, sign(sub, testSecret, time.Now()), testSecret)
	require.NoError(t, err)
	require.NotNil(t, evt.Subscription)
	assert.Equal(t, "sub_1", evt.Subscription.Ref)
	assert.True(t, evt.Subscription.Trialing())
	assert.True(t, evt.Subscription.CancelAtPeriodEnd)
	assert.True(t, evt.Subscription.CurrentPeriodEnd.Equal(time.Unix(1793600000, 0)))
	assert.Equal(t, uint(9), evt.Subscription.UserID)

	inv := []byte(`{
		"id": "evt_3",
		"object": "event",
		"type": "invoice.payment_succeeded",
		"created": 1791000200,
		"data": {"object": {
			"id": "in_1",
			"object": "invoice",
			"subscription": "sub_1",
			"amount_paid": 999,
			"billing_reason": "subscription_cycle"
		}}
	}`)
	evt, err = VerifyWebhookSignature(inv, sign(inv, testSecret, time.Now()), testSecret)
	require.NoError(t, err)
	require.NotNil(t, evt.Invoice)
	assert.Equal(t, "sub_1", evt.Invoice.SubscriptionRef)
	assert.Equal(t, int64(999), evt.Invoice.AmountPaid)
	assert.Equal(t, BillingReasonCycle, evt.Invoice.BillingReason)
}

func TestParse_UnknownTypeHasNoPayload(t *testing.T) {
	payload := []byte(`{"id":"evt_4","object":"event","type":"customer.created","created":1791000300,"data":{"object":{"id":"cus_1"}}}`)
	evt, err := VerifyWebhookSignature(payload, sign(payload, testSecret, time.Now()), testSecret)
	require.NoError(t, err)
	assert.Equal(t, "customer.created", evt.Type)
	assert.Nil(t, evt.Checkout)
	assert.Nil(t, evt.Subscription)
	assert.Nil(t, evt.Invoice)
}
