package subscription

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"voiceclone-backend/internal/apperr"
	"voiceclone-backend/internal/catalog"
	"voiceclone-backend/internal/domain/access"
	"voiceclone-backend/internal/domain/notifications"
	"voiceclone-backend/internal/domain/plans"
	"voiceclone-backend/internal/domain/subscriptions"
	"voiceclone-backend/internal/infra/stripe"
	"voiceclone-backend/internal/ledger"
	"voiceclone-backend/internal/pkg/logger"
	"voiceclone-backend/internal/testutil"
)

type emitted struct {
	UserID uint
	Kind   notifications.Kind
	Date   time.Time
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []emitted
}

func (n *recordingNotifier) Emit(_ context.Context, userID uint, kind notifications.Kind, date time.Time) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, emitted{userID, kind, date})
}

type fixture struct {
	db       *gorm.DB
	svc      *Service
	gw       *testutil.FakeGateway
	notifier *recordingNotifier
	repo     *ledger.Repository
	now      time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		db:       testutil.SetupTestDB(t),
		gw:       testutil.NewFakeGateway(),
		notifier: &recordingNotifier{},
		now:      time.Date(2026, 10, 16, 9, 30, 0, 0, time.UTC),
	}
	f.repo = ledger.NewRepository(f.db)
	cat := catalog.NewService(f.db, f.gw, logger.Discard())
	f.svc = NewService(f.repo, cat, f.gw, f.notifier, "http://api.test/", logger.Discard(),
		WithClock(func() time.Time { return f.now }))
	return f
}

func (f *fixture) load(t *testing.T, userID uint) *subscriptions.Subscription {
	t.Helper()
	sub, err := f.repo.FindByUser(context.Background(), userID)
	require.NoError(t, err)
	return sub
}

func TestInitialize(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := testutil.TestUser(t, f.db)

	sub, err := f.svc.Initialize(ctx, u.ID)
	require.NoError(t, err)
	assert.False(t, sub.TrialActive)
	assert.True(t, sub.EndDate.Equal(f.now.AddDate(0, 1, 0)))

	_, err = f.svc.Initialize(ctx, u.ID)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	var count int64
	require.NoError(t, f.db.Model(&subscriptions.Subscription{}).Where("user_id = ?", u.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	stored := f.load(t, u.ID)
	require.NotNil(t, stored.Plan)
	assert.Equal(t, plans.FreePackID, stored.Plan.PackID)
	assert.Equal(t, subscriptions.StateFree, subscriptions.Classify(stored, f.now))
}

func TestEnsureFree_IsSilent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := testutil.TestUser(t, f.db)

	require.NoError(t, f.svc.EnsureFree(ctx, u.ID))
	first := f.load(t, u.ID)

	f.now = f.now.Add(48 * time.Hour)
	require.NoError(t, f.svc.EnsureFree(ctx, u.ID))
	assert.True(t, f.load(t, u.ID).EndDate.Equal(first.EndDate))
}

func TestCreateCheckoutSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := testutil.TestUser(t, f.db)
	testutil.TestPlan(t, f.db, "MONTHLY_PRO")
	testutil.TestPlan(t, f.db, "OLD_PLAN", func(p *plans.Plan) { p.Status = plans.StatusSuspended })

	out, err := f.svc.CreateCheckoutSession(ctx, u.Principal(), "MONTHLY_PRO")
	require.NoError(t, err)
	assert.NotEmpty(t, out.SessionID)
	assert.NotEmpty(t, out.URL)
	require.Len(t, f.gw.Created, 1)
	assert.Equal(t, "price_MONTHLY_PRO", f.gw.Created[0].PriceID)
	assert.Equal(t, 7, f.gw.Created[0].TrialDays)
	assert.Equal(t, "http://api.test/subscription/stripe-success?session_id={CHECKOUT_SESSION_ID}", f.gw.Created[0].SuccessURL)

	_, err = f.svc.CreateCheckoutSession(ctx, u.Principal(), "OLD_PLAN")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	_, err = f.svc.CreateCheckoutSession(ctx, u.Principal(), "")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	f.gw.Fail = true
	_, err = f.svc.CreateCheckoutSession(ctx, u.Principal(), "MONTHLY_PRO")
	assert.Equal(t, apperr.KindUpstream, apperr.KindOf(err))
}

func TestConfirmCheckout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := testutil.TestUser(t, f.db)
	other := testutil.TestUser(t, f.db)
	testutil.TestPlan(t, f.db, "MONTHLY_PRO")

	out, err := f.svc.CreateCheckoutSession(ctx, u.Principal(), "MONTHLY_PRO")
	require.NoError(t, err)

	_, err = f.svc.ConfirmCheckout(ctx, u.ID, out.SessionID)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err), "not paid yet")

	f.gw.CompleteSession(out.SessionID, stripe.Subscription{Ref: "sub_1", Status: stripe.StatusTrialing})

	_, err = f.svc.ConfirmCheckout(ctx, other.ID, out.SessionID)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	sub, err := f.svc.ConfirmCheckout(ctx, u.ID, out.SessionID)
	require.NoError(t, err)
	assert.True(t, sub.TrialActive)
	assert.Equal(t, "sub_1", sub.ExternalRef())

	// Confirming again returns the stored row.
	f.now = f.now.Add(time.Hour)
	again, err := f.svc.ConfirmCheckout(ctx, u.ID, out.SessionID)
	require.NoError(t, err)
	assert.True(t, again.EndDate.Equal(sub.EndDate))
}

func TestConfirmCheckout_Unpaid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := testutil.TestUser(t, f.db)
	testutil.TestPlan(t, f.db, "MONTHLY_PRO")

	paid, err := f.svc.CreateCheckoutSession(ctx, u.Principal(), "MONTHLY_PRO")
	require.NoError(t, err)
	f.gw.CompleteSession(paid.SessionID, stripe.Subscription{Ref: "sub_1", Status: stripe.StatusActive})
	f.gw.Sessions[paid.SessionID].PaymentStatus = stripe.PaymentUnpaid

	_, err = f.svc.ConfirmCheckout(ctx, u.ID, paid.SessionID)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	assert.Nil(t, f.load(t, u.ID))

	trial, err := f.svc.CreateCheckoutSession(ctx, u.Principal(), "MONTHLY_PRO")
	require.NoError(t, err)
	f.gw.CompleteSession(trial.SessionID, stripe.Subscription{Ref: "sub_2", Status: stripe.StatusTrialing})
	f.gw.Sessions[trial.SessionID].PaymentStatus = stripe.PaymentUnpaid

	sub, err := f.svc.ConfirmCheckout(ctx, u.ID, trial.SessionID)
	require.NoError(t, err)
	assert.True(t, sub.TrialActive)
}

func seedPaid(t *testing.T, f *fixture, status string, trial bool) *subscriptions.Subscription {
	t.Helper()
	plan := testutil.TestPlan(t, f.db, "MONTHLY_PRO")
	u := testutil.TestUser(t, f.db)
	f.gw.PutSubscription(stripe.Subscription{
		Ref:              "sub_1",
		Status:           status,
		CurrentPeriodEnd: f.now.Add(20 * 24 * time.Hour),
	})
	return testutil.TestSubscription(t, f.db, subscriptions.Subscription{
		UserID: u.ID, PlanID: plan.ID, StartDate: f.now.Add(-24 * time.Hour), EndDate: f.now.AddDate(0, 1, 0),
		TrialActive: trial, StripeSubscriptionID: testutil.Ref("sub_1"),
	})
}

func TestCancel_DuringTrialDeletes(t *testing.T) {
	f := newFixture(t)
	sub := seedPaid(t, f, stripe.StatusTrialing, true)

	res, err := f.svc.Cancel(context.Background(), sub.UserID)
	require.NoError(t, err)
	assert.True(t, res.Deleted)
	assert.Equal(t, []string{"sub_1"}, f.gw.Canceled)
	assert.Nil(t, f.load(t, sub.UserID))

	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, notifications.KindSubscriptionCanceled, f.notifier.sent[0].Kind)
}

func TestCancel_ActiveSchedulesPeriodEnd(t *testing.T) {
	f := newFixture(t)
	sub := seedPaid(t, f, stripe.StatusActive, false)

	res, err := f.svc.Cancel(context.Background(), sub.UserID)
	require.NoError(t, err)
	assert.False(t, res.Deleted)
	assert.Empty(t, f.gw.Canceled)
	assert.Equal(t, []string{"sub_1"}, f.gw.Updated)

	stored := f.load(t, sub.UserID)
	require.NotNil(t, stored)
	periodEnd := f.now.Add(20 * 24 * time.Hour)
	assert.True(t, stored.EndDate.Equal(periodEnd))
	assert.False(t, stored.TrialActive)
	assert.True(t, stored.CancelAtPeriodEnd)
	assert.Equal(t, subscriptions.StatePendingCancel, subscriptions.Classify(stored, f.now))
}

func TestCancel_GatewayFailureLeavesLedger(t *testing.T) {
	f := newFixture(t)
	sub := seedPaid(t, f, stripe.StatusActive, false)
	f.gw.Fail = true

	_, err := f.svc.Cancel(context.Background(), sub.UserID)
	assert.Equal(t, apperr.KindUpstream, apperr.KindOf(err))

	stored := f.load(t, sub.UserID)
	require.NotNil(t, stored)
	assert.True(t, stored.EndDate.Equal(sub.EndDate))
	assert.False(t, stored.CancelAtPeriodEnd)
	assert.Empty(t, f.notifier.sent)
}

func TestCancel_LocalOnly(t *testing.T) {
	f := newFixture(t)
	u := testutil.TestUser(t, f.db)
	_, err := f.svc.Initialize(context.Background(), u.ID)
	require.NoError(t, err)

	res, err := f.svc.Cancel(context.Background(), u.ID)
	require.NoError(t, err)
	assert.True(t, res.Deleted)
	assert.Empty(t, f.gw.Canceled)

	_, err = f.svc.Cancel(context.Background(), u.ID)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestRenew(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := testutil.TestUser(t, f.db)
	_, err := f.svc.Initialize(ctx, u.ID)
	require.NoError(t, err)

	_, err = f.svc.Renew(ctx, u.ID)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	assert.Equal(t, "subscription still active", apperr.MessageOf(err))

	f.now = f.now.AddDate(0, 2, 0)
	renewed, err := f.svc.Renew(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, renewed.StartDate.Equal(f.now))
	assert.True(t, renewed.EndDate.Equal(f.now.AddDate(0, 1, 0)))

	ok, err := f.svc.Entitled(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRenew_RemotelyCanceled(t *testing.T) {
	f := newFixture(t)
	sub := seedPaid(t, f, stripe.StatusCanceled, false)
	f.now = sub.EndDate.Add(time.Hour)

	_, err := f.svc.Renew(context.Background(), sub.UserID)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
}

func TestDetails(t *testing.T) {
	f := newFixture(t)
	sub := seedPaid(t, f, stripe.StatusTrialing, true)

	d, err := f.svc.Details(context.Background(), sub.UserID)
	require.NoError(t, err)
	assert.Equal(t, "MONTHLY_PRO", d.PackID)
	assert.Equal(t, "$9.99", d.Amount)
	assert.Equal(t, "2026-10-15", d.Begins)
	assert.Equal(t, "2026-11-16", d.Ends)
	assert.Equal(t, plans.Monthly, d.Type)
	require.NotNil(t, d.TrialExpires)
	assert.Equal(t, "2026-11-16", *d.TrialExpires)
	assert.Equal(t, subscriptions.StateTrialing, d.State)

	_, err = f.svc.Details(context.Background(), 9999)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "$0.00", FormatAmount(0))
	assert.Equal(t, "$9.99", FormatAmount(999))
	assert.Equal(t, "$120.05", FormatAmount(12005))
	assert.Equal(t, "-$1.50", FormatAmount(-150))
}

func TestAccess(t *testing.T) {
	f := newFixture(t)
	sub := seedPaid(t, f, stripe.StatusActive, false)

	p, err := f.svc.Access(context.Background(), sub.UserID)
	require.NoError(t, err)
	assert.True(t, p.Entitled)
	assert.Equal(t, subscriptions.StateActive, p.State)
	assert.Contains(t, p.Capabilities, access.CapVoiceClone)
}
