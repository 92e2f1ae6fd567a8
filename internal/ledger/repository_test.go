package ledger

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voiceclone-backend/internal/domain/plans"
	"voiceclone-backend/internal/domain/subscriptions"
	"voiceclone-backend/internal/testutil"
)

var now = time.Date(2026, 10, 16, 10, 0, 0, 0, time.UTC)

func TestInsertIfAbsent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	free := testutil.FreePlan(t, db)
	u := testutil.TestUser(t, db)

	sub := subscriptions.StartFree(u.ID, free, now)
	created, err := repo.InsertIfAbsent(ctx, &sub)
	require.NoError(t, err)
	assert.True(t, created)

	again := subscriptions.StartFree(u.ID, free, now.Add(time.Hour))
	created, err = repo.InsertIfAbsent(ctx, &again)
	require.NoError(t, err)
	assert.False(t, created)

	got, err := repo.FindByUser(ctx, u.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.EndDate.Equal(now.AddDate(0, 1, 0)), "first insert wins")
	require.NotNil(t, got.Plan)
	assert.Equal(t, plans.FreePackID, got.Plan.PackID)
}

func TestInsertIfAbsent_Concurrent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := NewRepository(db)
	free := testutil.FreePlan(t, db)
	u := testutil.TestUser(t, db)

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s := subscriptions.StartFree(u.ID, free, now)
			ok, err := repo.InsertIfAbsent(context.Background(), &s)
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	var count int64
	require.NoError(t, db.Model(&subscriptions.Subscription{}).Where("user_id = ?", u.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
	assert.Equal(t, 1, wins)
}

func TestUpsertByUser(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	free := testutil.FreePlan(t, db)
	pro := testutil.TestPlan(t, db, "MONTHLY_PRO")
	u := testutil.TestUser(t, db)

	initial := subscriptions.StartFree(u.ID, free, now)
	_, err := repo.InsertIfAbsent(ctx, &initial)
	require.NoError(t, err)

	paid, err := subscriptions.StartFromCheckout(u.ID, pro, subscriptions.Remote{Ref: "sub_1", Trialing: true}, now)
	require.NoError(t, err)
	require.NoError(t, repo.UpsertByUser(ctx, &paid))

	// Same event applied twice converges.
	replay, err := subscriptions.StartFromCheckout(u.ID, pro, subscriptions.Remote{Ref: "sub_1", Trialing: true}, now)
	require.NoError(t, err)
	require.NoError(t, repo.UpsertByUser(ctx, &replay))

	var rows []subscriptions.Subscription
	require.NoError(t, db.Where("user_id = ?", u.ID).Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, pro.ID, rows[0].PlanID)
	assert.True(t, rows[0].TrialActive)
	assert.Equal(t, "sub_1", rows[0].ExternalRef())

	byRef, err := repo.FindByRef(ctx, "sub_1")
	require.NoError(t, err)
	require.NotNil(t, byRef)
	assert.Equal(t, u.ID, byRef.UserID)
}

func TestUpsertByUser_ConcurrentCheckouts(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := NewRepository(db)
	pro := testutil.TestPlan(t, db, "MONTHLY_PRO")
	u := testutil.TestUser(t, db)

	refs := map[string]bool{}
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		ref := fmt.Sprintf("sub_%d", i)
		refs[ref] = true
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := subscriptions.StartFromCheckout(u.ID, pro, subscriptions.Remote{Ref: ref, Trialing: true}, now)
			if !assert.NoError(t, err) {
				return
			}
			assert.NoError(t, repo.UpsertByUser(context.Background(), &s))
		}()
	}
	wg.Wait()

	var rows []subscriptions.Subscription
	require.NoError(t, db.Where("user_id = ?", u.ID).Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.True(t, refs[rows[0].ExternalRef()])
}

func TestSave_Guarded(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	pro := testutil.TestPlan(t, db, "MONTHLY_PRO")
	u := testutil.TestUser(t, db)

	row := testutil.TestSubscription(t, db, subscriptions.Subscription{
		UserID: u.ID, PlanID: pro.ID, StartDate: now, EndDate: now.AddDate(0, 1, 0),
		TrialActive: true, StripeSubscriptionID: testutil.Ref("sub_1"),
	})

	converted := *row
	converted.TrialActive = false
	ok, err := repo.Save(ctx, &converted, WhileTrialing)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Save(ctx, &converted, WhileTrialing)
	require.NoError(t, err)
	assert.False(t, ok, "guard no longer matches")

	ok, err = repo.Save(ctx, &converted, WhileRef("sub_other"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSave_DoesNotResurrect(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	pro := testutil.TestPlan(t, db, "MONTHLY_PRO")
	u := testutil.TestUser(t, db)

	row := testutil.TestSubscription(t, db, subscriptions.Subscription{
		UserID: u.ID, PlanID: pro.ID, StartDate: now, EndDate: now.AddDate(0, 1, 0),
		StripeSubscriptionID: testutil.Ref("sub_1"),
	})

	deleted, err := repo.DeleteByRef(ctx, "sub_1")
	require.NoError(t, err)
	assert.True(t, deleted)

	ok, err := repo.Save(ctx, row)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := repo.FindByUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestDeleteByUser(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	free := testutil.FreePlan(t, db)
	u := testutil.TestUser(t, db)

	testutil.TestSubscription(t, db, subscriptions.StartFree(u.ID, free, now))

	ok, err := repo.DeleteByUser(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.DeleteByUser(ctx, u.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.DeleteByRef(ctx, "")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEntitled(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	pro := testutil.TestPlan(t, db, "MONTHLY_PRO")

	trial := testutil.TestUser(t, db)
	testutil.TestSubscription(t, db, subscriptions.Subscription{
		UserID: trial.ID, PlanID: pro.ID, StartDate: now, EndDate: now.Add(time.Hour), TrialActive: true,
	})
	lapsed := testutil.TestUser(t, db)
	testutil.TestSubscription(t, db, subscriptions.Subscription{
		UserID: lapsed.ID, PlanID: pro.ID, StartDate: now.AddDate(0, -1, 0), EndDate: now,
	})
	none := testutil.TestUser(t, db)

	ok, err := repo.Entitled(ctx, trial.ID, now)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Entitled(ctx, lapsed.ID, now)
	require.NoError(t, err)
	assert.False(t, ok, "end date equal to now is not entitled")

	ok, err = repo.Entitled(ctx, none.ID, now)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEndingBetween(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	pro := testutil.TestPlan(t, db, "MONTHLY_PRO")

	day := time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC)
	mk := func(end time.Time, trial bool) uint {
		u := testutil.TestUser(t, db)
		testutil.TestSubscription(t, db, subscriptions.Subscription{
			UserID: u.ID, PlanID: pro.ID, StartDate: end.AddDate(0, -1, 0), EndDate: end, TrialActive: trial,
		})
		return u.ID
	}
	inTrial := mk(day.Add(5*time.Hour), true)
	mk(day.Add(-time.Second), true)
	mk(day.Add(24*time.Hour), true)
	paid := mk(day.Add(23*time.Hour), false)

	got, err := repo.EndingBetween(ctx, day, day.Add(24*time.Hour), true)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, inTrial, got[0].UserID)

	got, err = repo.EndingBetween(ctx, day, day.Add(24*time.Hour), false)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, paid, got[0].UserID)
}
