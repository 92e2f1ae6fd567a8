package admin

import (
	"context"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voiceclone-backend/internal/domain/subscriptions"
	"voiceclone-backend/internal/ledger"
	"voiceclone-backend/internal/notify"
	"voiceclone-backend/internal/pkg/logger"
	"voiceclone-backend/internal/sweep"
	"voiceclone-backend/internal/testutil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestAdminEndpoints(t *testing.T) {
	db := testutil.SetupTestDB(t)
	emitter := notify.NewEmitter(db, nil, logger.Discard())
	runner := sweep.NewService(ledger.NewRepository(db), emitter, logger.Discard(), 3, 0)
	h := NewHandler(db, runner)

	r := gin.New()
	r.GET("/admin/users", h.ListAllUsers)
	r.GET("/admin/user/:id", h.GetUserDetails)
	r.POST("/admin/sweep", h.RunSweep)

	now := time.Now().UTC()
	plan := testutil.TestPlan(t, db, "MONTHLY_PRO")
	paying := testutil.TestUser(t, db)
	testutil.TestSubscription(t, db, subscriptions.Subscription{
		UserID:               paying.ID,
		PlanID:               plan.ID,
		StartDate:            now.Add(-30 * 24 * time.Hour),
		EndDate:              now,
		StripeSubscriptionID: testutil.Ref("sub_a1"),
	})
	idle := testutil.TestUser(t, db)

	t.Run("list users", func(t *testing.T) {
		w := testutil.Do(t, r, http.MethodGet, "/admin/users", nil, "")
		require.Equal(t, http.StatusOK, w.Code)
		list := testutil.JSON(t, w)["users"].([]any)
		require.Len(t, list, 2)

		first := list[0].(map[string]any)
		assert.Equal(t, float64(paying.ID), first["id"])
		assert.Equal(t, "MONTHLY_PRO", first["pack_id"])
		assert.Equal(t, "sub_a1", first["stripe_subscription_id"])

		second := list[1].(map[string]any)
		assert.Equal(t, "absent", second["state"])
		assert.NotContains(t, second, "pack_id")
	})

	t.Run("user details", func(t *testing.T) {
		w := testutil.Do(t, r, http.MethodGet, "/admin/user/"+strconv.Itoa(int(idle.ID)), nil, "")
		require.Equal(t, http.StatusOK, w.Code)
		body := testutil.JSON(t, w)
		assert.Equal(t, idle.Email, body["user"].(map[string]any)["email"])
		assert.Equal(t, false, body["access"].(map[string]any)["entitled"])

		w = testutil.Do(t, r, http.MethodGet, "/admin/user/9999", nil, "")
		assert.Equal(t, http.StatusNotFound, w.Code)

		w = testutil.Do(t, r, http.MethodGet, "/admin/user/zero", nil, "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("run sweep", func(t *testing.T) {
		w := testutil.Do(t, r, http.MethodPost, "/admin/sweep", nil, "")
		require.Equal(t, http.StatusOK, w.Code)
		report := testutil.JSON(t, w)["report"].(map[string]any)
		assert.Equal(t, float64(1), report["subscriptionOver"])
		assert.Equal(t, float64(0), report["failed"])

		list, err := emitter.List(context.Background(), paying.ID, true)
		require.NoError(t, err)
		assert.Len(t, list, 1)
	})
}
