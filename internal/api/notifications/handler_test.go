package notifications

import (
	"context"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voiceclone-backend/internal/app/http/middleware"
	"voiceclone-backend/internal/domain/notifications"
	"voiceclone-backend/internal/infra/redisstore"
	"voiceclone-backend/internal/notify"
	"voiceclone-backend/internal/pkg/logger"
	"voiceclone-backend/internal/testutil"
)

const jwtSecret = "notify-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

func TestListAndMarkRead(t *testing.T) {
	db := testutil.SetupTestDB(t)
	_, rdb := testutil.SetupTestRedis(t)
	emitter := notify.NewEmitter(db, redisstore.NewMarkers(rdb, "notice:"), logger.Discard())
	h := NewHandler(emitter)

	r := gin.New()
	g := r.Group("/notifications", middleware.AuthMiddleware(jwtSecret))
	g.GET("", h.List)
	g.PATCH("/:id/read", h.MarkRead)

	alice := testutil.TestUser(t, db)
	bob := testutil.TestUser(t, db)
	ctx := context.Background()
	ends := time.Now().Add(48 * time.Hour)

	emitter.Emit(ctx, alice.ID, notifications.KindTrialEnding, ends)
	emitter.Emit(ctx, alice.ID, notifications.KindTrialEnding, ends)
	emitter.Emit(ctx, alice.ID, notifications.KindSubscriptionCanceled, ends)
	emitter.Emit(ctx, bob.ID, notifications.KindSubscriptionOver, ends)

	aliceAuth := testutil.Bearer(t, alice.Principal(), jwtSecret)
	w := testutil.Do(t, r, http.MethodGet, "/notifications", nil, aliceAuth)
	require.Equal(t, http.StatusOK, w.Code)
	list := testutil.JSON(t, w)["notifications"].([]any)
	require.Len(t, list, 2, "daily reminder deduplicated")

	var trialID float64
	for _, item := range list {
		n := item.(map[string]any)
		assert.Equal(t, false, n["read"])
		if n["kind"] == string(notifications.KindTrialEnding) {
			trialID = n["id"].(float64)
		}
	}
	require.NotZero(t, trialID)

	path := "/notifications/" + strconv.Itoa(int(trialID)) + "/read"
	w = testutil.Do(t, r, http.MethodPatch, path, nil, testutil.Bearer(t, bob.Principal(), jwtSecret))
	assert.Equal(t, http.StatusNotFound, w.Code, "other user's notice")

	w = testutil.Do(t, r, http.MethodPatch, path, nil, aliceAuth)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, testutil.JSON(t, w)["notification"].(map[string]any)["read"])

	w = testutil.Do(t, r, http.MethodGet, "/notifications?unread=true", nil, aliceAuth)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, testutil.JSON(t, w)["notifications"].([]any), 1)

	w = testutil.Do(t, r, http.MethodPatch, "/notifications/abc/read", nil, aliceAuth)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
