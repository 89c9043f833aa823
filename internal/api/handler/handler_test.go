package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"supportbot/backend/internal/achievement"
	"supportbot/backend/internal/community"
	"supportbot/backend/internal/complaint"
	"supportbot/backend/internal/config"
	"supportbot/backend/internal/filter"
	"supportbot/backend/internal/models"
	"supportbot/backend/internal/notify"
	"supportbot/backend/internal/queue"
	"supportbot/backend/internal/storage"
	"supportbot/backend/internal/storage/storagetest"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "s3cret"

func init() {
	gin.SetMode(gin.TestMode)
}

type fixture struct {
	h      *Handler
	router http.Handler
	store  *storage.Service
	hub    *notify.Hub
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s := storagetest.New(t)
	f, err := filter.New(config.DefaultFilterConfig())
	require.NoError(t, err)

	hub := notify.NewHub(nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	svc := community.NewService(
		s,
		f,
		complaint.NewService(s),
		queue.NewService(s, queue.NewMemCursorStore()),
		achievement.NewEvaluator(s, achievement.DefaultCatalog()),
		hub,
	)
	h := NewHandler(svc, hub, NewAuthenticator("jwt-test-secret"), testKey)
	return &fixture{h: h, router: h.Router(), store: s, hub: hub}
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(apiKeyHeader, testKey)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func (f *fixture) register(t *testing.T, id int64) {
	t.Helper()
	w := f.do(t, http.MethodPost, "/users/nickname", gin.H{"user_id": id, "nickname": storagetest.Nickname(id)})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestHealthAndMetricsAreOpen(t *testing.T) {
	f := newFixture(t)

	for _, path := range []string{"/healthz", "/metrics"} {
		w := httptest.NewRecorder()
		f.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
}

func TestAPIKeyRequired(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/leaderboard", nil)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req.Header.Set(apiKeyHeader, "wrong")
	w = httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/leaderboard", nil).Code)
}

func TestRegisterNicknameStatuses(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/users/nickname", gin.H{"user_id": 1, "nickname": "Nova"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Nova", decode(t, w)["nickname"])

	w = f.do(t, http.MethodPost, "/users/nickname", gin.H{"user_id": 2, "nickname": "Nova"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = f.do(t, http.MethodPost, "/users/nickname", gin.H{"user_id": 2, "nickname": "no spaces"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodPost, "/users/nickname", gin.H{"nickname": "Orphan"})
	assert.Equal(t, http.StatusBadRequest, w.Code, "user_id is required")
}

func TestHelpFlow(t *testing.T) {
	f := newFixture(t)
	f.register(t, 1)
	f.register(t, 2)

	w := f.do(t, http.MethodPost, "/help", gin.H{"user_id": 1, "kind": "text", "text": "I feel so tired of everything"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	itemID := int64(decode(t, w)["item_id"].(float64))

	w = f.do(t, http.MethodPost, "/help/next", gin.H{"user_id": 2})
	require.Equal(t, http.StatusOK, w.Code)
	item := decode(t, w)["item"].(map[string]any)
	assert.Equal(t, float64(itemID), item["id"])

	path := "/help/" + strconv.FormatInt(itemID, 10) + "/respond"
	w = f.do(t, http.MethodPost, path, gin.H{"user_id": 2, "kind": "text", "text": "Rest is allowed, you matter"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, float64(1), decode(t, w)["rating"])

	w = f.do(t, http.MethodPost, path, gin.H{"user_id": 2, "kind": "text", "text": "Rest is allowed, you matter"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "already_handled", decode(t, w)["status"])

	w = f.do(t, http.MethodPost, "/help/next", gin.H{"user_id": 2})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, decode(t, w)["item"], "empty backlog is not an error")

	w = f.do(t, http.MethodGet, "/users/2/achievements", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "first_help_1")
}

func TestSubmitRejectedByFilter(t *testing.T) {
	f := newFixture(t)
	f.register(t, 1)

	w := f.do(t, http.MethodPost, "/support", gin.H{"user_id": 1, "kind": "text", "text": "visit www.example.com"})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	body := decode(t, w)
	assert.Equal(t, "rejected", body["status"])
	assert.Equal(t, string(filter.CategoryLinks), body["category"])

	for i := 0; i < config.DefaultMaxMessagesPerMinute; i++ {
		w = f.do(t, http.MethodPost, "/support", gin.H{"user_id": 1, "kind": "text", "text": "sending warm thoughts"})
		require.Equal(t, http.StatusCreated, w.Code)
	}
	w = f.do(t, http.MethodPost, "/support", gin.H{"user_id": 1, "kind": "text", "text": "sending warm thoughts"})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, string(filter.CategorySpamFrequency), decode(t, w)["category"])
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	w = f.do(t, http.MethodPost, "/support", gin.H{"user_id": 1, "kind": "voice"})
	assert.Equal(t, http.StatusBadRequest, w.Code, "voice without a file id")
}

func TestComplaintStatusesAndThrottle(t *testing.T) {
	f := newFixture(t)
	f.register(t, 1)
	f.register(t, 2)
	f.h.throttle = newComplaintThrottle(2)

	a := storagetest.Item(t, f.store, 1, models.CategorySupport)
	b := storagetest.Item(t, f.store, 1, models.CategorySupport)
	c := storagetest.Item(t, f.store, 1, models.CategorySupport)
	path := func(item *models.QueueItem) string {
		return "/items/" + strconv.FormatUint(uint64(item.ID), 10) + "/complaints"
	}

	w := f.do(t, http.MethodPost, path(a), gin.H{"user_id": 2})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), decode(t, w)["complaint_count"])

	for i := 0; i < 3; i++ {
		w = f.do(t, http.MethodPost, path(a), gin.H{"user_id": 2})
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "already_handled", decode(t, w)["status"])
	}

	w = f.do(t, http.MethodPost, path(b), gin.H{"user_id": 2})
	require.Equal(t, http.StatusOK, w.Code, "lost races do not use up the quota")

	w = f.do(t, http.MethodPost, path(c), gin.H{"user_id": 2})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	for i := 0; i < 3; i++ {
		w = f.do(t, http.MethodPost, path(c), gin.H{"user_id": 1})
		assert.Equal(t, http.StatusBadRequest, w.Code, "own item")
	}

	w = f.do(t, http.MethodPost, "/items/abc/complaints", gin.H{"user_id": 2})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestComplaintThrottle(t *testing.T) {
	th := newComplaintThrottleSize(2, 3)

	assert.True(t, th.Take(1))
	assert.True(t, th.Take(1))
	assert.False(t, th.Take(1))

	th.Refund(1)
	assert.True(t, th.Take(1), "a refunded charge frees a slot")
	assert.False(t, th.Take(1))

	for id := int64(2); id <= 10; id++ {
		assert.True(t, th.Take(id))
	}
	assert.Equal(t, 3, th.Tracked(), "limiters are capped")
}

func TestBlockedUserIsForbidden(t *testing.T) {
	f := newFixture(t)
	f.register(t, 1)
	_, err := f.store.BlockUser(context.Background(), 1)
	require.NoError(t, err)

	w := f.do(t, http.MethodGet, "/users/1/blocked", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["blocked"])

	w = f.do(t, http.MethodPost, "/support/next", gin.H{"user_id": 1})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(t, http.MethodPost, "/help", gin.H{"user_id": 1, "kind": "text", "text": "please"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(t, http.MethodPost, "/support", gin.H{"user_id": 77, "kind": "text", "text": "hi"})
	assert.Equal(t, http.StatusNotFound, w.Code, "unregistered")
}

func TestEvaluateAndProfile(t *testing.T) {
	f := newFixture(t)
	f.register(t, 1)
	require.NoError(t, f.store.SetRating(context.Background(), 1, 12))

	w := f.do(t, http.MethodPost, "/users/1/achievements/evaluate", gin.H{"action": "bogus"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodPost, "/users/1/achievements/evaluate", gin.H{"action": "rating_reached", "dry_run": true})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "rating_10")

	w = f.do(t, http.MethodPost, "/users/1/achievements/evaluate", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "rating_10")

	w = f.do(t, http.MethodGet, "/users/1/profile", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), decode(t, w)["rank"])

	w = f.do(t, http.MethodGet, "/users/404/profile", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = f.do(t, http.MethodGet, "/users/zero/profile", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReminders(t *testing.T) {
	f := newFixture(t)
	f.register(t, 1)

	w := f.do(t, http.MethodPost, "/users/reminders", gin.H{"user_id": 1, "enabled": true})
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodGet, "/reminders/recipients", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []any{float64(1)}, decode(t, w)["user_ids"])
}

func TestWebSocketFeed(t *testing.T) {
	f := newFixture(t)
	srv := httptest.NewServer(f.router)
	defer srv.Close()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	_, resp, err := websocket.DefaultDialer.Dial(wsURL+"?token=garbage", nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	w := f.do(t, http.MethodPost, "/auth/token", gin.H{"user_id": 42})
	require.Equal(t, http.StatusOK, w.Code)
	token := decode(t, w)["token"].(string)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL+"?token="+token, nil)
	require.NoError(t, err)
	defer conn.Close()

	// registration is asynchronous to the handshake; keep publishing until
	// the client is attached
	got := make(chan notify.Event, 1)
	go func() {
		var ev notify.Event
		if err := conn.ReadJSON(&ev); err == nil {
			got <- ev
		}
	}()
	deadline := time.After(2 * time.Second)
	for {
		require.NoError(t, f.hub.Publish(context.Background(), notify.Event{UserID: 42, Kind: notify.KindSystemInfo, Text: "ping"}))
		select {
		case ev := <-got:
			assert.Equal(t, "ping", ev.Text)
			return
		case <-deadline:
			t.Fatal("no event over websocket")
		case <-time.After(20 * time.Millisecond):
		}
	}
}

func TestAuthenticator(t *testing.T) {
	a := NewAuthenticator("one")
	token, exp, err := a.Sign(7)
	require.NoError(t, err)
	assert.True(t, exp.After(time.Now()))

	id, err := a.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)

	_, err = NewAuthenticator("two").Parse(token)
	assert.Error(t, err, "wrong secret")

	a.now = func() time.Time { return time.Now().Add(tokenTTL + time.Minute) }
	_, err = a.Parse(token)
	assert.Error(t, err, "expired")
}
