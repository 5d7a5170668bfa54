package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/ksumini/mapleland-2025-christmas-timer/internal/auth"
	"github.com/ksumini/mapleland-2025-christmas-timer/internal/config"
	"github.com/ksumini/mapleland-2025-christmas-timer/internal/discord"
	"github.com/ksumini/mapleland-2025-christmas-timer/internal/models"
	"github.com/ksumini/mapleland-2025-christmas-timer/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeNotifier struct {
	err  error
	sent []string
}

func (f *fakeNotifier) SendDirectMessage(ctx context.Context, userID, text string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, userID+": "+text)
	return nil
}

type testServer struct {
	router   *gin.Engine
	api      *API
	db       *gorm.DB
	notifier *fakeNotifier
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Timer{}, &models.UserProfile{}))

	cfg := &config.Config{
		DiscordClientID:    "client-id",
		SessionSecret:      "test-secret",
		DefaultTZ:          "Asia/Seoul",
		PublicServerInvite: "https://discord.gg/test",
		Env:                "test",
	}

	notifier := &fakeNotifier{}
	api := &API{
		Timers:   store.NewTimerStore(db),
		Profiles: store.NewProfileStore(db, cfg.DefaultTZ),
		Notifier: notifier,
		Cfg:      cfg,
		Log:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	router := NewRouter(api)
	// Test-only login shortcut: stamps the session the way the OAuth
	// callback would.
	router.GET("/__login/:uid", func(c *gin.Context) {
		session := sessions.Default(c)
		session.Set(auth.SessionKeyUserID, c.Param("uid"))
		require.NoError(t, session.Save())
		c.Status(http.StatusOK)
	})

	return &testServer{router: router, api: api, db: db, notifier: notifier}
}

// login returns the session cookies of an authenticated user.
func (ts *testServer) login(t *testing.T, uid string) []*http.Cookie {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/__login/"+uid, nil)
	ts.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	return w.Result().Cookies()
}

func (ts *testServer) do(method, path string, body string, cookies []*http.Cookie) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func (ts *testServer) markDeliveryReady(t *testing.T, uid string) {
	t.Helper()
	require.NoError(t, ts.api.Profiles.RecordDeliveryResult(context.Background(), uid, true, ""))
}

func TestArmTimerRequiresLogin(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(http.MethodPost, "/api/timer/rudolph", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestArmTimerUnknownKind(t *testing.T) {
	ts := newTestServer(t)
	cookies := ts.login(t, "u1")
	ts.markDeliveryReady(t, "u1")

	w := ts.do(http.MethodPost, "/api/timer/mistletoe", "", cookies)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "unknown timer_type")
}

func TestArmTimerRequiresDeliveryReady(t *testing.T) {
	ts := newTestServer(t)
	cookies := ts.login(t, "u1")

	w := ts.do(http.MethodPost, "/api/timer/rudolph", "", cookies)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "봇을 초대")
}

func TestArmTimerSchedulesWithKindDuration(t *testing.T) {
	ts := newTestServer(t)
	cookies := ts.login(t, "u1")
	ts.markDeliveryReady(t, "u1")

	before := time.Now().UTC()
	w := ts.do(http.MethodPost, "/api/timer/rudolph", "", cookies)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "타이머 갱신")

	timers, err := ts.api.Timers.GetAll(context.Background(), "u1")
	require.NoError(t, err)
	got, ok := timers[models.KindRudolph]
	require.True(t, ok)
	assert.Equal(t, models.TimerStatusScheduled, got.Status)
	assert.WithinDuration(t, before.Add(3*time.Hour), got.DueAt, 5*time.Second)
}

func TestArmTimerOverwritesPreviousArm(t *testing.T) {
	ts := newTestServer(t)
	cookies := ts.login(t, "u1")
	ts.markDeliveryReady(t, "u1")

	require.Equal(t, http.StatusOK, ts.do(http.MethodPost, "/api/timer/bandage", "", cookies).Code)
	require.Equal(t, http.StatusOK, ts.do(http.MethodPost, "/api/timer/bandage", "", cookies).Code)

	var count int64
	require.NoError(t, ts.db.Model(&models.Timer{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestCancelTimer(t *testing.T) {
	ts := newTestServer(t)
	cookies := ts.login(t, "u1")
	ts.markDeliveryReady(t, "u1")

	require.Equal(t, http.StatusOK, ts.do(http.MethodPost, "/api/timer/bandage", "", cookies).Code)

	w := ts.do(http.MethodPost, "/api/timer/bandage/cancel", "", cookies)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "중지")

	timers, err := ts.api.Timers.GetAll(context.Background(), "u1")
	require.NoError(t, err)
	got := timers[models.KindBandage]
	assert.Equal(t, models.TimerStatusCanceled, got.Status)
	assert.Equal(t, "user_canceled", got.FailReason)
}

func TestSetTimezoneValidation(t *testing.T) {
	ts := newTestServer(t)
	cookies := ts.login(t, "u1")

	tests := []struct {
		name string
		body string
		want int
	}{
		{"valid zone", `{"tz":"Europe/Berlin"}`, http.StatusOK},
		{"empty", `{"tz":""}`, http.StatusBadRequest},
		{"no region separator", `{"tz":"Berlin"}`, http.StatusBadRequest},
		{"too long", `{"tz":"` + strings.Repeat("A", 60) + `/City"}`, http.StatusBadRequest},
		{"not json", `tz=x`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.do(http.MethodPost, "/api/tz", tt.body, cookies)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestSetTimezonePersistsToProfile(t *testing.T) {
	ts := newTestServer(t)
	cookies := ts.login(t, "u1")

	w := ts.do(http.MethodPost, "/api/tz", `{"tz":"America/New_York"}`, cookies)
	require.Equal(t, http.StatusOK, w.Code)

	tz, err := ts.api.Profiles.GetTimezone(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "America/New_York", tz)
}

func TestTestSendRecordsSuccess(t *testing.T) {
	ts := newTestServer(t)
	cookies := ts.login(t, "u1")

	w := ts.do(http.MethodPost, "/api/test-send", "", cookies)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, ts.notifier.sent, 1)

	ready, err := ts.api.Profiles.IsDeliveryReady(context.Background(), "u1")
	require.NoError(t, err)
	assert.True(t, ready)
}

func TestTestSendRecordsRejection(t *testing.T) {
	ts := newTestServer(t)
	cookies := ts.login(t, "u1")
	ts.notifier.err = &discord.StatusError{StatusCode: 403, Body: "Cannot send messages to this user"}

	w := ts.do(http.MethodPost, "/api/test-send", "", cookies)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	profile, err := ts.api.Profiles.Get(context.Background(), "u1")
	require.NoError(t, err)
	require.NotNil(t, profile)
	assert.Equal(t, models.DMStatusFail, profile.DMStatus)
	assert.Equal(t, "403 Cannot send messages to this user", profile.DMLastError)
}

func TestBannerLoggedOut(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodGet, "/api/banner", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, false, body["logged_in"])
	assert.Equal(t, false, body["show_banner"])
}

func TestBannerHidesOnceDeliveryReady(t *testing.T) {
	ts := newTestServer(t)
	cookies := ts.login(t, "u1")

	w := ts.do(http.MethodGet, "/api/banner", "", cookies)
	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, true, body["show_banner"])

	ts.markDeliveryReady(t, "u1")
	w = ts.do(http.MethodGet, "/api/banner", "", cookies)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, false, body["show_banner"])
	assert.Equal(t, true, body["dm_ready"])
}

func TestStatusJSON(t *testing.T) {
	ts := newTestServer(t)
	cookies := ts.login(t, "u1")
	ts.markDeliveryReady(t, "u1")

	require.Equal(t, http.StatusOK, ts.do(http.MethodPost, "/api/timer/rudolph", "", cookies).Code)

	w := ts.do(http.MethodGet, "/api/status.json", "", cookies)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		TZ     string `json:"tz"`
		Timers map[string]*struct {
			Status     string `json:"status"`
			DueAtLocal string `json:"due_at_local"`
		} `json:"timers"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))

	assert.Equal(t, "Asia/Seoul", body.TZ)
	require.Contains(t, body.Timers, models.KindRudolph)
	require.NotNil(t, body.Timers[models.KindRudolph])
	assert.Equal(t, models.TimerStatusScheduled, body.Timers[models.KindRudolph].Status)
	assert.NotEmpty(t, body.Timers[models.KindRudolph].DueAtLocal)
	assert.Nil(t, body.Timers[models.KindBandage], "never-armed kind renders as null")
}

func TestAckInvite(t *testing.T) {
	ts := newTestServer(t)
	cookies := ts.login(t, "u1")

	assert.Equal(t, http.StatusOK, ts.do(http.MethodPost, "/api/ack/invite", "", cookies).Code)
	assert.Equal(t, http.StatusBadRequest, ts.do(http.MethodPost, "/api/ack/other", "", cookies).Code)
}

func TestOutRedirects(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodGet, "/out/invite", "", nil)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Contains(t, w.Header().Get("Location"), "client_id=client-id")

	w = ts.do(http.MethodGet, "/out/public", "", nil)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "https://discord.gg/test", w.Header().Get("Location"))
}

func TestOutPublicFallsBackHome(t *testing.T) {
	ts := newTestServer(t)
	ts.api.Cfg.PublicServerInvite = ""

	w := ts.do(http.MethodGet, "/out/public", "", nil)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))
}

func TestHomePage(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodGet, "/", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "디스코드로 로그인")

	cookies := ts.login(t, "u1")
	w = ts.do(http.MethodGet, "/", "", cookies)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "로그아웃")
	assert.Contains(t, w.Body.String(), "봇 초대하기")
}
