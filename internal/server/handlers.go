package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/ksumini/mapleland-2025-christmas-timer/internal/auth"
	"github.com/ksumini/mapleland-2025-christmas-timer/internal/config"
	"github.com/ksumini/mapleland-2025-christmas-timer/internal/discord"
	"github.com/ksumini/mapleland-2025-christmas-timer/internal/models"
	"github.com/ksumini/mapleland-2025-christmas-timer/internal/store"
	"github.com/ksumini/mapleland-2025-christmas-timer/internal/timeutil"
)

// Session keys owned by the web layer.
const (
	sessionKeyTZ            = "tz"
	sessionKeyInviteClicked = "invite_clicked"
)

// API bundles the handlers' collaborators. Everything is injected so tests
// can run against in-memory stores and a fake notifier.
type API struct {
	Timers   *store.TimerStore
	Profiles *store.ProfileStore
	Notifier Notifier
	Cfg      *config.Config
	Log      *slog.Logger
}

// Notifier is the outbound DM dependency; satisfied by *discord.Client.
type Notifier interface {
	SendDirectMessage(ctx context.Context, userID, text string) error
}

// ArmTimer handles POST /api/timer/:kind. Arming is an idempotent overwrite:
// re-arming a running timer just pushes the due time out again.
func (a *API) ArmTimer(c *gin.Context) {
	uid := auth.UserID(c)
	kind := c.Param("kind")
	if !models.ValidKind(kind) {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "unknown timer_type"})
		return
	}

	ready, err := a.Profiles.IsDeliveryReady(c.Request.Context(), uid)
	if err != nil {
		a.Log.Error("delivery readiness check failed", "user_id", uid, "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "internal error"})
		return
	}
	if !ready {
		c.JSON(http.StatusBadRequest, gin.H{
			"detail": "DM 알림을 받으려면 먼저 개인 서버에 봇을 초대하고, '테스트 DM'으로 활성화를 확인해 주세요.",
		})
		return
	}

	tzName := a.sessionTimezone(c, uid)

	due := time.Now().UTC().Add(models.KindDurations[kind])
	if err := a.Timers.Upsert(c.Request.Context(), uid, kind, due); err != nil {
		a.Log.Error("failed to arm timer", "user_id", uid, "timer_type", kind, "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "internal error"})
		return
	}

	c.String(http.StatusOK, "✅ %s 타이머 갱신!\n- 다음 알림: %s (%s)",
		models.KindLabels[kind], timeutil.FormatInZone(due, tzName, a.Cfg.DefaultTZ), tzName)
}

// CancelTimer handles POST /api/timer/:kind/cancel.
func (a *API) CancelTimer(c *gin.Context) {
	uid := auth.UserID(c)
	kind := c.Param("kind")
	if !models.ValidKind(kind) {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "unknown timer_type"})
		return
	}

	if err := a.Timers.Cancel(c.Request.Context(), uid, kind, "user_canceled"); err != nil {
		a.Log.Error("failed to cancel timer", "user_id", uid, "timer_type", kind, "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "internal error"})
		return
	}

	c.String(http.StatusOK, "🛑 %s 타이머를 중지했어요. (삭제됨)", models.KindLabels[kind])
}

// SetTimezone handles POST /api/tz: the browser reports its IANA zone, which
// is kept in the session for the UI and on the profile for poller DMs.
func (a *API) SetTimezone(c *gin.Context) {
	uid := auth.UserID(c)

	var body struct {
		TZ string `json:"tz"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "bad tz"})
		return
	}

	// Format precondition only; an unloadable-but-well-formed zone falls
	// back to the default at render time instead of being rejected here.
	tz := body.TZ
	if tz == "" || len(tz) > 64 || !containsRegionSeparator(tz) {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "bad tz"})
		return
	}

	session := sessions.Default(c)
	prev, _ := session.Get(sessionKeyTZ).(string)
	if prev == "" {
		stored, err := a.Profiles.GetTimezone(c.Request.Context(), uid)
		if err == nil {
			prev = stored
		}
	}

	session.Set(sessionKeyTZ, tz)
	_ = session.Save()

	if tz != prev {
		if err := a.Profiles.SetTimezone(c.Request.Context(), uid, tz); err != nil {
			a.Log.Error("failed to store timezone", "user_id", uid, "error", err.Error())
			c.JSON(http.StatusInternalServerError, gin.H{"detail": "internal error"})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "tz": tz})
}

// TestSend handles POST /api/test-send: a user-triggered delivery probe that
// records the outcome exactly like the poller would.
func (a *API) TestSend(c *gin.Context) {
	uid := auth.UserID(c)

	err := a.Notifier.SendDirectMessage(c.Request.Context(), uid, "✅ 테스트 DM: 테스트 메시지가 정상적으로 도착했어요!")
	if err == nil {
		if rerr := a.Profiles.RecordDeliveryResult(c.Request.Context(), uid, true, ""); rerr != nil {
			a.Log.Error("failed to record delivery success", "user_id", uid, "error", rerr.Error())
		}
		c.String(http.StatusOK, "✅ 테스트 DM을 보냈어요! (Discord DM 확인)")
		return
	}

	var statusErr *discord.StatusError
	if errors.As(err, &statusErr) {
		errTxt := fmt.Sprintf("%d %s", statusErr.StatusCode, statusErr.Body)
		if rerr := a.Profiles.RecordDeliveryResult(c.Request.Context(), uid, false, errTxt); rerr != nil {
			a.Log.Error("failed to record delivery failure", "user_id", uid, "error", rerr.Error())
		}
		c.String(http.StatusBadRequest, "→ 개인 서버에 봇을 초대했는지 확인하고, 디스코드에서 서버/DM 설정을 확인해 주세요.")
		return
	}

	if rerr := a.Profiles.RecordDeliveryResult(c.Request.Context(), uid, false, err.Error()); rerr != nil {
		a.Log.Error("failed to record delivery failure", "user_id", uid, "error", rerr.Error())
	}
	c.String(http.StatusBadRequest, "❌ DM 전송 실패: %s", err.Error())
}

// DMHealth handles GET /api/dm/health.
func (a *API) DMHealth(c *gin.Context) {
	uid := auth.UserID(c)

	profile, err := a.Profiles.Get(c.Request.Context(), uid)
	if err != nil {
		a.Log.Error("failed to load profile", "user_id", uid, "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "internal error"})
		return
	}
	if profile == nil {
		c.JSON(http.StatusOK, gin.H{
			"discord_user_id": uid,
			"dm_status":       models.DMStatusUnknown,
			"dm_last_error":   nil,
		})
		return
	}
	c.JSON(http.StatusOK, profile)
}

// timerView is the status.json rendering of one timer row.
type timerView struct {
	Kind           string  `json:"timer_type"`
	Status         string  `json:"status"`
	LastSetAt      string  `json:"last_set_at"`
	DueAt          string  `json:"due_at"`
	LastSetAtLocal string  `json:"last_set_at_local"`
	DueAtLocal     string  `json:"due_at_local"`
	FailReason     *string `json:"fail_reason,omitempty"`
}

// StatusJSON handles GET /api/status.json: both timers plus server time,
// all rendered in the user's zone alongside the raw UTC instants.
func (a *API) StatusJSON(c *gin.Context) {
	uid := auth.UserID(c)
	tzName := a.sessionTimezone(c, uid)

	timers, err := a.Timers.GetAll(c.Request.Context(), uid)
	if err != nil {
		a.Log.Error("failed to load timers", "user_id", uid, "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "internal error"})
		return
	}

	view := func(kind string) *timerView {
		t, ok := timers[kind]
		if !ok {
			return nil
		}
		v := &timerView{
			Kind:           t.Kind,
			Status:         t.Status,
			LastSetAt:      t.LastSetAt.UTC().Format(time.RFC3339),
			DueAt:          t.DueAt.UTC().Format(time.RFC3339),
			LastSetAtLocal: timeutil.FormatInZone(t.LastSetAt, tzName, a.Cfg.DefaultTZ),
			DueAtLocal:     timeutil.FormatInZone(t.DueAt, tzName, a.Cfg.DefaultTZ),
		}
		if t.FailReason != "" {
			v.FailReason = &t.FailReason
		}
		return v
	}

	now := time.Now().UTC()
	c.JSON(http.StatusOK, gin.H{
		"server_now":       now.Format(time.RFC3339),
		"server_now_local": timeutil.FormatInZone(now, tzName, a.Cfg.DefaultTZ),
		"tz":               tzName,
		"timers": gin.H{
			models.KindRudolph: view(models.KindRudolph),
			models.KindBandage: view(models.KindBandage),
		},
	})
}

// AckInvite handles POST /api/ack/:kind. Only the invite banner is
// acknowledgeable.
func (a *API) AckInvite(c *gin.Context) {
	if c.Param("kind") != "invite" {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "bad kind"})
		return
	}
	session := sessions.Default(c)
	session.Set(sessionKeyInviteClicked, true)
	_ = session.Save()
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Banner handles GET /api/banner, which works logged-out.
func (a *API) Banner(c *gin.Context) {
	session := sessions.Default(c)
	uid, _ := session.Get(auth.SessionKeyUserID).(string)
	if uid == "" {
		c.JSON(http.StatusOK, gin.H{"logged_in": false, "show_banner": false})
		return
	}

	ready, err := a.Profiles.IsDeliveryReady(c.Request.Context(), uid)
	if err != nil {
		a.Log.Error("delivery readiness check failed", "user_id", uid, "error", err.Error())
		ready = false
	}
	c.JSON(http.StatusOK, gin.H{
		"logged_in":   true,
		"dm_ready":    ready,
		"show_banner": !ready,
	})
}

// OutInvite handles GET /out/invite (opened in a new tab).
func (a *API) OutInvite(c *gin.Context) {
	c.Redirect(http.StatusFound, discord.BotInviteURL(a.Cfg.DiscordClientID))
}

// OutPublic handles GET /out/public: the fallback "join the public server"
// path for users without a server of their own.
func (a *API) OutPublic(c *gin.Context) {
	if a.Cfg.PublicServerInvite == "" {
		c.Redirect(http.StatusFound, "/")
		return
	}
	c.Redirect(http.StatusFound, a.Cfg.PublicServerInvite)
}

// sessionTimezone resolves the user's zone: session first, then profile
// (caching the result back in the session), then the configured default.
func (a *API) sessionTimezone(c *gin.Context, uid string) string {
	session := sessions.Default(c)
	if tz, ok := session.Get(sessionKeyTZ).(string); ok && tz != "" {
		return tz
	}

	tz, err := a.Profiles.GetTimezone(c.Request.Context(), uid)
	if err != nil || tz == "" {
		tz = a.Cfg.DefaultTZ
	}
	session.Set(sessionKeyTZ, tz)
	_ = session.Save()
	return tz
}

// containsRegionSeparator checks the "Region/City" shape of IANA zone names.
func containsRegionSeparator(tz string) bool {
	for _, r := range tz {
		if r == '/' {
			return true
		}
	}
	return false
}
