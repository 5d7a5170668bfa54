// Package server wires the HTTP surface: OAuth routes, the timer/timezone
// API, and the home page. The poller never depends on this package; invalid
// input is rejected here and never reaches it.
package server

import (
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/ksumini/mapleland-2025-christmas-timer/internal/auth"
	"github.com/ksumini/mapleland-2025-christmas-timer/internal/health"
)

// NewRouter builds the Gin engine with session middleware and all routes.
func NewRouter(api *API) *gin.Engine {
	if api.Cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	store := cookie.NewStore([]byte(api.Cfg.SessionSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 30,
		HttpOnly: true,
		Secure:   api.Cfg.Env == "production",
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions("session", store))

	// Web
	r.GET("/", api.Home)
	r.GET("/logout", auth.HandleLogout)
	r.GET("/health", gin.WrapF(health.Handler))

	// OAuth
	r.GET("/auth/discord/login", auth.HandleLogin)
	r.GET("/auth/discord/callback", auth.HandleCallback)

	// External links (opened in a new tab)
	r.GET("/out/invite", api.OutInvite)
	r.GET("/out/public", api.OutPublic)

	// Session-only endpoints: usable before delivery is set up
	r.GET("/api/banner", api.Banner)
	r.POST("/api/ack/:kind", api.AckInvite)

	authed := r.Group("/api", auth.RequireAuth())
	{
		authed.POST("/timer/:kind", api.ArmTimer)
		authed.POST("/timer/:kind/cancel", api.CancelTimer)
		authed.POST("/tz", api.SetTimezone)
		authed.POST("/test-send", api.TestSend)
		authed.GET("/dm/health", api.DMHealth)
		authed.GET("/status.json", api.StatusJSON)
	}

	return r
}
