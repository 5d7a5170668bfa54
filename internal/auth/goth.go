package auth

import (
	"log"
	"net/http"

	"github.com/gorilla/sessions"
	"github.com/ksumini/mapleland-2025-christmas-timer/internal/config"
	"github.com/markbates/goth"
	"github.com/markbates/goth/gothic"
	"github.com/markbates/goth/providers/discord"
)

// InitProviders initializes Goth OAuth providers
func InitProviders(cfg *config.Config) {
	// Configure Gothic's session store to match our app session settings.
	// Gothic uses its own gorilla/sessions store separate from gin-contrib/sessions.
	// The default has Secure=true which breaks localhost (plain HTTP).
	gothStore := sessions.NewCookieStore([]byte(cfg.SessionSecret))
	gothStore.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 30,
		HttpOnly: true,
		Secure:   cfg.Env == "production",
		SameSite: http.SameSiteLaxMode,
	}
	gothic.Store = gothStore

	if cfg.DiscordClientID == "" {
		log.Println("WARNING: DISCORD_CLIENT_ID not set. OAuth login will not work until credentials are configured.")
		log.Println("See: Discord Developer Portal -> Applications -> OAuth2")
		return
	}

	// identify is the only scope needed: the callback reads the user id and
	// discards the token.
	goth.UseProviders(
		discord.New(
			cfg.DiscordClientID,
			cfg.DiscordClientSecret,
			cfg.CallbackURL(),
			discord.ScopeIdentify,
		),
	)

	log.Println("Goth providers initialized: discord")
}
