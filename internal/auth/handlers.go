package auth

import (
	"log"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/markbates/goth/gothic"
)

// SessionKeyUserID is the session key holding the authenticated Discord
// user id; its presence is the whole login state.
const SessionKeyUserID = "discord_user_id"

// HandleLogin initiates the Discord OAuth flow
func HandleLogin(c *gin.Context) {
	// Gothic requires the "provider" query parameter
	q := c.Request.URL.Query()
	q.Add("provider", "discord")
	c.Request.URL.RawQuery = q.Encode()

	gothic.BeginAuthHandler(c.Writer, c.Request)
}

// HandleCallback completes the OAuth flow and stores the Discord user id in
// the session. The access token is not kept: identify-scope login only
// establishes who the user is, DM delivery runs on the bot token.
func HandleCallback(c *gin.Context) {
	// Gothic requires the "provider" query parameter
	q := c.Request.URL.Query()
	q.Add("provider", "discord")
	c.Request.URL.RawQuery = q.Encode()

	gothUser, err := gothic.CompleteUserAuth(c.Writer, c.Request)
	if err != nil {
		log.Printf("Auth error: %v", err)
		c.Redirect(http.StatusFound, "/?error=auth_failed")
		return
	}

	session := sessions.Default(c)
	session.Set(SessionKeyUserID, gothUser.UserID)

	if err := session.Save(); err != nil {
		log.Printf("Session save error: %v", err)
		c.Redirect(http.StatusFound, "/?error=session_failed")
		return
	}

	log.Printf("User authenticated: %s", gothUser.UserID)
	c.Redirect(http.StatusFound, "/")
}

// HandleLogout clears the session and redirects home
func HandleLogout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()

	if err := session.Save(); err != nil {
		log.Printf("Session clear error: %v", err)
	}

	c.Redirect(http.StatusFound, "/")
}
