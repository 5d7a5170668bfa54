package discord

import "net/url"

const authorizeURL = "https://discord.com/oauth2/authorize"

// BotInviteURL builds the link users follow to invite the bot into a server.
// permissions=0 because DM delivery needs no guild permissions at all.
func BotInviteURL(clientID string) string {
	params := url.Values{}
	params.Set("client_id", clientID)
	params.Set("scope", "bot")
	params.Set("permissions", "0")
	return authorizeURL + "?" + params.Encode()
}
