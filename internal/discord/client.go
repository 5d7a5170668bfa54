// Package discord provides the bot-authenticated Discord REST client used
// for direct-message delivery, plus OAuth/invite URL helpers.
package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultAPIBase is the production Discord REST endpoint.
const DefaultAPIBase = "https://discord.com/api"

// StatusError is returned when Discord rejects a request with a non-2xx
// status. The body is kept verbatim; callers truncate before persisting.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("discord api returned status %d: %s", e.StatusCode, e.Body)
}

// Client sends direct messages through the Discord REST API using a bot
// token. It performs no retries; retry policy belongs to the caller.
type Client struct {
	baseURL    string
	botToken   string
	httpClient *http.Client
}

// NewClient creates a Discord client. baseURL is normally DefaultAPIBase;
// tests point it at a local server.
func NewClient(baseURL, botToken string) *Client {
	return &Client{
		baseURL:    baseURL,
		botToken:   botToken,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// SendDirectMessage delivers text to the user as a DM:
//  1. create-or-fetch the user's DM channel
//  2. post the message to that channel
//
// A *StatusError surfaces Discord-side rejections (e.g. 403 when the user
// blocks DMs); any other error is a transport-level failure.
func (c *Client) SendDirectMessage(ctx context.Context, userID, text string) error {
	var channel struct {
		ID string `json:"id"`
	}
	err := c.post(ctx, "/users/@me/channels", map[string]string{"recipient_id": userID}, &channel)
	if err != nil {
		return fmt.Errorf("create dm channel: %w", err)
	}

	err = c.post(ctx, "/channels/"+channel.ID+"/messages", map[string]string{"content": text}, nil)
	if err != nil {
		return fmt.Errorf("post dm message: %w", err)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, payload interface{}, out interface{}) error {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+path, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bot "+c.botToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(resp.Body)
		return &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
