// Package line talks to the LINE platform: access-token verification,
// profile lookup and push messaging.
package line

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/apex/log"

	"road-report-service/config"
)

// ErrAuthentication is the single opaque error returned for any identity
// resolution failure. Provider details are logged, never surfaced.
var ErrAuthentication = errors.New("user authentication failed")

// Client is a LINE platform API client.
type Client struct {
	channelAccessToken string
	loginChannelID     string
	verifyURL          string
	profileURL         string
	pushURL            string
	httpClient         *http.Client
}

// NewClient creates a LINE client from service configuration.
func NewClient(cfg *config.Config) *Client {
	return &Client{
		channelAccessToken: cfg.LineChannelAccessToken,
		loginChannelID:     cfg.LineLoginChannelID,
		verifyURL:          cfg.LineVerifyURL,
		profileURL:         cfg.LineProfileURL,
		pushURL:            cfg.LinePushURL,
		httpClient:         &http.Client{Timeout: 10 * time.Second},
	}
}

// PushConfigured reports whether a messaging channel token is present.
func (c *Client) PushConfigured() bool {
	return c.channelAccessToken != ""
}

// ResolveUserID exchanges a LIFF access token for a verified LINE user ID.
// The token is first verified against the configured login channel, then the
// profile endpoint is called with it. Both calls must succeed; any failure
// collapses to ErrAuthentication.
func (c *Client) ResolveUserID(ctx context.Context, accessToken string) (string, error) {
	verifyURL := c.verifyURL + "?access_token=" + url.QueryEscape(accessToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, verifyURL, nil)
	if err != nil {
		log.Errorf("Failed to build token verify request: %v", err)
		return "", ErrAuthentication
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Errorf("Token verify call failed: %v", err)
		return "", ErrAuthentication
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		log.Errorf("Token verify returned %d: %s", resp.StatusCode, string(body))
		return "", ErrAuthentication
	}

	var verify struct {
		ClientID string `json:"client_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&verify); err != nil {
		log.Errorf("Failed to decode token verify response: %v", err)
		return "", ErrAuthentication
	}
	if verify.ClientID != c.loginChannelID {
		log.Errorf("Channel ID mismatch: token belongs to %s", verify.ClientID)
		return "", ErrAuthentication
	}

	req, err = http.NewRequestWithContext(ctx, http.MethodGet, c.profileURL, nil)
	if err != nil {
		log.Errorf("Failed to build profile request: %v", err)
		return "", ErrAuthentication
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err = c.httpClient.Do(req)
	if err != nil {
		log.Errorf("Profile call failed: %v", err)
		return "", ErrAuthentication
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		log.Errorf("Profile call returned %d: %s", resp.StatusCode, string(body))
		return "", ErrAuthentication
	}

	var profile struct {
		UserID      string `json:"userId"`
		DisplayName string `json:"displayName"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		log.Errorf("Failed to decode profile response: %v", err)
		return "", ErrAuthentication
	}
	if profile.UserID == "" {
		log.Errorf("Profile response carries no user ID")
		return "", ErrAuthentication
	}

	return profile.UserID, nil
}

// PushMessages delivers a message batch to one user via the Messaging API.
// Order within the batch is preserved by the API.
func (c *Client) PushMessages(ctx context.Context, to string, messages []Message) error {
	payload := struct {
		To       string    `json:"to"`
		Messages []Message `json:"messages"`
	}{To: to, Messages: messages}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal push payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.pushURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.channelAccessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("push call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("push call returned %d: %s", resp.StatusCode, string(respBody))
	}

	return nil
}
