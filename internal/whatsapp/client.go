// Package whatsapp wraps the Cloud API surface the service uses: outbound
// text messages, inbound webhook payload decoding and webhook verification.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const defaultBaseURL = "https://graph.facebook.com/v18.0"

// Client sends messages through the WhatsApp Cloud API.
type Client struct {
	httpClient    *http.Client
	baseURL       string
	accessToken   string
	phoneNumberID string
	logger        *slog.Logger
}

func NewClient(accessToken, phoneNumberID string, logger *slog.Logger) *Client {
	return &Client{
		httpClient:    &http.Client{Timeout: 10 * time.Second},
		baseURL:       defaultBaseURL,
		accessToken:   accessToken,
		phoneNumberID: phoneNumberID,
		logger:        logger,
	}
}

type textPayload struct {
	MessagingProduct string `json:"messaging_product"`
	To               string `json:"to"`
	Text             struct {
		Body string `json:"body"`
	} `json:"text"`
}

// SendText delivers one plain text message to a phone number.
func (c *Client) SendText(ctx context.Context, to, body string) error {
	payload := textPayload{MessagingProduct: "whatsapp", To: to}
	payload.Text.Body = body

	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages", c.baseURL, c.phoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("send message: status %d: %s", resp.StatusCode, detail)
	}

	c.logger.InfoContext(ctx, "whatsapp message sent", "to", to, "status", resp.StatusCode)
	return nil
}

// Notify satisfies the reminder sweep's notifier with a plain text send.
func (c *Client) Notify(ctx context.Context, userID, message string) error {
	return c.SendText(ctx, userID, message)
}

// Payload mirrors the webhook body shape the Cloud API posts for inbound
// events. Only the fields the service reads are declared.
type Payload struct {
	Entry []struct {
		Changes []struct {
			Value struct {
				Messages []struct {
					From string `json:"from"`
					Type string `json:"type"`
					Text struct {
						Body string `json:"body"`
					} `json:"text"`
				} `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

// ExtractMessage pulls the first inbound text message out of a webhook
// payload. Non-text events (status updates, media) report ok=false.
func ExtractMessage(p Payload) (from, body string, ok bool) {
	for _, entry := range p.Entry {
		for _, change := range entry.Changes {
			for _, msg := range change.Value.Messages {
				if msg.Type != "text" {
					continue
				}
				return msg.From, msg.Text.Body, true
			}
		}
	}
	return "", "", false
}

// VerifyToken reports whether a webhook verification request carries the
// expected token.
func VerifyToken(got, want string) bool {
	return want != "" && got == want
}
