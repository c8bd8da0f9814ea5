// Package webhook calls the n8n automation webhooks that act on a client's
// WhatsApp conversation.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	pathSendMessage = "envia_mensagem"
	pathPauseBot    = "pausa_bot"
	pathStartBot    = "inicia_bot"

	defaultTimeout = 30 * time.Second
	maxErrorBody   = 1024
)

// Client is a client for the n8n webhooks.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new webhook client. A zero timeout uses 30 seconds.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// StatusError is returned when a webhook answers with a non-2xx status.
type StatusError struct {
	Webhook    string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("webhook %s: unexpected status %d: %s", e.Webhook, e.StatusCode, e.Body)
}

// SendMessageRequest is the body of envia_mensagem.
type SendMessageRequest struct {
	Message     string `json:"message"`
	PhoneNumber string `json:"phoneNumber"`
}

// PauseBotRequest is the body of pausa_bot. A nil Duration leaves the pause open ended.
type PauseBotRequest struct {
	PhoneNumber string `json:"phoneNumber"`
	Duration    *int64 `json:"duration"`
	Unit        string `json:"unit"`
}

// StartBotRequest is the body of inicia_bot.
type StartBotRequest struct {
	PhoneNumber string `json:"phoneNumber"`
}

// SendMessage delivers text to the client's phone through the bot number.
func (c *Client) SendMessage(ctx context.Context, phone, text string) error {
	return c.post(ctx, pathSendMessage, SendMessageRequest{Message: text, PhoneNumber: phone})
}

// PauseBot stops automated replies for phone. The duration is sent in whole seconds.
func (c *Client) PauseBot(ctx context.Context, phone string, duration *time.Duration) error {
	req := PauseBotRequest{PhoneNumber: phone, Unit: "seconds"}
	if duration != nil {
		secs := int64(duration.Seconds())
		req.Duration = &secs
	}
	return c.post(ctx, pathPauseBot, req)
}

// StartBot resumes automated replies for phone.
func (c *Client) StartBot(ctx context.Context, phone string) error {
	return c.post(ctx, pathStartBot, StartBotRequest{PhoneNumber: phone})
}

func (c *Client) post(ctx context.Context, path string, payload any) error {
	url := fmt.Sprintf("%s/%s", c.baseURL, path)

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Webhook: path, StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
