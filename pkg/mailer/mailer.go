package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"ticketsplit/pkg/config"
)

const sendgridURL = "https://api.sendgrid.com/v3/mail/send"

// Sender delivers transactional email. Delivery is best-effort; callers fire
// notifications in the background and only log failures.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Client is a minimal SendGrid v3 mail client.
type Client struct {
	apiKey      string
	fromAddress string
	fromName    string
	httpClient  *http.Client
	url         string
}

// New creates a mail client from configuration.
func New(cfg *config.MailConfig) *Client {
	return &Client{
		apiKey:      cfg.APIKey,
		fromAddress: cfg.FromAddress,
		fromName:    cfg.FromName,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		url:         sendgridURL,
	}
}

// NewWithURL creates a mail client that posts to the given endpoint instead of
// the SendGrid API.
func NewWithURL(cfg *config.MailConfig, url string) *Client {
	c := New(cfg)
	c.url = url
	return c
}

type address struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type personalization struct {
	To []address `json:"to"`
}

type content struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type sendRequest struct {
	Personalizations []personalization `json:"personalizations"`
	From             address           `json:"from"`
	Subject          string            `json:"subject"`
	Content          []content         `json:"content"`
}

// Send posts a plain-text message to the mail API.
func (c *Client) Send(ctx context.Context, to, subject, body string) error {
	payload := sendRequest{
		Personalizations: []personalization{{To: []address{{Email: to}}}},
		From:             address{Email: c.fromAddress, Name: c.fromName},
		Subject:          subject,
		Content:          []content{{Type: "text/plain", Value: body}},
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("mail API returned %d: %s", resp.StatusCode, respBody)
	}

	return nil
}
