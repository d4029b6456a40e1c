package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"campusevents/pkg/config"
)

const defaultBaseURL = "https://api.resend.com"

// ResendClient sends mail through the Resend REST API.
type ResendClient struct {
	apiKey     string
	from       string
	baseURL    string
	httpClient *http.Client
}

func NewResendClient(cfg config.MailConfig) *ResendClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &ResendClient{
		apiKey:  cfg.APIKey,
		from:    cfg.From,
		baseURL: baseURL,
		// No client-level timeout: the caller owns the budget via ctx.
		httpClient: &http.Client{},
	}
}

type sendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

// Send posts one email. A non-2xx response is a provider error; ctx expiry
// surfaces as a timeout error from the HTTP client.
func (c *ResendClient) Send(ctx context.Context, to, subject, html string) error {
	if c.apiKey == "" {
		return ErrUnconfigured
	}

	body, err := json.Marshal(sendRequest{
		From:    c.from,
		To:      []string{to},
		Subject: subject,
		HTML:    html,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/emails", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("mail provider returned %d: %s", resp.StatusCode, detail)
	}
	return nil
}
