package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sudo-init-do/greenvault/internal/config"
)

const defaultPlunkURL = "https://api.useplunk.com/v1/send"

// PlunkSender delivers mail through the Plunk HTTP API.
type PlunkSender struct {
	apiKey  string
	from    string
	replyTo string
	apiURL  string
	client  *http.Client
}

func NewPlunkSender(cfg config.MailConfig) (*PlunkSender, error) {
	if cfg.PlunkAPIKey == "" {
		return nil, fmt.Errorf("plunk not configured: set PLUNK_API_KEY")
	}
	url := cfg.PlunkAPIURL
	if url == "" {
		url = defaultPlunkURL
	}
	return &PlunkSender{
		apiKey:  cfg.PlunkAPIKey,
		from:    cfg.PlunkFrom,
		replyTo: cfg.ReplyTo,
		apiURL:  url,
		client:  &http.Client{Timeout: 10 * time.Second},
	}, nil
}

type plunkSendBody struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
	From    string `json:"from,omitempty"`
	Reply   string `json:"reply,omitempty"`
}

func (p *PlunkSender) Send(ctx context.Context, to, subject, body string) error {
	payload := plunkSendBody{
		To:      to,
		Subject: subject,
		Body:    body,
		From:    p.from,
		Reply:   p.replyTo,
	}
	b, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if len(raw) > 0 {
			return fmt.Errorf("plunk send failed: status=%d body=%s", resp.StatusCode, raw)
		}
		return fmt.Errorf("plunk send failed: status=%d", resp.StatusCode)
	}
	return nil
}
