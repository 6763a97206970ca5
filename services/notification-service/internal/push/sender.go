package push

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"
)

type Sender interface {
	Send(ctx context.Context, recipient, title, body string, data map[string]any) error
	ProviderID() string
}

// WebPushSender delivers through a OneSignal-compatible REST endpoint.
// The recipient is used as the external user id.
type WebPushSender struct {
	url    string
	appID  string
	apiKey string
	http   *http.Client
}

func NewWebPushSender(url, appID, apiKey string) *WebPushSender {
	return &WebPushSender{
		url:    strings.TrimSpace(url),
		appID:  strings.TrimSpace(appID),
		apiKey: strings.TrimSpace(apiKey),
		http: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

func (s *WebPushSender) ProviderID() string {
	return "web-push"
}

func (s *WebPushSender) Send(ctx context.Context, recipient, title, body string, data map[string]any) error {
	if s.url == "" || s.appID == "" {
		return errors.New("push endpoint not configured")
	}
	payload := map[string]any{
		"app_id":                    s.appID,
		"include_external_user_ids": []string{recipient},
		"headings":                  map[string]string{"en": title},
		"contents":                  map[string]string{"en": body},
		"data":                      data,
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Basic "+s.apiKey)
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.New("push endpoint returned non-2xx")
	}
	return nil
}

type NoopSender struct{}

func NewNoopSender() *NoopSender {
	return &NoopSender{}
}

func (s *NoopSender) ProviderID() string {
	return "push-noop"
}

func (s *NoopSender) Send(_ context.Context, _, _, _ string, _ map[string]any) error {
	return nil
}
