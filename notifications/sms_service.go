package notifications

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

const brevoBaseURL = "https://api.brevo.com"

type SMSSender interface {
	SendSMS(ctx context.Context, phone, content string) error
}

type BrevoSMSService struct {
	APIKey  string
	Sender  string
	BaseURL string

	client *http.Client
}

type brevoSMSPayload struct {
	Sender    string `json:"sender"`
	Recipient string `json:"recipient"`
	Content   string `json:"content"`
	Type      string `json:"type"`
}

func NewBrevoSMSService(apiKey, sender string) *BrevoSMSService {
	return &BrevoSMSService{
		APIKey:  apiKey,
		Sender:  sender,
		BaseURL: brevoBaseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *BrevoSMSService) SendSMS(ctx context.Context, phone, content string) error {
	payload := brevoSMSPayload{
		Sender:    s.Sender,
		Recipient: phone,
		Content:   content,
		Type:      "transactional",
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.BaseURL+"/v3/transactionalSMS/sms", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("accept", "application/json")
	req.Header.Set("api-key", s.APIKey)
	req.Header.Set("content-type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("failed to send SMS via Brevo: status %d: %s", resp.StatusCode, string(respBody))
	}

	slog.InfoContext(ctx, "✅ SMS sent", "recipient", maskPhone(phone))
	return nil
}

// LogSMSSender writes messages to the log instead of delivering them. Used
// when no SMS API key is configured.
type LogSMSSender struct{}

func (LogSMSSender) SendSMS(ctx context.Context, phone, content string) error {
	slog.WarnContext(ctx, "SMS service not configured, logging message instead", "recipient", maskPhone(phone), "content", content)
	return nil
}

func maskPhone(phone string) string {
	if len(phone) <= 4 {
		return "****"
	}
	return phone[:len(phone)-4] + "****"
}
