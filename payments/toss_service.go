package payments

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultTossBaseURL = "https://api.tosspayments.com"
	confirmPath        = "/v1/payments/confirm"

	genericFailureMessage = "payment confirmation failed"
)

var errUnusableApproval = errors.New("approval payload is missing fields or names another order")

type ConfirmRequest struct {
	PaymentKey string `json:"paymentKey"`
	OrderID    string `json:"orderId"`
	Amount     int64  `json:"amount"`
}

// GatewayData is the approval payload returned by the gateway. Raw holds the
// response body exactly as received.
type GatewayData struct {
	OrderID     string `json:"orderId"`
	PaymentKey  string `json:"paymentKey"`
	Method      string `json:"method"`
	Status      string `json:"status"`
	TotalAmount int64  `json:"totalAmount"`
	ApprovedAt  string `json:"approvedAt"`

	Raw json.RawMessage `json:"-"`
}

type GatewayError struct {
	StatusCode int
	Code       string
	Message    string
	Err        error
}

func (e *GatewayError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("payment gateway: %s (%s)", e.Message, e.Code)
	}
	return "payment gateway: " + e.Message
}

func (e *GatewayError) Unwrap() error { return e.Err }

type TossClient struct {
	baseURL    string
	secretKey  string
	httpClient *http.Client
}

func NewTossClient(baseURL, secretKey string, timeout time.Duration) *TossClient {
	if baseURL == "" {
		baseURL = DefaultTossBaseURL
	}
	return &TossClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		secretKey:  secretKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Confirm asks the gateway to approve a charge the client has already
// authorized. It never retries.
func (c *TossClient) Confirm(ctx context.Context, req ConfirmRequest) (*GatewayData, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal confirm payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+confirmPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create confirm request: %w", err)
	}
	httpReq.Header.Set("Authorization", c.authorization())
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &GatewayError{Message: genericFailureMessage, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &GatewayError{StatusCode: resp.StatusCode, Message: genericFailureMessage, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, decodeGatewayError(resp.StatusCode, respBody)
	}

	var data GatewayData
	if err := json.Unmarshal(respBody, &data); err != nil {
		return nil, &GatewayError{StatusCode: resp.StatusCode, Message: genericFailureMessage, Err: err}
	}
	if !data.approves(req) {
		return nil, &GatewayError{StatusCode: resp.StatusCode, Message: genericFailureMessage, Err: errUnusableApproval}
	}
	data.Raw = json.RawMessage(respBody)

	return &data, nil
}

func (d *GatewayData) approves(req ConfirmRequest) bool {
	return d.OrderID != "" && d.PaymentKey != "" && d.ApprovedAt != "" && d.OrderID == req.OrderID
}

// authorization builds the Basic credential from the secret key with an
// empty password.
func (c *TossClient) authorization() string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(c.secretKey+":"))
}

func decodeGatewayError(status int, body []byte) *GatewayError {
	gwErr := &GatewayError{StatusCode: status, Message: genericFailureMessage}

	var payload struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		gwErr.Code = payload.Code
		if payload.Message != "" {
			gwErr.Message = payload.Message
		}
	}
	return gwErr
}
