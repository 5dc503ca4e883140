package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// PaymentClient opens checkout sessions with the payment gateway. The
// timeout on the embedded http.Client is the only termination mechanism
// for the call; nothing here is cancellable mid-flight beyond it.
type PaymentClient struct {
	gatewayURL string
	httpClient *http.Client
}

type PaymentConfig struct {
	// GatewayURL empty means no PSP is wired yet: sessions resolve to a
	// structured placeholder checkout URL.
	GatewayURL string
	Timeout    time.Duration
}

// SessionRequest describes the checkout session to open.
type SessionRequest struct {
	Provider    string `json:"provider"`
	Reference   string `json:"reference"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	Description string `json:"description,omitempty"`
	CallbackURL string `json:"callback_url"`
}

// SessionResponse is what the gateway (or the placeholder) hands back.
type SessionResponse struct {
	RedirectURL string `json:"redirect_url"`
	Status      string `json:"status"`
}

func NewPaymentClient(cfg PaymentConfig) *PaymentClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &PaymentClient{
		gatewayURL: cfg.GatewayURL,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// CreateSession asks the gateway for a hosted checkout page.
func (pc *PaymentClient) CreateSession(ctx context.Context, req SessionRequest) (*SessionResponse, error) {
	if pc.gatewayURL == "" {
		return &SessionResponse{
			RedirectURL: fmt.Sprintf("https://%s.example/checkout/%s", req.Provider, req.Reference),
			Status:      "INITIATED",
		}, nil
	}

	jsonBody, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal session request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		pc.gatewayURL+"/api/v1/sessions", bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to build session request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := pc.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to create payment session: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("payment gateway returned status %d", resp.StatusCode)
	}

	var result SessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode session response: %w", err)
	}
	return &result, nil
}
