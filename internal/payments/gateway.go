package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jamii-coop/jamii-coop/internal/shared"
)

// GatewayRequest carries the fields the mobile-money gateway expects.
type GatewayRequest struct {
	TransactionID string
	Amount        int64
	CallbackURL   string
	SuccessURL    string
}

// GatewayResponse is the gateway's immediate acknowledgement. Raw keeps the
// provider body so handlers can pass it through unchanged.
type GatewayResponse struct {
	Accepted bool
	Raw      json.RawMessage
}

// Gateway initiates a payment with the external provider.
type Gateway interface {
	Initiate(ctx context.Context, req GatewayRequest) (*GatewayResponse, error)
}

// GatewayClient is the HTTP implementation of Gateway. The provider accepts
// form-encoded requests and later invokes the callback URL on settlement.
type GatewayClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewGatewayClient constructs a gateway client.
func NewGatewayClient(baseURL, apiKey string) *GatewayClient {
	return &GatewayClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Initiate forwards the payment request. The transaction id rides along as
// clientOrderId so the settlement callback correlates back to our row.
func (c *GatewayClient) Initiate(ctx context.Context, greq GatewayRequest) (*GatewayResponse, error) {
	form := url.Values{}
	form.Set("clientOrderId", greq.TransactionID)
	form.Set("amount", strconv.FormatInt(greq.Amount, 10))
	form.Set("api_key", c.apiKey)
	form.Set("callback", greq.CallbackURL)
	form.Set("success_url", greq.SuccessURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway call: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, &shared.ProviderError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return &GatewayResponse{Accepted: true, Raw: body}, nil
}
