package gateway

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"

	"fileharbor/internal/application/billing/providergateway"
	"fileharbor/internal/shared/config"
	"fileharbor/internal/shared/logger"
)

const (
	signatureHeader = "X-Provider-Signature"
	// maxNotificationBody bounds webhook payload reads.
	maxNotificationBody = 1 << 20
)

// HTTPProviderGateway talks to the payment provider's REST API. Calls run
// through a circuit breaker so a degraded provider sheds load quickly instead
// of tying up webhook workers; activation treats gateway failures as
// best-effort anyway.
type HTTPProviderGateway struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[*providergateway.CreateSubscriptionResponse]
	logger     logger.Interface
}

func NewHTTPProviderGateway(cfg *config.ProviderConfig, logger logger.Interface) *HTTPProviderGateway {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	settings := gobreaker.Settings{
		Name:        "provider-gateway",
		MaxRequests: 3,
		Interval:    10 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warnw("provider gateway circuit state changed",
				"name", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	}

	return &HTTPProviderGateway{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		breaker:    gobreaker.NewCircuitBreaker[*providergateway.CreateSubscriptionResponse](settings),
		logger:     logger,
	}
}

func (g *HTTPProviderGateway) CreateSubscription(ctx context.Context, req providergateway.CreateSubscriptionRequest) (*providergateway.CreateSubscriptionResponse, error) {
	return g.breaker.Execute(func() (*providergateway.CreateSubscriptionResponse, error) {
		return g.createSubscription(ctx, req)
	})
}

func (g *HTTPProviderGateway) createSubscription(ctx context.Context, req providergateway.CreateSubscriptionRequest) (*providergateway.CreateSubscriptionResponse, error) {
	payload, err := json.Marshal(map[string]string{
		"authorization_code": req.AuthorizationCode,
		"plan":               req.PlanRef,
		"customer":           req.CustomerRef,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode subscription request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/subscriptions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build subscription request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("provider request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxNotificationBody))
	if err != nil {
		return nil, fmt.Errorf("failed to read provider response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("provider returned status %d: %s", resp.StatusCode, body)
	}

	var decoded struct {
		SubscriptionCode string `json:"subscription_code"`
	}
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("failed to decode provider response: %w", err)
	}
	if decoded.SubscriptionCode == "" {
		return nil, fmt.Errorf("provider response missing subscription code")
	}

	return &providergateway.CreateSubscriptionResponse{
		ProviderSubscriptionID: decoded.SubscriptionCode,
	}, nil
}

// VerifyNotification authenticates a webhook delivery by its HMAC signature
// and decodes the payload. An invalid signature is a hard reject; the caller
// must not process the delivery.
func (g *HTTPProviderGateway) VerifyNotification(req *http.Request) (*providergateway.NotificationData, error) {
	signature := req.Header.Get(signatureHeader)
	if signature == "" {
		return nil, fmt.Errorf("missing %s header", signatureHeader)
	}

	body, err := io.ReadAll(io.LimitReader(req.Body, maxNotificationBody))
	if err != nil {
		return nil, fmt.Errorf("failed to read notification body: %w", err)
	}

	mac := hmac.New(sha256.New, []byte(g.apiKey))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return nil, fmt.Errorf("invalid notification signature")
	}

	var payload struct {
		Event string `json:"event"`
		Data  struct {
			SubscriptionID    uint              `json:"subscription_id"`
			Reference         string            `json:"reference"`
			ProviderPaymentID string            `json:"payment_id"`
			Amount            int64             `json:"amount"`
			Currency          string            `json:"currency"`
			AuthorizationCode string            `json:"authorization_code"`
			OccurredAt        time.Time         `json:"occurred_at"`
			Extra             map[string]string `json:"extra"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode notification: %w", err)
	}
	if payload.Data.Reference == "" {
		return nil, fmt.Errorf("notification missing payment reference")
	}

	return &providergateway.NotificationData{
		Event:             payload.Event,
		SubscriptionID:    payload.Data.SubscriptionID,
		Reference:         payload.Data.Reference,
		ProviderPaymentID: payload.Data.ProviderPaymentID,
		Amount:            payload.Data.Amount,
		Currency:          payload.Data.Currency,
		AuthorizationCode: payload.Data.AuthorizationCode,
		OccurredAt:        payload.Data.OccurredAt,
		RawData:           payload.Data.Extra,
	}, nil
}
