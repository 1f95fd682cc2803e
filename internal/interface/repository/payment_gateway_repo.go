package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"tripdesk-service/internal/domain/repository"
	"tripdesk-service/pkg/logger"

	"github.com/google/uuid"
)

// HTTPPaymentGateway charges through an external payment provider
type HTTPPaymentGateway struct {
	baseURL     string
	bearerToken string
	client      *http.Client
	logger      logger.Logger
}

// NewHTTPPaymentGateway creates a gateway client for baseURL
func NewHTTPPaymentGateway(baseURL, bearerToken string, logger logger.Logger) repository.PaymentGateway {
	return &HTTPPaymentGateway{
		baseURL:     baseURL,
		bearerToken: bearerToken,
		client:      &http.Client{Timeout: 30 * time.Second},
		logger:      logger,
	}
}

type chargeRequest struct {
	TransactionID string `json:"transactionId"`
	Reference     string `json:"reference"`
	Amount        string `json:"amount"`
	Currency      string `json:"currency"`
	Method        string `json:"method"`
}

// Charge posts the charge. A decline is reported in the result, transport failures as errors.
func (g *HTTPPaymentGateway) Charge(ctx context.Context, req repository.ChargeRequest) (*repository.ChargeResult, error) {
	jsonData, err := json.Marshal(chargeRequest{
		TransactionID: req.TransactionID,
		Reference:     req.BookingRef,
		Amount:        req.Amount.StringFixed(2),
		Currency:      req.Currency,
		Method:        string(req.Method),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal charge: %w", err)
	}

	url := fmt.Sprintf("%s/api/v1/charges", g.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+g.bearerToken)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Idempotency-Key", req.TransactionID)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send charge: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, fmt.Errorf("payment gateway returned status %d", resp.StatusCode)
	}

	var response struct {
		Approved      bool   `json:"approved"`
		Reference     string `json:"reference"`
		DeclineReason string `json:"declineReason"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	g.logger.Info("Payment gateway response",
		"transactionId", req.TransactionID,
		"approved", response.Approved,
		"status", resp.StatusCode)

	return &repository.ChargeResult{
		Approved:         response.Approved,
		GatewayReference: response.Reference,
		DeclineReason:    response.DeclineReason,
	}, nil
}

// SimulatedPaymentGateway approves a configurable share of charges
type SimulatedPaymentGateway struct {
	successRate float64
	mu          sync.Mutex
	rnd         *rand.Rand
}

// NewSimulatedPaymentGateway creates a simulated gateway. A nil rnd is seeded from the clock.
func NewSimulatedPaymentGateway(successRate float64, rnd *rand.Rand) *SimulatedPaymentGateway {
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &SimulatedPaymentGateway{
		successRate: successRate,
		rnd:         rnd,
	}
}

// Charge approves with probability successRate
func (g *SimulatedPaymentGateway) Charge(ctx context.Context, req repository.ChargeRequest) (*repository.ChargeResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	g.mu.Lock()
	roll := g.rnd.Float64()
	g.mu.Unlock()

	if roll >= g.successRate {
		return &repository.ChargeResult{Approved: false, DeclineReason: "card declined"}, nil
	}
	return &repository.ChargeResult{
		Approved:         true,
		GatewayReference: "SIM-" + uuid.NewString(),
	}, nil
}
