package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/LavaJover/shvark-affiliate-service/internal/domain"
	"github.com/LavaJover/shvark-affiliate-service/internal/infrastructure/provider/dto"
)

// HTTPPaymentProvider hands payouts to the payment rail over JSON/HTTP. The payout id is sent as the
// idempotency key so a retried dispatch never pays twice.
type HTTPPaymentProvider struct {
	Address string
	client  *http.Client
}

func NewHTTPPaymentProvider(address string, timeout time.Duration) (*HTTPPaymentProvider, error) {
	if address == "" {
		return nil, errors.New("payment provider base url is required")
	}
	return &HTTPPaymentProvider{
		Address: strings.TrimRight(address, "/"),
		client:  &http.Client{Timeout: timeout},
	}, nil
}

// Dispatch returns a *domain.ProviderError for every failure. Transport errors, 429 and 5xx are retryable.
func (p *HTTPPaymentProvider) Dispatch(ctx context.Context, req domain.DispatchRequest) (string, error) {
	requestBodyBytes, err := json.Marshal(dto.DispatchRequest{
		PayoutID: req.PayoutID,
		Amount:   req.Amount,
		Currency: req.Currency,
		Method:   req.Method,
	})
	if err != nil {
		return "", &domain.ProviderError{Retryable: false, Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s/payouts", p.Address), bytes.NewBuffer(requestBodyBytes))
	if err != nil {
		return "", &domain.ProviderError{Retryable: false, Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Idempotency-Key", req.PayoutID)

	response, err := p.client.Do(httpReq)
	if err != nil {
		return "", &domain.ProviderError{Retryable: true, Err: err}
	}
	defer response.Body.Close()
	responseBodyBytes, err := io.ReadAll(response.Body)
	if err != nil {
		return "", &domain.ProviderError{Retryable: true, Err: err}
	}

	if response.StatusCode >= 200 && response.StatusCode < 300 {
		var dispatchResponse dto.DispatchResponse
		if err := json.Unmarshal(responseBodyBytes, &dispatchResponse); err != nil {
			return "", &domain.ProviderError{Retryable: true, Err: fmt.Errorf("unreadable provider response: %w", err)}
		}
		if dispatchResponse.Reference == "" {
			return "", &domain.ProviderError{Retryable: true, Err: errors.New("provider response has no reference")}
		}
		return dispatchResponse.Reference, nil
	}

	retryable := response.StatusCode == http.StatusTooManyRequests || response.StatusCode >= 500
	var errorResponse dto.ErrorResponse
	if err := json.Unmarshal(responseBodyBytes, &errorResponse); err != nil || errorResponse.Error == "" {
		return "", &domain.ProviderError{Retryable: retryable, Err: fmt.Errorf("provider returned %d", response.StatusCode)}
	}
	return "", &domain.ProviderError{Retryable: retryable, Err: fmt.Errorf("provider returned %d: %s", response.StatusCode, errorResponse.Error)}
}
