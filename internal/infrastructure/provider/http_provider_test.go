package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/LavaJover/shvark-affiliate-service/internal/domain"
	"github.com/LavaJover/shvark-affiliate-service/internal/infrastructure/provider/dto"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dispatchRequest() domain.DispatchRequest {
	return domain.DispatchRequest{PayoutID: "payout-1", Amount: decimal.RequireFromString("12.50"), Currency: "USD", Method: "bank"}
}

func TestDispatch_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/payouts", r.URL.Path)
		assert.Equal(t, "payout-1", r.Header.Get("Idempotency-Key"))

		var body dto.DispatchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.True(t, body.Amount.Equal(decimal.RequireFromString("12.5")))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(dto.DispatchResponse{Reference: "ref-42"})
	}))
	defer server.Close()

	p, err := NewHTTPPaymentProvider(server.URL+"/", time.Second)
	require.NoError(t, err)

	ref, err := p.Dispatch(context.Background(), dispatchRequest())
	require.NoError(t, err)
	assert.Equal(t, "ref-42", ref)
}

func TestDispatch_ClassifiesFailures(t *testing.T) {
	cases := []struct {
		name      string
		status    int
		body      string
		retryable bool
	}{
		{"server error", http.StatusBadGateway, `{"error":"upstream"}`, true},
		{"rate limited", http.StatusTooManyRequests, ``, true},
		{"rejected", http.StatusUnprocessableEntity, `{"success":false,"error":"account closed"}`, false},
		{"bad request", http.StatusBadRequest, `not json`, false},
		{"empty reference", http.StatusOK, `{}`, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer server.Close()

			p, err := NewHTTPPaymentProvider(server.URL, time.Second)
			require.NoError(t, err)

			_, err = p.Dispatch(context.Background(), dispatchRequest())
			var providerErr *domain.ProviderError
			require.ErrorAs(t, err, &providerErr)
			assert.Equal(t, tc.retryable, providerErr.Retryable)
		})
	}
}

func TestDispatch_TransportErrorIsRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	p, err := NewHTTPPaymentProvider(server.URL, 20*time.Millisecond)
	require.NoError(t, err)

	_, err = p.Dispatch(context.Background(), dispatchRequest())
	var providerErr *domain.ProviderError
	require.ErrorAs(t, err, &providerErr)
	assert.True(t, providerErr.Retryable)

	_, err = NewHTTPPaymentProvider("", time.Second)
	assert.Error(t, err)
}
