package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/LavaJover/shvark-affiliate-service/internal/domain"
	"github.com/LavaJover/shvark-affiliate-service/internal/infrastructure/metrics"
	"github.com/LavaJover/shvark-affiliate-service/internal/infrastructure/postgres/pgtest"
	"github.com/LavaJover/shvark-affiliate-service/internal/infrastructure/postgres/repository"
	"github.com/LavaJover/shvark-affiliate-service/internal/usecase"
	"github.com/LavaJover/shvark-affiliate-service/internal/usecase/antifraud"
	"github.com/LavaJover/shvark-affiliate-service/internal/usecase/commission"
	"github.com/LavaJover/shvark-affiliate-service/internal/usecase/payout"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type providerFunc func(ctx context.Context, req domain.DispatchRequest) (string, error)

func (f providerFunc) Dispatch(ctx context.Context, req domain.DispatchRequest) (string, error) {
	return f(ctx, req)
}

type silentPublisher struct{}

func (silentPublisher) PublishCommissionEvents(ctx context.Context, events ...domain.CommissionEvent) error {
	return nil
}

func (silentPublisher) PublishPayoutEvent(ctx context.Context, event domain.PayoutEvent) error {
	return nil
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	db := pgtest.NewDB(t)
	registry := prometheus.NewRegistry()
	m := metrics.NewAffiliateMetrics(registry)

	commissionSettings := domain.CommissionSettings{
		LevelRates:        []decimal.Decimal{decimal.RequireFromString("0.10"), decimal.RequireFromString("0.05")},
		MaxDepth:          3,
		MaxAggregateRate:  decimal.RequireFromString("0.20"),
		AmountPrecision:   2,
		AttributionWindow: 24 * time.Hour,
		VelocityThreshold: 100,
		VelocityWindow:    time.Hour,
	}
	payoutSettings := domain.PayoutSettings{
		MinAmount:         decimal.RequireFromString("1"),
		MaxAttempts:       3,
		BaseBackoff:       time.Minute,
		MaxBackoff:        time.Hour,
		DispatchTimeout:   time.Second,
		ProcessingTimeout: 10 * time.Minute,
	}
	commissionFn := func() domain.CommissionSettings { return commissionSettings }

	affiliateRepo := repository.NewDefaultAffiliateRepository(db)
	ledgerRepo := repository.NewDefaultLedgerRepository(db)

	graph, err := usecase.NewDefaultReferralGraphUsecase(affiliateRepo, true, logger)
	require.NoError(t, err)
	clicks := usecase.NewDefaultClickUsecase(repository.NewDefaultClickRepository(db), affiliateRepo, commissionFn)
	guard := antifraud.NewDefaultEngine(repository.NewAntiFraudRepository(db), logger, m)
	ledger := usecase.NewDefaultLedgerUsecase(ledgerRepo, silentPublisher{}, commissionFn, logger, m)
	engine := commission.NewEngine(ledgerRepo, clicks, graph, guard, silentPublisher{}, commissionFn, logger, m)
	provider := providerFunc(func(ctx context.Context, req domain.DispatchRequest) (string, error) {
		return "ref-" + req.PayoutID, nil
	})
	manager := payout.NewManager(repository.NewDefaultPayoutRepository(db), ledger, graph, provider, silentPublisher{},
		func() domain.PayoutSettings { return payoutSettings }, logger, m)

	router, err := NewRouter(
		RouterConfig{Gatherer: registry, Logger: logger},
		NewAffiliateHandler(graph, func() int { return commissionSettings.MaxDepth }, logger),
		NewTrackingHandler(clicks, engine, logger, m),
		NewLedgerHandler(ledger, logger),
		NewPayoutHandler(manager, logger),
		NewAntiFraudHandler(guard, logger),
	)
	require.NoError(t, err)
	return router
}

func do(t *testing.T, router *gin.Engine, method, path string, body interface{}, admin string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "handlers-test")
	if admin != "" {
		req.Header.Set(AdminHeader, admin)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func decimalField(t *testing.T, value interface{}) decimal.Decimal {
	t.Helper()
	raw, ok := value.(string)
	require.True(t, ok, "expected decimal string, got %v", value)
	return decimal.RequireFromString(raw)
}

func TestRouter_ConversionToPayoutFlow(t *testing.T) {
	router := newTestRouter(t)

	rec := do(t, router, http.MethodPost, "/api/v1/affiliates", gin.H{"account_id": "acc-root"}, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	root := decode(t, rec)

	rec = do(t, router, http.MethodPost, "/api/v1/affiliates", gin.H{"account_id": "acc-child", "parent_code": root["referral_code"]}, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	child := decode(t, rec)
	assert.Equal(t, root["id"], child["parent_id"])
	childID := child["id"].(string)
	rootID := root["id"].(string)

	rec = do(t, router, http.MethodGet, "/api/v1/affiliates/"+childID+"/upline", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["upline"], 2)

	rec = do(t, router, http.MethodPost, "/api/v1/clicks", gin.H{"code": child["referral_code"], "visitor_token": "visitor-1"}, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, childID, decode(t, rec)["affiliate_id"])

	conversion := gin.H{
		"conversion_id": uuid.NewString(),
		"visitor_token": "visitor-1",
		"account_id":    "buyer-1",
		"gross_amount":  "100",
		"currency":      "USD",
		"timestamp":     time.Now().UTC().Add(time.Second).Format(time.RFC3339Nano),
	}
	rec = do(t, router, http.MethodPost, "/api/v1/conversions", conversion, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	result := decode(t, rec)
	assert.Equal(t, string(domain.OutcomeCommissioned), result["outcome"])
	entries := result["entries"].([]interface{})
	require.Len(t, entries, 2)

	rec = do(t, router, http.MethodPost, "/api/v1/conversions", conversion, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, string(domain.OutcomeDuplicate), decode(t, rec)["outcome"])

	var childEntryID string
	for _, raw := range entries {
		entry := raw.(map[string]interface{})
		switch entry["affiliate_id"] {
		case childID:
			assert.True(t, decimalField(t, entry["amount"]).Equal(decimal.NewFromInt(10)))
			childEntryID = entry["id"].(string)
		case rootID:
			assert.True(t, decimalField(t, entry["amount"]).Equal(decimal.NewFromInt(5)))
		}
	}
	require.NotEmpty(t, childEntryID)

	decisionPath := "/api/v1/admin/commissions/" + childEntryID + "/decision"
	rec = do(t, router, http.MethodPost, decisionPath, gin.H{"decision": "approve"}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = do(t, router, http.MethodPost, decisionPath, gin.H{"decision": "approve"}, "admin-1")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, string(domain.CommissionApproved), decode(t, rec)["status"])
	rec = do(t, router, http.MethodPost, decisionPath, gin.H{"decision": "reject"}, "admin-1")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, router, http.MethodGet, "/api/v1/affiliates/"+childID+"/balance?currency=usd", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	balance := decode(t, rec)
	assert.True(t, decimalField(t, balance["available"]).Equal(decimal.NewFromInt(10)))

	rec = do(t, router, http.MethodPost, "/api/v1/affiliates/"+childID+"/payouts", gin.H{"amount": "11", "currency": "USD", "method": "bank"}, "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = do(t, router, http.MethodPost, "/api/v1/affiliates/"+childID+"/payouts", gin.H{"amount": "10", "currency": "USD", "method": "bank"}, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	payoutID := decode(t, rec)["id"].(string)

	rec = do(t, router, http.MethodPost, "/api/v1/admin/payouts/"+payoutID+"/advance", nil, "admin-1")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	advanced := decode(t, rec)
	assert.Equal(t, string(domain.PayoutCompleted), advanced["status"])
	assert.Equal(t, "ref-"+payoutID, advanced["provider_ref"])

	rec = do(t, router, http.MethodPost, "/api/v1/admin/payouts/"+payoutID+"/advance", nil, "admin-1")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, router, http.MethodGet, "/api/v1/affiliates/"+childID+"/balance", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	balances := decode(t, rec)["balances"].([]interface{})
	require.Len(t, balances, 1)
	assert.True(t, decimalField(t, balances[0].(map[string]interface{})["paid"]).Equal(decimal.NewFromInt(10)))

	rec = do(t, router, http.MethodGet, "/api/v1/affiliates/"+childID+"/commissions?status=paid", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, decode(t, rec)["total"])

	rec = do(t, router, http.MethodGet, "/api/v1/admin/fraud-logs?affiliate_id="+childID, nil, "admin-1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["logs"], 1)
}

func TestRouter_RejectsInvalidBodies(t *testing.T) {
	router := newTestRouter(t)

	cases := []struct {
		name string
		path string
		body gin.H
	}{
		{"enroll without account", "/api/v1/affiliates", gin.H{}},
		{"negative gross amount", "/api/v1/conversions", gin.H{
			"conversion_id": "c-1", "gross_amount": "-5", "currency": "USD", "timestamp": time.Now().UTC(),
		}},
		{"unknown currency", "/api/v1/conversions", gin.H{
			"conversion_id": "c-2", "gross_amount": "5", "currency": "ZZZ", "timestamp": time.Now().UTC(),
		}},
		{"callback without identity", "/api/v1/payouts/callback", gin.H{"status": "succeeded"}},
		{"callback with unknown status", "/api/v1/payouts/callback", gin.H{"payout_id": uuid.NewString(), "status": "maybe"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, router, http.MethodPost, tc.path, tc.body, "")
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}
}

func TestRouter_GraphErrors(t *testing.T) {
	router := newTestRouter(t)

	enroll := func(account string, parentID string) string {
		rec := do(t, router, http.MethodPost, "/api/v1/affiliates", gin.H{"account_id": account, "parent_id": parentID}, "")
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		return decode(t, rec)["id"].(string)
	}
	a := enroll("acc-a", "")
	b := enroll("acc-b", a)

	rec := do(t, router, http.MethodPost, "/api/v1/affiliates/"+a+"/parent", gin.H{"parent_id": b}, "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, router, http.MethodPut, "/api/v1/admin/affiliates/"+a+"/parent", gin.H{"parent_id": b, "reason": "merge"}, "admin-1")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, router, http.MethodGet, "/api/v1/affiliates/"+uuid.NewString(), nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, router, http.MethodGet, "/api/v1/affiliates/"+b+"/upline?depth=zero", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodPatch, "/api/v1/admin/affiliates/"+b+"/status", gin.H{"status": "BANNED", "reason": "fraud"}, "admin-1")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, router, http.MethodGet, "/api/v1/affiliates/"+a+"/downline", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, decode(t, rec)["total"])
}

func TestRouter_Metrics(t *testing.T) {
	router := newTestRouter(t)

	do(t, router, http.MethodPost, "/api/v1/clicks", gin.H{"code": "NOPE2345", "visitor_token": "v"}, "")

	rec := do(t, router, http.MethodGet, "/metrics", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "affiliate_clicks_recorded_total")
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, statusFor(domain.ErrAffiliateNotFound))
	assert.Equal(t, http.StatusBadGateway, statusFor(&domain.ProviderFailure{PayoutID: "p", Retryable: true}))
	assert.Equal(t, http.StatusInternalServerError, statusFor(io.ErrUnexpectedEOF))
}
