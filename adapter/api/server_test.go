package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manish0301/subscription-pro/internal/app"
	"github.com/manish0301/subscription-pro/internal/subscriptions/application/commands"
	"github.com/manish0301/subscription-pro/internal/subscriptions/application/queries"
	"github.com/manish0301/subscription-pro/internal/subscriptions/domain"
	"github.com/manish0301/subscription-pro/internal/subscriptions/infrastructure/payment"
	"github.com/manish0301/subscription-pro/pkg/config"
	"github.com/manish0301/subscription-pro/pkg/observability"
)

const testAdminToken = "admin-secret"

type testServer struct {
	server    *Server
	container *app.Container
}

func setupTestServer(t *testing.T, mutate ...func(*ServerConfig)) *testServer {
	t.Helper()

	cfg := &config.Config{
		AppEnv:             "test",
		LocalMode:          true,
		DatabaseDriver:     "sqlite",
		SQLitePath:         filepath.Join(t.TempDir(), "api.db"),
		BillingConcurrency: 1,
		BillingBatchLimit:  100,
		BillingLockTTL:     time.Minute,
		BillingCurrency:    "INR",
		PaymentProvider:    config.ProviderMock,
	}
	container, err := app.NewLocalContainer(context.Background(), cfg, observability.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(container.Close)

	serverCfg := DefaultServerConfig()
	serverCfg.AdminToken = testAdminToken
	serverCfg.RatePerSecond = 0
	for _, m := range mutate {
		m(&serverCfg)
	}

	handlers := Handlers{
		CreateSubscription:  container.CreateSubscriptionHandler,
		PauseSubscription:   container.PauseSubscriptionHandler,
		ResumeSubscription:  container.ResumeSubscriptionHandler,
		CancelSubscription:  container.CancelSubscriptionHandler,
		SkipDelivery:        container.SkipDeliveryHandler,
		ChangeSchedule:      container.ChangeScheduleHandler,
		RunBillingCycle:     container.RunBillingCycleHandler,
		GetSubscription:     container.GetSubscriptionHandler,
		ListSubscriptions:   container.ListSubscriptionsHandler,
		ListBillingAttempts: container.ListBillingAttemptsHandler,
		ListBillingFailures: container.ListBillingFailuresHandler,
	}
	srv := NewServer(serverCfg, handlers, container.Health, container.Metrics, observability.NewNopLogger())
	return &testServer{server: srv, container: container}
}

func (ts *testServer) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	ts.server.Handler().ServeHTTP(rec, req)
	return rec
}

func asUser(id uuid.UUID) map[string]string {
	return map[string]string{HeaderUserID: id.String()}
}

func asAdmin() map[string]string {
	return map[string]string{"Authorization": "Bearer " + testAdminToken}
}

func (ts *testServer) createSubscription(t *testing.T, userID uuid.UUID, frequency string) queries.SubscriptionDTO {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/api/v1/subscriptions", CreateSubscriptionRequest{
		ProductID: uuid.New().String(),
		Frequency: frequency,
		Quantity:  1,
		Amount:    "250.50",
		StartDate: "2024-01-01",
	}, asUser(userID))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var dto queries.SubscriptionDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &dto))
	return dto
}

func TestHealth(t *testing.T) {
	ts := setupTestServer(t)

	rec := ts.do(t, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var health observability.OverallHealth
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, observability.HealthStatusHealthy, health.Status)
	assert.Contains(t, health.Checks, "database")
}

func TestCreateAndGetSubscription(t *testing.T) {
	ts := setupTestServer(t)
	owner := uuid.New()

	dto := ts.createSubscription(t, owner, "weekly")
	assert.Equal(t, owner, dto.UserID)
	assert.Equal(t, "active", dto.Status)
	assert.Equal(t, "2024-01-08", dto.NextDeliveryDate)
	assert.Equal(t, "INR", dto.Currency)

	rec := ts.do(t, http.MethodGet, "/api/v1/subscriptions/"+dto.ID.String(), nil, asUser(owner))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/v1/subscriptions/"+dto.ID.String(), nil, asUser(uuid.New()))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/v1/subscriptions/"+dto.ID.String(), nil, asAdmin())
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateSubscription_Validation(t *testing.T) {
	ts := setupTestServer(t)
	user := asUser(uuid.New())

	tests := []struct {
		name     string
		req      CreateSubscriptionRequest
		wantCode int
		wantKind string
	}{
		{
			name:     "unknown frequency",
			req:      CreateSubscriptionRequest{ProductID: uuid.NewString(), Frequency: "hourly", Quantity: 1, Amount: "10", StartDate: "2024-01-01"},
			wantCode: http.StatusBadRequest,
			wantKind: string(domain.KindValidation),
		},
		{
			name:     "custom without weekdays",
			req:      CreateSubscriptionRequest{ProductID: uuid.NewString(), Frequency: "custom", Quantity: 1, Amount: "10", StartDate: "2024-01-01"},
			wantCode: http.StatusBadRequest,
			wantKind: string(domain.KindValidation),
		},
		{
			name:     "zero quantity",
			req:      CreateSubscriptionRequest{ProductID: uuid.NewString(), Frequency: "daily", Amount: "10", StartDate: "2024-01-01"},
			wantCode: http.StatusBadRequest,
			wantKind: string(domain.KindValidation),
		},
		{
			name:     "malformed start date",
			req:      CreateSubscriptionRequest{ProductID: uuid.NewString(), Frequency: "daily", Quantity: 1, Amount: "10", StartDate: "01/01/2024"},
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "malformed product id",
			req:      CreateSubscriptionRequest{ProductID: "p-1", Frequency: "daily", Quantity: 1, Amount: "10", StartDate: "2024-01-01"},
			wantCode: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, http.MethodPost, "/api/v1/subscriptions", tt.req, user)
			assert.Equal(t, tt.wantCode, rec.Code)

			var apiErr APIError
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &apiErr))
			assert.Equal(t, tt.wantKind, apiErr.Kind)
		})
	}
}

func TestLifecycleEndpoints(t *testing.T) {
	ts := setupTestServer(t)
	owner := uuid.New()
	dto := ts.createSubscription(t, owner, "weekly")
	base := "/api/v1/subscriptions/" + dto.ID.String()

	rec := ts.do(t, http.MethodPost, base+"/skip", nil, asUser(owner))
	require.Equal(t, http.StatusOK, rec.Code)
	var skipped queries.SubscriptionDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &skipped))
	assert.Equal(t, "2024-01-15", skipped.NextDeliveryDate)

	rec = ts.do(t, http.MethodPost, base+"/pause", nil, asUser(owner))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodPost, base+"/pause", nil, asUser(owner))
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = ts.do(t, http.MethodPost, base+"/resume", nil, asUser(uuid.New()))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(t, http.MethodPost, base+"/resume", nil, asUser(owner))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodPut, base+"/schedule", ChangeScheduleRequest{Frequency: "custom", Weekdays: "mon,thu"}, asUser(owner))
	require.Equal(t, http.StatusOK, rec.Code)
	var changed queries.SubscriptionDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &changed))
	assert.Equal(t, "custom", changed.Frequency)

	rec = ts.do(t, http.MethodPost, base+"/cancel", CancelSubscriptionRequest{Reason: "moving"}, asUser(owner))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodPost, base+"/pause", nil, asUser(owner))
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/v1/subscriptions?status=canceled", nil, asUser(owner))
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Subscriptions []queries.SubscriptionDTO `json:"subscriptions"`
		Count         int                       `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Equal(t, 1, list.Count)
}

func TestAuthentication(t *testing.T) {
	ts := setupTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/v1/subscriptions", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/v1/subscriptions", nil, map[string]string{HeaderUserID: "not-a-uuid"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/v1/subscriptions/not-a-uuid", nil, asUser(uuid.New()))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminRoutes_MalformedUserID(t *testing.T) {
	ts := setupTestServer(t)

	headers := asAdmin()
	headers[HeaderUserID] = "not-a-uuid"
	rec := ts.do(t, http.MethodGet, "/api/v1/billing/failures", nil, headers)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), HeaderUserID)

	headers[HeaderUserID] = uuid.New().String()
	rec = ts.do(t, http.MethodGet, "/api/v1/billing/failures", nil, headers)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodGet, "/api/v1/billing/failures", nil, map[string]string{HeaderUserID: "not-a-uuid"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRunBilling(t *testing.T) {
	ts := setupTestServer(t)
	owner := uuid.New()
	renewed := ts.createSubscription(t, owner, "weekly")
	declined := ts.createSubscription(t, owner, "weekly")
	ts.createSubscription(t, owner, "monthly")
	ts.container.PaymentGateway.(*payment.MockGateway).Decline(declined.ID, "card expired")

	t.Run("requires admin token", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/api/v1/billing/runs", RunBillingRequest{AsOf: "2024-01-10"}, asUser(owner))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)

		rec = ts.do(t, http.MethodPost, "/api/v1/billing/runs", RunBillingRequest{AsOf: "2024-01-10"},
			map[string]string{"Authorization": "Bearer wrong"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("rejects malformed date", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/api/v1/billing/runs", RunBillingRequest{AsOf: "10-01-2024"}, asAdmin())
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("bills due subscriptions", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/api/v1/billing/runs", RunBillingRequest{AsOf: "2024-01-10"}, asAdmin())
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var result commands.BillingCycleResult
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
		assert.Equal(t, "2024-01-10", result.AsOf)
		assert.Equal(t, 2, result.Total)
		assert.Equal(t, 1, result.Succeeded)
		assert.Equal(t, 1, result.Failed)
		require.Len(t, result.Failures, 1)
		assert.Equal(t, declined.ID, result.Failures[0].SubscriptionID)
		assert.Equal(t, domain.KindGateway, result.Failures[0].Kind)
	})

	t.Run("attempt ledger", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, "/api/v1/subscriptions/"+renewed.ID.String()+"/attempts", nil, asUser(owner))
		require.Equal(t, http.StatusOK, rec.Code)
		var body struct {
			Attempts []queries.BillingAttemptDTO `json:"attempts"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.Len(t, body.Attempts, 1)
		assert.Equal(t, string(domain.AttemptSucceeded), body.Attempts[0].Status)
		assert.Equal(t, int64(25050), body.Attempts[0].AmountMinor)

		rec = ts.do(t, http.MethodGet, "/api/v1/billing/failures", nil, asAdmin())
		require.Equal(t, http.StatusOK, rec.Code)
		var failures struct {
			Failures []queries.BillingAttemptDTO `json:"failures"`
			Count    int                         `json:"count"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &failures))
		assert.Equal(t, 1, failures.Count)
		assert.Equal(t, declined.ID, failures.Failures[0].SubscriptionID)
	})
}

func TestStatusForKind(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, StatusForKind(domain.KindValidation))
	assert.Equal(t, http.StatusConflict, StatusForKind(domain.KindStateGuard))
	assert.Equal(t, http.StatusForbidden, StatusForKind(domain.KindUnauthorized))
	assert.Equal(t, http.StatusNotFound, StatusForKind(domain.KindNotFound))
	assert.Equal(t, http.StatusBadGateway, StatusForKind(domain.KindGateway))
	assert.Equal(t, http.StatusConflict, StatusForKind(domain.KindConflict))
	assert.Equal(t, http.StatusServiceUnavailable, StatusForKind(domain.KindUnavailable))
	assert.Equal(t, http.StatusInternalServerError, StatusForKind(domain.KindInternal))
}

func TestRateLimit(t *testing.T) {
	ts := setupTestServer(t, func(cfg *ServerConfig) {
		cfg.RatePerSecond = 0.001
		cfg.RateBurst = 2
	})
	user := asUser(uuid.New())

	for range 2 {
		rec := ts.do(t, http.MethodGet, "/api/v1/subscriptions", nil, user)
		assert.Equal(t, http.StatusOK, rec.Code)
	}
	rec := ts.do(t, http.MethodGet, "/api/v1/subscriptions", nil, user)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))

	// Other clients have their own bucket.
	rec = ts.do(t, http.MethodGet, "/api/v1/subscriptions", nil, asUser(uuid.New()))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(1), ts.container.Metrics.GetCounter(observability.MetricHTTPLimited))
}

func TestClientLimiter_EvictsIdle(t *testing.T) {
	l := newClientLimiter(1, 1)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))

	now = now.Add(limiterIdleTTL + time.Second)
	assert.True(t, l.Allow("b"))
	assert.NotContains(t, l.limiters, "a")
}

func TestRequestIDsAreEchoed(t *testing.T) {
	ts := setupTestServer(t)
	rec := ts.do(t, http.MethodGet, "/health", nil, map[string]string{HeaderCorrelationID: "corr-1"})
	assert.Equal(t, "corr-1", rec.Header().Get(HeaderCorrelationID))
	assert.NotEmpty(t, rec.Header().Get(HeaderRequestID))
}
