package http

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	custodyapp "github.com/wyfcoding/optionescrow/internal/custody/application"
	"github.com/wyfcoding/optionescrow/internal/options/application"
	"github.com/wyfcoding/optionescrow/internal/options/domain"
	"github.com/wyfcoding/optionescrow/internal/options/infrastructure/lock"
	"github.com/wyfcoding/optionescrow/internal/options/infrastructure/persistence/memory"
	pricingapp "github.com/wyfcoding/optionescrow/internal/pricing/application"
	pricing "github.com/wyfcoding/optionescrow/internal/pricing/domain"
	"github.com/wyfcoding/optionescrow/pkg/logger"
	"github.com/wyfcoding/optionescrow/pkg/middleware"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const admin = "admin"

type stubClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stubClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *stubClock) Set(sec int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = time.Unix(sec, 0)
}

func newRouter(t *testing.T) (*gin.Engine, *stubClock) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	store := memory.NewStore()
	clock := &stubClock{now: time.Unix(0, 0)}
	pricer := pricingapp.NewPricer(pricing.DefaultFormula, nil, 0, logger.Discard())
	options := application.NewOptionService(store, store, lock.NewLocalLocker(), clock, pricer, nil, logger.Discard())
	custody := custodyapp.NewCustodyService(store, admin, logger.Discard())

	r := gin.New()
	r.Use(middleware.GinRequestID())
	NewHandler(options, custody).RegisterRoutes(r)
	return r, clock
}

type envelope struct {
	Code    domain.ErrorCode    `json:"code"`
	Message string              `json:"message"`
	Data    jsoniter.RawMessage `json:"data"`
}

func call(t *testing.T, r *gin.Engine, method, path, party string, body any) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if party != "" {
		req.Header.Set(middleware.HeaderPartyID, party)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w.Code, env
}

func deposit(t *testing.T, r *gin.Engine, owner, asset string, amount uint64) {
	t.Helper()
	status, env := call(t, r, http.MethodPost, "/api/v1/admin/deposits", admin, DepositRequest{Owner: owner, Asset: asset, Amount: amount})
	require.Equal(t, http.StatusOK, status, env.Message)
}

func createRequest() CreateOptionRequest {
	return CreateOptionRequest{
		UnderlyingAssetID: "BTC",
		StrikeAssetID:     "USDC",
		StrikePrice:       100_000000,
		Expiration:        int64(pricing.SecondsPerYear),
		Spot:              100_000000,
		RiskFreeRate:      "0.05",
		Volatility:        "0.2",
		Amount:            10,
	}
}

func TestHandler_CreateAndExercise(t *testing.T) {
	r, _ := newRouter(t)
	deposit(t, r, "alice", "BTC", 10)
	deposit(t, r, "bob", "USDC", 100_000000)

	status, env := call(t, r, http.MethodPost, "/api/v1/options", "alice", createRequest())
	require.Equal(t, http.StatusCreated, status, env.Message)
	var created application.OptionView
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.Equal(t, uint64(10_709_144), created.OptionPrice)
	assert.Equal(t, "ACTIVE", created.Status)
	assert.Len(t, created.Address, 64)

	status, env = call(t, r, http.MethodGet, "/api/v1/balances/"+created.Address+"/BTC", "", nil)
	require.Equal(t, http.StatusOK, status)
	var bal BalanceResponse
	require.NoError(t, json.Unmarshal(env.Data, &bal))
	assert.Equal(t, uint64(10), bal.Balance)

	status, env = call(t, r, http.MethodPost, "/api/v1/options/"+created.Address+"/exercise", "bob", nil)
	require.Equal(t, http.StatusOK, status, env.Message)
	var exercised application.OptionView
	require.NoError(t, json.Unmarshal(env.Data, &exercised))
	assert.True(t, exercised.IsExercised)
	assert.Equal(t, "bob", exercised.Exerciser)

	status, env = call(t, r, http.MethodPost, "/api/v1/options/"+created.Address+"/exercise", "bob", nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, domain.CodeOptionAlreadyExercised, env.Code)

	status, env = call(t, r, http.MethodGet, "/api/v1/options?creator=alice&active=true", "", nil)
	require.Equal(t, http.StatusOK, status)
	var active []application.OptionView
	require.NoError(t, json.Unmarshal(env.Data, &active))
	assert.Empty(t, active)
}

func TestHandler_ExerciseExpired(t *testing.T) {
	r, clock := newRouter(t)
	deposit(t, r, "alice", "BTC", 10)
	deposit(t, r, "bob", "USDC", 100_000000)

	status, env := call(t, r, http.MethodPost, "/api/v1/options", "alice", createRequest())
	require.Equal(t, http.StatusCreated, status, env.Message)
	var created application.OptionView
	require.NoError(t, json.Unmarshal(env.Data, &created))

	clock.Set(int64(pricing.SecondsPerYear) + 1)
	status, env = call(t, r, http.MethodPost, "/api/v1/options/"+created.Address+"/exercise", "bob", nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, domain.CodeOptionExpired, env.Code)
}

func TestHandler_Errors(t *testing.T) {
	r, _ := newRouter(t)

	status, _ := call(t, r, http.MethodPost, "/api/v1/options", "", createRequest())
	assert.Equal(t, http.StatusUnauthorized, status)

	status, env := call(t, r, http.MethodPost, "/api/v1/options", "alice", createRequest())
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, domain.CodeInsufficientFunds, env.Code)

	bad := createRequest()
	bad.RiskFreeRate = "0.0000001"
	status, env = call(t, r, http.MethodPost, "/api/v1/options", "alice", bad)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, domain.CodeInvalidRequest, env.Code)

	past := createRequest()
	past.Expiration = -10
	status, env = call(t, r, http.MethodPost, "/api/v1/options", "alice", past)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, domain.CodeInvalidExpiration, env.Code)

	status, env = call(t, r, http.MethodGet, "/api/v1/options/unknown", "", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, domain.CodeOptionNotFound, env.Code)

	status, env = call(t, r, http.MethodPost, "/api/v1/admin/deposits", "mallory", DepositRequest{Owner: "mallory", Asset: "BTC", Amount: 1})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, domain.CodeUnauthorized, env.Code)

	status, _ = call(t, r, http.MethodGet, "/api/v1/options?active=maybe", "", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestHandler_Quote(t *testing.T) {
	r, _ := newRouter(t)

	status, env := call(t, r, http.MethodPost, "/api/v1/quotes", "", QuoteRequest{
		Spot:                100_000000,
		Strike:              100_000000,
		TimeToExpirySeconds: pricing.SecondsPerYear,
		RiskFreeRate:        "0.05",
		Volatility:          "0.2",
	})
	require.Equal(t, http.StatusOK, status, env.Message)
	var q pricing.Quote
	require.NoError(t, json.Unmarshal(env.Data, &q))
	assert.Equal(t, uint64(10_709_144), q.Premium)

	status, env = call(t, r, http.MethodPost, "/api/v1/quotes", "", QuoteRequest{
		Spot: 90, Strike: 100, TimeToExpirySeconds: pricing.SecondsPerYear, RiskFreeRate: "0.05", Volatility: "0.2",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, domain.CodeArithmeticFault, env.Code)

	status, _ = call(t, r, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, status)
}
