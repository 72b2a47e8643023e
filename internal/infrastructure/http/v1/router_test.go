package v1_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"stockforecast/internal/app"
	"stockforecast/internal/core/security"
	"stockforecast/internal/domain/auth"
	"stockforecast/internal/infrastructure/cache"
	v1 "stockforecast/internal/infrastructure/http/v1"
	"stockforecast/internal/infrastructure/storage/memory"
	"stockforecast/pkg/logger"
)

type testAPI struct {
	t      *testing.T
	router *gin.Engine
	jwt    *auth.JWTService
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	policy, err := security.CompileAccessPolicy(security.DefaultReadPolicy)
	require.NoError(t, err)

	jwtSvc := auth.NewJWTService(auth.DefaultJWTConfig("test-secret"))
	services := app.NewServices(app.MemoryRepositories(memory.NewStore()), zap.NewNop())

	router := v1.NewRouter(v1.RouterConfig{
		Services:     services,
		Logger:       logger.NewNop(),
		JWTValidator: jwtSvc,
		ReadPolicy:   policy,
		Idempotency:  cache.NewIdempotencyStore(client, "idem:", time.Hour),
	})
	return &testAPI{t: t, router: router, jwt: jwtSvc}
}

func (a *testAPI) token(who auth.Identity) string {
	a.t.Helper()
	tok, _, err := a.jwt.GenerateAccessToken(who)
	require.NoError(a.t, err)
	return tok
}

func (a *testAPI) admin() string {
	return a.token(auth.Identity{UserID: "admin-1", IsAdmin: true})
}

func (a *testAPI) do(method, path, token string, body any, headers ...string) *httptest.ResponseRecorder {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func (a *testAPI) createProduct(code string) string {
	a.t.Helper()
	w := a.do(http.MethodPost, "/api/v1/catalog/products", a.admin(), map[string]any{"code": code, "name": "Product " + code})
	require.Equal(a.t, http.StatusCreated, w.Code, w.Body.String())
	return decode(a.t, w)["id"].(string)
}

func TestHealthLive(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestForecastRows_RequiresToken(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(http.MethodGet, "/api/v1/forecast/rows", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "UNAUTHORIZED", decode(t, w)["code"])

	w = api.do(http.MethodGet, "/api/v1/forecast/rows", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestForecastRows_ReadPolicy(t *testing.T) {
	api := newTestAPI(t)

	guest := api.token(auth.Identity{UserID: "u-guest", Roles: []string{"guest"}})
	w := api.do(http.MethodGet, "/api/v1/forecast/rows", guest, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "FORBIDDEN", decode(t, w)["code"])

	user := api.token(auth.Identity{UserID: "u-stock", Roles: []string{"stock.user"}})
	w = api.do(http.MethodGet, "/api/v1/forecast/rows", user, nil)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestRecompute_RequiresPermission(t *testing.T) {
	api := newTestAPI(t)

	user := api.token(auth.Identity{UserID: "u-stock", Roles: []string{"stock.manager"}})
	w := api.do(http.MethodPost, "/api/v1/forecast/rows/"+uuid.NewString()+"/recompute", user, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestTransferCreate_UpdatesForecast(t *testing.T) {
	api := newTestAPI(t)
	productID := api.createProduct("P-1")

	saleOrderID := uuid.NewString()
	w := api.do(http.MethodPost, "/api/v1/document/transfers", api.admin(), map[string]any{
		"kind":          "outgoing",
		"scheduledDate": "2030-05-10T09:00:00Z",
		"moves": []map[string]any{{
			"productId": productID,
			"quantity":  5,
			"saleLine":  map[string]any{"orderId": saleOrderID, "lineId": uuid.NewString()},
		}},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "draft", decode(t, w)["state"])

	reader := api.token(auth.Identity{UserID: "u-stock", Roles: []string{"stock.user"}})
	w = api.do(http.MethodGet, "/api/v1/forecast/rows?productId="+productID, reader, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := decode(t, w)
	items := body["items"].([]any)
	require.Len(t, items, 1)

	row := items[0].(map[string]any)
	assert.Equal(t, "2030-05-10", row["date"])
	assert.InDelta(t, 5.0, row["saleOrderQuantity"], 1e-9)
	assert.Equal(t, []any{saleOrderID}, row["saleOrderRefs"])

	w = api.do(http.MethodGet, "/api/v1/forecast/calendar?dateFrom=2030-05-01&dateTo=2030-05-31", reader, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Len(t, decode(t, w)["days"], 1)
}

func TestTransferCreate_ValidationError(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(http.MethodPost, "/api/v1/document/transfers", api.admin(), map[string]any{
		"kind":  "sideways",
		"moves": []map[string]any{{"productId": uuid.NewString(), "quantity": 1}},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", decode(t, w)["code"])
}

func TestIdempotentReplay(t *testing.T) {
	api := newTestAPI(t)
	token := api.admin()
	body := map[string]any{"code": "P-IDEM", "name": "Idempotent"}

	first := api.do(http.MethodPost, "/api/v1/catalog/products", token, body, "X-Idempotency-Key", "key-1")
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())

	second := api.do(http.MethodPost, "/api/v1/catalog/products", token, body, "X-Idempotency-Key", "key-1")
	require.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replay"))
	assert.JSONEq(t, first.Body.String(), second.Body.String())

	other := api.do(http.MethodPost, "/api/v1/catalog/products", token, map[string]any{"code": "P-X", "name": "Other"}, "X-Idempotency-Key", "key-1")
	assert.Equal(t, http.StatusConflict, other.Code)

	w := api.do(http.MethodGet, "/api/v1/catalog/products?search=P-IDEM", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode(t, w)["totalCount"])
}

func TestIdempotentReplay_OfFailure(t *testing.T) {
	api := newTestAPI(t)
	token := api.admin()
	body := map[string]any{"code": "P-1", "name": "One"}

	require.Equal(t, http.StatusCreated, api.do(http.MethodPost, "/api/v1/catalog/products", token, body).Code)

	dup := api.do(http.MethodPost, "/api/v1/catalog/products", token, body, "X-Idempotency-Key", "key-dup")
	require.Equal(t, http.StatusConflict, dup.Code, dup.Body.String())

	replay := api.do(http.MethodPost, "/api/v1/catalog/products", token, body, "X-Idempotency-Key", "key-dup")
	assert.Equal(t, http.StatusConflict, replay.Code)
	assert.Equal(t, "true", replay.Header().Get("Idempotent-Replay"))
	assert.JSONEq(t, dup.Body.String(), replay.Body.String())
}
