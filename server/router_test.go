package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/user/shopfront-go/auth"
	"github.com/user/shopfront-go/config"
	"github.com/user/shopfront-go/products"
	"github.com/user/shopfront-go/ratelimit"
	"github.com/user/shopfront-go/users"
)

const testSecret = "router-test-secret"

var testAuthConfig = config.AuthConfig{
	JWTSecret:     testSecret,
	TokenDuration: 24 * time.Hour,
	Issuer:        "shopfront",
	BcryptCost:    bcrypt.MinCost,
}

func newTestRouter(t *testing.T, store users.Store, limiter ratelimit.Limiter) http.Handler {
	t.Helper()
	return newTestRouterWith(t, Deps{Store: store, Limiter: limiter})
}

func newTestRouterWith(t *testing.T, deps Deps) http.Handler {
	t.Helper()
	if deps.Store == nil {
		deps.Store = users.NewMemoryStore()
	}
	deps.Auth = auth.NewAuthService(deps.Store, testAuthConfig)
	deps.Logger = zerolog.Nop()
	return NewRouter(deps)
}

func send(h http.Handler, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	return sendFrom(h, "192.0.2.1:1234", method, path, body, header)
}

// sendFrom issues a request whose TCP peer is remoteAddr.
func sendFrom(h http.Handler, remoteAddr, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	req.RemoteAddr = remoteAddr
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func registerAndLogin(t *testing.T, h http.Handler, email, password string) string {
	t.Helper()
	rr := send(h, http.MethodPost, "/register", `{"username":"shopper","email":"`+email+`","password":"`+password+`"}`, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = send(h, http.MethodPost, "/login", `{"email":"`+email+`","password":"`+password+`"}`, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp auth.TokenResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func TestRouter_RegisterLoginListProducts(t *testing.T) {
	h := newTestRouter(t, nil, nil)
	token := registerAndLogin(t, h, "ann@example.com", "secret")

	rr := send(h, http.MethodGet, "/products", "", map[string]string{"Authorization": "Bearer " + token})
	require.Equal(t, http.StatusOK, rr.Code)

	var got []products.Product
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	want := []products.Product{
		{ID: 1, Name: "Product 1", Price: 9.99},
		{ID: 2, Name: "Product 2", Price: 19.99},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("GET /products mismatch (-want +got):\n%s", diff)
	}
}

func TestRouter_ProductsRequiresToken(t *testing.T) {
	h := newTestRouter(t, nil, nil)

	expired, _, err := auth.NewTokenIssuer(testSecret, -time.Minute, "shopfront").Issue("user-1", "a@b.com")
	require.NoError(t, err)
	forged, _, err := auth.NewTokenIssuer("another-secret", time.Hour, "shopfront").Issue("user-1", "a@b.com")
	require.NoError(t, err)

	tests := []struct {
		name   string
		header map[string]string
	}{
		{"no header", nil},
		{"empty bearer", map[string]string{"Authorization": "Bearer"}},
		{"garbage", map[string]string{"Authorization": "Bearer abc.def.ghi"}},
		{"expired", map[string]string{"Authorization": "Bearer " + expired}},
		{"wrong secret", map[string]string{"Authorization": "Bearer " + forged}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := send(h, http.MethodGet, "/products", "", tt.header)
			assert.Equal(t, http.StatusUnauthorized, rr.Code)
			assert.Empty(t, rr.Body.String())
		})
	}
}

func TestRouter_LoginFailures(t *testing.T) {
	h := newTestRouter(t, nil, nil)
	registerAndLogin(t, h, "ann@example.com", "secret")

	rr := send(h, http.MethodPost, "/login", `{"email":"ann@example.com","password":"nope"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Empty(t, rr.Body.String())

	rr = send(h, http.MethodPost, "/login", `{"email":"nobody@example.com","password":"secret"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = send(h, http.MethodPost, "/login", `{"email":`, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRouter_LoginMalformedCredentialsAreUnauthorized(t *testing.T) {
	h := newTestRouter(t, nil, nil)
	registerAndLogin(t, h, "ann@example.com", "secret")

	for _, body := range []string{
		`{"email":"nobody","password":"x"}`,
		`{"email":"ann@example.com","password":""}`,
		`{"email":"ann@example.com"}`,
		`{}`,
	} {
		t.Run(body, func(t *testing.T) {
			rr := send(h, http.MethodPost, "/login", body, nil)
			assert.Equal(t, http.StatusUnauthorized, rr.Code)
			assert.Empty(t, rr.Body.String())
		})
	}
}

func TestRouter_DuplicateRegistration(t *testing.T) {
	store := users.NewMemoryStore()
	h := newTestRouter(t, store, nil)

	body := `{"username":"ann","email":"ann@example.com","password":"secret"}`
	assert.Equal(t, http.StatusOK, send(h, http.MethodPost, "/register", body, nil).Code)
	assert.Equal(t, http.StatusOK, send(h, http.MethodPost, "/register", body, nil).Code)
	assert.Len(t, store.ListByEmail("ann@example.com"), 2)
}

func TestRouter_RegisterPasswordTooLong(t *testing.T) {
	store := users.NewMemoryStore()
	h := newTestRouter(t, store, nil)

	body := `{"username":"ann","email":"ann@example.com","password":"` + strings.Repeat("x", 73) + `"}`
	rr := send(h, http.MethodPost, "/register", body, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.JSONEq(t, `{"error":"password: must be at most 72 bytes"}`, rr.Body.String())
	assert.Empty(t, store.ListByEmail("ann@example.com"))

	body = `{"username":"ann","email":"ann@example.com","password":"` + strings.Repeat("x", 72) + `"}`
	assert.Equal(t, http.StatusOK, send(h, http.MethodPost, "/register", body, nil).Code)
}

func TestRouter_LoginThrottle(t *testing.T) {
	h := newTestRouter(t, nil, ratelimit.NewMemoryLimiter(3, time.Minute))
	registerAndLogin(t, h, "ann@example.com", "secret")

	for i := 0; i < 3; i++ {
		rr := send(h, http.MethodPost, "/login", `{"email":"ann@example.com","password":"bad"}`, nil)
		require.Equal(t, http.StatusUnauthorized, rr.Code)
	}

	rr := send(h, http.MethodPost, "/login", `{"email":"ann@example.com","password":"secret"}`, nil)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("Retry-After"))

	// A different client address is not affected.
	rr = sendFrom(h, "198.51.100.20:4000", http.MethodPost, "/login", `{"email":"ann@example.com","password":"secret"}`, nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRouter_LoginThrottleIgnoresForwardedHeaders(t *testing.T) {
	h := newTestRouter(t, nil, ratelimit.NewMemoryLimiter(3, time.Minute))
	registerAndLogin(t, h, "ann@example.com", "secret")

	codes := make([]int, 0, 6)
	for i := 0; i < 6; i++ {
		rr := send(h, http.MethodPost, "/login", `{"email":"ann@example.com","password":"bad"}`, map[string]string{
			"X-Forwarded-For": fmt.Sprintf("203.0.113.%d", i+1),
			"X-Real-IP":       fmt.Sprintf("203.0.113.%d", i+1),
		})
		codes = append(codes, rr.Code)
	}

	assert.Equal(t, []int{401, 401, 401, 429, 429, 429}, codes)
}

func TestRouter_LoginThrottleUsesForwardedHeadersBehindTrustedProxy(t *testing.T) {
	h := newTestRouterWith(t, Deps{Limiter: ratelimit.NewMemoryLimiter(2, time.Minute), TrustedProxy: true})
	registerAndLogin(t, h, "ann@example.com", "secret")

	proxy := "10.0.0.2:8080"
	client := map[string]string{"X-Forwarded-For": "203.0.113.7"}
	for i := 0; i < 2; i++ {
		rr := sendFrom(h, proxy, http.MethodPost, "/login", `{"email":"ann@example.com","password":"bad"}`, client)
		require.Equal(t, http.StatusUnauthorized, rr.Code)
	}

	rr := sendFrom(h, proxy, http.MethodPost, "/login", `{"email":"ann@example.com","password":"secret"}`, client)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)

	// Another client behind the same proxy keeps its own counter.
	rr = sendFrom(h, proxy, http.MethodPost, "/login", `{"email":"ann@example.com","password":"secret"}`, map[string]string{"X-Forwarded-For": "203.0.113.8"})
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRouter_NotFoundAndMethodNotAllowed(t *testing.T) {
	h := newTestRouter(t, nil, nil)

	assert.Equal(t, http.StatusNotFound, send(h, http.MethodGet, "/orders", "", nil).Code)
	assert.Equal(t, http.StatusMethodNotAllowed, send(h, http.MethodGet, "/login", "", nil).Code)
}

func TestRouter_CORSPreflight(t *testing.T) {
	h := newTestRouter(t, nil, nil)

	rr := send(h, http.MethodOptions, "/login", "", map[string]string{
		"Origin":                        "http://shop.example",
		"Access-Control-Request-Method": http.MethodPost,
	})
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouter_SwaggerDoc(t *testing.T) {
	h := newTestRouter(t, nil, nil)

	rr := send(h, http.MethodGet, "/swagger/doc.json", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"/products"`)
}

type pingStore struct {
	*users.MemoryStore
	err error
}

func (s pingStore) Ping(context.Context) error { return s.err }

func TestRouter_Health(t *testing.T) {
	rr := send(newTestRouter(t, nil, nil), http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())

	rr = send(newTestRouter(t, pingStore{MemoryStore: users.NewMemoryStore()}, nil), http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	down := pingStore{MemoryStore: users.NewMemoryStore(), err: errors.New("connection refused")}
	rr = send(newTestRouter(t, down, nil), http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.JSONEq(t, `{"status":"unavailable"}`, rr.Body.String())
}

func TestRecoverer(t *testing.T) {
	h := recoverer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Empty(t, rr.Body.String())
}
