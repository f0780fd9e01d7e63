package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func whoami(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"user_id": c.Get("user_id"), "role": c.Get("role")})
}

func serve(e *echo.Echo, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestJWTAuth(t *testing.T) {
	t.Parallel()
	e := echo.New()
	e.GET("/me", whoami, JWTAuth(testSecret))

	token, err := IssueToken(testSecret, "acc-1", RoleInvestor, time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := serve(e, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"user_id":"acc-1","role":"investor"}`, rec.Body.String())

	rec = serve(e, httptest.NewRequest(http.MethodGet, "/me", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	expired, err := IssueToken(testSecret, "acc-1", RoleInvestor, -time.Minute)
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+expired)
	require.Equal(t, http.StatusUnauthorized, serve(e, req).Code)

	forged, err := IssueToken("other-secret", "acc-1", RoleAdmin, time.Hour)
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+forged)
	require.Equal(t, http.StatusUnauthorized, serve(e, req).Code)

	noExp := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"user_id": "acc-1", "role": RoleAdmin})
	signed, err := noExp.SignedString([]byte(testSecret))
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	require.Equal(t, http.StatusUnauthorized, serve(e, req).Code)
}

func TestRoleGuards(t *testing.T) {
	t.Parallel()
	e := echo.New()
	auth := JWTAuth(testSecret)
	e.GET("/wallet", whoami, auth, RequireRoles(RoleInvestor, RoleNGO))
	e.GET("/admin", whoami, auth, AdminGuard)

	call := func(path, role string) int {
		token, err := IssueToken(testSecret, "acc-1", role, time.Hour)
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Authorization", "Bearer "+token)
		return serve(e, req).Code
	}

	require.Equal(t, http.StatusOK, call("/wallet", RoleNGO))
	require.Equal(t, http.StatusForbidden, call("/wallet", RoleAdmin))
	require.Equal(t, http.StatusOK, call("/admin", RoleAdmin))
	require.Equal(t, http.StatusForbidden, call("/admin", RoleInvestor))
}

type memoryIdempotency struct {
	mu    sync.Mutex
	resp  map[string]StoredResponse
	locks map[string]bool
}

func newMemoryIdempotency() *memoryIdempotency {
	return &memoryIdempotency{resp: map[string]StoredResponse{}, locks: map[string]bool{}}
}

func (m *memoryIdempotency) Get(_ context.Context, key string) (StoredResponse, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.resp[key]
	return r, ok, nil
}

func (m *memoryIdempotency) Lock(_ context.Context, key string, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.locks[key] {
		return false, nil
	}
	m.locks[key] = true
	return true, nil
}

func (m *memoryIdempotency) Unlock(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locks, key)
	return nil
}

func (m *memoryIdempotency) Save(_ context.Context, key string, resp StoredResponse, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resp[key] = resp
	return nil
}

func TestIdempotencyReplaysStoredResponse(t *testing.T) {
	t.Parallel()
	store := newMemoryIdempotency()
	calls := 0
	e := echo.New()
	e.POST("/wallet/withdraw", func(c echo.Context) error {
		calls++
		return c.JSON(http.StatusCreated, echo.Map{"call": calls})
	}, func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set("user_id", "acc-1")
			return next(c)
		}
	}, Idempotency(store, time.Hour))

	post := func(key, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/wallet/withdraw", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		if key != "" {
			req.Header.Set(HeaderIdempotencyKey, key)
		}
		return serve(e, req)
	}

	first := post("k1", `{"amount":10}`)
	require.Equal(t, http.StatusCreated, first.Code)
	require.JSONEq(t, `{"call":1}`, first.Body.String())

	replay := post("k1", `{"amount":10}`)
	require.Equal(t, http.StatusCreated, replay.Code)
	require.Equal(t, "true", replay.Header().Get("X-Idempotency-Hit"))
	require.JSONEq(t, `{"call":1}`, replay.Body.String())
	require.Equal(t, 1, calls)

	reused := post("k1", `{"amount":99}`)
	require.Equal(t, http.StatusConflict, reused.Code)

	require.Equal(t, http.StatusCreated, post("", `{"amount":10}`).Code)
	require.Equal(t, http.StatusCreated, post("k2", `{"amount":10}`).Code)
	require.Equal(t, 3, calls)
}

func TestIdempotencyDoesNotStoreServerErrors(t *testing.T) {
	t.Parallel()
	store := newMemoryIdempotency()
	fail := true
	e := echo.New()
	e.POST("/wallet/add-funds", func(c echo.Context) error {
		if fail {
			return c.JSON(http.StatusInternalServerError, echo.Map{"code": "transient_failure"})
		}
		return c.JSON(http.StatusOK, echo.Map{"ok": true})
	}, Idempotency(store, time.Hour))

	req := httptest.NewRequest(http.MethodPost, "/wallet/add-funds", strings.NewReader(`{}`))
	req.Header.Set(HeaderIdempotencyKey, "retry-me")
	require.Equal(t, http.StatusInternalServerError, serve(e, req).Code)

	fail = false
	req = httptest.NewRequest(http.MethodPost, "/wallet/add-funds", strings.NewReader(`{}`))
	req.Header.Set(HeaderIdempotencyKey, "retry-me")
	rec := serve(e, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, rec.Header().Get("X-Idempotency-Hit"))
}

func TestIdempotencyRejectsConcurrentDuplicate(t *testing.T) {
	t.Parallel()
	store := newMemoryIdempotency()
	_, err := store.Lock(context.Background(), "idem::POST:/wallet/invest:busy", time.Minute)
	require.NoError(t, err)

	e := echo.New()
	e.POST("/wallet/invest", func(c echo.Context) error {
		return c.NoContent(http.StatusCreated)
	}, Idempotency(store, time.Hour))

	req := httptest.NewRequest(http.MethodPost, "/wallet/invest", strings.NewReader(`{}`))
	req.Header.Set(HeaderIdempotencyKey, "busy")
	require.Equal(t, http.StatusConflict, serve(e, req).Code)
}
