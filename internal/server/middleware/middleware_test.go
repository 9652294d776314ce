package middleware_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/taskboard/internal/auth"
	"github.com/gosuda/taskboard/internal/domain"
	"github.com/gosuda/taskboard/internal/server/middleware"
)

const testJWTSecret = "test-secret-that-is-at-least-32-bytes-long"

// ---------------------------------------------------------------------------
// Mock implementations
// ---------------------------------------------------------------------------

type mockUsers struct {
	getByUsernameFunc func(ctx context.Context, username string) (*domain.User, error)
}

func (m *mockUsers) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return m.getByUsernameFunc(ctx, username)
}

func newMockUsers() *mockUsers {
	return &mockUsers{getByUsernameFunc: func(_ context.Context, username string) (*domain.User, error) {
		if username == "alice" {
			return &domain.User{ID: 7, Username: "alice"}, nil
		}
		return nil, domain.ErrNotFound
	}}
}

type mockAllower struct {
	allowFunc func(ctx context.Context, userID int64) (bool, error)
}

func (m *mockAllower) Allow(ctx context.Context, userID int64) (bool, error) {
	return m.allowFunc(ctx, userID)
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
})

// contextHandler captures the user set by middleware.
type contextHandler struct {
	user   *domain.User
	called bool
}

func (h *contextHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.called = true
	h.user, _ = middleware.UserFromContext(r.Context())
	w.WriteHeader(http.StatusOK)
}

func newVerifier(users auth.UserLookup) *auth.Verifier {
	return auth.NewVerifier(auth.NewJWTDecoder(testJWTSecret, "HS256"), users)
}

func issue(t *testing.T, username string, ttl time.Duration) string {
	t.Helper()

	tok, err := auth.IssueAccessToken(testJWTSecret, "HS256", username, ttl)
	require.NoError(t, err)
	return tok
}

func withUser(r *http.Request, id int64) *http.Request {
	return r.WithContext(middleware.WithUser(r.Context(), &domain.User{ID: id}))
}

// ===========================================================================
// 1. Context helpers
// ===========================================================================

func TestUserFromContext(t *testing.T) {
	t.Parallel()

	t.Run("present", func(t *testing.T) {
		t.Parallel()

		want := &domain.User{ID: 3, Username: "carol"}
		ctx := middleware.WithUser(context.Background(), want)

		got, ok := middleware.UserFromContext(ctx)
		require.True(t, ok)
		assert.Equal(t, want, got)

		id, ok := middleware.UserIDFromContext(ctx)
		require.True(t, ok)
		assert.Equal(t, int64(3), id)
	})

	t.Run("absent", func(t *testing.T) {
		t.Parallel()

		_, ok := middleware.UserFromContext(context.Background())
		assert.False(t, ok)

		_, ok = middleware.UserIDFromContext(context.Background())
		assert.False(t, ok)
	})

	t.Run("nil user", func(t *testing.T) {
		t.Parallel()

		ctx := middleware.WithUser(context.Background(), nil)
		_, ok := middleware.UserFromContext(ctx)
		assert.False(t, ok)
	})
}

// ===========================================================================
// 2. Auth middleware
// ===========================================================================

func TestAuth_ValidToken_PopulatesContext(t *testing.T) {
	t.Parallel()

	capture := &contextHandler{}
	handler := middleware.Auth(newVerifier(newMockUsers()))(capture)

	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	req.Header.Set("Authorization", "Bearer "+issue(t, "alice", time.Hour))
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	require.True(t, capture.called, "inner handler must be called")
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, capture.user)
	assert.Equal(t, int64(7), capture.user.ID)
}

func TestAuth_Rejections(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		authHeader string
		wantStatus int
	}{
		{name: "no header", authHeader: "", wantStatus: http.StatusUnauthorized},
		{name: "garbage", authHeader: "Bearer not-a-jwt", wantStatus: http.StatusUnauthorized},
		{name: "expired", authHeader: "Bearer " + issue(t, "alice", -time.Minute), wantStatus: http.StatusUnauthorized},
		{name: "unknown user", authHeader: "Bearer " + issue(t, "mallory", time.Hour), wantStatus: http.StatusUnauthorized},
		{name: "scheme only", authHeader: "Bearer ", wantStatus: http.StatusUnauthorized},
	}

	handler := middleware.Auth(newVerifier(newMockUsers()))(okHandler)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), "missing or invalid credentials")
		})
	}
}

func TestAuth_BearerFormat(t *testing.T) {
	t.Parallel()

	tok := issue(t, "alice", time.Hour)
	handler := middleware.Auth(newVerifier(newMockUsers()))(okHandler)

	tests := []struct {
		name       string
		authHeader string
	}{
		{name: "canonical", authHeader: "Bearer " + tok},
		{name: "lowercase scheme", authHeader: "bearer " + tok},
		{name: "bare token", authHeader: tok},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
			req.Header.Set("Authorization", tt.authHeader)
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusOK, rec.Code)
		})
	}
}

func TestAuth_StoreFailure_Returns500(t *testing.T) {
	t.Parallel()

	users := &mockUsers{getByUsernameFunc: func(context.Context, string) (*domain.User, error) {
		return nil, errors.New("connection refused")
	}}
	handler := middleware.Auth(newVerifier(users))(okHandler)

	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	req.Header.Set("Authorization", "Bearer "+issue(t, "alice", time.Hour))
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

// ===========================================================================
// 3. RateLimit middleware
// ===========================================================================

func TestRateLimit_NoUserInContext_PassesThrough(t *testing.T) {
	t.Parallel()

	called := false
	limiter := &mockAllower{allowFunc: func(context.Context, int64) (bool, error) {
		called = true
		return false, nil
	}}
	handler := middleware.RateLimit(limiter)(okHandler)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", http.NoBody))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, called)
}

func TestRateLimit_Denied_Returns429(t *testing.T) {
	t.Parallel()

	limiter := &mockAllower{allowFunc: func(_ context.Context, userID int64) (bool, error) {
		return userID != 9, nil
	}}
	handler := middleware.RateLimit(limiter)(okHandler)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, withUser(httptest.NewRequest(http.MethodGet, "/", http.NoBody), 9))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, withUser(httptest.NewRequest(http.MethodGet, "/", http.NoBody), 10))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimit_LimiterFailure_FailsOpen(t *testing.T) {
	t.Parallel()

	limiter := &mockAllower{allowFunc: func(context.Context, int64) (bool, error) {
		return false, errors.New("redis: connection refused")
	}}
	handler := middleware.RateLimit(limiter)(okHandler)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, withUser(httptest.NewRequest(http.MethodGet, "/", http.NoBody), 1))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLocalLimiter_BurstExceeded(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	handler := middleware.RateLimit(middleware.NewLocalLimiter(ctx, 0.001, 2))(okHandler)

	for i := range 2 {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, withUser(httptest.NewRequest(http.MethodGet, "/", http.NoBody), 1))
		assert.Equal(t, http.StatusOK, rec.Code, "request %d within burst", i+1)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, withUser(httptest.NewRequest(http.MethodGet, "/", http.NoBody), 1))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), "rate limit exceeded")
}

func TestLocalLimiter_IndependentPerUser(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	limiter := middleware.NewLocalLimiter(ctx, 0.001, 1)

	ok, err := limiter.Allow(ctx, 1)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = limiter.Allow(ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok, "user 1 exhausted its burst")

	ok, err = limiter.Allow(ctx, 2)
	require.NoError(t, err)
	assert.True(t, ok, "user 2 has its own bucket")
}

func TestRateLimitByIP(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	handler := middleware.RateLimitByIP(ctx, 0.001, 1)(okHandler)

	req := func(addr string) *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodGet, "/ws/cards/1", http.NoBody)
		r.RemoteAddr = addr
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, r)
		return rec
	}

	assert.Equal(t, http.StatusOK, req("10.0.0.1").Code)
	assert.Equal(t, http.StatusTooManyRequests, req("10.0.0.1").Code)
	assert.Equal(t, http.StatusOK, req("10.0.0.2").Code)
}

// ===========================================================================
// 4. Request logger
// ===========================================================================

func TestRequestLogger_PassesStatusThrough(t *testing.T) {
	t.Parallel()

	handler := middleware.RequestLogger(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", http.NoBody))

	assert.Equal(t, http.StatusTeapot, rec.Code)
}
