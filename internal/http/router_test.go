package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/steinfletcher/apitest"
	jsonpath "github.com/steinfletcher/apitest-jsonpath"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grocerly/auth-api/internal/auth"
	"github.com/grocerly/auth-api/internal/config"
	"github.com/grocerly/auth-api/internal/logging"
	"github.com/grocerly/auth-api/internal/password"
	"github.com/grocerly/auth-api/internal/user"
)

const testAdminToken = "test-admin-token"

func newTestRouter(t *testing.T) (http.Handler, *user.MemoryStore) {
	t.Helper()

	cfg := &config.Config{}
	cfg.Server.Env = "test"

	logger := logging.NewLogger(true)
	store := user.NewMemoryStore()

	tokens, err := auth.NewJWTService([]byte("test-secret-test-secret-test-sec"), 7*24*time.Hour)
	require.NoError(t, err)

	service := auth.NewService(store, password.NewHasher(), tokens, logger)
	handler := auth.NewHandler(service, false, 7*24*time.Hour)
	middleware := auth.NewMiddleware(tokens, testAdminToken)

	return NewRouter(cfg, handler, middleware, logger), store
}

func TestHealth(t *testing.T) {
	t.Parallel()

	router, _ := newTestRouter(t)

	apitest.Handler(router).
		Get("/health").
		Expect(t).
		Status(http.StatusOK).
		Assert(jsonpath.Equal(`$.status`, "ok")).
		End()
}

func TestSignupSetsCookieAndNormalizesEmail(t *testing.T) {
	t.Parallel()

	router, _ := newTestRouter(t)

	apitest.Handler(router).
		Post("/signup").
		JSON(`{"name":"Ann","email":"Ann@Example.com","password":"pw123"}`).
		Expect(t).
		Status(http.StatusOK).
		CookiePresent(auth.SessionCookieName).
		Assert(jsonpath.Equal(`$.user.name`, "Ann")).
		Assert(jsonpath.Equal(`$.user.email`, "ann@example.com")).
		End()
}

func TestSignupDuplicateEmailConflicts(t *testing.T) {
	t.Parallel()

	router, _ := newTestRouter(t)

	apitest.Handler(router).
		Post("/signup").
		JSON(`{"name":"Ann","email":"ann@example.com","password":"pw123"}`).
		Expect(t).
		Status(http.StatusOK).
		End()

	apitest.Handler(router).
		Post("/signup").
		JSON(`{"name":"Ann Again","email":"ANN@example.com","password":"other"}`).
		Expect(t).
		Status(http.StatusConflict).
		Assert(jsonpath.Equal(`$.code`, "email_already_exists")).
		End()
}

// TestSignupConcurrentDuplicates hammers one email with parallel
// signups. The store's uniqueness claim, not the advisory pre-check,
// decides the winner: exactly one request may succeed.
func TestSignupConcurrentDuplicates(t *testing.T) {
	t.Parallel()

	router, _ := newTestRouter(t)

	const attempts = 16
	statuses := make(chan int, attempts)

	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			req := httptest.NewRequest(http.MethodPost, "/signup",
				strings.NewReader(`{"name":"Ann","email":"ann@example.com","password":"pw123"}`))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			statuses <- rec.Code
		}()
	}
	wg.Wait()
	close(statuses)

	created, conflicts := 0, 0
	for code := range statuses {
		switch code {
		case http.StatusOK:
			created++
		case http.StatusConflict:
			conflicts++
		default:
			t.Errorf("unexpected signup status %d", code)
		}
	}

	assert.Equal(t, 1, created)
	assert.Equal(t, attempts-1, conflicts)
}

func TestSecurityHeaders(t *testing.T) {
	t.Parallel()

	router, _ := newTestRouter(t)

	apitest.Handler(router).
		Get("/health").
		Expect(t).
		Status(http.StatusOK).
		Header("X-Content-Type-Options", "nosniff").
		Header("X-Frame-Options", "DENY").
		Header("Cache-Control", "no-store").
		Header("Content-Security-Policy", "default-src 'none'").
		End()
}

func TestLoginOutcomes(t *testing.T) {
	t.Parallel()

	router, _ := newTestRouter(t)

	apitest.Handler(router).
		Post("/signup").
		JSON(`{"name":"Ann","email":"Ann@Example.com","password":"pw123"}`).
		Expect(t).
		Status(http.StatusOK).
		End()

	apitest.Handler(router).
		Post("/login").
		JSON(`{"email":"ann@example.com","password":"pw123"}`).
		Expect(t).
		Status(http.StatusOK).
		CookiePresent(auth.SessionCookieName).
		Assert(jsonpath.Equal(`$.user.name`, "Ann")).
		End()

	// Wrong password and unknown email produce identical responses.
	apitest.Handler(router).
		Post("/login").
		JSON(`{"email":"ann@example.com","password":"wrong"}`).
		Expect(t).
		Status(http.StatusUnauthorized).
		Body(`{"error":"invalid credentials","code":"invalid_credentials"}`).
		End()

	apitest.Handler(router).
		Post("/login").
		JSON(`{"email":"nobody@example.com","password":"pw123"}`).
		Expect(t).
		Status(http.StatusUnauthorized).
		Body(`{"error":"invalid credentials","code":"invalid_credentials"}`).
		End()
}

func TestMeWithoutSession(t *testing.T) {
	t.Parallel()

	router, _ := newTestRouter(t)

	apitest.Handler(router).
		Get("/me").
		Expect(t).
		Status(http.StatusUnauthorized).
		Assert(jsonpath.Equal(`$.code`, "not_authenticated")).
		End()

	// An invalid cookie is ignored, not rejected in its own right.
	apitest.Handler(router).
		Get("/me").
		Cookie(auth.SessionCookieName, "garbage").
		Expect(t).
		Status(http.StatusUnauthorized).
		Assert(jsonpath.Equal(`$.code`, "not_authenticated")).
		End()
}

// TestSessionLifecycle drives the whole flow through a real client with
// a cookie jar: signup, me, logout, me again.
func TestSessionLifecycle(t *testing.T) {
	t.Parallel()

	router, _ := newTestRouter(t)
	srv := httptest.NewServer(router)
	defer srv.Close()

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	client := &http.Client{Jar: jar}

	// Signup.
	resp, err := client.Post(srv.URL+"/signup", "application/json",
		bytes.NewBufferString(`{"name":"Ann","email":"Ann@Example.com","password":"pw123"}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	cookie := sessionCookie(t, resp)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, "/", cookie.Path)
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
	assert.Equal(t, 7*24*60*60, cookie.MaxAge)

	// Me, authenticated by the jarred cookie.
	resp, err = client.Get(srv.URL + "/me")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var me struct {
		User struct {
			Name  string `json:"name"`
			Email string `json:"email"`
		} `json:"user"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&me))
	resp.Body.Close()
	assert.Equal(t, "Ann", me.User.Name)
	assert.Equal(t, "ann@example.com", me.User.Email)

	// Logout clears the cookie.
	resp, err = client.Post(srv.URL+"/logout", "application/json", nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		OK bool `json:"ok"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	resp.Body.Close()
	assert.True(t, out.OK)

	cleared := sessionCookie(t, resp)
	assert.Empty(t, cleared.Value)
	assert.Less(t, cleared.MaxAge, 0)

	// The session is gone.
	resp, err = client.Get(srv.URL + "/me")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestMigratePasswordsEndpoint(t *testing.T) {
	t.Parallel()

	router, store := newTestRouter(t)

	// A legacy account whose credential is stored in the clear.
	_, err := store.Create(t.Context(), "Bob", "bob@example.com", "hunter2")
	require.NoError(t, err)

	// The route requires the admin token.
	apitest.Handler(router).
		Post("/migrate-passwords").
		Expect(t).
		Status(http.StatusUnauthorized).
		End()

	apitest.Handler(router).
		Post("/migrate-passwords").
		Header("X-Admin-Token", testAdminToken).
		Expect(t).
		Status(http.StatusOK).
		Body(`{"updated":1}`).
		End()

	// Idempotent: the second run has nothing left to do.
	apitest.Handler(router).
		Post("/migrate-passwords").
		Header("X-Admin-Token", testAdminToken).
		Expect(t).
		Status(http.StatusOK).
		Body(`{"updated":0}`).
		End()

	// The legacy password still logs in against the new hash.
	apitest.Handler(router).
		Post("/login").
		JSON(`{"email":"bob@example.com","password":"hunter2"}`).
		Expect(t).
		Status(http.StatusOK).
		End()
}

func sessionCookie(t *testing.T, resp *http.Response) *http.Cookie {
	t.Helper()
	for _, c := range resp.Cookies() {
		if c.Name == auth.SessionCookieName {
			return c
		}
	}
	t.Fatalf("response has no %s cookie", auth.SessionCookieName)
	return nil
}
