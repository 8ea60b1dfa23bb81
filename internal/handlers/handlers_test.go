package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/symptomly/apiserver/internal/analysis"
	"github.com/symptomly/apiserver/internal/logging"
	"github.com/symptomly/apiserver/internal/services"
	"github.com/symptomly/apiserver/internal/store"
	"github.com/symptomly/apiserver/types"
)

// In-memory fakes with the same error semantics as the Postgres store.

type fakeUserRepo struct {
	mu     sync.Mutex
	nextID int64
	users  map[int64]types.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[int64]types.User)}
}

func (r *fakeUserRepo) GetByID(ctx context.Context, id int64) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (r *fakeUserRepo) GetByEmail(ctx context.Context, email string) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.Email == email {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *fakeUserRepo) GetByAPIKey(ctx context.Context, apiKey string) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.APIKey == apiKey {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *fakeUserRepo) Create(ctx context.Context, user types.User) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Email == user.Email {
			return types.User{}, store.ErrDuplicateEmail
		}
	}
	r.nextID++
	user.ID = r.nextID
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	r.users[user.ID] = user
	return user, nil
}

func (r *fakeUserRepo) Delete(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.users, id)
	return nil
}

type fakeCheckRepo struct {
	mu     sync.Mutex
	nextID int64
	checks []types.SymptomCheck
}

func (r *fakeCheckRepo) Create(ctx context.Context, check types.SymptomCheck) (types.SymptomCheck, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	check.ID = r.nextID
	check.CreatedAt = time.Now()
	check.UpdatedAt = check.CreatedAt
	r.checks = append(r.checks, check)
	return check, nil
}

func (r *fakeCheckRepo) ListByUser(ctx context.Context, userID int64) ([]types.SymptomCheck, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]types.SymptomCheck, 0)
	for _, check := range r.checks {
		if check.UserID == userID {
			out = append(out, check)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

type stubAnalyzer struct {
	mu   sync.Mutex
	text string
	err  error
}

func (a *stubAnalyzer) Analyze(ctx context.Context, input types.SymptomInput) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.text, a.err
}

func (a *stubAnalyzer) Healthy(ctx context.Context) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.err == nil
}

func (a *stubAnalyzer) set(text string, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.text = text
	a.err = err
}

func newTestRouter(t *testing.T) (*chi.Mux, *stubAnalyzer) {
	t.Helper()

	log := logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	analyzer := &stubAnalyzer{text: "analysis text"}

	authService := services.NewAuthService(newFakeUserRepo())
	checkService := services.NewSymptomCheckService(&fakeCheckRepo{}, analyzer, log)

	router := chi.NewRouter()
	router.Route("/auth", func(r chi.Router) {
		AuthRouter(r, authService)
	})
	SymptomCheckRouter(router, checkService, RequireAPIKey(authService))

	return router, analyzer
}

func doJSON(t *testing.T, router http.Handler, method, path, apiKey string, payload any) *httptest.ResponseRecorder {
	t.Helper()

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set(APIKeyHeader, apiKey)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func signup(t *testing.T, router http.Handler, email, password string) UserResponse {
	t.Helper()

	rec := doJSON(t, router, http.MethodPost, "/auth/signup", "", map[string]string{
		"email":    email,
		"password": password,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp UserResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.APIKey)
	return resp
}

func validSubmission() map[string]any {
	return map[string]any{
		"age":      30,
		"sex":      "male",
		"symptoms": "fever and chills",
		"duration": "2 days",
		"severity": 7,
	}
}

func TestSignupSigninAndHistoryScenario(t *testing.T) {
	router, _ := newTestRouter(t)

	user := signup(t, router, "a@x.com", "secret123")

	// Submit a check with the issued key.
	rec := doJSON(t, router, http.MethodPost, "/symptom-check", user.APIKey, validSubmission())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var check types.SymptomCheck
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &check))
	assert.NotZero(t, check.ID)
	assert.NotEmpty(t, check.Analysis)
	assert.Equal(t, types.StatusCompleted, check.Status)
	assert.Equal(t, 30, check.Input.Age)

	// History contains exactly that entry.
	rec = doJSON(t, router, http.MethodGet, "/symptom-history", user.APIKey, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var history SymptomHistoryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &history))
	require.Equal(t, 1, history.TotalCount)
	assert.Equal(t, check.ID, history.Checks[0].ID)

	// A bogus key is rejected on every protected endpoint.
	rec = doJSON(t, router, http.MethodGet, "/symptom-history", "bogus", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = doJSON(t, router, http.MethodPost, "/symptom-check", "bogus", validSubmission())
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Signin returns the same key again.
	rec = doJSON(t, router, http.MethodPost, "/auth/signin", "", map[string]string{
		"email":    "a@x.com",
		"password": "secret123",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var signedIn UserResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &signedIn))
	assert.Equal(t, user.APIKey, signedIn.APIKey)
}

func TestSignupValidationAndDuplicates(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/auth/signup", "", map[string]string{
		"email": "a@x.com", "password": "short",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/auth/signup", "", map[string]string{
		"email": "not-an-email", "password": "secret123",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	signup(t, router, "a@x.com", "secret123")
	rec = doJSON(t, router, http.MethodPost, "/auth/signup", "", map[string]string{
		"email": "a@x.com", "password": "anotherpassword",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestSigninInvalidCredentialsAreUniform(t *testing.T) {
	router, _ := newTestRouter(t)
	signup(t, router, "a@x.com", "secret123")

	wrongPass := doJSON(t, router, http.MethodPost, "/auth/signin", "", map[string]string{
		"email": "a@x.com", "password": "wrongpassword",
	})
	unknown := doJSON(t, router, http.MethodPost, "/auth/signin", "", map[string]string{
		"email": "nobody@x.com", "password": "secret123",
	})

	assert.Equal(t, http.StatusUnauthorized, wrongPass.Code)
	assert.Equal(t, http.StatusUnauthorized, unknown.Code)
	assert.Equal(t, wrongPass.Body.String(), unknown.Body.String())
}

func TestSubmitValidation(t *testing.T) {
	router, _ := newTestRouter(t)
	user := signup(t, router, "a@x.com", "secret123")

	cases := []struct {
		name  string
		patch func(m map[string]any)
	}{
		{"age zero", func(m map[string]any) { m["age"] = 0 }},
		{"age over bound", func(m map[string]any) { m["age"] = 121 }},
		{"severity low", func(m map[string]any) { m["severity"] = 0 }},
		{"severity high", func(m map[string]any) { m["severity"] = 11 }},
		{"symptoms too short", func(m map[string]any) { m["symptoms"] = "cough" }},
		{"missing sex", func(m map[string]any) { m["sex"] = "" }},
		{"missing duration", func(m map[string]any) { m["duration"] = "" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			payload := validSubmission()
			tc.patch(payload)
			rec := doJSON(t, router, http.MethodPost, "/symptom-check", user.APIKey, payload)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}

	// Nothing was persisted for the rejected submissions.
	rec := doJSON(t, router, http.MethodGet, "/symptom-history", user.APIKey, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var history SymptomHistoryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &history))
	assert.Equal(t, 0, history.TotalCount)
}

func TestSubmitMapsAnalysisFailures(t *testing.T) {
	router, analyzer := newTestRouter(t)
	user := signup(t, router, "a@x.com", "secret123")

	analyzer.set("", fmt.Errorf("%w: budget exhausted", analysis.ErrUnavailable))
	rec := doJSON(t, router, http.MethodPost, "/symptom-check", user.APIKey, validSubmission())
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	analyzer.set("", fmt.Errorf("%w: deadline", analysis.ErrTimeout))
	rec = doJSON(t, router, http.MethodPost, "/symptom-check", user.APIKey, validSubmission())
	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)

	// Both failures were recorded with failed status.
	rec = doJSON(t, router, http.MethodGet, "/symptom-history", user.APIKey, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var history SymptomHistoryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &history))
	require.Equal(t, 2, history.TotalCount)
	for _, check := range history.Checks {
		assert.Equal(t, types.StatusFailed, check.Status)
		assert.NotEmpty(t, check.Analysis)
	}
}

func TestHistoryIsIsolatedPerKey(t *testing.T) {
	router, _ := newTestRouter(t)

	alice := signup(t, router, "alice@x.com", "secret123")
	bob := signup(t, router, "bob@x.com", "secret123")

	rec := doJSON(t, router, http.MethodPost, "/symptom-check", alice.APIKey, validSubmission())
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/symptom-history", bob.APIKey, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var history SymptomHistoryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &history))
	assert.Equal(t, 0, history.TotalCount)
}

func TestMissingAPIKeyRejectedBeforeProcessing(t *testing.T) {
	router, analyzer := newTestRouter(t)
	analyzer.set("", fmt.Errorf("analyzer must not be called"))

	rec := doJSON(t, router, http.MethodPost, "/symptom-check", "", validSubmission())
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
