package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/hongminglow/ekonzims-be/internal/auth"
	"github.com/hongminglow/ekonzims-be/internal/email/emailtest"
	"github.com/hongminglow/ekonzims-be/internal/models/dto"
	"github.com/hongminglow/ekonzims-be/internal/service"
	"github.com/hongminglow/ekonzims-be/internal/storage/postgres"
)

// TestAuthIntegration exercises the register/login endpoints against a live Postgres.
func TestAuthIntegration(t *testing.T) {
	if os.Getenv("RUN_AUTH_INTEGRATION") != "true" {
		t.Skip("set RUN_AUTH_INTEGRATION=true to run this integration test")
	}

	loadDotEnv()
	dbURL := mustGetEnv(t, "DATABASE_URL")

	ctx := context.Background()
	store, err := postgres.NewStore(ctx, dbURL, 5*time.Second)
	if err != nil {
		t.Fatalf("init store: %v", err)
	}
	defer store.Close()

	tokens := auth.NewTokenManager(mustGetEnv(t, "JWT_SECRET"), "ekonzims-integration", time.Hour)
	authSvc := service.NewAuthService(store, auth.NewPasswordHasher(auth.DefaultArgon2Params), tokens,
		auth.NewMemoryRevoker(), &emailtest.Recorder{}, service.AuthOptions{AutoVerifyEmail: true}, zap.NewNop())

	r := chi.NewRouter()
	r.Route("/auth", NewAuthHandler(authSvc, zap.NewNop()).Routes)
	ts := httptest.NewServer(r)
	defer ts.Close()

	addr := fmt.Sprintf("apitest_%d@example.com", time.Now().UnixNano())
	password := fmt.Sprintf("Pass!%d", time.Now().UnixNano())

	registered := requestAuth(t, ts.URL+"/auth/register", http.StatusCreated, map[string]any{
		"email":           addr,
		"password":        password,
		"firstName":       "Api",
		"termsAccepted":   true,
		"privacyAccepted": true,
	})
	if registered.User.Email != addr || !registered.User.EmailVerified {
		t.Fatalf("register mismatch: got %+v", registered.User)
	}

	loggedIn := requestAuth(t, ts.URL+"/auth/login", http.StatusOK, map[string]any{
		"email":    addr,
		"password": password,
	})
	if loggedIn.User.ID != registered.User.ID {
		t.Fatalf("login returned wrong user id: want %s got %s", registered.User.ID, loggedIn.User.ID)
	}
	if strings.TrimSpace(loggedIn.Token) == "" {
		t.Fatal("login response missing token")
	}

	t.Logf("created user %s (id=%s) and logged in via /auth/login", addr, registered.User.ID)
}

func requestAuth(t *testing.T, endpoint string, wantStatus int, payload map[string]any) dto.AuthResponse {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		t.Fatalf("%s status = %d, want %d", endpoint, resp.StatusCode, wantStatus)
	}

	var out struct {
		Data dto.AuthResponse `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out.Data
}

func mustGetEnv(t *testing.T, key string) string {
	t.Helper()
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		t.Fatalf("%s is required", key)
	}
	return val
}

func loadDotEnv() {
	paths := []string{
		".env",
		"../.env",
		"../../.env",
		"../../../.env",
	}
	for _, path := range paths {
		_ = godotenv.Overload(path)
	}
}
