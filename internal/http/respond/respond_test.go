package respond

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/hongminglow/ekonzims-be/internal/service"
)

func TestFailureStatusCodes(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{&service.ValidationError{Field: "email", Message: "is required"}, http.StatusBadRequest},
		{service.ErrConsentRequired, http.StatusBadRequest},
		{service.ErrInvalidOrExpiredToken, http.StatusBadRequest},
		{service.ErrDuplicateEmail, http.StatusConflict},
		{service.ErrInvalidCredentials, http.StatusUnauthorized},
		{service.ErrUnauthorized, http.StatusUnauthorized},
		{service.ErrForbidden, http.StatusForbidden},
		{service.ErrUserNotFound, http.StatusNotFound},
		{fmt.Errorf("find user: %w", service.ErrStoreUnavailable), http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		Failure(rec, zap.NewNop(), tc.err)
		if rec.Code != tc.code {
			t.Fatalf("%v: status = %d, want %d", tc.err, rec.Code, tc.code)
		}
		var env Envelope
		if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if env.Code != tc.code || env.Message == "" {
			t.Fatalf("envelope = %+v", env)
		}
	}
}

func TestFailureHidesInternalDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	Failure(rec, zap.NewNop(), errors.New("pq: password authentication failed for user"))
	var env Envelope
	_ = json.NewDecoder(rec.Body).Decode(&env)
	if env.Message != "internal server error" {
		t.Fatalf("message = %q", env.Message)
	}
}
