package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/hongminglow/ekonzims-be/internal/auth"
	"github.com/hongminglow/ekonzims-be/internal/email"
	"github.com/hongminglow/ekonzims-be/internal/email/emailtest"
	"github.com/hongminglow/ekonzims-be/internal/models"
	"github.com/hongminglow/ekonzims-be/internal/models/dto"
	"github.com/hongminglow/ekonzims-be/internal/storage"
)

func TestRegisterReturnsViewAndToken(t *testing.T) {
	e := newEnv(t, AuthOptions{})
	resp := e.register(t, "alice@example.com")

	if resp.Token == "" {
		t.Fatal("empty session token")
	}
	raw, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	body := string(raw)
	for _, leak := range []string{"secret123", "argon2id", "password", "Martin"} {
		if strings.Contains(body, leak) {
			t.Fatalf("response leaks %q: %s", leak, body)
		}
	}
	if resp.User.DisplayName != "Alice M." {
		t.Fatalf("display name = %q", resp.User.DisplayName)
	}
	claims, err := e.tokens.Parse(resp.Token)
	if err != nil || claims.UserID() != resp.User.ID {
		t.Fatalf("token claims = %+v, %v", claims, err)
	}

	stored := e.user(t, resp.User.ID)
	if stored.PasswordHash == "secret123" || !auth.NewPasswordHasher(cheapArgon2).Verify("secret123", stored.PasswordHash) {
		t.Fatal("stored digest does not verify the original password")
	}

	if _, err := e.auth.Register(context.Background(), registration("alice@example.com")); !errors.Is(err, ErrDuplicateEmail) {
		t.Fatalf("second registration: got %v", err)
	}
}

func TestRegisterVerificationFlow(t *testing.T) {
	e := newEnv(t, AuthOptions{})
	resp := e.register(t, "alice@example.com")
	if resp.User.EmailVerified {
		t.Fatal("user verified without auto-verify")
	}
	sent, ok := e.mail.Last(email.KindVerifyEmail)
	if !ok {
		t.Fatal("no verification email")
	}
	stored := e.user(t, resp.User.ID)
	if stored.EmailVerificationToken == nil || stored.EmailVerificationExpiresAt == nil {
		t.Fatal("verification token not stored")
	}
	wantLink := "http://shop.test/verify-email?token=" + *stored.EmailVerificationToken
	if sent.Data["Link"] != wantLink {
		t.Fatalf("link = %v, want %s", sent.Data["Link"], wantLink)
	}
	if got := stored.EmailVerificationExpiresAt.Sub(stored.CreatedAt); got != 24*time.Hour {
		t.Fatalf("verification ttl = %v", got)
	}

	view, err := e.auth.VerifyEmail(context.Background(), *stored.EmailVerificationToken)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !view.EmailVerified {
		t.Fatal("not verified")
	}
	if _, err := e.auth.VerifyEmail(context.Background(), *stored.EmailVerificationToken); !errors.Is(err, ErrInvalidOrExpiredToken) {
		t.Fatalf("reused token: got %v", err)
	}
}

func TestRegisterAutoVerify(t *testing.T) {
	e := newEnv(t, AuthOptions{AutoVerifyEmail: true, AllowFullName: true})
	resp := e.register(t, "alice@example.com")
	if !resp.User.EmailVerified {
		t.Fatal("auto-verify did not verify")
	}
	if resp.User.FirstName != "Alice" || resp.User.LastName != "Martin" || resp.User.DisplayName != "" {
		t.Fatalf("full name view = %+v", resp.User)
	}
	if e.mail.Count(email.KindWelcome) != 1 || e.mail.Count(email.KindVerifyEmail) != 0 {
		t.Fatalf("sent = %+v", e.mail.All())
	}
	if e.user(t, resp.User.ID).EmailVerificationToken != nil {
		t.Fatal("verification token stored in auto-verify mode")
	}
}

func TestRegisterValidation(t *testing.T) {
	e := newEnv(t, AuthOptions{})
	cases := []struct {
		name   string
		mutate func(r *dto.RegisterRequest)
		field  string
		err    error
	}{
		{"missing email", func(r *dto.RegisterRequest) { r.Email = "" }, "email", nil},
		{"bad email", func(r *dto.RegisterRequest) { r.Email = "not-an-email" }, "email", nil},
		{"missing password", func(r *dto.RegisterRequest) { r.Password = "" }, "password", nil},
		{"short password", func(r *dto.RegisterRequest) { r.Password = "short" }, "password", nil},
		{"no terms", func(r *dto.RegisterRequest) { r.TermsAccepted = false }, "", ErrConsentRequired},
		{"no privacy", func(r *dto.RegisterRequest) { r.PrivacyAccepted = false }, "", ErrConsentRequired},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := registration("bob@example.com")
			tc.mutate(&req)
			_, err := e.auth.Register(context.Background(), req)
			if tc.err != nil {
				if !errors.Is(err, tc.err) {
					t.Fatalf("got %v, want %v", err, tc.err)
				}
				return
			}
			assertValidation(t, err, tc.field)
		})
	}
	if users, _ := e.users.ListUsers(context.Background()); len(users) != 0 {
		t.Fatalf("rejected registrations created %d users", len(users))
	}
}

func TestRegisterStoresLocationAndConsent(t *testing.T) {
	e := newEnv(t, AuthOptions{})
	req := registration("geo@example.com")
	lat, lon := 48.85, 2.35
	req.Latitude, req.Longitude = &lat, &lon
	req.MarketingConsent = true
	resp, err := e.auth.Register(context.Background(), req)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	u := e.user(t, resp.User.ID)
	if u.Location == nil || u.Location.Latitude != lat {
		t.Fatalf("location = %+v", u.Location)
	}
	if !u.Consent.MarketingConsent || u.Consent.TermsAcceptedAt == nil || u.Consent.PrivacyAcceptedAt == nil {
		t.Fatalf("consent = %+v", u.Consent)
	}
}

func TestConcurrentFirstRegistrationsOneAdmin(t *testing.T) {
	e := newEnv(t, AuthOptions{})
	const n = 20
	var admins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, err := e.auth.Register(context.Background(), registration(fmt.Sprintf("user%d@example.com", i)))
			if err != nil {
				t.Errorf("register %d: %v", i, err)
				return
			}
			if resp.User.Role == models.RoleAdmin {
				admins.Add(1)
			}
		}(i)
	}
	wg.Wait()
	if admins.Load() != 1 {
		t.Fatalf("admins = %d", admins.Load())
	}
}

func TestLoginDoesNotRevealAccounts(t *testing.T) {
	e := newEnv(t, AuthOptions{})
	e.register(t, "alice@example.com")

	_, wrongPassword := e.auth.Login(context.Background(), "alice@example.com", "wrong-password")
	_, unknown := e.auth.Login(context.Background(), "nobody@example.com", "secret123")
	if !errors.Is(wrongPassword, ErrInvalidCredentials) || !errors.Is(unknown, ErrInvalidCredentials) {
		t.Fatalf("errors = %v / %v", wrongPassword, unknown)
	}
	if wrongPassword.Error() != unknown.Error() {
		t.Fatalf("messages differ: %q vs %q", wrongPassword, unknown)
	}

	resp, err := e.auth.Login(context.Background(), " alice@example.com ", "secret123")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if resp.Token == "" || resp.User.Email != "alice@example.com" {
		t.Fatalf("login response = %+v", resp)
	}
	if _, err := e.auth.Login(context.Background(), "", "x"); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestForgotPasswordUniformResponse(t *testing.T) {
	e := newEnv(t, AuthOptions{})
	e.register(t, "alice@example.com")

	if err := e.auth.ForgotPassword(context.Background(), "alice@example.com"); err != nil {
		t.Fatalf("known email: %v", err)
	}
	if err := e.auth.ForgotPassword(context.Background(), "nobody@example.com"); err != nil {
		t.Fatalf("unknown email: %v", err)
	}
	if got := e.mail.Count(email.KindPasswordReset); got != 1 {
		t.Fatalf("reset emails = %d, want 1", got)
	}
	sent, _ := e.mail.Last(email.KindPasswordReset)
	if sent.To != "alice@example.com" || !strings.HasPrefix(sent.Data["Link"].(string), "http://shop.test/reset-password?token=") {
		t.Fatalf("reset email = %+v", sent)
	}
}

func TestResetPasswordRoundTrip(t *testing.T) {
	e := newEnv(t, AuthOptions{})
	e.register(t, "alice@example.com")
	if err := e.auth.ForgotPassword(context.Background(), "alice@example.com"); err != nil {
		t.Fatalf("forgot: %v", err)
	}
	sent, _ := e.mail.Last(email.KindPasswordReset)
	token := strings.TrimPrefix(sent.Data["Link"].(string), "http://shop.test/reset-password?token=")

	if _, err := e.auth.ResetPassword(context.Background(), token, "short"); err == nil {
		t.Fatal("short password accepted")
	}
	if _, err := e.auth.ResetPassword(context.Background(), token, "new-secret-1"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if _, err := e.auth.ResetPassword(context.Background(), token, "new-secret-2"); !errors.Is(err, ErrInvalidOrExpiredToken) {
		t.Fatalf("second reset: got %v", err)
	}
	if _, err := e.auth.Login(context.Background(), "alice@example.com", "secret123"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("old password still works: %v", err)
	}
	if _, err := e.auth.Login(context.Background(), "alice@example.com", "new-secret-1"); err != nil {
		t.Fatalf("new password: %v", err)
	}
}

func TestMeRejectsBadTokens(t *testing.T) {
	e := newEnv(t, AuthOptions{})
	resp := e.register(t, "alice@example.com")

	expiredTokens := auth.NewTokenManager("test-secret", "ekonzims-test", time.Hour).
		WithClock(func() time.Time { return time.Now().Add(-2 * time.Hour) })
	expired, _, err := expiredTokens.Generate(e.user(t, resp.User.ID))
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	for name, token := range map[string]string{
		"empty":    "",
		"garbled":  "not.a.jwt",
		"expired":  expired,
		"tampered": resp.Token[:len(resp.Token)-2] + "xx",
	} {
		if _, err := e.auth.Me(context.Background(), token); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("%s token: got %v", name, err)
		}
	}

	view, err := e.auth.Me(context.Background(), resp.Token)
	if err != nil || view.ID != resp.User.ID {
		t.Fatalf("me = %+v, %v", view, err)
	}
}

func TestLogoutRevokesToken(t *testing.T) {
	e := newEnv(t, AuthOptions{})
	resp := e.register(t, "alice@example.com")
	if err := e.auth.Logout(context.Background(), resp.Token); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := e.auth.Me(context.Background(), resp.Token); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("revoked token: got %v", err)
	}
	if err := e.auth.Logout(context.Background(), "garbage"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("logout garbage: got %v", err)
	}
}

func TestMeAfterWipe(t *testing.T) {
	e := newEnv(t, AuthOptions{})
	resp := e.register(t, "alice@example.com")
	if err := e.users.DeleteAllUsers(context.Background()); err != nil {
		t.Fatalf("wipe: %v", err)
	}
	if _, err := e.auth.Me(context.Background(), resp.Token); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("me after wipe: got %v", err)
	}
}

func TestCheckEmail(t *testing.T) {
	e := newEnv(t, AuthOptions{})
	e.register(t, "alice@example.com")
	exists, err := e.auth.CheckEmail(context.Background(), "alice@example.com")
	if err != nil || !exists {
		t.Fatalf("existing = %v, %v", exists, err)
	}
	exists, err = e.auth.CheckEmail(context.Background(), "bob@example.com")
	if err != nil || exists {
		t.Fatalf("missing = %v, %v", exists, err)
	}
	if _, err := e.auth.CheckEmail(context.Background(), ""); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestStoreUnavailablePropagates(t *testing.T) {
	svc := NewAuthService(downStore{}, auth.NewPasswordHasher(cheapArgon2),
		auth.NewTokenManager("s", "i", time.Hour), auth.NewMemoryRevoker(), &emailtest.Recorder{}, AuthOptions{}, zap.NewNop())

	if _, err := svc.Login(context.Background(), "a@example.com", "secret123"); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("login: got %v", err)
	}
	if _, err := svc.Register(context.Background(), registration("a@example.com")); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("register: got %v", err)
	}
	if err := svc.ForgotPassword(context.Background(), "a@example.com"); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("forgot: got %v", err)
	}
	if _, err := svc.Login(context.Background(), "a@example.com", "secret123"); !errors.Is(err, storage.ErrUnavailable) {
		t.Fatalf("cause lost: %v", err)
	}
}
