// Package service holds the application use cases behind the HTTP handlers.
package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hongminglow/ekonzims-be/internal/auth"
	"github.com/hongminglow/ekonzims-be/internal/campaign"
	"github.com/hongminglow/ekonzims-be/internal/email"
	"github.com/hongminglow/ekonzims-be/internal/models"
	"github.com/hongminglow/ekonzims-be/internal/models/dto"
	"github.com/hongminglow/ekonzims-be/internal/storage"
)

const (
	minPasswordLength = 8
	verificationTTL   = 24 * time.Hour
)

// AuthOptions are the deployment switches of the auth flow.
type AuthOptions struct {
	AutoVerifyEmail bool
	AllowFullName   bool
	FrontendURL     string
}

// AuthService orchestrates registration, login and the token based flows.
type AuthService struct {
	users   storage.UserStore
	hasher  *auth.PasswordHasher
	tokens  *auth.TokenManager
	revoker auth.Revoker
	mailer  email.Dispatcher
	opts    AuthOptions
	logger  *zap.Logger
	now     func() time.Time

	dummyOnce   sync.Once
	dummyDigest string
}

func NewAuthService(
	users storage.UserStore,
	hasher *auth.PasswordHasher,
	tokens *auth.TokenManager,
	revoker auth.Revoker,
	mailer email.Dispatcher,
	opts AuthOptions,
	logger *zap.Logger,
) *AuthService {
	return &AuthService{
		users:   users,
		hasher:  hasher,
		tokens:  tokens,
		revoker: revoker,
		mailer:  mailer,
		opts:    opts,
		logger:  logger,
		now:     time.Now,
	}
}

// AllowFullName reports whether user views carry legal names.
func (s *AuthService) AllowFullName() bool {
	return s.opts.AllowFullName
}

// Register creates the account, sends the verification (or welcome) email and
// opens a session.
func (s *AuthService) Register(ctx context.Context, req dto.RegisterRequest) (dto.AuthResponse, error) {
	addr := strings.TrimSpace(req.Email)
	if err := validateEmail(addr); err != nil {
		return dto.AuthResponse{}, err
	}
	if err := validatePassword(req.Password); err != nil {
		return dto.AuthResponse{}, err
	}
	if !req.TermsAccepted || !req.PrivacyAccepted {
		return dto.AuthResponse{}, ErrConsentRequired
	}

	digest, err := s.hasher.Hash(req.Password)
	if err != nil {
		return dto.AuthResponse{}, err
	}
	now := s.now().UTC()
	user := models.User{
		ID:           uuid.NewString(),
		Email:        addr,
		PasswordHash: digest,
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		Phone:        strings.TrimSpace(req.Phone),
		Address: models.Address{
			Street:     strings.TrimSpace(req.Street),
			City:       strings.TrimSpace(req.City),
			PostalCode: strings.TrimSpace(req.PostalCode),
		},
		Consent: models.Consent{
			TermsAccepted:          true,
			TermsAcceptedAt:        &now,
			PrivacyAccepted:        true,
			PrivacyAcceptedAt:      &now,
			MarketingConsent:       req.MarketingConsent,
			GeolocalizationConsent: req.GeolocalizationConsent,
		},
		CreatedAt: now,
	}
	if req.Latitude != nil && req.Longitude != nil {
		user.Location = &models.GeoPoint{Latitude: *req.Latitude, Longitude: *req.Longitude}
	}

	var verifyToken string
	if s.opts.AutoVerifyEmail {
		user.EmailVerified = true
	} else {
		if verifyToken, err = storage.NewOpaqueToken(); err != nil {
			return dto.AuthResponse{}, err
		}
		expires := now.Add(verificationTTL)
		user.EmailVerificationToken = &verifyToken
		user.EmailVerificationExpiresAt = &expires
	}

	created, err := s.users.CreateUser(ctx, user)
	if err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return dto.AuthResponse{}, ErrDuplicateEmail
		}
		return dto.AuthResponse{}, storeError("create user", err)
	}

	if s.opts.AutoVerifyEmail {
		s.mailer.Send(ctx, email.KindWelcome, created.Email, email.Data{"FirstName": campaign.FirstName(created)})
	} else {
		s.mailer.Send(ctx, email.KindVerifyEmail, created.Email, email.Data{
			"FirstName": campaign.FirstName(created),
			"Link":      s.opts.FrontendURL + "/verify-email?token=" + verifyToken,
		})
	}

	token, _, err := s.tokens.Generate(created)
	if err != nil {
		return dto.AuthResponse{}, err
	}
	s.logger.Info("user registered", zap.String("user_id", created.ID), zap.String("role", string(created.Role)))
	return dto.AuthResponse{Token: token, User: created.View(s.opts.AllowFullName)}, nil
}

// Login never distinguishes an unknown email from a wrong password.
func (s *AuthService) Login(ctx context.Context, addr, password string) (dto.AuthResponse, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return dto.AuthResponse{}, invalid("email", "is required")
	}
	if password == "" {
		return dto.AuthResponse{}, invalid("password", "is required")
	}
	user, err := s.users.FindByEmail(ctx, addr)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			// Burn the same KDF time as a real check.
			s.hasher.Verify(password, s.dummy())
			return dto.AuthResponse{}, ErrInvalidCredentials
		}
		return dto.AuthResponse{}, storeError("find user", err)
	}
	if !s.hasher.Verify(password, user.PasswordHash) {
		return dto.AuthResponse{}, ErrInvalidCredentials
	}
	token, _, err := s.tokens.Generate(user)
	if err != nil {
		return dto.AuthResponse{}, err
	}
	return dto.AuthResponse{Token: token, User: user.View(s.opts.AllowFullName)}, nil
}

func (s *AuthService) dummy() string {
	s.dummyOnce.Do(func() {
		s.dummyDigest, _ = s.hasher.Hash("ekonzims-login-placeholder")
	})
	return s.dummyDigest
}

func (s *AuthService) VerifyEmail(ctx context.Context, token string) (models.UserView, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return models.UserView{}, invalid("token", "is required")
	}
	user, err := s.users.VerifyEmail(ctx, token)
	if err != nil {
		if errors.Is(err, storage.ErrInvalidToken) {
			return models.UserView{}, ErrInvalidOrExpiredToken
		}
		return models.UserView{}, storeError("verify email", err)
	}
	return user.View(s.opts.AllowFullName), nil
}

// ForgotPassword sends a reset link when the account exists. The outcome is
// the same whether or not it does.
func (s *AuthService) ForgotPassword(ctx context.Context, addr string) error {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return invalid("email", "is required")
	}
	token, err := s.users.GeneratePasswordResetToken(ctx, addr)
	switch {
	case err == nil:
		s.mailer.Send(ctx, email.KindPasswordReset, addr, email.Data{
			"Link": s.opts.FrontendURL + "/reset-password?token=" + token,
		})
		return nil
	case errors.Is(err, storage.ErrNotFound):
		return nil
	default:
		return storeError("generate reset token", err)
	}
}

func (s *AuthService) ResetPassword(ctx context.Context, token, password string) (models.UserView, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return models.UserView{}, invalid("token", "is required")
	}
	if err := validatePassword(password); err != nil {
		return models.UserView{}, err
	}
	digest, err := s.hasher.Hash(password)
	if err != nil {
		return models.UserView{}, err
	}
	user, err := s.users.ResetPassword(ctx, token, digest)
	if err != nil {
		if errors.Is(err, storage.ErrInvalidToken) {
			return models.UserView{}, ErrInvalidOrExpiredToken
		}
		return models.UserView{}, storeError("reset password", err)
	}
	return user.View(s.opts.AllowFullName), nil
}

// CheckEmail reports whether an account uses addr.
func (s *AuthService) CheckEmail(ctx context.Context, addr string) (bool, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return false, invalid("email", "is required")
	}
	_, err := s.users.FindByEmail(ctx, addr)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, storage.ErrNotFound):
		return false, nil
	default:
		return false, storeError("find user", err)
	}
}

// Authenticate resolves a bearer token to its user.
func (s *AuthService) Authenticate(ctx context.Context, bearer string) (models.User, auth.Claims, error) {
	claims, err := s.tokens.Parse(bearer)
	if err != nil {
		return models.User{}, auth.Claims{}, ErrUnauthorized
	}
	revoked, err := s.revoker.IsRevoked(ctx, claims.ID)
	if err != nil {
		s.logger.Error("revocation check", zap.Error(err))
		return models.User{}, auth.Claims{}, fmt.Errorf("check revocation: %w: %w", ErrStoreUnavailable, err)
	}
	if revoked {
		return models.User{}, auth.Claims{}, ErrUnauthorized
	}
	user, err := s.users.FindByID(ctx, claims.UserID())
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return models.User{}, claims, ErrUserNotFound
		}
		return models.User{}, claims, storeError("find user", err)
	}
	return user, claims, nil
}

// Me returns the caller's view.
func (s *AuthService) Me(ctx context.Context, bearer string) (models.UserView, error) {
	user, _, err := s.Authenticate(ctx, bearer)
	if err != nil {
		return models.UserView{}, err
	}
	return user.View(s.opts.AllowFullName), nil
}

// Logout revokes the token until it would have expired anyway.
func (s *AuthService) Logout(ctx context.Context, bearer string) error {
	claims, err := s.tokens.Parse(bearer)
	if err != nil {
		return ErrUnauthorized
	}
	if err := s.revoker.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		s.logger.Error("revoke token", zap.Error(err))
		return fmt.Errorf("revoke token: %w: %w", ErrStoreUnavailable, err)
	}
	return nil
}

func validateEmail(addr string) error {
	if addr == "" {
		return invalid("email", "is required")
	}
	parsed, err := mail.ParseAddress(addr)
	if err != nil || parsed.Address != addr {
		return invalid("email", "is not a valid address")
	}
	return nil
}

func validatePassword(password string) error {
	if password == "" {
		return invalid("password", "is required")
	}
	if !utf8.ValidString(password) || utf8.RuneCountInString(password) < minPasswordLength {
		return invalid("password", "must be at least 8 characters")
	}
	return nil
}
