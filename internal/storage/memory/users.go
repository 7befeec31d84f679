package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hongminglow/ekonzims-be/internal/models"
	"github.com/hongminglow/ekonzims-be/internal/storage"
)

var _ storage.UserStore = (*UserStore)(nil)

// UserStore keeps users in process memory. All writes happen under one lock, which
// makes first-admin assignment, email uniqueness and token consumption atomic.
type UserStore struct {
	mu      sync.RWMutex
	byID    map[string]models.User
	byEmail map[string]string
	now     func() time.Time
}

// NewUserStore creates an empty store. A nil clock defaults to time.Now.
func NewUserStore(now func() time.Time) *UserStore {
	if now == nil {
		now = time.Now
	}
	return &UserStore{
		byID:    make(map[string]models.User),
		byEmail: make(map[string]string),
		now:     now,
	}
}

func (s *UserStore) FindByEmail(_ context.Context, email string) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byEmail[email]
	if !ok {
		return models.User{}, storage.ErrNotFound
	}
	return clone(s.byID[id]), nil
}

func (s *UserStore) FindByID(_ context.Context, id string) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.byID[id]
	if !ok {
		return models.User{}, storage.ErrNotFound
	}
	return clone(u), nil
}

func (s *UserStore) CreateUser(_ context.Context, user models.User) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byEmail[user.Email]; exists {
		return models.User{}, storage.ErrAlreadyExists
	}
	if _, exists := s.byID[user.ID]; exists {
		return models.User{}, storage.ErrAlreadyExists
	}
	if len(s.byID) == 0 {
		user.Role = models.RoleAdmin
	} else {
		user.Role = models.RoleUser
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = s.now().UTC()
	}
	user = clone(user)
	s.byID[user.ID] = user
	s.byEmail[user.Email] = user.ID
	return clone(user), nil
}

func (s *UserStore) VerifyEmail(_ context.Context, token string) (models.User, error) {
	if token == "" {
		return models.User{}, storage.ErrInvalidToken
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for id, u := range s.byID {
		if !tokenMatches(u.EmailVerificationToken, u.EmailVerificationExpiresAt, token, now) {
			continue
		}
		u.EmailVerified = true
		u.EmailVerificationToken = nil
		u.EmailVerificationExpiresAt = nil
		s.byID[id] = u
		return clone(u), nil
	}
	return models.User{}, storage.ErrInvalidToken
}

func (s *UserStore) GeneratePasswordResetToken(_ context.Context, email string) (string, error) {
	token, err := storage.NewOpaqueToken()
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byEmail[email]
	if !ok {
		return "", storage.ErrNotFound
	}
	u := s.byID[id]
	expires := s.now().Add(storage.PasswordResetTTL).UTC()
	u.PasswordResetToken = &token
	u.PasswordResetExpiresAt = &expires
	s.byID[id] = u
	return token, nil
}

func (s *UserStore) ResetPassword(_ context.Context, token, passwordHash string) (models.User, error) {
	if token == "" {
		return models.User{}, storage.ErrInvalidToken
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for id, u := range s.byID {
		if !tokenMatches(u.PasswordResetToken, u.PasswordResetExpiresAt, token, now) {
			continue
		}
		u.PasswordHash = passwordHash
		u.PasswordResetToken = nil
		u.PasswordResetExpiresAt = nil
		s.byID[id] = u
		return clone(u), nil
	}
	return models.User{}, storage.ErrInvalidToken
}

func (s *UserStore) PromoteToAdmin(_ context.Context, id string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[id]
	if !ok {
		return models.User{}, storage.ErrNotFound
	}
	u.Role = models.RoleAdmin
	s.byID[id] = u
	return clone(u), nil
}

func (s *UserStore) ListUsers(_ context.Context) ([]models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.User, 0, len(s.byID))
	for _, u := range s.byID {
		out = append(out, clone(u))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *UserStore) DeleteAllUsers(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID = make(map[string]models.User)
	s.byEmail = make(map[string]string)
	return nil
}

func tokenMatches(stored *string, expires *time.Time, token string, now time.Time) bool {
	return stored != nil && *stored == token && expires != nil && now.Before(*expires)
}

// clone copies pointer fields so callers never alias stored state.
func clone(u models.User) models.User {
	u.EmailVerificationToken = copyPtr(u.EmailVerificationToken)
	u.EmailVerificationExpiresAt = copyPtr(u.EmailVerificationExpiresAt)
	u.PasswordResetToken = copyPtr(u.PasswordResetToken)
	u.PasswordResetExpiresAt = copyPtr(u.PasswordResetExpiresAt)
	u.Consent.TermsAcceptedAt = copyPtr(u.Consent.TermsAcceptedAt)
	u.Consent.PrivacyAcceptedAt = copyPtr(u.Consent.PrivacyAcceptedAt)
	u.Location = copyPtr(u.Location)
	return u
}

func copyPtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
