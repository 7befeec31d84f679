package postgres

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hongminglow/ekonzims-be/internal/models"
	"github.com/hongminglow/ekonzims-be/internal/storage"
)

// Ensure Store satisfies the storage interfaces at compile time.
var (
	_ storage.UserStore    = (*Store)(nil)
	_ storage.OrderStore   = (*Store)(nil)
	_ storage.BookingStore = (*Store)(nil)
)

const uniqueViolation = "23505"

// Store provides Postgres-backed persistence for users, orders and bookings.
type Store struct {
	pool    *pgxpool.Pool
	timeout time.Duration
	now     func() time.Time
}

// NewStore connects, pings and runs migrations. Every later call is bounded by timeout.
func NewStore(ctx context.Context, databaseURL string, timeout time.Duration) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	s := &Store{pool: pool, timeout: timeout, now: time.Now}
	pingCtx, cancel := s.bounded(ctx)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, s.classify("ping database", err)
	}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return s, nil
}

// Close releases database resources.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *Store) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

// classify turns timeouts and connection failures into storage.ErrUnavailable.
func (s *Store) classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var netErr net.Error
	var connErr *pgconn.ConnectError
	switch {
	case errors.Is(err, context.DeadlineExceeded),
		pgconn.Timeout(err),
		errors.As(err, &connErr),
		errors.As(err, &netErr):
		return storage.Unavailable(op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (s *Store) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL,
			password_hash TEXT NOT NULL,
			first_name TEXT NOT NULL DEFAULT '',
			last_name TEXT NOT NULL DEFAULT '',
			phone TEXT NOT NULL DEFAULT '',
			street TEXT NOT NULL DEFAULT '',
			city TEXT NOT NULL DEFAULT '',
			postal_code TEXT NOT NULL DEFAULT '',
			latitude DOUBLE PRECISION,
			longitude DOUBLE PRECISION,
			role TEXT NOT NULL DEFAULT 'user',
			email_verified BOOLEAN NOT NULL DEFAULT FALSE,
			email_verification_token TEXT,
			email_verification_expires_at TIMESTAMPTZ,
			password_reset_token TEXT,
			password_reset_expires_at TIMESTAMPTZ,
			terms_accepted BOOLEAN NOT NULL DEFAULT FALSE,
			terms_accepted_at TIMESTAMPTZ,
			privacy_accepted BOOLEAN NOT NULL DEFAULT FALSE,
			privacy_accepted_at TIMESTAMPTZ,
			marketing_consent BOOLEAN NOT NULL DEFAULT FALSE,
			geolocalization_consent BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS users_email_unique_idx ON users (email);`,
		`CREATE INDEX IF NOT EXISTS users_verification_token_idx ON users (email_verification_token) WHERE email_verification_token IS NOT NULL;`,
		`CREATE INDEX IF NOT EXISTS users_reset_token_idx ON users (password_reset_token) WHERE password_reset_token IS NOT NULL;`,
		`CREATE TABLE IF NOT EXISTS admin_bootstrap (
			singleton BOOLEAN PRIMARY KEY DEFAULT TRUE CHECK (singleton),
			user_id TEXT NOT NULL
		);`,
		`INSERT INTO admin_bootstrap (singleton, user_id)
			SELECT TRUE, id FROM users WHERE role = 'admin' ORDER BY created_at LIMIT 1
			ON CONFLICT (singleton) DO NOTHING;`,
		`CREATE TABLE IF NOT EXISTS orders (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			items JSONB NOT NULL DEFAULT '[]',
			total_amount NUMERIC(14,2) NOT NULL DEFAULT 0,
			street TEXT NOT NULL DEFAULT '',
			city TEXT NOT NULL DEFAULT '',
			postal_code TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			payment_method TEXT NOT NULL,
			payment_status TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`,
		`CREATE INDEX IF NOT EXISTS orders_user_idx ON orders (user_id);`,
		`CREATE TABLE IF NOT EXISTS bookings (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			service_id TEXT NOT NULL,
			service_name TEXT NOT NULL DEFAULT '',
			scheduled_at TIMESTAMPTZ NOT NULL,
			street TEXT NOT NULL DEFAULT '',
			city TEXT NOT NULL DEFAULT '',
			postal_code TEXT NOT NULL DEFAULT '',
			phone TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			price NUMERIC(14,2) NOT NULL DEFAULT 0,
			payment_method TEXT NOT NULL,
			payment_status TEXT NOT NULL,
			card_number TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`,
		`CREATE INDEX IF NOT EXISTS bookings_user_idx ON bookings (user_id);`,
	}
	for _, stmt := range stmts {
		ctx, cancel := s.bounded(ctx)
		_, err := s.pool.Exec(ctx, stmt)
		cancel()
		if err != nil {
			return s.classify("apply migrations", err)
		}
	}
	return nil
}

const userColumns = `id, email, password_hash, first_name, last_name, phone, street, city, postal_code,
	latitude, longitude, role, email_verified, email_verification_token, email_verification_expires_at,
	password_reset_token, password_reset_expires_at, terms_accepted, terms_accepted_at,
	privacy_accepted, privacy_accepted_at, marketing_consent, geolocalization_consent, created_at`

// CreateUser inserts a new user row and claims the admin bootstrap slot in the same transaction.
func (s *Store) CreateUser(ctx context.Context, user models.User) (models.User, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()

	if user.CreatedAt.IsZero() {
		user.CreatedAt = s.now().UTC()
	}
	var lat, lon *float64
	if user.Location != nil {
		lat, lon = &user.Location.Latitude, &user.Location.Longitude
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return models.User{}, s.classify("begin create user", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	const insert = `
		INSERT INTO users (id, email, password_hash, first_name, last_name, phone, street, city, postal_code,
			latitude, longitude, role, email_verified, email_verification_token, email_verification_expires_at,
			password_reset_token, password_reset_expires_at, terms_accepted, terms_accepted_at,
			privacy_accepted, privacy_accepted_at, marketing_consent, geolocalization_consent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, 'user', $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23);`
	_, err = tx.Exec(ctx, insert,
		user.ID, user.Email, user.PasswordHash, user.FirstName, user.LastName, user.Phone,
		user.Address.Street, user.Address.City, user.Address.PostalCode, lat, lon,
		user.EmailVerified, user.EmailVerificationToken, user.EmailVerificationExpiresAt,
		user.PasswordResetToken, user.PasswordResetExpiresAt,
		user.Consent.TermsAccepted, user.Consent.TermsAcceptedAt,
		user.Consent.PrivacyAccepted, user.Consent.PrivacyAcceptedAt,
		user.Consent.MarketingConsent, user.Consent.GeolocalizationConsent, user.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return models.User{}, storage.ErrAlreadyExists
		}
		return models.User{}, s.classify("insert user", err)
	}

	// Concurrent claimants block on the primary key until the winner commits or rolls back.
	tag, err := tx.Exec(ctx, `INSERT INTO admin_bootstrap (singleton, user_id) VALUES (TRUE, $1) ON CONFLICT (singleton) DO NOTHING;`, user.ID)
	if err != nil {
		return models.User{}, s.classify("claim admin bootstrap", err)
	}
	if tag.RowsAffected() == 1 {
		if _, err := tx.Exec(ctx, `UPDATE users SET role = 'admin' WHERE id = $1;`, user.ID); err != nil {
			return models.User{}, s.classify("promote bootstrap admin", err)
		}
	}

	created, err := scanUser(tx.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1;`, user.ID))
	if err != nil {
		return models.User{}, s.classify("load created user", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return models.User{}, s.classify("commit create user", err)
	}
	return created, nil
}

// FindByEmail fetches a user by email address.
func (s *Store) FindByEmail(ctx context.Context, email string) (models.User, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()
	u, err := scanUser(s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1;`, email))
	return u, s.classifyLookup("find user by email", err)
}

// FindByID fetches a user by id.
func (s *Store) FindByID(ctx context.Context, id string) (models.User, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()
	u, err := scanUser(s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1;`, id))
	return u, s.classifyLookup("find user by id", err)
}

// VerifyEmail consumes the verification token in a single conditional update.
func (s *Store) VerifyEmail(ctx context.Context, token string) (models.User, error) {
	if token == "" {
		return models.User{}, storage.ErrInvalidToken
	}
	ctx, cancel := s.bounded(ctx)
	defer cancel()
	const query = `
		UPDATE users
		SET email_verified = TRUE, email_verification_token = NULL, email_verification_expires_at = NULL
		WHERE email_verification_token = $1 AND email_verification_expires_at > $2
		RETURNING ` + userColumns + `;`
	u, err := scanUser(s.pool.QueryRow(ctx, query, token, s.now().UTC()))
	if errors.Is(err, storage.ErrNotFound) {
		return models.User{}, storage.ErrInvalidToken
	}
	return u, s.classify("verify email", err)
}

// GeneratePasswordResetToken overwrites any previous reset token for email.
func (s *Store) GeneratePasswordResetToken(ctx context.Context, email string) (string, error) {
	token, err := storage.NewOpaqueToken()
	if err != nil {
		return "", err
	}
	ctx, cancel := s.bounded(ctx)
	defer cancel()
	expires := s.now().Add(storage.PasswordResetTTL).UTC()
	tag, err := s.pool.Exec(ctx,
		`UPDATE users SET password_reset_token = $2, password_reset_expires_at = $3 WHERE email = $1;`,
		email, token, expires)
	if err != nil {
		return "", s.classify("store reset token", err)
	}
	if tag.RowsAffected() == 0 {
		return "", storage.ErrNotFound
	}
	return token, nil
}

// ResetPassword consumes the reset token and stores the new digest.
func (s *Store) ResetPassword(ctx context.Context, token, passwordHash string) (models.User, error) {
	if token == "" {
		return models.User{}, storage.ErrInvalidToken
	}
	ctx, cancel := s.bounded(ctx)
	defer cancel()
	const query = `
		UPDATE users
		SET password_hash = $3, password_reset_token = NULL, password_reset_expires_at = NULL
		WHERE password_reset_token = $1 AND password_reset_expires_at > $2
		RETURNING ` + userColumns + `;`
	u, err := scanUser(s.pool.QueryRow(ctx, query, token, s.now().UTC(), passwordHash))
	if errors.Is(err, storage.ErrNotFound) {
		return models.User{}, storage.ErrInvalidToken
	}
	return u, s.classify("reset password", err)
}

// PromoteToAdmin sets the admin role. Promoting an admin is a no-op.
func (s *Store) PromoteToAdmin(ctx context.Context, id string) (models.User, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()
	u, err := scanUser(s.pool.QueryRow(ctx, `UPDATE users SET role = 'admin' WHERE id = $1 RETURNING `+userColumns+`;`, id))
	return u, s.classifyLookup("promote user", err)
}

// ListUsers returns every user ordered by creation time.
func (s *Store) ListUsers(ctx context.Context) ([]models.User, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()
	rows, err := s.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at, id;`)
	if err != nil {
		return nil, s.classify("list users", err)
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, s.classify("scan user", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, s.classify("list users", err)
	}
	return users, nil
}

// DeleteAllUsers wipes users and releases the admin bootstrap slot.
func (s *Store) DeleteAllUsers(ctx context.Context) error {
	ctx, cancel := s.bounded(ctx)
	defer cancel()
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return s.classify("begin delete users", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck
	if _, err := tx.Exec(ctx, `DELETE FROM admin_bootstrap;`); err != nil {
		return s.classify("clear admin bootstrap", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM users;`); err != nil {
		return s.classify("delete users", err)
	}
	return s.classify("commit delete users", tx.Commit(ctx))
}

func (s *Store) classifyLookup(op string, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return storage.ErrNotFound
	}
	return s.classify(op, err)
}

func scanUser(row pgx.Row) (models.User, error) {
	var (
		u        models.User
		lat, lon *float64
		role     string
	)
	err := row.Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName, &u.Phone,
		&u.Address.Street, &u.Address.City, &u.Address.PostalCode, &lat, &lon, &role,
		&u.EmailVerified, &u.EmailVerificationToken, &u.EmailVerificationExpiresAt,
		&u.PasswordResetToken, &u.PasswordResetExpiresAt,
		&u.Consent.TermsAccepted, &u.Consent.TermsAcceptedAt,
		&u.Consent.PrivacyAccepted, &u.Consent.PrivacyAcceptedAt,
		&u.Consent.MarketingConsent, &u.Consent.GeolocalizationConsent, &u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, storage.ErrNotFound
		}
		return models.User{}, err
	}
	u.Role = models.Role(role)
	if lat != nil && lon != nil {
		u.Location = &models.GeoPoint{Latitude: *lat, Longitude: *lon}
	}
	return u, nil
}
