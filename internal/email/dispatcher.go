// Package email renders and sends EkoNzims emails. A message that cannot be
// delivered is appended to a local fallback log instead of being dropped.
package email

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/hongminglow/ekonzims-be/internal/config"
)

// Result reports what happened to one message.
type Result struct {
	Delivered bool `json:"delivered"`
	Fallback  bool `json:"fallback"`
	// Queued means the message was accepted for background delivery.
	Queued bool `json:"queued,omitempty"`
}

// sendTimeout stays below the HTTP write timeout so an inline send cannot
// outlive its request.
const sendTimeout = 8 * time.Second

// Dispatcher sends one email. It never returns an error; failures are logged
// and reflected in the Result.
type Dispatcher interface {
	Send(ctx context.Context, kind Kind, to string, data Data) Result
}

// Mailer is the production Dispatcher.
type Mailer struct {
	transport Transport
	breaker   *gobreaker.CircuitBreaker
	fallback  *FallbackLog
	logger    *zap.Logger
	timeout   time.Duration
}

// NewMailer builds a mailer. A nil transport sends everything to the fallback log.
func NewMailer(transport Transport, fallback *FallbackLog, logger *zap.Logger) *Mailer {
	st := gobreaker.Settings{
		Name:        "email",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info("circuit breaker state", zap.String("name", name), zap.String("from", from.String()), zap.String("to", to.String()))
		},
	}
	return &Mailer{
		transport: transport,
		breaker:   gobreaker.NewCircuitBreaker(st),
		fallback:  fallback,
		logger:    logger,
		timeout:   sendTimeout,
	}
}

// FromConfig picks the transport named by cfg.Provider.
func FromConfig(cfg config.EmailConfig, logger *zap.Logger) (*Mailer, error) {
	fallback, err := OpenFallbackLog(cfg.FallbackLog)
	if err != nil {
		return nil, err
	}
	var transport Transport
	switch cfg.Provider {
	case config.EmailProviderSMTP:
		transport = NewSMTPTransport(cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.From, cfg.FromName)
	case config.EmailProviderBrevo:
		transport = NewBrevoTransport(cfg.BrevoAPIKey, cfg.From, cfg.FromName)
	case config.EmailProviderLog:
	default:
		_ = fallback.Close()
		return nil, fmt.Errorf("unknown email provider %q", cfg.Provider)
	}
	logger.Info("email dispatcher ready", zap.String("provider", cfg.Provider), zap.String("fallback_log", cfg.FallbackLog))
	return NewMailer(transport, fallback, logger), nil
}

func (m *Mailer) Send(ctx context.Context, kind Kind, to string, data Data) Result {
	msg, err := Render(kind, to, data)
	if err != nil {
		m.logger.Error("render email", zap.String("kind", string(kind)), zap.Error(err))
		return m.toFallback(Message{Kind: kind, To: to, Subject: string(kind)}, err.Error())
	}
	if m.transport == nil {
		return m.toFallback(msg, "no transport configured")
	}

	_, err = m.breaker.Execute(func() (any, error) {
		sendCtx, cancel := context.WithTimeout(ctx, m.timeout)
		defer cancel()
		return nil, m.transport.Deliver(sendCtx, msg)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			m.logger.Warn("email transport circuit open", zap.String("kind", string(kind)))
		} else {
			m.logger.Error("send email", zap.String("kind", string(kind)), zap.Error(err))
		}
		return m.toFallback(msg, err.Error())
	}
	m.logger.Info("email sent", zap.String("kind", string(kind)))
	return Result{Delivered: true}
}

// Defer renders the message and records it in the fallback log without
// touching the transport.
func (m *Mailer) Defer(kind Kind, to string, data Data, reason string) Result {
	msg, err := Render(kind, to, data)
	if err != nil {
		msg = Message{Kind: kind, To: to, Subject: string(kind)}
		reason = reason + "; " + err.Error()
	}
	return m.toFallback(msg, reason)
}

func (m *Mailer) toFallback(msg Message, reason string) Result {
	if m.fallback == nil {
		m.logger.Error("email dropped: no fallback log", zap.String("kind", string(msg.Kind)), zap.String("reason", reason))
		return Result{}
	}
	if err := m.fallback.Record(msg, reason); err != nil {
		m.logger.Error("write fallback email", zap.Error(err))
		return Result{}
	}
	return Result{Fallback: true}
}

// Close releases the fallback log.
func (m *Mailer) Close() error {
	if m.fallback == nil {
		return nil
	}
	return m.fallback.Close()
}
