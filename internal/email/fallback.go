package email

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// FallbackLog appends undelivered messages to a JSON lines file.
type FallbackLog struct {
	logger *zap.Logger
	file   *os.File
}

// OpenFallbackLog opens (creating if needed) the log at path.
func OpenFallbackLog(path string) (*FallbackLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create fallback log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open fallback log: %w", err)
	}
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "time"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), zapcore.Lock(f), zapcore.InfoLevel)
	return &FallbackLog{logger: zap.New(core), file: f}, nil
}

// Record writes msg with the reason it was not delivered.
func (l *FallbackLog) Record(msg Message, reason string) error {
	l.logger.Info("fallback email",
		zap.String("kind", string(msg.Kind)),
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.String("reason", reason),
		zap.String("text", msg.Text),
	)
	return l.logger.Sync()
}

// Close flushes and closes the log file.
func (l *FallbackLog) Close() error {
	_ = l.logger.Sync()
	return l.file.Close()
}
