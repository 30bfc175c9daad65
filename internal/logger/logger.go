package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the process-wide logger. CI log viewers are line oriented, so
// the console encoder is used instead of JSON; debug widens the level.
func New(debug bool) (*zap.SugaredLogger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	cfg.DisableStacktrace = true
	if debug {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	log, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return log.Sugar(), nil
}

// NewNop returns a logger that discards everything, for tests.
func NewNop() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}
