// Package logger builds the zap loggers used across the service and carries
// request and sync run scoped loggers through context.
package logger

import (
	"errors"
	"strings"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// DefaultTimeFormat is the timestamp layout used by both encodings
const DefaultTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Config selects level, encoding and destination
type Config struct {
	Level      string // debug, info, warn, error, fatal
	Format     string // json or console
	Output     string // stdout, stderr or a file path
	TimeFormat string
}

// DefaultConfig logs info and above to stdout in console format
func DefaultConfig() *Config {
	return &Config{Level: "info", Format: "console", Output: "stdout", TimeFormat: DefaultTimeFormat}
}

// New builds a logger that records callers and attaches stack traces to
// error entries
func New(cfg *Config) (*zap.Logger, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	layout := cfg.TimeFormat
	if layout == "" {
		layout = DefaultTimeFormat
	}
	output := strings.ToLower(cfg.Output)
	if output == "" {
		output = "stdout"
	} else if output != "stdout" && output != "stderr" {
		output = cfg.Output
	}

	enc := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.TimeEncoderOfLayout(layout),
		EncodeDuration: zapcore.MillisDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
	encoding := "json"
	if cfg.Format == "console" {
		encoding = "console"
		enc.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	zc := zap.Config{
		Level:            zap.NewAtomicLevelAt(parseLevel(cfg.Level)),
		Encoding:         encoding,
		EncoderConfig:    enc,
		OutputPaths:      []string{output},
		ErrorOutputPaths: []string{"stderr"},
	}
	return zc.Build(zap.AddStacktrace(zapcore.ErrorLevel))
}

// parseLevel accepts zap level names in any case plus "warning"; anything
// else is info
func parseLevel(level string) zapcore.Level {
	level = strings.ToLower(level)
	if level == "warning" {
		level = "warn"
	}
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}

// Sync flushes buffered entries. Terminals reject fsync on stdout and
// stderr; that error is dropped.
func Sync(log *zap.Logger) error {
	err := log.Sync()
	if errors.Is(err, syscall.ENOTTY) || errors.Is(err, syscall.EINVAL) {
		return nil
	}
	return err
}
