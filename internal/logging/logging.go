// Package logging builds the structured logger shared by the server and its
// pool and engine. Logs go to stderr by default, or to a rotating file via
// natefinch/lumberjack when a log file path is configured.
package logging

import (
	"fmt"
	"os"

	"github.com/natefinch/lumberjack"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options controls where logs go and at what level.
type Options struct {
	Level   string // debug, info, warn, error
	File    string // if set, logs rotate into this file instead of stderr
	MaxSize int    // megabytes per rotated file; defaults to 100 if unset
}

// New builds a *zap.Logger from opts.
func New(opts Options) (*zap.Logger, error) {
	level, err := parseLevel(opts.Level)
	if err != nil {
		return nil, err
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoder := zapcore.NewJSONEncoder(encCfg)

	var ws zapcore.WriteSyncer
	if opts.File != "" {
		maxSize := opts.MaxSize
		if maxSize <= 0 {
			maxSize = 100
		}
		ws = zapcore.AddSync(&lumberjack.Logger{
			Filename: opts.File,
			MaxSize:  maxSize,
			MaxAge:   28,
			Compress: true,
		})
	} else {
		ws = zapcore.Lock(os.Stderr)
	}

	core := zapcore.NewCore(encoder, ws, level)
	return zap.New(core, zap.AddCaller()), nil
}

func parseLevel(s string) (zapcore.Level, error) {
	if s == "" {
		return zapcore.InfoLevel, nil
	}
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return lvl, nil
}
