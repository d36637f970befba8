package httpapi

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

const defaultMaxBodyBytes int64 = 1 << 20

// CORSOptions configures the optional CORS middleware.
type CORSOptions struct {
	Enabled        bool
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
}

type options struct {
	log            zerolog.Logger
	logLevel       LogLevel
	maxBodyBytes   int64
	predictTimeout time.Duration
	baseCtx        context.Context
	cors           CORSOptions
}

// Option customizes the mux built by NewMux.
type Option func(*options)

// WithLogger installs a structured logger and the default request log level.
func WithLogger(l zerolog.Logger, level string) Option {
	return func(o *options) {
		o.log = l
		o.logLevel = parseLevel(level)
	}
}

// WithMaxBodyBytes limits JSON request bodies. Non-positive values keep 1 MiB.
func WithMaxBodyBytes(n int64) Option {
	return func(o *options) {
		if n > 0 {
			o.maxBodyBytes = n
		}
	}
}

// WithPredictTimeout bounds predict and batch requests. Zero disables it.
func WithPredictTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.predictTimeout = d
		}
	}
}

// WithBaseContext sets a process-level context; canceling it cancels
// in-flight handler work.
func WithBaseContext(ctx context.Context) Option {
	return func(o *options) {
		if ctx != nil {
			o.baseCtx = ctx
		}
	}
}

// WithCORS enables CORS when c.Enabled is set.
func WithCORS(c CORSOptions) Option {
	return func(o *options) {
		o.cors = CORSOptions{
			Enabled:        c.Enabled,
			AllowedOrigins: append([]string(nil), c.AllowedOrigins...),
			AllowedMethods: append([]string(nil), c.AllowedMethods...),
			AllowedHeaders: append([]string(nil), c.AllowedHeaders...),
		}
	}
}

func defaultOptions() options {
	return options{
		log:          zerolog.Nop(),
		logLevel:     LevelOff,
		maxBodyBytes: defaultMaxBodyBytes,
		baseCtx:      context.Background(),
	}
}
