package wist

import (
	"context"
	"log/slog"

	"github.com/wist-lang/wist/internal/config"
)

type options struct {
	limits config.Limits
	logger *slog.Logger
	ctx    context.Context
}

// Option configures New.
type Option func(*options) error

// WithLimits replaces the default resource limits.
func WithLimits(l Limits) Option {
	return func(o *options) error {
		o.limits = l
		return nil
	}
}

// WithConfigFile loads limits from a wist.yaml file.
func WithConfigFile(path string) Option {
	return func(o *options) error {
		cfg, err := config.LoadConfig(path)
		if err != nil {
			return err
		}
		o.limits = cfg.VM
		return nil
	}
}

// WithLogger routes compiler and trace output to l.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) error {
		o.logger = l
		return nil
	}
}

// WithContext stops evaluations once ctx is done.
func WithContext(ctx context.Context) Option {
	return func(o *options) error {
		o.ctx = ctx
		return nil
	}
}
