package semdex

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Client defaults.
const (
	DefaultSocketPath     = "/tmp/semdex.sock"
	DefaultTimeout        = 30 * time.Second
	DefaultRebuildTimeout = 5 * time.Minute
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	socketPath     string
	token          string
	timeout        time.Duration
	rebuildTimeout time.Duration

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

// WithSocketPath sets the gateway's Unix domain socket path.
// Default: /tmp/semdex.sock.
func WithSocketPath(path string) Option {
	return optionFunc(func(c *clientConfig) {
		c.socketPath = path
	})
}

// WithServiceToken sets the shared-secret credential sent with every
// request. The gateway rejects credentialless requests on all routes
// except health and metrics.
func WithServiceToken(token string) Option {
	return optionFunc(func(c *clientConfig) {
		c.token = token
	})
}

// WithTimeout bounds every gateway call except rebuild. Default: 30s.
func WithTimeout(d time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.timeout = d
	})
}

// WithRebuildTimeout bounds the rebuild call, which re-embeds the whole
// corpus and runs far longer than a point operation. Default: 5m.
func WithRebuildTimeout(d time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.rebuildTimeout = d
	})
}

// WithLogger enables structured logging for SDK operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers SDK metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
