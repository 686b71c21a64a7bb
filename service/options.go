package service

import (
	"time"

	"github.com/layer-3/invoicegate/internal/eth"
	"github.com/layer-3/invoicegate/metrics"
	"github.com/layer-3/invoicegate/ports"
	"go.uber.org/zap"
)

type options struct {
	logger       *zap.Logger
	metrics      *metrics.Metrics
	now          func() time.Time
	verifier     ports.SignatureVerifier
	appName      string
	challengeTTL time.Duration
	accessTTL    time.Duration
	refreshTTL   time.Duration
}

// Option configures AuthService and WalletService
type Option func(*options)

// WithLogger sets the service logger
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithMetrics sets the collectors outcomes are counted in
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithVerifier overrides the EIP-191 signature verifier
func WithVerifier(v ports.SignatureVerifier) Option {
	return func(o *options) { o.verifier = v }
}

// WithAppName sets the name greeted in challenge messages
func WithAppName(name string) Option {
	return func(o *options) { o.appName = name }
}

// WithTTLs overrides the challenge, access and refresh lifetimes. Zero keeps the default.
func WithTTLs(challenge, access, refresh time.Duration) Option {
	return func(o *options) {
		if challenge > 0 {
			o.challengeTTL = challenge
		}
		if access > 0 {
			o.accessTTL = access
		}
		if refresh > 0 {
			o.refreshTTL = refresh
		}
	}
}

func newOptions(opts []Option) options {
	o := options{
		logger:       zap.NewNop(),
		metrics:      metrics.Noop(),
		now:          time.Now,
		verifier:     ports.SignatureVerifierFunc(eth.VerifyPersonalSignature),
		appName:      "Web3 Invoicing",
		challengeTTL: 5 * time.Minute,
		accessTTL:    time.Hour,
		refreshTTL:   5 * 24 * time.Hour, // 5 days
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
