// Package metrics exposes prometheus collectors for authentication outcomes.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Outcome label values
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeConflict = "conflict"
	OutcomeError    = "error"
)

// Metrics groups the service collectors
type Metrics struct {
	ChallengesIssued prometheus.Counter
	Verifications    *prometheus.CounterVec
	Refreshes        *prometheus.CounterVec
	WalletLinks      *prometheus.CounterVec
	ChallengesSwept  prometheus.Counter
}

// New creates the collectors and registers them with reg. A nil reg skips registration.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ChallengesIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "invoicegate_challenges_issued_total",
			Help: "Total number of wallet challenges issued",
		}),
		Verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "invoicegate_signature_verifications_total",
			Help: "Wallet signature verifications by outcome",
		}, []string{"outcome"}),
		Refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "invoicegate_token_refreshes_total",
			Help: "Token refreshes by outcome",
		}, []string{"outcome"}),
		WalletLinks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "invoicegate_wallet_links_total",
			Help: "Wallet link attempts by outcome",
		}, []string{"outcome"}),
		ChallengesSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "invoicegate_challenges_swept_total",
			Help: "Expired challenges removed by the sweeper",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.ChallengesIssued, m.Verifications, m.Refreshes, m.WalletLinks, m.ChallengesSwept)
	}
	return m
}

// Noop returns unregistered collectors, for tests and embedded use
func Noop() *Metrics {
	return New(nil)
}
