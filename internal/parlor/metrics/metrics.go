// Package metrics collects and exposes Prometheus metrics for the identity
// core.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is the interface the HTTP layer records through. A nil-safe
// no-op keeps tests free of registry setup.
type Recorder interface {
	RecordLogin(outcome string)
	RecordBrokerLogin(provider, outcome string)
	RecordRegistration(kind string)
	RecordTokenIssued(purpose string)
	RecordTokenVerified(purpose, outcome string)
	RecordMessagePosted()
}

// Collector implements Recorder on top of a Prometheus registry.
type Collector struct {
	logins        *prometheus.CounterVec
	brokerLogins  *prometheus.CounterVec
	registrations *prometheus.CounterVec
	tokensIssued  *prometheus.CounterVec
	tokensChecked *prometheus.CounterVec
	messages      prometheus.Counter
}

// NewCollector creates a Collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "parlor_logins_total",
			Help: "Local credential login attempts by outcome.",
		}, []string{"outcome"}),
		brokerLogins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "parlor_broker_logins_total",
			Help: "External identity handshakes by provider and outcome.",
		}, []string{"provider", "outcome"}),
		registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "parlor_registrations_total",
			Help: "Accounts created, by origin (local or provider name).",
		}, []string{"kind"}),
		tokensIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "parlor_tokens_issued_total",
			Help: "Signed tokens issued by purpose.",
		}, []string{"purpose"}),
		tokensChecked: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "parlor_tokens_verified_total",
			Help: "Signed token verifications by purpose and outcome.",
		}, []string{"purpose", "outcome"}),
		messages: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "parlor_messages_posted_total",
			Help: "Messages posted to the board.",
		}),
	}

	reg.MustRegister(
		c.logins,
		c.brokerLogins,
		c.registrations,
		c.tokensIssued,
		c.tokensChecked,
		c.messages,
	)

	return c
}

func (c *Collector) RecordLogin(outcome string) {
	c.logins.WithLabelValues(outcome).Inc()
}

func (c *Collector) RecordBrokerLogin(provider, outcome string) {
	c.brokerLogins.WithLabelValues(provider, outcome).Inc()
}

func (c *Collector) RecordRegistration(kind string) {
	c.registrations.WithLabelValues(kind).Inc()
}

func (c *Collector) RecordTokenIssued(purpose string) {
	c.tokensIssued.WithLabelValues(purpose).Inc()
}

func (c *Collector) RecordTokenVerified(purpose, outcome string) {
	c.tokensChecked.WithLabelValues(purpose, outcome).Inc()
}

func (c *Collector) RecordMessagePosted() {
	c.messages.Inc()
}

// Handler returns the Prometheus scrape handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Noop discards every observation. Stands in wherever no registry is
// wired, e.g. unit tests.
type Noop struct{}

func (Noop) RecordLogin(string)                 {}
func (Noop) RecordBrokerLogin(string, string)   {}
func (Noop) RecordRegistration(string)          {}
func (Noop) RecordTokenIssued(string)           {}
func (Noop) RecordTokenVerified(string, string) {}
func (Noop) RecordMessagePosted()               {}
