// Package metrics declares the engine's Prometheus instrumentation,
// grounded on cuemby-warren's pkg/metrics package shape (global vars,
// MustRegister in init, a Handler() for the admin mux).
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RulesReloadedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fleetalert_rules_reloaded_total",
			Help: "Total number of successful rule cache reloads",
		},
	)

	RuleParseFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fleetalert_rule_parse_failures_total",
			Help: "Total number of rule rows skipped due to parse failure",
		},
	)

	EvaluationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetalert_evaluations_total",
			Help: "Total number of rule evaluations by data source",
		},
		[]string{"data_source"},
	)

	EventsRaisedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetalert_events_raised_total",
			Help: "Total number of alert events raised by severity",
		},
		[]string{"severity"},
	)

	EventsPersistedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fleetalert_events_persisted_total",
			Help: "Total number of alert events durably written",
		},
	)

	EventsRequeuedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fleetalert_events_requeued_total",
			Help: "Total number of alert events requeued after a persistence failure",
		},
	)

	EventsDroppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fleetalert_events_dropped_total",
			Help: "Total number of alert events dropped after a failed requeue",
		},
	)

	SubscriberSendsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fleetalert_subscriber_sends_total",
			Help: "Total number of events delivered to broadcast subscribers",
		},
	)

	SubscriberDropsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fleetalert_subscriber_drops_total",
			Help: "Total number of events dropped for a full subscriber channel",
		},
	)

	SustainedPendingGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "fleetalert_sustained_pending",
			Help: "Current number of sustained-rule ledger entries awaiting their window",
		},
	)

	SyslogDatagramsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fleetalert_syslog_datagrams_total",
			Help: "Total number of syslog UDP datagrams received",
		},
	)

	SyslogParseFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fleetalert_syslog_parse_failures_total",
			Help: "Total number of syslog UDP datagrams dropped due to parse failure",
		},
	)
)

func init() {
	prometheus.MustRegister(
		RulesReloadedTotal,
		RuleParseFailuresTotal,
		EvaluationsTotal,
		EventsRaisedTotal,
		EventsPersistedTotal,
		EventsRequeuedTotal,
		EventsDroppedTotal,
		SubscriberSendsTotal,
		SubscriberDropsTotal,
		SustainedPendingGauge,
		SyslogDatagramsTotal,
		SyslogParseFailuresTotal,
	)
}

// Handler returns the Prometheus scrape handler for mounting on the admin mux.
func Handler() http.Handler {
	return promhttp.Handler()
}
