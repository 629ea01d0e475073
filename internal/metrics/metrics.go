package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PollsTotal counts poll cycles by result (applied, failed, stale).
	PollsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leakdesk_polls_total",
			Help: "Poll cycles against the remote ticket store",
		},
		[]string{"result"},
	)

	// EndpointAttemptsTotal counts individual endpoint attempts inside a
	// failover pass. outcome is ok, transport or remote_error.
	EndpointAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leakdesk_endpoint_attempts_total",
			Help: "Requests issued per endpoint position",
		},
		[]string{"endpoint", "outcome"},
	)

	MutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leakdesk_mutations_total",
			Help: "Ticket mutations submitted to the remote store",
		},
		[]string{"action", "result"},
	)

	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leakdesk_notifications_total",
			Help: "Notifications dispatched locally",
		},
		[]string{"type", "result"},
	)

	CachedTickets = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "leakdesk_cached_tickets",
			Help: "Tickets currently held in the local cache",
		},
	)

	LastSyncTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "leakdesk_last_sync_timestamp_seconds",
			Help: "Unix time of the last applied snapshot",
		},
	)
)
