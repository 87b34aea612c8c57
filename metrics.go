package authx

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// metrics holds the Prometheus collectors. A nil *metrics records nothing.
type metrics struct {
	providerRequests *prometheus.CounterVec
	tokenDecodes     *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	if reg == nil {
		return nil
	}
	factory := promauto.With(reg)
	return &metrics{
		providerRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "authx",
			Name:      "provider_requests_total",
			Help:      "Requests sent to the identity provider, by operation and HTTP status.",
		}, []string{"operation", "status"}),
		tokenDecodes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "authx",
			Name:      "token_decode_total",
			Help:      "Session token decode attempts, by result code.",
		}, []string{"result"}),
	}
}

func (m *metrics) observeRequest(op Operation, status int) {
	if m == nil {
		return
	}
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	m.providerRequests.WithLabelValues(string(op), label).Inc()
}

func (m *metrics) observeDecode(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = string(CodeOf(err))
	}
	m.tokenDecodes.WithLabelValues(result).Inc()
}
