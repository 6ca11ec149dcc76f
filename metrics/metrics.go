package metrics

import (
	// Go Internal Packages
	"net/http"

	// External Packages
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/twmb/franz-go/plugin/kprom"
)

type Metrics struct {
	namespace string
	registry  *prometheus.Registry

	PaymentsCreated  *prometheus.CounterVec
	CallbackOutcomes *prometheus.CounterVec
	RequestErrors    *prometheus.CounterVec
}

func New(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	factory := promauto.With(reg)

	return &Metrics{
		namespace: namespace,
		registry:  reg,
		PaymentsCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payments_created_total",
			Help:      "Transactions accepted by the gateway, by method.",
		}, []string{"method"}),
		CallbackOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "callbacks_total",
			Help:      "Gateway callbacks received, by outcome.",
		}, []string{"outcome"}),
		RequestErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "request_errors_total",
			Help:      "API errors returned, by error kind.",
		}, []string{"kind"}),
	}
}

// Kafka returns client hooks registered on the same registry. Each Kafka client needs
// its own namespace.
func (m *Metrics) Kafka(namespace string) *kprom.Metrics {
	return kprom.NewMetrics(namespace, kprom.Registry(m.registry))
}

// GaugeFunc registers a gauge whose value is read on every scrape.
func (m *Metrics) GaugeFunc(name, help string, fn func() float64) {
	m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Name:      name,
		Help:      help,
	}, fn))
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
