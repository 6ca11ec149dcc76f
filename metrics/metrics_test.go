package metrics

import (
	// Go Internal Packages
	"io"
	"net/http/httptest"
	"testing"

	// External Packages
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandlerExposesCounters(t *testing.T) {
	m := New("payflow")
	m.PaymentsCreated.WithLabelValues("PIX").Inc()
	m.CallbackOutcomes.WithLabelValues("applied").Add(2)
	m.GaugeFunc("dead_letter_callbacks", "test gauge", func() float64 { return 3 })

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), `payflow_payments_created_total{method="PIX"} 1`)
	assert.Contains(t, string(body), `payflow_callbacks_total{outcome="applied"} 2`)
	assert.Contains(t, string(body), `payflow_dead_letter_callbacks 3`)
}

func TestKafkaHooksShareRegistry(t *testing.T) {
	m := New("payflow")
	assert.NotNil(t, m.Kafka("payflow_producer"))
	assert.NotNil(t, m.Kafka("payflow_consumer"))
}
