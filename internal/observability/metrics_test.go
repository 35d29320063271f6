package observability_test

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrJamesThe3rd/ledger/internal/apperr"
	"github.com/MrJamesThe3rd/ledger/internal/observability"
)

func TestMetrics_Track(t *testing.T) {
	m := observability.NewMetrics()

	m.Track("pay_invoice")(nil)
	m.Track("pay_invoice")(apperr.Conflict("Invoice is already paid."))
	m.Track("pay_invoice")(errors.New("db down"))

	families, err := m.Registry.Gather()
	require.NoError(t, err)

	outcomes := map[string]float64{}

	for _, mf := range families {
		if mf.GetName() != "ledger_operations_total" {
			continue
		}

		for _, metric := range mf.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "outcome" {
					outcomes[label.GetValue()] = metric.GetCounter().GetValue()
				}
			}
		}
	}

	assert.Equal(t, map[string]float64{"success": 1, "conflict": 1, "internal": 1}, outcomes)
}

func TestMetrics_PrivateRegistry(t *testing.T) {
	a := observability.NewMetrics()
	b := observability.NewMetrics()

	a.IncrEvent("INVOICE_PAID", "sent")

	assert.Equal(t, 1, testutil.CollectAndCount(a.Registry, "ledger_events_total"))
	assert.Equal(t, 0, testutil.CollectAndCount(b.Registry, "ledger_events_total"))
}
