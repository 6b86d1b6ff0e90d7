package metrics

import "github.com/prometheus/client_golang/prometheus"

// FulfillmentMetrics counts batch outcomes and pick-list activity.
type FulfillmentMetrics struct {
	batchOrders    *prometheus.CounterVec
	invoicesIssued prometheus.Counter
	labelsCreated  prometheus.Counter
	scans          *prometheus.CounterVec
	transitions    *prometheus.CounterVec
}

// NewFulfillmentMetrics registers the fulfillment counters on reg. A nil
// registerer yields a no-op recorder.
func NewFulfillmentMetrics(reg prometheus.Registerer) *FulfillmentMetrics {
	if reg == nil {
		return &FulfillmentMetrics{}
	}
	batchOrders := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fulfillment_batch_orders_total",
		Help: "Orders processed by batch fulfillment, by outcome.",
	}, []string{"outcome"})
	invoicesIssued := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fulfillment_invoices_issued_total",
		Help: "Invoices issued during batch fulfillment.",
	})
	labelsCreated := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fulfillment_labels_created_total",
		Help: "Shipping labels created during batch fulfillment.",
	})
	scans := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "picklist_scans_total",
		Help: "Pick list scan and pick attempts, by outcome.",
	}, []string{"outcome"})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "picklist_transitions_total",
		Help: "Pick list state machine actions applied.",
	}, []string{"action"})
	reg.MustRegister(batchOrders, invoicesIssued, labelsCreated, scans, transitions)
	return &FulfillmentMetrics{
		batchOrders:    batchOrders,
		invoicesIssued: invoicesIssued,
		labelsCreated:  labelsCreated,
		scans:          scans,
		transitions:    transitions,
	}
}

func (m *FulfillmentMetrics) IncBatchOrder(success bool) {
	if m == nil || m.batchOrders == nil {
		return
	}
	outcome := "failed"
	if success {
		outcome = "success"
	}
	m.batchOrders.WithLabelValues(outcome).Inc()
}

func (m *FulfillmentMetrics) IncInvoiceIssued() {
	if m == nil || m.invoicesIssued == nil {
		return
	}
	m.invoicesIssued.Inc()
}

func (m *FulfillmentMetrics) IncLabelCreated() {
	if m == nil || m.labelsCreated == nil {
		return
	}
	m.labelsCreated.Inc()
}

// IncScan records a scan/pick attempt; outcome is e.g. applied, not_found,
// surplus or rejected.
func (m *FulfillmentMetrics) IncScan(outcome string) {
	if m == nil || m.scans == nil {
		return
	}
	m.scans.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func (m *FulfillmentMetrics) IncTransition(action string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(action)).Inc()
}
