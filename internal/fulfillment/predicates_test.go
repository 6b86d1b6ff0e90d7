package fulfillment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/fulfillment-backend/pkg/config"
	"github.com/angelmondragon/fulfillment-backend/pkg/db/models"
	"github.com/angelmondragon/fulfillment-backend/pkg/enums"
)

func TestNeedsInvoice(t *testing.T) {
	cases := []struct {
		name  string
		order *models.Order
		want  bool
	}{
		{"nil order", nil, false},
		{"no invoice", &models.Order{}, true},
		{"issued", &models.Order{Invoice: &models.Invoice{Status: enums.InvoiceStatusIssued}}, false},
		{"error", &models.Order{Invoice: &models.Invoice{Status: enums.InvoiceStatusError}}, true},
		{"cancelled", &models.Order{Invoice: &models.Invoice{Status: enums.InvoiceStatusCancelled}}, true},
		{"deleted", &models.Order{Invoice: &models.Invoice{Status: enums.InvoiceStatusDeleted}}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, NeedsInvoice(tc.order))
		})
	}
}

func TestNeedsLabel(t *testing.T) {
	label := func(status enums.LabelStatus, number string) *models.Order {
		return &models.Order{ShippingLabel: &models.ShippingLabel{Status: status, LabelNumber: number}}
	}
	cases := []struct {
		name  string
		order *models.Order
		want  bool
	}{
		{"nil order", nil, false},
		{"no label", &models.Order{}, true},
		{"created", label(enums.LabelStatusCreated, "AWB-1"), false},
		{"in transit", label(enums.LabelStatusInTransit, "AWB-1"), false},
		{"cancelled", label(enums.LabelStatusCancelled, "AWB-1"), true},
		{"voided", label(enums.LabelStatusVoided, "AWB-1"), true},
		{"error", label(enums.LabelStatusError, ""), true},
		{"no number", label(enums.LabelStatusUnknown, ""), true},
		{"carrier error attached", withLabelError(label(enums.LabelStatusCreated, "AWB-1"), "carrier rejected address"), true},
		{"blank error", withLabelError(label(enums.LabelStatusCreated, "AWB-1"), "  "), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, NeedsLabel(tc.order))
		})
	}
}

func withLabelError(order *models.Order, msg string) *models.Order {
	order.ShippingLabel.ErrorMessage = &msg
	return order
}

func TestSettingsFromConfig(t *testing.T) {
	cfg := config.Config{
		Invoicing: config.InvoicingConfig{Series: " WEB "},
		Carrier:   config.CarrierConfig{DefaultService: "express"},
		Fulfillment: config.FulfillmentConfig{
			PickerRole:   "picker",
			AdminRole:    "admin",
			BatchLockTTL: 5 * time.Minute,
			MaxBatchSize: 50,
		},
	}
	s := SettingsFromConfig(cfg)
	require.Equal(t, "WEB", s.InvoiceSeries)
	require.Equal(t, "express", s.CarrierService)
	require.Equal(t, 5*time.Minute, s.BatchLockTTL)
	require.Equal(t, 50, s.MaxBatchSize)

	defaults := SettingsFromConfig(config.Config{})
	require.Equal(t, defaultInvoiceSeries, defaults.InvoiceSeries)
	require.Equal(t, defaultBatchLockTTL, defaults.BatchLockTTL)
}
