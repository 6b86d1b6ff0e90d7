package fulfillment

import (
	"strings"

	"github.com/angelmondragon/fulfillment-backend/pkg/db/models"
	"github.com/angelmondragon/fulfillment-backend/pkg/enums"
)

// NeedsInvoice reports whether the order has no usable invoice. Derived from
// the invoice row on every call.
func NeedsInvoice(order *models.Order) bool {
	if order == nil {
		return false
	}
	return order.Invoice == nil || order.Invoice.Status.NeedsReissue()
}

// NeedsLabel reports whether the order has no usable shipping label. A label
// the carrier attached an error to is not usable even when it has a number.
func NeedsLabel(order *models.Order) bool {
	if order == nil {
		return false
	}
	label := order.ShippingLabel
	if label == nil {
		return true
	}
	return label.Status.IsCancelled() ||
		label.Status == enums.LabelStatusError ||
		label.LabelNumber == "" ||
		(label.ErrorMessage != nil && strings.TrimSpace(*label.ErrorMessage) != "")
}
