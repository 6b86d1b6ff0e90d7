package enums

// InvoiceStatus maps to the invoice_status enum in Postgres.
type InvoiceStatus string

const (
	InvoiceStatusIssued    InvoiceStatus = "issued"
	InvoiceStatusError     InvoiceStatus = "error"
	InvoiceStatusCancelled InvoiceStatus = "cancelled"
	InvoiceStatusDeleted   InvoiceStatus = "deleted"
)

var validInvoiceStatuses = values[InvoiceStatus]{
	InvoiceStatusIssued,
	InvoiceStatusError,
	InvoiceStatusCancelled,
	InvoiceStatusDeleted,
}

func (s InvoiceStatus) IsValid() bool {
	return validInvoiceStatuses.has(s)
}

// NeedsReissue reports whether an invoice in this state must be issued again.
func (s InvoiceStatus) NeedsReissue() bool {
	switch s {
	case InvoiceStatusError, InvoiceStatusCancelled, InvoiceStatusDeleted:
		return true
	}
	return false
}

func ParseInvoiceStatus(value string) (InvoiceStatus, error) {
	return validInvoiceStatuses.parse("invoice status", value)
}
