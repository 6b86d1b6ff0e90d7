package enums

import "fmt"

// ProcessingErrorType identifies which batch step failed for an order.
type ProcessingErrorType string

const (
	ProcessingErrorInvoice ProcessingErrorType = "INVOICE"
	ProcessingErrorLabel   ProcessingErrorType = "LABEL"
)

func (t ProcessingErrorType) IsValid() bool {
	return t == ProcessingErrorInvoice || t == ProcessingErrorLabel
}

func ParseProcessingErrorType(value string) (ProcessingErrorType, error) {
	t := ProcessingErrorType(value)
	if !t.IsValid() {
		return "", fmt.Errorf("invalid processing error type %q", value)
	}
	return t, nil
}
