package enums

import "strings"

// LabelStatus is the normalized carrier status stored next to the raw
// status text of a shipping label.
type LabelStatus string

const (
	LabelStatusCreated   LabelStatus = "created"
	LabelStatusInTransit LabelStatus = "in_transit"
	LabelStatusDelivered LabelStatus = "delivered"
	LabelStatusCancelled LabelStatus = "cancelled"
	LabelStatusVoided    LabelStatus = "voided"
	LabelStatusError     LabelStatus = "error"
	LabelStatusUnknown   LabelStatus = "unknown"
)

var validLabelStatuses = values[LabelStatus]{
	LabelStatusCreated,
	LabelStatusInTransit,
	LabelStatusDelivered,
	LabelStatusCancelled,
	LabelStatusVoided,
	LabelStatusError,
	LabelStatusUnknown,
}

// carrier free-text fragments, matched in order
var labelStatusKeywords = []struct {
	fragment string
	status   LabelStatus
}{
	{"void", LabelStatusVoided},
	{"anulat", LabelStatusCancelled},
	{"cancel", LabelStatusCancelled},
	{"error", LabelStatusError},
	{"fail", LabelStatusError},
	{"deliver", LabelStatusDelivered},
	{"livrat", LabelStatusDelivered},
	{"transit", LabelStatusInTransit},
	{"picked up", LabelStatusInTransit},
	{"created", LabelStatusCreated},
	{"generated", LabelStatusCreated},
	{"new", LabelStatusCreated},
}

func (s LabelStatus) IsValid() bool {
	return validLabelStatuses.has(s)
}

// IsCancelled reports whether the label was withdrawn at the carrier.
func (s LabelStatus) IsCancelled() bool {
	return s == LabelStatusCancelled || s == LabelStatusVoided
}

// ParseLabelStatus translates the carrier's free-text status. Canonical
// values are accepted as-is; anything unrecognized maps to LabelStatusUnknown.
func ParseLabelStatus(text string) LabelStatus {
	normalized := strings.ToLower(strings.TrimSpace(text))
	if normalized == "" {
		return LabelStatusUnknown
	}
	if validLabelStatuses.has(LabelStatus(normalized)) {
		return LabelStatus(normalized)
	}
	for _, kw := range labelStatusKeywords {
		if strings.Contains(normalized, kw.fragment) {
			return kw.status
		}
	}
	return LabelStatusUnknown
}
