package enums

import "strings"

// PickListStatus maps to the pick_list_status enum in Postgres.
type PickListStatus string

const (
	PickListStatusPending    PickListStatus = "PENDING"
	PickListStatusInProgress PickListStatus = "IN_PROGRESS"
	PickListStatusCompleted  PickListStatus = "COMPLETED"
	PickListStatusCancelled  PickListStatus = "CANCELLED"
)

var validPickListStatuses = values[PickListStatus]{
	PickListStatusPending,
	PickListStatusInProgress,
	PickListStatusCompleted,
	PickListStatusCancelled,
}

func (s PickListStatus) IsValid() bool {
	return validPickListStatuses.has(s)
}

// IsTerminal reports whether no further picking can happen.
func (s PickListStatus) IsTerminal() bool {
	return s == PickListStatusCompleted || s == PickListStatusCancelled
}

// ParsePickListStatus accepts the canonical value in any case.
func ParsePickListStatus(value string) (PickListStatus, error) {
	upper := strings.ToUpper(strings.TrimSpace(value))
	return validPickListStatuses.parse("pick list status", upper)
}
