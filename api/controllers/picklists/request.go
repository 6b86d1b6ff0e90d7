package picklists

import (
	"strings"

	"github.com/google/uuid"
)

const (
	actionScan      = "scan"
	actionPickItem  = "pickItem"
	actionStart     = "start"
	actionComplete  = "complete"
	actionCancel    = "cancel"
	actionResetItem = "resetItem"
)

// patchRequest is discriminated by Action; an empty Action is a metadata update.
type patchRequest struct {
	Action string `json:"action" validate:"omitempty,oneof=scan pickItem start complete cancel resetItem"`

	// scan
	Barcode  string `json:"barcode" validate:"omitempty,max=128,scancode"`
	SKU      string `json:"sku" validate:"omitempty,max=128,scancode"`
	PickedBy string `json:"pickedBy" validate:"max=128"`

	// pickItem / resetItem
	ItemID   *uuid.UUID `json:"itemId"`
	UserID   string     `json:"userId" validate:"max=128"`
	UserName string     `json:"userName" validate:"max=128"`

	Quantity *int `json:"quantity"`

	// metadata
	Name       *string `json:"name" validate:"omitempty,max=200"`
	AssignedTo *string `json:"assignedTo" validate:"omitempty,max=128"`
	Notes      *string `json:"notes" validate:"omitempty,max=2000"`
}

// code returns what a scan should match: the barcode when given, else the SKU.
func (r patchRequest) code() string {
	if b := strings.TrimSpace(r.Barcode); b != "" {
		return b
	}
	return strings.TrimSpace(r.SKU)
}

// actor prefers the name reported by the scanning station over the token identity.
func (r patchRequest) actor(fallback string) string {
	for _, candidate := range []string{r.PickedBy, r.UserName, r.UserID} {
		if c := strings.TrimSpace(candidate); c != "" {
			return c
		}
	}
	return fallback
}

func (r patchRequest) quantity() int {
	if r.Quantity == nil {
		return 1
	}
	return *r.Quantity
}
