package enums

// PickLogAction enumerates the pick_logs audit entries.
type PickLogAction string

const (
	PickLogListStarted    PickLogAction = "LIST_STARTED"
	PickLogItemScanned    PickLogAction = "ITEM_SCANNED"
	PickLogItemPicked     PickLogAction = "ITEM_PICKED"
	PickLogSurplusAttempt PickLogAction = "SURPLUS_ATTEMPT"
	PickLogItemReset      PickLogAction = "ITEM_RESET"
	PickLogListCompleted  PickLogAction = "LIST_COMPLETED"
	PickLogListCancelled  PickLogAction = "LIST_CANCELLED"
	PickLogListUpdated    PickLogAction = "LIST_UPDATED"
	PickLogListDeleted    PickLogAction = "LIST_DELETED"
)

// PickListAction is the `action` discriminator accepted by PATCH /picklists/{id}.
type PickListAction string

const (
	PickListActionScan      PickListAction = "scan"
	PickListActionPickItem  PickListAction = "pickItem"
	PickListActionStart     PickListAction = "start"
	PickListActionComplete  PickListAction = "complete"
	PickListActionCancel    PickListAction = "cancel"
	PickListActionResetItem PickListAction = "resetItem"
)

var validPickListActions = values[PickListAction]{
	PickListActionScan,
	PickListActionPickItem,
	PickListActionStart,
	PickListActionComplete,
	PickListActionCancel,
	PickListActionResetItem,
}

func (a PickListAction) IsValid() bool {
	return validPickListActions.has(a)
}
