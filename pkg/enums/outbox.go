package enums

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregatePickList     OutboxAggregateType = "pick_list"
	AggregateBatch        OutboxAggregateType = "batch"
	AggregateNotification OutboxAggregateType = "notification"
)

var validAggregateTypes = values[OutboxAggregateType]{
	AggregatePickList,
	AggregateBatch,
	AggregateNotification,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	return validAggregateTypes.has(a)
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	return validAggregateTypes.parse("aggregate type", value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventBatchProcessed        OutboxEventType = "batch_processed"
	EventPickListCreated       OutboxEventType = "pick_list_created"
	EventPickListCompleted     OutboxEventType = "pick_list_completed"
	EventPickListCancelled     OutboxEventType = "pick_list_cancelled"
	EventNotificationRequested OutboxEventType = "notification_requested"
)

var validOutboxEventTypes = values[OutboxEventType]{
	EventBatchProcessed,
	EventPickListCreated,
	EventPickListCompleted,
	EventPickListCancelled,
	EventNotificationRequested,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	return validOutboxEventTypes.has(e)
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	return validOutboxEventTypes.parse("event type", value)
}
