package enums

// NotificationType maps to the notification_type enum in Postgres.
type NotificationType string

const (
	NotificationTypePickListCreated   NotificationType = "pick_list_created"
	NotificationTypePickListCompleted NotificationType = "pick_list_completed"
	NotificationTypePickListStale     NotificationType = "pick_list_stale"
	NotificationTypeSystem            NotificationType = "system"
)

var validNotificationTypes = values[NotificationType]{
	NotificationTypePickListCreated,
	NotificationTypePickListCompleted,
	NotificationTypePickListStale,
	NotificationTypeSystem,
}

// IsValid checks whether the given type matches the canonical enum.
func (n NotificationType) IsValid() bool {
	return validNotificationTypes.has(n)
}

// ParseNotificationType converts raw strings into NotificationType.
func ParseNotificationType(value string) (NotificationType, error) {
	return validNotificationTypes.parse("notification type", value)
}
