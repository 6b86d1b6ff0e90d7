package enums

type OutboxDLQErrorReason string

const (
	OutboxDLQReasonMaxAttempts  OutboxDLQErrorReason = "max_attempts"
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
)

var validOutboxDLQErrorReasons = values[OutboxDLQErrorReason]{
	OutboxDLQReasonMaxAttempts,
	OutboxDLQReasonNonRetryable,
}

func (r OutboxDLQErrorReason) IsValid() bool {
	return validOutboxDLQErrorReasons.has(r)
}

// OutboxDLQErrorReasons lists every reason in a stable order.
func OutboxDLQErrorReasons() []OutboxDLQErrorReason {
	return validOutboxDLQErrorReasons.list()
}
