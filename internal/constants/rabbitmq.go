package constants

const (
	ShareExchange     = "share_exchange"
	ShareExchangeType = "topic"
)

const (
	QueueShareEvents = "share_events"
)

const (
	RoutingKeyShareEvents = "items.share"
	RoutingKeyBatchReport = "share.batch.report"
)

const (
	RetryExchange      = "share_events_retry_exchange"
	RetryQueue         = "share_events_retry_wait"
	FinalDLXExchange   = "share_events_final_dlx"
	FinalDLQ           = "share_events_final_dlq"
	FinalDLQRoutingKey = "share.dlq.key"
)

// Message headers.
const (
	HeaderTraceID      = "x-trace-id"
	HeaderEventType    = "event-type"
	HeaderEventVersion = "event-version"
)

const (
	ShareItemEventType   = "ShareItemEvent"
	ShareBatchReportType = "ShareBatchReportEvent"
	EventSchemaVersion   = "1.0.0"
)
