package eventpubsub

const (
	RunStartedEvent   = "RunStartedEvent"
	RunCompletedEvent = "RunCompletedEvent"
	RunFailedEvent    = "RunFailedEvent"
	RunCanceledEvent  = "RunCanceledEvent"
	SnapshotEvent     = "SnapshotEvent"
	TradeClosedEvent  = "TradeClosedEvent"
	Error             = "DefaultError"
)
