package domain

// ShareEventType is the message type produced by the share intake API.
const ShareEventType = "SHARE_ITEM"

// ShareEvent is a validated share request taken off the queue.
type ShareEvent struct {
	ItemID    string
	UserID    string
	Timestamp string // ISO-8601, as sent by the producer
	RequestID string
}

// RawRecord is one opaque record of an inbound batch. ID is assigned by the
// delivery channel and only used to report failures back to it.
type RawRecord struct {
	ID   string
	Body []byte
}

// ShareEventMessage is the wire shape of a share event on the queue.
type ShareEventMessage struct {
	Type      string `json:"type"`
	UserID    string `json:"userId"`
	ItemID    string `json:"itemId"`
	Timestamp string `json:"timestamp"`
	RequestID string `json:"requestId"`
}
