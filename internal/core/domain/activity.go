package domain

import "github.com/google/uuid"

const (
	ActivityTypeItemShared = "ItemShared"
	ActivityActionShare    = "share"
)

type ActivityMetadata struct {
	Action    string `json:"action"`
	RequestID string `json:"requestId"`
}

// ActivityRecord is an append-only entry in a user's activity history.
type ActivityRecord struct {
	ActivityID   uuid.UUID
	OwnerUserID  string
	ActivityType string
	ItemID       string
	ItemName     *string // omitted from the store when nil
	Timestamp    string  // when the share happened
	CreatedAt    string  // when the record was written
	Metadata     ActivityMetadata
}

// ShareActivityInput carries what the activity recorder needs from a share.
type ShareActivityInput struct {
	UserID    string
	ItemID    string
	ItemName  *string
	SharedAt  string
	RequestID string
}
