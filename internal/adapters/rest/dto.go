package rest

import "share-worker/internal/core/port"

type ShareResponseDTO struct {
	ItemID  string `json:"itemId"`
	Status  string `json:"status"`
	EventID string `json:"eventId"`
}

type HealthResponseDTO struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

type MetricsResponseDTO struct {
	Counters port.Counters `json:"counters"`
}
