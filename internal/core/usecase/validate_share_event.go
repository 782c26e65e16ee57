package usecase

import (
	"encoding/json"
	"fmt"
	"strings"

	"share-worker/internal/core/domain"
)

var requiredShareEventFields = []string{"itemId", "userId", "timestamp", "requestId"}

// ParseShareEvent decodes a record body and validates it.
func ParseShareEvent(body []byte) (domain.ShareEvent, error) {
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return domain.ShareEvent{}, fmt.Errorf("%w: %v", domain.ErrMalformedPayload, err)
	}
	if raw == nil {
		return domain.ShareEvent{}, fmt.Errorf("%w: payload is not a JSON object", domain.ErrMalformedPayload)
	}
	return ValidateShareEvent(raw)
}

// ValidateShareEvent checks that every required field is a non-blank string.
// All missing fields are reported at once.
func ValidateShareEvent(raw map[string]any) (domain.ShareEvent, error) {
	values := make(map[string]string, len(requiredShareEventFields))
	var missing []string

	for _, field := range requiredShareEventFields {
		s, ok := raw[field].(string)
		s = strings.TrimSpace(s)
		if !ok || s == "" {
			missing = append(missing, field)
			continue
		}
		values[field] = s
	}

	if len(missing) > 0 {
		return domain.ShareEvent{}, &domain.ValidationError{Missing: missing}
	}

	return domain.ShareEvent{
		ItemID:    values["itemId"],
		UserID:    values["userId"],
		Timestamp: values["timestamp"],
		RequestID: values["requestId"],
	}, nil
}
