package contracts

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateKeyFromPath(t *testing.T) {
	assert.Equal(t, "ShareItemEvent/1.0.0", generateKeyFromPath("events/share-item/v1.json"))
	assert.Equal(t, "ShareBatchReportEvent/2.0.0", generateKeyFromPath("events/share-batch-report/v2.json"))
	assert.Equal(t, "", generateKeyFromPath("events/v1.json"))
}

func TestValidateEvent_ShareItem(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{
			name: "valid",
			body: `{"type":"SHARE_ITEM","itemId":"item-1","userId":"user-1","timestamp":"2026-10-19T10:00:00.123Z","requestId":"req-1"}`,
		},
		{
			name:    "missing request id",
			body:    `{"type":"SHARE_ITEM","itemId":"item-1","userId":"user-1","timestamp":"2026-10-19T10:00:00Z"}`,
			wantErr: true,
		},
		{
			name:    "timestamp is not a date-time",
			body:    `{"type":"SHARE_ITEM","itemId":"item-1","userId":"user-1","timestamp":"yesterday","requestId":"req-1"}`,
			wantErr: true,
		},
		{
			name:    "wrong type",
			body:    `{"type":"DELETE_ITEM","itemId":"item-1","userId":"user-1","timestamp":"2026-10-19T10:00:00Z","requestId":"req-1"}`,
			wantErr: true,
		},
		{
			name:    "not json",
			body:    `{`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEvent("ShareItemEvent", "1.0.0", []byte(tt.body))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestValidateEvent_BatchReport(t *testing.T) {
	body := `{"batchId":"7d0b1c9e-3a52-4f7e-b2f5-0d3c6e9a8b71","total":3,"succeeded":2,"failed":1,"skipped":1,"permanentFailures":1,"failedRecordIds":["3"]}`
	assert.NoError(t, ValidateEvent("ShareBatchReportEvent", "1.0.0", []byte(body)))
	assert.Error(t, ValidateEvent("ShareBatchReportEvent", "1.0.0", []byte(`{"batchId":"x"}`)))
}

func TestValidateEvent_UnknownSchema(t *testing.T) {
	assert.Error(t, ValidateEvent("NopeEvent", "1.0.0", []byte(`{}`)))
}
