package rabbitmq

// BatchReportDTO is the body published to the batch report routing key.
type BatchReportDTO struct {
	BatchID           string   `json:"batchId"`
	Total             int      `json:"total"`
	Succeeded         int      `json:"succeeded"`
	Failed            int      `json:"failed"`
	Skipped           int      `json:"skipped"`
	PermanentFailures int      `json:"permanentFailures"`
	FailedRecordIDs   []string `json:"failedRecordIds"`
}
