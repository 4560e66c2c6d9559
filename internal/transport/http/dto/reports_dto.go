package dto

type ReportRequest struct {
	TargetID string `json:"target_id"`
	Reason   string `json:"reason"`
	Details  string `json:"details,omitempty"`
}

type ReportResponse struct {
	ID int64 `json:"id"`
}

type UnblockResponse struct {
	Unblocked bool `json:"unblocked"`
}
