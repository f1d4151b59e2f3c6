package dto

import (
	"github.com/phijaro/octo-oauth-demo/internal/domain"
	"github.com/phijaro/octo-oauth-demo/internal/sink"
)

// CallbackResponse is the JSON form of a successful callback.
type CallbackResponse struct {
	State        domain.CallbackState `json:"state"`
	EnrollmentID string               `json:"enrollment_id"`
	Enrollment   domain.RedactedView  `json:"enrollment"`
	Sinks        []SinkResultResponse `json:"sinks"`
}

// SinkResultResponse reports one sink. Error text is not exposed.
type SinkResultResponse struct {
	Sink   string `json:"sink"`
	Status string `json:"status"`
}

// NewSinkResults converts fan-out results for the response body.
func NewSinkResults(results sink.Results) []SinkResultResponse {
	out := make([]SinkResultResponse, 0, len(results))
	for _, res := range results {
		out = append(out, SinkResultResponse{Sink: res.Sink, Status: string(res.Status)})
	}
	return out
}
