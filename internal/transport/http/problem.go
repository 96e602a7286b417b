package transporthttp

import (
	"encoding/json"
	"net/http"

	"github.com/miladsoleymani/eventgate/core"
)

// StatusClientClosedRequest is the non-standard status for a caller that
// went away before the outcome was known.
const StatusClientClosedRequest = 499

const (
	OutcomeNotDelivered = "not_delivered"
	OutcomeUnknown      = "unknown"
)

// Problem is an RFC 7807 body extended with the publish error fields.
type Problem struct {
	Type    string `json:"type,omitempty"`
	Title   string `json:"title,omitempty"`
	Status  int    `json:"status,omitempty"`
	Detail  string `json:"detail,omitempty"`
	Kind    string `json:"kind,omitempty"`
	Outcome string `json:"outcome,omitempty"`
	EventID string `json:"event_id,omitempty"`
}

func WriteProblem(w http.ResponseWriter, p Problem) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}

// StatusFor maps an error kind to its HTTP status.
func StatusFor(kind core.Kind) int {
	switch kind {
	case core.KindInvalidArgument:
		return http.StatusBadRequest
	case core.KindTopicNotFound:
		return http.StatusNotFound
	case core.KindTimeout:
		return http.StatusGatewayTimeout
	case core.KindCanceled:
		return StatusClientClosedRequest
	case core.KindSerializationError, core.KindUnknown:
		return http.StatusInternalServerError
	default:
		return http.StatusServiceUnavailable
	}
}

// WritePublishError writes err as a problem carrying its kind, delivery
// outcome and event id.
func WritePublishError(w http.ResponseWriter, err error) {
	ge := core.AsError(err)
	outcome := OutcomeNotDelivered
	if ge.OutcomeUnknown() {
		outcome = OutcomeUnknown
	}
	WriteProblem(w, Problem{
		Type:    "urn:eventgate:error:" + ge.Kind.String(),
		Title:   ge.Kind.String(),
		Status:  StatusFor(ge.Kind),
		Detail:  ge.Error(),
		Kind:    ge.Kind.String(),
		Outcome: outcome,
		EventID: ge.EventID,
	})
}
