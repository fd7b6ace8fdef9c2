package httputil

import (
	"encoding/json"
	"net/http"

	"github.com/laundryhub/gateway/internal/errors"
)

// WriteJSON writes v as a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// errorBody is the JSON shape of all gateway error responses.
type errorBody struct {
	Error   string                 `json:"error"`
	Code    errors.ErrorCode       `json:"code"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// WriteError writes err as a JSON error response. Non-ServiceError values
// are reported as an internal error without leaking their message.
func WriteError(w http.ResponseWriter, err error) {
	se := errors.GetServiceError(err)
	if se == nil {
		se = errors.Internal("Internal server error", err)
	}
	WriteJSON(w, se.HTTPStatus, errorBody{
		Error:   se.Message,
		Code:    se.Code,
		Details: se.Details,
	})
}
