package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/hlog"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// WriteError writes the gateway JSON error envelope.
func WriteError(w http.ResponseWriter, r *http.Request, code int, errCode, msg string) {
	body := errorBody{Error: errorDetail{Code: errCode, Message: msg}}
	if r != nil {
		if id, ok := hlog.IDFromRequest(r); ok {
			body.Error.RequestID = id.String()
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
