package helpers

import (
	"encoding/json"
	"net/http"

	"github.com/isometry/gh-tag-trigger/internal/models"
)

type httpResponse struct {
	Message any    `json:"message"`
	Error   string `json:"error,omitempty"`
}

// RespondHTTP writes response as a JSON document, attaching err when present.
// A body that is itself a JSON document is embedded as is. A zero status code is reported as 200.
func RespondHTTP(response models.Response, err error, rw http.ResponseWriter) {
	hR := httpResponse{
		Message: response.Body,
	}
	if response.Body != "" && json.Valid([]byte(response.Body)) {
		hR.Message = json.RawMessage(response.Body)
	}
	if err != nil {
		hR.Error = err.Error()
	}

	respBody, _ := json.Marshal(hR)
	statusCode := response.StatusCode
	if statusCode == 0 {
		statusCode = http.StatusOK
	}
	rw.Header().Set("Content-Type", "application/json")
	for k, v := range response.Headers {
		rw.Header().Set(k, v)
	}
	rw.WriteHeader(statusCode)
	_, _ = rw.Write(respBody)
}
