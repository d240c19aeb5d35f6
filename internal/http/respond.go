package httpx

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
)

const maxBodyBytes = 1 << 20

type errorBody struct {
	Message string `json:"message"`
	Stack   string `json:"stack,omitempty"`
}

// writeJSON writes JSON response with status code.
func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeSuccess(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, map[string]any{"success": true, "data": data})
}

func writeList[T any](w http.ResponseWriter, data []T) {
	if data == nil {
		data = []T{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "count": len(data), "data": data})
}

// respondError is the single writer of error bodies. APIError values keep
// their status and message; anything else becomes a 500 "Server error".
func (r *Router) respondError(w http.ResponseWriter, req *http.Request, err error) {
	status := http.StatusInternalServerError
	message := "Server error"
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		status = apiErr.StatusCode
		message = apiErr.Message
	}
	if status >= http.StatusInternalServerError {
		r.logger.Error("request failed", "error", err, "method", req.Method, "path", req.URL.Path)
	}
	body := errorBody{Message: message}
	if r.development {
		body.Stack = stackOf(err)
	}
	writeJSON(w, status, body)
}

// decodeJSON reads a JSON object into dst. An empty body leaves dst untouched.
func decodeJSON(w http.ResponseWriter, req *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, req.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return wrapAPIError(http.StatusBadRequest, "Invalid JSON body", err)
	}
	return nil
}
