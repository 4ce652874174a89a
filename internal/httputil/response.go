// Package httputil holds the JSON request and response helpers shared by the
// presale HTTP API, its middleware and its client.
package httputil

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"

	"github.com/R3E-Network/presale_layer/internal/errors"
	"github.com/R3E-Network/presale_layer/internal/logging"
)

// MaxBodyBytes bounds request bodies read by DecodeJSON.
const MaxBodyBytes = 1 << 20

// ErrorBody is the JSON envelope of every error response.
type ErrorBody struct {
	Error   ErrorDetail `json:"error"`
	TraceID string      `json:"trace_id,omitempty"`
}

type ErrorDetail struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// WriteErrorResponse writes the error envelope.
func WriteErrorResponse(w http.ResponseWriter, r *http.Request, status int, code, message string, details map[string]interface{}) {
	body := ErrorBody{Error: ErrorDetail{Code: code, Message: message, Details: details}}
	if r != nil {
		body.TraceID = logging.GetTraceID(r.Context())
	}
	WriteJSON(w, status, body)
}

// WriteError maps err to a ServiceError and writes it.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	se := errors.FromDomain(err)
	WriteErrorResponse(w, r, se.HTTPStatus, string(se.Code), se.Message, se.Details)
}

// Unauthorized writes a 401 with message, or a default one.
func Unauthorized(w http.ResponseWriter, message string) {
	if message == "" {
		message = "Authentication required"
	}
	se := errors.Unauthorized(message)
	WriteErrorResponse(w, nil, se.HTTPStatus, string(se.Code), se.Message, nil)
}

// DecodeJSON strictly decodes the request body into dst. Unknown fields,
// trailing data and bodies over MaxBodyBytes are rejected.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if stderrors.As(err, &maxErr) {
			return errors.InvalidFormat("body", fmt.Sprintf("exceeds %d bytes", maxErr.Limit))
		}
		if stderrors.Is(err, io.EOF) {
			return errors.InvalidFormat("body", "empty request body")
		}
		return errors.InvalidFormat("body", err.Error())
	}
	if dec.More() {
		return errors.InvalidFormat("body", "unexpected data after JSON object")
	}
	return nil
}

// ReadAllWithLimit reads at most limit bytes and reports whether more were
// available.
func ReadAllWithLimit(r io.Reader, limit int64) ([]byte, bool, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, false, err
	}
	if int64(len(data)) > limit {
		return data[:limit], true, nil
	}
	return data, false, nil
}

// ReadAllStrict reads r and fails when it holds more than limit bytes.
func ReadAllStrict(r io.Reader, limit int64) ([]byte, error) {
	data, truncated, err := ReadAllWithLimit(r, limit)
	if err != nil {
		return nil, err
	}
	if truncated {
		return nil, fmt.Errorf("body exceeds %d bytes", limit)
	}
	return data, nil
}
