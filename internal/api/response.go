// Package api implements the broker's HTTP RPC surface. It uses Chi as
// the router and exposes every agent, message, context, and status
// endpoint under the bare root — there is no auth layer, by design: this
// broker is meant to run on a trusted LAN among coding-agent instances.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/skvil/piertotum/internal/state"
)

// envelope is the standard JSON response wrapper: successful responses
// wrap the payload under "data"; error responses carry a
// machine-readable "error" object.
type envelope map[string]any

// JSON writes a JSON-encoded response with the given status code.
func JSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// Ok writes a 200 OK response with the payload wrapped under "data".
func Ok(w http.ResponseWriter, payload any) {
	JSON(w, http.StatusOK, envelope{"data": payload})
}

// errorResponse is the shape of the "error" object in error responses.
type errorResponse struct {
	Message string `json:"message"`
	Kind    string `json:"kind,omitempty"`
}

// ErrJSON writes a JSON error response. status is derived by the caller
// from the state.Kind (see kindToStatus); kind is included so the worker
// RPC client can normalize it without needing substring matching.
func ErrJSON(w http.ResponseWriter, status int, message, kind string) {
	JSON(w, status, envelope{"error": errorResponse{Message: message, Kind: kind}})
}

// WriteEngineError maps a *state.Error (or any error) to the
// appropriate HTTP status and writes it as a JSON error response.
func WriteEngineError(w http.ResponseWriter, err error) {
	kind := state.KindOf(err)
	status := kindToStatus(kind)
	ErrJSON(w, status, err.Error(), kind.String())
}

func kindToStatus(k state.Kind) int {
	switch k {
	case state.KindInvalidArgument:
		return http.StatusBadRequest
	case state.KindNotFound:
		return http.StatusNotFound
	case state.KindResourceExhausted:
		return http.StatusTooManyRequests
	case state.KindPayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}

// ErrBadRequest writes a 400 Bad Request error response.
func ErrBadRequest(w http.ResponseWriter, message string) {
	ErrJSON(w, http.StatusBadRequest, message, state.KindInvalidArgument.String())
}

// ErrNotFound writes a 404 Not Found error response.
func ErrNotFound(w http.ResponseWriter, message string) {
	ErrJSON(w, http.StatusNotFound, message, state.KindNotFound.String())
}

// decodeJSON decodes the request body into dst. Writes a 400 and
// returns false on failure so callers can early-return.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MB limit — framing, not content quota
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		ErrBadRequest(w, "invalid request body: "+err.Error())
		return false
	}
	return true
}
