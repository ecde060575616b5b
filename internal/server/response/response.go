// Package response writes the JSON bodies of the contactgraph HTTP API.
//
// Identity payloads use the {"contact": {...}} shape. Every error uses the
// same two-field Notice so nothing about the failure leaks to the client;
// the detail goes to the server log instead.
package response

import (
	"encoding/json"
	"net/http"

	"github.com/roach88/contactgraph/internal/contact"
)

// Notice is the body of every error response.
type Notice struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Status is the body of health and readiness responses.
type Status struct {
	Status  string `json:"status"`
	Service string `json:"service,omitempty"`
}

// JSON writes v as JSON with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Encoding errors are ignored as headers are already sent (best effort)
	_ = json.NewEncoder(w).Encode(v)
}

// Identity writes a 200 response carrying one identity summary.
func Identity(w http.ResponseWriter, summary contact.Summary) {
	JSON(w, http.StatusOK, contact.Envelope{Contact: summary})
}

// OK writes a 200 status body.
func OK(w http.ResponseWriter, status, service string) {
	JSON(w, http.StatusOK, Status{Status: status, Service: service})
}

// BadRequest writes a 400 response.
func BadRequest(w http.ResponseWriter, message string) {
	JSON(w, http.StatusBadRequest, Notice{Status: "Invalid request", Message: message})
}

// NotFound writes a 404 response.
func NotFound(w http.ResponseWriter) {
	JSON(w, http.StatusNotFound, Notice{Status: "Not found", Message: "No identity matches this contact"})
}

// InternalError writes a 500 response. The cause is never written.
func InternalError(w http.ResponseWriter) {
	JSON(w, http.StatusInternalServerError, Notice{Status: "Internal error", Message: "Please try again later"})
}

// ServiceUnavailable writes a 503 response. The cause is never written.
func ServiceUnavailable(w http.ResponseWriter) {
	JSON(w, http.StatusServiceUnavailable, Notice{Status: "Service temporarily unavailable", Message: "Please try again later"})
}
