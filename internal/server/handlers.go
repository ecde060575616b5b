package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/roach88/contactgraph/internal/contact"
	"github.com/roach88/contactgraph/internal/logging"
	"github.com/roach88/contactgraph/internal/reconcile"
	"github.com/roach88/contactgraph/internal/server/response"
)

// maxBodyBytes bounds an identify request body.
const maxBodyBytes = 64 << 10

// identifyRequest is the body of POST /api/identify.
type identifyRequest struct {
	Email       flexString `json:"email"`
	PhoneNumber flexString `json:"phoneNumber"`
}

// flexString accepts a JSON string, number or null. Clients commonly send
// phone numbers as bare numbers.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*f = ""
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("expected string or number, got %s", data)
		}
		*f = flexString(n.String())
	}
	return nil
}

// handleIdentify handles POST /api/identify.
func (s *Server) handleIdentify(w http.ResponseWriter, r *http.Request) {
	var req identifyRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		logging.FromContext(r.Context()).Warn().Err(err).Msg("malformed identify request")
		response.BadRequest(w, "request body must be a JSON object")
		return
	}

	summary, err := s.engine.Identify(r.Context(), contact.Observation{
		Email:       string(req.Email),
		PhoneNumber: string(req.PhoneNumber),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	response.Identity(w, summary)
}

// handleIdentity handles GET /api/contacts/{id}/identity.
func (s *Server) handleIdentity(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(w, "contact id must be a positive integer")
		return
	}

	summary, err := s.engine.Summarize(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	response.Identity(w, summary)
}

// handleHealth handles GET /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	response.OK(w, "ok", "contactgraph")
}

// handleReady handles GET /api/ready.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		logging.FromContext(r.Context()).Error().Err(err).Msg("store not ready")
		response.ServiceUnavailable(w)
		return
	}
	response.OK(w, "ready", "contactgraph")
}

// writeError maps engine errors to generic responses. The cause is logged,
// never returned to the client.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	log := logging.FromContext(r.Context())
	switch {
	case reconcile.IsInvalidObservation(err):
		response.BadRequest(w, "email or phoneNumber is required")
	case reconcile.IsNotFound(err):
		response.NotFound(w)
	case reconcile.IsInvariantViolation(err):
		log.Error().Err(err).Str("alert", "invariant").Msg("identity graph invariant violated")
		response.InternalError(w)
	default:
		var re *reconcile.Error
		if !errors.As(err, &re) {
			log.Error().Err(err).Msg("unclassified engine error")
		} else {
			log.Error().Err(err).Str("op", re.Op).Msg("store unavailable")
		}
		response.ServiceUnavailable(w)
	}
}
