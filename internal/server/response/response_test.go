package response

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/contactgraph/internal/contact"
)

func TestIdentity(t *testing.T) {
	w := httptest.NewRecorder()
	Identity(w, contact.Summary{
		PrimaryContactID:    1,
		Emails:              []string{"a@x.com"},
		PhoneNumbers:        []string{},
		SecondaryContactIDs: []int64{2, 3},
	})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t,
		`{"contact":{"primaryContactId":1,"emails":["a@x.com"],"phoneNumbers":[],"secondaryContactIds":[2,3]}}`,
		w.Body.String())
}

func TestErrorBodies(t *testing.T) {
	tests := []struct {
		name   string
		write  func(http.ResponseWriter)
		status int
		body   string
	}{
		{
			name:   "bad request",
			write:  func(w http.ResponseWriter) { BadRequest(w, "email or phoneNumber is required") },
			status: http.StatusBadRequest,
			body:   `{"status":"Invalid request","message":"email or phoneNumber is required"}`,
		},
		{
			name:   "not found",
			write:  NotFound,
			status: http.StatusNotFound,
			body:   `{"status":"Not found","message":"No identity matches this contact"}`,
		},
		{
			name:   "internal",
			write:  InternalError,
			status: http.StatusInternalServerError,
			body:   `{"status":"Internal error","message":"Please try again later"}`,
		},
		{
			name:   "unavailable",
			write:  ServiceUnavailable,
			status: http.StatusServiceUnavailable,
			body:   `{"status":"Service temporarily unavailable","message":"Please try again later"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.write(w)
			assert.Equal(t, tt.status, w.Code)
			assert.JSONEq(t, tt.body, w.Body.String())
		})
	}
}

func TestOK(t *testing.T) {
	w := httptest.NewRecorder()
	OK(w, "ok", "contactgraph")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","service":"contactgraph"}`, w.Body.String())
}
