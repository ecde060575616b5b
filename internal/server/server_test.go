package server_test

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/contactgraph/internal/contact"
	"github.com/roach88/contactgraph/internal/logging"
	"github.com/roach88/contactgraph/internal/reconcile"
	"github.com/roach88/contactgraph/internal/server"
	"github.com/roach88/contactgraph/internal/store"
	"github.com/roach88/contactgraph/internal/testutil"
)

const unavailableBody = `{"status":"Service temporarily unavailable","message":"Please try again later"}`

type testServer struct {
	handler http.Handler
	store   *store.Store
	logs    *bytes.Buffer
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "contacts.db"), store.WithClock(testutil.NewDeterministicClock().Now))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	logs := &bytes.Buffer{}
	logger := logging.NewWriter(logs, zerolog.DebugLevel)
	srv := server.New(reconcile.New(s), s, server.Config{},
		server.WithIDGenerator(testutil.NewSequentialIDGenerator("req")),
		server.WithLogger(logger),
	)
	return &testServer{handler: srv.Handler(), store: s, logs: logs}
}

func (ts *testServer) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, req)
	return w
}

func TestIdentify_FreshContact(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodPost, "/api/identify", `{"email":"a@x.com","phoneNumber":"123"}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "req-1", w.Header().Get(server.RequestIDHeader))
	assert.JSONEq(t,
		`{"contact":{"primaryContactId":1,"emails":["a@x.com"],"phoneNumbers":["123"],"secondaryContactIds":[]}}`,
		w.Body.String())
}

func TestIdentify_MergeFlow(t *testing.T) {
	ts := newTestServer(t)

	ts.do(http.MethodPost, "/api/identify", `{"email":"a@x.com","phoneNumber":"111"}`)
	ts.do(http.MethodPost, "/api/identify", `{"email":"b@y.com","phoneNumber":"222"}`)
	w := ts.do(http.MethodPost, "/api/identify", `{"email":"a@x.com","phoneNumber":"222"}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t,
		`{"contact":{"primaryContactId":1,"emails":["a@x.com","b@y.com"],"phoneNumbers":["111","222"],"secondaryContactIds":[2,3]}}`,
		w.Body.String())
}

func TestIdentify_NumericPhoneAndNulls(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodPost, "/api/identify", `{"email":null,"phoneNumber":5551234}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t,
		`{"contact":{"primaryContactId":1,"emails":[],"phoneNumbers":["5551234"],"secondaryContactIds":[]}}`,
		w.Body.String())
}

func TestIdentify_EmptyObservationRejected(t *testing.T) {
	ts := newTestServer(t)

	for _, body := range []string{`{}`, `{"email":"","phoneNumber":"  "}`, `{"email":null,"phoneNumber":null}`} {
		w := ts.do(http.MethodPost, "/api/identify", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
		assert.JSONEq(t, `{"status":"Invalid request","message":"email or phoneNumber is required"}`, w.Body.String())
	}

	all, err := ts.store.ReadAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestIdentify_MalformedBody(t *testing.T) {
	ts := newTestServer(t)

	for _, body := range []string{``, `not json`, `[1,2]`, `{"phoneNumber":true}`} {
		w := ts.do(http.MethodPost, "/api/identify", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
	}
}

func TestIdentify_MethodNotAllowed(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(http.MethodGet, "/api/identify", "")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestIdentify_StoreUnavailable(t *testing.T) {
	ts := newTestServer(t)
	require.NoError(t, ts.store.Close())

	w := ts.do(http.MethodPost, "/api/identify", `{"email":"a@x.com"}`)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, unavailableBody, w.Body.String())
	assert.NotContains(t, w.Body.String(), "closed")
	assert.Contains(t, ts.logs.String(), `"message":"store unavailable"`)
	assert.Contains(t, ts.logs.String(), `"request_id":"req-1"`)
}

func TestContactIdentity(t *testing.T) {
	ts := newTestServer(t)
	ts.do(http.MethodPost, "/api/identify", `{"email":"a@x.com","phoneNumber":"111"}`)
	ts.do(http.MethodPost, "/api/identify", `{"email":"a@x.com","phoneNumber":"222"}`)

	want := `{"contact":{"primaryContactId":1,"emails":["a@x.com"],"phoneNumbers":["111","222"],"secondaryContactIds":[2]}}`
	for _, path := range []string{"/api/contacts/1/identity", "/api/contacts/2/identity"} {
		w := ts.do(http.MethodGet, path, "")
		assert.Equal(t, http.StatusOK, w.Code, path)
		assert.JSONEq(t, want, w.Body.String(), path)
	}

	w := ts.do(http.MethodGet, "/api/contacts/99/identity", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ts.do(http.MethodGet, "/api/contacts/abc/identity", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealthAndReady(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","service":"contactgraph"}`, w.Body.String())

	w = ts.do(http.MethodGet, "/api/ready", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ready","service":"contactgraph"}`, w.Body.String())

	require.NoError(t, ts.store.Close())
	w = ts.do(http.MethodGet, "/api/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, unavailableBody, w.Body.String())

	// Liveness does not depend on the store.
	w = ts.do(http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequestID_IncomingHeaderKept(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set(server.RequestIDHeader, "client-42")
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, req)

	assert.Equal(t, "client-42", w.Header().Get(server.RequestIDHeader))
	assert.Contains(t, ts.logs.String(), `"request_id":"client-42"`)
	assert.Contains(t, ts.logs.String(), `"status":200`)
}

// stubEngine returns fixed results.
type stubEngine struct {
	err   error
	panic bool
}

func (s stubEngine) Identify(context.Context, contact.Observation) (contact.Summary, error) {
	if s.panic {
		panic("boom")
	}
	return contact.Summary{}, s.err
}

func (s stubEngine) Summarize(context.Context, int64) (contact.Summary, error) {
	return contact.Summary{}, s.err
}

type okPinger struct{}

func (okPinger) Ping(context.Context) error { return nil }

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		alert  bool
	}{
		{"invariant", &reconcile.Error{Code: reconcile.CodeInvariantViolation, Message: "two primaries"}, http.StatusInternalServerError, true},
		{"store", &reconcile.Error{Code: reconcile.CodeStoreUnavailable, Op: "promote", Err: errors.New("disk I/O error")}, http.StatusServiceUnavailable, false},
		{"unclassified", errors.New("surprise"), http.StatusServiceUnavailable, false},
		{"not found", &reconcile.Error{Code: reconcile.CodeNotFound}, http.StatusNotFound, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logs := &bytes.Buffer{}
			srv := server.New(stubEngine{err: tt.err}, okPinger{}, server.Config{},
				server.WithLogger(logging.NewWriter(logs, zerolog.InfoLevel)))

			req := httptest.NewRequest(http.MethodPost, "/api/identify", strings.NewReader(`{"email":"a@x.com"}`))
			w := httptest.NewRecorder()
			srv.Handler().ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			assert.NotContains(t, w.Body.String(), "disk")
			assert.NotContains(t, w.Body.String(), "primaries")
			assert.Equal(t, tt.alert, strings.Contains(logs.String(), `"alert":"invariant"`))
		})
	}
}

func TestRecovery(t *testing.T) {
	logs := &bytes.Buffer{}
	srv := server.New(stubEngine{panic: true}, okPinger{}, server.Config{},
		server.WithLogger(logging.NewWriter(logs, zerolog.InfoLevel)))

	req := httptest.NewRequest(http.MethodPost, "/api/identify", strings.NewReader(`{"email":"a@x.com"}`))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, logs.String(), "Panic recovered")
}

func TestListenAndServe_StopsOnCancel(t *testing.T) {
	srv := server.New(stubEngine{}, okPinger{}, server.Config{
		Addr:         "127.0.0.1:0",
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.ListenAndServe(ctx) }()

	cancel()
	assert.NoError(t, <-done)
}
