package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/phonebook/internal/chardev"
	"github.com/danmuck/phonebook/internal/directory"
	"github.com/danmuck/phonebook/internal/phonebook"
	"github.com/danmuck/phonebook/internal/testutil/testlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHTTP(t *testing.T, chunk int, opts ...Option) (*HTTP, *chardev.Device) {
	t.Helper()
	testlog.Start(t)
	dev := chardev.New("phonebook0", phonebook.New(directory.New()))
	t.Cleanup(dev.Shutdown)
	return NewHTTP(":0", dev, chunk, []string{"http://localhost:3000"}, opts...), dev
}

func serve(t *testing.T, s *HTTP, method, target, body string, headers ...string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rr := httptest.NewRecorder()
	s.Router().ServeHTTP(rr, req)
	var decoded map[string]any
	if strings.HasPrefix(rr.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &decoded), "body=%s", rr.Body.String())
	}
	return rr, decoded
}

func TestHTTPCommandRoundTrip(t *testing.T) {
	s, _ := newHTTP(t, 3)

	rr, body := serve(t, s, http.MethodPost, "/command", "-i -s Doe -n John -e j@doe")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "insert", body["op"])
	assert.Equal(t, phonebook.StatusInserted.String(), body["status"])
	assert.Equal(t, phonebook.StatusInserted.Message(), body["output"])

	rr, body = serve(t, s, http.MethodPost, "/command", "-g -s Doe -n John")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Surname:\tDoe\nName:\t\tJohn\nEmail:\t\tj@doe\n", body["output"])
	assert.EqualValues(t, len("-g -s Doe -n John"), body["consumed"])
}

func TestHTTPStatusCodes(t *testing.T) {
	s, _ := newHTTP(t, 64)

	cases := []struct {
		body string
		code int
		st   phonebook.Status
	}{
		{"-x", http.StatusBadRequest, phonebook.StatusInvalidOperation},
		{"-g", http.StatusBadRequest, phonebook.StatusMissingSurname},
		{"-i -s Doe", http.StatusBadRequest, phonebook.StatusMissingName},
		{"-g -s Nobody", http.StatusNotFound, phonebook.StatusSurnameNotFound},
		{"-d", http.StatusOK, phonebook.StatusDeleted},
	}
	for _, tc := range cases {
		rr, body := serve(t, s, http.MethodPost, "/command", tc.body)
		assert.Equal(t, tc.code, rr.Code, "command %q", tc.body)
		assert.Equal(t, tc.st.String(), body["status"], "command %q", tc.body)
		assert.Equal(t, tc.st.Message(), body["output"], "command %q", tc.body)
	}

	rr, body := serve(t, s, http.MethodPost, "/command", "-x")
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.NotEmpty(t, body["error"])
}

func TestHTTPResponsePaging(t *testing.T) {
	s, _ := newHTTP(t, 64)
	serve(t, s, http.MethodPost, "/command", "-i -s Doe -n John")
	serve(t, s, http.MethodPost, "/command", "-g -s Doe")
	full := "Surname:\tDoe\nName:\t\tJohn\n"

	var paged strings.Builder
	for i := 0; i < 32; i++ {
		rr, body := serve(t, s, http.MethodGet, "/response?max=4", "")
		require.Equal(t, http.StatusOK, rr.Code)
		if body["final"] == true {
			break
		}
		paged.WriteString(body["output"].(string))
	}
	assert.Equal(t, full, paged.String())

	// the cursor rewound after the end marker
	_, body := serve(t, s, http.MethodGet, "/response", "")
	assert.Equal(t, full, body["output"])
	assert.Equal(t, phonebook.StatusResult.String(), body["status"])

	rr, _ := serve(t, s, http.MethodGet, "/response?max=zero", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHTTPBusyAndDown(t *testing.T) {
	s, dev := newHTTP(t, 64)
	h, err := dev.Open()
	require.NoError(t, err)

	rr, _ := serve(t, s, http.MethodPost, "/command", "-g -s Doe")
	assert.Equal(t, http.StatusConflict, rr.Code)
	require.NoError(t, h.Close())

	dev.Shutdown()
	rr, _ = serve(t, s, http.MethodPost, "/command", "-g -s Doe")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestHTTPHealthAndMetrics(t *testing.T) {
	s, _ := newHTTP(t, 64)
	serve(t, s, http.MethodPost, "/command", "-i -s Doe -n John")

	rr, body := serve(t, s, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "phonebook0", body["device"])
	assert.EqualValues(t, 1, body["surnames"])
	assert.EqualValues(t, 1, body["contacts"])

	rr, _ = serve(t, s, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "phonebook_directory_commands_total")
	assert.Contains(t, rr.Body.String(), "phonebook_http_requests_total")
}

func TestHTTPServeStopsOnCancel(t *testing.T) {
	s, _ := newHTTP(t, 64)
	s.addr = "127.0.0.1:0"
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, time.Second) }()
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatalf("serve did not return after cancel")
	}
}
