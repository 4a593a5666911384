package handlers

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"lawncare/internal/core"
)

type mockClock struct{ now time.Time }

func (c mockClock) Now() time.Time { return c.now }

var testNow = time.Date(2026, 6, 10, 9, 0, 0, 0, time.UTC)

func testLogger() *slog.Logger { return slog.New(slog.DiscardHandler) }

func testValidator() *core.Validator { return core.NewValidator(testLogger()) }

// serve mounts register on a fresh router and runs one request through it.
// A non-string body is JSON encoded.
func serve(t *testing.T, register func(chi.Router), method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}

	r := chi.NewRouter()
	register(r)

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// decodeData unwraps the {"data": ...} envelope into dst.
func decodeData(t *testing.T, w *httptest.ResponseRecorder, dst any) {
	t.Helper()
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	require.NoError(t, json.Unmarshal(env.Data, dst), string(env.Data))
}

// errorCode pulls error.code out of a core.Error envelope.
func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var env core.APIErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env.Error.Code
}

// jsonField returns data.<name> as raw JSON.
func jsonField(t *testing.T, w *httptest.ResponseRecorder, name string) string {
	t.Helper()
	var fields map[string]json.RawMessage
	decodeData(t, w, &fields)
	raw, ok := fields[name]
	require.True(t, ok, "field %s missing from %s", name, w.Body.String())
	return string(raw)
}
