package feed

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestRequestIDHeader(t *testing.T) {
	f := newFixture(t, false)

	resp := f.get(t, "/rows", "")
	generated := resp.Header.Get(RequestIDHeader)
	assert.NotEmpty(t, generated)

	req, err := http.NewRequest(http.MethodGet, f.ts.URL+"/rows", nil)
	require.NoError(t, err)
	req.Header.Set(RequestIDHeader, "req-1")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "req-1", resp.Header.Get(RequestIDHeader))
}

func TestRequestLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	f := newFixture(t, false, WithLogger(zap.New(core)))

	f.get(t, "/rows/7", "")

	// The entry is written after the response is flushed.
	require.Eventually(t, func() bool {
		return logs.FilterMessage("Request").Len() > 0
	}, 5*time.Second, 10*time.Millisecond)
	entries := logs.FilterMessage("Request").All()
	fields := entries[len(entries)-1].ContextMap()
	assert.Equal(t, "/rows/7", fields["path"])
	assert.Equal(t, int64(http.StatusNotFound), fields["status"])
	assert.NotEmpty(t, fields["request_id"])
}

func TestRecoverer(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	handler := requestID(recoverer(zap.New(core))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/rows", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "internal server error")
	require.Equal(t, 1, logs.FilterMessage("Handler panicked").Len())
	assert.Equal(t, "boom", logs.All()[0].ContextMap()["panic"])
}
