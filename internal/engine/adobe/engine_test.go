package adobe_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"convertflow/internal/config"
	"convertflow/internal/domain"
	"convertflow/internal/engine"
	"convertflow/internal/engine/adobe"
	"convertflow/internal/port"
)

const extractResult = `{
  "pages": [{}, {}],
  "elements": [
    {"Path": "//Document/H1", "Text": "Statement", "Page": 0},
    {"Path": "//Document/Table/TR/TH/P", "Text": "Date", "Page": 1},
    {"Path": "//Document/Table/TR/TH[2]/P", "Text": "Amount", "Page": 1},
    {"Path": "//Document/Table/TR[2]/TD/P", "Text": "2024-01-02", "Page": 1},
    {"Path": "//Document/Table/TR[2]/TD[2]/P", "Text": "10.00", "Page": 1}
  ]
}`

type fakeAdobe struct {
	server      *httptest.Server
	pollsBefore int32
	polls       int32
	finalStatus string
	submitCode  int
}

func newFakeAdobe(t *testing.T, pollsBefore int32, finalStatus string) *fakeAdobe {
	t.Helper()
	f := &fakeAdobe{pollsBefore: pollsBefore, finalStatus: finalStatus, submitCode: http.StatusCreated}
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "client-id", r.Form.Get("client_id"))
		assert.Equal(t, "secret", r.Form.Get("client_secret"))
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"access_token": "tok", "expires_in": 86400})
	})
	mux.HandleFunc("/assets", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "client-id", r.Header.Get("x-api-key"))
		_ = json.NewEncoder(w).Encode(map[string]string{"uploadUri": f.server.URL + "/upload", "assetID": "asset-1"})
	})
	mux.HandleFunc("/upload", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "application/pdf", r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/operation/extractpdf", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "asset-1", body["assetID"])
		if f.submitCode == http.StatusTooManyRequests {
			w.Header().Set("Retry-After", "90")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Header().Set("Location", f.server.URL+"/status/job-1")
		w.WriteHeader(f.submitCode)
	})
	mux.HandleFunc("/status/job-1", func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&f.polls, 1)
		if n <= f.pollsBefore {
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "in progress"})
			return
		}
		if f.finalStatus == "failed" {
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"status": "failed",
				"error":  map[string]string{"code": "BAD_PDF", "message": "corrupt"},
			})
			return
		}
		if f.finalStatus == "never" {
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "in progress"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"status":  "done",
			"content": map[string]string{"downloadUri": f.server.URL + "/download/result.json"},
		})
	})
	mux.HandleFunc("/download/result.json", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(extractResult))
	})
	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func newEngine(url string) *adobe.Engine {
	return adobe.NewEngine(&config.EngineConfig{Endpoint: url, ClientID: "client-id", APIKey: "secret"})
}

func pollFast(e *adobe.Engine) *adobe.Engine {
	adobe.SetPollInterval(e, 5*time.Millisecond)
	return e
}

func TestConvert_PollsUntilDone(t *testing.T) {
	f := newFakeAdobe(t, 2, "done")
	e := pollFast(newEngine(f.server.URL))

	out, err := e.Convert(context.Background(), port.ConvertInput{FileBytes: []byte("%PDF"), Format: domain.OutputExcel, PageCount: 2})

	require.NoError(t, err)
	assert.Equal(t, domain.EngineAdobe, e.Name())
	assert.Equal(t, int32(3), atomic.LoadInt32(&f.polls))
	assert.Equal(t, 2, out.PagesProcessed)
	assert.Equal(t, ".xlsx", out.Extension)
	require.Len(t, out.Layouts, 1)
	assert.Equal(t, domain.RenderedLayout{PageNumber: 2, Rows: 2, Columns: 2}, out.Layouts[0])
}

func TestConvert_JobFailed(t *testing.T) {
	f := newFakeAdobe(t, 0, "failed")
	e := pollFast(newEngine(f.server.URL))

	_, err := e.Convert(context.Background(), port.ConvertInput{FileBytes: []byte("%PDF"), PageCount: 1})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "BAD_PDF")
}

func TestConvert_PollingHonorsDeadline(t *testing.T) {
	f := newFakeAdobe(t, 0, "never")
	e := pollFast(newEngine(f.server.URL))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := e.Convert(ctx, port.ConvertInput{FileBytes: []byte("%PDF"), PageCount: 1})

	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestConvert_RateLimitedSubmit(t *testing.T) {
	f := newFakeAdobe(t, 0, "done")
	f.submitCode = http.StatusTooManyRequests
	e := pollFast(newEngine(f.server.URL))

	_, err := e.Convert(context.Background(), port.ConvertInput{FileBytes: []byte("%PDF"), PageCount: 1})

	var rlErr *engine.RateLimitError
	require.True(t, errors.As(err, &rlErr))
	assert.Equal(t, 90*time.Second, rlErr.RetryAfter)
}
