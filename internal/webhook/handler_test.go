package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-webinar/relay/internal/worker"
)

type fakeProcessor struct {
	started atomic.Int32
	ended   atomic.Int32
	gate    chan struct{}
	payload chan json.RawMessage
}

func newFakeProcessor() *fakeProcessor {
	return &fakeProcessor{payload: make(chan json.RawMessage, 4)}
}

func (f *fakeProcessor) Started(_ context.Context, p json.RawMessage) error {
	f.started.Add(1)
	f.payload <- p
	return nil
}

func (f *fakeProcessor) Ended(_ context.Context, p json.RawMessage) error {
	if f.gate != nil {
		<-f.gate
	}
	f.ended.Add(1)
	f.payload <- p
	return nil
}

func setupRouter(t *testing.T, proc Processor) (*gin.Engine, *Verifier, *worker.Tasks) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	v := NewVerifier("whsec")
	tasks := worker.NewTasks(nil)
	r := gin.New()
	r.POST("/webhook", NewHandler(v, proc, tasks, nil).Handle)
	return r, v, tasks
}

func signedRequest(v *Verifier, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderTimestamp, "1739923528")
	req.Header.Set(HeaderSignature, v.Sign("1739923528", []byte(body)))
	return req
}

func TestHandle_InvalidSignature(t *testing.T) {
	proc := newFakeProcessor()
	r, _, tasks := setupRouter(t, proc)

	for _, event := range []string{EventURLValidation, "webinar.started", "webinar.ended", "meeting.created"} {
		body := `{"event":"` + event + `","payload":{"plainToken":"abc","object":{"id":1}}}`
		req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewBufferString(body))
		req.Header.Set(HeaderTimestamp, "1739923528")
		req.Header.Set(HeaderSignature, "v0=deadbeef")

		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code, event)
	}

	require.NoError(t, tasks.Wait(context.Background()))
	assert.Zero(t, proc.started.Load())
	assert.Zero(t, proc.ended.Load())
}

func TestHandle_URLValidation(t *testing.T) {
	r, v, _ := setupRouter(t, newFakeProcessor())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, signedRequest(v, `{"event":"endpoint.url_validation","payload":{"plainToken":"qgg8vlvZRS6UYooatFL8Aw"},"event_ts":1654503849680}`))

	require.Equal(t, http.StatusOK, w.Code)
	var got map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "qgg8vlvZRS6UYooatFL8Aw", got["plainToken"])
	assert.Equal(t, v.ChallengeResponse("qgg8vlvZRS6UYooatFL8Aw"), got["encryptedToken"])
}

func TestHandle_URLValidationWithoutToken(t *testing.T) {
	r, v, _ := setupRouter(t, newFakeProcessor())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, signedRequest(v, `{"event":"endpoint.url_validation","payload":{}}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandle_EndedAcksBeforeProcessing(t *testing.T) {
	proc := newFakeProcessor()
	proc.gate = make(chan struct{})
	r, v, tasks := setupRouter(t, proc)

	body := `{"event":"webinar.ended","payload":{"object":{"id":812,"topic":"Launch"}}}`
	w := httptest.NewRecorder()

	served := make(chan struct{})
	go func() {
		r.ServeHTTP(w, signedRequest(v, body))
		close(served)
	}()

	select {
	case <-served:
	case <-time.After(2 * time.Second):
		t.Fatal("handler waited on background processing")
	}
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true}`, w.Body.String())
	assert.Zero(t, proc.ended.Load())

	close(proc.gate)
	require.NoError(t, tasks.Wait(context.Background()))
	assert.EqualValues(t, 1, proc.ended.Load())
	assert.JSONEq(t, `{"object":{"id":812,"topic":"Launch"}}`, string(<-proc.payload))
}

func TestHandle_StartedAcks(t *testing.T) {
	proc := newFakeProcessor()
	r, v, tasks := setupRouter(t, proc)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, signedRequest(v, `{"event":"webinar.started","payload":{"object":{"id":"812"}}}`))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true}`, w.Body.String())
	require.NoError(t, tasks.Wait(context.Background()))
	assert.EqualValues(t, 1, proc.started.Load())
	assert.Zero(t, proc.ended.Load())
}

func TestHandle_UnrecognizedEvent(t *testing.T) {
	proc := newFakeProcessor()
	r, v, tasks := setupRouter(t, proc)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, signedRequest(v, `{"event":"meeting.participant_joined","payload":{"object":{"id":1}}}`))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())
	require.NoError(t, tasks.Wait(context.Background()))
	assert.Zero(t, proc.started.Load())
	assert.Zero(t, proc.ended.Load())
}

func TestHandle_InvalidJSON(t *testing.T) {
	r, v, _ := setupRouter(t, newFakeProcessor())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, signedRequest(v, `{"event":`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
