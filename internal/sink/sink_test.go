package sink

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/txpipe/chainstream/internal/model"
)

func TestStdoutDeliverWritesNDJSONLine(t *testing.T) {
	var buf bytes.Buffer
	s := &Stdout{Writer: &buf}
	ev := model.Apply(model.MustPoint(1, []byte("h")), model.NewCborBlockRecord([]byte{0x01}))

	require.NoError(t, s.Deliver(context.Background(), ev))
	assert.Contains(t, buf.String(), `"event":"apply"`)
	assert.True(t, bytes.HasSuffix(buf.Bytes(), []byte("\n")))
}

func TestFileRotateWritesAndCloses(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.log")
	f := NewFileRotate(path, 1, 1)
	ev := model.Reset(model.Origin())

	require.NoError(t, f.Deliver(context.Background(), ev))
	require.NoError(t, f.Close())
}

func TestWebhookDeliverPostsJSON(t *testing.T) {
	var received []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := new(bytes.Buffer)
		buf.ReadFrom(r.Body)
		received = buf.Bytes()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	w := NewWebhook(srv.URL, map[string]string{"X-Test": "1"})
	defer w.Close()
	ev := model.Apply(model.MustPoint(5, []byte("h")), model.NewCborBlockRecord([]byte{0x0a}))

	require.NoError(t, w.Deliver(context.Background(), ev))
	assert.Contains(t, string(received), `"slot":5`)
}

func TestNewAWSSQSResolvesStaticCredentialsOffline(t *testing.T) {
	s, err := NewAWSSQS(context.Background(), "https://sqs.us-east-1.amazonaws.com/123/queue", "us-east-1", "AKIAFAKE", "secretfake")
	require.NoError(t, err)
	assert.Equal(t, "https://sqs.us-east-1.amazonaws.com/123/queue", s.QueueURL)
	assert.NotNil(t, s.Client)
}

func TestWebhookDeliverErrorsOnNonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	w := NewWebhook(srv.URL, nil)
	w.client.RetryMax = 0
	defer w.Close()

	err := w.Deliver(context.Background(), model.Reset(model.Origin()))
	assert.Error(t, err)
}
