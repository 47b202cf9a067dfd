package domain

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

func echoServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		b := make([]byte, r.ContentLength)
		_, _ = r.Body.Read(b)
		_ = msgpack.Unmarshal(b, &body)
		out, _ := msgpack.Marshal(map[string]any{"echo": body})
		w.Write(out)
	}))
}

func TestSendToHealthySkipsUnhealthy(t *testing.T) {
	srv := echoServer(t)
	defer srv.Close()

	h := New(0, []Shard{
		{URI: srv.URL, Healthy: true},
		{URI: "http://unused", Healthy: false},
	})

	type req struct {
		X int `msgpack:"x"`
	}
	type resp struct {
		Echo map[string]any `msgpack:"echo"`
	}

	results, err := SendToHealthy[req, resp](context.Background(), h, func(base string) string { return base }, req{X: 1})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.NotNil(t, results[0])
	assert.Nil(t, results[1])
}

func TestAssignedToWorker(t *testing.T) {
	h := New(0, []Shard{{URI: "http://w1", Healthy: true}})
	assert.True(t, h.AssignedToWorker("http://w1"))
	assert.False(t, h.AssignedToWorker("http://w2"))
}
