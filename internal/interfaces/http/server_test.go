package http

import (
	"context"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewServer_Defaults(t *testing.T) {
	s := NewServer(ServerConfig{Addr: ":8080"}, http.NewServeMux(), nil)
	assert.Equal(t, ":8080", s.srv.Addr)
	assert.Equal(t, 15*time.Second, s.srv.ReadTimeout)
	assert.Equal(t, 60*time.Second, s.srv.IdleTimeout)
	assert.Equal(t, 30*time.Second, s.shutdownTimeout)
}

func TestServer_ServeAndStop(t *testing.T) {
	r, _ := testRouter(t, nil)
	s := NewServer(ServerConfig{}, r, nil)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	done := make(chan error, 1)
	go func() { done <- s.Serve(ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "alive")

	require.NoError(t, s.Stop(context.Background()))
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

//Personal.AI order the ending
