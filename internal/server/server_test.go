package server

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"stockwise/internal/config"
)

func TestServer_ShutdownStopsStart(t *testing.T) {
	srv := New(config.ServerConfig{Port: 0, ReadTimeout: time.Second, WriteTimeout: time.Second, ShutdownTimeout: time.Second},
		http.NotFoundHandler(), zap.NewNop())
	assert.Equal(t, ":0", srv.Addr())

	done := make(chan error, 1)
	go func() { done <- srv.Start() }()

	// Shutdown may win the race against ListenAndServe; both paths end cleanly.
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, srv.Shutdown(context.Background()))

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
}
