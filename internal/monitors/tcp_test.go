package monitors

import (
	"context"
	"encoding/json"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spyglass-dev/spyglass/internal/models"
	"github.com/spyglass-dev/spyglass/internal/types"
)

func tcpMonitor(t *testing.T, cfg types.TCPConfig) *models.Monitor {
	t.Helper()

	raw, err := json.Marshal(cfg)
	require.NoError(t, err)
	return &models.Monitor{Name: "redis", Kind: "tcp", Config: raw}
}

func TestTCPAdapterUp(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	port := ln.Addr().(*net.TCPAddr).Port

	adapter := &TCPAdapter{}
	outcome, err := adapter.Execute(context.Background(), tcpMonitor(t, types.TCPConfig{Host: "127.0.0.1", Port: port}))
	require.NoError(t, err)
	assert.Equal(t, types.StatusUp, outcome.Status)
}

func TestTCPAdapterRefused(t *testing.T) {
	// Grab a free port, then close it so the dial is refused.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	adapter := &TCPAdapter{}
	outcome, err := adapter.Execute(context.Background(), tcpMonitor(t, types.TCPConfig{Host: "127.0.0.1", Port: port}))
	require.NoError(t, err)
	assert.Equal(t, types.StatusDown, outcome.Status)
	assert.Contains(t, outcome.Message, "tcp dial")
}

func TestTCPAdapterInvalidConfig(t *testing.T) {
	adapter := &TCPAdapter{}

	_, err := adapter.Execute(context.Background(), tcpMonitor(t, types.TCPConfig{}))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
