package discovery

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindAt(t *testing.T) {
	conn, err := net.ListenPacket("udp4", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, conn, "http://192.168.1.10:3000") }()

	got, err := FindAt(context.Background(), []string{conn.LocalAddr().String()}, 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "http://192.168.1.10:3000", got)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("responder did not stop")
	}
}

func TestFindAtIgnoresOtherMessages(t *testing.T) {
	conn, err := net.ListenPacket("udp4", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = Serve(ctx, conn, "http://x") }()

	client, err := net.ListenPacket("udp4", "127.0.0.1:0")
	require.NoError(t, err)
	defer client.Close()
	_, err = client.WriteTo([]byte("HELLO"), conn.LocalAddr())
	require.NoError(t, err)

	require.NoError(t, client.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, _, err = client.ReadFrom(make([]byte, 64))
	assert.Error(t, err)
}

func TestFindAtTimeout(t *testing.T) {
	silent, err := net.ListenPacket("udp4", "127.0.0.1:0")
	require.NoError(t, err)
	defer silent.Close()

	_, err = FindAt(context.Background(), []string{silent.LocalAddr().String()}, 100*time.Millisecond)
	assert.Error(t, err)
}
