package submarines

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestListener(t *testing.T) *Listener {
	t.Helper()

	l, err := listen(&net.TCPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0}, &mockLogger{})
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })

	return l
}

func TestListen_AddressInUse(t *testing.T) {
	l := newTestListener(t)

	_, err := listen(l.Addr().(*net.TCPAddr), &mockLogger{})
	assert.True(t, IsTransportError(err), "got %v", err)
}

func TestListener_Accept(t *testing.T) {
	l := newTestListener(t)

	go func() {
		conn, err := net.Dial("tcp", l.Addr().String())
		if err == nil {
			defer conn.Close()
			time.Sleep(100 * time.Millisecond)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := l.Accept(ctx)
	require.NoError(t, err)
	conn.Close()
}

func TestListener_AcceptCanceled(t *testing.T) {
	l := newTestListener(t)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, err := l.Accept(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	// A later Accept is not affected by the deadline used to interrupt.
	go func() {
		conn, err := net.Dial("tcp", l.Addr().String())
		if err == nil {
			conn.Close()
		}
	}()

	ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := l.Accept(ctx)
	require.NoError(t, err)
	conn.Close()
}

func TestListener_AcceptAlreadyCanceled(t *testing.T) {
	l := newTestListener(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := l.Accept(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestListener_Close(t *testing.T) {
	l := newTestListener(t)

	errCh := make(chan error, 1)
	go func() {
		_, err := l.Accept(context.Background())
		errCh <- err
	}()

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, l.Close())
	require.NoError(t, l.Close())

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrSessionClosed)
	case <-time.After(time.Second):
		t.Fatal("Accept did not return after Close")
	}
}
