package submarines

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func listenTestSession(t *testing.T, opt ...Option) (*Session, int) {
	t.Helper()

	host, err := Listen(0, opt...)
	require.NoError(t, err)
	t.Cleanup(func() { host.Close() })

	return host, host.Addr().(*net.TCPAddr).Port
}

// createTestSessionPair returns a host and a guest connected by a handshake.
func createTestSessionPair(t *testing.T, opt ...Option) (*Session, *Session) {
	t.Helper()

	host, port := listenTestSession(t, append([]Option{LoggerOption(&mockLogger{})}, opt...)...)
	guest := NewSession(append([]Option{LoggerOption(&mockLogger{})}, opt...)...)
	t.Cleanup(func() { guest.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var accepted bool
	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return host.AcceptAndHandshake(ctx)
	})
	group.Go(func() (err error) {
		accepted, err = guest.InviteAndHandshake(ctx, "127.0.0.1", port)
		return err
	})

	require.NoError(t, group.Wait())
	require.True(t, accepted)

	return host, guest
}

func TestSession_NewIsIdle(t *testing.T) {
	s := NewSession()
	defer s.Close()

	assert.Equal(t, Idle, s.State())
	assert.NotEmpty(t, s.ID())
	assert.Nil(t, s.Addr())
	assert.Nil(t, s.RemoteAddr())
}

func TestSession_Listen(t *testing.T) {
	host, _ := listenTestSession(t)

	assert.Equal(t, AwaitingPeer, host.State())
	assert.NotNil(t, host.Addr())
	assert.ErrorIs(t, host.Listen(0), ErrAlreadyListening)
}

func TestSession_ListenAddressInUse(t *testing.T) {
	_, port := listenTestSession(t)

	_, err := Listen(port, LoggerOption(&mockLogger{}))
	assert.True(t, IsTransportError(err), "got %v", err)
}

func TestSession_Handshake(t *testing.T) {
	host, guest := createTestSessionPair(t)

	assert.Equal(t, Connected, host.State())
	assert.Equal(t, Connected, guest.State())
	assert.NotNil(t, host.RemoteAddr())
	assert.NotNil(t, guest.RemoteAddr())
}

func TestSession_ExchangeMessages(t *testing.T) {
	host, guest := createTestSessionPair(t)

	require.NoError(t, guest.Send(Guess{Row: 3, Column: 5}))
	msg, err := host.ReceiveExpected(GuessType)
	require.NoError(t, err)
	assert.Equal(t, Guess{Row: 3, Column: 5}, msg)

	result := Result{SubmarineSize: Submarine3, DidSink: true}
	require.NoError(t, host.Send(result))
	msg, err = guest.Receive()
	require.NoError(t, err)
	assert.Equal(t, result, msg)

	require.NoError(t, guest.Send(AcknowledgeResult(result)))
	msg, err = host.ReceiveExpected(AcknowledgeType)
	require.NoError(t, err)
	assert.Equal(t, Acknowledge{Code: 2}, msg)
}

func TestSession_ReceiveRemoteError(t *testing.T) {
	host, guest := createTestSessionPair(t)

	require.NoError(t, host.Send(ErrorMessage{Code: AlreadyAttackedErrorCode}))

	msg, err := guest.Receive()
	assert.Nil(t, msg)
	assert.ErrorIs(t, err, ErrAlreadyAttacked)
	assert.NotErrorIs(t, err, ErrGenericFailure)
}

func TestSession_ReceiveRemoteErrorUnknownCode(t *testing.T) {
	host, guest := createTestSessionPair(t)

	require.NoError(t, host.Send(ErrorMessage{Code: 77}))

	_, err := guest.ReceiveExpected(ResultType)
	assert.ErrorIs(t, err, ErrGenericFailure)
}

func TestSession_ReceiveUnexpectedType(t *testing.T) {
	host, guest := createTestSessionPair(t)

	require.NoError(t, host.Send(Order{}))

	_, err := guest.ReceiveExpected(GuessType)
	assert.ErrorIs(t, err, ErrUnexpectedMessageType)
}

func TestSession_NotConnected(t *testing.T) {
	s := NewSession()
	defer s.Close()

	assert.ErrorIs(t, s.Send(Order{}), ErrNotConnected)

	_, err := s.Receive()
	assert.ErrorIs(t, err, ErrNotConnected)

	_, err = s.ReceiveExpected(OrderType)
	assert.ErrorIs(t, err, ErrNotConnected)

	assert.ErrorIs(t, s.SetDeadline(time.Now()), ErrNotConnected)
}

func TestSession_AcceptNotListening(t *testing.T) {
	s := NewSession()
	defer s.Close()

	assert.ErrorIs(t, s.AcceptAndHandshake(context.Background()), ErrNotListening)
}

func TestSession_AlreadyConnected(t *testing.T) {
	host, guest := createTestSessionPair(t)

	assert.ErrorIs(t, host.AcceptAndHandshake(context.Background()), ErrAlreadyConnected)

	_, err := guest.InviteAndHandshake(context.Background(), "127.0.0.1", 1)
	assert.ErrorIs(t, err, ErrAlreadyConnected)
}

func TestSession_AcceptRetriesAfterBadPeer(t *testing.T) {
	logger := &mockLogger{}
	host, port := listenTestSession(t, LoggerOption(logger))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	acceptErr := make(chan error, 1)
	go func() {
		acceptErr <- host.AcceptAndHandshake(ctx)
	}()

	// A peer speaking another protocol version is dropped.
	bad, err := net.Dial("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
	require.NoError(t, err)
	defer bad.Close()
	_, err = bad.Write([]byte{'B', 'S', '9', 'p', byte(GameRequestType)})
	require.NoError(t, err)

	_ = bad.SetReadDeadline(time.Now().Add(5 * time.Second))
	n, err := bad.Read(make([]byte, 16))
	assert.Zero(t, n)
	assert.Error(t, err, "bad peer should be disconnected")

	guest := NewSession(LoggerOption(&mockLogger{}))
	defer guest.Close()

	accepted, err := guest.InviteAndHandshake(ctx, "127.0.0.1", port)
	require.NoError(t, err)
	assert.True(t, accepted)

	require.NoError(t, <-acceptErr)
	assert.Equal(t, Connected, host.State())

	record, ok := logger.find("warn", "handshake failed, waiting for another peer")
	require.True(t, ok)
	assert.Contains(t, record.args, "session")
}

func TestSession_AcceptDisconnectOnError(t *testing.T) {
	host, port := listenTestSession(t,
		LoggerOption(&mockLogger{}),
		OnErrorOption(func(error) ErrorAction { return Disconnect }),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	acceptErr := make(chan error, 1)
	go func() {
		acceptErr <- host.AcceptAndHandshake(ctx)
	}()

	// Order instead of GameRequest
	guest, err := net.Dial("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
	require.NoError(t, err)
	defer guest.Close()
	_, err = guest.Write(append(DefaultMagic[:], byte(OrderType)))
	require.NoError(t, err)

	err = <-acceptErr
	assert.ErrorIs(t, err, ErrUnexpectedMessageType)
	assert.True(t, IsProtocolError(err))
	assert.Equal(t, AwaitingPeer, host.State())
}

func TestSession_AcceptPolicyDeclines(t *testing.T) {
	host, port := listenTestSession(t,
		LoggerOption(&mockLogger{}),
		AcceptPolicyOption(func(net.Addr) bool { return false }),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	acceptErr := make(chan error, 1)
	go func() {
		acceptErr <- host.AcceptAndHandshake(ctx)
	}()

	guest := NewSession(LoggerOption(&mockLogger{}))
	defer guest.Close()

	accepted, err := guest.InviteAndHandshake(ctx, "127.0.0.1", port)
	require.NoError(t, err)
	assert.False(t, accepted)
	assert.Equal(t, Idle, guest.State())
	assert.ErrorIs(t, guest.Send(Order{}), ErrNotConnected)

	// The host keeps waiting for another peer.
	cancel()
	assert.ErrorIs(t, <-acceptErr, context.Canceled)
	assert.Equal(t, AwaitingPeer, host.State())
}

func TestSession_InviteRefused(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())

	guest := NewSession(LoggerOption(&mockLogger{}))
	defer guest.Close()

	accepted, err := guest.InviteAndHandshake(context.Background(), "127.0.0.1", port)
	assert.False(t, accepted)
	assert.True(t, IsTransportError(err), "got %v", err)
	assert.Equal(t, Idle, guest.State())
}

func TestSession_InviteVersionMismatch(t *testing.T) {
	host, port := listenTestSession(t,
		LoggerOption(&mockLogger{}),
		MagicOption(Magic{'B', 'S', '2', 'p'}),
		OnErrorOption(func(error) ErrorAction { return Disconnect }),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	acceptErr := make(chan error, 1)
	go func() {
		acceptErr <- host.AcceptAndHandshake(ctx)
	}()

	guest := NewSession(LoggerOption(&mockLogger{}))
	defer guest.Close()

	// The host drops the connection without replying.
	_, err := guest.InviteAndHandshake(ctx, "127.0.0.1", port)
	assert.True(t, IsTransportError(err), "got %v", err)
	assert.Equal(t, Idle, guest.State())

	assert.ErrorIs(t, <-acceptErr, ErrInvalidMagic)
}

func TestSession_InviteTimeout(t *testing.T) {
	// Listening but never accepting: the dial succeeds through the backlog,
	// then the deadline ends the wait for a reply.
	_, port := listenTestSession(t, LoggerOption(&mockLogger{}))

	guest := NewSession(LoggerOption(&mockLogger{}), TimeoutOption(100*time.Millisecond))
	defer guest.Close()

	_, err := guest.InviteAndHandshake(context.Background(), "127.0.0.1", port)
	assert.True(t, IsTransportError(err), "got %v", err)
	assert.Equal(t, Idle, guest.State())
}

func TestSession_InviteReplyWithWrongMagic(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()

	go func() {
		conn, err := l.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		_, _ = conn.Read(make([]byte, 16))
		_, _ = conn.Write([]byte{'B', 'S', '2', 'p', byte(GameReplyType), 1})
		time.Sleep(100 * time.Millisecond)
	}()

	guest := NewSession(LoggerOption(&mockLogger{}))
	defer guest.Close()

	_, err = guest.InviteAndHandshake(context.Background(), "127.0.0.1", l.Addr().(*net.TCPAddr).Port)
	assert.ErrorIs(t, err, ErrInvalidMagic)
	assert.Nil(t, guest.RemoteAddr())
}

func TestSession_InviteCanceled(t *testing.T) {
	// A peer that never answers.
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()

	guest := NewSession(LoggerOption(&mockLogger{}))
	defer guest.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err = guest.InviteAndHandshake(ctx, "127.0.0.1", l.Addr().(*net.TCPAddr).Port)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, Idle, guest.State())
}

func TestSession_AcceptCanceled(t *testing.T) {
	host, _ := listenTestSession(t, LoggerOption(&mockLogger{}))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	assert.ErrorIs(t, host.AcceptAndHandshake(ctx), context.DeadlineExceeded)
}

func TestSession_SetDeadlineInterruptsReceive(t *testing.T) {
	_, guest := createTestSessionPair(t)

	go func() {
		time.Sleep(50 * time.Millisecond)
		_ = guest.SetDeadline(time.Now())
	}()

	_, err := guest.Receive()
	assert.True(t, IsTransportError(err), "got %v", err)
}

func TestSession_Close(t *testing.T) {
	host, guest := createTestSessionPair(t)

	require.NoError(t, guest.Close())
	require.NoError(t, guest.Close())
	assert.Equal(t, Closed, guest.State())
	assert.ErrorIs(t, guest.Send(Order{}), ErrNotConnected)

	_, err := guest.InviteAndHandshake(context.Background(), "127.0.0.1", 1)
	assert.ErrorIs(t, err, ErrSessionClosed)
	assert.ErrorIs(t, guest.Listen(0), ErrSessionClosed)

	// The host sees the peer go away.
	_, err = host.Receive()
	assert.True(t, IsTransportError(err), "got %v", err)

	require.NoError(t, host.Close())
	assert.Nil(t, host.Addr())
	assert.ErrorIs(t, host.AcceptAndHandshake(context.Background()), ErrSessionClosed)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "awaiting_peer", AwaitingPeer.String())
	assert.Equal(t, "connected", Connected.String())
	assert.Equal(t, "closed", Closed.String())
	assert.Equal(t, "State(9)", State(9).String())
}
