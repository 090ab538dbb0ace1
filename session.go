package submarines

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// State is the lifecycle stage of a Session.
type State int

const (
	// Idle has no game connection and no listening socket.
	Idle State = iota
	// AwaitingPeer has a listening socket but no game connection yet.
	AwaitingPeer
	// Connected has an established game connection.
	Connected
	// Closed has released its sockets and cannot be used again.
	Closed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case AwaitingPeer:
		return "awaiting_peer"
	case Connected:
		return "connected"
	case Closed:
		return "closed"
	default:
		return "State(" + strconv.Itoa(int(s)) + ")"
	}
}

// Session owns at most one game connection to a peer, established either
// by accepting a GameRequest or by sending one.
//
// A Session is driven by a single goroutine. Blocking calls are interrupted
// by cancelling their context or through TimeoutOption, not by calling Close
// from another goroutine.
type Session struct {
	id    string
	opts  options
	codec *Codec

	listener *Listener
	conn     *Conn
	state    State
}

// NewSession returns an Idle session.
func NewSession(opt ...Option) *Session {
	var opts options
	for _, o := range opt {
		o(&opts)
	}
	checkOptions(&opts)

	return &Session{
		id:    uuid.NewString(),
		opts:  opts,
		codec: NewCodec(opts.magic),
		state: Idle,
	}
}

// Listen returns a session listening on port on all interfaces.
// Port 0 picks a free port; see Addr.
func Listen(port int, opt ...Option) (*Session, error) {
	s := NewSession(opt...)
	if err := s.Listen(port); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// Listen binds the listening socket and moves an Idle session to AwaitingPeer.
func (s *Session) Listen(port int) error {
	if s.state == Closed {
		return ErrSessionClosed
	}
	if s.listener != nil {
		return ErrAlreadyListening
	}

	l, err := listen(&net.TCPAddr{Port: port}, s.opts.logger)
	if err != nil {
		s.logError("listen failed", "port", port, "error", err)
		return err
	}

	s.listener = l
	if s.state == Idle {
		s.state = AwaitingPeer
	}

	return nil
}

// AcceptAndHandshake waits for a peer to send a GameRequest and answers it.
//
// A peer that fails the handshake, by sending something other than a
// GameRequest or by dropping the connection, is disconnected and the next
// peer is accepted, unless OnErrorOption says otherwise. A peer that is
// declined by the accept policy is told so and disconnected. Errors on the
// listening socket and cancellation of ctx end the loop.
func (s *Session) AcceptAndHandshake(ctx context.Context) error {
	switch {
	case s.state == Closed:
		return ErrSessionClosed
	case s.conn != nil:
		return ErrAlreadyConnected
	case s.listener == nil:
		return ErrNotListening
	}

	for {
		s.state = AwaitingPeer

		raw, err := s.listener.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil {
				s.logDebug("stopped waiting for a peer", "error", err)
			} else {
				s.logError("accept failed", "error", err)
			}
			return err
		}

		conn := newConn(raw, s.codec, s.opts)
		accepted, err := s.handshakeInbound(ctx, conn)
		if err == nil && accepted {
			s.conn = conn
			s.state = Connected
			s.logInfo("peer connected", "remote_addr", conn.Addr())
			return nil
		}

		_ = conn.Close()

		if err == nil {
			s.logInfo("declined game request", "remote_addr", conn.Addr())
			continue
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		s.logWarn("handshake failed, waiting for another peer", "remote_addr", conn.Addr(), "error", err)
		if s.opts.onError(err) == Disconnect {
			return err
		}
	}
}

// handshakeInbound answers a GameRequest with the accept policy's decision.
func (s *Session) handshakeInbound(ctx context.Context, conn *Conn) (accepted bool, err error) {
	defer interruptOnDone(ctx, conn, &err)()

	if _, err = conn.ReceiveExpected(GameRequestType); err != nil {
		return false, err
	}

	accepted = s.opts.acceptPolicy(conn.Addr())
	if err = conn.Send(GameReply{Accepted: accepted}); err != nil {
		return false, err
	}

	return accepted, nil
}

// InviteAndHandshake connects to host:port, sends a GameRequest and returns
// whether the peer accepted. Failures are returned as is and never retried.
// The session only becomes Connected when the peer accepts.
func (s *Session) InviteAndHandshake(ctx context.Context, host string, port int) (bool, error) {
	switch {
	case s.state == Closed:
		return false, ErrSessionClosed
	case s.conn != nil:
		return false, ErrAlreadyConnected
	}

	addr := net.JoinHostPort(host, strconv.Itoa(port))

	var dialer net.Dialer
	raw, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return false, ctxErr
		}
		s.logError("dial failed", "addr", addr, "error", err)
		return false, newTransportError("dial", nil, errors.Wrap(err, addr))
	}

	conn := newConn(raw, s.codec, s.opts)
	accepted, err := s.handshakeOutbound(ctx, conn)
	if err != nil || !accepted {
		_ = conn.Close()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return false, ctxErr
			}
			s.logError("invitation failed", "addr", addr, "error", err)
			return false, err
		}
		s.logInfo("invitation declined", "addr", addr)
		return false, nil
	}

	s.conn = conn
	s.state = Connected
	s.logInfo("peer connected", "remote_addr", conn.Addr())

	return true, nil
}

func (s *Session) handshakeOutbound(ctx context.Context, conn *Conn) (accepted bool, err error) {
	defer interruptOnDone(ctx, conn, &err)()

	if err = conn.Send(GameRequest{}); err != nil {
		return false, err
	}

	message, err := conn.ReceiveExpected(GameReplyType)
	if err != nil {
		return false, err
	}

	return message.(GameReply).Accepted, nil
}

// interruptOnDone unblocks I/O on conn once ctx is done. The returned
// function must be deferred by the handshake; it reports a cancellation that
// raced with a completed exchange through errp, since the connection then
// carries an expired deadline.
func interruptOnDone(ctx context.Context, conn *Conn, errp *error) func() {
	stop := context.AfterFunc(ctx, func() {
		_ = conn.rawConn.SetDeadline(time.Now())
	})
	return func() {
		if !stop() && *errp == nil {
			*errp = ctx.Err()
		}
	}
}

// Send writes message to the connected peer.
func (s *Session) Send(message Message) error {
	if s.conn == nil {
		return ErrNotConnected
	}
	if message == nil {
		return errors.New("send: nil message")
	}

	if err := s.conn.Send(message); err != nil {
		s.logDebug("send failed", "type", message.Type(), "error", err)
		return err
	}

	s.logDebug("sent message", "type", message.Type())
	return nil
}

// Receive returns the next message from the connected peer.
// An ErrorMessage is returned as a *RemoteError, never as a value.
func (s *Session) Receive() (Message, error) {
	if s.conn == nil {
		return nil, ErrNotConnected
	}

	message, err := s.conn.Receive()
	if err != nil {
		s.logDebug("receive failed", "error", err)
		return nil, err
	}

	s.logDebug("received message", "type", message.Type())
	return message, nil
}

// ReceiveExpected is like Receive but fails with ErrUnexpectedMessageType
// when the message is not of type t.
func (s *Session) ReceiveExpected(t MessageType) (Message, error) {
	if s.conn == nil {
		return nil, ErrNotConnected
	}

	message, err := s.conn.ReceiveExpected(t)
	if err != nil {
		s.logDebug("receive failed", "expected", t, "error", err)
		return nil, err
	}

	s.logDebug("received message", "type", message.Type())
	return message, nil
}

// SetDeadline sets the read and write deadline of the game connection.
// Unlike the other methods it may be called from another goroutine once
// the session is Connected, to interrupt a blocked Send or Receive.
func (s *Session) SetDeadline(t time.Time) error {
	if s.conn == nil {
		return ErrNotConnected
	}
	return s.conn.rawConn.SetDeadline(t)
}

// Close closes the game connection and then the listening socket.
// Safe to call multiple times.
func (s *Session) Close() error {
	if s.state == Closed {
		return nil
	}

	var err error
	if s.conn != nil {
		err = s.conn.Close()
		s.conn = nil
	}

	if s.listener != nil {
		if lerr := s.listener.Close(); err == nil {
			err = lerr
		}
		s.listener = nil
	}

	s.state = Closed
	s.logDebug("session closed")

	return err
}

// ID returns the identifier attached to the session's log records.
func (s *Session) ID() string {
	return s.id
}

// State returns the current lifecycle stage.
func (s *Session) State() State {
	return s.state
}

// Addr returns the listening address, or nil when not listening.
func (s *Session) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// RemoteAddr returns the peer's address, or nil when not connected.
func (s *Session) RemoteAddr() net.Addr {
	if s.conn == nil {
		return nil
	}
	return s.conn.Addr()
}

func (s *Session) logArgs(args []any) []any {
	return append([]any{"session", s.id, "state", s.state}, args...)
}

func (s *Session) logDebug(msg string, args ...any) { s.opts.logger.Debug(msg, s.logArgs(args)...) }
func (s *Session) logInfo(msg string, args ...any)  { s.opts.logger.Info(msg, s.logArgs(args)...) }
func (s *Session) logWarn(msg string, args ...any)  { s.opts.logger.Warn(msg, s.logArgs(args)...) }
func (s *Session) logError(msg string, args ...any) { s.opts.logger.Error(msg, s.logArgs(args)...) }
