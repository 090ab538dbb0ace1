package submarines

import (
	"context"
	"net"
	"sync"
	"time"
)

// Listener is the socket a host waits on for game requests.
type Listener struct {
	listener *net.TCPListener
	logger   Logger

	mu     sync.Mutex
	closed bool
}

// listen binds addr. Failing to bind is fatal and never retried.
func listen(addr *net.TCPAddr, logger Logger) (*Listener, error) {
	l, err := net.ListenTCP(addr.Network(), addr)
	if err != nil {
		return nil, newTransportError("listen", addr, err)
	}

	logger.Info("listening", "addr", l.Addr())

	return &Listener{listener: l, logger: logger}, nil
}

// Accept blocks until a peer connects or ctx is done.
// When ctx is done, Accept returns ctx.Err().
func (l *Listener) Accept(ctx context.Context) (*net.TCPConn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Clear a deadline left behind by an earlier cancellation.
	_ = l.listener.SetDeadline(time.Time{})

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		select {
		case <-ctx.Done():
			// Unblock Accept
			_ = l.listener.SetDeadline(time.Now())
		case <-stop:
		}
	}()

	conn, err := l.listener.AcceptTCP()
	close(stop)
	<-done

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if l.isClosed() {
			return nil, ErrSessionClosed
		}
		return nil, newTransportError("accept", l.Addr(), err)
	}

	l.logger.Debug("accepted connection", "remote_addr", conn.RemoteAddr())
	_ = conn.SetNoDelay(true)

	return conn, nil
}

func (l *Listener) isClosed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

// Close closes the listening socket. Any blocked Accept returns.
// Safe to call multiple times.
func (l *Listener) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	l.mu.Unlock()

	return l.listener.Close()
}

// Addr returns the listener's network address.
func (l *Listener) Addr() net.Addr {
	return l.listener.Addr()
}
