// Package submarines implements the peer-to-peer submarines protocol:
// a binary message codec and a session that establishes a single game
// connection and exchanges typed messages over it.
package submarines

import (
	"io"
	"net"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
)

// limitedReader wraps a reader and returns ErrMessageTooLarge once more than
// the limit has been read.
type limitedReader struct {
	r         io.Reader
	remaining int64
}

func newLimitedReader(r io.Reader, limit int64) *limitedReader {
	return &limitedReader{r: r, remaining: limit}
}

func (l *limitedReader) Read(p []byte) (n int, err error) {
	if l.remaining <= 0 {
		return 0, ErrMessageTooLarge
	}
	n, err = l.r.Read(p)
	l.remaining -= int64(n)
	if l.remaining < 0 {
		return n, ErrMessageTooLarge
	}
	return
}

// reset resets the limit counter for reuse with a new message.
func (l *limitedReader) reset(limit int64) {
	l.remaining = limit
}

// Conn is an established game connection.
// It frames messages with the session codec and translates ErrorMessages
// received from the peer into errors.
//
// There is no length prefix on the wire: a message ends with the first read
// that returns fewer than chunkSize bytes. This relies on every message
// arriving in one burst, and a message whose size is an exact multiple of
// chunkSize blocks until more data arrives.
type Conn struct {
	rawConn net.Conn
	reader  *limitedReader
	codec   *Codec

	opts   options
	closed atomic.Bool
}

func newConn(c net.Conn, codec *Codec, opts options) *Conn {
	return &Conn{
		rawConn: c,
		reader:  newLimitedReader(c, int64(opts.maxReadLength)),
		codec:   codec,
		opts:    opts,
	}
}

// Send encodes message and writes all of it to the peer.
func (c *Conn) Send(message Message) error {
	if c.closed.Load() {
		return ErrConnectionClosed
	}

	data, err := c.codec.Encode(message)
	if err != nil {
		return err
	}

	if c.opts.timeout > 0 {
		_ = c.rawConn.SetWriteDeadline(time.Now().Add(c.opts.timeout))
	}

	if _, err = c.rawConn.Write(data); err != nil {
		return newTransportError("write", c.Addr(), err)
	}

	return nil
}

// Receive reads and decodes the next message.
// An ErrorMessage from the peer is returned as a *RemoteError.
func (c *Conn) Receive() (Message, error) {
	if c.closed.Load() {
		return nil, ErrConnectionClosed
	}

	data, err := c.read()
	if err != nil {
		return nil, err
	}

	message, err := c.codec.Decode(data)
	if err != nil {
		return nil, err
	}

	if e, ok := message.(ErrorMessage); ok {
		return nil, &RemoteError{Code: e.Code}
	}

	return message, nil
}

// ReceiveExpected is Receive followed by a check that the message has type t.
func (c *Conn) ReceiveExpected(t MessageType) (Message, error) {
	message, err := c.Receive()
	if err != nil {
		return nil, err
	}

	if message.Type() != t {
		return nil, errors.Wrapf(ErrUnexpectedMessageType, "want %s, got %s", t, message.Type())
	}

	return message, nil
}

// read accumulates chunks until a short read.
func (c *Conn) read() ([]byte, error) {
	if c.opts.timeout > 0 {
		_ = c.rawConn.SetReadDeadline(time.Now().Add(c.opts.timeout))
	}

	c.reader.reset(int64(c.opts.maxReadLength))

	chunk := make([]byte, c.opts.chunkSize)
	var data []byte
	for {
		n, err := c.reader.Read(chunk)
		data = append(data, chunk[:n]...)

		switch {
		case errors.Is(err, ErrMessageTooLarge):
			return nil, errors.Wrapf(err, "limit is %d bytes", c.opts.maxReadLength)
		case err == io.EOF && len(data) > 0:
			return data, nil
		case err != nil:
			return nil, newTransportError("read", c.Addr(), err)
		case n < len(chunk):
			return data, nil
		}
	}
}

// Addr returns the remote address of the connection.
func (c *Conn) Addr() net.Addr {
	return c.rawConn.RemoteAddr()
}

// Close closes the underlying connection. Safe to call multiple times.
func (c *Conn) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	return c.rawConn.Close()
}

// IsClosed returns true if the connection has been closed.
func (c *Conn) IsClosed() bool {
	return c.closed.Load()
}
