package submarines

import (
	"fmt"
	"net"

	"github.com/pkg/errors"
)

// Protocol errors: the bytes received do not form the expected message.
var (
	// ErrTruncatedHeader is returned when fewer than HeaderSize bytes are available.
	ErrTruncatedHeader = errors.New("truncated header")
	// ErrMalformedBody is returned when a body does not have the shape its type requires.
	ErrMalformedBody = errors.New("malformed body")
	// ErrInvalidMagic is returned when the magic does not match: a wire format version mismatch.
	ErrInvalidMagic = errors.New("invalid magic")
	// ErrUnknownMessageType is returned for a tag outside the known message types.
	ErrUnknownMessageType = errors.New("unknown message type")
	// ErrUnexpectedMessageType is returned when a message is not of the type the caller expected.
	ErrUnexpectedMessageType = errors.New("unexpected message type")
)

// Failures reported by the peer through an ErrorMessage.
var (
	ErrGenericFailure    = errors.New("peer reported a generic failure")
	ErrAlreadyAttacked   = errors.New("tile already attacked")
	ErrInvalidCoordinate = errors.New("invalid coordinate")
)

// Session and connection state errors.
var (
	ErrNotConnected       = errors.New("not connected")
	ErrAlreadyConnected   = errors.New("already connected")
	ErrNotListening       = errors.New("not listening")
	ErrAlreadyListening   = errors.New("already listening")
	ErrSessionClosed      = errors.New("session closed")
	ErrConnectionClosed   = errors.New("connection closed")
	ErrMessageTooLarge    = errors.New("message too large")
	ErrInvalidMagicLength = errors.New("magic must be 4 bytes")
)

// IsProtocolError reports whether err is caused by bytes that do not form
// the expected message.
func IsProtocolError(err error) bool {
	for _, target := range []error{
		ErrTruncatedHeader,
		ErrMalformedBody,
		ErrInvalidMagic,
		ErrUnknownMessageType,
		ErrUnexpectedMessageType,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// TransportError is a socket level failure.
type TransportError struct {
	Op   string
	Addr net.Addr
	Err  error
}

func newTransportError(op string, addr net.Addr, err error) error {
	return &TransportError{Op: op, Addr: addr, Err: err}
}

func (e *TransportError) Error() string {
	if e.Addr == nil {
		return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("transport %s %s: %v", e.Op, e.Addr, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTransportError reports whether err wraps a *TransportError.
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// RemoteError is returned by Receive when the peer sent an ErrorMessage.
// It unwraps to ErrGenericFailure, ErrAlreadyAttacked or ErrInvalidCoordinate.
type RemoteError struct {
	Code ErrorCode
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote error (%s): %v", e.Code, e.Unwrap())
}

func (e *RemoteError) Unwrap() error {
	switch e.Code {
	case AlreadyAttackedErrorCode:
		return ErrAlreadyAttacked
	case InvalidCoordinateErrorCode:
		return ErrInvalidCoordinate
	default:
		return ErrGenericFailure
	}
}

// ErrorCodeOf returns the code to send to a peer for err.
func ErrorCodeOf(err error) ErrorCode {
	switch {
	case errors.Is(err, ErrAlreadyAttacked):
		return AlreadyAttackedErrorCode
	case errors.Is(err, ErrInvalidCoordinate):
		return InvalidCoordinateErrorCode
	default:
		return GenericErrorCode
	}
}
