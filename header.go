package submarines

import (
	"github.com/pkg/errors"
)

const (
	// MagicSize is the length of the protocol magic.
	MagicSize = 4
	// HeaderSize is the length of the envelope in front of every body.
	HeaderSize = MagicSize + 1
)

// Magic identifies the protocol version of a message.
type Magic [MagicSize]byte

// DefaultMagic is the magic of version one of the protocol.
var DefaultMagic = Magic{'B', 'S', '1', 'p'}

// ParseMagic converts a four character string to a Magic.
func ParseMagic(s string) (Magic, error) {
	var m Magic
	if len(s) != MagicSize {
		return m, errors.Wrapf(ErrInvalidMagicLength, "%q has %d bytes", s, len(s))
	}
	copy(m[:], s)
	return m, nil
}

func (m Magic) String() string {
	return string(m[:])
}

// Header is the fixed envelope shared by every message.
type Header struct {
	Magic Magic
	Type  MessageType
}

// EncodeHeader returns the HeaderSize bytes announcing a message of type t.
func EncodeHeader(magic Magic, t MessageType) []byte {
	b := make([]byte, HeaderSize, HeaderSize+2)
	copy(b, magic[:])
	b[MagicSize] = byte(t)
	return b
}

// DecodeHeader reads the envelope at the start of data.
// Neither the magic nor the type are checked here.
func DecodeHeader(data []byte) (Header, error) {
	var h Header
	if len(data) < HeaderSize {
		return h, errors.Wrapf(ErrTruncatedHeader, "want %d bytes, got %d", HeaderSize, len(data))
	}
	copy(h.Magic[:], data[:MagicSize])
	h.Type = MessageType(data[MagicSize])
	return h, nil
}
