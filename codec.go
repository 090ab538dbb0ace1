package submarines

import (
	"github.com/pkg/errors"
)

type bodyDecoder func(body []byte) (Message, error)

// decoders maps every known tag to the inverse of its EncodeBody.
// It is never written after initialization.
var decoders = [messageTypeEnd]bodyDecoder{
	GameRequestType: decodeGameRequestBody,
	GameReplyType:   decodeGameReplyBody,
	OrderType:       decodeOrderBody,
	GuessType:       decodeGuessBody,
	ResultType:      decodeResultBody,
	AcknowledgeType: decodeAcknowledgeBody,
	ErrorType:       decodeErrorBody,
}

// Codec converts messages to and from their wire form for one protocol magic.
// A Codec holds no mutable state and may be shared between sessions.
type Codec struct {
	magic Magic
}

// NewCodec returns a codec writing and accepting magic.
func NewCodec(magic Magic) *Codec {
	return &Codec{magic: magic}
}

// Magic returns the magic the codec writes and expects.
func (c *Codec) Magic() Magic {
	return c.magic
}

// Encode returns the header followed by the body of m.
func (c *Codec) Encode(m Message) ([]byte, error) {
	if m == nil {
		return nil, errors.New("encode: nil message")
	}

	if v, ok := m.(interface{ validate() error }); ok {
		if err := v.validate(); err != nil {
			return nil, err
		}
	}

	return append(EncodeHeader(c.magic, m.Type()), m.EncodeBody()...), nil
}

// Decode parses exactly one message from data.
// All bytes after the header are taken as the body.
func (c *Codec) Decode(data []byte) (Message, error) {
	header, err := DecodeHeader(data)
	if err != nil {
		return nil, err
	}

	if header.Magic != c.magic {
		return nil, errors.Wrapf(ErrInvalidMagic, "want %q, got %q", c.magic, header.Magic)
	}

	if !header.Type.Valid() {
		return nil, errors.Wrapf(ErrUnknownMessageType, "tag %d", byte(header.Type))
	}

	return decoders[header.Type](data[HeaderSize:])
}
