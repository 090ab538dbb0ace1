package submarines

import (
	"fmt"

	"github.com/pkg/errors"
)

// MessageType identifies a message variant on the wire.
// Tags are part of the wire format and must never be renumbered.
type MessageType byte

const (
	GameRequestType MessageType = iota
	GameReplyType
	OrderType
	GuessType
	ResultType
	AcknowledgeType
	ErrorType
	messageTypeEnd
)

var messageTypeNames = [...]string{
	GameRequestType: "GameRequest",
	GameReplyType:   "GameReply",
	OrderType:       "Order",
	GuessType:       "Guess",
	ResultType:      "Result",
	AcknowledgeType: "Acknowledge",
	ErrorType:       "Error",
}

func (t MessageType) String() string {
	if t.Valid() {
		return messageTypeNames[t]
	}
	return fmt.Sprintf("MessageType(%d)", byte(t))
}

// Valid reports whether t is one of the known message types.
func (t MessageType) Valid() bool {
	return t < messageTypeEnd
}

// Message is a single protocol message.
// The set of implementations is closed: only the variants declared in
// this package satisfy it.
type Message interface {
	// Type returns the wire tag of the variant.
	Type() MessageType
	// EncodeBody returns the variant's body, without the header.
	EncodeBody() []byte

	message()
}

// GameRequest invites the peer to a game. It has an empty body.
type GameRequest struct{}

func (GameRequest) Type() MessageType  { return GameRequestType }
func (GameRequest) EncodeBody() []byte { return nil }
func (GameRequest) message()           {}

// GameReply answers a GameRequest.
type GameReply struct {
	Accepted bool
}

func (GameReply) Type() MessageType { return GameReplyType }

func (m GameReply) EncodeBody() []byte {
	if m.Accepted {
		return []byte{1}
	}
	return []byte{0}
}

func (GameReply) message() {}

// Order announces that the sender takes the first turn. It has an empty body.
type Order struct{}

func (Order) Type() MessageType  { return OrderType }
func (Order) EncodeBody() []byte { return nil }
func (Order) message()           {}

// Guess attacks a single tile.
// Row and Column share one byte on the wire, four bits each, so values
// are encoded modulo 16: a Column of 17 arrives as 1.
type Guess struct {
	Row    uint8
	Column uint8
}

func (Guess) Type() MessageType { return GuessType }

func (m Guess) EncodeBody() []byte {
	return []byte{m.Row<<4 | m.Column&0x0F}
}

func (Guess) message() {}

// SubmarineSize is the length of the submarine a guess hit.
type SubmarineSize byte

const (
	NoSubmarine SubmarineSize = 0
	Submarine2  SubmarineSize = 2
	Submarine3  SubmarineSize = 3
	Submarine4  SubmarineSize = 4
	Submarine5  SubmarineSize = 5
)

// Valid reports whether s is NoSubmarine or a size between 2 and 5.
func (s SubmarineSize) Valid() bool {
	return s == NoSubmarine || (s >= Submarine2 && s <= Submarine5)
}

// Result reports the outcome of a Guess.
type Result struct {
	SubmarineSize SubmarineSize
	DidSink       bool
	DidSinkLast   bool
}

func (Result) Type() MessageType { return ResultType }

// Hit reports whether the guess hit a submarine.
func (m Result) Hit() bool {
	return m.SubmarineSize != NoSubmarine
}

// Code is the wire result code: the number of set indicators among
// hit, sink and sink-last, from 0 to 3.
func (m Result) Code() byte {
	var code byte
	for _, set := range [...]bool{m.Hit(), m.DidSink, m.DidSinkLast} {
		if set {
			code++
		}
	}
	return code
}

func (m Result) EncodeBody() []byte {
	code := m.Code()
	if code == 0 {
		return []byte{code}
	}
	return []byte{code, byte(m.SubmarineSize)}
}

// validate rejects combinations the result code cannot represent.
func (m Result) validate() error {
	switch {
	case !m.SubmarineSize.Valid():
		return errors.Wrapf(ErrMalformedBody, "result: invalid submarine size %d", m.SubmarineSize)
	case m.DidSink && !m.Hit():
		return errors.Wrap(ErrMalformedBody, "result: sink without a hit")
	case m.DidSinkLast && !m.DidSink:
		return errors.Wrap(ErrMalformedBody, "result: last sink without a sink")
	}
	return nil
}

func (Result) message() {}

// Acknowledge confirms a Result by echoing its code.
type Acknowledge struct {
	Code byte
}

// AcknowledgeResult builds the acknowledgement for r.
func AcknowledgeResult(r Result) Acknowledge {
	return Acknowledge{Code: r.Code()}
}

func (Acknowledge) Type() MessageType    { return AcknowledgeType }
func (m Acknowledge) EncodeBody() []byte { return []byte{m.Code} }
func (Acknowledge) message()             {}

// ErrorCode is the reason carried by an ErrorMessage.
type ErrorCode byte

const (
	GenericErrorCode ErrorCode = iota
	AlreadyAttackedErrorCode
	InvalidCoordinateErrorCode
)

func (c ErrorCode) String() string {
	switch c {
	case GenericErrorCode:
		return "generic"
	case AlreadyAttackedErrorCode:
		return "already attacked"
	case InvalidCoordinateErrorCode:
		return "invalid coordinate"
	default:
		return fmt.Sprintf("ErrorCode(%d)", byte(c))
	}
}

// ErrorMessage tells the peer its last message could not be processed.
// Receiving one never yields a value: Receive returns a *RemoteError.
type ErrorMessage struct {
	Code ErrorCode
}

func (ErrorMessage) Type() MessageType    { return ErrorType }
func (m ErrorMessage) EncodeBody() []byte { return []byte{byte(m.Code)} }
func (ErrorMessage) message()             {}

func checkBodyLen(t MessageType, body []byte, want int) error {
	if len(body) != want {
		return errors.Wrapf(ErrMalformedBody, "%s body: want %d bytes, got %d", t, want, len(body))
	}
	return nil
}

func decodeGameRequestBody(body []byte) (Message, error) {
	if err := checkBodyLen(GameRequestType, body, 0); err != nil {
		return nil, err
	}
	return GameRequest{}, nil
}

// decodeGameReplyBody treats any non-zero byte as accepted.
func decodeGameReplyBody(body []byte) (Message, error) {
	if err := checkBodyLen(GameReplyType, body, 1); err != nil {
		return nil, err
	}
	return GameReply{Accepted: body[0] != 0}, nil
}

func decodeOrderBody(body []byte) (Message, error) {
	if err := checkBodyLen(OrderType, body, 0); err != nil {
		return nil, err
	}
	return Order{}, nil
}

func decodeGuessBody(body []byte) (Message, error) {
	if err := checkBodyLen(GuessType, body, 1); err != nil {
		return nil, err
	}
	return Guess{Row: body[0] >> 4, Column: body[0] & 0x0F}, nil
}

const maxResultCode = 3

func decodeResultBody(body []byte) (Message, error) {
	if len(body) == 0 {
		return nil, errors.Wrap(ErrMalformedBody, "Result body: missing result code")
	}

	code := body[0]
	if code > maxResultCode {
		return nil, errors.Wrapf(ErrMalformedBody, "Result body: result code %d out of range", code)
	}

	want := 1
	if code > 0 {
		want = 2
	}
	if err := checkBodyLen(ResultType, body, want); err != nil {
		return nil, err
	}

	r := Result{DidSink: code > 1, DidSinkLast: code > 2}
	if code > 0 {
		size := SubmarineSize(body[1])
		if size == NoSubmarine || !size.Valid() {
			return nil, errors.Wrapf(ErrMalformedBody, "Result body: invalid submarine size %d", size)
		}
		r.SubmarineSize = size
	}
	return r, nil
}

func decodeAcknowledgeBody(body []byte) (Message, error) {
	if err := checkBodyLen(AcknowledgeType, body, 1); err != nil {
		return nil, err
	}
	return Acknowledge{Code: body[0]}, nil
}

// decodeErrorBody keeps unknown codes; they are mapped to a generic
// failure when the message is received.
func decodeErrorBody(body []byte) (Message, error) {
	if err := checkBodyLen(ErrorType, body, 1); err != nil {
		return nil, err
	}
	return ErrorMessage{Code: ErrorCode(body[0])}, nil
}
