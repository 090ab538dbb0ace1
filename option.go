package submarines

import (
	"net"
	"time"
)

// ErrorAction defines the action to take when an error occurs.
type ErrorAction int

const (
	// Disconnect stops accepting and returns the error to the caller.
	Disconnect ErrorAction = iota
	// Continue drops the failed peer and keeps accepting.
	Continue
)

// Default configuration values.
const (
	// DefaultPort is the port a host listens on.
	DefaultPort = 8300
	// defaultChunkSize is the size of a single socket read.
	defaultChunkSize = 1024
	// defaultMaxMessageSize is the maximum size of a single message (64KB).
	defaultMaxMessageSize = 64 * 1024
)

// options holds the configuration for a session.
type options struct {
	magic  Magic
	logger Logger

	// onError is called when an inbound handshake fails.
	// Returns Continue to accept the next peer, Disconnect to give up.
	onError func(error) ErrorAction
	// acceptPolicy decides the value of the GameReply sent to a peer.
	acceptPolicy func(remote net.Addr) bool

	chunkSize     int           // size of a single read
	maxReadLength int           // maximum size of a single message
	timeout       time.Duration // read/write deadline per operation, zero for none
}

// Option is a function that configures session options.
type Option func(*options)

// MagicOption returns an Option that sets the protocol magic written and expected.
func MagicOption(magic Magic) Option {
	return func(o *options) {
		o.magic = magic
	}
}

// ChunkSizeOption returns an Option that sets the size of a single socket read.
// A read shorter than this size ends a message.
func ChunkSizeOption(size int) Option {
	return func(o *options) {
		o.chunkSize = size
	}
}

// TimeoutOption returns an Option that sets the deadline applied to every
// read and write on the game connection. Zero disables deadlines.
func TimeoutOption(timeout time.Duration) Option {
	return func(o *options) {
		o.timeout = timeout
	}
}

// MessageMaxSize returns an Option that sets the maximum message size.
// Messages larger than this size cannot be received.
func MessageMaxSize(size int) Option {
	return func(o *options) {
		o.maxReadLength = size
	}
}

// OnErrorOption returns an Option that sets the handshake error callback.
// The callback is invoked when an inbound peer fails the handshake.
// Return Continue to accept the next peer, or Disconnect to stop.
func OnErrorOption(cb func(error) ErrorAction) Option {
	return func(o *options) {
		o.onError = cb
	}
}

// AcceptPolicyOption returns an Option that decides whether a game request
// from remote is accepted. The answer is sent explicitly in the GameReply.
func AcceptPolicyOption(policy func(remote net.Addr) bool) Option {
	return func(o *options) {
		o.acceptPolicy = policy
	}
}

// LoggerOption returns an Option that sets the logger.
// If not set, the default slog logger will be used.
func LoggerOption(logger Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// checkOptions sets default values for session options.
func checkOptions(opts *options) {
	if opts.magic == (Magic{}) {
		opts.magic = DefaultMagic
	}

	if opts.chunkSize <= 0 {
		opts.chunkSize = defaultChunkSize
	}

	if opts.maxReadLength <= 0 {
		opts.maxReadLength = defaultMaxMessageSize
	}

	if opts.timeout < 0 {
		opts.timeout = 0
	}

	if opts.onError == nil {
		opts.onError = func(err error) ErrorAction { return Continue }
	}

	if opts.acceptPolicy == nil {
		opts.acceptPolicy = func(net.Addr) bool { return true }
	}

	if opts.logger == nil {
		opts.logger = defaultLogger()
	}
}
