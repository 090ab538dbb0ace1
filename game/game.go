// Package game plays a match of submarines over a connected session.
//
// Messages strictly alternate between the peers: nobody sends twice in a row
// without reading a reply first. The protocol has no length prefix, so two
// messages written back to back may be read as one.
package game

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/Zereker/submarines"
	"github.com/Zereker/submarines/board"
)

// ErrUnexpectedAcknowledge is returned when the attacker acknowledges a
// result code other than the one it was sent.
var ErrUnexpectedAcknowledge = errors.New("acknowledge does not match result")

// Transport is the part of a connected session a game needs.
type Transport interface {
	Send(message submarines.Message) error
	ReceiveExpected(t submarines.MessageType) (submarines.Message, error)
}

// Guesser picks the tiles to attack.
type Guesser interface {
	// NextGuess returns the next tile to attack.
	NextGuess(ctx context.Context) (row, column int, err error)
	// Observe reports the outcome of the last guess: either a result or the
	// failure the peer answered with.
	Observe(row, column int, result submarines.Result, err error)
}

// Role decides who sends the turn order.
type Role int

const (
	// Host accepted the invitation. It waits for Order and attacks first.
	Host Role = iota
	// Guest sent the invitation. It sends Order and defends first.
	Guest
)

// Outcome is how a match ended for the local player.
type Outcome int

const (
	Lost Outcome = iota
	Won
)

func (o Outcome) String() string {
	if o == Won {
		return "won"
	}
	return "lost"
}

// Game is one match between the local board and a remote peer.
type Game struct {
	transport Transport
	board     *board.Board
	guesser   Guesser
	logger    submarines.Logger

	turn int
}

// New returns a game defending b and attacking with guesser.
func New(transport Transport, b *board.Board, guesser Guesser, logger submarines.Logger) *Game {
	return &Game{
		transport: transport,
		board:     b,
		guesser:   guesser,
		logger:    logger,
	}
}

// deadliner is implemented by transports whose blocking calls can be
// interrupted, such as *submarines.Session.
type deadliner interface {
	SetDeadline(t time.Time) error
}

// Run plays until one side loses its last submarine.
// Cancelling ctx interrupts a blocked exchange when the transport supports
// deadlines; Run then returns ctx.Err().
func (g *Game) Run(ctx context.Context, role Role) (Outcome, error) {
	if d, ok := g.transport.(deadliner); ok {
		stop := context.AfterFunc(ctx, func() { _ = d.SetDeadline(time.Now()) })
		defer stop()
	}

	outcome, err := g.run(ctx, role)
	if err != nil && ctx.Err() != nil {
		return Lost, ctx.Err()
	}
	return outcome, err
}

func (g *Game) run(ctx context.Context, role Role) (Outcome, error) {
	attacking, err := g.exchangeOrder(role)
	if err != nil {
		return Lost, err
	}

	for {
		if err := ctx.Err(); err != nil {
			return Lost, err
		}

		g.turn++
		if attacking {
			won, err := g.attack(ctx)
			if err != nil {
				return Lost, errors.Wrapf(err, "turn %d", g.turn)
			}
			if won {
				g.logger.Info("game over", "turn", g.turn, "outcome", Won)
				return Won, nil
			}
		} else {
			lost, err := g.defend()
			if err != nil {
				return Lost, errors.Wrapf(err, "turn %d", g.turn)
			}
			if lost {
				g.logger.Info("game over", "turn", g.turn, "outcome", Lost)
				return Lost, nil
			}
		}

		attacking = !attacking
	}
}

// exchangeOrder returns whether the local player attacks first.
func (g *Game) exchangeOrder(role Role) (bool, error) {
	if role == Guest {
		if err := g.transport.Send(submarines.Order{}); err != nil {
			return false, errors.Wrap(err, "send order")
		}
		return false, nil
	}

	if _, err := g.transport.ReceiveExpected(submarines.OrderType); err != nil {
		return false, errors.Wrap(err, "receive order")
	}
	return true, nil
}

// attack guesses until the peer resolves a guess, and reports whether it
// sank the peer's last submarine.
func (g *Game) attack(ctx context.Context) (bool, error) {
	for {
		row, column, err := g.guesser.NextGuess(ctx)
		if err != nil {
			return false, err
		}

		// Anything wider than four bits would be silently truncated on the wire.
		if row < 0 || row >= board.MaxSize || column < 0 || column >= board.MaxSize {
			g.guesser.Observe(row, column, submarines.Result{}, errors.Wrapf(submarines.ErrInvalidCoordinate, "(%d, %d)", row, column))
			continue
		}

		if err = g.transport.Send(submarines.Guess{Row: uint8(row), Column: uint8(column)}); err != nil {
			return false, err
		}

		message, err := g.transport.ReceiveExpected(submarines.ResultType)
		if errors.Is(err, submarines.ErrAlreadyAttacked) || errors.Is(err, submarines.ErrInvalidCoordinate) {
			g.logger.Debug("guess rejected", "turn", g.turn, "row", row, "column", column, "error", err)
			g.guesser.Observe(row, column, submarines.Result{}, err)
			continue
		}
		if err != nil {
			return false, err
		}

		result := message.(submarines.Result)
		if err = g.transport.Send(submarines.AcknowledgeResult(result)); err != nil {
			return false, err
		}

		g.logger.Debug("guess resolved", "turn", g.turn, "row", row, "column", column, "code", result.Code())
		g.guesser.Observe(row, column, result, nil)

		return result.DidSinkLast, nil
	}
}

// defend answers guesses until one lands on the board, and reports whether
// it sank the last local submarine.
func (g *Game) defend() (bool, error) {
	for {
		message, err := g.transport.ReceiveExpected(submarines.GuessType)
		if err != nil {
			return false, err
		}

		guess := message.(submarines.Guess)
		result, err := g.board.Attack(int(guess.Row), int(guess.Column))
		if err != nil {
			g.logger.Debug("rejecting guess", "turn", g.turn, "row", guess.Row, "column", guess.Column, "error", err)
			if err = g.transport.Send(submarines.ErrorMessage{Code: submarines.ErrorCodeOf(err)}); err != nil {
				return false, err
			}
			continue
		}

		if err = g.transport.Send(result); err != nil {
			return false, err
		}

		message, err = g.transport.ReceiveExpected(submarines.AcknowledgeType)
		if err != nil {
			return false, err
		}

		if ack := message.(submarines.Acknowledge); ack.Code != result.Code() {
			return false, errors.Wrapf(ErrUnexpectedAcknowledge, "want %d, got %d", result.Code(), ack.Code)
		}

		return result.DidSinkLast, nil
	}
}

var errNoTilesLeft = errors.New("every tile has been attacked")
