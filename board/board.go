// Package board keeps track of submarine placement and of the tiles the
// opponent has attacked.
package board

import (
	"math/rand"
	"strings"

	"github.com/pkg/errors"

	"github.com/Zereker/submarines"
)

const (
	// DefaultSize is the side length of a standard board.
	DefaultSize = 10
	// MaxSize is the largest side length a Guess can address.
	MaxSize = 16
)

// DefaultFleet is the set of submarines each player places.
var DefaultFleet = []submarines.SubmarineSize{
	submarines.Submarine5,
	submarines.Submarine4,
	submarines.Submarine3,
	submarines.Submarine3,
	submarines.Submarine2,
}

var (
	ErrInvalidSize   = errors.New("invalid board size")
	ErrInvalidLength = errors.New("invalid submarine length")
	ErrOutOfBounds   = errors.New("submarine out of bounds")
	ErrOverlap       = errors.New("submarine overlaps another")
	ErrNoRoom        = errors.New("no room left for submarine")
)

// maxPlacementAttempts bounds random placement of a single submarine.
const maxPlacementAttempts = 1000

type submarine struct {
	size submarines.SubmarineSize
	hits int
}

func (s *submarine) sunk() bool {
	return s.hits >= int(s.size)
}

// Board is a square grid of tiles, each either water or part of a submarine.
type Board struct {
	size     int
	tiles    [][]*submarine
	attacked [][]bool
	afloat   int
}

// New returns an empty board of size x size tiles.
func New(size int) (*Board, error) {
	if size < 1 || size > MaxSize {
		return nil, errors.Wrapf(ErrInvalidSize, "%d not in 1..%d", size, MaxSize)
	}

	b := &Board{
		size:     size,
		tiles:    make([][]*submarine, size),
		attacked: make([][]bool, size),
	}
	for row := range b.tiles {
		b.tiles[row] = make([]*submarine, size)
		b.attacked[row] = make([]bool, size)
	}

	return b, nil
}

// Size returns the side length of the board.
func (b *Board) Size() int {
	return b.size
}

// Remaining returns how many submarines are still afloat.
func (b *Board) Remaining() int {
	return b.afloat
}

func (b *Board) contains(row, column int) bool {
	return row >= 0 && row < b.size && column >= 0 && column < b.size
}

// Place puts a submarine of the given size with its top left tile at
// (row, column), extending right when horizontal and down otherwise.
func (b *Board) Place(row, column int, size submarines.SubmarineSize, horizontal bool) error {
	if size == submarines.NoSubmarine || !size.Valid() {
		return errors.Wrapf(ErrInvalidLength, "%d", size)
	}

	dr, dc := 1, 0
	if horizontal {
		dr, dc = 0, 1
	}

	for i := 0; i < int(size); i++ {
		r, c := row+i*dr, column+i*dc
		if !b.contains(r, c) {
			return errors.Wrapf(ErrOutOfBounds, "tile (%d, %d)", r, c)
		}
		if b.tiles[r][c] != nil {
			return errors.Wrapf(ErrOverlap, "tile (%d, %d)", r, c)
		}
	}

	sub := &submarine{size: size}
	for i := 0; i < int(size); i++ {
		b.tiles[row+i*dr][column+i*dc] = sub
	}
	b.afloat++

	return nil
}

// PlaceFleet places every submarine of fleet at a random free position.
func (b *Board) PlaceFleet(rng *rand.Rand, fleet []submarines.SubmarineSize) error {
	for _, size := range fleet {
		placed := false
		for attempt := 0; attempt < maxPlacementAttempts && !placed; attempt++ {
			err := b.Place(rng.Intn(b.size), rng.Intn(b.size), size, rng.Intn(2) == 0)
			switch {
			case err == nil:
				placed = true
			case errors.Is(err, ErrOutOfBounds), errors.Is(err, ErrOverlap):
			default:
				return err
			}
		}
		if !placed {
			return errors.Wrapf(ErrNoRoom, "size %d", size)
		}
	}
	return nil
}

// Attack resolves a guess against the board.
// It fails with submarines.ErrInvalidCoordinate for a tile outside the board
// and with submarines.ErrAlreadyAttacked for a tile attacked before.
func (b *Board) Attack(row, column int) (submarines.Result, error) {
	if !b.contains(row, column) {
		return submarines.Result{}, errors.Wrapf(submarines.ErrInvalidCoordinate, "(%d, %d) on a %dx%d board", row, column, b.size, b.size)
	}
	if b.attacked[row][column] {
		return submarines.Result{}, errors.Wrapf(submarines.ErrAlreadyAttacked, "(%d, %d)", row, column)
	}
	b.attacked[row][column] = true

	sub := b.tiles[row][column]
	if sub == nil {
		return submarines.Result{}, nil
	}

	sub.hits++
	result := submarines.Result{SubmarineSize: sub.size}
	if sub.sunk() {
		b.afloat--
		result.DidSink = true
		result.DidSinkLast = b.afloat == 0
	}

	return result, nil
}

// String renders the board one row per line: '.' water, 'o' a missed
// attack, a digit an intact submarine tile and 'x' a hit one.
func (b *Board) String() string {
	var sb strings.Builder
	for row := 0; row < b.size; row++ {
		for column := 0; column < b.size; column++ {
			sub, hit := b.tiles[row][column], b.attacked[row][column]
			switch {
			case sub == nil && hit:
				sb.WriteByte('o')
			case sub == nil:
				sb.WriteByte('.')
			case hit:
				sb.WriteByte('x')
			default:
				sb.WriteByte('0' + byte(sub.size))
			}
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
