package game

import (
	"context"

	"github.com/Zereker/submarines"
)

// SweepGuesser attacks every tile of a size x size board in row-major order.
type SweepGuesser struct {
	size int
	next int
}

// NewSweepGuesser returns a guesser for a board of the given side length.
func NewSweepGuesser(size int) *SweepGuesser {
	return &SweepGuesser{size: size}
}

func (s *SweepGuesser) NextGuess(ctx context.Context) (int, int, error) {
	if err := ctx.Err(); err != nil {
		return 0, 0, err
	}
	if s.next >= s.size*s.size {
		return 0, 0, errNoTilesLeft
	}

	row, column := s.next/s.size, s.next%s.size
	s.next++
	return row, column, nil
}

func (s *SweepGuesser) Observe(int, int, submarines.Result, error) {}
