package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/Zereker/submarines"
)

// stdinGuesser reads guesses as "row column" lines.
type stdinGuesser struct {
	lines chan string
	out   io.Writer
}

func newStdinGuesser(in io.Reader, out io.Writer) *stdinGuesser {
	g := &stdinGuesser{lines: make(chan string), out: out}
	go func() {
		defer close(g.lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			g.lines <- scanner.Text()
		}
	}()
	return g
}

func (g *stdinGuesser) NextGuess(ctx context.Context) (int, int, error) {
	for {
		fmt.Fprint(g.out, "guess (row column)> ")

		var line string
		select {
		case <-ctx.Done():
			return 0, 0, ctx.Err()
		case l, ok := <-g.lines:
			if !ok {
				return 0, 0, errors.New("input closed")
			}
			line = l
		}

		fields := strings.Fields(line)
		if len(fields) != 2 {
			fmt.Fprintln(g.out, "Enter two numbers separated by a space")
			continue
		}
		row, rowErr := strconv.Atoi(fields[0])
		column, columnErr := strconv.Atoi(fields[1])
		if rowErr != nil || columnErr != nil {
			fmt.Fprintln(g.out, "Enter two numbers separated by a space")
			continue
		}
		return row, column, nil
	}
}

func (g *stdinGuesser) Observe(row, column int, result submarines.Result, err error) {
	switch {
	case errors.Is(err, submarines.ErrAlreadyAttacked):
		fmt.Fprintf(g.out, "(%d, %d) was already attacked, try again\n", row, column)
	case errors.Is(err, submarines.ErrInvalidCoordinate):
		fmt.Fprintf(g.out, "(%d, %d) is off the board, try again\n", row, column)
	case err != nil:
		fmt.Fprintf(g.out, "(%d, %d): %v\n", row, column, err)
	case result.DidSinkLast:
		fmt.Fprintf(g.out, "(%d, %d): sank the last submarine\n", row, column)
	case result.DidSink:
		fmt.Fprintf(g.out, "(%d, %d): sank a submarine of size %d\n", row, column, result.SubmarineSize)
	case result.Hit():
		fmt.Fprintf(g.out, "(%d, %d): hit\n", row, column)
	default:
		fmt.Fprintf(g.out, "(%d, %d): miss\n", row, column)
	}
}
