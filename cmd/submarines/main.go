package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/Zereker/submarines"
	"github.com/Zereker/submarines/board"
	"github.com/Zereker/submarines/config"
	"github.com/Zereker/submarines/game"
)

var errInterrupted = errors.New("interrupted")

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "host":
		err = runHost(os.Args[2:])
	case "join":
		err = runJoin(os.Args[2:])
	default:
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  submarines host [--config FILE] [--port P] [--bot]")
	fmt.Println("  submarines join [--config FILE] [--addr HOST:PORT] [--bot]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  host    Wait for an opponent's invitation and play")
	fmt.Println("  join    Invite an opponent and play")
}

// player is what both subcommands need before the handshake.
type player struct {
	cfg     config.Config
	logger  *slog.Logger
	board   *board.Board
	guesser game.Guesser
}

func newPlayer(configPath string, bot bool) (*player, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	level, err := cfg.Level()
	if err != nil {
		return nil, err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	b, err := board.New(cfg.BoardSize)
	if err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	if err = b.PlaceFleet(rng, cfg.FleetSizes()); err != nil {
		return nil, err
	}

	var guesser game.Guesser
	if bot {
		guesser = game.NewSweepGuesser(cfg.BoardSize)
	} else {
		guesser = newStdinGuesser(os.Stdin, os.Stdout)
	}

	return &player{cfg: cfg, logger: logger, board: b, guesser: guesser}, nil
}

func (p *player) session() (*submarines.Session, error) {
	opts, err := p.cfg.SessionOptions(submarines.NewAsyncLogger(p.logger))
	if err != nil {
		return nil, err
	}
	return submarines.NewSession(opts...), nil
}

// run plays on a connected session until the game ends or a signal arrives.
func (p *player) run(ctx context.Context, connect func(context.Context) error, session *submarines.Session, role game.Role) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigCh)

		select {
		case sig := <-sigCh:
			p.logger.Info("shutting down", "signal", sig)
			return errInterrupted
		case <-ctx.Done():
			return nil
		}
	})

	group.Go(func() error {
		defer cancel()

		if err := connect(ctx); err != nil {
			return err
		}

		fmt.Printf("Connected to %s. Your board:\n%s", session.RemoteAddr(), p.board)

		outcome, err := game.New(session, p.board, p.guesser, p.logger).Run(ctx, role)
		if err != nil {
			return err
		}

		fmt.Printf("\nYou %s!\n", outcome)
		return nil
	})

	err := group.Wait()
	if errors.Is(err, context.Canceled) {
		return errInterrupted
	}
	return err
}

func runHost(args []string) error {
	fs := flag.NewFlagSet("host", flag.ExitOnError)
	configPath := fs.String("config", "", "path to a YAML config file")
	port := fs.Int("port", -1, "TCP port to listen on (overrides config)")
	bot := fs.Bool("bot", false, "guess automatically instead of reading stdin")
	_ = fs.Parse(args)

	p, err := newPlayer(*configPath, *bot)
	if err != nil {
		return err
	}
	if *port >= 0 {
		p.cfg.Port = *port
	}

	session, err := p.session()
	if err != nil {
		return err
	}
	defer session.Close()

	if err = session.Listen(p.cfg.Port); err != nil {
		return err
	}

	fmt.Printf("Waiting for an invitation on %s...\n", session.Addr())

	return p.run(context.Background(), session.AcceptAndHandshake, session, game.Host)
}

func runJoin(args []string) error {
	fs := flag.NewFlagSet("join", flag.ExitOnError)
	configPath := fs.String("config", "", "path to a YAML config file")
	addr := fs.String("addr", net.JoinHostPort("localhost", strconv.Itoa(submarines.DefaultPort)), "address of the host")
	bot := fs.Bool("bot", false, "guess automatically instead of reading stdin")
	_ = fs.Parse(args)

	host, portText, err := net.SplitHostPort(*addr)
	if err != nil {
		return errors.Wrap(err, "addr")
	}
	port, err := strconv.Atoi(portText)
	if err != nil {
		return errors.Wrap(err, "addr port")
	}

	p, err := newPlayer(*configPath, *bot)
	if err != nil {
		return err
	}

	session, err := p.session()
	if err != nil {
		return err
	}
	defer session.Close()

	invite := func(ctx context.Context) error {
		accepted, err := session.InviteAndHandshake(ctx, host, port)
		if err != nil {
			return err
		}
		if !accepted {
			return errors.Errorf("%s declined the game", *addr)
		}
		return nil
	}

	return p.run(context.Background(), invite, session, game.Guest)
}
