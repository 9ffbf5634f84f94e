// Command kvs-server binds a TCP address and services get/set/rm requests
// against a pluggable storage engine, per spec.md §4.E / §6.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lighkLife/kvs/internal/boltengine"
	"github.com/lighkLife/kvs/internal/config"
	"github.com/lighkLife/kvs/internal/engine"
	"github.com/lighkLife/kvs/internal/kvs"
	"github.com/lighkLife/kvs/internal/logging"
	"github.com/lighkLife/kvs/internal/pool"
	"github.com/lighkLife/kvs/internal/server"
)

type options struct {
	Addr     string `long:"addr" description:"server address IP:PORT (default 127.0.0.1:4000)"`
	Engine   string `long:"engine" description:"storage engine: builtin or bbolt"`
	Dir      string `long:"dir" description:"data directory (default .)"`
	Workers  int    `long:"workers" description:"worker pool size (default 4)"`
	Config   string `long:"config" description:"optional YAML config file"`
	LogLevel string `long:"log-level" description:"debug, info, warn, or error (default info)"`
	LogFile  string `long:"log-file" description:"rotate logs into this file instead of stderr"`

	Stats statsCommand `command:"stats" description:"print engine statistics for the data directory and exit"`
}

// statsCommand implements go-flags' Commander interface. It shares the same
// global flags as the server (--dir, --engine, --config, ...) since it
// inspects the same data directory the server would run against.
type statsCommand struct{}

func (statsCommand) Execute(_ []string) error {
	return runStats(rootOpts)
}

// rootOpts holds the parsed top-level flags so statsCommand.Execute (invoked
// by go-flags with no direct access to the parser's options) can read them.
var rootOpts options

func main() {
	os.Exit(run())
}

func run() int {
	parser := flags.NewParser(&rootOpts, flags.Default)
	parser.SubcommandsOptional = true
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			return 0
		}
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if parser.Active != nil {
		// A subcommand (stats) ran to completion inside Parse(); nothing
		// left to do.
		return 0
	}
	return runServer(rootOpts)
}

func runStats(opts options) error {
	cfg, err := resolveConfig(opts)
	if err != nil {
		return err
	}
	logger, err := logging.New(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	if err != nil {
		return err
	}
	defer logger.Sync()

	selected, err := server.SelectEngine(cfg.Dir, engine.Name(cfg.Engine))
	if err != nil {
		return err
	}
	eng, err := openEngine(selected, cfg.Dir, logger)
	if err != nil {
		return err
	}
	defer eng.Close()

	fmt.Println(server.Stats(eng))
	return nil
}

func resolveConfig(opts options) (config.Server, error) {
	cfg, err := config.LoadServerFile(opts.Config, config.DefaultServer())
	if err != nil {
		return config.Server{}, err
	}
	applyFlagOverrides(&cfg, opts)
	if err := cfg.Validate(); err != nil {
		return config.Server{}, err
	}
	return cfg, nil
}

func runServer(opts options) int {
	cfg, err := resolveConfig(opts)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	logger, err := logging.New(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer logger.Sync()

	selected, err := server.SelectEngine(cfg.Dir, engine.Name(cfg.Engine))
	if err != nil {
		logger.Error("engine selection failed", zap.Error(err))
		return 1
	}

	eng, err := openEngine(selected, cfg.Dir, logger)
	if err != nil {
		logger.Error("failed to open engine", zap.Error(err))
		return 1
	}
	defer eng.Close()

	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		logger.Error("failed to bind address", zap.String("addr", cfg.Addr), zap.Error(err))
		return 1
	}

	p, err := pool.New(cfg.Workers, cfg.Workers*4, logger)
	if err != nil {
		logger.Error("failed to start worker pool", zap.Error(err))
		return 1
	}

	srv := server.New(ln, eng, p, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The acceptor loop and the signal-triggered shutdown watcher run as one
	// group: either the loop exits on its own (an accept error) or the
	// watcher closes the listener out from under it on SIGINT/SIGTERM; stop()
	// unblocks the watcher in the former case so the group always converges.
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer stop()
		return srv.Serve()
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		return ln.Close()
	})

	logger.Info("listening", zap.String("addr", cfg.Addr), zap.String("engine", string(selected)), zap.Int("workers", cfg.Workers))
	if err := g.Wait(); err != nil && !errors.Is(err, net.ErrClosed) {
		logger.Error("server loop exited with error", zap.Error(err))
		return 1
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := p.Shutdown(shutdownCtx); err != nil {
		logger.Warn("pool shutdown did not complete cleanly", zap.Error(err))
	}
	return 0
}

func applyFlagOverrides(cfg *config.Server, opts options) {
	if opts.Addr != "" {
		cfg.Addr = opts.Addr
	}
	if opts.Engine != "" {
		cfg.Engine = opts.Engine
	}
	if opts.Dir != "" {
		cfg.Dir = opts.Dir
	}
	if opts.Workers != 0 {
		cfg.Workers = opts.Workers
	}
	if opts.LogLevel != "" {
		cfg.LogLevel = opts.LogLevel
	}
	if opts.LogFile != "" {
		cfg.LogFile = opts.LogFile
	}
}

func openEngine(name engine.Name, dir string, logger *zap.Logger) (engine.Engine, error) {
	switch name {
	case engine.Builtin:
		return kvs.Open(dir, logger)
	case engine.Bolt:
		return boltengine.Open(dir)
	default:
		return nil, &engine.Error{Kind: engine.ErrKindBadArgument, Err: fmt.Errorf("unknown engine %q", name)}
	}
}
