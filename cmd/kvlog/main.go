package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"golang.org/x/term"

	"kvlog/internal/config"
	"kvlog/internal/logging"
	"kvlog/internal/shell"
	"kvlog/internal/store"
	boltstore "kvlog/internal/store/bolt"
	"kvlog/internal/store/logfile"
	pebblestore "kvlog/internal/store/pebble"
)

var logger = logging.For("main")

const usageText = `usage:
  kvlog [flags] [FILE]            open FILE (or store.path) and read commands from stdin
  kvlog [flags] verify FILE       check every record in a log file
  kvlog [flags] backup FILE OUT   write a zstd-compressed copy of FILE to OUT
  kvlog [flags] restore IN FILE   restore a backup into a new FILE

flags:
`

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin *os.File, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("kvlog", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		_, _ = fmt.Fprint(stderr, usageText)
		fs.PrintDefaults()
	}
	configPath := fs.String("config", "", "path to config file")
	engine := fs.String("engine", "", "storage engine: log, bolt or pebble (overrides config)")
	create := fs.Bool("create", false, "fail if the store file already exists")
	syncWrites := fs.Bool("sync", false, "fsync after every write (log and pebble engines)")
	logLevel := fs.String("log-level", "", "debug, info, warn or error (overrides config)")
	logFormat := fs.String("log-format", "", "text or json (overrides config)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "config: %v\n", err)
		return 1
	}

	// CLI flags override config file values
	if *engine != "" {
		cfg.Store.Engine = *engine
	}
	if *create {
		cfg.Store.CreateExclusive = true
	}
	if *syncWrites {
		cfg.Store.Sync = true
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	if *logFormat != "" {
		cfg.Logging.Format = *logFormat
	}

	rest := fs.Args()
	cmd := ""
	if len(rest) > 0 {
		switch rest[0] {
		case "verify", "backup", "restore":
			cmd, rest = rest[0], rest[1:]
		}
	}
	if cmd == "" && len(rest) > 0 {
		cfg.Store.Path = rest[0]
		rest = rest[1:]
	}
	cfg.Store.Path = config.ExpandHome(cfg.Store.Path)

	if err := cfg.Validate(); err != nil {
		_, _ = fmt.Fprintf(stderr, "config: %v\n", err)
		return 1
	}
	if err := logging.Init(stderr, cfg.Logging.Level, cfg.Logging.Format); err != nil {
		_, _ = fmt.Fprintf(stderr, "logging: %v\n", err)
		return 1
	}

	switch cmd {
	case "verify":
		if len(rest) != 1 {
			fs.Usage()
			return 2
		}
		return runVerify(rest[0], stdout)
	case "backup":
		if len(rest) != 2 {
			fs.Usage()
			return 2
		}
		return runBackup(rest[0], rest[1], stdout)
	case "restore":
		if len(rest) != 2 {
			fs.Usage()
			return 2
		}
		return runRestore(rest[0], rest[1], stdout)
	}
	if len(rest) > 0 {
		fs.Usage()
		return 2
	}

	if err := runShell(cfg, stdin, stdout, stderr); err != nil {
		logger.Error("shell failed", "err", err)
		return 1
	}
	return 0
}

func openStore(cfg *config.Config) (store.Store, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Store.Path), 0700); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}
	switch cfg.Store.Engine {
	case config.EngineBolt:
		if cfg.Store.CreateExclusive {
			return boltstore.CreateExclusive(cfg.Store.Path)
		}
		return boltstore.Open(cfg.Store.Path)
	case config.EnginePebble:
		opts := []pebblestore.Option{pebblestore.WithSync(cfg.Store.Sync)}
		if cfg.Store.CreateExclusive {
			return pebblestore.CreateExclusive(cfg.Store.Path, opts...)
		}
		return pebblestore.Open(cfg.Store.Path, opts...)
	default:
		opts := []logfile.Option{logfile.WithSync(cfg.Store.Sync)}
		if cfg.Store.CreateExclusive {
			return logfile.CreateExclusive(cfg.Store.Path, opts...)
		}
		return logfile.OpenOrCreate(cfg.Store.Path, opts...)
	}
}

func runShell(cfg *config.Config, stdin *os.File, stdout, stderr io.Writer) error {
	st, err := openStore(cfg)
	if err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return fmt.Errorf("%s already exists (drop -create to reuse it): %w", cfg.Store.Path, err)
		}
		return err
	}
	defer func() {
		if err := st.Close(); err != nil && !errors.Is(err, store.ErrClosed) {
			logger.Warn("closing store", "err", err)
		}
	}()
	logger.Info("store opened", "path", cfg.Store.Path, "engine", cfg.Store.Engine)

	reg := shell.NewRegistry()
	reg.RegisterBuiltins()
	reg.RegisterStoreCommands()

	var (
		in  shell.LineReader
		out = stdout
	)
	if fd := int(stdin.Fd()); term.IsTerminal(fd) {
		oldState, err := term.MakeRaw(fd)
		if err != nil {
			return fmt.Errorf("terminal: %w", err)
		}
		defer func() { _ = term.Restore(fd, oldState) }()
		t := term.NewTerminal(struct {
			io.Reader
			io.Writer
		}{stdin, stdout}, "kvlog> ")
		restoreLogs, err := logToTerminal(t, cfg, stderr)
		if err != nil {
			return err
		}
		defer restoreLogs()
		_, _ = fmt.Fprint(t, reg.HelpText())
		in, out = t, t
	} else {
		in = shell.ScanLines(stdin)
	}

	// Graceful shutdown on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	done := make(chan error, 1)
	go func() { done <- shell.Run(ctx, in, out, reg, st) }()

	select {
	case err := <-done:
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	case <-ctx.Done():
		logger.Info("shutting down")
		return nil
	}
}

// logToTerminal sends log output through t while the tty is in raw mode, so
// lines get CRLF endings and the prompt is redrawn after each one. The
// returned func points logging back at stderr.
func logToTerminal(t *term.Terminal, cfg *config.Config, stderr io.Writer) (func(), error) {
	if err := logging.Init(t, cfg.Logging.Level, cfg.Logging.Format); err != nil {
		return nil, fmt.Errorf("logging: %w", err)
	}
	return func() {
		if err := logging.Init(stderr, cfg.Logging.Level, cfg.Logging.Format); err != nil {
			_, _ = fmt.Fprintf(stderr, "logging: %v\n", err)
		}
	}, nil
}
