// Package shell runs a line-oriented command loop against a store.
package shell

import (
	"bufio"
	"context"
	"errors"
	"io"

	"github.com/google/uuid"

	"kvlog/internal/logging"
	"kvlog/internal/store"
)

var logger = logging.For("shell")

// LineReader yields one input line at a time. *term.Terminal satisfies it.
type LineReader interface {
	ReadLine() (string, error)
}

// ScanLines adapts a plain reader (a pipe or a file) to LineReader.
func ScanLines(r io.Reader) LineReader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16<<20)
	return &scanReader{sc: sc}
}

type scanReader struct {
	sc *bufio.Scanner
}

func (s *scanReader) ReadLine() (string, error) {
	if s.sc.Scan() {
		return s.sc.Text(), nil
	}
	if err := s.sc.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

// Run dispatches lines from in until EOF, a command ends the session, or ctx
// is cancelled. Cancellation is checked between lines.
func Run(ctx context.Context, in LineReader, out io.Writer, reg *Registry, st store.Store) error {
	session := uuid.NewString()
	log := logger.With("session", session)
	log.Info("session started")
	defer log.Info("session ended")

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		line, err := in.ReadLine()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		log.Debug("dispatch", "line_len", len(line))
		if reg.Dispatch(line, st, out) {
			return nil
		}
	}
}
