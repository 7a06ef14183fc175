package record

import (
	"bufio"
	"errors"
	"fmt"
	"io"
)

// Scanner walks the records of a log sequentially from offset 0.
// Records are returned as stored; checksums are left to the caller.
//
// A trailing record that is cut short by the end of the log stops the scan
// and is reported through Torn instead of Err.
type Scanner struct {
	br   *bufio.Reader
	size int64
	off  int64
	rec  Record
	err  error
	torn bool
}

// NewScanner scans the first size bytes of r.
func NewScanner(r io.ReaderAt, size int64) *Scanner {
	return &Scanner{
		br:   bufio.NewReaderSize(io.NewSectionReader(r, 0, size), 64*1024),
		size: size,
	}
}

// Next advances to the next complete record.
func (s *Scanner) Next() bool {
	if s.err != nil || s.torn || s.off >= s.size {
		return false
	}
	remaining := s.size - s.off
	if remaining < HeaderSize {
		s.torn = true
		return false
	}

	var hdr [HeaderSize]byte
	if _, err := io.ReadFull(s.br, hdr[:]); err != nil {
		s.err = fmt.Errorf("reading header at offset %d: %w", s.off, err)
		return false
	}
	h, err := DecodeHeader(hdr[:])
	if err != nil {
		s.err = err
		return false
	}
	// Length fields are not covered by the checksum; bound them by what is
	// left in the log before allocating.
	if h.PayloadLen() > remaining-HeaderSize {
		s.torn = true
		return false
	}

	payload := make([]byte, h.PayloadLen())
	if _, err := io.ReadFull(s.br, payload); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		s.err = fmt.Errorf("reading payload at offset %d: %w", s.off, err)
		return false
	}
	key, value := Split(h, payload)
	s.rec = Record{Offset: s.off, Header: h, Key: key, Value: value}
	s.off += s.rec.Size()
	return true
}

// Record returns the record produced by the last successful Next.
func (s *Scanner) Record() Record {
	return s.rec
}

// Offset is the position just past the last complete record.
func (s *Scanner) Offset() int64 {
	return s.off
}

// Torn reports whether the scan stopped on an incomplete trailing record.
func (s *Scanner) Torn() bool {
	return s.torn
}

func (s *Scanner) Err() error {
	return s.err
}
