// Package record implements the on-disk record format of the log store.
//
// A record is a 12-byte header followed by the raw key and value bytes:
//
//	checksum u32 LE  CRC-32/CKSUM of key‖value
//	key_len  u32 LE
//	val_len  u32 LE
//	key      key_len bytes
//	value    val_len bytes
//
// There is no file header, magic or padding; records are simply concatenated.
package record

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

const HeaderSize = 12 // 4 (checksum) + 4 (key_len) + 4 (val_len)

var (
	ErrChecksum = errors.New("checksum mismatch")
	ErrTooLarge = errors.New("record field exceeds 4 GiB")
)

// Header is the fixed-width prefix of every record.
type Header struct {
	Checksum uint32
	KeyLen   uint32
	ValLen   uint32
}

// PayloadLen is the number of key and value bytes following the header.
func (h Header) PayloadLen() int64 {
	return int64(h.KeyLen) + int64(h.ValLen)
}

func (h Header) Encode() [HeaderSize]byte {
	var b [HeaderSize]byte
	binary.LittleEndian.PutUint32(b[0:4], h.Checksum)
	binary.LittleEndian.PutUint32(b[4:8], h.KeyLen)
	binary.LittleEndian.PutUint32(b[8:12], h.ValLen)
	return b
}

// DecodeHeader parses the first HeaderSize bytes of b.
func DecodeHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, fmt.Errorf("decoding header: %d bytes: %w", len(b), io.ErrUnexpectedEOF)
	}
	return Header{
		Checksum: binary.LittleEndian.Uint32(b[0:4]),
		KeyLen:   binary.LittleEndian.Uint32(b[4:8]),
		ValLen:   binary.LittleEndian.Uint32(b[8:12]),
	}, nil
}

// Pack concatenates parts into one contiguous buffer. Nothing is escaped or
// framed; the header length fields alone delimit key and value.
func Pack(parts ...[]byte) []byte {
	n := 0
	for _, p := range parts {
		n += len(p)
	}
	out := make([]byte, 0, n)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// NewHeader builds the header for a key/value pair and returns it together
// with the packed payload it was computed over.
func NewHeader(key, value []byte) (Header, []byte, error) {
	if uint64(len(key)) > math.MaxUint32 || uint64(len(value)) > math.MaxUint32 {
		return Header{}, nil, ErrTooLarge
	}
	payload := Pack(key, value)
	return Header{
		Checksum: Checksum(payload),
		KeyLen:   uint32(len(key)),
		ValLen:   uint32(len(value)),
	}, payload, nil
}

// Encode returns the complete wire form of a record.
func Encode(key, value []byte) ([]byte, error) {
	h, payload, err := NewHeader(key, value)
	if err != nil {
		return nil, err
	}
	hdr := h.Encode()
	return Pack(hdr[:], payload), nil
}

// Record is a decoded record together with the offset it was read from.
type Record struct {
	Offset int64
	Header
	Key   []byte
	Value []byte
}

// Size is the number of bytes the record occupies on disk.
func (r Record) Size() int64 {
	return HeaderSize + r.PayloadLen()
}

// Verify recomputes the checksum over key‖value.
func (r Record) Verify() error {
	return Verify(r.Header, Pack(r.Key, r.Value), r.Offset)
}

// CorruptionError reports a record whose stored checksum does not match its
// payload. It matches ErrChecksum under errors.Is.
type CorruptionError struct {
	Offset   int64
	Stored   uint32
	Computed uint32
}

func (e *CorruptionError) Error() string {
	return fmt.Sprintf("record at offset %d: checksum mismatch (stored %08x, computed %08x)",
		e.Offset, e.Stored, e.Computed)
}

func (e *CorruptionError) Is(target error) bool {
	return target == ErrChecksum
}

// Verify checks payload against the checksum stored in h. off is only used
// for error reporting.
func Verify(h Header, payload []byte, off int64) error {
	if sum := Checksum(payload); sum != h.Checksum {
		return &CorruptionError{Offset: off, Stored: h.Checksum, Computed: sum}
	}
	return nil
}

// Split separates a payload into key and value at h.KeyLen.
// The value is never nil, even when empty.
func Split(h Header, payload []byte) (key, value []byte) {
	return payload[:h.KeyLen:h.KeyLen], payload[h.KeyLen:]
}

// ReadAt decodes the record at off in a log of size bytes. The checksum is
// not verified. The length fields are bounded by the bytes left after off
// before any allocation, so a damaged header cannot force a huge read. A
// record cut short by the end of the log yields io.ErrUnexpectedEOF; off at
// the very end yields io.EOF.
func ReadAt(r io.ReaderAt, off, size int64) (Record, error) {
	remaining := size - off
	switch {
	case remaining <= 0:
		return Record{}, fmt.Errorf("reading header at offset %d: %w", off, io.EOF)
	case remaining < HeaderSize:
		return Record{}, fmt.Errorf("reading header at offset %d: %w", off, io.ErrUnexpectedEOF)
	}
	sr := io.NewSectionReader(r, off, remaining)

	var hdr [HeaderSize]byte
	if _, err := io.ReadFull(sr, hdr[:]); err != nil {
		return Record{}, fmt.Errorf("reading header at offset %d: %w", off, unexpectedEOF(err))
	}
	h, err := DecodeHeader(hdr[:])
	if err != nil {
		return Record{}, err
	}
	if h.PayloadLen() > remaining-HeaderSize {
		return Record{}, fmt.Errorf("reading payload at offset %d: %d bytes claimed, %d left: %w",
			off, h.PayloadLen(), remaining-HeaderSize, io.ErrUnexpectedEOF)
	}
	payload := make([]byte, h.PayloadLen())
	if _, err := io.ReadFull(sr, payload); err != nil {
		return Record{}, fmt.Errorf("reading payload at offset %d: %w", off, unexpectedEOF(err))
	}
	key, value := Split(h, payload)
	return Record{Offset: off, Header: h, Key: key, Value: value}, nil
}

func unexpectedEOF(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}
