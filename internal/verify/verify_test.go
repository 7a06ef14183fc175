package verify

import (
	"bytes"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"kvlog/internal/logging"
	"kvlog/internal/record"
	"kvlog/internal/store/logfile"
)

func writeLog(t *testing.T, pairs ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kv.log")
	st, err := logfile.CreateExclusive(path)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < len(pairs); i += 2 {
		if err := st.Insert([]byte(pairs[i]), []byte(pairs[i+1])); err != nil {
			t.Fatal(err)
		}
	}
	if err := st.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestFileClean(t *testing.T) {
	path := writeLog(t, "abc", "123", "def", "456", "abc", "789", "def", "")
	rep, err := File(path)
	if err != nil {
		t.Fatal(err)
	}
	if !rep.OK() {
		t.Fatalf("clean log reported problems: %+v", rep)
	}
	if rep.Records != 4 || rep.Keys != 2 || rep.Superseded != 2 || rep.Tombstones != 1 {
		t.Fatalf("report = %+v", rep)
	}
	if rep.Bytes != 4*record.HeaderSize+6+6+6+3 {
		t.Fatalf("Bytes = %d", rep.Bytes)
	}
}

func TestFileEmpty(t *testing.T) {
	rep, err := File(writeLog(t))
	if err != nil {
		t.Fatal(err)
	}
	if !rep.OK() || rep.Records != 0 || rep.Bytes != 0 {
		t.Fatalf("report = %+v", rep)
	}
}

func TestFileMissing(t *testing.T) {
	_, err := File(filepath.Join(t.TempDir(), "nope.log"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("err = %v, want ErrNotExist", err)
	}
}

func TestScanCorruptRecordIsSkipped(t *testing.T) {
	path := writeLog(t, "abc", "123", "def", "456", "ghi", "789")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	// Second record starts at 18; flip a value bit.
	data[18+record.HeaderSize+3] ^= 0x01

	c := logging.CaptureForTest()
	defer c.Restore()

	rep, err := Scan(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatal(err)
	}
	if rep.OK() {
		t.Fatal("corruption not reported")
	}
	if len(rep.Corrupt) != 1 || rep.Corrupt[0].Offset != 18 {
		t.Fatalf("Corrupt = %+v", rep.Corrupt)
	}
	if !errors.Is(rep.Corrupt[0].Err, record.ErrChecksum) {
		t.Fatalf("Corrupt[0].Err = %v", rep.Corrupt[0].Err)
	}
	if rep.Records != 3 || rep.Keys != 2 {
		t.Fatalf("scan should continue past corruption: %+v", rep)
	}
	if !c.Has(slog.LevelWarn, "corrupt record") {
		t.Error("expected a warning for the corrupt record")
	}
}

func TestScanTornTail(t *testing.T) {
	path := writeLog(t, "abc", "123", "def", "456")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	data = data[:len(data)-1]

	rep, err := Scan(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatal(err)
	}
	if rep.TornAt != 18 {
		t.Fatalf("TornAt = %d, want 18", rep.TornAt)
	}
	if rep.Records != 1 || rep.OK() {
		t.Fatalf("report = %+v", rep)
	}
}

func TestVerifyDoesNotPopulateIndex(t *testing.T) {
	path := writeLog(t, "abc", "123")
	if _, err := File(path); err != nil {
		t.Fatal(err)
	}
	st, err := logfile.OpenOrCreate(path)
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	if _, ok, _ := st.Get([]byte("abc")); ok {
		t.Fatal("reopened store should start with an empty index")
	}
}
