package store_test

import (
	"bytes"
	"path/filepath"
	"testing"

	"kvlog/internal/store"
	boltstore "kvlog/internal/store/bolt"
	"kvlog/internal/store/logfile"
	pebblestore "kvlog/internal/store/pebble"
)

// All engines must agree on every observable behaviour.
func engines(t *testing.T) map[string]store.Store {
	t.Helper()
	dir := t.TempDir()
	lf, err := logfile.CreateExclusive(filepath.Join(dir, "kv.log"))
	if err != nil {
		t.Fatal(err)
	}
	bs, err := boltstore.CreateExclusive(filepath.Join(dir, "kv.db"))
	if err != nil {
		t.Fatal(err)
	}
	ps, err := pebblestore.CreateExclusive(filepath.Join(dir, "kv.pebble"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		_ = lf.Close()
		_ = bs.Close()
		_ = ps.Close()
	})
	return map[string]store.Store{"logfile": lf, "bolt": bs, "pebble": ps}
}

func TestEnginesAgree(t *testing.T) {
	type op struct {
		kind       string
		key, value string
	}
	ops := []op{
		{"insert", "abc", "123"},
		{"insert", "def", "456"},
		{"insert", "ghi", "789"},
		{"update", "abc", "789"},
		{"delete", "ghi", ""},
		{"insert", "nul", "\x00\x00"},
	}
	lookups := []string{"abc", "def", "ghi", "nul", "missing"}

	for name, st := range engines(t) {
		for _, o := range ops {
			var err error
			switch o.kind {
			case "insert":
				err = st.Insert([]byte(o.key), []byte(o.value))
			case "update":
				err = st.Update([]byte(o.key), []byte(o.value))
			case "delete":
				err = st.Delete([]byte(o.key))
			}
			if err != nil {
				t.Fatalf("%s: %s %q: %v", name, o.kind, o.key, err)
			}
		}

		want := map[string]string{"abc": "789", "def": "456", "ghi": "", "nul": "\x00\x00"}
		for _, k := range lookups {
			got, ok, err := st.Get([]byte(k))
			if err != nil {
				t.Fatalf("%s: Get(%q): %v", name, k, err)
			}
			w, present := want[k]
			if ok != present {
				t.Fatalf("%s: Get(%q) ok = %v, want %v", name, k, ok, present)
			}
			if ok && !bytes.Equal(got, []byte(w)) {
				t.Fatalf("%s: Get(%q) = %q, want %q", name, k, got, w)
			}
		}

		if stats, ok := st.(store.Stats); !ok {
			t.Fatalf("%s: engine should implement Stats", name)
		} else if stats.Len() != 4 {
			t.Fatalf("%s: Len() = %d, want 4", name, stats.Len())
		}
	}
}
