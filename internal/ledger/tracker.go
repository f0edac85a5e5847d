package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/afero"
)

// ErrLedgerIO means the ledger could not be loaded or persisted. A run must
// stop on it rather than proceed with an empty or stale ledger.
var ErrLedgerIO = errors.New("ledger io error")

// Record is one identity's failure state. Attempts is always >= 1 while the
// record exists; the record is removed entirely on the first success.
type Record struct {
	Error       string    `json:"error"`
	Attempts    int       `json:"attempts"`
	LastAttempt time.Time `json:"last_attempt"`
}

type Entry struct {
	Key string
	Record
}

// Tracker is the durable failure ledger: a JSON document mapping identity
// keys to Records. All mutation within one run goes through the download
// orchestrator (single writer); two runs sharing one ledger path is
// undefined by convention, not enforced.
type Tracker struct {
	fs      afero.Fs
	path    string
	entries map[string]Record
}

func NewTracker(fs afero.Fs, path string) *Tracker {
	return &Tracker{
		fs:      fs,
		path:    path,
		entries: make(map[string]Record),
	}
}

// Load reads the persisted ledger. A missing file is an empty ledger, not an
// error; an unreadable or corrupt file is fatal.
func (t *Tracker) Load() error {
	raw, err := afero.ReadFile(t.fs, t.path)
	if err != nil {
		if os.IsNotExist(err) {
			t.entries = make(map[string]Record)
			return nil
		}
		return fmt.Errorf("%w: reading %s: %v", ErrLedgerIO, t.path, err)
	}
	entries := make(map[string]Record)
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &entries); err != nil {
			return fmt.Errorf("%w: parsing %s: %v", ErrLedgerIO, t.path, err)
		}
	}
	t.entries = entries
	return nil
}

// RecordFailure upserts a key, bumping the consecutive-failure count.
func (t *Tracker) RecordFailure(key, reason string) {
	prev := t.entries[key]
	t.entries[key] = Record{
		Error:       reason,
		Attempts:    prev.Attempts + 1,
		LastAttempt: time.Now().UTC(),
	}
}

// RecordSuccess removes a key if present; no-op otherwise.
func (t *Tracker) RecordSuccess(key string) {
	delete(t.entries, key)
}

func (t *Tracker) Has(key string) bool {
	_, ok := t.entries[key]
	return ok
}

func (t *Tracker) Attempts(key string) int {
	return t.entries[key].Attempts
}

func (t *Tracker) Len() int {
	return len(t.entries)
}

// Keys returns all tracked identity keys in natural sort order.
func (t *Tracker) Keys() []string {
	keys := make([]string, 0, len(t.entries))
	for key := range t.entries {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func (t *Tracker) Entries() []Entry {
	entries := make([]Entry, 0, len(t.entries))
	for _, key := range t.Keys() {
		entries = append(entries, Entry{Key: key, Record: t.entries[key]})
	}
	return entries
}

// Clear empties the ledger and persists immediately.
func (t *Tracker) Clear() error {
	t.entries = make(map[string]Record)
	return t.Flush()
}

// Flush persists the ledger atomically: the document is written to a
// temporary file in the same directory and renamed over the final path, so
// a reader never observes a partial write.
func (t *Tracker) Flush() error {
	dir := filepath.Dir(t.path)
	if dir != "." && dir != "" {
		if err := t.fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("%w: creating %s: %v", ErrLedgerIO, dir, err)
		}
	}
	payload, err := json.MarshalIndent(t.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encoding ledger: %v", ErrLedgerIO, err)
	}
	tmp, err := afero.TempFile(t.fs, dir, ".ledger-*.json")
	if err != nil {
		return fmt.Errorf("%w: creating temp file: %v", ErrLedgerIO, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		t.fs.Remove(tmpName)
		return fmt.Errorf("%w: writing %s: %v", ErrLedgerIO, tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		t.fs.Remove(tmpName)
		return fmt.Errorf("%w: closing %s: %v", ErrLedgerIO, tmpName, err)
	}
	if err := t.fs.Rename(tmpName, t.path); err != nil {
		t.fs.Remove(tmpName)
		return fmt.Errorf("%w: replacing %s: %v", ErrLedgerIO, t.path, err)
	}
	return nil
}
