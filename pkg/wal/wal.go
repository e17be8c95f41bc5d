package wal

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

// maxLineSize bounds a single WAL line. Entries are small; anything larger
// is corruption and is skipped on read.
const maxLineSize = 1 << 20

// WAL is an append-only, sequence-numbered log of state-changing events.
// One JSON entry per line. Every fsyncEveryN-th append forces the file to
// disk; at 1 every accepted operation is durable before it is acknowledged,
// higher values bound loss on power failure to at most N-1 entries.
type WAL struct {
	mu          sync.Mutex
	path        string
	file        *os.File
	seq         uint64
	fsyncEveryN int
	sinceSync   int

	// torn is set when the file may end mid-line: after a failed write, or
	// when a crash left a partial last line. The next append then starts on
	// a fresh line so the fragment cannot swallow it; readers skip the
	// fragment as malformed.
	torn bool

	log *zap.Logger
}

// Open creates the log directory if needed, opens the file for appending
// and recovers the highest sequence number already on disk.
func Open(path string, fsyncEveryN int, logger *zap.Logger) (*WAL, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if fsyncEveryN < 1 {
		fsyncEveryN = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create wal dir: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open wal: %w", err)
	}

	w := &WAL{
		path:        path,
		file:        f,
		fsyncEveryN: fsyncEveryN,
		log:         logger,
	}

	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat wal: %w", err)
	}
	if size := fi.Size(); size > 0 {
		tail := make([]byte, 1)
		if _, err := f.ReadAt(tail, size-1); err != nil {
			f.Close()
			return nil, fmt.Errorf("read wal tail: %w", err)
		}
		w.torn = tail[0] != '\n'
	}

	entries, err := w.scan()
	if err != nil {
		f.Close()
		return nil, err
	}
	for _, e := range entries {
		if e.Seq > w.seq {
			w.seq = e.Seq
		}
	}

	return w, nil
}

// Append assigns the next sequence number, serializes the entry as one line
// and writes it. Errors propagate to the caller: an operation must never be
// acknowledged before its WAL entry is on disk.
func (w *WAL) Append(t EntryType, payload interface{}) (uint64, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("marshal wal payload: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	entry := Entry{
		Seq:     w.seq + 1,
		TS:      time.Now().UnixMilli(),
		Type:    t,
		Payload: raw,
	}
	line, err := json.Marshal(entry)
	if err != nil {
		return 0, fmt.Errorf("marshal wal entry: %w", err)
	}
	line = append(line, '\n')
	if w.torn {
		line = append([]byte{'\n'}, line...)
	}

	if _, err := w.file.Write(line); err != nil {
		// A partial line may be on disk now; terminate it before the next
		// entry so that entry stays recoverable.
		w.torn = true
		return 0, fmt.Errorf("append wal entry: %w", err)
	}
	w.torn = false
	w.seq = entry.Seq

	w.sinceSync++
	if w.sinceSync >= w.fsyncEveryN {
		if err := w.file.Sync(); err != nil {
			return 0, fmt.Errorf("fsync wal: %w", err)
		}
		w.sinceSync = 0
	}

	return entry.Seq, nil
}

// Sync forces an immediate fsync regardless of the counter.
func (w *WAL) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.sinceSync = 0
	return w.file.Sync()
}

// ReadAll parses every well-formed line back into an Entry. Malformed
// lines — typically a half-written tail from a crash — are logged and
// skipped; they must not block recovery of everything before them.
func (w *WAL) ReadAll() ([]Entry, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	entries, err := w.scan()
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if e.Seq > w.seq {
			w.seq = e.Seq
		}
	}
	return entries, nil
}

// ReadSince returns entries with sequence strictly greater than seq.
func (w *WAL) ReadSince(seq uint64) ([]Entry, error) {
	all, err := w.ReadAll()
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, e := range all {
		if e.Seq > seq {
			out = append(out, e)
		}
	}
	return out, nil
}

// CurrentSequence is the highest sequence number issued so far.
func (w *WAL) CurrentSequence() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.seq
}

// Close flushes and releases the file handle.
func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.file.Sync(); err != nil {
		w.file.Close()
		return err
	}
	return w.file.Close()
}

// Truncate destructively resets the log. Test harness use only.
func (w *WAL) Truncate() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.file.Truncate(0); err != nil {
		return err
	}
	if _, err := w.file.Seek(0, 0); err != nil {
		return err
	}
	w.seq = 0
	w.sinceSync = 0
	w.torn = false
	return nil
}

func (w *WAL) scan() ([]Entry, error) {
	f, err := os.Open(w.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open wal for read: %w", err)
	}
	defer f.Close()

	var entries []Entry
	r := bufio.NewReader(f)
	lineNo := 0
	for {
		raw, rerr := r.ReadBytes('\n')
		line := bytes.TrimSuffix(raw, []byte{'\n'})
		if len(line) > 0 {
			lineNo++
			if len(line) > maxLineSize {
				w.log.Warn("skipping oversized wal line",
					zap.Int("line", lineNo),
					zap.Int("bytes", len(line)))
			} else {
				var e Entry
				if err := json.Unmarshal(line, &e); err != nil {
					w.log.Warn("skipping malformed wal line",
						zap.Int("line", lineNo),
						zap.Error(err))
				} else {
					entries = append(entries, e)
				}
			}
		}
		if rerr == io.EOF {
			return entries, nil
		}
		if rerr != nil {
			return nil, fmt.Errorf("scan wal: %w", rerr)
		}
	}
}
