// ABOUTME: JSON checkpoint file mapping hostname to last successful payload
// ABOUTME: Full-snapshot flushes use a temp file and rename so a kill mid-write never corrupts the file

package checkpoint

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
)

// File is an in-memory view of the checkpoint backed by a JSON file.
// It is owned by the single coordinating goroutine; methods are not
// safe for concurrent use and do not need to be.
type File struct {
	path    string
	entries map[string]json.RawMessage
	logger  *slog.Logger
}

// Open loads the checkpoint at path, or starts an empty one if the file
// does not exist. A file that exists but cannot be decoded is an error;
// silently discarding a prior run's results would redo hours of work.
func Open(path string) (*File, error) {
	f := &File{
		path:    path,
		entries: make(map[string]json.RawMessage),
		logger:  slog.Default().With("component", "checkpoint"),
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return f, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading checkpoint: %w", err)
	}

	if err := json.Unmarshal(data, &f.entries); err != nil {
		return nil, fmt.Errorf("decoding checkpoint %s: %w", path, err)
	}

	f.logger.Debug("loaded checkpoint", "path", path, "entries", len(f.entries))
	return f, nil
}

// Path returns the backing file path.
func (f *File) Path() string {
	return f.path
}

// Len returns the number of recorded hosts.
func (f *File) Len() int {
	return len(f.entries)
}

// Has reports whether hostname already has a successful payload.
func (f *File) Has(hostname string) bool {
	_, ok := f.entries[hostname]
	return ok
}

// Put records a successful payload for hostname, overwriting any earlier
// one. Failures are never recorded, so an earlier success survives a
// later failed attempt.
func (f *File) Put(hostname string, payload json.RawMessage) {
	f.entries[hostname] = payload
}

// Get returns the recorded payload for hostname, if any.
func (f *File) Get(hostname string) (json.RawMessage, bool) {
	payload, ok := f.entries[hostname]
	return payload, ok
}

// Hostnames returns the recorded hostnames in sorted order.
func (f *File) Hostnames() []string {
	names := make([]string, 0, len(f.entries))
	for h := range f.entries {
		names = append(names, h)
	}
	sort.Strings(names)
	return names
}

// Flush writes the full snapshot to disk. The write goes to a temp file
// in the same directory followed by a rename, so the previous checkpoint
// survives intact if the process dies mid-flush.
func (f *File) Flush() error {
	data, err := json.MarshalIndent(f.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding checkpoint: %w", err)
	}

	dir := filepath.Dir(f.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp checkpoint: %w", err)
	}
	tmpPath := tmp.Name()

	_, werr := tmp.Write(data)
	if werr == nil {
		werr = tmp.Sync()
	}
	if cerr := tmp.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing temp checkpoint: %w", werr)
	}

	if err := os.Chmod(tmpPath, 0644); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("setting checkpoint permissions: %w", err)
	}

	if err := os.Rename(tmpPath, f.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming checkpoint into place: %w", err)
	}

	f.logger.Debug("flushed checkpoint", "path", f.path, "entries", len(f.entries))
	return nil
}
