package backup

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

const manifestFilename = "manifest.json"

// Manifest is the durable index of all snapshots in an archive directory,
// keyed by filename. It is append-only during backup creation and
// compacted only by retention or explicit purges.
type Manifest struct {
	Entries map[string]Snapshot `json:"snapshots"`
}

// LoadManifest reads the manifest from dir. A missing file yields an empty
// manifest; a malformed one is a data error and aborts the caller.
func LoadManifest(dir string) (*Manifest, error) {
	m := &Manifest{Entries: make(map[string]Snapshot)}

	data, err := os.ReadFile(filepath.Join(dir, manifestFilename))
	if errors.Is(err, os.ErrNotExist) {
		return m, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading manifest in %s: %w", dir, err)
	}
	if err := json.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("parsing manifest in %s: %w", dir, err)
	}
	if m.Entries == nil {
		m.Entries = make(map[string]Snapshot)
	}
	return m, nil
}

// Save writes the manifest atomically: full serialise to a temp file in the
// same directory, then rename over the old one. A crash mid-write never
// leaves a truncated manifest behind.
func (m *Manifest) Save(dir string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}

	tmp, err := os.CreateTemp(dir, manifestFilename+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp manifest: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing temp manifest: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp manifest: %w", err)
	}
	if err := os.Rename(tmpPath, filepath.Join(dir, manifestFilename)); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replacing manifest: %w", err)
	}
	return nil
}

// Add records a snapshot, replacing any entry with the same filename.
func (m *Manifest) Add(s Snapshot) {
	m.Entries[s.Filename] = s
}

// Remove drops the entry for filename, if present.
func (m *Manifest) Remove(filename string) {
	delete(m.Entries, filename)
}

// Count returns the number of indexed snapshots.
func (m *Manifest) Count() int {
	return len(m.Entries)
}

// TotalBytes sums the sizes of all indexed snapshots.
func (m *Manifest) TotalBytes() int64 {
	var total int64
	for _, s := range m.Entries {
		total += s.SizeBytes
	}
	return total
}

// OldestFirst returns the snapshots sorted by creation time ascending,
// with filename as a deterministic tie-break.
func (m *Manifest) OldestFirst() []Snapshot {
	out := make([]Snapshot, 0, len(m.Entries))
	for _, s := range m.Entries {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].Filename < out[j].Filename
	})
	return out
}

// NewestFirst returns the snapshots sorted by creation time descending,
// for listings.
func (m *Manifest) NewestFirst() []Snapshot {
	out := m.OldestFirst()
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}
