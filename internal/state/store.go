package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrCorrupt marks a persisted document that exists but does not parse.
// Corruption is reported, never treated as absent state, so a broken file
// cannot masquerade as a clean first run.
var ErrCorrupt = errors.New("corrupt state document")

const (
	connectionFile = "connection.json"
	snapshotFile   = "snapshot.json"
	emulationFile  = "emulation.json"
)

// Store is the per-user home of the three documents that outlive a single
// invocation: how to reach the browser, the last snapshot's reference map,
// and the active emulation overrides. Each document is independent and
// purely optional-field JSON; an older writer's file stays valid input for
// a newer reader. There is no locking across invocations; last write wins.
type Store struct {
	dir string
}

// DefaultDir returns ~/.tabctl.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".tabctl"), nil
}

// Open returns a Store rooted at dir, creating it with owner-only
// permissions if needed.
func Open(dir string) (*Store, error) {
	if dir == "" {
		return nil, errors.New("state dir is required")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("state dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// OpenDefault opens the store at DefaultDir.
func OpenDefault() (*Store, error) {
	dir, err := DefaultDir()
	if err != nil {
		return nil, err
	}
	return Open(dir)
}

// Dir returns the store's root directory.
func (s *Store) Dir() string { return s.dir }

// LoadConnection reads the persisted connection record. A missing file is
// (nil, nil).
func (s *Store) LoadConnection() (*Connection, error) {
	var c Connection
	ok, err := s.load(connectionFile, &c)
	if err != nil || !ok {
		return nil, err
	}
	return &c, nil
}

// SaveConnection writes the connection record.
func (s *Store) SaveConnection(c *Connection) error {
	if c == nil {
		return errors.New("connection record is required")
	}
	return s.save(connectionFile, c)
}

// DeleteConnection removes the connection record. Missing is not an error.
func (s *Store) DeleteConnection() error {
	return s.remove(connectionFile)
}

// LoadSnapshot reads the persisted snapshot reference map.
func (s *Store) LoadSnapshot() (*Snapshot, error) {
	var sn Snapshot
	ok, err := s.load(snapshotFile, &sn)
	if err != nil || !ok {
		return nil, err
	}
	return &sn, nil
}

// SaveSnapshot writes the snapshot reference map.
func (s *Store) SaveSnapshot(sn *Snapshot) error {
	if sn == nil {
		return errors.New("snapshot record is required")
	}
	return s.save(snapshotFile, sn)
}

// LoadEmulation reads the persisted emulation overrides.
func (s *Store) LoadEmulation() (*Emulation, error) {
	var em Emulation
	ok, err := s.load(emulationFile, &em)
	if err != nil || !ok {
		return nil, err
	}
	return &em, nil
}

// SaveEmulation writes the emulation overrides.
func (s *Store) SaveEmulation(em *Emulation) error {
	if em == nil {
		return errors.New("emulation record is required")
	}
	return s.save(emulationFile, em)
}

// DeleteEmulation clears all emulation overrides.
func (s *Store) DeleteEmulation() error {
	return s.remove(emulationFile)
}

func (s *Store) load(name string, v any) (bool, error) {
	path := filepath.Join(s.dir, name)
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return false, fmt.Errorf("%w: %s: %v", ErrCorrupt, path, err)
	}
	return true, nil
}

// save writes to a temp file then renames it into place so another
// invocation never observes a half-written document.
func (s *Store) save(name string, v any) error {
	path := filepath.Join(s.dir, name)
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')

	tmp, err := os.CreateTemp(s.dir, name+".tmp-*")
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func (s *Store) remove(name string) error {
	err := os.Remove(filepath.Join(s.dir, name))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
