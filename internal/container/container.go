// Package container locates the Notes application database and produces an
// isolated read-only snapshot of it. The live database may be open in the
// application with WAL journaling active, so the reader never touches it in
// place: the database file plus its -wal and -shm side files are copied into
// a private temp directory that is removed wholesale when the snapshot is
// released.
package container

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/google/uuid"
)

// DatabaseFileName is the database file inside the Notes group container.
const DatabaseFileName = "NoteStore.sqlite"

const groupContainerRelPath = "Library/Group Containers/group.com.apple.notes"

var sideFileSuffixes = []string{"-wal", "-shm"}

var (
	// ErrNotFound: the database is missing at the well-known default
	// location. The caller may fall back to prompting for a path.
	ErrNotFound = errors.New("notes database not found at default location")
	// ErrNotFoundAt: the database is missing at an explicitly supplied
	// path. Terminal, no prompting.
	ErrNotFoundAt = errors.New("notes database not found at given path")
	// ErrCopyFailed: the database exists but snapshotting it failed,
	// usually a permissions problem rather than a missing file.
	ErrCopyFailed = errors.New("cannot copy notes database")
)

// Snapshot is a private point-in-time copy of the database. Close removes
// the backing temp directory; it must run on every exit path once Open has
// succeeded.
type Snapshot struct {
	dir string
	// DBPath is the copied database file inside the snapshot directory.
	DBPath string
	// Origin is the live database file the snapshot was taken from.
	Origin string
}

// DefaultDatabasePath returns the per-OS well-known database location.
// Only darwin has one; everywhere else an explicit path is required.
func DefaultDatabasePath() (string, error) {
	if runtime.GOOS != "darwin" {
		return "", fmt.Errorf("no default notes database location on %s: %w", runtime.GOOS, ErrNotFound)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", ErrNotFound)
	}
	return filepath.Join(home, filepath.FromSlash(groupContainerRelPath), DatabaseFileName), nil
}

// resolveDBPath maps an optional override to the database file path. The
// override may point at the container directory or at the file itself.
func resolveDBPath(override string) (dbPath string, explicit bool, err error) {
	if strings.TrimSpace(override) == "" {
		dbPath, err = DefaultDatabasePath()
		return dbPath, false, err
	}
	if strings.EqualFold(filepath.Ext(override), ".sqlite") {
		return filepath.Clean(override), true, nil
	}
	return filepath.Join(filepath.Clean(override), DatabaseFileName), true, nil
}

// Open resolves the database location and snapshots it. An empty override
// means the default location; a missing database there yields ErrNotFound so
// the caller can consult its access prompt, while a missing database at an
// explicit override yields ErrNotFoundAt.
func Open(override string) (*Snapshot, error) {
	dbPath, explicit, err := resolveDBPath(override)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(dbPath); err != nil {
		if explicit {
			return nil, fmt.Errorf("%w: %s", ErrNotFoundAt, dbPath)
		}
		return nil, fmt.Errorf("%w: %s", ErrNotFound, dbPath)
	}

	dir, err := os.MkdirTemp("", "notedb-snapshot-"+uuid.NewString())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCopyFailed, err)
	}
	snap := &Snapshot{
		dir:    dir,
		DBPath: filepath.Join(dir, DatabaseFileName),
		Origin: dbPath,
	}
	if err := copyFile(dbPath, snap.DBPath); err != nil {
		snap.Close()
		return nil, fmt.Errorf("%w: %v", ErrCopyFailed, err)
	}
	for _, suffix := range sideFileSuffixes {
		src := dbPath + suffix
		if _, err := os.Stat(src); err != nil {
			continue
		}
		if err := copyFile(src, snap.DBPath+suffix); err != nil {
			snap.Close()
			return nil, fmt.Errorf("%w: %v", ErrCopyFailed, err)
		}
	}
	slog.Debug("database snapshot created", "origin", dbPath, "dir", dir)
	return snap, nil
}

// Close removes the snapshot directory and everything in it. Safe to call
// more than once.
func (s *Snapshot) Close() error {
	if s == nil || s.dir == "" {
		return nil
	}
	dir := s.dir
	s.dir = ""
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("remove snapshot dir: %w", err)
	}
	slog.Debug("database snapshot removed", "dir", dir)
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
