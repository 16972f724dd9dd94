// Package notestore is a read-only view over a snapshot of the Notes
// application database. Accounts and folders are loaded eagerly and indexed
// in memory when the store opens; notes are queried on demand with filters
// that tolerate the column drift between application versions.
package notestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"notedb/internal/container"
)

// Folder type tags in the records table. One value marks the trash, one the
// synthetic system folders that never show up in folder listings.
const (
	folderTypeTrash  = 1
	folderTypeSystem = 3
)

const defaultTrashName = "Recently Deleted"

// Account is a Notes account, loaded once per store lifetime.
type Account struct {
	ID         int64
	Name       string
	Identifier string
}

// FolderSummary is a folder annotated with its owning account's name and its
// precomputed root-to-leaf path.
type FolderSummary struct {
	ID      int64
	Name    string
	Account string
	Path    string
}

// Note is one row of the notes listing. FolderID and AccountID are 0 when
// the database has no value for them; Shared is nil when the column does not
// exist in this schema version.
type Note struct {
	ID                int64
	Title             string
	FolderID          int64
	AccountID         int64
	Created           time.Time
	Modified          time.Time
	Shared            *bool
	PasswordProtected bool
	Checklist         bool
}

type folderRecord struct {
	id         int64
	name       string
	parentID   int64
	accountID  int64
	folderType int64
	shared     bool
}

// Options configures Open. Path overrides the default database location and
// may point at the container directory or the database file itself. Prompt,
// when set, is consulted only if the default location is unreachable and no
// override was given; it returns a user-chosen path, or false if the user
// declined.
type Options struct {
	Path   string
	Prompt func() (string, bool)
}

// Store owns the snapshot, the read connection, and the in-memory
// account/folder indexes. It is built for single-threaded use within one
// process invocation.
type Store struct {
	snap *container.Snapshot
	db   *sql.DB
	cat  *schemaCatalog

	accounts     []Account
	accountNames map[int64]string
	folders      map[int64]*folderRecord
	folderPaths  map[int64]string
	trashFolders map[int64]struct{}
	trashName    string
	storeUUID    string
}

// Open snapshots the database and loads the account and folder indexes.
// The snapshot is released on every failure path; on success the caller owns
// it and must call Close.
func Open(ctx context.Context, opts Options) (*Store, error) {
	snap, err := container.Open(opts.Path)
	if err != nil {
		if errors.Is(err, container.ErrNotFound) && opts.Prompt != nil {
			chosen, ok := opts.Prompt()
			if !ok {
				return nil, err
			}
			snap, err = container.Open(chosen)
		}
		if err != nil {
			return nil, err
		}
	}
	s := &Store{snap: snap}
	if err := s.init(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init(ctx context.Context) error {
	db, err := sql.Open("sqlite", "file:"+s.snap.DBPath+"?mode=ro")
	if err != nil {
		return fmt.Errorf("open snapshot database: %w", err)
	}
	s.db = db

	s.cat, err = loadSchemaCatalog(ctx, db)
	if err != nil {
		return err
	}
	if err := s.loadAccounts(ctx); err != nil {
		return err
	}
	if err := s.loadFolders(ctx); err != nil {
		return err
	}
	s.buildFolderPaths()
	s.loadStoreUUID(ctx)
	slog.Debug("store opened", "accounts", len(s.accounts), "folders", len(s.folders))
	return nil
}

// Close releases the read connection and removes the snapshot directory.
// Safe to call after a partial open.
func (s *Store) Close() error {
	var errs []error
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
		s.db = nil
	}
	if err := s.snap.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (s *Store) queryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	slog.Debug("sql query", "query", query, "args", args)
	return s.db.QueryContext(ctx, query, args...)
}

func (s *Store) queryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	slog.Debug("sql query row", "query", query, "args", args)
	return s.db.QueryRowContext(ctx, query, args...)
}

func (s *Store) loadAccounts(ctx context.Context) error {
	query := fmt.Sprintf("SELECT Z_PK, %s FROM %s WHERE Z_ENT = ?",
		s.cat.selectList("ZNAME", "ZIDENTIFIER"), recordsTable)
	rows, err := s.queryContext(ctx, query, s.cat.entity(entityAccount))
	if err != nil {
		return fmt.Errorf("load accounts: %w", err)
	}
	defer rows.Close()

	s.accountNames = make(map[int64]string)
	for rows.Next() {
		var (
			id    int64
			name  sql.NullString
			ident sql.NullString
		)
		if err := rows.Scan(&id, &name, &ident); err != nil {
			return fmt.Errorf("scan account: %w", err)
		}
		acct := Account{ID: id, Name: name.String, Identifier: ident.String}
		s.accounts = append(s.accounts, acct)
		s.accountNames[id] = acct.Name
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("load accounts: %w", err)
	}
	sort.Slice(s.accounts, func(i, j int) bool { return s.accounts[i].Name < s.accounts[j].Name })
	return nil
}

func (s *Store) loadFolders(ctx context.Context) error {
	query := fmt.Sprintf("SELECT Z_PK, %s FROM %s WHERE Z_ENT = ?",
		s.cat.selectList("ZTITLE2", "ZPARENT", "ZOWNER", "ZFOLDERTYPE", "ZISSHAREDVIAICLOUD"), recordsTable)
	rows, err := s.queryContext(ctx, query, s.cat.entity(entityFolder))
	if err != nil {
		return fmt.Errorf("load folders: %w", err)
	}
	defer rows.Close()

	s.folders = make(map[int64]*folderRecord)
	s.trashFolders = make(map[int64]struct{})
	s.trashName = defaultTrashName
	for rows.Next() {
		var (
			id         int64
			name       sql.NullString
			parent     sql.NullInt64
			owner      sql.NullInt64
			folderType sql.NullInt64
			shared     sql.NullInt64
		)
		if err := rows.Scan(&id, &name, &parent, &owner, &folderType, &shared); err != nil {
			return fmt.Errorf("scan folder: %w", err)
		}
		rec := &folderRecord{
			id:         id,
			name:       name.String,
			parentID:   parent.Int64,
			accountID:  owner.Int64,
			folderType: folderType.Int64,
			shared:     shared.Int64 != 0,
		}
		s.folders[id] = rec
		if rec.folderType == folderTypeTrash {
			s.trashFolders[id] = struct{}{}
			if rec.name != "" {
				s.trashName = rec.name
			}
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("load folders: %w", err)
	}
	return nil
}

func (s *Store) buildFolderPaths() {
	s.folderPaths = make(map[int64]string, len(s.folders))
	for id := range s.folders {
		s.folderPath(id)
	}
}

// folderPath walks parent links root-ward, memoizing per id. A revisited id
// terminates the walk so a malformed parent cycle cannot loop forever.
func (s *Store) folderPath(id int64) string {
	if p, ok := s.folderPaths[id]; ok {
		return p
	}
	rec, ok := s.folders[id]
	if !ok {
		return ""
	}
	seen := map[int64]bool{id: true}
	path := rec.name
	for cur := rec.parentID; cur != 0 && !seen[cur]; {
		seen[cur] = true
		if p, ok := s.folderPaths[cur]; ok {
			path = p + "/" + path
			break
		}
		parent, ok := s.folders[cur]
		if !ok {
			break
		}
		path = parent.name + "/" + path
		cur = parent.parentID
	}
	s.folderPaths[id] = path
	return path
}

func (s *Store) loadStoreUUID(ctx context.Context) {
	var id sql.NullString
	err := s.queryRowContext(ctx, "SELECT Z_UUID FROM Z_METADATA LIMIT 1").Scan(&id)
	if err != nil {
		slog.Debug("store uuid unavailable", "err", err)
		return
	}
	s.storeUUID = id.String
}

// ListAccounts returns all loaded accounts, sorted by name.
func (s *Store) ListAccounts() []Account {
	out := make([]Account, len(s.accounts))
	copy(out, s.accounts)
	return out
}

// ListFolders returns folders annotated with account name and path, sorted
// by name. System folders are excluded. A non-empty accountFilter restricts
// the listing to folders owned by accounts with that name.
func (s *Store) ListFolders(accountFilter string) []FolderSummary {
	var accountIDs map[int64]struct{}
	if accountFilter != "" {
		accountIDs = s.accountIDsByName(accountFilter)
	}
	out := make([]FolderSummary, 0, len(s.folders))
	for id, rec := range s.folders {
		if rec.folderType == folderTypeSystem {
			continue
		}
		if accountIDs != nil {
			if _, ok := accountIDs[rec.accountID]; !ok {
				continue
			}
		}
		out = append(out, FolderSummary{
			ID:      id,
			Name:    rec.name,
			Account: s.accountNames[rec.accountID],
			Path:    s.folderPaths[id],
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *Store) accountIDsByName(name string) map[int64]struct{} {
	ids := make(map[int64]struct{})
	for _, acct := range s.accounts {
		if strings.EqualFold(acct.Name, name) {
			ids[acct.ID] = struct{}{}
		}
	}
	return ids
}

// folderIDsByName resolves a folder name, optionally scoped to one account,
// to the set of matching folder ids.
func (s *Store) folderIDsByName(name, accountScope string) map[int64]struct{} {
	var accountIDs map[int64]struct{}
	if accountScope != "" {
		accountIDs = s.accountIDsByName(accountScope)
	}
	ids := make(map[int64]struct{})
	for id, rec := range s.folders {
		if !strings.EqualFold(rec.name, name) {
			continue
		}
		if accountIDs != nil {
			if _, ok := accountIDs[rec.accountID]; !ok {
				continue
			}
		}
		ids[id] = struct{}{}
	}
	return ids
}

// foldersOwnedBy returns the ids of folders whose owner is one of the given
// accounts. Used as the account-filter fallback when the notes table has no
// account column in this schema version.
func (s *Store) foldersOwnedBy(accountIDs map[int64]struct{}) map[int64]struct{} {
	ids := make(map[int64]struct{})
	for id, rec := range s.folders {
		if _, ok := accountIDs[rec.accountID]; ok {
			ids[id] = struct{}{}
		}
	}
	return ids
}

// TrashFolderName returns the display name of the trash folder.
func (s *Store) TrashFolderName() string {
	return s.trashName
}
