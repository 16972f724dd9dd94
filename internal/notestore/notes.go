package notestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"notedb/internal/notebody"
)

const noteDataTable = "ZICNOTEDATA"

// noteColumns is the positional select list every note query uses. Absent
// columns are substituted with NULL by the schema catalog, so scanning is
// identical across schema versions.
var noteColumns = []string{
	"ZTITLE1",
	"ZFOLDER",
	"ZCREATIONDATE",
	"ZCREATIONDATE2",
	"ZCREATIONDATE3",
	"ZMODIFICATIONDATE1",
	"ZACCOUNT7",
	"ZISSHAREDVIAICLOUD",
	"ZISPASSWORDPROTECTED",
	"ZHASCHECKLIST",
	"ZHASCHECKLISTINPROGRESS",
}

// NoteFilter selects which notes a listing returns. A zero value lists all
// notes outside the trash. ID, when non-zero, restricts to a single record.
// Folder may be scoped by Account; an unknown account or folder name yields
// zero rows, never all rows.
type NoteFilter struct {
	ID             int64
	Limit          int
	Account        string
	Folder         string
	IncludeTrashed bool
}

// ListNotes runs one parameterized query over the records table and returns
// the matching notes, newest modification first.
func (s *Store) ListNotes(ctx context.Context, f NoteFilter) ([]Note, error) {
	query, args, ok := s.buildNoteQuery(f)
	if !ok {
		return nil, nil
	}
	rows, err := s.queryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	defer rows.Close()

	var notes []Note
	for rows.Next() {
		note, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		notes = append(notes, note)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	return notes, nil
}

// buildNoteQuery is a pure function of the filter and the probed schema.
// The third return is false when a filter resolved to a provably empty set,
// in which case no query needs to run.
func (s *Store) buildNoteQuery(f NoteFilter) (string, []any, bool) {
	conds := []string{"Z_ENT = ?"}
	args := []any{s.cat.entity(entityNote)}

	// Rows without a title are other record kinds sharing the table.
	conds = append(conds, s.cat.expr("ZTITLE1")+" IS NOT NULL")

	if f.ID != 0 {
		conds = append(conds, "Z_PK = ?")
		args = append(args, f.ID)
	}

	if f.Account != "" {
		accountIDs := s.accountIDsByName(f.Account)
		if len(accountIDs) == 0 {
			return "", nil, false
		}
		if s.cat.hasColumn("ZACCOUNT7") {
			clause, clauseArgs := inClause("ZACCOUNT7", accountIDs)
			conds = append(conds, clause)
			args = append(args, clauseArgs...)
		} else {
			// Older schemas have no account column on notes; go
			// through the folders those accounts own instead.
			folderIDs := s.foldersOwnedBy(accountIDs)
			if len(folderIDs) == 0 || !s.cat.hasColumn("ZFOLDER") {
				return "", nil, false
			}
			clause, clauseArgs := inClause("ZFOLDER", folderIDs)
			conds = append(conds, clause)
			args = append(args, clauseArgs...)
		}
	}

	if f.Folder != "" {
		folderIDs := s.folderIDsByName(f.Folder, f.Account)
		if len(folderIDs) == 0 || !s.cat.hasColumn("ZFOLDER") {
			return "", nil, false
		}
		clause, clauseArgs := inClause("ZFOLDER", folderIDs)
		conds = append(conds, clause)
		args = append(args, clauseArgs...)
	} else if !f.IncludeTrashed && len(s.trashFolders) > 0 && s.cat.hasColumn("ZFOLDER") {
		clause, clauseArgs := inClause("ZFOLDER", s.trashFolders)
		conds = append(conds, "(ZFOLDER IS NULL OR NOT "+clause+")")
		args = append(args, clauseArgs...)
	}

	query := fmt.Sprintf("SELECT Z_PK, %s FROM %s WHERE %s ORDER BY %s DESC",
		s.cat.selectList(noteColumns...), recordsTable,
		strings.Join(conds, " AND "), s.cat.expr("ZMODIFICATIONDATE1"))
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	return query, args, true
}

func inClause(column string, ids map[int64]struct{}) (string, []any) {
	sorted := make([]int64, 0, len(ids))
	for id := range ids {
		sorted = append(sorted, id)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	args := make([]any, len(sorted))
	marks := make([]string, len(sorted))
	for i, id := range sorted {
		args[i] = id
		marks[i] = "?"
	}
	return column + " IN (" + strings.Join(marks, ", ") + ")", args
}

func scanNote(rows *sql.Rows) (Note, error) {
	var (
		id               int64
		title            sql.NullString
		folder           sql.NullInt64
		created1         sql.NullFloat64
		created2         sql.NullFloat64
		created3         sql.NullFloat64
		modified         sql.NullFloat64
		account          sql.NullInt64
		shared           sql.NullInt64
		passwordProt     sql.NullInt64
		checklist        sql.NullInt64
		checklistOngoing sql.NullInt64
	)
	if err := rows.Scan(&id, &title, &folder, &created1, &created2, &created3,
		&modified, &account, &shared, &passwordProt, &checklist, &checklistOngoing); err != nil {
		return Note{}, err
	}
	note := Note{
		ID:                id,
		Title:             title.String,
		FolderID:          folder.Int64,
		AccountID:         account.Int64,
		Created:           creationTime(created1.Float64, created2.Float64, created3.Float64),
		Modified:          timeFromCoreData(modified.Float64),
		PasswordProtected: passwordProt.Int64 != 0,
		// Two checklist flags exist in the source schema with no
		// documented difference; the note counts as a checklist when
		// either is set.
		Checklist: checklist.Int64 != 0 || checklistOngoing.Int64 != 0,
	}
	if shared.Valid {
		v := shared.Int64 != 0
		note.Shared = &v
	}
	return note, nil
}

// SearchNotes applies the same filters as ListNotes and then matches the
// query case-insensitively against each title, decoding the body only when
// the title misses. Accumulation stops at the filter limit.
func (s *Store) SearchNotes(ctx context.Context, query string, f NoteFilter) ([]Note, error) {
	listFilter := f
	listFilter.Limit = 0
	notes, err := s.ListNotes(ctx, listFilter)
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(query)
	var matched []Note
	for _, note := range notes {
		if f.Limit > 0 && len(matched) >= f.Limit {
			break
		}
		if strings.Contains(strings.ToLower(note.Title), needle) {
			matched = append(matched, note)
			continue
		}
		if note.PasswordProtected {
			continue
		}
		body, err := s.noteBody(ctx, note.ID)
		if err != nil {
			return nil, err
		}
		if strings.Contains(strings.ToLower(body), needle) {
			matched = append(matched, note)
		}
	}
	return matched, nil
}

// noteBody reads and decodes a note's body blob. Decode failures degrade to
// an empty body: the envelope format is reverse engineered, and a note that
// fails to decode must not abort an otherwise successful listing.
func (s *Store) noteBody(ctx context.Context, noteID int64) (string, error) {
	var data []byte
	err := s.queryRowContext(ctx,
		fmt.Sprintf("SELECT ZDATA FROM %s WHERE ZNOTE = ?", noteDataTable), noteID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read note body: %w", err)
	}
	text, err := notebody.Decode(data)
	if err != nil {
		slog.Debug("note body decode failed", "note", noteID, "err", err)
		return "", nil
	}
	return text, nil
}
