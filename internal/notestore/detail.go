package notestore

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Attachment is a note attachment. Name falls back through filename,
// identifier, and type UTI before the generic "Attachment". Timestamps and
// Shared are nil when absent.
type Attachment struct {
	ID       int64
	Name     string
	Created  *time.Time
	Modified *time.Time
	URL      string
	Shared   *bool
}

// NoteDetail is a note with its resolved account and folder context, its
// attachments, and the decoded body text.
type NoteDetail struct {
	Note
	AccountName  string
	FolderName   string
	FolderPath   string
	FolderShared bool
	Attachments  []Attachment
	Body         string
}

// NoteDetail fetches one note by id with full context and decoded body.
// Password-protected notes are refused before any body decode is attempted.
func (s *Store) NoteDetail(ctx context.Context, id int64) (*NoteDetail, error) {
	notes, err := s.ListNotes(ctx, NoteFilter{ID: id, IncludeTrashed: true})
	if err != nil {
		return nil, err
	}
	if len(notes) == 0 {
		return nil, fmt.Errorf("%w: id %d", ErrNoteNotFound, id)
	}
	note := notes[0]
	if note.PasswordProtected {
		return nil, fmt.Errorf("%w: id %d", ErrPasswordProtected, id)
	}

	detail := &NoteDetail{
		Note:        note,
		AccountName: s.accountNames[note.AccountID],
	}
	if folder, ok := s.folders[note.FolderID]; ok {
		detail.FolderName = folder.name
		detail.FolderPath = s.folderPaths[note.FolderID]
		detail.FolderShared = folder.shared
		if detail.AccountName == "" {
			// Schemas without an account column on notes still
			// carry the owner on the folder.
			detail.AccountName = s.accountNames[folder.accountID]
		}
	}
	detail.Attachments, err = s.noteAttachments(ctx, id)
	if err != nil {
		return nil, err
	}
	detail.Body, err = s.noteBody(ctx, id)
	if err != nil {
		return nil, err
	}
	return detail, nil
}

func (s *Store) noteAttachments(ctx context.Context, noteID int64) ([]Attachment, error) {
	kind, ok := s.cat.entities[entityAttachment]
	if !ok || !s.cat.hasColumn("ZNOTE") {
		return nil, nil
	}
	query := fmt.Sprintf("SELECT Z_PK, %s FROM %s WHERE Z_ENT = ? AND ZNOTE = ? ORDER BY Z_PK",
		s.cat.selectList("ZFILENAME", "ZIDENTIFIER", "ZTYPEUTI", "ZURLSTRING",
			"ZCREATIONDATE", "ZMODIFICATIONDATE", "ZISSHAREDVIAICLOUD"), recordsTable)
	rows, err := s.queryContext(ctx, query, kind, noteID)
	if err != nil {
		return nil, fmt.Errorf("load attachments: %w", err)
	}
	defer rows.Close()

	var attachments []Attachment
	for rows.Next() {
		var (
			id       int64
			filename sql.NullString
			ident    sql.NullString
			typeUTI  sql.NullString
			url      sql.NullString
			created  sql.NullFloat64
			modified sql.NullFloat64
			shared   sql.NullInt64
		)
		if err := rows.Scan(&id, &filename, &ident, &typeUTI, &url, &created, &modified, &shared); err != nil {
			return nil, fmt.Errorf("scan attachment: %w", err)
		}
		att := Attachment{
			ID:   id,
			Name: attachmentName(filename, ident, typeUTI),
			URL:  url.String,
		}
		if created.Valid {
			t := timeFromCoreData(created.Float64)
			att.Created = &t
		}
		if modified.Valid {
			t := timeFromCoreData(modified.Float64)
			att.Modified = &t
		}
		if shared.Valid {
			v := shared.Int64 != 0
			att.Shared = &v
		}
		attachments = append(attachments, att)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load attachments: %w", err)
	}
	return attachments, nil
}

func attachmentName(filename, identifier, typeUTI sql.NullString) string {
	switch {
	case filename.String != "":
		return filename.String
	case identifier.String != "":
		return identifier.String
	case typeUTI.String != "":
		return typeUTI.String
	default:
		return "Attachment"
	}
}
