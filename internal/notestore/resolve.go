package notestore

import (
	"context"
	"fmt"
	"strings"
)

// ResolveNoteIDByTitle resolves an exact title, optionally scoped by account
// and folder, to a single note id. The trash is searched automatically when
// the folder scope is the trash folder's own name. Zero matches yield
// ErrTitleNotFound; more than one yields ErrTitleAmbiguous, with a hint to
// narrow the scope when none was given.
func (s *Store) ResolveNoteIDByTitle(ctx context.Context, title, account, folder string) (int64, error) {
	includeTrashed := folder != "" && strings.EqualFold(folder, s.trashName)
	notes, err := s.ListNotes(ctx, NoteFilter{
		Account:        account,
		Folder:         folder,
		IncludeTrashed: includeTrashed,
	})
	if err != nil {
		return 0, err
	}

	var matches []Note
	for _, note := range notes {
		if note.Title == title {
			matches = append(matches, note)
		}
	}
	switch len(matches) {
	case 0:
		return 0, fmt.Errorf("%w: %q", ErrTitleNotFound, title)
	case 1:
		return matches[0].ID, nil
	default:
		if account == "" && folder == "" {
			return 0, fmt.Errorf("%w: %q (%d matches); narrow by account or folder, or use the note id",
				ErrTitleAmbiguous, title, len(matches))
		}
		return 0, fmt.Errorf("%w: %q (%d matches)", ErrTitleAmbiguous, title, len(matches))
	}
}

// CoreDataID returns the opaque composite reference for a note, in the form
// x-coredata://<store-uuid>/ICNote/p<pk>. It is consumed by out-of-process
// automation to address the note in the live application. Empty when the
// store metadata carries no UUID.
func (s *Store) CoreDataID(ctx context.Context, id int64) (string, error) {
	notes, err := s.ListNotes(ctx, NoteFilter{ID: id, IncludeTrashed: true})
	if err != nil {
		return "", err
	}
	if len(notes) == 0 {
		return "", fmt.Errorf("%w: id %d", ErrNoteNotFound, id)
	}
	if s.storeUUID == "" {
		return "", nil
	}
	return fmt.Sprintf("x-coredata://%s/%s/p%d", s.storeUUID, entityNote, id), nil
}
