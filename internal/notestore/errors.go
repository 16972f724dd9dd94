package notestore

import "errors"

var (
	// ErrNoteNotFound reports that no note exists for a requested id.
	ErrNoteNotFound = errors.New("note not found")
	// ErrTitleNotFound reports that title resolution matched nothing.
	ErrTitleNotFound = errors.New("no note found with title")
	// ErrTitleAmbiguous reports that title resolution matched more than
	// one note.
	ErrTitleAmbiguous = errors.New("multiple notes found with title")
	// ErrPasswordProtected reports a detail/body request for a protected
	// note. The body is refused, never decoded.
	ErrPasswordProtected = errors.New("note is password protected")
	// ErrUnsupportedSchema reports a database whose entity key table is
	// missing one of the record types this reader depends on.
	ErrUnsupportedSchema = errors.New("unsupported notes database schema")
)
