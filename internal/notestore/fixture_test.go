package notestore

import (
	"bytes"
	"database/sql"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"google.golang.org/protobuf/encoding/protowire"
	_ "modernc.org/sqlite"
)

// Entity ids the fixtures assign. Arbitrary on purpose: the reader must
// resolve them from the key table, never assume them.
const (
	fxAccountEnt    = 4
	fxFolderEnt     = 7
	fxNoteEnt       = 11
	fxAttachmentEnt = 5
)

const fxStoreUUID = "A1B2C3D4-0000-4000-8000-123456789ABC"

// fullRecordColumns is the records-table column set of a current database.
// Variant fixtures drop columns to model older application versions.
var fullRecordColumns = []string{
	"ZNAME VARCHAR",
	"ZIDENTIFIER VARCHAR",
	"ZTITLE1 VARCHAR",
	"ZTITLE2 VARCHAR",
	"ZPARENT INTEGER",
	"ZOWNER INTEGER",
	"ZFOLDERTYPE INTEGER",
	"ZFOLDER INTEGER",
	"ZACCOUNT7 INTEGER",
	"ZCREATIONDATE FLOAT",
	"ZCREATIONDATE2 FLOAT",
	"ZCREATIONDATE3 FLOAT",
	"ZMODIFICATIONDATE1 FLOAT",
	"ZMODIFICATIONDATE FLOAT",
	"ZISSHAREDVIAICLOUD INTEGER",
	"ZISPASSWORDPROTECTED INTEGER",
	"ZHASCHECKLIST INTEGER",
	"ZHASCHECKLISTINPROGRESS INTEGER",
	"ZNOTE INTEGER",
	"ZFILENAME VARCHAR",
	"ZTYPEUTI VARCHAR",
	"ZURLSTRING VARCHAR",
}

type fixture struct {
	t    *testing.T
	db   *sql.DB
	path string
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWithColumns(t, fullRecordColumns)
}

func newFixtureWithColumns(t *testing.T, recordColumns []string) *fixture {
	t.Helper()
	path := filepath.Join(t.TempDir(), "NoteStore.sqlite")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open fixture db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	fx := &fixture{t: t, db: db, path: path}

	fx.exec("CREATE TABLE Z_PRIMARYKEY (Z_ENT INTEGER PRIMARY KEY, Z_NAME VARCHAR)")
	fx.exec("CREATE TABLE Z_METADATA (Z_VERSION INTEGER, Z_UUID VARCHAR, Z_PLIST BLOB)")
	fx.exec(fmt.Sprintf("CREATE TABLE ZICCLOUDSYNCINGOBJECT (Z_PK INTEGER PRIMARY KEY, Z_ENT INTEGER, %s)",
		strings.Join(recordColumns, ", ")))
	fx.exec("CREATE TABLE ZICNOTEDATA (Z_PK INTEGER PRIMARY KEY, ZNOTE INTEGER, ZDATA BLOB)")

	for name, ent := range map[string]int64{
		entityAccount:    fxAccountEnt,
		entityFolder:     fxFolderEnt,
		entityNote:       fxNoteEnt,
		entityAttachment: fxAttachmentEnt,
	} {
		fx.exec("INSERT INTO Z_PRIMARYKEY (Z_ENT, Z_NAME) VALUES (?, ?)", ent, name)
	}
	fx.exec("INSERT INTO Z_METADATA (Z_VERSION, Z_UUID) VALUES (1, ?)", fxStoreUUID)
	return fx
}

func (fx *fixture) exec(query string, args ...any) {
	fx.t.Helper()
	if _, err := fx.db.Exec(query, args...); err != nil {
		fx.t.Fatalf("fixture exec %q: %v", query, err)
	}
}

// insert adds a row to the records table from a column->value map.
func (fx *fixture) insert(cols map[string]any) int64 {
	fx.t.Helper()
	names := make([]string, 0, len(cols))
	for name := range cols {
		names = append(names, name)
	}
	sort.Strings(names)
	marks := make([]string, len(names))
	args := make([]any, len(names))
	for i, name := range names {
		marks[i] = "?"
		args[i] = cols[name]
	}
	query := fmt.Sprintf("INSERT INTO ZICCLOUDSYNCINGOBJECT (%s) VALUES (%s)",
		strings.Join(names, ", "), strings.Join(marks, ", "))
	res, err := fx.db.Exec(query, args...)
	if err != nil {
		fx.t.Fatalf("fixture insert: %v", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		fx.t.Fatalf("fixture insert id: %v", err)
	}
	return id
}

func (fx *fixture) addAccount(name string) int64 {
	return fx.insert(map[string]any{
		"Z_ENT":       fxAccountEnt,
		"ZNAME":       name,
		"ZIDENTIFIER": name + "-identifier",
	})
}

func (fx *fixture) addFolder(name string, parentID, ownerID, folderType int64) int64 {
	cols := map[string]any{
		"Z_ENT":       fxFolderEnt,
		"ZTITLE2":     name,
		"ZFOLDERTYPE": folderType,
	}
	if parentID != 0 {
		cols["ZPARENT"] = parentID
	}
	if ownerID != 0 {
		cols["ZOWNER"] = ownerID
	}
	return fx.insert(cols)
}

func (fx *fixture) addNote(title string, cols map[string]any) int64 {
	all := map[string]any{
		"Z_ENT":   fxNoteEnt,
		"ZTITLE1": title,
	}
	for name, value := range cols {
		all[name] = value
	}
	return fx.insert(all)
}

func (fx *fixture) setBody(noteID int64, text string) {
	fx.t.Helper()
	fx.exec("INSERT INTO ZICNOTEDATA (ZNOTE, ZDATA) VALUES (?, ?)", noteID, fx.bodyBlob(text))
}

func (fx *fixture) setRawBody(noteID int64, blob []byte) {
	fx.t.Helper()
	fx.exec("INSERT INTO ZICNOTEDATA (ZNOTE, ZDATA) VALUES (?, ?)", noteID, blob)
}

// bodyBlob builds a gzip-compressed legacy envelope around the given text,
// the same wire layout the application writes.
func (fx *fixture) bodyBlob(text string) []byte {
	fx.t.Helper()
	var note []byte
	note = protowire.AppendTag(note, 2, protowire.BytesType)
	note = protowire.AppendBytes(note, []byte(text))
	var top []byte
	top = protowire.AppendTag(top, 3, protowire.BytesType)
	top = protowire.AppendBytes(top, note)

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(top); err != nil {
		fx.t.Fatalf("gzip body: %v", err)
	}
	if err := zw.Close(); err != nil {
		fx.t.Fatalf("gzip close: %v", err)
	}
	return buf.Bytes()
}

func (fx *fixture) open() *Store {
	fx.t.Helper()
	store, err := Open(fx.t.Context(), Options{Path: fx.path})
	if err != nil {
		fx.t.Fatalf("open store: %v", err)
	}
	fx.t.Cleanup(func() { store.Close() })
	return store
}
