package notestore

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func TestListAccountsSortedByName(t *testing.T) {
	fx := newFixture(t)
	fx.addAccount("Work")
	fx.addAccount("iCloud")
	fx.addAccount("Personal")

	store := fx.open()
	accounts := store.ListAccounts()
	got := make([]string, len(accounts))
	for i, acct := range accounts {
		got[i] = acct.Name
	}
	want := []string{"Personal", "Work", "iCloud"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("accounts mismatch (-want +got):\n%s", diff)
	}
	if accounts[0].Identifier != "Personal-identifier" {
		t.Fatalf("identifier not loaded: %q", accounts[0].Identifier)
	}
}

func TestListFoldersAnnotatedAndSorted(t *testing.T) {
	fx := newFixture(t)
	personal := fx.addAccount("Personal")
	work := fx.addAccount("Work")
	fx.addFolder("Inbox", 0, personal, 0)
	fx.addFolder("Archive", 0, work, 0)
	fx.addFolder("Hidden", 0, personal, folderTypeSystem)

	store := fx.open()
	folders := store.ListFolders("")
	want := []FolderSummary{
		{Name: "Archive", Account: "Work", Path: "Archive"},
		{Name: "Inbox", Account: "Personal", Path: "Inbox"},
	}
	if diff := cmp.Diff(want, folders, cmpopts.IgnoreFields(FolderSummary{}, "ID")); diff != "" {
		t.Fatalf("folders mismatch (-want +got):\n%s", diff)
	}

	scoped := store.ListFolders("Personal")
	if len(scoped) != 1 || scoped[0].Name != "Inbox" {
		t.Fatalf("account-scoped folders: got %+v", scoped)
	}
}

func TestFolderPathJoinsAncestors(t *testing.T) {
	fx := newFixture(t)
	acct := fx.addAccount("Personal")
	root := fx.addFolder("Projects", 0, acct, 0)
	mid := fx.addFolder("Go", root, acct, 0)
	leaf := fx.addFolder("Ideas", mid, acct, 0)

	store := fx.open()
	if got := store.folderPaths[leaf]; got != "Projects/Go/Ideas" {
		t.Fatalf("leaf path: got %q", got)
	}
	if got := store.folderPaths[mid]; got != "Projects/Go" {
		t.Fatalf("mid path: got %q", got)
	}
	if got := store.folderPaths[root]; got != "Projects" {
		t.Fatalf("root path: got %q", got)
	}
}

func TestFolderPathTerminatesOnCycle(t *testing.T) {
	fx := newFixture(t)
	acct := fx.addAccount("Personal")
	// Two folders pointing at each other; a corrupt database can produce
	// this and the path walk must not loop forever.
	a := fx.addFolder("A", 0, acct, 0)
	b := fx.addFolder("B", a, acct, 0)
	fx.exec("UPDATE ZICCLOUDSYNCINGOBJECT SET ZPARENT = ? WHERE Z_PK = ?", b, a)

	store := fx.open()
	pathA := store.folderPaths[a]
	pathB := store.folderPaths[b]
	if pathA == "" || pathB == "" {
		t.Fatalf("cycle paths empty: a=%q b=%q", pathA, pathB)
	}
}

func TestOpenRejectsMissingEntity(t *testing.T) {
	fx := newFixture(t)
	fx.exec("DELETE FROM Z_PRIMARYKEY WHERE Z_NAME = ?", entityNote)

	_, err := Open(t.Context(), Options{Path: fx.path})
	if !errors.Is(err, ErrUnsupportedSchema) {
		t.Fatalf("got %v, want ErrUnsupportedSchema", err)
	}
}

func TestTrashFolderNameFromDatabase(t *testing.T) {
	fx := newFixture(t)
	acct := fx.addAccount("Personal")
	fx.addFolder("Recently Deleted", 0, acct, folderTypeTrash)

	store := fx.open()
	if got := store.TrashFolderName(); got != "Recently Deleted" {
		t.Fatalf("trash name: got %q", got)
	}
}
