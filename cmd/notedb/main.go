// Command notedb is a read-only command line view over the Notes
// application database: list accounts, folders, and notes, search, and show
// a single note. All mutation belongs to out-of-process automation against
// the live application; this binary never writes.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"notedb/internal/config"
	"notedb/internal/container"
	"notedb/internal/notestore"
)

const usage = `usage: notedb <command> [flags]

commands:
  accounts                     list accounts
  folders  [--account A]       list folders with paths
  notes    [--account A] [--folder F] [--limit N] [--trash]
  search   <query> [--account A] [--folder F] [--limit N] [--trash]
  show     <id|title> [--account A] [--folder F]
  core-data-id <id>            print the composite reference for a note

flags:
  --db PATH   container directory or database file (default: system location)
`

func main() {
	cfg := config.Load()
	setupLogging(cfg)

	args := os.Args[1:]
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	cmd, args := args[0], args[1:]

	flags := pflag.NewFlagSet(cmd, pflag.ContinueOnError)
	dbPath := flags.String("db", cfg.DatabasePath, "container directory or database file")
	account := flags.String("account", "", "restrict to one account by name")
	folder := flags.String("folder", "", "restrict to one folder by name")
	limit := flags.Int("limit", 0, "maximum number of results")
	trash := flags.Bool("trash", false, "include notes in the trash")
	if err := flags.Parse(args); err != nil {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	ctx := context.Background()
	store, err := notestore.Open(ctx, notestore.Options{
		Path:   *dbPath,
		Prompt: promptForPath,
	})
	if err != nil {
		slog.Error("open notes database", "err", err)
		if errors.Is(err, container.ErrNotFound) || errors.Is(err, container.ErrNotFoundAt) {
			fmt.Fprintln(os.Stderr, "notes database not found; pass --db or set NOTEDB_PATH")
		}
		os.Exit(1)
	}
	defer store.Close()

	filter := notestore.NoteFilter{
		Account:        *account,
		Folder:         *folder,
		Limit:          *limit,
		IncludeTrashed: *trash,
	}
	if err := run(ctx, store, cmd, flags.Args(), filter); err != nil {
		slog.Error("command failed", "command", cmd, "err", err)
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, store *notestore.Store, cmd string, args []string, filter notestore.NoteFilter) error {
	switch cmd {
	case "accounts":
		for _, acct := range store.ListAccounts() {
			fmt.Printf("%d\t%s\n", acct.ID, acct.Name)
		}
		return nil
	case "folders":
		for _, f := range store.ListFolders(filter.Account) {
			fmt.Printf("%d\t%s\t%s\n", f.ID, f.Path, f.Account)
		}
		return nil
	case "notes":
		notes, err := store.ListNotes(ctx, filter)
		if err != nil {
			return err
		}
		printNotes(notes)
		return nil
	case "search":
		if len(args) != 1 {
			return errors.New("search needs exactly one query argument")
		}
		notes, err := store.SearchNotes(ctx, args[0], filter)
		if err != nil {
			return err
		}
		printNotes(notes)
		return nil
	case "show":
		if len(args) != 1 {
			return errors.New("show needs a note id or title")
		}
		id, err := resolveRef(ctx, store, args[0], filter)
		if err != nil {
			return err
		}
		detail, err := store.NoteDetail(ctx, id)
		if err != nil {
			return err
		}
		printDetail(detail)
		return nil
	case "core-data-id":
		if len(args) != 1 {
			return errors.New("core-data-id needs a note id")
		}
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid note id %q", args[0])
		}
		ref, err := store.CoreDataID(ctx, id)
		if err != nil {
			return err
		}
		fmt.Println(ref)
		return nil
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// resolveRef accepts either a numeric note id or an exact title.
func resolveRef(ctx context.Context, store *notestore.Store, ref string, filter notestore.NoteFilter) (int64, error) {
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		return id, nil
	}
	return store.ResolveNoteIDByTitle(ctx, ref, filter.Account, filter.Folder)
}

func printNotes(notes []notestore.Note) {
	for _, n := range notes {
		marks := ""
		if n.PasswordProtected {
			marks += " [locked]"
		}
		if n.Checklist {
			marks += " [checklist]"
		}
		fmt.Printf("%d\t%s\t%s%s\n", n.ID, n.Modified.Format("2006-01-02 15:04"), n.Title, marks)
	}
}

func printDetail(d *notestore.NoteDetail) {
	fmt.Printf("Title:    %s\n", d.Title)
	fmt.Printf("Account:  %s\n", d.AccountName)
	fmt.Printf("Folder:   %s\n", d.FolderPath)
	fmt.Printf("Created:  %s\n", d.Created.Format("2006-01-02 15:04"))
	fmt.Printf("Modified: %s\n", d.Modified.Format("2006-01-02 15:04"))
	for _, att := range d.Attachments {
		if att.URL != "" {
			fmt.Printf("Attachment: %s (%s)\n", att.Name, att.URL)
			continue
		}
		fmt.Printf("Attachment: %s\n", att.Name)
	}
	fmt.Println()
	fmt.Println(d.Body)
}

// promptForPath is the access-grant collaborator: consulted only when the
// default database location is unreachable and no override was given.
func promptForPath() (string, bool) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return "", false
	}
	fmt.Fprint(os.Stderr, "notes database not found at the default location; enter a path (empty to abort): ")
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", false
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return "", false
	}
	return line, true
}

func setupLogging(cfg config.Config) {
	level := parseLogLevel(cfg.LogLevel)
	var handler slog.Handler
	if cfg.LogPretty || term.IsTerminal(int(os.Stderr.Fd())) {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}
	slog.SetDefault(slog.New(handler))
}

func parseLogLevel(raw string) slog.Leveler {
	level := new(slog.LevelVar)
	level.Set(slog.LevelWarn)
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		level.Set(slog.LevelDebug)
	case "info":
		level.Set(slog.LevelInfo)
	case "warn", "warning":
		level.Set(slog.LevelWarn)
	case "error":
		level.Set(slog.LevelError)
	}
	return level
}
