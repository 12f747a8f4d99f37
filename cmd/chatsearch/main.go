// chatsearch-cli is an interactive shell exercising the chatsearch
// facade: add a live event, force a commit, search, and list checkpoints,
// all against one on-disk database. It has no command for backlog pages.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/google/uuid"

	"chatsearch"
)

const version = "0.1.0"

func main() {
	var (
		showVersion    = flag.Bool("version", false, "Show version")
		dbPath         = flag.String("db", "", "Database directory (default: auto-generated in .chatsearch/)")
		debug          = flag.Bool("debug", false, "Enable debug logging")
		commitInterval = flag.Int("commit-interval", 200, "Writer forced-commit cadence in milliseconds")
		watchDir       = flag.Bool("watch", false, "Watch the index directory for out-of-band changes")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `chatsearch-cli v%s - interactive chatsearch demo shell

Usage: chatsearch-cli [options]

Options:
`, version)
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Commands (once running):
  add <room_id> <text>              add a live event
  commit                            force a commit and wait for it
  search <term> [room_id]           search committed events
  checkpoints                       list known backfill checkpoints
  exit                              quit
`)
	}
	flag.Parse()

	if *showVersion {
		fmt.Printf("chatsearch-cli v%s\n", version)
		return
	}

	path := *dbPath
	if path == "" {
		if err := os.MkdirAll(".chatsearch", 0o755); err != nil {
			fmt.Fprintf(os.Stderr, "Error: create .chatsearch dir: %v\n", err)
			os.Exit(1)
		}
		path = ".chatsearch/db"
	}

	level := slog.LevelWarn
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	opts := []chatsearch.Option{
		chatsearch.WithLogger(logger),
		chatsearch.WithCommitInterval(*commitInterval),
	}
	if *watchDir {
		opts = append(opts, chatsearch.WithDirectoryWatch())
	}

	db, err := chatsearch.New(path, opts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "\033[36mchatsearch>\033[0m ",
		HistoryFile:     ".chatsearch/history",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: readline: %v\n", err)
		os.Exit(1)
	}
	defer rl.Close()

	fmt.Printf("chatsearch-cli v%s — database at %s\n", version, path)

	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			if err == io.EOF {
				break
			}
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			break
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if err := dispatch(db, line); err != nil {
			fmt.Printf("\033[31mError: %v\033[0m\n", err)
		}
	}
}

func dispatch(db *chatsearch.Database, line string) error {
	fields := strings.Fields(line)
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "exit", "quit":
		os.Exit(0)

	case "add":
		if len(args) < 2 {
			return fmt.Errorf("usage: add <room_id> <text...>")
		}
		roomID, body := args[0], strings.Join(args[1:], " ")
		ev := chatsearch.Event{
			EventID:  "$" + uuid.NewString() + ":localhost",
			Sender:   "@cli:localhost",
			RoomID:   roomID,
			ServerTS: time.Now().UnixMilli(),
			Body:     body,
			Source:   sourceJSON(roomID, body),
		}
		db.AddEvent(ev, chatsearch.Profile{})
		fmt.Printf("queued %s\n", ev.EventID)

	case "commit":
		opstamp, err := db.Commit()
		if err != nil {
			return fmt.Errorf("commit: %w", err)
		}
		if err := db.Reload(); err != nil {
			return fmt.Errorf("reload: %w", err)
		}
		fmt.Printf("committed at opstamp %d\n", opstamp)

	case "search":
		if len(args) < 1 {
			return fmt.Errorf("usage: search <term> [room_id]")
		}
		roomID := ""
		if len(args) > 1 {
			roomID = args[1]
		}
		results := db.GetSearcher().Search(chatsearch.SearchArgs{
			Term:        args[0],
			Limit:       10,
			BeforeLimit: 2,
			AfterLimit:  2,
			RoomID:      roomID,
		})
		for _, r := range results {
			fmt.Printf("score=%.3f source=%s\n", r.Score, r.EventSource)
		}
		fmt.Printf("%d result(s)\n", len(results))

	case "checkpoints":
		cps, err := db.GetConnection().LoadCheckpoints()
		if err != nil {
			return fmt.Errorf("load checkpoints: %w", err)
		}
		for _, cp := range cps {
			fmt.Printf("%s -> %s\n", cp.RoomID, cp.Token)
		}

	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
	return nil
}

func sourceJSON(roomID, body string) string {
	b, _ := json.Marshal(map[string]any{
		"room_id": roomID,
		"content": map[string]string{"body": body},
	})
	return string(b)
}
