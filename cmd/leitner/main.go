package main

import (
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/conorfennell/leitner/internal/config"
	"github.com/conorfennell/leitner/internal/parser"
	"github.com/conorfennell/leitner/internal/review"
	"github.com/conorfennell/leitner/internal/storage"
	"github.com/conorfennell/leitner/internal/sync"
	"github.com/conorfennell/leitner/internal/web"
)

func main() {
	// 1. Define and parse command-line flags
	flags := pflag.NewFlagSet("leitner", pflag.ExitOnError)
	config.Flags(flags)
	importFile := flags.String("import", "", "Import cards from a deck file and exit")
	exportFile := flags.String("export", "", "Export all cards to a deck file and exit")
	runSync := flags.Bool("sync", false, "Sync all deck sources and exit")
	addSource := flags.String("add-source", "", "Register a deck source (local path or git URL) and exit")
	flags.Parse(os.Args[1:])

	cfg, err := config.Load(flags)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// 2. Open the database
	db, err := storage.Open(cfg.DB)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()
	slog.Info("Database opened", "path", cfg.DB)

	// 3. One-shot modes
	switch {
	case *addSource != "":
		id, err := db.InsertSource(*addSource, sync.SourceType(*addSource))
		if err != nil {
			log.Fatalf("Failed to add source: %v", err)
		}
		fmt.Printf("Added %s source %d: %s\n", sync.SourceType(*addSource), id, *addSource)
		return

	case *runSync:
		stats, err := sync.RunSync(db, cfg.ReposDir)
		if err != nil {
			log.Fatalf("Sync failed: %v", err)
		}
		fmt.Printf("Imported %d cards (%d known, %d lines skipped, %d errors).\n",
			stats.Imported, stats.Known, stats.Skipped, stats.Errors)
		return

	case *importFile != "":
		importDeck(db, *importFile)
		return

	case *exportFile != "":
		exportDeck(db, *exportFile)
		return
	}

	// 4. Serve the web UI
	sched, err := review.LoadSchedule(db, time.Now())
	if err != nil {
		log.Fatalf("Failed to load schedule: %v", err)
	}
	svc := review.NewService(db, sched)
	server := web.NewServer(db, svc, cfg.ReposDir)

	slog.Info("Listening", "addr", cfg.Listen)
	if err := http.ListenAndServe(cfg.Listen, server); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

func importDeck(db *storage.DB, path string) {
	sched, err := review.LoadSchedule(db, time.Now())
	if err != nil {
		log.Fatalf("Failed to load schedule: %v", err)
	}
	svc := review.NewService(db, sched)

	res, err := parser.ParseFile(path)
	if err != nil {
		log.Fatalf("Failed to parse %s: %v", path, err)
	}
	var added int
	for _, card := range res.Cards {
		if _, err := svc.AddCard(card.Front, card.Back, card.Tag, card.Level); err != nil {
			log.Fatalf("Failed to add card: %v", err)
		}
		added++
	}
	fmt.Printf("Imported %d cards, skipped %d malformed lines.\n", added, res.Skipped)
}

func exportDeck(db *storage.DB, path string) {
	cards, err := db.AllCards()
	if err != nil {
		log.Fatalf("Failed to load cards: %v", err)
	}
	out, err := os.Create(path)
	if err != nil {
		log.Fatalf("Failed to create %s: %v", path, err)
	}
	defer out.Close()
	if err := parser.Export(out, cards); err != nil {
		log.Fatalf("Failed to export: %v", err)
	}
	fmt.Printf("Exported %d cards to %s.\n", len(cards), path)
}
