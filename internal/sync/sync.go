// Package sync reconciles configured deck sources into the card store.
// A source is a local directory or a git repository containing .cards
// files in the deck line format. Lines already imported (by content
// fingerprint) are left alone, so re-syncing is safe.
package sync

import (
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/conorfennell/leitner/internal/fingerprint"
	"github.com/conorfennell/leitner/internal/gitsource"
	"github.com/conorfennell/leitner/internal/parser"
	"github.com/conorfennell/leitner/internal/storage"
)

const deckExtension = ".cards"

// Stats summarizes one sync run.
type Stats struct {
	Imported int
	Known    int
	Skipped  int
	Errors   int
}

// RunSync iterates over all configured sources and imports any new cards.
func RunSync(db *storage.DB, reposDir string) (Stats, error) {
	slog.Info("Starting sync process for all sources...")
	sources, err := db.GetAllSources()
	if err != nil {
		return Stats{}, fmt.Errorf("failed to get sources: %w", err)
	}

	if len(sources) == 0 {
		slog.Info("No sources configured. Add one with --add-source <path/or/url.git>")
		return Stats{}, nil
	}

	if err := os.MkdirAll(reposDir, os.ModePerm); err != nil {
		return Stats{}, fmt.Errorf("failed to create repos directory: %w", err)
	}

	var total Stats
	for _, source := range sources {
		slog.Info("Syncing source", "id", source.ID, "type", source.Type, "path", source.Path)

		scanPath := source.Path
		if source.Type == "git" {
			localRepoPath, err := gitURLToLocalPath(reposDir, source.Path)
			if err != nil {
				slog.Error("Error determining local path for git repo", "url", source.Path, "error", err)
				total.Errors++
				continue
			}
			if err := gitsource.Sync(source.Path, localRepoPath); err != nil {
				slog.Error("Error syncing git repo", "url", source.Path, "error", err)
				total.Errors++
				continue
			}
			scanPath = localRepoPath
		}

		stats := importDeckFiles(db, scanPath)
		total.Imported += stats.Imported
		total.Known += stats.Known
		total.Skipped += stats.Skipped
		total.Errors += stats.Errors

		if err := db.UpdateSourceLastScanned(source.ID); err != nil {
			slog.Warn("Failed to update last scanned for source", "source_id", source.ID, "error", err)
		}
	}

	slog.Info("Sync process complete.",
		"imported", total.Imported,
		"already_known", total.Known,
		"skipped_lines", total.Skipped,
		"errors", total.Errors,
	)
	return total, nil
}

// importDeckFiles walks a directory tree and imports every new card found
// in .cards files.
func importDeckFiles(db *storage.DB, root string) Stats {
	var stats Stats

	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(strings.ToLower(d.Name()), deckExtension) {
			return nil
		}

		res, parseErr := parser.ParseFile(path)
		if parseErr != nil {
			slog.Error("Error parsing deck file", "path", path, "error", parseErr)
			stats.Errors++
			return nil
		}
		stats.Skipped += res.Skipped

		for _, card := range res.Cards {
			fp := fingerprint.Of(card)
			seen, err := db.SeenFingerprint(fp)
			if err != nil {
				slog.Error("Error checking fingerprint", "path", path, "error", err)
				stats.Errors++
				continue
			}
			if seen {
				stats.Known++
				continue
			}

			card.ID = uuid.NewString()
			if err := db.InsertImportedCard(card, fp); err != nil {
				slog.Error("Error inserting imported card", "path", path, "error", err)
				stats.Errors++
				continue
			}
			slog.Info("New card imported", "id", card.ID, "level", card.Level)
			stats.Imported++
		}
		return nil
	})

	if walkErr != nil {
		slog.Error("Error walking deck directory", "path", root, "error", walkErr)
		stats.Errors++
	}
	return stats
}

// SourceType guesses whether a path names a git repository or a local
// directory.
func SourceType(path string) string {
	if strings.HasSuffix(path, ".git") || strings.HasPrefix(path, "git@") ||
		strings.HasPrefix(path, "https://") || strings.HasPrefix(path, "http://") {
		return "git"
	}
	return "local"
}

func gitURLToLocalPath(baseDir, repoURL string) (string, error) {
	parsedURL, err := url.Parse(repoURL)
	if err != nil || (parsedURL.Scheme != "https" && parsedURL.Scheme != "http") {
		if strings.Contains(repoURL, "@") {
			parts := strings.Split(repoURL, ":")
			if len(parts) == 2 {
				hostAndUser := strings.Split(parts[0], "@")
				if len(hostAndUser) == 2 {
					host := hostAndUser[1]
					repoPath := strings.TrimSuffix(parts[1], ".git")
					return filepath.Join(baseDir, host, repoPath), nil
				}
			}
		}
		return "", fmt.Errorf("could not parse git URL: %s", repoURL)
	}

	sanitizedPath := strings.TrimSuffix(parsedURL.Path, ".git")
	return filepath.Join(baseDir, parsedURL.Host, sanitizedPath), nil
}
