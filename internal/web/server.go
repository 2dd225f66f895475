package web

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"log"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	gosync "sync"
	"time"

	"github.com/conorfennell/leitner/internal/domain"
	"github.com/conorfennell/leitner/internal/leitner"
	"github.com/conorfennell/leitner/internal/parser"
	"github.com/conorfennell/leitner/internal/review"
	"github.com/conorfennell/leitner/internal/schedule"
	"github.com/conorfennell/leitner/internal/session"
	"github.com/conorfennell/leitner/internal/storage"
	"github.com/conorfennell/leitner/internal/sync"
)

//go:embed all:static
var staticFiles embed.FS

//go:embed all:templates
var templateFiles embed.FS

// Server holds the dependencies for the HTTP server. It carries the one
// active review session; each request is a synchronous exchange against
// the durable store.
type Server struct {
	db        *storage.DB
	svc       *review.Service
	router    *http.ServeMux
	templates *template.Template
	reposDir  string
	now       func() time.Time

	mu     gosync.Mutex
	cursor *session.Cursor
}

// NewServer creates and configures a new server.
func NewServer(db *storage.DB, svc *review.Service, reposDir string) *Server {
	tpl, err := template.ParseFS(templateFiles, "templates/*.html")
	if err != nil {
		log.Fatalf("Failed to parse templates: %v", err)
	}

	s := &Server{
		db:        db,
		svc:       svc,
		router:    http.NewServeMux(),
		templates: tpl,
		reposDir:  reposDir,
		now:       time.Now,
	}
	s.routes()
	return s
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// routes sets up the routing for the server.
func (s *Server) routes() {
	staticFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		log.Fatalf("Failed to create sub-filesystem for static assets: %v", err)
	}
	fileServer := http.FileServer(http.FS(staticFS))

	s.router.Handle("/static/", http.StripPrefix("/static/", fileServer))
	s.router.Handle("/", fileServer)

	// HTMX-based review routes
	s.router.HandleFunc("/deck", s.handleGetDeck())
	s.router.HandleFunc("/review/next", s.handleGetNextReview())
	s.router.HandleFunc("/review/skip", s.handlePostSkip())
	s.router.HandleFunc("/review/delete", s.handleDeleteCurrent())
	s.router.HandleFunc("/review/answer/", s.handleShowAnswer())
	s.router.HandleFunc("/review/", s.handlePostReview())

	// Card management
	s.router.HandleFunc("/cards", s.handleCards())
	s.router.HandleFunc("/cards/", s.handleCardByID())
	s.router.HandleFunc("/import", s.handlePostImport())
	s.router.HandleFunc("/export", s.handleGetExport())

	// Source management routes
	s.router.HandleFunc("/sources", s.handleSources())
	s.router.HandleFunc("/sources/", s.handleDeleteSource())
	s.router.HandleFunc("/sync", s.handlePostSync())
}

func (s *Server) renderError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, review.ErrCardNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, leitner.ErrLevelOutOfRange), errors.Is(err, schedule.ErrBeforeStart):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		slog.Error("request failed", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// filterFromQuery builds a due filter from request parameters: ?all=1
// reviews every level, ?level=N reviews one box, ?tag=X narrows by tag.
func filterFromQuery(r *http.Request) (review.Filter, error) {
	var f review.Filter
	q := r.URL.Query()
	if q.Get("all") != "" {
		f.AllLevels = true
	}
	if lvlStr := q.Get("level"); lvlStr != "" {
		lvl, err := strconv.Atoi(lvlStr)
		if err != nil {
			return f, fmt.Errorf("%w: %q", leitner.ErrLevelOutOfRange, lvlStr)
		}
		f.Levels = []int{lvl}
	}
	f.Tag = q.Get("tag")
	return f, nil
}

// handleGetDeck renders the deck view: today's cycle position, the due
// count, and the per-level histogram.
func (s *Server) handleGetDeck() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := s.now()
		info, err := s.svc.TodayInfo(now)
		if err != nil {
			s.renderError(w, err)
			return
		}
		due, err := s.svc.DueCards(now, review.Filter{})
		if err != nil {
			s.renderError(w, err)
			return
		}
		hist, err := s.svc.LevelHistogram()
		if err != nil {
			s.renderError(w, err)
			return
		}
		events, err := s.svc.EventsOn(info.Date)
		if err != nil {
			s.renderError(w, err)
			return
		}

		histogram := make([]map[string]int, 0, domain.MaxLevel)
		for l := 1; l <= domain.MaxLevel; l++ {
			histogram = append(histogram, map[string]int{"Level": l, "Count": hist[l]})
		}

		data := map[string]interface{}{
			"Today":         info,
			"DueCount":      len(due),
			"HasDueCards":   len(due) > 0,
			"ReviewedToday": len(events),
			"Histogram":     histogram,
		}
		s.templates.ExecuteTemplate(w, "deck", data)
	}
}

// handleGetNextReview renders the front of the current due card, starting
// a fresh session over a due snapshot when none is in progress.
func (s *Server) handleGetNextReview() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()

		if s.cursor == nil || s.cursor.Done() || r.URL.Query().Get("restart") != "" {
			filter, err := filterFromQuery(r)
			if err != nil {
				s.renderError(w, err)
				return
			}
			due, err := s.svc.DueCards(s.now(), filter)
			if err != nil {
				s.renderError(w, err)
				return
			}
			s.cursor = session.New(due)
		}
		s.renderCurrent(w)
	}
}

// renderCurrent shows the current card front, or the completion view when
// the queue is empty. Callers must hold s.mu.
func (s *Server) renderCurrent(w http.ResponseWriter) {
	card, ok := s.cursor.Current()
	if !ok {
		s.templates.ExecuteTemplate(w, "session_complete", nil)
		return
	}
	data := map[string]interface{}{
		"Card":      card,
		"Remaining": s.cursor.Remaining(),
	}
	s.templates.ExecuteTemplate(w, "card_front", data)
}

// handleShowAnswer renders the back of the current card.
func (s *Server) handleShowAnswer() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/review/answer/")

		s.mu.Lock()
		defer s.mu.Unlock()

		if s.cursor == nil {
			http.NotFound(w, r)
			return
		}
		card, ok := s.cursor.Current()
		if !ok || card.ID != id {
			http.NotFound(w, r)
			return
		}
		s.cursor.Reveal()

		data := map[string]interface{}{
			"Card":      card,
			"Remaining": s.cursor.Remaining(),
		}
		s.templates.ExecuteTemplate(w, "card_back", data)
	}
}

// handlePostReview applies a verdict to the current card and renders the
// next one. The verdict is persisted before the cursor moves, so an
// abandoned or failed exchange leaves the session replayable.
func (s *Server) handlePostReview() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		id := strings.TrimPrefix(r.URL.Path, "/review/")
		correct := r.PostFormValue("verdict") == "correct"

		s.mu.Lock()
		defer s.mu.Unlock()

		if s.cursor == nil {
			http.Error(w, "No review session in progress", http.StatusConflict)
			return
		}
		card, ok := s.cursor.Current()
		if !ok || card.ID != id {
			http.Error(w, "Card is not the current card", http.StatusConflict)
			return
		}

		if _, err := s.svc.RecordVerdict(id, correct, s.now()); err != nil {
			s.renderError(w, err)
			return
		}
		s.cursor.Advance()
		s.renderCurrent(w)
	}
}

// handlePostSkip re-queues the current card at the end of the session
// without recording anything.
func (s *Server) handlePostSkip() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()

		if s.cursor == nil {
			http.Error(w, "No review session in progress", http.StatusConflict)
			return
		}
		s.cursor.Skip()
		s.renderCurrent(w)
	}
}

// handleDeleteCurrent deletes the card being presented and moves on.
func (s *Server) handleDeleteCurrent() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost && r.Method != http.MethodDelete {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()

		if s.cursor == nil {
			http.Error(w, "No review session in progress", http.StatusConflict)
			return
		}
		card, ok := s.cursor.Current()
		if !ok {
			http.Error(w, "Session is complete", http.StatusConflict)
			return
		}
		if err := s.svc.DeleteCard(card.ID, s.now()); err != nil {
			s.renderError(w, err)
			return
		}
		s.cursor.DeleteCurrent()
		s.renderCurrent(w)
	}
}

// handleCards handles GET (list, optionally ?level=N) and POST (add) for
// the card collection.
func (s *Server) handleCards() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			s.handleGetCards(w, r)
		case http.MethodPost:
			s.handlePostCard(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	}
}

func (s *Server) handleGetCards(w http.ResponseWriter, r *http.Request) {
	var cards []domain.Card
	var err error

	if lvlStr := r.URL.Query().Get("level"); lvlStr != "" {
		lvl, convErr := strconv.Atoi(lvlStr)
		if convErr != nil {
			http.Error(w, "Invalid level", http.StatusBadRequest)
			return
		}
		cards, err = s.svc.CardsByLevel(lvl)
	} else {
		cards, err = s.svc.AllCards()
	}
	if err != nil {
		s.renderError(w, err)
		return
	}

	data := map[string]interface{}{
		"Cards":  cards,
		"Levels": levelSeq(),
	}
	s.templates.ExecuteTemplate(w, "card_list", data)
}

func (s *Server) handlePostCard(w http.ResponseWriter, r *http.Request) {
	front := r.PostFormValue("front")
	back := r.PostFormValue("back")
	if front == "" || back == "" {
		http.Error(w, "Front and back cannot be empty", http.StatusBadRequest)
		return
	}
	level := 1
	if lvlStr := r.PostFormValue("level"); lvlStr != "" {
		lvl, err := strconv.Atoi(lvlStr)
		if err != nil {
			http.Error(w, "Invalid level", http.StatusBadRequest)
			return
		}
		level = lvl
	}

	if _, err := s.svc.AddCard(front, back, r.PostFormValue("tag"), level); err != nil {
		s.renderError(w, err)
		return
	}
	s.handleGetCards(w, r)
}

// handleCardByID handles per-card operations: DELETE /cards/{id} and
// POST /cards/{id}/level for a manual level override.
func (s *Server) handleCardByID() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rest := strings.TrimPrefix(r.URL.Path, "/cards/")

		if r.Method == http.MethodPost && strings.HasSuffix(rest, "/level") {
			id := strings.TrimSuffix(rest, "/level")
			lvl, err := strconv.Atoi(r.PostFormValue("level"))
			if err != nil {
				http.Error(w, "Invalid level", http.StatusBadRequest)
				return
			}
			if _, err := s.svc.SetLevel(id, lvl); err != nil {
				s.renderError(w, err)
				return
			}
			s.handleGetCards(w, r)
			return
		}

		if r.Method == http.MethodDelete {
			if err := s.svc.DeleteCard(rest, s.now()); err != nil {
				s.renderError(w, err)
				return
			}
			s.handleGetCards(w, r)
			return
		}

		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handlePostImport parses deck lines from the submitted form and adds the
// well-formed ones as new cards.
func (s *Server) handlePostImport() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		res, err := parser.Parse(strings.NewReader(r.PostFormValue("lines")))
		if err != nil {
			s.renderError(w, err)
			return
		}

		var added int
		for _, card := range res.Cards {
			if _, err := s.svc.AddCard(card.Front, card.Back, card.Tag, card.Level); err != nil {
				s.renderError(w, err)
				return
			}
			added++
		}

		data := map[string]interface{}{
			"Added":   added,
			"Skipped": res.Skipped,
		}
		s.templates.ExecuteTemplate(w, "import_result", data)
	}
}

// handleGetExport streams the whole collection, as deck lines by default
// or as JSON records with ?format=json.
func (s *Server) handleGetExport() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cards, err := s.svc.AllCards()
		if err != nil {
			s.renderError(w, err)
			return
		}

		if r.URL.Query().Get("format") == "json" {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Content-Disposition", `attachment; filename="cards.json"`)
			if err := json.NewEncoder(w).Encode(cards); err != nil {
				slog.Error("export failed", "error", err)
			}
			return
		}

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="cards.txt"`)
		if err := parser.Export(w, cards); err != nil {
			slog.Error("export failed", "error", err)
		}
	}
}

// handleSources handles both GET and POST for the sources page.
func (s *Server) handleSources() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			s.handleGetSources(w, r)
		case http.MethodPost:
			s.handlePostSource(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	}
}

func (s *Server) handleGetSources(w http.ResponseWriter, r *http.Request) {
	sources, err := s.db.GetAllSources()
	if err != nil {
		s.renderError(w, err)
		return
	}
	data := map[string]interface{}{
		"Sources": sources,
	}
	s.templates.ExecuteTemplate(w, "sources", data)
}

func (s *Server) handlePostSource(w http.ResponseWriter, r *http.Request) {
	path := r.PostFormValue("path")
	if path == "" {
		http.Error(w, "Path cannot be empty", http.StatusBadRequest)
		return
	}

	if _, err := s.db.InsertSource(path, sync.SourceType(path)); err != nil {
		s.renderError(w, err)
		return
	}

	sources, err := s.db.GetAllSources()
	if err != nil {
		s.renderError(w, err)
		return
	}
	data := map[string]interface{}{
		"Sources": sources,
	}
	s.templates.ExecuteTemplate(w, "source_list", data)
}

// handleDeleteSource deletes a source and re-renders the source list.
func (s *Server) handleDeleteSource() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		idStr := strings.TrimPrefix(r.URL.Path, "/sources/")
		id, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			http.Error(w, "Invalid source ID", http.StatusBadRequest)
			return
		}

		if err := s.db.DeleteSource(id); err != nil {
			s.renderError(w, err)
			return
		}

		sources, err := s.db.GetAllSources()
		if err != nil {
			s.renderError(w, err)
			return
		}
		data := map[string]interface{}{
			"Sources": sources,
		}
		s.templates.ExecuteTemplate(w, "source_list", data)
	}
}

// handlePostSync triggers a manual sync and re-renders the source list.
func (s *Server) handlePostSync() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		// Run in the foreground to make the user wait.
		stats, err := sync.RunSync(s.db, s.reposDir)
		if err != nil {
			s.renderError(w, err)
			return
		}

		sources, err := s.db.GetAllSources()
		if err != nil {
			s.renderError(w, err)
			return
		}
		s.templates.ExecuteTemplate(w, "sync_result", map[string]interface{}{
			"Stats": stats,
		})
		s.templates.ExecuteTemplate(w, "source_list", map[string]interface{}{
			"Sources": sources,
		})
	}
}

func levelSeq() []int {
	levels := make([]int, domain.MaxLevel)
	for i := range levels {
		levels[i] = i + 1
	}
	return levels
}
