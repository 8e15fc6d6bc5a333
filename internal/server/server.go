package server

import (
	"encoding/json"
	"io"
	"net/http"

	"squad-tracker/internal/domain"
	"squad-tracker/internal/feed"
	"squad-tracker/internal/history"
	"squad-tracker/internal/session"

	"github.com/rs/zerolog"
)

// Server is the read surface for the presentation layer. It only hands out
// copies of session state; the one mutating route (clear) goes through the
// session so cache invalidation and persistence stay consistent.
type Server struct {
	session *session.Session
	history *history.Manager
	logger  zerolog.Logger
}

func New(sess *session.Session, hist *history.Manager, logger zerolog.Logger) *Server {
	return &Server{session: sess, history: hist, logger: logger}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/scoreboard", s.handleScoreboard)
	mux.HandleFunc("GET /api/battles", s.handleBattles)
	mux.HandleFunc("GET /api/battles/extremes", s.handleExtremes)
	mux.HandleFunc("GET /api/battles/{id}", s.handleBattle)
	mux.HandleFunc("DELETE /api/battles/{id}", s.handleDeleteBattle)
	mux.HandleFunc("GET /api/export", s.handleExport)
	mux.HandleFunc("POST /api/import", s.handleImport)
	mux.HandleFunc("POST /api/clear", s.handleClear)
	mux.HandleFunc("GET /api/updates", s.handleUpdates)
	mux.HandleFunc("POST /api/feed", s.handleFeed)
	return mux
}

// handleFeed accepts pushed game-client signals from the embedding host.
// Undecodable envelopes get a 400; decodable ones are accepted and run
// through the ingestor's guards on the session loop.
func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	var env feed.Envelope
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4<<20)).Decode(&env); err != nil {
		http.Error(w, "invalid envelope", http.StatusBadRequest)
		return
	}
	ev, err := feed.Decode(env)
	if err != nil {
		s.logger.Warn().Err(err).Str("type", env.Type).Msg("feed envelope rejected")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.session.HandleEvent(ev)
	w.WriteHeader(http.StatusAccepted)
}

type playerEntry struct {
	ID     domain.PlayerID     `json:"id"`
	Name   string              `json:"name"`
	Totals domain.PlayerTotals `json:"totals"`
}

type scoreboardResponse struct {
	Players        []playerEntry     `json:"players"`
	Team           domain.TeamTotals `json:"team"`
	LastSyncFailed bool              `json:"lastSyncFailed"`
}

func (s *Server) handleScoreboard(w http.ResponseWriter, r *http.Request) {
	snap := s.session.Snapshot()

	players := make([]playerEntry, 0, len(snap.PlayersInfo))
	for id, name := range snap.PlayersInfo {
		players = append(players, playerEntry{
			ID:     id,
			Name:   name,
			Totals: s.session.PlayerTotals(id),
		})
	}

	s.writeJSON(w, http.StatusOK, scoreboardResponse{
		Players:        players,
		Team:           s.session.TeamTotals(),
		LastSyncFailed: s.session.LastSyncError() != nil,
	})
}

func (s *Server) handleBattles(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	entries := s.history.Filter(history.Filters{
		Map:     q.Get("map"),
		Vehicle: q.Get("vehicle"),
		Result:  q.Get("result"),
		Date:    q.Get("date"),
		Player:  q.Get("player"),
	})
	s.writeJSON(w, http.StatusOK, entries)
}

type battleResponse struct {
	*domain.BattleRecord
	Totals domain.BattleTotals `json:"totals"`
}

func (s *Server) handleBattle(w http.ResponseWriter, r *http.Request) {
	arenaID := r.PathValue("id")
	battle := s.session.Battle(arenaID)
	if battle == nil {
		http.Error(w, "battle not found", http.StatusNotFound)
		return
	}
	s.writeJSON(w, http.StatusOK, battleResponse{
		BattleRecord: battle,
		Totals:       s.session.BattleTotals(arenaID),
	})
}

func (s *Server) handleDeleteBattle(w http.ResponseWriter, r *http.Request) {
	arenaID := r.PathValue("id")
	if err := s.history.Delete(r.Context(), arenaID); err != nil {
		s.logger.Error().Err(err).Str("arena_id", arenaID).Msg("battle delete failed")
		http.Error(w, "delete failed", http.StatusBadGateway)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type extremesResponse struct {
	Best  *history.RatedBattle `json:"best"`
	Worst *history.RatedBattle `json:"worst"`
}

func (s *Server) handleExtremes(w http.ResponseWriter, r *http.Request) {
	best, worst := s.history.BestAndWorst()
	s.writeJSON(w, http.StatusOK, extremesResponse{Best: best, Worst: worst})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	data, err := s.history.Export()
	if err != nil {
		s.logger.Error().Err(err).Msg("export failed")
		http.Error(w, "export failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="battle-history.json"`)
	w.Write(data)
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 4<<20))
	if err != nil {
		http.Error(w, "payload too large", http.StatusRequestEntityTooLarge)
		return
	}
	if err := s.history.Import(r.Context(), payload); err != nil {
		s.logger.Warn().Err(err).Msg("import rejected")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if err := s.session.ClearAll(r.Context()); err != nil {
		s.logger.Error().Err(err).Msg("clear failed")
		http.Error(w, "clear failed", http.StatusBadGateway)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleUpdates streams change notifications as server-sent events. The
// payload carries no data: the client re-reads current state on each tick.
func (s *Server) handleUpdates(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")

	updates, cancel := s.session.Subscribe()
	defer cancel()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-updates:
			if _, err := io.WriteString(w, "event: statsUpdated\ndata: {}\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error().Err(err).Msg("failed to encode response")
	}
}
