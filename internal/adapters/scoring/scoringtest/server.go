// Package scoringtest is an in-memory scoring service speaking the same
// HTTP contract as the real one. Tests and local demos drive it directly.
package scoringtest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/okian/falcongrasp/internal/domain/model"
)

// Server holds games, submissions and leaderboard totals in memory.
type Server struct {
	email    string
	password string

	mu          sync.Mutex
	tokens      map[string]bool
	games       map[string]*model.GameRecord
	gameOf      map[string]string // game result id -> game id
	order       []string
	submissions []model.ScoreSubmission
	totals      map[string]float64
	failures    map[string][]int
	calls       map[string]int
}

// NewServer returns a service that accepts email and password.
func NewServer(email, password string) *Server {
	return &Server{
		email:    email,
		password: password,
		tokens:   map[string]bool{},
		games:    map[string]*model.GameRecord{},
		gameOf:   map[string]string{},
		totals:   map[string]float64{},
		failures: map[string][]int{},
		calls:    map[string]int{},
	}
}

// Start serves the handler on a loopback listener. Close the returned server.
func (s *Server) Start() *httptest.Server {
	return httptest.NewServer(s.Handler())
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /login2", s.handleLogin)
	mux.HandleFunc("GET /game-result", s.authorized("initiated", s.handleInitiated))
	mux.HandleFunc("GET /game-result/{id}", s.authorized("status", s.handleStatus))
	mux.HandleFunc("POST /game-result/scoring", s.authorized("submit", s.handleSubmit))
	mux.HandleFunc("GET /leaderboard/dashboard/based", s.authorized("leaderboard", s.handleLeaderboard))
	return mux
}

// Initiate creates an initiated game for gameID and returns its result id.
func (s *Server) Initiate(gameID, team string, players ...model.Player) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.NewString()
	s.games[id] = &model.GameRecord{
		ID:      id,
		Name:    team,
		Players: append([]model.Player(nil), players...),
		Status:  model.StatusInitiated,
	}
	s.gameOf[id] = gameID
	s.order = append(s.order, id)
	return id
}

// SetStatus changes the status of a game, as the admin console would.
func (s *Server) SetStatus(id string, status model.GameStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if g, ok := s.games[id]; ok {
		g.Status = status
	}
}

// Status returns the status of a game.
func (s *Server) Status(id string) model.GameStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	if g, ok := s.games[id]; ok {
		return g.Status
	}
	return ""
}

// FailNext makes the next calls of route answer with the given status codes,
// one code per call. Routes: auth, initiated, status, submit, leaderboard.
func (s *Server) FailNext(route string, codes ...int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[route] = append(s.failures[route], codes...)
}

// Submissions returns every accepted submission in order.
func (s *Server) Submissions() []model.ScoreSubmission {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.ScoreSubmission(nil), s.submissions...)
}

// Calls returns how often route was hit, failures included.
func (s *Server) Calls(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[route]
}

// Revoke invalidates every issued token.
func (s *Server) Revoke() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.tokens)
}

// injected consumes a scripted failure for route. Callers hold s.mu.
func (s *Server) injected(route string) int {
	s.calls[route]++
	codes := s.failures[route]
	if len(codes) == 0 {
		return 0
	}
	s.failures[route] = codes[1:]
	return codes[0]
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	code := s.injected("auth")
	s.mu.Unlock()
	if code != 0 {
		w.WriteHeader(code)
		return
	}

	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
		return
	}
	if body.Email != s.email || body.Password != s.password {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
		return
	}
	token := uuid.NewString()
	s.mu.Lock()
	s.tokens[token] = true
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"data": map[string]string{"token": token}})
}

func (s *Server) authorized(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		s.mu.Lock()
		code := s.injected(route)
		ok := s.tokens[token]
		s.mu.Unlock()
		switch {
		case code != 0:
			w.WriteHeader(code)
		case !ok:
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		default:
			next(w, r)
		}
	}
}

func (s *Server) handleInitiated(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []model.GameRecord{}
	for i := len(s.order) - 1; i >= 0; i-- {
		id := s.order[i]
		g := s.games[id]
		if string(g.Status) != q.Get("status") || s.gameOf[id] != q.Get("gameID") {
			continue
		}
		rec := *g
		if q.Get("load_participant") != "true" {
			rec.Players = nil
		}
		out = append(out, rec)
		if q.Get("limit") == "1" {
			break
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": out})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	g, ok := s.games[r.PathValue("id")]
	var rec model.GameRecord
	if ok {
		rec = *g
	}
	s.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": rec})
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var sub model.ScoreSubmission
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.games[sub.GameResultID]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown game result"})
		return
	}
	total := 0
	for _, row := range sub.IndividualScore {
		total += row.Score
	}
	s.submissions = append(s.submissions, sub)
	s.totals[g.Name] += float64(total)
	g.Status = model.StatusCompleted
	writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{"gameResultID": sub.GameResultID, "total": total}})
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	list := make([]model.LeaderboardEntry, 0, len(s.totals))
	for name, total := range s.totals {
		list = append(list, model.LeaderboardEntry{Name: name, TotalScore: total})
	}
	s.mu.Unlock()

	sort.Slice(list, func(i, j int) bool {
		if list[i].TotalScore != list[j].TotalScore {
			return list[i].TotalScore > list[j].TotalScore
		}
		return list[i].Name < list[j].Name
	})
	writeJSON(w, http.StatusOK, map[string]any{"data": []map[string]any{{
		"name": r.URL.Query().Get("nameGame"),
		"list": list,
	}}})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
