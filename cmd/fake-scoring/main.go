// Command fake-scoring serves the in-memory scoring service for local
// runs of the game node. Besides the scoring routes it exposes:
//
//	POST /admin/games                  -> initiate a game, returns its result id
//	POST /admin/games/{id}?status=...  -> change a game's status
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/okian/falcongrasp/internal/adapters/scoring/scoringtest"
	"github.com/okian/falcongrasp/internal/domain/model"
	"github.com/okian/falcongrasp/pkg/logger"
)

const (
	defaultPlayers    = 4
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 5 * time.Second
)

func main() {
	var (
		addr     = flag.String("addr", ":9090", "listen address")
		email    = flag.String("email", "node@example.test", "accepted login email")
		password = flag.String("password", "secret", "accepted login password")
		gameID   = flag.String("game", "falcon", "game id new games are created for")
		team     = flag.String("team", "", "initiate a game for this team at startup")
		players  = flag.Int("players", defaultPlayers, "players per initiated game")
	)
	flag.Parse()

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	log := logger.Get().Named("fake-scoring")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc := scoringtest.NewServer(*email, *password)
	initiate := func(name string) string {
		id := svc.Initiate(*gameID, name, roster(*players)...)
		log.Info(ctx, "game initiated", logger.String("id", id), logger.String("team", name))
		return id
	}
	if *team != "" {
		initiate(*team)
	}

	mux := http.NewServeMux()
	mux.Handle("/", svc.Handler())
	mux.HandleFunc("POST /admin/games", func(w http.ResponseWriter, r *http.Request) {
		name := r.URL.Query().Get("team")
		if name == "" {
			name = "team-" + time.Now().Format("150405")
		}
		writeJSON(w, http.StatusCreated, map[string]string{"id": initiate(name)})
	})
	mux.HandleFunc("POST /admin/games/{id}", func(w http.ResponseWriter, r *http.Request) {
		status := model.GameStatus(r.URL.Query().Get("status"))
		switch status {
		case model.StatusInitiated, model.StatusPlaying, model.StatusCancel, model.StatusCompleted:
		default:
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("unknown status %q", status)})
			return
		}
		svc.SetStatus(r.PathValue("id"), status)
		log.Info(r.Context(), "game status changed", logger.String("id", r.PathValue("id")), logger.String("status", string(status)))
		writeJSON(w, http.StatusOK, map[string]string{"status": string(status)})
	})

	srv := &http.Server{Addr: *addr, Handler: mux, ReadHeaderTimeout: readHeaderTimeout}
	go func() {
		log.Info(ctx, "fake scoring service listening", logger.String("addr", *addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(ctx, "HTTP server failed", logger.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

func roster(n int) []model.Player {
	out := make([]model.Player, n)
	for i := range out {
		out[i] = model.Player{
			UserID: fmt.Sprintf("user-%d", i+1),
			Name:   fmt.Sprintf("Player %d", i+1),
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
