package network

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
)

// RoomStatus is what GET /room reports about the hosted session.
type RoomStatus struct {
	RoomID   string `json:"room_id"`
	RoomName string `json:"room_name"`
	Port     int    `json:"port"`
	Phase    string `json:"phase"`
	Map      int    `json:"map"`
	Players  int    `json:"players"`
}

// NewHTTPHandler serves the host's HTTP surface: /ws for WebSocket peers,
// /room for status and /health. status is called per request.
func NewHTTPHandler(ws *WSListener, status func() RoomStatus) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /ws", ws)
	mux.HandleFunc("GET /room", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, status())
	})
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	c := cors.New(cors.Options{
		AllowedMethods: []string{http.MethodHead, http.MethodGet},
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"*"},
	})
	return c.Handler(mux)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("write json response")
	}
}

// ServeHTTP runs srv until ctx is done, then shuts it down gracefully.
func ServeHTTP(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("http surface listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}
