// Package server exposes the relay hub over HTTP.
package server

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/BioHazard786/liteshare/internal/config"
	"github.com/BioHazard786/liteshare/internal/relay"
	"github.com/BioHazard786/liteshare/internal/version"
)

// Route paths.
const (
	WebSocketPath = "/ws"
	HealthPath    = "/health"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  64 * 1024,
	WriteBufferSize: 64 * 1024,

	// Browser clients are served from other origins.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// NewHandler builds the relay's HTTP routes.
func NewHandler(hub *relay.Hub, cfg *config.RelayConfig, log *zap.Logger) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+HealthPath, healthHandler(hub))
	mux.HandleFunc("GET "+WebSocketPath, ServeWs(hub, cfg.Token, log))
	return mux
}

// ServeWs upgrades authorized requests and hands the connection to hub.
// An empty token disables the check.
func ServeWs(hub *relay.Hub, token string, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !authorized(r.URL.Query().Get("token"), token) {
			log.Info("rejected connection, bad token", zap.String("remote", r.RemoteAddr))
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Debug("upgrade failed", zap.Error(err))
			return
		}

		go relay.NewClient(hub, conn).Serve()
	}
}

func authorized(got, want string) bool {
	if want == "" {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Rooms   int64  `json:"rooms"`
	Clients int64  `json:"clients"`
}

func healthHandler(hub *relay.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rooms, clients := hub.Stats()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(healthResponse{
			Status:  "ok",
			Version: version.Version,
			Rooms:   rooms,
			Clients: clients,
		})
	}
}
