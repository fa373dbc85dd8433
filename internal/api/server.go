package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/atlas-desktop/marketscan/internal/circuitbreaker"
	"github.com/atlas-desktop/marketscan/internal/config"
	"github.com/atlas-desktop/marketscan/internal/persistence"
	"github.com/atlas-desktop/marketscan/internal/regime"
	"github.com/atlas-desktop/marketscan/internal/watchlist"
)

// Server is the dashboard's HTTP/WebSocket API surface: read-only views
// over signals, trades, watchlist and engine state, plus the Prometheus
// scrape endpoint. Grounded on the prior server.go's mux+cors+upgrader
// composition, narrowed from the teacher's backtest-runner endpoints to
// the signal-engine's read surface.
type Server struct {
	log        *zap.Logger
	cfg        *config.Config
	router     *mux.Router
	httpServer *http.Server
	upgrader   websocket.Upgrader
	hub        *Hub

	repo       persistence.Repository
	watchlist  *watchlist.Watchlist
	circuit    *circuitbreaker.CircuitBreaker
	regimeClsf *regime.Classifier
}

// NewServer builds a dashboard Server bound to its read dependencies.
func NewServer(log *zap.Logger, cfg *config.Config, hub *Hub, repo persistence.Repository, wl *watchlist.Watchlist, circuit *circuitbreaker.CircuitBreaker, regimeClsf *regime.Classifier) *Server {
	s := &Server{
		log:        log.Named("dashboard"),
		cfg:        cfg,
		router:     mux.NewRouter(),
		hub:        hub,
		repo:       repo,
		watchlist:  wl,
		circuit:    circuit,
		regimeClsf: regimeClsf,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/api/v1/health", s.handleHealth).Methods("GET")
	s.router.HandleFunc("/api/v1/status", s.handleStatus).Methods("GET")
	s.router.HandleFunc("/api/v1/signals", s.handleGetSignals).Methods("GET")
	s.router.HandleFunc("/api/v1/trades", s.handleGetTrades).Methods("GET")
	s.router.HandleFunc("/api/v1/watchlist", s.handleGetWatchlist).Methods("GET")
	s.router.HandleFunc("/api/v1/watchlist", s.handleAddWatchlist).Methods("POST")
	s.router.HandleFunc("/api/v1/watchlist/{symbol}", s.handleRemoveWatchlist).Methods("DELETE")
	s.router.HandleFunc("/api/v1/circuit", s.handleGetCircuit).Methods("GET")
	s.router.HandleFunc("/api/v1/circuit/override", s.handleOverrideCircuit).Methods("POST")
	s.router.HandleFunc("/api/v1/regime", s.handleGetRegime).Methods("GET")
	s.router.Handle("/metrics", promhttp.Handler()).Methods("GET")
	s.router.HandleFunc("/ws", s.handleWebSocket)
}

// Start runs the HTTP server, blocking until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Dashboard.Host, s.cfg.Dashboard.Port)
	handler := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}).Handler(s.router)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	s.log.Info("starting dashboard server", zap.String("addr", addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]interface{}{"status": "healthy", "time": time.Now().Unix()})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	count, err := s.repo.GetActiveTradeCount()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, map[string]interface{}{
		"activeTrades":      count,
		"circuitActive":     s.circuit.IsActive(),
		"regime":            s.regimeClsf.Cached(),
		"connectedClients":  s.hub.ClientCount(),
	})
}

func (s *Server) handleGetSignals(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	date := now.Truncate(24 * time.Hour)
	rows, err := s.repo.GetActiveSignals(date, now)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, map[string]interface{}{"signals": rows, "count": len(rows)})
}

func (s *Server) handleGetTrades(w http.ResponseWriter, r *http.Request) {
	rows, err := s.repo.GetActiveTrades()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, map[string]interface{}{"trades": rows, "count": len(rows)})
}

func (s *Server) handleGetWatchlist(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]interface{}{"watchlist": s.watchlist.All()})
}

func (s *Server) handleAddWatchlist(w http.ResponseWriter, r *http.Request) {
	var body struct{ Symbol string `json:"symbol"` }
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Symbol == "" {
		writeError(w, http.StatusBadRequest, "symbol is required")
		return
	}
	s.watchlist.Add(body.Symbol, time.Now())
	writeJSON(w, map[string]string{"symbol": body.Symbol, "status": "added"})
}

func (s *Server) handleRemoveWatchlist(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]
	s.watchlist.Remove(symbol)
	writeJSON(w, map[string]string{"symbol": symbol, "status": "removed"})
}

func (s *Server) handleGetCircuit(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.circuit.State())
}

func (s *Server) handleOverrideCircuit(w http.ResponseWriter, r *http.Request) {
	s.circuit.Override()
	writeJSON(w, map[string]string{"status": "overridden"})
}

func (s *Server) handleGetRegime(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.regimeClsf.Cached())
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error("dashboard websocket upgrade failed", zap.Error(err))
		return
	}
	client := &Client{id: uuid.New().String(), hub: s.hub, conn: conn, send: make(chan []byte, 256)}
	s.hub.register <- client
	go client.writePump()
	go client.readPump()
}

func writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
