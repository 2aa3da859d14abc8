// Package api provides the HTTP and WebSocket control surface for the bot.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/oakmont-labs/tradebot/internal/bot"
	"github.com/oakmont-labs/tradebot/internal/events"
)

// Config contains the server settings.
type Config struct {
	Host         string        `json:"host"`
	Port         int           `json:"port"`
	ReadTimeout  time.Duration `json:"readTimeout"`
	WriteTimeout time.Duration `json:"writeTimeout"`
}

// DefaultConfig returns the default server settings.
func DefaultConfig() Config {
	return Config{
		Host:         "127.0.0.1",
		Port:         8090,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
}

// Server is the HTTP/WebSocket API server.
type Server struct {
	logger     *zap.Logger
	config     Config
	router     *mux.Router
	httpServer *http.Server
	bot        *bot.TradingBot
	bus        *events.Bus
	hub        *Hub
	metricsH   http.Handler
}

// NewServer creates the API server. metricsHandler serves GET /metrics and
// may be nil to disable the endpoint.
func NewServer(logger *zap.Logger, config Config, tradingBot *bot.TradingBot, bus *events.Bus, metricsHandler http.Handler) *Server {
	s := &Server{
		logger:   logger.Named("api"),
		config:   config,
		router:   mux.NewRouter(),
		bot:      tradingBot,
		bus:      bus,
		hub:      NewHub(logger),
		metricsH: metricsHandler,
	}
	s.setupRoutes()

	go s.hub.Run()
	bus.SubscribeAll(func(e events.Event) {
		s.hub.BroadcastEvent(e)
	})

	return s
}

func (s *Server) setupRoutes() {
	v1 := s.router.PathPrefix("/api/v1").Subrouter()

	v1.HandleFunc("/health", s.handleHealth).Methods("GET")
	v1.HandleFunc("/status", s.handleStatus).Methods("GET")

	v1.HandleFunc("/bot/start", s.handleStart).Methods("POST")
	v1.HandleFunc("/bot/stop", s.handleStop).Methods("POST")
	v1.HandleFunc("/bot/pause", s.handlePause).Methods("POST")
	v1.HandleFunc("/bot/resume", s.handleResume).Methods("POST")
	v1.HandleFunc("/bot/reset-errors", s.handleResetErrors).Methods("POST")

	v1.HandleFunc("/strategies", s.handleListStrategies).Methods("GET")
	v1.HandleFunc("/strategies", s.handleBindStrategy).Methods("POST")
	v1.HandleFunc("/strategies/{id}", s.handleUnbindStrategy).Methods("DELETE")

	v1.HandleFunc("/positions", s.handleOpenPositions).Methods("GET")
	v1.HandleFunc("/positions/closed", s.handleClosedPositions).Methods("GET")
	v1.HandleFunc("/positions/{id}/close", s.handleClosePosition).Methods("POST")

	v1.HandleFunc("/portfolio", s.handlePortfolio).Methods("GET")

	if s.metricsH != nil {
		s.router.Handle("/metrics", s.metricsH).Methods("GET")
	}
	s.router.HandleFunc("/ws", s.handleWebSocket)
}

// Router exposes the route table, mainly for tests.
func (s *Server) Router() *mux.Router { return s.router }

// Start serves HTTP. Blocks until the listener fails or the server is
// stopped.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	handler := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}).Handler(s.router)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("starting API server", zap.String("addr", addr))
	return s.httpServer.ListenAndServe()
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	s.hub.Close()
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Warn("response encode failed", zap.Error(err))
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, err error) {
	s.respondJSON(w, status, map[string]any{"error": err.Error()})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.bot.GetHealth())
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]any{
		"state":     s.bot.State(),
		"bindings":  s.bot.Bindings(),
		"portfolio": s.bot.Portfolio().GetStats(),
		"events":    s.bus.GetStats(),
	})
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if err := s.bot.Start(); err != nil {
		s.respondError(w, http.StatusConflict, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"state": s.bot.State()})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if err := s.bot.Stop(); err != nil {
		s.respondError(w, http.StatusConflict, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"state": s.bot.State()})
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Reason string `json:"reason"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)
	if body.Reason == "" {
		body.Reason = "operator request"
	}

	if err := s.bot.Pause(body.Reason); err != nil {
		s.respondError(w, http.StatusConflict, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"state": s.bot.State()})
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	if err := s.bot.Resume(); err != nil {
		s.respondError(w, http.StatusConflict, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"state": s.bot.State()})
}

func (s *Server) handleResetErrors(w http.ResponseWriter, r *http.Request) {
	s.bot.ResetErrors()
	s.respondJSON(w, http.StatusOK, map[string]any{"reset": true})
}

func (s *Server) handleListStrategies(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]any{
		"available": s.bot.Registry().List(),
		"bindings":  s.bot.Bindings(),
	})
}

func (s *Server) handleBindStrategy(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Strategy string             `json:"strategy"`
		Symbol   string             `json:"symbol"`
		Params   map[string]float64 `json:"params"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.respondError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if body.Strategy == "" || body.Symbol == "" {
		s.respondError(w, http.StatusBadRequest, fmt.Errorf("strategy and symbol are required"))
		return
	}

	binding, err := s.bot.AddStrategy(body.Strategy, body.Symbol, body.Params)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, binding)
}

func (s *Server) handleUnbindStrategy(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.bot.RemoveStrategy(id); err != nil {
		s.respondError(w, http.StatusNotFound, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"removed": id})
}

func (s *Server) handleOpenPositions(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]any{
		"positions": s.bot.Portfolio().OpenPositions(),
	})
}

func (s *Server) handleClosedPositions(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]any{
		"positions": s.bot.Portfolio().ClosedPositions(),
	})
}

func (s *Server) handleClosePosition(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	closed, err := s.bot.ClosePositionManual(r.Context(), id)
	if err != nil {
		s.respondError(w, http.StatusNotFound, err)
		return
	}
	s.respondJSON(w, http.StatusOK, closed)
}

func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.bot.Portfolio().GetStats())
}
