package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"chatsink/internal/errors"
	"chatsink/internal/middleware"
	"chatsink/internal/models"
	"chatsink/internal/service"
	"chatsink/internal/tracing"
	"chatsink/pkg/gateway"
	"chatsink/pkg/notify"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

type Server struct {
	router    *mux.Router
	logger    *logrus.Logger
	cfg       *models.Config
	engine    *service.IngestionEngine
	tracker   *service.StatusTracker
	directory *service.ChatDirectory
	hub       *notify.Hub
	sender    gateway.Sender
	server    *http.Server
}

func NewServer(
	cfg *models.Config,
	engine *service.IngestionEngine,
	tracker *service.StatusTracker,
	directory *service.ChatDirectory,
	hub *notify.Hub,
	sender gateway.Sender,
	logger *logrus.Logger,
) *Server {
	s := &Server{
		router:    mux.NewRouter(),
		logger:    logger,
		cfg:       cfg,
		engine:    engine,
		tracker:   tracker,
		directory: directory,
		hub:       hub,
		sender:    sender,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.Observability(s.logger))

	s.router.HandleFunc("/health", s.handleHealth()).Methods(http.MethodGet)
	s.router.HandleFunc("/metrics", s.handleMetrics()).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/events", s.handleInboundEvent()).Methods(http.MethodPost)

	// Outbound relay exists only when a transport gateway is configured.
	if s.sender != nil {
		api.HandleFunc("/messages/send", s.handleSendMessage()).Methods(http.MethodPost)
	}

	api.HandleFunc("/messages/{id:[0-9]+}/read", s.handleMarkRead()).Methods(http.MethodPost)
	api.HandleFunc("/messages/{id:[0-9]+}/status", s.handleUpdateStatus()).Methods(http.MethodPut)
	api.HandleFunc("/messages/{id:[0-9]+}/reactions", s.handleAddReaction()).Methods(http.MethodPut)
	api.HandleFunc("/messages/{id:[0-9]+}/reactions/{participant}", s.handleRemoveReaction()).Methods(http.MethodDelete)

	api.HandleFunc("/chats/group", s.handleCreateGroup()).Methods(http.MethodPost)
	api.HandleFunc("/chats/{id:[0-9]+}/participants", s.handleAddParticipants()).Methods(http.MethodPost)
	api.HandleFunc("/chats/{id:[0-9]+}/participants", s.handleRemoveParticipants()).Methods(http.MethodDelete)
	api.HandleFunc("/chats/{id:[0-9]+}/mute", s.handleToggleMute()).Methods(http.MethodPost)
	api.HandleFunc("/chats/{id:[0-9]+}/read", s.handleMarkChatRead()).Methods(http.MethodPost)

	if s.hub != nil {
		s.router.Handle("/ws", s.hub).Methods(http.MethodGet)
	}
}

func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.cfg.Server.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(s.cfg.Server.WriteTimeoutSec) * time.Second,
		IdleTimeout:  time.Duration(s.cfg.Server.IdleTimeoutSec) * time.Second,
	}

	s.logger.Infof("Starting server on port %d", s.cfg.Server.Port)
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.WithError(err).Error("Failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	requestID := tracing.GetRequestID(r.Context())
	status := errors.HTTPStatusCode(err)
	if status >= 500 {
		s.logger.WithError(err).WithField("request_id", requestID).Error("Request failed")
	}
	s.writeJSON(w, status, errors.ToHTTPResponse(err, requestID))
}

func decodeBody(r *http.Request, dst interface{}) error {
	defer func() { _ = r.Body.Close() }()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		return errors.NewValidationError("body", "", fmt.Sprintf("malformed request body: %v", err))
	}
	return nil
}
