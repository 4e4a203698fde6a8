//
// Tencent is pleased to support the open source community by making trpc-crew-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-crew-go is licensed under the Apache License Version 2.0.
//
//

// Package debug provides a read-only HTTP server for inspecting tasks and
// their conversation records.
package debug

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"trpc.group/trpc-go/trpc-crew-go/log"
	"trpc.group/trpc-go/trpc-crew-go/session"
)

const defaultAddress = ":8090"

// Server exposes the task store over HTTP. All endpoints are read-only;
// tasks are created and driven through the runner, not this server.
type Server struct {
	service    session.Service
	router     *mux.Router
	address    string
	origins    []string
	httpServer *http.Server
}

// Option configures the Server instance.
type Option func(*Server)

// WithAddress sets the listen address. Defaults to ":8090".
func WithAddress(addr string) Option {
	return func(s *Server) {
		if addr != "" {
			s.address = addr
		}
	}
}

// WithAllowedOrigins restricts CORS to the given origins. Defaults to all.
func WithAllowedOrigins(origins ...string) Option {
	return func(s *Server) {
		if len(origins) > 0 {
			s.origins = origins
		}
	}
}

// New creates an inspection server over the given task store.
func New(service session.Service, opts ...Option) (*Server, error) {
	if service == nil {
		return nil, errors.New("session service is required")
	}
	s := &Server{
		service: service,
		router:  mux.NewRouter(),
		address: defaultAddress,
		origins: []string{"*"},
	}
	for _, opt := range opts {
		opt(s)
	}

	c := cors.New(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{"Content-Length", "Content-Type"},
	})
	s.router.Use(c.Handler)
	s.registerRoutes()
	return s, nil
}

// Handler returns the http handler for the server.
func (s *Server) Handler() http.Handler { return s.router }

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:              s.address,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.Infof("Starting debug server at %s", s.address)
	if err := s.httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop shuts the HTTP server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return errors.New("server not started")
	}
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return err
	}
	log.Infof("Stopped debug server at %s", s.address)
	return nil
}

func (s *Server) registerRoutes() {
	s.router.HandleFunc("/api/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/api/tasks", s.handleListTasks).Methods(http.MethodGet)
	s.router.HandleFunc("/api/tasks/{taskId}", s.handleGetTask).Methods(http.MethodGet)
	s.router.HandleFunc("/api/tasks/{taskId}/messages", s.handleGetMessages).Methods(http.MethodGet)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, map[string]string{"status": "serving"})
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	log.Debugf("handleListTasks called: path=%s", r.URL.Path)
	tasks, err := s.service.ListTasks(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if status := r.URL.Query().Get("status"); status != "" {
		filtered, err := filterTasks(tasks, session.Status(status))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		tasks = filtered
	}
	s.writeJSON(w, tasks)
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	log.Debugf("handleGetTask called: path=%s", r.URL.Path)
	taskID := mux.Vars(r)["taskId"]
	task, err := s.service.GetTask(r.Context(), taskID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, task)
}

func (s *Server) handleGetMessages(w http.ResponseWriter, r *http.Request) {
	log.Debugf("handleGetMessages called: path=%s", r.URL.Path)
	taskID := mux.Vars(r)["taskId"]
	record, err := s.service.GetRecord(r.Context(), taskID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, record.Messages)
}

func filterTasks(tasks []*session.Task, status session.Status) ([]*session.Task, error) {
	switch status {
	case session.StatusPending, session.StatusRunning, session.StatusCompleted, session.StatusFailed:
	default:
		return nil, errors.New("unknown status: " + string(status))
	}
	filtered := make([]*session.Task, 0, len(tasks))
	for _, task := range tasks {
		if task.Status == status {
			filtered = append(filtered, task)
		}
	}
	return filtered, nil
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, session.ErrTaskNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
