package tgauth

import (
	"context"
	"net/http"
	"time"
)

type Server struct {
	httpServer *http.Server
}

type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

func (s *Server) Run(cfg ServerConfig, handler http.Handler) error {
	s.httpServer = &http.Server{
		Addr:           "0.0.0.0:" + cfg.Port,
		Handler:        handler,
		MaxHeaderBytes: 1 << 20,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
	}

	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
