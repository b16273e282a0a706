// Package app wires the encounter runtime and HTTP lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/louisbranch/digivice/internal/encounter/api"
	"github.com/louisbranch/digivice/internal/encounter/service"
	"github.com/louisbranch/digivice/internal/encounter/storage/sqlite"
	"github.com/louisbranch/digivice/internal/encounter/stream"
	"github.com/louisbranch/digivice/internal/platform/cmd"
)

const shutdownTimeout = 10 * time.Second

type serverEnv struct {
	DBPath string `env:"DIGIVICE_ENCOUNTER_DB_PATH"`
}

func loadServerEnv() serverEnv {
	var cfg serverEnv
	_ = cmd.ParseConfig(&cfg)
	if strings.TrimSpace(cfg.DBPath) == "" {
		cfg.DBPath = filepath.Join("data", "encounter.db")
	}
	return cfg
}

// Server hosts the encounter HTTP API, websocket stream, and storage
// lifecycle.
type Server struct {
	listener   net.Listener
	httpServer *http.Server
	store      *sqlite.Store
}

// New creates a configured encounter server listening on the provided port.
func New(port int) (*Server, error) {
	return NewWithAddr(fmt.Sprintf(":%d", port))
}

// NewWithAddr creates a configured encounter server for the provided address.
func NewWithAddr(addr string) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	env := loadServerEnv()
	store, err := openEncounterStore(env.DBPath)
	if err != nil {
		_ = listener.Close()
		return nil, err
	}

	hub := stream.NewHub(nil)
	svc, err := service.New(store, hub)
	if err != nil {
		_ = listener.Close()
		_ = store.Close()
		return nil, err
	}

	mux := http.NewServeMux()
	api.New(svc, nil).Register(mux, hub.Handle)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return &Server{
		listener: listener,
		httpServer: &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		store: store,
	}, nil
}

func openEncounterStore(path string) (*sqlite.Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}
	store, err := sqlite.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open encounter store: %w", err)
	}
	return store, nil
}

// Addr returns the listener address for the server.
func (s *Server) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Run creates and serves an encounter server until context cancellation.
func Run(ctx context.Context, port int) error {
	server, err := New(port)
	if err != nil {
		return err
	}
	return server.Serve(ctx)
}

// Serve starts the HTTP server until context cancellation.
func (s *Server) Serve(ctx context.Context) error {
	if s == nil {
		return errors.New("server is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	defer s.Close()

	log.Printf("encounter server listening at %v", s.listener.Addr())
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.httpServer.Serve(s.listener)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		err := <-serveErr
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case err := <-serveErr:
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	}
}

// Close releases the server's resources.
func (s *Server) Close() {
	if s == nil {
		return
	}
	if s.store != nil {
		_ = s.store.Close()
	}
}
