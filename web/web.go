// Package web serves reconciliation results over HTTP.
//
// The server runs the pipeline once at startup and exposes the output
// tables and the run summary as JSON. When watching is enabled it reloads
// the pipeline whenever a file in the data directory changes, so the
// endpoints always reflect the inputs on disk.
//
// SECURITY WARNING: This server has no authentication and should only be
// bound to localhost (127.0.0.1). Do not expose it to untrusted networks.
package web

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/avandermeer/tieout"
	"github.com/avandermeer/tieout/loader"
	"github.com/avandermeer/tieout/logger"
	"github.com/avandermeer/tieout/telemetry"
)

type Server struct {
	Port         int
	Host         string
	Version      string
	CommitSHA    string
	WatchEnabled bool
	Options      tieout.Options

	mu      sync.RWMutex
	results *tieout.Results
	dataDir string
}

// New creates a server for the input tables in dataDir.
func New(port int, dataDir string) *Server {
	return &Server{
		Port:    port,
		Host:    "127.0.0.1",
		dataDir: dataDir,
	}
}

// Start loads the pipeline, optionally starts the directory watcher, and
// serves until the listener fails.
func (s *Server) Start(ctx context.Context) error {
	collector := telemetry.FromContext(ctx)
	timer := collector.Start(fmt.Sprintf("web.start %s:%d", s.Host, s.Port))
	defer timer.End()

	if s.dataDir == "" {
		return fmt.Errorf("data directory is required")
	}

	loadTimer := timer.Child(fmt.Sprintf("web.load %s", filepath.Base(s.dataDir)))
	if err := s.reload(ctx); err != nil {
		loadTimer.End()
		return fmt.Errorf("failed to load pipeline: %w", err)
	}
	loadTimer.End()

	if s.WatchEnabled {
		if err := s.startWatcher(ctx); err != nil {
			return fmt.Errorf("failed to start watcher: %w", err)
		}
	}

	addr := fmt.Sprintf("%s:%d", s.Host, s.Port)
	return http.ListenAndServe(addr, s.router())
}

func (s *Server) router() chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(metricsMiddleware)

	r.Get("/api/summary", s.handleSummary)
	r.Get("/api/exceptions", s.handleExceptions)
	r.Get("/api/matches", s.handleMatches)
	r.Get("/api/slices", s.handleSlices)
	r.Get("/api/rollforward", s.handleRollforward)
	r.Handle("/metrics", metricsHandler())

	return r
}

// reload runs the pipeline over the current contents of the data directory
// and swaps the served results.
func (s *Server) reload(ctx context.Context) error {
	inputs, err := loader.Load(s.dataDir)
	if err != nil {
		return err
	}

	results, err := tieout.Run(ctx, inputs, s.Options)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.results = results
	s.mu.Unlock()

	observeRun(results)
	return nil
}

// startWatcher reloads the pipeline whenever a CSV in the data directory is
// written. Events are debounced because editors fire several per save.
func (s *Server) startWatcher(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(s.dataDir); err != nil {
		watcher.Close()
		return err
	}

	log := logger.FromContext(ctx)

	go func() {
		defer watcher.Close()

		var pending <-chan time.Time
		for {
			select {
			case <-ctx.Done():
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				if filepath.Ext(event.Name) != ".csv" {
					continue
				}
				pending = time.After(250 * time.Millisecond)

			case <-pending:
				pending = nil
				if err := s.reload(ctx); err != nil {
					log.Error().Err(err).Msg("reload failed; serving previous results")
					continue
				}
				log.Info().Str("dir", s.dataDir).Msg("reloaded pipeline")

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Error().Err(err).Msg("watcher error")
			}
		}
	}()

	return nil
}
