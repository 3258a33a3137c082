package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/df07/go-pathtracer/pkg/loaders"
	"github.com/df07/go-pathtracer/pkg/scene"
)

// Request limits shared by the render endpoints
const (
	minImageSize = 16
	maxImageSize = 2000
	maxSamples   = 10000
	maxPasses    = 100
	maxDepth     = 200
)

// Config holds the web server settings
type Config struct {
	Port      int
	ScenesDir string
	StaticDir string
	Workers   int
	Logger    *slog.Logger
}

// Server handles web requests for the path tracer
type Server struct {
	config Config
	logger *slog.Logger
}

// NewServer creates a new web server
func NewServer(config Config) *Server {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{config: config, logger: logger}
}

// Handler returns the routes served by the server
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	if s.config.StaticDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(s.config.StaticDir)))
	}
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/scenes", s.handleScenes)
	mux.HandleFunc("GET /api/render", s.handleRender)
	mux.HandleFunc("GET /api/render-image", s.handleRenderImage)
	return mux
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting web server", "addr", "http://localhost"+srv.Addr)
		errChan <- srv.ListenAndServe()
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errChan; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// handleHealth provides a simple health check endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleScenes lists built-in scenes and scene files
func (s *Server) handleScenes(w http.ResponseWriter, r *http.Request) {
	scenes, err := scene.ListAllScenes(s.config.ScenesDir)
	if err != nil {
		s.logger.Error("failed to list scenes", "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, scenes)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// SceneParams are the query parameters shared by both render endpoints
type SceneParams struct {
	Scene    string
	Width    int
	Height   int
	Samples  int
	MaxDepth int
	Seed     int64
}

// parseSceneParams parses and validates the shared render parameters
func parseSceneParams(values url.Values) (SceneParams, error) {
	p := SceneParams{Scene: values.Get("scene")}
	if p.Scene == "" {
		p.Scene = "default"
	}

	var err error
	if p.Width, err = parseIntParam(values, "width", 400, minImageSize, maxImageSize); err != nil {
		return p, err
	}
	if p.Height, err = parseIntParam(values, "height", 225, minImageSize, maxImageSize); err != nil {
		return p, err
	}
	if p.Samples, err = parseIntParam(values, "samples", 50, 1, maxSamples); err != nil {
		return p, err
	}
	if p.MaxDepth, err = parseIntParam(values, "maxDepth", 50, 0, maxDepth); err != nil {
		return p, err
	}
	seed, err := parseIntParam(values, "seed", 42, 0, 1<<31-1)
	if err != nil {
		return p, err
	}
	p.Seed = int64(seed)
	return p, nil
}

// parseIntParam parses an integer parameter from URL query with validation
func parseIntParam(values url.Values, key string, defaultValue, min, max int) (int, error) {
	if value := values.Get(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %s", key, value)
		}
		if parsed < min || parsed > max {
			return 0, fmt.Errorf("%s must be between %d and %d, got: %d", key, min, max, parsed)
		}
		return parsed, nil
	}
	return defaultValue, nil
}

// createScene builds the requested scene for the requested image shape
func (s *Server) createScene(p SceneParams) (*scene.Scene, error) {
	return loaders.CreateScene(p.Scene, s.config.ScenesDir, float64(p.Width)/float64(p.Height), p.Seed)
}
