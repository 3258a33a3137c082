package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/df07/go-pathtracer/pkg/core"
	"github.com/df07/go-pathtracer/pkg/output"
	"github.com/df07/go-pathtracer/pkg/renderer"
	"github.com/df07/go-pathtracer/pkg/scene"
)

// SSEEvent represents a unified SSE event for thread-safe writing
type SSEEvent struct {
	Type string `json:"type"` // "console", "passComplete", "error", "complete"
	Data string `json:"data"`
}

// PassUpdate is sent after every progressive pass
type PassUpdate struct {
	PassNumber     int     `json:"passNumber"`
	TotalPasses    int     `json:"totalPasses"`
	ImageData      string  `json:"imageData"` // Base64 encoded PNG
	ElapsedMs      int64   `json:"elapsedMs"`
	TotalPixels    int     `json:"totalPixels"`
	TotalSamples   int     `json:"totalSamples"`
	AverageSamples float64 `json:"averageSamples"`
	Luminance      float64 `json:"luminance"`
	Variance       float64 `json:"variance"`
	PrimitiveCount int     `json:"primitiveCount"`
	IsLast         bool    `json:"isLast"`
}

// handleRenderImage renders synchronously and returns the encoded image
func (s *Server) handleRenderImage(w http.ResponseWriter, r *http.Request) {
	params, err := parseSceneParams(r.URL.Query())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	format := output.FormatPNG
	if name := r.URL.Query().Get("format"); name != "" {
		if format, err = output.ParseFormat(name); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	sceneObj, err := s.createScene(params)
	if err != nil {
		http.Error(w, err.Error(), sceneErrorStatus(err))
		return
	}

	raytracer, err := renderer.NewRaytracer(sceneObj, renderer.SamplingConfig{
		Width:           params.Width,
		Height:          params.Height,
		SamplesPerPixel: params.Samples,
		MaxDepth:        params.MaxDepth,
		Seed:            params.Seed,
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	raytracer.SetWorkers(s.config.Workers)

	img, stats, err := raytracer.RenderImage(r.Context())
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			s.logger.Error("render failed", "scene", params.Scene, "err", err)
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	data, err := output.EncodeBytes(img, format)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	s.logger.Info("rendered image", "scene", params.Scene, "width", params.Width, "height", params.Height,
		"samples", params.Samples, "duration", stats.Duration)
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Write(data)
}

func sceneErrorStatus(err error) int {
	if errors.Is(err, scene.ErrUnknownScene) {
		return http.StatusNotFound
	}
	return http.StatusBadRequest
}

// handleRender streams a progressive render as Server-Sent Events
func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	s.setSSEHeaders(w)
	ctx := r.Context()

	events := make(chan SSEEvent, 100)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		s.writeSSEEvents(ctx, w, events)
	}()

	var producers sync.WaitGroup
	defer func() {
		producers.Wait()
		close(events)
		<-writerDone
	}()

	params, err := parseSceneParams(r.URL.Query())
	if err != nil {
		s.sendEvent(ctx, events, "error", fmt.Sprintf("Invalid request: %v", err))
		return
	}
	passes, err := parseIntParam(r.URL.Query(), "maxPasses", 5, 1, maxPasses)
	if err != nil {
		s.sendEvent(ctx, events, "error", fmt.Sprintf("Invalid request: %v", err))
		return
	}

	passes = min(passes, params.Samples)

	consoleChan := make(chan ConsoleMessage, 50)
	webLogger := NewWebLogger(fmt.Sprintf("render-%d", time.Now().UnixNano()), consoleChan, s.logger)
	producers.Add(1)
	go func() {
		defer producers.Done()
		s.streamConsoleMessages(ctx, consoleChan, events)
	}()
	defer close(consoleChan)

	sceneObj, err := s.createScene(params)
	if err != nil {
		s.sendEvent(ctx, events, "error", err.Error())
		return
	}

	raytracer, err := renderer.NewProgressiveRaytracer(sceneObj,
		renderer.SamplingConfig{Width: params.Width, Height: params.Height, MaxDepth: params.MaxDepth, Seed: params.Seed},
		renderer.ProgressiveConfig{
			InitialSamples:     1,
			MaxSamplesPerPixel: params.Samples,
			MaxPasses:          passes,
			NumWorkers:         s.config.Workers,
		}, webLogger)
	if err != nil {
		s.sendEvent(ctx, events, "error", err.Error())
		return
	}

	start := time.Now()
	passChan, errChan := raytracer.RenderProgressive(ctx)
	for result := range passChan {
		s.handlePassComplete(ctx, events, result, passes, sceneObj.GetPrimitiveCount(), start)
	}
	if err := <-errChan; err != nil {
		s.sendEvent(ctx, events, "error", fmt.Sprintf("Rendering failed: %v", err))
		return
	}
	s.sendEvent(ctx, events, "complete", "Rendering completed")
}

// setSSEHeaders sets the required headers for Server-Sent Events
func (s *Server) setSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
}

// writeSSEEvents handles writing all SSE events in a single goroutine.
// It drains events until the channel is closed so producers never block.
func (s *Server) writeSSEEvents(ctx context.Context, w http.ResponseWriter, events <-chan SSEEvent) {
	flusher, _ := w.(http.Flusher)
	for event := range events {
		if ctx.Err() != nil {
			continue
		}
		if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, event.Data); err != nil {
			continue
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}

// streamConsoleMessages forwards log lines to the client until consoleChan closes
func (s *Server) streamConsoleMessages(ctx context.Context, consoleChan <-chan ConsoleMessage, events chan<- SSEEvent) {
	for msg := range consoleChan {
		data, err := json.Marshal(msg)
		if err != nil {
			s.logger.Error("failed to marshal console message", "err", err)
			continue
		}
		select {
		case events <- SSEEvent{Type: "console", Data: string(data)}:
		case <-ctx.Done():
		default:
			// Channel full, skip message to avoid blocking
		}
	}
}

// handlePassComplete encodes the pass image and queues a passComplete event
func (s *Server) handlePassComplete(ctx context.Context, events chan<- SSEEvent, result renderer.PassResult,
	totalPasses, primitiveCount int, start time.Time) {
	png, err := output.EncodeBytes(result.Image, output.FormatPNG)
	if err != nil {
		s.logger.Error("failed to encode pass image", "pass", result.PassNumber, "err", err)
		return
	}

	data, err := json.Marshal(PassUpdate{
		PassNumber:     result.PassNumber,
		TotalPasses:    totalPasses,
		ImageData:      base64.StdEncoding.EncodeToString(png),
		ElapsedMs:      time.Since(start).Milliseconds(),
		TotalPixels:    result.Stats.TotalPixels,
		TotalSamples:   result.Stats.TotalSamples,
		AverageSamples: result.Stats.AverageSamples,
		Luminance:      result.Stats.AverageLuminance,
		Variance:       result.Stats.AverageVariance,
		PrimitiveCount: primitiveCount,
		IsLast:         result.IsLast,
	})
	if err != nil {
		s.logger.Error("failed to marshal pass update", "err", err)
		return
	}
	s.sendEvent(ctx, events, "passComplete", string(data))
}

func (s *Server) sendEvent(ctx context.Context, events chan<- SSEEvent, eventType, data string) {
	select {
	case events <- SSEEvent{Type: eventType, Data: data}:
	case <-ctx.Done():
	}
}

var _ core.Logger = (*WebLogger)(nil)
