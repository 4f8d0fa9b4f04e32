package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/transporte-ba/paradas-cli/internal/config"
	"github.com/transporte-ba/paradas-cli/internal/cost"
	"github.com/transporte-ba/paradas-cli/internal/parada"
	"github.com/transporte-ba/paradas-cli/internal/pipeline"
	"github.com/transporte-ba/paradas-cli/pkg/geocode"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Servidor HTTP con geocodificación en vivo",
	Long:  "Expone POST /api/geocode: subida multipart de la planilla y respuesta en server-sent events con progreso fila a fila y los artefactos finales.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: buildRouter(cfg),
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(context.Background())
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// buildRouter wires the chi router: health probe plus the streaming geocode
// endpoint.
func buildRouter(cfg *config.Config) http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})

	h := &geocodeHandler{cfg: cfg}
	r.Post("/api/geocode", h.handle)

	return r
}

// geocodeHandler streams one pipeline run per request. The mutex serializes
// runs: the shared cache file admits a single active run per path.
type geocodeHandler struct {
	cfg *config.Config
	mu  sync.Mutex
}

func (h *geocodeHandler) handle(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	reporter := &sseReporter{w: w, flusher: flusher}

	rows, ratePerMinute, maxRequests, err := h.parseRequest(r)
	if err != nil {
		reporter.Error(err)
		return
	}

	if h.cfg.Google.APIKey == "" {
		reporter.Error(eris.New("serve: falta la credencial de geocodificación"))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	timeout := time.Duration(h.cfg.Server.RunTimeoutSecs) * time.Second
	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	client := geocode.NewClient(h.cfg.Google.APIKey,
		geocode.WithMaxRetries(h.cfg.Server.MaxRetries),
		geocode.WithRegion(h.cfg.Google.Region),
	)

	runner := &pipeline.Runner{
		Client:        client,
		Cache:         geocode.OpenCache(h.cfg.Geocode.CachePath),
		Reporter:      reporter,
		Calculator:    cost.NewCalculator(cost.DefaultRates()),
		RatePerMinute: ratePerMinute,
		MaxRequests:   maxRequests,
	}

	// Run emits the terminal complete event itself, with partial artifacts
	// when the wall-clock ceiling truncated the run.
	if _, err := runner.Run(ctx, rows); err != nil {
		zap.L().Warn("corrida truncada", zap.Error(err))
	}
}

// parseRequest extracts the multipart upload and the run parameters.
func (h *geocodeHandler) parseRequest(r *http.Request) ([]parada.Row, int, int, error) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		return nil, 0, 0, eris.Wrap(err, "serve: parse multipart")
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, 0, 0, eris.Wrap(err, "serve: falta el archivo")
	}
	defer file.Close()

	// tealeg reads from a path; spool the upload to a temp file with the
	// original extension so CSV detection still works.
	ext := filepath.Ext(header.Filename)
	if ext == "" {
		ext = ".xlsx"
	}
	tmp, err := os.CreateTemp("", "paradas-upload-*"+ext)
	if err != nil {
		return nil, 0, 0, eris.Wrap(err, "serve: crear archivo temporal")
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, file); err != nil {
		tmp.Close()
		return nil, 0, 0, eris.Wrap(err, "serve: copiar archivo")
	}
	if err := tmp.Close(); err != nil {
		return nil, 0, 0, eris.Wrap(err, "serve: cerrar archivo temporal")
	}

	records, err := parada.ReadSheet(tmp.Name(), strings.TrimSpace(r.FormValue("sheet")))
	if err != nil {
		return nil, 0, 0, err
	}

	rows := parada.ParseRows(records, parada.ParseOptions{
		DefaultPais:       h.cfg.Geocode.DefaultPais,
		FallbackLocalidad: h.cfg.Geocode.FallbackLocalidad,
	})
	if len(rows) == 0 {
		return nil, 0, 0, eris.New("serve: la planilla no tiene filas de datos")
	}

	ratePerMinute := h.cfg.Geocode.RatePerMinute
	if v := r.FormValue("rate"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, 0, 0, eris.Errorf("serve: rate inválido %q", v)
		}
		ratePerMinute = n
	}

	maxRequests := 0
	if v := r.FormValue("max_requests"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, 0, 0, eris.Errorf("serve: max_requests inválido %q", v)
		}
		maxRequests = n
	}

	return rows, ratePerMinute, maxRequests, nil
}

// sseReporter frames pipeline events as server-sent events over a long-lived
// response.
type sseReporter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

func (s *sseReporter) emit(event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		zap.L().Error("sse: marshal event", zap.String("event", event), zap.Error(err))
		return
	}
	fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, data)
	s.flusher.Flush()
}

// Progress implements pipeline.Reporter.
func (s *sseReporter) Progress(u pipeline.Update) {
	s.emit("progress", u)
}

// Complete implements pipeline.Reporter.
func (s *sseReporter) Complete(a pipeline.Artifacts) {
	s.emit("complete", a)
}

// Error implements pipeline.Reporter.
func (s *sseReporter) Error(err error) {
	s.emit("error", map[string]string{"error": err.Error()})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
