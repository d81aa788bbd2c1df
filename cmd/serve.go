package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/bom-enrich/internal/bom"
	"github.com/sells-group/bom-enrich/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the enrichment API server",
	Long:  "Serves the REST API for submitting BOM items, streaming per-BOM progress over SSE, and reading the enriched catalog.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		port := cfg.Server.Port
		if servePort > 0 {
			port = servePort
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           newRouter(env),
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			zap.L().Info("server listening", zap.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		zap.L().Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "listen port (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

func newRouter(env *pipelineEnv) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "Last-Event-ID"},
	}))

	h := &apiHandler{env: env}

	r.Get("/health", h.health)
	r.Route("/api", func(r chi.Router) {
		r.Post("/boms/{bomID}/items", h.submitItems)
		r.Get("/boms/{bomID}/events", h.streamEvents)
		r.Get("/boms/{bomID}/status", h.bomStatus)
		r.Get("/components", h.listComponents)
		r.Get("/components/{id}", h.getComponent)
		r.Get("/telemetry", h.telemetry)
	})
	return r
}

type apiHandler struct {
	env *pipelineEnv
}

type submitRequest struct {
	Items []struct {
		MPN          string `json:"mpn"`
		Manufacturer string `json:"manufacturer"`
		Quantity     int    `json:"quantity"`
	} `json:"items"`
}

// submitItems accepts a batch of line items for a BOM and starts enrichment
// in the background. Jobs run on a detached context: a client disconnect
// never cancels in-flight enrichment.
func (h *apiHandler) submitItems(w http.ResponseWriter, r *http.Request) {
	bomID := chi.URLParam(r, "bomID")

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Items) == 0 {
		writeError(w, http.StatusBadRequest, "items must not be empty")
		return
	}

	items := make([]bom.LineItem, len(req.Items))
	for i, it := range req.Items {
		if it.MPN == "" {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("items[%d]: mpn is required", i))
			return
		}
		qty := it.Quantity
		if qty <= 0 {
			qty = 1
		}
		items[i] = bom.LineItem{MPN: it.MPN, Manufacturer: it.Manufacturer, Quantity: qty}
	}

	jobs := bom.Jobs(bomID, items)
	go h.env.Pool.RunBOM(context.Background(), bomID, jobs)

	itemIDs := make([]string, len(jobs))
	for i, j := range jobs {
		itemIDs[i] = j.ItemID
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"bom_id":   bomID,
		"accepted": len(jobs),
		"item_ids": itemIDs,
	})
}

// streamEvents serves the BOM's live progress over SSE. The current
// progress snapshot is sent first so reconnecting clients can resynchronize
// without event replay.
func (h *apiHandler) streamEvents(w http.ResponseWriter, r *http.Request) {
	bomID := chi.URLParam(r, "bomID")

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	sub := h.env.Hub.Subscribe(bomID)
	defer h.env.Hub.Unsubscribe(sub)

	if snapshot, ok := h.env.Tracker.Snapshot(bomID); ok {
		writeSSE(w, "snapshot", snapshot)
		flusher.Flush()
	}

	keepalive := time.NewTicker(15 * time.Second)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-keepalive.C:
			fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
		case event, ok := <-sub.Events:
			if !ok {
				return
			}
			writeSSE(w, string(event.Type), event)
			flusher.Flush()
		}
	}
}

func (h *apiHandler) bomStatus(w http.ResponseWriter, r *http.Request) {
	bomID := chi.URLParam(r, "bomID")
	progress, ok := h.env.Tracker.Snapshot(bomID)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown bom")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"bom_id":   bomID,
		"progress": progress,
	})
}

func (h *apiHandler) listComponents(w http.ResponseWriter, r *http.Request) {
	if mpn := r.URL.Query().Get("mpn"); mpn != "" {
		rec, err := h.env.Catalog.GetByPart(r.Context(), mpn, r.URL.Query().Get("manufacturer"))
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				writeError(w, http.StatusNotFound, "component not found")
				return
			}
			writeError(w, http.StatusInternalServerError, "lookup failed")
			return
		}
		writeJSON(w, http.StatusOK, rec)
		return
	}

	limit := queryInt(r, "limit", 50)
	if limit > 500 {
		limit = 500
	}
	offset := queryInt(r, "offset", 0)

	records, err := h.env.Catalog.ListComponents(r.Context(), limit, offset)
	if err != nil {
		zap.L().Error("list components", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "list failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"components": records,
		"limit":      limit,
		"offset":     offset,
	})
}

func (h *apiHandler) getComponent(w http.ResponseWriter, r *http.Request) {
	rec, err := h.env.Catalog.GetComponent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "component not found")
			return
		}
		zap.L().Error("get component", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *apiHandler) telemetry(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"services":       h.env.Client.Telemetry().Snapshot(),
		"breakers":       h.env.Client.BreakerStates(),
		"dropped_events": h.env.Hub.Dropped(),
	})
}

func (h *apiHandler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Error("write response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeSSE(w http.ResponseWriter, event string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		zap.L().Error("marshal sse event", zap.Error(err))
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
}

func queryInt(r *http.Request, key string, def int) int {
	if raw := r.URL.Query().Get(key); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n >= 0 {
			return n
		}
	}
	return def
}
