package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/regtechmx/expediente-engine/internal/engine"
	"github.com/regtechmx/expediente-engine/internal/model"
	"github.com/regtechmx/expediente-engine/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("serve"); err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		eng, err := buildEngine()
		if err != nil {
			return err
		}
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		api := newAPIServer(eng, st, rate.NewLimiter(rate.Limit(cfg.Server.RateLimitRPS), cfg.Server.RateLimitBurst))

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}
		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: api.routes(),
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// processSchema validates POST /v1/process bodies before they reach the
// engine.
const processSchema = `{
	"type": "object",
	"required": ["case_id", "sources"],
	"properties": {
		"case_id": {"type": "string", "minLength": 1},
		"sources": {
			"type": "array",
			"minItems": 1,
			"items": {
				"type": "object",
				"required": ["kind", "text"],
				"properties": {
					"kind": {"enum": ["xml", "pdf_ocr", "docx_ocr"]},
					"text": {"type": "string", "minLength": 1},
					"meta": {
						"type": "object",
						"properties": {
							"ocr_confidence": {"type": "number", "minimum": 0, "maximum": 1},
							"image_quality": {"type": "number", "minimum": 0, "maximum": 1},
							"has_ocr": {"type": "boolean"}
						}
					}
				}
			}
		}
	}
}`

// apiServer carries the dependencies of the HTTP handlers.
type apiServer struct {
	eng     *engine.Engine
	st      store.Store
	limiter *rate.Limiter
	schema  *jsonschema.Schema
}

func newAPIServer(eng *engine.Engine, st store.Store, limiter *rate.Limiter) *apiServer {
	return &apiServer{
		eng:     eng,
		st:      st,
		limiter: limiter,
		schema:  jsonschema.MustCompileString("process.json", processSchema),
	}
}

func (a *apiServer) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Use(a.rateLimit)
		r.Post("/process", a.handleProcess)
		r.Get("/runs", a.handleListRuns)
		r.Get("/runs/{id}", a.handleGetRun)
	})
	return r
}

func (a *apiServer) handleProcess(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if err := a.schema.Validate(doc); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req engine.Request
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request shape")
		return
	}

	run, err := a.eng.Process(r.Context(), req)
	if err != nil {
		zap.L().Error("process request failed",
			zap.String("case_id", req.CaseID),
			zap.Error(err))
		writeError(w, http.StatusUnprocessableEntity, "processing failed")
		return
	}
	if err := a.st.SaveRun(r.Context(), run); err != nil {
		zap.L().Error("persist run failed",
			zap.String("run_id", run.ID),
			zap.Error(err))
		writeError(w, http.StatusInternalServerError, "persist failed")
		return
	}

	writeJSON(w, http.StatusOK, run)
}

func (a *apiServer) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := a.st.GetRun(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (a *apiServer) handleListRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.RunFilter{
		CaseID:          q.Get("case_id"),
		NextAction:      model.NextAction(q.Get("next_action")),
		RequirementType: model.RequirementType(q.Get("requirement_type")),
	}
	if v := q.Get("limit"); v != "" {
		filter.Limit, _ = strconv.Atoi(v)
	}
	if v := q.Get("offset"); v != "" {
		filter.Offset, _ = strconv.Atoi(v)
	}

	runs, err := a.st.ListRuns(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list failed")
		return
	}
	if runs == nil {
		runs = []model.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (a *apiServer) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.limiter.Allow() {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requestLogger logs one line per request with status and latency.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)))
	})
}

func readBody(r *http.Request) ([]byte, error) {
	const maxBody = 10 << 20
	defer r.Body.Close()
	return io.ReadAll(http.MaxBytesReader(nil, r.Body, maxBody))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
