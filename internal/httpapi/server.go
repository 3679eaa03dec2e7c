package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"classd/internal/classifier"
	"classd/internal/infer"
	"classd/internal/lifecycle"
	"classd/internal/registry"
	"classd/pkg/types"
)

// Service defines the controller methods required by the HTTP API layer.
type Service interface {
	Models() []types.ModelStatus
	Status() types.StatusResponse
	SelectConfiguration(remote, local types.ModelIdentity) error
	RequestDownload(explicit bool) error
	Progress() (float64, bool)
	Detect(ctx context.Context, image []byte) ([]types.Prediction, string, error)
	Ready() bool
}

func NewMux(svc Service) http.Handler {
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	// Compression for JSON endpoints
	r.Use(middleware.Compress(5))
	r.Use(MetricsMiddleware)
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
		}))
	}

	r.Get("/models", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, types.ModelsResponse{Models: svc.Models()})
	})

	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, svc.Status())
	})

	r.Get("/progress", func(w http.ResponseWriter, r *http.Request) {
		p, active := svc.Progress()
		writeJSON(w, types.ProgressResponse{Progress: p, Downloading: active})
	})

	r.Post("/select", func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		var req types.SelectRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		remote, local, ok := resolveSelection(req)
		if !ok {
			writeJSONError(w, http.StatusBadRequest, "selector or remote+local identities required, with a defined variant")
			return
		}
		resp := types.SelectResponse{
			Remote: registry.Describe(remote),
			Local:  registry.Describe(local),
		}
		// Registration failure is a warning: the configuration is selected
		// and usable, loading is attempted on demand.
		if warn := svc.SelectConfiguration(remote, local); warn != nil {
			resp.Warning = warn.Error()
		}
		writeJSON(w, resp)
	})

	r.Post("/download", func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		var req types.DownloadRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		err := svc.RequestDownload(req.Explicit)
		switch {
		case err == nil:
			writeJSON(w, svc.Status())
		case classifier.IsNotDownloaded(err):
			// Implicit fetch kicked off; completion arrives asynchronously.
			w.WriteHeader(http.StatusAccepted)
			writeJSON(w, svc.Status())
		case classifier.IsNotRegistered(err), lifecycle.IsNoSelection(err):
			writeJSONError(w, http.StatusConflict, err.Error())
		default:
			writeJSONError(w, http.StatusInternalServerError, err.Error())
		}
	})

	r.Post("/detect", func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		image, err := io.ReadAll(r.Body)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "failed to read image body")
			return
		}
		if len(image) == 0 {
			writeJSONError(w, http.StatusBadRequest, "image body is required")
			return
		}
		start := time.Now()
		lvl := requestLogLevel(r)
		// Join server base context with request context so shutdown cancels work too.
		joinedCtx, cancel := joinContexts(serverBaseCtx, r.Context())
		defer cancel()
		preds, model, err := svc.Detect(joinedCtx, image)
		if err != nil {
			// If context was canceled (client disconnect), just return.
			if r.Context().Err() != nil || serverBaseCtx.Err() != nil {
				return
			}
			status := detectErrorStatus(err)
			writeJSONError(w, status, err.Error())
			logDetect(r, lvl, status, model, time.Since(start), err)
			return
		}
		writeJSON(w, types.DetectResponse{Model: model, Predictions: preds})
		logDetect(r, lvl, http.StatusOK, model, time.Since(start), nil)
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("loading"))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(r)

	return r
}

// resolveSelection maps a SelectRequest to an identity pair. A request is
// valid when it carries a defined selector index, or both identities with
// selectable variants. Invalid client input is rejected here so the
// controller's fail-fast precondition only ever sees defined variants.
func resolveSelection(req types.SelectRequest) (remote, local types.ModelIdentity, ok bool) {
	if req.Selector != nil {
		idx := *req.Selector
		if idx != registry.SelectorQuantized && idx != registry.SelectorFloat {
			return remote, local, false
		}
		remote, local = registry.Identities(idx)
		return remote, local, true
	}
	if req.Remote == nil || req.Local == nil {
		return remote, local, false
	}
	if !req.Remote.Variant.Valid() || !req.Local.Variant.Valid() {
		return remote, local, false
	}
	remote = types.ModelIdentity{Kind: types.KindRemote, Variant: req.Remote.Variant}
	local = types.ModelIdentity{Kind: types.KindLocal, Variant: req.Local.Variant}
	return remote, local, true
}

// detectErrorStatus maps well-known controller errors to HTTP status codes.
func detectErrorStatus(err error) int {
	switch {
	case lifecycle.IsNoSelection(err), lifecycle.IsNotLoaded(err):
		return http.StatusConflict
	case classifier.IsRuntimeUnavailable(err):
		return http.StatusServiceUnavailable
	case infer.IsDetectFailed(err):
		if classifier.IsRuntimeUnavailable(errors.Unwrap(err)) {
			return http.StatusServiceUnavailable
		}
		return http.StatusUnprocessableEntity
	default:
		if he, ok := err.(HTTPError); ok {
			return he.StatusCode()
		}
		return http.StatusInternalServerError
	}
}

func logDetect(r *http.Request, lvl LogLevel, status int, model string, dur time.Duration, err error) {
	if lvl < LevelInfo {
		return
	}
	if zlog != nil {
		z := zlog.Info().Int("status", status).Str("model", model).Dur("dur", dur)
		if rid := middleware.GetReqID(r.Context()); rid != "" {
			z = z.Str("request_id", rid)
		}
		if err != nil {
			z = z.Err(err)
		}
		z.Msg("detect end")
		return
	}
	log.Printf("detect end status=%d model=%s dur=%s err=%v", status, model, dur, err)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to encode response")
	}
}
