// Package httpapi serves the pipeline over HTTP.
package httpapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jenkins-infra/incrementals-publisher/internal/domain/entities"
	"github.com/jenkins-infra/incrementals-publisher/internal/domain/interfaces"
	"github.com/jenkins-infra/incrementals-publisher/internal/external-adapters/metrics"
	"github.com/jenkins-infra/incrementals-publisher/internal/external-adapters/schema"
)

// maxTriggerBytes caps the trigger payload read from a request
const maxTriggerBytes = 1 << 20

// Pipeline runs the publication pipeline for one trigger
type Pipeline interface {
	Publish(ctx context.Context, trigger entities.Trigger) entities.PipelineResult
}

// ReadinessCheck reports whether a backing service is usable
type ReadinessCheck func(ctx context.Context) error

// RouterOptions configures the HTTP surface
type RouterOptions struct {
	Pipeline  Pipeline
	Validator *schema.Validator
	Logger    interfaces.Logger

	// Gatherer backs /metrics; nil uses the default gatherer
	Gatherer prometheus.Gatherer

	// RateLimit is the number of triggers accepted per minute per client; 0 disables it
	RateLimit int

	// Checks run on every /readyz request
	Checks map[string]ReadinessCheck

	// Middleware wraps the whole router (tracing)
	Middleware func(http.Handler) http.Handler
}

// Router builds the HTTP router with the trigger, health, readiness and metrics routes
func Router(opts RouterOptions) http.Handler {
	if opts.Logger == nil {
		opts.Logger = &interfaces.NoOpLogger{}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, req *http.Request) {
		ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
		defer cancel()
		for name, check := range opts.Checks {
			if err := check(ctx); err != nil {
				opts.Logger.Warn("readiness check failed", interfaces.F("check", name), interfaces.Err(err))
				http.Error(w, name+" not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	r.Method(http.MethodGet, "/metrics", metrics.Handler(opts.Gatherer))

	r.Group(func(r chi.Router) {
		if opts.RateLimit > 0 {
			r.Use(httprate.LimitByIP(opts.RateLimit, time.Minute))
		}
		r.Post("/", triggerHandler(opts))
	})

	if opts.Middleware != nil {
		return opts.Middleware(r)
	}
	return r
}

func triggerHandler(opts RouterOptions) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		data, err := io.ReadAll(http.MaxBytesReader(w, req.Body, maxTriggerBytes))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeResult(w, entities.PipelineResult{StatusCode: http.StatusRequestEntityTooLarge, Body: schema.MsgMalformedTrigger})
				return
			}
			writeResult(w, entities.PipelineResult{StatusCode: http.StatusBadRequest, Body: schema.MsgMalformedTrigger})
			return
		}

		trigger, err := opts.Validator.DecodeTrigger(data)
		if err != nil {
			opts.Logger.Warn("rejected trigger payload", interfaces.Err(err))
			writeResult(w, entities.PipelineResult{StatusCode: http.StatusBadRequest, Body: schema.MsgMalformedTrigger})
			return
		}

		// A caller hanging up must not abort an upload half way
		result := opts.Pipeline.Publish(context.WithoutCancel(req.Context()), trigger)
		writeResult(w, result)
	}
}

func writeResult(w http.ResponseWriter, result entities.PipelineResult) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(result.StatusCode)
	_, _ = io.WriteString(w, result.Body)
}
