package routes

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"stakepool/core/state"
	"stakepool/gateway/middleware"
)

// Config wires the read-only pool API.
type Config struct {
	Source NetworkSource
	// Store serves persisted snapshots. Snapshot routes answer 501 without it.
	Store         *state.Store
	Logger        *slog.Logger
	RateLimiter   *middleware.RateLimiter
	RateLimitKey  string
	Observability *middleware.Observability
	CORS          middleware.CORSConfig
}

type api struct {
	src    NetworkSource
	store  *state.Store
	logger *slog.Logger
}

func New(cfg Config) (http.Handler, error) {
	if cfg.Source.Net == nil {
		return nil, errors.New("routes: network source is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	a := &api{src: cfg.Source, store: cfg.Store, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.CORS(cfg.CORS))

	obs := cfg.Observability
	if obs != nil {
		r.Use(obs.Middleware("root"))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if obs != nil {
		r.Handle("/metrics", obs.MetricsHandler())
	}

	r.Route("/v1", func(sr chi.Router) {
		if cfg.RateLimiter != nil && cfg.RateLimitKey != "" {
			sr.Use(cfg.RateLimiter.Middleware(cfg.RateLimitKey))
		}
		sr.Get("/pool", a.getPool)
		sr.Get("/pool/loans/{validator}/{id}", a.getLoan)
		sr.Get("/controllers/{address}", a.getController)
		sr.Get("/collections/{address}", a.getCollection)
		sr.Get("/vouchers/{address}", a.getVoucher)
		sr.Get("/accounts/{address}", a.getAccount)
		sr.Get("/shares/{owner}", a.getShares)
		sr.Get("/fees/forward", a.getForwardFee)
		sr.Get("/snapshots", a.listSnapshots)
		sr.Get("/snapshots/{address}", a.getSnapshot)
	})

	return r, nil
}
