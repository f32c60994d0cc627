package main

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"github.com/okian/cfpboard/internal/adapters/http/api"
	"github.com/okian/cfpboard/internal/adapters/http/swagger"
	"github.com/okian/cfpboard/internal/adapters/llm"
	"github.com/okian/cfpboard/internal/adapters/repository"
	app "github.com/okian/cfpboard/internal/app"
	"github.com/okian/cfpboard/internal/auth"
	"github.com/okian/cfpboard/internal/config"
	"github.com/okian/cfpboard/internal/domain/ranking"
	"github.com/okian/cfpboard/internal/domain/screening"
	"github.com/okian/cfpboard/pkg/logger"
)

const llmTimeout = 30 * time.Second

// newDetector returns nil when screening is off. The duplicate check always
// runs first; the LLM check is appended when a provider is configured.
func newDetector(cfg *config.Config) (screening.Detector, error) {
	if !cfg.ScreeningEnabled {
		return nil, nil
	}
	detectors := []screening.Detector{screening.NewDuplicateDetector(cfg.DuplicateTitleThreshold)}
	if cfg.LLMScreening() {
		mws := []llm.Middleware{llm.MetricsMiddleware(), llm.TimeoutMiddleware(llmTimeout)}
		if cfg.ScreeningRPS > 0 {
			burst := max(cfg.ScreeningBurst, 1)
			mws = append(mws, llm.RateLimitMiddleware(rate.Limit(cfg.ScreeningRPS), burst))
		}
		client, err := llm.New(llm.Config{
			Provider: cfg.ScreeningProvider,
			APIKey:   cfg.ScreeningAPIKey,
			Model:    cfg.ScreeningModel,
			BaseURL:  cfg.ScreeningBaseURL,
			Timeout:  llmTimeout,
		}, mws...)
		if err != nil {
			return nil, errors.Wrap(err, "llm client")
		}
		detectors = append(detectors, llm.NewDetector(client))
	}
	return screening.Chain(detectors...), nil
}

// newIssuer builds the token issuer. Dev mode on the memory store may run
// without a configured secret; tokens then die with the process.
func newIssuer(ctx context.Context, cfg *config.Config, users auth.UserLookup) (*auth.Issuer, error) {
	secret := cfg.JWTSecret
	if len(secret) < auth.MinSecretLen && cfg.InsecureSecretAllowed() {
		logger.Get().Warn(ctx, "jwt_secret too short for dev mode; using an ephemeral secret")
		secret = uuid.NewString() + uuid.NewString()
	}
	return auth.NewIssuer(secret, auth.WithTTL(cfg.JWTTTL()), auth.WithUserLookup(users))
}

// newService wires the service from cfg around an open store.
func newService(ctx context.Context, cfg *config.Config, store repository.Store) (*app.Service, *auth.Issuer, error) {
	issuer, err := newIssuer(ctx, cfg, store)
	if err != nil {
		return nil, nil, err
	}
	detector, err := newDetector(cfg)
	if err != nil {
		return nil, nil, err
	}
	svc := app.New(
		app.WithLogger(logger.Get()),
		app.WithStore(store),
		app.WithIssuer(issuer),
		app.WithDetector(detector),
		app.WithRanker(ranking.New(ranking.WithBands(cfg.BandStrong, cfg.BandBorderline))),
		app.WithWorkerCount(cfg.ScreeningWorkers),
		app.WithQueueSize(cfg.ScreeningQueueSize),
		app.WithDedupeSize(cfg.ScreeningDedupeSize),
		app.WithMaxLeaderboardLimit(cfg.MaxLeaderboardLimit),
		app.WithLeaderboardConcurrency(cfg.LeaderboardConcurrency),
	)
	return svc, issuer, nil
}

// newHandler mounts the docs and business routes behind token parsing.
func newHandler(ctx context.Context, svc *app.Service, issuer *auth.Issuer) http.Handler {
	mux := http.NewServeMux()
	swagger.Register(ctx, mux)
	api.NewServer(svc).Register(ctx, mux)
	return issuer.Middleware(mux)
}
