package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/marcelsud/tymbug/analyzer"
	"github.com/marcelsud/tymbug/auth"
	"github.com/marcelsud/tymbug/config"
	"github.com/marcelsud/tymbug/internal/http/chi"
	"github.com/marcelsud/tymbug/metrics"
	"github.com/marcelsud/tymbug/webhook"
	"github.com/marcelsud/tymbug/webhook/postgres"
	"github.com/marcelsud/tymbug/webhook/providers"
	"github.com/marcelsud/tymbug/webhook/replay"
)

const TIMEOUT = 30 * time.Second

/*
 * main é onde é feita toda a “amarração” dos demais pacotes:
 * iniciamos as dependências, fazemos as configurações e a invocação
 * dos pacotes que desempenham a lógica de negócio.
 *
 * As importações devem ser feitas apenas em uma direção: para baixo.
 * O aplicativo (api, cli) importa camadas de negócios, que importam a
 * camada de armazenamento
 */

func main() {
	log := zerolog.New(os.Stderr).With().Timestamp().Str("service", "tymbug").Logger()

	cfg, err := config.GetConfig()
	if err != nil {
		log.Error().Err(err).Msg("loading configuration")
		return
	}

	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT,
	)
	defer stop()

	repo, err := postgres.NewRepository(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error().Err(err).Msg("connecting to database")
		return
	}
	defer repo.Close(ctx)

	if err := repo.EnsureSchema(ctx); err != nil {
		log.Error().Err(err).Msg("preparing database schema")
		return
	}

	recorder, err := metrics.NewRecorder()
	if err != nil {
		log.Error().Err(err).Msg("setting up metrics")
		return
	}
	defer recorder.Shutdown(context.Background())

	registry, err := buildRegistry(cfg, repo)
	if err != nil {
		log.Error().Err(err).Msg("building provider registry")
		return
	}

	engine := replay.NewEngine(repo, cfg.BaseURL, log.With().Str("component", "replay").Logger())
	engine.Metrics = recorder

	service := webhook.NewService(repo)

	deps := chi.Deps{
		Webhooks: service,
		Registry: registry,
		Replayer: engine,
		Verifier: auth.NewJWTVerifier(cfg.AuthJWTSecret),
		Metrics:  recorder,
	}

	if cfg.OpenAIAPIKey != "" {
		client, err := analyzer.NewOpenAIClient(analyzer.OpenAIConfig{
			APIKey:   cfg.OpenAIAPIKey,
			Endpoint: cfg.OpenAIEndpoint,
		})
		if err != nil {
			log.Error().Err(err).Msg("setting up analysis client")
			return
		}
		deps.Analyzer = analyzer.New(client, cfg.OpenAIModel,
			analyzer.WithCache(cfg.AnalysisCacheTTL, cfg.AnalysisCacheSize),
			analyzer.WithLogger(log.With().Str("component", "analyzer").Logger()),
			analyzer.WithMetrics(recorder),
		)
	} else {
		log.Warn().Msg("OPENAI_API_KEY not set, analysis endpoint disabled")
	}

	r := chi.Handlers(ctx, deps)
	srv := &http.Server{
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		Addr:         ":" + cfg.Port,
		Handler:      r,
	}

	errShutdown := make(chan error, 1)
	go shutdown(srv, ctx, errShutdown)
	log.Info().Str("port", cfg.Port).Msg("listening")
	err = srv.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		log.Error().Err(err).Msg("serving")
		return
	}
	err = <-errShutdown
	if err != nil {
		log.Error().Err(err).Msg("shutting down")
		return
	}
}

// buildRegistry prefers the providers file; env vars cover the common
// single-secret GitHub setup without one.
func buildRegistry(cfg *config.Config, repo webhook.Repository) (*providers.Registry, error) {
	if cfg.ProvidersFile != "" {
		providerCfg, err := providers.LoadConfig(cfg.ProvidersFile)
		if err != nil {
			return nil, fmt.Errorf("loading providers file: %w", err)
		}
		return providers.BuildRegistry(providerCfg, repo), nil
	}

	return providers.BuildRegistry(providers.Config{
		Providers: []providers.ProviderConfig{{
			Name:             "github",
			Secret:           cfg.GithubWebhookSecret,
			RequireSignature: cfg.GithubRequireSignature,
		}},
	}, repo), nil
}

func shutdown(server *http.Server, ctxShutdown context.Context, errShutdown chan error) {
	<-ctxShutdown.Done()

	ctxTimeout, stop := context.WithTimeout(context.Background(), TIMEOUT)
	defer stop()

	err := server.Shutdown(ctxTimeout)
	switch err {
	case nil:
		errShutdown <- nil
	default:
		errShutdown <- fmt.Errorf("forcing closing the server")
	}
}
