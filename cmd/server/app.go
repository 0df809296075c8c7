package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"fx-screener/internal/config"
	"fx-screener/internal/domain"
	"fx-screener/internal/infrastructure/fcm"
	"fx-screener/internal/infrastructure/httpclient"
	"fx-screener/internal/infrastructure/oanda"
	"fx-screener/internal/infrastructure/polygon"
	"fx-screener/internal/infrastructure/twelvedata"
	"fx-screener/internal/repository"
	"fx-screener/internal/usecase"
	"fx-screener/internal/util"
)

// app holds the wired dependencies shared by every command.
type app struct {
	cfg      *config.Config
	logger   zerolog.Logger
	repo     *repository.InMemoryScreenerRepository
	tokens   *repository.TokenRepository
	candles  *repository.CandleRepository
	notifier *fcm.Client
	screener *usecase.ScreenerUsecase
}

func newApp(ctx context.Context, cmd *cli.Command, onProgress func(domain.ScanProgress)) (*app, error) {
	cfg, err := config.Load(cmd.String("config"), func(c *config.Config) {
		if cmd.IsSet("provider") {
			c.Broker.Provider = cmd.String("provider")
		}
		if cmd.IsSet("log-level") {
			c.App.LogLevel = cmd.String("log-level")
		}
	})
	if err != nil {
		return nil, err
	}

	logger := util.NewLogger(cfg.App.LogLevel, cfg.App.Env == "dev")
	log.Logger = logger

	source, err := newCandleSource(cfg, logger)
	if err != nil {
		return nil, err
	}

	granularities, err := cfg.Granularities()
	if err != nil {
		return nil, err
	}

	candles := repository.NewCandleRepository(source, repository.CandleRepositoryOptions{
		Granularities: granularities,
		Count:         cfg.Screener.CandleCount,
		TTL:           cfg.Screener.CacheTTL,
		Location:      cfg.Location(),
	}, logger)

	notifyOpts := fcm.Options{}
	if cfg.Notify.Enabled {
		notifyOpts = fcm.Options{CredentialsPath: cfg.Notify.CredentialsPath, CredentialsJSON: cfg.Notify.CredentialsJSON}
	}
	notifier, err := fcm.NewClient(ctx, notifyOpts, logger)
	if err != nil {
		return nil, err
	}

	repo := repository.NewInMemoryScreenerRepository()
	tokens := repository.NewTokenRepository()

	screener := usecase.NewScreenerUsecase(repo, candles, tokens, notifier, usecase.ScreenerOptions{
		Instruments:     cfg.Screener.Instruments,
		Granularities:   granularities,
		Indicators:      cfg.Indicators,
		Thresholds:      cfg.Thresholds,
		RefreshInterval: cfg.Screener.RefreshInterval,
		NotifyCooldown:  cfg.Notify.Cooldown,
		OnProgress:      onProgress,
	}, logger)

	logger.Info().
		Str("provider", source.Name()).
		Int("instruments", len(cfg.Screener.Instruments)).
		Strs("timeframes", cfg.Screener.Timeframes).
		Msg("Screener configured")

	return &app{
		cfg:      cfg,
		logger:   logger,
		repo:     repo,
		tokens:   tokens,
		candles:  candles,
		notifier: notifier,
		screener: screener,
	}, nil
}

func newCandleSource(cfg *config.Config, logger zerolog.Logger) (domain.CandleSource, error) {
	httpOpts := httpclient.ClientOptions{
		Timeout:         cfg.Broker.RequestTimeout,
		RequestsPerSec:  cfg.Broker.RequestsPerSec,
		MaxRetryTimeout: cfg.Broker.MaxRetryTimeout,
	}

	switch cfg.Broker.Provider {
	case "oanda":
		return oanda.NewClient(oanda.Options{
			AccessToken:  cfg.Broker.AccessToken,
			Environment:  cfg.Broker.Environment,
			BaseURL:      cfg.Broker.BaseURL,
			CompleteOnly: cfg.Screener.CompleteOnly,
			HTTP:         httpOpts,
		}, logger), nil
	case "twelvedata":
		return twelvedata.NewClient(twelvedata.ClientOptions{
			APIKey:       cfg.Broker.TwelveDataKey,
			BaseURL:      cfg.Broker.BaseURL,
			CompleteOnly: cfg.Screener.CompleteOnly,
			HTTP:         httpOpts,
		}, logger), nil
	case "polygon":
		return polygon.NewClient(polygon.Options{
			APIKey:       cfg.Broker.PolygonKey,
			CompleteOnly: cfg.Screener.CompleteOnly,
		}, logger)
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Broker.Provider)
	}
}
