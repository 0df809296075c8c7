package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	delivery "fx-screener/internal/delivery/http"
	"fx-screener/internal/delivery/websocket"
	"fx-screener/internal/infrastructure/export"
	"fx-screener/internal/metrics"
	"fx-screener/internal/usecase"
)

func serveAction(ctx context.Context, cmd *cli.Command) error {
	a, err := newApp(ctx, cmd, nil)
	if err != nil {
		return err
	}

	go a.screener.Run(ctx)

	screenerHandler := delivery.NewScreenerHandler(ctx, a.screener, a.logger)
	tokenHandler := delivery.NewTokenHandler(a.tokens, a.screener)
	wsHandler := websocket.NewHandler(a.screener, a.cfg.App.PushInterval, a.logger)
	router := delivery.NewRouter(screenerHandler, tokenHandler, wsHandler, metrics.Handler(), a.logger)

	srv := &http.Server{
		Addr:              a.cfg.App.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info().Str("addr", srv.Addr).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	a.logger.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func scanAction(ctx context.Context, cmd *cli.Command) error {
	progress := newProgressReporter(os.Stderr)
	a, err := newApp(ctx, cmd, progress.Update)
	if err != nil {
		return err
	}

	report, err := a.screener.Scan(ctx)
	progress.Finish()
	if err != nil {
		return err
	}

	sortBy, desc, all := cmd.String("sort"), cmd.Bool("desc"), cmd.Bool("all")
	rows, err := a.screener.Opportunities(sortBy, desc, all)
	if err != nil {
		return err
	}

	fmt.Fprintln(os.Stdout, renderOpportunities(rows))
	fmt.Fprintf(os.Stdout, "\n%d/%d rows shown, %d instruments failed, took %s\n",
		len(rows), len(report.Rows), len(report.Failures), report.Duration.Round(time.Millisecond))
	for _, f := range report.Failures {
		fmt.Fprintf(os.Stdout, "  %s: %s (%s)\n", f.Instrument, f.Reason, f.Error)
	}

	if path := cmd.String("export"); path != "" {
		if err := exportFile(a.screener, path, sortBy, desc, all); err != nil {
			return err
		}
		a.logger.Info().Str("file", path).Msg("Exported table")
	}
	return nil
}

func exportFile(uc *usecase.ScreenerUsecase, path, sortBy string, desc, all bool) error {
	f, err := export.ParseFormat(filepath.Ext(path))
	if err != nil {
		return err
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}
	defer file.Close()

	if err := uc.Export(file, f, sortBy, desc, all); err != nil {
		return err
	}
	return file.Close()
}

func autopsyAction(ctx context.Context, cmd *cli.Command) error {
	progress := newProgressReporter(os.Stderr)
	a, err := newApp(ctx, cmd, progress.Update)
	if err != nil {
		return err
	}

	report, err := a.screener.Autopsy(ctx)
	progress.Finish()
	if err != nil {
		return err
	}

	fmt.Fprintln(os.Stdout, renderAutopsy(report.Rows))
	fmt.Fprintf(os.Stdout, "\n[%s] %s\n", strings.ToUpper(report.Diagnosis.Level), report.Diagnosis.Message)
	return nil
}

func main() {
	tableFlags := []cli.Flag{
		&cli.StringFlag{
			Name:  "sort",
			Usage: "Column to sort by (score, instrument, atr_pct, adx, rsi, price, direction, status)",
			Value: usecase.ColumnScore,
		},
		&cli.BoolFlag{
			Name:  "desc",
			Usage: "Sort descending",
			Value: true,
		},
		&cli.BoolFlag{
			Name:  "all",
			Usage: "Show every scored instrument, not only the opportunities",
		},
	}

	cmd := &cli.Command{
		Name:  "fx-screener",
		Usage: "Forex/CFD volatility screener",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the YAML configuration file",
				Sources: cli.EnvVars("FX_SCREENER_CONFIG"),
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level (debug, info, warn, error)",
			},
			&cli.StringFlag{
				Name:    "provider",
				Aliases: []string{"p"},
				Usage:   "Candle source (oanda, twelvedata, polygon)",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the dashboard, API and periodic scans",
				Action: serveAction,
			},
			{
				Name:  "scan",
				Usage: "Run one scan and print the table",
				Flags: append(tableFlags, &cli.StringFlag{
					Name:    "export",
					Aliases: []string{"o"},
					Usage:   "Write the table to `FILE` (.csv, .pdf or .png)",
				}),
				Action: scanAction,
			},
			{
				Name:   "autopsy",
				Usage:  "Print the raw last H1 indicator row of every instrument with a diagnosis",
				Action: autopsyAction,
			},
		},
		DefaultCommand: "serve",
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.Run(ctx, os.Args); err != nil {
		log.Fatal().Err(err).Msg("fx-screener failed")
	}
}
