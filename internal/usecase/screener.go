package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"fx-screener/internal/domain"
	"fx-screener/internal/infrastructure/indicators"
	"fx-screener/internal/metrics"
	"fx-screener/internal/util"
)

// CandleFetcher returns candles for every configured timeframe of an instrument.
type CandleFetcher interface {
	FetchMultiTimeframe(ctx context.Context, instrument string) (domain.MultiTimeframe, error)
	// Purge drops expired entries and returns how many are still cached.
	Purge() int
}

// TokenStore lists the devices registered for push notifications.
type TokenStore interface {
	GetAllTokens() []string
}

type ScreenerOptions struct {
	Instruments     []string
	Granularities   []domain.Granularity
	Indicators      indicators.Params
	Thresholds      domain.Thresholds
	RefreshInterval time.Duration
	NotifyCooldown  time.Duration

	// OnProgress, when set, is called before each instrument and once at the end.
	OnProgress func(domain.ScanProgress)
}

type ScreenerUsecase struct {
	repo      domain.ScreenerRepository
	candles   CandleFetcher
	tokenRepo TokenStore
	notifier  domain.Notifier
	opts      ScreenerOptions
	logger    zerolog.Logger
	now       func() time.Time

	scanning      atomic.Bool
	thresholds    domain.Thresholds
	notifiedPairs map[string]time.Time // last push per instrument
	mu            sync.RWMutex

	// reportMu orders threshold changes against report saves so the stored
	// rows are always scored with the current thresholds.
	reportMu sync.Mutex
}

func NewScreenerUsecase(repo domain.ScreenerRepository, candles CandleFetcher, tokenRepo TokenStore, notifier domain.Notifier, opts ScreenerOptions, logger zerolog.Logger) *ScreenerUsecase {
	return &ScreenerUsecase{
		repo:          repo,
		candles:       candles,
		tokenRepo:     tokenRepo,
		notifier:      notifier,
		opts:          opts,
		logger:        util.Component(logger, "screener"),
		now:           time.Now,
		thresholds:    opts.Thresholds,
		notifiedPairs: make(map[string]time.Time),
	}
}

// Run scans once, then every RefreshInterval until ctx is cancelled.
func (uc *ScreenerUsecase) Run(ctx context.Context) {
	uc.runScan(ctx, "scheduled")

	if uc.opts.RefreshInterval <= 0 {
		<-ctx.Done()
		return
	}

	ticker := time.NewTicker(uc.opts.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			uc.runScan(ctx, "scheduled")
		}
	}
}

func (uc *ScreenerUsecase) runScan(ctx context.Context, trigger string) {
	if _, err := uc.scan(ctx, trigger); err != nil {
		if errors.Is(err, domain.ErrScanInProgress) {
			uc.logger.Debug().Msg("Previous scan still running, skipping tick")
			return
		}
		if ctx.Err() == nil {
			uc.logger.Error().Err(err).Msg("Scan failed")
		}
	}
}

// Scan walks the instrument list one instrument at a time, scores every
// instrument and stores the ranked report.
func (uc *ScreenerUsecase) Scan(ctx context.Context) (domain.ScanReport, error) {
	return uc.scan(ctx, "manual")
}

func (uc *ScreenerUsecase) scan(ctx context.Context, trigger string) (domain.ScanReport, error) {
	if !uc.scanning.CompareAndSwap(false, true) {
		return domain.ScanReport{}, domain.ErrScanInProgress
	}
	defer uc.scanning.Store(false)

	start := uc.now()
	total := len(uc.opts.Instruments)
	thresholds := uc.Thresholds()
	uc.logger.Info().Int("instruments", total).Str("trigger", trigger).Msg("Starting screening cycle")

	cached := uc.candles.Purge()
	uc.logger.Debug().Int("cached", cached).Msg("Evicted expired candle cache entries")

	report := domain.ScanReport{
		ID:         uuid.NewString(),
		StartedAt:  start,
		Thresholds: thresholds,
	}

	rows := make([]domain.Opportunity, 0, total)
	for i, instrument := range uc.opts.Instruments {
		uc.setProgress(domain.ScanProgress{Running: true, Done: i, Total: total, Instrument: instrument})

		opp, failure, err := uc.evaluate(ctx, instrument, thresholds)
		if err != nil {
			uc.setProgress(domain.ScanProgress{})
			return domain.ScanReport{}, err
		}
		if failure != nil {
			report.Failures = append(report.Failures, *failure)
			continue
		}
		rows = append(rows, opp)
	}

	report.Scanned = total
	report.FinishedAt = uc.now()
	report.Duration = report.FinishedAt.Sub(start)

	uc.reportMu.Lock()
	if current := uc.Thresholds(); current != thresholds {
		for i := range rows {
			rows[i] = Rescore(rows[i], current)
		}
		report.Thresholds = current
	}
	report.Rows = Rank(rows)
	uc.repo.SaveReport(report)
	uc.reportMu.Unlock()

	uc.setProgress(domain.ScanProgress{Done: total, Total: total})
	uc.publishMetrics(report, trigger)

	uc.sendNotifications(ctx, Filter(report.Rows))

	uc.logger.Info().
		Dur("took", report.Duration).
		Int("scored", len(report.Rows)).
		Int("failed", len(report.Failures)).
		Int("qualified", len(Filter(report.Rows))).
		Msg("Cycle completed")
	return report, nil
}

func (uc *ScreenerUsecase) setProgress(p domain.ScanProgress) {
	uc.repo.SetProgress(p)
	if uc.opts.OnProgress != nil {
		uc.opts.OnProgress(p)
	}
}

// evaluate returns either a scored row or a failure. The error is only set
// when the context is done and the scan must stop.
func (uc *ScreenerUsecase) evaluate(ctx context.Context, instrument string, t domain.Thresholds) (domain.Opportunity, *domain.ScanFailure, error) {
	data, err := uc.candles.FetchMultiTimeframe(ctx, instrument)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return domain.Opportunity{}, nil, ctxErr
		}
		uc.logger.Warn().Err(err).Str("instrument", instrument).Msg("Candle fetch failed")
		return domain.Opportunity{}, &domain.ScanFailure{Instrument: instrument, Reason: domain.AutopsyFetchFailed, Error: err.Error()}, nil
	}

	last := make(map[domain.Granularity]domain.IndicatorRow, len(uc.opts.Granularities))
	for _, g := range uc.opts.Granularities {
		rows, err := indicators.Compute(data[g], uc.opts.Indicators)
		if err != nil {
			uc.logger.Warn().Err(err).Str("instrument", instrument).Str("granularity", g.String()).Msg("Indicator computation failed")
			return domain.Opportunity{}, &domain.ScanFailure{Instrument: instrument, Reason: domain.AutopsyIndicatorFailed, Error: err.Error()}, nil
		}
		row, _ := indicators.Last(rows)
		last[g] = row
	}

	opp, err := CalculateScore(instrument, last, uc.opts.Granularities, t)
	if err != nil {
		return domain.Opportunity{}, &domain.ScanFailure{Instrument: instrument, Reason: domain.AutopsyIndicatorFailed, Error: err.Error()}, nil
	}
	return opp, nil, nil
}

func (uc *ScreenerUsecase) publishMetrics(report domain.ScanReport, trigger string) {
	metrics.ScansTotal.WithLabelValues(trigger).Inc()
	metrics.ScanDuration.Observe(report.Duration.Seconds())

	counts := map[domain.Status]int{}
	for _, r := range Filter(report.Rows) {
		counts[r.Status]++
	}
	for _, s := range []domain.Status{domain.StatusStrong, domain.StatusSetup, domain.StatusWatch, domain.StatusAvoid} {
		metrics.Opportunities.WithLabelValues(string(s)).Set(float64(counts[s]))
	}
}

// Autopsy fetches and computes without any filtering, returning the last H1
// row of each instrument or the step that failed.
func (uc *ScreenerUsecase) Autopsy(ctx context.Context) (domain.AutopsyReport, error) {
	total := len(uc.opts.Instruments)
	rows := make([]domain.AutopsyRow, 0, total)
	for i, instrument := range uc.opts.Instruments {
		uc.setProgress(domain.ScanProgress{Running: true, Done: i, Total: total, Instrument: instrument})

		data, err := uc.candles.FetchMultiTimeframe(ctx, instrument)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				uc.setProgress(domain.ScanProgress{})
				return domain.AutopsyReport{}, ctxErr
			}
			rows = append(rows, domain.AutopsyRow{Instrument: instrument, Status: domain.AutopsyFetchFailed, Error: err.Error()})
			continue
		}

		computed, err := indicators.Compute(data[domain.GranularityH1], uc.opts.Indicators)
		if err != nil {
			rows = append(rows, domain.AutopsyRow{Instrument: instrument, Status: domain.AutopsyIndicatorFailed, Error: err.Error()})
			continue
		}
		last, _ := indicators.Last(computed)
		rows = append(rows, domain.AutopsyRow{Instrument: instrument, Status: domain.AutopsyOK, Row: &last})
	}
	uc.setProgress(domain.ScanProgress{Done: total, Total: total})

	return domain.AutopsyReport{
		GeneratedAt: uc.now(),
		Rows:        rows,
		Diagnosis:   Diagnose(rows),
	}, nil
}

// Diagnose explains an autopsy: nothing usable, ADX or ATR never computed,
// or data fine and the thresholds too strict.
func Diagnose(rows []domain.AutopsyRow) domain.Diagnosis {
	var ok, withADX, withATR int
	for _, r := range rows {
		if r.Status != domain.AutopsyOK || r.Row == nil {
			continue
		}
		ok++
		if r.Row.ADX > 0 {
			withADX++
		}
		if r.Row.ATR > 0 {
			withATR++
		}
	}

	switch {
	case ok == 0:
		return domain.Diagnosis{
			Level:   "error",
			Message: "Total failure: no instrument could be analysed. The API key or the data provider is the most likely cause.",
		}
	case withADX == 0:
		return domain.Diagnosis{
			Level:   "error",
			Message: "Problem detected: ADX is missing on every instrument. The ADX computation fails systematically.",
		}
	case withATR == 0:
		return domain.Diagnosis{
			Level:   "error",
			Message: "Problem detected: ATR is missing on every instrument. The ATR computation fails systematically.",
		}
	default:
		return domain.Diagnosis{
			Level:   "success",
			Message: fmt.Sprintf("Indicators computed for %d/%d instruments. If no opportunity shows up, the thresholds are too strict for current market conditions.", ok, len(rows)),
		}
	}
}

func (uc *ScreenerUsecase) Thresholds() domain.Thresholds {
	uc.mu.RLock()
	defer uc.mu.RUnlock()
	return uc.thresholds
}

// SetThresholds validates and applies new thresholds, then rescores the
// stored report without fetching candles again.
func (uc *ScreenerUsecase) SetThresholds(t domain.Thresholds) error {
	if err := t.Validate(); err != nil {
		return err
	}

	uc.reportMu.Lock()
	defer uc.reportMu.Unlock()

	uc.mu.Lock()
	uc.thresholds = t
	uc.mu.Unlock()

	report, ok := uc.repo.GetReport()
	if !ok {
		return nil
	}
	rows := make([]domain.Opportunity, len(report.Rows))
	for i, r := range report.Rows {
		rows[i] = Rescore(r, t)
	}
	report.Rows = Rank(rows)
	report.Thresholds = t
	uc.repo.SaveReport(report)

	uc.logger.Info().Int("qualified", len(Filter(report.Rows))).Msg("Thresholds updated")
	return nil
}

// Snapshot returns the last report, the qualified rows and scan progress.
func (uc *ScreenerUsecase) Snapshot() domain.Snapshot {
	snap := domain.Snapshot{
		Opportunities: []domain.Opportunity{},
		Progress:      uc.repo.GetProgress(),
	}
	if report, ok := uc.repo.GetReport(); ok {
		snap.Report = &report
		snap.Opportunities = Filter(report.Rows)
	}
	return snap
}

// Report returns the last stored scan.
func (uc *ScreenerUsecase) Report() (domain.ScanReport, bool) {
	return uc.repo.GetReport()
}

// Opportunities returns the report rows sorted by column. all=false keeps
// only the qualified rows.
func (uc *ScreenerUsecase) Opportunities(column string, desc, all bool) ([]domain.Opportunity, error) {
	report, ok := uc.repo.GetReport()
	if !ok {
		return []domain.Opportunity{}, nil
	}
	rows := report.Rows
	if !all {
		rows = Filter(rows)
	}
	return Sort(rows, column, desc)
}
