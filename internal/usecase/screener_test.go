package usecase

import (
	"bytes"
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"

	"fx-screener/internal/domain"
	"fx-screener/internal/infrastructure/export"
	"fx-screener/internal/infrastructure/indicators"
	"fx-screener/internal/repository"
)

type fakeFetcher struct {
	mu    sync.Mutex
	calls int

	// hold parks the fetch of this instrument until release is closed.
	hold    string
	entered chan struct{}
	release chan struct{}
}

func trend(instrument string, g domain.Granularity, n int, slope float64) domain.Series {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := domain.Series{Instrument: instrument, Granularity: g, Candles: make([]domain.Candle, n)}
	base := 1.0
	if slope < 0 {
		base = 2.0
	}
	for i := 0; i < n; i++ {
		c := base + slope*float64(i) + 0.0015*math.Sin(float64(i))
		s.Candles[i] = domain.Candle{
			Time:     start.Add(time.Duration(i) * g.Duration()),
			Open:     c - slope/2,
			High:     c + 0.0008,
			Low:      c - 0.0008,
			Close:    c,
			Complete: true,
		}
	}
	return s
}

func (f *fakeFetcher) FetchMultiTimeframe(ctx context.Context, instrument string) (domain.MultiTimeframe, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	if instrument == f.hold && f.release != nil {
		f.entered <- struct{}{}
		<-f.release
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := domain.MultiTimeframe{}
	for _, g := range []domain.Granularity{domain.GranularityD, domain.GranularityH4, domain.GranularityH1} {
		switch instrument {
		case "EUR_USD":
			out[g] = trend(instrument, g, 150, 0.001)
		case "GBP_USD":
			out[g] = trend(instrument, g, 150, -0.001)
		case "SHORT_USD":
			out[g] = trend(instrument, g, 10, 0.001)
		default:
			return nil, errors.New("upstream unavailable")
		}
	}
	return out, nil
}

func (f *fakeFetcher) Purge() int { return 0 }

type fakeNotifier struct {
	mu     sync.Mutex
	titles []string
}

func (n *fakeNotifier) IsEnabled() bool { return true }

func (n *fakeNotifier) SendMulticast(_ context.Context, tokens []string, title, body string, data map[string]string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.titles = append(n.titles, title)
	return nil
}

type ScreenerSuite struct {
	suite.Suite
	repo     *repository.InMemoryScreenerRepository
	tokens   *repository.TokenRepository
	notifier *fakeNotifier
	fetcher  *fakeFetcher
	uc       *ScreenerUsecase
}

func (s *ScreenerSuite) SetupTest() {
	s.repo = repository.NewInMemoryScreenerRepository()
	s.tokens = repository.NewTokenRepository()
	s.tokens.RegisterToken("device-1", "android", time.Now())
	s.notifier = &fakeNotifier{}
	s.fetcher = &fakeFetcher{}
	s.uc = NewScreenerUsecase(s.repo, s.fetcher, s.tokens, s.notifier, ScreenerOptions{
		Instruments:    []string{"EUR_USD", "BAD_USD", "GBP_USD", "SHORT_USD"},
		Granularities:  []domain.Granularity{domain.GranularityD, domain.GranularityH4, domain.GranularityH1},
		Indicators:     indicators.DefaultParams(),
		Thresholds:     domain.DefaultThresholds(),
		NotifyCooldown: 30 * time.Minute,
	}, zerolog.Nop())
}

func TestScreenerSuite(t *testing.T) {
	suite.Run(t, new(ScreenerSuite))
}

func (s *ScreenerSuite) TestScanScoresAndRecordsFailures() {
	report, err := s.uc.Scan(context.Background())
	s.Require().NoError(err)

	s.NotEmpty(report.ID)
	s.Equal(4, report.Scanned)
	s.Require().Len(report.Rows, 2)
	s.Require().Len(report.Failures, 2)

	reasons := map[string]domain.AutopsyStatus{}
	for _, f := range report.Failures {
		reasons[f.Instrument] = f.Reason
	}
	s.Equal(domain.AutopsyFetchFailed, reasons["BAD_USD"])
	s.Equal(domain.AutopsyIndicatorFailed, reasons["SHORT_USD"])

	dirs := map[string]domain.Direction{}
	for _, r := range report.Rows {
		dirs[r.Instrument] = r.Direction
		s.Equal(MaxScore, r.MaxScore)
		s.Len(r.Timeframes, 3)
	}
	s.Equal(domain.DirectionBuy, dirs["EUR_USD"])
	s.Equal(domain.DirectionSell, dirs["GBP_USD"])
	s.GreaterOrEqual(report.Rows[0].Score, report.Rows[1].Score)

	stored, ok := s.repo.GetReport()
	s.Require().True(ok)
	s.Equal(report.ID, stored.ID)
	s.Equal(domain.ScanProgress{Done: 4, Total: 4}, s.repo.GetProgress())
}

func (s *ScreenerSuite) TestScanReportsProgress() {
	var events []domain.ScanProgress
	s.uc.opts.OnProgress = func(p domain.ScanProgress) { events = append(events, p) }

	_, err := s.uc.Scan(context.Background())
	s.Require().NoError(err)

	s.Require().Len(events, 5)
	s.Equal(domain.ScanProgress{Running: true, Done: 2, Total: 4, Instrument: "GBP_USD"}, events[2])
	s.False(events[4].Running)
	s.Equal(4, events[4].Done)
}

func (s *ScreenerSuite) TestScanRejectsConcurrentRun() {
	s.uc.scanning.Store(true)
	_, err := s.uc.Scan(context.Background())
	s.ErrorIs(err, domain.ErrScanInProgress)
}

func (s *ScreenerSuite) TestScanStopsOnCancelledContext() {
	var events []domain.ScanProgress
	s.uc.opts.OnProgress = func(p domain.ScanProgress) { events = append(events, p) }

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.uc.Scan(ctx)
	s.ErrorIs(err, context.Canceled)

	_, ok := s.repo.GetReport()
	s.False(ok)
	s.Require().Len(events, 2)
	s.Equal(domain.ScanProgress{}, events[1])
	s.Equal(domain.ScanProgress{}, s.repo.GetProgress())
}

func (s *ScreenerSuite) TestNotificationsRespectCooldown() {
	_, err := s.uc.Scan(context.Background())
	s.Require().NoError(err)

	report, _ := s.repo.GetReport()
	expected := 0
	for _, r := range Filter(report.Rows) {
		if r.Status == domain.StatusStrong || r.Status == domain.StatusSetup {
			expected++
		}
	}
	s.Require().Greater(expected, 0)
	s.Len(s.notifier.titles, expected)

	_, err = s.uc.Scan(context.Background())
	s.Require().NoError(err)
	s.Len(s.notifier.titles, expected, "cooldown should suppress repeats")
}

func (s *ScreenerSuite) TestSetThresholdsRescoresWithoutFetching() {
	_, err := s.uc.Scan(context.Background())
	s.Require().NoError(err)
	calls := s.fetcher.calls

	strict := domain.DefaultThresholds()
	strict.MinADX = 100
	strict.MinATRPercent = 100
	strict.MinScore = 7
	s.Require().NoError(s.uc.SetThresholds(strict))

	s.Equal(calls, s.fetcher.calls)
	s.Equal(strict, s.uc.Thresholds())
	snap := s.uc.Snapshot()
	s.Empty(snap.Opportunities)
	s.Require().NotNil(snap.Report)
	s.Equal(strict, snap.Report.Thresholds)
	for _, r := range snap.Report.Rows {
		s.NotContains(r.Rules, RuleADX)
		s.NotContains(r.Rules, RuleATRPercent)
	}
}

func (s *ScreenerSuite) TestThresholdsChangedDuringScanApplyToReport() {
	s.fetcher.hold = "GBP_USD"
	s.fetcher.entered = make(chan struct{}, 1)
	s.fetcher.release = make(chan struct{})

	done := make(chan error, 1)
	go func() {
		_, err := s.uc.Scan(context.Background())
		done <- err
	}()

	select {
	case <-s.fetcher.entered:
	case <-time.After(2 * time.Second):
		s.FailNow("scan never reached GBP_USD")
	}

	strict := domain.DefaultThresholds()
	strict.MinADX = 100
	strict.MinScore = 7
	s.Require().NoError(s.uc.SetThresholds(strict))
	close(s.fetcher.release)
	s.Require().NoError(<-done)

	report, ok := s.repo.GetReport()
	s.Require().True(ok)
	s.Equal(strict, report.Thresholds)
	s.Require().Len(report.Rows, 2)
	for _, r := range report.Rows {
		s.NotContains(r.Rules, RuleADX)
		s.False(r.Qualified)
	}
	s.Empty(s.uc.Snapshot().Opportunities)
	s.Empty(s.notifier.titles)
}

func (s *ScreenerSuite) TestSetThresholdsInvalid() {
	bad := domain.DefaultThresholds()
	bad.RSIOverbought = 40
	s.ErrorIs(s.uc.SetThresholds(bad), domain.ErrInvalidThresholds)
	s.Equal(domain.DefaultThresholds(), s.uc.Thresholds())
}

func (s *ScreenerSuite) TestOpportunitiesSorting() {
	rows, err := s.uc.Opportunities("instrument", false, true)
	s.Require().NoError(err)
	s.Empty(rows)

	_, err = s.uc.Scan(context.Background())
	s.Require().NoError(err)

	rows, err = s.uc.Opportunities("instrument", false, true)
	s.Require().NoError(err)
	s.Require().Len(rows, 2)
	s.Equal("EUR_USD", rows[0].Instrument)

	_, err = s.uc.Opportunities("volume", false, true)
	s.ErrorIs(err, ErrUnknownColumn)
}

func (s *ScreenerSuite) TestAutopsy() {
	report, err := s.uc.Autopsy(context.Background())
	s.Require().NoError(err)
	s.Require().Len(report.Rows, 4)

	s.Equal(domain.AutopsyOK, report.Rows[0].Status)
	s.Require().NotNil(report.Rows[0].Row)
	s.Greater(report.Rows[0].Row.ADX, 0.0)
	s.Equal(domain.AutopsyFetchFailed, report.Rows[1].Status)
	s.Equal(domain.AutopsyIndicatorFailed, report.Rows[3].Status)
	s.Equal("success", report.Diagnosis.Level)
}

func (s *ScreenerSuite) TestAutopsyReportsProgress() {
	var events []domain.ScanProgress
	s.uc.opts.OnProgress = func(p domain.ScanProgress) { events = append(events, p) }

	_, err := s.uc.Autopsy(context.Background())
	s.Require().NoError(err)

	s.Require().Len(events, 5)
	s.Equal(domain.ScanProgress{Running: true, Done: 1, Total: 4, Instrument: "BAD_USD"}, events[1])
	s.Equal(domain.ScanProgress{Done: 4, Total: 4}, events[4])
}

func (s *ScreenerSuite) TestSendTestNotification() {
	n, err := s.uc.SendTestNotification(context.Background())
	s.Require().NoError(err)
	s.Equal(1, n)
	s.Equal([]string{"Test Notification"}, s.notifier.titles)

	noStore := NewScreenerUsecase(s.repo, s.fetcher, nil, s.notifier, s.uc.opts, zerolog.Nop())
	_, err = noStore.SendTestNotification(context.Background())
	s.ErrorIs(err, ErrNoDevices)

	s.tokens.UnregisterToken("device-1")
	_, err = s.uc.SendTestNotification(context.Background())
	s.ErrorIs(err, ErrNoDevices)
}

func (s *ScreenerSuite) TestRunStopsOnCancel() {
	s.uc.opts.RefreshInterval = 10 * time.Millisecond
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.uc.Run(ctx)
		close(done)
	}()

	s.Eventually(func() bool {
		_, ok := s.repo.GetReport()
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		s.Fail("Run did not return after cancel")
	}
}

func (s *ScreenerSuite) TestExportCSV() {
	_, err := s.uc.Scan(context.Background())
	s.Require().NoError(err)

	var buf bytes.Buffer
	s.Require().NoError(s.uc.Export(&buf, export.FormatCSV, "instrument", false, true))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	s.Require().Len(lines, 3)
	s.True(strings.HasPrefix(lines[0], "Instrument,Direction"))
	s.True(strings.HasPrefix(lines[1], "EUR/USD,BUY"))
}

func TestDiagnose(t *testing.T) {
	assert.Equal(t, "error", Diagnose(nil).Level)
	assert.Contains(t, Diagnose([]domain.AutopsyRow{{Status: domain.AutopsyFetchFailed}}).Message, "Total failure")

	noADX := []domain.AutopsyRow{{Status: domain.AutopsyOK, Row: &domain.IndicatorRow{ATR: 0.001}}}
	assert.Contains(t, Diagnose(noADX).Message, "ADX")

	noATR := []domain.AutopsyRow{{Status: domain.AutopsyOK, Row: &domain.IndicatorRow{ADX: 30}}}
	assert.Contains(t, Diagnose(noATR).Message, "ATR")

	fine := []domain.AutopsyRow{
		{Status: domain.AutopsyOK, Row: &domain.IndicatorRow{ADX: 30, ATR: 0.001}},
		{Status: domain.AutopsyFetchFailed},
	}
	d := Diagnose(fine)
	assert.Equal(t, "success", d.Level)
	assert.Contains(t, d.Message, "1/2")
}
