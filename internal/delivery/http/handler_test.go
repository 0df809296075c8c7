package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/suite"

	"fx-screener/internal/domain"
	"fx-screener/internal/infrastructure/export"
	"fx-screener/internal/repository"
	"fx-screener/internal/usecase"
)

type fakeScreener struct {
	report     *domain.ScanReport
	thresholds domain.Thresholds
	scans      int
}

func (f *fakeScreener) Snapshot() domain.Snapshot {
	snap := domain.Snapshot{Opportunities: []domain.Opportunity{}}
	if f.report != nil {
		snap.Report = f.report
		snap.Opportunities = usecase.Filter(f.report.Rows)
	}
	return snap
}

func (f *fakeScreener) Report() (domain.ScanReport, bool) {
	if f.report == nil {
		return domain.ScanReport{}, false
	}
	return *f.report, true
}

func (f *fakeScreener) Opportunities(column string, desc, all bool) ([]domain.Opportunity, error) {
	if f.report == nil {
		return []domain.Opportunity{}, nil
	}
	rows := f.report.Rows
	if !all {
		rows = usecase.Filter(rows)
	}
	return usecase.Sort(rows, column, desc)
}

func (f *fakeScreener) Scan(ctx context.Context) (domain.ScanReport, error) {
	f.scans++
	return *f.report, nil
}

func (f *fakeScreener) Autopsy(ctx context.Context) (domain.AutopsyReport, error) {
	rows := []domain.AutopsyRow{{Instrument: "EUR_USD", Status: domain.AutopsyOK, Row: &domain.IndicatorRow{ADX: 30, ATR: 0.001}}}
	return domain.AutopsyReport{Rows: rows, Diagnosis: usecase.Diagnose(rows)}, nil
}

func (f *fakeScreener) Thresholds() domain.Thresholds { return f.thresholds }

func (f *fakeScreener) SetThresholds(t domain.Thresholds) error {
	if err := t.Validate(); err != nil {
		return err
	}
	f.thresholds = t
	return nil
}

func (f *fakeScreener) Export(w io.Writer, format export.Format, column string, desc, all bool) error {
	rows, err := f.Opportunities(column, desc, all)
	if err != nil {
		return err
	}
	return export.Write(w, format, usecase.BuildTable(rows, f.thresholds, time.Now()))
}

type fakeSender struct{ err error }

func (s fakeSender) SendTestNotification(ctx context.Context) (int, error) { return 1, s.err }

type HandlerSuite struct {
	suite.Suite
	screener *fakeScreener
	tokens   *repository.TokenRepository
	server   *httptest.Server
}

func (s *HandlerSuite) SetupTest() {
	s.screener = &fakeScreener{
		thresholds: domain.DefaultThresholds(),
		report: &domain.ScanReport{
			ID:      "scan-1",
			Scanned: 3,
			Rows: []domain.Opportunity{
				{Instrument: "EUR_USD", DisplayName: "EUR/USD", Direction: domain.DirectionBuy, Score: 6, MaxScore: 7, ADX: 31, Status: domain.StatusStrong, Qualified: true},
				{Instrument: "USD_JPY", DisplayName: "USD/JPY", Direction: domain.DirectionSell, Score: 4, MaxScore: 7, ADX: 26, Status: domain.StatusSetup, Qualified: true},
				{Instrument: "GBP_USD", DisplayName: "GBP/USD", Direction: domain.DirectionBuy, Score: 1, MaxScore: 7, ADX: 12, Status: domain.StatusAvoid},
			},
		},
	}
	s.tokens = repository.NewTokenRepository()

	screener := NewScreenerHandler(context.Background(), s.screener, zerolog.Nop())
	tokens := NewTokenHandler(s.tokens, fakeSender{err: usecase.ErrNoDevices})
	ws := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusTeapot) })
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { _, _ = io.WriteString(w, "ok") })

	s.server = httptest.NewServer(NewRouter(screener, tokens, ws, metrics, zerolog.Nop()))
}

func (s *HandlerSuite) TearDownTest() {
	s.server.Close()
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) do(method, path, body string) *http.Response {
	req, err := http.NewRequest(method, s.server.URL+path, strings.NewReader(body))
	s.Require().NoError(err)
	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	s.T().Cleanup(func() { resp.Body.Close() })
	return resp
}

func (s *HandlerSuite) TestOpportunitiesFilteredAndSorted() {
	resp := s.do(http.MethodGet, "/api/opportunities?sort=instrument&desc=false", "")
	s.Equal(http.StatusOK, resp.StatusCode)

	var rows []domain.Opportunity
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&rows))
	s.Require().Len(rows, 2)
	s.Equal("EUR_USD", rows[0].Instrument)
	s.Equal("USD_JPY", rows[1].Instrument)

	resp = s.do(http.MethodGet, "/api/opportunities?all=true", "")
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&rows))
	s.Len(rows, 3)
}

func (s *HandlerSuite) TestOpportunitiesBadColumn() {
	resp := s.do(http.MethodGet, "/api/opportunities?sort=volume", "")
	s.Equal(http.StatusBadRequest, resp.StatusCode)
}

func (s *HandlerSuite) TestReportNotFound() {
	s.screener.report = nil
	resp := s.do(http.MethodGet, "/api/report", "")
	s.Equal(http.StatusNotFound, resp.StatusCode)
}

func (s *HandlerSuite) TestScanWait() {
	resp := s.do(http.MethodPost, "/api/scan?wait=true", "")
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Equal(1, s.screener.scans)

	resp = s.do(http.MethodGet, "/api/scan", "")
	s.Equal(http.StatusMethodNotAllowed, resp.StatusCode)
}

func (s *HandlerSuite) TestThresholdsRoundTrip() {
	resp := s.do(http.MethodPut, "/api/thresholds", `{"minAdx": 30, "requireEmaTrend": true}`)
	s.Equal(http.StatusOK, resp.StatusCode)

	var got domain.Thresholds
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&got))
	s.Equal(30.0, got.MinADX)
	s.True(got.RequireEMATrend)
	s.Equal(domain.DefaultThresholds().RSIOverbought, got.RSIOverbought)

	resp = s.do(http.MethodPut, "/api/thresholds", `{"minScore": 9}`)
	s.Equal(http.StatusBadRequest, resp.StatusCode)

	resp = s.do(http.MethodPut, "/api/thresholds", `not json`)
	s.Equal(http.StatusBadRequest, resp.StatusCode)
}

func (s *HandlerSuite) TestExportCSV() {
	resp := s.do(http.MethodGet, "/api/export/csv?all=true", "")
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Equal("text/csv; charset=utf-8", resp.Header.Get("Content-Type"))
	s.Contains(resp.Header.Get("Content-Disposition"), ".csv")

	body, _ := io.ReadAll(resp.Body)
	s.Len(strings.Split(strings.TrimSpace(string(body)), "\n"), 4)
}

func (s *HandlerSuite) TestExportUnknownFormat() {
	resp := s.do(http.MethodGet, "/api/export/xlsx", "")
	s.Equal(http.StatusBadRequest, resp.StatusCode)
}

func (s *HandlerSuite) TestAutopsy() {
	resp := s.do(http.MethodGet, "/api/autopsy", "")
	var report domain.AutopsyReport
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&report))
	s.Equal("success", report.Diagnosis.Level)
}

func (s *HandlerSuite) TestDashboard() {
	resp := s.do(http.MethodGet, "/", "")
	s.Equal(http.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	html := string(body)
	s.Contains(html, "EUR/USD")
	s.Contains(html, "USD/JPY")
	s.NotContains(html, "GBP/USD")
	s.Contains(html, `class="buy strong"`)
}

func (s *HandlerSuite) TestTokens() {
	resp := s.do(http.MethodPost, "/api/tokens/register", `{"token":"abc","platform":"ios"}`)
	var tr TokenResponse
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&tr))
	s.True(tr.Success)
	s.Equal(1, tr.Count)

	resp = s.do(http.MethodPost, "/api/tokens/register", `{"platform":"ios"}`)
	s.Equal(http.StatusBadRequest, resp.StatusCode)

	resp = s.do(http.MethodGet, "/api/tokens/count", "")
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&tr))
	s.Equal(1, tr.Count)

	resp = s.do(http.MethodPost, "/api/tokens/test", "")
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&tr))
	s.False(tr.Success)
	s.Equal("No registered devices", tr.Message)

	resp = s.do(http.MethodPost, "/api/tokens/unregister", `{"token":"abc"}`)
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&tr))
	s.Equal(0, tr.Count)
}

func (s *HandlerSuite) TestHealthzAndMetrics() {
	resp := s.do(http.MethodGet, "/healthz", "")
	s.Equal(http.StatusOK, resp.StatusCode)

	resp = s.do(http.MethodGet, "/metrics", "")
	s.Equal(http.StatusOK, resp.StatusCode)
}
