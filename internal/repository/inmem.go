package repository

import (
	"sync"

	"fx-screener/internal/domain"
)

type InMemoryScreenerRepository struct {
	report   *domain.ScanReport
	progress domain.ScanProgress
	mu       sync.RWMutex
}

func NewInMemoryScreenerRepository() *InMemoryScreenerRepository {
	return &InMemoryScreenerRepository{}
}

func (r *InMemoryScreenerRepository) SaveReport(report domain.ScanReport) {
	r.mu.Lock()
	defer r.mu.Unlock()
	// Replace the whole report, a scan always covers every instrument.
	r.report = &report
}

func (r *InMemoryScreenerRepository) GetReport() (domain.ScanReport, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.report == nil {
		return domain.ScanReport{}, false
	}
	// Copy the rows so callers can sort without touching the stored report.
	report := *r.report
	report.Rows = append([]domain.Opportunity(nil), r.report.Rows...)
	report.Failures = append([]domain.ScanFailure(nil), r.report.Failures...)
	return report, true
}

func (r *InMemoryScreenerRepository) SetProgress(p domain.ScanProgress) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress = p
}

func (r *InMemoryScreenerRepository) GetProgress() domain.ScanProgress {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.progress
}
