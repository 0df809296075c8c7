package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fx-screener/internal/domain"
)

func TestInMemoryScreenerRepositoryReport(t *testing.T) {
	repo := NewInMemoryScreenerRepository()

	_, ok := repo.GetReport()
	assert.False(t, ok)

	repo.SaveReport(domain.ScanReport{ID: "a", Rows: []domain.Opportunity{{Instrument: "EUR_USD"}}})
	got, ok := repo.GetReport()
	require.True(t, ok)
	assert.Equal(t, "a", got.ID)

	got.Rows[0].Instrument = "changed"
	again, _ := repo.GetReport()
	assert.Equal(t, "EUR_USD", again.Rows[0].Instrument)
}

func TestInMemoryScreenerRepositoryProgress(t *testing.T) {
	repo := NewInMemoryScreenerRepository()
	repo.SetProgress(domain.ScanProgress{Running: true, Done: 3, Total: 21, Instrument: "USD_JPY"})
	assert.Equal(t, 3, repo.GetProgress().Done)
}

func TestTokenRepository(t *testing.T) {
	repo := NewTokenRepository()
	now := time.Now()
	assert.True(t, repo.RegisterToken("a", "", now))
	assert.True(t, repo.RegisterToken("b", " IOS ", now))
	assert.False(t, repo.RegisterToken("a", "android", now.Add(time.Minute)))
	assert.Equal(t, 2, repo.GetTokenCount())
	assert.Equal(t, []string{"a", "b"}, repo.GetAllTokens())

	repo.UnregisterToken("a")
	assert.Equal(t, []string{"b"}, repo.GetAllTokens())
}
