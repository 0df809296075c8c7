package http

import (
	"embed"
	"html/template"
	"net/http"
	"strings"

	"fx-screener/internal/domain"
	"fx-screener/internal/usecase"
)

//go:embed templates/dashboard.html
var templatesFS embed.FS

var dashboardTmpl = template.Must(template.New("dashboard.html").Funcs(template.FuncMap{
	"lower": strings.ToLower,
}).ParseFS(templatesFS, "templates/dashboard.html"))

type dashboardRow struct {
	Cells     []string
	Direction string
	Status    string
}

type dashboardData struct {
	Columns    []string
	Rows       []dashboardRow
	Report     *domain.ScanReport
	Progress   domain.ScanProgress
	Thresholds domain.Thresholds
	Summary    string
	Sort       string
	Desc       bool
	All        bool
	Error      string
}

// Dashboard handles GET /
func (h *ScreenerHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	snap := h.uc.Snapshot()
	data := dashboardData{
		Columns:    usecase.Columns,
		Report:     snap.Report,
		Progress:   snap.Progress,
		Thresholds: h.uc.Thresholds(),
		Summary:    usecase.ThresholdsLine(h.uc.Thresholds()),
		Sort:       r.URL.Query().Get("sort"),
		Desc:       queryBool(r, "desc", true),
		All:        queryBool(r, "all", false),
	}

	rows, err := h.uc.Opportunities(data.Sort, data.Desc, data.All)
	if err != nil {
		data.Error = err.Error()
	}
	for _, o := range rows {
		data.Rows = append(data.Rows, dashboardRow{
			Cells:     usecase.Cells(o),
			Direction: string(o.Direction),
			Status:    string(o.Status),
		})
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := dashboardTmpl.Execute(w, data); err != nil {
		h.logger.Error().Err(err).Msg("Render dashboard")
	}
}
