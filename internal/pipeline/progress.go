// Package pipeline drives the geocoding of parsed spreadsheet rows: cache
// lookups, rate-limited provider calls, progress reporting and the final
// CSV/GeoJSON/report artifacts.
package pipeline

import (
	"os"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"
)

// Update is the per-row progress notification.
type Update struct {
	RunID     string `json:"run_id"`
	Total     int    `json:"total"`
	Processed int    `json:"procesadas"`
	OK        int    `json:"ok"`
	Errors    int    `json:"errores"`
	Address   string `json:"direccion"`
}

// Artifacts carries the three final outputs of a run.
type Artifacts struct {
	CSV     string             `json:"csv"`
	GeoJSON *FeatureCollection `json:"geojson"`
	Report  *Report            `json:"reporte"`
}

// Reporter receives live pipeline events. The batch CLI logs them; the
// streaming endpoint frames them as server-sent events.
type Reporter interface {
	Progress(u Update)
	Complete(a Artifacts)
	Error(err error)
}

// LogReporter writes progress to the zap logger, drawing a progress bar on
// stderr when it is a terminal.
type LogReporter struct {
	bar *progressbar.ProgressBar
}

// NewLogReporter creates a console reporter for a run over total rows.
func NewLogReporter(total int) *LogReporter {
	r := &LogReporter{}
	if isatty.IsTerminal(os.Stderr.Fd()) {
		r.bar = progressbar.NewOptions(total,
			progressbar.OptionSetDescription("Geocodificando paradas"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
	}
	return r
}

// Progress implements Reporter.
func (r *LogReporter) Progress(u Update) {
	if r.bar != nil {
		_ = r.bar.Set(u.Processed)
		return
	}
	zap.L().Info("fila procesada",
		zap.Int("procesadas", u.Processed),
		zap.Int("total", u.Total),
		zap.Int("ok", u.OK),
		zap.Int("errores", u.Errors),
		zap.String("direccion", u.Address),
	)
}

// Complete implements Reporter.
func (r *LogReporter) Complete(a Artifacts) {
	if r.bar != nil {
		_ = r.bar.Finish()
	}
	zap.L().Info("corrida completa",
		zap.String("run_id", a.Report.RunID),
		zap.Int("total", a.Report.TotalRows),
		zap.Int("ok", a.Report.OK),
		zap.Int("cache_hits", a.Report.CacheHits),
		zap.Int("pendientes", a.Report.Pending),
		zap.String("costo_estimado", a.Report.EstimatedCost),
	)
}

// Error implements Reporter.
func (r *LogReporter) Error(err error) {
	if r.bar != nil {
		_ = r.bar.Finish()
	}
	zap.L().Error("corrida abortada", zap.Error(err))
}
