package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/transporte-ba/paradas-cli/internal/cost"
	"github.com/transporte-ba/paradas-cli/internal/parada"
	"github.com/transporte-ba/paradas-cli/pkg/geocode"
)

// Runner drives geocoding over all rows: insufficient rows are classified
// without a call, cached coordinates short-circuit the provider, and the
// remainder go through the client one at a time under the requests-per-minute
// budget. All state is owned by the instance; nothing is package-level.
type Runner struct {
	Client        geocode.Client
	Cache         *geocode.Cache
	Reporter      Reporter
	Calculator    *cost.Calculator
	RatePerMinute int
	MaxRequests   int // 0 = unlimited
}

// Outcome is the final state of a run.
type Outcome struct {
	Results   []RowResult
	Artifacts Artifacts
}

// interCallDelay derives the fixed delay between successive provider calls
// from a requests-per-minute budget, rounding up.
func interCallDelay(ratePerMinute int) time.Duration {
	if ratePerMinute <= 0 {
		return 0
	}
	ms := (60_000 + int64(ratePerMinute) - 1) / int64(ratePerMinute)
	return time.Duration(ms) * time.Millisecond
}

// Run processes every row in original order and emits the terminal Complete
// event through the Reporter. A cancelled context stops issuing calls, marks
// the unresolved remainder pending, and still flushes partial artifacts; the
// context error is returned so callers can distinguish a truncated run.
func (r *Runner) Run(ctx context.Context, rows []parada.Row) (*Outcome, error) {
	runID := uuid.NewString()
	start := time.Now()

	// Width-1 limiter: the provider contract assumes a single in-flight
	// call regardless of which surface drives the run.
	sem := semaphore.NewWeighted(1)

	limiter := rate.NewLimiter(rate.Inf, 1)
	if delay := interCallDelay(r.RatePerMinute); delay > 0 {
		limiter = rate.NewLimiter(rate.Every(delay), 1)
	}

	report := &Report{RunID: runID, TotalRows: len(rows)}
	results := make([]RowResult, 0, len(rows))
	var runErr error
	var located, failed int

	for _, row := range rows {
		full := parada.NormalizeAddress(row)
		var result *geocode.Result
		var fromCache bool

		switch {
		case runErr != nil:
			result = &geocode.Result{Status: geocode.StatusPending}
			report.Pending++

		case parada.Insufficient(row):
			result = &geocode.Result{Status: geocode.StatusInsuficiente}
			report.Insuficientes++

		default:
			if entry, ok := r.Cache.Hit(full); ok {
				result = geocode.ResultOf(entry)
				fromCache = true
				report.CacheHits++
				break
			}

			if r.MaxRequests > 0 && report.Requests >= r.MaxRequests {
				result = &geocode.Result{Status: geocode.StatusPending}
				report.Pending++
				break
			}

			result, runErr = r.geocodeOne(ctx, sem, limiter, full)
			if runErr != nil {
				result = &geocode.Result{Status: geocode.StatusPending}
				report.Pending++
				break
			}

			report.Requests++
			report.Retries += result.Retries
			r.recordOutcome(report, result)

			r.Cache.Put(full, geocode.EntryOf(result))
			if err := r.Cache.Persist(); err != nil {
				zap.L().Warn("geocode cache persist failed", zap.Error(err))
			}
		}

		rr := RowResult{
			Row:         row,
			FullAddress: full,
			Result:      result,
			CacheHit:    fromCache,
		}
		results = append(results, rr)

		if result.Located() {
			located++
		} else if isFailure(result.Status) {
			failed++
		}

		r.Reporter.Progress(Update{
			RunID:     runID,
			Total:     len(rows),
			Processed: len(results),
			OK:        located,
			Errors:    failed,
			Address:   full,
		})
	}

	report.ElapsedMS = time.Since(start).Milliseconds()
	report.EstimatedCost = cost.FormatUSD(r.Calculator.Geocoding(report.Requests))

	fc, err := BuildFeatureCollection(results)
	if err != nil {
		r.Reporter.Error(err)
		return nil, err
	}

	artifacts := Artifacts{
		CSV:     BuildCSV(results),
		GeoJSON: fc,
		Report:  report,
	}
	r.Reporter.Complete(artifacts)

	return &Outcome{Results: results, Artifacts: artifacts}, runErr
}

// geocodeOne issues a single provider call under the width-1 semaphore and
// the inter-call pacing limiter.
func (r *Runner) geocodeOne(ctx context.Context, sem *semaphore.Weighted, limiter *rate.Limiter, address string) (*geocode.Result, error) {
	if err := sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer sem.Release(1)

	if err := limiter.Wait(ctx); err != nil {
		return nil, err
	}

	return r.Client.Geocode(ctx, address)
}

func (r *Runner) recordOutcome(report *Report, result *geocode.Result) {
	switch {
	case result.Located():
		report.OK++
	case result.Status == geocode.StatusZeroResults:
		report.ZeroResults++
	default:
		report.Errors++
	}
}

func isFailure(status string) bool {
	switch status {
	case geocode.StatusOK, geocode.StatusBajaPrecision,
		geocode.StatusInsuficiente, geocode.StatusPending:
		return false
	}
	return true
}

// PlanCalls counts the distinct normalized addresses that would require a
// provider call, for dry-run cost estimation.
func PlanCalls(rows []parada.Row, cache *geocode.Cache) int {
	seen := make(map[string]struct{})
	for _, row := range rows {
		if parada.Insufficient(row) {
			continue
		}
		full := parada.NormalizeAddress(row)
		if _, ok := cache.Hit(full); ok {
			continue
		}
		seen[full] = struct{}{}
	}
	return len(seen)
}
