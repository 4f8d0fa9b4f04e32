package pipeline

// Report summarizes a completed (or capped) run. Built once at the end of
// Run and never mutated afterwards.
type Report struct {
	RunID         string `json:"run_id"`
	TotalRows     int    `json:"total_filas"`
	Insuficientes int    `json:"insuficientes"`
	CacheHits     int    `json:"cache_hits"`
	OK            int    `json:"geocodificadas"`
	ZeroResults   int    `json:"sin_resultado"`
	Errors        int    `json:"con_error"`
	Pending       int    `json:"pendientes"`
	Requests      int    `json:"llamadas_emitidas"`
	Retries       int    `json:"reintentos"`
	ElapsedMS     int64  `json:"duracion_ms"`
	EstimatedCost string `json:"costo_estimado"`
}
