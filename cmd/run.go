package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/transporte-ba/paradas-cli/internal/cost"
	"github.com/transporte-ba/paradas-cli/internal/parada"
	"github.com/transporte-ba/paradas-cli/internal/pipeline"
	"github.com/transporte-ba/paradas-cli/pkg/geocode"
)

var (
	runInput       string
	runSheet       string
	runRate        int
	runMaxRequests int
	runDryRun      bool
	runPais        string
	runLocalidad   string
	runOutputDir   string
	runCachePath   string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Geocodifica una planilla de paradas",
	Long: `Lee la planilla indicada, geocodifica cada parada respetando el límite de
llamadas por minuto y escribe paradas-geocoded.csv, paradas.geojson y
reporte.json en el directorio de salida. La caché persistente evita repetir
llamadas entre corridas.

Ejemplos:
  # Solo estimar el costo, sin llamadas
  paradas run --input paradas.xlsx --dry-run

  # Corrida completa con tope de llamadas
  paradas run --input paradas.xlsx --sheet Paradas --rate 30 --max-requests 100`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		rows, err := loadRows()
		if err != nil {
			return err
		}

		rates, err := cost.LoadRates(cfg.Geocode.RatesFile)
		if err != nil {
			return err
		}
		calc := cost.NewCalculator(rates)

		cachePath := runCachePath
		if cachePath == "" {
			cachePath = cfg.Geocode.CachePath
		}
		cache := geocode.OpenCache(cachePath)

		if runDryRun {
			calls := pipeline.PlanCalls(rows, cache)
			fmt.Printf("Filas: %d\n", len(rows))
			fmt.Printf("Llamadas necesarias: %d\n", calls)
			fmt.Printf("Costo estimado: %s\n", cost.FormatUSD(calc.Geocoding(calls)))
			return nil
		}

		if cfg.Google.APIKey == "" {
			return eris.New("run: falta la credencial de geocodificación (google.api_key)")
		}

		rate := runRate
		if rate <= 0 {
			rate = cfg.Geocode.RatePerMinute
		}

		client := geocode.NewClient(cfg.Google.APIKey,
			geocode.WithMaxRetries(cfg.Geocode.MaxRetries),
			geocode.WithRegion(cfg.Google.Region),
		)

		runner := &pipeline.Runner{
			Client:        client,
			Cache:         cache,
			Reporter:      pipeline.NewLogReporter(len(rows)),
			Calculator:    calc,
			RatePerMinute: rate,
			MaxRequests:   runMaxRequests,
		}

		zap.L().Info("iniciando corrida",
			zap.Int("filas", len(rows)),
			zap.Int("rate_por_minuto", rate),
			zap.Int("max_llamadas", runMaxRequests),
		)

		outcome, runErr := runner.Run(ctx, rows)
		if outcome != nil {
			if err := writeArtifacts(runOutputDir, outcome.Artifacts); err != nil {
				return err
			}
		}

		return runErr
	},
}

// loadRows reads and parses the input spreadsheet. Failures here are fatal
// setup errors: nothing has been geocoded yet.
func loadRows() ([]parada.Row, error) {
	if runInput == "" {
		return nil, eris.New("run: falta --input")
	}

	records, err := parada.ReadSheet(runInput, runSheet)
	if err != nil {
		return nil, err
	}

	pais := runPais
	if pais == "" {
		pais = cfg.Geocode.DefaultPais
	}
	localidad := runLocalidad
	if localidad == "" {
		localidad = cfg.Geocode.FallbackLocalidad
	}

	rows := parada.ParseRows(records, parada.ParseOptions{
		DefaultPais:       pais,
		FallbackLocalidad: localidad,
	})
	if len(rows) == 0 {
		return nil, eris.Errorf("run: la planilla %s no tiene filas de datos", runInput)
	}

	return rows, nil
}

// writeArtifacts persists the three output files alongside each other.
func writeArtifacts(dir string, a pipeline.Artifacts) error {
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return eris.Wrap(err, "run: crear directorio de salida")
		}
	}

	if err := os.WriteFile(filepath.Join(dir, "paradas-geocoded.csv"), []byte(a.CSV), 0o644); err != nil {
		return eris.Wrap(err, "run: escribir csv")
	}

	geojsonData, err := json.MarshalIndent(a.GeoJSON, "", "  ")
	if err != nil {
		return eris.Wrap(err, "run: serializar geojson")
	}
	if err := os.WriteFile(filepath.Join(dir, "paradas.geojson"), geojsonData, 0o644); err != nil {
		return eris.Wrap(err, "run: escribir geojson")
	}

	reportData, err := json.MarshalIndent(a.Report, "", "  ")
	if err != nil {
		return eris.Wrap(err, "run: serializar reporte")
	}
	if err := os.WriteFile(filepath.Join(dir, "reporte.json"), reportData, 0o644); err != nil {
		return eris.Wrap(err, "run: escribir reporte")
	}

	return nil
}

func init() {
	runCmd.Flags().StringVar(&runInput, "input", "", "planilla de paradas (.xlsx o .csv)")
	runCmd.Flags().StringVar(&runSheet, "sheet", "", "nombre de la hoja (default: primera)")
	runCmd.Flags().IntVar(&runRate, "rate", 0, "llamadas por minuto (default de config)")
	runCmd.Flags().IntVar(&runMaxRequests, "max-requests", 0, "tope de llamadas en esta corrida (0 = sin tope)")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "estimar costo sin llamar al proveedor")
	runCmd.Flags().StringVar(&runPais, "country", "", "país por defecto")
	runCmd.Flags().StringVar(&runLocalidad, "localidad", "", "localidad por defecto")
	runCmd.Flags().StringVar(&runOutputDir, "output-dir", "", "directorio de salida (default: actual)")
	runCmd.Flags().StringVar(&runCachePath, "cache", "", "ruta de la caché (default de config)")
	rootCmd.AddCommand(runCmd)
}
