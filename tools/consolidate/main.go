package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"loadprofile/internal/consolidation/application"
	consolidation "loadprofile/internal/consolidation/domain"
	"loadprofile/internal/consolidation/infrastructure/lpfile"
	"loadprofile/internal/consolidation/infrastructure/workbook"
	"loadprofile/internal/consolidation/interfaces"
)

type config struct {
	year          int
	month         int
	holidays      string
	holidayPolicy string
	configPath    string
	profile       string
	supplementary string
	factors       string
	format        string
	outDir        string
	tenantID      string
	actor         string
	files         []string
}

func main() {
	cfg, err := parseFlags()
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		flag.Usage()
		os.Exit(2)
	}

	format, err := interfaces.ParseFormat(cfg.format)
	if err != nil {
		fmt.Fprintln(os.Stderr, "format must be json, csv, xlsx or pdf")
		os.Exit(2)
	}

	consolidationCfg, err := loadConsolidationConfig(cfg.configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(2)
	}

	var factors map[string]float64
	if cfg.factors != "" {
		if err := json.Unmarshal([]byte(cfg.factors), &factors); err != nil {
			fmt.Fprintln(os.Stderr, "factors must be a JSON object of numbers:", err)
			os.Exit(2)
		}
	}

	files, err := readChannelFiles(cfg.files)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read channels:", err)
		os.Exit(2)
	}
	var supplementary []byte
	if cfg.supplementary != "" {
		supplementary, err = os.ReadFile(cfg.supplementary)
		if err != nil {
			fmt.Fprintln(os.Stderr, "read supplementary:", err)
			os.Exit(2)
		}
	}

	logger := log.New(os.Stderr, "", log.LstdFlags)
	service, err := application.NewService(
		consolidation.NewEngine(),
		lpfile.NewReader(),
		consolidationCfg,
		application.WithSupplementaryReader(workbook.NewReader()),
		application.WithLogger(logger),
	)
	if err != nil {
		fmt.Fprintln(os.Stderr, "service:", err)
		os.Exit(2)
	}

	ctx := context.Background()
	result, err := service.Consolidate(ctx, application.ConsolidateCommand{
		TenantID:      cfg.tenantID,
		Actor:         cfg.actor,
		Year:          cfg.year,
		Month:         time.Month(cfg.month),
		Holidays:      cfg.holidays,
		HolidayPolicy: application.HolidayPolicy(cfg.holidayPolicy),
		Profile:       cfg.profile,
		Files:         files,
		Supplementary: supplementary,
		Factors:       factors,
	})
	exitCode := 0
	switch {
	case errors.Is(err, consolidation.ErrNoChannelsProvided) && result != nil:
		fmt.Fprintln(os.Stderr, "warning:", err)
		exitCode = 1
	case err != nil:
		fmt.Fprintln(os.Stderr, "consolidate:", err)
		os.Exit(2)
	}

	for _, warning := range result.Table.Warnings {
		fmt.Fprintln(os.Stderr, "warning:", warning.String())
	}

	if err := os.MkdirAll(cfg.outDir, 0o755); err != nil {
		fmt.Fprintln(os.Stderr, "create out dir:", err)
		os.Exit(2)
	}
	path := filepath.Join(cfg.outDir, format.FileName(result.Table))
	if err := writeOutput(path, format, result); err != nil {
		fmt.Fprintln(os.Stderr, "write output:", err)
		os.Exit(2)
	}

	fmt.Printf("Consolidated %d channels into %d groups, written to %s\n", len(result.Table.Channels), len(result.Table.Groups), path)
	os.Exit(exitCode)
}

func parseFlags() (config, error) {
	var cfg config
	flag.IntVar(&cfg.year, "year", 0, "year of the consolidated month")
	flag.IntVar(&cfg.month, "month", 0, "month 1-12")
	flag.StringVar(&cfg.holidays, "holidays", "", "comma separated holiday days of month")
	flag.StringVar(&cfg.holidayPolicy, "holiday-policy", getenvDefault("CONSOLIDATION_HOLIDAY_POLICY", ""), "strict or lenient holiday parsing")
	flag.StringVar(&cfg.configPath, "config", getenvDefault("CONSOLIDATION_CONFIG", ""), "consolidation config yaml (optional)")
	flag.StringVar(&cfg.profile, "profile", "", "named profile in the config")
	flag.StringVar(&cfg.supplementary, "supplementary", "", "supplementary workbook path (optional)")
	flag.StringVar(&cfg.factors, "factors", "", `per-channel factors as JSON, e.g. {"Acos 1.LP":1000}`)
	flag.StringVar(&cfg.format, "format", "csv", "output format: csv, xlsx, pdf or json")
	flag.StringVar(&cfg.outDir, "out", "./out", "output directory")
	flag.StringVar(&cfg.tenantID, "tenant", getenvDefault("TENANT_ID", "local"), "tenant id recorded on the run")
	flag.StringVar(&cfg.actor, "actor", getenvDefault("USER", "cli"), "actor recorded on the run")
	flag.Parse()
	cfg.files = flag.Args()

	if cfg.year == 0 {
		return cfg, errors.New("missing --year")
	}
	if cfg.month == 0 {
		return cfg, errors.New("missing --month (1-12)")
	}
	switch application.HolidayPolicy(cfg.holidayPolicy) {
	case "", application.HolidayStrict, application.HolidayLenient:
	default:
		return cfg, errors.New("--holiday-policy must be strict or lenient")
	}
	return cfg, nil
}

func loadConsolidationConfig(path string) (application.Config, error) {
	if path == "" {
		cfg := application.DefaultConfig()
		return cfg, cfg.Validate()
	}
	return application.LoadConfigFile(path)
}

func readChannelFiles(paths []string) ([]application.ChannelFile, error) {
	files := make([]application.ChannelFile, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		files = append(files, application.ChannelFile{Name: filepath.Base(path), Data: data})
	}
	return files, nil
}

func writeOutput(path string, format interfaces.Format, result *application.Result) error {
	var (
		body []byte
		err  error
	)
	switch format {
	case interfaces.FormatJSON:
		body, err = json.MarshalIndent(interfaces.NewTableView(result.Run, result.Table), "", "  ")
	case interfaces.FormatCSV:
		var buf bytes.Buffer
		err = interfaces.WriteCSV(&buf, result.Table)
		body = buf.Bytes()
	case interfaces.FormatXLSX:
		body, err = interfaces.BuildXLSX(result.Run, result.Table)
	case interfaces.FormatPDF:
		body, err = interfaces.BuildSummaryPDF(result.Run, result.Table)
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, body, 0o644)
}

func getenvDefault(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}
