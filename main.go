package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"loadprofile/internal/audit"
	"loadprofile/internal/auth"
	"loadprofile/internal/consolidation/application"
	consolidation "loadprofile/internal/consolidation/domain"
	"loadprofile/internal/consolidation/infrastructure/influx"
	"loadprofile/internal/consolidation/infrastructure/lpfile"
	"loadprofile/internal/consolidation/infrastructure/memory"
	consolidationrepo "loadprofile/internal/consolidation/infrastructure/postgres"
	"loadprofile/internal/consolidation/infrastructure/workbook"
	consolidationhttp "loadprofile/internal/consolidation/interfaces/http"
	"loadprofile/internal/consolidation/notify"
	"loadprofile/internal/observability/metrics"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg := loadConfig()
	logger := log.New(os.Stdout, "", log.LstdFlags)

	consolidationCfg, err := application.LoadConfig()
	if err != nil {
		logger.Fatalf("consolidation config error: %v", err)
	}

	var (
		db          *sql.DB
		runRepo     consolidation.RunRepository
		auditLogger audit.Logger
	)
	if cfg.DatabaseURL != "" {
		db, err = sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			logger.Fatalf("db open error: %v", err)
		}
		defer db.Close()

		if err := db.Ping(); err != nil {
			logger.Fatalf("db ping error: %v", err)
		}
		runRepo = consolidationrepo.NewRunRepository(db)
		auditLogger = audit.NewRepository(db)
	} else {
		logger.Printf("event=storage_memory reason=no_database_url")
		runRepo = memory.NewRunRepository()
		auditLogger = audit.NewMemoryLog()
	}

	metrics.Init(db, logger)

	opts := []application.Option{
		application.WithSupplementaryReader(workbook.NewReader()),
		application.WithRunRepository(runRepo),
		application.WithMetrics(metrics.Recorder{}),
		application.WithAuditLogger(auditLogger),
		application.WithLogger(logger),
	}
	if cfg.Influx.Enabled() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.InfluxTimeout)
		sink, err := influx.NewSink(ctx, cfg.Influx)
		cancel()
		if err != nil {
			logger.Fatalf("influx sink error: %v", err)
		}
		defer sink.Close()
		opts = append(opts, application.WithSink(sink))
	}

	if cfg.WebhookURL != "" {
		opts = append(opts, application.WithNotifier(notify.NewWebhookNotifier(cfg.WebhookURL, cfg.WebhookTimeout)))
	}

	service, err := application.NewService(consolidation.NewEngine(), lpfile.NewReader(), consolidationCfg, opts...)
	if err != nil {
		logger.Fatalf("consolidation service error: %v", err)
	}
	consolidationHandler, err := consolidationhttp.NewHandler(service, consolidationhttp.WithMaxUploadBytes(cfg.MaxUploadBytes))
	if err != nil {
		logger.Fatalf("consolidation handler error: %v", err)
	}

	policy := auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, nil)
	authMiddleware := auth.NewMiddleware([]byte(cfg.JWTSecret), policy, auth.WithDenialLogger(logger))

	mux := http.NewServeMux()
	mux.Handle("/api/v1/consolidations", consolidationHandler)
	mux.Handle("/api/v1/consolidations/", consolidationHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			if err := db.PingContext(r.Context()); err != nil {
				http.Error(w, "db unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           loggingMiddleware(authMiddleware.Wrap(mux), logger),
		ReadHeaderTimeout: 10 * time.Second,
	}
	logger.Printf("http listening on %s", cfg.HTTPAddr)
	logger.Fatal(server.ListenAndServe())
}

type config struct {
	DatabaseURL    string
	HTTPAddr       string
	JWTSecret      string
	MaxUploadBytes int64
	Influx         influx.Config
	InfluxTimeout  time.Duration
	WebhookURL     string
	WebhookTimeout time.Duration
}

func loadConfig() config {
	cfg := config{
		DatabaseURL:    getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		HTTPAddr:       getenvDefault("HTTP_ADDR", ":8080"),
		JWTSecret:      getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", "")),
		MaxUploadBytes: getenvInt64Default("MAX_UPLOAD_BYTES", 0),
		Influx: influx.Config{
			URL:    getenvDefault("INFLUX_URL", ""),
			Token:  getenvDefault("INFLUX_TOKEN", ""),
			Org:    getenvDefault("INFLUX_ORG", ""),
			Bucket: getenvDefault("INFLUX_BUCKET", ""),
		},
		InfluxTimeout:  getenvDuration("INFLUX_TIMEOUT", 5*time.Second),
		WebhookURL:     getenvDefault("RUN_WEBHOOK_URL", ""),
		WebhookTimeout: getenvDuration("RUN_WEBHOOK_TIMEOUT", 10*time.Second),
	}
	if cfg.JWTSecret == "" {
		log.Fatal("AUTH_JWT_SECRET is required")
	}
	return cfg
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt64Default(key string, fallback int64) int64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
