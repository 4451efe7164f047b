package application

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"loadprofile/internal/audit"
	"loadprofile/internal/auth"
	consolidation "loadprofile/internal/consolidation/domain"
	"loadprofile/internal/consolidation/notify"
)

// ChannelReader turns one uploaded channel file into a raw series. It
// returns the number of table rows it had to skip.
type ChannelReader interface {
	ReadChannel(ctx context.Context, channelID string, r io.Reader) (consolidation.ChannelSeries, int, error)
}

// SupplementaryReader extracts per-group sheets from a workbook.
type SupplementaryReader interface {
	ReadSupplementary(ctx context.Context, r io.Reader) ([]consolidation.SupplementarySheet, []consolidation.Warning, error)
}

// TableSink receives finished tables (time-series export).
type TableSink interface {
	WriteTable(ctx context.Context, run *consolidation.Run, table *consolidation.Table) error
}

// Metrics records run outcomes.
type Metrics interface {
	ObserveRun(result string, duration time.Duration)
	IncWarning(kind string)
	AddChannels(count int)
	IncSinkWrite(result string)
}

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock uses time.Now.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// ChannelFile is one uploaded channel file.
type ChannelFile struct {
	Name string
	Data []byte
}

// ConsolidateCommand is the input of one run.
type ConsolidateCommand struct {
	TenantID string
	Actor    string
	Year     int
	Month    time.Month
	// Holidays is the raw comma separated input.
	Holidays      string
	HolidayPolicy HolidayPolicy
	Profile       string
	Files         []ChannelFile
	// Supplementary is the optional workbook; nil when not supplied.
	Supplementary []byte
	// Factors override the configured factor table per channel.
	Factors map[string]float64
	// ClientIP and UserAgent are recorded in the audit entry.
	ClientIP  string
	UserAgent string
}

// Result is the outcome of a run.
type Result struct {
	Run   *consolidation.Run
	Table *consolidation.Table
}

// Service runs consolidations.
type Service struct {
	engine        *consolidation.Engine
	channels      ChannelReader
	supplementary SupplementaryReader
	runs          consolidation.RunRepository
	cfg           Config
	sink          TableSink
	notifier      notify.Notifier
	metrics       Metrics
	auditLogger   audit.Logger
	clock         Clock
	logger        *log.Logger
}

// Option configures the service.
type Option func(*Service)

// WithSupplementaryReader enables supplementary workbooks.
func WithSupplementaryReader(reader SupplementaryReader) Option {
	return func(s *Service) { s.supplementary = reader }
}

// WithRunRepository persists run records.
func WithRunRepository(repo consolidation.RunRepository) Option {
	return func(s *Service) { s.runs = repo }
}

// WithSink forwards finished tables.
func WithSink(sink TableSink) Option {
	return func(s *Service) { s.sink = sink }
}

// WithNotifier announces runs that need attention.
func WithNotifier(notifier notify.Notifier) Option {
	return func(s *Service) { s.notifier = notifier }
}

// WithMetrics records run metrics.
func WithMetrics(metrics Metrics) Option {
	return func(s *Service) { s.metrics = metrics }
}

// WithAuditLogger writes an audit entry per run.
func WithAuditLogger(logger audit.Logger) Option {
	return func(s *Service) { s.auditLogger = logger }
}

// WithClock overrides the clock.
func WithClock(clock Clock) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// NewService constructs the service.
func NewService(engine *consolidation.Engine, channels ChannelReader, cfg Config, opts ...Option) (*Service, error) {
	if engine == nil {
		return nil, errors.New("consolidation service: nil engine")
	}
	if channels == nil {
		return nil, errors.New("consolidation service: nil channel reader")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Service{
		engine:   engine,
		channels: channels,
		cfg:      cfg,
		clock:    SystemClock{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Consolidate parses the uploaded files, runs the engine and records the run.
// ErrNoChannelsProvided is returned together with the grid-only result.
func (s *Service) Consolidate(ctx context.Context, cmd ConsolidateCommand) (*Result, error) {
	started := s.clock.Now()
	result, err := s.consolidate(ctx, cmd)
	outcome := "success"
	switch {
	case errors.Is(err, consolidation.ErrNoChannelsProvided):
		outcome = "no_channels"
	case err != nil:
		outcome = "error"
	}
	if s.metrics != nil {
		s.metrics.ObserveRun(outcome, s.clock.Now().Sub(started))
	}
	if err != nil && result == nil {
		s.logf("event=consolidation_failed tenant_id=%s period=%04d-%02d error=%v", cmd.TenantID, cmd.Year, int(cmd.Month), err)
	}
	return result, err
}

func (s *Service) consolidate(ctx context.Context, cmd ConsolidateCommand) (*Result, error) {
	cfg, err := s.cfg.ForProfile(cmd.Profile)
	if err != nil {
		return nil, err
	}
	opts, err := cfg.Options()
	if err != nil {
		return nil, err
	}

	var warnings []consolidation.Warning
	holidays, err := consolidation.ParseHolidays(cmd.Holidays)
	if err != nil {
		policy := cmd.HolidayPolicy
		if policy == "" {
			policy = cfg.HolidayPolicy
		}
		if policy == HolidayStrict {
			return nil, err
		}
		warnings = append(warnings, consolidation.NewWarning(consolidation.WarningInvalidHolidayFormat, cmd.Holidays,
			"holiday input is not a list of days 1..31; continuing without holidays"))
	}

	factors, err := consolidation.NewFactorTable(mergeFactors(cfg.Factors, cmd.Factors))
	if err != nil {
		return nil, err
	}

	series, parseWarnings, err := s.readChannels(ctx, cmd.Files, cfg.ParseWorkers)
	if err != nil {
		return nil, err
	}
	warnings = append(warnings, parseWarnings...)

	var sheets []consolidation.SupplementarySheet
	if cmd.Supplementary != nil {
		if s.supplementary == nil {
			return nil, errors.New("consolidation service: supplementary workbook not supported")
		}
		read, sheetWarnings, err := s.supplementary.ReadSupplementary(ctx, bytes.NewReader(cmd.Supplementary))
		switch {
		case ctx.Err() != nil:
			return nil, ctx.Err()
		case err != nil:
			warnings = append(warnings, consolidation.NewWarning(consolidation.WarningInvalidWorkbook, "supplementary",
				"workbook could not be read: %v; continuing without supplementary columns", err))
			s.logf("event=supplementary_unreadable tenant_id=%s error=%v", cmd.TenantID, err)
		default:
			sheets = read
			if sheets == nil {
				sheets = []consolidation.SupplementarySheet{}
			}
		}
		warnings = append(warnings, sheetWarnings...)
	}

	table, runErr := s.engine.Consolidate(consolidation.Request{
		Year:          cmd.Year,
		Month:         cmd.Month,
		Holidays:      holidays,
		Channels:      series,
		Factors:       factors,
		Supplementary: sheets,
		Options:       opts,
		Warnings:      warnings,
	})
	if table == nil {
		return nil, runErr
	}

	status := consolidation.RunCompleted
	if errors.Is(runErr, consolidation.ErrNoChannelsProvided) {
		status = consolidation.RunNoChannels
	}
	run, err := consolidation.NewRun(uuid.NewString(), cmd.TenantID, cmd.Actor, table, status, s.clock.Now())
	if err != nil {
		return nil, err
	}
	if s.runs != nil {
		if err := s.runs.Save(ctx, run); err != nil {
			return nil, fmt.Errorf("save run: %w", err)
		}
	}
	if s.sink != nil && status == consolidation.RunCompleted {
		result := "success"
		if err := s.sink.WriteTable(ctx, run, table); err != nil {
			result = "error"
			s.logf("event=consolidation_sink_failed run_id=%s error=%v", run.ID, err)
		}
		if s.metrics != nil {
			s.metrics.IncSinkWrite(result)
		}
	}
	if s.notifier != nil && notify.NeedsAttention(run) {
		if err := s.notifier.Notify(ctx, notify.NewRunMessage(run)); err != nil {
			s.logf("event=consolidation_notify_failed run_id=%s error=%v", run.ID, err)
		}
	}
	if s.metrics != nil {
		s.metrics.AddChannels(run.Channels)
		for _, warning := range table.Warnings {
			s.metrics.IncWarning(string(warning.Kind))
		}
	}
	s.audit(ctx, cmd, run)
	s.logf("event=consolidation_run run_id=%s tenant_id=%s period=%s status=%s channels=%d groups=%d warnings=%d",
		run.ID, run.TenantID, run.Period(), run.Status, run.Channels, len(run.Groups), len(run.Warnings))

	return &Result{Run: run, Table: table}, runErr
}

type parsedFile struct {
	series  *consolidation.ChannelSeries
	warning *consolidation.Warning
}

// readChannels parses files concurrently and returns them in upload order.
func (s *Service) readChannels(ctx context.Context, files []ChannelFile, workers int) ([]consolidation.ChannelSeries, []consolidation.Warning, error) {
	if workers <= 0 {
		workers = defaultParseWorkers
	}
	parsed := make([]parsedFile, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, file := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			series, skipped, err := s.channels.ReadChannel(gctx, file.Name, bytes.NewReader(file.Data))
			switch {
			case errors.Is(err, consolidation.ErrMissingTableMarker):
				w := consolidation.NewWarning(consolidation.WarningMissingTableMarker, file.Name, "table header not found; file skipped")
				parsed[i].warning = &w
			case err != nil:
				w := consolidation.NewWarning(consolidation.WarningInvalidChannelFile, file.Name, "%v; file skipped", err)
				parsed[i].warning = &w
			default:
				if skipped > 0 {
					w := consolidation.NewWarning(consolidation.WarningDiscardedReadings, file.Name, "%d unreadable rows skipped", skipped)
					parsed[i].warning = &w
				}
				parsed[i].series = &series
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	var series []consolidation.ChannelSeries
	var warnings []consolidation.Warning
	for _, p := range parsed {
		if p.warning != nil {
			warnings = append(warnings, *p.warning)
		}
		if p.series != nil {
			series = append(series, *p.series)
		}
	}
	return series, warnings, nil
}

// Get returns a stored run.
func (s *Service) Get(ctx context.Context, tenantID, id string) (*consolidation.Run, error) {
	if s.runs == nil {
		return nil, consolidation.ErrRunNotFound
	}
	return s.runs.Get(ctx, tenantID, id)
}

// List returns stored runs.
func (s *Service) List(ctx context.Context, filter consolidation.RunFilter) ([]*consolidation.Run, error) {
	if s.runs == nil {
		return nil, nil
	}
	return s.runs.List(ctx, filter)
}

func (s *Service) audit(ctx context.Context, cmd ConsolidateCommand, run *consolidation.Run) {
	if s.auditLogger == nil {
		return
	}
	entry := audit.Entry{
		TenantID:     cmd.TenantID,
		Actor:        cmd.Actor,
		Action:       "consolidation.run",
		ResourceType: "consolidation_run",
		ResourceID:   run.ID,
		IP:           cmd.ClientIP,
		UserAgent:    cmd.UserAgent,
	}
	entry.Metadata, _ = json.Marshal(map[string]any{
		"period":   run.Period(),
		"status":   run.Status,
		"channels": run.Channels,
		"warnings": len(run.Warnings),
	})
	if identity, ok := auth.IdentityFromContext(ctx); ok {
		entry.Role = string(identity.Role)
	}
	if err := s.auditLogger.Log(ctx, entry); err != nil {
		s.logf("event=consolidation_audit_failed run_id=%s error=%v", run.ID, err)
	}
}

func (s *Service) logf(format string, args ...any) {
	if s.logger == nil {
		return
	}
	s.logger.Printf(format, args...)
}
