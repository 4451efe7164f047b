package application

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"loadprofile/internal/audit"
	consolidation "loadprofile/internal/consolidation/domain"
	"loadprofile/internal/consolidation/notify"
)

type stubReader struct {
	series map[string]consolidation.ChannelSeries
	errs   map[string]error
}

func (s stubReader) ReadChannel(_ context.Context, channelID string, r io.Reader) (consolidation.ChannelSeries, int, error) {
	if _, err := io.ReadAll(r); err != nil {
		return consolidation.ChannelSeries{}, 0, err
	}
	if err := s.errs[channelID]; err != nil {
		return consolidation.ChannelSeries{}, 0, err
	}
	series, ok := s.series[channelID]
	if !ok {
		return consolidation.ChannelSeries{}, 0, errors.New("unknown file")
	}
	return series, 0, nil
}

type stubSheets struct {
	sheets   []consolidation.SupplementarySheet
	warnings []consolidation.Warning
	err      error
}

func (s stubSheets) ReadSupplementary(context.Context, io.Reader) ([]consolidation.SupplementarySheet, []consolidation.Warning, error) {
	if s.err != nil {
		return nil, nil, s.err
	}
	return s.sheets, s.warnings, nil
}

type stubRuns struct {
	mu   sync.Mutex
	runs map[string]*consolidation.Run
}

func (s *stubRuns) Save(_ context.Context, run *consolidation.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.runs == nil {
		s.runs = map[string]*consolidation.Run{}
	}
	s.runs[run.ID] = run.Clone()
	return nil
}

func (s *stubRuns) Get(_ context.Context, tenantID, id string) (*consolidation.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok || run.TenantID != tenantID {
		return nil, consolidation.ErrRunNotFound
	}
	return run.Clone(), nil
}

func (s *stubRuns) List(context.Context, consolidation.RunFilter) ([]*consolidation.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*consolidation.Run, 0, len(s.runs))
	for _, run := range s.runs {
		out = append(out, run.Clone())
	}
	return out, nil
}

type stubMetrics struct {
	mu       sync.Mutex
	results  []string
	warnings map[string]int
	channels int
}

func (m *stubMetrics) ObserveRun(result string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = append(m.results, result)
}

func (m *stubMetrics) IncWarning(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.warnings == nil {
		m.warnings = map[string]int{}
	}
	m.warnings[kind]++
}

func (m *stubMetrics) AddChannels(count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels += count
}

func (m *stubMetrics) IncSinkWrite(string) {}

type stubNotifier struct {
	mu       sync.Mutex
	messages []notify.RunMessage
}

func (n *stubNotifier) Notify(_ context.Context, msg notify.RunMessage) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, msg)
	return nil
}

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

func constant(channelID string, value float64) consolidation.ChannelSeries {
	start := time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)
	series := consolidation.ChannelSeries{ChannelID: channelID}
	for at := start.Add(consolidation.IntervalLength); !at.After(end); at = at.Add(consolidation.IntervalLength) {
		series.Readings = append(series.Readings, consolidation.Reading{At: at, Value: value})
	}
	return series
}

func newTestService(t *testing.T, reader ChannelReader, cfg Config, opts ...Option) *Service {
	t.Helper()
	svc, err := NewService(consolidation.NewEngine(), reader, cfg, opts...)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestNewServiceGuards(t *testing.T) {
	if _, err := NewService(nil, stubReader{}, DefaultConfig()); err == nil {
		t.Fatalf("expected nil engine error")
	}
	if _, err := NewService(consolidation.NewEngine(), nil, DefaultConfig()); err == nil {
		t.Fatalf("expected nil reader error")
	}
	if _, err := NewService(consolidation.NewEngine(), stubReader{}, Config{TariffRule: "bogus"}); err == nil {
		t.Fatalf("expected invalid config error")
	}
}

func TestConsolidate_PersistsRunAndKeepsUploadOrder(t *testing.T) {
	reader := stubReader{
		series: map[string]consolidation.ChannelSeries{
			"Huaura 1.LP": constant("Huaura 1.LP", 2),
			"Acos 1.LP":   constant("Acos 1.LP", 1),
			"Acos 2.LP":   constant("Acos 2.LP", 3),
		},
		errs: map[string]error{"Broken.LP": consolidation.ErrMissingTableMarker, "Garbage.LP": errors.New("bad row")},
	}
	runs := &stubRuns{}
	metrics := &stubMetrics{}
	auditLog := audit.NewMemoryLog()
	cfg := DefaultConfig()
	cfg.ParseWorkers = 2
	cfg.Factors = map[string]float64{"Acos 1.LP": 10}
	created := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	svc := newTestService(t, reader, cfg,
		WithRunRepository(runs),
		WithMetrics(metrics),
		WithAuditLogger(auditLog),
		WithClock(fixedClock{now: created}),
	)

	result, err := svc.Consolidate(context.Background(), ConsolidateCommand{
		TenantID: "tenant-a",
		Actor:    "user-1",
		Year:     2024,
		Month:    time.February,
		Holidays: "5",
		Files: []ChannelFile{
			{Name: "Huaura 1.LP", Data: []byte("x")},
			{Name: "Broken.LP", Data: []byte("x")},
			{Name: "Acos 1.LP", Data: []byte("x")},
			{Name: "Garbage.LP", Data: []byte("x")},
			{Name: "Acos 2.LP", Data: []byte("x")},
		},
	})
	if err != nil {
		t.Fatalf("consolidate: %v", err)
	}

	var ids []string
	for _, channel := range result.Table.Channels {
		ids = append(ids, channel.ChannelID)
	}
	if len(ids) != 3 || ids[0] != "Huaura 1.LP" || ids[1] != "Acos 1.LP" || ids[2] != "Acos 2.LP" {
		t.Fatalf("unexpected channel order %v", ids)
	}
	group, ok := result.Table.Group("ACOS")
	if !ok {
		t.Fatalf("missing ACOS group")
	}
	if group.Total[0] != 13 {
		t.Fatalf("expected weighted total 13, got %v", group.Total[0])
	}

	kinds := map[consolidation.WarningKind]string{}
	for _, warning := range result.Table.Warnings {
		kinds[warning.Kind] = warning.Subject
	}
	if kinds[consolidation.WarningMissingTableMarker] != "Broken.LP" || kinds[consolidation.WarningInvalidChannelFile] != "Garbage.LP" {
		t.Fatalf("unexpected warnings %v", result.Table.Warnings)
	}

	run := result.Run
	if run.Status != consolidation.RunCompleted || run.Channels != 3 || !run.CreatedAt.Equal(created) {
		t.Fatalf("unexpected run %+v", run)
	}
	stored, err := svc.Get(context.Background(), "tenant-a", run.ID)
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if stored.Period() != "2024-02" || len(stored.Groups) != 2 {
		t.Fatalf("unexpected stored run %+v", stored)
	}
	if _, err := svc.Get(context.Background(), "tenant-b", run.ID); !errors.Is(err, consolidation.ErrRunNotFound) {
		t.Fatalf("expected not found for other tenant, got %v", err)
	}

	if len(metrics.results) != 1 || metrics.results[0] != "success" || metrics.channels != 3 {
		t.Fatalf("unexpected metrics %+v", metrics)
	}
	entries := auditLog.Entries()
	if len(entries) != 1 || entries[0].Action != "consolidation.run" || entries[0].ResourceID != run.ID {
		t.Fatalf("unexpected audit entries %+v", entries)
	}
}

func TestConsolidate_HolidayPolicy(t *testing.T) {
	reader := stubReader{series: map[string]consolidation.ChannelSeries{"Acos 1.LP": constant("Acos 1.LP", 1)}}
	svc := newTestService(t, reader, DefaultConfig())
	cmd := ConsolidateCommand{
		Year:     2024,
		Month:    time.February,
		Holidays: "5,x",
		Files:    []ChannelFile{{Name: "Acos 1.LP", Data: []byte("x")}},
	}

	result, err := svc.Consolidate(context.Background(), cmd)
	if err != nil {
		t.Fatalf("lenient consolidate: %v", err)
	}
	if len(result.Run.Holidays) != 0 {
		t.Fatalf("expected no holidays, got %v", result.Run.Holidays)
	}
	found := false
	for _, warning := range result.Table.Warnings {
		if warning.Kind == consolidation.WarningInvalidHolidayFormat {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected invalid holiday warning")
	}

	cmd.HolidayPolicy = HolidayStrict
	if _, err := svc.Consolidate(context.Background(), cmd); !errors.Is(err, consolidation.ErrInvalidHolidayFormat) {
		t.Fatalf("expected ErrInvalidHolidayFormat, got %v", err)
	}
}

func TestConsolidate_NoUsableChannels(t *testing.T) {
	reader := stubReader{errs: map[string]error{"Broken.LP": consolidation.ErrMissingTableMarker}}
	runs := &stubRuns{}
	metrics := &stubMetrics{}
	notifier := &stubNotifier{}
	svc := newTestService(t, reader, DefaultConfig(), WithRunRepository(runs), WithMetrics(metrics), WithNotifier(notifier))

	result, err := svc.Consolidate(context.Background(), ConsolidateCommand{
		Year:  2024,
		Month: time.February,
		Files: []ChannelFile{{Name: "Broken.LP", Data: []byte("x")}},
	})
	if !errors.Is(err, consolidation.ErrNoChannelsProvided) {
		t.Fatalf("expected ErrNoChannelsProvided, got %v", err)
	}
	if result == nil || result.Table.Rows() != 29*96 || len(result.Table.Columns) != 0 {
		t.Fatalf("expected grid-only table")
	}
	if result.Run.Status != consolidation.RunNoChannels {
		t.Fatalf("expected no_channels status, got %s", result.Run.Status)
	}
	if len(metrics.results) != 1 || metrics.results[0] != "no_channels" {
		t.Fatalf("unexpected metrics %v", metrics.results)
	}
	if len(notifier.messages) != 1 || notifier.messages[0].Status != string(consolidation.RunNoChannels) {
		t.Fatalf("expected one no_channels notice, got %+v", notifier.messages)
	}
	if notifier.messages[0].Warnings[string(consolidation.WarningMissingTableMarker)] != 1 {
		t.Fatalf("expected missing table marker warning in notice, got %+v", notifier.messages[0].Warnings)
	}
}

func TestConsolidate_InvalidMonth(t *testing.T) {
	svc := newTestService(t, stubReader{}, DefaultConfig())
	if _, err := svc.Consolidate(context.Background(), ConsolidateCommand{Year: 2024, Month: 13}); !errors.Is(err, consolidation.ErrInvalidMonth) {
		t.Fatalf("expected ErrInvalidMonth, got %v", err)
	}
}

func TestConsolidate_SupplementaryWorkbook(t *testing.T) {
	reader := stubReader{series: map[string]consolidation.ChannelSeries{"Acos 1.LP": constant("Acos 1.LP", 1)}}
	sheets := stubSheets{sheets: []consolidation.SupplementarySheet{{
		Sheet:  "Acos",
		Fields: []string{"Irradiance"},
		Rows: []consolidation.SupplementaryRow{
			{At: time.Date(2024, 2, 1, 0, 15, 0, 0, time.UTC), Values: []consolidation.Cell{{Value: 640}}},
		},
	}}}
	svc := newTestService(t, reader, DefaultConfig(), WithSupplementaryReader(sheets))

	result, err := svc.Consolidate(context.Background(), ConsolidateCommand{
		Year:          2024,
		Month:         time.February,
		Files:         []ChannelFile{{Name: "Acos 1.LP", Data: []byte("x")}},
		Supplementary: []byte("workbook"),
	})
	if err != nil {
		t.Fatalf("consolidate: %v", err)
	}
	column, ok := result.Table.Column("ACOS Irradiance")
	if !ok {
		t.Fatalf("expected supplementary column, header %v", result.Table.Header())
	}
	if column.Cells[0].Value != 640 || column.Cells[1].Value != 0 {
		t.Fatalf("unexpected supplementary cells %v", column.Cells[:2])
	}
}

func TestConsolidate_ProfileAndRequestFactors(t *testing.T) {
	reader := stubReader{series: map[string]consolidation.ChannelSeries{"Acos 1.LP": constant("Acos 1.LP", 1)}}
	cfg := DefaultConfig()
	cfg.Profiles = map[string]Profile{"site": {Factors: map[string]float64{"Acos 1.LP": 4}}}
	svc := newTestService(t, reader, cfg)

	cmd := ConsolidateCommand{
		Year:    2024,
		Month:   time.February,
		Profile: "site",
		Files:   []ChannelFile{{Name: "Acos 1.LP", Data: []byte("x")}},
	}
	result, err := svc.Consolidate(context.Background(), cmd)
	if err != nil {
		t.Fatalf("consolidate: %v", err)
	}
	if group, _ := result.Table.Group("ACOS"); group.Total[0] != 4 {
		t.Fatalf("expected profile factor 4, got %v", group.Total[0])
	}

	cmd.Factors = map[string]float64{"Acos 1.LP": 9}
	result, err = svc.Consolidate(context.Background(), cmd)
	if err != nil {
		t.Fatalf("consolidate: %v", err)
	}
	if group, _ := result.Table.Group("ACOS"); group.Total[0] != 9 {
		t.Fatalf("expected request factor 9, got %v", group.Total[0])
	}

	cmd.Factors = map[string]float64{"Acos 1.LP": -1}
	if _, err := svc.Consolidate(context.Background(), cmd); !errors.Is(err, consolidation.ErrInvalidFactor) {
		t.Fatalf("expected ErrInvalidFactor, got %v", err)
	}
}

func TestConsolidate_UnreadableWorkbookKeepsRun(t *testing.T) {
	reader := stubReader{series: map[string]consolidation.ChannelSeries{"Acos 1.LP": constant("Acos 1.LP", 2)}}
	runs := &stubRuns{}
	sheets := stubSheets{err: errors.New(`workbook: sheet "Acos": broken`)}
	svc := newTestService(t, reader, DefaultConfig(), WithSupplementaryReader(sheets), WithRunRepository(runs))

	result, err := svc.Consolidate(context.Background(), ConsolidateCommand{
		TenantID:      "tenant-1",
		Year:          2024,
		Month:         time.February,
		Files:         []ChannelFile{{Name: "Acos 1.LP", Data: []byte("x")}},
		Supplementary: []byte("not a workbook"),
	})
	if err != nil {
		t.Fatalf("consolidate: %v", err)
	}
	if result == nil || result.Table.Rows() != 29*96 {
		t.Fatalf("expected full table despite unreadable workbook")
	}
	if group, ok := result.Table.Group("ACOS"); !ok || group.Total[0] != 2 {
		t.Fatalf("expected ACOS totals from the channel, got %+v", group)
	}
	for _, column := range result.Table.Columns {
		if column.Kind == consolidation.ColumnSupplementary {
			t.Fatalf("unexpected supplementary column %s", column.Name)
		}
	}
	if !hasWarning(result.Table.Warnings, consolidation.WarningInvalidWorkbook) {
		t.Fatalf("expected invalid workbook warning, got %v", result.Table.Warnings)
	}
	if result.Run.Status != consolidation.RunCompleted || len(runs.runs) != 1 {
		t.Fatalf("expected a stored completed run")
	}
}

func TestConsolidate_UnreadableSheetWarningsKept(t *testing.T) {
	reader := stubReader{series: map[string]consolidation.ChannelSeries{"Acos 1.LP": constant("Acos 1.LP", 1)}}
	sheets := stubSheets{
		sheets:   []consolidation.SupplementarySheet{},
		warnings: []consolidation.Warning{consolidation.NewWarning(consolidation.WarningInvalidSupplementarySheet, "Acos", "broken")},
	}
	svc := newTestService(t, reader, DefaultConfig(), WithSupplementaryReader(sheets))

	result, err := svc.Consolidate(context.Background(), ConsolidateCommand{
		Year:          2024,
		Month:         time.February,
		Files:         []ChannelFile{{Name: "Acos 1.LP", Data: []byte("x")}},
		Supplementary: []byte("workbook"),
	})
	if err != nil {
		t.Fatalf("consolidate: %v", err)
	}
	if !hasWarning(result.Table.Warnings, consolidation.WarningInvalidSupplementarySheet) {
		t.Fatalf("expected invalid sheet warning, got %v", result.Table.Warnings)
	}
}

func TestConsolidate_UnknownProfile(t *testing.T) {
	reader := stubReader{series: map[string]consolidation.ChannelSeries{"Acos 1.LP": constant("Acos 1.LP", 1)}}
	cfg := DefaultConfig()
	cfg.Profiles = map[string]Profile{"site": {Factors: map[string]float64{"Acos 1.LP": 4}}}
	svc := newTestService(t, reader, cfg)

	_, err := svc.Consolidate(context.Background(), ConsolidateCommand{
		Year:    2024,
		Month:   time.February,
		Profile: "stie",
		Files:   []ChannelFile{{Name: "Acos 1.LP", Data: []byte("x")}},
	})
	if !errors.Is(err, consolidation.ErrUnknownProfile) {
		t.Fatalf("expected ErrUnknownProfile, got %v", err)
	}
}

func hasWarning(warnings []consolidation.Warning, kind consolidation.WarningKind) bool {
	for _, warning := range warnings {
		if warning.Kind == kind {
			return true
		}
	}
	return false
}
