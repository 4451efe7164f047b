// Package influx exports consolidated group totals to InfluxDB v2.
package influx

import (
	"context"
	"errors"
	"fmt"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	consolidation "loadprofile/internal/consolidation/domain"
)

// Measurement is the measurement name of exported points.
const Measurement = "load_profile_group"

// batchSize bounds the points sent per write call.
const batchSize = 2000

// Config selects the InfluxDB target.
type Config struct {
	URL    string
	Token  string
	Org    string
	Bucket string
}

// Enabled reports whether a target is configured.
func (c Config) Enabled() bool {
	return c.URL != "" && c.Bucket != ""
}

type pointWriter interface {
	WritePoint(ctx context.Context, point ...*write.Point) error
}

// Sink writes one point per group per interval.
type Sink struct {
	client influxdb2.Client
	writer pointWriter
}

// NewSink connects to InfluxDB and verifies it is reachable.
func NewSink(ctx context.Context, cfg Config) (*Sink, error) {
	if !cfg.Enabled() {
		return nil, errors.New("influx sink: url and bucket are required")
	}
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	if _, err := client.Health(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("influx sink: health check: %w", err)
	}
	return &Sink{client: client, writer: client.WriteAPIBlocking(cfg.Org, cfg.Bucket)}, nil
}

// WriteTable implements application.TableSink.
func (s *Sink) WriteTable(ctx context.Context, run *consolidation.Run, table *consolidation.Table) error {
	if s == nil || s.writer == nil {
		return errors.New("influx sink: not connected")
	}
	points := Points(run, table)
	for start := 0; start < len(points); start += batchSize {
		end := min(start+batchSize, len(points))
		if err := s.writer.WritePoint(ctx, points[start:end]...); err != nil {
			return fmt.Errorf("influx sink: write: %w", err)
		}
	}
	return nil
}

// Close releases the client.
func (s *Sink) Close() {
	if s != nil && s.client != nil {
		s.client.Close()
	}
}

// Points converts group totals to points stamped at the interval end.
func Points(run *consolidation.Run, table *consolidation.Table) []*write.Point {
	if table == nil {
		return nil
	}
	runID := ""
	if run != nil {
		runID = run.ID
	}
	points := make([]*write.Point, 0, len(table.Groups)*len(table.Intervals))
	for _, group := range table.Groups {
		for i, interval := range table.Intervals {
			points = append(points, write.NewPoint(
				Measurement,
				map[string]string{
					"group":         group.Name,
					"tariff_period": string(interval.Period),
					"run_id":        runID,
				},
				map[string]any{
					"total_kw": group.Total[i],
					"members":  len(group.Members),
				},
				interval.End,
			))
		}
	}
	return points
}
