package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"path/filepath"
	"slices"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/levenlabs/go-lflag"
	"github.com/windboard/windboard/pkg/common"
	"github.com/windboard/windboard/pkg/log"
	"github.com/windboard/windboard/pkg/telemetry"
)

// InfluxLoader loads SCADA telemetry from an InfluxDB v2 bucket. Each
// turbine is a tag value and each SCADA channel a field.
type InfluxLoader struct {
	url         string
	token       string
	org         string
	bucket      string
	measurement string
	turbineTag  string
	start       string
	stop        string
	assetPath   string
	plantName   string

	client   influxdb2.Client
	queryAPI api.QueryAPI
}

func configuredInflux() *InfluxLoader {
	url := lflag.String("influx-url", "", "InfluxDB server URL")
	token := lflag.String("influx-token", "", "InfluxDB API token")
	org := lflag.String("influx-org", "", "InfluxDB organization")
	bucket := lflag.String("influx-bucket", "scada", "InfluxDB bucket holding SCADA data")
	measurement := lflag.String("influx-measurement", "scada", "Measurement holding SCADA data")
	turbineTag := lflag.String("influx-turbine-tag", "turbine", "Tag holding the turbine id")
	start := lflag.String("influx-start", "2014-01-01T00:00:00Z", "Start of the SCADA range to load")
	stop := lflag.String("influx-stop", "2016-01-01T00:00:00Z", "End of the SCADA range to load")
	assetPath := lflag.String("influx-asset-file", "", "Optional asset table CSV used with the influx loader")

	l := &InfluxLoader{plantName: "La Haute Borne"}
	lflag.Do(func() {
		l.url = *url
		l.token = *token
		l.org = *org
		l.bucket = *bucket
		l.measurement = *measurement
		l.turbineTag = *turbineTag
		l.start = *start
		l.stop = *stop
		l.assetPath = *assetPath
	})
	return l
}

// NewInfluxLoader returns a connected loader for the given bucket.
func NewInfluxLoader(url, token, org, bucket string) *InfluxLoader {
	l := &InfluxLoader{
		url:         url,
		token:       token,
		org:         org,
		bucket:      bucket,
		measurement: "scada",
		turbineTag:  "turbine",
		start:       "2014-01-01T00:00:00Z",
		stop:        "2016-01-01T00:00:00Z",
		plantName:   "La Haute Borne",
	}
	l.Init()
	return l
}

// Validate checks if the loader is properly configured.
func (l *InfluxLoader) Validate() error {
	if l.url == "" {
		return errors.New("influx-url is required")
	}
	if l.org == "" {
		return errors.New("influx-org is required")
	}
	for _, ts := range []string{l.start, l.stop} {
		if _, err := time.Parse(time.RFC3339, ts); err != nil {
			return fmt.Errorf("invalid influx range bound %q: %w", ts, err)
		}
	}
	return nil
}

// Init creates the InfluxDB client.
func (l *InfluxLoader) Init() {
	opts := influxdb2.DefaultOptions().SetHTTPClient(common.HTTPClient(5 * time.Minute))
	l.client = influxdb2.NewClientWithOptions(l.url, l.token, opts)
	l.queryAPI = l.client.QueryAPI(l.org)
}

// Close closes the InfluxDB client.
func (l *InfluxLoader) Close() {
	if l.client != nil {
		l.client.Close()
	}
}

// Name implements Loader.
func (l *InfluxLoader) Name() string {
	return "influx"
}

// DataAvailable implements Loader.
func (l *InfluxLoader) DataAvailable(ctx context.Context) error {
	if l.client == nil {
		return errors.New("influx client not initialized")
	}
	ok, err := l.client.Ping(ctx)
	if err != nil || !ok {
		return fmt.Errorf("data source unreachable: %s", l.url)
	}
	return nil
}

func (l *InfluxLoader) query() string {
	return fmt.Sprintf(`from(bucket: %q)
  |> range(start: %s, stop: %s)
  |> filter(fn: (r) => r._measurement == %q)
  |> pivot(rowKey: ["_time"], columnKey: ["_field"], valueColumn: "_value")`,
		l.bucket, l.start, l.stop, l.measurement)
}

type influxRow struct {
	time    time.Time
	turbine string
	fields  map[string]float64
}

// Load implements Loader.
func (l *InfluxLoader) Load(ctx context.Context) (*Plant, error) {
	result, err := l.queryAPI.Query(ctx, l.query())
	if err != nil {
		return nil, fmt.Errorf("failed to query scada: %w", err)
	}
	defer result.Close()

	var rows []influxRow
	for result.Next() {
		rec := result.Record()
		row := influxRow{time: rec.Time(), fields: map[string]float64{}}
		for k, v := range rec.Values() {
			if k == l.turbineTag {
				row.turbine = fmt.Sprint(v)
				continue
			}
			if k == "result" || k == "table" || strings.HasPrefix(k, "_") {
				continue
			}
			switch n := v.(type) {
			case float64:
				row.fields[k] = n
			case int64:
				row.fields[k] = float64(n)
			case uint64:
				row.fields[k] = float64(n)
			}
		}
		rows = append(rows, row)
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("failed to read scada rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("no scada rows in bucket %s between %s and %s", l.bucket, l.start, l.stop)
	}

	scada := tableFromRows(rows)
	log.Ctx(ctx).DebugContext(ctx, "loaded scada from influx",
		slog.String("bucket", l.bucket),
		slog.Int("rows", scada.Len()),
		slog.Int("columns", len(scada.Columns)),
	)

	assets := assetsFromIndex(scada)
	if l.assetPath != "" {
		df, err := readCSV(l.assetPath, delimiterFor(l.assetPath))
		if err != nil {
			return nil, err
		}
		if assets, err = assetsFromFrame(df); err != nil {
			return nil, err
		}
	}
	return &Plant{Name: l.plantName, SCADA: scada, Assets: assets}, nil
}

func delimiterFor(path string) rune {
	if strings.EqualFold(filepath.Ext(path), ".tsv") {
		return '\t'
	}
	return ','
}

// tableFromRows builds a (time, asset_id) indexed table. Fields missing from a
// row are NaN.
func tableFromRows(rows []influxRow) *telemetry.Table {
	var names []string
	seen := map[string]struct{}{}
	for _, r := range rows {
		for k := range r.fields {
			if _, ok := seen[k]; !ok {
				seen[k] = struct{}{}
				names = append(names, k)
			}
		}
	}
	slices.Sort(names)

	times := make([]time.Time, len(rows))
	ids := make([]string, len(rows))
	cols := make([]telemetry.Column, len(names))
	for j, name := range names {
		cols[j] = telemetry.FloatColumn(name, make([]float64, len(rows)))
	}
	for i, r := range rows {
		times[i] = r.time.UTC()
		ids[i] = r.turbine
		for j, name := range names {
			v, ok := r.fields[name]
			if !ok {
				v = math.NaN()
			}
			cols[j].Floats[i] = v
		}
	}
	return &telemetry.Table{
		Columns: cols,
		Index: telemetry.Index{Levels: []telemetry.Column{
			telemetry.TimeColumn(timeLevel, times),
			telemetry.StringColumn(turbineLevel, ids),
		}},
	}
}
