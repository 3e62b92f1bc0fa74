package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/levenlabs/go-lflag"
	"github.com/windboard/windboard/pkg/log"
	"github.com/windboard/windboard/pkg/telemetry"
)

const (
	scadaTimeColumn    = "Date_time"
	scadaTurbineColumn = "Wind_turbine_name"
	timeLevel          = "time"
	turbineLevel       = "asset_id"
)

var nanValues = []string{"", "NA", "NaN", "nan", "<nil>"}

var (
	assetIDColumns    = []string{"asset_id", "wind_turbine_name", "turbine_id", "id"}
	assetRatedColumns = []string{"rated_power", "rated_power_kw", "ratedpower"}
)

// CSVLoader loads the La Haute Borne SCADA and asset CSV files from a
// directory.
type CSVLoader struct {
	dir            string
	scadaFile      string
	assetFile      string
	scadaDelimiter rune
	assetDelimiter rune
	plantName      string
}

// NewCSVLoader returns a loader reading the default La Haute Borne file names
// from dir.
func NewCSVLoader(dir string) *CSVLoader {
	return &CSVLoader{
		dir:            dir,
		scadaFile:      "la-haute-borne-data-2014-2015.csv",
		assetFile:      "la-haute-borne_asset_table.csv",
		scadaDelimiter: ';',
		assetDelimiter: ',',
		plantName:      "La Haute Borne",
	}
}

func configuredCSV() *CSVLoader {
	dir := lflag.String("data-path", filepath.Join("data", "la_haute_borne"), "Directory holding the plant CSV files")
	scadaFile := lflag.String("scada-file", "la-haute-borne-data-2014-2015.csv", "SCADA CSV file name inside data-path")
	assetFile := lflag.String("asset-file", "la-haute-borne_asset_table.csv", "Asset table CSV file name inside data-path")
	scadaDelimiter := lflag.String("scada-delimiter", ";", "Field delimiter of the SCADA CSV")
	assetDelimiter := lflag.String("asset-delimiter", ",", "Field delimiter of the asset CSV")

	l := NewCSVLoader("")
	lflag.Do(func() {
		l.dir = *dir
		l.scadaFile = *scadaFile
		l.assetFile = *assetFile
		l.scadaDelimiter = delimiter(*scadaDelimiter)
		l.assetDelimiter = delimiter(*assetDelimiter)
	})
	return l
}

func delimiter(s string) rune {
	r, _ := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return ','
	}
	return r
}

// Name implements Loader.
func (l *CSVLoader) Name() string {
	return "csv"
}

// DataAvailable implements Loader.
func (l *CSVLoader) DataAvailable(ctx context.Context) error {
	info, err := os.Stat(l.dir)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("data path missing: %s", l.dir)
	}
	if _, err := os.Stat(filepath.Join(l.dir, l.scadaFile)); err != nil {
		return fmt.Errorf("scada file missing: %s", filepath.Join(l.dir, l.scadaFile))
	}
	return nil
}

// Load implements Loader. The Date_time and Wind_turbine_name columns become
// a two level (time, asset_id) index.
func (l *CSVLoader) Load(ctx context.Context) (*Plant, error) {
	scadaPath := filepath.Join(l.dir, l.scadaFile)
	df, err := readCSV(scadaPath, l.scadaDelimiter)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	scada := indexByTimeAndTurbine(tableFromFrame(df))
	log.Ctx(ctx).DebugContext(ctx, "loaded scada csv",
		slog.String("path", scadaPath),
		slog.Int("rows", scada.Len()),
		slog.Int("columns", len(scada.Columns)),
	)

	assets, err := l.loadAssets(ctx, scada)
	if err != nil {
		return nil, err
	}
	return &Plant{
		Name:   l.plantName,
		SCADA:  scada,
		Assets: assets,
	}, nil
}

func (l *CSVLoader) loadAssets(ctx context.Context, scada *telemetry.Table) (telemetry.AssetTable, error) {
	path := filepath.Join(l.dir, l.assetFile)
	df, err := readCSV(path, l.assetDelimiter)
	if errors.Is(err, os.ErrNotExist) {
		log.Ctx(ctx).WarnContext(ctx, "asset table missing, using turbines from scada", slog.String("path", path))
		return assetsFromIndex(scada), nil
	}
	if err != nil {
		return telemetry.AssetTable{}, err
	}
	return assetsFromFrame(df)
}

func readCSV(path string, delim rune) (dataframe.DataFrame, error) {
	f, err := os.Open(path)
	if err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	df := dataframe.ReadCSV(f,
		dataframe.WithDelimiter(delim),
		dataframe.HasHeader(true),
		dataframe.DetectTypes(true),
		dataframe.NaNValues(nanValues),
	)
	if df.Err != nil {
		return df, fmt.Errorf("failed to parse %s: %w", path, df.Err)
	}
	return df, nil
}

func tableFromFrame(df dataframe.DataFrame) *telemetry.Table {
	names := df.Names()
	table := &telemetry.Table{Columns: make([]telemetry.Column, 0, len(names))}
	for _, name := range names {
		s := df.Col(name)
		switch s.Type() {
		case series.Float, series.Int:
			table.Columns = append(table.Columns, telemetry.FloatColumn(name, s.Float()))
		default:
			table.Columns = append(table.Columns, telemetry.StringColumn(name, s.Records()))
		}
	}
	return table
}

func indexByTimeAndTurbine(table *telemetry.Table) *telemetry.Table {
	timeCol, okTime := table.Column(scadaTimeColumn)
	turbineCol, okTurbine := table.Column(scadaTurbineColumn)
	if !okTime || !okTurbine {
		return table
	}

	times := telemetry.TimeColumn(timeLevel, parseTimes(timeCol))
	ids := telemetry.StringColumn(turbineLevel, keys(turbineCol))

	out := &telemetry.Table{Index: telemetry.Index{Levels: []telemetry.Column{times, ids}}}
	for _, c := range table.Columns {
		if c.Name == scadaTimeColumn || c.Name == scadaTurbineColumn {
			continue
		}
		out.Columns = append(out.Columns, c)
	}
	return out
}

func parseTimes(c telemetry.Column) []time.Time {
	out := make([]time.Time, c.Len())
	for i := range out {
		out[i], _ = c.Time(i)
	}
	return out
}

func keys(c telemetry.Column) []string {
	out := make([]string, c.Len())
	for i := range out {
		out[i] = c.Key(i)
	}
	return out
}

func assetsFromIndex(scada *telemetry.Table) telemetry.AssetTable {
	var ids []string
	if len(scada.Index.Levels) > 1 {
		ids = scada.Index.Levels[len(scada.Index.Levels)-1].Distinct()
	} else if c, ok := scada.Column(scadaTurbineColumn); ok {
		ids = c.Distinct()
	}
	assets := telemetry.AssetTable{Assets: make([]telemetry.Asset, len(ids))}
	for i, id := range ids {
		assets.Assets[i] = telemetry.Asset{ID: id, RatedPower: math.NaN()}
	}
	return assets
}

func findColumn(names []string, candidates []string) (string, bool) {
	for _, want := range candidates {
		for _, name := range names {
			if strings.EqualFold(strings.TrimSpace(name), want) {
				return name, true
			}
		}
	}
	return "", false
}

func assetsFromFrame(df dataframe.DataFrame) (telemetry.AssetTable, error) {
	names := df.Names()
	idName, ok := findColumn(names, assetIDColumns)
	if !ok {
		return telemetry.AssetTable{}, fmt.Errorf("asset table has no turbine id column (columns: %s)", strings.Join(names, ", "))
	}
	ids := df.Col(idName).Records()

	rated := make([]float64, len(ids))
	for i := range rated {
		rated[i] = math.NaN()
	}
	if ratedName, ok := findColumn(names, assetRatedColumns); ok {
		rated = df.Col(ratedName).Float()
	}

	assets := telemetry.AssetTable{Assets: make([]telemetry.Asset, len(ids))}
	for i, id := range ids {
		assets.Assets[i] = telemetry.Asset{ID: strings.TrimSpace(id), RatedPower: rated[i]}
	}
	return assets, nil
}
