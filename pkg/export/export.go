// Package export renders an analysis response as a downloadable report.
package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
	"github.com/windboard/windboard/pkg/types"
	"github.com/xuri/excelize/v2"
)

// Format is a report file format.
type Format string

const (
	XLSX Format = "xlsx"
	PDF  Format = "pdf"
)

// ParseFormat parses a report format name case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case XLSX:
		return XLSX, nil
	case PDF:
		return PDF, nil
	default:
		return "", fmt.Errorf("unsupported export format: %q", s)
	}
}

// ContentType returns the MIME type of the format.
func (f Format) ContentType() string {
	switch f {
	case XLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case PDF:
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}

// Render renders resp in format f.
func Render(f Format, resp types.AnalysisResponse) ([]byte, error) {
	switch f {
	case XLSX:
		return BuildXLSX(resp)
	case PDF:
		return BuildPDF(resp)
	default:
		return nil, fmt.Errorf("unsupported export format: %q", f)
	}
}

type summaryRow struct {
	label string
	value any
}

func summaryRows(resp types.AnalysisResponse) []summaryRow {
	s := resp.ChartData.Summary
	rows := []summaryRow{
		{"Plant", s.PlantName},
		{"Mode", string(resp.Mode)},
		{"AEP (GWh)", resp.AEPGWh},
		{"Uncertainty", resp.Uncertainty},
		{"Turbines", s.TotalTurbines},
		{"Rated Power (MW)", s.RatedPowerMW},
		{"Avg Capacity Factor", s.AvgCapacityFactor},
		{"Avg Availability", s.AvgAvailability},
		{"Simulations", s.NumSimulations},
	}
	if resp.DebugNote != "" {
		rows = append(rows, summaryRow{"Note", resp.DebugNote})
	}
	return rows
}

func setRow(f *excelize.File, sheet string, row int, values ...any) error {
	for col, v := range values {
		cell, err := excelize.CoordinatesToCellName(col+1, row)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, v); err != nil {
			return fmt.Errorf("failed to set %s!%s: %w", sheet, cell, err)
		}
	}
	return nil
}

// BuildXLSX renders a workbook with a summary sheet and one sheet per chart.
func BuildXLSX(resp types.AnalysisResponse) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	const summarySheet = "summary"
	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, fmt.Errorf("failed to rename sheet: %w", err)
	}
	if err := setRow(f, summarySheet, 1, "AEP Analysis"); err != nil {
		return nil, err
	}
	for i, r := range summaryRows(resp) {
		if err := setRow(f, summarySheet, i+3, r.label, r.value); err != nil {
			return nil, err
		}
	}

	data := resp.ChartData
	sheets := []struct {
		name   string
		header []any
		rows   [][]any
	}{
		{"power_curve", []any{"Wind Speed (m/s)", "Actual Power (kW)", "Ideal Power (kW)"}, nil},
		{"monthly_production", []any{"Month", "Expected (GWh)", "Actual (GWh)"}, nil},
		{"aep_distribution", []any{"Bin", "Start (GWh)", "End (GWh)", "Count"}, nil},
		{"turbines", []any{"Turbine", "Capacity Factor", "Availability", "Annual Energy (MWh)"}, nil},
	}
	for _, b := range data.PowerCurve {
		sheets[0].rows = append(sheets[0].rows, []any{b.WindSpeed, b.ActualPower, b.IdealPower})
	}
	for _, m := range data.MonthlyProduction {
		sheets[1].rows = append(sheets[1].rows, []any{m.Month, m.ExpectedGWh, m.ActualGWh})
	}
	for _, h := range data.AEPDistribution {
		sheets[2].rows = append(sheets[2].rows, []any{h.BinLabel, h.BinStart, h.BinEnd, h.Count})
	}
	for _, t := range data.TurbineComparison {
		sheets[3].rows = append(sheets[3].rows, []any{t.TurbineID, t.CapacityFactor, t.Availability, t.AnnualEnergyMWh})
	}

	for _, s := range sheets {
		if _, err := f.NewSheet(s.name); err != nil {
			return nil, fmt.Errorf("failed to create sheet %s: %w", s.name, err)
		}
		if err := setRow(f, s.name, 1, s.header...); err != nil {
			return nil, err
		}
		for i, row := range s.rows {
			if err := setRow(f, s.name, i+2, row...); err != nil {
				return nil, err
			}
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// BuildPDF renders a one-page summary with the monthly and turbine tables.
func BuildPDF(resp types.AnalysisResponse) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "AEP Analysis")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	for _, r := range summaryRows(resp) {
		pdf.Cell(0, 6, fmt.Sprintf("%s: %v", r.label, r.value))
		pdf.Ln(5)
	}

	data := resp.ChartData
	if len(data.MonthlyProduction) > 0 {
		pdf.Ln(4)
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(30, 6, "Month", "1", 0, "C", false, 0, "")
		pdf.CellFormat(45, 6, "Expected (GWh)", "1", 0, "C", false, 0, "")
		pdf.CellFormat(45, 6, "Actual (GWh)", "1", 0, "C", false, 0, "")
		pdf.Ln(-1)
		pdf.SetFont("Arial", "", 10)
		for _, m := range data.MonthlyProduction {
			pdf.CellFormat(30, 6, m.Month, "1", 0, "C", false, 0, "")
			pdf.CellFormat(45, 6, fmt.Sprintf("%.3f", m.ExpectedGWh), "1", 0, "R", false, 0, "")
			pdf.CellFormat(45, 6, fmt.Sprintf("%.3f", m.ActualGWh), "1", 0, "R", false, 0, "")
			pdf.Ln(-1)
		}
	}

	if len(data.TurbineComparison) > 0 {
		pdf.Ln(4)
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(30, 6, "Turbine", "1", 0, "C", false, 0, "")
		pdf.CellFormat(40, 6, "Capacity Factor", "1", 0, "C", false, 0, "")
		pdf.CellFormat(35, 6, "Availability", "1", 0, "C", false, 0, "")
		pdf.CellFormat(50, 6, "Annual Energy (MWh)", "1", 0, "C", false, 0, "")
		pdf.Ln(-1)
		pdf.SetFont("Arial", "", 10)
		for _, t := range data.TurbineComparison {
			pdf.CellFormat(30, 6, t.TurbineID, "1", 0, "C", false, 0, "")
			pdf.CellFormat(40, 6, fmt.Sprintf("%.3f", t.CapacityFactor), "1", 0, "R", false, 0, "")
			pdf.CellFormat(35, 6, fmt.Sprintf("%.3f", t.Availability), "1", 0, "R", false, 0, "")
			pdf.CellFormat(50, 6, fmt.Sprintf("%.1f", t.AnnualEnergyMWh), "1", 0, "R", false, 0, "")
			pdf.Ln(-1)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to write pdf: %w", err)
	}
	return buf.Bytes(), nil
}
