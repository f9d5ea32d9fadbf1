package histfile

import (
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/gradelens/internal/analytics"
	"github.com/sells-group/gradelens/internal/model"
)

// Sheet names written by WriteWorkbook.
const (
	SummarySheet      = "Summary"
	DistributionSheet = "Distribution"
	TrendSheet        = "Trend"
	CorrelationSheet  = "Correlation"
	PredictionsSheet  = "Predictions"
)

// ReadXLSX reads prediction records from a sheet whose first row is the
// header. An empty sheet name selects PredictionsSheet, falling back to
// the first sheet.
func ReadXLSX(path, sheetName string) ([]model.PredictionRecord, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: open file")
	}

	sheet, err := getSheet(f, sheetName)
	if err != nil {
		return nil, err
	}

	rows := make([][]string, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		rows = append(rows, rowToStrings(row))
	}
	return recordsFromTable(rows)
}

func getSheet(f *xlsx.File, name string) (*xlsx.Sheet, error) {
	if name != "" {
		sheet, ok := f.Sheet[name]
		if !ok {
			return nil, eris.Errorf("xlsx: sheet %q not found", name)
		}
		return sheet, nil
	}
	if sheet, ok := f.Sheet[PredictionsSheet]; ok {
		return sheet, nil
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("xlsx: workbook has no sheets")
	}
	return f.Sheets[0], nil
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells
}

// WriteWorkbook saves the dashboard and the records it was built from as
// an XLSX workbook. The Predictions sheet can be read back with ReadXLSX.
func WriteWorkbook(path string, d *analytics.Dashboard, records []model.PredictionRecord) error {
	f := xlsx.NewFile()

	if err := writeSummary(f, d); err != nil {
		return err
	}
	if !d.Empty {
		if err := writeDistribution(f, d.Bars); err != nil {
			return err
		}
		if err := writeTrend(f, d.Columns); err != nil {
			return err
		}
		if err := writeCorrelation(f, d.Correlation); err != nil {
			return err
		}
	}
	if err := writePredictions(f, records); err != nil {
		return err
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "xlsx: save %s", path)
	}
	return nil
}

func addSheet(f *xlsx.File, name string, header ...string) (*xlsx.Sheet, error) {
	sheet, err := f.AddSheet(name)
	if err != nil {
		return nil, eris.Wrapf(err, "xlsx: add sheet %s", name)
	}
	row := sheet.AddRow()
	for _, h := range header {
		row.AddCell().SetString(h)
	}
	return sheet, nil
}

func writeSummary(f *xlsx.File, d *analytics.Dashboard) error {
	sheet, err := addSheet(f, SummarySheet, "Metric", "Value")
	if err != nil {
		return err
	}
	add := func(metric, value string) {
		row := sheet.AddRow()
		row.AddCell().SetString(metric)
		row.AddCell().SetString(value)
	}

	add("Generated At", d.GeneratedAt.Format(time.RFC3339))
	if d.Empty {
		add("Total Predictions", "0")
		return nil
	}

	s := d.Summary
	row := sheet.AddRow()
	row.AddCell().SetString("Total Predictions")
	row.AddCell().SetInt(s.Count)
	add("Average Grade", s.AverageDisplay())
	add("Highest Grade", s.MaxDisplay())
	add("Lowest Grade", s.MinDisplay())
	if s.Defaulted > 0 {
		row := sheet.AddRow()
		row.AddCell().SetString("Missing Grades")
		row.AddCell().SetInt(s.Defaulted)
	}
	for _, in := range d.Insights {
		add(in.Title, in.Text)
	}
	return nil
}

func writeDistribution(f *xlsx.File, bars []analytics.Bar) error {
	sheet, err := addSheet(f, DistributionSheet, "Category", "Count", "Width %")
	if err != nil {
		return err
	}
	for _, b := range bars {
		row := sheet.AddRow()
		row.AddCell().SetString(b.Label)
		row.AddCell().SetInt(b.Count)
		row.AddCell().SetFloat(b.WidthPct)
	}
	return nil
}

func writeTrend(f *xlsx.File, cols []analytics.Column) error {
	sheet, err := addSheet(f, TrendSheet, "#", "Date", "Grade", "Height px")
	if err != nil {
		return err
	}
	for _, c := range cols {
		row := sheet.AddRow()
		row.AddCell().SetInt(c.Index)
		row.AddCell().SetString(c.Date)
		row.AddCell().SetFloat(c.Grade)
		row.AddCell().SetFloat(c.HeightPx)
	}
	return nil
}

func writeCorrelation(f *xlsx.File, c *analytics.Correlation) error {
	sheet, err := addSheet(f, CorrelationSheet, "G1", "G3", "X %", "Y %")
	if err != nil {
		return err
	}
	if c == nil {
		return nil
	}
	for _, p := range c.Points {
		row := sheet.AddRow()
		row.AddCell().SetFloat(p.Prior)
		row.AddCell().SetFloat(p.Predicted)
		row.AddCell().SetFloat(p.X)
		row.AddCell().SetFloat(p.Y)
	}
	return nil
}

func writePredictions(f *xlsx.File, records []model.PredictionRecord) error {
	features := featureColumns(records)
	header := append([]string{ColID, ColCreatedAt}, features...)
	header = append(header, ColGrade)

	sheet, err := addSheet(f, PredictionsSheet, header...)
	if err != nil {
		return err
	}
	for _, rec := range records {
		row := sheet.AddRow()
		row.AddCell().SetString(string(rec.ID))
		if rec.CreatedAt.IsZero() {
			row.AddCell().SetString("")
		} else {
			row.AddCell().SetString(rec.CreatedAt.UTC().Format(time.RFC3339Nano))
		}
		for _, name := range features {
			cell := row.AddCell()
			if v, ok := rec.InputFeatures.Number(name); ok {
				cell.SetFloat(v)
			} else if raw, ok := rec.InputFeatures[name]; ok && raw != nil {
				if s, ok := raw.(string); ok {
					cell.SetString(s)
				}
			}
		}
		cell := row.AddCell()
		if rec.PredictedGrade != nil {
			cell.SetFloat(*rec.PredictedGrade)
		}
	}
	return nil
}
