package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/gradelens/internal/analytics"
	"github.com/sells-group/gradelens/internal/histfile"
	"github.com/sells-group/gradelens/internal/history"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Render prediction analytics to stdout",
	Long:  "Fetches the current prediction history and prints summary statistics, charts and insights as a table, JSON or YAML. Optionally saves an XLSX workbook.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		chartName, _ := cmd.Flags().GetString("chart")
		format, _ := cmd.Flags().GetString("format")
		xlsxPath, _ := cmd.Flags().GetString("xlsx")
		resort, _ := cmd.Flags().GetBool("sort")

		kinds := analytics.ChartKinds
		if chartName != "" {
			kind, err := analytics.ParseChartKind(chartName)
			if err != nil {
				return err
			}
			kinds = []analytics.ChartKind{kind}
		}
		if err := cfg.Validate("report"); err != nil {
			return err
		}

		src, closeSrc, err := initSource(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeSrc()

		snap, err := history.NewLoader(src).Refresh(ctx)
		if err != nil {
			return eris.Wrap(err, "report")
		}

		ordered := analytics.AsDelivered(snap.Records)
		if resort {
			ordered = analytics.SortByRecency(snap.Records)
		}
		d := analytics.Build(ordered, snap.ModelInfo, analyticsOptions(cfg)...)

		if err := renderReport(os.Stdout, d, kinds, format); err != nil {
			return err
		}

		if xlsxPath != "" {
			if err := histfile.WriteWorkbook(xlsxPath, d, ordered.Records()); err != nil {
				return err
			}
			zap.L().Info("report workbook saved", zap.String("path", xlsxPath))
		}
		return nil
	},
}

func init() {
	reportCmd.Flags().String("chart", "", "render a single chart (distribution, trend, correlation)")
	reportCmd.Flags().String("format", "table", "output format (table, json, yaml)")
	reportCmd.Flags().String("xlsx", "", "also save the report as an XLSX workbook at this path")
	reportCmd.Flags().Bool("sort", false, "sort history by created_at instead of trusting the source order")
	rootCmd.AddCommand(reportCmd)
}

// reportPayload selects what json and yaml output encode: the whole
// dashboard, or one chart when a single kind was requested.
func reportPayload(d *analytics.Dashboard, kinds []analytics.ChartKind) any {
	if len(kinds) != 1 {
		return d
	}
	if view := d.Chart(kinds[0]); view != nil {
		return view
	}
	return map[string]any{"kind": kinds[0], "empty": true}
}

func renderReport(out io.Writer, d *analytics.Dashboard, kinds []analytics.ChartKind, format string) error {
	switch strings.ToLower(format) {
	case "", "table":
		formatDashboard(out, d, kinds)
		return nil
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return eris.Wrap(enc.Encode(reportPayload(d, kinds)), "encode json")
	case "yaml":
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(reportPayload(d, kinds)); err != nil {
			return eris.Wrap(err, "encode yaml")
		}
		return eris.Wrap(enc.Close(), "encode yaml")
	default:
		return eris.Errorf("unsupported format %q (want table, json or yaml)", format)
	}
}

// formatDashboard writes the summary cards, the requested charts and the
// insights as aligned text.
func formatDashboard(out io.Writer, d *analytics.Dashboard, kinds []analytics.ChartKind) {
	if d.Empty {
		_, _ = fmt.Fprintln(out, "No Predictions Yet")
		_, _ = fmt.Fprintln(out, `Go to "Predict Grade" to make your first prediction`)
		return
	}

	p := message.NewPrinter(language.English)
	s := d.Summary

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = p.Fprintf(w, "Total Predictions:\t%d\n", s.Count)
	_, _ = fmt.Fprintf(w, "Average Grade:\t%s\n", s.AverageDisplay())
	_, _ = fmt.Fprintf(w, "Highest Grade:\t%s\n", s.MaxDisplay())
	_, _ = fmt.Fprintf(w, "Lowest Grade:\t%s\n", s.MinDisplay())
	if s.Defaulted > 0 {
		_, _ = p.Fprintf(w, "Missing Grades:\t%d\n", s.Defaulted)
	}
	_ = w.Flush()

	for _, kind := range kinds {
		view := d.Chart(kind)
		if view == nil {
			continue
		}
		_, _ = fmt.Fprintf(out, "\n%s\n%s\n\n", view.Title, view.Description)
		switch kind {
		case analytics.ChartDistribution:
			formatBars(out, p, view.Bars)
		case analytics.ChartTrend:
			formatColumns(out, view.Columns)
		case analytics.ChartCorrelation:
			formatDots(out, view.Dots)
		}
	}

	_, _ = fmt.Fprintln(out)
	for _, in := range d.Insights {
		_, _ = fmt.Fprintf(out, "%s: %s\n", in.Title, in.Text)
	}
}

func formatBars(out io.Writer, p *message.Printer, bars []analytics.Bar) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "CATEGORY\tCOUNT\tWIDTH\t")
	for _, b := range bars {
		_, _ = p.Fprintf(w, "%s\t%d\t%.0f%%\t%s\n", b.Label, b.Count, b.WidthPct, meter(b.WidthPct, 5))
	}
	_ = w.Flush()
}

func formatColumns(out io.Writer, cols []analytics.Column) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "#\tDATE\tGRADE\tHEIGHT\t")
	for _, c := range cols {
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%.0fpx\t%s\n", c.Index, c.Date, c.Label, c.HeightPx, meter(c.HeightPx, 10))
	}
	_ = w.Flush()
}

func formatDots(out io.Writer, dots []analytics.Dot) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "POINT\tLEFT\tTOP")
	for _, dot := range dots {
		_, _ = fmt.Fprintf(w, "%s\t%.1f%%\t%.1f%%\n", dot.Title, dot.LeftPct, dot.TopPct)
	}
	_ = w.Flush()
}

// meter draws a text bar with one block per step units of v.
func meter(v, step float64) string {
	n := int(v / step)
	if n <= 0 {
		return ""
	}
	return strings.Repeat("█", n)
}
