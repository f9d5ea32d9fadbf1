package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sells-group/gradelens/internal/analytics"
	"github.com/sells-group/gradelens/internal/histfile"
	"github.com/sells-group/gradelens/internal/model"
	"github.com/sells-group/gradelens/internal/store"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Manage the local prediction history store",
	Long:  "Commands for listing, importing and syncing predictions kept in the SQLite or Postgres store.",
}

// openStore opens the configured store and applies migrations.
func openStore(cmd *cobra.Command) (store.Store, error) {
	if err := cfg.Validate("history"); err != nil {
		return nil, err
	}

	ctx := cmd.Context()
	st, err := initStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	return st, nil
}

// -- history list --

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored predictions, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		limit, _ := cmd.Flags().GetInt("limit")
		since, _ := cmd.Flags().GetDuration("since")
		asJSON, _ := cmd.Flags().GetBool("json")

		filter := store.PredictionFilter{Limit: limit}
		if since > 0 {
			filter.Since = time.Now().Add(-since)
		}

		recs, err := st.ListPredictions(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "history list")
		}

		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(listEntries(recs))
		}

		if len(recs) == 0 {
			fmt.Fprintln(os.Stderr, "No predictions found.")
			return nil
		}

		total, err := st.CountPredictions(ctx)
		if err != nil {
			return eris.Wrap(err, "history list")
		}
		formatPredictionsList(os.Stdout, recs, total)
		return nil
	},
}

// -- history add --

var historyAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Record a single prediction in the store",
	Long:  "Saves one prediction, e.g. one made outside the prediction service. Saving an existing id overwrites it.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		grade, _ := cmd.Flags().GetFloat64("grade")
		features, _ := cmd.Flags().GetStringToString("feature")
		id, _ := cmd.Flags().GetString("id")
		atStr, _ := cmd.Flags().GetString("at")

		var at time.Time
		if atStr != "" {
			parsed, err := time.Parse(time.RFC3339, atStr)
			if err != nil {
				return eris.Wrapf(err, "history add: invalid --at %q (want RFC 3339)", atStr)
			}
			at = parsed
		}

		rec := buildPrediction(id, grade, features, at)

		st, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.SavePrediction(ctx, &rec); err != nil {
			return eris.Wrap(err, "history add")
		}

		band, pct := bandCells(rec)
		zap.L().Info("prediction saved", zap.String("id", string(rec.ID)))
		fmt.Fprintf(os.Stdout, "Saved prediction %s: %s (%s, %s)\n", rec.ID, gradeCell(rec.PredictedGrade), band, pct)
		return nil
	},
}

// buildPrediction assembles a record from command-line values. Feature
// values that parse as numbers are stored as numbers. A blank id or zero
// time is filled in by the store.
func buildPrediction(id string, grade float64, features map[string]string, at time.Time) model.PredictionRecord {
	f := make(model.Features, len(features))
	for name, raw := range features {
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			f[name] = v
			continue
		}
		f[name] = raw
	}
	return model.PredictionRecord{
		ID:             model.RecordID(id),
		CreatedAt:      at,
		InputFeatures:  f,
		PredictedGrade: model.GradePtr(grade),
	}
}

// -- history import --

var historyImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import predictions from a JSON, CSV or XLSX export",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		charset, _ := cmd.Flags().GetString("charset")
		sheet, _ := cmd.Flags().GetString("sheet")
		format, _ := cmd.Flags().GetString("format")

		recs, err := histfile.Read(ctx, args[0], histfile.Options{
			Format:  histfile.Format(format),
			Charset: charset,
			Sheet:   sheet,
		})
		if err != nil {
			return eris.Wrapf(err, "history import: read %s", args[0])
		}

		st, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		n, err := st.ImportPredictions(ctx, recs)
		if err != nil {
			return eris.Wrap(err, "history import")
		}

		zap.L().Info("history import complete",
			zap.String("file", args[0]),
			zap.Int("read", len(recs)),
			zap.Int64("written", n),
		)
		message.NewPrinter(language.English).Fprintf(os.Stdout, "Imported %d predictions from %s\n", len(recs), args[0])
		return nil
	},
}

// -- history sync --

var historySyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Copy recent predictions and model info from the prediction service",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		client := newAPIClient(cfg)
		recs, err := client.Predictions(ctx)
		if err != nil {
			return eris.Wrap(err, "history sync")
		}

		st, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		n, err := st.ImportPredictions(ctx, recs)
		if err != nil {
			return eris.Wrap(err, "history sync")
		}

		info, err := client.ModelInfo(ctx)
		if err != nil {
			zap.L().Warn("history sync: model info unavailable", zap.Error(err))
		} else if err := st.SetModelInfo(ctx, info); err != nil {
			return eris.Wrap(err, "history sync")
		}

		zap.L().Info("history sync complete", zap.Int("fetched", len(recs)), zap.Int64("written", n))
		message.NewPrinter(language.English).Fprintf(os.Stdout, "Synced %d predictions\n", len(recs))
		return nil
	},
}

// -- history migrate --

var historyMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the history store schema",
	RunE: func(cmd *cobra.Command, _ []string) error {
		st, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		zap.L().Info("history store migrated", zap.String("driver", cfg.Store.Driver))
		return nil
	},
}

func init() {
	historyListCmd.Flags().Int("limit", store.DefaultListLimit, "max number of predictions to display")
	historyListCmd.Flags().Duration("since", 0, "only show predictions newer than this (e.g. 24h, 168h)")
	historyListCmd.Flags().Bool("json", false, "print records as JSON")

	historyAddCmd.Flags().Float64("grade", 0, "predicted final grade (0-20)")
	historyAddCmd.Flags().StringToString("feature", nil, "input feature, repeatable (e.g. --feature G1=14 --feature G2=15)")
	historyAddCmd.Flags().String("id", "", "prediction id (default: a new UUID)")
	historyAddCmd.Flags().String("at", "", "creation time in RFC 3339 (default: now)")
	_ = historyAddCmd.MarkFlagRequired("grade")

	historyImportCmd.Flags().String("charset", "utf-8", "text encoding of JSON and CSV files (e.g. iso-8859-1)")
	historyImportCmd.Flags().String("sheet", "", "XLSX sheet to read (default Predictions, else the first sheet)")
	historyImportCmd.Flags().String("format", "", "file format (json, csv, xlsx); detected from the extension when empty")

	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyAddCmd)
	historyCmd.AddCommand(historyImportCmd)
	historyCmd.AddCommand(historySyncCmd)
	historyCmd.AddCommand(historyMigrateCmd)
	rootCmd.AddCommand(historyCmd)
}

// listEntry is one record of `history list --json`, annotated with its
// performance band and grade percentage.
type listEntry struct {
	model.PredictionRecord
	Band    string   `json:"band,omitempty"`
	Percent *float64 `json:"percent,omitempty"`
}

func listEntries(recs []model.PredictionRecord) []listEntry {
	out := make([]listEntry, 0, len(recs))
	for _, r := range recs {
		e := listEntry{PredictionRecord: r}
		if g, ok := r.Grade(); ok {
			pct := analytics.Percentage(g)
			e.Band = analytics.Classify(g).Label()
			e.Percent = &pct
		}
		out = append(out, e)
	}
	return out
}

// formatPredictionsList writes a tabular list of predictions to out,
// followed by a footer comparing the listed rows to the stored total.
func formatPredictionsList(out io.Writer, recs []model.PredictionRecord, total int) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tCREATED\tG1\tG2\tGRADE\tPCT\tBAND")
	_, _ = fmt.Fprintln(w, "--\t-------\t--\t--\t-----\t---\t----")

	for _, r := range recs {
		band, pct := bandCells(r)
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			truncateID(string(r.ID)),
			r.CreatedAt.Format("2006-01-02 15:04"),
			featureCell(r.InputFeatures, model.FeatureG1),
			featureCell(r.InputFeatures, model.FeatureG2),
			gradeCell(r.PredictedGrade),
			pct,
			band,
		)
	}
	_ = w.Flush()

	_, _ = message.NewPrinter(language.English).Fprintf(out, "\nShowing %d of %d predictions\n", len(recs), total)
}

// bandCells returns the band headline and grade percentage of r, or "-"
// for both when the grade is missing.
func bandCells(r model.PredictionRecord) (band, pct string) {
	g, ok := r.Grade()
	if !ok {
		return "-", "-"
	}
	return analytics.Classify(g).Label(), fmt.Sprintf("%.1f%%", analytics.Percentage(g))
}

func featureCell(f model.Features, name string) string {
	v, ok := f.Number(name)
	if !ok {
		return "-"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func gradeCell(g *float64) string {
	if g == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f", *g)
}

// truncateID returns the first 8 runes of an id for compact display.
func truncateID(id string) string {
	r := []rune(id)
	if len(r) > 8 {
		return string(r[:8])
	}
	return id
}
