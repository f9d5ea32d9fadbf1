// Package histfile reads and writes prediction history files: JSON exports
// of the prediction service, CSV, and XLSX workbooks.
package histfile

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/gradelens/internal/model"
)

// Format identifies a history file encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// Options configures Read.
type Options struct {
	Format  Format // detected from the extension when empty
	Charset string // text encoding of JSON and CSV input; default utf-8
	Sheet   string // XLSX sheet name; default PredictionsSheet
}

// DetectFormat infers the format from a file extension.
func DetectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".csv":
		return FormatCSV, nil
	case ".xlsx":
		return FormatXLSX, nil
	}
	return "", eris.Errorf("histfile: cannot detect format of %q", path)
}

// Read loads every prediction record in the file at path.
func Read(ctx context.Context, path string, opts Options) ([]model.PredictionRecord, error) {
	format := opts.Format
	if format == "" {
		f, err := DetectFormat(path)
		if err != nil {
			return nil, err
		}
		format = f
	}

	if format == FormatXLSX {
		return ReadXLSX(path, opts.Sheet)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "histfile: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	r, err := decodeCharset(f, opts.Charset)
	if err != nil {
		return nil, err
	}

	switch format {
	case FormatJSON:
		return collect(DecodeJSONRecords(ctx, r))
	case FormatCSV:
		return DecodeCSV(ctx, r)
	default:
		return nil, eris.Errorf("histfile: unsupported format %q", format)
	}
}

// collect drains a record stream, returning the first error.
func collect[T any](outCh <-chan T, errCh <-chan error) ([]T, error) {
	out := []T{}
	for item := range outCh {
		out = append(out, item)
	}
	for err := range errCh {
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}
