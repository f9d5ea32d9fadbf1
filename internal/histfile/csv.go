package histfile

import (
	"context"
	"encoding/csv"
	"io"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/gradelens/internal/model"
)

// CSVOptions configures the streaming CSV parser.
type CSVOptions struct {
	Delimiter  rune // default ','
	Comment    rune // comment character (0 = none)
	LazyQuotes bool
}

// StreamCSV reads CSV rows and sends them to a channel. The first row is
// the header. Both channels are closed when processing completes.
func StreamCSV(ctx context.Context, r io.Reader, opts CSVOptions) (<-chan []string, <-chan error) {
	rowCh := make(chan []string, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(rowCh)
		defer close(errCh)

		reader := csv.NewReader(r)
		if opts.Delimiter != 0 {
			reader.Comma = opts.Delimiter
		}
		if opts.Comment != 0 {
			reader.Comment = opts.Comment
		}
		reader.LazyQuotes = opts.LazyQuotes
		reader.FieldsPerRecord = -1 // allow variable fields

		for {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}

			record, err := reader.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				errCh <- eris.Wrap(err, "csv: read row")
				return
			}

			for i, field := range record {
				record[i] = strings.TrimSpace(field)
			}

			select {
			case rowCh <- record:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}
		}
	}()

	return rowCh, errCh
}

// DecodeCSV reads prediction records from CSV with a header row.
func DecodeCSV(ctx context.Context, r io.Reader) ([]model.PredictionRecord, error) {
	rows, err := collect(StreamCSV(ctx, r, CSVOptions{Comment: '#'}))
	if err != nil {
		return nil, err
	}
	return recordsFromTable(rows)
}

// recordsFromTable converts a header row plus data rows into records,
// skipping blank rows.
func recordsFromTable(rows [][]string) ([]model.PredictionRecord, error) {
	recs := []model.PredictionRecord{}
	if len(rows) == 0 {
		return recs, nil
	}
	header := rows[0]
	for i, cells := range rows[1:] {
		if blank(cells) {
			continue
		}
		rec, err := recordFromRow(header, cells, i+2)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

func blank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
