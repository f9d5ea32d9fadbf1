package histfile

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"

	"github.com/rotisserie/eris"

	"github.com/sells-group/gradelens/internal/model"
)

// DecodeJSONRecords streams a JSON export of the form [{...},{...}],
// sending each prediction to the returned channel. Every element must be
// an object; errors name the zero-based element index. Both channels are
// closed when processing completes.
func DecodeJSONRecords(ctx context.Context, r io.Reader) (<-chan model.PredictionRecord, <-chan error) {
	outCh := make(chan model.PredictionRecord, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(outCh)
		defer close(errCh)

		decoder := json.NewDecoder(r)

		tok, err := decoder.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			errCh <- eris.Wrap(err, "json: read opening token")
			return
		}

		delim, ok := tok.(json.Delim)
		if !ok || delim != '[' {
			errCh <- eris.Errorf("json: expected '[', got %v", tok)
			return
		}

		for i := 0; decoder.More(); i++ {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "json: context cancelled")
				return
			}

			var raw json.RawMessage
			if err := decoder.Decode(&raw); err != nil {
				errCh <- eris.Wrapf(err, "json: decode element %d", i)
				return
			}
			if !bytes.HasPrefix(bytes.TrimSpace(raw), []byte("{")) {
				errCh <- eris.Errorf("json: element %d is not an object: %.40s", i, raw)
				return
			}

			var rec model.PredictionRecord
			if err := json.Unmarshal(raw, &rec); err != nil {
				errCh <- eris.Wrapf(err, "json: element %d", i)
				return
			}

			select {
			case outCh <- rec:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "json: context cancelled")
				return
			}
		}

		if _, err := decoder.Token(); err != nil && !errors.Is(err, io.EOF) {
			errCh <- eris.Wrap(err, "json: read closing token")
		}
	}()

	return outCh, errCh
}
