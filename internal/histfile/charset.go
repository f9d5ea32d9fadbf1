package histfile

import (
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/htmlindex"
)

// decodeCharset wraps r so it yields UTF-8. Empty and utf-8 charsets pass
// through unchanged.
func decodeCharset(r io.Reader, charset string) (io.Reader, error) {
	switch strings.ToLower(strings.TrimSpace(charset)) {
	case "", "utf-8", "utf8":
		return r, nil
	}
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil, eris.Wrapf(err, "histfile: unsupported charset %q", charset)
	}
	return enc.NewDecoder().Reader(r), nil
}
