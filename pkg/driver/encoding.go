package driver

import (
	"fmt"
	"io"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"nascdec/pkg/config"
)

const byteOrderMark = "\ufeff"

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }

// NewOutputWriter wraps w so generated UTF-8 text is written in encoding.
// UTF-16LE output starts with a byte order mark. Close flushes the
// encoder; it does not close w.
func NewOutputWriter(w io.Writer, encoding string) (io.WriteCloser, error) {
	switch encoding {
	case config.EncodingUTF8:
		return nopCloser{w}, nil
	case config.EncodingUTF16LE:
		enc := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewEncoder()
		tw := transform.NewWriter(w, enc)
		if _, err := io.WriteString(tw, byteOrderMark); err != nil {
			return nil, err
		}
		return tw, nil
	}
	return nil, fmt.Errorf("unsupported encoding %q", encoding)
}
