// Package csv streams delimited text into table rows.
package csv

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"

	"lakeio/internal/parser"
	"lakeio/internal/table"
)

// Options controls StreamRows.
type Options struct {
	// Comma is the field delimiter; 0 means ','.
	Comma rune
	// NoHeader treats the first record as data; columns are named col1..colN.
	NoHeader bool
	// KeepSpace disables trimming of surrounding whitespace in headers and values.
	KeepSpace  bool
	LazyQuotes bool
	// Encoding is a WHATWG label ("windows-1250", "iso-8859-2", ...). Empty
	// means UTF-8 and the input is read as is.
	Encoding string
	// HeaderMap renames source headers.
	HeaderMap map[string]string

	Keys parser.Keys
}

// decoder wraps src for opts.Encoding.
func decoder(src io.Reader, encoding string) (io.Reader, error) {
	label := strings.TrimSpace(encoding)
	if label == "" || strings.EqualFold(label, "utf-8") || strings.EqualFold(label, "utf8") {
		return src, nil
	}
	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, fmt.Errorf("csv: encoding %q: %w", encoding, err)
	}
	return transform.NewReader(src, enc.NewDecoder()), nil
}

// StreamRows reads CSV from src and sends one table.Row per record to out.
// Empty fields become nil cells; every other value stays a string.
//
// Malformed records are reported to onErr and skipped. A header read failure,
// an unknown encoding and cancellation end the stream with an error.
func StreamRows(ctx context.Context, src io.Reader, opts Options, out chan<- table.Row, onErr parser.ErrorFunc) error {
	r, err := decoder(src, opts.Encoding)
	if err != nil {
		return err
	}

	cr := csv.NewReader(r)
	if opts.Comma != 0 {
		cr.Comma = opts.Comma
	}
	cr.LazyQuotes = opts.LazyQuotes
	cr.FieldsPerRecord = -1

	var (
		line    int
		headers []string
	)
	readRec := func() ([]string, error) {
		line++
		return cr.Read()
	}

	if !opts.NoHeader {
		hdr, err := readRec()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			if onErr != nil {
				onErr(line, fmt.Errorf("read header: %w", err))
			}
			return fmt.Errorf("csv: read header: %w", err)
		}
		headers = make([]string, len(hdr))
		for i, h := range hdr {
			if i == 0 {
				h = strings.TrimPrefix(h, "\uFEFF")
			}
			if !opts.KeepSpace {
				h = strings.TrimSpace(h)
			}
			if mapped, ok := opts.HeaderMap[h]; ok {
				h = mapped
			}
			headers[i] = h
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		rec, err := readRec()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			if onErr != nil {
				onErr(line, fmt.Errorf("csv read: %w", err))
			}
			continue
		}

		cells := make([]table.Cell, 0, len(rec))
		for i, v := range rec {
			name := columnName(headers, i)
			if name == "" {
				continue
			}
			if !opts.KeepSpace {
				v = strings.TrimSpace(v)
			}
			var val any
			if v != "" {
				val = v
			}
			cells = append(cells, table.Cell{Name: name, Value: val})
		}

		select {
		case out <- opts.Keys.Row(cells):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// columnName names field i. Fields beyond the header get positional names;
// blank headers drop the field.
func columnName(headers []string, i int) string {
	if headers == nil || i >= len(headers) {
		return fmt.Sprintf("col%d", i+1)
	}
	return headers[i]
}
