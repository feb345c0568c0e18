// Package json streams JSON documents into table rows.
package json

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"lakeio/internal/parser"
	"lakeio/internal/table"
)

// Options controls StreamRows.
type Options struct {
	// HeaderMap renames source keys.
	HeaderMap map[string]string
	// ArrayJoinSeparator joins arrays of strings into one value; empty means ",".
	ArrayJoinSeparator string

	Keys parser.Keys
}

// StreamRows parses JSON from r and sends one table.Row per record to out.
//
// Accepted shapes:
//   - A root array: each object element is a record; null elements are skipped.
//   - A root object holding an array field: the first such field is streamed
//     as records and the rest of the object is skipped (envelope).
//   - A root object without array fields: one record.
//   - Any of the above followed by further objects (JSON lines).
//
// Cells are ordered by key name so that records with the same keys always
// yield the same column order. Numbers become int64 when integral, float64
// otherwise; nested objects and non-string arrays become their JSON text.
func StreamRows(ctx context.Context, r io.Reader, opts Options, out chan<- table.Row, onErr parser.ErrorFunc) error {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	sep := opts.ArrayJoinSeparator
	if sep == "" {
		sep = ","
	}
	s := &stream{ctx: ctx, dec: dec, onErr: onErr}
	s.emit = func(obj map[string]any) error {
		s.line++
		select {
		case out <- opts.Keys.Row(objectCells(obj, opts.HeaderMap, sep)):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return s.run()
}

type stream struct {
	ctx   context.Context
	dec   *json.Decoder
	emit  func(map[string]any) error
	onErr parser.ErrorFunc
	line  int
}

func (s *stream) fail(err error) error {
	if s.onErr != nil {
		s.onErr(s.line+1, err)
	}
	return err
}

func (s *stream) run() error {
	tok, err := s.dec.Token()
	if err == io.EOF {
		return nil
	}
	if err != nil {
		return s.fail(fmt.Errorf("json: read first token: %w", err))
	}

	switch tok {
	case json.Delim('['):
		if err := s.objects(); err != nil {
			return err
		}
		if err := s.expect(']'); err != nil {
			return err
		}
	case json.Delim('{'):
		single, err := s.envelope()
		if err != nil {
			return err
		}
		if err := s.expect('}'); err != nil {
			return err
		}
		if single != nil {
			if err := s.emit(single); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("json: unsupported root token %v (want object or array)", tok)
	}
	return s.trailing()
}

func (s *stream) expect(d json.Delim) error {
	tok, err := s.dec.Token()
	if err != nil {
		return fmt.Errorf("json: read %q: %w", d, err)
	}
	if tok != d {
		return fmt.Errorf("json: expected %q, got %v", d, tok)
	}
	return nil
}

// trailing emits objects that follow the root value.
func (s *stream) trailing() error {
	for {
		var obj map[string]any
		if err := s.dec.Decode(&obj); err == io.EOF {
			return nil
		} else if err != nil {
			return s.fail(fmt.Errorf("json: decode trailing object: %w", err))
		}
		if err := s.emit(obj); err != nil {
			return err
		}
	}
}

// objects emits the elements of the array whose '[' was just consumed.
func (s *stream) objects() error {
	for s.dec.More() {
		if err := s.ctx.Err(); err != nil {
			return err
		}
		var raw any
		if err := s.dec.Decode(&raw); err != nil {
			return s.fail(fmt.Errorf("json: decode array element: %w", err))
		}
		if raw == nil {
			continue
		}
		obj, ok := raw.(map[string]any)
		if !ok {
			return s.fail(fmt.Errorf("json: array element not an object (got %T)", raw))
		}
		if err := s.emit(obj); err != nil {
			return err
		}
	}
	return nil
}

// envelope walks the root object whose '{' was just consumed. It streams the
// first array field and returns nil, or returns the object itself when no
// field is an array.
func (s *stream) envelope() (map[string]any, error) {
	single := map[string]any{}
	for s.dec.More() {
		keyTok, err := s.dec.Token()
		if err != nil {
			return nil, s.fail(fmt.Errorf("json: read object key: %w", err))
		}
		key, _ := keyTok.(string)

		valTok, err := s.dec.Token()
		if err != nil {
			return nil, s.fail(fmt.Errorf("json: read object value: %w", err))
		}
		if valTok == json.Delim('[') {
			if err := s.objects(); err != nil {
				return nil, err
			}
			if err := s.expect(']'); err != nil {
				return nil, err
			}
			for s.dec.More() {
				if _, err := s.dec.Token(); err != nil {
					return nil, fmt.Errorf("json: skip envelope key: %w", err)
				}
				if _, err := s.next(); err != nil {
					return nil, err
				}
			}
			return nil, nil
		}

		v, err := s.from(valTok)
		if err != nil {
			return nil, s.fail(err)
		}
		single[key] = v
	}
	return single, nil
}

// next reads and materializes the next JSON value.
func (s *stream) next() (any, error) {
	tok, err := s.dec.Token()
	if err != nil {
		return nil, fmt.Errorf("json: read value: %w", err)
	}
	return s.from(tok)
}

// from materializes the JSON value whose first token is tok.
func (s *stream) from(tok json.Token) (any, error) {
	switch tok {
	case json.Delim('{'):
		m := map[string]any{}
		for s.dec.More() {
			kt, err := s.dec.Token()
			if err != nil {
				return nil, fmt.Errorf("json: read nested key: %w", err)
			}
			k, _ := kt.(string)
			v, err := s.next()
			if err != nil {
				return nil, err
			}
			m[k] = v
		}
		return m, s.expect('}')
	case json.Delim('['):
		var arr []any
		for s.dec.More() {
			v, err := s.next()
			if err != nil {
				return nil, err
			}
			arr = append(arr, v)
		}
		return arr, s.expect(']')
	}
	return tok, nil
}

// objectCells flattens obj into cells sorted by (renamed) key.
func objectCells(obj map[string]any, headerMap map[string]string, sep string) []table.Cell {
	cells := make([]table.Cell, 0, len(obj))
	for k, v := range obj {
		if mapped, ok := headerMap[k]; ok && mapped != "" {
			k = mapped
		}
		cells = append(cells, table.Cell{Name: k, Value: scalar(v, sep)})
	}
	sort.Slice(cells, func(i, j int) bool { return cells[i].Name < cells[j].Name })
	return cells
}

// scalar converts a decoded JSON value into a cell value.
func scalar(v any, sep string) any {
	switch t := v.(type) {
	case nil, string, bool:
		return t
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case []any:
		ss := make([]string, 0, len(t))
		for _, it := range t {
			if it == nil {
				continue
			}
			str, ok := it.(string)
			if !ok {
				return jsonText(t)
			}
			ss = append(ss, str)
		}
		return strings.Join(ss, sep)
	default:
		return jsonText(t)
	}
}

func jsonText(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}
