package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"unicode/utf8"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"lakeio/internal/blob"
	"lakeio/internal/ingest"
	"lakeio/internal/parser"
	pcsv "lakeio/internal/parser/csv"
	pjson "lakeio/internal/parser/json"
	"lakeio/internal/storage"
	"lakeio/internal/table"
)

type loadFlags struct {
	format     string
	fromRemote bool
	pkField    string
	rkField    string
	partition  string
	encoding   string
	comma      string
	noHeader   bool
	batchSize  int
}

func newLoadCmd(a *app) *cobra.Command {
	var lf loadFlags
	cmd := &cobra.Command{
		Use:   "load source destination",
		Short: "Bulk-load a CSV or JSON file into a table, creating it when missing",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			defer a.stage("load")(&err)
			return a.load(cmd.Context(), args[0], args[1], lf, cmd.OutOrStdout())
		},
	}
	addSourceFlags(cmd, &lf)
	cmd.Flags().IntVar(&lf.batchSize, "batch-size", 0, "rows per bulk write (default: ingest.batch_size)")
	return cmd
}

func (a *app) load(ctx context.Context, source, destination string, lf loadFlags, stdout io.Writer) error {
	format, err := sourceFormat(source, lf.format)
	if err != nil {
		return err
	}
	batchSize := lf.batchSize
	if batchSize <= 0 {
		batchSize = a.cfg.Ingest.BatchSize
	}

	src, err := a.openSource(ctx, source, lf.fromRemote)
	if err != nil {
		return err
	}
	defer src.Close()

	sink, err := storage.New(a.cfg.StorageConfig())
	if err != nil {
		return err
	}
	exec, err := ingest.New(sink, ingest.Options{Keys: a.cfg.KeyColumns(), Logger: a.log})
	if err != nil {
		return err
	}
	defer exec.Close()

	keys := lf.keys(source)

	var skipped int
	onErr := func(line int, err error) {
		skipped++
		a.log.Printf("load: %s line %d: %v", source, line, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	rows := make(chan table.Row, batchSize)

	g.Go(func() error {
		defer close(rows)
		return parseSource(gctx, src, format, lf, keys, rows, onErr)
	})

	var loaded, batches int
	g.Go(func() error {
		batch := make([]table.Row, 0, batchSize)
		flush := func() error {
			if len(batch) == 0 {
				return nil
			}
			if err := exec.Insert(gctx, destination, batch); err != nil {
				return err
			}
			loaded += len(batch)
			batches++
			batch = make([]table.Row, 0, batchSize)
			return nil
		}
		for r := range rows {
			batch = append(batch, r)
			if len(batch) >= batchSize {
				if err := flush(); err != nil {
					return err
				}
			}
		}
		return flush()
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("load %s into %s: %w", source, destination, err)
	}
	fmt.Fprintf(stdout, "loaded %d rows into %s in %d batches (%d skipped)\n", loaded, destination, batches, skipped)
	return nil
}

func (lf loadFlags) keys(source string) parser.Keys {
	partition := lf.partition
	if partition == "" {
		partition = blob.Name(blob.Normalize(source, true))
	}
	return parser.Keys{PartitionKeyField: lf.pkField, RowKeyField: lf.rkField, DefaultPartition: partition}
}

// sourceFormat returns "csv" or "json" from the flag or the file extension.
func sourceFormat(source, flag string) (string, error) {
	format := strings.ToLower(flag)
	if format == "" {
		format = strings.TrimPrefix(strings.ToLower(path.Ext(source)), ".")
	}
	if format != "csv" && format != "json" {
		return "", fmt.Errorf("unknown format %q (use --format csv|json)", format)
	}
	return format, nil
}

// parseSource streams src into out with the parser for format. It does not
// close out.
func parseSource(ctx context.Context, src io.Reader, format string, lf loadFlags, keys parser.Keys, out chan<- table.Row, onErr parser.ErrorFunc) error {
	if format == "json" {
		return pjson.StreamRows(ctx, src, pjson.Options{Keys: keys}, out, onErr)
	}
	comma, _ := utf8.DecodeRuneInString(lf.comma)
	return pcsv.StreamRows(ctx, src, pcsv.Options{
		Comma:    comma,
		NoHeader: lf.noHeader,
		Encoding: lf.encoding,
		Keys:     keys,
	}, out, onErr)
}

// addSourceFlags registers the flags shared by load and probe.
func addSourceFlags(cmd *cobra.Command, lf *loadFlags) {
	f := cmd.Flags()
	f.StringVar(&lf.format, "format", "", "csv or json (default: from the source extension)")
	f.BoolVar(&lf.fromRemote, "from-remote", false, "read source from the blob remote instead of the local disk")
	f.StringVar(&lf.pkField, "pk-column", "", "source field holding the partition key")
	f.StringVar(&lf.rkField, "rk-column", "", "source field holding the row key (default: generated uuid)")
	f.StringVar(&lf.partition, "partition", "", "partition key when --pk-column is unset (default: source file name)")
	f.StringVar(&lf.encoding, "encoding", "", "csv text encoding label (e.g. windows-1250)")
	f.StringVar(&lf.comma, "comma", ",", "csv field delimiter")
	f.BoolVar(&lf.noHeader, "no-header", false, "csv has no header row")
}

// openSource opens a local file, or reads a blob through the remote.
func (a *app) openSource(ctx context.Context, source string, fromRemote bool) (io.ReadCloser, error) {
	if !fromRemote {
		return os.Open(source)
	}
	c, err := a.openBlob(ctx)
	if err != nil {
		return nil, err
	}
	r, err := c.OpenRead(ctx, source)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, fmt.Errorf("load: %s: %w", source, blob.ErrNotFound)
	}
	return io.NopCloser(r), nil
}
