package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"lakeio/internal/storage"
	"lakeio/internal/table"
)

func newProbeCmd(a *app) *cobra.Command {
	var (
		lf     loadFlags
		sample int
	)
	cmd := &cobra.Command{
		Use:   "probe source [destination]",
		Short: "Infer the schema of a file's first rows and print the DDL load would run",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			defer a.stage("probe")(&err)
			dest := ""
			if len(args) == 2 {
				dest = args[1]
			}
			return a.probe(cmd.Context(), args[0], dest, lf, sample, cmd.OutOrStdout())
		},
	}
	addSourceFlags(cmd, &lf)
	cmd.Flags().IntVar(&sample, "rows", 100, "number of rows to sample")
	return cmd
}

// probeResult is what a sample says about a source.
type probeResult struct {
	Rows     int
	Schema   table.Schema
	Distinct map[string]int
}

// rowKeyCandidates lists non-nullable columns whose sampled values are all
// distinct, in schema order.
func (p probeResult) rowKeyCandidates() []string {
	var out []string
	for _, c := range p.Schema.Columns {
		if c.Key || c.Nullable || p.Rows == 0 {
			continue
		}
		if p.Distinct[c.Name] == p.Rows {
			out = append(out, c.Name)
		}
	}
	return out
}

func (a *app) probe(ctx context.Context, source, destination string, lf loadFlags, sample int, w io.Writer) error {
	format, err := sourceFormat(source, lf.format)
	if err != nil {
		return err
	}
	if sample <= 0 {
		return fmt.Errorf("probe: --rows must be > 0")
	}
	src, err := a.openSource(ctx, source, lf.fromRemote)
	if err != nil {
		return err
	}
	defer src.Close()

	res, err := sampleRows(ctx, src, format, lf, source, sample, a.cfg.KeyColumns())
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "column\tkind\tnullable\tdistinct")
	for _, c := range res.Schema.Columns {
		distinct := "-"
		if !c.Key {
			distinct = fmt.Sprint(res.Distinct[c.Name])
		}
		fmt.Fprintf(tw, "%s\t%s\t%t\t%s\n", c.Name, c.Kind, c.Nullable, distinct)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(w, "sampled %d rows; row key candidates: %s\n", res.Rows, strings.Join(res.rowKeyCandidates(), ", "))

	if destination == "" {
		return nil
	}
	sink, err := storage.New(a.cfg.StorageConfig())
	if err != nil {
		fmt.Fprintf(w, "no DDL: %v\n", err)
		return nil
	}
	defer sink.Close()
	ddl, err := sink.CreateTableSQL(destination, res.Schema)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "-- %s\n%s\n", a.cfg.Sink.Kind, ddl)
	return nil
}

// sampleRows parses at most n rows of src and merges their schema.
func sampleRows(ctx context.Context, src io.Reader, format string, lf loadFlags, source string, n int, keys table.KeyColumns) (probeResult, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	out := make(chan table.Row)
	errc := make(chan error, 1)
	go func() {
		defer close(out)
		errc <- parseSource(ctx, src, format, lf, lf.keys(source), out, nil)
	}()

	var rows []table.Row
	for r := range out {
		rows = append(rows, r)
		if len(rows) == n {
			cancel()
			break
		}
	}
	for range out {
	}
	if err := <-errc; err != nil && !(errors.Is(err, context.Canceled) && len(rows) == n) {
		return probeResult{}, err
	}

	res := probeResult{Rows: len(rows), Schema: table.Merge(rows, keys), Distinct: map[string]int{}}
	seen := map[string]map[string]bool{}
	for _, r := range rows {
		for _, c := range r.Cells {
			if c.Value == nil {
				continue
			}
			if seen[c.Name] == nil {
				seen[c.Name] = map[string]bool{}
			}
			seen[c.Name][fmt.Sprint(c.Value)] = true
		}
	}
	for name, values := range seen {
		res.Distinct[name] = len(values)
	}
	return res, nil
}
