package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"lakeio/internal/blob"
)

func newLsCmd(a *app) *cobra.Command {
	var opts blob.ListOptions
	cmd := &cobra.Command{
		Use:   "ls [path]",
		Short: "List a folder",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			defer a.stage("ls")(&err)
			if len(args) == 1 {
				opts.FolderPath = args[0]
			}
			c, err := a.openBlob(cmd.Context())
			if err != nil {
				return err
			}
			nodes, err := c.List(cmd.Context(), opts)
			if err != nil {
				return err
			}
			return printNodes(cmd.OutOrStdout(), nodes)
		},
	}
	cmd.Flags().BoolVarP(&opts.Recurse, "recursive", "r", false, "descend into sub-folders")
	cmd.Flags().IntVar(&opts.MaxResults, "max", 0, "cap the number of entries (0 = all)")
	cmd.Flags().StringVar(&opts.FilePrefix, "prefix", "", "only entries whose name starts with prefix")
	cmd.Flags().IntVar(&opts.Concurrency, "concurrency", 0, "in-flight list calls (0 = config list_concurrency)")
	return cmd
}

func printNodes(w io.Writer, nodes []blob.Node) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, n := range nodes {
		fmt.Fprintln(tw, nodeLine(n))
	}
	return tw.Flush()
}

func nodeLine(n blob.Node) string {
	size := "-"
	if n.Size != nil {
		size = strconv.FormatInt(*n.Size, 10)
	}
	mod := "-"
	if !n.ModTime.IsZero() {
		mod = n.ModTime.UTC().Format(time.RFC3339)
	}
	kind := "f"
	if n.IsFolder() {
		kind = "d"
	}
	return kind + "\t" + size + "\t" + mod + "\t" + n.Path
}

func newStatCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stat path...",
		Short: "Show one entry per path",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			defer a.stage("stat")(&err)
			c, err := a.openBlob(cmd.Context())
			if err != nil {
				return err
			}
			nodes, err := c.GetBlobs(cmd.Context(), args)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for i, n := range nodes {
				if n == nil {
					fmt.Fprintf(tw, "-\t-\t-\t%s\tabsent\n", blob.Normalize(args[i], true))
					continue
				}
				fmt.Fprintln(tw, nodeLine(*n))
			}
			return tw.Flush()
		},
	}
}

func newExistsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "exists path...",
		Short: "Print true/false per path",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			defer a.stage("exists")(&err)
			c, err := a.openBlob(cmd.Context())
			if err != nil {
				return err
			}
			found, err := c.ExistsAll(cmd.Context(), args)
			if err != nil {
				return err
			}
			for i, ok := range found {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%t\n", blob.Normalize(args[i], true), ok)
			}
			return nil
		},
	}
}

func newCatCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "cat path",
		Short: "Write a file to stdout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			defer a.stage("cat")(&err)
			c, err := a.openBlob(cmd.Context())
			if err != nil {
				return err
			}
			r, err := c.OpenRead(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if r == nil {
				return fmt.Errorf("%s: %w", args[0], blob.ErrNotFound)
			}
			_, err = io.Copy(cmd.OutOrStdout(), r)
			return err
		},
	}
}

func newPutCmd(a *app) *cobra.Command {
	var appendMode bool
	cmd := &cobra.Command{
		Use:   "put local remote",
		Short: "Upload a local file, replacing the remote one",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			defer a.stage("put")(&err)
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			c, err := a.openBlob(cmd.Context())
			if err != nil {
				return err
			}
			return c.Write(cmd.Context(), args[1], f, appendMode)
		},
	}
	cmd.Flags().BoolVar(&appendMode, "append", false, "append instead of replace (not supported by any remote)")
	return cmd
}

func newRmCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rm path...",
		Short: "Delete files or folders (recursively)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			defer a.stage("rm")(&err)
			c, err := a.openBlob(cmd.Context())
			if err != nil {
				return err
			}
			return c.DeleteAll(cmd.Context(), args)
		},
	}
}
