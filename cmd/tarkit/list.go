package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/aurora-is-near/tarkit/src/tarchive"
	"github.com/aurora-is-near/tarkit/src/tarfmt"
)

type listOptions struct {
	long bool
}

func newListCommand() *cobra.Command {
	var opts listOptions

	cmd := &cobra.Command{
		Use:   "list ARCHIVE [SUBPATH]",
		Short: "List archive entries",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			subpath := ""
			if len(args) > 1 {
				subpath = args[1]
			}
			return runList(args[0], subpath, &opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.long, "long", "l", false, "Show type, mode, size and mtime")
	return cmd
}

func runList(archivePath, subpath string, opts *listOptions) error {
	var entries []*tarchive.Entry
	if subpath == "" {
		roots, err := tarchive.LoadAllEntries(archivePath)
		if err != nil {
			return err
		}
		for _, e := range roots {
			entries = append(entries, e)
			entries = append(entries, e.Descendants()...)
		}
	} else {
		match, err := tarchive.EntryAtSubpath(archivePath, subpath)
		if err != nil {
			return err
		}
		if match == nil {
			return fmt.Errorf("no entry at %q", subpath)
		}
		entries = append(entries, match)
		entries = append(entries, match.Descendants()...)
	}

	if !opts.long {
		for _, e := range entries {
			fmt.Println(displayPath(e))
		}
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%04o\t%d\t%s\t%s\n",
			e.Type, e.Mode, e.Size, e.ModTime.Format("2006-01-02 15:04:05"), displayPath(e))
	}
	return w.Flush()
}

func displayPath(e *tarchive.Entry) string {
	if e.Type == tarfmt.TypeSymbolicLink {
		return e.Subpath + " -> " + e.LinkTarget
	}
	if e.IsDir() {
		return e.Subpath + "/"
	}
	return e.Subpath
}
