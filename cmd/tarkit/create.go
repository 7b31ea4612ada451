package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aurora-is-near/tarkit/src/tarchive"
)

type createOptions struct {
	follow    bool
	keepGoing bool
	progress  bool
	chunkSize int64
}

func newCreateCommand() *cobra.Command {
	var opts createOptions

	cmd := &cobra.Command{
		Use:   "create ARCHIVE DIRECTORY",
		Short: "Archive a directory tree",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCreate(args[0], args[1], &opts)
		},
	}

	flags := cmd.Flags()
	flags.BoolVarP(&opts.follow, "follow", "L", false, "Archive symlinked files as their content")
	flags.BoolVarP(&opts.keepGoing, "keep-going", "k", false, "Skip unreadable entries instead of aborting")
	flags.BoolVarP(&opts.progress, "progress", "P", false, "Report progress on stderr")
	flags.Int64Var(&opts.chunkSize, "chunk-size", tarchive.DefaultChunkSize, "Copy buffer size in bytes")
	return cmd
}

func runCreate(archivePath, root string, opts *createOptions) error {
	options := []tarchive.Option{tarchive.WithChunkSize(opts.chunkSize)}
	if opts.follow {
		options = append(options, tarchive.WithFollowSymlinks)
	}
	if opts.keepGoing {
		options = append(options, tarchive.WithKeepGoing)
	}
	if opts.progress {
		options = append(options, tarchive.WithProgress(stderrProgress()))
	}
	return tarchive.CreateFile(root, archivePath, options...)
}

// stderrProgress prints whole-percent steps, each at most once.
func stderrProgress() tarchive.ProgressFunc {
	last := -1
	return func(fraction float64, processed int64) {
		pct := int(fraction * 100)
		if pct == last {
			return
		}
		last = pct
		fmt.Fprintf(os.Stderr, "\r%3d%%", pct)
		if pct >= 100 {
			fmt.Fprintln(os.Stderr)
		}
	}
}
