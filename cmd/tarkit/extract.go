package main

import (
	"github.com/spf13/cobra"

	"github.com/aurora-is-near/tarkit/src/tarchive"
)

type extractOptions struct {
	attributes bool
	progress   bool
	chunkSize  int64
}

func newExtractCommand() *cobra.Command {
	var opts extractOptions

	cmd := &cobra.Command{
		Use:   "extract ARCHIVE DIRECTORY",
		Short: "Extract an archive into a directory",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExtract(args[0], args[1], &opts)
		},
	}

	flags := cmd.Flags()
	flags.BoolVarP(&opts.attributes, "attributes", "a", false, "Restore permissions, ownership and times")
	flags.BoolVarP(&opts.progress, "progress", "P", false, "Report progress on stderr")
	flags.Int64Var(&opts.chunkSize, "chunk-size", tarchive.DefaultChunkSize, "Copy buffer size in bytes")
	return cmd
}

func runExtract(archivePath, dest string, opts *extractOptions) error {
	options := []tarchive.Option{tarchive.WithChunkSize(opts.chunkSize)}
	if opts.attributes {
		options = append(options, tarchive.WithAttributes)
	}
	if opts.progress {
		options = append(options, tarchive.WithProgress(stderrProgress()))
	}
	return tarchive.Extract(archivePath, dest, options...)
}
