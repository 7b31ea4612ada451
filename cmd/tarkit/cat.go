package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aurora-is-near/tarkit/src/tarchive"
	"github.com/aurora-is-near/tarkit/src/tarfmt"
)

func newCatCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "cat ARCHIVE SUBPATH",
		Short: "Write one archived file to stdout",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCat(args[0], args[1])
		},
	}
}

func runCat(archivePath, subpath string) error {
	e, err := tarchive.EntryAtSubpath(archivePath, subpath)
	if err != nil {
		return err
	}
	if e == nil {
		return fmt.Errorf("no entry at %q", subpath)
	}
	if e.Type != tarfmt.TypeNormalFile {
		return fmt.Errorf("%q is not a file", subpath)
	}
	data, err := e.Content()
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(data)
	return err
}
