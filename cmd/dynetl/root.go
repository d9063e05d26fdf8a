package main

import (
	"io"

	"github.com/spf13/cobra"
)

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:          "dynetl",
		Short:        "Ingest files, evolve their schema, flag deviating records",
		SilenceUsage: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.PersistentFlags().StringVarP(&a.cfgPath, "config", "c", "", "config file (JSON or YAML); defaults plus env when empty")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable verbose logs")

	root.AddCommand(
		newIngestCmd(a),
		newSchemasCmd(a),
		newChangesCmd(a),
		newRecordsCmd(a),
		newServeCmd(a),
		newWatchCmd(a),
		newConfigCmd(a),
	)
	return root
}
