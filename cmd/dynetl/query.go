package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"dynetl/internal/storage"
)

func newSchemasCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "schemas",
		Short: "List every committed schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.open(cmd.Context()); err != nil {
				return err
			}
			defer a.close()

			hist, err := a.store.Schemas(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(a, nonNil(hist))
			}
			for _, v := range hist {
				fmt.Fprintf(a.stdout, "v%d\t%s\t%s\t%s\n", v.Version, storage.FormatTime(v.CreatedAt),
					v.Schema.Fingerprint(), strings.Join(v.Schema.FieldSet(), ","))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func newChangesCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "changes",
		Short: "Show the schema change log, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.open(cmd.Context()); err != nil {
				return err
			}
			defer a.close()

			changes, err := a.store.Changes(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(a, nonNil(changes))
			}
			for _, c := range changes {
				fmt.Fprintf(a.stdout, "v%d -> v%d\t%s\tadded=%v removed=%v\n",
					c.OldVersion, c.NewVersion, storage.FormatTime(c.CreatedAt), c.Added, c.Removed)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func newRecordsCmd(a *app) *cobra.Command {
	var (
		limit   int
		version int
	)
	cmd := &cobra.Command{
		Use:   "records",
		Short: "Print stored records as JSON lines, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.open(cmd.Context()); err != nil {
				return err
			}
			defer a.close()

			limit = storage.ClampLimit(limit, 50, 1000)
			var (
				recs []storage.StoredRecord
				err  error
			)
			if version > 0 {
				recs, err = a.store.ListByVersion(cmd.Context(), version, limit)
			} else {
				recs, err = a.store.ListRecent(cmd.Context(), limit)
			}
			if err != nil {
				return err
			}
			enc := json.NewEncoder(a.stdout)
			for _, r := range recs {
				if err := enc.Encode(r); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum records to print (1-1000)")
	cmd.Flags().IntVar(&version, "version", 0, "only records filed under this schema version")
	return cmd
}

func writeJSON(a *app, v any) error {
	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func nonNil[T any](v []T) []T {
	if v == nil {
		return []T{}
	}
	return v
}
