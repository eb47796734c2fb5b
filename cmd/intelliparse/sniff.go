package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/tsawler/intelliparse/format"
)

// sniffRow is one line of sniff output.
type sniffRow struct {
	Name string `json:"name"`
	format.Result
	Error string `json:"error,omitempty"`
}

func newSniffCmd(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "sniff [paths|dirs|s3://bucket/prefix ...]",
		Short: "Detect the true format of files from their content",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			resolver, err := a.resolver()
			if err != nil {
				return err
			}
			items, err := resolver.Resolve(ctx, args)
			if err != nil {
				return err
			}

			rows := make([]sniffRow, 0, len(items))
			for _, it := range items {
				row := sniffRow{Name: it.Location}
				data, err := it.Load(ctx)
				if err != nil {
					row.Error = err.Error()
				} else {
					row.Result = format.Sniff(it.Name, data)
				}
				rows = append(rows, row)
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(rows)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "FILE\tFORMAT\tMIME\tNOTE")
			for _, row := range rows {
				note := ""
				switch {
				case row.Error != "":
					note = color.RedString(row.Error)
				case row.ExtensionMismatch:
					note = color.YellowString("name claims %s", row.Claimed)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", row.Name, row.Format, row.MIME, note)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}
