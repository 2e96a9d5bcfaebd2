package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/srg/antscope/internal/profile"
	"github.com/srg/antscope/pkg/config"
)

func newFamiliesCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "families",
		Short: "List supported device families",
		Long: `List the ANT+ device classes antscope can decode, with their channel
period and the decoders each class can resolve to.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return displayFamilies(cmd.OutOrStdout(), profile.Families(), format)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", config.FormatTable, "Output format (table, json)")

	return cmd
}

func displayFamilies(w io.Writer, families []profile.Family, format string) error {
	switch format {
	case config.FormatJSON:
		return writeJSON(w, families)
	case config.FormatTable:
	default:
		return fmt.Errorf("%w '%s': must be one of %v", ErrInvalidFormat, format, []string{config.FormatTable, config.FormatJSON})
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CLASS\tNAME\tPERIOD\tKINDS")

	for _, f := range families {
		kinds := make([]string, len(f.Kinds))
		for i, k := range f.Kinds {
			kinds[i] = k.String()
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", f.Class, f.Name, f.Broadcast().Round(time.Millisecond), strings.Join(kinds, ","))
	}

	return tw.Flush()
}
