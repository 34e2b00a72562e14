package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sarchlab/testdata/ua"
)

var nodesCmd = &cobra.Command{
	Use:   "nodes",
	Short: "List the variables of the address space.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		space, err := cfg.BuildSpace()
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tTYPE\tACCESS\tUSER ACCESS")

		for _, n := range space.Nodes() {
			d := n.Descriptor()
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				n.ID(), n.BrowseName(), typeName(d.DataType, d.ValueRank),
				n.AccessLevel(), n.UserAccessLevel())

			for _, f := range d.Fields {
				fmt.Fprintf(w, "  .%s\t\t%s\t\t\n",
					f.Name, typeName(f.DataType, f.ValueRank))
			}
		}

		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(nodesCmd)
}

func typeName(dt ua.DataType, valueRank int) string {
	if valueRank >= ua.ValueRankOneDimension {
		return dt.String() + "[]"
	}

	return dt.String()
}
