package cmd

import (
	"fmt"
	"log/slog"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sarchlab/testdata/address"
	"github.com/sarchlab/testdata/generation"
	"github.com/sarchlab/testdata/source"
	"github.com/sarchlab/testdata/tracing"
	"github.com/sarchlab/testdata/ua"
)

var generateCmd = &cobra.Command{
	Use:   "generate <node-id>...",
	Short: "Regenerate nodes once and print the results.",
	Long: "`generate ns=2;s=Vector` regenerates the node from the test-data " +
		"source and prints the status and value. With --count each node " +
		"is regenerated several times in a row. With --value the single " +
		"node given is regenerated from that value instead, for example " +
		"--value \"X=1, Y=2, Z=3\" or --value 1,2,3 for an array.",
	Args: cobra.MinimumNArgs(1),
	RunE: generateNodes,
}

func init() {
	rootCmd.AddCommand(generateCmd)
	generateCmd.Flags().Int("count", 1, "number of generations per node")
	generateCmd.Flags().String("value", "", "fixed reading for a single node")
}

// fixedSource returns a source that always reads value for the node id.
func fixedSource(space *address.Space, id ua.NodeID, value string) (
	source.SystemValueSource, error,
) {
	node, ok := space.Get(id)
	if !ok {
		return nil, fmt.Errorf("unknown nodes: [%s]", id)
	}

	v, err := node.Descriptor().ParseValue(value)
	if err != nil {
		return nil, fmt.Errorf("invalid --value: %w", err)
	}

	return source.NewStatic().Set(id, v), nil
}

func generateNodes(cmd *cobra.Command, args []string) error {
	count, _ := cmd.Flags().GetInt("count")
	if count < 1 {
		return fmt.Errorf("invalid --count %d", count)
	}

	space, err := cfg.BuildSpace()
	if err != nil {
		return err
	}

	var src source.SystemValueSource = newSource(cfg)
	if cmd.Flags().Changed("value") {
		if len(args) != 1 {
			return fmt.Errorf("--value needs exactly one node, got %d", len(args))
		}

		value, _ := cmd.Flags().GetString("value")

		src, err = fixedSource(space, ua.NodeID(args[0]), value)
		if err != nil {
			return err
		}
	}

	engine := generation.NewEngine(space,
		generation.WithSource(src),
		generation.WithIncludeSubtree(cfg.IncludeSubtreeOrDefault()),
	)
	engine.AcceptHook(tracing.NewLogHook(slog.Default()))

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CYCLE\tNODE\tSTATUS\tVALUE")

	var unknown []string

	for i := 0; i < count; i++ {
		for _, arg := range args {
			r := engine.GenerateResult(cmd.Context(), ua.NodeID(arg))
			if r.Status == ua.StatusBadNodeIDUnknown {
				if i == 0 {
					unknown = append(unknown, arg)
				}

				continue
			}

			fmt.Fprintf(w, "%s\t%s\t%s\t%v\n",
				r.CycleID, r.NodeID, r.Status, r.Value.Value)
		}
	}

	if err := w.Flush(); err != nil {
		return err
	}

	if len(unknown) > 0 {
		return fmt.Errorf("unknown nodes: %v", unknown)
	}

	return nil
}
