package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sarchlab/testdata/config"
	"github.com/sarchlab/testdata/datarecording"
	"github.com/sarchlab/testdata/ua"
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Print recorded generations.",
	Long: "`query --db run.sqlite3 --node ns=2;s=Double` prints the " +
		"generations recorded by `run`, oldest first.",
	Args: cobra.NoArgs,
	RunE: queryGenerations,
}

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.Flags().String("db", "",
		"SQLite file written by run; defaults to the recording path, "+
			"which "+config.EnvDBPath+" overrides")
	queryCmd.Flags().String("node", "", "only show this node")
	queryCmd.Flags().Int("limit", 20, "maximum number of rows; 0 for all")
}

func queryGenerations(cmd *cobra.Command, _ []string) error {
	db, _ := cmd.Flags().GetString("db")
	if db == "" {
		db = cfg.Recording.Path
	}

	if db == "" {
		return errors.New("no database given, use --db")
	}

	node, _ := cmd.Flags().GetString("node")
	limit, _ := cmd.Flags().GetInt("limit")

	if !strings.HasSuffix(db, ".sqlite3") {
		db = datarecording.FileName(db)
	}

	if _, err := os.Stat(db); err != nil {
		return fmt.Errorf("open recording: %w", err)
	}

	reader, err := datarecording.NewReader(db)
	if err != nil {
		return err
	}
	defer reader.Close()

	records, total, err := datarecording.QueryGenerations(
		cmd.Context(), reader, ua.NodeID(node), limit)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CYCLE\tNODE\tSTATUS\tVALUE\tSOURCE TIMESTAMP")

	for _, r := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			r.CycleID, r.NodeID, r.Status, r.Value, r.SourceTimestamp)
	}

	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%d of %d generations\n", len(records), total)

	return nil
}
