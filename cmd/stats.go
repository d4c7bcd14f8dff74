package cmd

import (
	"fmt"

	"github.com/ohler55/ojg"
	"github.com/ohler55/ojg/oj"
	"github.com/spf13/cobra"

	"github.com/agentic-research/pmemctl/internal/statsdb"
)

var (
	statsDBPath string
	statsLimit  int
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Record and inspect statistics snapshots",
}

var statsRecordCmd = &cobra.Command{
	Use:   "record",
	Short: "Append the pool's current statistics to the snapshot database",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := openPool()
		if err != nil {
			return err
		}
		defer func() { _ = p.Close() }()

		snap, err := p.Snapshot()
		if err != nil {
			return err
		}

		r, err := statsdb.Open(statsDBPath)
		if err != nil {
			return err
		}
		defer func() { _ = r.Close() }()

		return r.Record(snap)
	},
}

var statsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print recorded snapshots, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := statsdb.Open(statsDBPath)
		if err != nil {
			return err
		}
		defer func() { _ = r.Close() }()

		history, err := r.History(statsLimit)
		if err != nil {
			return err
		}
		fmt.Println(oj.JSON(history, &ojg.Options{Indent: 2, UseTags: true}))
		return nil
	},
}

func init() {
	statsCmd.PersistentFlags().StringVar(&statsDBPath, "db", "pmemctl-stats.db", "Snapshot database path")
	statsShowCmd.Flags().IntVar(&statsLimit, "limit", 0, "Show at most this many snapshots (0 = all)")
	statsCmd.AddCommand(statsRecordCmd)
	statsCmd.AddCommand(statsShowCmd)
	rootCmd.AddCommand(statsCmd)
}
