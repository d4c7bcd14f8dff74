package cmd

import (
	"fmt"
	"strings"

	"github.com/ohler55/ojg"
	"github.com/ohler55/ojg/oj"
	"github.com/spf13/cobra"

	"github.com/agentic-research/pmemctl/api"
	"github.com/agentic-research/pmemctl/internal/ctl"
)

// dumpView is the JSON document `pmemctl dump` prints.
type dumpView struct {
	Info     api.PoolInfo      `json:"info"`
	Controls map[string]string `json:"controls"`
	Stats    api.StatsSnapshot `json:"stats"`
}

var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Dump the pool header, readable control values and statistics as JSON",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := openPool()
		if err != nil {
			return err
		}
		defer func() { _ = p.Close() }()

		// Indexed subtrees (heap.<arena>.*) have no enumerable paths here;
		// their per-arena values come through the stats snapshot instead.
		controls := map[string]string{}
		var walkErr error
		p.Tree().Walk(func(path string, n *ctl.Node) {
			if walkErr != nil || n.Kind != ctl.KindLeaf || n.Read == nil {
				return
			}
			if strings.Contains(path, "<") {
				return
			}
			var value string
			if err := p.Control(path, &value, nil); err != nil {
				walkErr = fmt.Errorf("read %s: %w", path, err)
				return
			}
			controls[path] = value
		})
		if walkErr != nil {
			return walkErr
		}

		stats, err := p.Snapshot()
		if err != nil {
			return err
		}

		out := dumpView{Info: p.Info(), Controls: controls, Stats: stats}
		fmt.Println(oj.JSON(out, &ojg.Options{Indent: 2, Sort: true, UseTags: true}))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(dumpCmd)
}
