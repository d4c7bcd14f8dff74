package cmd

import (
	"github.com/spf13/cobra"
)

var setCmd = &cobra.Command{
	Use:   "set [path] [value]",
	Short: "Write one control value, e.g. pmemctl -p x.pool set stats.enabled 1",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := openPool()
		if err != nil {
			return err
		}
		defer func() { _ = p.Close() }()

		return p.Control(args[0], nil, args[1])
	},
}

func init() {
	rootCmd.AddCommand(setCmd)
}
