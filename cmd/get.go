package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var getCmd = &cobra.Command{
	Use:   "get [path]",
	Short: "Read one control value, e.g. pmemctl -p x.pool get heap.0.used",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := openPool()
		if err != nil {
			return err
		}
		defer func() { _ = p.Close() }()

		var value string
		if err := p.Control(args[0], &value, nil); err != nil {
			return err
		}
		fmt.Println(value)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(getCmd)
}
